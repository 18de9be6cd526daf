// Copyright 2025 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package mvcc

import (
	"testing"

	"github.com/dotlanth/dotdb/common"
)

func TestRepeatableReadSeesStableSnapshot(t *testing.T) {
	m := NewManager()
	page := common.PageId(100)

	setup := m.BeginTransaction(ReadCommitted)
	if err := m.AddVersion(page, []byte("v0"), setup); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	if err := m.CommitTransaction(setup); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	t1 := m.BeginTransaction(RepeatableRead)
	v, found, err := m.Read(page, t1)
	if err != nil || !found || string(v) != "v0" {
		t.Fatalf("t1 first read: v=%q found=%v err=%v", v, found, err)
	}

	t2 := m.BeginTransaction(ReadCommitted)
	if err := m.AddVersion(page, []byte("v1"), t2); err != nil {
		t.Fatalf("t2 write: %v", err)
	}
	if err := m.CommitTransaction(t2); err != nil {
		t.Fatalf("t2 commit: %v", err)
	}

	v, found, err = m.Read(page, t1)
	if err != nil || !found || string(v) != "v0" {
		t.Fatalf("t1 second read should still see v0: v=%q found=%v err=%v", v, found, err)
	}

	if !m.CheckWriteConflict(page, t1) {
		t.Fatalf("expected write conflict for t1 after t2 committed a newer version")
	}
}

func TestFirstWriterWins(t *testing.T) {
	m := NewManager()
	page := common.PageId(1)

	t1 := m.BeginTransaction(ReadCommitted)
	t2 := m.BeginTransaction(ReadCommitted)

	if err := m.AddVersion(page, []byte("a"), t1); err != nil {
		t.Fatalf("t1 write: %v", err)
	}
	if err := m.AddVersion(page, []byte("b"), t2); err != ErrWriteConflict {
		t.Fatalf("expected ErrWriteConflict for second uncommitted writer, got %v", err)
	}
}

func TestAbortLeavesNoTrace(t *testing.T) {
	m := NewManager()
	page := common.PageId(7)

	txn := m.BeginTransaction(ReadCommitted)
	if err := m.AddVersion(page, []byte("ghost"), txn); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := m.AbortTransaction(txn); err != nil {
		t.Fatalf("abort: %v", err)
	}

	reader := m.BeginTransaction(ReadCommitted)
	_, found, err := m.Read(page, reader)
	if err != nil {
		t.Fatalf("read after abort: %v", err)
	}
	if found {
		t.Fatalf("expected no visible version after abort")
	}
}

func TestReadUncommittedSeesDirtyWrites(t *testing.T) {
	m := NewManager()
	page := common.PageId(2)

	writer := m.BeginTransaction(ReadCommitted)
	if err := m.AddVersion(page, []byte("dirty"), writer); err != nil {
		t.Fatalf("write: %v", err)
	}

	dirtyReader := m.BeginTransaction(ReadUncommitted)
	v, found, err := m.Read(page, dirtyReader)
	if err != nil || !found || string(v) != "dirty" {
		t.Fatalf("read uncommitted should see dirty write: v=%q found=%v err=%v", v, found, err)
	}

	cleanReader := m.BeginTransaction(ReadCommitted)
	_, found, err = m.Read(page, cleanReader)
	if err != nil {
		t.Fatalf("read committed: %v", err)
	}
	if found {
		t.Fatalf("read committed should not see an uncommitted write")
	}
}
