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

package isolation

import (
	"context"
	"testing"
	"time"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/lockmgr"
	"github.com/dotlanth/dotdb/mvcc"
)

func newTestEnforcer() *Enforcer {
	return New(mvcc.NewManager(), lockmgr.NewManager())
}

// TestRepeatableReadWriteConflict reproduces §8 scenario 2: T1 begins RR,
// reads P=(bytes "v0"). T2 writes P="v1" and commits. T1 reads P again and
// still sees "v0". T1 then writes P and gets WriteConflict.
func TestRepeatableReadWriteConflict(t *testing.T) {
	e := newTestEnforcer()
	ctx := context.Background()
	page := common.PageId(42)

	seed := e.Begin(mvcc.ReadCommitted)
	if err := e.Write(ctx, seed, page, []byte("v0")); err != nil {
		t.Fatalf("seed write: %v", err)
	}
	if err := e.Commit(seed); err != nil {
		t.Fatalf("seed commit: %v", err)
	}

	t1 := e.Begin(mvcc.RepeatableRead)
	v, found, err := e.Read(ctx, t1, page)
	if err != nil || !found || string(v) != "v0" {
		t.Fatalf("t1 first read: v=%q found=%v err=%v", v, found, err)
	}

	t2 := e.Begin(mvcc.ReadCommitted)
	if err := e.Write(ctx, t2, page, []byte("v1")); err != nil {
		t.Fatalf("t2 write: %v", err)
	}
	if err := e.Commit(t2); err != nil {
		t.Fatalf("t2 commit: %v", err)
	}

	v, found, err = e.Read(ctx, t1, page)
	if err != nil || !found || string(v) != "v0" {
		t.Fatalf("t1 second read should still see v0: v=%q found=%v err=%v", v, found, err)
	}

	if err := e.Write(ctx, t1, page, []byte("v2")); err != mvcc.ErrWriteConflict {
		t.Fatalf("expected ErrWriteConflict, got %v", err)
	}
}

func TestSerializableDisjointWritesBothCommit(t *testing.T) {
	e := newTestEnforcer()
	ctx := context.Background()

	t1 := e.Begin(mvcc.Serializable)
	t2 := e.Begin(mvcc.Serializable)

	if err := e.Write(ctx, t1, common.PageId(1), []byte("a")); err != nil {
		t.Fatalf("t1 write: %v", err)
	}
	if err := e.Write(ctx, t2, common.PageId(2), []byte("b")); err != nil {
		t.Fatalf("t2 write: %v", err)
	}
	if err := e.Commit(t1); err != nil {
		t.Fatalf("t1 commit: %v", err)
	}
	if err := e.Commit(t2); err != nil {
		t.Fatalf("t2 commit: %v", err)
	}
}

func TestSerializableOverlappingWritesAtMostOneCommits(t *testing.T) {
	e := newTestEnforcer()
	ctx := context.Background()
	page := common.PageId(7)

	t1 := e.Begin(mvcc.Serializable)
	t2 := e.Begin(mvcc.Serializable)

	if err := e.Write(ctx, t1, page, []byte("a")); err != nil {
		t.Fatalf("t1 write: %v", err)
	}

	// t2's exclusive lock request is incompatible with t1's held exclusive
	// lock on the same page, so it queues; a short-lived context surfaces
	// that contention deterministically instead of blocking forever.
	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	if err := e.Write(shortCtx, t2, page, []byte("b")); err == nil {
		t.Fatalf("expected t2's write to block on t1's held exclusive lock")
	}

	if err := e.Commit(t1); err != nil {
		t.Fatalf("t1 commit should succeed: %v", err)
	}
}
