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

// Package isolation maps the four SQL isolation levels onto the MVCC
// manager and lock manager, per §4.8's table. Commit order is contractual:
// commit MVCC, then release locks; abort is the same order.
package isolation

import (
	"context"
	"errors"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/lockmgr"
	"github.com/dotlanth/dotdb/mvcc"
)

// ErrReadDenied / ErrWriteDenied surface when the isolation mechanism
// itself refuses an operation, distinct from an underlying MVCC/lock error.
var (
	ErrReadDenied  = errors.New("isolation: read denied")
	ErrWriteDenied = errors.New("isolation: write denied")
)

// Enforcer wires the MVCC manager and lock manager together behind the
// transaction boundary (§6): begin/read/write/commit/abort.
type Enforcer struct {
	MVCC  *mvcc.Manager
	Locks *lockmgr.Manager
}

// New returns an Enforcer over the given MVCC and lock managers.
func New(m *mvcc.Manager, l *lockmgr.Manager) *Enforcer {
	return &Enforcer{MVCC: m, Locks: l}
}

// Begin starts a new transaction at the given isolation level.
func (e *Enforcer) Begin(level mvcc.IsolationLevel) *mvcc.Transaction {
	return e.MVCC.BeginTransaction(level)
}

// Read returns the bytes visible to txn for page, acquiring a shared lock
// first under Repeatable Read and Serializable.
func (e *Enforcer) Read(ctx context.Context, txn *mvcc.Transaction, page common.PageId) ([]byte, bool, error) {
	switch txn.Level {
	case mvcc.ReadUncommitted, mvcc.ReadCommitted:
		return e.MVCC.Read(page, txn)
	default: // RepeatableRead, Serializable
		if err := e.Locks.Acquire(ctx, txn.ID, page, lockmgr.Shared); err != nil {
			return nil, false, err
		}
		return e.MVCC.Read(page, txn)
	}
}

// Write applies bytes to page under txn, per §4.8's write column.
func (e *Enforcer) Write(ctx context.Context, txn *mvcc.Transaction, page common.PageId, data []byte) error {
	if err := e.Locks.Acquire(ctx, txn.ID, page, lockmgr.Exclusive); err != nil {
		return err
	}

	switch txn.Level {
	case mvcc.ReadUncommitted:
		return e.MVCC.AddVersion(page, data, txn)
	case mvcc.ReadCommitted:
		if e.MVCC.CheckWriteConflict(page, txn) {
			return mvcc.ErrWriteConflict
		}
		return e.MVCC.AddVersion(page, data, txn)
	default: // RepeatableRead, Serializable
		if e.MVCC.CheckWriteConflict(page, txn) {
			e.Locks.ReleaseTransactionLocks(txn.ID)
			return mvcc.ErrWriteConflict
		}
		return e.MVCC.AddVersion(page, data, txn)
	}
}

// Commit commits txn's MVCC state, then releases its locks.
func (e *Enforcer) Commit(txn *mvcc.Transaction) error {
	if err := e.MVCC.CommitTransaction(txn); err != nil {
		return err
	}
	e.Locks.ReleaseTransactionLocks(txn.ID)
	return nil
}

// Abort aborts txn's MVCC state, then releases its locks.
func (e *Enforcer) Abort(txn *mvcc.Transaction) error {
	if err := e.MVCC.AbortTransaction(txn); err != nil {
		return err
	}
	e.Locks.ReleaseTransactionLocks(txn.ID)
	return nil
}
