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

// Package mvcc implements multi-version concurrency control over pages:
// per-page version chains, per-transaction snapshot reads, and write-write
// conflict detection. It owns the Transaction lifecycle (active/committed/
// aborted) that the lock manager and isolation enforcer build on.
package mvcc

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/aristanetworks/goarista/monotime"

	"github.com/dotlanth/dotdb/common"
)

var (
	// ErrWriteConflict is returned when a write collides with a newer
	// committed version or another transaction's uncommitted head.
	ErrWriteConflict = errors.New("mvcc: write conflict")
	// ErrSnapshotMissing names a read without a visibility snapshot. No
	// operation in this package returns it: every transaction takes its
	// snapshot when it begins.
	ErrSnapshotMissing = errors.New("mvcc: snapshot missing")
	// ErrTransactionNotActive is returned for any operation against a
	// transaction that has already committed or aborted.
	ErrTransactionNotActive = errors.New("mvcc: transaction not active")
)

// IsolationLevel is one of the four SQL isolation levels the Isolation
// Enforcer (C8) maps onto {MVCC, locks}.
type IsolationLevel int

const (
	ReadUncommitted IsolationLevel = iota
	ReadCommitted
	RepeatableRead
	Serializable
)

func (l IsolationLevel) String() string {
	switch l {
	case ReadUncommitted:
		return "ReadUncommitted"
	case ReadCommitted:
		return "ReadCommitted"
	case RepeatableRead:
		return "RepeatableRead"
	case Serializable:
		return "Serializable"
	default:
		return "Unknown"
	}
}

// TxnId is a monotone transaction identifier; ordering between two ids is
// ordering of birth.
type TxnId uint64

// TxnState is the lifecycle state of a Transaction.
type TxnState int

const (
	TxnActive TxnState = iota
	TxnCommitted
	TxnAborted
)

// Transaction tracks one in-flight (or finished) unit of work: its
// isolation level, lifecycle state, read/write sets, and visibility
// snapshot timestamp.
type Transaction struct {
	ID         TxnId
	Level      IsolationLevel
	SnapshotTs uint64

	mu       sync.Mutex
	state    TxnState
	readSet  map[common.PageId]struct{}
	writeSet map[common.PageId]struct{}
}

// State returns the transaction's current lifecycle state.
func (t *Transaction) State() TxnState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// ReadSet returns a copy of the pages this transaction has read.
func (t *Transaction) ReadSet() []common.PageId {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]common.PageId, 0, len(t.readSet))
	for p := range t.readSet {
		out = append(out, p)
	}
	return out
}

// WriteSet returns a copy of the pages this transaction has written.
func (t *Transaction) WriteSet() []common.PageId {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]common.PageId, 0, len(t.writeSet))
	for p := range t.writeSet {
		out = append(out, p)
	}
	return out
}

// version is one entry in a page's version chain.
type version struct {
	writer    TxnId
	committed bool
	commitTs  uint64
	payload   []byte
}

// pageChain is the per-page version chain plus its own lock, so adds/
// promotions/prunes on one page never contend with another page's chain.
type pageChain struct {
	mu       sync.Mutex
	versions []version // oldest first; at most one uncommitted entry, which is last
}

// Manager is the MVCC subsystem: it owns every page's version chain and
// every transaction's lifecycle state.
type Manager struct {
	mu     sync.Mutex
	pages  map[common.PageId]*pageChain
	txns   map[TxnId]*Transaction
	nextID uint64
	clock  uint64 // monotone commit-timestamp counter
}

// NewManager returns an empty MVCC manager.
func NewManager() *Manager {
	return &Manager{
		pages: make(map[common.PageId]*pageChain),
		txns:  make(map[TxnId]*Transaction),
	}
}

// Transaction looks up an active transaction by id. Used by deadlock-victim
// delivery, which only has a TxnId to work with.
func (m *Manager) Transaction(id TxnId) (*Transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.txns[id]
	return t, ok
}

func (m *Manager) chainFor(page common.PageId) *pageChain {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.pages[page]
	if !ok {
		c = &pageChain{}
		m.pages[page] = c
	}
	return c
}

// now returns the current monotone timestamp, sub-microsecond as required by
// §4.5, sourced from the host's monotonic clock rather than a hand-rolled
// atomic counter.
func now() uint64 { return uint64(monotime.Now()) }

// BeginTransaction allocates a new transaction id and takes its visibility
// snapshot. This folds together spec.md's "begin(level) -> txn" boundary
// operation and the MVCC "create_snapshot" step: every transaction gets a
// snapshot the instant it's born.
func (m *Manager) BeginTransaction(level IsolationLevel) *Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	txn := &Transaction{
		ID:       TxnId(m.nextID),
		Level:    level,
		state:    TxnActive,
		readSet:  make(map[common.PageId]struct{}),
		writeSet: make(map[common.PageId]struct{}),
	}
	txn.SnapshotTs = now()
	m.txns[txn.ID] = txn
	return txn
}

// CreateSnapshot re-stamps txn's visibility snapshot to the current
// monotone timestamp. Exposed separately from BeginTransaction because the
// spec names it as its own MVCC operation (§4.5); most callers never need
// it beyond what BeginTransaction already did.
func (m *Manager) CreateSnapshot(txn *Transaction, level IsolationLevel) {
	txn.mu.Lock()
	defer txn.mu.Unlock()
	txn.Level = level
	txn.SnapshotTs = now()
}

// visible reports whether entry v is visible to txn.
func visible(v version, txn *Transaction) bool {
	if txn.Level == ReadUncommitted {
		return true
	}
	if v.writer == txn.ID {
		return true // monotonic view of its own uncommitted writes
	}
	return v.committed && v.commitTs <= txn.SnapshotTs
}

// Read returns the payload visible to txn for page, per the isolation
// level's visibility rule, and records page in txn's read set.
func (m *Manager) Read(page common.PageId, txn *Transaction) ([]byte, bool, error) {
	if txn.State() != TxnActive {
		return nil, false, ErrTransactionNotActive
	}
	c := m.chainFor(page)
	c.mu.Lock()
	var found *version
	for i := len(c.versions) - 1; i >= 0; i-- {
		if visible(c.versions[i], txn) {
			found = &c.versions[i]
			break
		}
	}
	c.mu.Unlock()

	txn.mu.Lock()
	txn.readSet[page] = struct{}{}
	txn.mu.Unlock()

	if found == nil {
		return nil, false, nil
	}
	return common.CopyBytes(found.payload), true, nil
}

// CheckWriteConflict reports whether a write by txn to page would conflict:
// a committed version newer than txn's snapshot, or another transaction's
// uncommitted head.
func (m *Manager) CheckWriteConflict(page common.PageId, txn *Transaction) bool {
	c := m.chainFor(page)
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.versions) - 1; i >= 0; i-- {
		v := c.versions[i]
		if !v.committed {
			if v.writer != txn.ID {
				return true
			}
			continue
		}
		if v.commitTs > txn.SnapshotTs {
			return true
		}
	}
	return false
}

// AddVersion appends (or, for a repeat write by the same transaction,
// updates) the uncommitted head for page, first-writer-wins: a different
// transaction's uncommitted head rejects with ErrWriteConflict.
func (m *Manager) AddVersion(page common.PageId, payload []byte, txn *Transaction) error {
	if txn.State() != TxnActive {
		return ErrTransactionNotActive
	}
	c := m.chainFor(page)
	c.mu.Lock()
	if n := len(c.versions); n > 0 && !c.versions[n-1].committed {
		head := &c.versions[n-1]
		if head.writer != txn.ID {
			c.mu.Unlock()
			return ErrWriteConflict
		}
		head.payload = common.CopyBytes(payload)
	} else {
		c.versions = append(c.versions, version{writer: txn.ID, payload: common.CopyBytes(payload)})
	}
	c.mu.Unlock()

	txn.mu.Lock()
	txn.writeSet[page] = struct{}{}
	txn.mu.Unlock()
	return nil
}

// CommitTransaction assigns a commit timestamp and promotes every
// uncommitted head written by txn to committed, publishing it to future
// readers.
func (m *Manager) CommitTransaction(txn *Transaction) error {
	if txn.State() != TxnActive {
		return ErrTransactionNotActive
	}
	commitTs := atomic.AddUint64(&m.clock, 1)
	cur := now()
	if cur > commitTs {
		// keep the commit-timestamp axis monotone with wall/monotonic time
		// when the atomic counter lags behind real elapsed time.
		atomic.StoreUint64(&m.clock, cur)
		commitTs = cur
	}

	for _, page := range txn.WriteSet() {
		c := m.chainFor(page)
		c.mu.Lock()
		if n := len(c.versions); n > 0 && !c.versions[n-1].committed && c.versions[n-1].writer == txn.ID {
			c.versions[n-1].committed = true
			c.versions[n-1].commitTs = commitTs
		}
		c.mu.Unlock()
	}

	txn.mu.Lock()
	txn.state = TxnCommitted
	txn.mu.Unlock()

	m.mu.Lock()
	delete(m.txns, txn.ID)
	m.mu.Unlock()
	return nil
}

// AbortTransaction drops every uncommitted head written by txn, leaving no
// visible trace of its writes.
func (m *Manager) AbortTransaction(txn *Transaction) error {
	if txn.State() != TxnActive {
		return ErrTransactionNotActive
	}
	for _, page := range txn.WriteSet() {
		c := m.chainFor(page)
		c.mu.Lock()
		if n := len(c.versions); n > 0 && !c.versions[n-1].committed && c.versions[n-1].writer == txn.ID {
			c.versions = c.versions[:n-1]
		}
		c.mu.Unlock()
	}

	txn.mu.Lock()
	txn.state = TxnAborted
	txn.mu.Unlock()

	m.mu.Lock()
	delete(m.txns, txn.ID)
	m.mu.Unlock()
	return nil
}

// minActiveSnapshot returns the lowest SnapshotTs among active transactions,
// or the current timestamp if none are active.
func (m *Manager) minActiveSnapshot() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	min := now()
	for _, t := range m.txns {
		if t.State() == TxnActive && t.SnapshotTs < min {
			min = t.SnapshotTs
		}
	}
	return min
}

// CollectGarbage discards committed versions superseded by a newer committed
// version once no active transaction's snapshot could still need them,
// keeping at least one (the newest eligible) version per page.
func (m *Manager) CollectGarbage() {
	threshold := m.minActiveSnapshot()

	m.mu.Lock()
	chains := make([]*pageChain, 0, len(m.pages))
	for _, c := range m.pages {
		chains = append(chains, c)
	}
	m.mu.Unlock()

	for _, c := range chains {
		c.mu.Lock()
		kept := c.versions[:0]
		lastCommittedBelow := -1
		for i, v := range c.versions {
			if v.committed && v.commitTs <= threshold {
				lastCommittedBelow = i
			}
		}
		for i, v := range c.versions {
			if v.committed && v.commitTs <= threshold && i != lastCommittedBelow {
				continue
			}
			kept = append(kept, v)
		}
		c.versions = kept
		c.mu.Unlock()
	}
}
