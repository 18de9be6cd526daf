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

// Package lockmgr implements shared/exclusive page locking with upgrades and
// a FIFO wait queue per page.
package lockmgr

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/mvcc"
)

// ErrLockRelease names the "nothing to release" condition. ReleaseTransactionLocks
// does not return it: releasing a transaction that holds no locks is a no-op.
var ErrLockRelease = errors.New("lockmgr: nothing to release")

// Mode is a lock's acquisition mode.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

func (m Mode) String() string {
	if m == Shared {
		return "S"
	}
	return "X"
}

// Grant records one transaction's held lock on a page.
type Grant struct {
	Txn       mvcc.TxnId
	Mode      Mode
	GrantedAt time.Time
}

// WaitEdge is one waiter -> holder edge, the raw material the deadlock
// detector's wait-for graph is built from. Defined here (not in package
// deadlock) so the lock manager never imports the detector; wiring glue
// elsewhere adapts WaitEdge into deadlock.Edge.
type WaitEdge struct {
	Waiter    mvcc.TxnId
	Holder    mvcc.TxnId
	Resource  common.PageId
	WaitStart time.Time
}

type waiter struct {
	txn       mvcc.TxnId
	mode      Mode
	waitStart time.Time
	granted   chan struct{}
}

type pageLocks struct {
	grants []Grant
	queue  []*waiter
}

func (p *pageLocks) compatibleWith(mode Mode, requester mvcc.TxnId) bool {
	if len(p.grants) == 0 {
		return true
	}
	if mode == Shared {
		for _, g := range p.grants {
			if g.Mode == Exclusive && g.Txn != requester {
				return false
			}
		}
		return true
	}
	// Exclusive: only compatible if requester is the sole holder (upgrade).
	for _, g := range p.grants {
		if g.Txn != requester {
			return false
		}
	}
	return true
}

func (p *pageLocks) holds(txn mvcc.TxnId) (Mode, bool) {
	for _, g := range p.grants {
		if g.Txn == txn {
			return g.Mode, true
		}
	}
	return 0, false
}

// Manager is the shared/exclusive lock table across all pages.
type Manager struct {
	mu    sync.Mutex
	pages map[common.PageId]*pageLocks
}

// NewManager returns an empty lock manager.
func NewManager() *Manager {
	return &Manager{pages: make(map[common.PageId]*pageLocks)}
}

func (m *Manager) pageFor(page common.PageId) *pageLocks {
	pl, ok := m.pages[page]
	if !ok {
		pl = &pageLocks{}
		m.pages[page] = pl
	}
	return pl
}

// TryAcquire attempts to grant txn a mode lock on page without blocking. If
// incompatible, the request is enqueued FIFO and TryAcquire returns false;
// the caller may later block on Acquire, or poll.
func (m *Manager) TryAcquire(txn mvcc.TxnId, page common.PageId, mode Mode) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl := m.pageFor(page)

	if curMode, ok := pl.holds(txn); ok {
		if mode == Shared || curMode == Exclusive {
			return true // already sufficient
		}
		// upgrade S -> X, permitted only if sole holder.
		if pl.compatibleWith(Exclusive, txn) {
			pl.grants = []Grant{{Txn: txn, Mode: Exclusive, GrantedAt: time.Now()}}
			return true
		}
		m.enqueueLocked(pl, txn, mode)
		return false
	}

	if pl.compatibleWith(mode, txn) && len(pl.queue) == 0 {
		pl.grants = append(pl.grants, Grant{Txn: txn, Mode: mode, GrantedAt: time.Now()})
		return true
	}
	m.enqueueLocked(pl, txn, mode)
	return false
}

func (m *Manager) enqueueLocked(pl *pageLocks, txn mvcc.TxnId, mode Mode) *waiter {
	w := &waiter{txn: txn, mode: mode, waitStart: time.Now(), granted: make(chan struct{})}
	pl.queue = append(pl.queue, w)
	return w
}

// Acquire blocks until txn holds mode on page or ctx is done. A deadlock
// victim is unblocked by cancelling its context, which the caller derives
// from the detector's abort callback. It is the blocking counterpart to
// TryAcquire, used by the Isolation Enforcer.
func (m *Manager) Acquire(ctx context.Context, txn mvcc.TxnId, page common.PageId, mode Mode) error {
	m.mu.Lock()
	pl := m.pageFor(page)
	if curMode, ok := pl.holds(txn); ok && (mode == Shared || curMode == Exclusive) {
		m.mu.Unlock()
		return nil
	}
	if curMode, ok := pl.holds(txn); ok && mode == Exclusive && pl.compatibleWith(Exclusive, txn) {
		_ = curMode
		pl.grants = []Grant{{Txn: txn, Mode: Exclusive, GrantedAt: time.Now()}}
		m.mu.Unlock()
		return nil
	}
	if pl.compatibleWith(mode, txn) && len(pl.queue) == 0 {
		pl.grants = append(pl.grants, Grant{Txn: txn, Mode: mode, GrantedAt: time.Now()})
		m.mu.Unlock()
		return nil
	}
	w := m.enqueueLocked(pl, txn, mode)
	m.mu.Unlock()

	select {
	case <-w.granted:
		return nil
	case <-ctx.Done():
		m.cancelWait(page, w)
		return ctx.Err()
	}
}

// cancelWait removes a waiter that gave up (timeout, abort) from its page's
// queue.
func (m *Manager) cancelWait(page common.PageId, w *waiter) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pl, ok := m.pages[page]
	if !ok {
		return
	}
	for i, q := range pl.queue {
		if q == w {
			pl.queue = append(pl.queue[:i], pl.queue[i+1:]...)
			return
		}
	}
}

// ReleaseTransactionLocks drops every grant held by txn across all pages,
// then drains each affected page's wait queue in arrival order, granting
// every request that becomes compatible until the first one that doesn't —
// strict FIFO, not "grant everything now compatible".
func (m *Manager) ReleaseTransactionLocks(txn mvcc.TxnId) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, pl := range m.pages {
		released := false
		kept := pl.grants[:0]
		for _, g := range pl.grants {
			if g.Txn == txn {
				released = true
				continue
			}
			kept = append(kept, g)
		}
		pl.grants = kept
		if released {
			m.drainLocked(pl)
		}
	}
}

// drainLocked grants queued requests in FIFO order as long as each is
// compatible with the current grant set, stopping at the first blocker.
func (m *Manager) drainLocked(pl *pageLocks) {
	for len(pl.queue) > 0 {
		w := pl.queue[0]
		if !pl.compatibleWith(w.mode, w.txn) {
			return
		}
		pl.queue = pl.queue[1:]
		pl.grants = append(pl.grants, Grant{Txn: w.txn, Mode: w.mode, GrantedAt: time.Now()})
		close(w.granted)
	}
}

// WaitForEdges snapshots the current wait-for graph: one edge per (waiter,
// holder, page) triple across every page with a non-empty queue.
func (m *Manager) WaitForEdges() []WaitEdge {
	m.mu.Lock()
	defer m.mu.Unlock()
	var edges []WaitEdge
	for page, pl := range m.pages {
		for _, w := range pl.queue {
			for _, g := range pl.grants {
				if g.Txn == w.txn {
					continue
				}
				edges = append(edges, WaitEdge{Waiter: w.txn, Holder: g.Txn, Resource: page, WaitStart: w.waitStart})
			}
		}
	}
	return edges
}

// HeldPageCount returns how many pages txn currently holds a grant on, used
// by the deadlock detector's "least resources held" victim policy.
func (m *Manager) HeldPageCount(txn mvcc.TxnId) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, pl := range m.pages {
		if _, ok := pl.holds(txn); ok {
			n++
		}
	}
	return n
}
