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

// Package snapshot implements named, immutable point-in-time trie roots:
// creation, restore, and retention-based cleanup.
package snapshot

import (
	"errors"
	"fmt"
	"hash"
	"hash/fnv"
	"sort"
	"sync"
	"time"

	"github.com/steakknife/bloomfilter"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/trie"
)

var (
	// ErrSnapshotExists is returned by CreateSnapshot when id is already
	// taken.
	ErrSnapshotExists = errors.New("snapshot: id already exists")
	// ErrSnapshotNotFound is returned when an id has no recorded snapshot.
	ErrSnapshotNotFound = errors.New("snapshot: not found")
	// ErrRootMismatch is returned by RestoreFromSnapshot if the restored
	// trie's root hash doesn't match the snapshot's recorded root.
	ErrRootMismatch = errors.New("snapshot: restored root hash mismatch")
)

// Snapshot is an immutable binding of an id to a root hash at a point in
// time.
type Snapshot struct {
	ID          string
	RootHash    common.Hash
	Timestamp   time.Time
	Height      *uint64
	Metadata    map[string]string
	Description string
}

// Retention bounds how many snapshots a Manager keeps and for how long.
type Retention struct {
	MaxCount int
	MaxAge   time.Duration
}

// Manager owns the named snapshot registry. It is in-memory only per
// spec.md §6 ("persistence is an implementation choice"); callers wanting
// durability serialize Snapshot values themselves.
type Manager struct {
	mu          sync.Mutex
	snapshots   map[string]*Snapshot
	retention   Retention
	autoCleanup bool

	// membership is a bloom-filter membership pre-check over retained
	// snapshot ids: a cheap existence probe before the authoritative map
	// lookup, mirroring how the pruner's bloom filter in the teacher repo
	// gates an expensive trie walk. It is rebuilt whenever cleanup removes
	// entries, since the library has no Remove operation.
	membership *bloomfilter.Filter
}

// NewManager returns an empty snapshot registry with the given retention
// policy. autoCleanup, if true, runs cleanup on every CreateSnapshot call.
func NewManager(retention Retention, autoCleanup bool) *Manager {
	m := &Manager{
		snapshots:   make(map[string]*Snapshot),
		retention:   retention,
		autoCleanup: autoCleanup,
	}
	m.rebuildMembershipLocked()
	return m
}

func (m *Manager) rebuildMembershipLocked() {
	maxN := uint64(len(m.snapshots))
	if maxN < 16 {
		maxN = 16
	}
	f, err := bloomfilter.NewOptimal(maxN, 0.01)
	if err != nil {
		m.membership = nil
		return
	}
	for id := range m.snapshots {
		f.Add(idHash(id))
	}
	m.membership = f
}

// idHash returns a fresh hash.Hash64 over id's bytes, the shape
// bloomfilter.Filter.Add/Contains expect.
func idHash(id string) hash.Hash64 {
	h := fnv.New64a()
	h.Write([]byte(id))
	return h
}

// CreateSnapshot records trie's current root hash under id. It fails if id
// already exists. The root is cross-checked by replaying the trie's keys
// through an independent StackTrie hash before being trusted; a mismatch
// means the live node tree has drifted from its own encoding and the
// snapshot is refused rather than recorded against a wrong root. If the
// manager auto-cleans, retention is applied afterward.
func (m *Manager) CreateSnapshot(id string, t *trie.Trie, height *uint64, description string) (*Snapshot, error) {
	root, err := t.RootHash()
	if err != nil {
		return nil, fmt.Errorf("snapshot: root hash: %w", err)
	}
	replayed, err := t.RootHashViaStackTrie()
	if err != nil {
		return nil, fmt.Errorf("snapshot: stacktrie cross-check: %w", err)
	}
	if replayed != root {
		return nil, fmt.Errorf("%w: live root %s, replayed root %s", ErrRootMismatch, root, replayed)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.snapshots[id]; ok {
		return nil, ErrSnapshotExists
	}

	s := &Snapshot{
		ID:          id,
		RootHash:    root,
		Timestamp:   time.Now(),
		Height:      height,
		Metadata:    make(map[string]string),
		Description: description,
	}
	m.snapshots[id] = s
	if m.membership != nil {
		m.membership.Add(idHash(id))
	}

	if m.autoCleanup {
		m.cleanupLocked()
	}
	return s, nil
}

// Get returns the snapshot recorded under id, probing the bloom filter
// first to skip the map lookup on a definite miss.
func (m *Manager) Get(id string) (*Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.membership != nil && !m.membership.Contains(idHash(id)) {
		return nil, ErrSnapshotNotFound
	}
	s, ok := m.snapshots[id]
	if !ok {
		return nil, ErrSnapshotNotFound
	}
	return s, nil
}

// RestoreFromSnapshot rebinds base's working root to the snapshot's root
// hash (without rewriting storage) and verifies the result matches.
func (m *Manager) RestoreFromSnapshot(id string, base *trie.Trie) (*trie.Trie, error) {
	s, err := m.Get(id)
	if err != nil {
		return nil, err
	}
	if err := base.SetRoot(s.RootHash); err != nil {
		return nil, fmt.Errorf("snapshot: set root: %w", err)
	}
	got, err := base.RootHash()
	if err != nil {
		return nil, err
	}
	if got != s.RootHash {
		return nil, ErrRootMismatch
	}
	return base, nil
}

// cleanupLocked drops snapshots older than MaxAge, then, if still over
// MaxCount, keeps only the newest MaxCount by timestamp. Caller holds m.mu.
func (m *Manager) cleanupLocked() {
	if m.retention.MaxAge > 0 {
		cutoff := time.Now().Add(-m.retention.MaxAge)
		for id, s := range m.snapshots {
			if s.Timestamp.Before(cutoff) {
				delete(m.snapshots, id)
			}
		}
	}
	if m.retention.MaxCount > 0 && len(m.snapshots) > m.retention.MaxCount {
		all := make([]*Snapshot, 0, len(m.snapshots))
		for _, s := range m.snapshots {
			all = append(all, s)
		}
		sort.Slice(all, func(i, j int) bool { return all[i].Timestamp.After(all[j].Timestamp) })
		for _, s := range all[m.retention.MaxCount:] {
			delete(m.snapshots, s.ID)
		}
	}
	m.rebuildMembershipLocked()
}

// Cleanup runs retention cleanup on demand, regardless of autoCleanup.
func (m *Manager) Cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleanupLocked()
}

// List returns every retained snapshot, ordered newest first.
func (m *Manager) List() []*Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}
