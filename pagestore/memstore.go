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

package pagestore

import (
	"sync"

	"github.com/dotlanth/dotdb/common"
)

// MemStore is a pure in-memory backing. Gets always hit the map, so its
// CacheHits counter simply tracks found-vs-missing rather than a tiered
// cache (the file and LevelDB backings have a real read cache in front).
type MemStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	closed bool
	stats  Stats
}

func NewMemStore() *MemStore {
	return &MemStore{data: make(map[string][]byte)}
}

func (m *MemStore) Get(key []byte) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, false, ErrClosed
	}
	m.stats.Gets++
	v, ok := m.data[string(key)]
	if ok {
		m.stats.CacheHits++
		return common.CopyBytes(v), true, nil
	}
	m.stats.CacheMisses++
	return nil, false, nil
}

func (m *MemStore) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	m.data[string(key)] = common.CopyBytes(value)
	m.stats.Puts++
	return nil
}

func (m *MemStore) Delete(key []byte) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.data[string(key)]
	delete(m.data, string(key))
	m.stats.Deletes++
	return ok, nil
}

func (m *MemStore) Contains(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return false, ErrClosed
	}
	_, ok := m.data[string(key)]
	return ok, nil
}

// Batch applies operations in order; a failure partway leaves the prefix
// already applied visible, matching the best-effort batch contract.
func (m *MemStore) Batch(ops []Op) error {
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			if err := m.Put(op.Key, op.Value); err != nil {
				return err
			}
		case OpDelete:
			if _, err := m.Delete(op.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *MemStore) Snapshot() (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cp := make(map[string][]byte, len(m.data))
	for k, v := range m.data {
		cp[k] = common.CopyBytes(v)
	}
	return &Snapshot{Version: nextVersionId(), data: cp}, nil
}

func (m *MemStore) Flush() error { return nil }

func (m *MemStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.data = nil
	return nil
}

func (m *MemStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stats
}
