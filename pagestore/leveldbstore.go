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

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/ethdb"
	"github.com/dotlanth/dotdb/ethdb/relaydb"
)

// ldbAdapter exposes a goleveldb database as an ethdb.KeyValueStore.
type ldbAdapter struct{ db *leveldb.DB }

func (a *ldbAdapter) Has(key []byte) (bool, error) { return a.db.Has(key, nil) }
func (a *ldbAdapter) Get(key []byte) ([]byte, error) {
	v, err := a.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, errors.ErrNotFound
	}
	return v, err
}
func (a *ldbAdapter) Put(key, value []byte) error { return a.db.Put(key, value, nil) }
func (a *ldbAdapter) Delete(key []byte) error     { return a.db.Delete(key, nil) }
func (a *ldbAdapter) NewBatch() ethdb.Batch       { panic("NewBatch not supported") }
func (a *ldbAdapter) NewIterator(prefix, start []byte) ethdb.Iterator {
	return &ldbIterator{it: a.db.NewIterator(util.BytesPrefix(prefix), nil)}
}
func (a *ldbAdapter) Stat(property string) (string, error) { return a.db.GetProperty(property) }
func (a *ldbAdapter) Compact(start, limit []byte) error    { return a.db.CompactRange(util.Range{Start: start, Limit: limit}) }
func (a *ldbAdapter) Close() error                         { return a.db.Close() }

type ldbIterator struct{ it iterator.Iterator }

func (i *ldbIterator) Next() bool    { return i.it.Next() }
func (i *ldbIterator) Key() []byte   { return i.it.Key() }
func (i *ldbIterator) Value() []byte { return i.it.Value() }
func (i *ldbIterator) Release()      { i.it.Release() }

// memAdapter is a plain in-memory map exposed as an ethdb.KeyValueStore,
// used as relaydb's primary (hot) tier in front of goleveldb.
type memAdapter struct {
	mu   sync.RWMutex
	data map[string][]byte
}

func newMemAdapter() *memAdapter { return &memAdapter{data: make(map[string][]byte)} }

func (m *memAdapter) Has(key []byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[string(key)]
	return ok, nil
}
func (m *memAdapter) Get(key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[string(key)]
	if !ok {
		return nil, errors.ErrNotFound
	}
	return v, nil
}
func (m *memAdapter) Put(key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[string(key)] = common.CopyBytes(value)
	return nil
}
func (m *memAdapter) Delete(key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, string(key))
	return nil
}
func (m *memAdapter) NewBatch() ethdb.Batch                           { panic("NewBatch not supported") }
func (m *memAdapter) NewIterator(prefix, start []byte) ethdb.Iterator { panic("iteration not supported") }
func (m *memAdapter) Stat(property string) (string, error)            { return "", nil }
func (m *memAdapter) Compact(start, limit []byte) error               { return nil }
func (m *memAdapter) Close() error                                    { return nil }

// LevelDBStore is a third interchangeable backing beyond the two named in
// §4.2: goleveldb durability fronted by an in-memory hot tier relayed
// through ethdb/relaydb, whose Efficiency() directly supplies the
// cache_hits/cache_misses counters §4.2 requires.
type LevelDBStore struct {
	mu sync.Mutex

	db    *leveldb.DB
	ldb   *ldbAdapter
	mem   *memAdapter
	relay *relaydb.Database

	stats  Stats
	closed bool
}

func OpenLevelDBStore(dir string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, err
	}
	ldb := &ldbAdapter{db: db}
	mem := newMemAdapter()
	return &LevelDBStore{
		db:    db,
		ldb:   ldb,
		mem:   mem,
		relay: relaydb.New(mem, ldb),
	}, nil
}

func (s *LevelDBStore) Get(key []byte) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, false, ErrClosed
	}
	s.stats.Gets++

	v, err := s.relay.Get(key)
	if err == errors.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	// Populate the hot tier on a secondary-sourced hit so subsequent reads
	// of the same key stay in memory.
	s.mem.Put(key, v)
	return common.CopyBytes(v), true, nil
}

func (s *LevelDBStore) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if err := s.ldb.Put(key, value); err != nil {
		return err
	}
	s.mem.Put(key, value)
	s.stats.Puts++
	return nil
}

func (s *LevelDBStore) Delete(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	existed, _ := s.ldb.Has(key)
	if err := s.ldb.Delete(key); err != nil {
		return existed, err
	}
	s.mem.Delete(key)
	s.stats.Deletes++
	return existed, nil
}

func (s *LevelDBStore) Contains(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false, ErrClosed
	}
	return s.ldb.Has(key)
}

func (s *LevelDBStore) Batch(ops []Op) error {
	for _, op := range ops {
		switch op.Kind {
		case OpPut:
			if err := s.Put(op.Key, op.Value); err != nil {
				return err
			}
		case OpDelete:
			if _, err := s.Delete(op.Key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *LevelDBStore) Snapshot() (*Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data := make(map[string][]byte)
	it := s.db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		data[string(it.Key())] = common.CopyBytes(it.Value())
	}
	return &Snapshot{Version: nextVersionId(), data: data}, nil
}

func (s *LevelDBStore) Flush() error { return nil }

func (s *LevelDBStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *LevelDBStore) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	hits, misses := s.relay.Efficiency()
	st := s.stats
	st.CacheHits = uint64(hits)
	st.CacheMisses = uint64(misses)
	return st
}
