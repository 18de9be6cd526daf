// Copyright 2015 The go-ethereum Authors
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

package trie

import (
	"fmt"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/ethdb"
	"github.com/dotlanth/dotdb/pagestore"
)

// NodeStorage is the content-addressed node store the trie persists into:
// NodeId (a content hash) maps to the node's canonical RLP encoding. Any
// pagestore.Store backing satisfies it via nodeDatabase below.
type NodeStorage interface {
	Get(hash common.Hash) ([]byte, bool, error)
	Put(hash common.Hash, blob []byte) error
}

// nodeDatabase adapts a pagestore.Store, keyed by raw hash bytes, into a
// NodeStorage.
type nodeDatabase struct {
	store pagestore.Store
}

// NewNodeDatabase wraps a page store as trie node storage.
func NewNodeDatabase(store pagestore.Store) NodeStorage {
	return &nodeDatabase{store: store}
}

func (d *nodeDatabase) Get(hash common.Hash) ([]byte, bool, error) {
	return d.store.Get(hash.Bytes())
}

func (d *nodeDatabase) Put(hash common.Hash, blob []byte) error {
	return d.store.Put(hash.Bytes(), blob)
}

// storeKV adapts a pagestore.Store into an ethdb.KeyValueStore, letting
// StackTrie commit directly into the same backing a Trie's NodeStorage uses.
// Iteration and batching are not needed by StackTrie, so they panic like the
// other read-only KeyValueStore adapters in this module.
type storeKV struct{ store pagestore.Store }

// NewKeyValueStore wraps store for use with StackTrie's db parameter.
func NewKeyValueStore(store pagestore.Store) ethdb.KeyValueStore {
	return &storeKV{store: store}
}

func (s *storeKV) Has(key []byte) (bool, error) { return s.store.Contains(key) }
func (s *storeKV) Get(key []byte) ([]byte, error) {
	v, ok, err := s.store.Get(key)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotFound
	}
	return v, nil
}
func (s *storeKV) Put(key, value []byte) error { return s.store.Put(key, value) }
func (s *storeKV) Delete(key []byte) error     { _, err := s.store.Delete(key); return err }
func (s *storeKV) NewBatch() ethdb.Batch       { panic("trie: batch not supported") }
func (s *storeKV) NewIterator(prefix, start []byte) ethdb.Iterator {
	panic("trie: iteration not supported")
}
func (s *storeKV) Stat(property string) (string, error) { return "", nil }
func (s *storeKV) Compact(start, limit []byte) error    { return nil }
func (s *storeKV) Close() error                         { return nil }

// errNodeNotFound is returned when resolving a hash reference that has no
// corresponding entry in node storage, signalling a corrupt or incomplete
// backing store rather than a missing trie key.
type errNodeNotFound struct{ hash common.Hash }

func (e *errNodeNotFound) Error() string {
	return fmt.Sprintf("trie: node %x not found in storage", e.hash.Bytes())
}
