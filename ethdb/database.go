// Copyright 2018 The go-ethereum Authors
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

// Package ethdb defines the interfaces for a key-value store, shared by every
// page-store backing so trie and pagestore code can be written against one
// contract regardless of what's underneath.
package ethdb

// KeyValueReader wraps the Has and Get methods of a backing store.
type KeyValueReader interface {
	Has(key []byte) (bool, error)
	Get(key []byte) ([]byte, error)
}

// KeyValueWriter wraps the Put and Delete methods of a backing store.
type KeyValueWriter interface {
	Put(key []byte, value []byte) error
	Delete(key []byte) error
}

// Batcher wraps the NewBatch method of a backing store.
type Batcher interface {
	NewBatch() Batch
}

// Batch is a write-only operation buffer that commits non-atomically.
type Batch interface {
	KeyValueWriter
	ValueSize() int
	Write() error
	Reset()
}

// Iterator iterates over a key range in binary-alphabetical key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Release()
}

// Iteratee wraps the NewIterator method of a backing store.
type Iteratee interface {
	NewIterator(prefix []byte, start []byte) Iterator
}

// Stater wraps the Stat method of a backing store.
type Stater interface {
	Stat(property string) (string, error)
}

// Compacter wraps the Compact method of a backing store.
type Compacter interface {
	Compact(start []byte, limit []byte) error
}

// KeyValueStore is the full contract a page-store backing satisfies.
type KeyValueStore interface {
	KeyValueReader
	KeyValueWriter
	Batcher
	Iteratee
	Stater
	Compacter
	Close() error
}
