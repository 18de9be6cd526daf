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

// Package relaydb implements the two-tier (hot/cold) relay a page store uses
// to promote reads from a fast primary to a slower secondary, tracking
// hit/miss counts along the way.
package relaydb

import (
	"errors"

	"github.com/dotlanth/dotdb/ethdb"
)

var (
	// ErrClosed is returned if the relay was already closed at the
	// invocation of a data access operation.
	ErrClosed = errors.New("relaydb: closed")

	// ErrNotFound is returned if a key is requested that is not present in
	// either tier.
	ErrNotFound = errors.New("relaydb: not found")
)

// Database tiers reads across two backings: primary is consulted first, and
// a miss falls through to secondary. It exists purely to serve reads through
// one of two backings and record which tier served each lookup; writes,
// deletes, and iteration belong to the backings themselves, not the relay.
type Database struct {
	primary   ethdb.KeyValueStore
	secondary ethdb.KeyValueStore
	hits      int
	misses    int
}

// New returns a relay reading primary first, falling through to secondary.
func New(primary, secondary ethdb.KeyValueStore) *Database {
	return &Database{
		primary:   primary,
		secondary: secondary,
	}
}

// Close closes both backings and leaves the relay unusable afterward.
func (db *Database) Close() error {
	db.primary.Close()
	db.secondary.Close()
	db.primary = nil
	db.secondary = nil
	return nil
}

// Has is not meaningful for a relay: the caller already knows which tier it
// wants checked.
func (db *Database) Has(key []byte) (bool, error) {
	panic("relaydb: Has not supported")
}

// Get reads key from primary, falling through to secondary on a miss and
// recording which tier answered.
func (db *Database) Get(key []byte) ([]byte, error) {
	if db.primary == nil {
		return nil, ErrClosed
	}

	if v, err := db.primary.Get(key); err == nil {
		db.hits++ // not thread safe; caller serializes access
		return v, err
	}
	db.misses++
	return db.secondary.Get(key)
}

// Put is not supported: the relay is read-only tiering, writes go directly
// to whichever backing owns the data.
func (db *Database) Put(key []byte, value []byte) error {
	panic("relaydb: Put not supported")
}

// Delete is not supported, for the same reason as Put.
func (db *Database) Delete(key []byte) error {
	panic("relaydb: Delete not supported")
}

// NewBatch is not supported: batching belongs to a single backing, not the
// read-only relay over two of them.
func (db *Database) NewBatch() ethdb.Batch {
	panic("relaydb: NewBatch not supported")
}

// NewIterator is not supported: a relay has no single consistent keyspace to
// iterate, since its two tiers may disagree on membership.
func (db *Database) NewIterator(prefix []byte, start []byte) ethdb.Iterator {
	panic("relaydb: iteration not supported")
}

// Stat is not supported by the relay itself; query the backings directly.
func (db *Database) Stat(property string) (string, error) {
	panic("relaydb: Stat not supported")
}

// Efficiency returns the cumulative (hits, misses) against primary since
// creation, the signal a page store uses to decide whether its hot tier is
// sized well.
func (db *Database) Efficiency() (int, int) {
	return db.hits, db.misses
}

// Compact is a no-op: the relay holds no storage of its own to compact.
func (db *Database) Compact(start []byte, limit []byte) error {
	return nil
}
