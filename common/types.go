// Copyright 2014 The go-ethereum Authors
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

// Package common holds the small value types shared across the storage and
// execution substrate: content hashes and dot (contract) addresses.
package common

import (
	"encoding/hex"
	"fmt"
)

const (
	HashLength    = 32
	AddressLength = 20
)

// Hash represents the content hash of a trie node or the root of a trie.
type Hash [HashLength]byte

// BytesToHash sets the hash to the value of b, left-padding if b is short.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

func (h Hash) Bytes() []byte  { return h[:] }
func (h Hash) IsZero() bool   { return h == Hash{} }
func (h Hash) String() string { return "0x" + hex.EncodeToString(h[:]) }

// Address identifies a dot: a unit of deployed code with its own storage
// namespace in the Merkle Patricia Trie.
type Address [AddressLength]byte

// BytesToAddress sets the address to the value of b, left-padding if short.
func BytesToAddress(b []byte) Address {
	var a Address
	if len(b) > AddressLength {
		b = b[len(b)-AddressLength:]
	}
	copy(a[AddressLength-len(b):], b)
	return a
}

func (a Address) Bytes() []byte  { return a[:] }
func (a Address) String() string { return "0x" + hex.EncodeToString(a[:]) }

// HexToAddress parses a hex string, with or without a leading "0x", into
// an Address.
func HexToAddress(s string) Address {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Address{}
	}
	return BytesToAddress(b)
}

// FromHex decodes a hex string, with or without a leading "0x", into bytes.
// An odd-length input is padded with a leading zero nibble, matching the
// go-ethereum convention. Invalid input decodes to nil.
func FromHex(s string) []byte {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}

// CopyBytes returns an independent copy of b.
func CopyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

// ErrInvalidLength is returned when a fixed-width decode receives the wrong
// number of bytes.
func ErrInvalidLength(want, got int) error {
	return fmt.Errorf("common: invalid length, want %d got %d", want, got)
}

// PageId identifies a page: the unit of concurrency and durability shared by
// the MVCC manager, lock manager, and deadlock detector.
type PageId uint64

func (p PageId) String() string { return fmt.Sprintf("page#%d", uint64(p)) }
