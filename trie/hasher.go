// Copyright 2016 The go-ethereum Authors
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
	"golang.org/x/crypto/sha3"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/rlp"
)

// emptyRoot is the NodeId of an empty trie: the hash of the RLP encoding of
// an empty byte string.
var emptyRoot = hashBytes([]byte{0x80})

func hashBytes(b []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(b)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// encodeNode returns the canonical RLP encoding of an in-memory node, with
// every non-nil child reference already reduced to a hashNode. Like this
// package's StackTrie, this encoder never inlines small subtrees: every
// reference is a 32-byte hash, trading away go-ethereum's small-node
// embedding for a uniformly simple persist/resolve story while
// still producing a deterministic, content-addressed encoding.
func encodeNode(n node) ([]byte, error) {
	switch n := n.(type) {
	case nil:
		return []byte{0x80}, nil
	case valueNode:
		return rlp.EncodeToBytes([]byte(n))
	case hashNode:
		return rlp.EncodeToBytes([]byte(n))
	case *shortNode:
		key := hexToCompact(n.Key)
		var valBytes []byte
		var err error
		switch v := n.Val.(type) {
		case valueNode:
			valBytes, err = rlp.EncodeToBytes([]byte(v))
		case hashNode:
			valBytes, err = rlp.EncodeToBytes([]byte(v))
		case nil:
			valBytes = []byte{0x80}
		default:
			return nil, errUnresolvedChild
		}
		if err != nil {
			return nil, err
		}
		keyEnc, err := rlp.EncodeToBytes(key)
		if err != nil {
			return nil, err
		}
		return wrapList(keyEnc, valBytes), nil
	case *fullNode:
		var parts [17][]byte
		for i, c := range n.Children {
			switch v := c.(type) {
			case nil:
				parts[i] = []byte{0x80}
			case hashNode:
				enc, err := rlp.EncodeToBytes([]byte(v))
				if err != nil {
					return nil, err
				}
				parts[i] = enc
			case valueNode:
				enc, err := rlp.EncodeToBytes([]byte(v))
				if err != nil {
					return nil, err
				}
				parts[i] = enc
			default:
				return nil, errUnresolvedChild
			}
		}
		return wrapList(parts[:]...), nil
	default:
		return nil, errUnsupportedNode
	}
}

func wrapList(items ...[]byte) []byte {
	total := 0
	for _, it := range items {
		total += len(it)
	}
	out := make([]byte, 0, total+9)
	out = appendListHeader(out, total)
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func appendListHeader(out []byte, size int) []byte {
	if size < 56 {
		return append(out, 0xc0+byte(size))
	}
	lb := bigEndianBytes(uint64(size))
	out = append(out, 0xf7+byte(len(lb)))
	return append(out, lb...)
}

func bigEndianBytes(v uint64) []byte {
	var b [8]byte
	n := 0
	for i := 0; i < 8; i++ {
		b[7-i] = byte(v >> uint(8*i))
		if b[7-i] != 0 {
			n = i + 1
		}
	}
	if n == 0 {
		n = 1
	}
	return b[8-n:]
}

var (
	errUnresolvedChild = &encodeError{"child reference is neither a hash nor a value"}
	errUnsupportedNode = &encodeError{"unsupported node type"}
)

type encodeError struct{ msg string }

func (e *encodeError) Error() string { return "trie: " + e.msg }

func hashOf(n node) (common.Hash, []byte, error) {
	enc, err := encodeNode(n)
	if err != nil {
		return common.Hash{}, nil, err
	}
	return hashBytes(enc), enc, nil
}
