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

package trie

import (
	"fmt"
	"io"

	"github.com/dotlanth/dotdb/rlp"
)

// node is the in-memory representation of one of the four node kinds named
// in the data model: empty (nil), leaf/extension (*shortNode), branch
// (*fullNode), or a bare hash/value reference.
type node interface{}

type (
	// fullNode is a branch: 16 nibble slots plus one value slot.
	fullNode struct {
		Children [17]node
	}
	// shortNode is either a leaf (Key has the terminator flag, Val is a
	// valueNode) or an extension (Val is a hashNode referencing the child).
	shortNode struct {
		Key []byte
		Val node
	}
	// hashNode is a reference to a node stored elsewhere, named by content
	// hash.
	hashNode []byte
	// valueNode is a leaf's payload, embedded directly rather than hashed.
	valueNode []byte
	// rawNode holds already-RLP-encoded bytes to be embedded verbatim; the
	// StackTrie branch encoder uses it for a child reference shorter than
	// 32 bytes.
	rawNode []byte
)

func (n rawNode) EncodeRLP(w io.Writer) error {
	_, err := w.Write(n)
	return err
}

func (n *fullNode) copy() *fullNode {
	cp := *n
	return &cp
}

func (n *shortNode) copy() *shortNode {
	cp := *n
	return &cp
}

func (n hashNode) String() string  { return fmt.Sprintf("%x", []byte(n)) }
func (n valueNode) String() string { return fmt.Sprintf("%x", []byte(n)) }

// decodeNode parses the RLP encoding of a node. hash is recorded on the
// result only for diagnostics; it plays no role in decoding.
func decodeNode(hash, buf []byte) (node, error) {
	if len(buf) == 0 {
		return nil, fmt.Errorf("trie: empty node buffer")
	}
	elems, _, err := rlp.SplitList(buf)
	if err != nil {
		return nil, fmt.Errorf("trie: decode error: %w", err)
	}
	count, err := rlp.CountValues(elems)
	if err != nil {
		return nil, fmt.Errorf("trie: decode error: %w", err)
	}
	switch count {
	case 2:
		n, err := decodeShort(elems)
		return n, err
	case 17:
		n, err := decodeFull(elems)
		return n, err
	default:
		return nil, fmt.Errorf("trie: invalid number of list elements: %v", count)
	}
}

func decodeShort(elems []byte) (node, error) {
	kbuf, rest, err := rlp.SplitString(elems)
	if err != nil {
		return nil, err
	}
	key := compactToHex(kbuf)
	if hasTerm(key) {
		val, _, err := rlp.SplitString(rest)
		if err != nil {
			return nil, fmt.Errorf("trie: invalid leaf value: %w", err)
		}
		return &shortNode{Key: key, Val: valueNode(append([]byte{}, val...))}, nil
	}
	child, _, err := decodeRef(rest)
	if err != nil {
		return nil, err
	}
	return &shortNode{Key: key, Val: child}, nil
}

func decodeFull(elems []byte) (*fullNode, error) {
	n := &fullNode{}
	for i := 0; i < 16; i++ {
		cld, rest, err := decodeRef(elems)
		if err != nil {
			return nil, err
		}
		n.Children[i] = cld
		elems = rest
	}
	val, _, err := rlp.SplitString(elems)
	if err != nil {
		return nil, fmt.Errorf("trie: invalid full node value: %w", err)
	}
	if len(val) > 0 {
		n.Children[16] = valueNode(append([]byte{}, val...))
	}
	return n, nil
}

func decodeRef(buf []byte) (node, []byte, error) {
	kind, val, rest, err := rlp.Split(buf)
	if err != nil {
		return nil, buf, err
	}
	switch kind {
	case rlp.String:
		switch len(val) {
		case 0:
			return nil, rest, nil
		case 32:
			return hashNode(append([]byte{}, val...)), rest, nil
		default:
			return nil, buf, fmt.Errorf("trie: invalid RLP string size %d (want 0 or 32)", len(val))
		}
	default:
		return nil, buf, fmt.Errorf("trie: invalid reference kind")
	}
}
