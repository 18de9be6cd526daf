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
	"bytes"
	"fmt"

	"github.com/dotlanth/dotdb/common"
)

// Prove returns the list of encoded nodes along the path to key, root first,
// sufficient for a caller holding only the root hash to verify key's value
// (or its absence) via VerifyProof.
func (t *Trie) Prove(key []byte) ([][]byte, error) {
	var proof [][]byte
	k := keybytesToHex(key)
	n := t.root
	for len(k) > 0 || n != nil {
		switch cur := n.(type) {
		case nil:
			return proof, nil
		case valueNode:
			return proof, nil
		case *shortNode:
			enc, err := encodeNode(cur)
			if err != nil {
				return nil, err
			}
			proof = append(proof, enc)
			if len(k) < len(cur.Key) || !bytesEqual(cur.Key, k[:len(cur.Key)]) {
				return proof, nil
			}
			k = k[len(cur.Key):]
			n = cur.Val
		case *fullNode:
			enc, err := encodeNode(cur)
			if err != nil {
				return nil, err
			}
			proof = append(proof, enc)
			if len(k) == 0 {
				return proof, nil
			}
			n = cur.Children[k[0]]
			k = k[1:]
		case hashNode:
			rn, err := t.resolve(cur)
			if err != nil {
				return nil, err
			}
			n = rn
		default:
			return nil, fmt.Errorf("trie: unexpected node type %T in proof walk", cur)
		}
	}
	return proof, nil
}

// VerifyProof checks that proof, an ordered list of node encodings
// (root first), certifies value for key under rootHash. A nil value means
// the proof must certify key's absence.
func VerifyProof(rootHash common.Hash, key []byte, proof [][]byte) (value []byte, err error) {
	k := keybytesToHex(key)
	wantHash := rootHash
	for i, buf := range proof {
		if hashBytes(buf) != wantHash {
			return nil, fmt.Errorf("trie: proof node %d hash mismatch", i)
		}
		n, err := decodeNode(nil, buf)
		if err != nil {
			return nil, err
		}
		keyrest, cld := get(n, k)
		switch cld := cld.(type) {
		case nil:
			return nil, nil
		case hashNode:
			k = keyrest
			copy(wantHash[:], cld)
		case valueNode:
			return cld, nil
		}
	}
	return nil, fmt.Errorf("trie: proof ended before reaching a value or nil")
}

// get descends one step into n using key, mirroring (*Trie).get without
// needing a Trie/db — proof nodes are standalone RLP blobs, not live refs.
func get(n node, key []byte) ([]byte, node) {
	for {
		switch cur := n.(type) {
		case *shortNode:
			if len(key) < len(cur.Key) || !bytes.Equal(cur.Key, key[:len(cur.Key)]) {
				return nil, nil
			}
			n, key = cur.Val, key[len(cur.Key):]
		case *fullNode:
			if len(key) == 0 {
				return nil, nil
			}
			n, key = cur.Children[key[0]], key[1:]
		case hashNode:
			return key, cur
		case valueNode:
			return key, cur
		case nil:
			return key, nil
		default:
			return key, nil
		}
	}
}
