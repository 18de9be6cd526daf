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

// Package trie implements the content-addressed Merkle Patricia Trie: a
// key/value store whose root hash deterministically identifies its full
// contents, independent of insertion order.
package trie

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/dotlanth/dotdb/common"
)

// ErrNotFound is returned by Get for a missing key.
var ErrNotFound = fmt.Errorf("trie: key not found")

// Trie is a Merkle Patricia Trie over arbitrary byte-string keys. Every Put
// and Delete commits its result immediately: non-root nodes are collapsed to
// their content hash and written to the backing NodeStorage before the call
// returns, so RootHash always reflects durable state. This trades away
// go-ethereum's dirty-node/lazy-commit bookkeeping for a simpler, uniform
// commit-on-every-write model; the root itself stays live in memory as a
// concrete node so repeated mutations don't pay a resolve round trip.
type Trie struct {
	root node
	db   NodeStorage
}

// New returns an empty trie backed by db.
func New(db NodeStorage) *Trie {
	return &Trie{db: db}
}

// resolve turns a hashNode reference into its decoded node, fetching it from
// storage. Any other node kind is returned unchanged.
func (t *Trie) resolve(n node) (node, error) {
	if hn, ok := n.(hashNode); ok {
		var hash common.Hash
		copy(hash[:], hn)
		blob, found, err := t.db.Get(hash)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, &errNodeNotFound{hash: hash}
		}
		return decodeNode(hn, blob)
	}
	return n, nil
}

// Get returns the value stored for key, and whether it was found.
func (t *Trie) Get(key []byte) ([]byte, bool, error) {
	v, _, _, err := t.get(t.root, keybytesToHex(key), 0)
	if err != nil {
		return nil, false, err
	}
	return v, v != nil, nil
}

func (t *Trie) get(n node, key []byte, pos int) ([]byte, node, bool, error) {
	switch n := n.(type) {
	case nil:
		return nil, nil, false, nil
	case valueNode:
		return n, n, false, nil
	case *shortNode:
		if len(key)-pos < len(n.Key) || !bytesEqual(n.Key, key[pos:pos+len(n.Key)]) {
			return nil, n, false, nil
		}
		value, newnode, didResolve, err := t.get(n.Val, key, pos+len(n.Key))
		if err == nil && didResolve {
			n = n.copy()
			n.Val = newnode
		}
		return value, n, didResolve, err
	case *fullNode:
		value, newnode, didResolve, err := t.get(n.Children[key[pos]], key, pos+1)
		if err == nil && didResolve {
			n = n.copy()
			n.Children[key[pos]] = newnode
		}
		return value, n, didResolve, err
	case hashNode:
		child, err := t.resolve(n)
		if err != nil {
			return nil, n, true, err
		}
		value, newnode, _, err := t.get(child, key, pos)
		return value, newnode, true, err
	default:
		panic(fmt.Sprintf("trie: unexpected node type %T", n))
	}
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Put inserts or overwrites the value for key, then commits the resulting
// tree.
func (t *Trie) Put(key, value []byte) error {
	if len(value) == 0 {
		_, err := t.Delete(key)
		return err
	}
	k := keybytesToHex(key)
	_, n, err := t.insert(t.root, nil, k, valueNode(value))
	if err != nil {
		return err
	}
	t.root = n
	return t.commitRoot()
}

func (t *Trie) insert(n node, prefix, key []byte, value node) (bool, node, error) {
	if len(key) == 0 {
		if v, ok := n.(valueNode); ok {
			return !bytesEqual(v, value.(valueNode)), value, nil
		}
		return true, value, nil
	}
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen == len(n.Key) {
			dirty, nn, err := t.insert(n.Val, append(prefix, key[:matchlen]...), key[matchlen:], value)
			if !dirty || err != nil {
				return false, n, err
			}
			return true, &shortNode{Key: n.Key, Val: nn}, nil
		}
		branch := &fullNode{}
		var err error
		_, branch.Children[n.Key[matchlen]], err = t.insert(nil, append(prefix, n.Key[:matchlen+1]...), n.Key[matchlen+1:], n.Val)
		if err != nil {
			return false, nil, err
		}
		_, branch.Children[key[matchlen]], err = t.insert(nil, append(prefix, key[:matchlen+1]...), key[matchlen+1:], value)
		if err != nil {
			return false, nil, err
		}
		if matchlen == 0 {
			return true, branch, nil
		}
		return true, &shortNode{Key: key[:matchlen], Val: branch}, nil

	case *fullNode:
		dirty, nn, err := t.insert(n.Children[key[0]], append(prefix, key[0]), key[1:], value)
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.Children[key[0]] = nn
		return true, n, nil

	case nil:
		return true, &shortNode{Key: append([]byte{}, key...), Val: value}, nil

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return false, n, err
		}
		dirty, nn, err := t.insert(rn, prefix, key, value)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	default:
		panic(fmt.Sprintf("trie: unexpected node type %T", n))
	}
}

// Delete removes key from the trie, reporting whether it was present, then
// commits the resulting tree.
func (t *Trie) Delete(key []byte) (bool, error) {
	k := keybytesToHex(key)
	dirty, n, err := t.delete(t.root, nil, k)
	if err != nil {
		return false, err
	}
	if !dirty {
		return false, nil
	}
	t.root = n
	return true, t.commitRoot()
}

func (t *Trie) delete(n node, prefix, key []byte) (bool, node, error) {
	switch n := n.(type) {
	case *shortNode:
		matchlen := prefixLen(key, n.Key)
		if matchlen < len(n.Key) {
			return false, n, nil
		}
		if matchlen == len(key) {
			return true, nil, nil
		}
		dirty, child, err := t.delete(n.Val, append(prefix, key[:len(n.Key)]...), key[len(n.Key):])
		if !dirty || err != nil {
			return false, n, err
		}
		switch child := child.(type) {
		case nil:
			return true, nil, nil
		case *shortNode:
			return true, &shortNode{Key: concatNibbles(n.Key, child.Key), Val: child.Val}, nil
		default:
			return true, &shortNode{Key: n.Key, Val: child}, nil
		}

	case *fullNode:
		dirty, nn, err := t.delete(n.Children[key[0]], append(prefix, key[0]), key[1:])
		if !dirty || err != nil {
			return false, n, err
		}
		n = n.copy()
		n.Children[key[0]] = nn

		pos := -1
		for i, c := range n.Children {
			if c != nil {
				if pos == -1 {
					pos = i
				} else {
					pos = -2
					break
				}
			}
		}
		if pos >= 0 {
			if pos != 16 {
				cnode, err := t.resolve(n.Children[pos])
				if err != nil {
					return false, nil, err
				}
				if cnode, ok := cnode.(*shortNode); ok {
					k := append([]byte{byte(pos)}, cnode.Key...)
					return true, &shortNode{Key: k, Val: cnode.Val}, nil
				}
			}
			return true, &shortNode{Key: []byte{byte(pos)}, Val: n.Children[pos]}, nil
		}
		return true, n, nil

	case nil:
		return false, nil, nil

	case valueNode:
		return true, nil, nil

	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return false, n, err
		}
		dirty, nn, err := t.delete(rn, prefix, key)
		if !dirty || err != nil {
			return false, rn, err
		}
		return true, nn, nil

	default:
		panic(fmt.Sprintf("trie: unexpected node type %T", n))
	}
}

func concatNibbles(a, b []byte) []byte {
	out := make([]byte, 0, len(a)+len(b))
	out = append(out, a...)
	out = append(out, b...)
	return out
}

// commitRoot stores every descendant of the root under its content hash and
// writes the root's own encoding under its hash too, so a later SetRoot can
// reload the tree. The in-memory root keeps its concrete type so subsequent
// mutations avoid an immediate resolve.
func (t *Trie) commitRoot() error {
	switch root := t.root.(type) {
	case *shortNode:
		if err := t.collapseChild(&root.Val); err != nil {
			return err
		}
	case *fullNode:
		for i := range root.Children {
			if err := t.collapseChild(&root.Children[i]); err != nil {
				return err
			}
		}
	}
	enc, err := encodeNode(t.root)
	if err != nil {
		return err
	}
	hash := hashBytes(enc)
	return t.db.Put(hash, enc)
}

// collapseChild replaces *slot with a hashNode if it holds a concrete
// *shortNode or *fullNode, persisting that subtree's encoding first.
func (t *Trie) collapseChild(slot *node) error {
	switch child := (*slot).(type) {
	case *shortNode:
		if err := t.collapseChild(&child.Val); err != nil {
			return err
		}
		hn, err := t.persist(child)
		if err != nil {
			return err
		}
		*slot = hn
	case *fullNode:
		for i := range child.Children {
			if err := t.collapseChild(&child.Children[i]); err != nil {
				return err
			}
		}
		hn, err := t.persist(child)
		if err != nil {
			return err
		}
		*slot = hn
	}
	return nil
}

func (t *Trie) persist(n node) (hashNode, error) {
	enc, err := encodeNode(n)
	if err != nil {
		return nil, err
	}
	hash := hashBytes(enc)
	if err := t.db.Put(hash, enc); err != nil {
		return nil, err
	}
	return hashNode(hash.Bytes()), nil
}

// RootHash returns the content hash identifying the trie's current state.
func (t *Trie) RootHash() (common.Hash, error) {
	if t.root == nil {
		return emptyRoot, nil
	}
	enc, err := encodeNode(t.root)
	if err != nil {
		return common.Hash{}, err
	}
	return hashBytes(enc), nil
}

// RootHashViaStackTrie recomputes the root hash independently of the live
// node tree: it enumerates every stored key, sorts them, and replays them
// through a StackTrie in ascending order. The two hashing paths share no
// code above node encoding, so agreement between RootHash and this method is
// a real cross-check of the commit-on-write tree, not a tautology. Used by
// the snapshot manager before it records a new snapshot's root.
func (t *Trie) RootHashViaStackTrie() (common.Hash, error) {
	keys, err := t.GetAllKeys()
	if err != nil {
		return common.Hash{}, err
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	st := NewStackTrie(nil)
	for _, k := range keys {
		v, found, err := t.Get(k)
		if err != nil {
			return common.Hash{}, err
		}
		if !found {
			continue
		}
		if err := st.TryUpdate(k, v); err != nil {
			return common.Hash{}, fmt.Errorf("trie: stacktrie replay: %w", err)
		}
	}
	return st.Hash(), nil
}

// SetRoot replaces the trie's contents with the tree rooted at hash,
// resolving one level eagerly; deeper nodes resolve lazily on access.
func (t *Trie) SetRoot(hash common.Hash) error {
	if hash == emptyRoot || hash == (common.Hash{}) {
		t.root = nil
		return nil
	}
	n, err := t.resolve(hashNode(hash.Bytes()))
	if err != nil {
		return err
	}
	t.root = n
	return nil
}

// GetAllKeys walks the full tree and returns every stored key, in trie
// traversal order (not insertion order).
func (t *Trie) GetAllKeys() ([][]byte, error) {
	var out [][]byte
	if err := t.collect(t.root, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *Trie) collect(n node, prefix []byte, out *[][]byte) error {
	switch n := n.(type) {
	case nil:
		return nil
	case valueNode:
		*out = append(*out, hexToKeybytes(prefix))
		return nil
	case *shortNode:
		return t.collect(n.Val, append(prefix, n.Key...), out)
	case *fullNode:
		for i, c := range n.Children {
			if c == nil {
				continue
			}
			if i == 16 {
				*out = append(*out, hexToKeybytes(prefix))
				continue
			}
			if err := t.collect(c, append(append([]byte{}, prefix...), byte(i)), out); err != nil {
				return err
			}
		}
		return nil
	case hashNode:
		rn, err := t.resolve(n)
		if err != nil {
			return err
		}
		return t.collect(rn, prefix, out)
	default:
		panic(fmt.Sprintf("trie: unexpected node type %T", n))
	}
}
