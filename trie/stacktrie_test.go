// Copyright 2020 The go-ethereum Authors
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
	"testing"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/pagestore"
)

// newOrderedTrie builds a Trie via the ordinary insert path, for comparison
// against StackTrie's ordered, memory-reclaiming construction.
func newOrderedTrie(kvs [][2][]byte) (*Trie, error) {
	tr := New(NewNodeDatabase(pagestore.NewMemStore()))
	for _, kv := range kvs {
		if err := tr.Put(kv[0], kv[1]); err != nil {
			return nil, err
		}
	}
	return tr, nil
}

func TestStackTrieSingleLeaf(t *testing.T) {
	st := NewStackTrie(nil)
	leaf := common.CopyBytes([]byte{0x29, 0x0d, 0xec, 0xd9, 0x54, 0x8b, 0x62, 0xa8, 0xd6, 0x03, 0x45, 0xa9, 0x88, 0x38, 0x6f, 0xc8, 0x4b, 0xa6, 0xbc, 0x95, 0x48, 0x40, 0x08, 0xf6, 0x36, 0x2f, 0x93, 0x16, 0x0e, 0xf3, 0x56, 0x3e})
	value := []byte{0x94, 0xcf, 0x40, 0xd0, 0xd2, 0xb4, 0x4f, 0x2b, 0x66, 0xe0, 0x7c, 0xac, 0xe1, 0x37, 0x2c, 0xa4, 0x2b, 0x73, 0xcf, 0x21, 0xa3}

	nt, err := newOrderedTrie([][2][]byte{{leaf, value}})
	if err != nil {
		t.Fatalf("build trie: %v", err)
	}
	st.TryUpdate(leaf, value)

	want, err := nt.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	if got := st.Hash(); got != want {
		t.Fatalf("hash mismatch: stacktrie %x != trie %x", got, want)
	}
}

func TestStackTrieMultipleLeaves(t *testing.T) {
	kvs := []struct {
		K string
		V string
	}{
		{K: "405787fa12a823e0f2b7631cc41b3ba8828b3321ca811111fa75cd3aa3bb5ac", V: "9496f4ec2bf9dab484cac6be589e8417d84781be08"},
		{K: "40edb63a35fcf86c08022722aa3287cdd36440d671b4918131b2514795fefa9", V: "01"},
		{K: "b10e2d527612073b26eecdfd717e6a320cf44b4afac2b0732d9fcbe2b7fa0cf", V: "947a30f7736e48d6599356464ba4c150d8da0302ff"},
		{K: "c2575a0e9e593c00f959f8c92f12db2869c3395a3b0502d05e2516446f71f85", V: "02"},
	}

	st := NewStackTrie(nil)
	var ordered [][2][]byte
	for _, kv := range kvs {
		key := common.FromHex(kv.K)
		val := common.FromHex(kv.V)
		ordered = append(ordered, [2][]byte{key, val})
		st.TryUpdate(key, val)
	}
	nt, err := newOrderedTrie(ordered)
	if err != nil {
		t.Fatalf("build trie: %v", err)
	}

	want, err := nt.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	if got := st.Hash(); got != want {
		t.Fatalf("hash mismatch: stacktrie %x != trie %x", got, want)
	}
}

func TestStackTrieLongValue(t *testing.T) {
	st := NewStackTrie(nil)
	key := common.FromHex("405787fa12a823e0f2b7631cc41b3ba8828b3321ca811111fa75cd3aa3bb5ac")
	val := make([]byte, 60)
	for i := range val {
		val[i] = 0x11
	}
	st.TryUpdate(key, val)

	nt, err := newOrderedTrie([][2][]byte{{key, val}})
	if err != nil {
		t.Fatalf("build trie: %v", err)
	}
	want, err := nt.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	if got := st.Hash(); got != want {
		t.Fatalf("hash mismatch: stacktrie %x != trie %x", got, want)
	}
}

func TestRootHashViaStackTrie(t *testing.T) {
	tr := New(NewNodeDatabase(pagestore.NewMemStore()))
	kvs := [][2][]byte{
		{common.FromHex("405787fa12a823e0f2b7631cc41b3ba8828b3321ca811111fa75cd3aa3bb5ac"), common.FromHex("9496f4ec2bf9dab484cac6be589e8417d84781be08")},
		{common.FromHex("40edb63a35fcf86c08022722aa3287cdd36440d671b4918131b2514795fefa9"), common.FromHex("01")},
		{common.FromHex("b10e2d527612073b26eecdfd717e6a320cf44b4afac2b0732d9fcbe2b7fa0cf"), common.FromHex("947a30f7736e48d6599356464ba4c150d8da0302ff")},
		{common.FromHex("c2575a0e9e593c00f959f8c92f12db2869c3395a3b0502d05e2516446f71f85"), common.FromHex("02")},
	}
	// inserted out of order: RootHashViaStackTrie must sort before replaying.
	for _, kv := range []int{2, 0, 3, 1} {
		if err := tr.Put(kvs[kv][0], kvs[kv][1]); err != nil {
			t.Fatalf("put: %v", err)
		}
	}

	want, err := tr.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	got, err := tr.RootHashViaStackTrie()
	if err != nil {
		t.Fatalf("stacktrie root hash: %v", err)
	}
	if got != want {
		t.Fatalf("cross-check mismatch: live root %x, stacktrie replay %x", want, got)
	}
}

func TestStackTrieCommit(t *testing.T) {
	store := pagestore.NewMemStore()
	dbAdapter := NewKeyValueStore(store)

	st := NewStackTrie(dbAdapter)
	key := common.FromHex("405787fa12a823e0f2b7631cc41b3ba8828b3321ca811111fa75cd3aa3bb5ac")
	val := []byte("hello world")
	st.TryUpdate(key, val)
	h := st.Commit(dbAdapter)

	if _, found, err := store.Get(h.Bytes()); err != nil || !found {
		t.Fatalf("expected root node to be committed: found=%v err=%v", found, err)
	}
}
