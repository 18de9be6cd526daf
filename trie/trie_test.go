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
	"bytes"
	"testing"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/pagestore"
)

func newTestTrie(t *testing.T) *Trie {
	t.Helper()
	return New(NewNodeDatabase(pagestore.NewMemStore()))
}

func TestTriePutGetDeleteRoundTrip(t *testing.T) {
	tr := newTestTrie(t)
	kvs := map[string]string{
		"do":    "verb",
		"dog":   "puppy",
		"doge":  "coin",
		"horse": "stallion",
	}
	for k, v := range kvs {
		if err := tr.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put %q: %v", k, err)
		}
	}
	for k, v := range kvs {
		got, ok, err := tr.Get([]byte(k))
		if err != nil || !ok || string(got) != v {
			t.Fatalf("get %q: got %q ok=%v err=%v, want %q", k, got, ok, err, v)
		}
	}
	for k := range kvs {
		ok, err := tr.Delete([]byte(k))
		if err != nil || !ok {
			t.Fatalf("delete %q: ok=%v err=%v", k, ok, err)
		}
	}
	root, err := tr.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	if root != emptyRoot {
		t.Fatalf("expected empty root after deleting everything, got %x", root)
	}
}

func TestTrieRootHashIndependentOfInsertionOrder(t *testing.T) {
	kvs := [][2]string{
		{"alpha", "1"}, {"beta", "2"}, {"alphabet", "3"}, {"b", "4"}, {"be", "5"},
	}
	tr1 := newTestTrie(t)
	for _, kv := range kvs {
		if err := tr1.Put([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	root1, err := tr1.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}

	reversed := make([][2]string, len(kvs))
	for i, kv := range kvs {
		reversed[len(kvs)-1-i] = kv
	}
	tr2 := newTestTrie(t)
	for _, kv := range reversed {
		if err := tr2.Put([]byte(kv[0]), []byte(kv[1])); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	root2, err := tr2.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	if root1 != root2 {
		t.Fatalf("root hash depends on insertion order: %x != %x", root1, root2)
	}
}

func TestTriePutIdempotent(t *testing.T) {
	tr := newTestTrie(t)
	if err := tr.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	r1, _ := tr.RootHash()
	if err := tr.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put again: %v", err)
	}
	r2, _ := tr.RootHash()
	if r1 != r2 {
		t.Fatalf("re-putting the same value changed the root: %x != %x", r1, r2)
	}
}

func TestTrieSetRootReloadsPersistedState(t *testing.T) {
	store := pagestore.NewMemStore()
	tr := New(NewNodeDatabase(store))
	kvs := map[string]string{"a": "1", "ab": "2", "abc": "3", "b": "4"}
	for k, v := range kvs {
		if err := tr.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	root, err := tr.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}

	fresh := New(NewNodeDatabase(store))
	if err := fresh.SetRoot(root); err != nil {
		t.Fatalf("set root: %v", err)
	}
	for k, v := range kvs {
		got, ok, err := fresh.Get([]byte(k))
		if err != nil || !ok || string(got) != v {
			t.Fatalf("get %q after reload: got %q ok=%v err=%v, want %q", k, got, ok, err, v)
		}
	}
	keys, err := fresh.GetAllKeys()
	if err != nil {
		t.Fatalf("get all keys: %v", err)
	}
	if len(keys) != len(kvs) {
		t.Fatalf("expected %d keys, got %d", len(kvs), len(keys))
	}
}

func TestTrieProveVerify(t *testing.T) {
	store := pagestore.NewMemStore()
	tr := New(NewNodeDatabase(store))
	kvs := map[string]string{"do": "verb", "dog": "puppy", "doge": "coin", "horse": "stallion"}
	for k, v := range kvs {
		if err := tr.Put([]byte(k), []byte(v)); err != nil {
			t.Fatalf("put: %v", err)
		}
	}
	root, err := tr.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}

	proof, err := tr.Prove([]byte("dog"))
	if err != nil {
		t.Fatalf("prove: %v", err)
	}
	val, err := VerifyProof(root, []byte("dog"), proof)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !bytes.Equal(val, []byte("puppy")) {
		t.Fatalf("verified value mismatch: got %q want %q", val, "puppy")
	}
}

func TestTrieEncodeDecodeRoundTrip(t *testing.T) {
	n := &shortNode{Key: []byte{1, 2, 3, 16}, Val: valueNode([]byte("hello"))}
	enc, err := encodeNode(n)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := decodeNode(nil, enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	sn, ok := decoded.(*shortNode)
	if !ok {
		t.Fatalf("expected *shortNode, got %T", decoded)
	}
	if !bytes.Equal(sn.Key, n.Key) {
		t.Fatalf("key mismatch after round trip: %v != %v", sn.Key, n.Key)
	}
	vn, ok := sn.Val.(valueNode)
	if !ok || !bytes.Equal(vn, n.Val.(valueNode)) {
		t.Fatalf("value mismatch after round trip")
	}
}

func TestTrieEmptyRootForNewTrie(t *testing.T) {
	tr := newTestTrie(t)
	root, err := tr.RootHash()
	if err != nil {
		t.Fatalf("root hash: %v", err)
	}
	if root != emptyRoot {
		t.Fatalf("expected emptyRoot for a new trie, got %x", root)
	}
	if root == (common.Hash{}) {
		t.Fatalf("emptyRoot must not be the zero hash")
	}
}
