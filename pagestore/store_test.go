// Copyright 2025 The go-ethereum Authors
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

package pagestore

import (
	"path/filepath"
	"testing"
)

func TestMemStorePutGetDelete(t *testing.T) {
	s := NewMemStore()
	if err := s.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	v, ok, err := s.Get([]byte("k"))
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("get: %q %v %v", v, ok, err)
	}
	if ok, err := s.Delete([]byte("k")); err != nil || !ok {
		t.Fatalf("delete: %v %v", ok, err)
	}
	if _, ok, _ := s.Get([]byte("k")); ok {
		t.Fatalf("expected key gone after delete")
	}
}

func TestMemStoreSnapshotIsolation(t *testing.T) {
	s := NewMemStore()
	s.Put([]byte("k"), []byte("v0"))
	snap, err := s.Snapshot()
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}
	s.Put([]byte("k"), []byte("v1"))

	v, ok := snap.Get([]byte("k"))
	if !ok || string(v) != "v0" {
		t.Fatalf("expected snapshot to retain v0, got %q ok=%v", v, ok)
	}
}

func TestFileStorePersistsAcrossReopen(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	cfg := DefaultFileConfig(dir)

	fs, err := OpenFileStore(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := fs.Put([]byte("alpha"), []byte("beta")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := fs.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := OpenFileStore(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	v, ok, err := reopened.Get([]byte("alpha"))
	if err != nil || !ok || string(v) != "beta" {
		t.Fatalf("get after reopen: %q %v %v", v, ok, err)
	}
}

func TestFileStoreBatchBestEffort(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "pages")
	fs, err := OpenFileStore(DefaultFileConfig(dir))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer fs.Close()

	ops := []Op{
		{Kind: OpPut, Key: []byte("a"), Value: []byte("1")},
		{Kind: OpPut, Key: []byte("b"), Value: []byte("2")},
	}
	if err := fs.Batch(ops); err != nil {
		t.Fatalf("batch: %v", err)
	}
	for _, k := range []string{"a", "b"} {
		if _, ok, _ := fs.Get([]byte(k)); !ok {
			t.Fatalf("expected %q present after batch", k)
		}
	}
}

func TestLevelDBStoreCountsHitsAndMisses(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "ldb")
	s, err := OpenLevelDBStore(dir)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if err := s.Put([]byte("k"), []byte("v")); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, ok, err := s.Get([]byte("k")); err != nil || !ok {
		t.Fatalf("get hit: %v %v", ok, err)
	}
	if _, ok, err := s.Get([]byte("missing")); err != nil || ok {
		t.Fatalf("get miss: %v %v", ok, err)
	}
	st := s.Stats()
	if st.CacheHits == 0 {
		t.Fatalf("expected at least one cache hit")
	}
	if st.CacheMisses == 0 {
		t.Fatalf("expected at least one cache miss")
	}
}
