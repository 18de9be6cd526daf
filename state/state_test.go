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

package state

import (
	"testing"
	"time"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/pagestore"
	"github.com/dotlanth/dotdb/trie"
	"github.com/dotlanth/dotdb/validator"
)

func newTestLayer(t *testing.T, cfg Config) *Layer {
	t.Helper()
	tr := trie.New(trie.NewNodeDatabase(pagestore.NewMemStore()))
	return NewLayer(tr, cfg, nil)
}

func ctxFor(dot common.Address) validator.Context {
	return validator.Context{Caller: dot, Dot: dot}
}

func TestLoadStoreClearExistsSize(t *testing.T) {
	l := newTestLayer(t, DefaultConfig())
	dot := common.BytesToAddress([]byte{0x01})
	slot := BytesToSlotKey([]byte("balance"))

	if ok, err := l.Exists(dot, slot); err != nil || ok {
		t.Fatalf("slot should not exist yet: ok=%v err=%v", ok, err)
	}

	if err := l.Store(ctxFor(dot), slot, []byte("100")); err != nil {
		t.Fatalf("store: %v", err)
	}

	v, err := l.Load(dot, slot)
	if err != nil || string(v) != "100" {
		t.Fatalf("load: v=%q err=%v", v, err)
	}
	if n, err := l.Size(dot, slot); err != nil || n != 3 {
		t.Fatalf("size: n=%d err=%v", n, err)
	}
	if ok, err := l.Exists(dot, slot); err != nil || !ok {
		t.Fatalf("slot should now exist: ok=%v err=%v", ok, err)
	}

	if err := l.Clear(dot, slot); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if ok, err := l.Exists(dot, slot); err != nil || ok {
		t.Fatalf("slot should be gone after clear: ok=%v err=%v", ok, err)
	}
}

// TestDotNamespaceIsolation reproduces §8 scenario 6: writes under one dot's
// address must not appear when enumerating another dot's storage keys.
func TestDotNamespaceIsolation(t *testing.T) {
	l := newTestLayer(t, DefaultConfig())
	d1 := common.BytesToAddress([]byte{0x01})
	d2 := common.BytesToAddress([]byte{0x02})
	slot := BytesToSlotKey([]byte("shared-name"))

	if err := l.Store(ctxFor(d1), slot, []byte("d1-value")); err != nil {
		t.Fatalf("d1 store: %v", err)
	}

	keys, err := l.GetStorageKeys(d2, nil, 0)
	if err != nil {
		t.Fatalf("d2 enumerate: %v", err)
	}
	if len(keys) != 0 {
		t.Fatalf("expected d2 to see no keys written under d1, got %v", keys)
	}

	keys, err = l.GetStorageKeys(d1, nil, 0)
	if err != nil {
		t.Fatalf("d1 enumerate: %v", err)
	}
	if len(keys) != 1 || keys[0] != slot {
		t.Fatalf("expected d1 to see its own slot, got %v", keys)
	}
}

func TestCacheServesWithinTTLAndExpires(t *testing.T) {
	l := newTestLayer(t, Config{CacheBytes: 1 << 16, CacheTTL: 5 * time.Millisecond, MaxBatchSize: 10})
	dot := common.BytesToAddress([]byte{0x03})
	slot := BytesToSlotKey([]byte("x"))

	if err := l.Store(ctxFor(dot), slot, []byte("v1")); err != nil {
		t.Fatalf("store: %v", err)
	}
	if v, err := l.Load(dot, slot); err != nil || string(v) != "v1" {
		t.Fatalf("cached load: v=%q err=%v", v, err)
	}

	time.Sleep(10 * time.Millisecond)
	if _, ok := l.cacheGet(dot, slot); ok {
		t.Fatalf("expected cache entry to have expired")
	}
	// Expired cache entry still falls through to the trie correctly.
	if v, err := l.Load(dot, slot); err != nil || string(v) != "v1" {
		t.Fatalf("post-expiry load: v=%q err=%v", v, err)
	}
}

func TestMultiLoadMultiStoreBatchLimits(t *testing.T) {
	l := newTestLayer(t, Config{CacheBytes: 1 << 16, CacheTTL: time.Minute, MaxBatchSize: 2})
	dot := common.BytesToAddress([]byte{0x04})
	slots := []SlotKey{BytesToSlotKey([]byte("a")), BytesToSlotKey([]byte("b"))}
	values := [][]byte{[]byte("1"), []byte("2")}

	if err := l.MultiStore(ctxFor(dot), slots, values); err != nil {
		t.Fatalf("multistore: %v", err)
	}
	got, err := l.MultiLoad(dot, slots)
	if err != nil {
		t.Fatalf("multiload: %v", err)
	}
	if string(got[0]) != "1" || string(got[1]) != "2" {
		t.Fatalf("unexpected multiload result: %v", got)
	}

	tooMany := append(slots, BytesToSlotKey([]byte("c")))
	if _, err := l.MultiLoad(dot, tooMany); err == nil {
		t.Fatalf("expected ErrBatchTooLarge for a batch exceeding MaxBatchSize")
	} else if _, ok := err.(*ErrBatchTooLarge); !ok {
		t.Fatalf("expected *ErrBatchTooLarge, got %T: %v", err, err)
	}
}

func TestGetStorageKeysStartAndLimit(t *testing.T) {
	l := newTestLayer(t, DefaultConfig())
	dot := common.BytesToAddress([]byte{0x05})

	names := []string{"a", "b", "c", "d"}
	for _, n := range names {
		if err := l.Store(ctxFor(dot), BytesToSlotKey([]byte(n)), []byte("v")); err != nil {
			t.Fatalf("store %s: %v", n, err)
		}
	}

	all, err := l.GetStorageKeys(dot, nil, 0)
	if err != nil || len(all) != 4 {
		t.Fatalf("expected 4 keys, got %d, err=%v", len(all), err)
	}

	page, err := l.GetStorageKeys(dot, all[0][:], 2)
	if err != nil {
		t.Fatalf("paged enumerate: %v", err)
	}
	if len(page) != 2 || page[0] != all[1] || page[1] != all[2] {
		t.Fatalf("expected a 2-item page starting after the first key, got %v", page)
	}
}

func TestStoreRejectedByCriticalValidation(t *testing.T) {
	tr := trie.New(trie.NewNodeDatabase(pagestore.NewMemStore()))
	v := validator.Default()
	l := NewLayer(tr, DefaultConfig(), v)

	dot := common.BytesToAddress([]byte{0x06})
	slot := BytesToSlotKey([]byte("s"))

	staticCtx := validator.Context{Caller: dot, Dot: dot, IsStaticCall: true}
	if err := l.Store(staticCtx, slot, []byte("nope")); err == nil {
		t.Fatalf("expected static-call write to be rejected by the permission rule")
	}
	if ok, _ := l.Exists(dot, slot); ok {
		t.Fatalf("rejected write must not reach the trie")
	}
}
