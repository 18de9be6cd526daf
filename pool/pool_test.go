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

package pool

import "testing"

func newTestPool(t *testing.T) *Pool {
	t.Helper()
	cfg := DefaultConfig(FixedKind(1024))
	cfg.InitialCapacity = 2
	cfg.MaxCapacity = 10
	cfg.GrowFactor = 1.5
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p
}

func TestPoolGrowth(t *testing.T) {
	p := newTestPool(t)

	a, err := p.Allocate(1024)
	if err != nil {
		t.Fatalf("allocate a: %v", err)
	}
	b, err := p.Allocate(1024)
	if err != nil {
		t.Fatalf("allocate b: %v", err)
	}
	c, err := p.Allocate(1024)
	if err != nil {
		t.Fatalf("allocate c: %v", err)
	}

	stats := p.Stats()
	if stats.TotalBlocks < 3 {
		t.Fatalf("expected total_blocks >= 3, got %d", stats.TotalBlocks)
	}
	if stats.AllocatedBlocks != 3 {
		t.Fatalf("expected allocated_blocks == 3, got %d", stats.AllocatedBlocks)
	}
	if a == b || b == c || a == c {
		t.Fatalf("expected distinct pointers")
	}
}

func TestPoolInvariantTotalEqualsFreePlusAllocated(t *testing.T) {
	p := newTestPool(t)
	blocks := make([]*Block, 0, 4)
	for i := 0; i < 4; i++ {
		b, err := p.Allocate(1024)
		if err != nil {
			t.Fatalf("allocate: %v", err)
		}
		blocks = append(blocks, b)
		s := p.Stats()
		if s.TotalBlocks != s.FreeBlocks+s.AllocatedBlocks {
			t.Fatalf("invariant broken: total=%d free=%d allocated=%d", s.TotalBlocks, s.FreeBlocks, s.AllocatedBlocks)
		}
	}
	for _, b := range blocks {
		if err := p.Deallocate(b); err != nil {
			t.Fatalf("deallocate: %v", err)
		}
		s := p.Stats()
		if s.TotalBlocks != s.FreeBlocks+s.AllocatedBlocks {
			t.Fatalf("invariant broken: total=%d free=%d allocated=%d", s.TotalBlocks, s.FreeBlocks, s.AllocatedBlocks)
		}
	}
}

func TestPoolAllocateDeallocateAllocateReusesBlock(t *testing.T) {
	p := newTestPool(t)
	freeBefore := p.Stats().FreeBlocks

	a, err := p.Allocate(1024)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := p.Deallocate(a); err != nil {
		t.Fatalf("deallocate: %v", err)
	}
	if got := p.Stats().FreeBlocks; got != freeBefore {
		t.Fatalf("expected free_blocks restored to %d, got %d", freeBefore, got)
	}

	b, err := p.Allocate(1024)
	if err != nil {
		t.Fatalf("re-allocate: %v", err)
	}
	if a.id != b.id {
		t.Fatalf("expected allocate;deallocate;allocate to reuse the same block id")
	}
}

func TestPoolClearForbiddenWhileAllocated(t *testing.T) {
	p := newTestPool(t)
	b, err := p.Allocate(1024)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if err := p.Clear(); err == nil {
		t.Fatalf("expected Clear to fail while a block is allocated")
	}
	if err := p.Deallocate(b); err != nil {
		t.Fatalf("deallocate: %v", err)
	}
	if err := p.Clear(); err != nil {
		t.Fatalf("Clear after deallocate: %v", err)
	}
}

func TestPoolExhaustion(t *testing.T) {
	cfg := DefaultConfig(FixedKind(64))
	cfg.InitialCapacity = 1
	cfg.MaxCapacity = 2
	cfg.GrowFactor = 1.5
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 2; i++ {
		if _, err := p.Allocate(64); err != nil {
			t.Fatalf("allocate %d: %v", i, err)
		}
	}
	if _, err := p.Allocate(64); err != ErrPoolExhausted {
		t.Fatalf("expected ErrPoolExhausted, got %v", err)
	}
}

func TestPoolForceShrink(t *testing.T) {
	p := newTestPool(t)
	for i := 0; i < 3; i++ {
		if _, err := p.Allocate(1024); err != nil {
			t.Fatalf("allocate: %v", err)
		}
	}
	p.Prealloc(5)
	p.ForceShrink()
	s := p.Stats()
	if s.TotalBlocks != s.FreeBlocks+s.AllocatedBlocks {
		t.Fatalf("invariant broken after force shrink")
	}
}

func TestVariablePoolRejectsOutOfBounds(t *testing.T) {
	cfg := DefaultConfig(VariableKind(16, 64))
	cfg.InitialCapacity = 1
	cfg.MaxCapacity = 4
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Allocate(8); err != ErrInvalidSize {
		t.Fatalf("expected ErrInvalidSize for below-min request, got %v", err)
	}
	if _, err := p.Allocate(128); err != ErrInvalidSize {
		t.Fatalf("expected ErrInvalidSize for above-max request, got %v", err)
	}
	if _, err := p.Allocate(32); err != nil {
		t.Fatalf("allocate within bounds: %v", err)
	}
}
