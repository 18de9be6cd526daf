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

// Package pool implements a fixed- or variable-size block allocator for
// hot-path buffers, with bounded growth and idle-based shrinkage.
package pool

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
)

var (
	ErrOutOfMemory          = errors.New("pool: out of memory")
	ErrInvalidSize          = errors.New("pool: invalid size")
	ErrInvalidConfiguration = errors.New("pool: invalid configuration")
	ErrPoolExhausted        = errors.New("pool: exhausted")
)

// Kind describes the sizing discipline of a Pool.
type Kind struct {
	Fixed     bool
	BlockSize int // used when Fixed
	Min, Max  int // used when !Fixed
}

func FixedKind(blockSize int) Kind   { return Kind{Fixed: true, BlockSize: blockSize} }
func VariableKind(min, max int) Kind { return Kind{Fixed: false, Min: min, Max: max} }

// Config parameterizes a Pool's lifecycle.
type Config struct {
	Kind            Kind
	InitialCapacity int
	MaxCapacity     int
	GrowFactor      float64
	ShrinkThreshold float64
	ShrinkInterval  time.Duration
	Alignment       int
	AutoShrink      bool
	IdleCutoff      time.Duration
}

// DefaultConfig mirrors the defaults used by the original allocator.
func DefaultConfig(kind Kind) Config {
	return Config{
		Kind:            kind,
		InitialCapacity: 4,
		MaxCapacity:     1024,
		GrowFactor:      1.5,
		ShrinkThreshold: 0.25,
		ShrinkInterval:  time.Minute,
		Alignment:       8,
		AutoShrink:      true,
		IdleCutoff:      5 * time.Minute,
	}
}

// Block is a handle to an allocated or free byte region.
type Block struct {
	id   uint64
	Data []byte
}

// Stats mirrors the original allocator's full statistics surface.
type Stats struct {
	TotalBlocks        int
	FreeBlocks         int
	AllocatedBlocks    int
	TotalAllocations   uint64
	TotalDeallocations uint64
	FailedAllocations  uint64
	CurrentUtilization float64
	PeakUtilization    float64
}

type blockEntry struct {
	block    *Block
	lastUsed time.Time
}

// Pool is a thread-safe block allocator. Every public operation is one
// critical section: the invariant total == free+allocated holds after each
// call returns, and statistics update in the same section as the mutation
// they describe.
type Pool struct {
	mu sync.Mutex

	cfg Config

	free      []*blockEntry
	allocated map[uint64]*blockEntry

	nextID     uint64
	lastShrink time.Time
	stats      Stats
}

// New creates a Pool and preallocates InitialCapacity blocks.
func New(cfg Config) (*Pool, error) {
	if cfg.Kind.Fixed {
		if cfg.Kind.BlockSize <= 0 {
			return nil, fmt.Errorf("%w: fixed block size must be positive", ErrInvalidConfiguration)
		}
	} else if cfg.Kind.Min <= 0 || cfg.Kind.Max < cfg.Kind.Min {
		return nil, fmt.Errorf("%w: invalid variable bounds", ErrInvalidConfiguration)
	}
	if cfg.MaxCapacity < cfg.InitialCapacity {
		return nil, fmt.Errorf("%w: max capacity below initial capacity", ErrInvalidConfiguration)
	}
	if cfg.GrowFactor <= 1.0 {
		return nil, fmt.Errorf("%w: grow factor must exceed 1.0", ErrInvalidConfiguration)
	}
	if cfg.Alignment <= 0 || cfg.Alignment&(cfg.Alignment-1) != 0 {
		return nil, fmt.Errorf("%w: alignment must be a power of two", ErrInvalidConfiguration)
	}
	p := &Pool{
		cfg:        cfg,
		allocated:  make(map[uint64]*blockEntry),
		lastShrink: time.Now(),
	}
	if err := p.prealloc(cfg.InitialCapacity); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Pool) blockSizeFor(requested int) (int, error) {
	if p.cfg.Kind.Fixed {
		if requested > p.cfg.Kind.BlockSize {
			return 0, ErrInvalidSize
		}
		return p.cfg.Kind.BlockSize, nil
	}
	if requested < p.cfg.Kind.Min || requested > p.cfg.Kind.Max {
		return 0, ErrInvalidSize
	}
	return align(requested, p.cfg.Alignment), nil
}

func align(n, alignment int) int {
	return (n + alignment - 1) &^ (alignment - 1)
}

func (p *Pool) totalBlocks() int { return len(p.free) + len(p.allocated) }

// Allocate returns a Block of at least requestedSize bytes, growing the pool
// if necessary.
func (p *Pool) Allocate(requestedSize int) (*Block, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	size, err := p.blockSizeFor(requestedSize)
	if err != nil {
		p.stats.FailedAllocations++
		return nil, err
	}

	if len(p.free) == 0 {
		if err := p.tryGrowLocked(); err != nil {
			p.stats.FailedAllocations++
			return nil, err
		}
	}
	if len(p.free) == 0 {
		p.stats.FailedAllocations++
		return nil, ErrPoolExhausted
	}

	idx := len(p.free) - 1
	entry := p.free[idx]
	p.free = p.free[:idx]
	if len(entry.block.Data) < size {
		entry.block.Data = make([]byte, size)
	}
	entry.lastUsed = time.Now()
	p.allocated[entry.block.id] = entry

	p.stats.TotalAllocations++
	p.updateUtilizationLocked()
	return entry.block, nil
}

// Deallocate returns a previously allocated Block to the free list.
func (p *Pool) Deallocate(b *Block) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entry, ok := p.allocated[b.id]
	if !ok {
		return ErrInvalidSize
	}
	delete(p.allocated, b.id)
	entry.lastUsed = time.Now()
	p.free = append(p.free, entry)
	p.stats.TotalDeallocations++
	p.updateUtilizationLocked()

	if p.cfg.AutoShrink {
		p.tryShrinkLocked()
	}
	return nil
}

// tryGrowLocked grows the pool by ceil(total*growFactor)-total, minimum 1,
// clamped to MaxCapacity. Caller must hold p.mu.
func (p *Pool) tryGrowLocked() error {
	total := p.totalBlocks()
	if total >= p.cfg.MaxCapacity {
		return ErrPoolExhausted
	}
	target := int(math.Ceil(float64(total) * p.cfg.GrowFactor))
	grow := target - total
	if grow < 1 {
		grow = 1
	}
	if total+grow > p.cfg.MaxCapacity {
		grow = p.cfg.MaxCapacity - total
	}
	if grow <= 0 {
		return ErrPoolExhausted
	}
	for i := 0; i < grow; i++ {
		p.newFreeBlockLocked()
	}
	return nil
}

func (p *Pool) newFreeBlockLocked() {
	p.nextID++
	size := p.cfg.Kind.BlockSize
	if !p.cfg.Kind.Fixed {
		size = p.cfg.Kind.Min
	}
	b := &Block{id: p.nextID, Data: make([]byte, size)}
	p.free = append(p.free, &blockEntry{block: b, lastUsed: time.Now()})
}

// tryShrinkLocked frees idle blocks once ShrinkInterval has elapsed since the
// last shrink and allocated/total is below ShrinkThreshold, never going below
// InitialCapacity. Caller must hold p.mu.
func (p *Pool) tryShrinkLocked() {
	if time.Since(p.lastShrink) < p.cfg.ShrinkInterval {
		return
	}
	total := p.totalBlocks()
	if total == 0 || float64(len(p.allocated))/float64(total) >= p.cfg.ShrinkThreshold {
		return
	}
	cutoff := time.Now().Add(-p.cfg.IdleCutoff)
	kept := p.free[:0]
	for _, e := range p.free {
		if total <= p.cfg.InitialCapacity {
			kept = append(kept, e)
			continue
		}
		if e.lastUsed.Before(cutoff) {
			total--
			continue // drop: shrinks total
		}
		kept = append(kept, e)
	}
	p.free = kept
	p.lastShrink = time.Now()
	p.updateUtilizationLocked()
}

// ForceShrink immediately frees blocks down to
// min(InitialCapacity, allocated+10).
func (p *Pool) ForceShrink() {
	p.mu.Lock()
	defer p.mu.Unlock()

	keepCount := p.cfg.InitialCapacity
	if want := len(p.allocated) + 10; want < keepCount {
		keepCount = want
	}
	freeKeep := keepCount - len(p.allocated)
	if freeKeep < 0 {
		freeKeep = 0
	}
	if freeKeep < len(p.free) {
		p.free = p.free[:freeKeep]
	}
	p.lastShrink = time.Now()
	p.updateUtilizationLocked()
}

// Clear empties the free list. It fails while any block is allocated.
func (p *Pool) Clear() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.allocated) > 0 {
		return fmt.Errorf("pool: clear forbidden while %d blocks allocated", len(p.allocated))
	}
	p.free = nil
	p.updateUtilizationLocked()
	return nil
}

// Prealloc grows the free list by exactly n blocks, ignoring MaxCapacity.
func (p *Pool) Prealloc(n int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prealloc(n)
}

func (p *Pool) prealloc(n int) error {
	for i := 0; i < n; i++ {
		p.newFreeBlockLocked()
	}
	p.updateUtilizationLocked()
	return nil
}

func (p *Pool) updateUtilizationLocked() {
	total := p.totalBlocks()
	p.stats.TotalBlocks = total
	p.stats.FreeBlocks = len(p.free)
	p.stats.AllocatedBlocks = len(p.allocated)
	if total == 0 {
		p.stats.CurrentUtilization = 0
	} else {
		p.stats.CurrentUtilization = float64(len(p.allocated)) / float64(total)
	}
	if p.stats.CurrentUtilization > p.stats.PeakUtilization {
		p.stats.PeakUtilization = p.stats.CurrentUtilization
	}
}

// Stats returns a snapshot of the pool's statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}
