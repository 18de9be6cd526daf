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

// Package state implements the State Access Layer: per-dot key namespacing
// over the Merkle Patricia Trie, with a TTL read cache and batch operations.
package state

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/VictoriaMetrics/fastcache"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/trie"
	"github.com/dotlanth/dotdb/validator"
)

const (
	// dotSeparator splits a dot's 20-byte address from its slot key inside
	// the MPT's flat key space.
	dotSeparator = 0xFF
	// SlotKeyLength is the fixed width of a logical storage slot key.
	SlotKeyLength = 32
)

var (
	ErrInvalidKey            = errors.New("state: invalid key")
	ErrInvalidValue          = errors.New("state: invalid value")
	ErrContractNotFound      = errors.New("state: contract not found")
	ErrLayoutNotFound        = errors.New("state: layout not found")
	ErrConcurrencyError      = errors.New("state: concurrency error")
	ErrOperationNotSupported = errors.New("state: operation not supported")
)

// ErrBatchTooLarge is returned when a batch operation exceeds MaxBatchSize.
type ErrBatchTooLarge struct {
	Size, Max int
}

func (e *ErrBatchTooLarge) Error() string {
	return fmt.Sprintf("state: batch of %d exceeds max %d", e.Size, e.Max)
}

// SlotKey is a 32-byte logical storage location under a dot.
type SlotKey [SlotKeyLength]byte

// BytesToSlotKey left-pads (or truncates from the left) b into a SlotKey.
func BytesToSlotKey(b []byte) SlotKey {
	var k SlotKey
	if len(b) > SlotKeyLength {
		b = b[len(b)-SlotKeyLength:]
	}
	copy(k[SlotKeyLength-len(b):], b)
	return k
}

// ContractStorageLayout declares the expected type of every slot a dot
// uses, consulted by the State-Transition Validator's type rule.
type ContractStorageLayout struct {
	Dot   common.Address
	Slots map[SlotKey]validator.SlotType
	Names map[SlotKey]string
}

// NewLayout returns an empty layout for dot.
func NewLayout(dot common.Address) *ContractStorageLayout {
	return &ContractStorageLayout{
		Dot:   dot,
		Slots: make(map[SlotKey]validator.SlotType),
		Names: make(map[SlotKey]string),
	}
}

// Declare records slot's expected type (and optional name) in the layout.
func (l *ContractStorageLayout) Declare(slot SlotKey, t validator.SlotType, name string) {
	l.Slots[slot] = t
	if name != "" {
		l.Names[slot] = name
	}
}

// Config parameterizes a Layer.
type Config struct {
	CacheBytes   int
	CacheTTL     time.Duration
	MaxBatchSize int
}

// DefaultConfig mirrors the original defaults: a 5-minute TTL cache and a
// generous batch ceiling.
func DefaultConfig() Config {
	return Config{CacheBytes: 32 * 1024 * 1024, CacheTTL: 5 * time.Minute, MaxBatchSize: 256}
}

// Layer is the State Access Layer (C9): it derives MPT keys from (dot,
// slot), reads/writes through a TTL cache, routes writes through an
// optional State-Transition Validator, and enumerates a dot's keys.
type Layer struct {
	trie      *trie.Trie
	cache     *fastcache.Cache
	cfg       Config
	layouts   map[common.Address]*ContractStorageLayout
	validator *validator.Validator
}

// NewLayer returns a Layer over t. v may be nil to skip validation.
func NewLayer(t *trie.Trie, cfg Config, v *validator.Validator) *Layer {
	return &Layer{
		trie:      t,
		cache:     fastcache.New(maxInt(cfg.CacheBytes, 1<<16)),
		cfg:       cfg,
		layouts:   make(map[common.Address]*ContractStorageLayout),
		validator: v,
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// RegisterLayout registers a dot's storage layout.
func (l *Layer) RegisterLayout(dot common.Address, layout *ContractStorageLayout) {
	l.layouts[dot] = layout
}

// dotPrefix returns dot_address || 0xFF.
func dotPrefix(dot common.Address) []byte {
	p := make([]byte, common.AddressLength+1)
	copy(p, dot.Bytes())
	p[common.AddressLength] = dotSeparator
	return p
}

// mptKey derives dot_prefix || slot_key.
func mptKey(dot common.Address, slot SlotKey) []byte {
	k := make([]byte, common.AddressLength+1+SlotKeyLength)
	copy(k, dotPrefix(dot))
	copy(k[common.AddressLength+1:], slot[:])
	return k
}

func cacheKey(dot common.Address, slot SlotKey) []byte { return mptKey(dot, slot) }

// cacheEntry packs an absolute expiry (unix nanos, 8 bytes) ahead of the
// payload, since fastcache has no native TTL.
func encodeCacheEntry(expiry time.Time, payload []byte) []byte {
	buf := make([]byte, 8+len(payload))
	binary.BigEndian.PutUint64(buf, uint64(expiry.UnixNano()))
	copy(buf[8:], payload)
	return buf
}

func decodeCacheEntry(buf []byte) (expiry time.Time, payload []byte, ok bool) {
	if len(buf) < 8 {
		return time.Time{}, nil, false
	}
	ts := int64(binary.BigEndian.Uint64(buf[:8]))
	return time.Unix(0, ts), buf[8:], true
}

func (l *Layer) cacheGet(dot common.Address, slot SlotKey) ([]byte, bool) {
	raw := l.cache.Get(nil, cacheKey(dot, slot))
	if raw == nil {
		return nil, false
	}
	expiry, payload, ok := decodeCacheEntry(raw)
	if !ok || time.Now().After(expiry) {
		return nil, false
	}
	return payload, true
}

func (l *Layer) cacheSet(dot common.Address, slot SlotKey, payload []byte) {
	l.cache.Set(cacheKey(dot, slot), encodeCacheEntry(time.Now().Add(l.cfg.CacheTTL), payload))
}

func (l *Layer) cacheInvalidate(dot common.Address, slot SlotKey) {
	l.cache.Del(cacheKey(dot, slot))
}

// Load reads a dot's slot, consulting the TTL cache first.
func (l *Layer) Load(dot common.Address, slot SlotKey) ([]byte, error) {
	if v, ok := l.cacheGet(dot, slot); ok {
		if len(v) == 0 {
			return nil, nil // cached miss
		}
		return v, nil
	}
	v, found, err := l.trie.Get(mptKey(dot, slot))
	if err != nil {
		return nil, fmt.Errorf("state: load: %w", err)
	}
	if !found {
		l.cacheSet(dot, slot, nil)
		return nil, nil
	}
	l.cacheSet(dot, slot, v)
	return v, nil
}

// Store writes value to a dot's slot, running it through the validator (if
// any) first; a critical violation rejects the write without touching the
// trie.
func (l *Layer) Store(ctx validator.Context, slot SlotKey, value []byte) error {
	old, err := l.Load(ctx.Dot, slot)
	if err != nil {
		return err
	}
	if l.validator != nil {
		layout := l.layouts[ctx.Dot]
		declared := validator.SlotSimple
		name := ""
		if layout != nil {
			if t, ok := layout.Slots[slot]; ok {
				declared = t
			}
			name = layout.Names[slot]
		}
		transition := validator.Transition{
			Dot:          ctx.Dot, SlotKey: [32]byte(slot), Old: old, New: value,
			DeclaredType: declared, Name: name,
		}
		result := l.validator.Validate(ctx, transition)
		if result.Blocked() {
			return fmt.Errorf("state: validation rejected: %s", result.Summary())
		}
	}

	if err := l.trie.Put(mptKey(ctx.Dot, slot), value); err != nil {
		return fmt.Errorf("state: store: %w", err)
	}
	l.cacheInvalidate(ctx.Dot, slot)
	return nil
}

// Clear deletes a dot's slot.
func (l *Layer) Clear(dot common.Address, slot SlotKey) error {
	if _, err := l.trie.Delete(mptKey(dot, slot)); err != nil {
		return fmt.Errorf("state: clear: %w", err)
	}
	l.cacheInvalidate(dot, slot)
	return nil
}

// Exists reports whether a dot's slot currently has a value.
func (l *Layer) Exists(dot common.Address, slot SlotKey) (bool, error) {
	v, err := l.Load(dot, slot)
	if err != nil {
		return false, err
	}
	return v != nil, nil
}

// Size returns the byte length of a dot's slot value (0 if absent).
func (l *Layer) Size(dot common.Address, slot SlotKey) (int, error) {
	v, err := l.Load(dot, slot)
	if err != nil {
		return 0, err
	}
	return len(v), nil
}

// MultiLoad reads several slots at once, enforcing MaxBatchSize.
func (l *Layer) MultiLoad(dot common.Address, slots []SlotKey) ([][]byte, error) {
	if l.cfg.MaxBatchSize > 0 && len(slots) > l.cfg.MaxBatchSize {
		return nil, &ErrBatchTooLarge{Size: len(slots), Max: l.cfg.MaxBatchSize}
	}
	out := make([][]byte, len(slots))
	for i, s := range slots {
		v, err := l.Load(dot, s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// MultiStore writes several (slot, value) pairs at once, enforcing
// MaxBatchSize, in order.
func (l *Layer) MultiStore(ctx validator.Context, slots []SlotKey, values [][]byte) error {
	if len(slots) != len(values) {
		return ErrInvalidValue
	}
	if l.cfg.MaxBatchSize > 0 && len(slots) > l.cfg.MaxBatchSize {
		return &ErrBatchTooLarge{Size: len(slots), Max: l.cfg.MaxBatchSize}
	}
	for i, s := range slots {
		if err := l.Store(ctx, s, values[i]); err != nil {
			return err
		}
	}
	return nil
}

// GetStorageKeys enumerates a dot's slot keys, sorted ascending, starting
// after the optional start key and returning at most limit of them.
func (l *Layer) GetStorageKeys(dot common.Address, start []byte, limit int) ([]SlotKey, error) {
	all, err := l.trie.GetAllKeys()
	if err != nil {
		return nil, fmt.Errorf("state: enumerate: %w", err)
	}
	prefix := dotPrefix(dot)

	var keys [][]byte
	for _, k := range all {
		if len(k) == len(prefix)+SlotKeyLength && bytes.HasPrefix(k, prefix) {
			keys = append(keys, common.CopyBytes(k[len(prefix):]))
		}
	}
	sort.Slice(keys, func(i, j int) bool { return bytes.Compare(keys[i], keys[j]) < 0 })

	startIdx := 0
	if start != nil {
		startIdx = sort.Search(len(keys), func(i int) bool { return bytes.Compare(keys[i], start) > 0 })
	}
	if startIdx > len(keys) {
		startIdx = len(keys)
	}
	end := startIdx + limit
	if limit <= 0 || end > len(keys) {
		end = len(keys)
	}

	out := make([]SlotKey, 0, end-startIdx)
	for _, k := range keys[startIdx:end] {
		out = append(out, BytesToSlotKey(k))
	}
	return out, nil
}
