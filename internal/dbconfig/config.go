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

// Package dbconfig loads the dotdbd daemon's TOML configuration file. It is
// consumed only by cmd/dotdbd; every core package (pool, pagestore, mvcc,
// lockmgr, state, ...) takes a plain Go Config value and never reads a file
// itself.
package dbconfig

import (
	"io"
	"os"
	"reflect"
	"time"

	"github.com/naoina/toml"

	"github.com/dotlanth/dotdb/deadlock"
	"github.com/dotlanth/dotdb/mvcc"
	"github.com/dotlanth/dotdb/opcode"
	"github.com/dotlanth/dotdb/pagestore"
	"github.com/dotlanth/dotdb/pool"
	"github.com/dotlanth/dotdb/snapshot"
	"github.com/dotlanth/dotdb/state"
)

// tomlSettings mirrors cmd/geth's own tag-lenient decoder settings.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField:  func(rt reflect.Type, field string) error { return nil },
}

// Backing selects the Page Store's durability strategy.
type Backing string

const (
	BackingMemory  Backing = "memory"
	BackingFile    Backing = "file"
	BackingLevelDB Backing = "leveldb"
)

// Config is the daemon's full on-disk configuration.
type Config struct {
	Pool struct {
		InitialCapacity int
		MaxCapacity     int
		GrowFactor      float64
		ShrinkThreshold float64
		ShrinkInterval  time.Duration
		Alignment       int
		AutoShrink      bool
	}
	PageStore struct {
		Backing           Backing
		Dir               string
		CacheSize         int
		EnableCompression bool
		BatchSize         int
		EnableMetrics     bool
	}
	Snapshot struct {
		MaxCount    int
		MaxAge      time.Duration
		AutoCleanup bool
	}
	State struct {
		CacheBytes   int
		CacheTTL     time.Duration
		MaxBatchSize int
	}
	Deadlock struct {
		DetectionInterval time.Duration
		MaxWaitTime       time.Duration
		Policy            string
	}
	DefaultIsolation string
}

// Defaults returns the daemon's built-in configuration.
func Defaults() Config {
	var c Config
	c.Pool.InitialCapacity = 4
	c.Pool.MaxCapacity = 1024
	c.Pool.GrowFactor = 1.5
	c.Pool.ShrinkThreshold = 0.25
	c.Pool.ShrinkInterval = time.Minute
	c.Pool.Alignment = 8
	c.Pool.AutoShrink = true

	c.PageStore.Backing = BackingMemory
	c.PageStore.Dir = "dotdb-data"
	c.PageStore.CacheSize = 10000
	c.PageStore.EnableCompression = true
	c.PageStore.BatchSize = 256
	c.PageStore.EnableMetrics = true

	c.Snapshot.MaxCount = 100
	c.Snapshot.MaxAge = 30 * 24 * time.Hour
	c.Snapshot.AutoCleanup = true

	c.State.CacheBytes = 32 * 1024 * 1024
	c.State.CacheTTL = 5 * time.Minute
	c.State.MaxBatchSize = 256

	c.Deadlock.DetectionInterval = 200 * time.Millisecond
	c.Deadlock.MaxWaitTime = 5 * time.Second
	c.Deadlock.Policy = "youngest"

	c.DefaultIsolation = "ReadCommitted"
	return c
}

// LoadFile decodes a TOML configuration file, starting from Defaults().
func LoadFile(path string) (Config, error) {
	cfg := Defaults()
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	return cfg, decode(f, &cfg)
}

func decode(r io.Reader, cfg *Config) error {
	return tomlSettings.NewDecoder(r).Decode(cfg)
}

// PoolConfig adapts the pool section into a pool.Config for the given kind.
func (c Config) PoolConfig(kind pool.Kind) pool.Config {
	return pool.Config{
		Kind:            kind,
		InitialCapacity: c.Pool.InitialCapacity,
		MaxCapacity:     c.Pool.MaxCapacity,
		GrowFactor:      c.Pool.GrowFactor,
		ShrinkThreshold: c.Pool.ShrinkThreshold,
		ShrinkInterval:  c.Pool.ShrinkInterval,
		Alignment:       c.Pool.Alignment,
		AutoShrink:      c.Pool.AutoShrink,
		IdleCutoff:      5 * time.Minute,
	}
}

// FileStoreConfig adapts the page-store section into a pagestore.FileConfig.
func (c Config) FileStoreConfig() pagestore.FileConfig {
	return pagestore.FileConfig{
		Dir:               c.PageStore.Dir,
		CacheSize:         c.PageStore.CacheSize,
		EnableCompression: c.PageStore.EnableCompression,
	}
}

// SnapshotRetention adapts the snapshot section into a snapshot.Retention.
func (c Config) SnapshotRetention() snapshot.Retention {
	return snapshot.Retention{MaxCount: c.Snapshot.MaxCount, MaxAge: c.Snapshot.MaxAge}
}

// StateConfig adapts the state section into a state.Config.
func (c Config) StateConfig() state.Config {
	return state.Config{
		CacheBytes:   c.State.CacheBytes,
		CacheTTL:     c.State.CacheTTL,
		MaxBatchSize: c.State.MaxBatchSize,
	}
}

// DeadlockConfig adapts the deadlock section into a deadlock.Config.
func (c Config) DeadlockConfig() deadlock.Config {
	policy := deadlock.AbortYoungest
	switch c.Deadlock.Policy {
	case "oldest":
		policy = deadlock.AbortOldest
	case "least_resources":
		policy = deadlock.AbortLeastResources
	case "longest_wait":
		policy = deadlock.AbortLongestWait
	}
	return deadlock.Config{
		DetectionInterval: c.Deadlock.DetectionInterval,
		MaxWaitTime:       c.Deadlock.MaxWaitTime,
		Policy:            policy,
	}
}

// Isolation resolves the configured default isolation level.
func (c Config) Isolation() mvcc.IsolationLevel {
	switch c.DefaultIsolation {
	case "ReadUncommitted":
		return mvcc.ReadUncommitted
	case "RepeatableRead":
		return mvcc.RepeatableRead
	case "Serializable":
		return mvcc.Serializable
	default:
		return mvcc.ReadCommitted
	}
}

// GasCosts returns the opcode engine's default gas table; the config format
// does not expose tuning this per spec.md §4.11, which pins the defaults.
func (c Config) GasCosts() opcode.GasCosts { return opcode.DefaultGasCosts() }
