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

// Package metrics implements a minimal counter/gauge registry, mirroring
// go-ethereum's historical metrics package, with an InfluxDB-backed reporter.
package metrics

import (
	"sync"
	"sync/atomic"
)

// Counter is a monotonically increasing (or decreasing, via Dec) value.
type Counter interface {
	Inc(int64)
	Dec(int64)
	Count() int64
}

type counter struct{ v int64 }

func NewCounter() Counter       { return &counter{} }
func (c *counter) Inc(n int64)  { atomic.AddInt64(&c.v, n) }
func (c *counter) Dec(n int64)  { atomic.AddInt64(&c.v, -n) }
func (c *counter) Count() int64 { return atomic.LoadInt64(&c.v) }

// Gauge holds a single, arbitrarily-set value.
type Gauge interface {
	Update(int64)
	Value() int64
}

type gauge struct{ v int64 }

func NewGauge() Gauge           { return &gauge{} }
func (g *gauge) Update(v int64) { atomic.StoreInt64(&g.v, v) }
func (g *gauge) Value() int64   { return atomic.LoadInt64(&g.v) }

// Meter tracks the total count of events; rate computation is left to
// reporters that sample Count() over time.
type Meter interface {
	Mark(int64)
	Count() int64
}

type meter struct{ v int64 }

func NewMeter() Meter         { return &meter{} }
func (m *meter) Mark(n int64) { atomic.AddInt64(&m.v, n) }
func (m *meter) Count() int64 { return atomic.LoadInt64(&m.v) }

// Registry is a named collection of metrics, snapshotted by reporters.
type Registry struct {
	mu   sync.RWMutex
	data map[string]interface{}
}

func NewRegistry() *Registry { return &Registry{data: make(map[string]interface{})} }

func (r *Registry) Register(name string, metric interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.data[name] = metric
}

func (r *Registry) Get(name string) interface{} {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.data[name]
}

// Each invokes fn for every registered metric.
func (r *Registry) Each(fn func(name string, metric interface{})) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for name, m := range r.data {
		fn(name, m)
	}
}

// DefaultRegistry is the registry the GetOrRegister helpers use when they are
// passed a nil registry.
var DefaultRegistry = NewRegistry()

// GetOrRegisterCounter returns the named Counter, creating it if absent.
func GetOrRegisterCounter(name string, r *Registry) Counter {
	if r == nil {
		r = DefaultRegistry
	}
	if m := r.Get(name); m != nil {
		return m.(Counter)
	}
	c := NewCounter()
	r.Register(name, c)
	return c
}

// GetOrRegisterGauge returns the named Gauge, creating it if absent.
func GetOrRegisterGauge(name string, r *Registry) Gauge {
	if r == nil {
		r = DefaultRegistry
	}
	if m := r.Get(name); m != nil {
		return m.(Gauge)
	}
	g := NewGauge()
	r.Register(name, g)
	return g
}

// GetOrRegisterMeter returns the named Meter, creating it if absent.
func GetOrRegisterMeter(name string, r *Registry) Meter {
	if r == nil {
		r = DefaultRegistry
	}
	if m := r.Get(name); m != nil {
		return m.(Meter)
	}
	me := NewMeter()
	r.Register(name, me)
	return me
}
