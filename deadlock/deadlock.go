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

// Package deadlock implements the wait-for-graph cycle detector: DFS from
// every vertex over waiter -> holder edges, with pluggable victim selection.
// It never touches the lock table or MVCC state directly; it only calls the
// abort callback it was constructed with, which avoids a circular
// dependency between this package and lockmgr/mvcc.
package deadlock

import (
	"context"
	"sync"
	"time"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/mvcc"
)

// Edge is one waiter -> holder wait-for edge at the time of a detection
// sweep.
type Edge struct {
	Waiter    mvcc.TxnId
	Holder    mvcc.TxnId
	Resource  common.PageId
	WaitStart time.Time
}

// VictimPolicy selects which transaction in a detected cycle gets aborted.
type VictimPolicy int

const (
	AbortYoungest VictimPolicy = iota
	AbortOldest
	AbortLeastResources
	AbortLongestWait
)

// Config parameterizes a Detector.
type Config struct {
	DetectionInterval time.Duration
	MaxWaitTime       time.Duration
	Policy            VictimPolicy
}

// DefaultConfig mirrors the defaults used by the original detector.
func DefaultConfig() Config {
	return Config{
		DetectionInterval: 200 * time.Millisecond,
		MaxWaitTime:       5 * time.Second,
		Policy:            AbortYoungest,
	}
}

// Statistics is the detector's introspection surface (not named by spec.md,
// ported from the original source's DeadlockStatistics).
type Statistics struct {
	DetectionRuns      uint64
	CyclesFound        uint64
	VictimsAborted     uint64
	TotalDetectionTime time.Duration
}

// AverageDetectionDuration returns the mean wall time of a detection sweep.
func (s Statistics) AverageDetectionDuration() time.Duration {
	if s.DetectionRuns == 0 {
		return 0
	}
	return s.TotalDetectionTime / time.Duration(s.DetectionRuns)
}

// EdgeProvider snapshots the current wait-for graph.
type EdgeProvider func() []Edge

// ResourceCounter returns how many resources a transaction currently holds,
// used by the AbortLeastResources policy.
type ResourceCounter func(mvcc.TxnId) int

// AbortFunc aborts a transaction; invoked once per detected cycle.
type AbortFunc func(mvcc.TxnId)

// Detector periodically scans a wait-for graph for cycles and aborts one
// victim per cycle via the injected AbortFunc.
type Detector struct {
	cfg       Config
	edges     EdgeProvider
	resources ResourceCounter
	abort     AbortFunc

	mu    sync.Mutex
	stats Statistics
}

// NewDetector constructs a Detector. edges is called at the start of every
// sweep; resources and abort may be nil only in tests that don't exercise
// AbortLeastResources / victim delivery.
func NewDetector(cfg Config, edges EdgeProvider, resources ResourceCounter, abort AbortFunc) *Detector {
	return &Detector{cfg: cfg, edges: edges, resources: resources, abort: abort}
}

// Run starts the periodic detection loop; it returns when ctx is done. On
// each tick it runs a detection sweep if the wait-for graph has any edge; it
// does not wake between ticks.
func (d *Detector) Run(ctx context.Context) {
	ticker := time.NewTicker(d.cfg.DetectionInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			edges := d.edges()
			if len(edges) == 0 && !d.hasLongWaiter(edges) {
				continue
			}
			d.DetectDeadlocks()
		}
	}
}

func (d *Detector) hasLongWaiter(edges []Edge) bool {
	now := time.Now()
	for _, e := range edges {
		if now.Sub(e.WaitStart) > d.cfg.MaxWaitTime {
			return true
		}
	}
	return false
}

// DetectDeadlocks runs one detection sweep: DFS from every vertex with a
// recursion stack to find cycles (back edges), selects and aborts one
// victim per distinct cycle, and returns the list of aborted transactions.
func (d *Detector) DetectDeadlocks() []mvcc.TxnId {
	start := time.Now()
	edges := d.edges()

	adj := make(map[mvcc.TxnId][]Edge)
	for _, e := range edges {
		adj[e.Waiter] = append(adj[e.Waiter], e)
	}

	visited := make(map[mvcc.TxnId]bool)
	onStack := make(map[mvcc.TxnId]bool)
	var stack []mvcc.TxnId
	var edgeStack []Edge
	abortedAlready := make(map[mvcc.TxnId]bool)
	var victims []mvcc.TxnId

	var dfs func(v mvcc.TxnId)
	dfs = func(v mvcc.TxnId) {
		visited[v] = true
		onStack[v] = true
		stack = append(stack, v)

		for _, e := range adj[v] {
			if abortedAlready[e.Waiter] || abortedAlready[e.Holder] {
				continue
			}
			edgeStack = append(edgeStack, e)
			if onStack[e.Holder] {
				cycleTxns, cycleEdges := extractCycle(stack, edgeStack, e.Holder)
				victim := d.selectVictim(cycleTxns, cycleEdges)
				if !abortedAlready[victim] {
					abortedAlready[victim] = true
					victims = append(victims, victim)
					if d.abort != nil {
						d.abort(victim)
					}
				}
			} else if !visited[e.Holder] {
				dfs(e.Holder)
			}
			edgeStack = edgeStack[:len(edgeStack)-1]
		}

		onStack[v] = false
		stack = stack[:len(stack)-1]
	}

	for waiter := range adj {
		if !visited[waiter] {
			dfs(waiter)
		}
	}

	d.mu.Lock()
	d.stats.DetectionRuns++
	d.stats.CyclesFound += uint64(len(victims))
	d.stats.VictimsAborted += uint64(len(victims))
	d.stats.TotalDetectionTime += time.Since(start)
	d.mu.Unlock()

	return victims
}

// extractCycle returns the transactions on the recursion stack from target
// (the back edge's holder) to the top, plus the edges among them.
func extractCycle(stack []mvcc.TxnId, edgeStack []Edge, target mvcc.TxnId) ([]mvcc.TxnId, []Edge) {
	idx := 0
	for i, t := range stack {
		if t == target {
			idx = i
			break
		}
	}
	txns := append([]mvcc.TxnId(nil), stack[idx:]...)
	var edges []Edge
	for _, e := range edgeStack {
		for _, t := range txns {
			if e.Waiter == t {
				edges = append(edges, e)
				break
			}
		}
	}
	return txns, edges
}

func (d *Detector) selectVictim(txns []mvcc.TxnId, edges []Edge) mvcc.TxnId {
	switch d.cfg.Policy {
	case AbortOldest:
		v := txns[0]
		for _, t := range txns {
			if t < v {
				v = t
			}
		}
		return v
	case AbortLeastResources:
		if d.resources == nil {
			return txns[0]
		}
		v := txns[0]
		best := d.resources(v)
		for _, t := range txns[1:] {
			if n := d.resources(t); n < best {
				v, best = t, n
			}
		}
		return v
	case AbortLongestWait:
		v := txns[0]
		var oldest time.Time
		for _, e := range edges {
			if oldest.IsZero() || e.WaitStart.Before(oldest) {
				oldest = e.WaitStart
				v = e.Waiter
			}
		}
		return v
	default: // AbortYoungest
		v := txns[0]
		for _, t := range txns {
			if t > v {
				v = t
			}
		}
		return v
	}
}

// Stats returns a snapshot of the detector's run statistics.
func (d *Detector) Stats() Statistics {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}
