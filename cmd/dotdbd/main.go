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

// Command dotdbd wires the storage/transaction/opcode substrate together
// for manual exercising. It is demonstration plumbing: no core package in
// this module depends on it, or on the CLI/config machinery it uses.
package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"gopkg.in/urfave/cli.v1"

	"github.com/dotlanth/dotdb/deadlock"
	"github.com/dotlanth/dotdb/internal/dbconfig"
	"github.com/dotlanth/dotdb/isolation"
	"github.com/dotlanth/dotdb/log"
	"github.com/dotlanth/dotdb/lockmgr"
	"github.com/dotlanth/dotdb/mvcc"
	"github.com/dotlanth/dotdb/opcode"
	"github.com/dotlanth/dotdb/pagestore"
	"github.com/dotlanth/dotdb/pool"
	"github.com/dotlanth/dotdb/snapshot"
	"github.com/dotlanth/dotdb/state"
	"github.com/dotlanth/dotdb/trie"
	"github.com/dotlanth/dotdb/validator"
)

var (
	gitCommit = ""
	gitDate   = ""
)

var configFlag = cli.StringFlag{
	Name:  "config",
	Usage: "TOML configuration file",
}

var backingFlag = cli.StringFlag{
	Name:  "backing",
	Usage: "page store backing: memory, file, leveldb",
	Value: "memory",
}

var dataDirFlag = cli.StringFlag{
	Name:  "datadir",
	Usage: "directory for file/leveldb backings",
	Value: "dotdb-data",
}

func main() {
	app := cli.NewApp()
	app.Name = "dotdbd"
	app.Usage = "storage and execution substrate exerciser"
	app.Version = fmt.Sprintf("0.1.0-%s-%s", gitCommit, gitDate)
	app.Flags = []cli.Flag{configFlag, backingFlag, dataDirFlag}
	app.Commands = []cli.Command{statsCommand, demoCommand}
	app.Action = runStats

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("dotdbd: %v", err))
		os.Exit(1)
	}
}

// engine bundles every wired component, the way cmd/geth's node bundles its
// services.
type engine struct {
	cfg       dbconfig.Config
	store     pagestore.Store
	trie      *trie.Trie
	snapshots *snapshot.Manager
	mvccMgr   *mvcc.Manager
	locks     *lockmgr.Manager
	detector  *deadlock.Detector
	enforcer  *isolation.Enforcer
	validator *validator.Validator
	state     *state.Layer
	opcodes   *opcode.Engine
}

func loadConfig(ctx *cli.Context) (dbconfig.Config, error) {
	if path := ctx.GlobalString(configFlag.Name); path != "" {
		return dbconfig.LoadFile(path)
	}
	cfg := dbconfig.Defaults()
	if backing := ctx.GlobalString(backingFlag.Name); backing != "" {
		cfg.PageStore.Backing = dbconfig.Backing(backing)
	}
	if dir := ctx.GlobalString(dataDirFlag.Name); dir != "" {
		cfg.PageStore.Dir = dir
	}
	return cfg, nil
}

func newEngine(cfg dbconfig.Config) (*engine, error) {
	var store pagestore.Store
	var err error
	switch cfg.PageStore.Backing {
	case dbconfig.BackingFile:
		store, err = pagestore.OpenFileStore(cfg.FileStoreConfig())
	case dbconfig.BackingLevelDB:
		store, err = pagestore.OpenLevelDBStore(cfg.PageStore.Dir)
	default:
		store = pagestore.NewMemStore()
	}
	if err != nil {
		return nil, fmt.Errorf("open page store: %w", err)
	}

	t := trie.New(trie.NewNodeDatabase(store))
	v := validator.Default()
	s := state.NewLayer(t, cfg.StateConfig(), v)
	oc := opcode.New(s)

	mvccMgr := mvcc.NewManager()
	locks := lockmgr.NewManager()
	enforcer := isolation.New(mvccMgr, locks)

	e := &engine{
		cfg:       cfg,
		store:     store,
		trie:      t,
		snapshots: snapshot.NewManager(cfg.SnapshotRetention(), cfg.Snapshot.AutoCleanup),
		mvccMgr:   mvccMgr,
		locks:     locks,
		enforcer:  enforcer,
		validator: v,
		state:     s,
		opcodes:   oc,
	}
	edgeProvider := func() []deadlock.Edge {
		raw := locks.WaitForEdges()
		edges := make([]deadlock.Edge, len(raw))
		for i, w := range raw {
			edges[i] = deadlock.Edge{Waiter: w.Waiter, Holder: w.Holder, Resource: w.Resource, WaitStart: w.WaitStart}
		}
		return edges
	}
	abort := func(id mvcc.TxnId) {
		log.Warn("deadlock victim selected", "txn", id)
		if txn, ok := mvccMgr.Transaction(id); ok {
			if err := enforcer.Abort(txn); err != nil {
				log.Error("failed to abort deadlock victim", "txn", id, "err", err)
			}
		}
	}
	e.detector = deadlock.NewDetector(cfg.DeadlockConfig(), edgeProvider, locks.HeldPageCount, abort)
	return e, nil
}

var statsCommand = cli.Command{
	Name:   "stats",
	Usage:  "print page store and pool statistics",
	Action: runStats,
}

func runStats(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer e.store.Close()

	p, err := pool.New(cfg.PoolConfig(pool.FixedKind(4096)))
	if err != nil {
		return err
	}
	blk, err := p.Allocate(1024)
	if err != nil {
		return err
	}
	defer p.Deallocate(blk)

	ss := e.store.Stats()
	ps := p.Stats()

	fmt.Println(color.GreenString("dotdbd — storage substrate stats"))
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"component", "metric", "value"})
	table.Append([]string{"page store", "gets", fmt.Sprint(ss.Gets)})
	table.Append([]string{"page store", "puts", fmt.Sprint(ss.Puts)})
	table.Append([]string{"page store", "cache hits", fmt.Sprint(ss.CacheHits)})
	table.Append([]string{"page store", "cache misses", fmt.Sprint(ss.CacheMisses)})
	table.Append([]string{"pool", "total blocks", fmt.Sprint(ps.TotalBlocks)})
	table.Append([]string{"pool", "allocated blocks", fmt.Sprint(ps.AllocatedBlocks)})
	table.Append([]string{"pool", "peak utilization", fmt.Sprintf("%.2f", ps.PeakUtilization)})
	table.Render()
	return nil
}

var demoCommand = cli.Command{
	Name:   "demo",
	Usage:  "run a scripted transaction through the opcode engine",
	Action: runDemo,
}

func runDemo(ctx *cli.Context) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		return err
	}
	e, err := newEngine(cfg)
	if err != nil {
		return err
	}
	defer e.store.Close()

	txn := e.enforcer.Begin(cfg.Isolation())
	log.Info("began transaction", "txn", txn.ID, "level", txn.Level)

	occtx := opcode.NewContext([20]byte{0x01}, 1_000_000, cfg.GasCosts(), false)
	key := opcode.WordFromBytes([]byte("balance"))
	value := opcode.WordFromBytes([]byte{0x2a})

	storeRes, _, _, err := e.opcodes.Execute(occtx, byte(opcode.SSTORE), []opcode.Word{key, value})
	if err != nil {
		return fmt.Errorf("sstore: %w", err)
	}
	res, _, _, err := e.opcodes.Execute(occtx, byte(opcode.SLOAD), []opcode.Word{key})
	if err != nil {
		return fmt.Errorf("sload: %w", err)
	}
	fmt.Printf("gas used so far: %d\n", storeRes.GasUsed+res.GasUsed)

	if err := e.enforcer.Commit(txn); err != nil {
		return err
	}
	log.Info("committed transaction", "txn", txn.ID)
	return nil
}
