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

package opcode

import (
	"testing"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/pagestore"
	"github.com/dotlanth/dotdb/state"
	"github.com/dotlanth/dotdb/trie"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	tr := trie.New(trie.NewNodeDatabase(pagestore.NewMemStore()))
	layer := state.NewLayer(tr, state.DefaultConfig(), nil)
	return New(layer)
}

func newTestContext(isStatic bool) *Context {
	return NewContext(common.BytesToAddress([]byte{0x01}), 1_000_000, DefaultGasCosts(), isStatic)
}

// TestGasCostsMatchScenarioFour reproduces §8 scenario 4's exact gas
// values: a SLOAD costs 203, the first SSTORE to a fresh key costs 20003
// (Set), and a second SSTORE to the same key within the same transaction
// costs 5003 (Write/update).
func TestGasCostsMatchScenarioFour(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)
	key := WordFromBytes([]byte("balance"))
	value := WordFromBytes([]byte{0x2a})

	res, _, _, err := e.Execute(ctx, byte(SLOAD), []Word{key})
	if err != nil {
		t.Fatalf("sload: %v", err)
	}
	if res.GasUsed != 203 {
		t.Fatalf("expected SLOAD to cost 203 gas, got %d", res.GasUsed)
	}

	res, _, _, err = e.Execute(ctx, byte(SSTORE), []Word{key, value})
	if err != nil {
		t.Fatalf("sstore set: %v", err)
	}
	if res.GasUsed != 20003 {
		t.Fatalf("expected the first SSTORE to cost 20003 gas, got %d", res.GasUsed)
	}

	res, _, _, err = e.Execute(ctx, byte(SSTORE), []Word{key, WordFromBytes([]byte{0x2b})})
	if err != nil {
		t.Fatalf("sstore update: %v", err)
	}
	if res.GasUsed != 5003 {
		t.Fatalf("expected the second SSTORE on the same key to cost 5003 gas, got %d", res.GasUsed)
	}
}

func TestStaticContextDeniesWrites(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(true)
	key := WordFromBytes([]byte("k"))
	value := WordFromBytes([]byte{0x01})

	_, _, _, err := e.Execute(ctx, byte(SSTORE), []Word{key, value})
	if err != ErrStorageWriteDenied {
		t.Fatalf("expected ErrStorageWriteDenied under a static context, got %v", err)
	}

	if exists, err := e.Layer.Exists(ctx.ContractAddress, state.SlotKey(key)); err != nil || exists {
		t.Fatalf("denied write must not reach the trie: exists=%v err=%v", exists, err)
	}
}

func TestSloadOnUnsetKeyReturnsZeroWord(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)
	key := WordFromBytes([]byte("missing"))

	_, stack, _, err := e.Execute(ctx, byte(SLOAD), []Word{key})
	if err != nil {
		t.Fatalf("sload: %v", err)
	}
	if len(stack) != 1 || !stack[0].IsZero() {
		t.Fatalf("expected a zero word for an unset key, got %v", stack)
	}
}

func TestStackUnderflow(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)

	if _, _, _, err := e.Execute(ctx, byte(SLOAD), nil); err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow for SLOAD with an empty stack, got %v", err)
	}
	if _, _, _, err := e.Execute(ctx, byte(SSTORE), []Word{WordFromBytes([]byte("k"))}); err != ErrStackUnderflow {
		t.Fatalf("expected ErrStackUnderflow for SSTORE missing its value, got %v", err)
	}
}

func TestInvalidOpcode(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)
	_, _, _, err := e.Execute(ctx, 0x01, nil)
	if _, ok := err.(InvalidOpcode); !ok {
		t.Fatalf("expected InvalidOpcode, got %T: %v", err, err)
	}
}

func TestSexistsAndSclearRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)
	key := WordFromBytes([]byte("flag"))
	value := WordFromBytes([]byte{0x01})

	if _, _, _, err := e.Execute(ctx, byte(SSTORE), []Word{key, value}); err != nil {
		t.Fatalf("sstore: %v", err)
	}

	_, stack, _, err := e.Execute(ctx, byte(SEXISTS), []Word{key})
	if err != nil {
		t.Fatalf("sexists: %v", err)
	}
	if len(stack) != 1 || stack[0].IsZero() {
		t.Fatalf("expected SEXISTS to report the key exists, got %v", stack)
	}

	if _, _, _, err := e.Execute(ctx, byte(SCLEAR), []Word{key}); err != nil {
		t.Fatalf("sclear: %v", err)
	}

	_, stack, _, err = e.Execute(ctx, byte(SEXISTS), []Word{key})
	if err != nil {
		t.Fatalf("sexists after clear: %v", err)
	}
	if len(stack) != 1 || !stack[0].IsZero() {
		t.Fatalf("expected SEXISTS to report the key is gone after SCLEAR, got %v", stack)
	}
}

func TestMultiLoadMultiStoreRoundTrip(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)

	k1 := WordFromBytes([]byte("a"))
	k2 := WordFromBytes([]byte("b"))
	v1 := WordFromBytes([]byte{0x11})
	v2 := WordFromBytes([]byte{0x22})

	// SMULTISTORE expects [.., k1, v1, k2, v2, n] with n on top.
	storeStack := []Word{k1, v1, k2, v2, wordFromUint64(2)}
	if _, _, _, err := e.Execute(ctx, byte(SMULTISTORE), storeStack); err != nil {
		t.Fatalf("smultistore: %v", err)
	}

	// SMULTILOAD expects [.., k1, k2, n] with n on top.
	loadStack := []Word{k1, k2, wordFromUint64(2)}
	_, stack, _, err := e.Execute(ctx, byte(SMULTILOAD), loadStack)
	if err != nil {
		t.Fatalf("smultiload: %v", err)
	}
	if len(stack) != 2 || stack[0] != v1 || stack[1] != v2 {
		t.Fatalf("expected [v1, v2] on the stack after SMULTILOAD, got %v", stack)
	}
}

func TestSkeysEnumeratesContractSlots(t *testing.T) {
	e := newTestEngine(t)
	ctx := newTestContext(false)

	for _, name := range []string{"a", "b", "c"} {
		key := WordFromBytes([]byte(name))
		if _, _, _, err := e.Execute(ctx, byte(SSTORE), []Word{key, WordFromBytes([]byte("v"))}); err != nil {
			t.Fatalf("sstore %s: %v", name, err)
		}
	}

	// SKEYS expects [.., start, max] with max on top.
	_, stack, _, err := e.Execute(ctx, byte(SKEYS), []Word{Word{}, wordFromUint64(10)})
	if err != nil {
		t.Fatalf("skeys: %v", err)
	}
	if len(stack) == 0 {
		t.Fatalf("expected a nonzero count pushed by SKEYS")
	}
	count := stack[0].uint64()
	if count != 3 || len(stack) != int(count)+1 {
		t.Fatalf("expected count=3 followed by 3 keys, got stack=%v", stack)
	}
}
