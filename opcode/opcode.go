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

// Package opcode implements the State Opcode Engine (C11): the
// SLOAD/SSTORE/SSIZE/SEXISTS/SCLEAR/SMULTILOAD/SMULTISTORE/SKEYS surface
// the VM executes against the State Access Layer, with gas accounting and
// static-context write denial.
package opcode

import (
	"encoding/binary"
	"fmt"

	"github.com/dotlanth/dotdb/common"
	"github.com/dotlanth/dotdb/state"
	"github.com/dotlanth/dotdb/validator"
)

// Opcode identifies one state opcode by its single byte.
type Opcode byte

const (
	SLOAD       Opcode = 0x54
	SSTORE      Opcode = 0x55
	SSIZE       Opcode = 0x56
	SEXISTS     Opcode = 0x57
	SCLEAR      Opcode = 0x58
	SMULTILOAD  Opcode = 0x59
	SMULTISTORE Opcode = 0x5A
	SKEYS       Opcode = 0x5B
)

func (op Opcode) String() string {
	switch op {
	case SLOAD:
		return "SLOAD"
	case SSTORE:
		return "SSTORE"
	case SSIZE:
		return "SSIZE"
	case SEXISTS:
		return "SEXISTS"
	case SCLEAR:
		return "SCLEAR"
	case SMULTILOAD:
		return "SMULTILOAD"
	case SMULTISTORE:
		return "SMULTISTORE"
	case SKEYS:
		return "SKEYS"
	default:
		return fmt.Sprintf("UNKNOWN(0x%02x)", byte(op))
	}
}

// writes reports whether op modifies storage; such opcodes are denied in a
// static call context.
func (op Opcode) writes() bool {
	switch op {
	case SSTORE, SCLEAR, SMULTISTORE:
		return true
	default:
		return false
	}
}

// Word is a fixed-width 32-byte stack slot: keys and values are words.
type Word [32]byte

// WordFromBytes left-pads b into a Word, truncating from the left if b is
// longer than 32 bytes.
func WordFromBytes(b []byte) Word {
	var w Word
	if len(b) > 32 {
		b = b[len(b)-32:]
	}
	copy(w[32-len(b):], b)
	return w
}

// Bytes returns the word's full 32-byte big-endian form; leading zero bytes
// are kept.
func (w Word) Bytes() []byte { return w[:] }

// IsZero reports whether every byte of the word is zero.
func (w Word) IsZero() bool { return w == Word{} }

// uint64 returns the last 8 bytes of the word as a big-endian integer, the
// encoding the source uses for SMULTILOAD/SMULTISTORE's count argument.
func (w Word) uint64() uint64 { return binary.BigEndian.Uint64(w[24:]) }

func wordFromUint64(n uint64) Word {
	var w Word
	binary.BigEndian.PutUint64(w[24:], n)
	return w
}

// GasCosts is the opcode engine's gas cost table.
type GasCosts struct {
	Base          uint64
	Access        uint64
	Write         uint64 // existing-slot update
	Set           uint64 // new (previously empty) slot
	Clear         uint64
	ClearRefund   uint64
	MaxIterations uint64
}

// DefaultGasCosts mirrors §4.11's defaults.
func DefaultGasCosts() GasCosts {
	return GasCosts{
		Base:  3, Access: 200, Write: 5000, Set: 20000,
		Clear: 5000, ClearRefund: 15000, MaxIterations: 100000,
	}
}

// ChangeClass classifies a transaction's prior change to a storage key, for
// SSTORE's conditional gas rule.
type ChangeClass int

const (
	ClassSet ChangeClass = iota
	ClassUpdate
	ClassClear
)

// Context is the opcode boundary's per-call context (§6).
type Context struct {
	ContractAddress  common.Address
	GasLimit         uint64
	GasCosts         GasCosts
	IsStatic         bool
	TxStorageChanges map[Word]ChangeClass
}

// NewContext returns a Context with an initialized TxStorageChanges map.
func NewContext(addr common.Address, gasLimit uint64, costs GasCosts, isStatic bool) *Context {
	return &Context{ContractAddress: addr, GasLimit: gasLimit, GasCosts: costs, IsStatic: isStatic,
		TxStorageChanges: make(map[Word]ChangeClass)}
}

// Result is the outcome of executing one opcode.
type Result struct {
	GasUsed   uint64
	GasRefund uint64
	Output    []byte
	Success   bool
	Err       error
}

// Typed errors crossing the opcode boundary (§6).
type InsufficientGas struct{ Required, Available uint64 }

func (e *InsufficientGas) Error() string {
	return fmt.Sprintf("opcode: insufficient gas: need %d, have %d", e.Required, e.Available)
}

type InvalidOpcode byte

func (e InvalidOpcode) Error() string { return fmt.Sprintf("opcode: invalid opcode 0x%02x", byte(e)) }

var (
	ErrStackUnderflow         = fmt.Errorf("opcode: stack underflow")
	ErrStackOverflow          = fmt.Errorf("opcode: stack overflow")
	ErrInvalidStorageKey      = fmt.Errorf("opcode: invalid storage key")
	ErrStorageAccessDenied    = fmt.Errorf("opcode: storage access denied")
	ErrStorageWriteDenied     = fmt.Errorf("opcode: storage write denied")
	ErrOperationLimitExceeded = fmt.Errorf("opcode: operation limit exceeded")
)

type InvalidDataFormat string

func (e InvalidDataFormat) Error() string { return fmt.Sprintf("opcode: invalid data format: %s", string(e)) }

type StorageError string

func (e StorageError) Error() string { return fmt.Sprintf("opcode: storage error: %s", string(e)) }

// MaxStackDepth bounds the total number of words on the stack; a push onto a
// full stack fails with ErrStackOverflow.
const MaxStackDepth = 1024

// Engine executes state opcodes against a State Access Layer.
type Engine struct {
	Layer *state.Layer
}

// New returns an Engine over layer.
func New(layer *state.Layer) *Engine {
	return &Engine{Layer: layer}
}

// stackFrame wraps a stack slice with pop-from-top / push-to-top helpers,
// top being the last element (standard stack-machine convention).
type stackFrame struct{ words []Word }

func (s *stackFrame) pop() (Word, bool) {
	if len(s.words) == 0 {
		return Word{}, false
	}
	w := s.words[len(s.words)-1]
	s.words = s.words[:len(s.words)-1]
	return w, true
}

func (s *stackFrame) push(w Word) error {
	if len(s.words) >= MaxStackDepth {
		return ErrStackOverflow
	}
	s.words = append(s.words, w)
	return nil
}

// Execute runs op against stack under ctx, returning the gas/output result,
// the updated stack, and ctx.TxStorageChanges itself: the transaction's
// cumulative change-class map, which this call updates in place (not a
// per-call copy).
func (e *Engine) Execute(ctx *Context, op byte, stack []Word) (Result, []Word, map[Word]ChangeClass, error) {
	opcode := Opcode(op)
	switch opcode {
	case SLOAD, SSTORE, SSIZE, SEXISTS, SCLEAR, SMULTILOAD, SMULTISTORE, SKEYS:
	default:
		err := InvalidOpcode(op)
		return Result{Success: false, Err: err}, stack, ctx.TxStorageChanges, err
	}

	if opcode.writes() && ctx.IsStatic {
		res := Result{GasUsed: ctx.GasCosts.Base, Success: false, Err: ErrStorageWriteDenied}
		return res, stack, ctx.TxStorageChanges, ErrStorageWriteDenied
	}

	frame := &stackFrame{words: append([]Word(nil), stack...)}
	var (
		gasUsed   uint64
		gasRefund uint64
		output    []byte
		err       error
	)

	charge := func(amount uint64) error {
		if gasUsed+amount > ctx.GasLimit {
			return &InsufficientGas{Required: gasUsed + amount, Available: ctx.GasLimit}
		}
		gasUsed += amount
		return nil
	}

	switch opcode {
	case SLOAD:
		key, ok := frame.pop()
		if !ok {
			err = ErrStackUnderflow
			break
		}
		if err = charge(ctx.GasCosts.Base + ctx.GasCosts.Access); err != nil {
			break
		}
		var v []byte
		v, err = e.Layer.Load(ctx.ContractAddress, stateSlotOf(key))
		if err != nil {
			err = StorageError(err.Error())
			break
		}
		err = frame.push(WordFromBytes(v))

	case SSTORE:
		value, ok1 := frame.pop()
		key, ok2 := frame.pop()
		if !ok1 || !ok2 {
			err = ErrStackUnderflow
			break
		}
		if err = e.chargeSstore(ctx, &gasUsed, &gasRefund, key, value); err != nil {
			break
		}
		vctx := validator.Context{Dot: ctx.ContractAddress, Caller: ctx.ContractAddress}
		err = e.Layer.Store(vctx, stateSlotOf(key), common.CopyBytes(value.Bytes()))

	case SSIZE:
		key, ok := frame.pop()
		if !ok {
			err = ErrStackUnderflow
			break
		}
		if err = charge(ctx.GasCosts.Base + ctx.GasCosts.Access); err != nil {
			break
		}
		var n int
		n, err = e.Layer.Size(ctx.ContractAddress, stateSlotOf(key))
		if err != nil {
			err = StorageError(err.Error())
			break
		}
		err = frame.push(wordFromUint64(uint64(n)))

	case SEXISTS:
		key, ok := frame.pop()
		if !ok {
			err = ErrStackUnderflow
			break
		}
		if err = charge(ctx.GasCosts.Base + ctx.GasCosts.Access); err != nil {
			break
		}
		var exists bool
		exists, err = e.Layer.Exists(ctx.ContractAddress, stateSlotOf(key))
		if err != nil {
			err = StorageError(err.Error())
			break
		}
		if exists {
			err = frame.push(wordFromUint64(1))
		} else {
			err = frame.push(wordFromUint64(0))
		}

	case SCLEAR:
		key, ok := frame.pop()
		if !ok {
			err = ErrStackUnderflow
			break
		}
		var existed bool
		existed, err = e.Layer.Exists(ctx.ContractAddress, stateSlotOf(key))
		if err != nil {
			err = StorageError(err.Error())
			break
		}
		if err = charge(ctx.GasCosts.Base + ctx.GasCosts.Clear); err != nil {
			break
		}
		ctx.TxStorageChanges[key] = ClassClear
		if existed {
			gasRefund += ctx.GasCosts.ClearRefund
		}
		err = e.Layer.Clear(ctx.ContractAddress, stateSlotOf(key))

	case SMULTILOAD:
		nWord, ok := frame.pop()
		if !ok {
			err = ErrStackUnderflow
			break
		}
		n := nWord.uint64()
		if n > ctx.GasCosts.MaxIterations {
			err = ErrOperationLimitExceeded
			break
		}
		keys := make([]Word, n)
		for i := int(n) - 1; i >= 0; i-- {
			k, ok := frame.pop()
			if !ok {
				err = ErrStackUnderflow
				break
			}
			keys[i] = k
		}
		if err != nil {
			break
		}
		if err = charge(ctx.GasCosts.Base + ctx.GasCosts.Access*n); err != nil {
			break
		}
		for _, k := range keys {
			var v []byte
			v, err = e.Layer.Load(ctx.ContractAddress, stateSlotOf(k))
			if err != nil {
				err = StorageError(err.Error())
				break
			}
			if err = frame.push(WordFromBytes(v)); err != nil {
				break
			}
		}

	case SMULTISTORE:
		nWord, ok := frame.pop()
		if !ok {
			err = ErrStackUnderflow
			break
		}
		n := nWord.uint64()
		if n > ctx.GasCosts.MaxIterations {
			err = ErrOperationLimitExceeded
			break
		}
		type kv struct{ key, value Word }
		pairs := make([]kv, n)
		for i := int(n) - 1; i >= 0; i-- {
			v, ok1 := frame.pop()
			k, ok2 := frame.pop()
			if !ok1 || !ok2 {
				err = ErrStackUnderflow
				break
			}
			pairs[i] = kv{key: k, value: v}
		}
		if err != nil {
			break
		}
		vctx := validator.Context{Dot: ctx.ContractAddress, Caller: ctx.ContractAddress}
		for _, p := range pairs {
			if err = e.chargeSstore(ctx, &gasUsed, &gasRefund, p.key, p.value); err != nil {
				break
			}
			if err = e.Layer.Store(vctx, stateSlotOf(p.key), common.CopyBytes(p.value.Bytes())); err != nil {
				break
			}
		}

	case SKEYS:
		maxWord, ok1 := frame.pop()
		startWord, ok2 := frame.pop()
		if !ok1 || !ok2 {
			err = ErrStackUnderflow
			break
		}
		limit := int(maxWord.uint64())
		if uint64(limit) > ctx.GasCosts.MaxIterations {
			err = ErrOperationLimitExceeded
			break
		}
		var start []byte
		if !startWord.IsZero() {
			start = startWord.Bytes()
		}
		var keys []state.SlotKey
		keys, err = e.Layer.GetStorageKeys(ctx.ContractAddress, start, limit)
		if err != nil {
			err = StorageError(err.Error())
			break
		}
		if err = charge(ctx.GasCosts.Base + ctx.GasCosts.Access*uint64(len(keys))); err != nil {
			break
		}
		if err = frame.push(wordFromUint64(uint64(len(keys)))); err != nil {
			break
		}
		for _, k := range keys {
			if err = frame.push(Word(k)); err != nil {
				break
			}
		}
	}

	success := err == nil
	res := Result{GasUsed: gasUsed, GasRefund: gasRefund, Output: output, Success: success, Err: err}
	if !success {
		res.GasRefund = 0 // refunds are never applied to failed opcodes
	}
	return res, frame.words, ctx.TxStorageChanges, err
}

// chargeSstore implements §4.11's SSTORE gas rule and records the change
// class for the key into ctx.TxStorageChanges. A key's first touch this
// transaction is priced against its new value (Set for nonzero, Clear for
// zero); every later touch to the same key this transaction is a cheap
// Write, regardless of what the first touch recorded.
func (e *Engine) chargeSstore(ctx *Context, gasUsed, gasRefund *uint64, key, value Word) error {
	costs := ctx.GasCosts
	_, hadPrior := ctx.TxStorageChanges[key]

	var cost uint64
	var class ChangeClass
	if !hadPrior {
		if value.IsZero() {
			cost = costs.Base + costs.Clear
			class = ClassClear
		} else {
			cost = costs.Base + costs.Set
			class = ClassSet
		}
	} else {
		cost = costs.Base + costs.Write
		class = ClassUpdate
	}

	if *gasUsed+cost > ctx.GasLimit {
		return &InsufficientGas{Required: *gasUsed + cost, Available: ctx.GasLimit}
	}
	*gasUsed += cost
	ctx.TxStorageChanges[key] = class
	return nil
}

// stateSlotOf adapts an opcode Word key into a state.SlotKey (identical
// layout: both are 32-byte words).
func stateSlotOf(w Word) state.SlotKey { return state.SlotKey(w) }
