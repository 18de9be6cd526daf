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

// Package validator implements the State-Transition Validator: pluggable
// rules gating writes between the State Access Layer and the trie.
package validator

import (
	"fmt"

	"github.com/dotlanth/dotdb/common"
)

// SlotType is a declared storage slot's variant, checked by the type rule.
type SlotType int

const (
	SlotSimple SlotType = iota
	SlotDynamicArray
	SlotMapping
	SlotStruct
)

func (t SlotType) String() string {
	switch t {
	case SlotSimple:
		return "simple"
	case SlotDynamicArray:
		return "dynamic_array"
	case SlotMapping:
		return "mapping"
	case SlotStruct:
		return "struct"
	default:
		return "unknown"
	}
}

// Severity classifies a Violation; only Error and Critical block a write.
type Severity int

const (
	Info Severity = iota
	Warning
	Error
	Critical
)

func (s Severity) String() string {
	switch s {
	case Info:
		return "info"
	case Warning:
		return "warning"
	case Error:
		return "error"
	case Critical:
		return "critical"
	default:
		return "unknown"
	}
}

// Blocks reports whether a violation at this severity should stop a write.
func (s Severity) Blocks() bool { return s == Error || s == Critical }

// Violation is one rule's complaint about a transition.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
}

func (v Violation) String() string {
	return fmt.Sprintf("[%s] %s: %s", v.Severity, v.Rule, v.Message)
}

// Transition describes one proposed storage write: dot, slot, old/new
// value, the slot's declared type, and its optional human name.
type Transition struct {
	Dot          common.Address
	SlotKey      [32]byte
	Old, New     []byte
	DeclaredType SlotType
	Name         string
}

// Context carries the call context a rule evaluates a Transition under.
type Context struct {
	Caller       common.Address
	Dot          common.Address
	IsStaticCall bool
	Block        uint64
	Timestamp    int64
	Value        uint64
}

// Result is one rule's verdict: pass, or a violation plus an optional
// separate warning (a rule may both reject and additionally warn, e.g. the
// permission rule's external-caller notice alongside a clean pass).
type Result struct {
	Pass      bool
	Violation *Violation
	Warning   *Violation
}

// Rule is one pluggable validation rule.
type Rule interface {
	Name() string
	Validate(ctx Context, t Transition) Result
}

// Diagnostic pairs a Transition's aggregated outcome with its rule-level
// detail, preserved per-transition across a batch validation.
type Diagnostic struct {
	Transition Transition
	Violations []Violation
	Warnings   []Violation
}

// Blocked reports whether any recorded violation in this diagnostic blocks
// the write.
func (d Diagnostic) Blocked() bool {
	for _, v := range d.Violations {
		if v.Severity.Blocks() {
			return true
		}
	}
	return false
}

// Summary renders the diagnostic's violations as one line, for error
// messages and logs.
func (d Diagnostic) Summary() string {
	if len(d.Violations) == 0 {
		return "no violations"
	}
	s := d.Violations[0].String()
	for _, v := range d.Violations[1:] {
		s += "; " + v.String()
	}
	return s
}

// Validator owns an ordered set of rules and evaluates transitions against
// all of them, optionally stopping at the first critical failure.
type Validator struct {
	rules    []Rule
	failFast bool
}

// New returns a Validator over rules, evaluated in order.
func New(failFast bool, rules ...Rule) *Validator {
	return &Validator{rules: rules, failFast: failFast}
}

// Default returns a Validator with the built-in Type, Permission, and
// Invariant rules, fail-fast.
func Default() *Validator {
	return New(true, &TypeRule{}, &PermissionRule{}, &InvariantRule{})
}

// Validate evaluates t against every rule, returning an aggregated
// Diagnostic. With failFast, evaluation stops at the first critical
// violation.
func (v *Validator) Validate(ctx Context, t Transition) Diagnostic {
	d := Diagnostic{Transition: t}
	for _, rule := range v.rules {
		res := rule.Validate(ctx, t)
		if res.Violation != nil {
			d.Violations = append(d.Violations, *res.Violation)
		}
		if res.Warning != nil {
			d.Warnings = append(d.Warnings, *res.Warning)
		}
		if v.failFast && res.Violation != nil && res.Violation.Severity == Critical {
			break
		}
	}
	return d
}

// ValidateBatch evaluates each transition in order, preserving per-
// transition diagnostics.
func (v *Validator) ValidateBatch(ctx Context, ts []Transition) []Diagnostic {
	out := make([]Diagnostic, len(ts))
	for i, t := range ts {
		out[i] = v.Validate(ctx, t)
	}
	return out
}

// variantOf classifies new's shape the same coarse way DeclaredType does,
// so the type rule can compare like with like. This is a placeholder
// heuristic: a real dot ABI would carry the declared encoding; absent that,
// length is the only signal available post-hoc.
func variantOf(value []byte) SlotType {
	switch {
	case len(value) == 0:
		return SlotSimple
	case len(value) <= 32:
		return SlotSimple
	default:
		return SlotDynamicArray
	}
}

// TypeRule checks that a transition's new value's coarse shape matches its
// declared slot type.
type TypeRule struct{}

func (r *TypeRule) Name() string { return "type" }

func (r *TypeRule) Validate(ctx Context, t Transition) Result {
	if t.New == nil {
		return Result{Pass: true}
	}
	got := variantOf(t.New)
	// Mapping/struct slots are multi-word by nature; a single-word write
	// to one is still a legal per-key update, not a type mismatch, so only
	// simple-vs-dynamic_array mismatches are flagged here.
	if t.DeclaredType == SlotSimple && got == SlotDynamicArray {
		return Result{Violation: &Violation{
			Rule:    "type", Severity: Error,
			Message: fmt.Sprintf("slot declared %s but value is %d bytes", t.DeclaredType, len(t.New)),
		}}
	}
	return Result{Pass: true}
}

// PermissionRule rejects static-call writes outright, and warns (without
// blocking) when an external caller touches a dot's own storage.
type PermissionRule struct{}

func (r *PermissionRule) Name() string { return "permission" }

func (r *PermissionRule) Validate(ctx Context, t Transition) Result {
	if ctx.IsStaticCall && len(t.New) > 0 {
		return Result{Violation: &Violation{
			Rule:    "permission", Severity: Critical,
			Message: "static call attempted a non-empty storage write",
		}}
	}
	if ctx.Caller != ctx.Dot {
		return Result{Pass: true, Warning: &Violation{
			Rule:    "permission", Severity: Warning,
			Message: fmt.Sprintf("external caller %s writing dot %s's storage", ctx.Caller, ctx.Dot),
		}}
	}
	return Result{Pass: true}
}

// InvariantRule is the placeholder hook for dot-defined invariants; it
// always passes until a dot registers one, but any violation it does
// surface is Critical by construction.
type InvariantRule struct {
	Check func(ctx Context, t Transition) (ok bool, message string)
}

func (r *InvariantRule) Name() string { return "invariant" }

func (r *InvariantRule) Validate(ctx Context, t Transition) Result {
	if r.Check == nil {
		return Result{Pass: true}
	}
	if ok, msg := r.Check(ctx, t); !ok {
		return Result{Violation: &Violation{Rule: "invariant", Severity: Critical, Message: msg}}
	}
	return Result{Pass: true}
}
