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

package validator

import (
	"testing"

	"github.com/dotlanth/dotdb/common"
)

func TestTypeRuleFlagsDeclaredMismatch(t *testing.T) {
	r := &TypeRule{}
	dot := common.BytesToAddress([]byte{0x01})
	transition := Transition{
		Dot:          dot, Old: nil, New: make([]byte, 64),
		DeclaredType: SlotSimple,
	}
	res := r.Validate(Context{Caller: dot, Dot: dot}, transition)
	if res.Violation == nil || res.Violation.Severity != Error {
		t.Fatalf("expected an Error-severity type violation, got %+v", res)
	}
}

func TestTypeRulePassesMatchingShape(t *testing.T) {
	r := &TypeRule{}
	dot := common.BytesToAddress([]byte{0x01})
	transition := Transition{Dot: dot, New: []byte{0x2a}, DeclaredType: SlotSimple}
	res := r.Validate(Context{Caller: dot, Dot: dot}, transition)
	if !res.Pass || res.Violation != nil {
		t.Fatalf("expected a clean pass, got %+v", res)
	}
}

func TestPermissionRuleRejectsStaticWrite(t *testing.T) {
	r := &PermissionRule{}
	dot := common.BytesToAddress([]byte{0x02})
	ctx := Context{Caller: dot, Dot: dot, IsStaticCall: true}
	res := r.Validate(ctx, Transition{Dot: dot, New: []byte("x")})
	if res.Violation == nil || res.Violation.Severity != Critical {
		t.Fatalf("expected a Critical violation for a static-call write, got %+v", res)
	}
}

func TestPermissionRuleWarnsExternalCaller(t *testing.T) {
	r := &PermissionRule{}
	dot := common.BytesToAddress([]byte{0x03})
	caller := common.BytesToAddress([]byte{0x04})
	ctx := Context{Caller: caller, Dot: dot}
	res := r.Validate(ctx, Transition{Dot: dot, New: []byte("x")})
	if !res.Pass {
		t.Fatalf("external caller writes should warn, not block: %+v", res)
	}
	if res.Warning == nil || res.Warning.Severity != Warning {
		t.Fatalf("expected a Warning-severity notice, got %+v", res)
	}
}

func TestDefaultValidatorFailsFastOnCritical(t *testing.T) {
	v := Default()
	dot := common.BytesToAddress([]byte{0x05})
	ctx := Context{Caller: dot, Dot: dot, IsStaticCall: true}
	transition := Transition{Dot: dot, New: make([]byte, 64), DeclaredType: SlotSimple}

	diag := v.Validate(ctx, transition)
	if !diag.Blocked() {
		t.Fatalf("expected the static-call write to be blocked")
	}
	// The type rule runs first and records its Error; fail-fast on the
	// permission rule's Critical violation then stops before the invariant
	// rule, so exactly these two violations are recorded, in rule order.
	if len(diag.Violations) != 2 || diag.Violations[0].Rule != "type" || diag.Violations[1].Rule != "permission" {
		t.Fatalf("expected the type rule's violation then the permission rule's, got %+v", diag.Violations)
	}
}

func TestValidateBatchPreservesPerTransitionDiagnostics(t *testing.T) {
	v := Default()
	dot := common.BytesToAddress([]byte{0x06})
	ctx := Context{Caller: dot, Dot: dot}

	ts := []Transition{
		{Dot: dot, New: []byte("ok"), DeclaredType: SlotSimple},
		{Dot: dot, New: make([]byte, 64), DeclaredType: SlotSimple},
	}
	diags := v.ValidateBatch(ctx, ts)
	if len(diags) != 2 {
		t.Fatalf("expected 2 diagnostics, got %d", len(diags))
	}
	if diags[0].Blocked() {
		t.Fatalf("first transition should pass cleanly, got %+v", diags[0])
	}
	if !diags[1].Blocked() {
		t.Fatalf("second transition should be blocked by the type rule")
	}
}

func TestInvariantRulePlaceholderPassesWithoutCheck(t *testing.T) {
	r := &InvariantRule{}
	dot := common.BytesToAddress([]byte{0x07})
	res := r.Validate(Context{Caller: dot, Dot: dot}, Transition{Dot: dot})
	if !res.Pass {
		t.Fatalf("expected a placeholder invariant rule to pass: %+v", res)
	}
}
