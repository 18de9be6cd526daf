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

package isolation

import "github.com/dotlanth/dotdb/mvcc"

// DescribeIsolationLevel returns a one-line human description of level, for
// diagnostics/CLI output — never consulted by the enforcement path itself.
func DescribeIsolationLevel(level mvcc.IsolationLevel) string {
	switch level {
	case mvcc.ReadUncommitted:
		return "Read Uncommitted: no read lock, no MVCC filter; dirty reads possible."
	case mvcc.ReadCommitted:
		return "Read Committed: MVCC visibility only; reads see versions committed up to the transaction's snapshot."
	case mvcc.RepeatableRead:
		return "Repeatable Read: shared locks plus MVCC; repeated reads are stable."
	case mvcc.Serializable:
		return "Serializable: Repeatable Read plus a reserved serialization hook."
	default:
		return "unknown isolation level"
	}
}

// RequiresLocking reports whether level acquires page locks on read.
func RequiresLocking(level mvcc.IsolationLevel) bool {
	return level == mvcc.RepeatableRead || level == mvcc.Serializable
}

// UsesMVCC reports whether level's reads are filtered by MVCC visibility.
func UsesMVCC(level mvcc.IsolationLevel) bool {
	return level != mvcc.ReadUncommitted
}

// RecommendedIsolationLevel suggests a level for a named use case; it is a
// helper for operators/CLI output, not a validity constraint.
func RecommendedIsolationLevel(useCase string) mvcc.IsolationLevel {
	switch useCase {
	case "analytics", "reporting":
		return mvcc.ReadCommitted
	case "financial", "ledger", "transfer":
		return mvcc.Serializable
	case "inventory", "counters":
		return mvcc.RepeatableRead
	default:
		return mvcc.ReadCommitted
	}
}
