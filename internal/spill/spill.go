// Copyright (c) 2024 The Falcon Contributors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

// Package spill implements the spill pass: per-block register-pressure
// tracking, unconditional spilling of values that live across a block
// boundary, and a fallback eviction heuristic when pressure still
// exceeds the physical register file within one block.
package spill

import (
	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
)

// budget is how many general-purpose integer registers the allocator
// can hand out per block before the fallback heuristic has to start
// evicting, matching target.GPIntegerOrder's length minus the
// registers CISC reservation already pinned for div/mod/shift.
var budget = len(target.GPIntegerOrder) - 2

// Run spills every value that ComputeLifetimes marked as living across
// a block boundary to a stack slot unconditionally — cross-block values
// never get a register home from this pass, only spill/regalloc's
// block-local pass does that — and then, within each block, evicts the
// least-recently-defined still-live value to a fallback slot whenever
// register pressure would exceed budget.
func Run(u *types.Universe, fn *ir.Function) {
	ir.ComputeLifetimes(fn)

	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; insn = insn.Next {
			if insn.Result != nil && insn.Result.LivesAcrossBlocks {
				assignStackSlot(u, fn, insn.Result)
			}
		}
	}
	for _, arg := range fn.Args {
		if arg.LivesAcrossBlocks && arg.Loc.Where != value.StackOffset {
			// an incoming argument that survives past its entry block
			// still needs a stable home once the allocator starts
			// reusing its register for something else.
			assignStackSlot(u, fn, arg)
		}
	}

	for _, b := range fn.Blocks {
		runFallbackEviction(u, fn, b)
	}
}

func assignStackSlot(u *types.Universe, fn *Function, v *value.Value) {
	slotSize := u.SizeOf(v.Type)
	if slotSize == 0 {
		slotSize = 8
	}
	fn.StackUse += slotSize
	v.Loc = value.Location{Where: value.StackOffset, Offset: fn.StackUse, Constraint: value.ConstraintMem}
}

// Function is a type alias kept local so assignStackSlot's signature
// reads naturally; internal/ir.Function is used directly everywhere
// else in this file.
type Function = ir.Function

// runFallbackEviction walks a block counting the register-resident
// values it has seen so far; a value stays in the count after its last
// use, so the count never goes down within the block. Once that count
// would exceed budget, it evicts the value that entered the count
// earliest, keeping recently-defined values in registers.
func runFallbackEviction(u *types.Universe, fn *Function, b *ir.Block) {
	live := make(map[*value.Value]int) // value -> insertion order
	order := 0

	for insn := b.First(); insn != nil; insn = insn.Next {
		for _, arg := range insn.Args {
			if !arg.CanMove() || arg.Loc.Where == value.StackOffset {
				continue
			}
			if _, ok := live[arg]; !ok {
				live[arg] = order
				order++
			}
		}

		for len(live) > budget {
			oldest := evictOldest(live)
			assignStackSlot(u, fn, oldest)
			delete(live, oldest)
		}

		if insn.Result != nil && insn.Result.CanMove() && insn.Result.Loc.Where != value.StackOffset {
			live[insn.Result] = order
			order++
		}
	}
}

func evictOldest(live map[*value.Value]int) *value.Value {
	var oldest *value.Value
	best := int(^uint(0) >> 1)
	for v, seq := range live {
		if seq < best {
			best = seq
			oldest = v
		}
	}
	return oldest
}
