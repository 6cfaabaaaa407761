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

package regalloc

import (
	"backend/internal/ir"
	"backend/internal/value"
)

// MirrorABITemps folds an ABI-temp copy of an argument/return value
// that is still sitting in its ABI-mandated register into that same
// register instead of picking a fresh one: `call` lowering materializes
// arguments into ABI-temps ahead of the call, and when the source value
// already lives in the exact register the ABI wants, the copy is free.
// It only looks at ABI-temp copies whose temp is already pinned to a
// specific register; cmd/backendc runs it just before Run.
func MirrorABITemps(fn *ir.Function) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; insn = insn.Next {
			if insn.Op != ir.OpCopy || insn.Result.Kind != value.KABITemp {
				continue
			}
			src := insn.Args[0]
			want := insn.Result.Loc
			if want.Where != value.SpecificRegister {
				continue
			}
			if src.Loc.Where == value.SpecificRegister && src.Loc.Reg.Affinity == want.Reg.Affinity {
				// src is already exactly where the ABI wants the temp:
				// the copy becomes a no-op, so retarget every later use
				// of the temp to read src directly and drop the copy.
				replaceUses(fn, insn.Result, src)
				insn.Unlink()
			}
		}
	}
}

func replaceUses(fn *ir.Function, from, to *value.Value) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; insn = insn.Next {
			for i, a := range insn.Args {
				if a == from {
					insn.Args[i] = to
				}
			}
			for i, a := range insn.CallArgs {
				if a == from {
					insn.CallArgs[i] = to
				}
			}
			if insn.Callee == from {
				insn.Callee = to
			}
		}
	}
}
