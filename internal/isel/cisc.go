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

package isel

import (
	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/value"
)

// ReserveFixedRegisters pins the operands x86-64 forces into specific
// physical registers: idiv/imod route their dividend through rax,
// sign-extend into rdx via cltd/cqto; div/mod's unsigned counterparts
// route the same way but zero rdx instead of sign-extending into it;
// either way the divisor reads from any register, and variable-count
// shifts route their count through cl. This runs before the generic
// constraint-satisfaction phase so that phase only has to handle the
// operands CISC left free.
func ReserveFixedRegisters(fn *ir.Function) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; insn = insn.Next {
			if insn.Op != ir.OpBinop {
				continue
			}
			switch {
			case insn.BinOp.IsDivMod():
				reserveDivMod(insn)
			case insn.BinOp == ir.BinShl || insn.BinOp == ir.BinShr:
				reserveShift(insn)
			}
		}
	}
}

func reserveDivMod(insn *ir.Instruction) {
	dividend := insn.Args[0]
	dividend.Loc.Where = value.SpecificRegister
	dividend.Loc.Reg = target.RAX

	insn.Result.Loc.Where = value.SpecificRegister
	if insn.BinOp == ir.BinDiv || insn.BinOp == ir.BinUDiv {
		insn.Result.Loc.Reg = target.RAX
	} else {
		insn.Result.Loc.Reg = target.RDX
	}

	insn.Clobbers = append(insn.Clobbers, target.RAX, target.RDX)
	insn.MarkRegUse(0)
}

func reserveShift(insn *ir.Instruction) {
	count := insn.Args[1]
	if count.Kind == value.KLiteral {
		// a constant shift count is encoded as an immediate and never
		// touches cl at all.
		return
	}
	count.Loc.Where = value.SpecificRegister
	count.Loc.Reg = target.RCX.AtWidth(1)
	insn.Clobbers = append(insn.Clobbers, target.RCX)
	insn.MarkRegUse(1)
}
