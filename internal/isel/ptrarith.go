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

// Package isel implements the four instruction selection phases:
// pointer-arithmetic lowering, CISC fixed-register reservation for
// div/mod/shift, memcpy expansion, and generic operand-constraint
// satisfaction.
package isel

import (
	"backend/internal/ir"
	"backend/internal/types"
	"backend/internal/value"
)

// LowerPointerArithmetic rewrites elem/ptradd/ptrsub into plain binops
// on backend-temp values, so later phases only ever see plain binops.
// elem with a compile-time-constant index becomes a single add of a
// constant byte offset; elem with a dynamic index, and ptradd through a
// pointer whose element is wider than one byte, become a multiply by the
// element size followed by an add. ptrsub becomes a plain subtract of its
// two operands; it is not scaled by the element size.
func LowerPointerArithmetic(u *types.Universe, fn *ir.Function) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; {
			next := insn.Next
			switch insn.Op {
			case ir.OpElem:
				lowerElem(u, fn, b, insn)
			case ir.OpPtrAdd:
				if elem, ok := insn.Args[0].Type.Deref(); ok && u.SizeOf(elem) != 1 {
					n := insn.Args[1]
					scaled := value.NewValue(fn.NewValueID(), value.KBackendTemp, n.Type)
					mul := &ir.Instruction{
						Op:     ir.OpBinop,
						BinOp:  ir.BinMul,
						Result: scaled,
						Args:   []*value.Value{n, value.Literal(fn.NewValueID(), n.Type, int64(u.SizeOf(elem)))},
					}
					mul.InsertBefore(insn)
					insn.Args[1] = scaled
				}
				rewriteBinop(insn, ir.BinAdd)
			case ir.OpPtrSub:
				rewriteBinop(insn, ir.BinSub)
			}
			insn = next
		}
	}
}

func rewriteBinop(insn *ir.Instruction, op ir.BinOp) {
	insn.Op = ir.OpBinop
	insn.BinOp = op
}

func lowerElem(u *types.Universe, fn *ir.Function, b *ir.Block, insn *ir.Instruction) {
	base := insn.Args[0]
	elemSize := u.SizeOf(insn.FieldType)

	if insn.HasConstIndex {
		offset := insn.ConstIndex * elemSize
		insn.Op = ir.OpBinop
		insn.BinOp = ir.BinAdd
		lit := value.Literal(fn.NewValueID(), u.Primitive(types.I8), int64(offset))
		insn.Args = []*value.Value{base, lit}
		return
	}

	idx := insn.Args[1]
	scaled := value.NewValue(fn.NewValueID(), value.KBackendTemp, idx.Type)
	mul := &ir.Instruction{
		Op:     ir.OpBinop,
		BinOp:  ir.BinMul,
		Result: scaled,
		Args:   []*value.Value{idx, value.Literal(fn.NewValueID(), idx.Type, int64(elemSize))},
	}
	mul.InsertBefore(insn)

	insn.Op = ir.OpBinop
	insn.BinOp = ir.BinAdd
	insn.Args = []*value.Value{base, scaled}
}
