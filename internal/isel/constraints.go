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
	"backend/internal/value"
)

// Row is one admissible operand-shape for an opcode: x86-64's two-operand
// CISC encodings allow more than one shape (reg,reg / reg,mem / mem,reg)
// but never mem,mem. Each slot names the operand category that shape
// requires.
type Row struct {
	Operands []value.OperandCategory
}

// Table lists every admissible row for one opcode, ordered narrowest
// (fewest conversions usually needed) first; SelectRow still scores
// every row and takes the true minimum, the order here is only a
// tie-break.
var binopTable = []Row{
	{Operands: []value.OperandCategory{value.CategoryRegister, value.CategoryRegister}},
	{Operands: []value.OperandCategory{value.CategoryRegister, value.CategoryMemory}},
	{Operands: []value.OperandCategory{value.CategoryRegister, value.CategoryImmediate}},
	{Operands: []value.OperandCategory{value.CategoryMemory, value.CategoryRegister}},
	{Operands: []value.OperandCategory{value.CategoryMemory, value.CategoryImmediate}},
}

var compareTable = []Row{
	{Operands: []value.OperandCategory{value.CategoryRegister, value.CategoryRegister}},
	{Operands: []value.OperandCategory{value.CategoryRegister, value.CategoryMemory}},
	{Operands: []value.OperandCategory{value.CategoryRegister, value.CategoryImmediate}},
	{Operands: []value.OperandCategory{value.CategoryMemory, value.CategoryImmediate}},
}

// cost counts how many of actual's categories differ from row's, which
// is exactly how many copy instructions satisfying that row would cost.
func cost(row Row, actual []value.OperandCategory) int {
	n := 0
	for i, want := range row.Operands {
		if i >= len(actual) || actual[i] != want {
			n++
		}
	}
	return n
}

// SelectRow picks the admissible row with the fewest conversions needed
// against the operands' actual categories, the table's whole reason for
// existing: avoid inserting a copy when the operand already satisfies
// some other legal shape.
func SelectRow(table []Row, actual []value.OperandCategory) Row {
	best := table[0]
	bestCost := cost(best, actual)
	for _, row := range table[1:] {
		if c := cost(row, actual); c < bestCost {
			best, bestCost = row, c
		}
	}
	return best
}

// SatisfyConstraints runs the generic operand-constraint phase: for
// every binop/compare instruction whose operands don't already satisfy
// any admissible row, insert a copy into a backend-temp ahead of the
// instruction and rewrite the operand to use it.
func SatisfyConstraints(fn *ir.Function) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; insn = insn.Next {
			switch insn.Op {
			case ir.OpBinop:
				satisfy(fn, insn, binopTable)
			case ir.OpCompare:
				satisfy(fn, insn, compareTable)
			}
		}
	}
}

func satisfy(fn *ir.Function, insn *ir.Instruction, table []Row) {
	actual := make([]value.OperandCategory, len(insn.Args))
	for i, a := range insn.Args {
		actual[i] = a.OperandCategory()
	}
	row := SelectRow(table, actual)
	for i, want := range row.Operands {
		arg := insn.Args[i]
		if insn.IsRegUseMarked(i) {
			continue // CISC reservation already pinned this operand
		}
		if arg.OperandCategory() == want {
			continue
		}
		insn.Args[i] = insertConversion(fn, insn, arg, want)
	}
}

// insertConversion materializes arg into a category-compliant
// backend-temp ahead of insn via a plain copy instruction.
func insertConversion(fn *ir.Function, insn *ir.Instruction, arg *value.Value, want value.OperandCategory) *value.Value {
	tmp := value.NewValue(fn.NewValueID(), value.KBackendTemp, arg.Type)
	if want == value.CategoryRegister {
		tmp.Loc = value.Location{Where: value.AnyRegister, Constraint: value.ConstraintReg}
	} else {
		tmp.Loc = value.Location{Where: value.AnyRegister, Constraint: value.ConstraintMem}
	}
	copyInsn := &ir.Instruction{Op: ir.OpCopy, Result: tmp, Args: []*value.Value{arg}}
	copyInsn.InsertBefore(insn)
	return tmp
}
