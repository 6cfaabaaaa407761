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

package ir

import (
	"fmt"
	"strings"

	"backend/utils"
)

// Print renders a function to the textual IR form described by the
// target-agnostic "ir-ir" echo arch: enough to round-trip through Parse
// for the functions this package itself can build.
func Print(fn *Function) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "fn %s %s {\n", fn.Name, fn.Type.String())
	for _, b := range fn.Blocks {
		fmt.Fprintf(&sb, "%s:\n", b.Name)
		for insn := b.First(); insn != nil; insn = insn.Next {
			sb.WriteString("  ")
			sb.WriteString(printInstruction(insn))
			sb.WriteString("\n")
		}
	}
	sb.WriteString("}\n")
	return sb.String()
}

func printInstruction(insn *Instruction) string {
	res := ""
	if insn.Result != nil {
		res = insn.Result.String() + " = "
	}
	switch insn.Op {
	case OpLoad:
		return fmt.Sprintf("%sload %s", res, insn.Args[0])
	case OpStore:
		return fmt.Sprintf("store %s, %s", insn.Args[0], insn.Args[1])
	case OpAlloca:
		elem, ok := insn.Result.Type.Deref()
		utils.Assert(ok, "alloca result %v must be a pointer type", insn.Result.Type)
		return fmt.Sprintf("%salloca %s", res, elem)
	case OpElem:
		if insn.HasConstIndex {
			return fmt.Sprintf("%selem %s, %d", res, insn.Args[0], insn.ConstIndex)
		}
		return fmt.Sprintf("%selem %s, %s", res, insn.Args[0], insn.Args[1])
	case OpPtrAdd:
		return fmt.Sprintf("%sptradd %s, %s", res, insn.Args[0], insn.Args[1])
	case OpPtrSub:
		return fmt.Sprintf("%sptrsub %s, %s", res, insn.Args[0], insn.Args[1])
	case OpBinop:
		return fmt.Sprintf("%s%s %s, %s", res, insn.BinOp, insn.Args[0], insn.Args[1])
	case OpCompare:
		return fmt.Sprintf("%scompare.%s %s, %s", res, insn.CmpOp, insn.Args[0], insn.Args[1])
	case OpCopy:
		return fmt.Sprintf("%scopy %s", res, insn.Args[0])
	case OpMemcpy:
		return fmt.Sprintf("memcpy %s, %s, %d", insn.Args[0], insn.Args[1], insn.Size)
	case OpExtend:
		return fmt.Sprintf("%sextend %s -> %s", res, insn.Args[0], insn.ToType)
	case OpTruncate:
		return fmt.Sprintf("%struncate %s -> %s", res, insn.Args[0], insn.ToType)
	case OpCast:
		return fmt.Sprintf("%scast %s -> %s", res, insn.Args[0], insn.ToType)
	case OpReturn:
		if len(insn.Args) == 0 {
			return "return"
		}
		return fmt.Sprintf("return %s", insn.Args[0])
	case OpBranch:
		return fmt.Sprintf("branch %s, %s, %s", insn.Args[0], insn.TrueTarget.Name, insn.FalseTarget.Name)
	case OpJump:
		return fmt.Sprintf("jump %s", insn.Target.Name)
	case OpLabel:
		return fmt.Sprintf("label %s", insn.LabelOf.Name)
	case OpCall:
		parts := make([]string, len(insn.CallArgs))
		for i, a := range insn.CallArgs {
			parts[i] = a.String()
		}
		return fmt.Sprintf("%scall %s(%s)", res, insn.Callee, strings.Join(parts, ", "))
	case OpAsm:
		return fmt.Sprintf("asm %q", insn.AsmText)
	case OpImplicitUseBegin:
		return "implicit_use_begin"
	case OpImplicitUseEnd:
		return "implicit_use_end"
	}
	panic("unreachable opcode")
}
