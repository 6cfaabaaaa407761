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

package emit

import (
	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
	"backend/utils"
)

// instruction emits one already-selected, already-allocated IR
// instruction. By this point OpElem/OpPtrAdd/OpPtrSub (lowered by
// isel.LowerPointerArithmetic) and OpMemcpy (expanded by
// isel.ExpandMemcpy) must no longer appear in the stream.
func (e *Emitter) instruction(fn *ir.Function, b *ir.Block, insn *ir.Instruction, epilogue string) {
	if insn.Comment != "" {
		e.comment(insn.Comment)
	}
	switch insn.Op {
	case ir.OpLoad:
		e.load(insn)
	case ir.OpStore:
		e.store(insn)
	case ir.OpAlloca:
		e.alloca(insn)
	case ir.OpBinop:
		e.binop(insn)
	case ir.OpCompare:
		e.compare(insn)
	case ir.OpCopy:
		e.copy(insn)
	case ir.OpExtend:
		e.extend(insn)
	case ir.OpTruncate:
		e.truncate(insn)
	case ir.OpCast:
		e.cast(insn)
	case ir.OpReturn:
		e.ret_(fn, insn, epilogue)
	case ir.OpBranch:
		e.branch(b, insn)
	case ir.OpJump:
		e.jump(b, insn)
	case ir.OpCall:
		e.call(insn)
	case ir.OpAsm:
		e.asm(insn)
	case ir.OpImplicitUseBegin, ir.OpImplicitUseEnd, ir.OpLabel:
		// pure liveness/bookkeeping markers, nothing to emit
	case ir.OpElem, ir.OpPtrAdd, ir.OpPtrSub, ir.OpMemcpy:
		utils.Assert(false, "instruction selection should have rewritten %v before emission", insn.Op)
	default:
		utils.Unimplement()
	}
}

func (e *Emitter) load(insn *ir.Instruction) {
	addr := insn.Args[0]
	dst := insn.Result
	e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.memOperand(addr), e.operand(dst))
}

func (e *Emitter) store(insn *ir.Instruction) {
	addr, src := insn.Args[0], insn.Args[1]
	e.line("  mov%s %s, %s\n", e.suffixOf(src), e.operand(src), e.memOperand(addr))
}

// memOperand renders a pointer value as a dereferenced address: a
// pointer sitting in a register becomes (%reg), a pointer sitting on
// the stack (e.g. an alloca slot, addressed directly rather than
// loaded first) becomes its own stack operand.
func (e *Emitter) memOperand(ptr *value.Value) string {
	if ptr.Kind == value.KAlloca {
		return e.operand(ptr)
	}
	switch ptr.Loc.Where {
	case value.SpecificRegister:
		return "(" + e.reg(ptr.Loc.Reg) + ")"
	case value.StackOffset:
		return e.operand(ptr)
	}
	utils.Assert(false, "pointer value %v has no addressable location", ptr)
	return "<bad-addr>"
}

func (e *Emitter) alloca(insn *ir.Instruction) {
	// The slot already has a stack Location from the spill pass; taking
	// its address just means computing rbp+offset into the result
	// register with lea, when the result needs to live in a register at
	// all (a KAlloca value addressed directly by memOperand never does).
	dst := insn.Result
	if dst.Loc.Where != value.SpecificRegister {
		return
	}
	e.line("  leaq -%d(%%rbp), %s\n", dst.Loc.Offset, e.reg(dst.Loc.Reg))
}

func (e *Emitter) mnemonicFor(op ir.BinOp, isFloat bool) string {
	switch op {
	case ir.BinAdd:
		return "add"
	case ir.BinSub:
		return "sub"
	case ir.BinMul:
		if isFloat {
			return "mul"
		}
		return "imul"
	case ir.BinAnd:
		return "and"
	case ir.BinOr:
		return "or"
	case ir.BinXor:
		return "xor"
	case ir.BinShl:
		return "sal"
	case ir.BinShr:
		return "sar"
	}
	utils.Unimplement()
	return ""
}

// binop assumes the generic constraint pass has already arranged
// operands into an admissible two-operand shape and CISC reservation
// has pinned div/mod/shift operands into their fixed registers; this
// only has to pick the mnemonic and render whatever is left.
func (e *Emitter) binop(insn *ir.Instruction) {
	lhs, rhs, dst := insn.Args[0], insn.Args[1], insn.Result
	isFloat := dst.Type != nil && dst.Type.IsFloat()

	switch {
	case insn.BinOp.IsDivMod():
		e.divmod(insn)
		return
	case insn.BinOp == ir.BinShl || insn.BinOp == ir.BinShr:
		e.shift(insn)
		return
	}

	if lhs != dst {
		e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.operand(lhs), e.operand(dst))
	}
	mnemonic := e.mnemonicFor(insn.BinOp, isFloat)
	e.line("  %s%s %s, %s\n", mnemonic, e.suffixOf(dst), e.operand(rhs), e.operand(dst))
}

// divmod implements both div/mod families: dividend must already be
// pinned to rax (isel.ReserveFixedRegisters). The signed family
// sign-extends rax into rdx:rax/edx:eax via cltd/cqto before idiv; the
// unsigned family instead zeroes rdx with xor so div reads an
// unsigned dividend, per spec §4.5.B. Either way the quotient comes
// back in rax (BinDiv/BinUDiv) or the remainder in rdx (BinMod/BinUMod).
func (e *Emitter) divmod(insn *ir.Instruction) {
	lhs, rhs, dst := insn.Args[0], insn.Args[1], insn.Result
	width := e.u.SizeOf(lhs.Type)
	if width == 0 {
		width = 8
	}

	signed := insn.BinOp == ir.BinDiv || insn.BinOp == ir.BinMod
	if signed {
		switch width {
		case 2:
			e.line("  cwtd\n")
		case 4:
			e.line("  cltd\n")
		default:
			e.line("  cqto\n")
		}
	} else {
		e.line("  xor%s %s, %s\n", suffixForBytes(width, false), e.reg(target.RDX.AtWidth(width)), e.reg(target.RDX.AtWidth(width)))
	}

	divisor := e.operand(rhs)
	mnemonic := "idiv"
	if !signed {
		mnemonic = "div"
	}
	e.line("  %s%s %s\n", mnemonic, suffixForBytes(width, false), divisor)

	resultReg := target.RAX
	if insn.BinOp == ir.BinMod || insn.BinOp == ir.BinUMod {
		resultReg = target.RDX
	}
	if dst.Loc.Where == value.SpecificRegister && dst.Loc.Reg.Affinity == resultReg.Affinity {
		return
	}
	e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.reg(resultReg.AtWidth(width)), e.operand(dst))
}

// shift expects its count operand already pinned to %cl by
// isel.ReserveFixedRegisters when the count is not a compile-time
// literal.
func (e *Emitter) shift(insn *ir.Instruction) {
	lhs, rhs, dst := insn.Args[0], insn.Args[1], insn.Result
	if lhs != dst {
		e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.operand(lhs), e.operand(dst))
	}
	mnemonic := e.mnemonicFor(insn.BinOp, false)
	count := "%cl"
	if rhs.Kind == value.KLiteral {
		count = e.operand(rhs)
	}
	e.line("  %s%s %s, %s\n", mnemonic, e.suffixOf(dst), count, e.operand(dst))
}

func (e *Emitter) setccSuffix(op ir.CmpOp) string {
	switch op {
	case ir.CmpEQ:
		return "e"
	case ir.CmpNE:
		return "ne"
	case ir.CmpLT:
		return "l"
	case ir.CmpLE:
		return "le"
	case ir.CmpGT:
		return "g"
	case ir.CmpGE:
		return "ge"
	}
	utils.Unimplement()
	return ""
}

func (e *Emitter) compare(insn *ir.Instruction) {
	lhs, rhs, dst := insn.Args[0], insn.Args[1], insn.Result
	e.line("  cmp%s %s, %s\n", e.suffixOf(lhs), e.operand(rhs), e.operand(lhs))
	if dst.Loc.Where == value.SpecificRegister {
		low := dst.Loc.Reg.AtWidth(1)
		e.line("  set%s %s\n", e.setccSuffix(insn.CmpOp), e.reg(low))
		if dst.Loc.Reg.Bytes > 1 {
			e.line("  movzb%s %s, %s\n", e.suffixOf(dst), e.reg(low), e.operand(dst))
		}
	} else {
		// result lives on the stack: materialize through the scratch
		// register since setcc only ever targets a register operand.
		scratchB := e.scratch.AtWidth(1)
		e.line("  set%s %s\n", e.setccSuffix(insn.CmpOp), e.reg(scratchB))
		e.line("  movzb%s %s, %s\n", e.suffixOf(dst), e.reg(scratchB), e.reg(e.scratch.AtWidth(e.u.SizeOf(dst.Type))))
		e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.reg(e.scratch.AtWidth(e.u.SizeOf(dst.Type))), e.operand(dst))
	}
}

// copy renders a plain move, routing through the scratch register when
// both sides are memory operands, since x86 has no mem-to-mem mov.
func (e *Emitter) copy(insn *ir.Instruction) {
	src, dst := insn.Args[0], insn.Result
	if src.Loc.Where == value.StackOffset && dst.Loc.Where == value.StackOffset {
		width := e.u.SizeOf(dst.Type)
		if width == 0 {
			width = 8
		}
		tmp := e.scratch.AtWidth(width)
		e.line("  mov%s %s, %s\n", e.suffixOf(src), e.operand(src), e.reg(tmp))
		e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.reg(tmp), e.operand(dst))
		return
	}
	e.movReg2(src, dst)
}

func (e *Emitter) movReg2(src, dst *value.Value) {
	e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.operand(src), e.operand(dst))
}

func (e *Emitter) movReg(src, dst target.Register) {
	e.line("  movq %s, %s\n", e.reg(src), e.reg(dst))
}

// extend widens FromType to ToType: movzx for an unsigned source,
// movsx for signed. The IR's primitive set has no explicit
// signedness, so, matching the original front end's convention, every
// integer is treated as signed except i1 (booleans from compare),
// which zero-extends.
func (e *Emitter) extend(insn *ir.Instruction) {
	src, dst := insn.Args[0], insn.Result
	fromBytes := e.u.SizeOf(insn.FromType)
	toBytes := e.u.SizeOf(insn.ToType)
	mnemonic := "movs"
	if insn.FromType.IsPrimitive() && insn.FromType.Prim() == types.I1 {
		mnemonic = "movz"
	}
	e.line("  %s%s%s %s, %s\n", mnemonic,
		suffixForBytes(fromBytes, false), suffixForBytes(toBytes, false),
		e.operand(src), e.operand(dst))
}

// truncate narrows a value in place: x86 has no truncating move, the
// low bytes of the wider register already are the narrower value, so
// this only has to move between locations at the narrower width.
func (e *Emitter) truncate(insn *ir.Instruction) {
	src, dst := insn.Args[0], insn.Result
	e.line("  mov%s %s, %s\n", e.suffixOf(dst), e.operand(src), e.operand(dst))
}

func (e *Emitter) cast(insn *ir.Instruction) {
	src, dst := insn.Args[0], insn.Result
	switch {
	case insn.FromType.IsFloat() && !insn.ToType.IsFloat():
		e.line("  cvttsd2si %s, %s\n", e.operand(src), e.operand(dst))
	case !insn.FromType.IsFloat() && insn.ToType.IsFloat():
		e.line("  cvtsi2sd %s, %s\n", e.operand(src), e.operand(dst))
	default:
		// same-size reinterpret, e.g. pointer<->integer: a plain move.
		e.movReg2(src, dst)
	}
}

func (e *Emitter) ret_(fn *ir.Function, insn *ir.Instruction, epilogue string) {
	if len(insn.Args) > 0 {
		e.placeReturnValue(insn.Args[0])
	}
	e.line("  jmp %s\n", epilogue)
}

// placeReturnValue moves a single scalar return value into rax/xmm0,
// matching the ABI lowering pass's ReturnLocations ordering; a struct
// return went through the hidden-pointer (stret) path already and
// never reaches ret_ with an Args[0] to move at all.
func (e *Emitter) placeReturnValue(v *value.Value) {
	if v.Type != nil && v.Type.IsFloat() {
		if v.Loc.Where == value.SpecificRegister && v.Loc.Reg.Affinity == target.XMM0.Affinity {
			return
		}
		e.line("  movsd %s, %%xmm0\n", e.operand(v))
		return
	}
	if v.Loc.Where == value.SpecificRegister && v.Loc.Reg.Affinity == target.RAX.Affinity {
		return
	}
	width := e.u.SizeOf(v.Type)
	if width == 0 {
		width = 8
	}
	e.line("  mov%s %s, %s\n", suffixForBytes(width, false), e.operand(v), e.reg(target.RAX.AtWidth(width)))
}

func (e *Emitter) branch(b *ir.Block, insn *ir.Instruction) {
	cond := insn.Args[0]
	e.line("  test%s %s, %s\n", e.suffixOf(cond), e.operand(cond), e.operand(cond))
	e.line("  jne %s\n", e.blockLabel(insn.TrueTarget))
	e.fallthroughOrJump(b, insn.FalseTarget)
}

func (e *Emitter) jump(b *ir.Block, insn *ir.Instruction) {
	e.fallthroughOrJump(b, insn.Target)
}

// fallthroughOrJump omits the jmp when target is the next block in the
// function's layout order, the one peephole this emitter performs.
func (e *Emitter) fallthroughOrJump(from *ir.Block, target *ir.Block) {
	fn := from.Fn
	for i, blk := range fn.Blocks {
		if blk == from {
			if i+1 < len(fn.Blocks) && fn.Blocks[i+1] == target {
				return
			}
			break
		}
	}
	e.line("  jmp %s\n", e.blockLabel(target))
}

func (e *Emitter) call(insn *ir.Instruction) {
	callee := insn.Callee
	var rendered string
	if callee.Kind == value.KGlobal {
		rendered = e.tgt.Decorate(callee.Name)
	} else {
		rendered = e.operand(callee)
	}
	e.line("  call %s\n", rendered)
}

func (e *Emitter) asm(insn *ir.Instruction) {
	e.line("  %s\n", insn.AsmText)
}
