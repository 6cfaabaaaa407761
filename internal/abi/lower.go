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

package abi

import (
	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
)

// Cursor tracks how many integer/SSE argument registers the classifier
// has already handed out, so Lower can walk a parameter list left to
// right the way the calling convention assigns registers.
type Cursor struct {
	IntIdx   int
	FloatIdx int
}

func (c *Cursor) TakeInt() target.Register {
	r := target.ArgRegInt(c.IntIdx)
	c.IntIdx++
	return r
}

func (c *Cursor) TakeFloat() target.Register {
	r := target.ArgRegFloat(c.FloatIdx)
	c.FloatIdx++
	return r
}

// Lower binds fn's declared parameters to incoming locations and, if
// the function returns a struct classified MEMORY, rewrites it to take
// a hidden pointer first argument (stret) per the System V convention.
func Lower(u *types.Universe, fn *ir.Function) {
	cursor := &Cursor{}

	retType := fn.Type.Ret()
	if retType != nil && !retType.IsVoid() {
		classes := Classify(u, retType)
		if IsMemoryClass(classes) {
			stret := value.NewValue(fn.NewValueID(), value.KArgument, u.Ptr(retType))
			stret.Name = "$stret"
			stret.Loc = value.Location{Where: value.SpecificRegister, Reg: cursor.TakeInt()}
			fn.Stret = stret
		}
	}

	for _, arg := range fn.Args {
		bindArgument(u, cursor, arg)
	}
}

func bindArgument(u *types.Universe, cursor *Cursor, arg *value.Value) {
	t := arg.Type
	if t.IsStruct() {
		classes := Classify(u, t)
		if IsMemoryClass(classes) {
			arg.Loc = value.Location{Where: value.StackOffset, Constraint: value.ConstraintMem}
			return
		}
		// Struct fits in registers: the cursor skips one register per
		// eightbyte so later arguments land in the right registers, but
		// the struct itself is only bound to AnyRegister; none of its
		// eightbytes is pinned to the register it arrives in, and no
		// later pass copies them in.
		for _, c := range classes {
			if c == ClassSSE {
				cursor.TakeFloat()
			} else {
				cursor.TakeInt()
			}
		}
		arg.Loc = value.Location{Where: value.AnyRegister, Constraint: value.ConstraintReg}
		return
	}

	if t.IsFloat() {
		reg := cursor.TakeFloat()
		if reg == target.NoReg {
			arg.Loc = value.Location{Where: value.StackOffset, Constraint: value.ConstraintMem}
			return
		}
		arg.Loc = value.Location{Where: value.SpecificRegister, Reg: reg}
		return
	}

	reg := cursor.TakeInt()
	if reg == target.NoReg {
		arg.Loc = value.Location{Where: value.StackOffset, Constraint: value.ConstraintMem}
		return
	}
	arg.Loc = value.Location{Where: value.SpecificRegister, Reg: reg.AtWidth(u.SizeOf(t))}
}

// LowerCallSites rewrites every call in fn to the outgoing half of the
// System V convention: a MEMORY-classed return reserves the caller a
// stack slot and leas its address into the hidden first argument
// register before anything else is classified; every declared call
// argument is then materialized into an ABI-temp pinned to its
// argument register (or the stack, once the register file runs out) by
// an OpCopy immediately before the call; the call's in-IR argument
// list is cleared once those temps are recorded as the call's real
// operands; and the call is marked with every caller-saved register as
// clobbered. A non-memory result is bound directly to its return
// register(s) so a later copy is free to move it wherever the caller
// actually wants it.
func LowerCallSites(u *types.Universe, fn *ir.Function) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; insn = insn.Next {
			if insn.Op != ir.OpCall {
				continue
			}
			lowerCall(u, fn, insn)
		}
	}
}

func lowerCall(u *types.Universe, fn *ir.Function, insn *ir.Instruction) {
	cursor := &Cursor{}
	memoryReturn := false

	if insn.Result != nil && insn.Result.Type != nil && !insn.Result.Type.IsVoid() {
		if IsMemoryClass(Classify(u, insn.Result.Type)) {
			memoryReturn = true
			bindStretArgument(u, fn, cursor, insn)
		}
	}

	var args []*value.Value
	if memoryReturn {
		args = insn.Args
	}
	for _, arg := range insn.CallArgs {
		temp := materializeOutgoingArgument(u, fn, cursor, arg)
		cp := &ir.Instruction{Op: ir.OpCopy, Args: []*value.Value{arg}, Result: temp}
		cp.InsertBefore(insn)
		args = append(args, temp)
	}
	insn.Args = args
	insn.CallArgs = nil

	insn.Clobbers = append(insn.Clobbers, target.CallerSavedInt...)
	insn.Clobbers = append(insn.Clobbers, target.GPFloatOrder...)

	if insn.Result != nil && !memoryReturn {
		regs := ReturnLocations(u, insn.Result.Type)
		if len(regs) > 0 {
			insn.Result.Loc = value.Location{Where: value.SpecificRegister, Reg: regs[0].AtWidth(u.SizeOf(insn.Result.Type))}
		}
	}
}

// bindStretArgument reserves the caller's stack slot for a MEMORY-classed
// return, leas its address into the hidden first argument register (an
// OpAlloca instruction, reused here purely for the lea codegen it
// already knows how to emit for a register-resident address), and
// points the call's own result directly at that slot: a value too big
// for registers is represented by its memory location throughout this
// IR, the same convention bindArgument already uses for an oversized
// incoming parameter.
func bindStretArgument(u *types.Universe, fn *ir.Function, cursor *Cursor, insn *ir.Instruction) {
	retType := insn.Result.Type
	offset := reserveStackSlot(fn, u, retType)

	stretArg := value.NewValue(fn.NewValueID(), value.KABITemp, u.Ptr(retType))
	stretArg.Loc = value.Location{Where: value.SpecificRegister, Reg: cursor.TakeInt(), Offset: offset}
	lea := &ir.Instruction{Op: ir.OpAlloca, Result: stretArg}
	lea.InsertBefore(insn)

	insn.Args = append(insn.Args, stretArg)
	insn.Result.Loc = value.Location{Where: value.StackOffset, Offset: offset, Constraint: value.ConstraintMem}
}

func materializeOutgoingArgument(u *types.Universe, fn *ir.Function, cursor *Cursor, arg *value.Value) *value.Value {
	t := arg.Type
	temp := value.NewValue(fn.NewValueID(), value.KABITemp, t)

	if t.IsStruct() {
		classes := Classify(u, t)
		if IsMemoryClass(classes) {
			temp.Loc = value.Location{Where: value.StackOffset, Constraint: value.ConstraintMem}
			return temp
		}
		// Struct fits in registers: as in bindArgument, the cursor skips
		// one register per eightbyte and the temp is only bound to
		// AnyRegister; its eightbytes are not placed in those registers.
		for _, c := range classes {
			if c == ClassSSE {
				cursor.TakeFloat()
			} else {
				cursor.TakeInt()
			}
		}
		temp.Loc = value.Location{Where: value.AnyRegister, Constraint: value.ConstraintReg}
		return temp
	}

	if t.IsFloat() {
		reg := cursor.TakeFloat()
		if reg == target.NoReg {
			temp.Loc = value.Location{Where: value.StackOffset, Constraint: value.ConstraintMem}
			return temp
		}
		temp.Loc = value.Location{Where: value.SpecificRegister, Reg: reg}
		return temp
	}

	reg := cursor.TakeInt()
	if reg == target.NoReg {
		temp.Loc = value.Location{Where: value.StackOffset, Constraint: value.ConstraintMem}
		return temp
	}
	temp.Loc = value.Location{Where: value.SpecificRegister, Reg: reg.AtWidth(u.SizeOf(t))}
	return temp
}

// reserveStackSlot bumps fn's frame downward by t's size and returns the
// new offset: the same accounting spill.assignStackSlot performs for a
// spilled value, since a stret buffer is exactly that, just allocated by
// the ABI pass instead of the spiller.
func reserveStackSlot(fn *ir.Function, u *types.Universe, t *types.Type) int {
	size := u.SizeOf(t)
	if size == 0 {
		size = 8
	}
	fn.StackUse += size
	return fn.StackUse
}

// ReturnLocations reports where a value of type t comes back from a
// call: rax/rdx for integers, xmm0/xmm1 for floats, or nil when t is
// MEMORY-classed and the caller must instead pass a stret pointer.
func ReturnLocations(u *types.Universe, t *types.Type) []target.Register {
	if t == nil || t.IsVoid() {
		return nil
	}
	classes := Classify(u, t)
	if IsMemoryClass(classes) {
		return nil
	}
	var regs []target.Register
	intIdx, fltIdx := 0, 0
	for _, c := range classes {
		if c == ClassSSE {
			regs = append(regs, target.ReturnRegsFloat[fltIdx])
			fltIdx++
		} else {
			regs = append(regs, target.ReturnRegsInt[intIdx])
			intIdx++
		}
	}
	return regs
}
