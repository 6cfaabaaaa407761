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
	"backend/internal/types"
	"backend/internal/value"
)

// memcpyLoopThreshold is the byte count above which ExpandMemcpy emits
// a counted loop instead of a straight-line run of load/store pairs;
// below it, unrolling is cheaper than the loop overhead.
const memcpyLoopThreshold = 64

// ExpandMemcpy rewrites every OpMemcpy into explicit load/store pairs:
// small, compile-time-known sizes unroll into a straight-line run of
// 8/4/2/1-byte load-store pairs covering the size exactly; larger sizes
// expand into an 8-byte-stride loop followed by a straight-line tail for
// the remainder.
func ExpandMemcpy(u *types.Universe, fn *ir.Function) {
	for _, b := range fn.Blocks {
		for insn := b.First(); insn != nil; {
			next := insn.Next
			if insn.Op == ir.OpMemcpy {
				expandOne(u, fn, b, insn)
			}
			insn = next
		}
	}
}

func expandOne(u *types.Universe, fn *ir.Function, b *ir.Block, insn *ir.Instruction) {
	dst, src, size := insn.Args[0], insn.Args[1], insn.Size

	if size <= memcpyLoopThreshold {
		before := insertBeforeFunc(insn)
		unrolled(u, fn, before, dst, src, size)
		insn.Unlink()
		return
	}

	loopAndTail(u, fn, b, insn, dst, src, size)
	insn.Unlink()
}

// inserter appends an instruction at some fixed point chosen by the
// caller, either "before a given instruction" or "at the end of a given
// block" — unrolled/offsetPointer don't need to know which.
type inserter func(*ir.Instruction)

func insertBeforeFunc(mark *ir.Instruction) inserter {
	return func(insn *ir.Instruction) { insn.InsertBefore(mark) }
}

func appendToFunc(b *ir.Block) inserter {
	return func(insn *ir.Instruction) { b.Append(insn) }
}

// unrolled covers size bytes with the widest strides that fit, largest
// first, so e.g. a 13-byte copy becomes one 8-byte, one 4-byte and one
// 1-byte load/store pair.
func unrolled(u *types.Universe, fn *ir.Function, insert inserter, dst, src *value.Value, size int) {
	strides := []struct {
		bytes int
		prim  types.Primitive
	}{{8, types.I8}, {4, types.I4}, {2, types.I2}, {1, types.I1}}

	offset := 0
	for _, s := range strides {
		for size-offset >= s.bytes {
			emitChunkCopy(u, fn, insert, dst, src, offset, s.prim)
			offset += s.bytes
		}
	}
}

func emitChunkCopy(u *types.Universe, fn *ir.Function, insert inserter, dst, src *value.Value, offset int, prim types.Primitive) {
	pt := u.Primitive(prim)
	ptr := u.Ptr(pt)

	srcAddr := offsetPointer(u, fn, insert, src, offset, ptr)
	dstAddr := offsetPointer(u, fn, insert, dst, offset, ptr)

	loaded := value.NewValue(fn.NewValueID(), value.KBackendTemp, pt)
	insert(&ir.Instruction{Op: ir.OpLoad, Result: loaded, Args: []*value.Value{srcAddr}})
	insert(&ir.Instruction{Op: ir.OpStore, Args: []*value.Value{dstAddr, loaded}})
}

func offsetPointer(u *types.Universe, fn *ir.Function, insert inserter, base *value.Value, offset int, wantType *types.Type) *value.Value {
	if offset == 0 {
		return base
	}
	result := value.NewValue(fn.NewValueID(), value.KBackendTemp, wantType)
	insert(&ir.Instruction{
		Op:     ir.OpBinop,
		BinOp:  ir.BinAdd,
		Result: result,
		Args:   []*value.Value{base, value.Literal(fn.NewValueID(), u.Primitive(types.I8), int64(offset))},
	})
	return result
}

// loopAndTail expands a large memcpy into an 8-byte-stride counted loop
// (one pair of induction-variable-indexed load/stores) plus a
// straight-line tail for size % 8 leftover bytes. mark sits in the
// middle of b, so the block is split at mark: everything before it
// stays in b and falls into the loop preheader, everything after it is
// relocated to a continuation block the tail falls into.
func loopAndTail(u *types.Universe, fn *ir.Function, b *ir.Block, mark *ir.Instruction, dst, src *value.Value, size int) {
	strideCount := size / 8
	tailBytes := size % 8

	cont := fn.NewBlockAfter(b, "memcpy.cont")
	relocateTail(b, mark, cont)

	i8 := u.Primitive(types.I8)

	if strideCount == 0 {
		// nothing to loop over, the tail alone covers the whole copy.
		unrolled(u, fn, appendToFunc(b), dst, src, tailBytes)
		appendJump(b, cont)
		return
	}

	loopBody := fn.NewBlockAfter(b, "memcpy.loop")
	loopExit := fn.NewBlockAfter(loopBody, "memcpy.tail")

	// The instruction stream has no phi node, so a value carried around a
	// back edge needs a stack slot rather than a Value identity: the
	// induction counter lives in an alloca, reloaded and restored each
	// iteration.
	counterSlot := value.NewValue(fn.NewValueID(), value.KAlloca, u.Ptr(i8))
	b.Append(&ir.Instruction{Op: ir.OpAlloca, Result: counterSlot})
	b.Append(&ir.Instruction{Op: ir.OpStore, Args: []*value.Value{counterSlot, value.Literal(fn.NewValueID(), i8, 0)}})
	appendJump(b, loopBody)

	induction := value.NewValue(fn.NewValueID(), value.KBackendTemp, i8)
	loopBody.Append(&ir.Instruction{Op: ir.OpLoad, Result: induction, Args: []*value.Value{counterSlot}})

	srcElem := value.NewValue(fn.NewValueID(), value.KBackendTemp, u.Ptr(i8))
	loopBody.Append(&ir.Instruction{Op: ir.OpBinop, BinOp: ir.BinAdd, Result: srcElem, Args: []*value.Value{src, induction}})

	dstElem := value.NewValue(fn.NewValueID(), value.KBackendTemp, u.Ptr(i8))
	loopBody.Append(&ir.Instruction{Op: ir.OpBinop, BinOp: ir.BinAdd, Result: dstElem, Args: []*value.Value{dst, induction}})

	loaded := value.NewValue(fn.NewValueID(), value.KBackendTemp, i8)
	loopBody.Append(&ir.Instruction{Op: ir.OpLoad, Result: loaded, Args: []*value.Value{srcElem}})
	loopBody.Append(&ir.Instruction{Op: ir.OpStore, Args: []*value.Value{dstElem, loaded}})

	nextInduction := value.NewValue(fn.NewValueID(), value.KBackendTemp, i8)
	loopBody.Append(&ir.Instruction{
		Op: ir.OpBinop, BinOp: ir.BinAdd, Result: nextInduction,
		Args: []*value.Value{induction, value.Literal(fn.NewValueID(), i8, 8)},
	})
	loopBody.Append(&ir.Instruction{Op: ir.OpStore, Args: []*value.Value{counterSlot, nextInduction}})

	cond := value.NewValue(fn.NewValueID(), value.KBackendTemp, u.Primitive(types.I1))
	loopBody.Append(&ir.Instruction{
		Op: ir.OpCompare, CmpOp: ir.CmpLT, Result: cond,
		Args: []*value.Value{nextInduction, value.Literal(fn.NewValueID(), i8, int64(strideCount*8))},
	})
	loopBody.Append(&ir.Instruction{Op: ir.OpBranch, Args: []*value.Value{cond}, TrueTarget: loopBody, FalseTarget: loopExit})

	if tailBytes > 0 {
		exitInsert := appendToFunc(loopExit)
		tailDst := offsetPointer(u, fn, exitInsert, dst, strideCount*8, u.Ptr(i8))
		tailSrc := offsetPointer(u, fn, exitInsert, src, strideCount*8, u.Ptr(i8))
		unrolled(u, fn, exitInsert, tailDst, tailSrc, tailBytes)
	}
	appendJump(loopExit, cont)
}

func appendJump(b *ir.Block, target *ir.Block) {
	b.Append(&ir.Instruction{Op: ir.OpJump, Target: target})
}

// relocateTail moves every instruction strictly after mark in b's list
// (mark itself stays, its caller removes it separately) into cont, and
// truncates b's list at mark so b can legally receive a new terminator.
func relocateTail(b *ir.Block, mark *ir.Instruction, cont *ir.Block) {
	for insn := mark.Next; insn != nil; {
		next := insn.Next
		insn.Unlink()
		cont.Append(insn)
		insn = next
	}
	b.Term = ir.TermUnknown
}
