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

// Package emit lowers a function that has already been through ABI
// lowering, instruction selection, spilling and register allocation
// into AT&T-syntax x86-64 assembly text. Unlike a "no register
// allocation" emitter that treats every value as a stack slot, this one
// trusts value.Location: a value already bound to a SpecificRegister is
// addressed as that register, only a StackOffset location becomes a
// memory operand.
package emit

import (
	"fmt"
	"strings"

	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/types"
	"backend/utils"
)

// Emitter accumulates assembly text for one compilation unit. One
// Emitter is reused across every function so label numbering stays
// unique across the whole module, mirroring the teacher assembler's
// per-unit funcIndex scheme.
type Emitter struct {
	buf strings.Builder

	u   *types.Universe
	tgt target.Target

	funcIndex int

	// scratch is the caller-saved register reserved for operand shuffling
	// the register allocator did not need (materializing a mem-to-mem
	// copy, or a compare result bound for a stack slot instead of a
	// register). Picked once: r11, which internal/regalloc keeps out of
	// its pool.
	scratch target.Register
}

func New(u *types.Universe, tgt target.Target) *Emitter {
	return &Emitter{u: u, tgt: tgt, scratch: target.R11}
}

func (e *Emitter) String() string { return e.buf.String() }

func (e *Emitter) comment(s string) {
	e.buf.WriteString(fmt.Sprintf("  # %s\n", s))
}

func (e *Emitter) line(format string, args ...interface{}) {
	e.buf.WriteString(fmt.Sprintf(format, args...))
}

// Function emits one function's prologue, body and epilogue. The frame
// size is fn.StackUse rounded up to 16, which the earlier passes have
// already settled, so it is written out before the body.
func (e *Emitter) Function(fn *ir.Function) {
	if e.tgt.Arch == target.ArchIR {
		e.functionIR(fn)
		return
	}

	e.funcIndex++
	name := e.tgt.Decorate(fn.Name)

	e.line("  .text\n")
	e.line("  .globl %s\n", name)
	e.line("%s:\n", name)
	e.comment("prologue")
	e.push(target.RBP)
	e.movReg(target.RSP, target.RBP)

	frameSize := utils.Align16(fn.StackUse)
	if frameSize > 0 {
		e.line("  subq $%d, %%rsp\n", frameSize)
	}

	epilogue := e.localLabel("epilogue")
	for _, b := range fn.Blocks {
		e.block(fn, b, epilogue)
	}

	e.line("%s:\n", epilogue)
	e.comment("epilogue")
	if frameSize > 0 {
		e.line("  addq $%d, %%rsp\n", frameSize)
	}
	e.pop(target.RBP)
	e.ret()
}

func (e *Emitter) localLabel(suffix string) string {
	return fmt.Sprintf(".F%d_%s", e.funcIndex, suffix)
}

func (e *Emitter) blockLabel(b *ir.Block) string {
	return fmt.Sprintf(".F%d_%s", e.funcIndex, b.Name)
}

func (e *Emitter) block(fn *ir.Function, b *ir.Block, epilogue string) {
	e.line("%s:\n", e.blockLabel(b))
	for insn := b.First(); insn != nil; insn = insn.Next {
		e.instruction(fn, b, insn, epilogue)
	}
}

func (e *Emitter) push(r target.Register) { e.line("  push %s\n", e.reg(r)) }
func (e *Emitter) pop(r target.Register)  { e.line("  pop %s\n", e.reg(r)) }
func (e *Emitter) ret()                   { e.line("  ret\n") }

func (e *Emitter) reg(r target.Register) string { return "%" + r.Name }
