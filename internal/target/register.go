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

// Package target describes a compilation target: its physical register
// file, its System V AMD64 calling convention, and the Linux/Darwin
// system-variant knobs the emitter needs (weak symbols, leading
// underscore, PIC default).
package target

import "fmt"

// Class separates general-purpose integer registers from the SSE/xmm
// float class; the two never satisfy each other's constraints.
type Class uint8

const (
	ClassInt Class = iota
	ClassFloat
)

// Register names one physical register at a specific width. Affinity
// groups the 8/16/32/64-bit names that alias the same physical register
// (rax/eax/ax/al all share Affinity 0), the way the ABI classifier and
// emitter need to pick the right-width name for a given value.
type Register struct {
	Name     string
	Affinity int
	Bytes    int
	Class    Class
	IsHigh   bool // true only for ah/bh/ch/dh
}

func (r Register) String() string { return r.Name }

var (
	NoReg = Register{Name: "<none>", Affinity: -1}

	RAX = Register{Name: "rax", Affinity: 0, Bytes: 8, Class: ClassInt}
	RBX = Register{Name: "rbx", Affinity: 1, Bytes: 8, Class: ClassInt}
	RCX = Register{Name: "rcx", Affinity: 2, Bytes: 8, Class: ClassInt}
	RDX = Register{Name: "rdx", Affinity: 3, Bytes: 8, Class: ClassInt}
	RSI = Register{Name: "rsi", Affinity: 4, Bytes: 8, Class: ClassInt}
	RDI = Register{Name: "rdi", Affinity: 5, Bytes: 8, Class: ClassInt}
	RBP = Register{Name: "rbp", Affinity: 6, Bytes: 8, Class: ClassInt}
	RSP = Register{Name: "rsp", Affinity: 7, Bytes: 8, Class: ClassInt}
	R8  = Register{Name: "r8", Affinity: 8, Bytes: 8, Class: ClassInt}
	R9  = Register{Name: "r9", Affinity: 9, Bytes: 8, Class: ClassInt}
	R10 = Register{Name: "r10", Affinity: 10, Bytes: 8, Class: ClassInt}
	R11 = Register{Name: "r11", Affinity: 11, Bytes: 8, Class: ClassInt}
	R12 = Register{Name: "r12", Affinity: 12, Bytes: 8, Class: ClassInt}
	R13 = Register{Name: "r13", Affinity: 13, Bytes: 8, Class: ClassInt}
	R14 = Register{Name: "r14", Affinity: 14, Bytes: 8, Class: ClassInt}
	R15 = Register{Name: "r15", Affinity: 15, Bytes: 8, Class: ClassInt}

	EAX  = Register{Name: "eax", Affinity: 0, Bytes: 4, Class: ClassInt}
	EBX  = Register{Name: "ebx", Affinity: 1, Bytes: 4, Class: ClassInt}
	ECX  = Register{Name: "ecx", Affinity: 2, Bytes: 4, Class: ClassInt}
	EDX  = Register{Name: "edx", Affinity: 3, Bytes: 4, Class: ClassInt}
	ESI  = Register{Name: "esi", Affinity: 4, Bytes: 4, Class: ClassInt}
	EDI  = Register{Name: "edi", Affinity: 5, Bytes: 4, Class: ClassInt}
	R8D  = Register{Name: "r8d", Affinity: 8, Bytes: 4, Class: ClassInt}
	R9D  = Register{Name: "r9d", Affinity: 9, Bytes: 4, Class: ClassInt}
	R10D = Register{Name: "r10d", Affinity: 10, Bytes: 4, Class: ClassInt}
	R11D = Register{Name: "r11d", Affinity: 11, Bytes: 4, Class: ClassInt}

	AX = Register{Name: "ax", Affinity: 0, Bytes: 2, Class: ClassInt}
	DX = Register{Name: "dx", Affinity: 3, Bytes: 2, Class: ClassInt}

	AL  = Register{Name: "al", Affinity: 0, Bytes: 1, Class: ClassInt}
	CL  = Register{Name: "cl", Affinity: 2, Bytes: 1, Class: ClassInt}
	DIL = Register{Name: "dil", Affinity: 5, Bytes: 1, Class: ClassInt}

	XMM0 = Register{Name: "xmm0", Affinity: 100, Bytes: 8, Class: ClassFloat}
	XMM1 = Register{Name: "xmm1", Affinity: 101, Bytes: 8, Class: ClassFloat}
	XMM2 = Register{Name: "xmm2", Affinity: 102, Bytes: 8, Class: ClassFloat}
	XMM3 = Register{Name: "xmm3", Affinity: 103, Bytes: 8, Class: ClassFloat}
	XMM4 = Register{Name: "xmm4", Affinity: 104, Bytes: 8, Class: ClassFloat}
	XMM5 = Register{Name: "xmm5", Affinity: 105, Bytes: 8, Class: ClassFloat}
	XMM6 = Register{Name: "xmm6", Affinity: 106, Bytes: 8, Class: ClassFloat}
	XMM7 = Register{Name: "xmm7", Affinity: 107, Bytes: 8, Class: ClassFloat}
)

var widthsByAffinity = map[int]map[int]Register{
	0: {8: RAX, 4: EAX, 2: AX, 1: AL},
	1: {8: RBX, 4: EBX},
	2: {8: RCX, 4: ECX, 1: CL},
	3: {8: RDX, 4: EDX, 2: DX},
	4: {8: RSI, 4: ESI},
	5: {8: RDI, 4: EDI, 1: DIL},
	8: {8: R8, 4: R8D},
	9: {8: R9, 4: R9D},
	10: {8: R10, 4: R10D},
	11: {8: R11, 4: R11D},
	12: {8: R12},
	13: {8: R13},
	14: {8: R14},
	15: {8: R15},
}

// AtWidth renames a register to the name for the same physical register
// at a different byte width (rax at 4 bytes is eax), the way the ABI
// classifier and instruction selector need to address a sub-register.
func (r Register) AtWidth(bytes int) Register {
	if r.Class == ClassFloat {
		return r
	}
	if byWidth, ok := widthsByAffinity[r.Affinity]; ok {
		if reg, ok := byWidth[bytes]; ok {
			return reg
		}
	}
	panic(fmt.Sprintf("no %d-byte name for register affinity %d", bytes, r.Affinity))
}

// GPIntegerOrder is RAX..R15 in the order the register allocator and
// spiller prefer to hand them out: caller-saved scratch registers first,
// callee-saved ones last so they are only used under real pressure.
var GPIntegerOrder = []Register{
	RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11,
	RBX, R12, R13, R14, R15,
}

var GPFloatOrder = []Register{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}

// CallerSavedInt is the set clobbered by any `call` and must be treated as
// dead across one, matching the original's blk_reg.c clobber handling.
var CallerSavedInt = []Register{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}

var CalleeSavedInt = []Register{RBX, RBP, R12, R13, R14, R15}

// ArgRegInt/ArgRegFloat return the System V integer/float argument
// registers in order; idx beyond the register file means the argument is
// passed on the stack and they return target.NoReg.
func ArgRegInt(idx int) Register {
	regs := []Register{RDI, RSI, RDX, RCX, R8, R9}
	if idx >= len(regs) {
		return NoReg
	}
	return regs[idx]
}

func ArgRegFloat(idx int) Register {
	regs := []Register{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}
	if idx >= len(regs) {
		return NoReg
	}
	return regs[idx]
}

// ReturnRegsInt/ReturnRegsFloat are the System V return-value registers;
// a struct classified INT/SSE,INT/SSE on return uses rax:rdx or xmm0:xmm1.
var ReturnRegsInt = []Register{RAX, RDX}
var ReturnRegsFloat = []Register{XMM0, XMM1}
