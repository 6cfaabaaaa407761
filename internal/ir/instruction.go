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
	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
	"backend/utils"
)

// maxRegUseMarks bounds RegUseMarks' bitmap: isel's fixed-register
// reservation only ever marks a handful of operand slots (div/mod's
// dividend, a shift's count), never anything close to this many
// arguments on one instruction.
const maxRegUseMarks = 8

// Instruction is one node of a block's doubly-linked instruction list.
// Every pass walks this list forward or backward via Prev/Next rather
// than indexing a slice, so insertion during a pass (isel expanding one
// instruction into several, call lowering inserting argument copies) never invalidates
// a cursor held elsewhere in the same block.
type Instruction struct {
	Op     Op
	Result *value.Value
	Args   []*value.Value

	Block *Block
	Prev  *Instruction
	Next  *Instruction

	// RegUseMarks is a bit per argument index, set by
	// isel.ReserveFixedRegisters to remember which operands it already
	// pinned to a specific physical register, so neither constraint
	// satisfaction nor the register allocator reassigns them. Allocated lazily since most
	// instructions never mark anything.
	RegUseMarks *utils.BitMap

	// Clobbers lists physical registers this instruction destroys as a
	// side effect (e.g. `call` clobbers every caller-saved register,
	// `cltd`/`cqto` clobbers rdx) that are not already its Result/Args.
	Clobbers []target.Register

	// Binop/Compare payload
	BinOp BinOp
	CmpOp CmpOp

	// Elem: Args[0] is the base, Index either an Args[1] value or, for a
	// compile-time-constant index, ConstIndex is used and Args has length 1.
	FieldType  *types.Type
	ConstIndex int
	HasConstIndex bool

	// Branch: Args[0] is the condition, block label targets below.
	// Jump: unconditional, single target below.
	TrueTarget  *Block
	FalseTarget *Block
	Target      *Block

	// Call
	Callee   *value.Value
	CallArgs []*value.Value

	// Memcpy: Args[0] = dst, Args[1] = src, Size in bytes.
	Size int

	// Extend/Truncate/Cast: source and destination type.
	FromType *types.Type
	ToType   *types.Type

	// Asm: raw inline text, Args are the values it reads, Clobbers what
	// it destroys; the back end cannot see inside it.
	AsmText string

	// Label: the block this pseudo-instruction names when printed.
	LabelOf *Block

	Comment string
}

func (i *Instruction) MarkRegUse(argIdx int) {
	if i.RegUseMarks == nil {
		i.RegUseMarks = utils.NewBitMap(maxRegUseMarks)
	}
	i.RegUseMarks.Set(argIdx)
}

func (i *Instruction) IsRegUseMarked(argIdx int) bool {
	if i.RegUseMarks == nil {
		return false
	}
	return i.RegUseMarks.IsSet(argIdx)
}

// InsertBefore splices this instruction into the block immediately
// before mark, relinking the doubly-linked list on both sides.
func (i *Instruction) InsertBefore(mark *Instruction) {
	i.Block = mark.Block
	i.Prev = mark.Prev
	i.Next = mark
	if mark.Prev != nil {
		mark.Prev.Next = i
	} else {
		mark.Block.first = i
	}
	mark.Prev = i
}

// InsertAfter splices this instruction immediately after mark.
func (i *Instruction) InsertAfter(mark *Instruction) {
	i.Block = mark.Block
	i.Prev = mark
	i.Next = mark.Next
	if mark.Next != nil {
		mark.Next.Prev = i
	} else {
		mark.Block.last = i
	}
	mark.Next = i
}

// Unlink removes this instruction from its block's list.
func (i *Instruction) Unlink() {
	if i.Prev != nil {
		i.Prev.Next = i.Next
	} else if i.Block != nil {
		i.Block.first = i.Next
	}
	if i.Next != nil {
		i.Next.Prev = i.Prev
	} else if i.Block != nil {
		i.Block.last = i.Prev
	}
	i.Block, i.Prev, i.Next = nil, nil, nil
}
