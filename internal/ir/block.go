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
	"backend/utils"
)

// Terminator tracks a block's terminator state machine: Unknown until a
// terminating instruction (entry/exit/jmp/branch) is appended, after
// which the block refuses a second one.
type Terminator int

const (
	TermUnknown Terminator = iota
	TermEntry
	TermExit
	TermJmp
	TermBranch
)

// Block is one basic block: a doubly-linked instruction list plus the
// predecessor set and lifetime data later passes attach to it.
type Block struct {
	Name string
	Fn   *Function

	first, last *Instruction

	Preds *utils.Set[*Block]

	Term Terminator

	// LiveIn/LiveOut are filled in by lifetime analysis: the set of
	// values live at block entry/exit, used by the spill pass to decide
	// which cross-block values need a stable home.
	LiveIn  *valueSet
	LiveOut *valueSet
}

func NewBlock(fn *Function, name string) *Block {
	return &Block{
		Name:  name,
		Fn:    fn,
		Preds: utils.NewSet[*Block](),
	}
}

func (b *Block) First() *Instruction { return b.first }
func (b *Block) Last() *Instruction  { return b.last }

func (b *Block) IsEmpty() bool { return b.first == nil }

// Append adds an instruction to the end of the block's list. Appending
// a terminator after one has already been set fails a utils.Assert,
// mirroring the original's single-terminator invariant.
func (b *Block) Append(insn *Instruction) {
	utils.Assert(b.Term == TermUnknown || !insn.Op.IsTerminator(), "cannot append past a block terminator")
	insn.Block = b
	insn.Prev = b.last
	insn.Next = nil
	if b.last != nil {
		b.last.Next = insn
	} else {
		b.first = insn
	}
	b.last = insn
	b.updateTerminator(insn)
}

func (b *Block) updateTerminator(insn *Instruction) {
	switch insn.Op {
	case OpReturn:
		b.Term = TermExit
	case OpJump:
		b.Term = TermJmp
	case OpBranch:
		b.Term = TermBranch
	}
}

func (b *Block) MarkEntry() {
	b.Term = TermEntry
}

// Instructions yields every instruction in list order, front to back.
func (b *Block) Instructions() []*Instruction {
	out := make([]*Instruction, 0)
	for insn := b.first; insn != nil; insn = insn.Next {
		out = append(out, insn)
	}
	return out
}

// Successors returns the blocks control can fall to from this block's
// terminator, empty for a TermExit block.
func (b *Block) Successors() []*Block {
	if b.last == nil {
		return nil
	}
	switch b.last.Op {
	case OpJump:
		return []*Block{b.last.Target}
	case OpBranch:
		return []*Block{b.last.TrueTarget, b.last.FalseTarget}
	}
	return nil
}

func (b *Block) String() string { return b.Name }
