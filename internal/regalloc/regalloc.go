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

// Package regalloc implements the block-local greedy register
// allocator: no cross-block live-range splitting and no whole-function
// linear scan, by design — every value gets a register assignment that
// only has to hold within the block it is live in, since the spill pass
// has already given every cross-block value a stack home.
package regalloc

import (
	"golang.org/x/exp/slices"

	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/value"
	"backend/utils"
)

// pool is the set of physical registers the allocator may hand out
// within one block, minus whatever the isel CISC-reservation phase
// already pinned in this block.
type pool struct {
	free []target.Register
	used map[int]target.Register // value ID -> assigned register
}

// newPool stores order reversed, so take (which pops from the end)
// hands registers out in order's own sequence.
func newPool(order []target.Register) *pool {
	free := make([]target.Register, len(order))
	for i, r := range order {
		free[len(order)-1-i] = r
	}
	return &pool{free: free, used: map[int]target.Register{}}
}

func (p *pool) take() (target.Register, bool) {
	if len(p.free) == 0 {
		return target.NoReg, false
	}
	r := p.free[len(p.free)-1]
	p.free = p.free[:len(p.free)-1]
	return r, true
}

func (p *pool) give(r target.Register) {
	p.free = append(p.free, r)
}

// Run walks each block independently, pinning already-fixed registers
// first, removing each instruction's declared clobbers from the free
// pool for the rest of the block, then greedily handing out registers to every remaining
// register-eligible value in definition order and reclaiming a
// register as soon as its last use in the block has passed.
func Run(fn *ir.Function) {
	for _, b := range fn.Blocks {
		allocateBlock(b)
	}
}

func allocateBlock(b *ir.Block) {
	lastUse := computeLastUse(b)

	p := newPool(target.GPIntegerOrder)
	fp := newPool(target.GPFloatOrder)

	pinFixed(b, p, fp)
	reclaimIfHeld(p, target.R11) // internal/emit's scratch register

	for insn := b.First(); insn != nil; insn = insn.Next {
		for _, reg := range insn.Clobbers {
			reclaimIfHeld(p, reg)
			reclaimIfHeld(fp, reg)
		}

		for argIdx, arg := range insn.Args {
			if insn.IsRegUseMarked(argIdx) {
				continue // already bound to a fixed register by isel
			}
			if arg.Loc.Constraint == value.ConstraintMem || !arg.CanMove() {
				continue
			}
			assignIfNeeded(arg, p, fp)
		}

		if insn.Result != nil && insn.Result.CanMove() && insn.Result.Loc.Constraint != value.ConstraintMem {
			if insn.Result.Loc.Where != value.SpecificRegister {
				assignIfNeeded(insn.Result, p, fp)
			}
		}

		releaseDeadValues(insn, lastUse, p, fp)
	}
}

// pinFixed walks the block once up front removing every register the
// CISC-reservation phase already pinned (rax/rdx for div/mod, cl for
// shifts, fixed ABI argument/return registers) from the pools so the
// greedy pass never hands them out to something else while they are
// live.
func pinFixed(b *ir.Block, p, fp *pool) {
	pin := func(r target.Register) {
		reclaimIfHeld(p, r)
		reclaimIfHeld(fp, r)
	}
	for insn := b.First(); insn != nil; insn = insn.Next {
		if insn.Result != nil && insn.Result.Loc.Where == value.SpecificRegister {
			pin(insn.Result.Loc.Reg)
		}
		for _, arg := range insn.Args {
			if arg.Loc.Where == value.SpecificRegister {
				pin(arg.Loc.Reg)
			}
		}
	}
}

func reclaimIfHeld(p *pool, r target.Register) {
	i := slices.IndexFunc(p.free, func(f target.Register) bool { return f.Affinity == r.Affinity })
	if i >= 0 {
		p.free = slices.Delete(p.free, i, i+1)
	}
}

func assignIfNeeded(v *value.Value, p, fp *pool) {
	if v.Loc.Where == value.SpecificRegister {
		return
	}
	if r, ok := p.used[v.ID]; ok {
		v.Loc = value.Location{Where: value.SpecificRegister, Reg: r}
		return
	}
	pick := p
	if v.Type != nil && v.Type.IsFloat() {
		pick = fp
	}
	r, ok := pick.take()
	utils.Assert(ok, "register pool exhausted for value %v: spill pass should have prevented this", v)
	pick.used[v.ID] = r
	v.Loc = value.Location{Where: value.SpecificRegister, Reg: r}
}

// releaseDeadValues returns every register whose owning value's last
// use was this instruction back to its pool, the "greedy" half of the
// allocator: no attempt to keep a register warm past a value's last use.
func releaseDeadValues(insn *ir.Instruction, lastUse map[int]*ir.Instruction, p, fp *pool) {
	check := func(v *value.Value) {
		if v == nil || v.Loc.Where != value.SpecificRegister {
			return
		}
		if lastUse[v.ID] != insn {
			return
		}
		if r, ok := p.used[v.ID]; ok {
			p.give(r)
			delete(p.used, v.ID)
		}
		if r, ok := fp.used[v.ID]; ok {
			fp.give(r)
			delete(fp.used, v.ID)
		}
	}
	for _, arg := range insn.Args {
		check(arg)
	}
}

// computeLastUse records, per value ID, the last instruction in the
// block that reads it — the boundary this greedy allocator uses to free
// a register back to the pool.
func computeLastUse(b *ir.Block) map[int]*ir.Instruction {
	last := map[int]*ir.Instruction{}
	for insn := b.First(); insn != nil; insn = insn.Next {
		for _, arg := range insn.Args {
			last[arg.ID] = insn
		}
	}
	return last
}
