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

package regalloc_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backend/internal/ir"
	"backend/internal/regalloc"
	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
)

func TestRunAssignsDistinctRegistersToConcurrentlyLiveValues(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("add_three", u.Func(i4, nil, false))
	b := fn.NewBlock("entry")

	a := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	c := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	sum := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)

	one := value.Literal(fn.NewValueID(), i4, 1)
	two := value.Literal(fn.NewValueID(), i4, 2)

	b.Append(&ir.Instruction{Op: ir.OpCopy, Result: a, Args: []*value.Value{one}})
	b.Append(&ir.Instruction{Op: ir.OpCopy, Result: c, Args: []*value.Value{two}})
	b.Append(&ir.Instruction{Op: ir.OpBinop, BinOp: ir.BinAdd, Result: sum, Args: []*value.Value{a, c}})
	b.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{sum}})

	regalloc.Run(fn)

	require.Equal(t, value.SpecificRegister, a.Loc.Where)
	require.Equal(t, value.SpecificRegister, c.Loc.Where)
	require.Equal(t, value.SpecificRegister, sum.Loc.Where)
	require.NotEqual(t, a.Loc.Reg.Affinity, c.Loc.Reg.Affinity)
}

func TestRunReusesARegisterAfterItsLastUse(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("reuse_after_death", u.Func(i4, nil, false))
	b := fn.NewBlock("entry")

	one := value.Literal(fn.NewValueID(), i4, 1)
	two := value.Literal(fn.NewValueID(), i4, 2)
	three := value.Literal(fn.NewValueID(), i4, 3)

	a := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	b.Append(&ir.Instruction{Op: ir.OpCopy, Result: a, Args: []*value.Value{one}})

	doubled := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	// a's last use: once this consumes it, its register should free up
	// for the next value the allocator assigns.
	b.Append(&ir.Instruction{Op: ir.OpBinop, BinOp: ir.BinAdd, Result: doubled, Args: []*value.Value{a, two}})

	fresh := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	b.Append(&ir.Instruction{Op: ir.OpCopy, Result: fresh, Args: []*value.Value{three}})

	b.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{doubled}})

	regalloc.Run(fn)

	require.Equal(t, value.SpecificRegister, a.Loc.Where)
	require.Equal(t, value.SpecificRegister, fresh.Loc.Where)
	require.Equal(t, a.Loc.Reg.Affinity, fresh.Loc.Reg.Affinity,
		"fresh should reclaim a's register once a's last use has passed")
}

func TestRunNeverReassignsAnAlreadySpecificRegister(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("pinned", u.Func(i4, nil, false))
	b := fn.NewBlock("entry")

	pinned := value.NewValue(fn.NewValueID(), value.KArgument, i4)
	pinned.Loc = value.Location{Where: value.SpecificRegister, Reg: target.RDI.AtWidth(4)}

	b.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{pinned}})

	regalloc.Run(fn)

	require.Equal(t, target.RDI.Affinity, pinned.Loc.Reg.Affinity)
}

func TestRunSkipsValuesConstrainedToMemory(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("mem_constrained", u.Func(i4, nil, false))
	b := fn.NewBlock("entry")

	spilled := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	spilled.Loc = value.Location{Where: value.StackOffset, Offset: 8, Constraint: value.ConstraintMem}
	one := value.Literal(fn.NewValueID(), i4, 1)

	b.Append(&ir.Instruction{Op: ir.OpCopy, Result: spilled, Args: []*value.Value{one}})
	b.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{spilled}})

	regalloc.Run(fn)

	require.Equal(t, value.StackOffset, spilled.Loc.Where)
	require.Equal(t, 8, spilled.Loc.Offset)
}

func TestMirrorABITempsElidesCopyWhenSourceAlreadyInWantedRegister(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("call_site", u.Func(i4, nil, false))
	b := fn.NewBlock("entry")

	src := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	src.Loc = value.Location{Where: value.SpecificRegister, Reg: target.RDI}

	temp := value.NewValue(fn.NewValueID(), value.KABITemp, i4)
	temp.Loc = value.Location{Where: value.SpecificRegister, Reg: target.RDI}

	copyInsn := &ir.Instruction{Op: ir.OpCopy, Result: temp, Args: []*value.Value{src}}
	b.Append(copyInsn)

	call := &ir.Instruction{Op: ir.OpCall, CallArgs: []*value.Value{temp}}
	b.Append(call)
	b.Append(&ir.Instruction{Op: ir.OpReturn})

	regalloc.MirrorABITemps(fn)

	require.NotSame(t, copyInsn, b.First(), "the now-redundant copy should be unlinked")
	require.Same(t, src, call.CallArgs[0], "later uses of temp should be retargeted to src")
}

func TestMirrorABITempsKeepsCopyWhenSourceIsElsewhere(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("call_site_mismatch", u.Func(i4, nil, false))
	b := fn.NewBlock("entry")

	src := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
	src.Loc = value.Location{Where: value.SpecificRegister, Reg: target.RAX}

	temp := value.NewValue(fn.NewValueID(), value.KABITemp, i4)
	temp.Loc = value.Location{Where: value.SpecificRegister, Reg: target.RDI}

	copyInsn := &ir.Instruction{Op: ir.OpCopy, Result: temp, Args: []*value.Value{src}}
	b.Append(copyInsn)
	b.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{temp}})

	regalloc.MirrorABITemps(fn)

	require.Same(t, copyInsn, b.First(), "a genuine register move must not be elided")
}
