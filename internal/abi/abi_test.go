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

package abi_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backend/internal/abi"
	"backend/internal/ir"
	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
)

func TestClassifyScalarIsSingleEightbyte(t *testing.T) {
	u := types.NewUniverse()
	classes := abi.Classify(u, u.Primitive(types.I8))
	require.Equal(t, []abi.EightbyteClass{abi.ClassInteger}, classes)
}

func TestClassifyFloatIsSSE(t *testing.T) {
	u := types.NewUniverse()
	classes := abi.Classify(u, u.Primitive(types.F8))
	require.Equal(t, []abi.EightbyteClass{abi.ClassSSE}, classes)
}

func TestClassifyMixedStructMergesToInteger(t *testing.T) {
	u := types.NewUniverse()
	st := u.Struct([]*types.Type{u.Primitive(types.I4), u.Primitive(types.F4)})
	classes := abi.Classify(u, st)
	require.Len(t, classes, 1)
	require.Equal(t, abi.ClassInteger, classes[0])
}

func TestClassifyLargeAggregateIsMemory(t *testing.T) {
	u := types.NewUniverse()
	big := u.Array(u.Primitive(types.I8), 40)
	classes := abi.Classify(u, big)
	require.True(t, abi.IsMemoryClass(classes))
}

func TestClassifyAllFloatStructIsSSE(t *testing.T) {
	u := types.NewUniverse()
	st := u.Struct([]*types.Type{u.Primitive(types.F8), u.Primitive(types.F8)})
	classes := abi.Classify(u, st)
	require.Equal(t, 2, abi.CountSSEEightbytes(classes))
	require.Equal(t, 0, abi.CountIntEightbytes(classes))
}

func TestClassifyStructOverSixteenBytesIsMemory(t *testing.T) {
	u := types.NewUniverse()
	// {i4, i4, ptr, ptr}: 4+4+8+8 = 24 bytes. System V only ever keeps
	// up to two eightbytes (16 bytes) of an aggregate in registers, so
	// this must classify as memory even though it's well under the old,
	// wrong four-eightbyte (32-byte) cutoff.
	i4 := u.Primitive(types.I4)
	ptr := u.Ptr(i4)
	st := u.Struct([]*types.Type{i4, i4, ptr, ptr})
	require.Equal(t, 24, u.SizeOf(st))

	classes := abi.Classify(u, st)
	require.True(t, abi.IsMemoryClass(classes))
}

func TestClassifySixteenByteStructStaysInRegisters(t *testing.T) {
	u := types.NewUniverse()
	st := u.Struct([]*types.Type{u.Primitive(types.I8), u.Primitive(types.I8)})
	require.Equal(t, 16, u.SizeOf(st))

	classes := abi.Classify(u, st)
	require.False(t, abi.IsMemoryClass(classes))
	require.Equal(t, 2, abi.CountIntEightbytes(classes))
}

func TestLowerBindsScalarArgumentsToArgumentRegisters(t *testing.T) {
	u := types.NewUniverse()
	i8 := u.Primitive(types.I8)
	fn := ir.NewFunction("add", u.Func(i8, []*types.Type{i8, i8}, false))

	a := value.NewValue(fn.NewValueID(), value.KArgument, i8)
	b := value.NewValue(fn.NewValueID(), value.KArgument, i8)
	fn.Args = []*value.Value{a, b}

	abi.Lower(u, fn)

	require.Equal(t, value.SpecificRegister, a.Loc.Where)
	require.Equal(t, target.RDI.Affinity, a.Loc.Reg.Affinity)
	require.Equal(t, value.SpecificRegister, b.Loc.Where)
	require.Equal(t, target.RSI.Affinity, b.Loc.Reg.Affinity)
}

func TestLowerSpillsIntegerArgumentsPastSixRegisters(t *testing.T) {
	u := types.NewUniverse()
	i8 := u.Primitive(types.I8)
	params := make([]*types.Type, 7)
	for i := range params {
		params[i] = i8
	}
	fn := ir.NewFunction("many_args", u.Func(i8, params, false))

	fn.Args = make([]*value.Value, len(params))
	for i := range fn.Args {
		fn.Args[i] = value.NewValue(fn.NewValueID(), value.KArgument, i8)
	}

	abi.Lower(u, fn)

	for i := 0; i < 6; i++ {
		require.Equal(t, value.SpecificRegister, fn.Args[i].Loc.Where, "argument %d", i)
	}
	require.Equal(t, value.StackOffset, fn.Args[6].Loc.Where)
}

func TestLowerRewritesMemoryClassReturnAsStret(t *testing.T) {
	u := types.NewUniverse()
	big := u.Array(u.Primitive(types.I8), 40)
	fn := ir.NewFunction("returns_big", u.Func(big, nil, false))

	abi.Lower(u, fn)

	require.NotNil(t, fn.Stret)
	require.Equal(t, value.SpecificRegister, fn.Stret.Loc.Where)
	require.Equal(t, target.RDI.Affinity, fn.Stret.Loc.Reg.Affinity)
}

func TestLowerLeavesVoidReturnWithoutStret(t *testing.T) {
	u := types.NewUniverse()
	fn := ir.NewFunction("side_effect_only", u.Func(u.Void(), nil, false))

	abi.Lower(u, fn)

	require.Nil(t, fn.Stret)
}

func TestReturnLocationsScalarInt(t *testing.T) {
	u := types.NewUniverse()
	regs := abi.ReturnLocations(u, u.Primitive(types.I4))
	require.Equal(t, []target.Register{target.RAX}, regs)
}

func TestReturnLocationsVoidIsNil(t *testing.T) {
	u := types.NewUniverse()
	require.Nil(t, abi.ReturnLocations(u, u.Void()))
}

func TestReturnLocationsMemoryClassIsNil(t *testing.T) {
	u := types.NewUniverse()
	big := u.Array(u.Primitive(types.I8), 40)
	require.Nil(t, abi.ReturnLocations(u, big))
}

func TestLowerCallSitesBindsArgumentsToArgumentRegistersAndClearsCallArgs(t *testing.T) {
	u := types.NewUniverse()
	i8 := u.Primitive(types.I8)
	fn := ir.NewFunction("caller", u.Func(u.Void(), nil, false))
	b := fn.NewBlock("entry")

	callee := value.NewValue(fn.NewValueID(), value.KGlobal, u.Func(i8, []*types.Type{i8, i8}, false))
	callee.Name = "add"
	argA := value.NewValue(fn.NewValueID(), value.KBackendTemp, i8)
	argB := value.NewValue(fn.NewValueID(), value.KBackendTemp, i8)
	result := value.NewValue(fn.NewValueID(), value.KFromInstruction, i8)

	call := &ir.Instruction{Op: ir.OpCall, Callee: callee, CallArgs: []*value.Value{argA, argB}, Result: result}
	b.Append(call)

	abi.LowerCallSites(u, fn)

	require.Nil(t, call.CallArgs)
	require.Len(t, call.Args, 2)
	require.Equal(t, target.RDI.Affinity, call.Args[0].Loc.Reg.Affinity)
	require.Equal(t, target.RSI.Affinity, call.Args[1].Loc.Reg.Affinity)

	// each materialized argument is fed by its own copy from the real
	// argument value, inserted immediately ahead of the call.
	require.Equal(t, ir.OpCopy, call.Prev.Op)
	require.Same(t, call.Args[1], call.Prev.Result)

	require.Equal(t, target.RAX.Affinity, result.Loc.Reg.Affinity)
	require.Contains(t, call.Clobbers, target.RAX)
	require.Contains(t, call.Clobbers, target.RCX)
}

func TestLowerCallSitesSpillsArgumentsPastSixIntegerRegisters(t *testing.T) {
	u := types.NewUniverse()
	i8 := u.Primitive(types.I8)
	fn := ir.NewFunction("caller", u.Func(u.Void(), nil, false))
	b := fn.NewBlock("entry")

	callee := value.NewValue(fn.NewValueID(), value.KGlobal, u.Func(u.Void(), nil, false))
	args := make([]*value.Value, 7)
	for i := range args {
		args[i] = value.NewValue(fn.NewValueID(), value.KBackendTemp, i8)
	}
	call := &ir.Instruction{Op: ir.OpCall, Callee: callee, CallArgs: args}
	b.Append(call)

	abi.LowerCallSites(u, fn)

	require.Len(t, call.Args, 7)
	for i := 0; i < 6; i++ {
		require.Equal(t, value.SpecificRegister, call.Args[i].Loc.Where, "argument %d", i)
	}
	require.Equal(t, value.StackOffset, call.Args[6].Loc.Where)
}

func TestLowerCallSitesBindsMemoryClassReturnToStretSlot(t *testing.T) {
	u := types.NewUniverse()
	big := u.Array(u.Primitive(types.I8), 40)
	fn := ir.NewFunction("caller", u.Func(u.Void(), nil, false))
	b := fn.NewBlock("entry")

	callee := value.NewValue(fn.NewValueID(), value.KGlobal, u.Func(big, nil, false))
	result := value.NewValue(fn.NewValueID(), value.KFromInstruction, big)
	call := &ir.Instruction{Op: ir.OpCall, Callee: callee, Result: result}
	b.Append(call)

	abi.LowerCallSites(u, fn)

	require.Equal(t, value.StackOffset, result.Loc.Where)
	require.Equal(t, value.ConstraintMem, result.Loc.Constraint)
	require.Equal(t, 320, fn.StackUse)

	require.Len(t, call.Args, 1)
	require.Equal(t, target.RDI.Affinity, call.Args[0].Loc.Reg.Affinity)
	require.Equal(t, ir.OpAlloca, call.Prev.Op)
	require.Same(t, call.Args[0], call.Prev.Result)
}
