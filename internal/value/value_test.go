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

package value_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backend/internal/target"
	"backend/internal/types"
	"backend/internal/value"
)

func TestLiteralCannotMoveAndIsImmediate(t *testing.T) {
	u := types.NewUniverse()
	lit := value.Literal(0, u.Primitive(types.I4), 42)

	require.False(t, lit.CanMove())
	require.Equal(t, value.CategoryImmediate, lit.OperandCategory())
	require.Equal(t, "42", lit.String())
}

func TestFromInstructionValueCanMoveAndIsVolatile(t *testing.T) {
	u := types.NewUniverse()
	v := value.NewValue(1, value.KFromInstruction, u.Primitive(types.I8))

	require.True(t, v.CanMove())
	require.True(t, v.IsVolatile())
}

func TestArgumentValueIsNotVolatile(t *testing.T) {
	u := types.NewUniverse()
	v := value.NewValue(1, value.KArgument, u.Primitive(types.I8))
	require.False(t, v.IsVolatile())
}

func TestLocationWhereQueries(t *testing.T) {
	reg := value.Location{Where: value.SpecificRegister, Reg: target.RAX}
	stack := value.Location{Where: value.StackOffset, Offset: 16}
	any := value.Location{Where: value.AnyRegister}

	require.True(t, reg.IsReg())
	require.True(t, reg.IsRegSpecific())
	require.False(t, reg.IsOnStack())

	require.True(t, any.IsReg())
	require.False(t, any.IsRegSpecific())

	require.True(t, stack.IsOnStack())
	require.False(t, stack.IsReg())
}

func TestOperandCategoryReflectsStackLocation(t *testing.T) {
	u := types.NewUniverse()
	v := value.NewValue(1, value.KBackendTemp, u.Primitive(types.I8))

	v.Loc = value.Location{Where: value.SpecificRegister, Reg: target.RAX}
	require.Equal(t, value.CategoryRegister, v.OperandCategory())

	v.Loc = value.Location{Where: value.StackOffset, Offset: 8}
	require.Equal(t, value.CategoryMemory, v.OperandCategory())
}

func TestUndefValueNeverMoves(t *testing.T) {
	u := types.NewUniverse()
	v := value.Undef(1, u.Primitive(types.I8))
	require.False(t, v.CanMove())
	require.Equal(t, "undef", v.String())
}

func TestGlobalAndLabelStringForms(t *testing.T) {
	u := types.NewUniverse()
	g := value.NewValue(1, value.KGlobal, u.Primitive(types.I8))
	g.Name = "counter"
	require.Equal(t, "@counter", g.String())
	require.False(t, g.CanMove())

	l := value.NewValue(2, value.KLabel, u.Void())
	l.Name = "loop"
	require.Equal(t, "%loop", l.String())
}

func TestRetainReleaseTracksRefCount(t *testing.T) {
	u := types.NewUniverse()
	v := value.NewValue(1, value.KFromInstruction, u.Primitive(types.I8))

	v.Retain()
	v.Retain()
	require.Equal(t, 2, v.RefCount())

	require.Equal(t, 1, v.Release())
	require.Equal(t, 0, v.Release())
}

func TestFloatLiteralIsImmediateAndFormatsAsFloat(t *testing.T) {
	u := types.NewUniverse()
	f := value.FloatLit(1, u.Primitive(types.F8), 3.5)
	require.Equal(t, "3.5", f.String())
	require.Equal(t, value.CategoryImmediate, f.OperandCategory())
}
