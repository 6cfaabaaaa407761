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

package spill_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"backend/internal/ir"
	"backend/internal/spill"
	"backend/internal/types"
	"backend/internal/value"
)

func TestRunSpillsValueLivingAcrossBlockBoundary(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("cross_block", u.Func(i4, nil, false))

	entry := fn.NewBlock("entry")
	exit := fn.NewBlock("exit")

	v := value.NewValue(fn.NewValueID(), value.KFromInstruction, i4)
	one := value.Literal(fn.NewValueID(), i4, 1)
	entry.Append(&ir.Instruction{Op: ir.OpCopy, Result: v, Args: []*value.Value{one}})
	entry.Append(&ir.Instruction{Op: ir.OpJump, Target: exit})
	exit.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{v}})

	spill.Run(u, fn)

	require.Equal(t, value.StackOffset, v.Loc.Where)
	require.Equal(t, fn.StackUse, v.Loc.Offset)
}

func TestRunLeavesBlockLocalValueUnspilled(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("local_only", u.Func(i4, nil, false))

	entry := fn.NewBlock("entry")
	v := value.NewValue(fn.NewValueID(), value.KFromInstruction, i4)
	one := value.Literal(fn.NewValueID(), i4, 1)
	entry.Append(&ir.Instruction{Op: ir.OpCopy, Result: v, Args: []*value.Value{one}})
	entry.Append(&ir.Instruction{Op: ir.OpReturn, Args: []*value.Value{v}})

	spill.Run(u, fn)

	require.NotEqual(t, value.StackOffset, v.Loc.Where)
	require.Equal(t, 0, fn.StackUse)
}

func TestRunFallbackEvictsOldestValueUnderRegisterPressure(t *testing.T) {
	u := types.NewUniverse()
	i4 := u.Primitive(types.I4)
	fn := ir.NewFunction("register_pressure", u.Func(i4, nil, false))
	entry := fn.NewBlock("entry")

	const n = 14 // comfortably past budget (len(GPIntegerOrder)-2 == 12)
	results := make([]*value.Value, n)
	for i := 0; i < n; i++ {
		r := value.NewValue(fn.NewValueID(), value.KBackendTemp, i4)
		lit := value.Literal(fn.NewValueID(), i4, int64(i))
		entry.Append(&ir.Instruction{Op: ir.OpCopy, Result: r, Args: []*value.Value{lit}})
		results[i] = r
	}

	spill.Run(u, fn)

	require.Equal(t, value.StackOffset, results[0].Loc.Where, "oldest value should be evicted first")
	require.NotEqual(t, value.StackOffset, results[n-1].Loc.Where, "most recent value should stay in flight")
	require.Greater(t, fn.StackUse, 0)
}
