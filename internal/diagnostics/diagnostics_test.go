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

package diagnostics_test

import (
	"bytes"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"backend/internal/diagnostics"
)

func TestWrapfProducesUserErrorWithFileLineContext(t *testing.T) {
	cause := errors.New("unexpected token %")
	err := diagnostics.Wrapf(cause, "prog.ir", 12, "while parsing instruction")

	require.ErrorContains(t, err, "prog.ir:12")
	require.ErrorContains(t, err, "while parsing instruction")
	require.ErrorContains(t, err, "unexpected token %")

	ue, ok := diagnostics.AsUserError(err)
	require.True(t, ok)
	require.Equal(t, err.Error(), ue.Error())
}

func TestErrorfProducesUserErrorWithNoCause(t *testing.T) {
	err := diagnostics.Errorf("prog.ir", 3, "unrecognized character %q", '#')

	require.ErrorContains(t, err, "prog.ir:3")
	require.ErrorContains(t, err, "unrecognized character")

	_, ok := diagnostics.AsUserError(err)
	require.True(t, ok)
}

func TestAsUserErrorRejectsPlainError(t *testing.T) {
	_, ok := diagnostics.AsUserError(errors.New("plain failure"))
	require.False(t, ok)
}

func TestAsUserErrorUnwrapsThroughWrapping(t *testing.T) {
	inner := diagnostics.Errorf("prog.ir", 1, "bad target triple")
	outer := fmt.Errorf("loading target config: %w", inner)

	ue, ok := diagnostics.AsUserError(outer)
	require.True(t, ok)
	require.ErrorContains(t, ue, "bad target triple")
}

func TestAssertPanicsWithBugWhenFalse(t *testing.T) {
	require.PanicsWithValue(t, diagnostics.Bug{Message: "isel left an unselected opcode: ptradd"}, func() {
		diagnostics.Assert(false, "isel left an unselected opcode: %s", "ptradd")
	})
}

func TestAssertDoesNotPanicWhenTrue(t *testing.T) {
	require.NotPanics(t, func() {
		diagnostics.Assert(true, "unreachable")
	})
}

func TestUnreachableAlwaysPanicsWithBug(t *testing.T) {
	require.PanicsWithValue(t, diagnostics.Bug{Message: "register pool exhausted"}, func() {
		diagnostics.Unreachable("register pool exhausted")
	})
}

func TestBugErrorMessageIsPrefixed(t *testing.T) {
	b := diagnostics.Bug{Message: "spill pass left a cross-block value unhomed"}
	require.Equal(t, "internal error: spill pass left a cross-block value unhomed", b.Error())
}

func TestReportUserErrorWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	diagnostics.ReportUserError(&buf, errors.New("malformed target triple \"bogus\""))
	require.Contains(t, buf.String(), "error: ")
	require.Contains(t, buf.String(), "malformed target triple")
}

func TestReportBugWritesMessage(t *testing.T) {
	var buf bytes.Buffer
	diagnostics.ReportBug(&buf, diagnostics.Bug{Message: "unreachable opcode"})
	require.Contains(t, buf.String(), "internal error: ")
	require.Contains(t, buf.String(), "unreachable opcode")
}

func TestRecoverReportsBugAndExits(t *testing.T) {
	var buf bytes.Buffer
	var exitCode int
	exit := func(code int) { exitCode = code }

	func() {
		defer diagnostics.Recover(&buf, exit)
		panic(diagnostics.Bug{Message: "division by a register that was never reserved"})
	}()

	require.Equal(t, 2, exitCode)
	require.Contains(t, buf.String(), "division by a register that was never reserved")
}

func TestRecoverRepanicsOnNonBugValues(t *testing.T) {
	var buf bytes.Buffer
	exit := func(int) { t.Fatal("exit should not be called for a non-Bug panic") }

	require.Panics(t, func() {
		defer diagnostics.Recover(&buf, exit)
		panic("an ordinary, undiagnosed panic")
	})
}
