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

// Package diagnostics separates the back end's two failure channels:
// user-facing errors (a malformed IR text file, an unsupported target
// triple) that the CLI reports and exits cleanly from, and back-end
// invariant violations (a pass hands emit something it doesn't know how
// to render) that are bugs, never recoverable `error` values, and abort
// immediately. The teacher's own utils.Assert/Fatal collapse both into
// one bare panic; this package keeps the distinction the rest of the
// back end is built to respect.
package diagnostics

import (
	"fmt"

	"github.com/pkg/errors"
)

// UserError wraps a user-facing failure with file:line context, built
// by Wrapf below. The CLI recovers these via AsUserError and prints
// their chain without a stack trace; nothing past the CLI boundary
// should construct one directly.
type UserError struct {
	cause error
}

func (e *UserError) Error() string { return e.cause.Error() }
func (e *UserError) Unwrap() error { return e.cause }

// Wrapf attaches "file:line: " context to cause the way a parse or ABI
// classification error needs to, then marks the result as a UserError
// so the CLI can recognise it with AsUserError and report it apart from
// a Bug.
func Wrapf(cause error, file string, line int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	wrapped := errors.Wrapf(cause, "%s:%d: %s", file, line, msg)
	return &UserError{cause: wrapped}
}

// Errorf builds a fresh user-facing error with file:line context and no
// underlying cause, for failures diagnosed directly by this pass rather
// than propagated from one further down.
func Errorf(file string, line int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return &UserError{cause: errors.Errorf("%s:%d: %s", file, line, msg)}
}

// AsUserError reports whether err is (or wraps) a UserError, and
// returns it; the CLI uses this to decide whether a returned error gets
// the "clean exit 1, no stack trace" treatment.
func AsUserError(err error) (*UserError, bool) {
	var ue *UserError
	if errors.As(err, &ue) {
		return ue, true
	}
	return nil, false
}

// Bug is what Assert and Unreachable panic with: a
// condition the pipeline itself should have prevented (isel leaving an
// unselected opcode, the allocator running out of registers after spill
// already ran). Bug is never returned as an error — it always panics,
// and the only legitimate recover() site is the CLI's top-level one,
// which prints it as an internal-error report rather than a user
// diagnostic.
type Bug struct {
	Message string
}

func (b Bug) Error() string { return "internal error: " + b.Message }

// Assert panics with a Bug when cond is false, the Bug-flavored
// counterpart to the teacher's utils.Assert. The pipeline packages
// (internal/ir, internal/isel, internal/regalloc) still check their own
// invariants with utils.Assert, which panics with a plain string.
func Assert(cond bool, format string, args ...interface{}) {
	if !cond {
		panic(Bug{Message: fmt.Sprintf(format, args...)})
	}
}

// Unreachable panics with a Bug unconditionally, for switch arms and
// code paths that earlier validation should have made impossible.
func Unreachable(format string, args ...interface{}) {
	panic(Bug{Message: fmt.Sprintf(format, args...)})
}
