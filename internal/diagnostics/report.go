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

package diagnostics

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	userErrorColor = color.New(color.FgYellow, color.Bold)
	bugColor       = color.New(color.FgRed, color.Bold)
)

// ReportUserError prints a user-facing error in yellow: the input was
// bad, not the compiler.
func ReportUserError(w io.Writer, err error) {
	userErrorColor.Fprint(w, "error: ")
	fmt.Fprintln(w, err.Error())
}

// ReportBug prints a recovered Bug in red with the "internal error"
// framing that tells a reader this is the back end's own fault, not
// theirs — the only place a Bug is ever meant to be seen.
func ReportBug(w io.Writer, b Bug) {
	bugColor.Fprint(w, "internal error: ")
	fmt.Fprintln(w, b.Message)
}

// Recover is deferred once, at the top of main, to turn a panicking
// Bug into a clean diagnostic and a distinguishable exit code instead
// of a raw Go stack trace. Any other panic value is re-raised: only
// Bug is a diagnosed, expected failure mode.
func Recover(w io.Writer, exit func(int)) {
	r := recover()
	if r == nil {
		return
	}
	if b, ok := r.(Bug); ok {
		ReportBug(w, b)
		exit(2)
		return
	}
	panic(r)
}
