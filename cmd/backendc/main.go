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

// Command backendc drives the back end end to end: it reads one
// function's textual IR, runs ABI lowering, instruction selection,
// spilling and register allocation over it, and emits assembly (or, for
// the ir-ir target, echoes the parsed function back out as IR text).
package main

import (
	"fmt"
	"os"

	"backend/internal/diagnostics"
)

func main() {
	defer diagnostics.Recover(os.Stderr, os.Exit)

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		if ue, ok := diagnostics.AsUserError(err); ok {
			diagnostics.ReportUserError(os.Stderr, ue)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}
