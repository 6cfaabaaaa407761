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

package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const addConsts = "fn add_consts (i4) -> i4 {\n" +
	"entry:\n" +
	"  %0 = add 1, 2\n" +
	"  return %0\n" +
	"}\n"

// runCmd executes the command with args, reading input from a real file
// rather than stdin: readInput goes straight to os.Stdin, bypassing
// whatever a test wires up via cmd.SetIn.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSource(t *testing.T, src string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "in.ir")
	require.NoError(t, writeOutput(path, src))
	return path
}

func TestCompileEmitsX86Assembly(t *testing.T) {
	path := writeSource(t, addConsts)
	out, err := runCmd(t, path)
	require.NoError(t, err)
	require.Contains(t, out, ".globl add_consts")
	require.Contains(t, out, "add_consts:")
}

func TestCompileWithEmitIREchoesParsedFunction(t *testing.T) {
	path := writeSource(t, addConsts)
	out, err := runCmd(t, path, "--emit=ir")
	require.NoError(t, err)
	require.Contains(t, out, "fn add_consts")
	require.Contains(t, out, "entry:")
	require.NotContains(t, out, ".globl")
}

func TestDumpTokensPrintsLexerStreamAndSkipsCompilation(t *testing.T) {
	path := writeSource(t, addConsts)
	out, err := runCmd(t, path, "--dump-tokens")
	require.NoError(t, err)
	require.Contains(t, out, "ident(fn)")
	require.Contains(t, out, "eof()")
	require.NotContains(t, out, ".globl")
}

func TestCompileRejectsUnknownTargetTriple(t *testing.T) {
	path := writeSource(t, addConsts)
	_, err := runCmd(t, path, "--target=not-a-triple")
	require.Error(t, err)
}

func TestCompileRejectsMalformedIR(t *testing.T) {
	path := writeSource(t, "not valid ir source {{{")
	_, err := runCmd(t, path)
	require.Error(t, err)
}

func TestCompileRejectsMissingInputFile(t *testing.T) {
	_, err := runCmd(t, filepath.Join(t.TempDir(), "missing.ir"))
	require.Error(t, err)
}

func TestCompileWritesToRequestedOutputFile(t *testing.T) {
	inPath := writeSource(t, addConsts)
	outPath := filepath.Join(t.TempDir(), "out.s")

	_, err := runCmd(t, inPath, "-o", outPath)
	require.NoError(t, err)

	written, err := readInput(outPath)
	require.NoError(t, err)
	require.Contains(t, written, ".globl add_consts")
}

func TestCompileAcceptsIRIRTargetTripleDirectly(t *testing.T) {
	path := writeSource(t, addConsts)
	out, err := runCmd(t, path, "--target=ir-ir")
	require.NoError(t, err)
	require.Contains(t, out, "fn add_consts")
	require.NotContains(t, out, ".globl")
}
