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
	"io"
	"os"

	"github.com/spf13/cobra"

	"backend/internal/abi"
	"backend/internal/diagnostics"
	"backend/internal/emit"
	"backend/internal/ir"
	"backend/internal/isel"
	"backend/internal/regalloc"
	"backend/internal/spill"
	"backend/internal/target"
	"backend/internal/types"
)

type options struct {
	output      string
	emitKind    string
	dumpTokens  bool
	targetTriple string
}

// newRootCommand builds the backendc cobra command: a positional input
// path (or stdin when omitted/"-"), -o for the output path, --emit for
// the requested artifact, --dump-tokens for a lexer-only diagnostic
// pass, and --target for the triple the emitter keys off of (an ir-ir
// triple also skips compile).
func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "backendc [input]",
		Short: "Compile one IR-text function to assembly",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			input := "-"
			if len(args) == 1 {
				input = args[0]
			}
			return run(cmd.OutOrStdout(), input, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.output, "output", "o", "-", "output path, - for stdout")
	flags.StringVar(&opts.emitKind, "emit", "asm", "artifact to emit: asm or ir")
	flags.BoolVar(&opts.dumpTokens, "dump-tokens", false, "print the lexer token stream and exit")
	flags.StringVar(&opts.targetTriple, "target", "x86_64-linux", "target triple, <arch>-<sys> or ir-ir")

	return cmd
}

func run(stdout io.Writer, inputPath string, opts *options) error {
	src, err := readInput(inputPath)
	if err != nil {
		return diagnostics.Wrapf(err, inputPath, 0, "reading input")
	}

	if opts.dumpTokens {
		return dumpTokens(stdout, inputPath, src)
	}

	tgt, err := target.Parse(opts.targetTriple)
	if err != nil {
		return diagnostics.Wrapf(err, inputPath, 0, "parsing --target")
	}
	if opts.emitKind == "ir" {
		tgt = target.Target{Arch: target.ArchIR, Sys: target.SysIR}
	}

	u := types.NewUniverse()
	fn, err := ir.Parse(src, u)
	if err != nil {
		return diagnostics.Wrapf(err, inputPath, 0, "parsing IR")
	}

	if tgt.Arch != target.ArchIR {
		compile(u, fn)
	}

	e := emit.New(u, tgt)
	e.Function(fn)

	return writeOutput(stdout, opts.output, e.String())
}

// compile runs the full x86-64 lowering pipeline in the order the
// passes depend on each other: ABI binding first so every value has a
// declared home -- incoming parameters and return first, then every
// call site's outgoing arguments and return-value unpacking, since call
// lowering inserts new OpCopy/OpAlloca instructions isel must still see
// -- then instruction selection's four phases, then spilling before
// the allocator ever runs (spill decides what needs a stack slot,
// regalloc only ever sees what's left), then the ABI-temp mirroring
// optimization, and the greedy allocator last.
func compile(u *types.Universe, fn *ir.Function) {
	abi.Lower(u, fn)
	abi.LowerCallSites(u, fn)

	isel.LowerPointerArithmetic(u, fn)
	isel.ReserveFixedRegisters(fn)
	isel.ExpandMemcpy(u, fn)
	isel.SatisfyConstraints(fn)

	spill.Run(u, fn)

	regalloc.MirrorABITemps(fn)
	regalloc.Run(fn)
}

func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func writeOutput(stdout io.Writer, path, text string) error {
	if path == "-" {
		_, err := io.WriteString(stdout, text)
		return err
	}
	return os.WriteFile(path, []byte(text), 0o644)
}
