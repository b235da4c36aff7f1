// Copyright (c) 2024 The FCx Contributors
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

// Package compile orchestrates the full pipeline: preprocess -> lex/parse ->
// width resolution -> HIR construction -> optimization -> HIR->LIR lowering
// -> emission. It stays a thin wiring layer, per spec §1's framing of "CLI
// flag plumbing" and the concrete emitter as deliberately out of the core's
// scope: every actual transformation lives in its own package, this file
// just calls them in order and threads diagnostics through.
package compile

import (
	"strings"

	"fcx/internal/diag"
	"fcx/internal/logging"
	"fcx/src/ast"
	"fcx/src/compile/hir"
	"fcx/src/compile/lir"
	"fcx/src/emitter"
	"fcx/src/preprocess"
)

// Options configures one compilation run; it mirrors the flag surface
// cmd/fcxc exposes (spec §6) without depending on cobra or any flag-parsing
// library itself.
type Options struct {
	IncludePaths []string
	OptLevel     hir.OptLevel
	Debug        bool

	DumpPreprocessed bool
	DumpAST          bool
	DumpHIR          bool
	DumpLIR          bool
	StopAfter        string // "preprocess", "parse", "hir", "lir", "" = full pipeline
}

// Result carries every intermediate artifact a caller might want to dump,
// alongside the final output path once emission has run.
type Result struct {
	Preprocessed string
	Root         *ast.RootDecl
	Module       *hir.Module
	LIRs         []*lir.LIR
	OutputPath   string
}

// CompileFile runs the full pipeline over one source file and writes the
// resulting artifact to outputPath.
func CompileFile(path, outputPath string, opts Options) (*Result, *diag.Diagnostic) {
	log := logging.Stage("compile")
	result := &Result{}

	log.Debugw("preprocessing", "path", path)
	text, ppDiags := preprocess.Run(path, opts.IncludePaths)
	if d := firstFatal(ppDiags); d != nil {
		return result, d
	}
	result.Preprocessed = text
	if opts.StopAfter == "preprocess" {
		return result, nil
	}

	log.Debugw("parsing", "path", path)
	parser := ast.NewParser(path, strings.NewReader(text))
	root := parser.ParseRoot()
	result.Root = root
	if d := firstFatal(parser.Diagnostics()); d != nil {
		return result, d
	}
	if opts.StopAfter == "parse" {
		return result, nil
	}

	ast.ResolveWidths(root)

	log.Debugw("building HIR", "path", path)
	mod := hir.BuildModule(path, root)
	result.Module = mod
	for _, fn := range mod.Funcs {
		hir.OptimizeHIR(fn, opts.OptLevel, opts.Debug)
	}
	if opts.StopAfter == "hir" {
		return result, nil
	}

	log.Debugw("lowering to LIR", "path", path)
	var lowered []*lir.LIR
	for _, fn := range mod.Funcs {
		lowered = append(lowered, lir.Lower(mod, fn))
	}
	result.LIRs = lowered
	if opts.StopAfter == "lir" {
		return result, nil
	}

	log.Debugw("emitting", "output", outputPath)
	stub := emitter.NewTextStub()
	for _, l := range lowered {
		if d := stub.Emit(l); d != nil {
			return result, d
		}
	}
	out, d := stub.Finish(outputPath)
	if d != nil {
		return result, d
	}
	result.OutputPath = out
	return result, nil
}

// firstFatal returns the first diagnostic from a stage, since spec §7
// classifies preprocessor and parse errors as (for preprocessing) fatal, or
// (for parsing) recovered-then-resynchronized; the pipeline still halts at
// the first surfaced diagnostic rather than accumulating a batch past this
// boundary.
func firstFatal(diags []*diag.Diagnostic) *diag.Diagnostic {
	if len(diags) == 0 {
		return nil
	}
	return diags[0]
}
