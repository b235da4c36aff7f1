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

// fcxc is the command-line front end over fcx/src/compile. It stays a thin
// wiring layer per spec §1 ("CLI flag plumbing" is named alongside logging
// as deliberately out of core scope), with no pipeline logic of its own.
// Each flag feeds a compile.Options field or the output path, prints one
// Result field, runs a stand-alone dump (--dump-tokens, --dump-operators) or
// sets the log level (--verbose); -c, -shared and -fPIC are accepted and have
// no effect.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"fcx/internal/diag"
	"fcx/internal/logging"
	"fcx/src/ast"
	"fcx/src/compile"
	"fcx/src/compile/hir"
	"fcx/src/preprocess"
	"fcx/src/registry"
)

var (
	outputPath       string
	verbose          bool
	debug            bool
	optFlag          string
	profile          string
	includePaths     []string
	dumpTokens       bool
	dumpPreprocessed bool
	dumpAST          bool
	dumpHIR          bool
	dumpLIR          bool
	dumpOperators    bool
	stopAfter        string
	compileOnly      bool
	shared           bool
	positionIndep    bool
)

func main() {
	root := &cobra.Command{
		Use:   "fcxc <input>",
		Short: "FCx compiler front end",
		Args:  cobra.ExactArgs(1),
		RunE:  run,
	}

	root.Flags().StringVarP(&outputPath, "output", "o", "a.out", "output path")
	root.Flags().BoolVar(&verbose, "verbose", false, "enable verbose logging")
	root.Flags().BoolVar(&debug, "debug", false, "enable debug logging and intermediate dumps")
	root.Flags().StringVarP(&optFlag, "O", "O", "0", "optimization level: 0,1,2,3,s")
	root.Flags().StringVar(&profile, "profile", "debug", "build profile: debug|release|size")
	root.Flags().StringSliceVarP(&includePaths, "include", "I", nil, "preprocessor include search path")
	root.Flags().BoolVar(&dumpTokens, "dump-tokens", false, "dump lexer tokens and exit")
	root.Flags().BoolVar(&dumpPreprocessed, "dump-preprocessed", false, "dump preprocessor output")
	root.Flags().BoolVar(&dumpAST, "dump-ast", false, "dump the parsed AST")
	root.Flags().BoolVar(&dumpHIR, "dump-hir", false, "dump the built HIR module")
	root.Flags().BoolVar(&dumpLIR, "dump-lir", false, "dump the lowered LIR")
	root.Flags().BoolVar(&dumpOperators, "dump-operators", false, "dump the operator-expansion diagnostic and exit")
	root.Flags().StringVar(&stopAfter, "stop-after", "", "halt the pipeline after phase: preprocess|parse|hir|lir")
	root.Flags().BoolVarP(&compileOnly, "c", "c", false, "compile only, do not link")
	root.Flags().BoolVar(&shared, "shared", false, "build a shared object")
	root.Flags().BoolVar(&positionIndep, "fPIC", false, "emit position-independent code")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	if verbose {
		_ = logging.SetLevel("debug")
	}

	if dumpOperators {
		dumpOperatorTable()
		return nil
	}

	input := args[0]
	if dumpTokens {
		return dumpTokenStream(input)
	}

	opts := compile.Options{
		IncludePaths: includePaths,
		OptLevel:     parseOptLevel(optFlag, profile),
		Debug:        debug,
		StopAfter:    stopAfter,
	}

	result, diagErr := compile.CompileFile(input, outputPath, opts)
	if dumpPreprocessed && result != nil {
		fmt.Println(result.Preprocessed)
	}
	if dumpAST && result != nil && result.Root != nil {
		fmt.Printf("%v\n", result.Root)
	}
	if dumpHIR && result != nil && result.Module != nil {
		for _, fn := range result.Module.Funcs {
			fmt.Printf("%v\n", fn)
		}
	}
	if dumpLIR && result != nil {
		for _, l := range result.LIRs {
			fmt.Print(l.String())
		}
	}
	if diagErr != nil {
		return fmt.Errorf("%s", diagErr.Error())
	}
	if result != nil && result.OutputPath != "" {
		fmt.Printf("wrote %s\n", result.OutputPath)
	}
	return nil
}

// parseOptLevel maps the CLI's -O0..-O3/-Os and --profile flags onto
// hir.OptLevel; -O1, -O2, -O3 and -Os win over the profile, while -O0 (the
// flag's default) defers to the --profile level.
func parseOptLevel(optFlag, profile string) hir.OptLevel {
	switch strings.ToLower(optFlag) {
	case "1":
		return hir.O1
	case "2":
		return hir.O2
	case "3":
		return hir.O3
	case "s":
		return hir.Os
	}
	switch profile {
	case "release":
		return hir.O3
	case "size":
		return hir.Os
	default:
		return hir.O0
	}
}

// dumpOperatorTable walks the process-wide registry and prints one line per
// registered symbol: its family, arity, precedence/associativity, and
// description, in registration order.
func dumpOperatorTable() {
	for _, op := range registry.Global().All() {
		fmt.Printf("%-6s family=%-20s arity=%-8s prec=%-3d assoc=%-4s  %s\n",
			op.Symbol, op.Family, op.Arity, op.Precedence, op.Associativity, op.Description)
	}
}

// dumpTokenStream preprocesses path and prints every token the lexer
// produces over the expanded text, one per line, then exits without
// running the rest of the pipeline.
func dumpTokenStream(path string) error {
	text, ppDiags := preprocess.Run(path, includePaths)
	for _, d := range ppDiags {
		fmt.Fprintln(os.Stderr, d.Error())
	}
	if fatalDiag(ppDiags) {
		return fmt.Errorf("preprocessing failed for %s", path)
	}

	lexer := ast.NewLexer(path, strings.NewReader(text))
	for {
		tok, d := lexer.NextToken()
		if d != nil {
			fmt.Fprintln(os.Stderr, d.Error())
		}
		fmt.Printf("%s\t%q\n", tok.Kind, tok.Str)
		if tok.Kind == ast.TK_EOF || lexer.HadError() {
			break
		}
	}
	return nil
}

func fatalDiag(diags []*diag.Diagnostic) bool {
	return len(diags) > 0
}
