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

// Package preprocess implements spec §4.2: a textual, pre-tokenization pass
// that turns a source file plus its transitive includes into one
// concatenated buffer with directives and inactive regions stripped,
// macros expanded, and newline counts preserved. It never looks at tokens;
// everything here operates on raw lines, mirroring the lexer's own
// line-oriented reading style in fcx/src/ast/lexer.go.
package preprocess

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"fcx/internal/diag"
	"fcx/internal/logging"
)

const maxConditionalDepth = 64
const maxIncludeDepth = 64

// Macro is one #define entry. Params is nil for an object-like macro;
// non-nil (possibly empty) for a function-like one. Variadic records a
// trailing `...` parameter.
type Macro struct {
	Name     string
	Params   []string
	Variadic bool
	Body     string
}

// condFrame is one entry of the conditional stack (spec §4.2 "State"):
// whether any branch of this chain has fired yet, and whether the branch
// currently being scanned is live.
type condFrame struct {
	taken  bool
	active bool
	// parentActive remembers whether this frame's enclosing frame was
	// active, so a parent-inactive region forces every child inactive
	// regardless of its own condition's value.
	parentActive bool
}

// Preprocessor holds the macro table and directive-processing state shared
// across one top-level file and all of its transitive includes.
type Preprocessor struct {
	IncludePaths []string

	macros     map[string]*Macro
	conds      []*condFrame
	includes   []string // stack of canonical paths, for cycle detection
	pragmaOnce map[string]bool

	emitLineMarkers bool
	diags           []*diag.Diagnostic
}

// New creates a Preprocessor that searches includePaths for angle-bracket
// `#include <...>` directives.
func New(includePaths []string) *Preprocessor {
	return &Preprocessor{
		IncludePaths: includePaths,
		macros:       make(map[string]*Macro),
		pragmaOnce:   make(map[string]bool),
	}
}

// EmitLineMarkers turns on `#line N "file"` markers at include entry/exit
// (spec §4.2 "Output").
func (p *Preprocessor) EmitLineMarkers(on bool) { p.emitLineMarkers = on }

// Diagnostics returns every warning/error collected across the whole run.
func (p *Preprocessor) Diagnostics() []*diag.Diagnostic { return p.diags }

func (p *Preprocessor) errorf(file string, line int, format string, args ...interface{}) {
	d := diag.New(diag.KindPreprocessor, diag.Pos{File: file, Line: int32(line)}, format, args...)
	p.diags = append(p.diags, d)
}

// active reports whether the current conditional-stack top is live; an
// empty stack (top level) is always active.
func (p *Preprocessor) active() bool {
	if len(p.conds) == 0 {
		return true
	}
	top := p.conds[len(p.conds)-1]
	return top.active && top.parentActive
}

// Run preprocesses path (and its transitive includes) into a single text
// buffer, ready to be handed to fcx/src/ast's lexer/parser as an io.Reader.
func Run(path string, includePaths []string) (string, []*diag.Diagnostic) {
	p := New(includePaths)
	var out strings.Builder
	p.processFile(path, &out)
	if len(p.conds) > 0 {
		p.errorf(path, 0, "unterminated conditional at end of file (%d still open)", len(p.conds))
	}
	return out.String(), p.diags
}

func (p *Preprocessor) processFile(path string, out *strings.Builder) {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	if p.pragmaOnce[abs] {
		return
	}
	for _, seen := range p.includes {
		if seen == abs {
			p.errorf(path, 0, "circular include detected: %s", abs)
			return
		}
	}
	if len(p.includes) >= maxIncludeDepth {
		p.errorf(path, 0, "include stack exceeds %d entries", maxIncludeDepth)
		return
	}

	f, err := os.Open(path)
	if err != nil {
		p.errorf(path, 0, "cannot open include file: %v", err)
		return
	}
	defer f.Close()

	p.includes = append(p.includes, abs)
	logging.Stage("preprocessor").Debugw("entering file", "path", path, "depth", len(p.includes))
	if p.emitLineMarkers {
		fmt.Fprintf(out, "#line 1 %q\n", path)
	}

	condBase := len(p.conds)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	lineNo := 0
	var pendingContinuation string
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()

		// Line-continuation backslash-newline merges logical lines, used
		// both by directive lines and macro bodies (spec §4.2).
		if pendingContinuation != "" {
			line = pendingContinuation + line
			pendingContinuation = ""
		}
		if strings.HasSuffix(line, "\\") {
			pendingContinuation = strings.TrimSuffix(line, "\\")
			out.WriteByte('\n')
			continue
		}

		trimmed := strings.TrimLeft(line, " \t")
		if strings.HasPrefix(trimmed, "#") {
			p.handleDirective(path, lineNo, trimmed[1:], out)
			out.WriteByte('\n')
			continue
		}

		if p.active() {
			out.WriteString(p.expandMacros(path, lineNo, line, nil))
		}
		out.WriteByte('\n')
	}
	if err := scanner.Err(); err != nil {
		p.errorf(path, lineNo, "file read error: %v", err)
	}

	if len(p.conds) > condBase {
		p.errorf(path, lineNo, "unterminated conditional: %d still open at end of file", len(p.conds)-condBase)
	}

	if p.emitLineMarkers {
		fmt.Fprintf(out, "#line %d %q\n", lineNo+1, path)
	}
	p.includes = p.includes[:len(p.includes)-1]
	logging.Stage("preprocessor").Debugw("leaving file", "path", path)
}

func (p *Preprocessor) handleDirective(file string, line int, rest string, out *strings.Builder) {
	rest = strings.TrimLeft(rest, " \t")
	name, arg := splitDirective(rest)

	// Directives that must be recognized even while inactive, so nesting
	// and the overall chain stay consistent (spec §4.2 "parent-inactive
	// state forces all children inactive").
	switch name {
	case "ifdef", "ifndef", "if":
		p.pushCondition(file, line, name, arg)
		return
	case "elif":
		p.elifCondition(file, line, arg)
		return
	case "else":
		p.elseCondition(file, line)
		return
	case "endif":
		p.popCondition(file, line)
		return
	}

	if !p.active() {
		return
	}

	switch name {
	case "include":
		p.handleInclude(file, line, arg, out)
	case "define":
		p.handleDefine(file, line, arg)
	case "undef":
		delete(p.macros, strings.TrimSpace(arg))
	case "error":
		p.errorf(file, line, "#error: %s", arg)
	case "warning":
		logging.Stage("preprocessor").Warnw("#warning", "file", file, "line", line, "message", arg)
	case "pragma":
		if strings.TrimSpace(arg) == "once" {
			if abs, err := filepath.Abs(file); err == nil {
				p.pragmaOnce[abs] = true
			}
		}
		// every other pragma is ignored, per spec §4.2.
	case "line":
		// Logical line-counter override; FCx's line tracking is advisory
		// only (diagnostics already carry the physical file/line), so the
		// directive is recognized and otherwise a no-op.
	case "importc", "importcpp":
		fmt.Fprintf(out, "// %s: %s", name, strings.TrimSpace(arg))
	default:
		p.errorf(file, line, "unknown preprocessor directive #%s", name)
	}
}

func splitDirective(rest string) (name, arg string) {
	rest = strings.TrimLeft(rest, " \t")
	i := 0
	for i < len(rest) && (isIdentByte(rest[i])) {
		i++
	}
	return rest[:i], strings.TrimSpace(rest[i:])
}

func isIdentByte(b byte) bool {
	return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func (p *Preprocessor) pushCondition(file string, line int, kind, arg string) {
	if len(p.conds) >= maxConditionalDepth {
		p.errorf(file, line, "conditional nesting exceeds %d levels", maxConditionalDepth)
		return
	}
	parentActive := p.active()
	var cond bool
	switch kind {
	case "ifdef":
		_, cond = p.macros[strings.TrimSpace(arg)]
	case "ifndef":
		_, ok := p.macros[strings.TrimSpace(arg)]
		cond = !ok
	case "if":
		cond = p.evalConstExpr(file, line, arg) != 0
	}
	p.conds = append(p.conds, &condFrame{taken: cond, active: cond, parentActive: parentActive})
}

// elifCondition evaluates an #elif arm: it only fires the new branch if no
// earlier branch of this chain has already been taken, matching the chain
// semantics of #if/#elif/#else.
func (p *Preprocessor) elifCondition(file string, line int, arg string) {
	if len(p.conds) == 0 {
		p.errorf(file, line, "#elif without matching #if")
		return
	}
	top := p.conds[len(p.conds)-1]
	if top.taken {
		top.active = false
		return
	}
	cond := top.parentActive && p.evalConstExpr(file, line, arg) != 0
	top.active = cond
	top.taken = cond
}

func (p *Preprocessor) elseCondition(file string, line int) {
	if len(p.conds) == 0 {
		p.errorf(file, line, "#else without matching #if")
		return
	}
	top := p.conds[len(p.conds)-1]
	top.active = !top.taken
	top.taken = true
}

func (p *Preprocessor) popCondition(file string, line int) {
	if len(p.conds) == 0 {
		p.errorf(file, line, "unbalanced #endif")
		return
	}
	p.conds = p.conds[:len(p.conds)-1]
}
