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

// Package emitter defines the stable boundary spec §1 draws around the
// concrete machine-code emitter: "an external collaborator behind a small
// interface". Register allocation, instruction encoding, and object-file
// writing all live on the far side of this interface, not in this
// repository; what's here is the contract a real emitter must satisfy, plus
// a minimal stub used by the pipeline and its tests so `fcx/src/compile` has
// something concrete to drive end to end.
package emitter

import (
	"fmt"
	"os"

	"fcx/internal/diag"
	"fcx/src/compile/lir"
)

// Emitter turns one function's lowered LIR into a target artifact. A real
// implementation would perform register allocation, instruction encoding,
// and relocation bookkeeping; Emit's single obligation from this
// repository's point of view is to consume every *lir.LIR the pipeline
// produces and report success or a *diag.Diagnostic.
type Emitter interface {
	// Emit consumes one function's lowered form. Implementations may buffer
	// internally and only materialize output in Finish.
	Emit(fn *lir.LIR) *diag.Diagnostic

	// Finish flushes any buffered state to outputPath and reports the final
	// artifact's path, or a *diag.Diagnostic on failure.
	Finish(outputPath string) (string, *diag.Diagnostic)
}

// TextStub is the minimal Emitter this repository ships: it renders each
// function's LIR via its String() method and writes the concatenation to
// outputPath, unmodified by any real instruction selection or encoding. It
// exists so the pipeline's `--dump-lir`/`-o` flags have somewhere to land
// without depending on the external emitter spec §1 places out of scope.
type TextStub struct {
	sections []string
}

func NewTextStub() *TextStub { return &TextStub{} }

func (s *TextStub) Emit(fn *lir.LIR) *diag.Diagnostic {
	s.sections = append(s.sections, fn.String())
	return nil
}

func (s *TextStub) Finish(outputPath string) (string, *diag.Diagnostic) {
	f, err := os.Create(outputPath)
	if err != nil {
		return "", diag.Wrap(diag.KindEmitter, diag.Pos{File: outputPath}, err, "cannot create output file")
	}
	defer f.Close()
	for _, section := range s.sections {
		if _, err := fmt.Fprint(f, section); err != nil {
			return "", diag.Wrap(diag.KindEmitter, diag.Pos{File: outputPath}, err, "write failed")
		}
	}
	return outputPath, nil
}
