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

// Package diag defines the closed set of error kinds that the core pipeline
// can surface, plus a Diagnostic type that carries a source location
// alongside the underlying cause. Every fallible stage returns (value, error)
// rather than panicking; only programmer mistakes (sanity checks that can
// never legitimately fail) use the panic-based asserts in fcx/src/utils.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind is the closed set of error kinds from spec §7.
type Kind int

const (
	KindIO Kind = iota
	KindPreprocessor
	KindLex
	KindParse
	KindLowering
	KindEmitter
)

func (k Kind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindPreprocessor:
		return "preprocessor"
	case KindLex:
		return "lex"
	case KindParse:
		return "parse"
	case KindLowering:
		return "lowering"
	case KindEmitter:
		return "emitter"
	default:
		return "unknown"
	}
}

// Pos is a source location: filename, line and column. Line and column are
// 1-based; a zero Line means "unknown location" (e.g. a module-wide error).
type Pos struct {
	File   string
	Line   int32
	Column int32
}

func (p Pos) String() string {
	if p.Line == 0 {
		return p.File
	}
	return fmt.Sprintf("%s:%d:%d", p.File, p.Line, p.Column)
}

// Diagnostic is the error value returned by every fallible stage. It wraps an
// underlying cause (often produced by errors.Wrap so a stack trace survives
// up to the CLI boundary) with the error Kind and the Pos it was raised at.
type Diagnostic struct {
	Kind    Kind
	Pos     Pos
	Message string
	cause   error
}

func (d *Diagnostic) Error() string {
	if d.Pos.File == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Kind, d.Message)
}

func (d *Diagnostic) Unwrap() error { return d.cause }

// New builds a Diagnostic with a formatted message and no deeper cause.
func New(kind Kind, pos Pos, format string, args ...interface{}) *Diagnostic {
	return &Diagnostic{Kind: kind, Pos: pos, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a Kind and Pos to an existing error, preserving it as the
// Diagnostic's cause so errors.Cause(...) and %+v stack traces still work.
func Wrap(kind Kind, pos Pos, err error, format string, args ...interface{}) *Diagnostic {
	if err == nil {
		return nil
	}
	wrapped := errors.Wrapf(err, format, args...)
	return &Diagnostic{Kind: kind, Pos: pos, Message: wrapped.Error(), cause: wrapped}
}

// Suggestions renders a "did you mean" list, used by the lexer's unknown
// operator diagnostic (spec §4.3).
func Suggestions(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	s := "did you mean: "
	for i, c := range candidates {
		if i > 0 {
			s += ", "
		}
		s += c
	}
	return s
}
