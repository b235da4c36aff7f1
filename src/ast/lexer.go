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
package ast

import (
	"bufio"
	"io"
	"strings"

	"fcx/internal/diag"
	"fcx/src/bigint"
	"fcx/src/registry"
)

// TokenKind distinguishes the lexer's output tokens. Every registered
// operator symbol shares the single TK_OP kind; which operator it is lives
// on the Token's Op field (spec §4.3: the lexer does not special-case
// individual operators, it defers to the registry).
type TokenKind int

const (
	TK_INVALID TokenKind = iota
	TK_EOF
	TK_IDENT
	TK_LIT_INT
	TK_LIT_BIGINT
	TK_LIT_FLOAT
	TK_LIT_STR
	TK_LIT_CHAR
	TK_KEYWORD
	TK_OP    // any registered operator symbol; see Token.Op
	TK_PUNCT // ( ) { } [ ] , ; : . (plain punctuation, never registered)
	TK_ARROW // -> (the compact single-statement cue; spec §4.4)
	TK_PLUS  // + and += kept outside the registry (spec §6)
	TK_PLUS_ASSIGN
	TK_MINUS
	TK_MINUS_ASSIGN
)

var tokenKindNames = map[TokenKind]string{
	TK_INVALID: "INVALID", TK_EOF: "EOF", TK_IDENT: "IDENT",
	TK_LIT_INT: "LIT_INT", TK_LIT_BIGINT: "LIT_BIGINT", TK_LIT_FLOAT: "LIT_FLOAT",
	TK_LIT_STR: "LIT_STR", TK_LIT_CHAR: "LIT_CHAR", TK_KEYWORD: "KEYWORD",
	TK_OP: "OP", TK_PUNCT: "PUNCT", TK_ARROW: "ARROW",
	TK_PLUS: "PLUS", TK_PLUS_ASSIGN: "PLUS_ASSIGN", TK_MINUS: "MINUS", TK_MINUS_ASSIGN: "MINUS_ASSIGN",
}

// String renders a token kind's name, for --dump-tokens and diagnostics.
func (k TokenKind) String() string {
	if name, ok := tokenKindNames[k]; ok {
		return name
	}
	return "UNKNOWN"
}

var keywords = map[string]TokenKind{
	"if": TK_KEYWORD, "else": TK_KEYWORD, "loop": TK_KEYWORD, "while": TK_KEYWORD,
	"return": TK_KEYWORD, "halt": TK_KEYWORD, "break": TK_KEYWORD, "continue": TK_KEYWORD,
	"let": TK_KEYWORD, "fn": TK_KEYWORD, "mod": TK_KEYWORD, "use": TK_KEYWORD,
	"pub": TK_KEYWORD, "self": TK_KEYWORD, "super": TK_KEYWORD, "crate": TK_KEYWORD,
	"as": TK_KEYWORD, "true": TK_KEYWORD, "false": TK_KEYWORD, "null": TK_KEYWORD,
}

// Token is one lexical unit. Str carries the raw or decoded textual payload
// for identifiers/literals; Op is populated only for TK_OP. BigInt is
// populated only for TK_LIT_BIGINT (a literal that overflowed 64 bits).
type Token struct {
	Kind   TokenKind
	Str    string
	IntVal int64
	BigInt bigint.Int
	Op     *registry.Descriptor
	Pos    Pos
}

// maxOperatorScan bounds the lookahead used for registry probing: spec §6
// caps symbolic operators at 5 bytes, but named/alphabetic forms like
// "prefetch>"-style operators run longer, so the scan window is generous
// enough to absorb the longest alphabetic operator spelling too.
const maxOperatorScan = 20

// Lexer is a streaming, registry-aware tokenizer over a single source file,
// modeled on the teacher's bufio.Reader-based Lexer (single-byte lookahead
// for ordinary scanning, bounded multi-byte peek only when probing the
// operator registry).
type Lexer struct {
	fileName string
	reader   *bufio.Reader
	line     int32
	column   int32
	hadError bool
	reg      *registry.Registry
}

func NewLexer(fileName string, r io.Reader) *Lexer {
	return &Lexer{
		fileName: fileName,
		reader:   bufio.NewReaderSize(r, 4096),
		line:     1,
		column:   1,
		reg:      registry.Global(),
	}
}

func (l *Lexer) HadError() bool { return l.hadError }

func (l *Lexer) pos() Pos { return Pos{Line: l.line, Column: l.column} }

func (l *Lexer) next() byte {
	b, err := l.reader.ReadByte()
	if err != nil {
		return 0
	}
	if b == '\n' {
		l.line++
		l.column = 1
	} else {
		l.column++
	}
	return b
}

func (l *Lexer) peek() byte {
	b, err := l.reader.Peek(1)
	if err != nil || len(b) == 0 {
		return 0
	}
	return b[0]
}

// peekN returns up to n bytes of lookahead without consuming them; fewer
// than n bytes are returned at EOF.
func (l *Lexer) peekN(n int) []byte {
	b, _ := l.reader.Peek(n)
	return b
}

func isDigit(b byte) bool    { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool    { return b == '_' || (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') }
func isAlphaNum(b byte) bool { return isAlpha(b) || isDigit(b) }

func (l *Lexer) skipWhitespaceAndComments() {
	for {
		b := l.peek()
		switch {
		case b == ' ' || b == '\t' || b == '\r' || b == '\n':
			l.next()
		case b == '/' && string(l.peekN(2)) == "//":
			for l.peek() != '\n' && l.peek() != 0 {
				l.next()
			}
		case b == '/' && string(l.peekN(2)) == "/*":
			l.next()
			l.next()
			for {
				cur := l.peek()
				if cur == 0 {
					return
				}
				if cur == '*' && string(l.peekN(2)) == "*/" {
					l.next()
					l.next()
					break
				}
				l.next()
			}
		default:
			return
		}
	}
}

// NextToken produces the next token, or TK_EOF once input is exhausted. On
// an unrecognized byte it records a diagnostic, sets the sticky error flag,
// and returns a TK_INVALID token for that single byte so the caller (the
// parser's panic-mode recovery) keeps making forward progress rather than
// the lexer itself aborting (spec §4.3/§7: lexing never halts on a bad byte,
// it reports and continues).
func (l *Lexer) NextToken() (Token, *diag.Diagnostic) {
	l.skipWhitespaceAndComments()
	startPos := l.pos()
	b := l.peek()
	if b == 0 {
		return Token{Kind: TK_EOF, Pos: startPos}, nil
	}

	switch {
	case isDigit(b):
		return l.lexNumber(startPos)
	case isAlpha(b):
		// Alphabetic operator spellings (mem>, print>, ...) are tried against
		// the registry first; anything else is an identifier or keyword.
		if desc, n, ok := l.reg.GreedyLookup(l.peekN(maxOperatorScan)); ok {
			for i := 0; i < n; i++ {
				l.next()
			}
			return Token{Kind: TK_OP, Str: desc.Symbol, Op: desc, Pos: startPos}, nil
		}
		return l.lexIdentOrKeyword(startPos)
	case b == '"':
		return l.lexString(startPos)
	case b == '\'':
		return l.lexChar(startPos)
	}

	// + and - (and += / -=, and the compact -> cue) stay ordinary
	// switch-case tokens: spec §6's operator-alphabet byte list deliberately
	// omits both bytes.
	if b == '+' {
		l.next()
		if l.peek() == '=' {
			l.next()
			return Token{Kind: TK_PLUS_ASSIGN, Str: "+=", Pos: startPos}, nil
		}
		return Token{Kind: TK_PLUS, Str: "+", Pos: startPos}, nil
	}
	if b == '-' {
		l.next()
		switch l.peek() {
		case '=':
			l.next()
			return Token{Kind: TK_MINUS_ASSIGN, Str: "-=", Pos: startPos}, nil
		case '>':
			l.next()
			return Token{Kind: TK_ARROW, Str: "->", Pos: startPos}, nil
		}
		return Token{Kind: TK_MINUS, Str: "-", Pos: startPos}, nil
	}

	switch b {
	case '(', ')', '{', '}', '[', ']', ',', ';':
		l.next()
		return Token{Kind: TK_PUNCT, Str: string(b), Pos: startPos}, nil
	}

	// Every other alphabet byte tries the registry first. A non-terminal
	// prefix match (e.g. the start of an identifier that happens to share a
	// byte with an operator) simply fails here and falls through below, so
	// ordinary identifiers never need special-casing against operator bytes.
	buf := l.peekN(maxOperatorScan)
	if desc, n, ok := l.reg.GreedyLookup(buf); ok {
		for i := 0; i < n; i++ {
			l.next()
		}
		return Token{Kind: TK_OP, Str: desc.Symbol, Op: desc, Pos: startPos}, nil
	}

	switch b {
	case ':', '.', '=', '?':
		// Bare "=" (plain assignment) and bare "?" (ternary/compact-conditional
		// cue) are deliberately unregistered: spec §6's operator-alphabet byte
		// list only has compound forms built on these leading bytes ("==",
		// "?>", "?.", ...), so the lone byte always falls through the registry
		// lookup above to here.
		l.next()
		return Token{Kind: TK_PUNCT, Str: string(b), Pos: startPos}, nil
	}

	l.next()
	l.hadError = true
	suggestions := l.reg.Suggestions([]byte{b}, 3)
	d := diag.New(diag.KindLex, diag.Pos{File: l.fileName, Line: startPos.Line, Column: startPos.Column},
		"unrecognized byte %q; %s", b, diag.Suggestions(suggestions))
	return Token{Kind: TK_INVALID, Str: string(b), Pos: startPos}, d
}

func (l *Lexer) lexIdentOrKeyword(startPos Pos) (Token, *diag.Diagnostic) {
	var sb strings.Builder
	for isAlphaNum(l.peek()) {
		sb.WriteByte(l.next())
	}
	s := sb.String()
	if kind, ok := keywords[s]; ok {
		return Token{Kind: kind, Str: s, Pos: startPos}, nil
	}
	return Token{Kind: TK_IDENT, Str: s, Pos: startPos}, nil
}

// lexNumber handles decimal, 0x/0X hex, 0b/0B binary, and 0o/0O octal
// integer literals (with optional `_` digit-group separators), simple
// decimal floats, and overflow into bigint.Int past 64 bits (spec §4.3/§9:
// literal digits are folded limb-wise via bigint.MulAddDigit so overflow
// promotes the literal rather than truncating it).
func (l *Lexer) lexNumber(startPos Pos) (Token, *diag.Diagnostic) {
	base := uint64(10)
	if l.peek() == '0' {
		two := l.peekN(2)
		if len(two) == 2 {
			switch two[1] {
			case 'x', 'X':
				base = 16
				l.next()
				l.next()
			case 'b', 'B':
				base = 2
				l.next()
				l.next()
			case 'o', 'O':
				base = 8
				l.next()
				l.next()
			}
		}
	}

	var acc bigint.Int
	acc.NumLimbs = 1
	overflow := false
	sawDigit := false
	isFloat := false
	var raw strings.Builder

	digitVal := func(c byte) (uint64, bool) {
		switch {
		case c >= '0' && c <= '9':
			return uint64(c - '0'), true
		case c >= 'a' && c <= 'f':
			return uint64(c-'a') + 10, true
		case c >= 'A' && c <= 'F':
			return uint64(c-'A') + 10, true
		}
		return 0, false
	}

	for {
		c := l.peek()
		if c == '_' {
			l.next()
			continue
		}
		if v, ok := digitVal(c); ok && v < base {
			l.next()
			raw.WriteByte(c)
			sawDigit = true
			if acc.MulAddDigit(base, v) {
				overflow = true
			}
			continue
		}
		break
	}

	if base == 10 && l.peek() == '.' {
		next2 := l.peekN(2)
		if len(next2) == 2 && isDigit(next2[1]) {
			isFloat = true
			raw.WriteByte(l.next())
			for isDigit(l.peek()) {
				raw.WriteByte(l.next())
			}
		}
	}

	if !sawDigit {
		return Token{Kind: TK_INVALID, Str: raw.String(), Pos: startPos},
			diag.New(diag.KindLex, diag.Pos{File: l.fileName, Line: startPos.Line, Column: startPos.Column}, "malformed numeric literal")
	}

	if isFloat {
		return Token{Kind: TK_LIT_FLOAT, Str: raw.String(), Pos: startPos}, nil
	}

	if overflow {
		return Token{Kind: TK_LIT_BIGINT, Str: raw.String(), BigInt: acc, Pos: startPos},
			diag.New(diag.KindParse, diag.Pos{File: l.fileName, Line: startPos.Line, Column: startPos.Column}, "integer literal overflow beyond 1024 bits")
	}
	if !acc.FitsUint64() {
		return Token{Kind: TK_LIT_BIGINT, Str: raw.String(), BigInt: acc, Pos: startPos}, nil
	}
	return Token{Kind: TK_LIT_INT, Str: raw.String(), IntVal: int64(acc.Limbs[0]), Pos: startPos}, nil
}

// lexString handles a double-quoted string literal with the standard escape
// set (spec §4.3 calls for a two-pass size-then-decode strategy; a single
// pass suffices here since Go strings grow without a caller-managed buffer).
func (l *Lexer) lexString(startPos Pos) (Token, *diag.Diagnostic) {
	l.next() // opening quote
	var sb strings.Builder
	for {
		c := l.peek()
		if c == 0 {
			return Token{Kind: TK_INVALID, Str: sb.String(), Pos: startPos},
				diag.New(diag.KindLex, diag.Pos{File: l.fileName, Line: startPos.Line, Column: startPos.Column}, "unterminated string literal")
		}
		if c == '"' {
			l.next()
			break
		}
		if c == '\\' {
			l.next()
			sb.WriteByte(decodeEscape(l.next()))
			continue
		}
		sb.WriteByte(l.next())
	}
	return Token{Kind: TK_LIT_STR, Str: sb.String(), Pos: startPos}, nil
}

func (l *Lexer) lexChar(startPos Pos) (Token, *diag.Diagnostic) {
	l.next() // opening quote
	c := l.next()
	if c == '\\' {
		c = decodeEscape(l.next())
	}
	if l.peek() != '\'' {
		return Token{Kind: TK_INVALID, Pos: startPos},
			diag.New(diag.KindLex, diag.Pos{File: l.fileName, Line: startPos.Line, Column: startPos.Column}, "unterminated char literal")
	}
	l.next()
	return Token{Kind: TK_LIT_CHAR, Str: string(c), IntVal: int64(c), Pos: startPos}, nil
}

func decodeEscape(c byte) byte {
	switch c {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	case '0':
		return 0
	case '\\':
		return '\\'
	case '"':
		return '"'
	case '\'':
		return '\''
	case 'a':
		return '\a'
	case 'b':
		return '\b'
	case 'f':
		return '\f'
	case 'v':
		return '\v'
	default:
		return c
	}
}
