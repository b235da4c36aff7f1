package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := NewLexer("test.fcx", strings.NewReader(src))
	var toks []Token
	for {
		tok, d := l.NextToken()
		require.Nil(t, d, "unexpected diagnostic: %v", d)
		if tok.Kind == TK_EOF {
			break
		}
		toks = append(toks, tok)
	}
	return toks
}

func TestLexerPlusMinusStayOutsideRegistry(t *testing.T) {
	toks := lexAll(t, "a + b - c += d -= e")
	require.Len(t, toks, 9)
	assert.Equal(t, TK_PLUS, toks[1].Kind)
	assert.Equal(t, TK_MINUS, toks[3].Kind)
	assert.Equal(t, TK_PLUS_ASSIGN, toks[5].Kind)
	assert.Equal(t, TK_MINUS_ASSIGN, toks[7].Kind)
}

func TestLexerGreedyMatchesLongestShiftAssign(t *testing.T) {
	// Seed scenario from spec §8: "a<<=b" must tokenize as a single <<=
	// operator, not as < then <= or << then =.
	toks := lexAll(t, "a<<=b")
	require.Len(t, toks, 3)
	assert.Equal(t, TK_OP, toks[1].Kind)
	assert.Equal(t, "<<=", toks[1].Op.Symbol)
}

func TestLexerAlphabeticOperatorNotConfusedWithIdentifier(t *testing.T) {
	toks := lexAll(t, "memory mem>(x, 8, 16)")
	require.Len(t, toks, 9)
	assert.Equal(t, TK_IDENT, toks[0].Kind)
	assert.Equal(t, "memory", toks[0].Str)
	assert.Equal(t, TK_OP, toks[1].Kind)
	assert.Equal(t, "mem>", toks[1].Op.Symbol)
}

func TestLexerBigIntegerLiteralAtSixtyFourBitBoundary(t *testing.T) {
	toks := lexAll(t, "18446744073709551616")
	require.Len(t, toks, 1)
	assert.Equal(t, TK_LIT_BIGINT, toks[0].Kind)
	assert.Equal(t, "18446744073709551616", toks[0].BigInt.String())
}

func TestLexerDecimalIntegerFitsUint64(t *testing.T) {
	toks := lexAll(t, "42")
	require.Len(t, toks, 1)
	assert.Equal(t, TK_LIT_INT, toks[0].Kind)
	assert.EqualValues(t, 42, toks[0].IntVal)
}

func TestLexerHexBinOctalPrefixes(t *testing.T) {
	toks := lexAll(t, "0xFF 0b101 0o17")
	require.Len(t, toks, 3)
	assert.EqualValues(t, 255, toks[0].IntVal)
	assert.EqualValues(t, 5, toks[1].IntVal)
	assert.EqualValues(t, 15, toks[2].IntVal)
}

func TestLexerUnderscoreDigitSeparator(t *testing.T) {
	toks := lexAll(t, "1_000_000")
	require.Len(t, toks, 1)
	assert.EqualValues(t, 1000000, toks[0].IntVal)
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\tc"`)
	require.Len(t, toks, 1)
	assert.Equal(t, "a\nb\tc", toks[0].Str)
}

func TestLexerUnknownByteReportsDiagnostic(t *testing.T) {
	l := NewLexer("test.fcx", strings.NewReader("\x01"))
	_, d := l.NextToken()
	require.NotNil(t, d)
	assert.True(t, l.HadError())
}

func TestLexerLineCommentSkipped(t *testing.T) {
	toks := lexAll(t, "a // comment\nb")
	require.Len(t, toks, 2)
	assert.Equal(t, "a", toks[0].Str)
	assert.Equal(t, "b", toks[1].Str)
}
