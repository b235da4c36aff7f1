package ast

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func parseSrc(t *testing.T, src string) *RootDecl {
	t.Helper()
	p := NewParser("test.fcx", strings.NewReader(src))
	root := p.ParseRoot()
	require.Empty(t, p.Diagnostics(), "unexpected diagnostics: %v", p.Diagnostics())
	return root
}

func TestParserCompactIfRewrite(t *testing.T) {
	// Seed scenario: `if cond -> stmt;` rewrites to the single-statement
	// block form the rest of the pipeline expects.
	root := parseSrc(t, `fn f(x: i32) -> void { if x -> return; }`)
	require.Len(t, root.Items, 1)
	fn := root.Items[0].(*FuncDecl)
	require.Len(t, fn.Body.Stmts, 1)
	ifStmt := fn.Body.Stmts[0].(*IfStmt)
	require.Len(t, ifStmt.Then.Stmts, 1)
	_, ok := ifStmt.Then.Stmts[0].(*ReturnStmt)
	assert.True(t, ok)
}

func TestParserLoopCompactRewrite(t *testing.T) {
	root := parseSrc(t, `fn f() -> void { loop -> break; }`)
	fn := root.Items[0].(*FuncDecl)
	loop := fn.Body.Stmts[0].(*LoopStmt)
	assert.Nil(t, loop.Cond)
	require.Len(t, loop.Body.Stmts, 1)
	_, ok := loop.Body.Stmts[0].(*BreakStmt)
	assert.True(t, ok)
}

func TestParserFuncDefCue(t *testing.T) {
	root := parseSrc(t, `fn main() -> void { add <=> fn(a: i32, b: i32) -> i32 { return a; }; }`)
	fn := root.Items[0].(*FuncDecl)
	exprStmt := fn.Body.Stmts[0].(*ExprStmt)
	assign := exprStmt.Expr.(*AssignExpr)
	ident := assign.Left.(*IdentifierExpr)
	assert.Equal(t, "add", ident.Name)
	_, ok := assign.Right.(*FuncDefExpr)
	assert.True(t, ok)
}

func TestParserGreedyShiftAssignOperator(t *testing.T) {
	root := parseSrc(t, `fn f(a: i32, b: i32) -> void { a <<= b; }`)
	fn := root.Items[0].(*FuncDecl)
	exprStmt := fn.Body.Stmts[0].(*ExprStmt)
	assign := exprStmt.Expr.(*AssignExpr)
	require.NotNil(t, assign.Op)
	assert.Equal(t, "<<=", assign.Op.Symbol)
}

func TestParserMemoryOpExpr(t *testing.T) {
	root := parseSrc(t, `fn f() -> void { let p: ptr = mem>(8, 16); }`)
	fn := root.Items[0].(*FuncDecl)
	letStmt := fn.Body.Stmts[0].(*LetStmt)
	m, ok := letStmt.Init.(*MemoryOpExpr)
	require.True(t, ok)
	assert.Equal(t, "mem>", m.Op.Symbol)
}

func TestParserTernaryExpr(t *testing.T) {
	root := parseSrc(t, `fn f(a: i32) -> void { let b: i32 = a ? 1 : 2; }`)
	fn := root.Items[0].(*FuncDecl)
	letStmt := fn.Body.Stmts[0].(*LetStmt)
	_, ok := letStmt.Init.(*TernaryExpr)
	assert.True(t, ok)
}

func TestParserConditionalExpr(t *testing.T) {
	root := parseSrc(t, `fn f(a: i32) -> void { ?(a)->a; }`)
	fn := root.Items[0].(*FuncDecl)
	exprStmt := fn.Body.Stmts[0].(*ExprStmt)
	_, ok := exprStmt.Expr.(*ConditionalExpr)
	assert.True(t, ok)
}

func TestParserBigIntLiteral(t *testing.T) {
	root := parseSrc(t, `fn f() -> void { let x: i1024 = 18446744073709551616; }`)
	fn := root.Items[0].(*FuncDecl)
	letStmt := fn.Body.Stmts[0].(*LetStmt)
	lit, ok := letStmt.Init.(*LiteralExpr)
	require.True(t, ok)
	assert.Equal(t, LitBigInt, lit.Kind)
	assert.Equal(t, "18446744073709551616", lit.BigVal.String())
}

func TestParserUseAndModule(t *testing.T) {
	root := parseSrc(t, "use std::mem;\nmod inner { fn f() -> void { } }")
	require.Len(t, root.Items, 2)
	use, ok := root.Items[0].(*UseStmt)
	require.True(t, ok)
	assert.Equal(t, []string{"std", "mem"}, use.Path)
	mod, ok := root.Items[1].(*ModuleStmt)
	require.True(t, ok)
	assert.True(t, mod.Inline)
}
