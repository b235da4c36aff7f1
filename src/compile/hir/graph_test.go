package hir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fcx/src/ast"
)

func buildModule(t *testing.T, src string) *Module {
	t.Helper()
	p := ast.NewParser("test.fcx", strings.NewReader(src))
	root := p.ParseRoot()
	require.Empty(t, p.Diagnostics(), "unexpected diagnostics: %v", p.Diagnostics())
	return BuildModule("test", root)
}

func findFunc(t *testing.T, mod *Module, name string) *Func {
	t.Helper()
	fn := mod.FindFunc(name)
	require.NotNil(t, fn, "function %s not built", name)
	return fn
}

func TestBuildFuncSimpleReturn(t *testing.T) {
	mod := buildModule(t, `fn f(a: i32, b: i32) -> i32 { return a + b; }`)
	fn := findFunc(t, mod, "f")
	require.Len(t, fn.Blocks, 1)
	require.Equal(t, BlockReturn, fn.Entry.Kind)

	var add *Value
	for _, v := range fn.Entry.Values {
		if v.Op == OpAdd {
			add = v
		}
	}
	require.NotNil(t, add, "expected an OpAdd value in entry block")
	assert.Len(t, add.Args, 2)
}

func TestBuildFuncCompoundAssignDistinctFromPlain(t *testing.T) {
	mod := buildModule(t, `fn f(a: i32, b: i32) -> i32 { a += b; a = b; return a; }`)
	fn := findFunc(t, mod, "f")

	var adds int
	for _, block := range fn.Blocks {
		for _, v := range block.Values {
			if v.Op == OpAdd {
				adds++
			}
		}
	}
	// a += b must build one OpAdd; the later plain a = b must not.
	assert.Equal(t, 1, adds)
}

func TestBuildFuncUnaryMinusNegatesZeroMinusOperand(t *testing.T) {
	mod := buildModule(t, `fn f(a: i32) -> i32 { return -a; }`)
	fn := findFunc(t, mod, "f")

	var sub *Value
	for _, v := range fn.Entry.Values {
		if v.Op == OpSub {
			sub = v
		}
	}
	require.NotNil(t, sub, "unary minus must build an OpSub from a synthesized zero")
	require.Len(t, sub.Args, 2)
	assert.Equal(t, OpConst, sub.Args[0].Op)
	assert.Equal(t, int64(0), sub.Args[0].Imm)
}

func TestBuildFuncUnaryPlusIsNoOp(t *testing.T) {
	mod := buildModule(t, `fn f(a: i32) -> i32 { return +a; }`)
	fn := findFunc(t, mod, "f")
	for _, v := range fn.Entry.Values {
		assert.NotEqual(t, OpSub, v.Op, "unary plus must not synthesize a subtraction")
	}
}

func TestBuildFuncIfElsePhi(t *testing.T) {
	mod := buildModule(t, `
		fn f(a: i32, b: i32) -> i32 {
			let c: i32 = 0;
			if a > b {
				c = a;
			} else {
				c = b;
			}
			return c;
		}`)
	fn := findFunc(t, mod, "f")
	VerifyHIR(fn) // must not panic: phi arg counts must match predecessor counts

	var phis int
	for _, block := range fn.Blocks {
		for _, v := range block.Values {
			if v.Op == OpPhi {
				phis++
				assert.Len(t, v.Args, len(block.Preds))
			}
		}
	}
	assert.GreaterOrEqual(t, phis, 1)
}

func TestBuildFuncLoopBreakContinue(t *testing.T) {
	mod := buildModule(t, `
		fn f(n: i32) -> i32 {
			let i: i32 = 0;
			loop i < n {
				i += 1;
				if i == n {
					break;
				}
			}
			return i;
		}`)
	fn := findFunc(t, mod, "f")
	VerifyHIR(fn)
}

func TestBuildFuncInfiniteLoopConditionIsTypedBoolConst(t *testing.T) {
	mod := buildModule(t, `fn f() -> i32 { loop { return 0; } }`)
	fn := findFunc(t, mod, "f")
	VerifyHIR(fn) // every value must be typed, including the synthesized loop condition
}

func TestBuildFuncClosureBuildsNestedFunction(t *testing.T) {
	before := 0
	mod := buildModule(t, `fn f() -> void { let g: ptr = fn(a: i32) -> i32 { return a; }; }`)
	for _, fn := range mod.Funcs {
		if fn.Name == "$closure" {
			before++
		}
	}
	assert.Equal(t, 1, before)
}
