package hir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fcx/src/ast"
)

func buildOptimizedFunc(t *testing.T, src, name string, level OptLevel) *Func {
	t.Helper()
	p := ast.NewParser("test.fcx", strings.NewReader(src))
	root := p.ParseRoot()
	require.Empty(t, p.Diagnostics())
	mod := BuildModule("test", root)
	fn := mod.FindFunc(name)
	require.NotNil(t, fn)
	OptimizeHIR(fn, level, false)
	VerifyHIR(fn)
	return fn
}

func TestOptimizeO0IsNoOp(t *testing.T) {
	fn := buildOptimizedFunc(t, `fn f() -> i32 { return 2 * 3; }`, "f", O0)
	var folded bool
	for _, v := range fn.Entry.Values {
		if v.Op == OpConst && v.Imm == 6 {
			folded = true
		}
	}
	assert.False(t, folded, "O0 must not fold constants")
}

func TestOptimizeO1FoldsArithmeticDenseMultiply(t *testing.T) {
	fn := buildOptimizedFunc(t, `fn f() -> i32 { return 2 * 3; }`, "f", O1)
	var folded bool
	for _, v := range fn.Entry.Values {
		if v.Op == OpConst && v.Imm == 6 {
			folded = true
		}
	}
	assert.True(t, folded, "2 * 3 must fold to a constant 6 at -O1")
}

func TestOptimizeO1FoldsAdd(t *testing.T) {
	fn := buildOptimizedFunc(t, `fn f() -> i32 { return 2 + 3; }`, "f", O1)
	var folded bool
	for _, v := range fn.Entry.Values {
		if v.Op == OpConst && v.Imm == 5 {
			folded = true
		}
	}
	assert.True(t, folded)
}

func TestOptimizeO1FoldsComparison(t *testing.T) {
	fn := buildOptimizedFunc(t, `fn f() -> i32 { if 2 < 3 { return 1; } return 0; }`, "f", O1)
	// the if must have folded away to an unconditional goto by DCE removing
	// the dead branch's block, since simplifyCFG only runs at O2/O3 — at O1
	// alone we only require that folding produced a constant comparison and
	// nothing panics in verification.
	var sawConstCmp bool
	for _, block := range fn.Blocks {
		for _, v := range block.Values {
			if v.Op == OpConst && v.Imm == 1 {
				sawConstCmp = true
			}
		}
	}
	assert.True(t, sawConstCmp)
}

func TestOptimizeO2FoldsAndSimplifiesConstantIf(t *testing.T) {
	fn := buildOptimizedFunc(t, `fn f() -> i32 { if 2 < 3 { return 1; } return 0; }`, "f", O2)
	for _, block := range fn.Blocks {
		assert.NotEqual(t, BlockIf, block.Kind, "constant-folded if must be simplified away at -O2")
	}
}

func TestOptimizeDivByZeroIsNotFolded(t *testing.T) {
	// Division by a constant zero must never be folded away (it's a runtime
	// trap, not a compile-time value); the instruction must survive O1.
	fn := buildOptimizedFunc(t, `fn f(a: i32) -> i32 { return a / 0; }`, "f", O1)
	var sawDiv bool
	for _, v := range fn.Entry.Values {
		if v.Op == OpReg && v.Reg != nil && v.Reg.Symbol == "/" {
			sawDiv = true
		}
	}
	assert.True(t, sawDiv, "division by a literal zero must not be folded")
}

func TestOptimizePinnedSyscallSurvivesDCE(t *testing.T) {
	fn := buildOptimizedFunc(t, `fn f() -> void { sys@(1, 2, 3); }`, "f", O3)
	var sawSyscall bool
	for _, block := range fn.Blocks {
		for _, v := range block.Values {
			if v.Op == OpSyscall {
				sawSyscall = true
			}
		}
	}
	assert.True(t, sawSyscall, "a syscall with unused result must not be DCE'd")
}
