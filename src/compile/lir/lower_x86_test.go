package lir

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fcx/src/ast"
	"fcx/src/compile/hir"
	"fcx/src/registry"
)

func TestLowerLeafReturnConstantNeedsNoPrologue(t *testing.T) {
	mod := hir.NewModule("m")
	fn := mod.NewFunc("main")
	entry := fn.NewBlock(hir.BlockReturn)
	fn.Entry = entry

	seven := entry.NewValue(hir.OpConst, ast.TI64)
	seven.Imm = 7
	entry.AddUseBlock(seven)

	lowered := Lower(mod, fn)

	assert.Equal(t, 0, lowered.Frame.FrameSize())
	assert.False(t, lowered.Frame.NeedsPrologue())

	var sawPush bool
	for _, instr := range lowered.Blocks[entry.Id] {
		if instr.Op == LIR_Push {
			sawPush = true
		}
	}
	assert.False(t, sawPush, "a pure red-zone leaf must not push a frame pointer")
}

func TestLowerNonLeafCallNeedsPrologue(t *testing.T) {
	mod := hir.NewModule("m")
	callee := mod.NewFunc("helper")
	calleeEntry := callee.NewBlock(hir.BlockReturn)
	callee.Entry = calleeEntry
	callee.RetType = ast.TI64
	ret := calleeEntry.NewValue(hir.OpConst, ast.TI64)
	ret.Imm = 1
	calleeEntry.AddUseBlock(ret)

	fn := mod.NewFunc("main")
	entry := fn.NewBlock(hir.BlockReturn)
	fn.Entry = entry

	call := entry.NewValue(hir.OpCall, ast.TI64)
	call.Sym = callee
	entry.AddUseBlock(call)

	lowered := Lower(mod, fn)

	assert.True(t, lowered.Frame.NeedsPrologue())
	assert.Equal(t, 0, lowered.Frame.FrameSize()%16)

	var sawCall bool
	for _, instr := range lowered.Blocks[entry.Id] {
		if instr.Op == LIR_Call {
			sawCall = true
		}
	}
	assert.True(t, sawCall)
}

func TestLowerAtomicCASEmitsLockedCmpxchg(t *testing.T) {
	mod := hir.NewModule("m")
	fn := mod.NewFunc("cas")
	entry := fn.NewBlock(hir.BlockReturn)
	fn.Entry = entry

	addr := entry.NewValue(hir.OpConst, ast.TI64)
	addr.Imm = 0
	old := entry.NewValue(hir.OpConst, ast.TI64)
	old.Imm = 1
	newVal := entry.NewValue(hir.OpConst, ast.TI64)
	newVal.Imm = 2

	cas := entry.NewValue(hir.OpAtomic, ast.TI64, addr, old, newVal)
	cas.Reg = &registry.Descriptor{Symbol: "<=>", Kind: registry.KindAtomicCAS, Arity: registry.Ternary, Family: registry.FamAtomicConcurrency}
	cas.Aux = ast.AtomicCAS
	entry.AddUseBlock(cas)

	lowered := Lower(mod, fn)

	var sawLock bool
	for _, instr := range lowered.Blocks[entry.Id] {
		if instr.Op == LIR_LockCmpxchg && instr.Flags.Has(FlagLock) {
			sawLock = true
		}
	}
	assert.True(t, sawLock)
}

func TestLowerSyscallUsesSyscallRegisterSequence(t *testing.T) {
	mod := hir.NewModule("m")
	fn := mod.NewFunc("sys_write")
	entry := fn.NewBlock(hir.BlockReturn)
	fn.Entry = entry

	fd := entry.NewValue(hir.OpConst, ast.TI64)
	fd.Imm = 1
	call := entry.NewValue(hir.OpSyscall, ast.TI64, fd)
	call.Reg = &registry.Descriptor{Symbol: "sys>", Kind: registry.KindSyscallInvoke, Arity: registry.NAry, Family: registry.FamSyscallOS}
	entry.AddUseBlock(call)

	lowered := Lower(mod, fn)

	var sawSyscall bool
	for _, instr := range lowered.Blocks[entry.Id] {
		if instr.Op == LIR_Syscall {
			sawSyscall = true
		}
	}
	assert.True(t, sawSyscall)
	assert.Equal(t, ConvSyscall, lowered.Conv)
}
