// Copyright (c) 2024 The Falcon Contributors
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

// Package hir is FCx's operator-centric High-Level IR (spec §3/§4.5). The
// SSA value/block/function shape is carried over from the teacher's
// compile/ssa package almost verbatim (def-use chains, phi constructions,
// dominance); what changes is WHAT an instruction means: instead of a fixed
// C-like opcode set (Add/Sub/CInt/...), most instructions wrap a
// *registry.Descriptor straight out of the operator table, so the HIR keeps
// every FCx operator as a first-class opcode rather than lowering it to a
// generic arithmetic op during AST-to-HIR construction.
package hir

import (
	"fmt"

	"fcx/src/ast"
	"fcx/src/bigint"
	"fcx/src/registry"
	"fcx/src/utils"
)

// Op is the HIR instruction opcode. Structural opcodes (OpConst..OpHalt)
// cover control flow and data movement that has no corresponding registered
// operator; OpReg and its family-specific variants all carry a
// *registry.Descriptor in Value.Reg and dispatch on Reg.Kind/Reg.Family.
type Op int

const (
	OpConst Op = iota
	OpParam
	OpPhi
	OpCopy
	OpAdd // '+' is deliberately excluded from the operator registry (spec §6); HIR still needs a first-class add opcode
	OpSub // same for '-'
	OpCall       // direct call to a function defined in this module (Sym = *Func)
	OpCallExtern // call through the module's external-function table (Sym = extern id)
	OpLoad
	OpStore
	OpLoadIndex
	OpStoreIndex
	OpReg     // arithmetic-dense / comparison / bitfield / shift-rotate / data-movement
	OpMemory  // memory-alloc family (mem>, stk>, free>, algn>, ...); Aux = MemOpKind
	OpAtomic  // atomic-concurrency family (!, <=>-as-CAS, ...); Aux = AtomicOpKind
	OpSyscall // syscall-os family; Args are the ordered syscall arguments
	OpIO      // io-format family (print>, <<<, sqrt>, ...)
	OpInlineAsm
)

func (op Op) String() string {
	switch op {
	case OpConst:
		return "Const"
	case OpParam:
		return "Param"
	case OpPhi:
		return "Phi"
	case OpCopy:
		return "Copy"
	case OpAdd:
		return "Add"
	case OpSub:
		return "Sub"
	case OpCall:
		return "Call"
	case OpCallExtern:
		return "CallExtern"
	case OpLoad:
		return "Load"
	case OpStore:
		return "Store"
	case OpLoadIndex:
		return "LoadIndex"
	case OpStoreIndex:
		return "StoreIndex"
	case OpReg:
		return "Reg"
	case OpMemory:
		return "Memory"
	case OpAtomic:
		return "Atomic"
	case OpSyscall:
		return "Syscall"
	case OpIO:
		return "IO"
	case OpInlineAsm:
		return "InlineAsm"
	}
	return "<Unknown>"
}

// Value is one SSA instruction/definition. It plays the same role as the
// teacher's ssa.Value: Args are operands (other Values), Uses/UseBlock are
// the reverse def-use edges that DCE and copy-propagation walk.
type Value struct {
	Id       int
	Op       Op
	Reg      *registry.Descriptor // set for OpReg/OpMemory/OpAtomic/OpSyscall/OpIO
	Args     []*Value
	Imm      int64     // decoded immediate for OpConst when it fits 64 bits
	BigImm   *bigint.Int // decoded immediate for OpConst when it does not
	Sym      interface{} // call target, extern id, string-pool id, param index
	Aux      interface{} // family sub-opcode payload (MemOpKind, AtomicOpKind, ...)
	Block    *Block
	Uses     []*Value
	UseBlock []*Block
	Type     *ast.Type
}

func (v *Value) String() string {
	str := fmt.Sprintf("v%v = %v", v.Id, v.Op)
	if v.Reg != nil {
		str += fmt.Sprintf("[%s]", v.Reg.Symbol)
	}
	if v.Type != nil {
		str += fmt.Sprintf("<%v>", v.Type)
	}
	for _, arg := range v.Args {
		str += fmt.Sprintf(" v%d", arg.Id)
	}
	if v.Sym != nil {
		str += fmt.Sprintf(" @%v", v.Sym)
	}
	return str
}

func (v *Value) AddArg(args ...*Value) {
	for _, arg := range args {
		v.Args = append(v.Args, arg)
		arg.Uses = append(arg.Uses, v)
	}
}

func (v *Value) AddUseBlock(block *Block) {
	v.UseBlock = append(v.UseBlock, block)
	block.Ctrl = v
}

func (v *Value) RemoveUseBlock(block *Block) {
	for idx, b := range v.UseBlock {
		if b == block {
			v.UseBlock = append(v.UseBlock[:idx], v.UseBlock[idx+1:]...)
			break
		}
	}
	block.Ctrl = nil
}

func (v *Value) RemoveUse(value *Value) {
	for i := len(v.Uses) - 1; i >= 0; i-- {
		if v.Uses[i] == value {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
		}
	}
}

// RemoveUseOnce removes a single occurrence of value from v's use list,
// used by DCE/CFG-simplification when a phi references the same def twice.
func (v *Value) RemoveUseOnce(value *Value) {
	for i, use := range v.Uses {
		if use == value {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
			return
		}
	}
}

func (v *Value) ReplaceUses(value *Value) {
	for idx, use := range v.Uses {
		for i, arg := range use.Args {
			if arg == v {
				use.Args[i] = value
				v.Uses[idx] = nil
				value.Uses = append(value.Uses, use)
				break
			}
		}
	}
	for i := len(v.Uses) - 1; i >= 0; i-- {
		if v.Uses[i] == nil {
			v.Uses = append(v.Uses[:i], v.Uses[i+1:]...)
		}
	}
	if v.UseBlock != nil {
		value.UseBlock = append(value.UseBlock, v.UseBlock...)
		for _, ub := range value.UseBlock {
			ub.Ctrl = value
		}
		v.UseBlock = nil
	}
}

// -----------------------------------------------------------------------------
// Basic Block

type BlockKind int

const (
	BlockIf BlockKind = iota
	BlockGoto
	BlockReturn
	BlockDead
)

func (kind BlockKind) String() string {
	switch kind {
	case BlockIf:
		return "If"
	case BlockGoto:
		return "Goto"
	case BlockReturn:
		return "Return"
	}
	return "<Unknown>"
}

type BlockHint int

const (
	None BlockHint = iota
	HintEntry
	HintLoopHeader
)

type Block struct {
	Func   *Func
	Id     int
	Kind   BlockKind
	Values []*Value
	Succs  []*Block
	Preds  []*Block
	Ctrl   *Value
	Hint   BlockHint
}

// Label is the block's label id for control-flow operands. Block ids are
// per-function and already satisfy spec §3's "label ids are per-function"
// invariant, so no separate label counter is needed per block.
func (block *Block) Label() int { return block.Id }

func (block *Block) String() string {
	var str string
	if len(block.Preds) > 0 {
		str = fmt.Sprintf("b%v: [", block.Id)
		for i, pred := range block.Preds {
			if i == len(block.Preds)-1 {
				str += fmt.Sprintf("b%d", pred.Id)
			} else {
				str += fmt.Sprintf("b%d ", pred.Id)
			}
		}
		str += "]\n"
	} else {
		str = fmt.Sprintf("b%v: \n", block.Id)
	}
	var ctrl *Value
	for _, val := range block.Values {
		str += fmt.Sprintf(" %v\n", val)
		for _, buse := range val.UseBlock {
			if buse == block {
				ctrl = val
				break
			}
		}
	}
	if ctrl != nil {
		str += fmt.Sprintf(" %s v%d ", block.Kind.String(), ctrl.Id)
	} else {
		str += fmt.Sprintf(" %s ", block.Kind.String())
	}
	if len(block.Succs) > 0 {
		str += "["
		for i, succ := range block.Succs {
			if i == len(block.Succs)-1 {
				str += fmt.Sprintf("b%d", succ.Id)
			} else {
				str += fmt.Sprintf("b%d ", succ.Id)
			}
		}
		str += "]"
	}
	return str
}

func (block *Block) WireTo(to *Block) {
	block.Succs = append(block.Succs, to)
	to.Preds = append(to.Preds, block)
}

func (block *Block) NewValue(op Op, t *ast.Type, args ...*Value) *Value {
	val := &Value{Id: block.Func.globalValueId, Block: block, Op: op, Type: t}
	block.Func.globalValueId++
	val.Args = make([]*Value, 0)
	for _, arg := range args {
		val.AddArg(arg)
	}
	if op == OpPhi {
		block.Values = append([]*Value{val}, block.Values...)
	} else {
		block.Values = append(block.Values, val)
	}
	return val
}

func (block *Block) RemoveValue(val *Value) {
	for idx, v := range block.Values {
		if v == val {
			for _, def := range val.Args {
				def.RemoveUse(val)
			}
			block.Values = append(block.Values[:idx], block.Values[idx+1:]...)
			break
		}
	}
}

func (block *Block) RemoveSucc(succ *Block) bool {
	for idx, s := range block.Succs {
		if s == succ {
			block.Succs = append(block.Succs[:idx], block.Succs[idx+1:]...)
			return true
		}
	}
	return false
}

func (block *Block) RemovePred(pred *Block) bool {
	for idx, p := range block.Preds {
		if p == pred {
			block.Preds = append(block.Preds[:idx], block.Preds[idx+1:]...)
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// HIR Function — name, vreg-typed parameters, return type-class, ordered
// basic blocks, and the next-vreg/next-label counters spec §3 names.

type FuncParam struct {
	Name  string
	Value *Value
}

type Func struct {
	globalValueId int
	globalBlockId int
	Name          string
	Params        []*FuncParam
	RetType       *ast.Type
	Entry         *Block
	Blocks        []*Block
}

func NewFunc(name string) *Func {
	return &Func{Name: name, Blocks: make([]*Block, 0)}
}

// NextVregId returns the id the next allocated vreg would receive, i.e. the
// bound spec §8 requires every vreg operand to be strictly less than.
func (fn *Func) NextVregId() int { return fn.globalValueId }

func (fn *Func) NewBlock(kind BlockKind) *Block {
	block := &Block{
		Func:   fn,
		Id:     fn.globalBlockId,
		Kind:   kind,
		Values: make([]*Value, 0),
		Succs:  make([]*Block, 0),
		Preds:  make([]*Block, 0),
	}
	fn.globalBlockId++
	fn.Blocks = append(fn.Blocks, block)
	return block
}

func (fn *Func) RemoveBlock(block *Block) {
	for i := len(fn.Blocks) - 1; i >= 0; i-- {
		if fn.Blocks[i] == block {
			fn.Blocks = append(fn.Blocks[:i], fn.Blocks[i+1:]...)
			break
		}
	}
	for i := len(block.Values) - 1; i >= 0; i-- {
		block.RemoveValue(block.Values[i])
	}
}

func (fn *Func) String() string {
	var s string
	s += fmt.Sprintf("func %s:\n", fn.Name)
	for _, block := range fn.Blocks {
		s += fmt.Sprintf("%s\n", block.String())
	}
	return s
}

// -----------------------------------------------------------------------------
// HIR Module — named container of functions plus the string-literal pool,
// external-function table, and CPU-feature record spec §3 requires.

// StringPool interns string-literal payloads; ids are stable for the
// module's lifetime, grounded on the teacher's *ast.StrExpr value-as-payload
// approach but lifted to module scope since HIR instructions reference
// strings by id rather than carrying the payload inline.
type StringPool struct {
	values []string
	index  map[string]int
}

func NewStringPool() *StringPool {
	return &StringPool{index: make(map[string]int)}
}

func (p *StringPool) Intern(s string) int {
	if id, ok := p.index[s]; ok {
		return id
	}
	id := len(p.values)
	p.values = append(p.values, s)
	p.index[s] = id
	return id
}

func (p *StringPool) Get(id int) string { return p.values[id] }
func (p *StringPool) Len() int          { return len(p.values) }

// ExternFunc is one entry of the module-scoped, ordered external-function
// table; names are interned so repeated references share one id.
type ExternFunc struct {
	Id   int
	Name string
}

// CPUFeatureRecord matches spec §3's HIR module field verbatim: a bitmask of
// SSE/AVX/BMI tiers, preferred vector width, cache-line size, red-zone size,
// and alignment preference. Defaults model a conservative baseline x86-64
// SysV target; a future flag could let the CLI override individual fields.
type CPUFeatureRecord struct {
	SSE2, SSE3, SSSE3, SSE41, SSE42 bool
	AVX, AVX2, AVX512               bool
	BMI1, BMI2                      bool
	PreferredVectorWidth            int
	CacheLineSize                   int
	RedZoneSize                     int
	AlignmentPreference             int
}

// DefaultCPUFeatures is the baseline x86-64 SysV-AMD64 feature record: SSE2
// is architecturally guaranteed on x86-64, the red zone is the standard
// 128 bytes, and cache-line/alignment match the common 64-byte line.
func DefaultCPUFeatures() CPUFeatureRecord {
	return CPUFeatureRecord{
		SSE2:                  true,
		PreferredVectorWidth:  128,
		CacheLineSize:         64,
		RedZoneSize:           128,
		AlignmentPreference:   16,
	}
}

type Module struct {
	Name        string
	Funcs       []*Func
	Strings     *StringPool
	Externs     []*ExternFunc
	externIdx   map[string]int
	CPUFeatures CPUFeatureRecord
}

func NewModule(name string) *Module {
	return &Module{
		Name:        name,
		Strings:     NewStringPool(),
		externIdx:   make(map[string]int),
		CPUFeatures: DefaultCPUFeatures(),
	}
}

func (m *Module) NewFunc(name string) *Func {
	fn := NewFunc(name)
	m.Funcs = append(m.Funcs, fn)
	return fn
}

func (m *Module) FindFunc(name string) *Func {
	for _, fn := range m.Funcs {
		if fn.Name == name {
			return fn
		}
	}
	return nil
}

// InternExtern returns the stable, module-scoped id for an unresolved call
// target, appending a new ordered entry the first time a name is seen.
func (m *Module) InternExtern(name string) int {
	if id, ok := m.externIdx[name]; ok {
		return id
	}
	id := len(m.Externs)
	m.Externs = append(m.Externs, &ExternFunc{Id: id, Name: name})
	m.externIdx[name] = id
	return id
}

func (m *Module) String() string {
	s := fmt.Sprintf("module %s:\n", m.Name)
	for _, fn := range m.Funcs {
		s += fn.String()
	}
	return s
}

//------------------------------------------------------------------------------
// Debugging and verification

func (fn *Func) PrintDefUses() {
	for _, block := range fn.Blocks {
		fmt.Printf("b%d: ", block.Id)
		for _, val := range block.Values {
			fmt.Printf("%v: uses %v\n", val, val.Uses)
		}
		fmt.Printf("\n")
	}
}

// VerifyHIR checks the structural invariants spec §8 names: every block
// reachable from entry, phi arg counts matching predecessor counts, CFG edge
// counts matching block kind, and every value typed. It panics via
// utils.Fatal rather than returning an error because these are compiler-
// internal sanity checks, not user-facing diagnostics (a tripped invariant
// here means a bug in HIR construction or the optimizer, not bad input).
func VerifyHIR(fn *Func) {
	reachable := FindReachableBlocks(fn.Entry)
	for _, block := range fn.Blocks {
		if !reachable.Contains(block) {
			utils.Fatal("block b%d is unreachable during verification", block.Id)
		}
	}
	for _, block := range fn.Blocks {
		for _, val := range block.Values {
			if val.Op != OpPhi {
				continue
			}
			if len(val.Args) != len(block.Preds) {
				utils.Fatal("phi args mismatch with predecessors in b%d", block.Id)
			}
		}
	}
	for _, block := range fn.Blocks {
		switch block.Kind {
		case BlockGoto:
			if len(block.Succs) != 1 {
				utils.Fatal("block b%d: goto block must have exactly one successor", block.Id)
			}
		case BlockIf:
			if len(block.Succs) != 2 {
				utils.Fatal("block b%d: if block must have exactly two successors", block.Id)
			}
		case BlockReturn:
			if len(block.Succs) != 0 {
				utils.Fatal("block b%d: return block must have no successors", block.Id)
			}
		}
	}
	utils.Assert(len(fn.Entry.Preds) == 0, "entry block has no predecessors")
	for _, block := range fn.Blocks {
		for _, val := range block.Values {
			if val.Type == nil {
				utils.Fatal("HIR value %v is untyped", val)
			}
		}
	}
}
