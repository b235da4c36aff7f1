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

// Package lir is FCx's Low-level Intermediate Representation (spec §3/§4.7).
// It keeps the teacher's three-operand Instruction shape (result, args,
// comment) and its physical/virtual Register/Imm/Addr/Label/Symbol/Text
// operand family almost verbatim — only the opcode set and the operand
// family grow, since the wider FCx surface (big integers, stack slots,
// external calls, atomics, syscalls, inline asm) needs operands the
// teacher's fixed C-like IR never had to model.
package lir

import (
	"fmt"

	"fcx/src/ast"
	"fcx/src/bigint"
	"fcx/src/utils"
)

// LIROp is the machine-near opcode. Unlike hir.Op it is not operator-centric:
// many distinct source operators (e.g. every arithmetic-dense or
// bitfield-family operator) collapse onto a handful of LIR opcodes here,
// since by this stage all that matters is what x86-64 instruction template
// to emit (spec §4.7's translation-model examples).
type LIROp int

const (
	LIR_Mov LIROp = iota
	LIR_Lea
	LIR_Push
	LIR_Pop
	LIR_Add
	LIR_Sub
	LIR_Mul
	LIR_Div
	LIR_Mod
	LIR_And
	LIR_Or
	LIR_Xor
	LIR_Not
	LIR_Neg
	LIR_LShift
	LIR_RShift
	LIR_Rotl
	LIR_Rotr
	LIR_Adc
	LIR_Sbb
	LIR_CmpLE
	LIR_CmpLT
	LIR_CmpGE
	LIR_CmpGT
	LIR_CmpEQ
	LIR_CmpNE
	LIR_Cmp
	LIR_Test
	LIR_Jmp
	LIR_Jle
	LIR_Jlt
	LIR_Jge
	LIR_Jgt
	LIR_Jeq
	LIR_Jne
	LIR_Jz
	LIR_Jnz
	LIR_Call
	LIR_Ret
	LIR_Syscall
	LIR_Label
	LIR_Align
	LIR_Enter
	LIR_Leave
	LIR_LockCmpxchg // atomic compare-and-swap, always paired with FlagLock
	LIR_LockXadd    // atomic fetch-and-add
	LIR_MFence
	LIR_LFence
	LIR_SFence
	LIR_InlineAsm
)

func (x LIROp) String() string {
	switch x {
	case LIR_Mov:
		return "mov"
	case LIR_Lea:
		return "lea"
	case LIR_Push:
		return "push"
	case LIR_Pop:
		return "pop"
	case LIR_Add:
		return "add"
	case LIR_Sub:
		return "sub"
	case LIR_Mul:
		return "mul"
	case LIR_Div:
		return "div"
	case LIR_Mod:
		return "mod"
	case LIR_And:
		return "and"
	case LIR_Or:
		return "or"
	case LIR_Xor:
		return "xor"
	case LIR_Not:
		return "not"
	case LIR_Neg:
		return "neg"
	case LIR_LShift:
		return "shl"
	case LIR_RShift:
		return "shr"
	case LIR_Rotl:
		return "rol"
	case LIR_Rotr:
		return "ror"
	case LIR_Adc:
		return "adc"
	case LIR_Sbb:
		return "sbb"
	case LIR_CmpLE:
		return "setle"
	case LIR_CmpLT:
		return "setl"
	case LIR_CmpGE:
		return "setge"
	case LIR_CmpGT:
		return "setg"
	case LIR_CmpEQ:
		return "sete"
	case LIR_CmpNE:
		return "setne"
	case LIR_Cmp:
		return "cmp"
	case LIR_Test:
		return "test"
	case LIR_Jmp:
		return "jmp"
	case LIR_Jle:
		return "jle"
	case LIR_Jlt:
		return "jl"
	case LIR_Jge:
		return "jge"
	case LIR_Jgt:
		return "jg"
	case LIR_Jeq:
		return "je"
	case LIR_Jne:
		return "jne"
	case LIR_Jz:
		return "jz"
	case LIR_Jnz:
		return "jnz"
	case LIR_Call:
		return "call"
	case LIR_Ret:
		return "ret"
	case LIR_Syscall:
		return "syscall"
	case LIR_Label:
		return "label"
	case LIR_Align:
		return "align"
	case LIR_Enter:
		return "enter"
	case LIR_Leave:
		return "leave"
	case LIR_LockCmpxchg:
		return "cmpxchg"
	case LIR_LockXadd:
		return "xadd"
	case LIR_MFence:
		return "mfence"
	case LIR_LFence:
		return "lfence"
	case LIR_SFence:
		return "sfence"
	case LIR_InlineAsm:
		return "asm"
	default:
		utils.Unimplement()
	}
	return ""
}

// InstrFlags is the per-instruction flags byte spec §3 names: lock prefix,
// rep prefix, volatile-memory access, and red-zone use all affect emission
// but are not part of the opcode identity itself.
type InstrFlags uint8

const (
	FlagLock InstrFlags = 1 << iota
	FlagRep
	FlagVolatile
	FlagRedZone
)

func (f InstrFlags) Has(bit InstrFlags) bool { return f&bit != 0 }

// Instruction is LIR's three-operand form: Result is the destination, Args
// are the operation's operands. x86-64's two-operand encoding is recovered
// during emission (an external concern); at this level every instruction
// still states its result explicitly, which is what makes SSA-style
// liveness and register assignment tractable (see the teacher's docstring
// on why this is "a bit of a misnomer on x86-64 but a good representation").
type Instruction struct {
	Op       LIROp
	Result   IOperand
	Args     []IOperand
	Comment  string
	Flags    InstrFlags
	Requires uint64 // required CPU-feature bitmask, 0 = always available
	Id       int
}

func (i *Instruction) comment(v interface{}) *Instruction {
	i.Comment = fmt.Sprintf("%v", v)
	return i
}

func (i *Instruction) withFlags(flags InstrFlags) *Instruction {
	i.Flags |= flags
	return i
}

func (i *Instruction) String() string {
	s := i.Op.String()
	if i.Result != nil {
		s += " " + i.Result.String()
	}
	for _, a := range i.Args {
		s += ", " + a.String()
	}
	if i.Comment != "" {
		s += " # " + i.Comment
	}
	return s
}

type LIRTypeKind int

// LIRType is the storage-class tag for an operand: its byte width plus
// whether it denotes single- or double-precision floating point.
type LIRType struct {
	Width           int
	SinglePrecision bool
}

var LIRTypeBottom = &LIRType{-1, false}
var LIRTypeVoid = &LIRType{0, false}
var LIRTypeByte = &LIRType{1, false}
var LIRTypeWord = &LIRType{2, false}
var LIRTypeDWord = &LIRType{4, false}
var LIRTypeQWord = &LIRType{8, false}
var LIRTypeVector16S = &LIRType{16, true}
var LIRTypeVector16D = &LIRType{16, false}
var LIRTypeVector32 = &LIRType{32, false}
var LIRTypeVector64 = &LIRType{64, false}

func (x *LIRType) IsValid() bool { return x != LIRTypeBottom }

// GetLIRType maps an ast.Type onto its storage class. Types wider than 64
// bits (spec §3's big-integer kinds) map to QWord: lowering gives a
// big-integer value a single QWord operand and does not split it into
// limb-sized operands.
func GetLIRType(t *ast.Type) *LIRType {
	if t == nil {
		return LIRTypeQWord
	}
	switch t.Kind {
	case ast.TypeVoid:
		return LIRTypeVoid
	case ast.TypeBool:
		return LIRTypeByte
	case ast.TypeF32:
		return LIRTypeVector16S
	case ast.TypeF64:
		return LIRTypeVector16D
	}
	switch t.BitWidth() {
	case 8:
		return LIRTypeByte
	case 16:
		return LIRTypeWord
	case 32:
		return LIRTypeDWord
	default:
		// 64 and every big-integer width (128..1024) all address a 64-bit
		// general-purpose register as their operand unit.
		return LIRTypeQWord
	}
}

// IOperand is any LIR operand: registers, immediates, memory addresses,
// labels, symbols, rodata text, stack slots, big-integer immediates, and
// external-function references.
type IOperand interface {
	String() string
	GetType() *LIRType
}

// Label is a mangleable block label, e.g. L0, L1, L2.
type Label struct {
	Name string
}

// Symbol is an un-mangleable name, e.g. a function or runtime-stub name.
type Symbol struct {
	Name string
}

// Register is either physical or virtual. Almost every register produced
// by the lowering pass is virtual; physical registers only appear where the
// ABI or an instruction template mandates a fixed location (e.g. %rax for
// div/mul, the SysV argument registers).
type Register struct {
	Type     *LIRType
	Index    int
	Name     string
	Virtual  bool
	Affinity int
	IsHigh   bool
}

type TextKind int

const (
	TextString TextKind = iota
	TextFloat
)

// Text is a read-only-section literal (string or floating-point bit pattern).
type Text struct {
	Id    int
	Kind  TextKind
	Value string
}

// Imm is a fixed-width immediate operand, e.g. mov $123, %rax => $123.
type Imm struct {
	Type  *LIRType
	Value interface{}
}

// BigImm is a >64-bit immediate (spec §3's wide-integer-arithmetic carries
// its operand as a fixed-limb buffer, not a single machine word). Lowering
// uses it directly as the source operand of a constant's mov; nothing
// decomposes it into per-limb Imm operands or per-limb adc/sbb sequences.
type BigImm struct {
	Value bigint.Int
}

func (x BigImm) GetType() *LIRType { return LIRTypeQWord }
func (x BigImm) String() string    { return fmt.Sprintf("$big(%s)", x.Value.String()) }

// Offset is a bare numeric displacement, e.g. 8(%rbp) => 8.
type Offset struct {
	Value int
}

// Addr is a memory operand: base(index*scale)+disp.
type Addr struct {
	Type  *LIRType
	Base  Register
	Index Register
	Scale int
	Disp  IOperand
}

// StackSlot is a local/spill/parameter-area slot addressed relative to the
// frame pointer (spec §4.8): Offset is the (already-signed) displacement
// from %rbp, Size/Align describe the slot's storage requirement. Lowering
// allocates these through src/frame's StackFrame rather than constructing
// them directly, so the offset always reflects the function's final layout.
type StackSlot struct {
	Offset int
	Size   int
	Align  int
}

func (x StackSlot) GetType() *LIRType {
	switch x.Size {
	case 1:
		return LIRTypeByte
	case 2:
		return LIRTypeWord
	case 4:
		return LIRTypeDWord
	default:
		return LIRTypeQWord
	}
}

func (x StackSlot) String() string { return fmt.Sprintf("%d(%%rbp)", x.Offset) }

// ExternRef is a reference into the module's external-function table
// (hir.Module.Externs), used by call instructions that target a symbol
// outside this module (runtime allocator stubs, libc, syscalls wrappers).
type ExternRef struct {
	Id   int
	Name string
}

func (x ExternRef) GetType() *LIRType { return LIRTypeQWord }
func (x ExternRef) String() string    { return "@" + x.Name }

func (x Register) GetType() *LIRType { return x.Type }
func (x Addr) GetType() *LIRType     { return x.Type }
func (x Imm) GetType() *LIRType      { return x.Type }
func (x Offset) GetType() *LIRType   { return LIRTypeBottom }
func (x Label) GetType() *LIRType    { return LIRTypeBottom }
func (x Symbol) GetType() *LIRType   { return LIRTypeBottom }
func (x Text) GetType() *LIRType     { return LIRTypeBottom }

func (x Register) String() string {
	if x.Virtual {
		return fmt.Sprintf("v%d", x.Index)
	}
	return x.Name
}
func (x Imm) String() string    { return fmt.Sprintf("$%v", x.Value) }
func (x Offset) String() string { return fmt.Sprintf("%d", x.Value) }
func (x Addr) String() string   { return fmt.Sprintf("%s[%s]+%v", x.Base, x.Index, x.Disp) }
func (x Label) String() string  { return x.Name }
func (x Symbol) String() string { return x.Name }
func (x Text) String() string   { return x.Value }
