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
package lir

import (
	"fmt"

	"fcx/src/bigint"
	"fcx/src/compile/hir"
	"fcx/src/frame"
	"fcx/src/utils"
)

// LIR is one function's lowered form: one instruction list per HIR block id,
// a frame under construction, and the vreg/text bookkeeping the builder
// methods below need. It plays the same per-function role as the teacher's
// LIR type; what's new is that it's keyed by hir.Block rather than ssa.Block
// and carries a *frame.StackFrame instead of nothing.
type LIR struct {
	Func   *hir.Func
	Conv   CallConv
	Frame  *frame.StackFrame
	Blocks map[int][]*Instruction
	order  []int

	results     map[*hir.Value]IOperand
	nextVReg    int
	texts       []Text
	nextInstrID int
}

func NewLIR(fn *hir.Func) *LIR {
	return &LIR{
		Func:    fn,
		Conv:    ConventionForFunc(fn.Name),
		Frame:   frame.NewStackFrame(),
		Blocks:  make(map[int][]*Instruction),
		results: make(map[*hir.Value]IOperand),
	}
}

func (lir *LIR) touchBlock(id int) {
	if _, ok := lir.Blocks[id]; !ok {
		lir.Blocks[id] = nil
		lir.order = append(lir.order, id)
	}
}

// NewInstr appends an instruction to blockId's instruction list; args[0] is
// conventionally also the result for the teacher's move-then-operate
// two-operand emulation, but callers are free to pass a distinct result.
func (lir *LIR) NewInstr(blockId int, op LIROp, result IOperand, args ...IOperand) *Instruction {
	lir.touchBlock(blockId)
	instr := &Instruction{Op: op, Result: result, Args: args, Id: lir.nextInstrID}
	lir.nextInstrID++
	lir.Blocks[blockId] = append(lir.Blocks[blockId], instr)
	return instr
}

// NewJmp appends a control-flow instruction targeting block target's label.
func (lir *LIR) NewJmp(blockId int, op LIROp, target *hir.Block) *Instruction {
	return lir.NewInstr(blockId, op, nil, lir.NewLabel(target.Id))
}

func (lir *LIR) NewLabel(blockId int) Label {
	return Label{Name: fmt.Sprintf("L%d", blockId)}
}

// NewVReg returns the virtual register assigned to val, allocating a fresh
// one keyed by val's LIR storage class on first use. Reusing the same
// register for every reference to val is what keeps def-use chains coherent
// once HIR's SSA values become plain LIR registers.
func (lir *LIR) NewVReg(val *hir.Value) Register {
	if r, ok := lir.results[val]; ok {
		if reg, ok := r.(Register); ok {
			return reg
		}
	}
	reg := lir.freshVReg(GetLIRType(val.Type))
	lir.results[val] = reg
	return reg
}

// freshVReg allocates a virtual register not tied to any hir.Value, used for
// lowering-internal temporaries (e.g. the scratch register a multiply or
// divide template needs to route through a fixed physical register first).
func (lir *LIR) freshVReg(t *LIRType) Register {
	r := Register{Type: t, Index: lir.nextVReg, Virtual: true}
	lir.nextVReg++
	return r
}

func (lir *LIR) NewImm(v interface{}) Imm {
	switch v.(type) {
	case int8, uint8:
		return Imm{LIRTypeByte, v}
	case int16, uint16:
		return Imm{LIRTypeWord, v}
	case int32, uint32:
		return Imm{LIRTypeDWord, v}
	default:
		return Imm{LIRTypeQWord, v}
	}
}

func (lir *LIR) NewBigImm(v bigint.Int) BigImm { return BigImm{Value: v} }

func (lir *LIR) NewText(value string, kind TextKind) Text {
	id := len(lir.texts)
	t := Text{Id: id, Kind: kind, Value: value}
	lir.texts = append(lir.texts, t)
	return t
}

func (lir *LIR) NewOffset(v int) Offset { return Offset{Value: v} }

func (lir *LIR) NewAddr(t *LIRType, base, index Register, disp IOperand) Addr {
	return Addr{Type: t, Base: base, Index: index, Disp: disp}
}

func (lir *LIR) NewStackSlot(size, alignment int) StackSlot {
	return StackSlot{Offset: lir.Frame.AllocSlot(size, alignment), Size: size, Align: alignment}
}

func (lir *LIR) SetResult(val *hir.Value, op IOperand) { lir.results[val] = op }

func (lir *LIR) GetResult(val *hir.Value) IOperand {
	r, ok := lir.results[val]
	utils.Assert(ok, "value %v lowered out of order: no result yet", val)
	return r
}

func (lir *LIR) String() string {
	s := fmt.Sprintf("func %s:\n", lir.Func.Name)
	for _, id := range lir.order {
		s += fmt.Sprintf("%s:\n", lir.NewLabel(id).Name)
		for _, instr := range lir.Blocks[id] {
			s += fmt.Sprintf("  %s\n", instr.String())
		}
	}
	return s
}

// VerifyLIR performs the minimal sanity pass spec §8 calls for at this
// level: every block reached by lowering has at least one instruction
// (dead blocks are dropped before lowering, not after), and no virtual
// register index anywhere exceeds the counter that produced it.
func VerifyLIR(lir *LIR) {
	for _, id := range lir.order {
		utils.Assert(len(lir.Blocks[id]) > 0, "block %d lowered to zero instructions", id)
	}
	for _, id := range lir.order {
		for _, instr := range lir.Blocks[id] {
			checkOperandBound(instr.Result, lir.nextVReg)
			for _, a := range instr.Args {
				checkOperandBound(a, lir.nextVReg)
			}
		}
	}
}

func checkOperandBound(op IOperand, bound int) {
	if r, ok := op.(Register); ok && r.Virtual {
		utils.Assert(r.Index < bound, "vreg v%d was never allocated by this LIR", r.Index)
	}
}
