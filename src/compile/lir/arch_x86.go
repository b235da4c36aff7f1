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
	"strings"

	"fcx/src/utils"
)

// Reference
// https://web.stanford.edu/class/cs107/resources/x86-64-reference.pdf
// https://www.cs.cmu.edu/afs/cs/academic/class/15213-s20/www/recitations/x86-cheat-sheet.pdf

var (
	BadReg = Register{Index: -1, Virtual: false, Name: "badreg", Type: LIRTypeVoid}
	NoReg  = Register{Index: -1, Virtual: false, Name: "noreg", Type: LIRTypeVoid}
	// 64-bit registers
	RAX = Register{Index: -1, Virtual: false, Name: "rax", Type: LIRTypeQWord, Affinity: 0}
	RBX = Register{Index: -1, Virtual: false, Name: "rbx", Type: LIRTypeQWord, Affinity: 1}
	RCX = Register{Index: -1, Virtual: false, Name: "rcx", Type: LIRTypeQWord, Affinity: 2}
	RDX = Register{Index: -1, Virtual: false, Name: "rdx", Type: LIRTypeQWord, Affinity: 3}
	RSI = Register{Index: -1, Virtual: false, Name: "rsi", Type: LIRTypeQWord, Affinity: 4}
	RDI = Register{Index: -1, Virtual: false, Name: "rdi", Type: LIRTypeQWord, Affinity: 5}
	RSP = Register{Index: -1, Virtual: false, Name: "rsp", Type: LIRTypeQWord, Affinity: 6}
	RBP = Register{Index: -1, Virtual: false, Name: "rbp", Type: LIRTypeQWord, Affinity: 7}
	R8  = Register{Index: -1, Virtual: false, Name: "r8", Type: LIRTypeQWord, Affinity: 8}
	R9  = Register{Index: -1, Virtual: false, Name: "r9", Type: LIRTypeQWord, Affinity: 9}
	R10 = Register{Index: -1, Virtual: false, Name: "r10", Type: LIRTypeQWord, Affinity: 10}
	R11 = Register{Index: -1, Virtual: false, Name: "r11", Type: LIRTypeQWord, Affinity: 11}
	R12 = Register{Index: -1, Virtual: false, Name: "r12", Type: LIRTypeQWord, Affinity: 12}
	R13 = Register{Index: -1, Virtual: false, Name: "r13", Type: LIRTypeQWord, Affinity: 13}
	R14 = Register{Index: -1, Virtual: false, Name: "r14", Type: LIRTypeQWord, Affinity: 14}
	R15 = Register{Index: -1, Virtual: false, Name: "r15", Type: LIRTypeQWord, Affinity: 15}
	RIP = Register{Index: -1, Virtual: false, Name: "rip", Type: LIRTypeQWord, Affinity: 16}

	// 32-bit registers
	EAX  = Register{Index: -1, Virtual: false, Name: "eax", Type: LIRTypeDWord, Affinity: 0}
	EBX  = Register{Index: -1, Virtual: false, Name: "ebx", Type: LIRTypeDWord, Affinity: 1}
	ECX  = Register{Index: -1, Virtual: false, Name: "ecx", Type: LIRTypeDWord, Affinity: 2}
	EDX  = Register{Index: -1, Virtual: false, Name: "edx", Type: LIRTypeDWord, Affinity: 3}
	ESI  = Register{Index: -1, Virtual: false, Name: "esi", Type: LIRTypeDWord, Affinity: 4}
	EDI  = Register{Index: -1, Virtual: false, Name: "edi", Type: LIRTypeDWord, Affinity: 5}
	ESP  = Register{Index: -1, Virtual: false, Name: "esp", Type: LIRTypeDWord, Affinity: 6}
	EBP  = Register{Index: -1, Virtual: false, Name: "ebp", Type: LIRTypeDWord, Affinity: 7}
	R8D  = Register{Index: -1, Virtual: false, Name: "r8d", Type: LIRTypeDWord, Affinity: 8}
	R9D  = Register{Index: -1, Virtual: false, Name: "r9d", Type: LIRTypeDWord, Affinity: 9}
	R10D = Register{Index: -1, Virtual: false, Name: "r10d", Type: LIRTypeDWord, Affinity: 10}
	R11D = Register{Index: -1, Virtual: false, Name: "r11d", Type: LIRTypeDWord, Affinity: 11}
	R12D = Register{Index: -1, Virtual: false, Name: "r12d", Type: LIRTypeDWord, Affinity: 12}
	R13D = Register{Index: -1, Virtual: false, Name: "r13d", Type: LIRTypeDWord, Affinity: 13}
	R14D = Register{Index: -1, Virtual: false, Name: "r14d", Type: LIRTypeDWord, Affinity: 14}
	R15D = Register{Index: -1, Virtual: false, Name: "r15d", Type: LIRTypeDWord, Affinity: 15}

	// 16-bit registers
	AX   = Register{Index: -1, Virtual: false, Name: "ax", Type: LIRTypeWord, Affinity: 0}
	BX   = Register{Index: -1, Virtual: false, Name: "bx", Type: LIRTypeWord, Affinity: 1}
	CX   = Register{Index: -1, Virtual: false, Name: "cx", Type: LIRTypeWord, Affinity: 2}
	DX   = Register{Index: -1, Virtual: false, Name: "dx", Type: LIRTypeWord, Affinity: 3}
	SI   = Register{Index: -1, Virtual: false, Name: "si", Type: LIRTypeWord, Affinity: 4}
	DI   = Register{Index: -1, Virtual: false, Name: "di", Type: LIRTypeWord, Affinity: 5}
	SP   = Register{Index: -1, Virtual: false, Name: "sp", Type: LIRTypeWord, Affinity: 6}
	BP   = Register{Index: -1, Virtual: false, Name: "bp", Type: LIRTypeWord, Affinity: 7}
	R8W  = Register{Index: -1, Virtual: false, Name: "r8w", Type: LIRTypeWord, Affinity: 8}
	R9W  = Register{Index: -1, Virtual: false, Name: "r9w", Type: LIRTypeWord, Affinity: 9}
	R10W = Register{Index: -1, Virtual: false, Name: "r10w", Type: LIRTypeWord, Affinity: 10}
	R11W = Register{Index: -1, Virtual: false, Name: "r11w", Type: LIRTypeWord, Affinity: 11}
	R12W = Register{Index: -1, Virtual: false, Name: "r12w", Type: LIRTypeWord, Affinity: 12}
	R13W = Register{Index: -1, Virtual: false, Name: "r13w", Type: LIRTypeWord, Affinity: 13}
	R14W = Register{Index: -1, Virtual: false, Name: "r14w", Type: LIRTypeWord, Affinity: 14}
	R15W = Register{Index: -1, Virtual: false, Name: "r15w", Type: LIRTypeWord, Affinity: 15}

	// 8-bit registers
	AH   = Register{Index: -1, Virtual: false, Name: "ah", Type: LIRTypeByte, Affinity: 0, IsHigh: true}
	AL   = Register{Index: -1, Virtual: false, Name: "al", Type: LIRTypeByte, Affinity: 0}
	BH   = Register{Index: -1, Virtual: false, Name: "bh", Type: LIRTypeByte, Affinity: 1, IsHigh: true}
	BL   = Register{Index: -1, Virtual: false, Name: "bl", Type: LIRTypeByte, Affinity: 1}
	CH   = Register{Index: -1, Virtual: false, Name: "ch", Type: LIRTypeByte, Affinity: 2, IsHigh: true}
	CL   = Register{Index: -1, Virtual: false, Name: "cl", Type: LIRTypeByte, Affinity: 2}
	DH   = Register{Index: -1, Virtual: false, Name: "dh", Type: LIRTypeByte, Affinity: 3, IsHigh: true}
	DL   = Register{Index: -1, Virtual: false, Name: "dl", Type: LIRTypeByte, Affinity: 3}
	SIL  = Register{Index: -1, Virtual: false, Name: "sil", Type: LIRTypeByte, Affinity: 4}
	DIL  = Register{Index: -1, Virtual: false, Name: "dil", Type: LIRTypeByte, Affinity: 5}
	BPL  = Register{Index: -1, Virtual: false, Name: "bpl", Type: LIRTypeByte, Affinity: 6}
	SPL  = Register{Index: -1, Virtual: false, Name: "spl", Type: LIRTypeByte, Affinity: 7}
	R8B  = Register{Index: -1, Virtual: false, Name: "r8b", Type: LIRTypeByte, Affinity: 8}
	R9B  = Register{Index: -1, Virtual: false, Name: "r9b", Type: LIRTypeByte, Affinity: 9}
	R10B = Register{Index: -1, Virtual: false, Name: "r10b", Type: LIRTypeByte, Affinity: 10}
	R11B = Register{Index: -1, Virtual: false, Name: "r11b", Type: LIRTypeByte, Affinity: 11}
	R12B = Register{Index: -1, Virtual: false, Name: "r12b", Type: LIRTypeByte, Affinity: 12}
	R13B = Register{Index: -1, Virtual: false, Name: "r13b", Type: LIRTypeByte, Affinity: 13}
	R14B = Register{Index: -1, Virtual: false, Name: "r14b", Type: LIRTypeByte, Affinity: 14}
	R15B = Register{Index: -1, Virtual: false, Name: "r15b", Type: LIRTypeByte, Affinity: 15}

	// 128-bit registers, single precision
	XMM0S = Register{Index: -1, Virtual: false, Name: "xmm0", Type: LIRTypeVector16S}
	XMM1S = Register{Index: -1, Virtual: false, Name: "xmm1", Type: LIRTypeVector16S}
	XMM2S = Register{Index: -1, Virtual: false, Name: "xmm2", Type: LIRTypeVector16S}
	XMM3S = Register{Index: -1, Virtual: false, Name: "xmm3", Type: LIRTypeVector16S}
	XMM4S = Register{Index: -1, Virtual: false, Name: "xmm4", Type: LIRTypeVector16S}
	XMM5S = Register{Index: -1, Virtual: false, Name: "xmm5", Type: LIRTypeVector16S}
	XMM6S = Register{Index: -1, Virtual: false, Name: "xmm6", Type: LIRTypeVector16S}
	XMM7S = Register{Index: -1, Virtual: false, Name: "xmm7", Type: LIRTypeVector16S}
	// 128-bit registers, double precision
	XMM0D = Register{Index: -1, Virtual: false, Name: "xmm0", Type: LIRTypeVector16D}
	XMM1D = Register{Index: -1, Virtual: false, Name: "xmm1", Type: LIRTypeVector16D}
	XMM2D = Register{Index: -1, Virtual: false, Name: "xmm2", Type: LIRTypeVector16D}
	XMM3D = Register{Index: -1, Virtual: false, Name: "xmm3", Type: LIRTypeVector16D}
	XMM4D = Register{Index: -1, Virtual: false, Name: "xmm4", Type: LIRTypeVector16D}
	XMM5D = Register{Index: -1, Virtual: false, Name: "xmm5", Type: LIRTypeVector16D}
	XMM6D = Register{Index: -1, Virtual: false, Name: "xmm6", Type: LIRTypeVector16D}
	XMM7D = Register{Index: -1, Virtual: false, Name: "xmm7", Type: LIRTypeVector16D}
)

var AllRegisters = []Register{
	RAX, RBX, RCX, RDX, RSI, RDI, RSP, RBP, R8, R9, R10, R11, R12, R13, R14, R15, RIP,
	EAX, EBX, ECX, EDX, ESI, EDI, ESP, EBP, R8D, R9D, R10D, R11D, R12D, R13D, R14D, R15D,
	AX, BX, CX, DX, SI, DI, SP, BP, R8W, R9W, R10W, R11W, R12W, R13W, R14W, R15W,
	AH, AL, BH, BL, CH, CL, DH, DL, SIL, DIL, BPL, SPL, R8B, R9B, R10B, R11B, R12B, R13B, R14B, R15B,
	XMM0S, XMM1S, XMM2S, XMM3S, XMM4S, XMM5S, XMM6S, XMM7S,
	XMM0D, XMM1D, XMM2D, XMM3D, XMM4D, XMM5D, XMM6D, XMM7D,
}

// Cast retargets a register to a different storage class at the same
// affinity, i.e. RAX -> EAX.
func (r Register) Cast(t *LIRType) Register {
	for _, reg := range AllRegisters {
		if reg.Affinity == r.Affinity && reg.Type == t && !reg.IsHigh {
			return reg
		}
	}
	return NoReg
}

func ReturnReg(t *LIRType) Register {
	switch t {
	case LIRTypeQWord:
		return RAX
	case LIRTypeDWord:
		return EAX
	case LIRTypeWord:
		return AX
	case LIRTypeByte:
		return AL
	case LIRTypeVector16S:
		return XMM0S
	case LIRTypeVector16D:
		return XMM0D
	case LIRTypeVoid:
		return NoReg
	default:
		utils.ShouldNotReachHere()
	}
	return BadReg
}

// ReturnRegPair gives the second register used by a 128-bit return value
// (spec §4.8: "two registers for 128-bit returns"); RDX:RAX carries a wide
// scalar split across the SysV-AMD64 integer return pair.
func ReturnRegPair(t *LIRType) (lo, hi Register) {
	switch t {
	case LIRTypeQWord:
		return RAX, RDX
	default:
		return ReturnReg(t), NoReg
	}
}

func CallerSaveRegs(t *LIRType) []Register {
	switch t {
	case LIRTypeQWord:
		return []Register{RAX, RCX, RDX, RSI, RDI, R8, R9, R10, R11}
	case LIRTypeDWord:
		return []Register{EAX, ECX, EDX, ESI, EDI, R8D, R9D, R10D, R11D}
	case LIRTypeWord:
		return []Register{AX, CX, DX, SI, DI, R8W, R9W, R10W, R11W}
	case LIRTypeByte:
		return []Register{AL, CL, DL, SIL, DIL, R8B, R9B, R10B, R11B}
	case LIRTypeVector16S:
		return []Register{XMM0S, XMM1S, XMM2S, XMM3S, XMM4S, XMM5S, XMM6S, XMM7S}
	case LIRTypeVector16D:
		return []Register{XMM0D, XMM1D, XMM2D, XMM3D, XMM4D, XMM5D, XMM6D, XMM7D}
	default:
		utils.ShouldNotReachHere()
	}
	return nil
}

func CalleeSaveRegs(t *LIRType) []Register {
	switch t {
	case LIRTypeQWord:
		return []Register{RBX, RBP, R12, R13, R14, R15}
	case LIRTypeDWord:
		return []Register{EBX, EBP, R12D, R13D, R14D, R15D}
	case LIRTypeWord:
		return []Register{BX, BP, R12W, R13W, R14W, R15W}
	case LIRTypeByte:
		return []Register{BL, BPL, R12B, R13B, R14B, R15B}
	default:
		utils.ShouldNotReachHere()
	}
	return nil
}

// CallConv is the calling convention used to lower a function's parameters,
// call sites, and return value (spec §4.8).
type CallConv int

const (
	ConvSysVAMD64 CallConv = iota
	ConvSyscall
	ConvFastcall   // named future extension point; reuses the SysV frame/prologue scheme for now
	ConvVectorcall // ditto
)

// ConventionForFunc is the name-based heuristic spec §4.8 calls for: a
// "sys_"-prefixed function name selects the syscall convention, everything
// else defaults to SysV-AMD64.
func ConventionForFunc(name string) CallConv {
	if strings.HasPrefix(name, "sys_") {
		return ConvSyscall
	}
	return ConvSysVAMD64
}

// argReg64Sequences gives the fixed integer argument-register sequence for
// each convention; the syscall convention substitutes r10 for rcx in slot 3
// relative to SysV, since the SYSCALL instruction itself clobbers rcx/r11.
var argReg64Sequences = map[CallConv][]Register{
	ConvSysVAMD64: {RDI, RSI, RDX, RCX, R8, R9},
	ConvSyscall:   {RDI, RSI, RDX, R10, R8, R9},
}

// ArgReg returns the idx-th integer/float argument register for conv at
// storage class t, and false once idx runs past the register window —
// callers must then push remaining arguments right-to-left (spec §4.8).
func ArgReg(conv CallConv, idx int, t *LIRType) (Register, bool) {
	if t == LIRTypeVector16S || t == LIRTypeVector16D {
		floatSeq := []Register{XMM0S, XMM1S, XMM2S, XMM3S, XMM4S, XMM5S, XMM6S, XMM7S}
		if idx >= len(floatSeq) {
			return BadReg, false
		}
		if t == LIRTypeVector16D {
			return floatSeq[idx].Cast(LIRTypeVector16D), true
		}
		return floatSeq[idx], true
	}
	seq, ok := argReg64Sequences[conv]
	if !ok {
		seq = argReg64Sequences[ConvSysVAMD64]
	}
	if idx >= len(seq) {
		return BadReg, false
	}
	return seq[idx].Cast(t), true
}
