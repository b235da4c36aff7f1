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
package lir

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"golang.org/x/arch/x86/x86asm"
)

// TestLIRMnemonicsMatchDecodedEncoding cross-checks a handful of LIROp
// mnemonics against an independent decoder: each case is a canned machine
// code sequence for a simple, unambiguous instruction, decoded with
// x86asm.Decode, and the resulting opcode name is compared against what
// the corresponding LIROp.String() would print. This doesn't verify the
// lowering pass emits these exact bytes (encoding is the emitter's job,
// spec §1's external collaborator) -- it only guards against the mnemonic
// table in lir.go drifting from the instructions it claims to name.
func TestLIRMnemonicsMatchDecodedEncoding(t *testing.T) {
	cases := []struct {
		name string
		code []byte
		op   LIROp
	}{
		{"push rbp", []byte{0x55}, LIR_Push},
		{"pop rbp", []byte{0x5d}, LIR_Pop},
		{"ret", []byte{0xc3}, LIR_Ret},
		{"leave", []byte{0xc9}, LIR_Leave},
		{"mfence", []byte{0x0f, 0xae, 0xf0}, LIR_MFence},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			inst, err := x86asm.Decode(c.code, 64)
			assert.NoError(t, err)
			assert.True(t, strings.EqualFold(inst.Op.String(), c.op.String()),
				"decoded %q, lir table says %q", inst.Op.String(), c.op.String())
		})
	}
}
