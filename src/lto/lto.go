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

// Package lto reads the optional external profile format spec §6 names:
// magic "FCXP" followed by per-function execution, basic-block, and branch
// counts. Only reading is in scope for THE CORE (spec §6 lists the format
// under external interfaces, not under Non-goals); writing a profile is the
// instrumented-binary's job, outside this repository.
package lto

import (
	"encoding/binary"
	"io"

	"fcx/internal/diag"
)

const magic = "FCXP"

// FuncProfile holds one function's recorded counters.
type FuncProfile struct {
	Name          string
	ExecutionCount uint64
	BlockCounts    []uint64
	BranchCounts   []uint64
}

// Profile is every function's counters keyed by name, as read from one
// profile file.
type Profile struct {
	Funcs map[string]*FuncProfile
}

// Read parses a "FCXP"-magic profile stream. The wire format, little-endian
// throughout, is:
//
//	magic        [4]byte "FCXP"
//	funcCount    uint32
//	per function:
//	  nameLen    uint32
//	  name       [nameLen]byte
//	  execCount  uint64
//	  blockCount uint32
//	  blocks     [blockCount]uint64
//	  branchCount uint32
//	  branches    [branchCount]uint64
func Read(r io.Reader) (*Profile, *diag.Diagnostic) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return nil, diag.Wrap(diag.KindIO, diag.Pos{}, err, "cannot read profile magic")
	}
	if string(hdr[:]) != magic {
		return nil, diag.New(diag.KindIO, diag.Pos{}, "not an FCx profile: bad magic %q", hdr[:])
	}

	var funcCount uint32
	if err := binary.Read(r, binary.LittleEndian, &funcCount); err != nil {
		return nil, diag.Wrap(diag.KindIO, diag.Pos{}, err, "cannot read function count")
	}

	profile := &Profile{Funcs: make(map[string]*FuncProfile, funcCount)}
	for i := uint32(0); i < funcCount; i++ {
		fp, err := readOneFunc(r)
		if err != nil {
			return nil, diag.Wrap(diag.KindIO, diag.Pos{}, err, "reading function %d of %d", i, funcCount)
		}
		profile.Funcs[fp.Name] = fp
	}
	return profile, nil
}

func readOneFunc(r io.Reader) (*FuncProfile, error) {
	var nameLen uint32
	if err := binary.Read(r, binary.LittleEndian, &nameLen); err != nil {
		return nil, err
	}
	nameBytes := make([]byte, nameLen)
	if _, err := io.ReadFull(r, nameBytes); err != nil {
		return nil, err
	}

	fp := &FuncProfile{Name: string(nameBytes)}
	if err := binary.Read(r, binary.LittleEndian, &fp.ExecutionCount); err != nil {
		return nil, err
	}

	var blockCount uint32
	if err := binary.Read(r, binary.LittleEndian, &blockCount); err != nil {
		return nil, err
	}
	fp.BlockCounts = make([]uint64, blockCount)
	for i := range fp.BlockCounts {
		if err := binary.Read(r, binary.LittleEndian, &fp.BlockCounts[i]); err != nil {
			return nil, err
		}
	}

	var branchCount uint32
	if err := binary.Read(r, binary.LittleEndian, &branchCount); err != nil {
		return nil, err
	}
	fp.BranchCounts = make([]uint64, branchCount)
	for i := range fp.BranchCounts {
		if err := binary.Read(r, binary.LittleEndian, &fp.BranchCounts[i]); err != nil {
			return nil, err
		}
	}

	return fp, nil
}

// Hot reports whether fn's execution count meets or exceeds threshold,
// the query shape the optimizer would use to bias inlining/unrolling
// decisions off a profile (consumption of that bias is future work; this
// package only owns reading the data).
func (p *Profile) Hot(name string, threshold uint64) bool {
	fp, ok := p.Funcs[name]
	return ok && fp.ExecutionCount >= threshold
}
