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
package ast

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

// TestResolveWidthsProducesStructurallyEqualTypes checks that running width
// resolution over two parameters declared with the same type spelling
// yields structurally identical *Type trees, following ElemType chains
// rather than comparing pointer identity (which assert.Equal's
// reflect.DeepEqual would also do, but less legibly on a mismatch -- cmp.Diff
// prints the exact subtree that differs).
func TestResolveWidthsProducesStructurallyEqualTypes(t *testing.T) {
	root := parseSrc(t, `
fn f(a: i1024, b: i1024) -> void { }
`)
	ResolveWidths(root)
	fn := root.Items[0].(*FuncDecl)

	got := fn.Params[0].Type
	want := fn.Params[1].Type
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("param types diverged despite identical declarations (-want +got):\n%s", diff)
	}
}
