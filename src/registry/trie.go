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

package registry

import (
	"fmt"
	"sort"
	"sync"
)

// trieNode is a plain array-of-256-children node, built once from the
// descriptor table at startup and never mutated afterwards.
type trieNode struct {
	children [256]*trieNode
	desc     *Descriptor
}

// Registry is the immutable, process-wide operator table plus its lookup
// trie. The zero value is not usable; build one with New or use Global.
type Registry struct {
	descriptors []Descriptor
	bySymbol    map[string]*Descriptor
	root        *trieNode
}

// New builds a Registry from an explicit descriptor slice, validating it
// first, so the slice must pass every Validate check (including the
// 200-operator minimum). Global builds the process-wide instance with it.
func New(descs []Descriptor) (*Registry, error) {
	if err := Validate(descs); err != nil {
		return nil, fmt.Errorf("registry: invalid operator table: %w", err)
	}
	r := &Registry{
		descriptors: append([]Descriptor(nil), descs...),
		bySymbol:    make(map[string]*Descriptor, len(descs)),
		root:        &trieNode{},
	}
	for i := range r.descriptors {
		op := &r.descriptors[i]
		r.bySymbol[op.Symbol] = op
		r.insert(op)
	}
	return r, nil
}

func (r *Registry) insert(op *Descriptor) {
	node := r.root
	for i := 0; i < len(op.Symbol); i++ {
		b := op.Symbol[i]
		if node.children[b] == nil {
			node.children[b] = &trieNode{}
		}
		node = node.children[b]
	}
	node.desc = op
}

var (
	globalOnce sync.Once
	globalReg  *Registry
	globalErr  error
)

// Init forces construction of the process-wide Registry singleton, returning
// its build error if the seed table is unsound. Idempotent: later calls
// return the cached outcome.
func Init() error {
	globalOnce.Do(func() {
		globalReg, globalErr = New(seedTable())
	})
	return globalErr
}

// Global returns the process-wide Registry, building it on first use. It
// panics if the baked-in seed table fails validation, since that is a
// programmer error, never a user-input error (spec §4.1: initialization
// failure aborts the process).
func Global() *Registry {
	if err := Init(); err != nil {
		panic(err)
	}
	return globalReg
}

// GreedyLookup scans buf from offset 0 and returns the longest registered
// operator that prefixes it, plus its byte length. ok is false if no
// registered operator prefixes buf, even when its leading bytes start one
// (the caller should fall back to whatever simple punctuation/identifier
// handling applies to that byte).
func (r *Registry) GreedyLookup(buf []byte) (desc *Descriptor, length int, ok bool) {
	node := r.root
	var best *Descriptor
	bestLen := 0
	for i := 0; i < len(buf); i++ {
		next := node.children[buf[i]]
		if next == nil {
			break
		}
		node = next
		if node.desc != nil {
			best = node.desc
			bestLen = i + 1
		}
	}
	if best == nil {
		return nil, 0, false
	}
	return best, bestLen, true
}

// Lookup returns the descriptor for an exact symbol, if registered.
func (r *Registry) Lookup(symbol string) (*Descriptor, bool) {
	op, ok := r.bySymbol[symbol]
	return op, ok
}

// Precedence, Associativity, Arity and Description are thin convenience
// accessors mirroring spec §4.1's query surface; all simply dereference
// Lookup and report the zero value plus false when the symbol is unknown.

func (r *Registry) Precedence(symbol string) (int, bool) {
	op, ok := r.bySymbol[symbol]
	if !ok {
		return 0, false
	}
	return op.Precedence, true
}

func (r *Registry) Associativity(symbol string) (Assoc, bool) {
	op, ok := r.bySymbol[symbol]
	if !ok {
		return AssocNone, false
	}
	return op.Associativity, true
}

func (r *Registry) Arity(symbol string) (Arity, bool) {
	op, ok := r.bySymbol[symbol]
	if !ok {
		return 0, false
	}
	return op.Arity, true
}

func (r *Registry) Description(symbol string) (string, bool) {
	op, ok := r.bySymbol[symbol]
	if !ok {
		return "", false
	}
	return op.Description, true
}

// Family filters the table down to one family, in registration order.
func (r *Registry) Family(fam Family) []Descriptor {
	var out []Descriptor
	for _, op := range r.descriptors {
		if op.Family == fam {
			out = append(out, op)
		}
	}
	return out
}

// Suggestions returns up to n registered symbols sharing buf's first byte,
// sorted, for the lexer's "unknown operator, did you mean" diagnostic.
func (r *Registry) Suggestions(buf []byte, n int) []string {
	if len(buf) == 0 {
		return nil
	}
	first := buf[0]
	var candidates []string
	for _, op := range r.descriptors {
		if op.Symbol[0] == first {
			candidates = append(candidates, op.Symbol)
		}
	}
	sort.Strings(candidates)
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	return candidates
}

// Len returns the number of registered operators.
func (r *Registry) Len() int { return len(r.descriptors) }

// All returns every registered descriptor in registration order, for
// tooling that walks the whole table rather than querying one symbol
// (cmd/fcxc's --dump-operators).
func (r *Registry) All() []Descriptor {
	return append([]Descriptor(nil), r.descriptors...)
}
