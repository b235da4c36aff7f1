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

// Package ast holds FCx's abstract syntax tree: every expression and
// statement variant named in spec §3, plus the module-level declarations
// (function, module root) that bind them together.
package ast

import (
	"fmt"

	"fcx/src/bigint"
	"fcx/src/registry"
)

// Pos is the source line/column every node carries (spec §3: "every AST node
// records its originating line and column for downstream diagnostics").
type Pos struct {
	Line   int32
	Column int32
}

type AstNode interface {
	GetPos() Pos
}

type AstExpr interface {
	AstNode
	GetType() *Type
	SetType(*Type)
	String() string
}

type AstStmt interface {
	AstNode
	String() string
}

type AstDecl interface {
	AstStmt
}

// Expr is embedded by every expression node for its position and resolved type.
type Expr struct {
	Pos
	Type *Type
}

func (e *Expr) GetPos() Pos     { return e.Pos }
func (e *Expr) GetType() *Type  { return e.Type }
func (e *Expr) SetType(t *Type) { e.Type = t }

// Stmt is embedded by every statement node for its position.
type Stmt struct {
	Pos
}

func (s *Stmt) GetPos() Pos { return s.Pos }

// ---------------------------------------------------------------------------
// Expression variants (spec §3): literal, identifier, binary, unary, ternary,
// call, index, deref, assignment, multi-assignment, conditional,
// function-def, memory-op, atomic-op, syscall-op, inline-asm.

// LiteralKind distinguishes the sub-kinds of the single "literal" expression
// variant spec §3 names, including the big-integer sub-kind.
type LiteralKind int

const (
	LitInt LiteralKind = iota
	LitBigInt
	LitFloat
	LitString
	LitChar
	LitBool
)

type LiteralExpr struct {
	Expr
	Kind     LiteralKind
	IntVal   int64
	BigVal   bigint.Int
	FloatVal float64
	StrVal   string
	CharVal  byte
	BoolVal  bool
}

func (e *LiteralExpr) String() string {
	switch e.Kind {
	case LitBigInt:
		return e.BigVal.String()
	case LitFloat:
		return fmt.Sprintf("%g", e.FloatVal)
	case LitString:
		return fmt.Sprintf("%q", e.StrVal)
	case LitChar:
		return fmt.Sprintf("'%c'", e.CharVal)
	case LitBool:
		return fmt.Sprintf("%t", e.BoolVal)
	default:
		return fmt.Sprintf("%d", e.IntVal)
	}
}

type IdentifierExpr struct {
	Expr
	Name string
}

func (e *IdentifierExpr) String() string { return e.Name }

// BinaryExpr covers every two-operand operator, dense-arithmetic, bitfield,
// comparison, shift-rotate, and arithmetic-assign family alike; which family
// it belongs to is carried on Op (a *registry.Descriptor), not on the node.
type BinaryExpr struct {
	Expr
	Left, Right AstExpr
	Op          *registry.Descriptor
}

func (e *BinaryExpr) String() string {
	return fmt.Sprintf("(%v %s %v)", e.Left, e.Op.Symbol, e.Right)
}

type UnaryExpr struct {
	Expr
	Operand AstExpr
	Op      *registry.Descriptor
	Postfix bool
}

func (e *UnaryExpr) String() string {
	if e.Postfix {
		return fmt.Sprintf("(%v%s)", e.Operand, e.Op.Symbol)
	}
	return fmt.Sprintf("(%s%v)", e.Op.Symbol, e.Operand)
}

type TernaryExpr struct {
	Expr
	Cond, Then, Else AstExpr
}

func (e *TernaryExpr) String() string {
	return fmt.Sprintf("(%v ? %v : %v)", e.Cond, e.Then, e.Else)
}

// ConditionalExpr is the compact `?(cond) -> expr` form used as an
// expression (distinct from the general a?b:c TernaryExpr); it has no else
// arm and evaluates to void when the condition is false.
type ConditionalExpr struct {
	Expr
	Cond AstExpr
	Then AstExpr
}

func (e *ConditionalExpr) String() string {
	return fmt.Sprintf("?(%v)->%v", e.Cond, e.Then)
}

type CallExpr struct {
	Expr
	Callee string
	Args   []AstExpr
}

func (e *CallExpr) String() string {
	return fmt.Sprintf("%s(%v)", e.Callee, e.Args)
}

type IndexExpr struct {
	Expr
	Base, Index AstExpr
}

func (e *IndexExpr) String() string {
	return fmt.Sprintf("%v[%v]", e.Base, e.Index)
}

type DerefExpr struct {
	Expr
	Operand AstExpr
}

func (e *DerefExpr) String() string { return fmt.Sprintf("*%v", e.Operand) }

type AssignExpr struct {
	Expr
	Left, Right AstExpr
	Op          *registry.Descriptor // nil means plain "="
}

func (e *AssignExpr) String() string {
	sym := "="
	if e.Op != nil {
		sym = e.Op.Symbol
	}
	return fmt.Sprintf("(%v %s %v)", e.Left, sym, e.Right)
}

// MultiAssignExpr is the parallel-assignment / multi-value swap form (spec
// §4.4's combined-assign precedence tier covers both ordinary compound
// assignment and this fixed-arity swap).
type MultiAssignExpr struct {
	Expr
	Lefts, Rights []AstExpr
}

func (e *MultiAssignExpr) String() string {
	return fmt.Sprintf("%v <=> %v", e.Lefts, e.Rights)
}

// FuncDefExpr is the function-def expression bound via the `<=>` cue (spec
// §4.4/§9's function-def-cue vs CAS disambiguation). It is an expression,
// not a declaration, because FCx allows binding it to any identifier via
// ordinary assignment; FuncDecl (below) wraps one at module scope.
type FuncDefExpr struct {
	Expr
	Params  []Param
	RetType *Type
	Body    *BlockStmt
}

func (e *FuncDefExpr) String() string {
	return fmt.Sprintf("fn(%v) -> %v %v", e.Params, e.RetType, e.Body)
}

type Param struct {
	Name string
	Type *Type
}

// MemOpKind enumerates the memory-alloc family sub-operations (spec's
// memory-alloc operator family: mem>/stk>/heap>/free>/ralc>/algn>/... ).
type MemOpKind int

const (
	MemAllocate MemOpKind = iota
	MemFree
	MemRealloc
	MemAlignTo
	MemPrefetch
	MemZero
	MemPin
	MemUnpin
	MemMap
	MemUnmap
	MemProtect
	MemFlush
	MemCommit
	MemDecommit
	MemSlab
	MemArena
)

type MemoryOpExpr struct {
	Expr
	Op        *registry.Descriptor
	SubOp     MemOpKind
	Operand   AstExpr
	Size      AstExpr
	Alignment AstExpr
}

func (e *MemoryOpExpr) String() string {
	return fmt.Sprintf("%s(%v, size=%v, align=%v)", e.Op.Symbol, e.Operand, e.Size, e.Alignment)
}

// AtomicOpKind enumerates the atomic-concurrency family sub-operations.
type AtomicOpKind int

const (
	AtomicLoad AtomicOpKind = iota
	AtomicStore
	AtomicCAS
	AtomicSwap
	AtomicFence
	AtomicFetchAdd
	AtomicFetchSub
	AtomicFetchAnd
	AtomicFetchOr
	AtomicFetchXor
	AtomicRelaxed
)

type AtomicOpExpr struct {
	Expr
	Op    *registry.Descriptor
	SubOp AtomicOpKind
	Addr  AstExpr
	Old   AstExpr // nil unless CAS
	New   AstExpr
}

func (e *AtomicOpExpr) String() string {
	return fmt.Sprintf("%s(addr=%v, old=%v, new=%v)", e.Op.Symbol, e.Addr, e.Old, e.New)
}

// SyscallOpExpr covers the syscall-os family (sys@, sarg>, ioc%, erno@, ...).
type SyscallOpExpr struct {
	Expr
	Op   *registry.Descriptor
	Args []AstExpr
}

func (e *SyscallOpExpr) String() string {
	return fmt.Sprintf("%s(%v)", e.Op.Symbol, e.Args)
}

// AsmConstraint is one input/output binding of an inline-asm block, e.g.
// `x: expr`; the template's `${x}` placeholders keep their names and are not
// rewritten into positional operand refs.
type AsmConstraint struct {
	Name       string
	Constraint string
	Value      AstExpr
}

type InlineAsmExpr struct {
	Expr
	Template string
	Inputs   []AsmConstraint
	Outputs  []AsmConstraint
	Clobbers []string
}

func (e *InlineAsmExpr) String() string {
	return fmt.Sprintf("asm%%(%q, in=%v, out=%v, clobbers=%v)", e.Template, e.Inputs, e.Outputs, e.Clobbers)
}

// ---------------------------------------------------------------------------
// Statement variants (spec §3): expression, let, function, if, loop, return,
// halt, break, continue, module, use.

type ExprStmt struct {
	Stmt
	Expr AstExpr
}

func (s *ExprStmt) String() string { return fmt.Sprintf("%v;", s.Expr) }

type LetStmt struct {
	Stmt
	Name string
	Type *Type
	Init AstExpr
}

func (s *LetStmt) String() string {
	return fmt.Sprintf("let %s: %v = %v;", s.Name, s.Type, s.Init)
}

type BlockStmt struct {
	Stmt
	Stmts []AstStmt
}

func (s *BlockStmt) String() string { return fmt.Sprintf("{ %v }", s.Stmts) }

type IfStmt struct {
	Stmt
	Cond AstExpr
	Then *BlockStmt
	Else AstStmt // nil, *IfStmt (else-if), or *BlockStmt
}

func (s *IfStmt) String() string {
	return fmt.Sprintf("if %v %v else %v", s.Cond, s.Then, s.Else)
}

// LoopStmt is FCx's single unified loop construct: Cond == nil means an
// unconditional `loop { ... }`, matching the compact `->` single-statement
// rewrite the parser performs for both `if` and `loop` headers.
type LoopStmt struct {
	Stmt
	Cond AstExpr
	Body *BlockStmt
}

func (s *LoopStmt) String() string { return fmt.Sprintf("loop %v %v", s.Cond, s.Body) }

type ReturnStmt struct {
	Stmt
	Expr AstExpr // nil for bare `return;`
}

func (s *ReturnStmt) String() string { return fmt.Sprintf("return %v;", s.Expr) }

// HaltStmt is a non-returning abort point used by diagnostics-only paths
// (e.g. an unreachable branch after an exhaustive syscall).
type HaltStmt struct {
	Stmt
	Code AstExpr
}

func (s *HaltStmt) String() string { return fmt.Sprintf("halt %v;", s.Code) }

type BreakStmt struct{ Stmt }

func (s *BreakStmt) String() string { return "break;" }

type ContinueStmt struct{ Stmt }

func (s *ContinueStmt) String() string { return "continue;" }

// ModuleStmt is FCx's `mod name { ... }` (inline) or `mod name;` (file-scoped)
// declaration.
type ModuleStmt struct {
	Stmt
	Name   string
	Inline bool
	Body   []AstStmt // populated only when Inline
}

func (s *ModuleStmt) String() string {
	if s.Inline {
		return fmt.Sprintf("mod %s %v", s.Name, s.Body)
	}
	return fmt.Sprintf("mod %s;", s.Name)
}

type UseStmt struct {
	Stmt
	Path  []string
	Alias string
	Glob  bool
}

func (s *UseStmt) String() string {
	if s.Glob {
		return fmt.Sprintf("use %v::*;", s.Path)
	}
	return fmt.Sprintf("use %v as %s;", s.Path, s.Alias)
}

// ---------------------------------------------------------------------------
// Declarations.

type FuncDecl struct {
	Stmt
	Name    string
	Public  bool
	Params  []Param
	RetType *Type
	Body    *BlockStmt
}

func (d *FuncDecl) String() string {
	return fmt.Sprintf("fn %s(%v) -> %v %v", d.Name, d.Params, d.RetType, d.Body)
}

// RootDecl is the top-level compilation unit: a flat list of statements
// (module declarations, use statements, function declarations, and
// file-scope lets) in source order. This replaces the teacher's separate,
// never-defined *PackageDecl reference with a single consistently-defined
// root node.
type RootDecl struct {
	Stmt
	SourceFile string
	Items      []AstStmt
}

func (d *RootDecl) String() string {
	return fmt.Sprintf("// file: %s\n%v", d.SourceFile, d.Items)
}

// ---------------------------------------------------------------------------
// Walker: pre/post callback traversal in the teacher's AstWalker shape,
// generalized to FCx's node set.

type WalkFunc func(node, parent AstNode, depth int)

type AstWalker struct {
	Root *RootDecl
	Pre  WalkFunc
	Post WalkFunc
}

// NewAstWalker accepts 0-2 callbacks: pre-order then post-order.
func NewAstWalker(root *RootDecl, funcs ...WalkFunc) *AstWalker {
	w := &AstWalker{Root: root}
	if len(funcs) > 0 {
		w.Pre = funcs[0]
	}
	if len(funcs) > 1 {
		w.Post = funcs[1]
	}
	return w
}

func (w *AstWalker) Walk() {
	w.walkStmt(w.Root, nil, 0)
}

func (w *AstWalker) call(fn WalkFunc, node, parent AstNode, depth int) {
	if fn != nil {
		fn(node, parent, depth)
	}
}

func (w *AstWalker) walkExpr(e AstExpr, parent AstNode, depth int) {
	if e == nil {
		return
	}
	w.call(w.Pre, e, parent, depth)
	switch v := e.(type) {
	case *BinaryExpr:
		w.walkExpr(v.Left, e, depth+1)
		w.walkExpr(v.Right, e, depth+1)
	case *UnaryExpr:
		w.walkExpr(v.Operand, e, depth+1)
	case *TernaryExpr:
		w.walkExpr(v.Cond, e, depth+1)
		w.walkExpr(v.Then, e, depth+1)
		w.walkExpr(v.Else, e, depth+1)
	case *ConditionalExpr:
		w.walkExpr(v.Cond, e, depth+1)
		w.walkExpr(v.Then, e, depth+1)
	case *CallExpr:
		for _, a := range v.Args {
			w.walkExpr(a, e, depth+1)
		}
	case *IndexExpr:
		w.walkExpr(v.Base, e, depth+1)
		w.walkExpr(v.Index, e, depth+1)
	case *DerefExpr:
		w.walkExpr(v.Operand, e, depth+1)
	case *AssignExpr:
		w.walkExpr(v.Left, e, depth+1)
		w.walkExpr(v.Right, e, depth+1)
	case *MultiAssignExpr:
		for _, l := range v.Lefts {
			w.walkExpr(l, e, depth+1)
		}
		for _, r := range v.Rights {
			w.walkExpr(r, e, depth+1)
		}
	case *FuncDefExpr:
		w.walkBlock(v.Body, e, depth+1)
	case *MemoryOpExpr:
		w.walkExpr(v.Operand, e, depth+1)
		w.walkExpr(v.Size, e, depth+1)
		w.walkExpr(v.Alignment, e, depth+1)
	case *AtomicOpExpr:
		w.walkExpr(v.Addr, e, depth+1)
		w.walkExpr(v.Old, e, depth+1)
		w.walkExpr(v.New, e, depth+1)
	case *SyscallOpExpr:
		for _, a := range v.Args {
			w.walkExpr(a, e, depth+1)
		}
	case *InlineAsmExpr:
		for _, in := range v.Inputs {
			w.walkExpr(in.Value, e, depth+1)
		}
		for _, out := range v.Outputs {
			w.walkExpr(out.Value, e, depth+1)
		}
	case *LiteralExpr, *IdentifierExpr:
		// leaves
	}
	w.call(w.Post, e, parent, depth)
}

func (w *AstWalker) walkBlock(b *BlockStmt, parent AstNode, depth int) {
	if b == nil {
		return
	}
	w.call(w.Pre, b, parent, depth)
	for _, s := range b.Stmts {
		w.walkStmt(s, b, depth+1)
	}
	w.call(w.Post, b, parent, depth)
}

func (w *AstWalker) walkStmt(s AstStmt, parent AstNode, depth int) {
	if s == nil {
		return
	}
	w.call(w.Pre, s, parent, depth)
	switch v := s.(type) {
	case *RootDecl:
		for _, item := range v.Items {
			w.walkStmt(item, v, depth+1)
		}
	case *FuncDecl:
		w.walkBlock(v.Body, v, depth+1)
	case *BlockStmt:
		for _, st := range v.Stmts {
			w.walkStmt(st, v, depth+1)
		}
	case *ExprStmt:
		w.walkExpr(v.Expr, v, depth+1)
	case *LetStmt:
		w.walkExpr(v.Init, v, depth+1)
	case *IfStmt:
		w.walkExpr(v.Cond, v, depth+1)
		w.walkBlock(v.Then, v, depth+1)
		w.walkStmt(v.Else, v, depth+1)
	case *LoopStmt:
		w.walkExpr(v.Cond, v, depth+1)
		w.walkBlock(v.Body, v, depth+1)
	case *ReturnStmt:
		w.walkExpr(v.Expr, v, depth+1)
	case *HaltStmt:
		w.walkExpr(v.Code, v, depth+1)
	case *ModuleStmt:
		for _, item := range v.Body {
			w.walkStmt(item, v, depth+1)
		}
	case *BreakStmt, *ContinueStmt, *UseStmt:
		// leaves
	}
	w.call(w.Post, s, parent, depth)
}

// PrintAst renders the tree depth-first with indentation, the teacher's
// debug aid generalized to the new node set. Unlike the teacher's version,
// there is no DumpAstToDotFile: that helper shelled out to graphviz's `dot`
// binary via utils.ExecuteCmd, which this project drops entirely (see
// DESIGN.md — external-process invocation is out of core scope alongside
// the linker and emitter); text dumps via PrintAst cover the same debugging
// need without a process dependency.
func PrintAst(root *RootDecl) {
	w := NewAstWalker(root, func(node, parent AstNode, depth int) {
		indent := ""
		for i := 0; i < depth; i++ {
			indent += "  "
		}
		switch v := node.(type) {
		case AstExpr:
			fmt.Printf("%s%v\n", indent, v)
		case AstStmt:
			fmt.Printf("%s%T\n", indent, v)
		}
	})
	w.Walk()
}
