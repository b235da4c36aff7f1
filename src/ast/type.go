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

import "fmt"

// TypeKind is FCx's scalar type lattice: signed/unsigned integers up to the
// 1024-bit big-integer widths, two float widths, pointers, and arrays.
// HIR vregs carry a width/type-class tag derived from this (spec §3).
type TypeKind int

const (
	TypeI8 TypeKind = iota
	TypeI16
	TypeI32
	TypeI64
	TypeI128
	TypeI256
	TypeI512
	TypeI1024
	TypeU8
	TypeU16
	TypeU32
	TypeU64
	TypeU128
	TypeU256
	TypeU512
	TypeU1024
	TypeF32
	TypeF64
	TypeBool
	TypePtr
	TypeRawPtr
	TypeVoid
	TypeArray
)

type Type struct {
	Kind     TypeKind
	ElemType *Type
}

var (
	TI8     = &Type{Kind: TypeI8}
	TI16    = &Type{Kind: TypeI16}
	TI32    = &Type{Kind: TypeI32}
	TI64    = &Type{Kind: TypeI64}
	TI128   = &Type{Kind: TypeI128}
	TI256   = &Type{Kind: TypeI256}
	TI512   = &Type{Kind: TypeI512}
	TI1024  = &Type{Kind: TypeI1024}
	TU8     = &Type{Kind: TypeU8}
	TU16    = &Type{Kind: TypeU16}
	TU32    = &Type{Kind: TypeU32}
	TU64    = &Type{Kind: TypeU64}
	TU128   = &Type{Kind: TypeU128}
	TU256   = &Type{Kind: TypeU256}
	TU512   = &Type{Kind: TypeU512}
	TU1024  = &Type{Kind: TypeU1024}
	TF32    = &Type{Kind: TypeF32}
	TF64    = &Type{Kind: TypeF64}
	TBool   = &Type{Kind: TypeBool}
	TPtr    = &Type{Kind: TypePtr}
	TRawPtr = &Type{Kind: TypeRawPtr}
	TVoid   = &Type{Kind: TypeVoid}
)

// typeNames backs String(); type names in source are resolved through
// namedScalarTypes (LookupNamedType), not through the lexer's keyword table.
var typeNames = map[TypeKind]string{
	TypeI8: "i8", TypeI16: "i16", TypeI32: "i32", TypeI64: "i64",
	TypeI128: "i128", TypeI256: "i256", TypeI512: "i512", TypeI1024: "i1024",
	TypeU8: "u8", TypeU16: "u16", TypeU32: "u32", TypeU64: "u64",
	TypeU128: "u128", TypeU256: "u256", TypeU512: "u512", TypeU1024: "u1024",
	TypeF32: "f32", TypeF64: "f64", TypeBool: "bool",
	TypePtr: "ptr", TypeRawPtr: "rawptr", TypeVoid: "void",
}

var namedScalarTypes = map[string]*Type{
	"i8": TI8, "i16": TI16, "i32": TI32, "i64": TI64,
	"i128": TI128, "i256": TI256, "i512": TI512, "i1024": TI1024,
	"u8": TU8, "u16": TU16, "u32": TU32, "u64": TU64,
	"u128": TU128, "u256": TU256, "u512": TU512, "u1024": TU1024,
	"f32": TF32, "f64": TF64, "bool": TBool,
	"ptr": TPtr, "rawptr": TRawPtr, "void": TVoid,
}

func LookupNamedType(name string) (*Type, bool) {
	t, ok := namedScalarTypes[name]
	return t, ok
}

func (t *Type) String() string {
	if t == nil {
		return "<untyped>"
	}
	if t.Kind == TypeArray {
		return fmt.Sprintf("[]%v", t.ElemType)
	}
	if name, ok := typeNames[t.Kind]; ok {
		return name
	}
	return "<unknown type>"
}

// IsBigInt reports whether values of this type may require the >64-bit
// bigint.Int representation (spec §3/§9).
func (t *Type) IsBigInt() bool {
	switch t.Kind {
	case TypeI128, TypeI256, TypeI512, TypeI1024,
		TypeU128, TypeU256, TypeU512, TypeU1024:
		return true
	}
	return false
}

// BitWidth returns the storage width in bits for scalar integer/float types.
func (t *Type) BitWidth() int {
	switch t.Kind {
	case TypeI8, TypeU8:
		return 8
	case TypeI16, TypeU16:
		return 16
	case TypeI32, TypeU32, TypeF32:
		return 32
	case TypeI64, TypeU64, TypeF64, TypePtr, TypeRawPtr:
		return 64
	case TypeI128, TypeU128:
		return 128
	case TypeI256, TypeU256:
		return 256
	case TypeI512, TypeU512:
		return 512
	case TypeI1024, TypeU1024:
		return 1024
	case TypeBool:
		return 8
	}
	return 64
}

func (t *Type) Unsigned() bool {
	switch t.Kind {
	case TypeU8, TypeU16, TypeU32, TypeU64, TypeU128, TypeU256, TypeU512, TypeU1024:
		return true
	}
	return false
}

// ResolveWidths is a lightweight width-propagation pass: unlike the
// teacher's full type-inference/checker, FCx's HIR only needs a per-vreg
// width/type-class tag (spec §3), not source-level type checking, so this
// walks let-statements and function parameters assigning declared types to
// the identifiers they bind. Literals keep whatever type their own node
// constructors set; a binary or unary node that has no type yet takes the
// type of its (left) operand.
func ResolveWidths(root *RootDecl) {
	scopes := []map[string]*Type{{}}
	push := func() { scopes = append(scopes, map[string]*Type{}) }
	pop := func() { scopes = scopes[:len(scopes)-1] }
	set := func(name string, t *Type) { scopes[len(scopes)-1][name] = t }
	get := func(name string) *Type {
		for i := len(scopes) - 1; i >= 0; i-- {
			if t, ok := scopes[i][name]; ok {
				return t
			}
		}
		return nil
	}

	var walkStmt func(AstStmt)
	var walkExpr func(AstExpr)

	walkExpr = func(e AstExpr) {
		switch v := e.(type) {
		case *IdentifierExpr:
			if t := get(v.Name); t != nil {
				v.SetType(t)
			}
		case *BinaryExpr:
			walkExpr(v.Left)
			walkExpr(v.Right)
			if v.GetType() == nil {
				v.SetType(v.Left.GetType())
			}
		case *UnaryExpr:
			walkExpr(v.Operand)
			if v.GetType() == nil {
				v.SetType(v.Operand.GetType())
			}
		case *AssignExpr:
			walkExpr(v.Left)
			walkExpr(v.Right)
		case *TernaryExpr:
			walkExpr(v.Cond)
			walkExpr(v.Then)
			walkExpr(v.Else)
		case *CallExpr:
			for _, a := range v.Args {
				walkExpr(a)
			}
		case *IndexExpr:
			walkExpr(v.Base)
			walkExpr(v.Index)
		}
	}

	walkStmt = func(s AstStmt) {
		switch v := s.(type) {
		case *LetStmt:
			if v.Init != nil {
				walkExpr(v.Init)
			}
			t := v.Type
			if t == nil && v.Init != nil {
				t = v.Init.GetType()
			}
			set(v.Name, t)
		case *ExprStmt:
			walkExpr(v.Expr)
		case *ReturnStmt:
			if v.Expr != nil {
				walkExpr(v.Expr)
			}
		case *IfStmt:
			walkExpr(v.Cond)
			push()
			for _, st := range v.Then.Stmts {
				walkStmt(st)
			}
			pop()
			if v.Else != nil {
				walkStmt(v.Else)
			}
		case *LoopStmt:
			if v.Cond != nil {
				walkExpr(v.Cond)
			}
			push()
			for _, st := range v.Body.Stmts {
				walkStmt(st)
			}
			pop()
		case *BlockStmt:
			push()
			for _, st := range v.Stmts {
				walkStmt(st)
			}
			pop()
		case *FuncDecl:
			push()
			for _, p := range v.Params {
				set(p.Name, p.Type)
			}
			for _, st := range v.Body.Stmts {
				walkStmt(st)
			}
			pop()
		}
	}

	for _, item := range root.Items {
		walkStmt(item)
	}
}
