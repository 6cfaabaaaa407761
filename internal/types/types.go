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

// Package types implements the hash-consed type universe the rest of the
// back end builds on: primitives, pointers, arrays, structs, functions and
// named aliases, all interned so that equality is pointer identity.
package types

import (
	"fmt"
	"strings"
)

type Kind uint8

const (
	KVoid Kind = iota
	KPrimitive
	KPtr
	KArray
	KStruct
	KFunc
	KAlias
)

// Primitive names the scalar kinds a value can hold: i1/i2/i4/i8 integers
// of that byte width, f4/f8 floats.
type Primitive uint8

const (
	I1 Primitive = iota
	I2
	I4
	I8
	F4
	F8
)

func (p Primitive) Bytes() int {
	switch p {
	case I1:
		return 1
	case I2:
		return 2
	case I4, F4:
		return 4
	case I8, F8:
		return 8
	}
	panic("unreachable primitive")
}

func (p Primitive) IsFloat() bool {
	return p == F4 || p == F8
}

func (p Primitive) String() string {
	switch p {
	case I1:
		return "i1"
	case I2:
		return "i2"
	case I4:
		return "i4"
	case I8:
		return "i8"
	case F4:
		return "f4"
	case F8:
		return "f8"
	}
	panic("unreachable primitive")
}

// Type is an interned node in the type universe. Two Types describe the
// same shape iff they are the same pointer — the Universe's interning
// table guarantees this for every one of its constructors.
type Type struct {
	kind Kind

	prim Primitive

	elem *Type // Ptr, Array
	len  int   // Array

	fields []*Type // Struct

	ret      *Type // Func
	params   []*Type
	variadic bool

	name   string // Alias
	actual *Type  // Alias

	key string // memoized interning key
}

func (t *Type) Kind() Kind       { return t.kind }
func (t *Type) Prim() Primitive  { return t.prim }
func (t *Type) Elem() *Type      { return t.elem }
func (t *Type) Len() int         { return t.len }
func (t *Type) Fields() []*Type  { return t.fields }
func (t *Type) Ret() *Type       { return t.ret }
func (t *Type) Params() []*Type { return t.params }
func (t *Type) Variadic() bool   { return t.variadic }
func (t *Type) AliasName() string { return t.name }

func (t *Type) IsVoid() bool      { return t.kind == KVoid }
func (t *Type) IsPrimitive() bool { return t.kind == KPrimitive }
func (t *Type) IsPtr() bool       { return t.kind == KPtr }
func (t *Type) IsArray() bool     { return t.kind == KArray }
func (t *Type) IsStruct() bool    { return t.kind == KStruct }
func (t *Type) IsFunc() bool      { return t.kind == KFunc }
func (t *Type) IsAlias() bool     { return t.kind == KAlias }

func (t *Type) IsFloat() bool {
	return t.kind == KPrimitive && t.prim.IsFloat()
}

// Deref returns the pointee of a pointer type (resolving alias chains
// first), or ok=false for anything that isn't a pointer. A load/store
// instruction's addressed operand goes through this to find what it reads
// or writes.
func (t *Type) Deref() (*Type, bool) {
	u := t.Deref0()
	if u.kind != KPtr {
		return nil, false
	}
	return u.elem, true
}

// Deref0 resolves alias chains without requiring a pointer, used when code
// needs the "real" underlying shape of a named type.
func (t *Type) Deref0() *Type {
	for t.kind == KAlias {
		t = t.actual
	}
	return t
}

func (t *Type) String() string {
	switch t.kind {
	case KVoid:
		return "void"
	case KPrimitive:
		return t.prim.String()
	case KPtr:
		return "*" + t.elem.String()
	case KArray:
		return fmt.Sprintf("[%d]%s", t.len, t.elem.String())
	case KStruct:
		parts := make([]string, len(t.fields))
		for i, f := range t.fields {
			parts[i] = f.String()
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case KFunc:
		parts := make([]string, len(t.params))
		for i, p := range t.params {
			parts[i] = p.String()
		}
		variadicMark := ""
		if t.variadic {
			variadicMark = ", ..."
		}
		return fmt.Sprintf("(%s%s) -> %s", strings.Join(parts, ", "), variadicMark, t.ret.String())
	case KAlias:
		return t.name
	}
	panic("unreachable type kind")
}
