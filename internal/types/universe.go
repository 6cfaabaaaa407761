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

package types

import (
	"fmt"
	"strings"

	"backend/utils"
)

// Universe is the per-compilation-unit interning table. Every constructor
// on it returns the same *Type for the same shape, so callers can compare
// types with ==.
type Universe struct {
	void  *Type
	prims [6]*Type
	table map[string]*Type
}

func NewUniverse() *Universe {
	u := &Universe{
		table: make(map[string]*Type),
	}
	u.void = &Type{kind: KVoid, key: "void"}
	for p := I1; p <= F8; p++ {
		t := &Type{kind: KPrimitive, prim: p, key: "prim:" + p.String()}
		u.prims[p] = t
		u.table[t.key] = t
	}
	return u
}

func (u *Universe) Void() *Type { return u.void }

func (u *Universe) Primitive(p Primitive) *Type {
	utils.Assert(p <= F8, "invalid primitive %v", p)
	return u.prims[p]
}

func (u *Universe) Ptr(elem *Type) *Type {
	key := "ptr:" + elem.key
	if t, ok := u.table[key]; ok {
		return t
	}
	t := &Type{kind: KPtr, elem: elem, key: key}
	u.table[key] = t
	return t
}

func (u *Universe) Array(elem *Type, length int) *Type {
	utils.Assert(length >= 0, "negative array length %d", length)
	key := fmt.Sprintf("array:%d:%s", length, elem.key)
	if t, ok := u.table[key]; ok {
		return t
	}
	t := &Type{kind: KArray, elem: elem, len: length, key: key}
	u.table[key] = t
	return t
}

func (u *Universe) Struct(fields []*Type) *Type {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.key
	}
	key := "struct:" + strings.Join(keys, ",")
	if t, ok := u.table[key]; ok {
		return t
	}
	cp := make([]*Type, len(fields))
	copy(cp, fields)
	t := &Type{kind: KStruct, fields: cp, key: key}
	u.table[key] = t
	return t
}

func (u *Universe) Func(ret *Type, params []*Type, variadic bool) *Type {
	keys := make([]string, len(params))
	for i, p := range params {
		keys[i] = p.key
	}
	key := fmt.Sprintf("func:%s:(%s):%v", ret.key, strings.Join(keys, ","), variadic)
	if t, ok := u.table[key]; ok {
		return t
	}
	cp := make([]*Type, len(params))
	copy(cp, params)
	t := &Type{kind: KFunc, ret: ret, params: cp, variadic: variadic, key: key}
	u.table[key] = t
	return t
}

// Alias interns a named type. Re-aliasing the same name to the same
// actual type returns the existing alias; re-aliasing it to a different
// actual type fails a utils.Assert, matching how a single compilation
// unit can only declare a type name once.
func (u *Universe) Alias(name string, actual *Type) *Type {
	key := "alias:" + name
	if t, ok := u.table[key]; ok {
		utils.Assert(t.actual == actual, "type alias %q redeclared with a different shape", name)
		return t
	}
	t := &Type{kind: KAlias, name: name, actual: actual, key: key}
	u.table[key] = t
	return t
}

func (u *Universe) Lookup(name string) (*Type, bool) {
	t, ok := u.table["alias:"+name]
	return t, ok
}

// SizeOf follows System V struct-layout rules: scalars are their natural
// width, arrays are length*elem size-of, structs pad each field up to its
// own alignment and the whole struct up to its largest field alignment.
func (u *Universe) SizeOf(t *Type) int {
	switch t.kind {
	case KVoid:
		return 0
	case KPrimitive:
		return t.prim.Bytes()
	case KPtr:
		return 8
	case KArray:
		return t.len * u.SizeOf(t.elem)
	case KStruct:
		off := 0
		for _, f := range t.fields {
			a := u.AlignOf(f)
			off = alignUp(off, a)
			off += u.SizeOf(f)
		}
		return alignUp(off, u.AlignOf(t))
	case KFunc:
		panic("function types have no size")
	case KAlias:
		return u.SizeOf(t.actual)
	}
	panic("unreachable type kind")
}

// AlignOf mirrors SizeOf: scalars align to their own width, pointers to 8,
// arrays to their element's alignment, structs to the max of their fields'.
func (u *Universe) AlignOf(t *Type) int {
	switch t.kind {
	case KVoid:
		return 1
	case KPrimitive:
		return t.prim.Bytes()
	case KPtr:
		return 8
	case KArray:
		return u.AlignOf(t.elem)
	case KStruct:
		a := 1
		for _, f := range t.fields {
			if fa := u.AlignOf(f); fa > a {
				a = fa
			}
		}
		return a
	case KFunc:
		panic("function types have no alignment")
	case KAlias:
		return u.AlignOf(t.actual)
	}
	panic("unreachable type kind")
}

func alignUp(off, align int) int {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

// PrimitiveLessOrEqual orders primitives by storage width, floats after
// integers of equal width.
func PrimitiveLessOrEqual(a, b Primitive) bool {
	if a.Bytes() != b.Bytes() {
		return a.Bytes() < b.Bytes()
	}
	return !a.IsFloat() || b.IsFloat()
}
