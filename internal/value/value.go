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

// Package value implements the reference-counted Value and Location model
// that every instruction operand and result is built from.
package value

import (
	"fmt"

	"backend/internal/target"
	"backend/internal/types"
)

type Kind uint8

const (
	KLiteral Kind = iota
	KUndef
	KGlobal
	KLabel
	KArgument
	KAlloca
	KFromInstruction
	KABITemp
	KBackendTemp
)

// Where names which storage class a Location describes.
type Where uint8

const (
	Nowhere Where = iota
	AnyRegister
	SpecificRegister
	StackOffset
)

// Constraint narrows what AnyRegister is allowed to resolve to.
type Constraint uint8

const (
	ConstraintNone Constraint = iota
	ConstraintReg
	ConstraintMem
)

type Location struct {
	Where      Where
	Reg        target.Register
	Offset     int
	Constraint Constraint
}

func (l Location) IsReg() bool {
	return l.Where == AnyRegister || l.Where == SpecificRegister
}

func (l Location) IsRegSpecific() bool {
	return l.Where == SpecificRegister
}

func (l Location) IsOnStack() bool {
	return l.Where == StackOffset
}

func (l Location) String() string {
	switch l.Where {
	case Nowhere:
		return "<nowhere>"
	case AnyRegister:
		return "<any-reg>"
	case SpecificRegister:
		return l.Reg.String()
	case StackOffset:
		return fmt.Sprintf("[stack+%d]", l.Offset)
	}
	panic("unreachable location kind")
}

// Value is a reference-counted operand or result. Values are never copied
// by value once created: instructions hold *Value and share the same
// underlying object wherever the same definition flows to multiple uses.
type Value struct {
	ID   int
	Kind Kind
	Type *types.Type

	refCount int

	// LivesAcrossBlocks is set by lifetime analysis (internal/ir) and read
	// by the spill pass: any value alive at a block boundary must have a
	// stable home, not just a scratch register.
	LivesAcrossBlocks bool

	Loc Location

	// literal payload, meaningful when Kind == KLiteral
	IntLiteral   int64
	FloatLiteral float64

	Name string // globals, labels, arguments: symbolic name
}

func NewValue(id int, kind Kind, t *types.Type) *Value {
	return &Value{ID: id, Kind: kind, Type: t}
}

func Literal(id int, t *types.Type, i int64) *Value {
	return &Value{ID: id, Kind: KLiteral, Type: t, IntLiteral: i}
}

func FloatLit(id int, t *types.Type, f float64) *Value {
	return &Value{ID: id, Kind: KLiteral, Type: t, FloatLiteral: f}
}

func Undef(id int, t *types.Type) *Value {
	return &Value{ID: id, Kind: KUndef, Type: t}
}

// Retain and Release implement the reference count: a from-instruction or
// backend-temp Value is only safe to recycle its storage once the count
// drops to zero, mirroring how the original back end frees its value pool.
func (v *Value) Retain() *Value {
	v.refCount++
	return v
}

func (v *Value) Release() int {
	v.refCount--
	return v.refCount
}

func (v *Value) RefCount() int {
	return v.refCount
}

func (v *Value) IsVolatile() bool {
	return v.Kind == KFromInstruction || v.Kind == KBackendTemp || v.Kind == KABITemp
}

func (v *Value) IsOnStack() bool {
	return v.Loc.IsOnStack()
}

func (v *Value) IsReg() bool {
	return v.Loc.IsReg()
}

func (v *Value) IsRegSpecific() bool {
	return v.Loc.IsRegSpecific()
}

// CanMove reports whether the value's storage may be relocated by the
// register allocator. Globals, labels and literals are never moved: they
// describe a fixed symbol or an immediate, not a value with a home to
// change.
func (v *Value) CanMove() bool {
	switch v.Kind {
	case KGlobal, KLabel, KLiteral, KUndef:
		return false
	default:
		return true
	}
}

// OperandCategory buckets a value the way instruction selection's
// constraint tables key off of: reg-eligible, memory-eligible or
// immediate-only.
type OperandCategory uint8

const (
	CategoryImmediate OperandCategory = iota
	CategoryMemory
	CategoryRegister
)

func (v *Value) OperandCategory() OperandCategory {
	switch v.Kind {
	case KLiteral, KUndef:
		return CategoryImmediate
	}
	if v.Loc.IsOnStack() {
		return CategoryMemory
	}
	return CategoryRegister
}

func (v *Value) String() string {
	switch v.Kind {
	case KLiteral:
		if v.Type != nil && v.Type.IsFloat() {
			return fmt.Sprintf("%g", v.FloatLiteral)
		}
		return fmt.Sprintf("%d", v.IntLiteral)
	case KUndef:
		return "undef"
	case KGlobal:
		return "@" + v.Name
	case KLabel:
		return "%" + v.Name
	case KArgument:
		return "arg." + v.Name
	case KAlloca:
		return fmt.Sprintf("alloca.%d", v.ID)
	case KFromInstruction:
		return fmt.Sprintf("%%%d", v.ID)
	case KABITemp:
		return fmt.Sprintf("abitemp.%d", v.ID)
	case KBackendTemp:
		return fmt.Sprintf("temp.%d", v.ID)
	}
	panic("unreachable value kind")
}
