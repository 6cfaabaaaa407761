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

// Package abi implements the ABI lowering pass: System V AMD64 argument
// classification, incoming/outgoing argument binding, return-value
// packing, and struct-return (stret) handling via a hidden pointer
// argument.
package abi

import "backend/internal/types"

// EightbyteClass is the per-eightbyte classification System V's
// classification algorithm produces: SSE stays in the float register
// file, INTEGER goes through the general-purpose one, MEMORY means the
// eightbyte never reaches a register at all.
type EightbyteClass int

const (
	ClassInteger EightbyteClass = iota
	ClassSSE
	ClassMemory
	ClassNone // padding eightbyte entirely past the end of the aggregate
)

// merge implements the ABI's two-class merge rule: NONE yields the other
// class, if either input is MEMORY the whole aggregate is MEMORY, else if
// either is INTEGER the result is INTEGER, else SSE.
func merge(a, b EightbyteClass) EightbyteClass {
	if a == ClassNone {
		return b
	}
	if b == ClassNone {
		return a
	}
	if a == b {
		return a
	}
	if a == ClassMemory || b == ClassMemory {
		return ClassMemory
	}
	if a == ClassInteger || b == ClassInteger {
		return ClassInteger
	}
	return ClassSSE
}

// Classify classifies t into one EightbyteClass per 8-byte chunk,
// following the System V algorithm: a type is in memory if its size is 0
// or exceeds two eightbytes (16 bytes) — the registers can only ever
// return/pass two eightbytes of an aggregate — everything else classifies
// field-by-field and merges.
func Classify(u *types.Universe, t *types.Type) []EightbyteClass {
	size := u.SizeOf(t)
	if size == 0 {
		return []EightbyteClass{ClassMemory}
	}
	n := (size + 7) / 8
	if size > 16 {
		out := make([]EightbyteClass, n)
		for i := range out {
			out[i] = ClassMemory
		}
		return out
	}
	classes := make([]EightbyteClass, n)
	for i := range classes {
		classes[i] = ClassNone
	}
	classifyInto(u, t, 0, classes)
	for i := range classes {
		if classes[i] == ClassNone {
			classes[i] = ClassSSE
		}
	}
	return classes
}

func classifyInto(u *types.Universe, t *types.Type, offset int, classes []EightbyteClass) {
	switch {
	case t.IsStruct():
		off := offset
		for _, f := range t.Fields() {
			a := u.AlignOf(f)
			off = alignUp(off, a)
			classifyInto(u, f, off, classes)
			off += u.SizeOf(f)
		}
	case t.IsArray():
		elemSize := u.SizeOf(t.Elem())
		for i := 0; i < t.Len(); i++ {
			classifyInto(u, t.Elem(), offset+i*elemSize, classes)
		}
	case t.IsAlias():
		classifyInto(u, t.Deref0(), offset, classes)
	default:
		cls := ClassInteger
		if t.IsFloat() {
			cls = ClassSSE
		}
		size := u.SizeOf(t)
		startEB := offset / 8
		endEB := (offset + size - 1) / 8
		for eb := startEB; eb <= endEB && eb < len(classes); eb++ {
			classes[eb] = merge(classes[eb], cls)
		}
	}
}

func alignUp(off, align int) int {
	if align <= 1 {
		return off
	}
	return (off + align - 1) &^ (align - 1)
}

// IsMemoryClass reports whether t, classified as a whole, must be
// passed/returned in memory rather than registers.
func IsMemoryClass(classes []EightbyteClass) bool {
	for _, c := range classes {
		if c == ClassMemory {
			return true
		}
	}
	return false
}

func CountIntEightbytes(classes []EightbyteClass) int {
	n := 0
	for _, c := range classes {
		if c == ClassInteger {
			n++
		}
	}
	return n
}

func CountSSEEightbytes(classes []EightbyteClass) int {
	n := 0
	for _, c := range classes {
		if c == ClassSSE {
			n++
		}
	}
	return n
}
