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

package emit

import (
	"fmt"

	"backend/internal/value"
	"backend/utils"
)

// operand renders a value per its already-decided Location: a register
// becomes its physical name at the value's own width, a stack slot
// becomes an rbp-relative memory operand, everything else (literal,
// global, label) renders directly since those never move.
func (e *Emitter) operand(v *value.Value) string {
	switch v.Kind {
	case value.KLiteral:
		if v.Type != nil && v.Type.IsFloat() {
			utils.Unimplement() // float immediates are not yet lowered to a rodata constant
		}
		return fmt.Sprintf("$%d", v.IntLiteral)
	case value.KGlobal:
		return e.tgt.Decorate(v.Name) + "(%rip)"
	case value.KLabel:
		return "." + v.Name
	}

	switch v.Loc.Where {
	case value.SpecificRegister:
		width := 8
		if v.Type != nil {
			width = e.u.SizeOf(v.Type)
			if width == 0 || width > 8 {
				width = 8
			}
		}
		return e.reg(v.Loc.Reg.AtWidth(width))
	case value.StackOffset:
		return fmt.Sprintf("-%d(%%rbp)", v.Loc.Offset)
	}

	utils.Assert(false, "value %v has no storage location at emission time", v)
	return "<unresolved>"
}

// suffixForBytes infers the AT&T mnemonic width suffix from an operand
// width, the same role suffix() plays in a single-mnemonic-per-width
// assembler: b/w/l/q for integers, ss/sd for scalar float.
func suffixForBytes(bytes int, isFloat bool) string {
	if isFloat {
		if bytes == 4 {
			return "ss"
		}
		return "sd"
	}
	switch bytes {
	case 1:
		return "b"
	case 2:
		return "w"
	case 4:
		return "l"
	default:
		return "q"
	}
}

func (e *Emitter) suffixOf(v *value.Value) string {
	if v.Type == nil {
		return "q"
	}
	bytes := e.u.SizeOf(v.Type)
	if bytes == 0 {
		bytes = 8
	}
	return suffixForBytes(bytes, v.Type.IsFloat())
}
