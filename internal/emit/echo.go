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

import "backend/internal/ir"

// functionIR backs the target-agnostic "ir-ir" triple: --target=ir-ir
// skips ABI lowering, instruction selection and register allocation
// entirely and round-trips the parsed function straight back through
// the textual printer; cmd/backendc selects it for --target=ir-ir and
// for --emit=ir.
func (e *Emitter) functionIR(fn *ir.Function) {
	e.buf.WriteString(ir.Print(fn))
}
