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

package ir

import (
	"backend/internal/types"
	"backend/internal/value"
	"backend/utils"
)

// Function is one compilation unit's function: its declared type, its
// blocks in layout order (first is the entry block), and the incoming
// argument values the ABI lowering pass has already bound to a home.
type Function struct {
	Name string
	Type *types.Type // KFunc

	Blocks []*Block

	Args []*value.Value // one per declared parameter, KArgument

	// StackUse is the running count of bytes the allocator/spiller has
	// reserved below the frame pointer; stack offsets are assigned
	// positive and grow downward, i.e. slot N lives at -(N) from rbp,
	// resolving the spec's Open Question on stackoff direction in favor
	// of "offset counts bytes below rbp".
	StackUse int

	// Stret is non-nil when this function returns a struct too large for
	// registers: the ABI lowering pass rewrites the signature to take a
	// hidden pointer argument and binds it here.
	Stret *value.Value

	nextValueID int
	nextBlockID int
}

func NewFunction(name string, t *types.Type) *Function {
	return &Function{Name: name, Type: t}
}

func (f *Function) NewValueID() int {
	id := f.nextValueID
	f.nextValueID++
	return id
}

// NewBlock creates and appends a block to the function's layout order.
// Layout order is also the order the emitter prints blocks in, so
// callers append in the order they want labels to fall through.
func (f *Function) NewBlock(namePrefix string) *Block {
	name := namePrefix
	if name == "" {
		name = "L"
	}
	b := NewBlock(f, name+itoa(f.nextBlockID))
	f.nextBlockID++
	f.Blocks = append(f.Blocks, b)
	return b
}

// NewBlockAfter creates a block and splices it into the function's
// layout order immediately following after, instead of at the end:
// a pass that splits a block mid-function (isel expanding a memcpy
// into a loop) needs its new blocks to stay adjacent to the one they
// were split from, or blocks that originally followed it in layout
// order would end up printed between them, which the emitter's
// fallthrough peephole uses layout order to decide.
func (f *Function) NewBlockAfter(after *Block, namePrefix string) *Block {
	name := namePrefix
	if name == "" {
		name = "L"
	}
	b := NewBlock(f, name+itoa(f.nextBlockID))
	f.nextBlockID++

	idx := len(f.Blocks) - 1
	for i, existing := range f.Blocks {
		if existing == after {
			idx = i
			break
		}
	}
	f.Blocks = utils.InsertAt(f.Blocks, idx+1, b)
	return b
}

func (f *Function) Entry() *Block {
	if len(f.Blocks) == 0 {
		return nil
	}
	return f.Blocks[0]
}

// LinkPredecessors rebuilds every block's predecessor set from the
// current terminators. Parse calls it once the function is built and
// ComputeLifetimes calls it again before its dataflow, so a pass that
// rewrites control flow (ExpandMemcpy splitting a block into a loop)
// does not maintain predecessors itself.
func (f *Function) LinkPredecessors() {
	for _, b := range f.Blocks {
		b.Preds = utils.NewSet[*Block]()
	}
	for _, b := range f.Blocks {
		for _, succ := range b.Successors() {
			succ.Preds.Add(b)
		}
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
