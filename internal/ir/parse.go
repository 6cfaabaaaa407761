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
	"fmt"
	"strconv"

	"backend/internal/types"
	"backend/internal/value"
)

// parser consumes the textual IR grammar Print produces. It is
// intentionally minimal: no macros, no includes, and it understands only
// a subset of the instructions Print emits (alloca, load, store, copy,
// return, jump, branch, the binops and compare.*). It exists so the
// round-trip property (build -> print -> parse -> compare) is testable
// from within this package, not to be a production front end.
type parser struct {
	lex *lexer
	tok token
	u   *types.Universe

	values map[string]*value.Value
	blocks map[string]*Block
	fn     *Function
}

// Parse reads one function from the textual IR grammar. Unresolved
// forward block references (a branch/jump naming a block that appears
// later in the source) are patched once the whole function has been
// read.
func Parse(src string, u *types.Universe) (*Function, error) {
	p := &parser{lex: newLexer(src), u: u, values: map[string]*value.Value{}, blocks: map[string]*Block{}}
	p.advance()
	return p.parseFunction()
}

func (p *parser) advance() { p.tok = p.lex.next() }

func (p *parser) expectIdent(want string) error {
	if p.tok.kind != tkIdent || p.tok.text != want {
		return fmt.Errorf("ir: expected %q, got %q", want, p.tok.text)
	}
	p.advance()
	return nil
}

func (p *parser) expect(k tokKind) (token, error) {
	if p.tok.kind != k {
		return token{}, fmt.Errorf("ir: unexpected token %q", p.tok.text)
	}
	t := p.tok
	p.advance()
	return t, nil
}

func (p *parser) parseFunction() (*Function, error) {
	if err := p.expectIdent("fn"); err != nil {
		return nil, err
	}
	name, err := p.expect(tkIdent)
	if err != nil {
		return nil, err
	}
	fnType, err := p.parseType()
	if err != nil {
		return nil, err
	}
	fn := NewFunction(name.text, fnType)
	p.fn = fn
	if _, err := p.expect(tkLBrace); err != nil {
		return nil, err
	}

	type pendingJump struct {
		insn       *Instruction
		targetName string
		which      int // 0 = Target, 1 = TrueTarget, 2 = FalseTarget
	}
	var pending []pendingJump

	for p.tok.kind == tkIdent {
		label := p.tok.text
		p.advance()
		if _, err := p.expect(tkColon); err != nil {
			return nil, err
		}
		block := fn.NewBlock(label)
		// the textual form prints each block's assigned name already,
		// so overwrite the auto-generated one to keep names stable.
		block.Name = label
		p.blocks[label] = block

		for p.tok.kind == tkIdent || p.tok.kind == tkPercent {
			insn, jumps, err := p.parseInstruction(block)
			if err != nil {
				return nil, err
			}
			block.Append(insn)
			for _, j := range jumps {
				pending = append(pending, pendingJump{insn, j.name, j.which})
			}
		}
	}
	if _, err := p.expect(tkRBrace); err != nil {
		return nil, err
	}

	for _, pj := range pending {
		target, ok := p.blocks[pj.targetName]
		if !ok {
			return nil, fmt.Errorf("ir: undefined block %q", pj.targetName)
		}
		switch pj.which {
		case 0:
			pj.insn.Target = target
		case 1:
			pj.insn.TrueTarget = target
		case 2:
			pj.insn.FalseTarget = target
		}
	}
	fn.LinkPredecessors()
	return fn, nil
}

type jumpRef struct {
	name  string
	which int
}

func (p *parser) parseInstruction(block *Block) (*Instruction, []jumpRef, error) {
	var result *value.Value
	var resultName string
	if p.tok.kind == tkPercent {
		p.advance()
		id, err := p.expect(tkNumber)
		if err != nil {
			return nil, nil, err
		}
		resultName = "%" + id.text
		if _, err := p.expect(tkEquals); err != nil {
			return nil, nil, err
		}
	}

	op, err := p.expect(tkIdent)
	if err != nil {
		return nil, nil, err
	}

	insn := &Instruction{}
	var jumps []jumpRef

	switch op.text {
	case "alloca":
		elemType, err := p.parseType()
		if err != nil {
			return nil, nil, err
		}
		insn.Op = OpAlloca
		result = value.NewValue(p.fn.NewValueID(), value.KAlloca, p.u.Ptr(elemType))
	case "load":
		addr, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}
		elem, ok := addr.Type.Deref()
		if !ok {
			return nil, nil, fmt.Errorf("ir: load operand %v is not a pointer", addr)
		}
		insn.Op = OpLoad
		insn.Args = []*value.Value{addr}
		result = value.NewValue(p.fn.NewValueID(), value.KFromInstruction, elem)
	case "store":
		dst, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}
		if _, err := p.expect(tkComma); err != nil {
			return nil, nil, err
		}
		src, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}
		insn.Op = OpStore
		insn.Args = []*value.Value{dst, src}
	case "copy":
		src, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}
		insn.Op = OpCopy
		insn.Args = []*value.Value{src}
		result = value.NewValue(p.fn.NewValueID(), value.KFromInstruction, src.Type)
	case "return":
		insn.Op = OpReturn
		if p.tok.kind == tkPercent || p.tok.kind == tkAt || p.tok.kind == tkNumber || p.tok.kind == tkIdent {
			v, err := p.parseValue()
			if err != nil {
				return nil, nil, err
			}
			insn.Args = []*value.Value{v}
		}
	case "jump":
		target, err := p.expect(tkIdent)
		if err != nil {
			return nil, nil, err
		}
		insn.Op = OpJump
		jumps = append(jumps, jumpRef{target.text, 0})
	case "branch":
		cond, err := p.parseValue()
		if err != nil {
			return nil, nil, err
		}
		if _, err := p.expect(tkComma); err != nil {
			return nil, nil, err
		}
		tTrue, err := p.expect(tkIdent)
		if err != nil {
			return nil, nil, err
		}
		if _, err := p.expect(tkComma); err != nil {
			return nil, nil, err
		}
		tFalse, err := p.expect(tkIdent)
		if err != nil {
			return nil, nil, err
		}
		insn.Op = OpBranch
		insn.Args = []*value.Value{cond}
		jumps = append(jumps, jumpRef{tTrue.text, 1}, jumpRef{tFalse.text, 2})
	default:
		bop, isBin := binOpNames[op.text]
		cop, isCmp := cmpOpPrefix(op.text)
		switch {
		case isBin:
			lhs, err := p.parseValue()
			if err != nil {
				return nil, nil, err
			}
			if _, err := p.expect(tkComma); err != nil {
				return nil, nil, err
			}
			rhs, err := p.parseValue()
			if err != nil {
				return nil, nil, err
			}
			insn.Op = OpBinop
			insn.BinOp = bop
			insn.Args = []*value.Value{lhs, rhs}
			result = value.NewValue(p.fn.NewValueID(), value.KFromInstruction, lhs.Type)
		case isCmp:
			lhs, err := p.parseValue()
			if err != nil {
				return nil, nil, err
			}
			if _, err := p.expect(tkComma); err != nil {
				return nil, nil, err
			}
			rhs, err := p.parseValue()
			if err != nil {
				return nil, nil, err
			}
			insn.Op = OpCompare
			insn.CmpOp = cop
			insn.Args = []*value.Value{lhs, rhs}
			result = value.NewValue(p.fn.NewValueID(), value.KFromInstruction, p.u.Primitive(types.I1))
		default:
			return nil, nil, fmt.Errorf("ir: unsupported instruction opcode %q in textual input", op.text)
		}
	}

	if result != nil {
		if resultName == "" {
			return nil, nil, fmt.Errorf("ir: instruction %q produced a result with no destination", op.text)
		}
		p.values[resultName] = result
		insn.Result = result
	}
	return insn, jumps, nil
}

var binOpNames = map[string]BinOp{
	"add": BinAdd, "sub": BinSub, "mul": BinMul, "div": BinDiv, "mod": BinMod,
	"udiv": BinUDiv, "umod": BinUMod,
	"and": BinAnd, "or": BinOr, "xor": BinXor, "shl": BinShl, "shr": BinShr,
}

func cmpOpPrefix(text string) (CmpOp, bool) {
	names := map[string]CmpOp{
		"compare.eq": CmpEQ, "compare.ne": CmpNE, "compare.lt": CmpLT,
		"compare.le": CmpLE, "compare.gt": CmpGT, "compare.ge": CmpGE,
	}
	c, ok := names[text]
	return c, ok
}

func (p *parser) parseValue() (*value.Value, error) {
	switch p.tok.kind {
	case tkPercent:
		p.advance()
		id, err := p.expect(tkNumber)
		if err != nil {
			return nil, err
		}
		name := "%" + id.text
		v, ok := p.values[name]
		if !ok {
			return nil, fmt.Errorf("ir: use of undefined value %s before its definition", name)
		}
		return v, nil
	case tkAt:
		p.advance()
		name, err := p.expect(tkIdent)
		if err != nil {
			return nil, err
		}
		v := value.NewValue(p.fn.NewValueID(), value.KGlobal, p.u.Ptr(p.u.Void()))
		v.Name = name.text
		return v, nil
	case tkNumber:
		lit, err := p.expect(tkNumber)
		if err != nil {
			return nil, err
		}
		n, convErr := strconv.ParseInt(lit.text, 10, 64)
		if convErr != nil {
			f, ferr := strconv.ParseFloat(lit.text, 64)
			if ferr != nil {
				return nil, fmt.Errorf("ir: malformed numeric literal %q", lit.text)
			}
			return value.FloatLit(p.fn.NewValueID(), p.u.Primitive(types.F8), f), nil
		}
		return value.Literal(p.fn.NewValueID(), p.u.Primitive(types.I4), n), nil
	case tkIdent:
		if len(p.tok.text) > 4 && p.tok.text[:4] == "arg." {
			argName := p.tok.text[4:]
			p.advance()
			for _, a := range p.fn.Args {
				if a.Name == argName {
					return a, nil
				}
			}
			return nil, fmt.Errorf("ir: reference to undeclared argument %q", argName)
		}
	}
	return nil, fmt.Errorf("ir: expected a value, got %q", p.tok.text)
}

func (p *parser) parseType() (*types.Type, error) {
	switch {
	case p.tok.kind == tkIdent && p.tok.text == "void":
		p.advance()
		return p.u.Void(), nil
	case p.tok.kind == tkIdent:
		prims := map[string]types.Primitive{
			"i1": types.I1, "i2": types.I2, "i4": types.I4, "i8": types.I8,
			"f4": types.F4, "f8": types.F8,
		}
		if prim, ok := prims[p.tok.text]; ok {
			p.advance()
			return p.u.Primitive(prim), nil
		}
	case p.tok.kind == tkLParen:
		p.advance()
		var params []*types.Type
		for p.tok.kind != tkRParen {
			pt, err := p.parseType()
			if err != nil {
				return nil, err
			}
			params = append(params, pt)
			if p.tok.kind == tkComma {
				p.advance()
			}
		}
		p.advance() // )
		if _, err := p.expectArrow(); err != nil {
			return nil, err
		}
		ret, err := p.parseType()
		if err != nil {
			return nil, err
		}
		return p.u.Func(ret, params, false), nil
	}
	return nil, fmt.Errorf("ir: unrecognized type syntax at %q", p.tok.text)
}

func (p *parser) expectArrow() (token, error) {
	return p.expect(tkArrow)
}
