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

import "fmt"

// DumpTokens runs the lexer alone over src and renders each token as
// "kind(text)", one per line, backing cmd/backendc's --dump-tokens flag
// without exposing the lexer type itself outside this package.
func DumpTokens(src string) []string {
	lex := newLexer(src)
	var out []string
	for {
		tok := lex.next()
		out = append(out, fmt.Sprintf("%s(%s)", tok.kind.String(), tok.text))
		if tok.kind == tkEOF {
			break
		}
	}
	return out
}

func (k tokKind) String() string {
	switch k {
	case tkEOF:
		return "eof"
	case tkIdent:
		return "ident"
	case tkNumber:
		return "number"
	case tkString:
		return "string"
	case tkPercent:
		return "percent"
	case tkAt:
		return "at"
	case tkColon:
		return "colon"
	case tkComma:
		return "comma"
	case tkLParen:
		return "lparen"
	case tkRParen:
		return "rparen"
	case tkLBrace:
		return "lbrace"
	case tkRBrace:
		return "rbrace"
	case tkArrow:
		return "arrow"
	case tkEquals:
		return "equals"
	case tkDot:
		return "dot"
	}
	panic("unreachable token kind")
}
