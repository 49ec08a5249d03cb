// Copyright 2026 The Riff Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package expression

import (
	"strconv"
	"strings"
)

// DefaultMaxDepth bounds AST nesting so evaluation cannot blow the stack on
// adversarial input.
const DefaultMaxDepth = 10

// Parse parses an expression into an AST, enforcing DefaultMaxDepth.
func Parse(src string) (Expr, error) {
	return ParseWithDepth(src, DefaultMaxDepth)
}

// ParseWithDepth parses an expression with an explicit nesting limit.
func ParseWithDepth(src string, maxDepth int) (Expr, error) {
	src = strings.TrimSpace(src)
	if src == "" {
		return nil, syntaxErrf(SyntaxUnexpectedToken, 0, src, "empty expression")
	}

	// Bare paths like $step.field.0 dominate real workflows; skip the full
	// parser for them.
	if p, ok := parseBarePath(src); ok {
		return p, nil
	}

	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := &parser{src: src, toks: toks}
	expr, err := p.parseExpr()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.typ != tokEOF {
		return nil, syntaxErrf(SyntaxUnexpectedToken, tok.pos, src, "unexpected %s after expression", tok.typ)
	}
	if d := expr.depth(); d > maxDepth {
		return nil, syntaxErrf(SyntaxDepthExceeded, 0, src, "expression nesting depth %d exceeds maximum %d", d, maxDepth)
	}
	return expr, nil
}

// IsBarePath reports whether src is a plain $root.seg.seg reference with no
// operators, calls or whitespace.
func IsBarePath(src string) bool {
	_, ok := parseBarePath(strings.TrimSpace(src))
	return ok
}

// parseBarePath recognizes $root(.segment)* where every segment is an
// identifier or a decimal index. Anything else falls through to the parser.
func parseBarePath(src string) (*PathExpr, bool) {
	if len(src) < 2 || src[0] != '$' {
		return nil, false
	}
	parts := strings.Split(src[1:], ".")
	for _, part := range parts {
		if !isBareSegment(part) {
			return nil, false
		}
	}
	return &PathExpr{Root: parts[0], Segments: parts[1:]}, true
}

func isBareSegment(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r >= '0' && r <= '9' {
			continue
		}
		if isIdentStart(r) || (i > 0 && isIdentPart(r)) {
			continue
		}
		return false
	}
	return true
}

type parser struct {
	src  string
	toks []token
	pos  int
}

func (p *parser) peek() token { return p.toks[p.pos] }

func (p *parser) next() token {
	t := p.toks[p.pos]
	if t.typ != tokEOF {
		p.pos++
	}
	return t
}

func (p *parser) expect(typ tokenType) (token, error) {
	t := p.peek()
	if t.typ != typ {
		return t, syntaxErrf(SyntaxUnexpectedToken, t.pos, p.src, "expected %s, found %s", typ, t.typ)
	}
	return p.next(), nil
}

// parseExpr parses the lowest-precedence level: || chains.
func (p *parser) parseExpr() (Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokOr {
		p.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tokOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (Expr, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.peek().typ == tokAnd {
		p.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: tokAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (Expr, error) {
	left, err := p.parseRelational()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().typ
		if op != tokEq && op != tokNeq {
			return left, nil
		}
		p.next()
		right, err := p.parseRelational()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseRelational() (Expr, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().typ
		if op != tokGt && op != tokGte && op != tokLt && op != tokLte {
			return left, nil
		}
		p.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseAdditive() (Expr, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().typ
		if op != tokPlus && op != tokMinus {
			return left, nil
		}
		p.next()
		right, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseMultiplicative() (Expr, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for {
		op := p.peek().typ
		if op != tokStar && op != tokSlash && op != tokPercent {
			return left, nil
		}
		p.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &BinaryExpr{Op: op, Left: left, Right: right}
	}
}

func (p *parser) parseUnary() (Expr, error) {
	switch p.peek().typ {
	case tokNot:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tokNot, Operand: operand}, nil
	case tokMinus:
		p.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: tokMinus, Operand: operand}, nil
	default:
		return p.parsePostfix()
	}
}

// parsePostfix parses a primary followed by any chain of .member, .method(...)
// and [index] accesses.
func (p *parser) parsePostfix() (Expr, error) {
	expr, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.peek().typ {
		case tokDot:
			p.next()
			name, err := p.expect(tokIdent)
			if err != nil {
				return nil, err
			}
			if p.peek().typ == tokLParen {
				args, err := p.parseArgs()
				if err != nil {
					return nil, err
				}
				expr = &CallExpr{Recv: expr, Name: name.lit, Args: args}
			} else {
				expr = &MemberExpr{Recv: expr, Key: &LiteralExpr{Value: name.lit}}
			}
		case tokLBracket:
			p.next()
			key, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			if _, err := p.expect(tokRBracket); err != nil {
				return nil, err
			}
			expr = &MemberExpr{Recv: expr, Key: key}
		default:
			return expr, nil
		}
	}
}

func (p *parser) parsePrimary() (Expr, error) {
	tok := p.peek()
	switch tok.typ {
	case tokDollar:
		return p.parsePath()
	case tokNumber:
		p.next()
		n, err := strconv.ParseFloat(tok.lit, 64)
		if err != nil {
			return nil, syntaxErrf(SyntaxBadNumber, tok.pos, p.src, "malformed number %s", tok.lit)
		}
		return &LiteralExpr{Value: n}, nil
	case tokString:
		p.next()
		return &LiteralExpr{Value: tok.lit}, nil
	case tokIdent:
		switch tok.lit {
		case "true":
			p.next()
			return &LiteralExpr{Value: true}, nil
		case "false":
			p.next()
			return &LiteralExpr{Value: false}, nil
		case "null":
			p.next()
			return &LiteralExpr{Value: nil}, nil
		}
		p.next()
		switch p.peek().typ {
		case tokArrow:
			p.next()
			body, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			return &LambdaExpr{Param: tok.lit, Body: body}, nil
		case tokLParen:
			args, err := p.parseArgs()
			if err != nil {
				return nil, err
			}
			return &CallExpr{Name: tok.lit, Args: args}, nil
		default:
			return &VarExpr{Name: tok.lit}, nil
		}
	case tokLParen:
		p.next()
		expr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return expr, nil
	default:
		return nil, syntaxErrf(SyntaxUnexpectedToken, tok.pos, p.src, "unexpected %s", tok.typ)
	}
}

// parsePath parses $root followed by dot segments until the path chain gives
// way to a call, bracket or operator. Segments stay in the PathExpr; the
// postfix loop above never sees them because path dots are consumed here.
func (p *parser) parsePath() (Expr, error) {
	if _, err := p.expect(tokDollar); err != nil {
		return nil, err
	}
	root, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	path := &PathExpr{Root: root.lit}
	for p.peek().typ == tokDot {
		// A dot followed by ident( is a method call on the path value, which
		// belongs to the postfix chain, not the path.
		if p.toks[p.pos+1].typ == tokIdent && p.toks[p.pos+2].typ == tokLParen {
			break
		}
		p.next()
		seg := p.peek()
		if seg.typ != tokIdent && seg.typ != tokNumber {
			return nil, syntaxErrf(SyntaxUnexpectedToken, seg.pos, p.src, "expected path segment, found %s", seg.typ)
		}
		p.next()
		path.Segments = append(path.Segments, seg.lit)
	}
	return path, nil
}

func (p *parser) parseArgs() ([]Expr, error) {
	if _, err := p.expect(tokLParen); err != nil {
		return nil, err
	}
	var args []Expr
	if p.peek().typ == tokRParen {
		p.next()
		return args, nil
	}
	for {
		arg, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		args = append(args, arg)
		switch p.peek().typ {
		case tokComma:
			p.next()
		case tokRParen:
			p.next()
			return args, nil
		case tokEOF:
			return nil, syntaxErrf(SyntaxUnterminated, p.peek().pos, p.src, "unterminated argument list")
		default:
			tok := p.peek()
			return nil, syntaxErrf(SyntaxUnexpectedToken, tok.pos, p.src, "expected ',' or ')', found %s", tok.typ)
		}
	}
}
