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
	"strings"
	"unicode"
	"unicode/utf8"
)

type tokenType int

const (
	tokEOF tokenType = iota
	tokDollar            // $
	tokIdent             // foo, bar_baz
	tokNumber            // 42, 3.14, -1 is unary minus + number
	tokString            // "hello" or 'hello'
	tokDot               // .
	tokComma             // ,
	tokLParen            // (
	tokRParen            // )
	tokLBracket          // [
	tokRBracket          // ]
	tokArrow             // =>
	tokPlus              // +
	tokMinus             // -
	tokStar              // *
	tokSlash             // /
	tokPercent           // %
	tokEq                // ==
	tokNeq               // !=
	tokGt                // >
	tokGte               // >=
	tokLt                // <
	tokLte               // <=
	tokAnd               // &&
	tokOr                // ||
	tokNot               // !
)

func (t tokenType) String() string {
	switch t {
	case tokEOF:
		return "end of expression"
	case tokDollar:
		return "'$'"
	case tokIdent:
		return "identifier"
	case tokNumber:
		return "number"
	case tokString:
		return "string"
	case tokDot:
		return "'.'"
	case tokComma:
		return "','"
	case tokLParen:
		return "'('"
	case tokRParen:
		return "')'"
	case tokLBracket:
		return "'['"
	case tokRBracket:
		return "']'"
	case tokArrow:
		return "'=>'"
	case tokPlus:
		return "'+'"
	case tokMinus:
		return "'-'"
	case tokStar:
		return "'*'"
	case tokSlash:
		return "'/'"
	case tokPercent:
		return "'%'"
	case tokEq:
		return "'=='"
	case tokNeq:
		return "'!='"
	case tokGt:
		return "'>'"
	case tokGte:
		return "'>='"
	case tokLt:
		return "'<'"
	case tokLte:
		return "'<='"
	case tokAnd:
		return "'&&'"
	case tokOr:
		return "'||'"
	case tokNot:
		return "'!'"
	default:
		return "token"
	}
}

type token struct {
	typ tokenType
	lit string
	pos int // byte offset in the source expression
}

// tokenize scans an expression into a flat token slice. Positions are byte
// offsets so syntax errors can point into the original text.
func tokenize(src string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
		case c == '$':
			toks = append(toks, token{tokDollar, "$", i})
			i++
		case c == '.':
			toks = append(toks, token{tokDot, ".", i})
			i++
		case c == ',':
			toks = append(toks, token{tokComma, ",", i})
			i++
		case c == '(':
			toks = append(toks, token{tokLParen, "(", i})
			i++
		case c == ')':
			toks = append(toks, token{tokRParen, ")", i})
			i++
		case c == '[':
			toks = append(toks, token{tokLBracket, "[", i})
			i++
		case c == ']':
			toks = append(toks, token{tokRBracket, "]", i})
			i++
		case c == '+':
			toks = append(toks, token{tokPlus, "+", i})
			i++
		case c == '-':
			toks = append(toks, token{tokMinus, "-", i})
			i++
		case c == '*':
			toks = append(toks, token{tokStar, "*", i})
			i++
		case c == '/':
			toks = append(toks, token{tokSlash, "/", i})
			i++
		case c == '%':
			toks = append(toks, token{tokPercent, "%", i})
			i++
		case c == '=':
			switch {
			case strings.HasPrefix(src[i:], "=>"):
				toks = append(toks, token{tokArrow, "=>", i})
				i += 2
			case strings.HasPrefix(src[i:], "=="):
				toks = append(toks, token{tokEq, "==", i})
				i += 2
			default:
				return nil, &SyntaxError{Kind: SyntaxUnexpectedToken, Pos: i, Expr: src,
					Message: "unexpected '=' (use '==' for equality)"}
			}
		case c == '!':
			if strings.HasPrefix(src[i:], "!=") {
				toks = append(toks, token{tokNeq, "!=", i})
				i += 2
			} else {
				toks = append(toks, token{tokNot, "!", i})
				i++
			}
		case c == '>':
			if strings.HasPrefix(src[i:], ">=") {
				toks = append(toks, token{tokGte, ">=", i})
				i += 2
			} else {
				toks = append(toks, token{tokGt, ">", i})
				i++
			}
		case c == '<':
			if strings.HasPrefix(src[i:], "<=") {
				toks = append(toks, token{tokLte, "<=", i})
				i += 2
			} else {
				toks = append(toks, token{tokLt, "<", i})
				i++
			}
		case c == '&':
			if strings.HasPrefix(src[i:], "&&") {
				toks = append(toks, token{tokAnd, "&&", i})
				i += 2
			} else {
				return nil, &SyntaxError{Kind: SyntaxUnexpectedToken, Pos: i, Expr: src,
					Message: "unexpected '&' (use '&&' for logical and)"}
			}
		case c == '|':
			if strings.HasPrefix(src[i:], "||") {
				toks = append(toks, token{tokOr, "||", i})
				i += 2
			} else {
				return nil, &SyntaxError{Kind: SyntaxUnexpectedToken, Pos: i, Expr: src,
					Message: "unexpected '|' (use '||' for logical or)"}
			}
		case c == '"' || c == '\'':
			lit, n, err := scanString(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokString, lit, i})
			i += n
		case c >= '0' && c <= '9':
			lit, n, err := scanNumber(src, i)
			if err != nil {
				return nil, err
			}
			toks = append(toks, token{tokNumber, lit, i})
			i += n
		case isIdentStart(rune(c)):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentPart(r) {
					break
				}
				i += size
			}
			toks = append(toks, token{tokIdent, src[start:i], start})
		default:
			return nil, &SyntaxError{Kind: SyntaxUnexpectedToken, Pos: i, Expr: src,
				Message: "unexpected character " + quoteByte(c)}
		}
	}
	toks = append(toks, token{tokEOF, "", len(src)})
	return toks, nil
}

func quoteByte(c byte) string {
	return "'" + string(rune(c)) + "'"
}

// scanString consumes a quoted string starting at src[start] and returns the
// unescaped value and the number of bytes consumed. Both single and double
// quotes are accepted; the closing quote must match the opener.
func scanString(src string, start int) (string, int, error) {
	quote := src[start]
	var b strings.Builder
	i := start + 1
	for i < len(src) {
		c := src[i]
		switch c {
		case quote:
			return b.String(), i - start + 1, nil
		case '\\':
			if i+1 >= len(src) {
				return "", 0, &SyntaxError{Kind: SyntaxUnterminated, Pos: start, Expr: src,
					Message: "unterminated string"}
			}
			i++
			switch src[i] {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\':
				b.WriteByte('\\')
			case '\'':
				b.WriteByte('\'')
			case '"':
				b.WriteByte('"')
			default:
				return "", 0, &SyntaxError{Kind: SyntaxUnexpectedToken, Pos: i, Expr: src,
					Message: "unknown escape sequence '\\" + string(src[i]) + "'"}
			}
			i++
		default:
			b.WriteByte(c)
			i++
		}
	}
	return "", 0, &SyntaxError{Kind: SyntaxUnterminated, Pos: start, Expr: src,
		Message: "unterminated string"}
}

// scanNumber consumes an integer or decimal literal starting at src[start].
func scanNumber(src string, start int) (string, int, error) {
	i := start
	for i < len(src) && src[i] >= '0' && src[i] <= '9' {
		i++
	}
	if i < len(src) && src[i] == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9' {
		i++
		for i < len(src) && src[i] >= '0' && src[i] <= '9' {
			i++
		}
	} else if i < len(src) && src[i] == '.' {
		// "1." with no fractional digits; only valid when followed by an
		// identifier (method call on a number is still a syntax error later,
		// but the number itself must not swallow the dot).
		if i+1 >= len(src) || !isIdentStart(rune(src[i+1])) {
			return "", 0, &SyntaxError{Kind: SyntaxBadNumber, Pos: start, Expr: src,
				Message: "malformed number " + src[start:i+1]}
		}
	}
	return src[start:i], i - start, nil
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}

func isIdentPart(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
