// Package expr implements the closed condition language evaluated by
// dynamic badge rules. A condition is a boolean expression over named
// context fields: comparisons, boolean connectives, arithmetic and dotted
// field lookups. Nothing in the language can reach outside the context.
package expr

import (
	"fmt"
	"strconv"
	"strings"
)

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokNumber
	tokString
	tokIdent
	tokTrue
	tokFalse
	tokAnd
	tokOr
	tokNot
	tokEq
	tokNeq
	tokLt
	tokLte
	tokGt
	tokGte
	tokPlus
	tokMinus
	tokStar
	tokSlash
	tokPercent
	tokLParen
	tokRParen
	tokDot
)

var tokenNames = map[tokenKind]string{
	tokEOF: "end of input", tokNumber: "number", tokString: "string", tokIdent: "identifier",
	tokTrue: "true", tokFalse: "false", tokAnd: "&&", tokOr: "||", tokNot: "!",
	tokEq: "==", tokNeq: "!=", tokLt: "<", tokLte: "<=", tokGt: ">", tokGte: ">=",
	tokPlus: "+", tokMinus: "-", tokStar: "*", tokSlash: "/", tokPercent: "%",
	tokLParen: "(", tokRParen: ")", tokDot: ".",
}

func (k tokenKind) String() string { return tokenNames[k] }

type token struct {
	kind tokenKind
	text string
	num  float64
	pos  int
}

var keywords = map[string]tokenKind{
	"true":  tokTrue,
	"false": tokFalse,
	"and":   tokAnd,
	"or":    tokOr,
	"not":   tokNot,
}

func lex(src string) ([]token, error) {
	var tokens []token
	i := 0
	for i < len(src) {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r':
			i++
			continue
		case isDigit(c):
			start := i
			for i < len(src) && (isDigit(src[i]) || src[i] == '.' || src[i] == '_') {
				i++
			}
			text := src[start:i]
			n, err := strconv.ParseFloat(strings.ReplaceAll(text, "_", ""), 64)
			if err != nil {
				return nil, fmt.Errorf("%w: bad number %q at %d", ErrSyntax, text, start)
			}
			tokens = append(tokens, token{kind: tokNumber, text: text, num: n, pos: start})
			continue
		case c == '"' || c == '\'':
			start := i
			quote := c
			i++
			var sb strings.Builder
			closed := false
			for i < len(src) {
				if src[i] == '\\' && i+1 < len(src) {
					sb.WriteByte(src[i+1])
					i += 2
					continue
				}
				if src[i] == quote {
					closed = true
					i++
					break
				}
				sb.WriteByte(src[i])
				i++
			}
			if !closed {
				return nil, fmt.Errorf("%w: unterminated string at %d", ErrSyntax, start)
			}
			tokens = append(tokens, token{kind: tokString, text: sb.String(), pos: start})
			continue
		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			word := src[start:i]
			kind, ok := keywords[word]
			if !ok {
				kind = tokIdent
			}
			tokens = append(tokens, token{kind: kind, text: word, pos: start})
			continue
		}

		two := ""
		if i+1 < len(src) {
			two = src[i : i+2]
		}
		kind, width := tokEOF, 0
		switch two {
		case "&&":
			kind, width = tokAnd, 2
		case "||":
			kind, width = tokOr, 2
		case "==":
			kind, width = tokEq, 2
		case "!=":
			kind, width = tokNeq, 2
		case "<=":
			kind, width = tokLte, 2
		case ">=":
			kind, width = tokGte, 2
		}
		if width == 0 {
			width = 1
			switch c {
			case '!':
				kind = tokNot
			case '<':
				kind = tokLt
			case '>':
				kind = tokGt
			case '+':
				kind = tokPlus
			case '-':
				kind = tokMinus
			case '*':
				kind = tokStar
			case '/':
				kind = tokSlash
			case '%':
				kind = tokPercent
			case '(':
				kind = tokLParen
			case ')':
				kind = tokRParen
			case '.':
				kind = tokDot
			default:
				return nil, fmt.Errorf("%w: unexpected character %q at %d", ErrSyntax, c, i)
			}
		}
		tokens = append(tokens, token{kind: kind, text: src[i : i+width], pos: i})
		i += width
	}
	tokens = append(tokens, token{kind: tokEOF, pos: len(src)})
	return tokens, nil
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool { return isIdentStart(c) || isDigit(c) }
