package expr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrSyntax         = errors.New("expr: syntax error")
	ErrType           = errors.New("expr: type mismatch")
	ErrUnknownField   = errors.New("expr: unknown field")
	ErrDivisionByZero = errors.New("expr: division by zero")
	ErrTooComplex     = errors.New("expr: expression too complex")
)

const (
	MaxSourceLength = 2048
	maxDepth        = 256
)

type node interface{}

type literalNode struct{ value any }

type fieldNode struct{ path []string }

type unaryNode struct {
	op      tokenKind
	operand node
}

type binaryNode struct {
	op          tokenKind
	left, right node
}

// Program is a parsed condition, safe for concurrent evaluation.
type Program struct {
	source string
	root   node
	fields []string
}

func (p *Program) String() string { return p.source }

// Fields returns the dotted field paths referenced by the program.
func (p *Program) Fields() []string {
	return append([]string(nil), p.fields...)
}

// Parse compiles src into a Program.
func Parse(src string) (*Program, error) {
	if strings.TrimSpace(src) == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrSyntax)
	}
	if len(src) > MaxSourceLength {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrTooComplex, len(src), MaxSourceLength)
	}
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens, seen: map[string]struct{}{}}
	root, err := p.parseOr(0)
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, fmt.Errorf("%w: unexpected %s at %d", ErrSyntax, tok.kind, tok.pos)
	}
	return &Program{source: src, root: root, fields: p.fields}, nil
}

// MustParse is Parse for conditions known at compile time.
func MustParse(src string) *Program {
	p, err := Parse(src)
	if err != nil {
		panic(err)
	}
	return p
}

type parser struct {
	tokens []token
	pos    int
	fields []string
	seen   map[string]struct{}
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) next() token {
	tok := p.tokens[p.pos]
	if tok.kind != tokEOF {
		p.pos++
	}
	return tok
}

func (p *parser) accept(kinds ...tokenKind) (token, bool) {
	tok := p.peek()
	for _, k := range kinds {
		if tok.kind == k {
			p.pos++
			return tok, true
		}
	}
	return tok, false
}

func (p *parser) guard(depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", ErrTooComplex, maxDepth)
	}
	return nil
}

func (p *parser) parseOr(depth int) (node, error) {
	if err := p.guard(depth); err != nil {
		return nil, err
	}
	left, err := p.parseAnd(depth + 1)
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokOr); !ok {
			return left, nil
		}
		right, err := p.parseAnd(depth + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokOr, left: left, right: right}
	}
}

func (p *parser) parseAnd(depth int) (node, error) {
	left, err := p.parseNot(depth + 1)
	if err != nil {
		return nil, err
	}
	for {
		if _, ok := p.accept(tokAnd); !ok {
			return left, nil
		}
		right, err := p.parseNot(depth + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tokAnd, left: left, right: right}
	}
}

func (p *parser) parseNot(depth int) (node, error) {
	if err := p.guard(depth); err != nil {
		return nil, err
	}
	if _, ok := p.accept(tokNot); ok {
		operand, err := p.parseNot(depth + 1)
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokNot, operand: operand}, nil
	}
	return p.parseComparison(depth + 1)
}

func (p *parser) parseComparison(depth int) (node, error) {
	left, err := p.parseSum(depth + 1)
	if err != nil {
		return nil, err
	}
	if tok, ok := p.accept(tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte); ok {
		right, err := p.parseSum(depth + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
		if next := p.peek(); isComparison(next.kind) {
			return nil, fmt.Errorf("%w: chained comparison at %d", ErrSyntax, next.pos)
		}
	}
	return left, nil
}

func (p *parser) parseSum(depth int) (node, error) {
	left, err := p.parseProduct(depth + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept(tokPlus, tokMinus)
		if !ok {
			return left, nil
		}
		right, err := p.parseProduct(depth + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

func (p *parser) parseProduct(depth int) (node, error) {
	left, err := p.parseUnary(depth + 1)
	if err != nil {
		return nil, err
	}
	for {
		tok, ok := p.accept(tokStar, tokSlash, tokPercent)
		if !ok {
			return left, nil
		}
		right, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		left = binaryNode{op: tok.kind, left: left, right: right}
	}
}

func (p *parser) parseUnary(depth int) (node, error) {
	if err := p.guard(depth); err != nil {
		return nil, err
	}
	if _, ok := p.accept(tokMinus); ok {
		operand, err := p.parseUnary(depth + 1)
		if err != nil {
			return nil, err
		}
		return unaryNode{op: tokMinus, operand: operand}, nil
	}
	return p.parsePrimary(depth + 1)
}

func (p *parser) parsePrimary(depth int) (node, error) {
	tok := p.next()
	switch tok.kind {
	case tokNumber:
		return literalNode{value: tok.num}, nil
	case tokString:
		return literalNode{value: tok.text}, nil
	case tokTrue:
		return literalNode{value: true}, nil
	case tokFalse:
		return literalNode{value: false}, nil
	case tokIdent:
		path := []string{tok.text}
		for {
			if _, ok := p.accept(tokDot); !ok {
				break
			}
			part := p.next()
			if part.kind != tokIdent {
				return nil, fmt.Errorf("%w: expected field name after '.' at %d", ErrSyntax, part.pos)
			}
			path = append(path, part.text)
		}
		name := strings.Join(path, ".")
		if _, ok := p.seen[name]; !ok {
			p.seen[name] = struct{}{}
			p.fields = append(p.fields, name)
		}
		return fieldNode{path: path}, nil
	case tokLParen:
		inner, err := p.parseOr(depth + 1)
		if err != nil {
			return nil, err
		}
		if closing := p.next(); closing.kind != tokRParen {
			return nil, fmt.Errorf("%w: expected ')' at %d", ErrSyntax, closing.pos)
		}
		return inner, nil
	}
	return nil, fmt.Errorf("%w: unexpected %s at %d", ErrSyntax, tok.kind, tok.pos)
}

func isComparison(k tokenKind) bool {
	switch k {
	case tokEq, tokNeq, tokLt, tokLte, tokGt, tokGte:
		return true
	}
	return false
}
