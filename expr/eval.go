package expr

import (
	"fmt"
	"math"
	"strings"
)

// Context maps field names to values. Nested maps are reached with dotted
// paths, so Context{"stats": map[string]any{"kills": 3}} answers stats.kills.
type Context map[string]any

// Eval runs the program against ctx and requires a boolean result.
func (p *Program) Eval(ctx Context) (bool, error) {
	v, err := eval(p.root, ctx)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("%w: condition produced %T, want bool", ErrType, v)
	}
	return b, nil
}

// Evaluate parses and runs src in one step.
func Evaluate(src string, ctx Context) (bool, error) {
	p, err := Parse(src)
	if err != nil {
		return false, err
	}
	return p.Eval(ctx)
}

func eval(n node, ctx Context) (any, error) {
	switch n := n.(type) {
	case literalNode:
		return n.value, nil
	case fieldNode:
		return lookup(ctx, n.path)
	case unaryNode:
		v, err := eval(n.operand, ctx)
		if err != nil {
			return nil, err
		}
		if n.op == tokNot {
			b, ok := v.(bool)
			if !ok {
				return nil, fmt.Errorf("%w: 'not' needs bool, got %T", ErrType, v)
			}
			return !b, nil
		}
		f, ok := toFloat(v)
		if !ok {
			return nil, fmt.Errorf("%w: unary '-' needs number, got %T", ErrType, v)
		}
		return -f, nil
	case binaryNode:
		return evalBinary(n, ctx)
	}
	return nil, fmt.Errorf("%w: unknown node %T", ErrSyntax, n)
}

func evalBinary(n binaryNode, ctx Context) (any, error) {
	left, err := eval(n.left, ctx)
	if err != nil {
		return nil, err
	}

	if n.op == tokAnd || n.op == tokOr {
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs bool operands, got %T", ErrType, n.op, left)
		}
		if n.op == tokAnd && !lb {
			return false, nil
		}
		if n.op == tokOr && lb {
			return true, nil
		}
		right, err := eval(n.right, ctx)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("%w: %s needs bool operands, got %T", ErrType, n.op, right)
		}
		return rb, nil
	}

	right, err := eval(n.right, ctx)
	if err != nil {
		return nil, err
	}

	if n.op == tokEq || n.op == tokNeq {
		eq, err := equal(left, right)
		if err != nil {
			return nil, err
		}
		if n.op == tokNeq {
			return !eq, nil
		}
		return eq, nil
	}

	if ls, ok := left.(string); ok && isComparison(n.op) {
		rs, ok := right.(string)
		if !ok {
			return nil, fmt.Errorf("%w: cannot compare string with %T", ErrType, right)
		}
		return compare(n.op, float64(strings.Compare(ls, rs)), 0), nil
	}

	lf, lok := toFloat(left)
	rf, rok := toFloat(right)
	if !lok || !rok {
		return nil, fmt.Errorf("%w: %s needs numbers, got %T and %T", ErrType, n.op, left, right)
	}
	switch n.op {
	case tokPlus:
		return lf + rf, nil
	case tokMinus:
		return lf - rf, nil
	case tokStar:
		return lf * rf, nil
	case tokSlash:
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return lf / rf, nil
	case tokPercent:
		if rf == 0 {
			return nil, ErrDivisionByZero
		}
		return math.Mod(lf, rf), nil
	}
	return compare(n.op, lf, rf), nil
}

func compare(op tokenKind, l, r float64) bool {
	switch op {
	case tokLt:
		return l < r
	case tokLte:
		return l <= r
	case tokGt:
		return l > r
	case tokGte:
		return l >= r
	}
	return false
}

func equal(l, r any) (bool, error) {
	if lf, ok := toFloat(l); ok {
		rf, ok := toFloat(r)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare number with %T", ErrType, r)
		}
		return lf == rf, nil
	}
	switch lv := l.(type) {
	case string:
		rv, ok := r.(string)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare string with %T", ErrType, r)
		}
		return lv == rv, nil
	case bool:
		rv, ok := r.(bool)
		if !ok {
			return false, fmt.Errorf("%w: cannot compare bool with %T", ErrType, r)
		}
		return lv == rv, nil
	}
	return false, fmt.Errorf("%w: cannot compare %T", ErrType, l)
}

func lookup(ctx Context, path []string) (any, error) {
	var cur any = map[string]any(ctx)
	for i, part := range path {
		var (
			v  any
			ok bool
		)
		switch m := cur.(type) {
		case map[string]any:
			v, ok = m[part]
		case Context:
			v, ok = m[part]
		case map[string]float64:
			v, ok = m[part]
		case map[string]int64:
			v, ok = m[part]
		case map[string]int:
			v, ok = m[part]
		default:
			return nil, fmt.Errorf("%w: %s is not an object", ErrType, strings.Join(path[:i], "."))
		}
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, strings.Join(path[:i+1], "."))
		}
		cur = v
	}
	if f, ok := toFloat(cur); ok {
		return f, nil
	}
	switch cur.(type) {
	case bool, string:
		return cur, nil
	}
	return nil, fmt.Errorf("%w: %s holds unsupported %T", ErrType, strings.Join(path, "."), cur)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}
