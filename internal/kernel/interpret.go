package kernel

import (
	"fmt"

	"maboss/internal/expr"
	"maboss/internal/model"
)

// bitEval is the in-memory interpreter alternative to JIT-compiling the
// generated kernel source: rather than emitting textual kernel code and
// compiling it, it gives node identifiers and aliases the runtime meaning
// the emitted bitmask text would have, evaluated directly against one
// sample's current state.
type bitEval struct {
	m           *model.Model
	state       []uint32
	currentNode string
}

// evalAgainstState evaluates e against state, resolving node identifiers as
// state-bit tests and aliases against currentNode's own attributes, exactly
// what the generated kernel source does when it runs.
func evalAgainstState(e expr.Expr, m *model.Model, state []uint32, currentNode string) float64 {
	return e.Accept(&bitEval{m: m, state: state, currentNode: currentNode}).(float64)
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func (b *bitEval) VisitLiteral(e *expr.Literal) interface{} { return e.Value }

func (b *bitEval) VisitIdent(e *expr.Ident) interface{} {
	idx, ok := b.m.NodeIndex(e.Name)
	if !ok {
		panic(fmt.Sprintf("unknown node name: %s", e.Name))
	}
	return boolToFloat(b.state[idx/32]&(1<<uint(idx%32)) != 0)
}

func (b *bitEval) VisitVariable(e *expr.Variable) interface{} {
	env := b.m.Env()
	if v, ok := env.Constant(e.Name); ok {
		return v
	}
	if v, ok := env.Variable(e.Name); ok {
		return v
	}
	panic(fmt.Sprintf("unbound variable %q", e.Name))
}

func (b *bitEval) VisitAlias(e *expr.Alias) interface{} {
	attr, ok := b.m.Attr(b.currentNode, e.Name)
	if !ok {
		panic(fmt.Sprintf("unknown attribute %q of node %q", e.Name, b.currentNode))
	}
	return attr.Accept(b)
}

func (b *bitEval) VisitUnary(e *expr.Unary) interface{} {
	x := e.Expr.Accept(b).(float64)
	switch e.Op {
	case expr.Plus:
		return x
	case expr.Minus:
		return -x
	case expr.Not:
		return boolToFloat(x == 0)
	default:
		panic(fmt.Sprintf("unknown operator %q", e.Op))
	}
}

func (b *bitEval) VisitBinary(e *expr.Binary) interface{} {
	l := e.Left.Accept(b).(float64)
	r := e.Right.Accept(b).(float64)
	switch e.Op {
	case expr.Plus:
		return l + r
	case expr.Minus:
		return l - r
	case expr.Star:
		return l * r
	case expr.Slash:
		return l / r
	case expr.And:
		return boolToFloat(l != 0 && r != 0)
	case expr.Or:
		return boolToFloat(l != 0 || r != 0)
	case expr.Eq:
		return boolToFloat(l == r)
	case expr.Ne:
		return boolToFloat(l != r)
	case expr.Le:
		return boolToFloat(l <= r)
	case expr.Lt:
		return boolToFloat(l < r)
	case expr.Ge:
		return boolToFloat(l >= r)
	case expr.Gt:
		return boolToFloat(l > r)
	default:
		panic(fmt.Sprintf("unknown operator %q", e.Op))
	}
}

func (b *bitEval) VisitTernary(e *expr.Ternary) interface{} {
	if e.Cond.Accept(b).(float64) != 0 {
		return e.Then.Accept(b)
	}
	return e.Else.Accept(b)
}

func (b *bitEval) VisitParen(e *expr.Paren) interface{} {
	return e.Expr.Accept(b)
}

func (b *bitEval) VisitFlat(e *expr.Flat) interface{} {
	switch e.Op {
	case expr.And:
		for _, sub := range e.Exprs {
			if sub.Accept(b).(float64) == 0 {
				return 0.0
			}
		}
		return 1.0
	case expr.Or:
		for _, sub := range e.Exprs {
			if sub.Accept(b).(float64) != 0 {
				return 1.0
			}
		}
		return 0.0
	default:
		v := e.Exprs[0].Accept(b).(float64)
		for _, sub := range e.Exprs[1:] {
			r := sub.Accept(b).(float64)
			switch e.Op {
			case expr.Plus:
				v += r
			case expr.Minus:
				v -= r
			case expr.Star:
				v *= r
			case expr.Slash:
				v /= r
			default:
				panic(fmt.Sprintf("unknown flat operator %q", e.Op))
			}
		}
		return v
	}
}
