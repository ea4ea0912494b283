package expr

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NodeContext is the lookup the emitter needs against the model: the bit
// index of a node by name, and, for alias resolution, the expression bound
// to a named attribute of a given node.
type NodeContext interface {
	NodeIndex(name string) (int, bool)
	Attr(node, attrName string) (Expr, bool)
}

// Emit writes e as a textual kernel source snippet, evaluated in the context
// of currentNode (the node whose logic/rate expression is being lowered;
// used to resolve aliases like @rate_up against that node's own attributes).
func Emit(e Expr, ctx NodeContext, currentNode string) string {
	var sb strings.Builder
	em := &emitter{ctx: ctx, node: currentNode, sb: &sb}
	e.Accept(em)
	return sb.String()
}

type emitter struct {
	ctx  NodeContext
	node string
	sb   *strings.Builder
}

func (e *emitter) VisitLiteral(x *Literal) interface{} {
	e.sb.WriteString(strconv.FormatFloat(x.Value, 'g', -1, 64))
	return nil
}

func (e *emitter) VisitIdent(x *Ident) interface{} {
	idx, ok := e.ctx.NodeIndex(x.Name)
	if !ok {
		panic(fmt.Sprintf("unknown node name: %s", x.Name))
	}
	word, bit := idx/32, idx%32
	fmt.Fprintf(e.sb, "((state[%d] & (1 << %d)) != 0)", word, bit)
	return nil
}

func (e *emitter) VisitVariable(x *Variable) interface{} {
	e.sb.WriteString(x.Name)
	return nil
}

func (e *emitter) VisitAlias(x *Alias) interface{} {
	attr, ok := e.ctx.Attr(e.node, x.Name)
	if !ok {
		panic(fmt.Sprintf("unknown attribute %q of node %q", x.Name, e.node))
	}
	attr.Accept(e)
	return nil
}

func (e *emitter) VisitUnary(x *Unary) interface{} {
	switch x.Op {
	case Plus:
		e.sb.WriteString("+")
	case Minus:
		e.sb.WriteString("-")
	case Not:
		e.sb.WriteString("!")
	default:
		panic(fmt.Sprintf("unknown operator %q", x.Op))
	}
	x.Expr.Accept(e)
	return nil
}

var binaryOpText = map[Op]string{
	Plus: " + ", Minus: " - ", Star: " * ", Slash: " / ",
	And: " && ", Or: " || ",
	Eq: " == ", Ne: " != ", Le: " <= ", Lt: " < ", Ge: " >= ", Gt: " > ",
}

func (e *emitter) VisitBinary(x *Binary) interface{} {
	text, ok := binaryOpText[x.Op]
	if !ok {
		panic(fmt.Sprintf("unknown operator %q", x.Op))
	}
	x.Left.Accept(e)
	e.sb.WriteString(text)
	x.Right.Accept(e)
	return nil
}

func (e *emitter) VisitTernary(x *Ternary) interface{} {
	x.Cond.Accept(e)
	e.sb.WriteString(" ? ")
	x.Then.Accept(e)
	e.sb.WriteString(" : ")
	x.Else.Accept(e)
	return nil
}

func (e *emitter) VisitParen(x *Paren) interface{} {
	e.sb.WriteString("(")
	x.Expr.Accept(e)
	e.sb.WriteString(")")
	return nil
}

func (e *emitter) VisitFlat(x *Flat) interface{} {
	if x.Op != And && x.Op != Or {
		e.emitFlatDefault(x)
		return nil
	}
	e.emitFlatBitmask(x)
	return nil
}

func (e *emitter) emitFlatDefault(x *Flat) {
	text := binaryOpText[x.Op]
	for i, sub := range x.Exprs {
		if i > 0 {
			e.sb.WriteString(text)
		}
		sub.Accept(e)
	}
}

// emitFlatBitmask implements the critical specialization of Section 4.1: a
// flat AND/OR over node identifiers and their negations compiles to a
// per-word bitmask test instead of the generic interleaved form.
func (e *emitter) emitFlatBitmask(x *Flat) {
	if !e.isBitmaskSuitable(x) {
		e.emitFlatDefault(x)
		return
	}

	var positive, negative []int
	for _, sub := range x.Exprs {
		switch v := sub.(type) {
		case *Ident:
			positive = append(positive, e.mustIndex(v.Name))
		case *Unary:
			negative = append(negative, e.mustIndex(v.Expr.(*Ident).Name))
		}
	}
	sort.Ints(positive)
	sort.Ints(negative)

	if hasIntersection(positive, negative) {
		if x.Op == And {
			e.sb.WriteString("false")
		} else {
			e.sb.WriteString("true")
		}
		return
	}

	byWord := map[int]struct{ and, xor uint32 }{}
	words := map[int]bool{}
	for _, idx := range positive {
		w, b := idx/32, uint(idx%32)
		m := byWord[w]
		m.and |= 1 << b
		byWord[w] = m
		words[w] = true
	}
	for _, idx := range negative {
		w, b := idx/32, uint(idx%32)
		m := byWord[w]
		m.and |= 1 << b
		m.xor |= 1 << b
		byWord[w] = m
		words[w] = true
	}

	wordList := make([]int, 0, len(words))
	for w := range words {
		wordList = append(wordList, w)
	}
	sort.Ints(wordList)

	e.sb.WriteString("(")
	for i, w := range wordList {
		if i > 0 {
			e.sb.WriteString(" | ")
		}
		m := byWord[w]
		if x.Op == And {
			// (state[w] & and_mask) ^ (and_mask ^ xor_mask)
			fmt.Fprintf(e.sb, "(state[%d] & %d) ^ %d", w, m.and, m.and^m.xor)
		} else {
			// (state[w] ^ xor_mask) & and_mask, explicitly parenthesized
			// around the XOR so the emitted expression never depends on the
			// target language's operator precedence.
			fmt.Fprintf(e.sb, "((state[%d] ^ %d) & %d)", w, m.xor, m.and)
		}
	}
	if x.Op == And {
		e.sb.WriteString(" == 0")
	} else {
		e.sb.WriteString(" != 0")
	}
	e.sb.WriteString(")")
}

func (e *emitter) isBitmaskSuitable(x *Flat) bool {
	for _, sub := range x.Exprs {
		switch v := sub.(type) {
		case *Ident:
			continue
		case *Unary:
			if v.Op == Not {
				if _, ok := v.Expr.(*Ident); ok {
					continue
				}
			}
		}
		return false
	}
	return true
}

func (e *emitter) mustIndex(name string) int {
	idx, ok := e.ctx.NodeIndex(name)
	if !ok {
		panic(fmt.Sprintf("unknown node name: %s", name))
	}
	return idx
}

func hasIntersection(a, b []int) bool {
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			return true
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return false
}
