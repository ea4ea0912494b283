package model

import (
	"testing"

	"maboss/internal/expr"
)

func toyNodes(n int, internalFrom int) []Node {
	nodes := make([]Node, n)
	for i := range nodes {
		nodes[i] = Node{
			Name:       string(rune('A' + i)),
			Logic:      &expr.Unary{Op: expr.Not, Expr: &expr.Ident{Name: string(rune('A' + i))}},
			RateUp:     &expr.Literal{Value: 1},
			RateDown:   &expr.Literal{Value: 1},
			IsInternal: i >= internalFrom,
		}
	}
	return nodes
}

func TestNewRejectsTooManyNodes(t *testing.T) {
	nodes := toyNodes(257, 257)
	if _, err := New(nodes, nil, nil, nil); err == nil {
		t.Fatal("expected ConfigError for >256 nodes")
	}
}

func TestNewRejectsTooManyObservables(t *testing.T) {
	nodes := toyNodes(21, 21) // all observable
	if _, err := New(nodes, nil, nil, nil); err == nil {
		t.Fatal("expected ConfigError for >20 observable nodes")
	}
}

func TestNewRejectsDuplicateNames(t *testing.T) {
	nodes := []Node{
		{Name: "A", Logic: &expr.Literal{Value: 0}, RateUp: &expr.Literal{Value: 1}, RateDown: &expr.Literal{Value: 1}},
		{Name: "A", Logic: &expr.Literal{Value: 0}, RateUp: &expr.Literal{Value: 1}, RateDown: &expr.Literal{Value: 1}},
	}
	if _, err := New(nodes, nil, nil, nil); err == nil {
		t.Fatal("expected ConfigError for duplicate node names")
	}
}

func TestNodeIndexAndLookup(t *testing.T) {
	nodes := toyNodes(3, 3)
	m, err := New(nodes, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	idx, ok := m.NodeIndex("B")
	if !ok || idx != 1 {
		t.Fatalf("NodeIndex(B) = %d,%v want 1,true", idx, ok)
	}
	if _, ok := m.NodeIndex("Z"); ok {
		t.Fatal("expected Z to be absent")
	}
}

func TestAttrResolvesNodeAttributes(t *testing.T) {
	nodes := toyNodes(1, 1)
	m, err := New(nodes, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rateUp, ok := m.Attr("A", "rate_up")
	if !ok {
		t.Fatal("expected rate_up attribute to resolve")
	}
	if lit, ok := rateUp.(*expr.Literal); !ok || lit.Value != 1 {
		t.Fatalf("rate_up = %#v, want literal 1", rateUp)
	}
	if _, ok := m.Attr("A", "nonsense"); ok {
		t.Fatal("expected unknown attribute to fail")
	}
}

func TestNonInternalsMask(t *testing.T) {
	nodes := toyNodes(40, 2) // only A, B observable
	m, err := New(nodes, nil, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	mask := m.NonInternalsMask()
	if mask[0] != 0b11 {
		t.Errorf("mask[0] = %b, want 0b11", mask[0])
	}
	for w := 1; w < len(mask); w++ {
		if mask[w] != 0 {
			t.Errorf("mask[%d] = %b, want 0", w, mask[w])
		}
	}
	if got := m.ObservableCount(); got != 2 {
		t.Errorf("ObservableCount = %d, want 2", got)
	}
}
