// Package model implements the Boolean network model (C3): an ordered list
// of nodes, their constant/variable tables, and the initial-state
// distribution. A Model is immutable once built.
package model

import (
	"maboss/internal/expr"
	"maboss/internal/mabosserr"
)

const (
	MaxNodes       = 256
	MaxObservables = 20
)

// Node is one Boolean-network node: a name, its logical update formula, its
// up-rate and down-rate expressions, and whether it is hidden from
// observable statistics. Immutable after construction.
type Node struct {
	Name       string
	Logic      expr.Expr
	RateUp     expr.Expr
	RateDown   expr.Expr
	IsInternal bool
}

// IstateEntry is one weighted entry of a node's initial-state mixture,
// e.g. "A.istate = 0.3 [1], 0.7 [0]".
type IstateEntry struct {
	Probability float64
	Bit         int
}

// Model is the immutable, fully-resolved Boolean network: ordered nodes
// (their index is their bit position), named constants and variables, and
// the initial-state distribution.
type Model struct {
	nodes        []Node
	index        map[string]int
	Constants    map[string]float64
	Variables    map[string]float64
	Istates      map[string][]IstateEntry
	Distribution []InitialStateEntry
}

// InitialStateEntry is one entry of the model-wide initial-state
// distribution: a full bit pattern and its probability weight.
type InitialStateEntry struct {
	Probability float64
	Bits        []int // indices set in this pattern
}

// New builds a Model from an ordered node list and the constant/variable
// tables, enforcing the node-count and observable-count caps. It returns a
// ConfigError rather than proceeding when either cap is violated, matching
// original_source/src/main.cpp's early check.
func New(nodes []Node, constants, variables map[string]float64, istates map[string][]IstateEntry) (*Model, error) {
	if len(nodes) > MaxNodes {
		return nil, mabosserr.NewConfigError("model has %d nodes, maximum is %d", len(nodes), MaxNodes)
	}

	observables := 0
	index := make(map[string]int, len(nodes))
	for i, n := range nodes {
		if _, dup := index[n.Name]; dup {
			return nil, mabosserr.NewConfigError("duplicate node name %q", n.Name)
		}
		index[n.Name] = i
		if !n.IsInternal {
			observables++
		}
	}
	if observables > MaxObservables {
		return nil, mabosserr.NewConfigError("model has %d observable nodes, maximum is %d", observables, MaxObservables)
	}

	m := &Model{
		nodes:     nodes,
		index:     index,
		Constants: constants,
		Variables: variables,
		Istates:   istates,
	}
	return m, nil
}

// Nodes returns the ordered node list. The slice must not be mutated.
func (m *Model) Nodes() []Node { return m.nodes }

// NodeCount returns N, the number of nodes in the model.
func (m *Model) NodeCount() int { return len(m.nodes) }

// NodeIndex implements expr.NodeContext: looks up a node's bit index by
// name.
func (m *Model) NodeIndex(name string) (int, bool) {
	idx, ok := m.index[name]
	return idx, ok
}

// Node looks up a node by name.
func (m *Model) Node(name string) (*Node, bool) {
	idx, ok := m.index[name]
	if !ok {
		return nil, false
	}
	return &m.nodes[idx], true
}

// Attr implements expr.NodeContext: resolves an alias ("@rate_up",
// "@rate_down", "@logic" -> attrName without the leading '@') against the
// named node's own attribute expressions.
func (m *Model) Attr(node, attrName string) (expr.Expr, bool) {
	idx, ok := m.index[node]
	if !ok {
		return nil, false
	}
	n := &m.nodes[idx]
	switch attrName {
	case "logic":
		return n.Logic, true
	case "rate_up":
		return n.RateUp, true
	case "rate_down":
		return n.RateDown, true
	default:
		return nil, false
	}
}

// Env adapts the model's constant/variable tables to expr.Env.
func (m *Model) Env() expr.Env {
	return expr.MapEnv{Constants: m.Constants, Variables: m.Variables}
}

// NonInternalsMask returns a state-shaped bit mask with 1 at each
// observable (non-internal) node's index.
func (m *Model) NonInternalsMask() []uint32 {
	words := wordsFor(len(m.nodes))
	mask := make([]uint32, words)
	for i, n := range m.nodes {
		if !n.IsInternal {
			mask[i/32] |= 1 << uint(i%32)
		}
	}
	return mask
}

// ObservableCount returns the number of non-internal nodes.
func (m *Model) ObservableCount() int {
	count := 0
	for _, n := range m.nodes {
		if !n.IsInternal {
			count++
		}
	}
	return count
}

func wordsFor(n int) int {
	if n == 0 {
		return 0
	}
	return (n + 31) / 32
}
