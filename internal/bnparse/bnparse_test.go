package bnparse

import (
	"testing"

	"maboss/internal/expr"
)

func TestParseNetworkSingleNode(t *testing.T) {
	src := `
A {
  logic = NOT A;
  rate_up = 1;
  rate_down = 1;
}
`
	nodes, err := ParseNetwork(src)
	if err != nil {
		t.Fatalf("ParseNetwork: %v", err)
	}
	if len(nodes) != 1 || nodes[0].Name != "A" {
		t.Fatalf("expected one node named A, got %+v", nodes)
	}
	if nodes[0].IsInternal {
		t.Fatalf("expected IsInternal to default to false")
	}
}

func TestParseNetworkTwoNodesWithAliasAndTernary(t *testing.T) {
	src := `
A {
  logic = B;
  rate_up = 1;
  rate_down = 1;
}
B {
  logic = A AND NOT B;
  rate_up = @logic ? 1 : 0;
  rate_down = 1;
  is_internal = TRUE;
}
`
	nodes, err := ParseNetwork(src)
	if err != nil {
		t.Fatalf("ParseNetwork: %v", err)
	}
	if len(nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(nodes))
	}
	if !nodes[1].IsInternal {
		t.Fatalf("expected B.is_internal == true")
	}
	ternary, ok := nodes[1].RateUp.(*expr.Ternary)
	if !ok {
		t.Fatalf("expected rate_up to parse as a ternary, got %T", nodes[1].RateUp)
	}
	if _, ok := ternary.Cond.(*expr.Alias); !ok {
		t.Fatalf("expected ternary condition to be an alias, got %T", ternary.Cond)
	}
}

func TestParseNetworkRejectsMissingField(t *testing.T) {
	src := `
A {
  logic = NOT A;
  rate_up = 1;
}
`
	if _, err := ParseNetwork(src); err == nil {
		t.Fatal("expected an error for a node missing rate_down")
	}
}

func TestParseConfigConstantsVariablesAndIstate(t *testing.T) {
	src := `
max_time = 10;
time_tick = 0.5;
sample_count = 1000;
discrete_time = 0;
$k = 2;
rate = $k * 3;
A.istate = 0.3 [0], 0.7 [1];
A.is_internal = TRUE;
`
	cfg, err := ParseConfig(src)
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.MaxTime != 10 || cfg.TimeTick != 0.5 || cfg.SampleCount != 1000 || cfg.DiscreteTime {
		t.Fatalf("unexpected run-control values: %+v", cfg)
	}
	if cfg.Variables["k"] != 2 {
		t.Fatalf("expected variable k == 2, got %v", cfg.Variables["k"])
	}
	if cfg.Constants["rate"] != 6 {
		t.Fatalf("expected constant rate == 6 (referencing $k), got %v", cfg.Constants["rate"])
	}
	entries := cfg.Istates["A"]
	if len(entries) != 2 || entries[0].Probability != 0.3 || entries[1].Bit != 1 {
		t.Fatalf("unexpected istate entries: %+v", entries)
	}
	if !cfg.IsInternal["A"] {
		t.Fatalf("expected A.is_internal == true")
	}
}

func TestParseConfigRejectsUnknownField(t *testing.T) {
	src := `A.bogus = 1;`
	if _, err := ParseConfig(src); err == nil {
		t.Fatal("expected an error for an unknown node field")
	}
}
