package bnparse

import (
	"maboss/internal/mabosserr"
	"maboss/internal/model"
)

// ParseNetwork parses a network definition source (the ".bnd" format) into
// an ordered node list. Node order fixes bit index: the first node
// declared occupies bit 0.
//
// Grammar, one node per block:
//
//	NodeName {
//	  logic = <expr>;
//	  rate_up = <expr>;
//	  rate_down = <expr>;
//	}
func ParseNetwork(src string) ([]model.Node, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	var nodes []model.Node
	for !p.atEnd() {
		n, err := p.parseNodeBlock()
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func (p *parser) parseNodeBlock() (model.Node, error) {
	nameTok, err := p.expect(tokIdent)
	if err != nil {
		return model.Node{}, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return model.Node{}, err
	}

	n := model.Node{Name: nameTok.lit}
	seen := map[string]bool{}
	for !p.check(tokRBrace) {
		fieldTok, err := p.expect(tokIdent)
		if err != nil {
			return model.Node{}, err
		}
		if _, err := p.expect(tokEq); err != nil {
			return model.Node{}, err
		}

		switch fieldTok.lit {
		case "logic":
			n.Logic, err = p.parseExpr()
		case "rate_up":
			n.RateUp, err = p.parseExpr()
		case "rate_down":
			n.RateDown, err = p.parseExpr()
		case "is_internal":
			n.IsInternal, err = p.parseBoolLiteral()
		default:
			return model.Node{}, mabosserr.NewConfigError("node %q: unknown field %q", n.Name, fieldTok.lit)
		}
		if err != nil {
			return model.Node{}, err
		}
		seen[fieldTok.lit] = true

		if _, err := p.expect(tokSemi); err != nil {
			return model.Node{}, err
		}
	}
	if _, err := p.expect(tokRBrace); err != nil {
		return model.Node{}, err
	}

	for _, required := range []string{"logic", "rate_up", "rate_down"} {
		if !seen[required] {
			return model.Node{}, mabosserr.NewConfigError("node %q: missing %q", n.Name, required)
		}
	}
	return n, nil
}

func (p *parser) parseBoolLiteral() (bool, error) {
	t, err := p.expect(tokIdent)
	if err != nil {
		return false, err
	}
	switch t.lit {
	case "TRUE", "true":
		return true, nil
	case "FALSE", "false":
		return false, nil
	default:
		return false, mabosserr.NewConfigError("expected TRUE/FALSE, got %q", t.lit)
	}
}
