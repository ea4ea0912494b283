package bnparse

import (
	"strconv"

	"maboss/internal/config"
	"maboss/internal/expr"
	"maboss/internal/mabosserr"
)

// ParseConfig parses a run configuration source (the ".cfg" format) into a
// config.Config. Every right-hand side is a full expression, evaluated
// immediately against the constants and variables seen so far in the file
// (config values have no node identifiers to resolve, so expr.Evaluate,
// rather than the kernel's state-aware interpreter, is the right tool
// here).
//
// Recognized statement forms:
//
//	name = <expr>;                    // constant, or a recognized run-control name
//	$name = <expr>;                   // variable
//	NodeName.istate = p1 [b1], p2 [b2], ...;
//	NodeName.is_internal = TRUE/FALSE;
func ParseConfig(src string) (*config.Config, error) {
	p, err := newParser(src)
	if err != nil {
		return nil, err
	}

	cfg := &config.Config{
		Constants:  map[string]float64{},
		Variables:  map[string]float64{},
		Istates:    map[string][]config.IstateEntry{},
		IsInternal: map[string]bool{},
	}
	env := expr.MapEnv{Constants: cfg.Constants, Variables: cfg.Variables}

	for !p.atEnd() {
		if err := p.parseConfigStatement(cfg, env); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

func (p *parser) parseConfigStatement(cfg *config.Config, env expr.MapEnv) error {
	if p.match(tokVar) {
		name := p.toks[p.pos-1].lit
		if _, err := p.expect(tokEq); err != nil {
			return err
		}
		val, err := p.parseConfigValue(env)
		if err != nil {
			return err
		}
		cfg.Variables[name] = val
		return p.expectSemi()
	}

	nameTok, err := p.expect(tokIdent)
	if err != nil {
		return err
	}
	name := nameTok.lit

	if p.match(tokDot) {
		fieldTok, err := p.expect(tokIdent)
		if err != nil {
			return err
		}
		if _, err := p.expect(tokEq); err != nil {
			return err
		}
		switch fieldTok.lit {
		case "istate":
			entries, err := p.parseIstateMixture(env)
			if err != nil {
				return err
			}
			cfg.Istates[name] = entries
		case "is_internal":
			b, err := p.parseBoolLiteral()
			if err != nil {
				return err
			}
			cfg.IsInternal[name] = b
		default:
			return mabosserr.NewConfigError("%s: unknown field %q", name, fieldTok.lit)
		}
		return p.expectSemi()
	}

	if _, err := p.expect(tokEq); err != nil {
		return err
	}
	val, err := p.parseConfigValue(env)
	if err != nil {
		return err
	}

	switch name {
	case "max_time":
		cfg.MaxTime = val
	case "time_tick":
		cfg.TimeTick = val
	case "sample_count":
		cfg.SampleCount = int(val)
	case "discrete_time":
		cfg.DiscreteTime = val != 0
	default:
		cfg.Constants[name] = val
	}
	return p.expectSemi()
}

func (p *parser) parseConfigValue(env expr.MapEnv) (float64, error) {
	e, err := p.parseExpr()
	if err != nil {
		return 0, err
	}
	return expr.Evaluate(e, env), nil
}

func (p *parser) parseIstateMixture(env expr.MapEnv) ([]config.IstateEntry, error) {
	var entries []config.IstateEntry
	for {
		probExpr, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		prob := expr.Evaluate(probExpr, env)

		if _, err := p.expect(tokLBrack); err != nil {
			return nil, err
		}
		bitTok, err := p.expect(tokNumber)
		if err != nil {
			return nil, err
		}
		bit, err := strconv.Atoi(bitTok.lit)
		if err != nil {
			return nil, mabosserr.NewConfigError("invalid istate bit %q: %v", bitTok.lit, err)
		}
		if _, err := p.expect(tokRBrack); err != nil {
			return nil, err
		}

		entries = append(entries, config.IstateEntry{Probability: prob, Bit: bit})
		if !p.match(tokComma) {
			break
		}
	}
	return entries, nil
}

func (p *parser) expectSemi() error {
	_, err := p.expect(tokSemi)
	return err
}
