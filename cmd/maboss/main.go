// cmd/maboss drives a single simulation run end to end: parse a network
// definition and a configuration, build the model and kernel, run the
// batched trajectory simulation, and report the accumulated statistics.
package main

import (
	"fmt"
	"log"
	"os"

	"maboss/internal/bnparse"
	"maboss/internal/bnstate"
	"maboss/internal/config"
	"maboss/internal/kernel"
	"maboss/internal/mabosserr"
	"maboss/internal/model"
	"maboss/internal/report"
	"maboss/internal/runner"
	"maboss/internal/stats"
)

const usage = "usage: maboss [-o prefix] bnd_file cfg_file"

func main() {
	prefix, bndPath, cfgPath, err := parseArgs(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(1)
	}

	if err := run(prefix, bndPath, cfgPath); err != nil {
		log.Fatalf("maboss: %v", err)
	}
}

func parseArgs(args []string) (prefix, bndPath, cfgPath string, err error) {
	var rest []string
	for i := 0; i < len(args); i++ {
		if args[i] == "-o" {
			if i+1 >= len(args) {
				return "", "", "", mabosserr.NewConfigError("-o requires a prefix argument")
			}
			prefix = args[i+1]
			i++
			continue
		}
		rest = append(rest, args[i])
	}
	if len(rest) != 2 {
		return "", "", "", mabosserr.NewConfigError("expected bnd_file and cfg_file, got %d positional argument(s)", len(rest))
	}
	return prefix, rest[0], rest[1], nil
}

func run(prefix, bndPath, cfgPath string) error {
	bndSrc, err := os.ReadFile(bndPath)
	if err != nil {
		return mabosserr.Wrap(err, mabosserr.KindIO, "reading %s", bndPath)
	}
	cfgSrc, err := os.ReadFile(cfgPath)
	if err != nil {
		return mabosserr.Wrap(err, mabosserr.KindIO, "reading %s", cfgPath)
	}

	nodes, err := bnparse.ParseNetwork(string(bndSrc))
	if err != nil {
		return err
	}
	cfg, err := bnparse.ParseConfig(string(cfgSrc))
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	applyConfigOverrides(nodes, cfg)

	m, err := model.New(nodes, cfg.Constants, cfg.Variables, toModelIstates(cfg.Istates))
	if err != nil {
		return err
	}
	m.Distribution = model.BuildDistribution(m.Nodes(), toModelIstates(cfg.Istates))

	k, err := kernel.Generate(m, cfg.DiscreteTime)
	if err != nil {
		return err
	}

	words := bnstate.Words(m.NodeCount())
	rc := runner.Config{
		SampleCount:          cfg.SampleCount,
		TrajectoryLenLimit:   defaultTrajectoryLenLimit,
		TrajectoryBatchLimit: defaultTrajectoryBatchLimit,
		MaxTime:              cfg.MaxTime,
	}
	r := runner.New(rc)

	mask := m.NonInternalsMask()
	composite := stats.NewComposite()
	composite.Add(stats.NewFinalStates(k.FinalStates, mask, m.NodeCount(), m.ObservableCount(), cfg.SampleCount))
	composite.Add(stats.NewFixedStates(words, m.NodeCount(), cfg.SampleCount, mask))
	composite.Add(stats.NewWindowAverage(k.WindowAverageSmall, cfg.TimeTick, cfg.MaxTime, mask, m.NodeCount(), cfg.SampleCount))

	seeds := make([]uint64, cfg.SampleCount)
	for i := range seeds {
		seeds[i] = uint64(i) + 1
	}

	log.Printf("estimated per-batch trajectory buffer: %s", report.EstimateTrajectoryBufferBytes(cfg.SampleCount, defaultTrajectoryLenLimit, words))

	runInfo := report.NewRun(cfg.SampleCount, m.NodeCount())
	if err := r.Run(composite, k, seeds); err != nil {
		return err
	}

	names := nodeNames(m.Nodes())

	if prefix != "" {
		return report.WriteCSV(runInfo, composite, prefix, names)
	}
	report.WriteStdout(os.Stdout, runInfo, composite, names)
	return nil
}

// applyConfigOverrides folds the configuration's is_internal overrides into
// the parsed node list before the model is built, since .bnd node bodies
// and .cfg is_internal lines both set the same flag.
func applyConfigOverrides(nodes []model.Node, cfg *config.Config) {
	for i := range nodes {
		if internal, ok := cfg.IsInternal[nodes[i].Name]; ok {
			nodes[i].IsInternal = internal
		}
	}
}

func toModelIstates(istates map[string][]config.IstateEntry) map[string][]model.IstateEntry {
	out := make(map[string][]model.IstateEntry, len(istates))
	for name, entries := range istates {
		converted := make([]model.IstateEntry, len(entries))
		for i, e := range entries {
			converted[i] = model.IstateEntry{Probability: e.Probability, Bit: e.Bit}
		}
		out[name] = converted
	}
	return out
}

func nodeNames(nodes []model.Node) []string {
	names := make([]string, len(nodes))
	for i, n := range nodes {
		names[i] = n.Name
	}
	return names
}

const (
	defaultTrajectoryLenLimit   = 10000
	defaultTrajectoryBatchLimit = 1000
)
