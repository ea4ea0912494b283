package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"maboss/internal/kernel"
)

// FixedStates is the per-observable-node probability accumulator: one 32-bit
// set-count counter per node bit, updated at batch boundaries only for
// just-absorbed samples.
//
// The original implementation monomorphizes this over word count 1..8
// (`fixed_states_stats<N>`, selected by `add_fixed_states_stats`'s switch in
// original_source/src/main.cpp); newFixedStatesStats reproduces that
// dispatch in Go, but every supported word count resolves to the same
// runtime-sized []uint32 rather than a monomorphized array type (other word
// counts panic), since Go generics over
// array length buy no zero-cost advantage here.
type FixedStates struct {
	words       int
	nodeCount   int
	sampleCount int
	mask        []uint32

	setCounts []uint32 // one counter per bit, dense, length nodeCount
	prevAlive []bool

	probabilities []float64 // filled in by Finalize, indexed like setCounts
}

// newFixedStatesStats mirrors add_fixed_states_stats's switch on word count;
// it exists to keep that dispatch point named and visible even though every
// case constructs the same underlying accumulator.
func newFixedStatesStats(words, nodeCount, sampleCount int, mask []uint32) *FixedStates {
	switch {
	case words >= 1 && words <= 8:
		return NewFixedStates(words, nodeCount, sampleCount, mask)
	default:
		panic(fmt.Sprintf("unsupported word count %d", words))
	}
}

func NewFixedStates(words, nodeCount, sampleCount int, mask []uint32) *FixedStates {
	return &FixedStates{
		words:       words,
		nodeCount:   nodeCount,
		sampleCount: sampleCount,
		mask:        mask,
		setCounts:   make([]uint32, nodeCount),
	}
}

func (f *FixedStates) ProcessBatch(trajectories [][]kernel.Transition, states [][]uint32, alive []bool, batchIndex int) {
	if f.prevAlive == nil {
		f.prevAlive = make([]bool, len(alive))
		for i := range f.prevAlive {
			f.prevAlive[i] = true
		}
	}

	for i, a := range alive {
		if f.prevAlive[i] && !a {
			s := states[i]
			for bit := 0; bit < f.nodeCount; bit++ {
				if s[bit/32]&(1<<uint(bit%32)) != 0 {
					f.setCounts[bit]++
				}
			}
		}
		f.prevAlive[i] = a
	}
}

func (f *FixedStates) Finalize() {
	f.probabilities = make([]float64, f.nodeCount)
	for i, count := range f.setCounts {
		f.probabilities[i] = float64(count) / float64(f.sampleCount)
	}
}

func (f *FixedStates) WriteCSV(w io.Writer, names []string) error {
	observable, indices := observableNamesAndIndices(names, f.mask)
	cw := csv.NewWriter(w)
	if err := cw.Write(observable); err != nil {
		return err
	}
	row := make([]string, len(observable))
	for i, idx := range indices {
		row[i] = strconv.FormatFloat(f.probabilities[idx], 'g', -1, 64)
	}
	if err := cw.Write(row); err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

func (f *FixedStates) Visualize(w io.Writer, names []string) {
	observable, indices := observableNamesAndIndices(names, f.mask)
	fmt.Fprintln(w, "Fixed-state probabilities:")
	for i, name := range observable {
		fmt.Fprintf(w, "  %s: %.4f\n", name, f.probabilities[indices[i]])
	}
}
