package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"maboss/internal/kernel"
)

// FinalStates is the final-state histogram accumulator: a mapping from the
// observable-masked, compacted state pattern to the count of samples
// absorbed into it.
type FinalStates struct {
	mask            []uint32
	nodeCount       int
	observableCount int
	sampleCount     int

	project func(states [][]uint32, mask []uint32) []uint32

	counts        map[uint32]int
	prevAlive     []bool
	absorbedCount int

	entries []finalStateEntry
}

type finalStateEntry struct {
	key         uint32
	probability float64
}

// NewFinalStates builds the accumulator. project is the kernel's
// FinalStates hook, which compacts a batch of states down through mask into
// dense map keys; nodeCount is the model's total node count; observableCount
// is the number of set bits in mask.
func NewFinalStates(project func(states [][]uint32, mask []uint32) []uint32, mask []uint32, nodeCount, observableCount, sampleCount int) *FinalStates {
	return &FinalStates{
		mask:            mask,
		nodeCount:       nodeCount,
		observableCount: observableCount,
		sampleCount:     sampleCount,
		project:         project,
		counts:          make(map[uint32]int),
	}
}

func (f *FinalStates) ProcessBatch(trajectories [][]kernel.Transition, states [][]uint32, alive []bool, batchIndex int) {
	if f.prevAlive == nil {
		f.prevAlive = make([]bool, len(alive))
		for i := range f.prevAlive {
			f.prevAlive[i] = true
		}
	}

	var absorbed [][]uint32
	for i, a := range alive {
		if f.prevAlive[i] && !a {
			absorbed = append(absorbed, states[i])
		}
		f.prevAlive[i] = a
	}
	if len(absorbed) > 0 {
		for _, key := range f.project(absorbed, f.mask) {
			f.counts[key]++
			f.absorbedCount++
		}
	}
}

// Finalize normalizes counts into probabilities and sorts descending.
// Summed probabilities equal 1 (within tolerance) when every sample
// absorbed within the batch cap, otherwise absorbed_count/sample_count.
func (f *FinalStates) Finalize() {
	f.entries = f.entries[:0]
	for key, count := range f.counts {
		f.entries = append(f.entries, finalStateEntry{
			key:         key,
			probability: float64(count) / float64(f.sampleCount),
		})
	}
	sort.Slice(f.entries, func(i, j int) bool {
		return f.entries[i].probability > f.entries[j].probability
	})
}

// TotalProbability returns the sum of all entry probabilities, exercised by
// P6.
func (f *FinalStates) TotalProbability() float64 {
	total := 0.0
	for _, e := range f.entries {
		total += e.probability
	}
	return total
}

// AbsorbedCount returns how many samples were absorbed across all batches
// processed so far.
func (f *FinalStates) AbsorbedCount() int { return f.absorbedCount }

func (f *FinalStates) WriteCSV(w io.Writer, names []string) error {
	observable := observableNames(names, f.mask)
	cw := csv.NewWriter(w)
	header := append(append([]string{}, observable...), "probability")
	if err := cw.Write(header); err != nil {
		return err
	}
	for _, e := range f.entries {
		row := bitRow(e.key, len(observable))
		row = append(row, strconv.FormatFloat(e.probability, 'g', -1, 64))
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (f *FinalStates) Visualize(w io.Writer, names []string) {
	observable := observableNames(names, f.mask)
	fmt.Fprintln(w, "Final states:")
	for _, e := range f.entries {
		row := bitRow(e.key, len(observable))
		fmt.Fprintf(w, "  %v -> %.4f\n", row, e.probability)
	}
}

// observableNames selects the names of nodes whose mask bit is set, in
// ascending index order (the same order the kernel's projection packs bits
// in).
func observableNames(names []string, mask []uint32) []string {
	out, _ := observableNamesAndIndices(names, mask)
	return out
}

// observableNamesAndIndices is observableNames plus the original node index
// each selected name came from, for accumulators that keep a dense
// full-width counter array but only report the observable subset.
func observableNamesAndIndices(names []string, mask []uint32) ([]string, []int) {
	var outNames []string
	var outIndices []int
	for i, name := range names {
		if mask[i/32]&(1<<uint(i%32)) != 0 {
			outNames = append(outNames, name)
			outIndices = append(outIndices, i)
		}
	}
	return outNames, outIndices
}

func bitRow(key uint32, n int) []string {
	row := make([]string, n)
	for i := 0; i < n; i++ {
		if key&(1<<uint(i)) != 0 {
			row[i] = "1"
		} else {
			row[i] = "0"
		}
	}
	return row
}
