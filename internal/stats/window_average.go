package stats

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"

	"maboss/internal/kernel"
)

// WindowAverage is the time-windowed activity accumulator: [0, max_time) is
// partitioned into K = ceil(max_time/time_tick) windows; for each window and
// observable node it accumulates the fraction of the population's time
// spent with that node set. Only the "small" variant is in scope (K times N
// times sample_count is assumed to fit a dense array).
type WindowAverage struct {
	timeTick    float64
	maxTime     float64
	mask        []uint32
	nodeCount   int
	sampleCount int
	windows     int

	overlaps func(traj []kernel.Transition, finalState []uint32, finalAlive bool, timeTick, maxTime float64) []kernel.WindowOverlap

	// slots[window][node] accumulates overlap length, before normalization.
	slots [][]float64

	prevAlive []bool
}

// NewWindowAverage builds the accumulator. overlaps is the kernel's
// WindowAverageSmall hook, which reports the per-window, per-bit overlap
// contributions of one sample's trajectory plus its absorbing tail.
func NewWindowAverage(overlaps func(traj []kernel.Transition, finalState []uint32, finalAlive bool, timeTick, maxTime float64) []kernel.WindowOverlap, timeTick, maxTime float64, mask []uint32, nodeCount, sampleCount int) *WindowAverage {
	windows := int(math.Ceil(maxTime / timeTick))
	slots := make([][]float64, windows)
	for i := range slots {
		slots[i] = make([]float64, nodeCount)
	}
	return &WindowAverage{
		timeTick:    timeTick,
		maxTime:     maxTime,
		mask:        mask,
		nodeCount:   nodeCount,
		sampleCount: sampleCount,
		windows:     windows,
		overlaps:    overlaps,
		slots:       slots,
	}
}

func (wa *WindowAverage) ProcessBatch(trajectories [][]kernel.Transition, states [][]uint32, alive []bool, batchIndex int) {
	if wa.prevAlive == nil {
		wa.prevAlive = make([]bool, len(alive))
		for i := range wa.prevAlive {
			wa.prevAlive[i] = true
		}
	}

	for i, traj := range trajectories {
		wasAlive := wa.prevAlive[i]
		if !wasAlive {
			continue
		}
		for _, ov := range wa.overlaps(traj, states[i], alive[i], wa.timeTick, wa.maxTime) {
			wa.addOverlap(ov)
		}
		wa.prevAlive[i] = alive[i]
	}
}

// addOverlap folds one kernel-reported overlap contribution into the
// accumulator, restricted to observable bits and in-range windows.
func (wa *WindowAverage) addOverlap(ov kernel.WindowOverlap) {
	if ov.Window < 0 || ov.Window >= wa.windows {
		return
	}
	if wa.mask[ov.Bit/32]&(1<<uint(ov.Bit%32)) == 0 {
		return
	}
	wa.slots[ov.Window][ov.Bit] += ov.Length
}

// Finalize normalizes each slot by time_tick * sample_count.
func (wa *WindowAverage) Finalize() {
	denom := wa.timeTick * float64(wa.sampleCount)
	for w := range wa.slots {
		for n := range wa.slots[w] {
			wa.slots[w][n] /= denom
		}
	}
}

func (wa *WindowAverage) WriteCSV(w io.Writer, names []string) error {
	observable, indices := observableNamesAndIndices(names, wa.mask)
	cw := csv.NewWriter(w)
	header := append([]string{"window"}, observable...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for win := 0; win < wa.windows; win++ {
		row := make([]string, 1+len(observable))
		row[0] = strconv.Itoa(win)
		for i, idx := range indices {
			row[1+i] = strconv.FormatFloat(wa.slots[win][idx], 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (wa *WindowAverage) Visualize(w io.Writer, names []string) {
	observable, indices := observableNamesAndIndices(names, wa.mask)
	fmt.Fprintln(w, "Window averages:")
	for win := 0; win < wa.windows; win++ {
		fmt.Fprintf(w, "  window %d:", win)
		for i, name := range observable {
			fmt.Fprintf(w, " %s=%.4f", name, wa.slots[win][indices[i]])
		}
		fmt.Fprintln(w)
	}
}
