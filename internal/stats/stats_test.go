package stats

import (
	"bytes"
	"math"
	"testing"

	"maboss/internal/bnstate"
	"maboss/internal/kernel"
)

// testProjectFinalStates stands in for the kernel's FinalStates hook: it
// compacts a batch of states down through mask the same way
// bnstate.State.Compact does.
func testProjectFinalStates(nodeCount int) func(states [][]uint32, mask []uint32) []uint32 {
	return func(states [][]uint32, mask []uint32) []uint32 {
		maskState := bnstate.FromWords(nodeCount, mask)
		keys := make([]uint32, len(states))
		for i, s := range states {
			keys[i] = bnstate.FromWords(nodeCount, s).Compact(maskState)
		}
		return keys
	}
}

func TestFinalStatesProbabilityConservationAllAbsorbed(t *testing.T) {
	// P6: when every sample absorbs within the batch cap, probabilities
	// sum to 1.
	mask := []uint32{0b11}
	fs := NewFinalStates(testProjectFinalStates(2), mask, 2, 2, 4)

	states := [][]uint32{{0b00}, {0b01}, {0b10}, {0b11}}
	alive := []bool{false, false, false, false}
	fs.ProcessBatch(nil, states, alive, 0)
	fs.Finalize()

	if total := fs.TotalProbability(); math.Abs(total-1) > 1e-9 {
		t.Errorf("total probability = %v, want 1", total)
	}
	if fs.AbsorbedCount() != 4 {
		t.Errorf("absorbed count = %d, want 4", fs.AbsorbedCount())
	}
}

func TestFinalStatesProbabilityConservationPartial(t *testing.T) {
	mask := []uint32{0b1}
	fs := NewFinalStates(testProjectFinalStates(1), mask, 1, 1, 10)

	states := [][]uint32{{0}, {1}, {0}}
	alive := []bool{false, false, true} // only 2 of 10 samples absorbed
	fs.ProcessBatch(nil, states, alive, 0)
	fs.Finalize()

	want := 2.0 / 10.0
	if total := fs.TotalProbability(); math.Abs(total-want) > 1e-9 {
		t.Errorf("total probability = %v, want %v", total, want)
	}
}

func TestFinalStatesDoesNotDoubleCountAlreadyAbsorbed(t *testing.T) {
	mask := []uint32{0b1}
	fs := NewFinalStates(testProjectFinalStates(1), mask, 1, 1, 2)

	states := [][]uint32{{1}, {0}}
	fs.ProcessBatch(nil, states, []bool{false, true}, 0)
	// second batch: sample 0 stays not-alive (already counted), sample 1 absorbs.
	fs.ProcessBatch(nil, states, []bool{false, false}, 1)
	fs.Finalize()

	if fs.AbsorbedCount() != 2 {
		t.Fatalf("absorbed count = %d, want 2 (no double count)", fs.AbsorbedCount())
	}
}

func TestFixedStatesNormalization(t *testing.T) {
	mask := []uint32{0b11}
	fx := NewFixedStates(1, 2, 4, mask)

	states := [][]uint32{{0b01}, {0b01}, {0b10}, {0b00}}
	fx.ProcessBatch(nil, states, []bool{false, false, false, false}, 0)
	fx.Finalize()

	var buf bytes.Buffer
	if err := fx.WriteCSV(&buf, []string{"A", "B"}); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}
	if buf.Len() == 0 {
		t.Fatal("expected CSV output")
	}
	// A is set in 2 of 4 samples, B in 1 of 4.
	if got, want := buf.String(), "A,B\n0.5,0.25\n"; got != want {
		t.Errorf("CSV = %q, want %q", got, want)
	}
}

// testWindowOverlaps stands in for the kernel's WindowAverageSmall hook: it
// walks a trajectory's transitions and, for each, reports the per-window
// per-bit time overlap, extending the tail to maxTime when the sample
// absorbed before the run's end.
func testWindowOverlaps(traj []kernel.Transition, finalState []uint32, finalAlive bool, timeTick, maxTime float64) []kernel.WindowOverlap {
	var out []kernel.WindowOverlap
	for _, tr := range traj {
		out = append(out, testOverlapsInRange(tr.State, tr.EntryTime, tr.ExitTime, timeTick)...)
	}
	if !finalAlive && len(traj) > 0 {
		last := traj[len(traj)-1]
		if last.ExitTime < maxTime {
			out = append(out, testOverlapsInRange(finalState, last.ExitTime, maxTime, timeTick)...)
		}
	}
	return out
}

func testOverlapsInRange(state []uint32, tIn, tOut, timeTick float64) []kernel.WindowOverlap {
	if tOut <= tIn {
		return nil
	}
	wStart := int(math.Floor(tIn / timeTick))
	wEnd := int(math.Floor(tOut / timeTick))
	var out []kernel.WindowOverlap
	for w := wStart; w <= wEnd; w++ {
		lo := math.Max(tIn, float64(w)*timeTick)
		hi := math.Min(tOut, float64(w+1)*timeTick)
		if hi <= lo {
			continue
		}
		length := hi - lo
		for word, bits := range state {
			for b := 0; b < 32; b++ {
				if bits&(1<<uint(b)) != 0 {
					out = append(out, kernel.WindowOverlap{Window: w, Bit: word*32 + b, Length: length})
				}
			}
		}
	}
	return out
}

func TestWindowAverageBoundsAndSum(t *testing.T) {
	mask := []uint32{0b1}
	wa := NewWindowAverage(testWindowOverlaps, 1.0, 3.0, mask, 1, 2)

	traj1 := []kernel.Transition{
		{State: []uint32{0b1}, EntryTime: 0, ExitTime: 1.5},
		{State: []uint32{0b0}, EntryTime: 1.5, ExitTime: 3.0},
	}
	traj2 := []kernel.Transition{
		{State: []uint32{0b1}, EntryTime: 0, ExitTime: 3.0},
	}

	// Both samples absorb within this same batch: their recorded
	// trajectories already reach max_time, so no terminal tail is added.
	wa.ProcessBatch([][]kernel.Transition{traj1, traj2}, [][]uint32{{0b0}, {0b1}}, []bool{false, false}, 0)
	wa.Finalize()

	for w := 0; w < wa.windows; w++ {
		for n := 0; n < wa.nodeCount; n++ {
			v := wa.slots[w][n]
			if v < -1e-9 || v > 1+1e-9 {
				t.Errorf("window %d node %d = %v, out of [0,1]", w, n, v)
			}
		}
	}
}
