// Package kernel lowers a simplified Boolean-network model into a
// self-contained stochastic-simulation kernel (C4): the tuple of callable
// entry points the trajectory runner and statistics pipeline depend on.
package kernel

import (
	"math"

	"golang.org/x/exp/rand"

	"maboss/internal/bnstate"
	"maboss/internal/expr"
	"maboss/internal/mabosserr"
	"maboss/internal/model"
)

// Transition is one (state, entry_time, exit_time) record in a sample's
// trajectory.
type Transition struct {
	State     []uint32
	EntryTime float64
	ExitTime  float64
}

// SampleResult is the per-sample outcome of one simulate() call: the
// recorded transitions for this batch, whether the sample is still alive
// (has not yet absorbed or timed out for good), and its state/time after
// the call.
type SampleResult struct {
	Transitions []Transition
	Alive       bool
	State       []uint32
	Time        float64
}

// Kernel is the generated stochastic kernel: init_random, init_state, and
// simulate, plus the two metadata hooks statistics depend on. Rather than
// leaving final_states/window_average_small as opaque callables, each is a
// concrete Go closure with the same contract the original kernel_compiler
// hands its statistics accumulators.
type Kernel struct {
	Words        int
	NodeCount    int
	DiscreteTime bool

	InitRandom func(seeds []uint64) []*rand.Rand
	InitState  func(rngs []*rand.Rand) [][]uint32

	// Simulate advances each alive sample by up to trajectoryLenLimit
	// transitions or until absorption/timeout at maxTime. states/times are
	// updated in place; rngs carry each sample's RNG stream across batches.
	Simulate func(rngs []*rand.Rand, states [][]uint32, times []float64, alive []bool, trajectoryLenLimit int, maxTime float64) ([]SampleResult, error)

	// FinalStates projects a batch of current states down through mask,
	// as the final-states accumulator requires.
	FinalStates func(states [][]uint32, mask []uint32) []uint32

	// WindowAverageSmall reports, for one sample's trajectory plus its
	// eventual absorbing tail, which observable bits are set during the
	// overlap of each transition with the windows [0, max_time).
	WindowAverageSmall func(traj []Transition, finalState []uint32, finalAlive bool, timeTick, maxTime float64) []WindowOverlap
}

// WindowOverlap is one (window index, node bit, overlap length) contribution
// emitted for a single trajectory, consumed by the window-average
// accumulator.
type WindowOverlap struct {
	Window int
	Bit    int
	Length float64
}

// node is the kernel's resolved view of one model node: its name (for
// alias resolution against the model) plus its simplified logic/rate
// expressions.
type node struct {
	name                    string
	logic, rateUp, rateDown expr.Expr
}

// Generate simplifies m's node expressions and lowers them into a Kernel.
// discreteTime selects
// the fixed-tick variant: a unit time increment per step instead of an
// exponential draw, and a uniform pick among positive-rate nodes instead of
// a weighted one.
func Generate(m *model.Model, discreteTime bool) (*Kernel, error) {
	if m.NodeCount() == 0 {
		return nil, mabosserr.NewCompileError("model has no nodes")
	}

	nodes := make([]node, m.NodeCount())
	for i, n := range m.Nodes() {
		nodes[i] = node{
			name:     n.Name,
			logic:    expr.Simplify(n.Logic),
			rateUp:   expr.Simplify(n.RateUp),
			rateDown: expr.Simplify(n.RateDown),
		}
	}

	words := bnstate.Words(m.NodeCount())
	k := &Kernel{
		Words:        words,
		NodeCount:    m.NodeCount(),
		DiscreteTime: discreteTime,
	}

	k.InitRandom = func(seeds []uint64) []*rand.Rand {
		rngs := make([]*rand.Rand, len(seeds))
		for i, seed := range seeds {
			rngs[i] = rand.New(rand.NewSource(seed))
		}
		return rngs
	}

	k.InitState = func(rngs []*rand.Rand) [][]uint32 {
		states := make([][]uint32, len(rngs))
		for i, rng := range rngs {
			states[i] = sampleInitialState(m, rng, words)
		}
		return states
	}

	k.Simulate = func(rngs []*rand.Rand, states [][]uint32, times []float64, alive []bool, trajectoryLenLimit int, maxTime float64) ([]SampleResult, error) {
		results := make([]SampleResult, len(states))
		for i := range states {
			if !alive[i] {
				results[i] = SampleResult{State: states[i], Alive: false, Time: times[i]}
				continue
			}
			res, err := simulateOne(nodes, m, rngs[i], states[i], times[i], trajectoryLenLimit, maxTime, discreteTime)
			if err != nil {
				return nil, err
			}
			results[i] = res
			states[i] = res.State
			times[i] = res.Time
			alive[i] = res.Alive
		}
		return results, nil
	}

	k.FinalStates = func(states [][]uint32, mask []uint32) []uint32 {
		keys := make([]uint32, len(states))
		for i, s := range states {
			keys[i] = bnstate.FromWords(m.NodeCount(), s).Compact(bnstate.FromWords(m.NodeCount(), mask))
		}
		return keys
	}

	k.WindowAverageSmall = func(traj []Transition, finalState []uint32, finalAlive bool, timeTick, maxTime float64) []WindowOverlap {
		var out []WindowOverlap
		for _, tr := range traj {
			out = append(out, windowOverlaps(tr.State, tr.EntryTime, tr.ExitTime, timeTick, discreteTime)...)
		}
		if !finalAlive && len(traj) > 0 {
			last := traj[len(traj)-1]
			if last.ExitTime < maxTime {
				out = append(out, windowOverlaps(finalState, last.ExitTime, maxTime, timeTick, discreteTime)...)
			}
		}
		return out
	}

	return k, nil
}

func sampleInitialState(m *model.Model, rng *rand.Rand, words int) []uint32 {
	state := make([]uint32, words)
	if len(m.Distribution) == 0 {
		return state
	}
	r := rng.Float64()
	cum := 0.0
	chosen := m.Distribution[len(m.Distribution)-1]
	for _, entry := range m.Distribution {
		cum += entry.Probability
		if r <= cum {
			chosen = entry
			break
		}
	}
	for _, bit := range chosen.Bits {
		state[bit/32] |= 1 << uint(bit%32)
	}
	return state
}

// simulateOne runs the continuous- or discrete-time CTMC step loop for one
// sample until trajectoryLenLimit transitions have been recorded or the
// sample absorbs or times out.
func simulateOne(nodes []node, m *model.Model, rng *rand.Rand, state []uint32, t float64, limit int, maxTime float64, discrete bool) (SampleResult, error) {
	var transitions []Transition
	alive := true

	for len(transitions) < limit {
		if t >= maxTime {
			alive = false
			break
		}

		rates := make([]float64, len(nodes))
		total := 0.0
		for i, n := range nodes {
			v := evalAgainstState(n.logic, m, state, n.name)
			bit := bitOf(state, i)
			if (v != 0) == bit {
				continue
			}
			var rateExpr expr.Expr
			if bit {
				rateExpr = n.rateDown
			} else {
				rateExpr = n.rateUp
			}
			rate := evalAgainstState(rateExpr, m, state, n.name)
			if math.IsNaN(rate) || math.IsInf(rate, 0) || rate < 0 {
				return SampleResult{}, mabosserr.NewRuntimeError("invalid rate for node %d: %v", i, rate)
			}
			rates[i] = rate
			total += rate
		}

		if total == 0 {
			alive = false
			break
		}

		var tau float64
		var target int
		if discrete {
			tau = 1
			target = uniformPositiveRate(rng, rates)
		} else {
			tau = -math.Log(1-rng.Float64()) / total
			target = weightedPick(rng, rates, total)
		}

		next := append([]uint32(nil), state...)
		flipBit(next, target)

		transitions = append(transitions, Transition{State: state, EntryTime: t, ExitTime: t + tau})
		state = next
		t += tau
	}

	return SampleResult{Transitions: transitions, Alive: alive, State: state, Time: t}, nil
}

func bitOf(state []uint32, i int) bool {
	return state[i/32]&(1<<uint(i%32)) != 0
}

func flipBit(state []uint32, i int) {
	state[i/32] ^= 1 << uint(i%32)
}

func weightedPick(rng *rand.Rand, rates []float64, total float64) int {
	r := rng.Float64() * total
	cum := 0.0
	for i, rate := range rates {
		cum += rate
		if r <= cum {
			return i
		}
	}
	for i := len(rates) - 1; i >= 0; i-- {
		if rates[i] > 0 {
			return i
		}
	}
	return 0
}

func uniformPositiveRate(rng *rand.Rand, rates []float64) int {
	var positive []int
	for i, r := range rates {
		if r > 0 {
			positive = append(positive, i)
		}
	}
	if len(positive) == 0 {
		return 0
	}
	return positive[rng.Intn(len(positive))]
}

// windowOverlaps reports the overlap of [tIn, tOut) in state with every
// window it touches, for each bit set in state. In discrete-time mode a
// transition occupies exactly one tick, so the overlap length within any
// window it touches is forced to 1 rather than computed from real time.
func windowOverlaps(state []uint32, tIn, tOut, timeTick float64, discrete bool) []WindowOverlap {
	if tOut <= tIn {
		return nil
	}
	wStart := int(math.Floor(tIn / timeTick))
	wEnd := int(math.Floor(tOut / timeTick))
	var out []WindowOverlap
	for w := wStart; w <= wEnd; w++ {
		lo := math.Max(tIn, float64(w)*timeTick)
		hi := math.Min(tOut, float64(w+1)*timeTick)
		if hi <= lo {
			continue
		}
		length := hi - lo
		if discrete {
			length = 1
		}
		for word, bits := range state {
			for b := 0; b < 32; b++ {
				if bits&(1<<uint(b)) != 0 {
					out = append(out, WindowOverlap{Window: w, Bit: word*32 + b, Length: length})
				}
			}
		}
	}
	return out
}
