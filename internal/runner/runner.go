// Package runner implements the batched trajectory runner (C5): it owns the
// sample population and per-batch trajectory buffers, and drives the kernel
// and statistics composite in lockstep.
package runner

import (
	"runtime"

	"golang.org/x/exp/rand"
	"golang.org/x/sync/errgroup"

	"maboss/internal/kernel"
	"maboss/internal/mabosserr"
)

// Stats is the contract the statistics composite exposes to the runner: it
// is handed each batch's trajectories/current states/alive flags, and
// finalized once no samples remain alive or the batch cap is reached.
type Stats interface {
	ProcessBatch(trajectories [][]kernel.Transition, states [][]uint32, alive []bool, batchIndex int)
	Finalize()
}

// Config holds the population sizing the runner needs.
type Config struct {
	SampleCount          int
	TrajectoryLenLimit   int
	TrajectoryBatchLimit int
	MaxTime              float64
}

// Runner owns the sample population across batches.
type Runner struct {
	cfg Config
}

func New(cfg Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run drives the simulation: it seeds the population, then repeatedly calls
// k.Simulate on the still-alive samples in parallel shards, handing each
// batch's trajectory buffers to stats, until every sample is absorbed or the
// batch cap is reached.
func (r *Runner) Run(stats Stats, k *kernel.Kernel, seeds []uint64) error {
	if len(seeds) != r.cfg.SampleCount {
		return mabosserr.NewRuntimeError("need %d seeds, got %d", r.cfg.SampleCount, len(seeds))
	}

	rngs := k.InitRandom(seeds)
	states := k.InitState(rngs)
	times := make([]float64, r.cfg.SampleCount)
	alive := make([]bool, r.cfg.SampleCount)
	for i := range alive {
		alive[i] = true
	}

	for batch := 0; batch < r.cfg.TrajectoryBatchLimit; batch++ {
		if !anyAlive(alive) {
			break
		}

		trajectories, err := r.simulateBatch(k, rngs, states, times, alive)
		if err != nil {
			return err
		}

		stats.ProcessBatch(trajectories, states, alive, batch)
	}

	stats.Finalize()
	return nil
}

// simulateBatch shards the alive samples data-parallel across
// runtime.GOMAXPROCS(0) goroutines via errgroup, each shard calling
// k.Simulate on its slice. The errgroup.Wait at the end of this function is
// the full barrier required between batches: no sample may start the next
// batch until every sample has finished this one.
func (r *Runner) simulateBatch(k *kernel.Kernel, rngs []*rand.Rand, states [][]uint32, times []float64, alive []bool) ([][]kernel.Transition, error) {
	n := len(states)
	trajectories := make([][]kernel.Transition, n)

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}
	if workers < 1 {
		workers = 1
	}
	shardSize := (n + workers - 1) / workers

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		start := w * shardSize
		end := start + shardSize
		if start >= n {
			break
		}
		if end > n {
			end = n
		}

		start, end := start, end
		g.Go(func() error {
			results, err := k.Simulate(rngs[start:end], states[start:end], times[start:end], alive[start:end], r.cfg.TrajectoryLenLimit, r.cfg.MaxTime)
			if err != nil {
				return err
			}
			for i, res := range results {
				trajectories[start+i] = res.Transitions
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return trajectories, nil
}

func anyAlive(alive []bool) bool {
	for _, a := range alive {
		if a {
			return true
		}
	}
	return false
}
