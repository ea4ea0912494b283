// Package stats implements the statistics pipeline (C6): a composite of
// independent accumulators sharing the process_batch/finalize/write_csv/
// visualize contract.
package stats

import (
	"io"

	"maboss/internal/kernel"
	"maboss/internal/mabosserr"
)

// Accumulator is the shared contract every statistics accumulator
// implements. The runner fans batches out to every installed accumulator in
// order; accumulators never share state.
type Accumulator interface {
	ProcessBatch(trajectories [][]kernel.Transition, states [][]uint32, alive []bool, batchIndex int)
	Finalize()
	WriteCSV(w io.Writer, names []string) error
	Visualize(w io.Writer, names []string)
}

// Composite owns an ordered list of accumulators and fans every call out to
// each of them in turn.
type Composite struct {
	accumulators []Accumulator
}

func NewComposite() *Composite { return &Composite{} }

func (c *Composite) Add(a Accumulator) { c.accumulators = append(c.accumulators, a) }

func (c *Composite) ProcessBatch(trajectories [][]kernel.Transition, states [][]uint32, alive []bool, batchIndex int) {
	for _, a := range c.accumulators {
		a.ProcessBatch(trajectories, states, alive, batchIndex)
	}
}

func (c *Composite) Finalize() {
	for _, a := range c.accumulators {
		a.Finalize()
	}
}

func (c *Composite) WriteCSV(prefix string, names []string, open func(path string) (io.WriteCloser, error)) error {
	for _, a := range c.accumulators {
		path, ok := csvPath(prefix, a)
		if !ok {
			continue
		}
		f, err := open(path)
		if err != nil {
			return mabosserr.Wrap(err, mabosserr.KindIO, "opening %s", path)
		}
		err = a.WriteCSV(f, names)
		closeErr := f.Close()
		if err != nil {
			return mabosserr.Wrap(err, mabosserr.KindIO, "writing %s", path)
		}
		if closeErr != nil {
			return mabosserr.Wrap(closeErr, mabosserr.KindIO, "closing %s", path)
		}
	}
	return nil
}

func (c *Composite) Visualize(w io.Writer, names []string) {
	for _, a := range c.accumulators {
		a.Visualize(w, names)
	}
}

// csvPath names the output file for a: one file per accumulator kind,
// `<prefix>_final_states.csv` etc.
func csvPath(prefix string, a Accumulator) (string, bool) {
	switch a.(type) {
	case *FinalStates:
		return prefix + "_final_states.csv", true
	case *FixedStates:
		return prefix + "_fixed_states.csv", true
	case *WindowAverage:
		return prefix + "_window_averages.csv", true
	default:
		return "", false
	}
}
