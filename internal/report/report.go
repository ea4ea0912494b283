// Package report writes the statistics composite's results out, either as
// per-accumulator CSV files or as a textual summary to stdout.
package report

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"maboss/internal/mabosserr"
	"maboss/internal/stats"
)

// Run identifies one simulation run: a uuid tag printed in the textual
// report header, plus the parameters worth echoing there. The CSV files
// written by WriteCSV do not carry the run ID.
type Run struct {
	ID          uuid.UUID
	SampleCount int
	NodeCount   int
	Started     time.Time
}

// NewRun tags a fresh run with a random uuid.
func NewRun(sampleCount, nodeCount int) Run {
	return Run{ID: uuid.New(), SampleCount: sampleCount, NodeCount: nodeCount, Started: time.Now()}
}

// WriteCSV writes every installed accumulator's CSV file under
// "<prefix>_<kind>.csv".
func WriteCSV(run Run, composite *stats.Composite, prefix string, names []string) error {
	return composite.WriteCSV(prefix, names, func(path string) (io.WriteCloser, error) {
		f, err := os.Create(path)
		if err != nil {
			return nil, mabosserr.Wrap(err, mabosserr.KindIO, "creating %s", path)
		}
		return f, nil
	})
}

// WriteStdout prints a human-facing summary of the run and every
// accumulator's contents to w, using go-humanize for readable counts (the
// same "readable numbers" register the teacher's CLI banner uses).
func WriteStdout(w io.Writer, run Run, composite *stats.Composite, names []string) {
	fmt.Fprintf(w, "MaBoSSG-Go run %s\n", run.ID)
	fmt.Fprintf(w, "  samples: %s\n", humanize.Comma(int64(run.SampleCount)))
	fmt.Fprintf(w, "  nodes:   %s\n", humanize.Comma(int64(run.NodeCount)))
	fmt.Fprintf(w, "  elapsed: %s\n", humanize.Time(run.Started))
	fmt.Fprintln(w)
	composite.Visualize(w, names)
}

// EstimateTrajectoryBufferBytes reports the per-batch trajectory memory
// footprint, formatted for a human operator.
func EstimateTrajectoryBufferBytes(sampleCount, trajectoryLenLimit, words int) string {
	bytesPerTransition := int64(words+2) * 4
	total := int64(sampleCount) * int64(trajectoryLenLimit) * bytesPerTransition
	total += int64(sampleCount) * int64(words) * 4
	return humanize.Bytes(uint64(total))
}
