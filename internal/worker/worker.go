package worker

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/lpapadakos/epiquery/internal/metrics"
	"github.com/lpapadakos/epiquery/internal/shard"
)

// DefaultLogDir is the directory a worker writes its exit log under
// when none is configured, mirroring the original's relative "logs"
// (created next to the process's working directory, per w_exit).
const DefaultLogDir = "logs"

// Worker drives one shard through its lifecycle: bootstrap, ingest,
// serve, exit. Its fields other than Index and Metrics are touched only
// by the single goroutine running Serve, so — like shard.Index itself —
// it carries no lock.
type Worker struct {
	Tag      int
	InputDir string
	LogDir   string
	Index    *shard.Index
	Metrics  *metrics.Worker
	Log      zerolog.Logger

	countriesSeen []string
	requestsTotal int
	requestsOK    int
}

// New returns a Worker for shard idx, identified to the broker as tag
// and reading its record files from inputDir.
func New(tag int, inputDir string, idx *shard.Index, m *metrics.Worker, log zerolog.Logger) *Worker {
	return &Worker{
		Tag:      tag,
		InputDir: inputDir,
		LogDir:   DefaultLogDir,
		Index:    idx,
		Metrics:  m,
		Log:      log,
	}
}

// exit writes the worker's log file — the countries it served and its
// TOTAL/SUCCESS/FAIL request tallies — grounded on w_exit. It replaces
// the original's getpid()-named file with the same naming scheme, since
// a worker is still exactly one OS process.
func (w *Worker) exit() error {
	if err := os.MkdirAll(w.LogDir, 0o755); err != nil {
		return fmt.Errorf("worker: exit: %w", err)
	}

	path := filepath.Join(w.LogDir, fmt.Sprintf("log_file.%d", os.Getpid()))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("worker: exit: %w", err)
	}
	defer f.Close()

	for _, c := range w.countriesSeen {
		fmt.Fprintln(f, c)
	}
	fmt.Fprintf(f, "TOTAL %d\n", w.requestsTotal)
	fmt.Fprintf(f, "SUCCESS %d\n", w.requestsOK)
	fmt.Fprintf(f, "FAIL %d\n", w.requestsTotal-w.requestsOK)

	w.Log.Info().
		Int("total", w.requestsTotal).
		Int("ok", w.requestsOK).
		Str("log_file", path).
		Msg("worker exiting")
	return nil
}
