// Package telemetry aggregates engine statistics and tick timing, logs them
// per window, and optionally writes them as CSV.
package telemetry

import (
	"log/slog"

	"github.com/TheFellow/stablefluid/pkg/fluid"
)

// Recorder ties a PerfCollector, a stats Window and an optional
// OutputManager together. Hosts call Record after every Step.
type Recorder struct {
	Perf   *PerfCollector
	window *Window
	out    *OutputManager
	log    *slog.Logger
}

// NewRecorder returns a recorder flushing every windowTicks ticks. out may be
// nil to disable CSV output.
func NewRecorder(windowTicks int, out *OutputManager, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}
	return &Recorder{
		Perf:   NewPerfCollector(windowTicks),
		window: NewWindow(windowTicks),
		out:    out,
		log:    log,
	}
}

// Record accounts for the outcome of one Step. It returns the first error
// from writing a completed window.
func (r *Recorder) Record(stepErr error, st fluid.Stats) error {
	if stepErr != nil {
		r.window.Discard()
	} else {
		r.window.Add(st)
	}
	if !r.window.Full() {
		return nil
	}

	ws := r.window.Flush()
	perf := r.Perf.Stats()
	r.log.Info("window", "stats", ws, "perf", perf)
	if err := r.out.WriteTelemetry(ws); err != nil {
		return err
	}
	return r.out.WritePerf(perf, ws.WindowEndTick)
}
