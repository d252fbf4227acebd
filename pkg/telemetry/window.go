package telemetry

import (
	"log/slog"

	"github.com/TheFellow/stablefluid/pkg/fluid"
)

// WindowStats aggregates engine statistics over a window of ticks.
type WindowStats struct {
	WindowStartTick uint64  `csv:"window_start"`
	WindowEndTick   uint64  `csv:"window_end"`
	Ticks           int     `csv:"ticks"`
	Discarded       int     `csv:"discarded"`
	DivBeforeMean   float64 `csv:"div_before_mean"`
	DivAfterMean    float64 `csv:"div_after_mean"`
	DivAfterMax     float64 `csv:"div_after_max"`
	MaxSpeed        float64 `csv:"max_speed"`
	TotalDensity    float64 `csv:"total_density"`
	PeakDensity     float64 `csv:"peak_density"`
}

// LogValue implements slog.LogValuer for structured logging.
func (s WindowStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("window_start", s.WindowStartTick),
		slog.Uint64("window_end", s.WindowEndTick),
		slog.Int("ticks", s.Ticks),
		slog.Int("discarded", s.Discarded),
		slog.Float64("div_before_mean", s.DivBeforeMean),
		slog.Float64("div_after_mean", s.DivAfterMean),
		slog.Float64("div_after_max", s.DivAfterMax),
		slog.Float64("max_speed", s.MaxSpeed),
		slog.Float64("total_density", s.TotalDensity),
		slog.Float64("peak_density", s.PeakDensity),
	)
}

// Window accumulates per-tick engine stats until Flush.
type Window struct {
	size    int
	current WindowStats
	divB    float64
	divA    float64
}

func NewWindow(size int) *Window {
	return &Window{size: max(size, 1)}
}

// Add records a successful tick.
func (w *Window) Add(st fluid.Stats) {
	if w.current.Ticks == 0 && w.current.Discarded == 0 {
		w.current.WindowStartTick = st.Tick
	}
	w.current.WindowEndTick = st.Tick
	w.current.Ticks++
	w.divB += float64(st.DivergenceBefore)
	w.divA += float64(st.DivergenceAfter)
	w.current.DivAfterMax = max(w.current.DivAfterMax, float64(st.DivergenceAfter))
	w.current.MaxSpeed = max(w.current.MaxSpeed, float64(st.MaxSpeed))
	w.current.TotalDensity = float64(st.TotalDensity)
	w.current.PeakDensity = max(w.current.PeakDensity, float64(st.PeakDensity))
}

// Discard records a tick the engine rejected.
func (w *Window) Discard() {
	w.current.Discarded++
}

// Full reports whether the window has seen size ticks.
func (w *Window) Full() bool {
	return w.current.Ticks+w.current.Discarded >= w.size
}

// Flush returns the aggregate and starts a new window.
func (w *Window) Flush() WindowStats {
	out := w.current
	if out.Ticks > 0 {
		out.DivBeforeMean = w.divB / float64(out.Ticks)
		out.DivAfterMean = w.divA / float64(out.Ticks)
	}
	w.current = WindowStats{}
	w.divB, w.divA = 0, 0
	return out
}
