package fluid

import (
	"math"

	"gonum.org/v1/gonum/blas/blas32"
)

func vec(p []float32) blas32.Vector {
	return blas32.Vector{N: len(p), Inc: 1, Data: p}
}

// copyBuffer copies every plane of src into dst.
func copyBuffer(dst, src *Buffer) {
	for c := range dst.Planes {
		blas32.Copy(vec(src.Planes[c]), vec(dst.Planes[c]))
	}
}

// scaleBuffer multiplies every plane of b by alpha.
func scaleBuffer(b *Buffer, alpha float32) {
	for _, p := range b.Planes {
		blas32.Scal(alpha, vec(p))
	}
}

// l1 returns Σ|p|.
func l1(p []float32) float32 {
	if len(p) == 0 {
		return 0
	}
	return blas32.Asum(vec(p))
}

// finite reports whether every plane of b sums to a finite L1 norm. A NaN or
// Inf anywhere poisons the sum, as does a field large enough to overflow it.
func finite(b *Buffer) bool {
	for _, p := range b.Planes {
		s := float64(l1(p))
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return false
		}
	}
	return true
}

// peak returns the largest absolute value in p.
func peak(p []float32) float32 {
	if len(p) == 0 {
		return 0
	}
	i := blas32.Iamax(vec(p))
	if i < 0 {
		return 0
	}
	return float32(math.Abs(float64(p[i])))
}

// dissipationFactor converts a per-second fade rate into the multiplier for
// one tick. A zero rate yields exactly 1.
func dissipationFactor(rate, dt float32) float32 {
	if rate == 0 {
		return 1
	}
	return float32(math.Exp(-float64(rate) * float64(dt)))
}

// Stats summarises the most recent successful tick.
type Stats struct {
	Tick uint64
	// DivergenceBefore and DivergenceAfter are L1 norms of the velocity
	// divergence before and after projection.
	DivergenceBefore float32
	DivergenceAfter  float32
	MaxSpeed         float32
	TotalDensity     float32
	PeakDensity      float32
}

// measure fills the field statistics of st from a snapshot whose Divergence
// holds the pre-projection divergence. scratch must hold at least W·H values.
func measure(st *Stats, s *Snapshot, scratch *Buffer) {
	w, h := s.W, s.H
	st.DivergenceBefore = l1(s.Divergence.Planes[0])
	computeDivergence(scratch, s.Velocity, w, h, serialRange)
	st.DivergenceAfter = l1(scratch.Planes[0])

	speed := scratch.Planes[0]
	u, v := s.Velocity.Planes[0], s.Velocity.Planes[1]
	for i := range speed {
		speed[i] = float32(math.Hypot(float64(u[i]), float64(v[i])))
	}
	st.MaxSpeed = peak(speed)

	st.TotalDensity = 0
	st.PeakDensity = 0
	for _, p := range s.Density.Planes {
		st.TotalDensity += l1(p)
		st.PeakDensity = max(st.PeakDensity, peak(p))
	}
}
