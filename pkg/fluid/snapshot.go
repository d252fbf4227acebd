package fluid

import "fmt"

// Snapshot is a host-side copy of the simulation fields. Engine.Edit hands
// one out for seeding and inspection.
type Snapshot struct {
	W, H       int
	Velocity   *Buffer
	Density    *Buffer
	Divergence *Buffer
}

// NewSnapshot allocates a zero-filled snapshot for a w×h grid.
func NewSnapshot(w, h int) *Snapshot {
	size := w * h
	return &Snapshot{
		W:          w,
		H:          h,
		Velocity:   newBuffer(FieldVelocity.Components(), size),
		Density:    newBuffer(FieldDensity.Components(), size),
		Divergence: newBuffer(FieldDivergence.Components(), size),
	}
}

func (s *Snapshot) cell(i, j int) int {
	if i < 0 || i >= s.W {
		panic(fmt.Sprintf("invalid x-index: %d", i))
	}
	if j < 0 || j >= s.H {
		panic(fmt.Sprintf("invalid y-index: %d", j))
	}
	return j*s.W + i
}

func (s *Snapshot) SetVelocity(i, j int, u, v float32) {
	cell := s.cell(i, j)
	s.Velocity.Planes[0][cell] = u
	s.Velocity.Planes[1][cell] = v
}

func (s *Snapshot) VelocityAt(i, j int) (u, v float32) {
	cell := s.cell(i, j)
	return s.Velocity.Planes[0][cell], s.Velocity.Planes[1][cell]
}

func (s *Snapshot) AddDensity(i, j int, c Color) {
	cell := s.cell(i, j)
	s.Density.Planes[0][cell] += c.R
	s.Density.Planes[1][cell] += c.G
	s.Density.Planes[2][cell] += c.B
}

func (s *Snapshot) DensityAt(i, j int) Color {
	cell := s.cell(i, j)
	return Color{
		R: s.Density.Planes[0][cell],
		G: s.Density.Planes[1][cell],
		B: s.Density.Planes[2][cell],
	}
}

// DivergenceAt returns the pre-projection divergence of the last tick.
func (s *Snapshot) DivergenceAt(i, j int) float32 {
	return s.Divergence.Planes[0][s.cell(i, j)]
}

func (s *Snapshot) Reset() {
	s.Velocity.zero()
	s.Density.zero()
	s.Divergence.zero()
}
