package fluid

import "fmt"

// FieldID names one of the double-buffered fields owned by a Store.
type FieldID int

const (
	FieldVelocity FieldID = iota
	FieldDensity
	FieldPressure
	FieldDivergence
	// FieldViscousSource holds the right-hand side b of the diffusion solve
	// while the velocity pair ping-pongs between Jacobi iterates.
	FieldViscousSource
	numFields
)

var fieldNames = [numFields]string{
	FieldVelocity:      "velocity",
	FieldDensity:       "density",
	FieldPressure:      "pressure",
	FieldDivergence:    "divergence",
	FieldViscousSource: "viscous-source",
}

func (id FieldID) String() string {
	if id < 0 || id >= numFields {
		return fmt.Sprintf("FieldID(%d)", int(id))
	}
	return fieldNames[id]
}

// Components returns the number of planes a buffer of this field holds.
func (id FieldID) Components() int {
	switch id {
	case FieldVelocity, FieldViscousSource:
		return 2
	case FieldDensity:
		return 3
	case FieldPressure, FieldDivergence:
		return 1
	}
	panic(fmt.Sprintf("invalid field id: %d", int(id)))
}

// Buffer is one physical W×H buffer. Multi-component fields keep one
// row-major plane per component.
type Buffer struct {
	Planes [][]float32
}

func newBuffer(components, size int) *Buffer {
	b := &Buffer{Planes: make([][]float32, components)}
	for c := range b.Planes {
		b.Planes[c] = make([]float32, size)
	}
	return b
}

func (b *Buffer) zero() {
	for _, p := range b.Planes {
		fill(p, 0)
	}
}

func (b *Buffer) copyFrom(src *Buffer) {
	for c := range b.Planes {
		copy(b.Planes[c], src.Planes[c])
	}
}

type bufferPair struct {
	current *Buffer // valid, readable
	scratch *Buffer // write target of the next pass
}

// Store owns the buffer pairs of every field. All fields share the same
// dimensions for the lifetime of the store.
type Store struct {
	W, H  int
	pairs [numFields]bufferPair
}

// NewStore allocates zero-filled buffer pairs for a w×h grid.
func NewStore(w, h int) (*Store, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d must be positive", ErrInvalidConfig, w, h)
	}
	s := &Store{W: w, H: h}
	size := w * h
	for id := FieldID(0); id < numFields; id++ {
		n := id.Components()
		s.pairs[id] = bufferPair{
			current: newBuffer(n, size),
			scratch: newBuffer(n, size),
		}
	}
	return s, nil
}

func (s *Store) pair(id FieldID) *bufferPair {
	if id < 0 || id >= numFields {
		panic(fmt.Sprintf("invalid field id: %d", int(id)))
	}
	return &s.pairs[id]
}

// Current returns the readable buffer of a field.
func (s *Store) Current(id FieldID) *Buffer { return s.pair(id).current }

// Scratch returns the write target of a field.
func (s *Store) Scratch(id FieldID) *Buffer { return s.pair(id).scratch }

// Swap exchanges the current and scratch roles of a field.
func (s *Store) Swap(id FieldID) {
	p := s.pair(id)
	p.current, p.scratch = p.scratch, p.current
}

// Clear zero-fills the current buffer of a field.
func (s *Store) Clear(id FieldID) {
	s.pair(id).current.zero()
}

// ClearAll zero-fills both buffers of every field.
func (s *Store) ClearAll() {
	for id := range s.pairs {
		s.pairs[id].current.zero()
		s.pairs[id].scratch.zero()
	}
}

func fill[T any](slice []T, val T) {
	for i := range slice {
		slice[i] = val
	}
}
