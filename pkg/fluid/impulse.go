package fluid

import "sync/atomic"

// Color is an RGB payload added to the density field.
type Color struct {
	R, G, B float32
}

// Impulse is the single pending interaction read once per tick.
type Impulse struct {
	// X, Y is the impulse point normalized to [0,1]².
	X, Y float32
	// DX, DY is the velocity payload in grid cells per second.
	DX, DY float32
	Color  Color
	// Radius is measured in grid cells.
	Radius float32

	AddDensity  bool
	AddVelocity bool

	Timestep  float32
	Viscosity float32
}

func (imp Impulse) active() bool {
	return imp.AddDensity || imp.AddVelocity
}

// Mailbox is a single-slot, last-writer-wins holder for the pending impulse.
// Store and Load are safe to call from different goroutines.
type Mailbox struct {
	slot atomic.Pointer[Impulse]
}

// NewMailbox returns a mailbox holding imp.
func NewMailbox(imp Impulse) *Mailbox {
	m := &Mailbox{}
	m.Store(imp)
	return m
}

// Store replaces the pending impulse.
func (m *Mailbox) Store(imp Impulse) {
	m.slot.Store(&imp)
}

// Load returns a copy of the pending impulse.
func (m *Mailbox) Load() Impulse {
	if p := m.slot.Load(); p != nil {
		return *p
	}
	return Impulse{}
}

// Update applies fn to the pending impulse. Concurrent updates retry until
// one of them lands on an unchanged slot.
func (m *Mailbox) Update(fn func(*Impulse)) {
	for {
		old := m.slot.Load()
		next := Impulse{}
		if old != nil {
			next = *old
		}
		fn(&next)
		if m.slot.CompareAndSwap(old, &next) {
			return
		}
	}
}
