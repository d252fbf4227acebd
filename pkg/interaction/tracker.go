// Package interaction turns raw pointer samples into the engine's impulse
// record.
package interaction

import (
	"fmt"
	"math/rand/v2"

	"github.com/TheFellow/stablefluid/pkg/fluid"
	"github.com/mazznoer/colorgrad"
)

type Settings struct {
	// RadiusFraction is the impulse radius as a fraction of the shorter
	// viewport side.
	RadiusFraction float32
	// VelocityScale multiplies the drag delta, measured in grid cells.
	VelocityScale float32
	// Palette names the gradient gesture colours are drawn from.
	Palette string
	// Seed fixes the colour sequence. Zero picks a random seed.
	Seed uint64
}

func DefaultSettings() Settings {
	return Settings{
		RadiusFraction: 0.05,
		VelocityScale:  60,
		Palette:        "rainbow",
	}
}

var palettes = map[string]func() colorgrad.Gradient{
	"rainbow": colorgrad.Rainbow,
	"sinebow": colorgrad.Sinebow,
	"turbo":   colorgrad.Turbo,
	"viridis": colorgrad.Viridis,
	"plasma":  colorgrad.Plasma,
	"warm":    colorgrad.Warm,
	"cool":    colorgrad.Cool,
}

// Palettes lists the accepted palette names.
func Palettes() []string {
	names := make([]string, 0, len(palettes))
	for name := range palettes {
		names = append(names, name)
	}
	return names
}

type point struct{ x, y float32 }

// Tracker is the sole writer of an engine's impulse record. It is not safe
// for concurrent use; the engine may read the mailbox from another goroutine.
type Tracker struct {
	mailbox  *fluid.Mailbox
	gridW    int
	gridH    int
	settings Settings
	grad     colorgrad.Gradient
	rng      *rand.Rand

	viewW, viewH float32
	radius       float32

	active  bool
	hasPrev bool
	prev    point
	color   fluid.Color
}

// New returns a tracker feeding mb for a gridW×gridH engine.
func New(mb *fluid.Mailbox, gridW, gridH int, s Settings) (*Tracker, error) {
	if gridW <= 0 || gridH <= 0 {
		return nil, fmt.Errorf("grid %dx%d must be positive", gridW, gridH)
	}
	if !(s.RadiusFraction > 0) {
		return nil, fmt.Errorf("radius fraction %v must be positive", s.RadiusFraction)
	}
	mk, ok := palettes[s.Palette]
	if !ok {
		return nil, fmt.Errorf("unknown palette %q", s.Palette)
	}
	seed := s.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	t := &Tracker{
		mailbox:  mb,
		gridW:    gridW,
		gridH:    gridH,
		settings: s,
		grad:     mk(),
		rng:      rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
	}
	t.Resize(float32(gridW), float32(gridH))
	return t, nil
}

// Resize records the viewport size and recomputes the grid-space radius.
func (t *Tracker) Resize(viewW, viewH float32) {
	if !(viewW > 0) || !(viewH > 0) {
		return
	}
	t.viewW, t.viewH = viewW, viewH
	t.radius = t.settings.RadiusFraction * min(viewW, viewH) * float32(t.gridW) / viewW
	r := t.radius
	t.mailbox.Update(func(imp *fluid.Impulse) { imp.Radius = r })
}

// Radius returns the impulse radius in grid cells.
func (t *Tracker) Radius() float32 { return t.radius }

func (t *Tracker) normalize(x, y float32) point {
	nx := min(max(x/t.viewW, 0), 1)
	ny := min(max(y/t.viewH, 0), 1)
	return point{nx, ny}
}

func (t *Tracker) nextColor() fluid.Color {
	c := t.grad.At(t.rng.Float64())
	return fluid.Color{R: float32(c.R), G: float32(c.G), B: float32(c.B)}
}

// Sample records a pointer position in viewport coordinates. Density is
// added while the gesture lasts; velocity only while dragging.
func (t *Tracker) Sample(x, y float32, dragging bool) {
	p := t.normalize(x, y)
	if !t.active {
		t.active = true
		t.hasPrev = false
		t.color = t.nextColor()
	}
	var dx, dy float32
	if dragging && t.hasPrev {
		scale := t.settings.VelocityScale
		dx = (p.x - t.prev.x) * float32(t.gridW) * scale
		dy = (p.y - t.prev.y) * float32(t.gridH) * scale
	}
	t.prev = p
	t.hasPrev = true

	color, radius := t.color, t.radius
	t.mailbox.Update(func(imp *fluid.Impulse) {
		imp.X, imp.Y = p.x, p.y
		imp.DX, imp.DY = dx, dy
		imp.Color = color
		imp.Radius = radius
		imp.AddDensity = true
		imp.AddVelocity = dragging
	})
}

// End finishes the gesture and clears both impulse flags.
func (t *Tracker) End() {
	t.active = false
	t.hasPrev = false
	t.mailbox.Update(func(imp *fluid.Impulse) {
		imp.DX, imp.DY = 0, 0
		imp.AddDensity = false
		imp.AddVelocity = false
	})
}

// Active reports whether a gesture is in progress.
func (t *Tracker) Active() bool { return t.active }

// SetTimestep updates the global timestep carried by the impulse record.
func (t *Tracker) SetTimestep(dt float32) {
	t.mailbox.Update(func(imp *fluid.Impulse) { imp.Timestep = dt })
}

// SetViscosity updates the global viscosity carried by the impulse record.
func (t *Tracker) SetViscosity(nu float32) {
	t.mailbox.Update(func(imp *fluid.Impulse) { imp.Viscosity = nu })
}
