package fluid

import (
	"errors"
	"math"
	"testing"
)

func newTestEngine(t *testing.T, cfg Config, opts ...Option) *Engine {
	t.Helper()
	e, err := New(cfg, opts...)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { e.Close() })
	return e
}

func smallConfig() Config {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 24, 20
	cfg.Timestep = 0.1
	cfg.Viscosity = 0
	return cfg
}

type phaseRecorder struct {
	ticks  int
	ended  int
	phases []string
}

func (r *phaseRecorder) StartTick()             { r.ticks++ }
func (r *phaseRecorder) StartPhase(name string) { r.phases = append(r.phases, name) }
func (r *phaseRecorder) EndTick()               { r.ended++ }

// failingBackend fails the pressure solve once armed.
type failingBackend struct {
	Backend
	armed bool
}

var errDeviceLost = errors.New("device lost")

func (b *failingBackend) PressureIteration() error {
	if b.armed {
		return errDeviceLost
	}
	return b.Backend.PressureIteration()
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	tests := map[string]func(*Config){
		"zero width":         func(c *Config) { c.Width = 0 },
		"negative height":    func(c *Config) { c.Height = -1 },
		"zero timestep":      func(c *Config) { c.Timestep = 0 },
		"nan timestep":       func(c *Config) { c.Timestep = float32(math.NaN()) },
		"negative viscosity": func(c *Config) { c.Viscosity = -0.1 },
		"no pressure solve":  func(c *Config) { c.PressureIterations = 0 },
		"negative diffusion": func(c *Config) { c.DiffusionIterations = -1 },
		"negative decay":     func(c *Config) { c.DensityDissipation = -1 },
		"negative workers":   func(c *Config) { c.Workers = -2 },
		"unknown backend":    func(c *Config) { c.Backend = "vulkan" },
		"infinite viscosity": func(c *Config) { c.Viscosity = float32(math.Inf(1)) },
	}
	for name, mutate := range tests {
		t.Run(name, func(t *testing.T) {
			cfg := smallConfig()
			mutate(&cfg)
			if _, err := New(cfg); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("New() error = %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestStepWithoutImpulseKeepsFieldsAtRest(t *testing.T) {
	e := newTestEngine(t, smallConfig())
	for i := 0; i < 5; i++ {
		if err := e.Step(); err != nil {
			t.Fatal(err)
		}
	}
	st := e.Stats()
	if st.Tick != 5 {
		t.Errorf("tick = %d, want 5", st.Tick)
	}
	if st.MaxSpeed != 0 || st.TotalDensity != 0 {
		t.Errorf("stats = %+v, want a field at rest", st)
	}
}

func TestStepInjectsAndProjects(t *testing.T) {
	cfg := smallConfig()
	cfg.PressureIterations = 40
	e := newTestEngine(t, cfg)
	e.Mailbox().Update(func(imp *Impulse) {
		imp.X, imp.Y = 0.5, 0.5
		imp.DX, imp.DY = 30, 0
		imp.Color = Color{R: 1, G: 0.5, B: 0.25}
		imp.Radius = 4
		imp.AddDensity = true
		imp.AddVelocity = true
	})
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}

	st := e.Stats()
	if st.TotalDensity <= 0 || st.PeakDensity <= 0 {
		t.Errorf("stats = %+v, want injected density", st)
	}
	if st.MaxSpeed <= 0 {
		t.Errorf("max speed = %v, want positive", st.MaxSpeed)
	}
	if st.DivergenceAfter >= st.DivergenceBefore {
		t.Errorf("divergence after projection %v, before %v", st.DivergenceAfter, st.DivergenceBefore)
	}

	d := e.Density()
	r, g, b, err := d.Value(12, 10)
	if err != nil {
		t.Fatal(err)
	}
	if !(r > g && g > b && b > 0) {
		t.Errorf("density at centre = (%v, %v, %v), want the impulse colour", r, g, b)
	}
	if _, _, _, err := d.Value(24, 0); err == nil {
		t.Error("expected out-of-range error")
	}
}

func TestStepReportsStages(t *testing.T) {
	rec := &phaseRecorder{}
	cfg := smallConfig()
	cfg.Viscosity = 0.5
	cfg.DiffusionIterations = 4
	e := newTestEngine(t, cfg, WithObserver(rec))
	e.Mailbox().Update(func(imp *Impulse) {
		imp.X, imp.Y, imp.Radius = 0.5, 0.5, 2
		imp.AddDensity = true
	})
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"advect-velocity", "advect-density", "diffuse-velocity", "inject-forces",
		"compute-divergence", "solve-pressure", "subtract-gradient", "ready",
	}
	if len(rec.phases) != len(want) {
		t.Fatalf("phases = %v, want %v", rec.phases, want)
	}
	for i := range want {
		if rec.phases[i] != want[i] {
			t.Errorf("phase %d = %s, want %s", i, rec.phases[i], want[i])
		}
	}
	if rec.ticks != 1 || rec.ended != 1 {
		t.Errorf("ticks started %d ended %d, want 1 and 1", rec.ticks, rec.ended)
	}
}

func TestStepSkipsDiffusionWithoutViscosity(t *testing.T) {
	rec := &phaseRecorder{}
	cfg := smallConfig()
	cfg.DiffusionIterations = 8
	e := newTestEngine(t, cfg, WithObserver(rec))
	e.Mailbox().Update(func(imp *Impulse) { imp.Viscosity = 0 })
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	for _, p := range rec.phases {
		if p == StageDiffuseVelocity.String() || p == StageInjectForces.String() {
			t.Errorf("unexpected phase %s", p)
		}
	}
}

func TestStepRejectsInvalidTunables(t *testing.T) {
	e := newTestEngine(t, smallConfig())
	e.Mailbox().Update(func(imp *Impulse) { imp.Timestep = 0 })
	if err := e.Step(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Step() error = %v, want ErrInvalidConfig", err)
	}
	e.Mailbox().Update(func(imp *Impulse) { imp.Timestep, imp.Viscosity = 0.1, -1 })
	if err := e.Step(); !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Step() error = %v, want ErrInvalidConfig", err)
	}
	if got := e.Stats().Tick; got != 0 {
		t.Errorf("tick = %d after rejected steps, want 0", got)
	}
}

func TestFailedTickIsDiscarded(t *testing.T) {
	cfg := smallConfig()
	inner, err := newCPUBackend(cfg.Width, cfg.Height, 0)
	if err != nil {
		t.Fatal(err)
	}
	fb := &failingBackend{Backend: inner}
	e := newTestEngine(t, cfg, WithBackend(fb))

	if err := e.Edit(func(s *Snapshot) {
		s.AddDensity(3, 4, Color{R: 1})
		s.SetVelocity(3, 4, 2, -1)
	}); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	want := NewSnapshot(cfg.Width, cfg.Height)
	if err := inner.ReadFields(want); err != nil {
		t.Fatal(err)
	}
	published := e.Density()
	wantR, _, _, _ := published.Value(4, 4)

	fb.armed = true
	err = e.Step()
	var serr *StageError
	if !errors.As(err, &serr) || serr.Stage != StageSolvePressure || !errors.Is(err, errDeviceLost) {
		t.Fatalf("Step() error = %v, want a solve-pressure StageError", err)
	}

	got := NewSnapshot(cfg.Width, cfg.Height)
	if err := inner.ReadFields(got); err != nil {
		t.Fatal(err)
	}
	for c := range want.Velocity.Planes {
		for i, v := range want.Velocity.Planes[c] {
			if got.Velocity.Planes[c][i] != v {
				t.Fatalf("velocity plane %d cell %d = %v, want %v", c, i, got.Velocity.Planes[c][i], v)
			}
		}
	}
	for c := range want.Density.Planes {
		for i, v := range want.Density.Planes[c] {
			if got.Density.Planes[c][i] != v {
				t.Fatalf("density plane %d cell %d = %v, want %v", c, i, got.Density.Planes[c][i], v)
			}
		}
	}
	if r, _, _, _ := e.Density().Value(4, 4); r != wantR {
		t.Errorf("published density = %v, want %v", r, wantR)
	}
	if e.Stats().Tick != 1 {
		t.Errorf("tick = %d, want 1", e.Stats().Tick)
	}

	fb.armed = false
	if err := e.Step(); err != nil {
		t.Fatalf("Step() after recovery error = %v", err)
	}
}

func TestNonFiniteTickResetsFields(t *testing.T) {
	e := newTestEngine(t, smallConfig())
	if err := e.Edit(func(s *Snapshot) { s.AddDensity(5, 5, Color{G: 2}) }); err != nil {
		t.Fatal(err)
	}
	_, before, _, _ := e.Density().Value(5, 5)

	e.Mailbox().Update(func(imp *Impulse) {
		imp.X, imp.Y, imp.Radius = 0.5, 0.5, 3
		imp.DX = float32(math.NaN())
		imp.AddVelocity = true
	})
	err := e.Step()
	if !errors.Is(err, ErrNonFinite) {
		t.Fatalf("Step() error = %v, want ErrNonFinite", err)
	}
	if _, g, _, _ := e.Density().Value(5, 5); g != before {
		t.Errorf("published density = %v, want previous frame %v", g, before)
	}

	e.Mailbox().Update(func(imp *Impulse) { imp.AddVelocity = false })
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	st := e.Stats()
	if st.TotalDensity != 0 || st.MaxSpeed != 0 {
		t.Errorf("stats after reset = %+v, want empty fields", st)
	}
}

func TestEditSeedsFields(t *testing.T) {
	e := newTestEngine(t, smallConfig())
	err := e.Edit(func(s *Snapshot) {
		s.SetVelocity(1, 2, 3, 4)
		s.AddDensity(1, 2, Color{R: 0.5, G: 0.25, B: 1})
	})
	if err != nil {
		t.Fatal(err)
	}
	if u, v, _ := e.Velocity().Value(1, 2); u != 3 || v != 4 {
		t.Errorf("velocity = (%v, %v), want (3, 4)", u, v)
	}
	if r, g, b, _ := e.Density().Value(1, 2); r != 0.5 || g != 0.25 || b != 1 {
		t.Errorf("density = (%v, %v, %v), want (0.5, 0.25, 1)", r, g, b)
	}
	if m, _ := e.VelocityMagnitude().Value(1, 2); m != 5 {
		t.Errorf("speed = %v, want 5", m)
	}
}

func TestSnapshotAccessorsPanicOutOfRange(t *testing.T) {
	s := NewSnapshot(3, 3)
	defer func() {
		if recover() == nil {
			t.Error("expected panic for out-of-range cell")
		}
	}()
	s.SetVelocity(3, 0, 1, 1)
}

func TestResetClearsFields(t *testing.T) {
	e := newTestEngine(t, smallConfig())
	if err := e.Edit(func(s *Snapshot) { s.AddDensity(0, 0, Color{1, 1, 1}) }); err != nil {
		t.Fatal(err)
	}
	if err := e.Reset(); err != nil {
		t.Fatal(err)
	}
	if d := e.Density(); d.MaxValue != 0 {
		t.Errorf("max density after reset = %v, want 0", d.MaxValue)
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	if st := e.Stats(); st.TotalDensity != 0 {
		t.Errorf("total density = %v, want 0", st.TotalDensity)
	}
}

func TestClosedEngine(t *testing.T) {
	e, err := New(smallConfig())
	if err != nil {
		t.Fatal(err)
	}
	if err := e.Close(); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(); !errors.Is(err, ErrClosed) {
		t.Errorf("Step() error = %v, want ErrClosed", err)
	}
	if err := e.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestDensityPersistsUnderDissipation(t *testing.T) {
	cfg := smallConfig()
	cfg.DensityDissipation = 1
	e := newTestEngine(t, cfg)
	if err := e.Edit(func(s *Snapshot) { s.AddDensity(4, 4, Color{R: 1}) }); err != nil {
		t.Fatal(err)
	}
	if err := e.Step(); err != nil {
		t.Fatal(err)
	}
	r, _, _, _ := e.Density().Value(4, 4)
	want := float32(math.Exp(-0.1))
	if math.Abs(float64(r-want)) > 1e-5 {
		t.Errorf("density = %v, want %v", r, want)
	}
}

func TestStageString(t *testing.T) {
	if got := StageSolvePressure.String(); got != "solve-pressure" {
		t.Errorf("String() = %q", got)
	}
	if got := Stage(42).String(); got != "Stage(42)" {
		t.Errorf("String() = %q", got)
	}
}
