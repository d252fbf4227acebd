package fluid

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sync"
)

// Config fixes the grid and solver settings for the lifetime of an Engine.
type Config struct {
	Width, Height int

	// Timestep and Viscosity seed the impulse record. Each tick reads the
	// values currently held there.
	Timestep  float32
	Viscosity float32

	DiffusionIterations int
	PressureIterations  int

	// DensityDissipation fades density by exp(-rate·dt) per tick.
	DensityDissipation float32

	Backend string
	// Workers bounds the CPU worker pool. Zero uses GOMAXPROCS.
	Workers int
}

// DefaultConfig returns a 128×128 grid with 8 diffusion and 20 pressure
// iterations.
func DefaultConfig() Config {
	return Config{
		Width:               128,
		Height:              128,
		Timestep:            1.0 / 60,
		Viscosity:           0.0001,
		DiffusionIterations: 8,
		PressureIterations:  20,
		Backend:             BackendCPU,
	}
}

func isFinite(v float32) bool {
	return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
}

func validateTunables(dt, viscosity float32) error {
	if !isFinite(dt) || dt <= 0 {
		return fmt.Errorf("%w: timestep %v must be positive", ErrInvalidConfig, dt)
	}
	if !isFinite(viscosity) || viscosity < 0 {
		return fmt.Errorf("%w: viscosity %v must be non-negative", ErrInvalidConfig, viscosity)
	}
	return nil
}

func (c Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("%w: grid %dx%d must be positive", ErrInvalidConfig, c.Width, c.Height)
	}
	if err := validateTunables(c.Timestep, c.Viscosity); err != nil {
		return err
	}
	if c.DiffusionIterations < 0 {
		return fmt.Errorf("%w: diffusion iterations %d must not be negative", ErrInvalidConfig, c.DiffusionIterations)
	}
	if c.PressureIterations <= 0 {
		return fmt.Errorf("%w: pressure iterations %d must be positive", ErrInvalidConfig, c.PressureIterations)
	}
	if !isFinite(c.DensityDissipation) || c.DensityDissipation < 0 {
		return fmt.Errorf("%w: density dissipation %v must be non-negative", ErrInvalidConfig, c.DensityDissipation)
	}
	if c.Workers < 0 {
		return fmt.Errorf("%w: workers %d must not be negative", ErrInvalidConfig, c.Workers)
	}
	return nil
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithObserver reports stage transitions of every tick to obs.
func WithObserver(obs StageObserver) Option {
	return func(e *Engine) { e.obs = obs }
}

// WithBackend replaces the backend selected by Config.Backend. The engine
// takes ownership of b.
func WithBackend(b Backend) Option {
	return func(e *Engine) { e.backend = b }
}

// Engine owns the fields and advances them one tick at a time. Step, Reset,
// Edit and Close must be called from a single goroutine; the Mailbox may be
// written from any goroutine.
type Engine struct {
	cfg     Config
	backend Backend
	mailbox *Mailbox
	log     *slog.Logger
	obs     StageObserver

	tick   uint64
	closed bool

	pending *Snapshot
	scratch *Buffer

	mu        sync.RWMutex
	published *Snapshot
	stats     Stats
}

// New validates cfg and allocates the fields on the configured backend.
func New(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{
		cfg: cfg,
		mailbox: NewMailbox(Impulse{
			Timestep:  cfg.Timestep,
			Viscosity: cfg.Viscosity,
		}),
		log:       slog.New(slog.NewTextHandler(io.Discard, nil)),
		obs:       nopObserver{},
		pending:   NewSnapshot(cfg.Width, cfg.Height),
		published: NewSnapshot(cfg.Width, cfg.Height),
		scratch:   newBuffer(1, cfg.Width*cfg.Height),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.backend == nil {
		b, err := newBackend(cfg)
		if err != nil {
			return nil, fmt.Errorf("creating %s backend: %w", cfg.Backend, err)
		}
		e.backend = b
	}
	e.log.Info("fluid engine ready",
		"backend", e.backend.Name(),
		"width", cfg.Width,
		"height", cfg.Height,
		"workers", cfg.Workers,
		"diffusion_iterations", cfg.DiffusionIterations,
		"pressure_iterations", cfg.PressureIterations)
	return e, nil
}

func (e *Engine) Width() int  { return e.cfg.Width }
func (e *Engine) Height() int { return e.cfg.Height }

// Mailbox returns the impulse record read at the start of every tick.
func (e *Engine) Mailbox() *Mailbox { return e.mailbox }

// Step advances the simulation by one tick. A failed tick leaves the fields
// as they were before it and the previous frame published.
func (e *Engine) Step() error {
	if e.closed {
		return ErrClosed
	}
	imp := e.mailbox.Load()
	if err := validateTunables(imp.Timestep, imp.Viscosity); err != nil {
		return err
	}
	tick := e.tick + 1

	e.obs.StartTick()
	defer e.obs.EndTick()

	if err := e.backend.Checkpoint(); err != nil {
		return &StageError{Tick: tick, Stage: StageAdvectVelocity, Err: err}
	}
	stage, err := runPipeline(e.backend, tickParams{
		dt:             imp.Timestep,
		viscosity:      imp.Viscosity,
		dissipation:    e.cfg.DensityDissipation,
		diffusionIters: e.cfg.DiffusionIterations,
		pressureIters:  e.cfg.PressureIterations,
		impulse:        imp,
	}, e.obs)
	if err == nil {
		e.obs.StartPhase(StageReady.String())
		err = e.backend.ReadFields(e.pending)
	}
	if err == nil && !(finite(e.pending.Velocity) && finite(e.pending.Density)) {
		err = ErrNonFinite
	}
	if err != nil {
		return e.discard(tick, stage, err)
	}

	e.tick = tick
	st := Stats{Tick: tick}
	measure(&st, e.pending, e.scratch)
	e.publish(st)
	return nil
}

func (e *Engine) discard(tick uint64, stage Stage, err error) error {
	serr := &StageError{Tick: tick, Stage: stage, Err: err}
	if errors.Is(err, ErrNonFinite) {
		e.log.Warn("non-finite fields, resetting", "tick", tick, "stage", stage.String())
		if rerr := e.backend.Reset(); rerr != nil {
			return errors.Join(serr, rerr)
		}
		return serr
	}
	e.log.Warn("tick discarded", "tick", tick, "stage", stage.String(), "err", err)
	if rerr := e.backend.Restore(); rerr != nil {
		e.log.Warn("restore failed, resetting", "tick", tick, "err", rerr)
		return errors.Join(serr, rerr, e.backend.Reset())
	}
	return serr
}

func (e *Engine) publish(st Stats) {
	e.mu.Lock()
	e.pending, e.published = e.published, e.pending
	e.stats = st
	e.mu.Unlock()
}

// Density returns the last published density frame. The frame stays valid
// until the next successful Step.
func (e *Engine) Density() DensityField {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return newDensityField(e.cfg.Width, e.cfg.Height, e.published.Density)
}

// Velocity returns the velocity published with the last density frame.
func (e *Engine) Velocity() VectorField {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return velocityField(e.cfg.Width, e.cfg.Height, e.published.Velocity)
}

func (e *Engine) VelocityMagnitude() ScalarField {
	return e.Velocity().Magnitude()
}

func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stats
}

// Reset zero-fills every field and publishes an empty frame.
func (e *Engine) Reset() error {
	if e.closed {
		return ErrClosed
	}
	if err := e.backend.Reset(); err != nil {
		return fmt.Errorf("resetting %s backend: %w", e.backend.Name(), err)
	}
	e.pending.Reset()
	e.mu.Lock()
	e.published.Reset()
	e.stats = Stats{Tick: e.tick}
	e.mu.Unlock()
	e.log.Warn("fields reset", "tick", e.tick)
	return nil
}

// Edit reads the current fields into a snapshot, lets fn modify velocity and
// density, and writes them back. The edited density is published at once.
func (e *Engine) Edit(fn func(s *Snapshot)) error {
	if e.closed {
		return ErrClosed
	}
	if err := e.backend.ReadFields(e.pending); err != nil {
		return fmt.Errorf("reading fields: %w", err)
	}
	fn(e.pending)
	if err := e.backend.WriteFields(e.pending); err != nil {
		return fmt.Errorf("writing fields: %w", err)
	}
	st := Stats{Tick: e.tick}
	measure(&st, e.pending, e.scratch)
	e.publish(st)
	return nil
}

func (e *Engine) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.backend.Close()
}
