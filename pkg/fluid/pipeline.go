package fluid

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConfig      = errors.New("invalid fluid configuration")
	ErrNonFinite          = errors.New("non-finite field value")
	ErrBackendUnavailable = errors.New("compute backend unavailable")
	ErrClosed             = errors.New("engine closed")
)

// Stage is one step of the per-tick pipeline.
type Stage int

const (
	StageAdvectVelocity Stage = iota
	StageAdvectDensity
	StageDiffuseVelocity
	StageInjectForces
	StageComputeDivergence
	StageSolvePressure
	StageSubtractGradient
	StageReady
)

var stageNames = [...]string{
	StageAdvectVelocity:    "advect-velocity",
	StageAdvectDensity:     "advect-density",
	StageDiffuseVelocity:   "diffuse-velocity",
	StageInjectForces:      "inject-forces",
	StageComputeDivergence: "compute-divergence",
	StageSolvePressure:     "solve-pressure",
	StageSubtractGradient:  "subtract-gradient",
	StageReady:             "ready",
}

func (s Stage) String() string {
	if s < 0 || int(s) >= len(stageNames) {
		return fmt.Sprintf("Stage(%d)", int(s))
	}
	return stageNames[s]
}

// StageError reports the stage at which a tick was discarded.
type StageError struct {
	Tick  uint64
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("tick %d: %s: %v", e.Tick, e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// StageObserver is notified as a tick moves through its stages.
type StageObserver interface {
	StartTick()
	StartPhase(name string)
	EndTick()
}

type nopObserver struct{}

func (nopObserver) StartTick()        {}
func (nopObserver) StartPhase(string) {}
func (nopObserver) EndTick()          {}

// tickParams are the tunables and impulse snapshot for one tick.
type tickParams struct {
	dt             float32
	viscosity      float32
	dissipation    float32
	diffusionIters int
	pressureIters  int
	impulse        Impulse
}

// runPipeline drives one tick through every stage on b. It stops at the first
// failing stage.
func runPipeline(b Backend, p tickParams, obs StageObserver) (Stage, error) {
	stage := StageAdvectVelocity
	obs.StartPhase(stage.String())
	if err := b.AdvectVelocity(p.dt); err != nil {
		return stage, err
	}

	stage = StageAdvectDensity
	obs.StartPhase(stage.String())
	decay := dissipationFactor(p.dissipation, p.dt)
	if err := b.AdvectDensity(p.dt, decay); err != nil {
		return stage, err
	}

	stage = StageDiffuseVelocity
	if alpha, ok := diffusionAlpha(p.viscosity, p.dt); ok && p.diffusionIters > 0 {
		obs.StartPhase(stage.String())
		if err := b.BeginDiffusion(); err != nil {
			return stage, err
		}
		for k := 0; k < p.diffusionIters; k++ {
			if err := b.DiffuseIteration(alpha); err != nil {
				return stage, err
			}
		}
	}

	stage = StageInjectForces
	if p.impulse.active() {
		obs.StartPhase(stage.String())
		if err := b.Inject(p.impulse, p.dt); err != nil {
			return stage, err
		}
	}

	stage = StageComputeDivergence
	obs.StartPhase(stage.String())
	if err := b.ComputeDivergence(); err != nil {
		return stage, err
	}

	stage = StageSolvePressure
	obs.StartPhase(stage.String())
	if err := b.ClearPressure(); err != nil {
		return stage, err
	}
	for k := 0; k < p.pressureIters; k++ {
		if err := b.PressureIteration(); err != nil {
			return stage, err
		}
	}

	stage = StageSubtractGradient
	obs.StartPhase(stage.String())
	if err := b.SubtractGradient(); err != nil {
		return stage, err
	}
	return StageReady, nil
}
