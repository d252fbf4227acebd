package fluid

import "fmt"

// Backend runs the per-tick passes on some compute substrate. Every method is
// a full barrier: when it returns, the pass has completed and the roles of the
// affected buffer pair have swapped.
type Backend interface {
	Name() string

	AdvectVelocity(dt float32) error
	// AdvectDensity transports density along the current velocity and
	// multiplies the result by decay.
	AdvectDensity(dt, decay float32) error
	// BeginDiffusion latches the current velocity as the right-hand side of
	// the viscous solve.
	BeginDiffusion() error
	DiffuseIteration(alpha float32) error
	Inject(imp Impulse, dt float32) error
	ComputeDivergence() error
	ClearPressure() error
	PressureIteration() error
	SubtractGradient() error

	// Checkpoint saves velocity and density so Restore can undo a failed tick.
	Checkpoint() error
	Restore() error
	// Reset zero-fills every field.
	Reset() error

	ReadFields(s *Snapshot) error
	WriteFields(s *Snapshot) error
	Close() error
}

const (
	BackendCPU    = "cpu"
	BackendOpenCL = "opencl"
)

func newBackend(cfg Config) (Backend, error) {
	switch cfg.Backend {
	case "", BackendCPU:
		return newCPUBackend(cfg.Width, cfg.Height, cfg.Workers)
	case BackendOpenCL:
		return newOpenCLBackend(cfg.Width, cfg.Height)
	}
	return nil, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Backend)
}
