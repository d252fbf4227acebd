// Package config loads the YAML configuration shared by the host programs.
package config

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/TheFellow/stablefluid/pkg/fluid"
	"github.com/TheFellow/stablefluid/pkg/interaction"
	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Grid        GridConfig        `yaml:"grid"`
	Solver      SolverConfig      `yaml:"solver"`
	Interaction InteractionConfig `yaml:"interaction"`
	Window      WindowConfig      `yaml:"window"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`

	// Derived values computed after loading
	Derived DerivedConfig `yaml:"-"`
}

type GridConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

type SolverConfig struct {
	DT                  float64 `yaml:"dt"`                   // seconds per tick
	Viscosity           float64 `yaml:"viscosity"`            // 0 disables diffusion
	DiffusionIterations int     `yaml:"diffusion_iterations"` // Jacobi sweeps for viscosity
	PressureIterations  int     `yaml:"pressure_iterations"`  // Jacobi sweeps for projection
	DensityDissipation  float64 `yaml:"density_dissipation"`  // per-second density fade
	Backend             string  `yaml:"backend"`              // cpu or opencl
	Workers             int     `yaml:"workers"`              // 0 = GOMAXPROCS
}

type InteractionConfig struct {
	RadiusFraction float64 `yaml:"radius_fraction"` // of the shorter viewport side
	VelocityScale  float64 `yaml:"velocity_scale"`
	Palette        string  `yaml:"palette"`
	Seed           uint64  `yaml:"seed"`
}

type WindowConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
	TPS    int `yaml:"tps"`
}

type TelemetryConfig struct {
	OutputDir string  `yaml:"output_dir"` // empty disables CSV output
	Window    float64 `yaml:"window"`     // seconds per aggregated record
}

type DerivedConfig struct {
	// WindowTicks is the telemetry window measured in ticks.
	WindowTicks int
	// CellW, CellH are window pixels per grid cell.
	CellW, CellH float64
}

// Load reads the embedded defaults and overlays the file at path, if any.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Only keys present in the file are overwritten.
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.computeDerived()
	return cfg, nil
}

// Validate checks the settings that are not covered by fluid.Config.
func (c *Config) Validate() error {
	if err := c.Engine().Validate(); err != nil {
		return fmt.Errorf("solver: %w", err)
	}
	if c.Interaction.RadiusFraction <= 0 {
		return fmt.Errorf("interaction: radius_fraction %v must be positive", c.Interaction.RadiusFraction)
	}
	if c.Window.Width <= 0 || c.Window.Height <= 0 {
		return fmt.Errorf("window: %dx%d must be positive", c.Window.Width, c.Window.Height)
	}
	if c.Window.TPS <= 0 {
		return fmt.Errorf("window: tps %d must be positive", c.Window.TPS)
	}
	if c.Telemetry.Window < 0 {
		return fmt.Errorf("telemetry: window %v must not be negative", c.Telemetry.Window)
	}
	return nil
}

func (c *Config) computeDerived() {
	c.Derived.WindowTicks = max(1, int(c.Telemetry.Window/c.Solver.DT+0.5))
	c.Derived.CellW = float64(c.Window.Width) / float64(c.Grid.Width)
	c.Derived.CellH = float64(c.Window.Height) / float64(c.Grid.Height)
}

// Engine maps the grid and solver sections to an engine configuration.
func (c *Config) Engine() fluid.Config {
	return fluid.Config{
		Width:               c.Grid.Width,
		Height:              c.Grid.Height,
		Timestep:            float32(c.Solver.DT),
		Viscosity:           float32(c.Solver.Viscosity),
		DiffusionIterations: c.Solver.DiffusionIterations,
		PressureIterations:  c.Solver.PressureIterations,
		DensityDissipation:  float32(c.Solver.DensityDissipation),
		Backend:             c.Solver.Backend,
		Workers:             c.Solver.Workers,
	}
}

// Tracker maps the interaction section to tracker settings.
func (c *Config) Tracker() interaction.Settings {
	return interaction.Settings{
		RadiusFraction: float32(c.Interaction.RadiusFraction),
		VelocityScale:  float32(c.Interaction.VelocityScale),
		Palette:        c.Interaction.Palette,
		Seed:           c.Interaction.Seed,
	}
}

// WriteYAML saves the effective configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
