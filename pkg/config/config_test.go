package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/TheFellow/stablefluid/pkg/fluid"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.Width != 160 || cfg.Grid.Height != 96 {
		t.Errorf("grid = %dx%d, want 160x96", cfg.Grid.Width, cfg.Grid.Height)
	}
	if cfg.Solver.PressureIterations != 20 {
		t.Errorf("pressure iterations = %d, want 20", cfg.Solver.PressureIterations)
	}
	if cfg.Derived.WindowTicks != 120 {
		t.Errorf("window ticks = %d, want 120", cfg.Derived.WindowTicks)
	}
	if cfg.Derived.CellW != 6 {
		t.Errorf("cell width = %v, want 6", cfg.Derived.CellW)
	}
	e, err := fluid.New(cfg.Engine())
	if err != nil {
		t.Fatalf("engine from defaults: %v", err)
	}
	e.Close()
}

func TestLoadOverlaysUserFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fluid.yaml")
	data := []byte("grid:\n  width: 64\nsolver:\n  viscosity: 0\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Grid.Width != 64 || cfg.Grid.Height != 96 {
		t.Errorf("grid = %dx%d, want 64x96", cfg.Grid.Width, cfg.Grid.Height)
	}
	if cfg.Solver.Viscosity != 0 || cfg.Solver.DiffusionIterations != 8 {
		t.Errorf("solver = %+v, want only viscosity overridden", cfg.Solver)
	}
}

func TestLoadRejectsInvalidSolver(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("solver:\n  dt: -1\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, fluid.ErrInvalidConfig) {
		t.Errorf("Load() error = %v, want ErrInvalidConfig", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	cfg.Interaction.Palette = "viridis"
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := cfg.WriteYAML(path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Interaction.Palette != "viridis" || back.Solver != cfg.Solver {
		t.Errorf("reloaded config differs: %+v", back)
	}
}
