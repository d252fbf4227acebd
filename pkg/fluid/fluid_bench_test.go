package fluid

import "testing"

func newBenchEngine(b *testing.B, backend string) *Engine {
	cfg := DefaultConfig()
	cfg.Width, cfg.Height = 256, 256
	cfg.Timestep = 1.0 / 120.0
	cfg.Backend = backend
	e, err := New(cfg)
	if err != nil {
		b.Skip(err)
	}
	b.Cleanup(func() { e.Close() })
	return e
}

func BenchmarkStep(b *testing.B) {
	e := newBenchEngine(b, BackendCPU)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Step(); err != nil {
			b.Fatal(err)
		}
	}
}

// With a drag held over the centre every tick.
func BenchmarkStepWithDrag(b *testing.B) {
	e := newBenchEngine(b, BackendCPU)
	e.Mailbox().Update(func(imp *Impulse) {
		imp.X, imp.Y = 0.5, 0.5
		imp.DX, imp.DY = 40, 10
		imp.Color = Color{R: 1, G: 0.6, B: 0.2}
		imp.Radius = 12
		imp.AddDensity = true
		imp.AddVelocity = true
	})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Step(); err != nil {
			b.Fatal(err)
		}
	}
}

// Skipped unless built with -tags opencl and a device is present.
func BenchmarkStepOpenCL(b *testing.B) {
	e := newBenchEngine(b, BackendOpenCL)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := e.Step(); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkPressureIteration(b *testing.B) {
	cpu, err := newCPUBackend(256, 256, 0)
	if err != nil {
		b.Fatal(err)
	}
	defer cpu.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		cpu.PressureIteration()
	}
}
