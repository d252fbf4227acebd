package fluid

// cpuBackend runs every pass on goroutines over the rows of a Store.
type cpuBackend struct {
	store *Store
	pool  *workerPool
	run   rangeFunc

	velCheckpoint  *Buffer
	densCheckpoint *Buffer
}

func newCPUBackend(w, h, workers int) (*cpuBackend, error) {
	store, err := NewStore(w, h)
	if err != nil {
		return nil, err
	}
	size := w * h
	b := &cpuBackend{
		store:          store,
		velCheckpoint:  newBuffer(FieldVelocity.Components(), size),
		densCheckpoint: newBuffer(FieldDensity.Components(), size),
	}
	switch {
	case workers == 1:
		b.run = serialRange
	case h < parallelThreshold:
		b.run = parallelRange
	default:
		b.pool = newWorkerPool(workers)
		b.pool.start()
		b.run = b.pool.parallelRange
	}
	return b, nil
}

func (b *cpuBackend) Name() string { return BackendCPU }

func (b *cpuBackend) AdvectVelocity(dt float32) error {
	s := b.store
	vel := s.Current(FieldVelocity)
	advect(s.Scratch(FieldVelocity), vel, vel, s.W, s.H, dt, b.run)
	s.Swap(FieldVelocity)
	return nil
}

func (b *cpuBackend) AdvectDensity(dt, decay float32) error {
	s := b.store
	dst := s.Scratch(FieldDensity)
	advect(dst, s.Current(FieldDensity), s.Current(FieldVelocity), s.W, s.H, dt, b.run)
	if decay != 1 {
		scaleBuffer(dst, decay)
	}
	s.Swap(FieldDensity)
	return nil
}

func (b *cpuBackend) BeginDiffusion() error {
	copyBuffer(b.store.Current(FieldViscousSource), b.store.Current(FieldVelocity))
	return nil
}

func (b *cpuBackend) DiffuseIteration(alpha float32) error {
	s := b.store
	diffuseIteration(s.Scratch(FieldVelocity), s.Current(FieldVelocity), s.Current(FieldViscousSource), s.W, s.H, alpha, b.run)
	s.Swap(FieldVelocity)
	return nil
}

func (b *cpuBackend) Inject(imp Impulse, dt float32) error {
	s := b.store
	gx, gy := gridPoint(imp.X, imp.Y, s.W, s.H)
	if imp.AddVelocity {
		splat(s.Scratch(FieldVelocity), s.Current(FieldVelocity), s.W, s.H, gx, gy, imp.Radius,
			[]float32{imp.DX, imp.DY}, dt, b.run)
		s.Swap(FieldVelocity)
	}
	if imp.AddDensity {
		splat(s.Scratch(FieldDensity), s.Current(FieldDensity), s.W, s.H, gx, gy, imp.Radius,
			[]float32{imp.Color.R, imp.Color.G, imp.Color.B}, dt, b.run)
		s.Swap(FieldDensity)
	}
	return nil
}

func (b *cpuBackend) ComputeDivergence() error {
	s := b.store
	computeDivergence(s.Scratch(FieldDivergence), s.Current(FieldVelocity), s.W, s.H, b.run)
	s.Swap(FieldDivergence)
	return nil
}

func (b *cpuBackend) ClearPressure() error {
	b.store.Clear(FieldPressure)
	return nil
}

func (b *cpuBackend) PressureIteration() error {
	s := b.store
	pressureIteration(s.Scratch(FieldPressure), s.Current(FieldPressure), s.Current(FieldDivergence), s.W, s.H, b.run)
	s.Swap(FieldPressure)
	return nil
}

func (b *cpuBackend) SubtractGradient() error {
	s := b.store
	subtractGradient(s.Scratch(FieldVelocity), s.Current(FieldVelocity), s.Current(FieldPressure), s.W, s.H, b.run)
	s.Swap(FieldVelocity)
	return nil
}

func (b *cpuBackend) Checkpoint() error {
	copyBuffer(b.velCheckpoint, b.store.Current(FieldVelocity))
	copyBuffer(b.densCheckpoint, b.store.Current(FieldDensity))
	return nil
}

func (b *cpuBackend) Restore() error {
	copyBuffer(b.store.Current(FieldVelocity), b.velCheckpoint)
	copyBuffer(b.store.Current(FieldDensity), b.densCheckpoint)
	return nil
}

func (b *cpuBackend) Reset() error {
	b.store.ClearAll()
	b.velCheckpoint.zero()
	b.densCheckpoint.zero()
	return nil
}

func (b *cpuBackend) ReadFields(snap *Snapshot) error {
	copyBuffer(snap.Velocity, b.store.Current(FieldVelocity))
	copyBuffer(snap.Density, b.store.Current(FieldDensity))
	copyBuffer(snap.Divergence, b.store.Current(FieldDivergence))
	return nil
}

func (b *cpuBackend) WriteFields(snap *Snapshot) error {
	copyBuffer(b.store.Current(FieldVelocity), snap.Velocity)
	copyBuffer(b.store.Current(FieldDensity), snap.Density)
	return nil
}

func (b *cpuBackend) Close() error {
	if b.pool != nil {
		b.pool.stop()
	}
	return nil
}
