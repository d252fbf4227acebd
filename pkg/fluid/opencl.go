//go:build opencl

package fluid

import (
	"errors"
	"fmt"
	"strings"
	"unsafe"

	"github.com/jgillich/go-opencl/cl"
)

// Fields live on the device as one buffer per pair role, with the planes of
// a multi-component field laid out back to back.
const fluidKernelSource = `
inline int clampi(int v, int lo, int hi) { return min(max(v, lo), hi); }

inline float sample_bilinear(__global const float* q, int w, int h, float x, float y)
{
    x = (x > 0.0f) ? min(x, (float)(w - 1)) : 0.0f;
    y = (y > 0.0f) ? min(y, (float)(h - 1)) : 0.0f;
    int x0 = (int)floor(x);
    int y0 = (int)floor(y);
    int x1 = min(x0 + 1, w - 1);
    int y1 = min(y0 + 1, h - 1);
    float tx = x - (float)x0;
    float ty = y - (float)y0;
    float sx = 1.0f - tx;
    float sy = 1.0f - ty;
    return sx * sy * q[y0 * w + x0] + tx * sy * q[y0 * w + x1] +
           tx * ty * q[y1 * w + x1] + sx * ty * q[y1 * w + x0];
}

__kernel void advect(const int w, const int h, const int comps,
                     const float dt, const float decay,
                     __global const float* q,
                     __global const float* carrier,
                     __global float* dst)
{
    int idx = get_global_id(0);
    int size = w * h;
    if (idx >= size) {
        return;
    }
    int i = idx % w;
    int j = idx / w;
    float x = (float)i - carrier[idx] * dt;
    float y = (float)j - carrier[size + idx] * dt;
    for (int c = 0; c < comps; c++) {
        dst[c * size + idx] = sample_bilinear(q + c * size, w, h, x, y) * decay;
    }
}

__kernel void splat(const int w, const int h, const int comps,
                    const float gx, const float gy, const float radius, const float dt,
                    const float p0, const float p1, const float p2,
                    __global const float* src,
                    __global float* dst)
{
    int idx = get_global_id(0);
    int size = w * h;
    if (idx >= size) {
        return;
    }
    float dx = (float)(idx % w) - gx;
    float dy = (float)(idx / w) - gy;
    float d2 = dx * dx + dy * dy;
    float r2 = radius * radius;
    float weight = 0.0f;
    if (radius > 0.0f && d2 <= r2) {
        weight = (1.0f - smoothstep(0.0f, r2, d2)) * dt;
    }
    float payload[3] = {p0, p1, p2};
    for (int c = 0; c < comps; c++) {
        dst[c * size + idx] = src[c * size + idx] + payload[c] * weight;
    }
}

__kernel void jacobi_diffuse(const int w, const int h, const int comps, const float alpha,
                             __global const float* x,
                             __global const float* b,
                             __global float* dst)
{
    int idx = get_global_id(0);
    int size = w * h;
    if (idx >= size) {
        return;
    }
    int i = idx % w;
    int j = idx / w;
    int l = j * w + clampi(i - 1, 0, w - 1);
    int r = j * w + clampi(i + 1, 0, w - 1);
    int u = clampi(j - 1, 0, h - 1) * w + i;
    int d = clampi(j + 1, 0, h - 1) * w + i;
    float inv = 1.0f / (4.0f + alpha);
    for (int c = 0; c < comps; c++) {
        int o = c * size;
        float sum = x[o + l] + x[o + r] + x[o + u] + x[o + d];
        dst[o + idx] = (alpha * b[o + idx] + sum) * inv;
    }
}

__kernel void divergence(const int w, const int h,
                         __global const float* vel,
                         __global float* dst)
{
    int idx = get_global_id(0);
    int size = w * h;
    if (idx >= size) {
        return;
    }
    int i = idx % w;
    int j = idx / w;
    int l = j * w + clampi(i - 1, 0, w - 1);
    int r = j * w + clampi(i + 1, 0, w - 1);
    int u = clampi(j - 1, 0, h - 1) * w + i;
    int d = clampi(j + 1, 0, h - 1) * w + i;
    dst[idx] = 0.5f * ((vel[r] - vel[l]) + (vel[size + d] - vel[size + u]));
}

__kernel void jacobi_pressure(const int w, const int h,
                              __global const float* p,
                              __global const float* div,
                              __global float* dst)
{
    int idx = get_global_id(0);
    int size = w * h;
    if (idx >= size) {
        return;
    }
    int i = idx % w;
    int j = idx / w;
    int l = j * w + clampi(i - 1, 0, w - 1);
    int r = j * w + clampi(i + 1, 0, w - 1);
    int u = clampi(j - 1, 0, h - 1) * w + i;
    int d = clampi(j + 1, 0, h - 1) * w + i;
    dst[idx] = (p[l] + p[r] + p[u] + p[d] - div[idx]) * 0.25f;
}

__kernel void subtract_gradient(const int w, const int h,
                                __global const float* vel,
                                __global const float* p,
                                __global float* dst)
{
    int idx = get_global_id(0);
    int size = w * h;
    if (idx >= size) {
        return;
    }
    int i = idx % w;
    int j = idx / w;
    int l = j * w + clampi(i - 1, 0, w - 1);
    int r = j * w + clampi(i + 1, 0, w - 1);
    int u = clampi(j - 1, 0, h - 1) * w + i;
    int d = clampi(j + 1, 0, h - 1) * w + i;
    dst[idx] = vel[idx] - 0.5f * (p[r] - p[l]);
    dst[size + idx] = vel[size + idx] - 0.5f * (p[d] - p[u]);
}

__kernel void fill_zero(const int n, __global float* buf)
{
    int idx = get_global_id(0);
    if (idx < n) {
        buf[idx] = 0.0f;
    }
}

__kernel void copy_buffer(const int n, __global const float* src, __global float* dst)
{
    int idx = get_global_id(0);
    if (idx < n) {
        dst[idx] = src[idx];
    }
}
`

var kernelNames = []string{
	"advect",
	"splat",
	"jacobi_diffuse",
	"divergence",
	"jacobi_pressure",
	"subtract_gradient",
	"fill_zero",
	"copy_buffer",
}

type clPair struct {
	current *cl.MemObject
	scratch *cl.MemObject
	comps   int
}

func (p *clPair) swap() { p.current, p.scratch = p.scratch, p.current }

type openCLBackend struct {
	context *cl.Context
	queue   *cl.CommandQueue
	program *cl.Program
	kernels map[string]*cl.Kernel

	pairs          [numFields]clPair
	velCheckpoint  *cl.MemObject
	densCheckpoint *cl.MemObject

	w, h       int
	deviceName string
}

func pickDevice() (*cl.Device, error) {
	platforms, err := cl.GetPlatforms()
	if err != nil {
		msg := "querying OpenCL platforms"
		if strings.Contains(err.Error(), "-1001") {
			msg += ": no ICD loader reported any platforms"
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrBackendUnavailable, msg, err)
	}
	for _, kind := range []cl.DeviceType{cl.DeviceTypeGPU, cl.DeviceTypeCPU} {
		for _, p := range platforms {
			devices, derr := p.GetDevices(kind)
			if derr != nil && derr != cl.ErrDeviceNotFound {
				continue
			}
			if len(devices) > 0 {
				return devices[0], nil
			}
		}
	}
	return nil, fmt.Errorf("%w: no suitable OpenCL devices found", ErrBackendUnavailable)
}

func newOpenCLBackend(w, h int) (Backend, error) {
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("%w: grid %dx%d must be positive", ErrInvalidConfig, w, h)
	}
	device, err := pickDevice()
	if err != nil {
		return nil, err
	}
	b := &openCLBackend{w: w, h: h, deviceName: device.Name(), kernels: make(map[string]*cl.Kernel)}

	b.context, err = cl.CreateContext([]*cl.Device{device})
	if err != nil {
		return nil, fmt.Errorf("creating OpenCL context: %w", err)
	}
	b.queue, err = b.context.CreateCommandQueue(device, 0)
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("creating OpenCL command queue: %w", err)
	}
	b.program, err = b.context.CreateProgramWithSource([]string{fluidKernelSource})
	if err != nil {
		b.Close()
		return nil, fmt.Errorf("creating OpenCL program: %w", err)
	}
	if err := b.program.BuildProgram([]*cl.Device{device}, ""); err != nil {
		b.Close()
		var buildErr cl.BuildError
		if errors.As(err, &buildErr) {
			return nil, fmt.Errorf("building OpenCL program: %s", string(buildErr))
		}
		return nil, fmt.Errorf("building OpenCL program: %w", err)
	}
	for _, name := range kernelNames {
		k, err := b.program.CreateKernel(name)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("creating %s kernel: %w", name, err)
		}
		b.kernels[name] = k
	}

	for id := FieldID(0); id < numFields; id++ {
		comps := id.Components()
		cur, err := b.alloc(comps)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("allocating %s buffer: %w", id, err)
		}
		b.pairs[id].current = cur
		b.pairs[id].comps = comps
		scr, err := b.alloc(comps)
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("allocating %s buffer: %w", id, err)
		}
		b.pairs[id].scratch = scr
	}
	if b.velCheckpoint, err = b.alloc(FieldVelocity.Components()); err != nil {
		b.Close()
		return nil, fmt.Errorf("allocating velocity checkpoint: %w", err)
	}
	if b.densCheckpoint, err = b.alloc(FieldDensity.Components()); err != nil {
		b.Close()
		return nil, fmt.Errorf("allocating density checkpoint: %w", err)
	}
	if err := b.Reset(); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *openCLBackend) size() int { return b.w * b.h }

func (b *openCLBackend) alloc(comps int) (*cl.MemObject, error) {
	bytes := comps * b.size() * int(unsafe.Sizeof(float32(0)))
	return b.context.CreateEmptyBuffer(cl.MemReadWrite, bytes)
}

func (b *openCLBackend) dispatch(name string, n int, args ...interface{}) error {
	k := b.kernels[name]
	if err := k.SetArgs(args...); err != nil {
		return fmt.Errorf("setting %s arguments: %w", name, err)
	}
	if _, err := b.queue.EnqueueNDRangeKernel(k, nil, []int{n}, nil, nil); err != nil {
		return fmt.Errorf("enqueueing %s: %w", name, err)
	}
	return nil
}

func (b *openCLBackend) Name() string { return BackendOpenCL + ":" + b.deviceName }

func (b *openCLBackend) AdvectVelocity(dt float32) error {
	p := &b.pairs[FieldVelocity]
	err := b.dispatch("advect", b.size(), int32(b.w), int32(b.h), int32(p.comps), dt, float32(1),
		p.current, p.current, p.scratch)
	if err != nil {
		return err
	}
	p.swap()
	return nil
}

func (b *openCLBackend) AdvectDensity(dt, decay float32) error {
	p := &b.pairs[FieldDensity]
	err := b.dispatch("advect", b.size(), int32(b.w), int32(b.h), int32(p.comps), dt, decay,
		p.current, b.pairs[FieldVelocity].current, p.scratch)
	if err != nil {
		return err
	}
	p.swap()
	return nil
}

func (b *openCLBackend) BeginDiffusion() error {
	n := FieldVelocity.Components() * b.size()
	return b.dispatch("copy_buffer", n, int32(n),
		b.pairs[FieldVelocity].current, b.pairs[FieldViscousSource].current)
}

func (b *openCLBackend) DiffuseIteration(alpha float32) error {
	p := &b.pairs[FieldVelocity]
	err := b.dispatch("jacobi_diffuse", b.size(), int32(b.w), int32(b.h), int32(p.comps), alpha,
		p.current, b.pairs[FieldViscousSource].current, p.scratch)
	if err != nil {
		return err
	}
	p.swap()
	return nil
}

func (b *openCLBackend) Inject(imp Impulse, dt float32) error {
	gx, gy := gridPoint(imp.X, imp.Y, b.w, b.h)
	splat := func(id FieldID, p0, p1, p2 float32) error {
		p := &b.pairs[id]
		err := b.dispatch("splat", b.size(), int32(b.w), int32(b.h), int32(p.comps),
			gx, gy, imp.Radius, dt, p0, p1, p2, p.current, p.scratch)
		if err != nil {
			return err
		}
		p.swap()
		return nil
	}
	if imp.AddVelocity {
		if err := splat(FieldVelocity, imp.DX, imp.DY, 0); err != nil {
			return err
		}
	}
	if imp.AddDensity {
		if err := splat(FieldDensity, imp.Color.R, imp.Color.G, imp.Color.B); err != nil {
			return err
		}
	}
	return nil
}

func (b *openCLBackend) ComputeDivergence() error {
	p := &b.pairs[FieldDivergence]
	err := b.dispatch("divergence", b.size(), int32(b.w), int32(b.h),
		b.pairs[FieldVelocity].current, p.scratch)
	if err != nil {
		return err
	}
	p.swap()
	return nil
}

func (b *openCLBackend) ClearPressure() error {
	return b.dispatch("fill_zero", b.size(), int32(b.size()), b.pairs[FieldPressure].current)
}

func (b *openCLBackend) PressureIteration() error {
	p := &b.pairs[FieldPressure]
	err := b.dispatch("jacobi_pressure", b.size(), int32(b.w), int32(b.h),
		p.current, b.pairs[FieldDivergence].current, p.scratch)
	if err != nil {
		return err
	}
	p.swap()
	return nil
}

func (b *openCLBackend) SubtractGradient() error {
	p := &b.pairs[FieldVelocity]
	err := b.dispatch("subtract_gradient", b.size(), int32(b.w), int32(b.h),
		p.current, b.pairs[FieldPressure].current, p.scratch)
	if err != nil {
		return err
	}
	p.swap()
	return nil
}

func (b *openCLBackend) copyDevice(dst, src *cl.MemObject, comps int) error {
	n := comps * b.size()
	return b.dispatch("copy_buffer", n, int32(n), src, dst)
}

func (b *openCLBackend) Checkpoint() error {
	if err := b.copyDevice(b.velCheckpoint, b.pairs[FieldVelocity].current, FieldVelocity.Components()); err != nil {
		return err
	}
	return b.copyDevice(b.densCheckpoint, b.pairs[FieldDensity].current, FieldDensity.Components())
}

func (b *openCLBackend) Restore() error {
	if err := b.copyDevice(b.pairs[FieldVelocity].current, b.velCheckpoint, FieldVelocity.Components()); err != nil {
		return err
	}
	return b.copyDevice(b.pairs[FieldDensity].current, b.densCheckpoint, FieldDensity.Components())
}

func (b *openCLBackend) Reset() error {
	zero := func(buf *cl.MemObject, comps int) error {
		n := comps * b.size()
		return b.dispatch("fill_zero", n, int32(n), buf)
	}
	for id := range b.pairs {
		p := &b.pairs[id]
		if err := zero(p.current, p.comps); err != nil {
			return err
		}
		if err := zero(p.scratch, p.comps); err != nil {
			return err
		}
	}
	if err := zero(b.velCheckpoint, FieldVelocity.Components()); err != nil {
		return err
	}
	return zero(b.densCheckpoint, FieldDensity.Components())
}

func (b *openCLBackend) ReadFields(s *Snapshot) error {
	read := func(buf *cl.MemObject, dst *Buffer, label string) error {
		planeBytes := b.size() * int(unsafe.Sizeof(float32(0)))
		for c, plane := range dst.Planes {
			if _, err := b.queue.EnqueueReadBufferFloat32(buf, true, c*planeBytes, plane, nil); err != nil {
				return fmt.Errorf("reading %s: %w", label, err)
			}
		}
		return nil
	}
	if err := read(b.pairs[FieldVelocity].current, s.Velocity, "velocity"); err != nil {
		return err
	}
	if err := read(b.pairs[FieldDensity].current, s.Density, "density"); err != nil {
		return err
	}
	return read(b.pairs[FieldDivergence].current, s.Divergence, "divergence")
}

func (b *openCLBackend) WriteFields(s *Snapshot) error {
	write := func(buf *cl.MemObject, src *Buffer, label string) error {
		planeBytes := b.size() * int(unsafe.Sizeof(float32(0)))
		for c, plane := range src.Planes {
			if _, err := b.queue.EnqueueWriteBufferFloat32(buf, true, c*planeBytes, plane, nil); err != nil {
				return fmt.Errorf("writing %s: %w", label, err)
			}
		}
		return nil
	}
	if err := write(b.pairs[FieldVelocity].current, s.Velocity, "velocity"); err != nil {
		return err
	}
	return write(b.pairs[FieldDensity].current, s.Density, "density")
}

func (b *openCLBackend) Close() error {
	release := func(m *cl.MemObject) {
		if m != nil {
			m.Release()
		}
	}
	release(b.densCheckpoint)
	release(b.velCheckpoint)
	for id := range b.pairs {
		release(b.pairs[id].scratch)
		release(b.pairs[id].current)
		b.pairs[id] = clPair{}
	}
	b.densCheckpoint, b.velCheckpoint = nil, nil
	for name, k := range b.kernels {
		k.Release()
		delete(b.kernels, name)
	}
	if b.program != nil {
		b.program.Release()
		b.program = nil
	}
	if b.queue != nil {
		b.queue.Release()
		b.queue = nil
	}
	if b.context != nil {
		b.context.Release()
		b.context = nil
	}
	return nil
}
