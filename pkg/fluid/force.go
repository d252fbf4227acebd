package fluid

import "math"

func smoothstep(edge0, edge1, x float32) float32 {
	t := (x - edge0) / (edge1 - edge0)
	t = min(max(t, 0), 1)
	return t * t * (3 - 2*t)
}

// falloff weights a cell at squared distance d2 from the impulse point.
// It is 1 at the point and reaches 0 at the radius.
func falloff(d2, r2 float32) float32 {
	return 1 - smoothstep(0, r2, d2)
}

// cellSpan returns the inclusive index range of cells within r of c along an
// axis of n cells. The range is clamped before it is converted to indices.
func cellSpan(c, r float32, n int) (lo, hi int, ok bool) {
	a := float64(c - r)
	b := float64(c + r)
	if math.IsNaN(a) || math.IsNaN(b) {
		return 0, 0, false
	}
	a = math.Max(math.Ceil(a), 0)
	b = math.Min(math.Floor(b), float64(n-1))
	if a > b {
		return 0, 0, false
	}
	return int(a), int(b), true
}

// gridPoint maps a normalized point to cell-centred grid coordinates.
func gridPoint(x, y float32, w, h int) (gx, gy float32) {
	return x*float32(w) - 0.5, y*float32(h) - 0.5
}

// splat writes src into dst and adds payload·falloff·dt to every cell within
// radius of (gx,gy). payload has one entry per plane. dst must not alias src.
func splat(dst, src *Buffer, w, h int, gx, gy, radius float32, payload []float32, dt float32, run rangeFunc) {
	dst.copyFrom(src)
	if !(radius > 0) {
		return
	}
	i0, i1, okX := cellSpan(gx, radius, w)
	j0, j1, okY := cellSpan(gy, radius, h)
	if !okX || !okY {
		return
	}
	r2 := radius * radius
	run(j0, j1+1, func(j int) {
		dy := float32(j) - gy
		for i := i0; i <= i1; i++ {
			dx := float32(i) - gx
			d2 := dx*dx + dy*dy
			if d2 > r2 {
				continue
			}
			weight := falloff(d2, r2) * dt
			cell := j*w + i
			for c, p := range payload {
				dst.Planes[c][cell] += p * weight
			}
		}
	})
}
