package fluid

import "math"

// sampleBilinear reads plane at the continuous cell-space position (x,y).
// Cell (i,j) has its centre at (i,j). Positions outside the grid clamp to
// the nearest edge; NaN clamps to zero.
func sampleBilinear(plane []float32, w, h int, x, y float32) float32 {
	if !(x > 0) {
		x = 0
	} else if x > float32(w-1) {
		x = float32(w - 1)
	}
	if !(y > 0) {
		y = 0
	} else if y > float32(h-1) {
		y = float32(h - 1)
	}

	x0 := int(math.Floor(float64(x)))
	y0 := int(math.Floor(float64(y)))
	x1 := min(x0+1, w-1)
	y1 := min(y0+1, h-1)
	tx := x - float32(x0)
	ty := y - float32(y0)
	sx := 1 - tx
	sy := 1 - ty

	return sx*sy*plane[y0*w+x0] +
		tx*sy*plane[y0*w+x1] +
		tx*ty*plane[y1*w+x1] +
		sx*ty*plane[y1*w+x0]
}

// advect writes into dst every plane of q transported backwards along the
// carrier velocity over dt. dst must not alias q or carrier.
func advect(dst, q, carrier *Buffer, w, h int, dt float32, run rangeFunc) {
	u := carrier.Planes[0]
	v := carrier.Planes[1]
	run(0, h, func(j int) {
		row := j * w
		for i := 0; i < w; i++ {
			cell := row + i
			x := float32(i) - u[cell]*dt
			y := float32(j) - v[cell]*dt
			for c := range q.Planes {
				dst.Planes[c][cell] = sampleBilinear(q.Planes[c], w, h, x, y)
			}
		}
	})
}
