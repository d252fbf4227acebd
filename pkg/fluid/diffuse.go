package fluid

// diffusionAlpha returns dx²/(ν·dt) for a unit cell. ok is false when the
// diffusion stage should be skipped.
func diffusionAlpha(viscosity, dt float32) (alpha float32, ok bool) {
	if viscosity == 0 {
		return 0, false
	}
	return 1 / (viscosity * dt), true
}

// diffuseIteration performs one Jacobi step of (I - ν·dt·∇²)x = b:
//
//	x' = (α·b + Σ neighbours of x) / (4 + α)
//
// Neighbours outside the grid clamp to the nearest edge cell.
func diffuseIteration(dst, x, b *Buffer, w, h int, alpha float32, run rangeFunc) {
	inv := 1 / (4 + alpha)
	for c := range x.Planes {
		xp := x.Planes[c]
		bp := b.Planes[c]
		out := dst.Planes[c]
		run(0, h, func(j int) {
			up := max(j-1, 0) * w
			down := min(j+1, h-1) * w
			row := j * w
			for i := 0; i < w; i++ {
				left := max(i-1, 0)
				right := min(i+1, w-1)
				sum := xp[row+left] + xp[row+right] + xp[up+i] + xp[down+i]
				out[row+i] = (alpha*bp[row+i] + sum) * inv
			}
		})
	}
}
