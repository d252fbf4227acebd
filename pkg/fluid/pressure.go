package fluid

// computeDivergence writes the central-difference divergence of vel into div.
func computeDivergence(div, vel *Buffer, w, h int, run rangeFunc) {
	u := vel.Planes[0]
	v := vel.Planes[1]
	out := div.Planes[0]
	run(0, h, func(j int) {
		up := max(j-1, 0) * w
		down := min(j+1, h-1) * w
		row := j * w
		for i := 0; i < w; i++ {
			left := max(i-1, 0)
			right := min(i+1, w-1)
			out[row+i] = 0.5 * ((u[row+right] - u[row+left]) + (v[down+i] - v[up+i]))
		}
	})
}

// pressureIteration performs one Jacobi step of ∇²p = div:
//
//	p' = (Σ neighbours of p - div) / 4
func pressureIteration(dst, p, div *Buffer, w, h int, run rangeFunc) {
	pp := p.Planes[0]
	d := div.Planes[0]
	out := dst.Planes[0]
	run(0, h, func(j int) {
		up := max(j-1, 0) * w
		down := min(j+1, h-1) * w
		row := j * w
		for i := 0; i < w; i++ {
			left := max(i-1, 0)
			right := min(i+1, w-1)
			sum := pp[row+left] + pp[row+right] + pp[up+i] + pp[down+i]
			out[row+i] = (sum - d[row+i]) * 0.25
		}
	})
}

// subtractGradient writes vel - 0.5·∇p into dst.
func subtractGradient(dst, vel, p *Buffer, w, h int, run rangeFunc) {
	u := vel.Planes[0]
	v := vel.Planes[1]
	pp := p.Planes[0]
	outU := dst.Planes[0]
	outV := dst.Planes[1]
	run(0, h, func(j int) {
		up := max(j-1, 0) * w
		down := min(j+1, h-1) * w
		row := j * w
		for i := 0; i < w; i++ {
			left := max(i-1, 0)
			right := min(i+1, w-1)
			cell := row + i
			outU[cell] = u[cell] - 0.5*(pp[row+right]-pp[row+left])
			outV[cell] = v[cell] - 0.5*(pp[down+i]-pp[up+i])
		}
	})
}
