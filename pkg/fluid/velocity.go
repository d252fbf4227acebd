package fluid

import "math"

func sqrt32(v float32) float32 {
	return float32(math.Sqrt(float64(v)))
}

func velocityField(w, h int, buf *Buffer) VectorField {
	return VectorField{
		NumX:    w,
		NumY:    h,
		valuesU: buf.Planes[0],
		valuesV: buf.Planes[1],
	}
}
