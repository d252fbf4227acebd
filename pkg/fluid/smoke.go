package fluid

import "fmt"

// DensityField is the published RGB density frame.
type DensityField struct {
	NumX, NumY int
	// MaxValue is the largest channel value in the frame.
	MaxValue float32
	r, g, b  []float32
}

func newDensityField(w, h int, buf *Buffer) DensityField {
	d := DensityField{
		NumX: w,
		NumY: h,
		r:    buf.Planes[0],
		g:    buf.Planes[1],
		b:    buf.Planes[2],
	}
	for _, p := range buf.Planes {
		for _, v := range p {
			d.MaxValue = max(d.MaxValue, v)
		}
	}
	return d
}

func (d DensityField) Value(i, j int) (r, g, b float32, err error) {
	if i < 0 || i >= d.NumX {
		return 0, 0, 0, fmt.Errorf("x index out of range, must be between 0 and %d", d.NumX-1)
	}
	if j < 0 || j >= d.NumY {
		return 0, 0, 0, fmt.Errorf("y index out of range, must be between 0 and %d", d.NumY-1)
	}
	cell := j*d.NumX + i
	return d.r[cell], d.g[cell], d.b[cell], nil
}

// RGBA writes the frame as 8-bit RGBA pixels into pix, which must hold
// 4·NumX·NumY bytes. Channels saturate at 1.
func (d DensityField) RGBA(pix []byte) {
	for cell := range d.r {
		o := cell * 4
		pix[o] = toByte(d.r[cell])
		pix[o+1] = toByte(d.g[cell])
		pix[o+2] = toByte(d.b[cell])
		pix[o+3] = 0xff
	}
}

func toByte(v float32) byte {
	if !(v > 0) {
		return 0
	}
	if v >= 1 {
		return 0xff
	}
	return byte(v * 255)
}
