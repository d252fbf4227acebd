package fluid

import (
	"fmt"
	"math"
)

// ScalarField is a read-only W×H view of one scalar quantity.
type ScalarField struct {
	NumX, NumY         int
	MinValue, MaxValue float32
	values             []float32
}

func newScalarField(w, h int, values []float32) ScalarField {
	minValue := float32(math.MaxFloat32)
	maxValue := float32(-math.MaxFloat32)
	for _, v := range values {
		minValue = min(minValue, v)
		maxValue = max(maxValue, v)
	}
	return ScalarField{
		NumX:     w,
		NumY:     h,
		MinValue: minValue,
		MaxValue: maxValue,
		values:   values,
	}
}

func (s ScalarField) Value(i, j int) (float32, error) {
	if i < 0 || i >= s.NumX {
		return 0.0, fmt.Errorf("x index out of range, must be between 0 and %d", s.NumX-1)
	}
	if j < 0 || j >= s.NumY {
		return 0.0, fmt.Errorf("y index out of range, must be between 0 and %d", s.NumY-1)
	}

	return s.values[j*s.NumX+i], nil
}
