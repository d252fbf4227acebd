package fluid

import "fmt"

// VectorField is a read-only W×H view of the velocity field.
type VectorField struct {
	NumX, NumY       int
	valuesU, valuesV []float32
}

func (v VectorField) Value(i, j int) (float32, float32, error) {
	if i < 0 || i >= v.NumX {
		return 0.0, 0.0, fmt.Errorf("x index out of range, must be between 0 and %d", v.NumX-1)
	}
	if j < 0 || j >= v.NumY {
		return 0.0, 0.0, fmt.Errorf("y index out of range, must be between 0 and %d", v.NumY-1)
	}

	return v.valuesU[j*v.NumX+i], v.valuesV[j*v.NumX+i], nil
}

// Magnitude returns the speed at every cell.
func (v VectorField) Magnitude() ScalarField {
	speed := make([]float32, len(v.valuesU))
	parallelRange(0, v.NumY, func(j int) {
		for i := j * v.NumX; i < (j+1)*v.NumX; i++ {
			u, w := v.valuesU[i], v.valuesV[i]
			speed[i] = sqrt32(u*u + w*w)
		}
	})
	return newScalarField(v.NumX, v.NumY, speed)
}
