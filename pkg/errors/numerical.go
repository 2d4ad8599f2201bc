package errors

import (
	"math"
)

// CheckMatrix checks all values in a matrix for NaN or Inf and returns a
// NumericalInstabilityError pointing at the first offending cell.
func CheckMatrix(operation string, matrix interface {
	At(int, int) float64
	Dims() (int, int)
}) error {
	rows, cols := matrix.Dims()
	for i := 0; i < rows; i++ {
		var unstableValues []float64
		firstCol := -1
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				if firstCol < 0 {
					firstCol = j
				}
				unstableValues = append(unstableValues, v)
				if len(unstableValues) >= 10 {
					// Limit the number of collected values for error message
					break
				}
			}
		}
		if len(unstableValues) > 0 {
			return NewNumericalInstabilityError(operation, unstableValues, i, firstCol)
		}
	}

	return nil
}
