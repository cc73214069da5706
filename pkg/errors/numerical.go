package errors

import (
	"fmt"
	"math"
)

// CheckFinite returns a ValidationError naming the first NaN or Inf value.
// names labels each position; a shorter slice falls back to the index.
func CheckFinite(operation string, values []float64, names []string) error {
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			name := fmt.Sprintf("%s[%d]", operation, i)
			if i < len(names) {
				name = names[i]
			}
			return NewValidationError(name, "value must be a finite number", v)
		}
	}
	return nil
}

// CheckMatrix checks all values in a matrix and reports the first non-finite cell.
func CheckMatrix(operation string, matrix interface{ At(int, int) float64 }, rows, cols int) error {
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return NewValueError(operation, fmt.Sprintf("non-finite value %v at row %d, column %d", v, i, j))
			}
		}
	}
	return nil
}
