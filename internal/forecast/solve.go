package forecast

import (
	"math"
)

// solver solves a symmetric positive definite system; ok is false when the
// system could not be solved.
type solver func(A [][]float64, b []float64) (x []float64, ok bool)

// solveSPD solves A x = b for a symmetric positive definite A using a
// Cholesky decomposition A = L Lᵀ. ok is false when A is not numerically
// positive definite.
func solveSPD(A [][]float64, b []float64) (x []float64, ok bool) {
	n := len(b)

	L := make([][]float64, n)
	for i := range L {
		L[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		for j := 0; j <= i; j++ {
			sum := A[i][j]
			for k := 0; k < j; k++ {
				sum -= L[i][k] * L[j][k]
			}

			if i == j {
				if sum <= 0 || math.IsNaN(sum) {
					return nil, false
				}
				L[i][j] = math.Sqrt(sum)
			} else {
				L[i][j] = sum / L[j][j]
			}
		}
	}

	// Solve L * z = b (forward substitution)
	z := make([]float64, n)
	for i := 0; i < n; i++ {
		sum := b[i]
		for j := 0; j < i; j++ {
			sum -= L[i][j] * z[j]
		}
		z[i] = sum / L[i][i]
	}

	// Solve L' * x = z (back substitution)
	x = make([]float64, n)
	for i := n - 1; i >= 0; i-- {
		sum := z[i]
		for j := i + 1; j < n; j++ {
			sum -= L[j][i] * x[j]
		}
		x[i] = sum / L[i][i]
	}

	return x, allFinite(x)
}

// gram returns XᵀX and Xᵀy, both multiplied by w.
func gram(X [][]float64, y []float64, w float64) ([][]float64, []float64) {
	p := len(X[0])
	XtX := make([][]float64, p)
	for i := range XtX {
		XtX[i] = make([]float64, p)
	}
	Xty := make([]float64, p)

	for r, row := range X {
		for i := 0; i < p; i++ {
			if row[i] == 0 {
				continue
			}
			Xty[i] += w * row[i] * y[r]
			for j := 0; j <= i; j++ {
				XtX[i][j] += w * row[i] * row[j]
			}
		}
	}
	for i := 0; i < p; i++ {
		for j := 0; j < i; j++ {
			XtX[j][i] = XtX[i][j]
		}
	}
	return XtX, Xty
}
