package forecast

import (
	"context"
	"math"
)

const (
	// trendPriorScale is the Gaussian scale on offset and base slope.
	trendPriorScale = 5.0
	// sigmaFloor bounds the noise estimate from below (scaled units) so a
	// perfectly linear series still gets a well-conditioned fit.
	sigmaFloor = 0.01
	// deltaFloor keeps the L1 reweighting finite as a slope change shrinks to zero.
	deltaFloor = 1e-6

	maxIterations = 200
	tolerance     = 1e-8
)

// fitted holds the MAP parameters in scaled units.
type fitted struct {
	beta         []float64
	changepoints []float64
	deltas       []float64 // view into beta
	sigma        float64   // observation noise
	deltaScale   float64   // mean |δ|, the Laplace scale for simulated future changes
	iterations   int
}

// fit computes the MAP estimate by iteratively reweighted ridge regression:
// each Laplace term |δ|/λ is majorized by δ²/(2λ|δ₀|) around the previous
// iterate, which turns every step into a Gaussian-prior least squares solve.
func fit(ctx context.Context, d *design, X [][]float64, y []float64, opts Options, solve solver) (*fitted, error) {
	sigma := estimateSigma(X, y)
	XtX, Xty := gram(X, y, 1/(sigma*sigma))

	p := d.width()
	penalty := make([]float64, p)
	penalty[0] = 1 / (trendPriorScale * trendPriorScale)
	penalty[1] = penalty[0]
	di, si := d.deltaIndex(), d.seasonalIndex()
	tau := opts.ChangepointPriorScale
	for j := di; j < si; j++ {
		penalty[j] = 1 / (tau * tau)
	}
	for j := si; j < p; j++ {
		penalty[j] = 1 / (opts.SeasonalityPriorScale * opts.SeasonalityPriorScale)
	}

	A := make([][]float64, p)
	for i := range A {
		A[i] = make([]float64, p)
	}

	var beta, prev []float64
	iter := 0
	for ; iter < maxIterations; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		for i := 0; i < p; i++ {
			copy(A[i], XtX[i])
			A[i][i] += penalty[i]
		}
		var ok bool
		beta, ok = solve(A, Xty)
		if !ok {
			return nil, errFitFailed
		}

		if prev != nil && maxAbsDiff(beta, prev) < tolerance {
			break
		}
		prev = beta

		for j := di; j < si; j++ {
			penalty[j] = 1 / (tau * math.Max(math.Abs(beta[j]), deltaFloor))
		}
	}

	f := &fitted{
		beta:         beta,
		changepoints: d.changepoints,
		deltas:       beta[di:si],
		sigma:        sigma,
		iterations:   iter + 1,
	}
	for _, dj := range f.deltas {
		f.deltaScale += math.Abs(dj)
	}
	if len(f.deltas) > 0 {
		f.deltaScale /= float64(len(f.deltas))
	}
	f.deltaScale += 1e-8

	if !allFinite(beta) || math.IsNaN(f.deltaScale) {
		return nil, errFitFailed
	}
	return f, nil
}

// estimateSigma returns the residual standard deviation of an ordinary
// straight-line fit on the first two design columns.
func estimateSigma(X [][]float64, y []float64) float64 {
	n := float64(len(y))
	var st, sy, stt, sty float64
	for i, row := range X {
		t := row[1]
		st += t
		sy += y[i]
		stt += t * t
		sty += t * y[i]
	}
	den := n*stt - st*st
	slope := 0.0
	if den != 0 {
		slope = (n*sty - st*sy) / den
	}
	intercept := (sy - slope*st) / n

	ssr := 0.0
	for i, row := range X {
		r := y[i] - intercept - slope*row[1]
		ssr += r * r
	}
	dof := n - 2
	if dof < 1 {
		dof = 1
	}
	sigma := math.Sqrt(ssr / dof)
	if math.IsNaN(sigma) || sigma < sigmaFloor {
		return sigmaFloor
	}
	return sigma
}

func maxAbsDiff(a, b []float64) float64 {
	m := 0.0
	for i := range a {
		m = math.Max(m, math.Abs(a[i]-b[i]))
	}
	return m
}
