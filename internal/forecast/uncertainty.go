package forecast

import (
	"context"
	"math"
	"math/rand/v2"
	"sort"
)

// seedStream is the second PCG word; the configured seed is the first.
const seedStream = 0x9e3779b97f4a7c15

// simulate draws future trend paths and observation noise around point
// and returns the central interval of the given width per horizon step.
//
// Future slope changes arrive as a Poisson process with the historical
// changepoint rate (len(changepoints) per unit of scaled time) and have
// Laplace magnitudes with the mean absolute historical change as scale.
func simulate(ctx context.Context, f *fitted, tf, point []float64, width float64, opts Options) (lower, upper []float64, err error) {
	rng := rand.New(rand.NewPCG(opts.Seed, seedStream))

	H := len(tf)
	T := tf[H-1]
	rate := float64(len(f.changepoints))

	draws := make([][]float64, H)
	for h := range draws {
		draws[h] = make([]float64, opts.Samples)
	}

	var times, mags []float64
	for s := 0; s < opts.Samples; s++ {
		if s%64 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		times, mags = times[:0], mags[:0]
		if T > 1 && rate > 0 {
			n := poisson(rng, rate*(T-1))
			for c := 0; c < n; c++ {
				times = append(times, 1+rng.Float64()*(T-1))
				mags = append(mags, laplace(rng, f.deltaScale))
			}
		}

		for h, t := range tf {
			v := point[h]
			for c, tc := range times {
				if t > tc {
					v += mags[c] * (t - tc)
				}
			}
			draws[h][s] = v + rng.NormFloat64()*f.sigma
		}
	}

	lower = make([]float64, H)
	upper = make([]float64, H)
	lq, uq := (1-width)/2, (1+width)/2
	for h := range draws {
		sort.Float64s(draws[h])
		lower[h] = quantile(draws[h], lq)
		upper[h] = quantile(draws[h], uq)
	}
	return lower, upper, nil
}

// quantile interpolates linearly between order statistics of sorted xs.
func quantile(xs []float64, q float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	pos := q * float64(len(xs)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return xs[lo]
	}
	frac := pos - float64(lo)
	return xs[lo]*(1-frac) + xs[hi]*frac
}

// laplace draws from a zero-centred Laplace distribution with scale b.
func laplace(rng *rand.Rand, b float64) float64 {
	u := rng.Float64() - 0.5
	a := 1 - 2*math.Abs(u)
	if a <= 0 {
		return 0
	}
	if u < 0 {
		return b * math.Log(a)
	}
	return -b * math.Log(a)
}

// poisson draws a Poisson count: Knuth's multiplication method for small
// means, a rounded normal approximation above 30.
func poisson(rng *rand.Rand, lambda float64) int {
	if lambda <= 0 {
		return 0
	}
	if lambda > 30 {
		n := int(math.Round(lambda + math.Sqrt(lambda)*rng.NormFloat64()))
		return max(n, 0)
	}
	limit := math.Exp(-lambda)
	k := 0
	for p := rng.Float64(); p > limit; p *= rng.Float64() {
		k++
	}
	return k
}
