// Package forecast fits an additive piecewise-linear trend plus Fourier
// seasonality model to weekly revenue and projects future weeks with
// simulated uncertainty intervals.
//
// The model is
//
//	y(t) = m + k·t + Σ δ_j (t − s_j)₊ + Σ_{n=1..N} [a_n sin(2πnτ/P) + b_n cos(2πnτ/P)]
//
// where t is time scaled to [0,1] over the history, s_j are candidate
// changepoints, τ is days since the Unix epoch and P the seasonal period.
// Parameters are a MAP estimate under a Laplace prior on δ (sparse slope
// changes) and Gaussian priors on everything else.
package forecast

import (
	"context"
	"errors"
	"math"
	"sort"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/calendar"
)

// Fixed policy constants.
const (
	// MinObservations is the fewest weekly observations a fit is attempted on.
	MinObservations = 10
	// HistoryWeeks is how many trailing observed weeks are returned for display.
	HistoryWeeks = 26
	// DefaultHorizonWeeks and DefaultIntervalWidth are the dashboard's forecast settings.
	DefaultHorizonWeeks  = 6
	DefaultIntervalWidth = 0.6

	SeasonalPeriodDays = 30.5
	FourierOrder       = 5
	MaxChangepoints    = 25
	ChangepointRange   = 0.8
)

// Options tune the fit. Zero values are replaced by defaults.
type Options struct {
	// ChangepointPriorScale is the Laplace scale on slope changes: higher
	// values let the trend bend more readily.
	ChangepointPriorScale float64
	// SeasonalityPriorScale is the Gaussian scale on Fourier coefficients,
	// in units of the largest absolute observation.
	SeasonalityPriorScale float64
	// Samples is the number of Monte Carlo draws for the interval.
	Samples int
	// Seed makes the simulated intervals reproducible.
	Seed uint64
}

// DefaultOptions returns the standard model settings.
func DefaultOptions() Options {
	return Options{
		ChangepointPriorScale: 0.15,
		SeasonalityPriorScale: 0.1,
		Samples:               1000,
		Seed:                  42,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.ChangepointPriorScale <= 0 {
		o.ChangepointPriorScale = d.ChangepointPriorScale
	}
	if o.SeasonalityPriorScale <= 0 {
		o.SeasonalityPriorScale = d.SeasonalityPriorScale
	}
	if o.Samples <= 0 {
		o.Samples = d.Samples
	}
	return o
}

// HistoryPoint is one observed week.
type HistoryPoint struct {
	WeekStart civil.Date `json:"week_start"`
	Actual    float64    `json:"actual"`
}

// Point is one forecast week. All values are ≥ 0, rounded to 2 dp, and
// LowerBound ≤ PointEstimate ≤ UpperBound.
type Point struct {
	WeekStart     civil.Date `json:"week_start"`
	PointEstimate float64    `json:"point_estimate"`
	LowerBound    float64    `json:"lower_bound"`
	UpperBound    float64    `json:"upper_bound"`
}

// Result is the forecast output. Both lists are empty (not nil) when there
// is not enough history.
type Result struct {
	History []HistoryPoint `json:"history"`
	Future  []Point        `json:"future"`
	// Degraded is set when the fit failed numerically and a flat forecast
	// at the last observed value was returned instead.
	Degraded bool `json:"degraded,omitempty"`
}

// errFitFailed marks a numerical failure; it never leaves the package.
var errFitFailed = errors.New("forecast: fit failed")

// Model fits and projects weekly series. Each call builds fresh state, so
// a Model is safe for concurrent use.
type Model struct {
	opts  Options
	solve solver
	log   zerolog.Logger
}

// NewModel creates a model with the given options.
func NewModel(opts Options, log zerolog.Logger) *Model {
	return &Model{opts: opts.withDefaults(), solve: solveSPD, log: log}
}

// Forecast fits series and projects horizonWeeks beyond the last week with
// a central interval of the given width. The only error returned is the
// context's; numerical problems degrade the result instead.
func (m *Model) Forecast(ctx context.Context, series []calendar.WeeklyAggregate, horizonWeeks int, intervalWidth float64) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	obs := cleanSeries(series)
	res := Result{History: []HistoryPoint{}, Future: []Point{}}
	if len(obs) < MinObservations {
		return res, nil
	}
	if intervalWidth <= 0 || intervalWidth >= 1 || math.IsNaN(intervalWidth) {
		intervalWidth = DefaultIntervalWidth
	}

	res.History = history(obs)
	if horizonWeeks <= 0 {
		return res, nil
	}

	last := obs[len(obs)-1].WeekStart
	futureWeeks := make([]civil.Date, horizonWeeks)
	for h := range futureWeeks {
		futureWeeks[h] = calendar.AddWeeks(last, h+1)
	}

	scale := 0.0
	for _, o := range obs {
		scale = math.Max(scale, math.Abs(o.Revenue))
	}
	if scale == 0 {
		res.Future = flat(futureWeeks, 0)
		return res, nil
	}

	point, lower, upper, err := m.fitAndSimulate(ctx, obs, futureWeeks, scale, intervalWidth)
	if errors.Is(err, errFitFailed) {
		m.log.Warn().
			Int("weeks", len(obs)).
			Msg("Forecast fit failed, returning flat forecast")
		res.Future = flat(futureWeeks, obs[len(obs)-1].Revenue)
		res.Degraded = true
		return res, nil
	}
	if err != nil {
		return Result{}, err
	}

	res.Future = finalize(futureWeeks, point, lower, upper)
	return res, nil
}

func (m *Model) fitAndSimulate(ctx context.Context, obs []calendar.WeeklyAggregate, future []civil.Date, scale, width float64) (point, lower, upper []float64, err error) {
	d := newDesign(obs)
	y := make([]float64, len(obs))
	for i, o := range obs {
		y[i] = o.Revenue / scale
	}

	f, err := fit(ctx, d, d.matrix(obs), y, m.opts, m.solve)
	if err != nil {
		return nil, nil, nil, err
	}

	point = make([]float64, len(future))
	tf := make([]float64, len(future))
	row := make([]float64, d.width())
	for h, ws := range future {
		d.fill(ws, row)
		point[h] = dot(row, f.beta)
		tf[h] = d.t(ws)
	}
	if !allFinite(point) {
		return nil, nil, nil, errFitFailed
	}

	lower, upper, err = simulate(ctx, f, tf, point, width, m.opts)
	if err != nil {
		return nil, nil, nil, err
	}

	for h := range point {
		point[h] *= scale
		lower[h] *= scale
		upper[h] *= scale
	}
	m.log.Debug().
		Int("weeks", len(obs)).
		Int("changepoints", len(d.changepoints)).
		Int("iterations", f.iterations).
		Float64("sigma", f.sigma*scale).
		Msg("Forecast fitted")
	return point, lower, upper, nil
}

// cleanSeries copies the series in week order, merging duplicate weeks and
// treating non-finite revenue as zero.
func cleanSeries(series []calendar.WeeklyAggregate) []calendar.WeeklyAggregate {
	out := make([]calendar.WeeklyAggregate, 0, len(series))
	for _, s := range series {
		if math.IsNaN(s.Revenue) || math.IsInf(s.Revenue, 0) {
			s.Revenue = 0
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })

	merged := out[:0]
	for _, s := range out {
		if n := len(merged); n > 0 && merged[n-1].WeekStart == s.WeekStart {
			merged[n-1].Revenue += s.Revenue
			continue
		}
		merged = append(merged, s)
	}
	return merged
}

func history(obs []calendar.WeeklyAggregate) []HistoryPoint {
	start := 0
	if len(obs) > HistoryWeeks {
		start = len(obs) - HistoryWeeks
	}
	out := make([]HistoryPoint, 0, len(obs)-start)
	for _, o := range obs[start:] {
		out = append(out, HistoryPoint{WeekStart: o.WeekStart, Actual: round2(o.Revenue)})
	}
	return out
}

func flat(weeks []civil.Date, value float64) []Point {
	v := round2(math.Max(value, 0))
	out := make([]Point, len(weeks))
	for i, ws := range weeks {
		out[i] = Point{WeekStart: ws, PointEstimate: v, LowerBound: v, UpperBound: v}
	}
	return out
}

// finalize orders, clamps and rounds the bounds, then widens upper bounds
// where needed so the interval width never shrinks with the horizon.
func finalize(weeks []civil.Date, point, lower, upper []float64) []Point {
	out := make([]Point, len(weeks))
	prevWidth := 0.0
	for h, ws := range weeks {
		p := round2(math.Max(point[h], 0))
		lo := round2(math.Max(math.Min(lower[h], point[h]), 0))
		hi := round2(math.Max(math.Max(upper[h], point[h]), 0))
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)

		if hi-lo < prevWidth {
			hi = round2(lo + prevWidth)
			// Guard against the rounding landing one cent short.
			for hi-lo < prevWidth-1e-9 {
				hi = round2(hi + 0.01)
			}
		}
		prevWidth = hi - lo

		out[h] = Point{WeekStart: ws, PointEstimate: p, LowerBound: lo, UpperBound: hi}
	}
	return out
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func allFinite(xs []float64) bool {
	for _, x := range xs {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func dot(a, b []float64) float64 {
	s := 0.0
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}
