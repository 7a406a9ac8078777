package forecast

import (
	"math"

	"cloud.google.com/go/civil"

	"github.com/dvloznov/demand-dashboard/internal/calendar"
)

// design maps week starts to regression rows.
//
// Column layout: [offset, slope, δ_1..δ_C, sin_1, cos_1, ..., sin_N, cos_N].
type design struct {
	origin       civil.Date
	span         float64   // days from first to last observation
	changepoints []float64 // in scaled time
	period       float64
	order        int
}

func newDesign(obs []calendar.WeeklyAggregate) *design {
	d := &design{
		origin: obs[0].WeekStart,
		span:   float64(calendar.DaysBetween(obs[0].WeekStart, obs[len(obs)-1].WeekStart)),
		period: SeasonalPeriodDays,
		order:  FourierOrder,
	}
	if d.span <= 0 {
		d.span = 1
	}
	d.changepoints = placeChangepoints(obs, d)
	return d
}

// placeChangepoints spreads up to MaxChangepoints candidates evenly over the
// observation indices of the first ChangepointRange of the history.
func placeChangepoints(obs []calendar.WeeklyAggregate, d *design) []float64 {
	histSize := int(math.Floor(float64(len(obs)) * ChangepointRange))
	n := min(MaxChangepoints, histSize-1)
	if n <= 0 {
		return nil
	}
	cps := make([]float64, 0, n)
	for j := 1; j <= n; j++ {
		idx := int(math.Round(float64(j) * float64(histSize-1) / float64(n)))
		cps = append(cps, d.t(obs[idx].WeekStart))
	}
	return cps
}

// t returns scaled time: 0 at the first observation, 1 at the last.
func (d *design) t(ws civil.Date) float64 {
	return float64(calendar.DaysBetween(d.origin, ws)) / d.span
}

func (d *design) width() int {
	return 2 + len(d.changepoints) + 2*d.order
}

// deltaIndex returns the column of the first changepoint.
func (d *design) deltaIndex() int {
	return 2
}

// seasonalIndex returns the column of the first Fourier term.
func (d *design) seasonalIndex() int {
	return 2 + len(d.changepoints)
}

// fill writes the regression row for ws into dst (len == width()).
func (d *design) fill(ws civil.Date, dst []float64) {
	t := d.t(ws)
	dst[0] = 1
	dst[1] = t
	for j, s := range d.changepoints {
		dst[2+j] = math.Max(t-s, 0)
	}
	tau := float64(calendar.EpochDays(ws))
	base := d.seasonalIndex()
	for n := 1; n <= d.order; n++ {
		x := 2 * math.Pi * float64(n) * tau / d.period
		dst[base+2*(n-1)] = math.Sin(x)
		dst[base+2*(n-1)+1] = math.Cos(x)
	}
}

// matrix builds the full design matrix for obs.
func (d *design) matrix(obs []calendar.WeeklyAggregate) [][]float64 {
	X := make([][]float64, len(obs))
	for i, o := range obs {
		X[i] = make([]float64, d.width())
		d.fill(o.WeekStart, X[i])
	}
	return X
}
