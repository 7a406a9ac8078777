package dashboard

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/demand-dashboard/internal/analytics"
	"github.com/dvloznov/demand-dashboard/internal/forecast"
)

// Result is everything the dashboard shows for one filter selection.
type Result struct {
	Regions         []string                       `json:"regions"`
	TotalRevenue    decimal.Decimal                `json:"total_revenue"`
	TotalProfit     decimal.Decimal                `json:"total_profit"`
	ProfitMarginPct decimal.Decimal                `json:"profit_margin_pct"`
	TopRegions      []analytics.RegionRevenue      `json:"top_regions"`
	TopProducts     []analytics.ProductPerformance `json:"top_products"`
	Trend           Trend                          `json:"trend"`
	Forecast        Forecast                       `json:"forecast"`
	Warnings        []string                       `json:"warnings"`
}

// Trend is the daily series as parallel lists.
type Trend struct {
	Dates      []civil.Date      `json:"dates"`
	Revenues   []decimal.Decimal `json:"revenues"`
	Profits    []decimal.Decimal `json:"profits"`
	Quantities []decimal.Decimal `json:"quantities"`
}

// Forecast is the weekly forecast as parallel lists. The history lists
// have equal length, as do the future lists.
type Forecast struct {
	HistoryDates  []civil.Date `json:"history_dates"`
	HistoryActual []float64    `json:"history_actual"`
	FutureDates   []civil.Date `json:"future_dates"`
	FutureYhat    []float64    `json:"future_yhat"`
	FutureLower   []float64    `json:"future_lower"`
	FutureUpper   []float64    `json:"future_upper"`
	Degraded      bool         `json:"degraded,omitempty"`
	JobID         string       `json:"job_id,omitempty"`
}

// newTrend converts the trailing window days of daily into parallel lists.
// Revenue and profit are rounded to cents, quantities to whole units.
// A non-positive window keeps every day.
func newTrend(daily []analytics.DailyAggregate, window int) Trend {
	if window > 0 && len(daily) > window {
		daily = daily[len(daily)-window:]
	}
	t := Trend{
		Dates:      make([]civil.Date, len(daily)),
		Revenues:   make([]decimal.Decimal, len(daily)),
		Profits:    make([]decimal.Decimal, len(daily)),
		Quantities: make([]decimal.Decimal, len(daily)),
	}
	for i, d := range daily {
		t.Dates[i] = d.Date
		t.Revenues[i] = d.Revenue.Round(2)
		t.Profits[i] = d.Profit.Round(2)
		t.Quantities[i] = d.Quantity.Round(0)
	}
	return t
}

func newForecast(r forecast.Result, jobID string) Forecast {
	f := Forecast{
		HistoryDates:  make([]civil.Date, len(r.History)),
		HistoryActual: make([]float64, len(r.History)),
		FutureDates:   make([]civil.Date, len(r.Future)),
		FutureYhat:    make([]float64, len(r.Future)),
		FutureLower:   make([]float64, len(r.Future)),
		FutureUpper:   make([]float64, len(r.Future)),
		Degraded:      r.Degraded,
		JobID:         jobID,
	}
	for i, h := range r.History {
		f.HistoryDates[i] = h.WeekStart
		f.HistoryActual[i] = h.Actual
	}
	for i, p := range r.Future {
		f.FutureDates[i] = p.WeekStart
		f.FutureYhat[i] = p.PointEstimate
		f.FutureLower[i] = p.LowerBound
		f.FutureUpper[i] = p.UpperBound
	}
	return f
}
