// Package calendar aligns dates to Monday-anchored weeks and rolls daily
// revenue up into weekly buckets for the forecasting model.
package calendar

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"
)

var epoch = civil.Date{Year: 1970, Month: time.January, Day: 1}

// DailyRevenue is one day of revenue.
type DailyRevenue struct {
	Date    civil.Date
	Revenue float64
}

// WeeklyAggregate is the summed revenue of one Monday-anchored week.
type WeeklyAggregate struct {
	WeekStart civil.Date `json:"week_start"`
	Revenue   float64    `json:"revenue"`
}

// WeekStart returns the Monday on or before d.
func WeekStart(d civil.Date) civil.Date {
	// time.Weekday has Sunday=0; shift so Monday=0 ... Sunday=6.
	offset := (int(d.In(time.UTC).Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// AddWeeks steps d forward by n calendar weeks.
func AddWeeks(d civil.Date, n int) civil.Date {
	return d.AddDays(7 * n)
}

// AggregateWeekly sums daily revenue per week and returns weeks in
// ascending order. Weeks without any contributing day are not synthesized.
func AggregateWeekly(daily []DailyRevenue) []WeeklyAggregate {
	sums := make(map[civil.Date]float64)
	for _, d := range daily {
		sums[WeekStart(d.Date)] += d.Revenue
	}

	out := make([]WeeklyAggregate, 0, len(sums))
	for ws, rev := range sums {
		out = append(out, WeeklyAggregate{WeekStart: ws, Revenue: rev})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WeekStart.Before(out[j].WeekStart) })
	return out
}

// DaysBetween returns the number of days from a to b.
func DaysBetween(a, b civil.Date) int {
	return b.DaysSince(a)
}

// EpochDays returns the days since 1970-01-01.
func EpochDays(d civil.Date) int {
	return d.DaysSince(epoch)
}
