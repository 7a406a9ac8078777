package calendar

import (
	"testing"
	"time"

	"cloud.google.com/go/civil"
)

func date(y int, m time.Month, d int) civil.Date {
	return civil.Date{Year: y, Month: m, Day: d}
}

func TestWeekStart(t *testing.T) {
	tests := []struct {
		name string
		in   civil.Date
		want civil.Date
	}{
		{"monday", date(2024, time.March, 4), date(2024, time.March, 4)},
		{"wednesday", date(2024, time.March, 6), date(2024, time.March, 4)},
		{"sunday", date(2024, time.March, 10), date(2024, time.March, 4)},
		{"across month", date(2024, time.March, 2), date(2024, time.February, 26)},
		{"across year", date(2025, time.January, 1), date(2024, time.December, 30)},
		{"leap day", date(2024, time.February, 29), date(2024, time.February, 26)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := WeekStart(tt.in); got != tt.want {
				t.Errorf("WeekStart(%s) = %s, want %s", tt.in, got, tt.want)
			}
		})
	}
}

func TestWeekStart_Properties(t *testing.T) {
	d := date(2019, time.December, 1)
	for i := 0; i < 3*366; i++ {
		ws := WeekStart(d)
		if ws.In(time.UTC).Weekday() != time.Monday {
			t.Fatalf("WeekStart(%s) = %s is not a Monday", d, ws)
		}
		if WeekStart(ws) != ws {
			t.Fatalf("WeekStart not idempotent at %s", d)
		}
		if ws.After(d) || !d.Before(ws.AddDays(7)) {
			t.Fatalf("WeekStart(%s) = %s outside [ws, ws+7)", d, ws)
		}
		d = d.AddDays(1)
	}
}

func TestAggregateWeekly(t *testing.T) {
	daily := []DailyRevenue{
		{Date: date(2024, time.March, 13), Revenue: 5},   // week of 11th
		{Date: date(2024, time.March, 4), Revenue: 10},   // week of 4th
		{Date: date(2024, time.March, 10), Revenue: 2.5}, // Sunday, week of 4th
		{Date: date(2024, time.March, 25), Revenue: 1},   // gap: week of 18th missing
	}

	got := AggregateWeekly(daily)
	want := []WeeklyAggregate{
		{WeekStart: date(2024, time.March, 4), Revenue: 12.5},
		{WeekStart: date(2024, time.March, 11), Revenue: 5},
		{WeekStart: date(2024, time.March, 25), Revenue: 1},
	}
	if len(got) != len(want) {
		t.Fatalf("AggregateWeekly() = %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("AggregateWeekly()[%d] = %+v, want %+v", i, got[i], want[i])
		}
	}

	if got := AggregateWeekly(nil); len(got) != 0 {
		t.Errorf("AggregateWeekly(nil) = %+v, want empty", got)
	}
}

func TestAddWeeksAndEpoch(t *testing.T) {
	if got := AddWeeks(date(2024, time.December, 23), 2); got != date(2025, time.January, 6) {
		t.Errorf("AddWeeks() = %s, want 2025-01-06", got)
	}
	if got := EpochDays(date(1970, time.January, 11)); got != 10 {
		t.Errorf("EpochDays() = %d, want 10", got)
	}
	if got := DaysBetween(date(2024, time.March, 4), date(2024, time.March, 18)); got != 14 {
		t.Errorf("DaysBetween() = %d, want 14", got)
	}
}
