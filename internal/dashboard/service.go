// Package dashboard composes one dashboard view: it runs the filter and
// aggregation engine, rolls the daily revenue up into weeks and obtains a
// forecast from the job queue within a fixed time budget.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/analytics"
	"github.com/dvloznov/demand-dashboard/internal/calendar"
	"github.com/dvloznov/demand-dashboard/internal/dataset"
	"github.com/dvloznov/demand-dashboard/internal/forecast"
	"github.com/dvloznov/demand-dashboard/internal/jobs"
	"github.com/dvloznov/demand-dashboard/internal/metrics"
)

// ErrFitBudgetExceeded is returned when the forecast did not finish within
// the configured budget. Only the request fails; the service keeps running.
var ErrFitBudgetExceeded = errors.New("forecast fit budget exceeded")

var _ Forecaster = (*forecast.Model)(nil)

// Options configure a Service.
type Options struct {
	// TrendWindowDays limits the trend to the trailing N days; 0 keeps all.
	TrendWindowDays int
	// FitBudget bounds the time spent waiting for a forecast.
	FitBudget time.Duration
	// HorizonWeeks and IntervalWidth default to the forecast package values.
	HorizonWeeks  int
	IntervalWidth float64
}

// Service answers dashboard queries. It is safe for concurrent use.
type Service struct {
	ds        *dataset.Dataset
	engine    *analytics.Engine
	publisher jobs.Publisher
	opts      Options
	log       zerolog.Logger
}

// NewService creates a service over ds that submits forecast fits to publisher.
func NewService(ds *dataset.Dataset, publisher jobs.Publisher, opts Options, log zerolog.Logger) *Service {
	if opts.HorizonWeeks <= 0 {
		opts.HorizonWeeks = forecast.DefaultHorizonWeeks
	}
	if opts.IntervalWidth <= 0 {
		opts.IntervalWidth = forecast.DefaultIntervalWidth
	}
	if opts.FitBudget <= 0 {
		opts.FitBudget = 5 * time.Second
	}
	return &Service{
		ds:        ds,
		engine:    analytics.NewEngine(ds, log),
		publisher: publisher,
		opts:      opts,
		log:       log,
	}
}

// Regions returns the region list for the selector.
func (s *Service) Regions() []string {
	return s.ds.Regions()
}

// Dataset returns the dataset the service reads.
func (s *Service) Dataset() *dataset.Dataset {
	return s.ds
}

// Query builds the dashboard view for p.
func (s *Service) Query(ctx context.Context, p analytics.Params) (*Result, error) {
	start := time.Now()
	res := s.engine.Query(p)
	metrics.RecordQuery(time.Since(start), len(res.Warnings))

	series := WeeklySeries(res.Daily)
	fc, jobID, err := s.forecast(ctx, p.Region, series)
	if err != nil {
		return nil, fmt.Errorf("Query: %w", err)
	}

	warnings := res.Warnings
	if warnings == nil {
		warnings = []string{}
	}

	return &Result{
		Regions:         s.ds.Regions(),
		TotalRevenue:    res.KPIs.TotalRevenue,
		TotalProfit:     res.KPIs.TotalProfit,
		ProfitMarginPct: res.KPIs.ProfitMarginPct,
		TopRegions:      res.TopRegions,
		TopProducts:     res.TopProducts,
		Trend:           newTrend(res.Daily, s.opts.TrendWindowDays),
		Forecast:        newForecast(fc, jobID),
		Warnings:        warnings,
	}, nil
}

// forecast submits series to the queue and waits for the fit. Series too
// short to fit are answered directly without a job.
func (s *Service) forecast(ctx context.Context, region string, series []calendar.WeeklyAggregate) (forecast.Result, string, error) {
	if len(series) < forecast.MinObservations {
		return forecast.Result{History: []forecast.HistoryPoint{}, Future: []forecast.Point{}}, "", nil
	}

	budgetCtx, cancel := context.WithTimeout(ctx, s.opts.FitBudget)
	defer cancel()

	job := jobs.NewForecastJob(region, series, s.opts.HorizonWeeks, s.opts.IntervalWidth)
	if deadline, ok := budgetCtx.Deadline(); ok {
		job.Deadline = deadline
	}

	if err := s.publisher.PublishForecast(budgetCtx, job); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return forecast.Result{}, "", s.budgetExceeded(job)
		}
		return forecast.Result{}, "", fmt.Errorf("publish forecast: %w", err)
	}

	if err := job.Wait(budgetCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return forecast.Result{}, job.JobID, s.budgetExceeded(job)
		}
		return forecast.Result{}, job.JobID, err
	}

	switch job.Status {
	case jobs.JobStatusCompleted:
		return job.Result, job.JobID, nil
	case jobs.JobStatusTimedOut:
		return forecast.Result{}, job.JobID, s.budgetExceeded(job)
	default:
		return forecast.Result{}, job.JobID, fmt.Errorf("forecast job %s %s: %s", job.JobID, job.Status, job.Error)
	}
}

func (s *Service) budgetExceeded(job *jobs.ForecastJob) error {
	s.log.Warn().
		Str("job_id", job.JobID).
		Str("region", job.Region).
		Int("weeks", job.Weeks).
		Dur("budget", s.opts.FitBudget).
		Msg("Forecast fit budget exceeded")
	return fmt.Errorf("%w (%s)", ErrFitBudgetExceeded, s.opts.FitBudget)
}

// WeeklySeries rolls the daily revenue up into Monday-anchored weeks.
func WeeklySeries(daily []analytics.DailyAggregate) []calendar.WeeklyAggregate {
	in := make([]calendar.DailyRevenue, len(daily))
	for i, d := range daily {
		in[i] = calendar.DailyRevenue{Date: d.Date, Revenue: d.Revenue.InexactFloat64()}
	}
	return calendar.AggregateWeekly(in)
}

// Forecaster fits a weekly series. *forecast.Model implements it.
type Forecaster interface {
	Forecast(ctx context.Context, series []calendar.WeeklyAggregate, horizonWeeks int, intervalWidth float64) (forecast.Result, error)
}

// FitHandler returns the queue handler that runs model on each job.
func FitHandler(model Forecaster) jobs.JobHandler {
	return func(ctx context.Context, job *jobs.ForecastJob) error {
		res, err := model.Forecast(ctx, job.Series, job.Horizon, job.IntervalWidth)
		if err != nil {
			return err
		}
		job.Result = res
		job.Degraded = res.Degraded
		if res.Degraded {
			metrics.RecordForecastDegraded()
		}
		return nil
	}
}
