package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/dvloznov/demand-dashboard/internal/calendar"
	"github.com/dvloznov/demand-dashboard/internal/forecast"
)

// JobType represents the type of job to be executed.
type JobType string

const (
	// JobTypeForecast represents a weekly revenue forecast fit.
	JobTypeForecast JobType = "forecast"
)

// JobStatus represents the current status of a job.
type JobStatus string

const (
	// JobStatusPending indicates the job is waiting to be processed.
	JobStatusPending JobStatus = "pending"
	// JobStatusRunning indicates the job is currently being processed.
	JobStatusRunning JobStatus = "running"
	// JobStatusCompleted indicates the job completed successfully.
	JobStatusCompleted JobStatus = "completed"
	// JobStatusFailed indicates the job failed.
	JobStatusFailed JobStatus = "failed"
	// JobStatusTimedOut indicates the job ran past its deadline.
	JobStatusTimedOut JobStatus = "timed_out"
)

var (
	// ErrQueueClosed is returned when publishing to or starting a stopped queue.
	ErrQueueClosed = errors.New("queue is closed")
	// ErrJobNotFound is returned by a JobStore for an unknown job ID.
	ErrJobNotFound = errors.New("job not found")
)

// ForecastJob is one forecast fit for a filtered weekly series.
type ForecastJob struct {
	// JobID is the unique identifier for this job.
	JobID string `json:"job_id"`

	// Region is the region filter the series was built from, empty for all.
	Region string `json:"region,omitempty"`

	// Weeks is the number of weekly observations in Series.
	Weeks int `json:"weeks"`

	// Horizon is the number of weeks to project.
	Horizon int `json:"horizon"`

	// IntervalWidth is the central interval probability, e.g. 0.6.
	IntervalWidth float64 `json:"interval_width"`

	// Deadline bounds the fit; zero means no deadline.
	Deadline time.Time `json:"deadline,omitempty"`

	// Status is the current status of the job.
	Status JobStatus `json:"status"`

	// Degraded is set when the fit fell back to a flat forecast.
	Degraded bool `json:"degraded,omitempty"`

	// CreatedAt is when the job was created.
	CreatedAt time.Time `json:"created_at"`

	// StartedAt is when the job started processing.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when the job completed (success or failure).
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// Error contains error details if the job failed.
	Error string `json:"error,omitempty"`

	// Series is the input; Result is valid once Done is closed and Error is empty.
	Series []calendar.WeeklyAggregate `json:"-"`
	Result forecast.Result            `json:"-"`

	done chan struct{}
	once *sync.Once
}

// NewForecastJob creates a pending job for series.
func NewForecastJob(region string, series []calendar.WeeklyAggregate, horizon int, width float64) *ForecastJob {
	return &ForecastJob{
		Region:        region,
		Weeks:         len(series),
		Horizon:       horizon,
		IntervalWidth: width,
		Series:        series,
		done:          make(chan struct{}),
		once:          &sync.Once{},
	}
}

// Done is closed once the job reaches a terminal state.
func (j *ForecastJob) Done() <-chan struct{} {
	return j.done
}

// Finish records the terminal state and releases waiters. Calls after the
// first are ignored.
func (j *ForecastJob) Finish(status JobStatus, errMsg string) {
	j.FinishWith(status, errMsg, nil)
}

// FinishWith is Finish with a hook that runs after the terminal state is set
// and before waiters are released, so a store reflects the final state by
// the time Wait returns.
func (j *ForecastJob) FinishWith(status JobStatus, errMsg string, record func(*ForecastJob)) {
	if j.once == nil {
		return
	}
	j.once.Do(func() {
		now := time.Now()
		j.CompletedAt = &now
		j.Status = status
		j.Error = errMsg
		if record != nil {
			record(j)
		}
		close(j.done)
	})
}

// Wait blocks until the job finishes or ctx is done.
func (j *ForecastJob) Wait(ctx context.Context) error {
	select {
	case <-j.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Job is a generic interface for all job types.
type Job interface {
	// GetID returns the unique job identifier.
	GetID() string

	// GetType returns the job type.
	GetType() JobType

	// GetStatus returns the current job status.
	GetStatus() JobStatus
}

// GetID implements the Job interface.
func (j *ForecastJob) GetID() string {
	return j.JobID
}

// GetType implements the Job interface.
func (j *ForecastJob) GetType() JobType {
	return JobTypeForecast
}

// GetStatus implements the Job interface.
func (j *ForecastJob) GetStatus() JobStatus {
	return j.Status
}

// Publisher enqueues jobs.
type Publisher interface {
	// PublishForecast enqueues a forecast job.
	PublishForecast(ctx context.Context, job *ForecastJob) error

	// Close closes the publisher and releases resources.
	Close() error
}

// Consumer runs jobs from a queue.
type Consumer interface {
	// Start begins consuming jobs from the queue.
	// The handler function is called for each job received.
	Start(ctx context.Context, handler JobHandler) error

	// Stop stops consuming jobs and waits for in-flight jobs to complete.
	Stop(ctx context.Context) error
}

// JobHandler processes a forecast job and stores its output in job.Result.
// Fits are deterministic, so a failed job is never retried.
type JobHandler func(ctx context.Context, job *ForecastJob) error

// JobStore keeps job state for inspection.
type JobStore interface {
	// SaveJob saves or updates a job's state.
	SaveJob(ctx context.Context, job *ForecastJob) error

	// GetJob retrieves a job by ID.
	GetJob(ctx context.Context, jobID string) (*ForecastJob, error)

	// ListJobs retrieves jobs with optional filtering, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*ForecastJob, error)
}

// JobFilter defines filtering criteria for listing jobs.
type JobFilter struct {
	// Region filters jobs by region.
	Region string

	// Status filters jobs by status.
	Status JobStatus

	// Limit limits the number of results.
	Limit int

	// Offset for pagination.
	Offset int
}
