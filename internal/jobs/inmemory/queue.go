package inmemory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/jobs"
	"github.com/dvloznov/demand-dashboard/internal/metrics"
)

// Queue is an in-memory job publisher and consumer backed by a buffered
// channel and a fixed pool of workers. It is safe for concurrent use.
type Queue struct {
	jobChan   chan *jobs.ForecastJob
	closeChan chan struct{}
	wg        sync.WaitGroup
	mu        sync.RWMutex
	store     jobs.JobStore
	workers   int
	log       zerolog.Logger
	closed    bool
}

// NewQueue creates a new in-memory job queue.
// bufferSize determines how many jobs can be queued before PublishForecast blocks.
func NewQueue(bufferSize, workers int, store jobs.JobStore, log zerolog.Logger) *Queue {
	if workers <= 0 {
		workers = 1
	}
	return &Queue{
		jobChan:   make(chan *jobs.ForecastJob, bufferSize),
		closeChan: make(chan struct{}),
		store:     store,
		workers:   workers,
		log:       log,
	}
}

// PublishForecast implements the Publisher interface. The lock is held only
// to check for shutdown and record the job; the send itself may block on a
// full buffer without delaying Stop.
func (q *Queue) PublishForecast(ctx context.Context, job *jobs.ForecastJob) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}

	if job.JobID == "" {
		job.JobID = uuid.New().String()
	}
	if job.Status == "" {
		job.Status = jobs.JobStatusPending
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now()
	}

	if q.store != nil {
		if err := q.store.SaveJob(ctx, job); err != nil {
			q.mu.RUnlock()
			return fmt.Errorf("failed to save job: %w", err)
		}
	}
	q.mu.RUnlock()

	select {
	case q.jobChan <- job:
	case <-ctx.Done():
		return ctx.Err()
	case <-q.closeChan:
		q.failClosed(ctx, job)
		return jobs.ErrQueueClosed
	}

	// Stop may have drained the buffer between the check above and the send.
	select {
	case <-q.closeChan:
		q.failClosed(ctx, job)
		return jobs.ErrQueueClosed
	default:
	}

	metrics.SetQueueDepth(len(q.jobChan))
	return nil
}

// finish records the terminal state in the store, then releases waiters.
func (q *Queue) finish(ctx context.Context, job *jobs.ForecastJob, status jobs.JobStatus, errMsg string) {
	job.FinishWith(status, errMsg, func(j *jobs.ForecastJob) {
		if q.store != nil {
			_ = q.store.SaveJob(ctx, j)
		}
	})
}

// failClosed fails a job that can no longer run because the queue stopped.
// It is a no-op for a job that already finished.
func (q *Queue) failClosed(ctx context.Context, job *jobs.ForecastJob) {
	q.finish(ctx, job, jobs.JobStatusFailed, jobs.ErrQueueClosed.Error())
}

// Start implements the Consumer interface. It launches the worker pool;
// each worker calls handler for one job at a time.
func (q *Queue) Start(ctx context.Context, handler jobs.JobHandler) error {
	q.mu.RLock()
	if q.closed {
		q.mu.RUnlock()
		return jobs.ErrQueueClosed
	}
	q.mu.RUnlock()

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, handler)
	}

	q.log.Info().Int("workers", q.workers).Int("buffer", cap(q.jobChan)).Msg("Forecast queue started")
	return nil
}

// worker processes jobs from the queue.
func (q *Queue) worker(ctx context.Context, handler jobs.JobHandler) {
	defer q.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-q.closeChan:
			return
		case job := <-q.jobChan:
			if job == nil {
				return
			}
			metrics.SetQueueDepth(len(q.jobChan))
			q.processJob(ctx, job, handler)
		}
	}
}

// processJob runs a single job under its deadline. There are no retries.
func (q *Queue) processJob(ctx context.Context, job *jobs.ForecastJob, handler jobs.JobHandler) {
	job.Status = jobs.JobStatusRunning
	now := time.Now()
	job.StartedAt = &now

	if q.store != nil {
		_ = q.store.SaveJob(ctx, job)
	}

	jobCtx := ctx
	if !job.Deadline.IsZero() {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithDeadline(ctx, job.Deadline)
		defer cancel()
	}

	err := q.run(jobCtx, job, handler)

	status := jobs.JobStatusCompleted
	errMsg := ""
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		status, errMsg = jobs.JobStatusTimedOut, err.Error()
	case err != nil:
		status, errMsg = jobs.JobStatusFailed, err.Error()
	}
	q.finish(ctx, job, status, errMsg)
	metrics.RecordForecastJob(string(status), time.Since(now))

	log := q.log.With().Str("job_id", job.JobID).Str("status", string(status)).Logger()
	if err != nil {
		log.Warn().Err(err).Dur("duration", time.Since(now)).Msg("Forecast job did not complete")
	} else {
		log.Debug().Dur("duration", time.Since(now)).Msg("Forecast job completed")
	}
}

// run calls handler and converts a panic into a job failure so one bad
// series cannot take a worker down.
func (q *Queue) run(ctx context.Context, job *jobs.ForecastJob, handler jobs.JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("forecast job panicked: %v", r)
		}
	}()
	return handler(ctx, job)
}

// Stop implements the Consumer interface. It stops the workers, waits for
// in-flight jobs and fails every job still queued with ErrQueueClosed.
func (q *Queue) Stop(ctx context.Context) error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	close(q.closeChan)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	for {
		select {
		case job := <-q.jobChan:
			q.failClosed(ctx, job)
		default:
			metrics.SetQueueDepth(0)
			return nil
		}
	}
}

// Close implements the Publisher interface.
func (q *Queue) Close() error {
	return q.Stop(context.Background())
}

var _ jobs.Publisher = (*Queue)(nil)
var _ jobs.Consumer = (*Queue)(nil)
