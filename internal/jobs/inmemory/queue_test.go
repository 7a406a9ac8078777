package inmemory

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/calendar"
	"github.com/dvloznov/demand-dashboard/internal/forecast"
	"github.com/dvloznov/demand-dashboard/internal/jobs"
)

func waitDone(t *testing.T, job *jobs.ForecastJob) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := job.Wait(ctx); err != nil {
		t.Fatalf("job %s did not finish: %v", job.JobID, err)
	}
}

func TestQueue_ProcessesJobs(t *testing.T) {
	store := NewStore(0)
	q := NewQueue(4, 2, store, zerolog.Nop())

	var calls atomic.Int32
	handler := func(ctx context.Context, job *jobs.ForecastJob) error {
		calls.Add(1)
		job.Result = forecast.Result{History: []forecast.HistoryPoint{{Actual: 1}}, Future: []forecast.Point{}}
		return nil
	}
	if err := q.Start(context.Background(), handler); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer q.Close()

	job := jobs.NewForecastJob("North", []calendar.WeeklyAggregate{{Revenue: 1}}, 6, 0.6)
	if err := q.PublishForecast(context.Background(), job); err != nil {
		t.Fatalf("PublishForecast() error = %v", err)
	}
	if job.JobID == "" {
		t.Fatal("expected a generated job ID")
	}
	waitDone(t, job)

	if job.Status != jobs.JobStatusCompleted {
		t.Errorf("Status = %s, want completed", job.Status)
	}
	if len(job.Result.History) != 1 {
		t.Errorf("Result not stored on job: %+v", job.Result)
	}
	if calls.Load() != 1 {
		t.Errorf("handler called %d times, want 1", calls.Load())
	}

	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if saved.Status != jobs.JobStatusCompleted || saved.CompletedAt == nil || saved.StartedAt == nil {
		t.Errorf("stored job = %+v", saved)
	}
	if saved.Series != nil {
		t.Error("stored snapshot should not keep the series")
	}
}

func TestQueue_FailureStatuses(t *testing.T) {
	tests := []struct {
		name       string
		deadline   time.Duration
		handler    jobs.JobHandler
		wantStatus jobs.JobStatus
	}{
		{
			name: "handler error",
			handler: func(ctx context.Context, job *jobs.ForecastJob) error {
				return errors.New("boom")
			},
			wantStatus: jobs.JobStatusFailed,
		},
		{
			name: "handler panic",
			handler: func(ctx context.Context, job *jobs.ForecastJob) error {
				panic("bad series")
			},
			wantStatus: jobs.JobStatusFailed,
		},
		{
			name:     "deadline exceeded",
			deadline: 10 * time.Millisecond,
			handler: func(ctx context.Context, job *jobs.ForecastJob) error {
				<-ctx.Done()
				return ctx.Err()
			},
			wantStatus: jobs.JobStatusTimedOut,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			handler := func(ctx context.Context, job *jobs.ForecastJob) error {
				calls.Add(1)
				return tt.handler(ctx, job)
			}

			q := NewQueue(1, 1, NewStore(0), zerolog.Nop())
			if err := q.Start(context.Background(), handler); err != nil {
				t.Fatalf("Start() error = %v", err)
			}
			defer q.Close()

			job := jobs.NewForecastJob("", nil, 6, 0.6)
			if tt.deadline > 0 {
				job.Deadline = time.Now().Add(tt.deadline)
			}
			if err := q.PublishForecast(context.Background(), job); err != nil {
				t.Fatalf("PublishForecast() error = %v", err)
			}
			waitDone(t, job)

			if job.Status != tt.wantStatus {
				t.Errorf("Status = %s, want %s", job.Status, tt.wantStatus)
			}
			if job.Error == "" {
				t.Error("expected an error message")
			}
			if calls.Load() != 1 {
				t.Errorf("handler called %d times, want exactly 1 (no retries)", calls.Load())
			}
		})
	}
}

func TestQueue_Closed(t *testing.T) {
	q := NewQueue(1, 1, nil, zerolog.Nop())
	if err := q.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	err := q.PublishForecast(context.Background(), jobs.NewForecastJob("", nil, 6, 0.6))
	if !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("PublishForecast() error = %v, want ErrQueueClosed", err)
	}
	if err := q.Start(context.Background(), nil); !errors.Is(err, jobs.ErrQueueClosed) {
		t.Errorf("Start() error = %v, want ErrQueueClosed", err)
	}
}

func TestQueue_StopFailsQueuedJobs(t *testing.T) {
	q := NewQueue(2, 1, NewStore(0), zerolog.Nop())

	job := jobs.NewForecastJob("", nil, 6, 0.6)
	if err := q.PublishForecast(context.Background(), job); err != nil {
		t.Fatalf("PublishForecast() error = %v", err)
	}
	// No workers were started, so the job is still queued.
	if err := q.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	waitDone(t, job)

	if job.Status != jobs.JobStatusFailed || job.Error != jobs.ErrQueueClosed.Error() {
		t.Errorf("job = %s %q, want failed with queue closed", job.Status, job.Error)
	}
}

func TestQueue_PublishRespectsContext(t *testing.T) {
	q := NewQueue(0, 1, nil, zerolog.Nop())
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := q.PublishForecast(ctx, jobs.NewForecastJob("", nil, 6, 0.6))
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("PublishForecast() error = %v, want DeadlineExceeded", err)
	}
}

func TestQueue_StopNotBlockedByWaitingPublisher(t *testing.T) {
	store := NewStore(0)
	// Unbuffered and without workers: a publish blocks on the send.
	q := NewQueue(0, 1, store, zerolog.Nop())

	job := jobs.NewForecastJob("North", nil, 6, 0.6)
	job.JobID = "blocked"
	publishErr := make(chan error, 1)
	go func() {
		publishErr <- q.PublishForecast(context.Background(), job)
	}()

	// The pending snapshot is saved before the send starts.
	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := store.GetJob(context.Background(), job.JobID); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("job was never recorded as pending")
		}
		time.Sleep(time.Millisecond)
	}

	stopped := make(chan error, 1)
	go func() {
		stopped <- q.Stop(context.Background())
	}()

	select {
	case err := <-stopped:
		if err != nil {
			t.Fatalf("Stop() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() blocked behind a publisher waiting on a full queue")
	}

	select {
	case err := <-publishErr:
		if !errors.Is(err, jobs.ErrQueueClosed) {
			t.Errorf("PublishForecast() error = %v, want ErrQueueClosed", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("PublishForecast() did not return after Stop")
	}

	waitDone(t, job)
	saved, err := store.GetJob(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetJob() error = %v", err)
	}
	if saved.Status != jobs.JobStatusFailed || saved.Error != jobs.ErrQueueClosed.Error() {
		t.Errorf("stored job = %s %q, want failed with queue closed", saved.Status, saved.Error)
	}
}
