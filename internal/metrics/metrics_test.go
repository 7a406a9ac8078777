package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordDatasetLoad(t *testing.T) {
	loadedAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	RecordDatasetLoad(120, 3, 7, loadedAt)

	if got := testutil.ToFloat64(DatasetRows); got != 120 {
		t.Errorf("DatasetRows = %v, want 120", got)
	}
	if got := testutil.ToFloat64(DatasetRowsDropped); got != 3 {
		t.Errorf("DatasetRowsDropped = %v, want 3", got)
	}
	if got := testutil.ToFloat64(DatasetFieldsCoerced); got != 7 {
		t.Errorf("DatasetFieldsCoerced = %v, want 7", got)
	}
	if got := testutil.ToFloat64(DatasetLoadedAt); got != float64(loadedAt.Unix()) {
		t.Errorf("DatasetLoadedAt = %v, want %v", got, loadedAt.Unix())
	}
}

func TestRecordQuery(t *testing.T) {
	before := testutil.ToFloat64(QueryWarnings)

	RecordQuery(2*time.Millisecond, 0)
	RecordQuery(3*time.Millisecond, 2)

	if got := testutil.ToFloat64(QueryWarnings) - before; got != 2 {
		t.Errorf("QueryWarnings increased by %v, want 2", got)
	}
}

func TestRecordForecastJob(t *testing.T) {
	tests := []struct {
		name   string
		status string
	}{
		{name: "completed", status: "completed"},
		{name: "failed", status: "failed"},
		{name: "timed out", status: "timed_out"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			counter := ForecastJobsTotal.WithLabelValues(tt.status)
			before := testutil.ToFloat64(counter)

			RecordForecastJob(tt.status, 40*time.Millisecond)

			if got := testutil.ToFloat64(counter) - before; got != 1 {
				t.Errorf("counter increased by %v, want 1", got)
			}
		})
	}
}

func TestRecordAPIRequest(t *testing.T) {
	counter := APIRequestsTotal.WithLabelValues("GET", "/api/dashboard", "200")
	before := testutil.ToFloat64(counter)

	RecordAPIRequest("GET", "/api/dashboard", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(counter) - before; got != 1 {
		t.Errorf("counter increased by %v, want 1", got)
	}
}

func TestTrackActiveRequest(t *testing.T) {
	before := testutil.ToFloat64(APIActiveRequests)

	TrackActiveRequest(true)
	TrackActiveRequest(true)
	if got := testutil.ToFloat64(APIActiveRequests) - before; got != 2 {
		t.Errorf("active requests = %v, want 2", got)
	}

	TrackActiveRequest(false)
	TrackActiveRequest(false)
	if got := testutil.ToFloat64(APIActiveRequests); got != before {
		t.Errorf("active requests = %v, want %v", got, before)
	}
}

func TestSetQueueDepth(t *testing.T) {
	SetQueueDepth(4)
	if got := testutil.ToFloat64(ForecastQueueDepth); got != 4 {
		t.Errorf("ForecastQueueDepth = %v, want 4", got)
	}
	SetQueueDepth(0)
}
