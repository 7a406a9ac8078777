package pipeline

import (
	"context"
)

// RowSource provides raw sales rows to the load pipeline.
// Implementations live in the source package (local file, GCS object, BigQuery table).
// This interface enables testing the pipeline without any I/O.
type RowSource interface {
	// Fetch reads the whole source and returns its header and rows.
	Fetch(ctx context.Context) (*RawTable, error)

	// Describe returns a human readable location, e.g. "gs://bucket/sales.xlsx".
	Describe() string
}
