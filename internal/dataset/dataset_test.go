package dataset

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

type staticSource struct {
	table *pipeline.RawTable
	err   error
}

func (s *staticSource) Fetch(ctx context.Context) (*pipeline.RawTable, error) {
	return s.table, s.err
}

func (s *staticSource) Describe() string { return "static" }

func TestLoad(t *testing.T) {
	src := &staticSource{table: &pipeline.RawTable{
		Columns: []string{"Purchase_date_and_time", "Municipality", "Revenue"},
		Rows: []pipeline.RawRow{
			{"Purchase_date_and_time": "2024-01-01", "Municipality": "South", "Revenue": "1"},
			{"Purchase_date_and_time": "2024-01-02", "Municipality": "North", "Revenue": "2"},
			{"Purchase_date_and_time": "2024-01-03", "Municipality": "South", "Revenue": "x"},
			{"Purchase_date_and_time": "2024-01-04", "Revenue": "4"},
			{"Purchase_date_and_time": "nope", "Municipality": "East", "Revenue": "4"},
		},
	}}

	var buf bytes.Buffer
	ds, err := Load(context.Background(), src, zerolog.New(&buf))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if ds.Len() != 4 {
		t.Errorf("Len() = %d, want 4", ds.Len())
	}
	regions := ds.Regions()
	if strings.Join(regions, ",") != "North,South" {
		t.Errorf("Regions() = %v, want [North South]", regions)
	}
	regions[0] = "mutated"
	if ds.Regions()[0] != "North" {
		t.Error("Regions() must return a copy")
	}
	if !ds.Schema().HasRegion {
		t.Error("Schema().HasRegion = false")
	}
	if ds.Stats().RowsDropped != 1 || ds.Stats().FieldsCoerced != 1 {
		t.Errorf("Stats() = %+v", ds.Stats())
	}
	if ds.Source() != "static" || ds.LoadedAt().IsZero() {
		t.Errorf("Source() = %q, LoadedAt() = %v", ds.Source(), ds.LoadedAt())
	}

	logged := buf.String()
	if !strings.Contains(logged, `"rows_dropped":1`) || !strings.Contains(logged, `"level":"warn"`) {
		t.Errorf("load summary log = %s", logged)
	}
}

func TestLoad_Error(t *testing.T) {
	src := &staticSource{err: errors.New("disk on fire")}
	_, err := Load(context.Background(), src, zerolog.Nop())

	var loadErr *pipeline.LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want *pipeline.LoadError", err)
	}
}
