package pipeline

import (
	"context"
	"errors"
	"testing"
)

// mockRowSource is a mock implementation of RowSource for testing.
type mockRowSource struct {
	FetchFunc    func(ctx context.Context) (*RawTable, error)
	DescribeFunc func() string
}

func (m *mockRowSource) Fetch(ctx context.Context) (*RawTable, error) {
	if m.FetchFunc != nil {
		return m.FetchFunc(ctx)
	}
	return &RawTable{}, nil
}

func (m *mockRowSource) Describe() string {
	if m.DescribeFunc != nil {
		return m.DescribeFunc()
	}
	return "mock://sales"
}

func TestLoad(t *testing.T) {
	src := &mockRowSource{
		FetchFunc: func(ctx context.Context) (*RawTable, error) {
			return &RawTable{
				Columns: []string{"Purchase_date_and_time", "Municipality", "product_id", "Original Name", "Price_EUR", "Quantity"},
				Rows: []RawRow{
					{"Purchase_date_and_time": "2024-01-02 09:00:00", "Municipality": "North", "product_id": "P1", "Original Name": "Widget", "Price_EUR": "2,5", "Quantity": "4"},
					{"Purchase_date_and_time": "bad", "Municipality": "South"},
				},
			}, nil
		},
	}

	got, err := Load(context.Background(), src)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !got.Schema.HasProductIdentity() {
		t.Error("aliased product columns not recognised")
	}
	if got.Stats.RowsRead != 2 || got.Stats.RowsDropped != 1 {
		t.Errorf("Stats = %+v, want RowsRead=2 RowsDropped=1", got.Stats)
	}
	if len(got.Transactions) != 1 || *got.Transactions[0].ProductName != "Widget" {
		t.Errorf("Transactions = %+v", got.Transactions)
	}
}

func TestLoad_Errors(t *testing.T) {
	fetchErr := errors.New("connection reset")

	tests := []struct {
		name      string
		fetch     func(ctx context.Context) (*RawTable, error)
		wantCause error
	}{
		{
			name:      "fetch failure",
			fetch:     func(ctx context.Context) (*RawTable, error) { return nil, fetchErr },
			wantCause: fetchErr,
		},
		{
			name: "missing timestamp column",
			fetch: func(ctx context.Context) (*RawTable, error) {
				return &RawTable{Columns: []string{"Revenue"}}, nil
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(context.Background(), &mockRowSource{FetchFunc: tt.fetch})
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Load() error = %v, want *LoadError", err)
			}
			if loadErr.Source != "mock://sales" {
				t.Errorf("LoadError.Source = %q, want mock://sales", loadErr.Source)
			}
			if tt.wantCause != nil && !errors.Is(err, tt.wantCause) {
				t.Errorf("Load() error = %v, want wrapping %v", err, tt.wantCause)
			}
		})
	}
}

func TestPipeline_StopsOnFirstError(t *testing.T) {
	var ran []int
	step := func(i int, err error) PipelineStep {
		return stepFunc(func(ctx context.Context, state *PipelineState) error {
			ran = append(ran, i)
			return err
		})
	}

	p := NewPipeline(step(1, nil), step(2, errors.New("boom")), step(3, nil))
	err := p.Execute(context.Background(), &PipelineState{})
	if err == nil || err.Error() != "pipeline step 2 failed: boom" {
		t.Errorf("Execute() error = %v, want step 2 failure", err)
	}
	if len(ran) != 2 {
		t.Errorf("ran steps %v, want [1 2]", ran)
	}
}

type stepFunc func(ctx context.Context, state *PipelineState) error

func (f stepFunc) Execute(ctx context.Context, state *PipelineState) error {
	return f(ctx, state)
}
