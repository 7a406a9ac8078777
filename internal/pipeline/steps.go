package pipeline

import (
	"context"
	"fmt"

	"github.com/dvloznov/demand-dashboard/internal/domain"
)

// PipelineStep represents a single step in the load pipeline.
type PipelineStep interface {
	Execute(ctx context.Context, state *PipelineState) error
}

// PipelineState holds the shared state across all pipeline steps.
type PipelineState struct {
	Source  RowSource
	Table   *RawTable
	Columns columnMap
	Schema  domain.Schema
	Result  *Normalized
}

// Step 1: FetchSourceStep reads the raw table from the configured source.
type FetchSourceStep struct{}

func (s *FetchSourceStep) Execute(ctx context.Context, state *PipelineState) error {
	if state.Source == nil {
		return &LoadError{Source: "<nil>", Reason: "no source configured"}
	}
	table, err := state.Source.Fetch(ctx)
	if err != nil {
		return &LoadError{Source: state.Source.Describe(), Reason: "fetch source", Err: err}
	}
	state.Table = table
	return nil
}

// Step 2: ValidateSchemaStep resolves column aliases and checks the header.
type ValidateSchemaStep struct{}

func (s *ValidateSchemaStep) Execute(ctx context.Context, state *PipelineState) error {
	cols := resolveColumns(state.Table.Columns)
	schema, err := validateSchema(state.Source.Describe(), cols)
	if err != nil {
		return err
	}
	state.Columns = cols
	state.Schema = schema
	return nil
}

// Step 3: NormalizeRowsStep converts raw rows into canonical transactions.
type NormalizeRowsStep struct{}

func (s *NormalizeRowsStep) Execute(ctx context.Context, state *PipelineState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	state.Result = normalizeRows(state.Table, state.Columns, state.Schema)
	return nil
}

// Pipeline executes a sequence of steps in order.
type Pipeline struct {
	steps []PipelineStep
}

// NewPipeline creates a new pipeline with the given steps.
func NewPipeline(steps ...PipelineStep) *Pipeline {
	return &Pipeline{steps: steps}
}

// Execute runs all steps in the pipeline sequentially.
func (p *Pipeline) Execute(ctx context.Context, state *PipelineState) error {
	for i, step := range p.steps {
		if err := step.Execute(ctx, state); err != nil {
			return fmt.Errorf("pipeline step %d failed: %w", i+1, err)
		}
	}
	return nil
}

// NewLoadPipeline creates the standard 3-step pipeline for loading a sales dataset.
func NewLoadPipeline() *Pipeline {
	return NewPipeline(
		&FetchSourceStep{},
		&ValidateSchemaStep{},
		&NormalizeRowsStep{},
	)
}

// Load runs the standard pipeline against src.
func Load(ctx context.Context, src RowSource) (*Normalized, error) {
	state := &PipelineState{Source: src}
	if err := NewLoadPipeline().Execute(ctx, state); err != nil {
		return nil, err
	}
	return state.Result, nil
}
