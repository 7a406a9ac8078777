package source

import (
	"context"
	"fmt"
	"os"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// FileSource reads a CSV or XLSX dataset from the local filesystem.
type FileSource struct {
	Path string
}

// NewFileSource creates a source for the file at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (s *FileSource) Fetch(ctx context.Context) (*pipeline.RawTable, error) {
	if _, err := FormatOf(s.Path); err != nil {
		return nil, fmt.Errorf("FileSource.Fetch: %w", err)
	}
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("FileSource.Fetch: read %q: %w", s.Path, err)
	}
	table, err := Decode(s.Path, data)
	if err != nil {
		return nil, fmt.Errorf("FileSource.Fetch: %w", err)
	}
	return table, nil
}

func (s *FileSource) Describe() string {
	return s.Path
}
