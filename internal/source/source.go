// Package source provides the row sources the load pipeline reads from:
// local CSV/XLSX files, dataset objects in Google Cloud Storage and
// BigQuery tables.
package source

import (
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/dvloznov/demand-dashboard/internal/config"
	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// Supported file formats.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// New returns the row source selected by cfg.Kind.
func New(cfg config.SourceConfig) (pipeline.RowSource, error) {
	switch cfg.Kind {
	case config.SourceFile:
		return NewFileSource(cfg.Path), nil
	case config.SourceGCS:
		return NewGCSSource(cfg.GCSURI), nil
	case config.SourceBigQuery:
		return NewBigQuerySource(cfg.BigQuery.Project, cfg.BigQuery.Dataset, cfg.BigQuery.Table), nil
	default:
		return nil, fmt.Errorf("source.New: unknown source kind %q", cfg.Kind)
	}
}

// FormatOf infers the file format from a file name or object path.
func FormatOf(name string) (string, error) {
	switch strings.ToLower(path.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported dataset format %q (want .csv or .xlsx)", path.Ext(name))
	}
}

// Decode parses file contents according to the format implied by name.
func Decode(name string, data []byte) (*pipeline.RawTable, error) {
	format, err := FormatOf(name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatXLSX:
		return DecodeXLSX(bytes.NewReader(data))
	default:
		return DecodeCSV(bytes.NewReader(data))
	}
}
