package pipeline

import (
	"github.com/dvloznov/demand-dashboard/internal/domain"
)

// RawRow is one source row keyed by its original column header.
// Values keep whatever type the source produced (string for CSV/XLSX,
// bigquery.Value types for warehouse rows).
type RawRow map[string]any

// RawTable is a decoded source: the header as read plus its rows.
type RawTable struct {
	Columns []string
	Rows    []RawRow
}

// LoadStats summarises what the normalizer did with the source rows.
type LoadStats struct {
	RowsRead      int `json:"rows_read"`
	RowsDropped   int `json:"rows_dropped"`   // unparseable timestamp
	FieldsCoerced int `json:"fields_coerced"` // present but unparseable numeric fields turned into null
}

// Normalized is the canonical transaction table produced by the pipeline.
type Normalized struct {
	Transactions []domain.Transaction
	Schema       domain.Schema
	Stats        LoadStats
}
