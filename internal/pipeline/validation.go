package pipeline

import (
	"fmt"
	"strings"

	"github.com/dvloznov/demand-dashboard/internal/domain"
)

// LoadError is a fatal structural problem with the source: the dataset
// cannot be normalized at all. It aborts startup.
type LoadError struct {
	Source string // human readable source location
	Reason string
	Err    error // underlying I/O or decode error, if any
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("load %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("load %s: %s", e.Source, e.Reason)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// columnMap maps canonical column names to the header used by the source.
type columnMap map[string]string

func (c columnMap) has(canonical string) bool {
	_, ok := c[canonical]
	return ok
}

// value returns the raw value of a canonical column in row, or nil.
func (c columnMap) value(row RawRow, canonical string) any {
	header, ok := c[canonical]
	if !ok {
		return nil
	}
	return row[header]
}

// resolveColumns matches source headers against the alias table.
// An exact canonical header wins over an alias; otherwise the first alias in
// header order is used. Unknown headers are ignored.
func resolveColumns(header []string) columnMap {
	cols := make(columnMap)
	exact := make(map[string]bool)
	for _, h := range header {
		canonical, ok := columnAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		isExact := normalizeHeader(h) == canonical
		if _, seen := cols[canonical]; seen && (exact[canonical] || !isExact) {
			continue
		}
		cols[canonical] = h
		exact[canonical] = isExact
	}
	return cols
}

// normalizeHeader trims surrounding whitespace (and a UTF-8 BOM left by
// spreadsheet exports) from a header cell.
func normalizeHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}

// validateSchema checks that the resolved columns allow normalization and
// returns the presence flags used by the aggregations.
func validateSchema(source string, cols columnMap) (domain.Schema, error) {
	if !cols.has(ColumnTimestamp) {
		return domain.Schema{}, &LoadError{
			Source: source,
			Reason: fmt.Sprintf("missing timestamp column %q", ColumnTimestamp),
		}
	}

	schema := domain.Schema{
		HasRegion:       cols.has(ColumnRegion),
		HasProductID:    cols.has(ColumnProductID),
		HasProductName:  cols.has(ColumnProductName),
		HasOriginalCost: cols.has(ColumnOriginalCost),
		HasRevenue:      cols.has(ColumnRevenue),
		HasProfit:       cols.has(ColumnProfit),
	}

	if !schema.HasRevenue && !(cols.has(ColumnUnitPrice) && cols.has(ColumnQuantity)) {
		return domain.Schema{}, &LoadError{
			Source: source,
			Reason: fmt.Sprintf("cannot derive revenue: need %q or both %q and %q",
				ColumnRevenue, ColumnUnitPrice, ColumnQuantity),
		}
	}

	return schema, nil
}
