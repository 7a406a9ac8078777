package source

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// DecodeXLSX reads the first worksheet of a workbook. Leading blank rows
// are skipped; the first non-blank row is the header. Cells are read as raw
// values so dates arrive as Excel serial numbers and amounts keep full
// precision regardless of the cell number format.
func DecodeXLSX(r io.Reader) (*pipeline.RawTable, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("DecodeXLSX: open workbook: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("DecodeXLSX: workbook has no sheets")
	}

	rows, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("DecodeXLSX: read sheet %q: %w", sheets[0], err)
	}

	start := 0
	for start < len(rows) && isBlank(rows[start]) {
		start++
	}
	if start == len(rows) {
		return &pipeline.RawTable{}, nil
	}

	header := rows[start]
	table := &pipeline.RawTable{Columns: header}
	for _, record := range rows[start+1:] {
		if isBlank(record) {
			continue
		}
		table.Rows = append(table.Rows, recordToRow(header, record))
	}
	return table, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
