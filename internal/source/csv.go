package source

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// DecodeCSV reads a delimited text table. The first record is the header.
// The delimiter is ";" when the header line contains more semicolons than
// commas (the usual export format where "," is the decimal separator),
// otherwise ",".
func DecodeCSV(r io.Reader) (*pipeline.RawTable, error) {
	br := bufio.NewReader(r)
	firstLine, err := br.Peek(br.Size())
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return nil, fmt.Errorf("DecodeCSV: peek header: %w", err)
	}
	if i := bytes.IndexByte(firstLine, '\n'); i >= 0 {
		firstLine = firstLine[:i]
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if bytes.Count(firstLine, []byte{';'}) > bytes.Count(firstLine, []byte{','}) {
		cr.Comma = ';'
	}

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return &pipeline.RawTable{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("DecodeCSV: read header: %w", err)
	}

	table := &pipeline.RawTable{Columns: header}
	for {
		record, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("DecodeCSV: read record: %w", err)
		}
		table.Rows = append(table.Rows, recordToRow(header, record))
	}
	return table, nil
}

// recordToRow pairs a record with the header. Short records leave the
// trailing columns missing; extra cells are ignored.
func recordToRow(header, record []string) pipeline.RawRow {
	row := make(pipeline.RawRow, len(header))
	for i, col := range header {
		if i >= len(record) {
			break
		}
		row[col] = record[i]
	}
	return row
}
