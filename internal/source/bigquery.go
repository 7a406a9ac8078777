package source

import (
	"context"
	"fmt"
	"sort"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/iterator"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// BigQuerySource reads the sales table from BigQuery. Column names are
// taken from the table schema and matched by the normalizer's alias table.
type BigQuerySource struct {
	Project string
	Dataset string
	Table   string
}

// NewBigQuerySource creates a source for project.dataset.table.
func NewBigQuerySource(project, dataset, table string) *BigQuerySource {
	return &BigQuerySource{Project: project, Dataset: dataset, Table: table}
}

func (s *BigQuerySource) Describe() string {
	return fmt.Sprintf("bigquery://%s.%s.%s", s.Project, s.Dataset, s.Table)
}

// Fetch reads the whole table.
func (s *BigQuerySource) Fetch(ctx context.Context) (*pipeline.RawTable, error) {
	client, err := bigquery.NewClient(ctx, s.Project)
	if err != nil {
		return nil, fmt.Errorf("BigQuerySource.Fetch: bigquery client: %w", err)
	}
	defer client.Close()

	return s.FetchWithClient(ctx, client)
}

// FetchWithClient reads the whole table using the provided BigQuery client.
func (s *BigQuerySource) FetchWithClient(ctx context.Context, client *bigquery.Client) (*pipeline.RawTable, error) {
	q := client.Query(fmt.Sprintf("SELECT * FROM `%s.%s.%s`", s.Project, s.Dataset, s.Table))

	it, err := q.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("BigQuerySource.FetchWithClient: query read: %w", err)
	}

	return readRows(it)
}

// rowIterator is the subset of *bigquery.RowIterator used by readRows.
type rowIterator interface {
	Next(dst interface{}) error
}

func readRows(it rowIterator) (*pipeline.RawTable, error) {
	table := &pipeline.RawTable{}
	for {
		var r map[string]bigquery.Value
		err := it.Next(&r)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("BigQuerySource: iter next: %w", err)
		}
		row := make(pipeline.RawRow, len(r))
		for k, v := range r {
			row[k] = v
		}
		table.Rows = append(table.Rows, row)
	}

	if bqIt, ok := it.(*bigquery.RowIterator); ok {
		table.Columns = schemaColumns(bqIt.Schema)
	}
	if len(table.Columns) == 0 && len(table.Rows) > 0 {
		for k := range table.Rows[0] {
			table.Columns = append(table.Columns, k)
		}
		sort.Strings(table.Columns)
	}
	return table, nil
}

func schemaColumns(schema bigquery.Schema) []string {
	cols := make([]string, 0, len(schema))
	for _, field := range schema {
		cols = append(cols, field.Name)
	}
	return cols
}
