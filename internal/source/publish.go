package source

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
	"google.golang.org/api/googleapi"

	"github.com/dvloznov/demand-dashboard/internal/domain"
)

// publishBatchSize bounds the rows sent per streaming insert call.
const publishBatchSize = 500

// SalesRow is the BigQuery representation of a normalized transaction.
// Column names are the canonical dataset headers, so a published table can
// be served back through BigQuerySource.
type SalesRow struct {
	Timestamp    civil.DateTime      `bigquery:"Purchase_date_and_time"`
	Region       bigquery.NullString `bigquery:"Municipality"`
	ProductID    bigquery.NullString `bigquery:"Product_ID"`
	ProductName  bigquery.NullString `bigquery:"Original_name"`
	UnitPrice    *big.Rat            `bigquery:"Price_EUR"`
	Quantity     *big.Rat            `bigquery:"Quantity"`
	OriginalCost *big.Rat            `bigquery:"Price_Original_EUR"`
	Revenue      *big.Rat            `bigquery:"Revenue"`
	Profit       *big.Rat            `bigquery:"Profit_EUR"`
}

// ToSalesRows converts transactions to BigQuery rows.
func ToSalesRows(txs []domain.Transaction) []*SalesRow {
	rows := make([]*SalesRow, len(txs))
	for i, tx := range txs {
		rows[i] = &SalesRow{
			Timestamp:    civil.DateTimeOf(tx.Timestamp),
			Region:       nullString(tx.Region),
			ProductID:    nullString(tx.ProductID),
			ProductName:  nullString(tx.ProductName),
			UnitPrice:    rat(tx.UnitPrice),
			Quantity:     rat(tx.Quantity),
			OriginalCost: rat(tx.OriginalCost),
			Revenue:      rat(tx.Revenue),
			Profit:       rat(tx.Profit),
		}
	}
	return rows
}

// PublishToBigQuery creates project.dataset.table if needed and streams txs into it.
func PublishToBigQuery(ctx context.Context, project, datasetID, tableID string, txs []domain.Transaction) error {
	client, err := bigquery.NewClient(ctx, project)
	if err != nil {
		return fmt.Errorf("PublishToBigQuery: bigquery client: %w", err)
	}
	defer client.Close()

	return PublishWithClient(ctx, client, datasetID, tableID, txs)
}

// PublishWithClient creates the table if needed and streams txs into it
// using the provided BigQuery client.
func PublishWithClient(ctx context.Context, client *bigquery.Client, datasetID, tableID string, txs []domain.Transaction) error {
	schema, err := bigquery.InferSchema(SalesRow{})
	if err != nil {
		return fmt.Errorf("PublishToBigQuery: infer schema: %w", err)
	}

	table := client.Dataset(datasetID).Table(tableID)
	if err := table.Create(ctx, &bigquery.TableMetadata{Schema: schema}); err != nil && !isAlreadyExists(err) {
		return fmt.Errorf("PublishToBigQuery: create table: %w", err)
	}

	rows := ToSalesRows(txs)
	inserter := table.Inserter()
	for start := 0; start < len(rows); start += publishBatchSize {
		end := min(start+publishBatchSize, len(rows))
		if err := inserter.Put(ctx, rows[start:end]); err != nil {
			return fmt.Errorf("PublishToBigQuery: inserting rows %d-%d: %w", start, end, err)
		}
	}
	return nil
}

func isAlreadyExists(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusConflict
}

func nullString(s *string) bigquery.NullString {
	if s == nil {
		return bigquery.NullString{}
	}
	return bigquery.NullString{StringVal: *s, Valid: true}
}

func rat(d decimal.NullDecimal) *big.Rat {
	if !d.Valid {
		return nil
	}
	return d.Decimal.Rat()
}
