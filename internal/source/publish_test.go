package source

import (
	"testing"

	"cloud.google.com/go/bigquery"

	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

func TestToSalesRows(t *testing.T) {
	n, err := pipeline.Normalize("test", &pipeline.RawTable{
		Columns: []string{"Purchase_date_and_time", "Municipality", "Product_ID", "Original_name", "Price_EUR", "Quantity", "Price_Original_EUR"},
		Rows: []pipeline.RawRow{
			{"Purchase_date_and_time": "2024-01-02 10:30:00", "Municipality": "North", "Product_ID": "P1", "Original_name": "Cola", "Price_EUR": "12,50", "Quantity": "3", "Price_Original_EUR": "10,00"},
			{"Purchase_date_and_time": "2024-01-03 08:00:00", "Product_ID": "P2", "Original_name": "Chips", "Price_EUR": "n/a", "Quantity": "1"},
		},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	rows := ToSalesRows(n.Transactions)
	if len(rows) != 2 {
		t.Fatalf("len(rows) = %d, want 2", len(rows))
	}

	first := rows[0]
	if first.Timestamp.String() != "2024-01-02T10:30:00" {
		t.Errorf("Timestamp = %s", first.Timestamp)
	}
	if !first.Region.Valid || first.Region.StringVal != "North" {
		t.Errorf("Region = %+v", first.Region)
	}
	if first.Revenue.FloatString(2) != "37.50" || first.Profit.FloatString(2) != "7.50" {
		t.Errorf("Revenue/Profit = %s/%s, want 37.50/7.50", first.Revenue.FloatString(2), first.Profit.FloatString(2))
	}

	second := rows[1]
	if second.Region.Valid {
		t.Errorf("Region = %+v, want NULL", second.Region)
	}
	if second.UnitPrice != nil || second.Revenue != nil {
		t.Errorf("unparseable price should publish as NULL, got %v/%v", second.UnitPrice, second.Revenue)
	}

	if _, err := bigquery.InferSchema(SalesRow{}); err != nil {
		t.Errorf("InferSchema() error = %v", err)
	}
}

// A published table read back through BigQuerySource yields the same totals.
func TestPublishedRowsReadBack(t *testing.T) {
	n, err := pipeline.Normalize("test", &pipeline.RawTable{
		Columns: []string{"Purchase_date_and_time", "Municipality", "Price_EUR", "Quantity", "Price_Original_EUR"},
		Rows: []pipeline.RawRow{
			{"Purchase_date_and_time": "2024-01-02 10:30:00", "Municipality": "North", "Price_EUR": "12,50", "Quantity": "3", "Price_Original_EUR": "10,00"},
			{"Purchase_date_and_time": "2024-01-05 12:00:00", "Municipality": "South", "Price_EUR": "2", "Quantity": "-1", "Price_Original_EUR": "1"},
		},
	})
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	var stored []map[string]bigquery.Value
	for _, r := range ToSalesRows(n.Transactions) {
		row := map[string]bigquery.Value{
			"Purchase_date_and_time": r.Timestamp,
			"Municipality":           nil,
			"Price_EUR":              r.UnitPrice,
			"Quantity":               r.Quantity,
			"Price_Original_EUR":     r.OriginalCost,
			"Revenue":                r.Revenue,
			"Profit_EUR":             r.Profit,
		}
		if r.Region.Valid {
			row["Municipality"] = r.Region.StringVal
		}
		stored = append(stored, row)
	}

	table, err := readRows(&fakeRowIterator{rows: stored})
	if err != nil {
		t.Fatalf("readRows() error = %v", err)
	}
	back, err := pipeline.Normalize("bigquery://p.d.t", table)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}

	if len(back.Transactions) != len(n.Transactions) {
		t.Fatalf("len = %d, want %d", len(back.Transactions), len(n.Transactions))
	}
	for i := range n.Transactions {
		want, got := n.Transactions[i], back.Transactions[i]
		if !got.Timestamp.Equal(want.Timestamp) {
			t.Errorf("row %d Timestamp = %v, want %v", i, got.Timestamp, want.Timestamp)
		}
		if !got.Revenue.Decimal.Equal(want.Revenue.Decimal) || !got.Profit.Decimal.Equal(want.Profit.Decimal) {
			t.Errorf("row %d Revenue/Profit = %s/%s, want %s/%s", i,
				got.Revenue.Decimal, got.Profit.Decimal, want.Revenue.Decimal, want.Profit.Decimal)
		}
	}
	if back.Stats.FieldsCoerced != 0 {
		t.Errorf("FieldsCoerced = %d, want 0", back.Stats.FieldsCoerced)
	}
}
