package pipeline

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/demand-dashboard/internal/domain"
)

// Normalize validates the table header and converts every row into a
// canonical transaction. It returns *LoadError for structural problems;
// row-level problems never fail the load.
func Normalize(source string, table *RawTable) (*Normalized, error) {
	cols := resolveColumns(table.Columns)
	schema, err := validateSchema(source, cols)
	if err != nil {
		return nil, err
	}
	return normalizeRows(table, cols, schema), nil
}

func normalizeRows(table *RawTable, cols columnMap, schema domain.Schema) *Normalized {
	out := &Normalized{
		Transactions: make([]domain.Transaction, 0, len(table.Rows)),
		Schema:       schema,
	}
	out.Stats.RowsRead = len(table.Rows)

	for _, row := range table.Rows {
		ts, ok := coerceTimestamp(cols.value(row, ColumnTimestamp))
		if !ok {
			out.Stats.RowsDropped++
			continue
		}

		tx := domain.Transaction{
			Timestamp:   ts,
			Date:        civil.DateOf(ts),
			Region:      coerceText(cols.value(row, ColumnRegion)),
			ProductID:   coerceText(cols.value(row, ColumnProductID)),
			ProductName: coerceText(cols.value(row, ColumnProductName)),
		}

		var failed bool
		tx.UnitPrice, failed = coerceMoney(cols.value(row, ColumnUnitPrice))
		out.Stats.FieldsCoerced += count(failed)
		tx.Quantity, failed = coerceQuantity(cols.value(row, ColumnQuantity))
		out.Stats.FieldsCoerced += count(failed)
		tx.OriginalCost, failed = coerceMoney(cols.value(row, ColumnOriginalCost))
		out.Stats.FieldsCoerced += count(failed)

		if schema.HasRevenue {
			tx.Revenue, failed = coerceMoney(cols.value(row, ColumnRevenue))
			out.Stats.FieldsCoerced += count(failed)
		}
		if !tx.Revenue.Valid {
			tx.Revenue = product(tx.UnitPrice, tx.Quantity)
		}

		switch {
		case schema.HasProfit:
			tx.Profit, failed = coerceMoney(cols.value(row, ColumnProfit))
			out.Stats.FieldsCoerced += count(failed)
		case schema.HasOriginalCost:
			if tx.UnitPrice.Valid && tx.OriginalCost.Valid && tx.Quantity.Valid {
				margin := tx.UnitPrice.Decimal.Sub(tx.OriginalCost.Decimal)
				tx.Profit = valid(margin.Mul(tx.Quantity.Decimal))
			}
		default:
			// Without cost data profit is reported as zero, not unknown.
			tx.Profit = valid(decimal.Zero)
		}

		out.Transactions = append(out.Transactions, tx)
	}

	return out
}

func product(a, b decimal.NullDecimal) decimal.NullDecimal {
	if !a.Valid || !b.Valid {
		return decimal.NullDecimal{}
	}
	return valid(a.Decimal.Mul(b.Decimal))
}

func count(b bool) int {
	if b {
		return 1
	}
	return 0
}
