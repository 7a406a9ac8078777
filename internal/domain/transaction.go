package domain

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Transaction represents one normalized sales record.
// This is a domain struct, not a source row; the normalizer in the pipeline
// package maps raw rows into it.
// Numeric fields use decimal.NullDecimal: Valid=false means the source value
// was missing or could not be parsed, and every sum skips it.
type Transaction struct {
	Timestamp time.Time  // from "Purchase_date_and_time"
	Date      civil.Date // calendar date of Timestamp

	Region      *string // from "Municipality" or nil
	ProductID   *string // from "Product_ID" or nil
	ProductName *string // from "Original_name" or nil

	UnitPrice    decimal.NullDecimal // from "Price_EUR"
	Quantity     decimal.NullDecimal // from "Quantity" (may be fractional or negative for returns)
	OriginalCost decimal.NullDecimal // from "Price_Original_EUR"

	Revenue decimal.NullDecimal // explicit "Revenue" or UnitPrice × Quantity
	Profit  decimal.NullDecimal // explicit "Profit_EUR", (UnitPrice − OriginalCost) × Quantity, or 0
}

// RegionName returns the region and whether it is set.
func (t *Transaction) RegionName() (string, bool) {
	if t.Region == nil {
		return "", false
	}
	return *t.Region, true
}

// Schema records which optional columns were present in the source.
// Aggregations branch on these flags rather than inspecting rows.
type Schema struct {
	HasRegion       bool
	HasProductID    bool
	HasProductName  bool
	HasOriginalCost bool
	HasRevenue      bool
	HasProfit       bool
}

// HasProductIdentity reports whether products can be grouped by (id, name).
func (s Schema) HasProductIdentity() bool {
	return s.HasProductID && s.HasProductName
}
