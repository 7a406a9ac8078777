package analytics

import (
	"cloud.google.com/go/civil"
	"github.com/shopspring/decimal"
)

// Ranking sizes.
const (
	TopRegionsLimit  = 5
	TopProductsLimit = 10
)

// Params are the user supplied filters. Empty fields mean "no filter".
// Start and End are ISO dates (YYYY-MM-DD, RFC3339 is also accepted) and
// are inclusive.
type Params struct {
	Region string
	Start  string
	End    string
}

// KPIs are the headline totals over the filtered set, rounded to 2 dp.
type KPIs struct {
	TotalRevenue    decimal.Decimal `json:"total_revenue"`
	TotalProfit     decimal.Decimal `json:"total_profit"`
	ProfitMarginPct decimal.Decimal `json:"profit_margin_pct"`
}

// RegionRevenue is one entry of the top-regions ranking.
type RegionRevenue struct {
	Region  string          `json:"region"`
	Revenue decimal.Decimal `json:"revenue"`
}

// ProductPerformance is one entry of the top-products ranking.
type ProductPerformance struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Revenue     decimal.Decimal `json:"revenue"`
	Profit      decimal.Decimal `json:"profit"`
}

// DailyAggregate holds exact sums for one calendar date.
type DailyAggregate struct {
	Date     civil.Date      `json:"date"`
	Revenue  decimal.Decimal `json:"revenue"`
	Profit   decimal.Decimal `json:"profit"`
	Quantity decimal.Decimal `json:"quantity"`
}

// Result is an immutable snapshot of one query.
type Result struct {
	KPIs        KPIs                 `json:"kpis"`
	TopRegions  []RegionRevenue      `json:"top_regions"`
	TopProducts []ProductPerformance `json:"top_products"`
	Daily       []DailyAggregate     `json:"daily"`
	Warnings    []string             `json:"warnings,omitempty"`
}
