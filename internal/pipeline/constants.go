package pipeline

// Canonical column names of the sales dataset.
const (
	ColumnTimestamp    = "Purchase_date_and_time"
	ColumnRegion       = "Municipality"
	ColumnProductID    = "Product_ID"
	ColumnProductName  = "Original_name"
	ColumnUnitPrice    = "Price_EUR"
	ColumnQuantity     = "Quantity"
	ColumnOriginalCost = "Price_Original_EUR"
	ColumnRevenue      = "Revenue"
	ColumnProfit       = "Profit_EUR"
)

// columnAliases maps known synonyms to canonical column names.
// Canonical names map to themselves so a single lookup resolves any header.
var columnAliases = map[string]string{
	ColumnTimestamp:          ColumnTimestamp,
	"purchase_date_and_time": ColumnTimestamp,

	ColumnRegion:   ColumnRegion,
	"municipality": ColumnRegion,

	ColumnProductID: ColumnProductID,
	"product_id":    ColumnProductID,
	"ProductId":     ColumnProductID,

	ColumnProductName: ColumnProductName,
	"original_name":   ColumnProductName,
	"Original Name":   ColumnProductName,

	ColumnUnitPrice: ColumnUnitPrice,
	"price_eur":     ColumnUnitPrice,

	ColumnQuantity: ColumnQuantity,
	"quantity":     ColumnQuantity,

	ColumnOriginalCost:   ColumnOriginalCost,
	"price_original_eur": ColumnOriginalCost,

	ColumnRevenue: ColumnRevenue,
	"revenue":     ColumnRevenue,

	ColumnProfit: ColumnProfit,
	"profit_eur":  ColumnProfit,
}

// timestampLayouts are tried in order for textual timestamps.
var timestampLayouts = []string{
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006",
}

// Excel serial dates outside this range are not treated as timestamps
// (1 = 1900-01-01, 2958465 = 9999-12-31).
const (
	minExcelSerial = 1
	maxExcelSerial = 2958465
)
