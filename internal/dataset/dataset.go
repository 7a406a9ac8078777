// Package dataset holds the normalized sales table shared by every query.
// A Dataset is built once at startup and never mutated afterwards, so it
// can be read from any number of goroutines without locking.
package dataset

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/dvloznov/demand-dashboard/internal/domain"
	"github.com/dvloznov/demand-dashboard/internal/metrics"
	"github.com/dvloznov/demand-dashboard/internal/pipeline"
)

// Dataset is the immutable, process-wide transaction table.
type Dataset struct {
	transactions []domain.Transaction
	schema       domain.Schema
	regions      []string
	stats        pipeline.LoadStats
	source       string
	loadedAt     time.Time
}

// New builds a Dataset from normalized rows. The transactions slice is
// owned by the Dataset afterwards.
func New(source string, n *pipeline.Normalized) *Dataset {
	return &Dataset{
		transactions: n.Transactions,
		schema:       n.Schema,
		regions:      distinctRegions(n.Transactions),
		stats:        n.Stats,
		source:       source,
		loadedAt:     time.Now().UTC(),
	}
}

// Load runs the load pipeline against src and builds the Dataset.
// The returned error is a *pipeline.LoadError (possibly wrapped).
func Load(ctx context.Context, src pipeline.RowSource, log zerolog.Logger) (*Dataset, error) {
	start := time.Now()
	n, err := pipeline.Load(ctx, src)
	if err != nil {
		return nil, err
	}
	ds := New(src.Describe(), n)
	metrics.RecordDatasetLoad(len(ds.transactions), n.Stats.RowsDropped, n.Stats.FieldsCoerced, ds.loadedAt)

	ev := log.Info()
	if n.Stats.RowsDropped > 0 || n.Stats.FieldsCoerced > 0 {
		ev = log.Warn()
	}
	ev.Str("source", ds.source).
		Int("rows_read", n.Stats.RowsRead).
		Int("rows_dropped", n.Stats.RowsDropped).
		Int("fields_coerced", n.Stats.FieldsCoerced).
		Int("rows", len(ds.transactions)).
		Int("regions", len(ds.regions)).
		Dur("duration", time.Since(start)).
		Msg("Dataset loaded")

	return ds, nil
}

// Transactions returns the rows. Callers must not modify the slice.
func (d *Dataset) Transactions() []domain.Transaction {
	return d.transactions
}

// Schema returns the column presence flags.
func (d *Dataset) Schema() domain.Schema {
	return d.schema
}

// Regions returns the distinct non-null regions in ascending order.
// The returned slice is a copy.
func (d *Dataset) Regions() []string {
	out := make([]string, len(d.regions))
	copy(out, d.regions)
	return out
}

// Stats returns the load statistics.
func (d *Dataset) Stats() pipeline.LoadStats {
	return d.stats
}

// Source returns where the dataset was loaded from.
func (d *Dataset) Source() string {
	return d.source
}

// LoadedAt returns when the dataset was built.
func (d *Dataset) LoadedAt() time.Time {
	return d.loadedAt
}

// Len returns the number of transactions.
func (d *Dataset) Len() int {
	return len(d.transactions)
}

func distinctRegions(txs []domain.Transaction) []string {
	seen := make(map[string]struct{})
	for i := range txs {
		if r, ok := txs[i].RegionName(); ok {
			seen[r] = struct{}{}
		}
	}
	regions := make([]string, 0, len(seen))
	for r := range seen {
		regions = append(regions, r)
	}
	sort.Strings(regions)
	return regions
}
