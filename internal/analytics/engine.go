// Package analytics filters the transaction table and computes KPIs,
// rankings and the daily rollup for one query.
package analytics

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/demand-dashboard/internal/dataset"
	"github.com/dvloznov/demand-dashboard/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Engine answers queries against an immutable dataset. It keeps no
// per-query state and is safe for concurrent use.
type Engine struct {
	ds  *dataset.Dataset
	log zerolog.Logger
}

// NewEngine creates an engine over ds.
func NewEngine(ds *dataset.Dataset, log zerolog.Logger) *Engine {
	return &Engine{ds: ds, log: log}
}

// Query filters the dataset and aggregates the result.
func (e *Engine) Query(p Params) Result {
	f, warnings := e.parseFilter(p)
	rows := f.apply(e.ds.Transactions())

	return Result{
		KPIs:        computeKPIs(rows),
		TopRegions:  topRegions(rows, TopRegionsLimit),
		TopProducts: topProducts(rows, e.ds.Schema(), TopProductsLimit),
		Daily:       dailySeries(rows),
		Warnings:    warnings,
	}
}

// filter is the parsed form of Params.
type filter struct {
	region   string
	hasStart bool
	start    civil.Date
	hasEnd   bool
	end      civil.Date
}

// parseFilter resolves the params. An unparseable date bound is dropped
// and reported as a warning rather than rejected.
func (e *Engine) parseFilter(p Params) (filter, []string) {
	var (
		f        filter
		warnings []string
	)
	f.region = p.Region

	if s := strings.TrimSpace(p.Start); s != "" {
		if d, ok := ParseDate(s); ok {
			f.start, f.hasStart = d, true
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring unparseable start date %q", p.Start))
			e.log.Warn().Str("start", p.Start).Msg("Ignoring unparseable filter bound")
		}
	}
	if s := strings.TrimSpace(p.End); s != "" {
		if d, ok := ParseDate(s); ok {
			f.end, f.hasEnd = d, true
		} else {
			warnings = append(warnings, fmt.Sprintf("ignoring unparseable end date %q", p.End))
			e.log.Warn().Str("end", p.End).Msg("Ignoring unparseable filter bound")
		}
	}
	return f, warnings
}

func (f filter) apply(txs []domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(txs))
	for i := range txs {
		tx := &txs[i]
		if f.region != "" {
			if r, ok := tx.RegionName(); !ok || r != f.region {
				continue
			}
		}
		if f.hasStart && tx.Date.Before(f.start) {
			continue
		}
		if f.hasEnd && tx.Date.After(f.end) {
			continue
		}
		out = append(out, tx)
	}
	return out
}

// ParseDate accepts YYYY-MM-DD or an RFC3339 timestamp (its date part).
func ParseDate(s string) (civil.Date, bool) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return d, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return civil.DateOf(t), true
	}
	if dt, err := civil.ParseDateTime(s); err == nil {
		return dt.Date, true
	}
	return civil.Date{}, false
}

func computeKPIs(rows []*domain.Transaction) KPIs {
	var revenue, profit decimal.Decimal
	for _, tx := range rows {
		revenue = addNull(revenue, tx.Revenue)
		profit = addNull(profit, tx.Profit)
	}

	k := KPIs{
		TotalRevenue:    revenue.Round(2),
		TotalProfit:     profit.Round(2),
		ProfitMarginPct: decimal.Zero,
	}
	if k.TotalRevenue.IsPositive() {
		k.ProfitMarginPct = k.TotalProfit.Mul(hundred).DivRound(k.TotalRevenue, 2)
	}
	return k
}

func topRegions(rows []*domain.Transaction, limit int) []RegionRevenue {
	sums := make(map[string]decimal.Decimal)
	for _, tx := range rows {
		r, ok := tx.RegionName()
		if !ok {
			continue
		}
		sums[r] = addNull(sums[r], tx.Revenue)
	}

	out := make([]RegionRevenue, 0, len(sums))
	for r, rev := range sums {
		out = append(out, RegionRevenue{Region: r, Revenue: rev})
	}
	// Groups come out in ascending key order, then a stable sort by revenue
	// keeps that order among ties.
	sort.Slice(out, func(i, j int) bool { return out[i].Region < out[j].Region })
	sort.SliceStable(out, func(i, j int) bool { return out[i].Revenue.GreaterThan(out[j].Revenue) })

	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Revenue = out[i].Revenue.Round(2)
	}
	return out
}

type productKey struct {
	id, name string
}

func topProducts(rows []*domain.Transaction, schema domain.Schema, limit int) []ProductPerformance {
	out := []ProductPerformance{}
	if !schema.HasProductIdentity() {
		return out
	}

	type sums struct{ revenue, profit decimal.Decimal }
	groups := make(map[productKey]*sums)
	for _, tx := range rows {
		if tx.ProductID == nil || tx.ProductName == nil {
			continue
		}
		key := productKey{id: *tx.ProductID, name: *tx.ProductName}
		g, ok := groups[key]
		if !ok {
			g = &sums{}
			groups[key] = g
		}
		g.revenue = addNull(g.revenue, tx.Revenue)
		g.profit = addNull(g.profit, tx.Profit)
	}

	for k, g := range groups {
		out = append(out, ProductPerformance{
			ProductID:   k.id,
			ProductName: k.name,
			Revenue:     g.revenue,
			Profit:      g.profit,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ProductID != out[j].ProductID {
			return out[i].ProductID < out[j].ProductID
		}
		return out[i].ProductName < out[j].ProductName
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Profit.GreaterThan(out[j].Profit) })

	if len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i].Revenue = out[i].Revenue.Round(2)
		out[i].Profit = out[i].Profit.Round(2)
	}
	return out
}

func dailySeries(rows []*domain.Transaction) []DailyAggregate {
	index := make(map[civil.Date]int)
	out := []DailyAggregate{}
	for _, tx := range rows {
		i, ok := index[tx.Date]
		if !ok {
			i = len(out)
			index[tx.Date] = i
			out = append(out, DailyAggregate{Date: tx.Date})
		}
		out[i].Revenue = addNull(out[i].Revenue, tx.Revenue)
		out[i].Profit = addNull(out[i].Profit, tx.Profit)
		out[i].Quantity = addNull(out[i].Quantity, tx.Quantity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

// addNull adds v to sum unless v is null.
func addNull(sum decimal.Decimal, v decimal.NullDecimal) decimal.Decimal {
	if !v.Valid {
		return sum
	}
	return sum.Add(v.Decimal)
}
