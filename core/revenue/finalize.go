package revenue

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/fieldops/core/model"
)

// FinalizeDailyAggregates turns buckets into day aggregates sorted by date,
// each carrying its topN products. topN <= 0 keeps every product.
func FinalizeDailyAggregates(buckets Buckets, topN int) []model.DailyAggregate {
	out := make([]model.DailyAggregate, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, Finalize(b, topN))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// Finalize converts a single bucket.
func Finalize(b Bucket, topN int) model.DailyAggregate {
	return model.DailyAggregate{
		Date:        b.Date,
		Revenue:     b.Revenue.Round(2).InexactFloat64(),
		Orders:      b.Orders,
		TopProducts: rankProducts(b.Products, topN),
	}
}

// ComputeTopProductsAllTime ranks products across every settled order,
// regardless of whether its date can be resolved.
func ComputeTopProductsAllTime(orders []model.Order, limit int) []model.ProductSummary {
	totals := map[string]ProductTotals{}
	for _, o := range orders {
		if !o.PaymentStatus.Settled() {
			continue
		}
		products, _ := orderProducts(o)
		for id, p := range products {
			if cur, ok := totals[id]; ok {
				totals[id] = cur.add(p)
			} else {
				totals[id] = p
			}
		}
	}
	return rankProducts(totals, limit)
}

// rankProducts sorts by units then revenue, both descending, with the
// product id as final tie-break.
func rankProducts(products map[string]ProductTotals, limit int) []model.ProductSummary {
	list := make([]ProductTotals, 0, len(products))
	for _, p := range products {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if a.Units != b.Units {
			return a.Units > b.Units
		}
		if c := a.Revenue.Cmp(b.Revenue); c != 0 {
			return c > 0
		}
		return a.ProductID < b.ProductID
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	out := make([]model.ProductSummary, len(list))
	for i, p := range list {
		out[i] = model.ProductSummary{
			ProductID: p.ProductID,
			Name:      p.Name,
			Units:     p.Units,
			Revenue:   p.Revenue.Round(2).InexactFloat64(),
		}
	}
	return out
}

// TotalRevenue sums the revenue of the given aggregates exactly.
func TotalRevenue(days []model.DailyAggregate) float64 {
	sum := decimal.Zero
	for _, d := range days {
		sum = sum.Add(decimal.NewFromFloat(d.Revenue))
	}
	return sum.Round(2).InexactFloat64()
}
