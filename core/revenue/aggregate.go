// Package revenue rolls paid orders up into per-day aggregates and an
// all-time product ranking. The functions here are pure; persistence lives
// behind Store.
package revenue

import (
	"github.com/shopspring/decimal"

	"github.com/kilianp07/fieldops/core/model"
)

// Skip reasons counted while aggregating.
const (
	SkipUnpaid           = "unpaid"
	SkipUnresolvableDate = "unresolvable_date"
	SkipUnidentifiedItem = "unidentified_item"
)

// ProductTotals accumulates one product inside a bucket.
type ProductTotals struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	Units     int             `json:"units"`
	Revenue   decimal.Decimal `json:"revenue"`
}

func (p ProductTotals) add(o ProductTotals) ProductTotals {
	return ProductTotals{
		ProductID: p.ProductID,
		Name:      pickName(p.Name, o.Name),
		Units:     p.Units + o.Units,
		Revenue:   p.Revenue.Add(o.Revenue),
	}
}

// Bucket is the running total of one UTC day.
type Bucket struct {
	Date     string                   `json:"date"`
	Revenue  decimal.Decimal          `json:"revenue"`
	Orders   int                      `json:"orders"`
	Products map[string]ProductTotals `json:"products"`
}

// Clone returns a deep copy.
func (b Bucket) Clone() Bucket {
	c := b
	c.Products = make(map[string]ProductTotals, len(b.Products))
	for k, v := range b.Products {
		c.Products[k] = v
	}
	return c
}

// Buckets maps date keys to buckets.
type Buckets map[string]Bucket

// SkipReport counts orders and items left out of the totals.
type SkipReport struct {
	Unpaid           int `json:"unpaid"`
	UnresolvableDate int `json:"unresolvable_date"`
	UnidentifiedItem int `json:"unidentified_item"`
}

// Total returns the number of skipped orders.
func (r SkipReport) Total() int { return r.Unpaid + r.UnresolvableDate }

// ByReason returns the non-zero counters keyed by reason.
func (r SkipReport) ByReason() map[string]int {
	out := map[string]int{}
	if r.Unpaid > 0 {
		out[SkipUnpaid] = r.Unpaid
	}
	if r.UnresolvableDate > 0 {
		out[SkipUnresolvableDate] = r.UnresolvableDate
	}
	if r.UnidentifiedItem > 0 {
		out[SkipUnidentifiedItem] = r.UnidentifiedItem
	}
	return out
}

// Add sums two reports.
func (r SkipReport) Add(o SkipReport) SkipReport {
	return SkipReport{
		Unpaid:           r.Unpaid + o.Unpaid,
		UnresolvableDate: r.UnresolvableDate + o.UnresolvableDate,
		UnidentifiedItem: r.UnidentifiedItem + o.UnidentifiedItem,
	}
}

// AggregateDailyOrders buckets settled orders by the UTC day they were
// created. Unpaid orders and orders without a usable date are counted in the
// report and otherwise ignored.
func AggregateDailyOrders(orders []model.Order) (Buckets, SkipReport) {
	out := Buckets{}
	var skips SkipReport
	for _, o := range orders {
		if !o.PaymentStatus.Settled() {
			skips.Unpaid++
			continue
		}
		at, ok := o.CreatedAt.Resolve()
		if !ok {
			skips.UnresolvableDate++
			continue
		}
		key := model.DateKey(at)
		b, ok := out[key]
		if !ok {
			b = Bucket{Date: key, Products: map[string]ProductTotals{}}
		}
		products, unidentified := orderProducts(o)
		skips.UnidentifiedItem += unidentified
		b.Revenue = b.Revenue.Add(orderRevenue(o))
		b.Orders++
		for id, p := range products {
			if cur, ok := b.Products[id]; ok {
				b.Products[id] = cur.add(p)
			} else {
				b.Products[id] = p
			}
		}
		out[key] = b
	}
	return out, skips
}

// UpsertDailyMap merges additional into base and returns a new map. Neither
// input is modified. The merge is associative and commutative.
func UpsertDailyMap(base, additional Buckets) Buckets {
	out := make(Buckets, len(base)+len(additional))
	for k, b := range base {
		out[k] = b.Clone()
	}
	for k, add := range additional {
		cur, ok := out[k]
		if !ok {
			out[k] = add.Clone()
			continue
		}
		cur.Revenue = cur.Revenue.Add(add.Revenue)
		cur.Orders += add.Orders
		for id, p := range add.Products {
			if have, ok := cur.Products[id]; ok {
				cur.Products[id] = have.add(p)
			} else {
				cur.Products[id] = p
			}
		}
		out[k] = cur
	}
	return out
}

// orderRevenue is the order total, or the sum of its lines when no total was
// recorded.
func orderRevenue(o model.Order) decimal.Decimal {
	if o.Total > 0 {
		return decimal.NewFromFloat(o.Total)
	}
	sum := decimal.Zero
	for _, it := range o.Items {
		sum = sum.Add(lineRevenue(it))
	}
	return sum
}

func lineRevenue(it model.OrderItem) decimal.Decimal {
	return decimal.NewFromFloat(it.Price).Mul(decimal.NewFromInt(int64(it.Quantity)))
}

// orderProducts groups the lines of o by product. Lines without a product id
// fall back to their name; lines with neither are counted as unidentified.
func orderProducts(o model.Order) (map[string]ProductTotals, int) {
	out := map[string]ProductTotals{}
	unidentified := 0
	for _, it := range o.Items {
		id := it.ProductID
		if id == "" {
			id = it.Name
		}
		if id == "" {
			unidentified++
			continue
		}
		p := ProductTotals{ProductID: id, Name: it.Name, Units: it.Quantity, Revenue: lineRevenue(it)}
		if cur, ok := out[id]; ok {
			p = cur.add(p)
		}
		out[id] = p
	}
	return out, unidentified
}

// pickName chooses a display name independently of the order records are
// seen in: the lexicographically smallest non-empty one.
func pickName(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	case b < a:
		return b
	}
	return a
}
