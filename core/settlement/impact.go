package settlement

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kilianp07/fieldops/core/model"
)

// PricingImpact lists the changes between two pricing tables in service type
// order. Unchanged prices are omitted.
func (c *Calculator) PricingImpact(old, next model.ServicePricing) []model.PriceChange {
	return PricingImpact(old, next, c.cfg.TechnicianPayoutRate())
}

// PricingImpact compares old and next with the given technician payout rate.
// A service type priced 0 before the change reports a 100% increase.
func PricingImpact(old, next model.ServicePricing, payoutRate float64) []model.PriceChange {
	var out []model.PriceChange
	for _, st := range model.AllServiceTypes() {
		before := decimal.NewFromFloat(old.Prices[st])
		after := decimal.NewFromFloat(next.Prices[st])
		delta := after.Sub(before)
		if delta.IsZero() {
			continue
		}
		pct := decimal.NewFromInt(100)
		if !before.IsZero() {
			pct = delta.Div(before).Mul(decimal.NewFromInt(100)).Round(2)
		}
		out = append(out, model.PriceChange{
			ServiceType:      st,
			OldPrice:         before.InexactFloat64(),
			NewPrice:         after.InexactFloat64(),
			Delta:            delta.InexactFloat64(),
			Percentage:       pct.InexactFloat64(),
			CustomerDelta:    fmt.Sprintf("%+.2f", delta.InexactFloat64()),
			TechnicianImpact: delta.Mul(decimal.NewFromFloat(payoutRate)).Round(2).InexactFloat64(),
		})
	}
	return out
}
