package model

import (
	"fmt"
	"time"
)

// ServicePricing is the price list applied to new bookings.
type ServicePricing struct {
	Prices    map[ServiceType]float64 `json:"prices"`
	UpdatedAt time.Time               `json:"updated_at"`
	UpdatedBy string                  `json:"updated_by"`
}

// DefaultPricing is used whenever no pricing record has been stored yet.
func DefaultPricing() ServicePricing {
	return ServicePricing{
		Prices: map[ServiceType]float64{
			ServiceInstallation: 500,
			ServiceMaintenance:  200,
			ServiceRepair:       300,
			ServiceInspection:   150,
		},
		UpdatedBy: "system",
	}
}

// Validate ensures every service type is priced and no price is negative.
func (p ServicePricing) Validate() error {
	for _, t := range AllServiceTypes() {
		v, ok := p.Prices[t]
		if !ok {
			return fmt.Errorf("pricing: missing price for %s", t)
		}
		if v < 0 {
			return fmt.Errorf("pricing: negative price for %s", t)
		}
	}
	for t := range p.Prices {
		if !t.Valid() {
			return fmt.Errorf("pricing: unknown service type %q", t)
		}
	}
	return nil
}

// Clone returns a deep copy of the pricing record.
func (p ServicePricing) Clone() ServicePricing {
	c := p
	c.Prices = make(map[ServiceType]float64, len(p.Prices))
	for k, v := range p.Prices {
		c.Prices[k] = v
	}
	return c
}

// PriceChange describes the effect of a price update on one service type.
type PriceChange struct {
	ServiceType      ServiceType `json:"service_type"`
	OldPrice         float64     `json:"old_price"`
	NewPrice         float64     `json:"new_price"`
	Delta            float64     `json:"delta"`
	Percentage       float64     `json:"percentage"`
	CustomerDelta    string      `json:"customer_delta"`
	TechnicianImpact float64     `json:"technician_impact"`
}

// CommissionSplit is one technician's share of a team payout.
type CommissionSplit struct {
	TechnicianID string  `json:"technician_id"`
	Role         string  `json:"role"`
	Percentage   float64 `json:"percentage"`
	Amount       float64 `json:"amount"`
}
