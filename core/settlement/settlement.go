// Package settlement computes platform commission, technician payout and team
// splits for completed bookings, plus the earnings impact of a price change.
// Amounts are rounded to cents with decimal arithmetic so the parts always
// add up to the whole.
package settlement

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/fieldops/core/model"
)

var (
	// ErrInvalidAmount is returned for negative or non-finite amounts.
	ErrInvalidAmount = errors.New("settlement: invalid amount")
	// ErrNoMembers is returned when splitting a payout across nobody.
	ErrNoMembers = errors.New("settlement: no members")
	// ErrNotCompleted is returned when settling an unfinished booking.
	ErrNotCompleted = errors.New("settlement: booking not completed")
)

// Settlement is the platform/technician division of a final cost.
type Settlement struct {
	FinalCost          float64 `json:"final_cost"`
	PlatformCommission float64 `json:"platform_commission"`
	TechnicianPayout   float64 `json:"technician_payout"`
}

// Member is a participant of a team split.
type Member struct {
	TechnicianID string
	Role         string
}

// Calculator applies a Config.
type Calculator struct {
	cfg Config
}

// NewCalculator validates cfg and returns a calculator.
func NewCalculator(cfg Config) (*Calculator, error) {
	weights := make(map[string]float64, len(cfg.RoleWeights))
	for role, w := range cfg.RoleWeights {
		weights[role] = w
	}
	cfg = cfg.WithRate(cfg.Rate())
	cfg.RoleWeights = weights
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Calculator{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (c *Calculator) Config() Config { return c.cfg }

// Settle divides finalCost at the configured platform rate.
func (c *Calculator) Settle(finalCost float64) (Settlement, error) {
	return Settle(finalCost, c.cfg.Rate())
}

// Settle divides finalCost: the commission is rounded to cents and the payout
// is the exact remainder.
func Settle(finalCost, rate float64) (Settlement, error) {
	if finalCost < 0 || math.IsNaN(finalCost) || math.IsInf(finalCost, 0) {
		return Settlement{}, fmt.Errorf("final cost %v: %w", finalCost, ErrInvalidAmount)
	}
	if rate < 0 || rate > 1 || math.IsNaN(rate) {
		return Settlement{}, fmt.Errorf("commission rate %v: %w", rate, ErrInvalidAmount)
	}
	cost := decimal.NewFromFloat(finalCost).Round(2)
	commission := cost.Mul(decimal.NewFromFloat(rate)).Round(2)
	payout := cost.Sub(commission)
	return Settlement{
		FinalCost:          cost.InexactFloat64(),
		PlatformCommission: commission.InexactFloat64(),
		TechnicianPayout:   payout.InexactFloat64(),
	}, nil
}

// SplitTeamPayout shares payout between members proportionally to their role
// weights. Weights are normalized over the roles present, so any subset of
// roles works. Cents are apportioned by largest remainder: every member gets
// the floor of its exact share and the leftover cents go to the largest
// fractional parts, earlier members first on ties. No amount is negative and
// the amounts sum to the rounded payout.
func (c *Calculator) SplitTeamPayout(payout float64, members []Member) ([]model.CommissionSplit, error) {
	if len(members) == 0 {
		return nil, ErrNoMembers
	}
	if payout < 0 || math.IsNaN(payout) || math.IsInf(payout, 0) {
		return nil, fmt.Errorf("payout %v: %w", payout, ErrInvalidAmount)
	}
	weights := make([]float64, len(members))
	for i, m := range members {
		w, ok := c.cfg.RoleWeights[m.Role]
		if !ok {
			return nil, fmt.Errorf("unknown role %q for %s: %w", m.Role, m.TechnicianID, ErrInvalidAmount)
		}
		weights[i] = w
	}
	total := floats.Sum(weights)

	cents := decimal.NewFromFloat(payout).Round(2).Shift(2)
	parts := make([]decimal.Decimal, len(members))
	fracs := make([]decimal.Decimal, len(members))
	left := cents
	for i, w := range weights {
		quota := cents.Mul(decimal.NewFromFloat(w)).Div(decimal.NewFromFloat(total))
		parts[i] = quota.Floor()
		fracs[i] = quota.Sub(parts[i])
		left = left.Sub(parts[i])
	}
	order := make([]int, len(members))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return fracs[order[a]].GreaterThan(fracs[order[b]]) })
	one := decimal.NewFromInt(1)
	for k := 0; left.IsPositive(); k = (k + 1) % len(order) {
		parts[order[k]] = parts[order[k]].Add(one)
		left = left.Sub(one)
	}

	out := make([]model.CommissionSplit, len(members))
	for i, m := range members {
		out[i] = model.CommissionSplit{
			TechnicianID: m.TechnicianID,
			Role:         m.Role,
			Percentage:   weights[i] / total * 100,
			Amount:       parts[i].Shift(-2).InexactFloat64(),
		}
	}
	return out, nil
}

// RoleFor maps a team member to a commission role. The team lead always
// takes the lead weight; other members are weighted by seniority.
func RoleFor(member model.TeamMember, level model.Level) string {
	if member.Role == model.RoleLead {
		return RoleLead
	}
	return RoleForLevel(level)
}

// RoleForLevel maps a technician level to a commission role.
func RoleForLevel(level model.Level) string {
	switch {
	case level >= model.LevelLead:
		return RoleLead
	case level == model.LevelSenior:
		return RoleSenior
	case level == model.LevelTechnician:
		return RoleTechnician
	case level == model.LevelJunior:
		return RoleJunior
	default:
		return RoleTrainee
	}
}

// BookingSettlement is the full settlement of a completed booking.
type BookingSettlement struct {
	Settlement
	BookingID string                  `json:"booking_id"`
	Splits    []model.CommissionSplit `json:"splits"`
}

// SettleBooking settles a completed booking and splits the payout across the
// assigned technicians. Roles come from the crew frozen on the assignment;
// team is only consulted for bookings assigned before crews were recorded.
// A single technician receives the whole payout.
func (c *Calculator) SettleBooking(b model.Booking, team *model.Team, members []model.Technician) (BookingSettlement, error) {
	if b.Status != model.StatusCompleted || b.FinalCost == nil {
		return BookingSettlement{}, fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, ErrNotCompleted)
	}
	s, err := c.Settle(*b.FinalCost)
	if err != nil {
		return BookingSettlement{}, err
	}
	crew := b.Assignment.Crew
	if len(crew) == 0 && team != nil {
		crew = team.Members
	}
	roles := map[string]model.TeamMember{}
	for _, m := range crew {
		roles[m.TechnicianID] = m
	}
	split := make([]Member, 0, len(members))
	for i, t := range members {
		tm, ok := roles[t.ID]
		if !ok {
			tm = model.TeamMember{TechnicianID: t.ID, Role: model.RoleMember}
			if len(crew) == 0 && i == 0 {
				tm.Role = model.RoleLead
			}
		}
		split = append(split, Member{TechnicianID: t.ID, Role: RoleFor(tm, t.Level)})
	}
	splits, err := c.SplitTeamPayout(s.TechnicianPayout, split)
	if err != nil {
		return BookingSettlement{}, fmt.Errorf("booking %s: %w", b.ID, err)
	}
	return BookingSettlement{BookingID: b.ID, Settlement: s, Splits: splits}, nil
}
