package settlement

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/model"
)

func calculator(t *testing.T) *Calculator {
	t.Helper()
	c, err := NewCalculator(Config{})
	require.NoError(t, err)
	return c
}

func TestSettle(t *testing.T) {
	c := calculator(t)
	s, err := c.Settle(450)
	require.NoError(t, err)
	assert.Equal(t, 45.0, s.PlatformCommission)
	assert.Equal(t, 405.0, s.TechnicianPayout)

	_, err = c.Settle(-1)
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = Settle(100, 1.5)
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestSettle_PartsAddUp(t *testing.T) {
	costs := []float64{0, 0.01, 0.05, 1, 19.99, 33.33, 99.995, 123.456, 1000.01, 987654.32}
	rates := []float64{0, 0.1, 0.125, 0.15, 0.333, 1}
	for _, cost := range costs {
		for _, rate := range rates {
			s, err := Settle(cost, rate)
			require.NoError(t, err)
			assert.InDelta(t, s.FinalCost, s.PlatformCommission+s.TechnicianPayout, 1e-9, "cost %v rate %v", cost, rate)
		}
	}
}

func TestSplitTeamPayout_SubsetsSumToHundred(t *testing.T) {
	c := calculator(t)
	roles := []string{RoleLead, RoleSenior, RoleTechnician, RoleJunior, RoleTrainee}
	for mask := 1; mask < 1<<len(roles); mask++ {
		var members []Member
		for i, r := range roles {
			if mask&(1<<i) != 0 {
				members = append(members, Member{TechnicianID: r, Role: r})
			}
		}
		splits, err := c.SplitTeamPayout(405, members)
		require.NoError(t, err)
		var pct, amount float64
		for _, s := range splits {
			pct += s.Percentage
			amount += s.Amount
		}
		assert.InDelta(t, 100, pct, 1e-9)
		assert.InDelta(t, 405, amount, 1e-9)
	}

	// Two cents over four members cannot be shared evenly.
	splits, err := c.SplitTeamPayout(0.02, []Member{
		{TechnicianID: "a", Role: RoleLead},
		{TechnicianID: "b", Role: RoleLead},
		{TechnicianID: "c", Role: RoleLead},
		{TechnicianID: "d", Role: RoleTrainee},
	})
	require.NoError(t, err)
	var sum float64
	for _, s := range splits {
		assert.GreaterOrEqual(t, s.Amount, 0.0, s.TechnicianID)
		sum += s.Amount
	}
	assert.InDelta(t, 0.02, sum, 1e-9)
	assert.Equal(t, []float64{0.01, 0.01, 0, 0}, []float64{splits[0].Amount, splits[1].Amount, splits[2].Amount, splits[3].Amount})
}

func TestSplitTeamPayout_Proportions(t *testing.T) {
	c := calculator(t)
	splits, err := c.SplitTeamPayout(100, []Member{
		{TechnicianID: "a", Role: RoleLead},
		{TechnicianID: "b", Role: RoleJunior},
	})
	require.NoError(t, err)
	require.Len(t, splits, 2)
	assert.InDelta(t, 66.6667, splits[0].Percentage, 1e-3)
	assert.Equal(t, 66.67, splits[0].Amount)
	assert.Equal(t, 33.33, splits[1].Amount)
}

func TestSplitTeamPayout_Errors(t *testing.T) {
	c := calculator(t)
	_, err := c.SplitTeamPayout(100, nil)
	assert.ErrorIs(t, err, ErrNoMembers)
	_, err = c.SplitTeamPayout(100, []Member{{TechnicianID: "a", Role: "intern"}})
	assert.ErrorIs(t, err, ErrInvalidAmount)
	_, err = c.SplitTeamPayout(math.NaN(), []Member{{TechnicianID: "a", Role: RoleLead}})
	assert.ErrorIs(t, err, ErrInvalidAmount)
}

func TestRoleFor(t *testing.T) {
	assert.Equal(t, RoleLead, RoleFor(model.TeamMember{Role: model.RoleLead}, model.LevelJunior))
	assert.Equal(t, RoleLead, RoleFor(model.TeamMember{Role: model.RoleMember}, model.LevelSupervisor))
	assert.Equal(t, RoleSenior, RoleFor(model.TeamMember{Role: model.RoleMember}, model.LevelSenior))
	assert.Equal(t, RoleTrainee, RoleForLevel(model.LevelUnknown))
}

func TestSettleBooking(t *testing.T) {
	c := calculator(t)
	cost := 1000.0
	b := model.Booking{ID: "b1", Status: model.StatusCompleted, FinalCost: &cost}
	team := &model.Team{ID: "crew", Members: []model.TeamMember{
		{TechnicianID: "l", Role: model.RoleLead},
		{TechnicianID: "s", Role: model.RoleMember},
	}}
	members := []model.Technician{{ID: "l", Level: model.LevelSenior}, {ID: "s", Level: model.LevelSenior}}

	res, err := c.SettleBooking(b, team, members)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.PlatformCommission)
	assert.Equal(t, 900.0, res.TechnicianPayout)
	require.Len(t, res.Splits, 2)
	assert.Equal(t, RoleLead, res.Splits[0].Role)
	assert.Equal(t, RoleSenior, res.Splits[1].Role)
	assert.InDelta(t, 900, res.Splits[0].Amount+res.Splits[1].Amount, 1e-9)

	solo, err := c.SettleBooking(b, nil, members[:1])
	require.NoError(t, err)
	require.Len(t, solo.Splits, 1)
	assert.Equal(t, 900.0, solo.Splits[0].Amount)
	assert.Equal(t, 100.0, solo.Splits[0].Percentage)

	_, err = c.SettleBooking(model.Booking{ID: "b2", Status: model.StatusInProgress}, nil, members)
	assert.ErrorIs(t, err, ErrNotCompleted)
}

func TestSettleBookingPrefersRecordedCrew(t *testing.T) {
	c := calculator(t)
	cost := 1000.0
	b := model.Booking{ID: "b1", Status: model.StatusCompleted, FinalCost: &cost}
	b.Assignment.Crew = []model.TeamMember{
		{TechnicianID: "l", Role: model.RoleLead},
		{TechnicianID: "s", Role: model.RoleMember},
	}
	edited := &model.Team{ID: "crew", Members: []model.TeamMember{
		{TechnicianID: "s", Role: model.RoleLead},
		{TechnicianID: "l", Role: model.RoleMember},
	}}
	members := []model.Technician{{ID: "l", Level: model.LevelSenior}, {ID: "s", Level: model.LevelSenior}}

	res, err := c.SettleBooking(b, edited, members)
	require.NoError(t, err)
	require.Len(t, res.Splits, 2)
	assert.Equal(t, "l", res.Splits[0].TechnicianID)
	assert.Equal(t, RoleLead, res.Splits[0].Role)
	assert.Equal(t, RoleSenior, res.Splits[1].Role)
}

func TestPricingImpact(t *testing.T) {
	c := calculator(t)
	old := model.DefaultPricing()
	next := old.Clone()
	next.Prices[model.ServiceInstallation] = 600

	changes := c.PricingImpact(old, next)
	require.Len(t, changes, 1)
	ch := changes[0]
	assert.Equal(t, model.ServiceInstallation, ch.ServiceType)
	assert.Equal(t, 100.0, ch.Delta)
	assert.Equal(t, 20.0, ch.Percentage)
	assert.Equal(t, "+100.00", ch.CustomerDelta)
	assert.Equal(t, 90.0, ch.TechnicianImpact)
}

func TestPricingImpact_DecreaseAndZeroBase(t *testing.T) {
	old := model.DefaultPricing()
	old.Prices[model.ServiceInspection] = 0
	next := old.Clone()
	next.Prices[model.ServiceRepair] = 240
	next.Prices[model.ServiceInspection] = 50

	changes := PricingImpact(old, next, 0.9)
	require.Len(t, changes, 2)
	assert.Equal(t, model.ServiceRepair, changes[0].ServiceType)
	assert.Equal(t, -20.0, changes[0].Percentage)
	assert.Equal(t, "-60.00", changes[0].CustomerDelta)
	assert.Equal(t, -54.0, changes[0].TechnicianImpact)
	assert.Equal(t, 100.0, changes[1].Percentage)

	assert.Empty(t, PricingImpact(old, old, 0.9))
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{RoleWeights: map[string]float64{RoleLead: 0.5}}.WithRate(0.2)
	cfg.SetDefaults()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.5, cfg.RoleWeights[RoleLead])
	assert.Equal(t, 0.3, cfg.RoleWeights[RoleSenior])
	assert.InDelta(t, 0.8, cfg.TechnicianPayoutRate(), 1e-12)

	cfg.RoleWeights[RoleJunior] = 0
	assert.Error(t, cfg.Validate())
	_, err := NewCalculator(Config{}.WithRate(1.2))
	assert.Error(t, err)

	var unset Config
	unset.SetDefaults()
	assert.Equal(t, DefaultPlatformCommissionRate, unset.Rate())

	free, err := NewCalculator(Config{}.WithRate(0))
	require.NoError(t, err)
	assert.Equal(t, 0.0, free.Config().Rate())
	s, err := free.Settle(250)
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.PlatformCommission)
	assert.Equal(t, 250.0, s.TechnicianPayout)
}
