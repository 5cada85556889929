package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComplexityRequirements(t *testing.T) {
	cases := []struct {
		c     Complexity
		level Level
		size  int
	}{
		{ComplexitySimple, LevelJunior, 1},
		{ComplexityModerate, LevelTechnician, 1},
		{ComplexityComplex, LevelSenior, 2},
		{ComplexityExpert, LevelLead, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.level, c.c.MinLevel(), c.c)
		assert.Equal(t, c.size, c.c.TeamSize(), c.c)
	}
}

func TestLevelOrderingAndText(t *testing.T) {
	assert.True(t, LevelSupervisor.AtLeast(LevelLead))
	assert.False(t, LevelJunior.AtLeast(LevelSenior))

	var l Level
	require.NoError(t, json.Unmarshal([]byte(`"Senior"`), &l))
	assert.Equal(t, LevelSenior, l)

	b, err := json.Marshal(LevelTrainee)
	require.NoError(t, err)
	assert.Equal(t, `"trainee"`, string(b))

	_, err = ParseLevel("wizard")
	assert.Error(t, err)
}

func TestTechnicianAvailabilityFactor(t *testing.T) {
	tech := Technician{MaxJobsPerDay: 4, CurrentJobs: []string{"a"}}
	assert.InDelta(t, 0.75, tech.AvailabilityFactor(), 1e-9)

	tech.CurrentJobs = []string{"a", "b", "c", "d", "e"}
	assert.Equal(t, 0.0, tech.AvailabilityFactor())

	assert.Equal(t, 0.0, Technician{}.AvailabilityFactor())
}

func TestBookingValidateFinalCost(t *testing.T) {
	cost := 120.0
	b := Booking{ID: "b1", ServiceType: ServiceRepair, Complexity: ComplexitySimple, Status: StatusInProgress, FinalCost: &cost}
	assert.Error(t, b.Validate())

	b.Status = StatusCompleted
	assert.NoError(t, b.Validate())

	b.FinalCost = nil
	assert.Error(t, b.Validate())
}

func TestBookingCloneIsDeep(t *testing.T) {
	cost := 10.0
	b := Booking{ID: "b1", RequiredSkills: []string{"hvac"}, FinalCost: &cost}
	b.Assignment.Crew = []TeamMember{{TechnicianID: "t1", Role: RoleLead}}
	c := b.Clone()
	c.RequiredSkills[0] = "plumbing"
	*c.FinalCost = 20
	c.Assignment.Crew[0].Role = RoleMember
	assert.Equal(t, "hvac", b.RequiredSkills[0])
	assert.Equal(t, 10.0, *b.FinalCost)
	assert.Equal(t, RoleLead, b.Assignment.Crew[0].Role)
}

func TestPricingValidate(t *testing.T) {
	p := DefaultPricing()
	require.NoError(t, p.Validate())

	delete(p.Prices, ServiceInspection)
	assert.Error(t, p.Validate())
}

func TestTimestampDecoding(t *testing.T) {
	want := time.Date(2024, 1, 5, 10, 30, 0, 0, time.UTC)
	inputs := map[string]string{
		"rfc3339": `"2024-01-05T10:30:00Z"`,
		"seconds": `1704450600`,
		"millis":  `1704450600000`,
		"object":  `{"seconds":1704450600,"nanoseconds":0}`,
		"legacy":  `{"_seconds":1704450600,"_nanoseconds":0}`,
	}
	for name, in := range inputs {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(in), &ts), name)
		got, ok := ts.Resolve()
		require.True(t, ok, name)
		assert.True(t, want.Equal(got), "%s: %v", name, got)
	}

	for _, bad := range []string{`"not a date"`, `null`, `{}`, `-4`, `true`} {
		var ts Timestamp
		require.NoError(t, json.Unmarshal([]byte(bad), &ts), bad)
		_, ok := ts.Resolve()
		assert.False(t, ok, bad)
	}
}

func TestDateKeyIsUTC(t *testing.T) {
	loc := time.FixedZone("plus10", 10*3600)
	ts := time.Date(2024, 1, 6, 5, 0, 0, 0, loc)
	assert.Equal(t, "2024-01-05", DateKey(ts))
}

func TestPaymentStatusSettled(t *testing.T) {
	assert.True(t, PaymentPaid.Settled())
	assert.True(t, PaymentStatus("COMPLETED").Settled())
	assert.False(t, PaymentPending.Settled())
	assert.False(t, PaymentRefunded.Settled())
}
