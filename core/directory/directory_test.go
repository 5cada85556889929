package directory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/model"
)

func seed(t *testing.T) *MemoryStore {
	t.Helper()
	ctx := context.Background()
	s := NewMemoryStore()
	techs := []model.Technician{
		{ID: "t1", Level: model.LevelSenior, Skills: []string{"HVAC", "electrical"}, ServiceAreas: []string{"Hanoi"}, Availability: model.Available, MaxJobsPerDay: 3},
		{ID: "t2", Level: model.LevelJunior, Skills: []string{"hvac"}, ServiceAreas: []string{"Danang"}, Availability: model.Available, MaxJobsPerDay: 3},
		{ID: "t3", Level: model.LevelLead, Skills: []string{"hvac", "plumbing"}, ServiceAreas: []string{"hanoi"}, Availability: model.Busy, MaxJobsPerDay: 2},
	}
	for _, tech := range techs {
		require.NoError(t, s.Put(ctx, tech))
	}
	return s
}

func TestMemoryStore_ListFilters(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	cases := []struct {
		name string
		f    Filter
		want []string
	}{
		{"all", Filter{}, []string{"t1", "t2", "t3"}},
		{"available", Filter{Availability: model.Available}, []string{"t1", "t2"}},
		{"area case insensitive", Filter{Area: "HANOI"}, []string{"t1", "t3"}},
		{"skill superset", Filter{Skills: []string{"hvac", "electrical"}}, []string{"t1"}},
		{"combined", Filter{Availability: model.Available, Area: "hanoi", Skills: []string{"plumbing"}}, nil},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			out, err := s.List(ctx, c.f)
			require.NoError(t, err)
			var ids []string
			for _, tech := range out {
				ids = append(ids, tech.ID)
			}
			assert.Equal(t, c.want, ids)
		})
	}
}

func TestMemoryStore_WorkloadNeverNegative(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	added, err := s.AddJob(ctx, "t1", "b1")
	require.NoError(t, err)
	assert.True(t, added)
	added, err = s.AddJob(ctx, "t1", "b1")
	require.NoError(t, err)
	assert.False(t, added, "adding the same job twice is a no-op")
	tech, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, tech.Workload())

	require.NoError(t, s.ReleaseJob(ctx, "t1", "b1"))
	assert.ErrorIs(t, s.ReleaseJob(ctx, "t1", "b1"), ErrJobNotHeld)
	tech, err = s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, tech.Workload())
}

func TestMemoryStore_UnknownTechnician(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	_, err := s.Get(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.AddJob(ctx, "nope", "b1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.SetAvailability(ctx, "nope", model.Busy), ErrNotFound)
}

func TestMemoryStore_SetAvailability(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	require.NoError(t, s.SetAvailability(ctx, "t3", model.Available))
	assert.Error(t, s.SetAvailability(ctx, "t3", "sleeping"))
	out, err := s.List(ctx, Filter{Availability: model.Available})
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

func TestMemoryStore_GetReturnsCopy(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	tech, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	tech.Skills[0] = "mutated"
	again, err := s.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, "HVAC", again.Skills[0])
}

func TestTeamProfileAggregates(t *testing.T) {
	s := seed(t)
	ctx := context.Background()
	for _, j := range [][2]string{{"t1", "b1"}, {"t3", "b1"}, {"t3", "b2"}} {
		_, err := s.AddJob(ctx, j[0], j[1])
		require.NoError(t, err)
	}
	team := model.Team{ID: "team1", Members: []model.TeamMember{
		{TechnicianID: "t3", Role: model.RoleLead},
		{TechnicianID: "t1", Role: model.RoleMember},
	}}
	require.NoError(t, s.PutTeam(ctx, team))

	members, err := ResolveMembers(ctx, s, team)
	require.NoError(t, err)
	p := NewTeamProfile(team, members)
	assert.True(t, p.HasSkill("plumbing"))
	assert.True(t, p.HasSkill("Electrical"))
	assert.True(t, p.CoversArea("Hanoi"))
	assert.False(t, p.CoversArea("Danang"))
	assert.Len(t, p.Jobs, 2)
	assert.Equal(t, "t3", team.LeadID())

	snap, err := TakeSnapshot(ctx, s)
	require.NoError(t, err)
	assert.Len(t, snap.Technicians, 3)
	assert.Len(t, snap.Teams, 1)
	_, ok := snap.Technician("t2")
	assert.True(t, ok)
}

func TestPutTeamRequiresMembers(t *testing.T) {
	s := NewMemoryStore()
	assert.Error(t, s.PutTeam(context.Background(), model.Team{ID: "empty"}))
}
