// Package directory holds technician and team records and answers the
// filtering queries the dispatch recommender needs. Workload counters are
// only mutated through AddJob and ReleaseJob, which the booking lifecycle
// manager calls on assignment, completion and cancellation.
package directory

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/fieldops/core/model"
)

var (
	// ErrNotFound is returned when a technician or team does not exist.
	ErrNotFound = errors.New("directory: not found")
	// ErrJobNotHeld is returned when releasing a job the technician does not carry.
	ErrJobNotHeld = errors.New("directory: job not held")
)

// Filter selects technicians. Zero fields match everything.
type Filter struct {
	Availability model.Availability
	Area         string
	// Skills must all be present on the technician.
	Skills []string
}

// Match reports whether t satisfies the filter.
func (f Filter) Match(t model.Technician) bool {
	if f.Availability != "" && t.Availability != f.Availability {
		return false
	}
	if f.Area != "" && !t.CoversArea(f.Area) {
		return false
	}
	for _, s := range f.Skills {
		if !t.HasSkill(s) {
			return false
		}
	}
	return true
}

// Reader exposes read-only queries.
type Reader interface {
	Get(ctx context.Context, id string) (model.Technician, error)
	List(ctx context.Context, f Filter) ([]model.Technician, error)
	Team(ctx context.Context, id string) (model.Team, error)
	Teams(ctx context.Context) ([]model.Team, error)
}

// Writer mutates directory records.
type Writer interface {
	Put(ctx context.Context, t model.Technician) error
	PutTeam(ctx context.Context, t model.Team) error
	// AddJob appends jobID to the technician workload and reports whether it
	// did. Adding a job that is already held is a no-op returning false.
	AddJob(ctx context.Context, technicianID, jobID string) (bool, error)
	// ReleaseJob removes jobID from the workload or returns ErrJobNotHeld.
	ReleaseJob(ctx context.Context, technicianID, jobID string) error
	SetAvailability(ctx context.Context, technicianID string, a model.Availability) error
}

// Store is a complete directory backend.
type Store interface {
	Reader
	Writer
}

// Snapshot is a consistent copy of the directory handed to the recommender.
type Snapshot struct {
	Technicians []model.Technician
	Teams       []model.Team
}

// Technician returns the technician with the given id from the snapshot.
func (s Snapshot) Technician(id string) (model.Technician, bool) {
	for _, t := range s.Technicians {
		if t.ID == id {
			return t, true
		}
	}
	return model.Technician{}, false
}

// TakeSnapshot reads every technician and team from r.
func TakeSnapshot(ctx context.Context, r Reader) (Snapshot, error) {
	techs, err := r.List(ctx, Filter{})
	if err != nil {
		return Snapshot{}, fmt.Errorf("list technicians: %w", err)
	}
	teams, err := r.Teams(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("list teams: %w", err)
	}
	return Snapshot{Technicians: techs, Teams: teams}, nil
}

// ResolveMembers loads the technicians of a team in member order.
func ResolveMembers(ctx context.Context, r Reader, team model.Team) ([]model.Technician, error) {
	out := make([]model.Technician, 0, len(team.Members))
	for _, m := range team.Members {
		t, err := r.Get(ctx, m.TechnicianID)
		if err != nil {
			return nil, fmt.Errorf("team %s member %s: %w", team.ID, m.TechnicianID, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// TeamProfile is a team with the aggregates derived from its members.
type TeamProfile struct {
	Team    model.Team
	Members []model.Technician
	Skills  map[string]struct{}
	Areas   map[string]struct{}
	// Jobs is the union of the members' current job ids.
	Jobs map[string]struct{}
}

// NewTeamProfile computes the aggregates of team from its resolved members.
func NewTeamProfile(team model.Team, members []model.Technician) TeamProfile {
	jobs := map[string]struct{}{}
	for _, m := range members {
		for _, j := range m.CurrentJobs {
			jobs[j] = struct{}{}
		}
	}
	return TeamProfile{
		Team:    team,
		Members: members,
		Skills:  model.UnionSkills(members),
		Areas:   model.UnionAreas(members),
		Jobs:    jobs,
	}
}

// CoversArea reports whether any member serves area.
func (p TeamProfile) CoversArea(area string) bool {
	_, ok := p.Areas[strings.ToLower(area)]
	return ok
}

// HasSkill reports whether any member lists the skill.
func (p TeamProfile) HasSkill(skill string) bool {
	_, ok := p.Skills[strings.ToLower(skill)]
	return ok
}
