package directory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/fieldops/core/model"
)

// MemoryStore keeps technicians and teams in memory.
type MemoryStore struct {
	mu    sync.RWMutex
	techs map[string]model.Technician
	teams map[string]model.Team
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{techs: map[string]model.Technician{}, teams: map[string]model.Team{}}
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.techs[id]
	if !ok {
		return model.Technician{}, fmt.Errorf("technician %s: %w", id, ErrNotFound)
	}
	return t.Clone(), nil
}

// List returns matching technicians sorted by id.
func (s *MemoryStore) List(_ context.Context, f Filter) ([]model.Technician, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Technician, 0, len(s.techs))
	for _, t := range s.techs {
		if !f.Match(t) {
			continue
		}
		res = append(res, t.Clone())
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) Team(_ context.Context, id string) (model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[id]
	if !ok {
		return model.Team{}, fmt.Errorf("team %s: %w", id, ErrNotFound)
	}
	t.Members = append([]model.TeamMember(nil), t.Members...)
	return t, nil
}

// Teams returns every team sorted by id.
func (s *MemoryStore) Teams(_ context.Context) ([]model.Team, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res := make([]model.Team, 0, len(s.teams))
	for _, t := range s.teams {
		t.Members = append([]model.TeamMember(nil), t.Members...)
		res = append(res, t)
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (s *MemoryStore) Put(_ context.Context, t model.Technician) error {
	if t.ID == "" {
		return fmt.Errorf("technician id is required")
	}
	s.mu.Lock()
	s.techs[t.ID] = t.Clone()
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) PutTeam(_ context.Context, t model.Team) error {
	if t.ID == "" {
		return fmt.Errorf("team id is required")
	}
	if len(t.Members) == 0 {
		return fmt.Errorf("team %s has no members", t.ID)
	}
	t.Members = append([]model.TeamMember(nil), t.Members...)
	s.mu.Lock()
	s.teams[t.ID] = t
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) AddJob(_ context.Context, technicianID, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.techs[technicianID]
	if !ok {
		return false, fmt.Errorf("technician %s: %w", technicianID, ErrNotFound)
	}
	if t.HoldsJob(jobID) {
		return false, nil
	}
	t.CurrentJobs = append(append([]string(nil), t.CurrentJobs...), jobID)
	s.techs[technicianID] = t
	return true, nil
}

func (s *MemoryStore) ReleaseJob(_ context.Context, technicianID, jobID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.techs[technicianID]
	if !ok {
		return fmt.Errorf("technician %s: %w", technicianID, ErrNotFound)
	}
	jobs, removed := RemoveJob(t.CurrentJobs, jobID)
	if !removed {
		return fmt.Errorf("technician %s job %s: %w", technicianID, jobID, ErrJobNotHeld)
	}
	t.CurrentJobs = jobs
	s.techs[technicianID] = t
	return nil
}

func (s *MemoryStore) SetAvailability(_ context.Context, technicianID string, a model.Availability) error {
	if !a.Valid() {
		return fmt.Errorf("unknown availability %q", a)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.techs[technicianID]
	if !ok {
		return fmt.Errorf("technician %s: %w", technicianID, ErrNotFound)
	}
	t.Availability = a
	s.techs[technicianID] = t
	return nil
}

// RemoveJob returns a copy of jobs without the first occurrence of jobID.
func RemoveJob(jobs []string, jobID string) ([]string, bool) {
	out := make([]string, 0, len(jobs))
	removed := false
	for _, j := range jobs {
		if j == jobID && !removed {
			removed = true
			continue
		}
		out = append(out, j)
	}
	return out, removed
}
