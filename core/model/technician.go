package model

import "strings"

// Technician is a field worker that can be dispatched to bookings.
type Technician struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Level         Level        `json:"level"`
	Skills        []string     `json:"skills"`
	ServiceAreas  []string     `json:"service_areas"`
	Availability  Availability `json:"availability"`
	CurrentJobs   []string     `json:"current_jobs"`
	MaxJobsPerDay int          `json:"max_jobs_per_day"`
	CompletedJobs int          `json:"completed_jobs"`
	AverageRating float64      `json:"average_rating"`
}

// Workload returns the number of active jobs.
func (t Technician) Workload() int { return len(t.CurrentJobs) }

// AvailabilityFactor returns 1 - jobs/max floored at 0. A technician without
// a daily cap is treated as fully booked.
func (t Technician) AvailabilityFactor() float64 {
	if t.MaxJobsPerDay <= 0 {
		return 0
	}
	f := 1 - float64(t.Workload())/float64(t.MaxJobsPerDay)
	if f < 0 {
		return 0
	}
	return f
}

// CoversArea reports whether the technician serves the given area.
func (t Technician) CoversArea(area string) bool {
	return containsFold(t.ServiceAreas, area)
}

// HasSkill reports whether the technician lists the skill.
func (t Technician) HasSkill(skill string) bool {
	return containsFold(t.Skills, skill)
}

// HoldsJob reports whether the job id is in the current workload.
func (t Technician) HoldsJob(jobID string) bool {
	for _, j := range t.CurrentJobs {
		if j == jobID {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the technician.
func (t Technician) Clone() Technician {
	c := t
	c.Skills = append([]string(nil), t.Skills...)
	c.ServiceAreas = append([]string(nil), t.ServiceAreas...)
	c.CurrentJobs = append([]string(nil), t.CurrentJobs...)
	return c
}

// TeamRole is the role of a member inside a team.
type TeamRole string

const (
	RoleLead   TeamRole = "lead"
	RoleMember TeamRole = "member"
)

// TeamMember links a technician to a team.
type TeamMember struct {
	TechnicianID string   `json:"technician_id"`
	Role         TeamRole `json:"role"`
}

// Team is an ordered group of technicians dispatched together.
type Team struct {
	ID      string       `json:"id"`
	Name    string       `json:"name"`
	Members []TeamMember `json:"members"`
}

// LeadID returns the first member flagged as lead, or the first member.
func (t Team) LeadID() string {
	for _, m := range t.Members {
		if m.Role == RoleLead {
			return m.TechnicianID
		}
	}
	if len(t.Members) > 0 {
		return t.Members[0].TechnicianID
	}
	return ""
}

// MemberIDs returns the technician ids in team order.
func (t Team) MemberIDs() []string {
	ids := make([]string, 0, len(t.Members))
	for _, m := range t.Members {
		ids = append(ids, m.TechnicianID)
	}
	return ids
}

// UnionSkills returns the union of the given technicians' skills, lower-cased.
func UnionSkills(techs []Technician) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range techs {
		for _, s := range t.Skills {
			out[strings.ToLower(s)] = struct{}{}
		}
	}
	return out
}

// UnionAreas returns the union of the given technicians' service areas, lower-cased.
func UnionAreas(techs []Technician) map[string]struct{} {
	out := map[string]struct{}{}
	for _, t := range techs {
		for _, a := range t.ServiceAreas {
			out[strings.ToLower(a)] = struct{}{}
		}
	}
	return out
}

func containsFold(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(s, v) {
			return true
		}
	}
	return false
}
