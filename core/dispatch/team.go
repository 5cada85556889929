package dispatch

import (
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/kilianp07/fieldops/core/directory"
	"github.com/kilianp07/fieldops/core/model"
)

// composeTeams pairs each qualifying lead with supporting members so that the
// combined skills cover the whole requirement. Supporting members may sit one
// level below the minimum; the team's level is its lead's.
func (r *Recommender) composeTeams(leads, all []model.Technician, req Request, skills []string, size int) []Candidate {
	minLevel := req.Complexity.MinLevel()
	pool := r.supportPool(all, req.Area, skills, minLevel)
	leads = append([]model.Technician(nil), leads...)
	sort.SliceStable(leads, func(i, j int) bool {
		if leads[i].Level != leads[j].Level {
			return leads[i].Level > leads[j].Level
		}
		return leads[i].ID < leads[j].ID
	})
	if n := r.cfg.MaxTeamCandidates; n > 0 && len(leads) > n {
		leads = leads[:n]
	}

	var out []Candidate
	for _, lead := range leads {
		others := make([]model.Technician, 0, len(pool))
		for _, t := range pool {
			if t.ID != lead.ID {
				others = append(others, t)
			}
		}
		combinations(len(others), size-1, func(idx []int) {
			members := make([]model.Technician, 0, size)
			members = append(members, lead)
			for _, i := range idx {
				members = append(members, others[i])
			}
			team := composedTeam(members)
			c := r.scoreTeam(team, members, skills, minLevel)
			if len(c.MissingSkills) > 0 {
				return
			}
			out = append(out, c)
		})
	}
	return out
}

// supportPool returns the technicians allowed to back a lead, most useful first.
func (r *Recommender) supportPool(all []model.Technician, area string, skills []string, minLevel model.Level) []model.Technician {
	floor := minLevel - 1
	if floor < model.LevelTrainee {
		floor = model.LevelTrainee
	}
	type scored struct {
		t       model.Technician
		matched int
	}
	var pool []scored
	for _, t := range all {
		if t.Availability != model.Available || !t.Level.AtLeast(floor) {
			continue
		}
		if area != "" && !t.CoversArea(area) {
			continue
		}
		m, _ := matchSkills(skills, t.HasSkill)
		pool = append(pool, scored{t: t, matched: m})
	}
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := pool[i], pool[j]
		if a.matched != b.matched {
			return a.matched > b.matched
		}
		if a.t.Workload() != b.t.Workload() {
			return a.t.Workload() < b.t.Workload()
		}
		if a.t.AverageRating != b.t.AverageRating {
			return a.t.AverageRating > b.t.AverageRating
		}
		return a.t.ID < b.t.ID
	})
	// the lead is removed from the pool later, keep one spare slot for it
	if n := r.cfg.MaxTeamCandidates; n > 0 && len(pool) > n+1 {
		pool = pool[:n+1]
	}
	out := make([]model.Technician, len(pool))
	for i, p := range pool {
		out[i] = p.t
	}
	return out
}

// directoryTeams scores the predefined teams that pass the team filters.
func (r *Recommender) directoryTeams(snap directory.Snapshot, req Request, skills []string, size int, rejections map[string]int) []Candidate {
	minLevel := req.Complexity.MinLevel()
	var out []Candidate
	for _, team := range snap.Teams {
		members, ok := resolve(snap, team)
		if !ok {
			rejections[RejectTeamUnresolved]++
			continue
		}
		if reason := teamReject(team, members, req.Area, minLevel, size); reason != "" {
			rejections[reason]++
			continue
		}
		out = append(out, r.scoreTeam(team, members, skills, minLevel))
	}
	return out
}

func teamReject(team model.Team, members []model.Technician, area string, minLevel model.Level, size int) string {
	if len(members) < size {
		return RejectTeamSize
	}
	for _, m := range members {
		if m.Availability != model.Available {
			return RejectTeamAvailability
		}
	}
	profile := directory.NewTeamProfile(team, members)
	if area != "" && !profile.CoversArea(area) {
		return RejectTeamArea
	}
	lead := team.LeadID()
	for _, m := range members {
		need := minLevel - 1
		if m.ID == lead {
			need = minLevel
		}
		if !m.Level.AtLeast(need) {
			return RejectTeamLevel
		}
	}
	return ""
}

func (r *Recommender) scoreTeam(team model.Team, members []model.Technician, skills []string, minLevel model.Level) Candidate {
	profile := directory.NewTeamProfile(team, members)
	matched, missing := matchSkills(skills, profile.HasSkill)

	lead := members[0]
	leadID := team.LeadID()
	factors := make([]float64, len(members))
	ratings := make([]float64, len(members))
	for i, m := range members {
		factors[i] = m.AvailabilityFactor()
		ratings[i] = m.AverageRating
		if m.ID == leadID {
			lead = m
		}
	}
	in := scoreInput{
		skillRatio:   skillRatio(matched, len(skills)),
		availability: stat.Mean(factors, nil),
		surplus:      int(lead.Level - minLevel),
		rating:       stat.Mean(ratings, nil),
	}
	c := Candidate{
		Kind:          KindTeam,
		TeamID:        team.ID,
		MemberIDs:     team.MemberIDs(),
		Level:         lead.Level,
		MissingSkills: missing,
		Workload:      len(profile.Jobs),
		Rating:        in.rating,
	}
	c.MatchScore = r.score(in)
	c.Reasons = reasons(in, matched, len(skills), lead.Level, minLevel)
	if team.ID == "" {
		c.Reasons = append(c.Reasons, "composed team led by "+lead.ID)
	} else {
		c.Reasons = append(c.Reasons, "predefined team "+team.ID)
	}
	return c
}

func composedTeam(members []model.Technician) model.Team {
	team := model.Team{Members: make([]model.TeamMember, len(members))}
	for i, m := range members {
		role := model.RoleMember
		if i == 0 {
			role = model.RoleLead
		}
		team.Members[i] = model.TeamMember{TechnicianID: m.ID, Role: role}
	}
	return team
}

func resolve(snap directory.Snapshot, team model.Team) ([]model.Technician, bool) {
	out := make([]model.Technician, 0, len(team.Members))
	for _, m := range team.Members {
		t, ok := snap.Technician(m.TechnicianID)
		if !ok {
			return nil, false
		}
		out = append(out, t)
	}
	return out, len(out) > 0
}

// dedupe keeps the first candidate for each member set, preferring the best
// score so a composition found under two leads is listed once.
func dedupe(cs []Candidate) []Candidate {
	rank(cs)
	seen := map[string]struct{}{}
	out := cs[:0]
	for _, c := range cs {
		key := memberSetKey(c)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}

func memberSetKey(c Candidate) string {
	ids := append([]string(nil), c.MemberIDs...)
	sort.Strings(ids)
	key := c.TeamID + "|"
	for _, id := range ids {
		key += id + ","
	}
	return key
}

// combinations calls fn with every k-subset of 0..n-1 in lexicographic order.
func combinations(n, k int, fn func([]int)) {
	if k < 0 || k > n {
		return
	}
	idx := make([]int, k)
	var walk func(start, depth int)
	walk = func(start, depth int) {
		if depth == k {
			fn(idx)
			return
		}
		for i := start; i <= n-(k-depth); i++ {
			idx[depth] = i
			walk(i+1, depth+1)
		}
	}
	walk(0, 0)
}
