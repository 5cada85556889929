// Package dispatch ranks technicians and teams for an open booking. The
// recommender is advisory: it reads a directory snapshot and never writes.
package dispatch

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kilianp07/fieldops/core/directory"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
)

// Rejection reasons reported by the hard filters.
const (
	RejectAvailability     = "availability"
	RejectArea             = "area"
	RejectLevel            = "level"
	RejectTeamUnresolved   = "team_unresolved"
	RejectTeamSize         = "team_size"
	RejectTeamAvailability = "team_availability"
	RejectTeamArea         = "team_area"
	RejectTeamLevel        = "team_level"
)

// CandidateKind tells individual technicians and teams apart.
type CandidateKind string

const (
	KindTechnician CandidateKind = "technician"
	KindTeam       CandidateKind = "team"
)

// Request describes the job to staff.
type Request struct {
	BookingID      string
	Area           string
	RequiredSkills []string
	Complexity     model.Complexity
	TargetDate     string
}

// RequestFor builds a Request from a booking.
func RequestFor(b model.Booking) Request {
	return Request{
		BookingID:      b.ID,
		Area:           b.Location.City,
		RequiredSkills: b.RequiredSkills,
		Complexity:     b.Complexity,
		TargetDate:     b.Schedule.PreferredDate,
	}
}

// Candidate is one ranked option.
type Candidate struct {
	Kind         CandidateKind `json:"kind"`
	TechnicianID string        `json:"technician_id,omitempty"`
	// TeamID is empty for teams composed on the fly.
	TeamID        string      `json:"team_id,omitempty"`
	MemberIDs     []string    `json:"member_ids"`
	Level         model.Level `json:"level"`
	MatchScore    float64     `json:"match_score"`
	Reasons       []string    `json:"reasons"`
	MissingSkills []string    `json:"missing_skills,omitempty"`
	Workload      int         `json:"workload"`
	Rating        float64     `json:"rating"`
}

// Key identifies the candidate for ordering and de-duplication.
func (c Candidate) Key() string {
	if c.Kind == KindTechnician {
		return c.TechnicianID
	}
	if c.TeamID != "" {
		return c.TeamID
	}
	return strings.Join(c.MemberIDs, "+")
}

// Recommendation is the ranked output. An empty Candidates slice means no
// one passed the hard filters; Rejections tells why.
type Recommendation struct {
	BookingID  string         `json:"booking_id"`
	Candidates []Candidate    `json:"candidates"`
	Rejections map[string]int `json:"rejections"`
}

// NoEligibleCandidate reports whether the hard filters eliminated everyone.
func (r Recommendation) NoEligibleCandidate() bool { return len(r.Candidates) == 0 }

// Recommender scores candidates against a booking.
type Recommender struct {
	cfg     Config
	metrics metrics.Sink
	log     logger.Logger
}

// NewRecommender validates cfg and returns a recommender. sink and log may be nil.
func NewRecommender(cfg Config, sink metrics.Sink, log logger.Logger) (*Recommender, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Recommender{cfg: cfg, metrics: metrics.OrNop(sink), log: logger.OrNop(log)}, nil
}

// Recommend ranks the technicians and teams of snap for req.
func (r *Recommender) Recommend(req Request, snap directory.Snapshot) (Recommendation, error) {
	if !req.Complexity.Valid() {
		return Recommendation{}, fmt.Errorf("dispatch: unknown complexity %q", req.Complexity)
	}
	skills := normalizeSkills(req.RequiredSkills)
	minLevel := req.Complexity.MinLevel()
	rec := Recommendation{BookingID: req.BookingID, Rejections: map[string]int{}}

	eligible := make([]model.Technician, 0, len(snap.Technicians))
	for _, t := range snap.Technicians {
		if reason := r.reject(t, req.Area, minLevel); reason != "" {
			rec.Rejections[reason]++
			continue
		}
		eligible = append(eligible, t)
		rec.Candidates = append(rec.Candidates, r.scoreTechnician(t, skills, minLevel))
	}

	if size := req.Complexity.TeamSize(); size > 1 {
		teams := r.composeTeams(eligible, snap.Technicians, req, skills, size)
		teams = append(teams, r.directoryTeams(snap, req, skills, size, rec.Rejections)...)
		rec.Candidates = append(rec.Candidates, dedupe(teams)...)
	}

	rank(rec.Candidates)
	if r.cfg.MaxCandidates > 0 && len(rec.Candidates) > r.cfg.MaxCandidates {
		rec.Candidates = rec.Candidates[:r.cfg.MaxCandidates]
	}

	if err := r.metrics.RecordRecommendation(metrics.RecommendationEvent{
		Complexity: req.Complexity,
		Candidates: len(rec.Candidates),
		Rejections: rec.Rejections,
	}); err != nil {
		r.log.Warnf("record recommendation metrics: %v", err)
	}
	if rec.NoEligibleCandidate() {
		r.log.Infof("no eligible candidate for booking %s: %v", req.BookingID, rec.Rejections)
	} else {
		r.log.Debugf("booking %s: %d candidates, top %s (%.1f)", req.BookingID, len(rec.Candidates), rec.Candidates[0].Key(), rec.Candidates[0].MatchScore)
	}
	return rec, nil
}

// reject returns the first hard filter t fails, or "" when it passes.
func (r *Recommender) reject(t model.Technician, area string, minLevel model.Level) string {
	switch {
	case t.Availability != model.Available:
		return RejectAvailability
	case area != "" && !t.CoversArea(area):
		return RejectArea
	case !t.Level.AtLeast(minLevel):
		return RejectLevel
	}
	return ""
}

func (r *Recommender) scoreTechnician(t model.Technician, skills []string, minLevel model.Level) Candidate {
	matched, missing := matchSkills(skills, t.HasSkill)
	in := scoreInput{
		skillRatio:   skillRatio(matched, len(skills)),
		availability: t.AvailabilityFactor(),
		surplus:      int(t.Level - minLevel),
		rating:       t.AverageRating,
	}
	c := Candidate{
		Kind:          KindTechnician,
		TechnicianID:  t.ID,
		MemberIDs:     []string{t.ID},
		Level:         t.Level,
		MissingSkills: missing,
		Workload:      t.Workload(),
		Rating:        t.AverageRating,
	}
	c.MatchScore = r.score(in)
	c.Reasons = reasons(in, matched, len(skills), t.Level, minLevel)
	return c
}

// rank orders candidates by score, then lighter workload, then better rating.
func rank(cs []Candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		a, b := cs[i], cs[j]
		if a.MatchScore != b.MatchScore {
			return a.MatchScore > b.MatchScore
		}
		if a.Workload != b.Workload {
			return a.Workload < b.Workload
		}
		if a.Rating != b.Rating {
			return a.Rating > b.Rating
		}
		if a.Kind != b.Kind {
			return a.Kind == KindTechnician
		}
		return a.Key() < b.Key()
	})
}

func normalizeSkills(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func matchSkills(required []string, has func(string) bool) (matched int, missing []string) {
	for _, s := range required {
		if has(s) {
			matched++
			continue
		}
		missing = append(missing, s)
	}
	return matched, missing
}
