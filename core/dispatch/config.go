package dispatch

import "fmt"

// Weights are the relative importance of each scoring term. They do not need
// to sum to one; the score is normalized by their total.
type Weights struct {
	Skill        float64 `json:"skill"`
	Availability float64 `json:"availability"`
	LevelSurplus float64 `json:"level_surplus"`
	Rating       float64 `json:"rating"`
}

func (w Weights) isZero() bool {
	return w.Skill == 0 && w.Availability == 0 && w.LevelSurplus == 0 && w.Rating == 0
}

// Config tunes the recommender.
type Config struct {
	Weights Weights `json:"weights"`
	// MaxRating is the top of the customer rating scale used to normalize
	// historical ratings.
	MaxRating float64 `json:"max_rating"`
	// LevelSurplusCap is the number of levels above the minimum at which the
	// surplus bonus saturates.
	LevelSurplusCap int `json:"level_surplus_cap"`
	// MaxCandidates truncates the ranked output. Zero keeps everything.
	MaxCandidates int `json:"max_candidates"`
	// MaxTeamCandidates bounds the supporting-member pool used when composing
	// ad-hoc teams.
	MaxTeamCandidates int `json:"max_team_candidates"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Weights.isZero() {
		c.Weights = Weights{Skill: 0.5, Availability: 0.25, LevelSurplus: 0.1, Rating: 0.15}
	}
	if c.MaxRating == 0 {
		c.MaxRating = 5
	}
	if c.LevelSurplusCap == 0 {
		c.LevelSurplusCap = 2
	}
	if c.MaxTeamCandidates == 0 {
		c.MaxTeamCandidates = 8
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	w := c.Weights
	if w.Skill < 0 || w.Availability < 0 || w.LevelSurplus < 0 || w.Rating < 0 {
		return fmt.Errorf("dispatch.weights must be non-negative")
	}
	if w.isZero() {
		return fmt.Errorf("dispatch.weights must not all be zero")
	}
	if c.MaxRating <= 0 {
		return fmt.Errorf("dispatch.max_rating must be > 0")
	}
	if c.LevelSurplusCap < 0 {
		return fmt.Errorf("dispatch.level_surplus_cap must be >= 0")
	}
	if c.MaxCandidates < 0 || c.MaxTeamCandidates < 0 {
		return fmt.Errorf("dispatch candidate limits must be >= 0")
	}
	return nil
}
