package dispatch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/kilianp07/fieldops/core/model"
)

type scoreInput struct {
	skillRatio   float64
	availability float64
	surplus      int
	rating       float64
}

// score returns the weighted average of the terms scaled to 0..100.
func (r *Recommender) score(in scoreInput) float64 {
	w := r.cfg.Weights
	weights := []float64{w.Skill, w.Availability, w.LevelSurplus, w.Rating}
	terms := []float64{
		clamp01(in.skillRatio),
		clamp01(in.availability),
		r.surplusBonus(in.surplus),
		clamp01(in.rating / r.cfg.MaxRating),
	}
	total := floats.Sum(weights)
	if total <= 0 {
		return 0
	}
	s := 100 * floats.Dot(weights, terms) / total
	return math.Round(math.Max(0, math.Min(100, s))*100) / 100
}

func (r *Recommender) surplusBonus(levels int) float64 {
	if levels <= 0 || r.cfg.LevelSurplusCap <= 0 {
		return 0
	}
	return math.Min(float64(levels), float64(r.cfg.LevelSurplusCap)) / float64(r.cfg.LevelSurplusCap)
}

func skillRatio(matched, required int) float64 {
	if required == 0 {
		return 1
	}
	return float64(matched) / float64(required)
}

func clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(1, v))
}

func reasons(in scoreInput, matched, required int, level, minLevel model.Level) []string {
	out := make([]string, 0, 4)
	if required == 0 {
		out = append(out, "no specific skills required")
	} else {
		out = append(out, fmt.Sprintf("matches %d/%d required skills", matched, required))
	}
	out = append(out, fmt.Sprintf("availability %.0f%%", clamp01(in.availability)*100))
	if level > minLevel {
		out = append(out, fmt.Sprintf("level %s exceeds required %s", level, minLevel))
	} else {
		out = append(out, fmt.Sprintf("level %s meets required %s", level, minLevel))
	}
	if in.rating > 0 {
		out = append(out, fmt.Sprintf("average rating %.1f", in.rating))
	}
	return out
}
