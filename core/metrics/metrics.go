package metrics

import "github.com/kilianp07/fieldops/core/model"

// RecommendationEvent summarizes one recommender run.
type RecommendationEvent struct {
	Complexity model.Complexity
	Candidates int
	// Rejections counts hard-filter rejections by reason.
	Rejections map[string]int
}

// BackfillBatch describes one committed batch of aggregate writes.
type BackfillBatch struct {
	Mode   string
	Writes int
}

// Sink records engine activity for observability purposes.
type Sink interface {
	RecordTransition(from, to model.BookingStatus) error
	RecordRecommendation(ev RecommendationEvent) error
	RecordAggregationSkips(byReason map[string]int) error
	RecordBackfillBatch(b BackfillBatch) error
}

// NopSink implements Sink with no-op methods.
type NopSink struct{}

func (NopSink) RecordTransition(model.BookingStatus, model.BookingStatus) error { return nil }
func (NopSink) RecordRecommendation(RecommendationEvent) error                  { return nil }
func (NopSink) RecordAggregationSkips(map[string]int) error                     { return nil }
func (NopSink) RecordBackfillBatch(BackfillBatch) error                         { return nil }

// OrNop returns s, or a NopSink when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return NopSink{}
	}
	return s
}
