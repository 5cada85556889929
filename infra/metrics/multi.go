package metrics

import (
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
)

// MultiSink fans out records to multiple sinks.
type MultiSink struct {
	Sinks []coremetrics.Sink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...coremetrics.Sink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordTransition forwards to all sinks, returning the first error encountered.
func (m *MultiSink) RecordTransition(from, to model.BookingStatus) error {
	for _, s := range m.Sinks {
		if err := s.RecordTransition(from, to); err != nil {
			return err
		}
	}
	return nil
}

// RecordRecommendation forwards recommendation summaries.
func (m *MultiSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	for _, s := range m.Sinks {
		if err := s.RecordRecommendation(ev); err != nil {
			return err
		}
	}
	return nil
}

// RecordAggregationSkips forwards skip counters.
func (m *MultiSink) RecordAggregationSkips(byReason map[string]int) error {
	for _, s := range m.Sinks {
		if err := s.RecordAggregationSkips(byReason); err != nil {
			return err
		}
	}
	return nil
}

// RecordBackfillBatch forwards batch records.
func (m *MultiSink) RecordBackfillBatch(b coremetrics.BackfillBatch) error {
	for _, s := range m.Sinks {
		if err := s.RecordBackfillBatch(b); err != nil {
			return err
		}
	}
	return nil
}
