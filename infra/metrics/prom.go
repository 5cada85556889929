package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
)

// PromSink records engine activity in Prometheus metrics.
type PromSink struct {
	transitions     *prometheus.CounterVec
	recommendations *prometheus.HistogramVec
	rejections      *prometheus.CounterVec
	skips           *prometheus.CounterVec
	batches         *prometheus.CounterVec
	writes          *prometheus.CounterVec
}

// NewPromSink registers engine metrics on the default Prometheus registerer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer. Collectors
// that are already registered are reused.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Booking status transitions applied",
		}, []string{"from", "to"}),
		recommendations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "dispatch_recommendation_candidates",
			Help:    "Number of ranked candidates returned per recommendation",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"complexity"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_candidates_rejected_total",
			Help: "Technicians removed by recommendation hard filters",
		}, []string{"reason"}),
		skips: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "revenue_aggregation_skipped_orders_total",
			Help: "Orders excluded from revenue aggregation",
		}, []string{"reason"}),
		batches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "revenue_backfill_batches_total",
			Help: "Aggregate batches committed by backfill runs",
		}, []string{"mode"}),
		writes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "revenue_backfill_writes_total",
			Help: "Daily aggregate documents written by backfill runs",
		}, []string{"mode"}),
	}
	var err error
	if s.transitions, err = registerCounterVec(reg, s.transitions); err != nil {
		return nil, err
	}
	if s.recommendations, err = registerHistogramVec(reg, s.recommendations); err != nil {
		return nil, err
	}
	if s.rejections, err = registerCounterVec(reg, s.rejections); err != nil {
		return nil, err
	}
	if s.skips, err = registerCounterVec(reg, s.skips); err != nil {
		return nil, err
	}
	if s.batches, err = registerCounterVec(reg, s.batches); err != nil {
		return nil, err
	}
	if s.writes, err = registerCounterVec(reg, s.writes); err != nil {
		return nil, err
	}
	return s, nil
}

func registerCounterVec(reg prometheus.Registerer, c *prometheus.CounterVec) (*prometheus.CounterVec, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.CounterVec), nil
		}
		return nil, err
	}
	return c, nil
}

func registerHistogramVec(reg prometheus.Registerer, h *prometheus.HistogramVec) (*prometheus.HistogramVec, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return are.ExistingCollector.(*prometheus.HistogramVec), nil
		}
		return nil, err
	}
	return h, nil
}

// RecordTransition increments the transition counter.
func (s *PromSink) RecordTransition(from, to model.BookingStatus) error {
	s.transitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

// RecordRecommendation observes the candidate count and the filter rejections.
func (s *PromSink) RecordRecommendation(ev coremetrics.RecommendationEvent) error {
	s.recommendations.WithLabelValues(string(ev.Complexity)).Observe(float64(ev.Candidates))
	for reason, n := range ev.Rejections {
		s.rejections.WithLabelValues(reason).Add(float64(n))
	}
	return nil
}

// RecordAggregationSkips adds skipped orders per reason.
func (s *PromSink) RecordAggregationSkips(byReason map[string]int) error {
	for reason, n := range byReason {
		s.skips.WithLabelValues(reason).Add(float64(n))
	}
	return nil
}

// RecordBackfillBatch counts a committed batch and its writes.
func (s *PromSink) RecordBackfillBatch(b coremetrics.BackfillBatch) error {
	s.batches.WithLabelValues(b.Mode).Inc()
	s.writes.WithLabelValues(b.Mode).Add(float64(b.Writes))
	return nil
}
