package revenue

import (
	"context"
	"sort"
	"sync"

	"github.com/kilianp07/fieldops/core/model"
)

// Day is the persisted state of one date: the raw bucket, kept so later
// incremental runs can merge into it, and its finalized aggregate.
type Day struct {
	Bucket    Bucket
	Aggregate model.DailyAggregate
}

// Store persists per-day aggregates and the all-time ranking. UpsertDays
// replaces each given date with the full value provided.
type Store interface {
	UpsertDays(ctx context.Context, days []Day) error
	Buckets(ctx context.Context, dates []string) (Buckets, error)
	// Aggregates returns days in [from, to] sorted by date. Empty bounds are open.
	Aggregates(ctx context.Context, from, to string) ([]model.DailyAggregate, error)
	PutTopProducts(ctx context.Context, top model.AllTimeTopProducts) error
	TopProducts(ctx context.Context) (model.AllTimeTopProducts, error)
}

// MemoryStore stores aggregates in memory for testing or lightweight usage.
type MemoryStore struct {
	mu   sync.Mutex
	days map[string]Day
	top  model.AllTimeTopProducts
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{days: map[string]Day{}}
}

func (s *MemoryStore) UpsertDays(_ context.Context, days []Day) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range days {
		s.days[d.Aggregate.Date] = Day{Bucket: d.Bucket.Clone(), Aggregate: cloneAggregate(d.Aggregate)}
	}
	return nil
}

func (s *MemoryStore) Buckets(_ context.Context, dates []string) (Buckets, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := Buckets{}
	for _, date := range dates {
		if d, ok := s.days[date]; ok {
			out[date] = d.Bucket.Clone()
		}
	}
	return out, nil
}

func (s *MemoryStore) Aggregates(_ context.Context, from, to string) ([]model.DailyAggregate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.DailyAggregate
	for date, d := range s.days {
		if (from != "" && date < from) || (to != "" && date > to) {
			continue
		}
		out = append(out, cloneAggregate(d.Aggregate))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}

func (s *MemoryStore) PutTopProducts(_ context.Context, top model.AllTimeTopProducts) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	top.Products = cloneProducts(top.Products)
	s.top = top
	return nil
}

func (s *MemoryStore) TopProducts(context.Context) (model.AllTimeTopProducts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	top := s.top
	top.Products = cloneProducts(s.top.Products)
	return top, nil
}

func cloneAggregate(a model.DailyAggregate) model.DailyAggregate {
	a.TopProducts = cloneProducts(a.TopProducts)
	return a
}

func cloneProducts(p []model.ProductSummary) []model.ProductSummary {
	if p == nil {
		return nil
	}
	return append(make([]model.ProductSummary, 0, len(p)), p...)
}
