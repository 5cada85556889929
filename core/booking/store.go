package booking

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/kilianp07/fieldops/core/model"
)

// ListFilter selects bookings. Zero fields match everything.
type ListFilter struct {
	Status model.BookingStatus
}

// Store persists bookings keyed by id.
type Store interface {
	Create(ctx context.Context, b model.Booking) error
	Get(ctx context.Context, id string) (model.Booking, error)
	List(ctx context.Context, f ListFilter) ([]model.Booking, error)
	// Update runs fn on a copy of the current booking and stores the result
	// atomically, bumping Version. Nothing is written when fn fails.
	// Implementations return ErrConcurrentUpdate when the stored version
	// moved while fn was running.
	Update(ctx context.Context, id string, fn func(*model.Booking) error) (model.Booking, error)
}

// MemoryStore keeps bookings in memory. Update holds the store lock for the
// whole read-modify-write.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string]model.Booking
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: map[string]model.Booking{}}
}

func (s *MemoryStore) Create(_ context.Context, b model.Booking) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[b.ID]; ok {
		return fmt.Errorf("booking %s: %w", b.ID, ErrAlreadyExists)
	}
	s.data[b.ID] = b.Clone()
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	return b.Clone(), nil
}

// List returns matching bookings ordered by creation time then id.
func (s *MemoryStore) List(_ context.Context, f ListFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := make([]model.Booking, 0, len(s.data))
	for _, b := range s.data {
		if f.Status != "" && b.Status != f.Status {
			continue
		}
		res = append(res, b.Clone())
	}
	sort.Slice(res, func(i, j int) bool {
		if !res[i].CreatedAt.Equal(res[j].CreatedAt) {
			return res[i].CreatedAt.Before(res[j].CreatedAt)
		}
		return res[i].ID < res[j].ID
	})
	return res, nil
}

func (s *MemoryStore) Update(_ context.Context, id string, fn func(*model.Booking) error) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.data[id]
	if !ok {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, ErrNotFound)
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Booking{}, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	s.data[id] = next
	return next.Clone(), nil
}
