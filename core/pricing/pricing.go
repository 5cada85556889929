// Package pricing manages the single service pricing record.
package pricing

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/settlement"
)

// ErrPricingNotFound is returned by stores that hold no pricing record yet.
var ErrPricingNotFound = errors.New("pricing: not found")

// Store persists the pricing record.
type Store interface {
	Get(ctx context.Context) (model.ServicePricing, error)
	Save(ctx context.Context, p model.ServicePricing) error
}

// MemoryStore keeps the pricing record in memory.
type MemoryStore struct {
	mu  sync.RWMutex
	rec *model.ServicePricing
}

func NewMemoryStore() *MemoryStore { return &MemoryStore{} }

func (s *MemoryStore) Get(context.Context) (model.ServicePricing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.rec == nil {
		return model.ServicePricing{}, ErrPricingNotFound
	}
	return s.rec.Clone(), nil
}

func (s *MemoryStore) Save(_ context.Context, p model.ServicePricing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := p.Clone()
	s.rec = &c
	return nil
}

// Service reads, previews and updates pricing.
type Service struct {
	store Store
	calc  *settlement.Calculator
	bus   events.Publisher
	log   logger.Logger
	now   func() time.Time
}

// NewService creates a pricing service. bus and log may be nil.
func NewService(store Store, calc *settlement.Calculator, bus events.Publisher, log logger.Logger) *Service {
	return &Service{
		store: store,
		calc:  calc,
		bus:   events.OrNop(bus),
		log:   logger.OrNop(log),
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Current returns the stored pricing, or the default record when none has
// been saved yet.
func (s *Service) Current(ctx context.Context) (model.ServicePricing, error) {
	p, err := s.store.Get(ctx)
	if errors.Is(err, ErrPricingNotFound) {
		s.log.Warnf("no pricing stored, using defaults")
		return model.DefaultPricing(), nil
	}
	if err != nil {
		return model.ServicePricing{}, fmt.Errorf("load pricing: %w", err)
	}
	return p, nil
}

// Preview returns the impact of replacing the current pricing with next.
func (s *Service) Preview(ctx context.Context, next model.ServicePricing) ([]model.PriceChange, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	return s.calc.PricingImpact(cur, next), nil
}

// Update validates and stores next, then publishes the committed changes.
// Nothing is published when no price moved.
func (s *Service) Update(ctx context.Context, next model.ServicePricing, updatedBy string) ([]model.PriceChange, error) {
	if err := next.Validate(); err != nil {
		return nil, err
	}
	cur, err := s.Current(ctx)
	if err != nil {
		return nil, err
	}
	next = next.Clone()
	next.UpdatedAt = s.now()
	next.UpdatedBy = updatedBy
	if err := s.store.Save(ctx, next); err != nil {
		return nil, fmt.Errorf("save pricing: %w", err)
	}
	changes := s.calc.PricingImpact(cur, next)
	s.log.Infof("pricing updated by %s: %d changes", updatedBy, len(changes))
	if len(changes) > 0 {
		s.bus.Publish(events.PricingChanged{
			Meta:      events.NewMeta(next.UpdatedAt),
			UpdatedBy: updatedBy,
			Changes:   changes,
		})
	}
	return changes, nil
}
