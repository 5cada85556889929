package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/pricing"
)

// PricingStore implements pricing.Store as a single-row table.
type PricingStore struct {
	db *sql.DB
}

func NewPricingStore(db *sql.DB) *PricingStore { return &PricingStore{db: db} }

func (s *PricingStore) Get(ctx context.Context) (model.ServicePricing, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM pricing WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.ServicePricing{}, pricing.ErrPricingNotFound
	}
	if err != nil {
		return model.ServicePricing{}, err
	}
	var p model.ServicePricing
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return model.ServicePricing{}, fmt.Errorf("unmarshal pricing: %w", err)
	}
	return p, nil
}

func (s *PricingStore) Save(ctx context.Context, p model.ServicePricing) error {
	rec, err := json.Marshal(p)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO pricing (id, record) VALUES (1, ?)
        ON CONFLICT(id) DO UPDATE SET record = excluded.record`, string(rec))
	return err
}
