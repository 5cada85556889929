package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/revenue"
)

// RevenueStore implements revenue.Store.
type RevenueStore struct {
	db *sql.DB
}

func NewRevenueStore(db *sql.DB) *RevenueStore { return &RevenueStore{db: db} }

// UpsertDays writes the full value of every day in one transaction, so a batch
// is either entirely visible or not at all.
func (s *RevenueStore) UpsertDays(ctx context.Context, days []revenue.Day) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO revenue_days (date, bucket, aggregate) VALUES (?, ?, ?)
            ON CONFLICT(date) DO UPDATE SET bucket = excluded.bucket, aggregate = excluded.aggregate`)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()
		for _, d := range days {
			bucket, err := json.Marshal(d.Bucket)
			if err != nil {
				return err
			}
			agg, err := json.Marshal(d.Aggregate)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, d.Aggregate.Date, string(bucket), string(agg)); err != nil {
				return fmt.Errorf("upsert %s: %w", d.Aggregate.Date, err)
			}
		}
		return nil
	})
}

func (s *RevenueStore) Buckets(ctx context.Context, dates []string) (revenue.Buckets, error) {
	out := revenue.Buckets{}
	if len(dates) == 0 {
		return out, nil
	}
	args := make([]any, len(dates))
	for i, d := range dates {
		args[i] = d
	}
	query := `SELECT date, bucket FROM revenue_days WHERE date IN (?` + strings.Repeat(`, ?`, len(dates)-1) + `)`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var date, data string
		if err := rows.Scan(&date, &data); err != nil {
			return nil, err
		}
		var b revenue.Bucket
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("unmarshal bucket %s: %w", date, err)
		}
		if b.Products == nil {
			b.Products = map[string]revenue.ProductTotals{}
		}
		out[date] = b
	}
	return out, rows.Err()
}

func (s *RevenueStore) Aggregates(ctx context.Context, from, to string) ([]model.DailyAggregate, error) {
	query := `SELECT aggregate FROM revenue_days WHERE 1=1`
	var args []any
	if from != "" {
		query += ` AND date >= ?`
		args = append(args, from)
	}
	if to != "" {
		query += ` AND date <= ?`
		args = append(args, to)
	}
	query += ` ORDER BY date`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.DailyAggregate
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var a model.DailyAggregate
		if err := json.Unmarshal([]byte(data), &a); err != nil {
			return nil, fmt.Errorf("unmarshal aggregate: %w", err)
		}
		res = append(res, a)
	}
	return res, rows.Err()
}

func (s *RevenueStore) PutTopProducts(ctx context.Context, top model.AllTimeTopProducts) error {
	rec, err := json.Marshal(top)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO revenue_top_products (id, record) VALUES (1, ?)
        ON CONFLICT(id) DO UPDATE SET record = excluded.record`, string(rec))
	return err
}

func (s *RevenueStore) TopProducts(ctx context.Context) (model.AllTimeTopProducts, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM revenue_top_products WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.AllTimeTopProducts{}, nil
	}
	if err != nil {
		return model.AllTimeTopProducts{}, err
	}
	var top model.AllTimeTopProducts
	if err := json.Unmarshal([]byte(data), &top); err != nil {
		return model.AllTimeTopProducts{}, fmt.Errorf("unmarshal top products: %w", err)
	}
	return top, nil
}
