package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kilianp07/fieldops/core/booking"
	"github.com/kilianp07/fieldops/core/model"
)

// BookingStore implements booking.Store.
type BookingStore struct {
	db *sql.DB
}

func NewBookingStore(db *sql.DB) *BookingStore { return &BookingStore{db: db} }

func (s *BookingStore) Create(ctx context.Context, b model.Booking) error {
	rec, err := json.Marshal(b)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO bookings (id, status, version, created_at, record) VALUES (?, ?, ?, ?, ?)`,
		b.ID, string(b.Status), b.Version, b.CreatedAt.UnixNano(), string(rec))
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "unique") {
		return fmt.Errorf("booking %s: %w", b.ID, booking.ErrAlreadyExists)
	}
	return err
}

func (s *BookingStore) Get(ctx context.Context, id string) (model.Booking, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM bookings WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, fmt.Errorf("booking %s: %w", id, booking.ErrNotFound)
	}
	if err != nil {
		return model.Booking{}, err
	}
	var b model.Booking
	if err := json.Unmarshal([]byte(data), &b); err != nil {
		return model.Booking{}, fmt.Errorf("unmarshal booking %s: %w", id, err)
	}
	return b, nil
}

func (s *BookingStore) List(ctx context.Context, f booking.ListFilter) ([]model.Booking, error) {
	query := `SELECT record FROM bookings`
	var args []any
	if f.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(f.Status))
	}
	query += ` ORDER BY created_at, id`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Booking
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var b model.Booking
		if err := json.Unmarshal([]byte(data), &b); err != nil {
			return nil, fmt.Errorf("unmarshal booking: %w", err)
		}
		res = append(res, b)
	}
	return res, rows.Err()
}

// Update reads the booking, applies fn and writes it back only if the stored
// version is still the one read. No lock is held while fn runs.
func (s *BookingStore) Update(ctx context.Context, id string, fn func(*model.Booking) error) (model.Booking, error) {
	cur, err := s.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	next := cur.Clone()
	if err := fn(&next); err != nil {
		return model.Booking{}, err
	}
	next.ID = cur.ID
	next.Version = cur.Version + 1
	rec, err := json.Marshal(next)
	if err != nil {
		return model.Booking{}, err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE bookings SET status = ?, version = ?, record = ? WHERE id = ? AND version = ?`,
		string(next.Status), next.Version, string(rec), id, cur.Version)
	if err != nil {
		return model.Booking{}, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return model.Booking{}, err
	}
	if n == 0 {
		return model.Booking{}, fmt.Errorf("booking %s version %d: %w", id, cur.Version, booking.ErrConcurrentUpdate)
	}
	return next, nil
}
