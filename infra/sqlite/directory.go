package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kilianp07/fieldops/core/directory"
	"github.com/kilianp07/fieldops/core/model"
)

// DirectoryStore implements directory.Store.
type DirectoryStore struct {
	db *sql.DB
}

func NewDirectoryStore(db *sql.DB) *DirectoryStore { return &DirectoryStore{db: db} }

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getTechnician(ctx context.Context, q querier, id string) (model.Technician, error) {
	var data string
	err := q.QueryRowContext(ctx, `SELECT record FROM technicians WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Technician{}, fmt.Errorf("technician %s: %w", id, directory.ErrNotFound)
	}
	if err != nil {
		return model.Technician{}, err
	}
	var t model.Technician
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return model.Technician{}, fmt.Errorf("unmarshal technician %s: %w", id, err)
	}
	return t, nil
}

func putTechnician(ctx context.Context, tx *sql.Tx, t model.Technician) error {
	rec, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, `INSERT INTO technicians (id, record) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET record = excluded.record`, t.ID, string(rec))
	return err
}

func (s *DirectoryStore) Get(ctx context.Context, id string) (model.Technician, error) {
	return getTechnician(ctx, s.db, id)
}

func (s *DirectoryStore) List(ctx context.Context, f directory.Filter) ([]model.Technician, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM technicians ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Technician
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t model.Technician
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshal technician: %w", err)
		}
		if f.Match(t) {
			res = append(res, t)
		}
	}
	return res, rows.Err()
}

func (s *DirectoryStore) Team(ctx context.Context, id string) (model.Team, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT record FROM teams WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Team{}, fmt.Errorf("team %s: %w", id, directory.ErrNotFound)
	}
	if err != nil {
		return model.Team{}, err
	}
	var t model.Team
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return model.Team{}, fmt.Errorf("unmarshal team %s: %w", id, err)
	}
	return t, nil
}

func (s *DirectoryStore) Teams(ctx context.Context) ([]model.Team, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM teams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []model.Team
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var t model.Team
		if err := json.Unmarshal([]byte(data), &t); err != nil {
			return nil, fmt.Errorf("unmarshal team: %w", err)
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (s *DirectoryStore) Put(ctx context.Context, t model.Technician) error {
	if t.ID == "" {
		return fmt.Errorf("technician id is required")
	}
	return inTx(ctx, s.db, func(tx *sql.Tx) error { return putTechnician(ctx, tx, t) })
}

func (s *DirectoryStore) PutTeam(ctx context.Context, t model.Team) error {
	if t.ID == "" || len(t.Members) == 0 {
		return fmt.Errorf("team needs an id and members")
	}
	rec, err := json.Marshal(t)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO teams (id, record) VALUES (?, ?)
        ON CONFLICT(id) DO UPDATE SET record = excluded.record`, t.ID, string(rec))
	return err
}

// AddJob records jobID in the technician's workload. Adding a job already
// held is a no-op and reports false.
func (s *DirectoryStore) AddJob(ctx context.Context, technicianID, jobID string) (bool, error) {
	var added bool
	err := s.modify(ctx, technicianID, func(t *model.Technician) (bool, error) {
		if t.HoldsJob(jobID) {
			return false, nil
		}
		t.CurrentJobs = append(t.CurrentJobs, jobID)
		added = true
		return true, nil
	})
	return added && err == nil, err
}

// ReleaseJob removes jobID from the workload or returns ErrJobNotHeld.
func (s *DirectoryStore) ReleaseJob(ctx context.Context, technicianID, jobID string) error {
	return s.modify(ctx, technicianID, func(t *model.Technician) (bool, error) {
		jobs, ok := directory.RemoveJob(t.CurrentJobs, jobID)
		if !ok {
			return false, fmt.Errorf("technician %s job %s: %w", technicianID, jobID, directory.ErrJobNotHeld)
		}
		t.CurrentJobs = jobs
		return true, nil
	})
}

func (s *DirectoryStore) SetAvailability(ctx context.Context, technicianID string, a model.Availability) error {
	if !a.Valid() {
		return fmt.Errorf("unknown availability %q", a)
	}
	return s.modify(ctx, technicianID, func(t *model.Technician) (bool, error) {
		t.Availability = a
		return true, nil
	})
}

// modify runs a read-modify-write of one technician inside a transaction.
func (s *DirectoryStore) modify(ctx context.Context, id string, fn func(*model.Technician) (bool, error)) error {
	return inTx(ctx, s.db, func(tx *sql.Tx) error {
		t, err := getTechnician(ctx, tx, id)
		if err != nil {
			return err
		}
		changed, err := fn(&t)
		if err != nil || !changed {
			return err
		}
		return putTechnician(ctx, tx, t)
	})
}
