// Package logging keeps an audit trail of dispatch recommendations so an
// operator can later see who was proposed for a booking and why others were
// filtered out.
package logging

import (
	"context"
	"time"

	"github.com/kilianp07/fieldops/core/dispatch"
	"github.com/kilianp07/fieldops/core/model"
)

// LogRecord captures one recommendation.
type LogRecord struct {
	Timestamp  time.Time            `json:"timestamp"`
	BookingID  string               `json:"booking_id"`
	Complexity model.Complexity     `json:"complexity"`
	Candidates []dispatch.Candidate `json:"candidates"`
	Rejections map[string]int       `json:"rejections"`
}

// NewRecord builds a LogRecord from a recommendation.
func NewRecord(at time.Time, req dispatch.Request, rec dispatch.Recommendation) LogRecord {
	return LogRecord{
		Timestamp:  at,
		BookingID:  req.BookingID,
		Complexity: req.Complexity,
		Candidates: rec.Candidates,
		Rejections: rec.Rejections,
	}
}

// Proposed reports whether technicianID appears in any candidate.
func (r LogRecord) Proposed(technicianID string) bool {
	for _, c := range r.Candidates {
		for _, id := range c.MemberIDs {
			if id == technicianID {
				return true
			}
		}
	}
	return false
}

// LogQuery defines filters for retrieving records.
type LogQuery struct {
	Start        time.Time
	End          time.Time
	BookingID    string
	TechnicianID string
}

// Match reports whether r passes every filter of q.
func (q LogQuery) Match(r LogRecord) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.BookingID != "" && r.BookingID != q.BookingID {
		return false
	}
	if q.TechnicianID != "" && !r.Proposed(q.TechnicianID) {
		return false
	}
	return true
}

// LogStore persists LogRecords and supports querying.
type LogStore interface {
	Append(ctx context.Context, rec LogRecord) error
	Query(ctx context.Context, q LogQuery) ([]LogRecord, error)
	Close() error
}

// NopStore discards every record.
type NopStore struct{}

func (NopStore) Append(context.Context, LogRecord) error                { return nil }
func (NopStore) Query(context.Context, LogQuery) ([]LogRecord, error) { return nil, nil }
func (NopStore) Close() error                                         { return nil }
