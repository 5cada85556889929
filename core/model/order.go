package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// PaymentStatus is the payment state of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentPaid      PaymentStatus = "paid"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Settled reports whether the order counts towards revenue.
func (s PaymentStatus) Settled() bool {
	switch PaymentStatus(strings.ToLower(string(s))) {
	case PaymentPaid, PaymentCompleted:
		return true
	}
	return false
}

// OrderItem is one product line of an order.
type OrderItem struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Quantity  int     `json:"quantity"`
	Price     float64 `json:"price"`
}

// Order is a commerce order consumed by the revenue aggregator.
type Order struct {
	ID            string        `json:"id"`
	PaymentStatus PaymentStatus `json:"payment_status"`
	CreatedAt     Timestamp     `json:"created_at"`
	Total         float64       `json:"total"`
	Items         []OrderItem   `json:"items"`
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Timestamp is a creation date as found in collaborator records. It accepts
// RFC3339 or date strings, unix seconds (or milliseconds) and
// {"seconds":..,"nanoseconds":..} objects. Anything else decodes to the zero
// value, which Resolve reports as unresolvable.
type Timestamp struct {
	time.Time
}

// NewTimestamp wraps t.
func NewTimestamp(t time.Time) Timestamp { return Timestamp{Time: t} }

// Resolve returns the UTC instant and whether it is usable.
func (t Timestamp) Resolve() (time.Time, bool) {
	if t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// MarshalJSON encodes the timestamp as RFC3339 or null.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON implements json.Unmarshaler. Malformed values are not errors.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	*t = Timestamp{}
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	switch b[0] {
	case '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		for _, layout := range timestampLayouts {
			if v, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
				t.Time = v
				return nil
			}
		}
	case '{':
		var obj struct {
			Seconds     *int64 `json:"seconds"`
			Nanoseconds int64  `json:"nanoseconds"`
			AltSeconds  *int64 `json:"_seconds"`
			AltNanos    int64  `json:"_nanoseconds"`
		}
		if err := json.Unmarshal(b, &obj); err != nil {
			return nil
		}
		switch {
		case obj.Seconds != nil:
			t.Time = time.Unix(*obj.Seconds, obj.Nanoseconds).UTC()
		case obj.AltSeconds != nil:
			t.Time = time.Unix(*obj.AltSeconds, obj.AltNanos).UTC()
		}
	default:
		var n float64
		if err := json.Unmarshal(b, &n); err != nil || n <= 0 {
			return nil
		}
		if n > 1e12 {
			t.Time = time.UnixMilli(int64(n)).UTC()
		} else {
			t.Time = time.Unix(int64(n), 0).UTC()
		}
	}
	return nil
}

// DateKey formats t as the UTC YYYY-MM-DD key used by daily aggregates.
func DateKey(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// ProductSummary is a ranked product line in an aggregate.
type ProductSummary struct {
	ProductID string  `json:"product_id"`
	Name      string  `json:"name"`
	Units     int     `json:"units"`
	Revenue   float64 `json:"revenue"`
}

// DailyAggregate summarizes paid order activity for one UTC day.
type DailyAggregate struct {
	Date        string           `json:"date"`
	Revenue     float64          `json:"revenue"`
	Orders      int              `json:"orders"`
	TopProducts []ProductSummary `json:"top_products"`
}

// AllTimeTopProducts is the singleton ranking across every paid order.
type AllTimeTopProducts struct {
	Products  []ProductSummary `json:"products"`
	UpdatedAt time.Time        `json:"updated_at"`
}
