package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldops/core/model"
)

// Event is implemented by every engine event.
type Event interface {
	EventType() string
}

// Publisher accepts engine events. *eventbus.TypedBus[Event] satisfies it.
type Publisher interface {
	Publish(Event)
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(Event) {}

// OrNop returns p, or a Nop publisher when p is nil.
func OrNop(p Publisher) Publisher {
	if p == nil {
		return Nop{}
	}
	return p
}

// Meta carries fields shared by all events.
type Meta struct {
	ID string
	At time.Time
}

// NewMeta stamps a fresh event id and time.
func NewMeta(at time.Time) Meta {
	return Meta{ID: uuid.NewString(), At: at}
}

// BookingTransitioned is published after a booking status change is stored.
type BookingTransitioned struct {
	Meta
	BookingID string
	From      model.BookingStatus
	To        model.BookingStatus
	Actor     string
	Assignee  model.Assignment
}

func (BookingTransitioned) EventType() string { return "booking.transitioned" }

// AggregateFinalized is published for each daily aggregate written by a backfill.
type AggregateFinalized struct {
	Meta
	Aggregate model.DailyAggregate
}

func (AggregateFinalized) EventType() string { return "aggregate.finalized" }

// PricingChanged is published once a price update is committed. Changes is
// the basis for customer and technician notifications.
type PricingChanged struct {
	Meta
	UpdatedBy string
	Changes   []model.PriceChange
}

func (PricingChanged) EventType() string { return "pricing.changed" }
