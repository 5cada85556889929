package model

import (
	"fmt"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending     BookingStatus = "pending"
	StatusConfirmed   BookingStatus = "confirmed"
	StatusEnRoute     BookingStatus = "en_route"
	StatusArrived     BookingStatus = "arrived"
	StatusInProgress  BookingStatus = "in_progress"
	StatusCompleted   BookingStatus = "completed"
	StatusCancelled   BookingStatus = "cancelled"
	StatusRescheduled BookingStatus = "rescheduled"
)

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusEnRoute, StatusArrived,
		StatusInProgress, StatusCompleted, StatusCancelled, StatusRescheduled:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition can leave s.
func (s BookingStatus) IsTerminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// Schedule holds the customer's preferred slot.
type Schedule struct {
	PreferredDate string `json:"preferred_date"` // YYYY-MM-DD
	TimeSlot      string `json:"time_slot"`
}

// Location is where the job takes place. City doubles as the service area key.
type Location struct {
	City    string `json:"city"`
	Address string `json:"address"`
}

// Assignment records who was dispatched. At most one of TechnicianID or
// TeamID is set; a composed crew sets neither. MemberIDs lists every
// technician whose workload carries the job and Crew freezes their roles at
// dispatch time, so later team edits do not change who is paid as lead.
type Assignment struct {
	TechnicianID string       `json:"technician_id,omitempty"`
	TeamID       string       `json:"team_id,omitempty"`
	MemberIDs    []string     `json:"member_ids,omitempty"`
	Crew         []TeamMember `json:"crew,omitempty"`
	AssignedAt   time.Time `json:"assigned_at"`
	AssignedBy   string    `json:"assigned_by,omitempty"`
}

// Assigned reports whether the assignment names anyone.
func (a Assignment) Assigned() bool { return len(a.MemberIDs) > 0 }

// PartCost is an optional line on the final bill.
type PartCost struct {
	Name string  `json:"name"`
	Cost float64 `json:"cost"`
}

// Completion captures the outcome of a finished job.
type Completion struct {
	CompletedAt time.Time `json:"completed_at"`
	Notes       string    `json:"notes,omitempty"`
	Rating      *int      `json:"rating,omitempty"`
}

// StatusChange is one entry of the booking audit trail.
type StatusChange struct {
	From  BookingStatus `json:"from"`
	To    BookingStatus `json:"to"`
	Actor string        `json:"actor"`
	At    time.Time     `json:"at"`
}

// Booking is a single customer service request.
type Booking struct {
	ID             string         `json:"id"`
	ServiceType    ServiceType    `json:"service_type"`
	Complexity     Complexity     `json:"complexity"`
	RequiredSkills []string       `json:"required_skills"`
	Schedule       Schedule       `json:"schedule"`
	Location       Location       `json:"location"`
	Status         BookingStatus  `json:"status"`
	Assignment     Assignment     `json:"assignment"`
	AgreedPrice    float64        `json:"agreed_price"`
	FinalCost      *float64       `json:"final_cost,omitempty"`
	PartCosts      []PartCost     `json:"part_costs,omitempty"`
	Completion     *Completion    `json:"completion,omitempty"`
	History        []StatusChange `json:"history,omitempty"`
	Version        int            `json:"version"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}

// Validate checks the structural invariants of the booking.
func (b Booking) Validate() error {
	if b.ID == "" {
		return fmt.Errorf("booking id is required")
	}
	if !b.ServiceType.Valid() {
		return fmt.Errorf("booking %s: unknown service type %q", b.ID, b.ServiceType)
	}
	if !b.Complexity.Valid() {
		return fmt.Errorf("booking %s: unknown complexity %q", b.ID, b.Complexity)
	}
	if !b.Status.Valid() {
		return fmt.Errorf("booking %s: unknown status %q", b.ID, b.Status)
	}
	if b.FinalCost != nil && b.Status != StatusCompleted {
		return fmt.Errorf("booking %s: final cost set while %s", b.ID, b.Status)
	}
	if b.Status == StatusCompleted && b.FinalCost == nil {
		return fmt.Errorf("booking %s: completed without final cost", b.ID)
	}
	return nil
}

// Clone returns a deep copy so callers can mutate it freely.
func (b Booking) Clone() Booking {
	c := b
	c.RequiredSkills = append([]string(nil), b.RequiredSkills...)
	c.Assignment.MemberIDs = append([]string(nil), b.Assignment.MemberIDs...)
	c.Assignment.Crew = append([]TeamMember(nil), b.Assignment.Crew...)
	c.PartCosts = append([]PartCost(nil), b.PartCosts...)
	c.History = append([]StatusChange(nil), b.History...)
	if b.FinalCost != nil {
		v := *b.FinalCost
		c.FinalCost = &v
	}
	if b.Completion != nil {
		comp := *b.Completion
		if b.Completion.Rating != nil {
			r := *b.Completion.Rating
			comp.Rating = &r
		}
		c.Completion = &comp
	}
	return c
}
