// Package booking owns the booking status state machine and the assignment
// fields. Every status change is an atomic read-modify-write against the
// booking store and is coupled with the workload counters of the technician
// directory.
package booking

import (
	"errors"

	"github.com/kilianp07/fieldops/core/model"
)

var (
	// ErrInvalidTransition is returned when the target status is not reachable.
	ErrInvalidTransition = errors.New("booking: invalid transition")
	// ErrNotAssignable is returned when assigning a booking that is not pending.
	ErrNotAssignable = errors.New("booking: not assignable")
	// ErrNotFound is returned for unknown booking ids.
	ErrNotFound = errors.New("booking: not found")
	// ErrAlreadyExists is returned when creating a booking whose id is taken.
	ErrAlreadyExists = errors.New("booking: already exists")
	// ErrConcurrentUpdate is returned when another writer changed the booking
	// between read and write.
	ErrConcurrentUpdate = errors.New("booking: concurrent update")
	// ErrInvalidCompletion is returned for malformed completion input.
	ErrInvalidCompletion = errors.New("booking: invalid completion")
)

var transitions = map[model.BookingStatus][]model.BookingStatus{
	model.StatusPending:     {model.StatusConfirmed, model.StatusCancelled, model.StatusRescheduled},
	model.StatusConfirmed:   {model.StatusEnRoute, model.StatusCancelled, model.StatusRescheduled},
	model.StatusEnRoute:     {model.StatusArrived, model.StatusCancelled, model.StatusRescheduled},
	model.StatusArrived:     {model.StatusInProgress, model.StatusCompleted, model.StatusCancelled, model.StatusRescheduled},
	model.StatusInProgress:  {model.StatusCompleted, model.StatusCancelled, model.StatusRescheduled},
	model.StatusRescheduled: {model.StatusPending, model.StatusConfirmed, model.StatusCancelled},
}

// CanTransition reports whether the adjacency table allows from -> to.
func CanTransition(from, to model.BookingStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from s.
func NextStatuses(s model.BookingStatus) []model.BookingStatus {
	return append([]model.BookingStatus(nil), transitions[s]...)
}
