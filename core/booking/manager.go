package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/fieldops/core/directory"
	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/model"
)

// CompletionInput carries the data recorded when a job is finished.
type CompletionInput struct {
	FinalCost float64
	Notes     string
	// Rating is optional and must be within 1..5 when set.
	Rating *int
	Parts  []model.PartCost
}

// Manager applies lifecycle operations to bookings.
type Manager struct {
	store Store
	dir   directory.Store
	bus   events.Publisher
	log   logger.Logger
	now   func() time.Time
}

// Option customizes a Manager.
type Option func(*Manager)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a lifecycle manager. bus and log may be nil.
func NewManager(store Store, dir directory.Store, bus events.Publisher, log logger.Logger, opts ...Option) (*Manager, error) {
	if store == nil || dir == nil {
		return nil, fmt.Errorf("booking: nil store or directory provided to NewManager")
	}
	m := &Manager{
		store: store,
		dir:   dir,
		bus:   events.OrNop(bus),
		log:   logger.OrNop(log),
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, o := range opts {
		o(m)
	}
	return m, nil
}

// Create stores a new pending booking. An id is generated when empty.
func (m *Manager) Create(ctx context.Context, b model.Booking) (model.Booking, error) {
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	if b.FinalCost != nil {
		return model.Booking{}, fmt.Errorf("booking %s: final cost on creation: %w", b.ID, ErrInvalidCompletion)
	}
	now := m.now()
	b.Status = model.StatusPending
	b.Assignment = model.Assignment{}
	b.Completion = nil
	b.History = nil
	b.Version = 0
	b.CreatedAt = now
	b.UpdatedAt = now
	if err := b.Validate(); err != nil {
		return model.Booking{}, err
	}
	if err := m.store.Create(ctx, b); err != nil {
		return model.Booking{}, err
	}
	m.log.Infof("booking %s created (%s, %s)", b.ID, b.ServiceType, b.Complexity)
	return b, nil
}

// Get returns the booking with the given id.
func (m *Manager) Get(ctx context.Context, id string) (model.Booking, error) {
	return m.store.Get(ctx, id)
}

// List returns bookings matching f.
func (m *Manager) List(ctx context.Context, f ListFilter) ([]model.Booking, error) {
	return m.store.List(ctx, f)
}

// Transition moves the booking to status to. Completion goes through
// Complete and the first confirmation through AssignTechnician or AssignTeam.
func (m *Manager) Transition(ctx context.Context, id string, to model.BookingStatus, actor string) (model.Booking, error) {
	return m.apply(ctx, id, actor, func(b *model.Booking) (workloadChange, error) {
		from := b.Status
		if !CanTransition(from, to) {
			return workloadChange{}, fmt.Errorf("%s -> %s: %w", from, to, ErrInvalidTransition)
		}
		var change workloadChange
		switch {
		case to == model.StatusCompleted:
			return workloadChange{}, fmt.Errorf("%s -> %s requires completion data: %w", from, to, ErrInvalidTransition)
		case to == model.StatusConfirmed && !b.Assignment.Assigned():
			return workloadChange{}, fmt.Errorf("%s -> %s without assignment: %w", from, to, ErrInvalidTransition)
		case to == model.StatusCancelled:
			change.release = b.Assignment.MemberIDs
		case from == model.StatusRescheduled && to == model.StatusPending:
			change.release = b.Assignment.MemberIDs
			b.Assignment = model.Assignment{}
		}
		b.Status = to
		return change, nil
	})
}

// AssignTechnician dispatches a single technician to a pending booking.
func (m *Manager) AssignTechnician(ctx context.Context, id, technicianID, actor string) (model.Booking, error) {
	if _, err := m.dir.Get(ctx, technicianID); err != nil {
		return model.Booking{}, err
	}
	return m.assign(ctx, id, actor, model.Assignment{
		TechnicianID: technicianID,
		MemberIDs:    []string{technicianID},
		Crew:         []model.TeamMember{{TechnicianID: technicianID, Role: model.RoleLead}},
	})
}

// AssignTeam dispatches every member of a team to a pending booking.
func (m *Manager) AssignTeam(ctx context.Context, id, teamID, actor string) (model.Booking, error) {
	team, err := m.dir.Team(ctx, teamID)
	if err != nil {
		return model.Booking{}, err
	}
	return m.assign(ctx, id, actor, model.Assignment{
		TeamID:    teamID,
		MemberIDs: team.MemberIDs(),
		Crew:      append([]model.TeamMember(nil), team.Members...),
	})
}

// AssignCrew dispatches an ad-hoc crew that is not stored as a team. The
// first member leads unless one is already flagged as lead. Nothing is
// written to the directory, so a rejected call leaves no trace.
func (m *Manager) AssignCrew(ctx context.Context, id string, crew []model.TeamMember, actor string) (model.Booking, error) {
	if len(crew) == 0 {
		return model.Booking{}, fmt.Errorf("booking %s: empty crew: %w", id, ErrNotAssignable)
	}
	members := make([]model.TeamMember, 0, len(crew))
	ids := make([]string, 0, len(crew))
	seen := map[string]bool{}
	hasLead := false
	for _, c := range crew {
		if seen[c.TechnicianID] {
			return model.Booking{}, fmt.Errorf("booking %s: %s listed twice in crew: %w", id, c.TechnicianID, ErrNotAssignable)
		}
		seen[c.TechnicianID] = true
		if _, err := m.dir.Get(ctx, c.TechnicianID); err != nil {
			return model.Booking{}, err
		}
		if c.Role == "" {
			c.Role = model.RoleMember
		}
		if c.Role == model.RoleLead {
			if hasLead {
				c.Role = model.RoleMember
			}
			hasLead = true
		}
		members = append(members, c)
		ids = append(ids, c.TechnicianID)
	}
	if !hasLead {
		members[0].Role = model.RoleLead
	}
	return m.assign(ctx, id, actor, model.Assignment{
		MemberIDs: ids,
		Crew:      members,
	})
}

func (m *Manager) assign(ctx context.Context, id, actor string, a model.Assignment) (model.Booking, error) {
	return m.apply(ctx, id, actor, func(b *model.Booking) (workloadChange, error) {
		if b.Status != model.StatusPending {
			return workloadChange{}, fmt.Errorf("booking %s is %s: %w", b.ID, b.Status, ErrNotAssignable)
		}
		a.AssignedAt = m.now()
		a.AssignedBy = actor
		b.Assignment = a
		b.Status = model.StatusConfirmed
		return workloadChange{add: a.MemberIDs}, nil
	})
}

// Complete records the final cost and moves the booking to completed.
func (m *Manager) Complete(ctx context.Context, id string, in CompletionInput, actor string) (model.Booking, error) {
	if in.FinalCost < 0 {
		return model.Booking{}, fmt.Errorf("negative final cost %.2f: %w", in.FinalCost, ErrInvalidCompletion)
	}
	if in.Rating != nil && (*in.Rating < 1 || *in.Rating > 5) {
		return model.Booking{}, fmt.Errorf("rating %d outside 1..5: %w", *in.Rating, ErrInvalidCompletion)
	}
	return m.apply(ctx, id, actor, func(b *model.Booking) (workloadChange, error) {
		if b.Status != model.StatusInProgress && b.Status != model.StatusArrived {
			return workloadChange{}, fmt.Errorf("%s -> %s: %w", b.Status, model.StatusCompleted, ErrInvalidTransition)
		}
		cost := in.FinalCost
		b.FinalCost = &cost
		b.PartCosts = append([]model.PartCost(nil), in.Parts...)
		comp := &model.Completion{CompletedAt: m.now(), Notes: in.Notes}
		if in.Rating != nil {
			r := *in.Rating
			comp.Rating = &r
		}
		b.Completion = comp
		b.Status = model.StatusCompleted
		return workloadChange{release: b.Assignment.MemberIDs}, nil
	})
}

type workloadChange struct {
	add     []string
	release []string
}

// maxAttempts bounds the retries after a lost compare-and-set.
const maxAttempts = 3

// apply runs mutate as an atomic update of the booking. A lost
// compare-and-set is retried against the fresh state, so a second dispatcher
// racing for the same booking ends with ErrNotAssignable.
func (m *Manager) apply(ctx context.Context, id, actor string, mutate func(*model.Booking) (workloadChange, error)) (model.Booking, error) {
	var (
		updated model.Booking
		from    model.BookingStatus
		err     error
	)
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		updated, from, err = m.applyOnce(ctx, id, actor, mutate)
		if !errors.Is(err, ErrConcurrentUpdate) {
			break
		}
		m.log.Debugf("booking %s changed concurrently, attempt %d/%d", id, attempt, maxAttempts)
	}
	if err != nil {
		return model.Booking{}, err
	}
	m.log.Debugw("booking transitioned", map[string]any{
		"booking_id": updated.ID,
		"from":       string(from),
		"to":         string(updated.Status),
		"actor":      actor,
		"version":    updated.Version,
	})
	m.bus.Publish(events.BookingTransitioned{
		Meta:      events.NewMeta(updated.UpdatedAt),
		BookingID: updated.ID,
		From:      from,
		To:        updated.Status,
		Actor:     actor,
		Assignee:  updated.Assignment,
	})
	return updated, nil
}

// applyOnce runs mutate inside the store update. Workload counters move inside
// the same update so a rejected status check never touches them; if the
// write itself fails the touched counters are reconciled with whatever
// booking state was committed instead.
func (m *Manager) applyOnce(ctx context.Context, id, actor string, mutate func(*model.Booking) (workloadChange, error)) (model.Booking, model.BookingStatus, error) {
	var (
		from model.BookingStatus
		done []jobChange
	)
	updated, err := m.store.Update(ctx, id, func(b *model.Booking) error {
		done = nil
		from = b.Status
		change, err := mutate(b)
		if err != nil {
			return err
		}
		now := m.now()
		b.UpdatedAt = now
		b.History = append(b.History, model.StatusChange{From: from, To: b.Status, Actor: actor, At: now})
		if err := b.Validate(); err != nil {
			return err
		}
		d, err := m.applyWorkload(ctx, b.ID, change)
		if err != nil {
			return err
		}
		done = d
		return nil
	})
	if err != nil {
		if len(done) > 0 {
			m.reconcile(ctx, id, done)
		}
		return model.Booking{}, "", err
	}
	return updated, from, nil
}

// jobChange is one workload counter this attempt actually moved.
type jobChange struct {
	technicianID string
	added        bool
}

// applyWorkload adjusts directory counters and returns the ones it changed.
// No-op adds and tolerated releases are not reported, so a concurrent writer's
// job is never treated as ours. On failure the changes made so far are
// reverted before returning.
func (m *Manager) applyWorkload(ctx context.Context, bookingID string, c workloadChange) ([]jobChange, error) {
	var done []jobChange
	for _, tid := range c.add {
		added, err := m.dir.AddJob(ctx, tid, bookingID)
		if err != nil {
			m.revert(ctx, bookingID, done)
			return nil, fmt.Errorf("add job to %s: %w", tid, err)
		}
		if added {
			done = append(done, jobChange{technicianID: tid, added: true})
		}
	}
	for _, tid := range c.release {
		err := m.dir.ReleaseJob(ctx, tid, bookingID)
		switch {
		case errors.Is(err, directory.ErrJobNotHeld), errors.Is(err, directory.ErrNotFound):
			m.log.Warnf("workload drift: %s did not hold %s: %v", tid, bookingID, err)
			continue
		case err != nil:
			m.revert(ctx, bookingID, done)
			return nil, fmt.Errorf("release job from %s: %w", tid, err)
		}
		done = append(done, jobChange{technicianID: tid})
	}
	return done, nil
}

// revert undoes changes in reverse order.
func (m *Manager) revert(ctx context.Context, bookingID string, done []jobChange) {
	for i := len(done) - 1; i >= 0; i-- {
		m.setHeld(ctx, done[i].technicianID, bookingID, !done[i].added)
	}
}

// reconcile runs after a failed write. Another writer may have committed in
// the meantime, so each touched counter is set to match the stored booking
// rather than blindly reverted. When the booking cannot be read the changes
// are reverted.
func (m *Manager) reconcile(ctx context.Context, bookingID string, done []jobChange) {
	ctx = context.WithoutCancel(ctx)
	cur, err := m.store.Get(ctx, bookingID)
	if err != nil {
		m.log.Errorf("reload %s to reconcile workload: %v", bookingID, err)
		m.revert(ctx, bookingID, done)
		return
	}
	held := heldBy(cur)
	for i := len(done) - 1; i >= 0; i-- {
		tid := done[i].technicianID
		m.setHeld(ctx, tid, bookingID, held[tid])
	}
}

func (m *Manager) setHeld(ctx context.Context, technicianID, bookingID string, hold bool) {
	ctx = context.WithoutCancel(ctx)
	var err error
	if hold {
		_, err = m.dir.AddJob(ctx, technicianID, bookingID)
	} else if err = m.dir.ReleaseJob(ctx, technicianID, bookingID); errors.Is(err, directory.ErrJobNotHeld) {
		err = nil
	}
	if err != nil {
		m.log.Errorf("compensate workload of %s for %s: %v", technicianID, bookingID, err)
	}
}

// heldBy returns the technicians whose workload should carry b.
func heldBy(b model.Booking) map[string]bool {
	held := map[string]bool{}
	if b.Status.IsTerminal() {
		return held
	}
	for _, id := range b.Assignment.MemberIDs {
		held[id] = true
	}
	return held
}
