package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/directory"
	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/model"
)

type recordingBus struct {
	mu     sync.Mutex
	events []events.Event
}

func (b *recordingBus) Publish(e events.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *recordingBus) transitions() []events.BookingTransitioned {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []events.BookingTransitioned
	for _, e := range b.events {
		if bt, ok := e.(events.BookingTransitioned); ok {
			out = append(out, bt)
		}
	}
	return out
}

type fixture struct {
	mgr   *Manager
	store *MemoryStore
	dir   *directory.MemoryStore
	bus   *recordingBus
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	dir := directory.NewMemoryStore()
	for i := 1; i <= 4; i++ {
		require.NoError(t, dir.Put(ctx, model.Technician{
			ID:            fmt.Sprintf("t%d", i),
			Level:         model.LevelSenior,
			Availability:  model.Available,
			MaxJobsPerDay: 5,
		}))
	}
	require.NoError(t, dir.PutTeam(ctx, model.Team{ID: "team-a", Members: []model.TeamMember{
		{TechnicianID: "t1", Role: model.RoleLead},
		{TechnicianID: "t2", Role: model.RoleMember},
	}}))
	store := NewMemoryStore()
	bus := &recordingBus{}
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	mgr, err := NewManager(store, dir, bus, nil, WithClock(func() time.Time { return clock }))
	require.NoError(t, err)
	return fixture{mgr: mgr, store: store, dir: dir, bus: bus}
}

func (f fixture) create(t *testing.T) model.Booking {
	t.Helper()
	b, err := f.mgr.Create(context.Background(), model.Booking{
		ServiceType: model.ServiceRepair,
		Complexity:  model.ComplexityModerate,
		Location:    model.Location{City: "Hanoi"},
		AgreedPrice: 300,
	})
	require.NoError(t, err)
	return b
}

func (f fixture) workload(t *testing.T, id string) int {
	t.Helper()
	tech, err := f.dir.Get(context.Background(), id)
	require.NoError(t, err)
	return tech.Workload()
}

func (f fixture) advance(t *testing.T, id string, to ...model.BookingStatus) {
	t.Helper()
	for _, s := range to {
		_, err := f.mgr.Transition(context.Background(), id, s, "ops")
		require.NoError(t, err)
	}
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, model.StatusPending, b.Status)

	cost := 10.0
	_, err := f.mgr.Create(context.Background(), model.Booking{
		ServiceType: model.ServiceRepair, Complexity: model.ComplexitySimple, FinalCost: &cost,
	})
	assert.ErrorIs(t, err, ErrInvalidCompletion)

	_, err = f.mgr.Create(context.Background(), model.Booking{ServiceType: "laundry", Complexity: model.ComplexitySimple})
	assert.Error(t, err)
}

func TestAssignTechnician(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	got, err := f.mgr.AssignTechnician(ctx, b.ID, "t1", "dispatcher")
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, "t1", got.Assignment.TechnicianID)
	assert.Equal(t, "dispatcher", got.Assignment.AssignedBy)
	assert.Equal(t, 1, f.workload(t, "t1"))
	require.Len(t, got.History, 1)
	assert.Equal(t, model.StatusPending, got.History[0].From)

	_, err = f.mgr.AssignTechnician(ctx, b.ID, "t2", "dispatcher")
	assert.ErrorIs(t, err, ErrNotAssignable)
	assert.Equal(t, 0, f.workload(t, "t2"))

	tr := f.bus.transitions()
	require.Len(t, tr, 1)
	assert.Equal(t, model.StatusConfirmed, tr[0].To)
	assert.Equal(t, "t1", tr[0].Assignee.TechnicianID)
}

func TestAssignUnknownTechnician(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	_, err := f.mgr.AssignTechnician(context.Background(), b.ID, "ghost", "ops")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	got, err := f.mgr.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status)
}

func TestAssignTeam(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	got, err := f.mgr.AssignTeam(context.Background(), b.ID, "team-a", "ops")
	require.NoError(t, err)
	assert.Equal(t, "team-a", got.Assignment.TeamID)
	assert.Equal(t, []string{"t1", "t2"}, got.Assignment.MemberIDs)
	assert.Equal(t, 1, f.workload(t, "t1"))
	assert.Equal(t, 1, f.workload(t, "t2"))
}

func TestConcurrentAssignOnlyOneWins(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		success int
	)
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if _, err := f.mgr.AssignTechnician(context.Background(), b.ID, id, "ops"); err == nil {
				mu.Lock()
				success++
				mu.Unlock()
			} else {
				assert.ErrorIs(t, err, ErrNotAssignable)
			}
		}(fmt.Sprintf("t%d", i))
	}
	wg.Wait()

	assert.Equal(t, 1, success)
	total := 0
	for i := 1; i <= 4; i++ {
		total += f.workload(t, fmt.Sprintf("t%d", i))
	}
	assert.Equal(t, 1, total)
}

func TestTransitionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	_, err := f.mgr.Transition(ctx, b.ID, model.StatusConfirmed, "ops")
	assert.ErrorIs(t, err, ErrInvalidTransition, "confirmation needs an assignment")

	_, err = f.mgr.Transition(ctx, b.ID, model.StatusEnRoute, "ops")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.mgr.AssignTechnician(ctx, b.ID, "t1", "ops")
	require.NoError(t, err)
	f.advance(t, b.ID, model.StatusEnRoute, model.StatusArrived, model.StatusInProgress)

	_, err = f.mgr.Transition(ctx, b.ID, model.StatusCompleted, "ops")
	assert.ErrorIs(t, err, ErrInvalidTransition, "completion goes through Complete")

	got, err := f.mgr.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusInProgress, got.Status)
	assert.Equal(t, 4, got.Version)
	assert.Len(t, got.History, 4)
}

func TestCancelReleasesWorkload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)
	_, err := f.mgr.AssignTeam(ctx, b.ID, "team-a", "ops")
	require.NoError(t, err)

	got, err := f.mgr.Transition(ctx, b.ID, model.StatusCancelled, "customer")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
	assert.Equal(t, "team-a", got.Assignment.TeamID)
	assert.Equal(t, 0, f.workload(t, "t1"))
	assert.Equal(t, 0, f.workload(t, "t2"))

	_, err = f.mgr.Transition(ctx, b.ID, model.StatusPending, "ops")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	_, err = f.mgr.AssignTechnician(ctx, b.ID, "t3", "ops")
	assert.ErrorIs(t, err, ErrNotAssignable)
}

func TestRescheduleFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)
	_, err := f.mgr.AssignTechnician(ctx, b.ID, "t1", "ops")
	require.NoError(t, err)

	f.advance(t, b.ID, model.StatusRescheduled)
	assert.Equal(t, 1, f.workload(t, "t1"))

	f.advance(t, b.ID, model.StatusConfirmed)
	f.advance(t, b.ID, model.StatusRescheduled, model.StatusPending)
	assert.Equal(t, 0, f.workload(t, "t1"))

	got, err := f.mgr.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.False(t, got.Assignment.Assigned())

	_, err = f.mgr.AssignTechnician(ctx, b.ID, "t2", "ops")
	require.NoError(t, err)
	assert.Equal(t, 1, f.workload(t, "t2"))
}

func TestComplete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)
	_, err := f.mgr.AssignTechnician(ctx, b.ID, "t1", "ops")
	require.NoError(t, err)

	_, err = f.mgr.Complete(ctx, b.ID, CompletionInput{FinalCost: 300}, "t1")
	assert.ErrorIs(t, err, ErrInvalidTransition, "confirmed cannot complete")

	f.advance(t, b.ID, model.StatusEnRoute, model.StatusArrived)

	bad := 6
	_, err = f.mgr.Complete(ctx, b.ID, CompletionInput{FinalCost: 300, Rating: &bad}, "t1")
	assert.ErrorIs(t, err, ErrInvalidCompletion)
	_, err = f.mgr.Complete(ctx, b.ID, CompletionInput{FinalCost: -1}, "t1")
	assert.ErrorIs(t, err, ErrInvalidCompletion)

	rating := 5
	got, err := f.mgr.Complete(ctx, b.ID, CompletionInput{
		FinalCost: 350,
		Notes:     "replaced compressor",
		Rating:    &rating,
		Parts:     []model.PartCost{{Name: "compressor", Cost: 50}},
	}, "t1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)
	require.NotNil(t, got.FinalCost)
	assert.Equal(t, 350.0, *got.FinalCost)
	require.NotNil(t, got.Completion)
	assert.Equal(t, 5, *got.Completion.Rating)
	assert.Equal(t, 0, f.workload(t, "t1"))

	_, err = f.mgr.Transition(ctx, b.ID, model.StatusCancelled, "ops")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestReleaseToleratesDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)
	_, err := f.mgr.AssignTechnician(ctx, b.ID, "t1", "ops")
	require.NoError(t, err)
	require.NoError(t, f.dir.ReleaseJob(ctx, "t1", b.ID))

	got, err := f.mgr.Transition(ctx, b.ID, model.StatusCancelled, "ops")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCancelled, got.Status)
}

type failingStore struct {
	*MemoryStore
}

func (s failingStore) Update(ctx context.Context, id string, fn func(*model.Booking) error) (model.Booking, error) {
	_, err := s.MemoryStore.Update(ctx, id, func(b *model.Booking) error {
		if err := fn(b); err != nil {
			return err
		}
		return ErrConcurrentUpdate
	})
	return model.Booking{}, err
}

func TestFailedWriteCompensatesWorkload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	mgr, err := NewManager(failingStore{f.store}, f.dir, nil, nil)
	require.NoError(t, err)
	_, err = mgr.AssignTeam(ctx, b.ID, "team-a", "ops")
	assert.ErrorIs(t, err, ErrConcurrentUpdate)
	assert.Equal(t, 0, f.workload(t, "t1"))
	assert.Equal(t, 0, f.workload(t, "t2"))
}

// racingStore lets another dispatcher commit while the first update is
// between its workload change and its compare-and-set.
type racingStore struct {
	*MemoryStore
	once   *sync.Once
	during func()
}

func (s racingStore) Update(ctx context.Context, id string, fn func(*model.Booking) error) (model.Booking, error) {
	raced := false
	s.once.Do(func() { raced = true })
	if !raced {
		return s.MemoryStore.Update(ctx, id, fn)
	}
	b, err := s.Get(ctx, id)
	if err != nil {
		return model.Booking{}, err
	}
	if err := fn(&b); err != nil {
		return model.Booking{}, err
	}
	s.during()
	return model.Booking{}, ErrConcurrentUpdate
}

func TestLostRaceKeepsWinnerWorkload(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	var winErr error
	racer, err := NewManager(racingStore{MemoryStore: f.store, once: &sync.Once{}, during: func() {
		_, winErr = f.mgr.AssignTechnician(ctx, b.ID, "t1", "b")
	}}, f.dir, nil, nil)
	require.NoError(t, err)

	_, err = racer.AssignTechnician(ctx, b.ID, "t1", "a")
	assert.ErrorIs(t, err, ErrNotAssignable)
	require.NoError(t, winErr)

	got, err := f.mgr.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, got.Status)
	assert.Equal(t, []string{"t1"}, got.Assignment.MemberIDs)
	tech, err := f.dir.Get(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, tech.CurrentJobs)
}

func TestAssignCrew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	_, err := f.mgr.AssignCrew(ctx, b.ID, nil, "ops")
	assert.ErrorIs(t, err, ErrNotAssignable)
	_, err = f.mgr.AssignCrew(ctx, b.ID, []model.TeamMember{{TechnicianID: "t3"}, {TechnicianID: "t3"}}, "ops")
	assert.ErrorIs(t, err, ErrNotAssignable)
	_, err = f.mgr.AssignCrew(ctx, b.ID, []model.TeamMember{{TechnicianID: "ghost"}}, "ops")
	assert.ErrorIs(t, err, directory.ErrNotFound)

	got, err := f.mgr.AssignCrew(ctx, b.ID, []model.TeamMember{
		{TechnicianID: "t3"},
		{TechnicianID: "t4", Role: model.RoleLead},
	}, "ops")
	require.NoError(t, err)
	assert.Empty(t, got.Assignment.TeamID)
	assert.Equal(t, []string{"t3", "t4"}, got.Assignment.MemberIDs)
	assert.Equal(t, []model.TeamMember{
		{TechnicianID: "t3", Role: model.RoleMember},
		{TechnicianID: "t4", Role: model.RoleLead},
	}, got.Assignment.Crew)
	assert.Equal(t, 1, f.workload(t, "t3"))
	assert.Equal(t, 1, f.workload(t, "t4"))

	_, err = f.mgr.AssignCrew(ctx, b.ID, []model.TeamMember{{TechnicianID: "t1"}}, "ops")
	assert.ErrorIs(t, err, ErrNotAssignable)
	assert.Equal(t, 0, f.workload(t, "t1"))

	other := f.create(t)
	got, err = f.mgr.AssignCrew(ctx, other.ID, []model.TeamMember{{TechnicianID: "t1"}, {TechnicianID: "t2"}}, "ops")
	require.NoError(t, err)
	assert.Equal(t, model.RoleLead, got.Assignment.Crew[0].Role)
}

func TestAssignTeamFreezesCrew(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)
	_, err := f.mgr.AssignTeam(ctx, b.ID, "team-a", "ops")
	require.NoError(t, err)

	require.NoError(t, f.dir.PutTeam(ctx, model.Team{ID: "team-a", Members: []model.TeamMember{
		{TechnicianID: "t2", Role: model.RoleLead},
		{TechnicianID: "t1", Role: model.RoleMember},
	}}))
	got, err := f.mgr.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []model.TeamMember{
		{TechnicianID: "t1", Role: model.RoleLead},
		{TechnicianID: "t2", Role: model.RoleMember},
	}, got.Assignment.Crew)
}

func TestUnknownBooking(t *testing.T) {
	f := newFixture(t)
	_, err := f.mgr.Transition(context.Background(), "missing", model.StatusCancelled, "ops")
	assert.ErrorIs(t, err, ErrNotFound)
}
