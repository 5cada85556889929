package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/fieldops/app/plugins"
	"github.com/kilianp07/fieldops/config"
	"github.com/kilianp07/fieldops/core/booking"
	"github.com/kilianp07/fieldops/core/directory"
	"github.com/kilianp07/fieldops/core/dispatch"
	dispatchlog "github.com/kilianp07/fieldops/core/dispatch/logging"
	"github.com/kilianp07/fieldops/core/events"
	coremetrics "github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/pricing"
	"github.com/kilianp07/fieldops/core/revenue"
	"github.com/kilianp07/fieldops/core/settlement"
	"github.com/kilianp07/fieldops/infra/logger"
	"github.com/kilianp07/fieldops/infra/metrics"
	"github.com/kilianp07/fieldops/infra/sqlite"
	"github.com/kilianp07/fieldops/internal/eventbus"
	revenuejob "github.com/kilianp07/fieldops/jobs/revenue"
)

// Engine wires the booking, dispatch, settlement, pricing and revenue
// components on top of the configured storage backend.
type Engine struct {
	Bookings    *booking.Manager
	Directory   directory.Store
	Recommender *dispatch.Recommender
	Settlement  *settlement.Calculator
	Pricing     *pricing.Service
	Revenue     revenue.Store
	Backfill    *revenuejob.Backfiller
	DecisionLog dispatchlog.LogStore

	cfg       *config.Config
	bus       *eventbus.TypedBus[events.Event]
	registry  *prometheus.Registry
	db        *sql.DB
	log       logger.Logger
	now       func() time.Time
	stop      context.CancelFunc
	collector <-chan struct{}
}

// Option customizes an Engine.
type Option func(*Engine)

// WithLogger replaces the zerolog logger.
func WithLogger(l logger.Logger) Option { return func(e *Engine) { e.log = l } }

// WithClock replaces time.Now for every component.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

type stores struct {
	bookings  booking.Store
	directory directory.Store
	pricing   pricing.Store
	revenue   revenue.Store
}

// New builds an Engine from cfg. Close must be called to release storage
// and stop the metrics collector.
func New(cfg *config.Config, opts ...Option) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{cfg: cfg, bus: eventbus.NewTyped[events.Event](), now: func() time.Time { return time.Now().UTC() }}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logger.New("engine")
	}
	ok := false
	defer func() {
		if !ok {
			_ = e.Close()
		}
	}()

	st, err := e.openStores()
	if err != nil {
		return nil, err
	}
	e.Directory = st.directory
	e.Revenue = st.revenue

	sink, err := e.metricsSink()
	if err != nil {
		return nil, fmt.Errorf("metrics: %w", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	e.stop = cancel
	e.collector = metrics.StartEventCollector(ctx, e.bus, sink, e.log)

	if e.Bookings, err = booking.NewManager(st.bookings, st.directory, e.bus, e.log, booking.WithClock(e.now)); err != nil {
		return nil, fmt.Errorf("booking manager: %w", err)
	}
	if e.Recommender, err = dispatch.NewRecommender(cfg.Dispatch, sink, e.log); err != nil {
		return nil, fmt.Errorf("recommender: %w", err)
	}
	if e.Settlement, err = settlement.NewCalculator(cfg.Settlement); err != nil {
		return nil, fmt.Errorf("settlement: %w", err)
	}
	e.Pricing = pricing.NewService(st.pricing, e.Settlement, e.bus, e.log)
	if e.Backfill, err = revenuejob.NewBackfiller(st.revenue, cfg.Aggregation, e.bus, sink, e.log); err != nil {
		return nil, fmt.Errorf("backfiller: %w", err)
	}
	if e.DecisionLog, err = plugins.BuildLogStore(cfg.DecisionLog); err != nil {
		return nil, fmt.Errorf("decision log: %w", err)
	}
	ok = true
	return e, nil
}

func (e *Engine) openStores() (stores, error) {
	switch e.cfg.Storage.Backend {
	case config.BackendSQLite:
		db, err := sqlite.Open(e.cfg.Storage.Path)
		if err != nil {
			return stores{}, fmt.Errorf("open storage: %w", err)
		}
		e.db = db
		return stores{
			bookings:  sqlite.NewBookingStore(db),
			directory: sqlite.NewDirectoryStore(db),
			pricing:   sqlite.NewPricingStore(db),
			revenue:   sqlite.NewRevenueStore(db),
		}, nil
	case config.BackendMemory, "":
		return stores{
			bookings:  booking.NewMemoryStore(),
			directory: directory.NewMemoryStore(),
			pricing:   pricing.NewMemoryStore(),
			revenue:   revenue.NewMemoryStore(),
		}, nil
	}
	return stores{}, fmt.Errorf("unknown storage backend %s", e.cfg.Storage.Backend)
}

func (e *Engine) metricsSink() (coremetrics.Sink, error) {
	if !e.cfg.Metrics.PrometheusEnabled {
		return plugins.BuildMetrics("none", nil)
	}
	e.registry = prometheus.NewRegistry()
	return plugins.BuildMetrics("prometheus", map[string]any{"registerer": e.registry})
}

// Subscribe returns a channel receiving every engine event.
func (e *Engine) Subscribe() <-chan events.Event { return e.bus.Subscribe() }

// Recommend ranks candidates for a stored booking against the current
// directory and records the decision in the decision log.
func (e *Engine) Recommend(ctx context.Context, bookingID string) (dispatch.Recommendation, error) {
	b, err := e.Bookings.Get(ctx, bookingID)
	if err != nil {
		return dispatch.Recommendation{}, err
	}
	snap, err := directory.TakeSnapshot(ctx, e.Directory)
	if err != nil {
		return dispatch.Recommendation{}, err
	}
	req := dispatch.RequestFor(b)
	rec, err := e.Recommender.Recommend(req, snap)
	if err != nil {
		return dispatch.Recommendation{}, err
	}
	if err := e.DecisionLog.Append(ctx, dispatchlog.NewRecord(e.now().UTC(), req, rec)); err != nil {
		e.log.Warnf("decision log append for %s: %v", bookingID, err)
	}
	return rec, nil
}

// Settle computes the settlement of a completed booking, splitting the
// payout across the crew recorded at assignment time. The team is only looked
// up for bookings that carry no crew.
func (e *Engine) Settle(ctx context.Context, bookingID string) (settlement.BookingSettlement, error) {
	b, err := e.Bookings.Get(ctx, bookingID)
	if err != nil {
		return settlement.BookingSettlement{}, err
	}
	var team *model.Team
	if id := b.Assignment.TeamID; id != "" && len(b.Assignment.Crew) == 0 {
		t, err := e.Directory.Team(ctx, id)
		if err != nil {
			return settlement.BookingSettlement{}, fmt.Errorf("booking %s team: %w", b.ID, err)
		}
		team = &t
	}
	members := make([]model.Technician, 0, len(b.Assignment.MemberIDs))
	for _, id := range b.Assignment.MemberIDs {
		t, err := e.Directory.Get(ctx, id)
		if err != nil {
			return settlement.BookingSettlement{}, fmt.Errorf("booking %s member: %w", b.ID, err)
		}
		members = append(members, t)
	}
	return e.Settlement.SettleBooking(b, team, members)
}

// AssignCandidate assigns a recommended candidate to the booking. A composed
// team is dispatched as an ad-hoc crew led by its first member; it is never
// stored in the directory.
func (e *Engine) AssignCandidate(ctx context.Context, bookingID string, c dispatch.Candidate, actor string) (model.Booking, error) {
	switch {
	case c.Kind == dispatch.KindTechnician:
		return e.Bookings.AssignTechnician(ctx, bookingID, c.TechnicianID, actor)
	case c.TeamID != "":
		return e.Bookings.AssignTeam(ctx, bookingID, c.TeamID, actor)
	case len(c.MemberIDs) == 0:
		return model.Booking{}, fmt.Errorf("booking %s: candidate has no members", bookingID)
	}
	crew := make([]model.TeamMember, 0, len(c.MemberIDs))
	for i, id := range c.MemberIDs {
		role := model.RoleMember
		if i == 0 {
			role = model.RoleLead
		}
		crew = append(crew, model.TeamMember{TechnicianID: id, Role: role})
	}
	return e.Bookings.AssignCrew(ctx, bookingID, crew, actor)
}

// Seed is a bulk import of directory records, bookings and pricing.
type Seed struct {
	Technicians []model.Technician    `json:"technicians"`
	Teams       []model.Team          `json:"teams"`
	Bookings    []model.Booking       `json:"bookings"`
	Pricing     *model.ServicePricing `json:"pricing,omitempty"`
}

// ImportReport counts what Import wrote.
type ImportReport struct {
	Technicians int `json:"technicians"`
	Teams       int `json:"teams"`
	Bookings    int `json:"bookings"`
	// Existing counts bookings skipped because their id is already stored.
	Existing int                 `json:"existing"`
	Pricing  []model.PriceChange `json:"pricing,omitempty"`
}

// Import writes seed into storage. Technicians and teams are upserted,
// bookings are created as pending and existing booking ids are skipped so
// the import can be replayed.
func (e *Engine) Import(ctx context.Context, seed Seed, actor string) (ImportReport, error) {
	var rep ImportReport
	for _, t := range seed.Technicians {
		if err := e.Directory.Put(ctx, t); err != nil {
			return rep, fmt.Errorf("technician %s: %w", t.ID, err)
		}
		rep.Technicians++
	}
	for _, t := range seed.Teams {
		if err := e.Directory.PutTeam(ctx, t); err != nil {
			return rep, fmt.Errorf("team %s: %w", t.ID, err)
		}
		rep.Teams++
	}
	for _, b := range seed.Bookings {
		if _, err := e.Bookings.Create(ctx, b); err != nil {
			if errors.Is(err, booking.ErrAlreadyExists) {
				rep.Existing++
				continue
			}
			return rep, fmt.Errorf("booking %s: %w", b.ID, err)
		}
		rep.Bookings++
	}
	if seed.Pricing != nil {
		changes, err := e.Pricing.Update(ctx, *seed.Pricing, actor)
		if err != nil {
			return rep, fmt.Errorf("pricing: %w", err)
		}
		rep.Pricing = changes
	}
	e.log.Infof("import: %d technicians, %d teams, %d bookings (%d existing)", rep.Technicians, rep.Teams, rep.Bookings, rep.Existing)
	return rep, nil
}

// ServeMetrics exposes the engine metrics until ctx is canceled. It returns
// immediately when Prometheus is disabled.
func (e *Engine) ServeMetrics(ctx context.Context) error {
	if e.registry == nil {
		return nil
	}
	addr := ":" + strconv.Itoa(e.cfg.Metrics.PrometheusPort)
	return metrics.StartPromServer(ctx, addr, e.registry, e.log)
}

// Close stops the metrics collector and releases storage.
func (e *Engine) Close() error {
	if e.stop != nil {
		e.stop()
		<-e.collector
	}
	e.bus.Close()
	var errs []error
	if e.DecisionLog != nil {
		errs = append(errs, e.DecisionLog.Close())
	}
	if e.db != nil {
		errs = append(errs, e.db.Close())
	}
	return errors.Join(errs...)
}
