// Package revenue runs the aggregation backfill: it rebuilds daily aggregates
// from order snapshots and writes them to the aggregate store in bounded
// batches.
package revenue

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/logger"
	"github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/revenue"
)

// Backfill modes.
const (
	ModeRebuild = "rebuild"
	ModeMerge   = "merge"
)

// Report summarizes a run.
type Report struct {
	Mode    string             `json:"mode"`
	Days    int                `json:"days"`
	Batches int                `json:"batches"`
	Skips   revenue.SkipReport `json:"skips"`
}

// Backfiller writes aggregates computed from orders.
type Backfiller struct {
	store   revenue.Store
	cfg     Config
	bus     events.Publisher
	metrics metrics.Sink
	log     logger.Logger
	now     func() time.Time
}

// NewBackfiller validates cfg and returns a backfiller. bus, sink and log may be nil.
func NewBackfiller(store revenue.Store, cfg Config, bus events.Publisher, sink metrics.Sink, log logger.Logger) (*Backfiller, error) {
	if store == nil {
		return nil, fmt.Errorf("revenue backfill: nil store")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Backfiller{
		store:   store,
		cfg:     cfg,
		bus:     events.OrNop(bus),
		metrics: metrics.OrNop(sink),
		log:     logger.OrNop(log),
		now:     func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run rebuilds every date present in orders from scratch and refreshes the
// all-time ranking. orders must be the complete history of those dates;
// re-running with the same input leaves the store unchanged.
func (b *Backfiller) Run(ctx context.Context, orders []model.Order) (Report, error) {
	buckets, skips := revenue.AggregateDailyOrders(orders)
	rep := Report{Mode: ModeRebuild, Skips: skips}
	b.reportSkips(rep.Mode, skips)

	if err := b.write(ctx, buckets, &rep); err != nil {
		return rep, err
	}
	top := model.AllTimeTopProducts{
		Products:  revenue.ComputeTopProductsAllTime(orders, b.cfg.AllTime()),
		UpdatedAt: b.now(),
	}
	if err := b.store.PutTopProducts(ctx, top); err != nil {
		return rep, fmt.Errorf("store all-time top products: %w", err)
	}
	b.log.Infof("revenue rebuild done: %d days in %d batches", rep.Days, rep.Batches)
	return rep, nil
}

// Merge folds a batch of new orders into the stored buckets of the dates it
// touches. The batch must not overlap with orders already merged; the
// all-time ranking is left to Run.
func (b *Backfiller) Merge(ctx context.Context, orders []model.Order) (Report, error) {
	fresh, skips := revenue.AggregateDailyOrders(orders)
	rep := Report{Mode: ModeMerge, Skips: skips}
	b.reportSkips(rep.Mode, skips)

	dates := sortedDates(fresh)
	stored, err := b.store.Buckets(ctx, dates)
	if err != nil {
		return rep, fmt.Errorf("load stored buckets: %w", err)
	}
	merged := revenue.UpsertDailyMap(stored, fresh)
	if err := b.write(ctx, merged, &rep); err != nil {
		return rep, err
	}
	b.log.Infof("revenue merge done: %d days in %d batches", rep.Days, rep.Batches)
	return rep, nil
}

// write stores full per-day values in batches, checking ctx between them so
// a cancelled run never leaves a half-written batch behind.
func (b *Backfiller) write(ctx context.Context, buckets revenue.Buckets, rep *Report) error {
	dates := sortedDates(buckets)
	for start := 0; start < len(dates); start += b.cfg.BatchSize {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("revenue %s interrupted after %d days: %w", rep.Mode, rep.Days, err)
		}
		end := start + b.cfg.BatchSize
		if end > len(dates) {
			end = len(dates)
		}
		days := make([]revenue.Day, 0, end-start)
		for _, date := range dates[start:end] {
			bucket := buckets[date]
			days = append(days, revenue.Day{Bucket: bucket, Aggregate: revenue.Finalize(bucket, b.cfg.Top())})
		}
		if err := b.store.UpsertDays(ctx, days); err != nil {
			return fmt.Errorf("write batch %d: %w", rep.Batches+1, err)
		}
		rep.Batches++
		rep.Days += len(days)
		if err := b.metrics.RecordBackfillBatch(metrics.BackfillBatch{Mode: rep.Mode, Writes: len(days)}); err != nil {
			b.log.Warnf("record backfill batch: %v", err)
		}
		b.log.Debugw("revenue batch written", map[string]any{
			"mode":  rep.Mode,
			"batch": rep.Batches,
			"days":  len(days),
			"first": days[0].Aggregate.Date,
			"last":  days[len(days)-1].Aggregate.Date,
		})
		at := b.now()
		for _, d := range days {
			b.bus.Publish(events.AggregateFinalized{Meta: events.NewMeta(at), Aggregate: d.Aggregate})
		}
	}
	return nil
}

func (b *Backfiller) reportSkips(mode string, skips revenue.SkipReport) {
	reasons := skips.ByReason()
	if len(reasons) == 0 {
		return
	}
	b.log.Warnf("revenue %s skipped %d orders: %v", mode, skips.Total(), reasons)
	if err := b.metrics.RecordAggregationSkips(reasons); err != nil {
		b.log.Warnf("record aggregation skips: %v", err)
	}
}

func sortedDates(b revenue.Buckets) []string {
	dates := make([]string, 0, len(b))
	for d := range b {
		dates = append(dates, d)
	}
	sort.Strings(dates)
	return dates
}
