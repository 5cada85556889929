package revenue

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/metrics"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/revenue"
)

type sinkSpy struct {
	metrics.NopSink
	mu      sync.Mutex
	batches []metrics.BackfillBatch
	skips   []map[string]int
}

func (s *sinkSpy) RecordBackfillBatch(b metrics.BackfillBatch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
	return nil
}

func (s *sinkSpy) RecordAggregationSkips(m map[string]int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.skips = append(s.skips, m)
	return nil
}

type countingBus struct{ n int }

func (b *countingBus) Publish(e events.Event) {
	if _, ok := e.(events.AggregateFinalized); ok {
		b.n++
	}
}

// dailyOrders returns one paid order per day starting 2023-01-01.
func dailyOrders(days int) []model.Order {
	start := time.Date(2023, 1, 1, 10, 0, 0, 0, time.UTC)
	out := make([]model.Order, days)
	for i := range out {
		out[i] = model.Order{
			ID:            fmt.Sprintf("o%d", i),
			PaymentStatus: model.PaymentPaid,
			CreatedAt:     model.NewTimestamp(start.AddDate(0, 0, i)),
			Total:         10,
			Items:         []model.OrderItem{{ProductID: "p", Name: "Part", Quantity: 1, Price: 10}},
		}
	}
	return out
}

func TestRun_BatchesAndIdempotence(t *testing.T) {
	ctx := context.Background()
	store := revenue.NewMemoryStore()
	sink := &sinkSpy{}
	bus := &countingBus{}
	bf, err := NewBackfiller(store, Config{}, bus, sink, nil)
	require.NoError(t, err)

	orders := append(dailyOrders(401), model.Order{ID: "bad", PaymentStatus: model.PaymentFailed})
	rep, err := bf.Run(ctx, orders)
	require.NoError(t, err)
	assert.Equal(t, 401, rep.Days)
	assert.Equal(t, 2, rep.Batches)
	assert.Equal(t, 1, rep.Skips.Unpaid)
	require.Len(t, sink.batches, 2)
	assert.Equal(t, 400, sink.batches[0].Writes)
	assert.Equal(t, 1, sink.batches[1].Writes)
	assert.Equal(t, []map[string]int{{revenue.SkipUnpaid: 1}}, sink.skips)
	assert.Equal(t, 401, bus.n)

	first, err := store.Aggregates(ctx, "", "")
	require.NoError(t, err)
	_, err = bf.Run(ctx, orders)
	require.NoError(t, err)
	second, err := store.Aggregates(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, first, second)

	top, err := store.TopProducts(ctx)
	require.NoError(t, err)
	require.Len(t, top.Products, 1)
	assert.Equal(t, 401, top.Products[0].Units)
}

func TestMerge_DisjointBatchesMatchRebuild(t *testing.T) {
	ctx := context.Background()
	orders := dailyOrders(5)
	// a second order on day 2 lands in a later batch
	extra := orders[2]
	extra.ID = "late"
	extra.Total = 25
	orders = append(orders, extra)

	full := revenue.NewMemoryStore()
	bf, err := NewBackfiller(full, Config{BatchSize: 2}, nil, nil, nil)
	require.NoError(t, err)
	_, err = bf.Run(ctx, orders)
	require.NoError(t, err)

	inc := revenue.NewMemoryStore()
	bf, err = NewBackfiller(inc, Config{BatchSize: 2}, nil, nil, nil)
	require.NoError(t, err)
	for _, part := range [][]model.Order{orders[:3], orders[3:5], orders[5:]} {
		rep, err := bf.Merge(ctx, part)
		require.NoError(t, err)
		assert.Equal(t, ModeMerge, rep.Mode)
	}

	want, err := full.Aggregates(ctx, "", "")
	require.NoError(t, err)
	got, err := inc.Aggregates(ctx, "", "")
	require.NoError(t, err)
	assert.Equal(t, want, got)

	day, err := inc.Aggregates(ctx, "2023-01-03", "2023-01-03")
	require.NoError(t, err)
	require.Len(t, day, 1)
	assert.Equal(t, 35.0, day[0].Revenue)
	assert.Equal(t, 2, day[0].Orders)
}

type cancellingStore struct {
	*revenue.MemoryStore
	cancel context.CancelFunc
	writes int
}

func (s *cancellingStore) UpsertDays(ctx context.Context, days []revenue.Day) error {
	s.writes++
	s.cancel()
	return s.MemoryStore.UpsertDays(ctx, days)
}

func TestRun_StopsBetweenBatchesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store := &cancellingStore{MemoryStore: revenue.NewMemoryStore(), cancel: cancel}
	bf, err := NewBackfiller(store, Config{BatchSize: 3}, nil, nil, nil)
	require.NoError(t, err)

	rep, err := bf.Run(ctx, dailyOrders(10))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.writes)
	assert.Equal(t, 3, rep.Days)

	aggs, err := store.Aggregates(context.Background(), "", "")
	require.NoError(t, err)
	for _, a := range aggs {
		assert.Equal(t, 10.0, a.Revenue, "written days carry full values")
	}
}

func TestConfig(t *testing.T) {
	c := Config{BatchSize: 1000}
	c.SetDefaults()
	assert.Equal(t, MaxBatchSize, c.BatchSize)
	assert.Equal(t, DefaultTopN, c.Top())
	require.NoError(t, c.Validate())

	zero := 0
	kept := Config{TopN: &zero}
	kept.SetDefaults()
	assert.Equal(t, 0, kept.Top(), "explicit zero means no limit")
	assert.Equal(t, DefaultAllTimeLimit, kept.AllTime())

	negative := -1
	_, err := NewBackfiller(revenue.NewMemoryStore(), Config{TopN: &negative}, nil, nil, nil)
	assert.Error(t, err)
	_, err = NewBackfiller(nil, Config{}, nil, nil, nil)
	assert.Error(t, err)
}
