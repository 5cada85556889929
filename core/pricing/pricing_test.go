package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/fieldops/core/events"
	"github.com/kilianp07/fieldops/core/model"
	"github.com/kilianp07/fieldops/core/settlement"
)

type busSpy struct{ got []events.Event }

func (b *busSpy) Publish(e events.Event) { b.got = append(b.got, e) }

type brokenStore struct{}

func (brokenStore) Get(context.Context) (model.ServicePricing, error) {
	return model.ServicePricing{}, errors.New("disk on fire")
}
func (brokenStore) Save(context.Context, model.ServicePricing) error { return nil }

func newService(t *testing.T, store Store) (*Service, *busSpy) {
	t.Helper()
	calc, err := settlement.NewCalculator(settlement.Config{})
	require.NoError(t, err)
	bus := &busSpy{}
	return NewService(store, calc, bus, nil), bus
}

func TestCurrentFallsBackToDefault(t *testing.T) {
	svc, _ := newService(t, NewMemoryStore())
	p, err := svc.Current(context.Background())
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPricing().Prices, p.Prices)

	svc, _ = newService(t, brokenStore{})
	_, err = svc.Current(context.Background())
	assert.Error(t, err)
}

func TestUpdatePublishesChanges(t *testing.T) {
	store := NewMemoryStore()
	svc, bus := newService(t, store)
	ctx := context.Background()

	next := model.DefaultPricing()
	next.Prices[model.ServiceInstallation] = 600

	preview, err := svc.Preview(ctx, next)
	require.NoError(t, err)
	require.Len(t, preview, 1)
	assert.Empty(t, bus.got, "preview must not publish")

	changes, err := svc.Update(ctx, next, "admin")
	require.NoError(t, err)
	assert.Equal(t, preview, changes)
	require.Len(t, bus.got, 1)
	ev, ok := bus.got[0].(events.PricingChanged)
	require.True(t, ok)
	assert.Equal(t, "admin", ev.UpdatedBy)
	assert.Equal(t, 90.0, ev.Changes[0].TechnicianImpact)

	stored, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, 600.0, stored.Prices[model.ServiceInstallation])
	assert.Equal(t, "admin", stored.UpdatedBy)
	assert.False(t, stored.UpdatedAt.IsZero())

	_, err = svc.Update(ctx, stored, "admin")
	require.NoError(t, err)
	assert.Len(t, bus.got, 1, "no-op update publishes nothing")
}

func TestUpdateRejectsPartialPricing(t *testing.T) {
	svc, bus := newService(t, NewMemoryStore())
	partial := model.ServicePricing{Prices: map[model.ServiceType]float64{model.ServiceRepair: 10}}
	_, err := svc.Update(context.Background(), partial, "admin")
	assert.Error(t, err)
	assert.Empty(t, bus.got)
}
