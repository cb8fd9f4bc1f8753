package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
	memory "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Memory"
)

func newTestCache(t *testing.T) (*DeviceCache, *memory.Store, *clock.FakeClock) {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFake(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	return NewDeviceCache(store, clk, 5*time.Minute), store, clk
}

func TestResolve_HitsStoreOncePerTTL(t *testing.T) {
	c, store, clk := newTestCache(t)
	store.PutDevice(mqtmodels.Device{Identifier: "abc", Name: "Shed"})
	ctx := context.Background()

	_, err := c.Resolve(ctx, "abc")
	require.NoError(t, err)
	clk.Advance(4 * time.Minute)
	d, err := c.Resolve(ctx, "abc")
	require.NoError(t, err)

	assert.Equal(t, "Shed", d.Name)
	assert.Equal(t, 1, store.Lookups("abc"))

	clk.Advance(2 * time.Minute)
	_, err = c.Resolve(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, store.Lookups("abc"))
}

func TestResolve_NotFoundIsNotCached(t *testing.T) {
	c, store, _ := newTestCache(t)
	ctx := context.Background()

	_, err := c.Resolve(ctx, "missing")
	assert.True(t, errors.Is(err, interfaces.ErrDeviceNotFound))
	_, err = c.Resolve(ctx, "missing")
	assert.True(t, errors.Is(err, interfaces.ErrDeviceNotFound))

	assert.Equal(t, 2, store.Lookups("missing"))
	assert.Equal(t, 0, c.Len())
}

func TestPut_RefreshesEntryTimestamp(t *testing.T) {
	c, store, clk := newTestCache(t)
	d := store.PutDevice(mqtmodels.Device{Identifier: "abc"})
	ctx := context.Background()

	_, err := c.Resolve(ctx, "abc")
	require.NoError(t, err)

	clk.Advance(4 * time.Minute)
	d.Status = mqtmodels.StatusTriggered
	c.Put(d)

	clk.Advance(4 * time.Minute)
	got, err := c.Resolve(ctx, "abc")
	require.NoError(t, err)

	assert.Equal(t, mqtmodels.StatusTriggered, got.Status)
	assert.Equal(t, 1, store.Lookups("abc"))
}

func TestInvalidate_ForcesReload(t *testing.T) {
	c, store, _ := newTestCache(t)
	store.PutDevice(mqtmodels.Device{Identifier: "abc"})
	ctx := context.Background()

	_, _ = c.Resolve(ctx, "abc")
	c.Invalidate("abc")
	_, _ = c.Resolve(ctx, "abc")

	assert.Equal(t, 2, store.Lookups("abc"))
}

func TestResolve_ReturnsIndependentCopies(t *testing.T) {
	c, store, _ := newTestCache(t)
	mv := 4000
	store.PutDevice(mqtmodels.Device{Identifier: "abc", BatteryVoltage: &mv})
	ctx := context.Background()

	first, _ := c.Resolve(ctx, "abc")
	*first.BatteryVoltage = 1
	first.Name = "mutated"

	second, _ := c.Resolve(ctx, "abc")
	assert.Equal(t, 4000, *second.BatteryVoltage)
	assert.Empty(t, second.Name)
}
