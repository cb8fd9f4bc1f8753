package watchdog

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	cache "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Cache"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	engine "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Engine"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	memory "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Memory"
)

type noopNotifier struct {
	mu    sync.Mutex
	kinds []mqtmodels.AlertKind
}

func (n *noopNotifier) MaybeNotify(_ context.Context, _ *mqtmodels.Device, intent mqtmodels.Intent) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.kinds = append(n.kinds, intent.Kind)
	return true, nil
}

type noopFanOut struct{}

func (noopFanOut) Publish(context.Context, mqtmodels.Device) []string { return nil }

func newWatchdog(t *testing.T) (*Watchdog, *memory.Store, *clock.FakeClock, *noopNotifier) {
	t.Helper()
	store := memory.NewStore()
	clk := clock.NewFake(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	n := &noopNotifier{}
	eng := engine.New(cache.NewDeviceCache(store, clk, time.Minute), store, store, n, noopFanOut{}, clk, logger.NewNop(),
		engine.Options{LowBatteryThreshold: 20, NotifyOffline: true})
	return New(store, eng, clk, logger.NewNop(), 15*time.Minute, 8*time.Hour, time.Second), store, clk, n
}

func TestRunOnce_DemotesOnlyStaleDevices(t *testing.T) {
	w, store, clk, n := newWatchdog(t)
	nineHours := clk.Now().Add(-9 * time.Hour)
	oneHour := clk.Now().Add(-time.Hour)
	store.PutDevice(mqtmodels.Device{Identifier: "stale", Status: mqtmodels.StatusActive, LastSeenAt: &nineHours})
	store.PutDevice(mqtmodels.Device{Identifier: "fresh", Status: mqtmodels.StatusActive, LastSeenAt: &oneHour})

	demoted, err := w.RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, demoted)
	stale, _ := store.Device("stale")
	fresh, _ := store.Device("fresh")
	assert.Equal(t, mqtmodels.StatusInactive, stale.Status)
	assert.Equal(t, mqtmodels.StatusActive, fresh.Status)
	assert.Equal(t, []mqtmodels.AlertKind{mqtmodels.AlertConnectionLost}, n.kinds)
	assert.Empty(t, store.Readings())
}

func TestRunOnce_IsIdempotent(t *testing.T) {
	w, store, clk, n := newWatchdog(t)
	old := clk.Now().Add(-10 * time.Hour)
	store.PutDevice(mqtmodels.Device{Identifier: "stale", Status: mqtmodels.StatusTriggered, LastSeenAt: &old})

	first, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	second, err := w.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, first)
	assert.Equal(t, 0, second)
	assert.Len(t, n.kinds, 1)
}

type failingDemoter struct{ calls int }

func (f *failingDemoter) Demote(context.Context, mqtmodels.Device) (bool, error) {
	f.calls++
	return false, errors.New("timeout")
}

func TestRunOnce_ContinuesPastFailures(t *testing.T) {
	store := memory.NewStore()
	clk := clock.NewFake(time.Date(2025, 8, 1, 12, 0, 0, 0, time.UTC))
	old := clk.Now().Add(-9 * time.Hour)
	store.PutDevice(mqtmodels.Device{Identifier: "a", LastSeenAt: &old})
	store.PutDevice(mqtmodels.Device{Identifier: "b", LastSeenAt: &old})
	d := &failingDemoter{}

	demoted, err := New(store, d, clk, logger.NewNop(), 0, 0, 0).RunOnce(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 0, demoted)
	assert.Equal(t, 2, d.calls)
}

func TestStartStop_SweepsOnTick(t *testing.T) {
	w, store, clk, _ := newWatchdog(t)
	old := clk.Now().Add(-9 * time.Hour)
	store.PutDevice(mqtmodels.Device{Identifier: "stale", LastSeenAt: &old})

	w.Start(context.Background())
	clk.Advance(15 * time.Minute)

	assert.Eventually(t, func() bool {
		d, _ := store.Device("stale")
		return d.Status == mqtmodels.StatusInactive
	}, 2*time.Second, 10*time.Millisecond)

	w.Stop()
	w.Stop()
}
