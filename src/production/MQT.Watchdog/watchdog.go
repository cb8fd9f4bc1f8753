package watchdog

import (
	"context"
	"fmt"
	"sync"
	"time"

	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
)

const (
	DefaultPeriod              = 15 * time.Minute
	DefaultInactivityThreshold = 8 * time.Hour
)

// Demoter is satisfied by engine.Engine
type Demoter interface {
	Demote(ctx context.Context, device mqtmodels.Device) (bool, error)
}

// Watchdog periodically demotes devices that stopped reporting
type Watchdog struct {
	devices      interfaces.DeviceRepository
	demoter      Demoter
	clock        clock.Clock
	logger       *logger.Logger
	period       time.Duration
	threshold    time.Duration
	storeTimeout time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(devices interfaces.DeviceRepository, demoter Demoter, clk clock.Clock, log *logger.Logger, period, threshold, storeTimeout time.Duration) *Watchdog {
	if period <= 0 {
		period = DefaultPeriod
	}
	if threshold <= 0 {
		threshold = DefaultInactivityThreshold
	}
	if storeTimeout <= 0 {
		storeTimeout = 5 * time.Second
	}
	return &Watchdog{
		devices:      devices,
		demoter:      demoter,
		clock:        clk,
		logger:       log.WithComponent("watchdog"),
		period:       period,
		threshold:    threshold,
		storeTimeout: storeTimeout,
	}
}

// RunOnce performs a single sweep and returns how many devices were demoted.
// A failing device is logged and the sweep continues.
func (w *Watchdog) RunOnce(ctx context.Context) (int, error) {
	cutoff := w.clock.Now().Add(-w.threshold)

	queryCtx, cancel := context.WithTimeout(ctx, w.storeTimeout)
	stale, err := w.devices.ListStaleDevices(queryCtx, cutoff)
	cancel()
	if err != nil {
		return 0, fmt.Errorf("failed to list stale devices: %w", err)
	}

	demoted := 0
	for _, device := range stale {
		if ctx.Err() != nil {
			return demoted, ctx.Err()
		}
		ok, err := w.demoter.Demote(ctx, device)
		if err != nil {
			w.logger.Logger.Error().Err(err).Str("identifier", device.Identifier).Msg("Failed to demote device")
			continue
		}
		if ok {
			demoted++
		}
	}

	w.logger.Logger.Info().Int("stale", len(stale)).Int("demoted", demoted).Msg("Watchdog sweep finished")
	return demoted, nil
}

// Start launches the periodic sweep and returns immediately. The first
// sweep runs one period after Start.
func (w *Watchdog) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	ticker := w.clock.NewTicker(w.period)

	go func() {
		defer close(w.done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
					w.logger.Logger.Error().Err(err).Msg("Watchdog sweep failed")
				}
			}
		}
	}()

	w.logger.Logger.Info().Dur("period", w.period).Dur("threshold", w.threshold).Msg("Watchdog started")
}

// Stop cancels the loop and waits for an in-flight sweep to return
func (w *Watchdog) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel = nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}
