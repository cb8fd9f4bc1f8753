package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	cache "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Cache"
	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	reconciler "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Reconciler"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
)

// maxAttempts bounds re-reads after an optimistic lock conflict
const maxAttempts = 3

// Notifier is satisfied by notifier.Dispatcher
type Notifier interface {
	MaybeNotify(ctx context.Context, device *mqtmodels.Device, intent mqtmodels.Intent) (bool, error)
}

// FanOut is satisfied by realtime.Publisher
type FanOut interface {
	Publish(ctx context.Context, device mqtmodels.Device) []string
}

type Options struct {
	LowBatteryThreshold int
	StoreTimeout        time.Duration
	NotifyTimeout       time.Duration
	NotifyOffline       bool
}

// Engine runs one sample or one demotion through resolve, reconcile,
// persist, notify and fan-out. Callers serialize work per identifier.
type Engine struct {
	cache    *cache.DeviceCache
	devices  interfaces.DeviceRepository
	readings interfaces.ReadingRepository
	notifier Notifier
	fanout   FanOut
	clock    clock.Clock
	logger   *logger.Logger
	opts     Options
}

func New(
	deviceCache *cache.DeviceCache,
	devices interfaces.DeviceRepository,
	readings interfaces.ReadingRepository,
	notifier Notifier,
	fanout FanOut,
	clk clock.Clock,
	log *logger.Logger,
	opts Options,
) *Engine {
	if opts.StoreTimeout <= 0 {
		opts.StoreTimeout = 5 * time.Second
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = opts.StoreTimeout + 10*time.Second
	}
	return &Engine{
		cache:    deviceCache,
		devices:  devices,
		readings: readings,
		notifier: notifier,
		fanout:   fanout,
		clock:    clk,
		logger:   log.WithComponent("engine"),
		opts:     opts,
	}
}

// HandleSample applies a decoded sample to the device with identifier.
// Unknown devices yield interfaces.ErrDeviceNotFound. Once the device
// state is written the sample counts as accepted; later steps only log.
func (e *Engine) HandleSample(ctx context.Context, identifier string, sample mqtmodels.Sample) error {
	log := e.logger.WithDevice(identifier)

	var outcome reconciler.Outcome
	for attempt := 1; ; attempt++ {
		device, err := e.resolve(ctx, identifier)
		if err != nil {
			if errors.Is(err, interfaces.ErrDeviceNotFound) {
				log.Logger.Warn().Msg("Dropping sample for unknown device")
			}
			return err
		}

		outcome = reconciler.Apply(*device, sample, e.clock.Now(), e.opts.LowBatteryThreshold)

		version, err := e.persist(ctx, outcome.Device)
		if err == nil {
			outcome.Device.Version = version
			break
		}
		if !errors.Is(err, interfaces.ErrVersionConflict) {
			return fmt.Errorf("failed to persist device %s: %w", identifier, err)
		}

		e.cache.Invalidate(identifier)
		if attempt == maxAttempts {
			return fmt.Errorf("giving up on device %s after %d attempts: %w", identifier, attempt, err)
		}
		log.Logger.Debug().Int("attempt", attempt).Msg("Device changed concurrently, re-reading")
	}

	device := outcome.Device

	reading := outcome.Reading
	reading.ID = uuid.NewString()
	if err := e.withStoreTimeout(ctx, func(ctx context.Context) error {
		return e.readings.CreateReading(ctx, reading)
	}); err != nil {
		log.Logger.Error().Err(err).Msg("Failed to append reading")
	}

	for _, intent := range outcome.Intents {
		e.notify(ctx, log, &device, intent)
	}

	e.cache.Put(device)
	e.publish(ctx, device)

	log.Logger.Debug().
		Str("status", string(device.Status)).
		Int("battery_percent", device.BatteryPercent).
		Int("signal", device.SignalStrength).
		Msg("Sample processed")
	return nil
}

// Demote marks a silent device inactive. A concurrent update wins over
// the demotion, which is then skipped and reported as false.
func (e *Engine) Demote(ctx context.Context, device mqtmodels.Device) (bool, error) {
	log := e.logger.WithDevice(device.Identifier)

	next, changed := reconciler.Demote(device)
	if !changed {
		return false, nil
	}

	version, err := e.persist(ctx, next)
	if err != nil {
		if errors.Is(err, interfaces.ErrVersionConflict) {
			log.Logger.Debug().Msg("Device updated since sweep query, skipping demotion")
			return false, nil
		}
		return false, fmt.Errorf("failed to demote device %s: %w", device.Identifier, err)
	}
	next.Version = version

	if e.opts.NotifyOffline {
		e.notify(ctx, log, &next, mqtmodels.Intent{Kind: mqtmodels.AlertConnectionLost})
	}

	e.cache.Put(next)
	e.publish(ctx, next)

	log.Logger.Info().Msg("Device marked inactive")
	return true, nil
}

func (e *Engine) resolve(ctx context.Context, identifier string) (*mqtmodels.Device, error) {
	var device *mqtmodels.Device
	err := e.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		device, err = e.cache.Resolve(ctx, identifier)
		return err
	})
	return device, err
}

func (e *Engine) persist(ctx context.Context, device mqtmodels.Device) (int64, error) {
	var version int64
	err := e.withStoreTimeout(ctx, func(ctx context.Context) error {
		var err error
		version, err = e.devices.UpdateDeviceState(ctx, device)
		return err
	})
	return version, err
}

func (e *Engine) notify(ctx context.Context, log *logger.Logger, device *mqtmodels.Device, intent mqtmodels.Intent) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.NotifyTimeout)
	defer cancel()

	if _, err := e.notifier.MaybeNotify(ctx, device, intent); err != nil {
		log.Logger.Error().Err(err).Str("kind", string(intent.Kind)).Msg("Failed to dispatch alert")
	}
}

// publish bounds fan-out by the store timeout since it reads shares
func (e *Engine) publish(ctx context.Context, device mqtmodels.Device) {
	_ = e.withStoreTimeout(ctx, func(ctx context.Context) error {
		e.fanout.Publish(ctx, device)
		return nil
	})
}

func (e *Engine) withStoreTimeout(ctx context.Context, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, e.opts.StoreTimeout)
	defer cancel()
	return fn(ctx)
}
