package notifier

import (
	"context"
	"errors"
	"fmt"
	"time"

	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	logger "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Logger"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
	"golang.org/x/sync/errgroup"
)

const maxParallelSends = 8

// Dispatcher decides whether an alert intent is delivered and fans it out
// over every channel of every recipient.
type Dispatcher struct {
	devices       interfaces.DeviceRepository
	shares        interfaces.ShareRepository
	subscriptions interfaces.SubscriptionRepository
	viewers       interfaces.ViewerRepository
	channels      []Channel
	defaults      Windows
	sendTimeout   time.Duration
	clock         clock.Clock
	logger        *logger.Logger
}

type DispatcherDeps struct {
	Devices       interfaces.DeviceRepository
	Shares        interfaces.ShareRepository
	Subscriptions interfaces.SubscriptionRepository
	Viewers       interfaces.ViewerRepository
	Channels      []Channel
	Defaults      Windows
	SendTimeout   time.Duration
	Clock         clock.Clock
	Logger        *logger.Logger
}

func NewDispatcher(deps DispatcherDeps) *Dispatcher {
	if deps.SendTimeout <= 0 {
		deps.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		devices:       deps.Devices,
		shares:        deps.Shares,
		subscriptions: deps.Subscriptions,
		viewers:       deps.Viewers,
		channels:      deps.Channels,
		defaults:      deps.Defaults,
		sendTimeout:   deps.SendTimeout,
		clock:         deps.Clock,
		logger:        deps.Logger.WithComponent("dispatcher"),
	}
}

// MaybeNotify delivers intent unless the device is unowned or still inside
// the kind's throttle window. The window is claimed in the store before any
// channel is tried, so a failing channel never causes a retry storm. On
// success the device's last alert timestamp is updated in place. The
// returned bool reports whether the alert went out.
func (d *Dispatcher) MaybeNotify(ctx context.Context, device *mqtmodels.Device, intent mqtmodels.Intent) (bool, error) {
	log := d.logger.WithDevice(device.Identifier).WithField("kind", string(intent.Kind))

	if device.OwnerID == nil {
		log.Logger.Debug().Msg("Device has no owner, alert suppressed")
		return false, nil
	}

	window := d.windowFor(ctx, *device.OwnerID, intent.Kind)
	now := d.clock.Now()

	if last := device.LastAlertAt(intent.Kind); last != nil && now.Sub(*last) < window {
		log.Logger.Debug().Time("last_alert_at", *last).Dur("window", window).Msg("Alert throttled")
		return false, nil
	}

	claimed, err := d.devices.ClaimAlert(ctx, device.ID, intent.Kind, now, window)
	if err != nil {
		return false, fmt.Errorf("failed to claim %s alert for %s: %w", intent.Kind, device.Identifier, err)
	}
	if !claimed {
		log.Logger.Debug().Msg("Alert window already claimed")
		return false, nil
	}
	device.SetLastAlertAt(intent.Kind, now)

	recipients, err := interfaces.ViewersForDevice(ctx, d.shares, *device)
	if err != nil {
		// the owner is still known, deliver to whoever resolved
		log.Logger.Error().Err(err).Msg("Failed to resolve share grantees")
	}

	msg := ComposeMessage(*device, intent.Kind)
	sent := d.deliver(ctx, log, recipients, msg)

	log.Logger.Info().Int("recipients", len(recipients)).Int("delivered", sent).Msg("Alert dispatched")
	return true, nil
}

func (d *Dispatcher) windowFor(ctx context.Context, ownerID string, kind mqtmodels.AlertKind) time.Duration {
	prefs, err := d.viewers.GetPreferences(ctx, ownerID)
	if err != nil {
		d.logger.Logger.Warn().Err(err).Str("viewer_id", ownerID).Msg("Failed to load viewer preferences, using defaults")
		return d.defaults.For(kind)
	}
	return d.defaults.WithPreferences(prefs).For(kind)
}

// deliver sends msg over every subscription of every recipient. Each send
// is independent; failures are logged and never abort the others.
func (d *Dispatcher) deliver(ctx context.Context, log *logger.Logger, recipients []string, msg Message) int {
	type delivery struct {
		sub     mqtmodels.Subscription
		channel Channel
	}

	var deliveries []delivery
	for _, viewerID := range recipients {
		subs, err := d.subscriptions.ListSubscriptionsByViewer(ctx, viewerID)
		if err != nil {
			log.Logger.Error().Err(err).Str("viewer_id", viewerID).Msg("Failed to list subscriptions")
			continue
		}
		for _, sub := range subs {
			ch := d.channelFor(sub)
			if ch == nil {
				log.Logger.Debug().Str("subscription_id", sub.ID).Msg("No channel configured for subscription")
				continue
			}
			deliveries = append(deliveries, delivery{sub: sub, channel: ch})
		}
	}

	results := make([]bool, len(deliveries))
	var g errgroup.Group
	g.SetLimit(maxParallelSends)
	for i, dl := range deliveries {
		g.Go(func() error {
			sendCtx, cancel := context.WithTimeout(ctx, d.sendTimeout)
			defer cancel()

			err := dl.channel.Send(sendCtx, dl.sub, msg)
			if err == nil {
				results[i] = true
				return nil
			}

			log.Logger.Error().Err(err).
				Str("channel", dl.channel.Name()).
				Str("subscription_id", dl.sub.ID).
				Str("viewer_id", dl.sub.ViewerID).
				Msg("Failed to deliver alert")

			if errors.Is(err, ErrSubscriptionGone) {
				d.markGone(ctx, log, dl.sub)
			}
			return nil
		})
	}
	_ = g.Wait()

	sent := 0
	for _, ok := range results {
		if ok {
			sent++
		}
	}
	return sent
}

func (d *Dispatcher) channelFor(sub mqtmodels.Subscription) Channel {
	for _, ch := range d.channels {
		if ch.Supports(sub) {
			return ch
		}
	}
	return nil
}

func (d *Dispatcher) markGone(ctx context.Context, log *logger.Logger, sub mqtmodels.Subscription) {
	if err := d.subscriptions.MarkSubscriptionGone(ctx, sub.ID, d.clock.Now()); err != nil {
		log.Logger.Warn().Err(err).Str("subscription_id", sub.ID).Msg("Failed to flag gone subscription")
		return
	}
	log.Logger.Info().Str("subscription_id", sub.ID).Msg("Flagged gone subscription")
}
