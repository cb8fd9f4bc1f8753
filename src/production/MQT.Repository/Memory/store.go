package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
)

// Store is an in-memory implementation of every repository interface.
// It keeps the same version and alert claim semantics as the Postgres
// repositories and is used for tests and local runs without a database.
type Store struct {
	mu sync.RWMutex

	devices       map[string]mqtmodels.Device            // id -> device
	byIdentifier  map[string]string                      // identifier -> id
	readings      []mqtmodels.Reading                    // append only
	shares        map[string][]mqtmodels.Share           // device id -> shares
	subscriptions map[string]mqtmodels.Subscription      // id -> subscription
	preferences   map[string]mqtmodels.ViewerPreferences // viewer id -> prefs

	lookups   map[string]int // identifier -> GetDeviceByIdentifier calls
	updateErr error
}

var (
	_ interfaces.DeviceRepository       = (*Store)(nil)
	_ interfaces.ReadingRepository      = (*Store)(nil)
	_ interfaces.ShareRepository        = (*Store)(nil)
	_ interfaces.SubscriptionRepository = (*Store)(nil)
	_ interfaces.ViewerRepository       = (*Store)(nil)
)

func NewStore() *Store {
	return &Store{
		devices:       map[string]mqtmodels.Device{},
		byIdentifier:  map[string]string{},
		shares:        map[string][]mqtmodels.Share{},
		subscriptions: map[string]mqtmodels.Subscription{},
		preferences:   map[string]mqtmodels.ViewerPreferences{},
		lookups:       map[string]int{},
	}
}

// ---- seeding and inspection ----

// PutDevice inserts or replaces a device. Missing id and version are filled in
// and an empty status becomes active so seeded devices look like they reported.
func (s *Store) PutDevice(device mqtmodels.Device) mqtmodels.Device {
	s.mu.Lock()
	defer s.mu.Unlock()

	if device.ID == "" {
		device.ID = uuid.NewString()
	}
	if device.Version == 0 {
		device.Version = 1
	}
	if device.Status == "" {
		device.Status = mqtmodels.StatusActive
	}
	s.devices[device.ID] = device.Clone()
	s.byIdentifier[device.Identifier] = device.ID
	return device.Clone()
}

// Device returns the stored device by identifier
func (s *Store) Device(identifier string) (mqtmodels.Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byIdentifier[identifier]
	if !ok {
		return mqtmodels.Device{}, false
	}
	return s.devices[id].Clone(), true
}

// BumpVersion simulates a concurrent writer touching the device
func (s *Store) BumpVersion(identifier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byIdentifier[identifier]; ok {
		d := s.devices[id]
		d.Version++
		s.devices[id] = d
	}
}

// FailUpdates makes every UpdateDeviceState return err until reset with nil
func (s *Store) FailUpdates(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateErr = err
}

// Lookups reports how many times an identifier was read from the store
func (s *Store) Lookups(identifier string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookups[identifier]
}

func (s *Store) Readings() []mqtmodels.Reading {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mqtmodels.Reading, len(s.readings))
	copy(out, s.readings)
	return out
}

func (s *Store) AddShare(share mqtmodels.Share) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shares[share.DeviceID] = append(s.shares[share.DeviceID], share)
}

func (s *Store) AddSubscription(sub mqtmodels.Subscription) mqtmodels.Subscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	s.subscriptions[sub.ID] = sub
	return sub
}

func (s *Store) Subscription(id string) (mqtmodels.Subscription, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.subscriptions[id]
	return sub, ok
}

func (s *Store) SetPreferences(prefs mqtmodels.ViewerPreferences) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[prefs.ViewerID] = prefs
}

// ---- DeviceRepository ----

func (s *Store) GetDeviceByIdentifier(_ context.Context, identifier string) (*mqtmodels.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lookups[identifier]++
	id, ok := s.byIdentifier[identifier]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrDeviceNotFound, identifier)
	}
	device := s.devices[id].Clone()
	return &device, nil
}

func (s *Store) ListStaleDevices(_ context.Context, cutoff time.Time) ([]mqtmodels.Device, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var stale []mqtmodels.Device
	for _, d := range s.devices {
		if d.LastSeenAt == nil || !d.LastSeenAt.Before(cutoff) || d.Status == mqtmodels.StatusInactive {
			continue
		}
		stale = append(stale, d.Clone())
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].LastSeenAt.Before(*stale[j].LastSeenAt) })
	return stale, nil
}

func (s *Store) UpdateDeviceState(_ context.Context, device mqtmodels.Device) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.updateErr != nil {
		return 0, s.updateErr
	}

	stored, ok := s.devices[device.ID]
	if !ok || stored.Version != device.Version {
		return 0, fmt.Errorf("%w: device %s at version %d", interfaces.ErrVersionConflict, device.ID, device.Version)
	}

	updated := device.Clone()
	stored.Status = updated.Status
	stored.BatteryVoltage = updated.BatteryVoltage
	stored.BatteryPercent = updated.BatteryPercent
	stored.SignalStrength = updated.SignalStrength
	stored.RSSI = updated.RSSI
	stored.LastSeenAt = updated.LastSeenAt
	stored.Version++
	s.devices[device.ID] = stored
	return stored.Version, nil
}

func (s *Store) ClaimAlert(_ context.Context, deviceID string, kind mqtmodels.AlertKind, now time.Time, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, ok := s.devices[deviceID]
	if !ok {
		return false, nil
	}
	switch kind {
	case mqtmodels.AlertAlarm, mqtmodels.AlertLowBattery, mqtmodels.AlertConnectionLost:
	default:
		return false, fmt.Errorf("unknown alert kind %q", kind)
	}

	if last := d.LastAlertAt(kind); last != nil && last.After(now.Add(-window)) {
		return false, nil
	}
	d.SetLastAlertAt(kind, now)
	s.devices[deviceID] = d
	return true, nil
}

// ---- ReadingRepository ----

func (s *Store) CreateReading(_ context.Context, reading mqtmodels.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, reading)
	return nil
}

func (s *Store) CreateReadings(_ context.Context, readings []mqtmodels.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, readings...)
	return nil
}

// ---- ShareRepository ----

func (s *Store) ListSharesByDevice(_ context.Context, deviceID string) ([]mqtmodels.Share, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mqtmodels.Share, len(s.shares[deviceID]))
	copy(out, s.shares[deviceID])
	return out, nil
}

// ---- SubscriptionRepository ----

func (s *Store) ListSubscriptionsByViewer(_ context.Context, viewerID string) ([]mqtmodels.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var subs []mqtmodels.Subscription
	for _, sub := range s.subscriptions {
		if sub.ViewerID == viewerID && sub.GoneAt == nil {
			subs = append(subs, sub)
		}
	}
	sort.Slice(subs, func(i, j int) bool { return subs[i].ID < subs[j].ID })
	return subs, nil
}

func (s *Store) MarkSubscriptionGone(_ context.Context, subscriptionID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subscriptions[subscriptionID]
	if !ok || sub.GoneAt != nil {
		return fmt.Errorf("subscription %s not found or already gone", subscriptionID)
	}
	sub.GoneAt = &at
	s.subscriptions[subscriptionID] = sub
	return nil
}

// ---- ViewerRepository ----

func (s *Store) GetPreferences(_ context.Context, viewerID string) (*mqtmodels.ViewerPreferences, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	prefs, ok := s.preferences[viewerID]
	if !ok {
		return nil, nil
	}
	return &prefs, nil
}
