package cache

import (
	"context"
	"sync"
	"time"

	clock "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Clock"
	mqtmodels "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Models"
	interfaces "gitlab.com/maplesense1/mpt.sensor_watch/src/production/MQT.Repository/Interfaces"
)

// DefaultTTL is how long a resolved device is served without a store read
const DefaultTTL = 5 * time.Minute

type entry struct {
	device   mqtmodels.Device
	cachedAt time.Time
}

// DeviceCache maps identifiers to device snapshots. Expired entries are
// replaced on the next Resolve, nothing is evicted proactively.
type DeviceCache struct {
	mu      sync.RWMutex
	entries map[string]entry
	devices interfaces.DeviceRepository
	clock   clock.Clock
	ttl     time.Duration
}

func NewDeviceCache(devices interfaces.DeviceRepository, clk clock.Clock, ttl time.Duration) *DeviceCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &DeviceCache{
		entries: make(map[string]entry),
		devices: devices,
		clock:   clk,
		ttl:     ttl,
	}
}

// Resolve returns a copy of the device for identifier, reading the store
// only on a miss or an expired entry. Lookup failures, not-found included,
// are returned as is and never cached.
func (c *DeviceCache) Resolve(ctx context.Context, identifier string) (*mqtmodels.Device, error) {
	now := c.clock.Now()

	c.mu.RLock()
	e, ok := c.entries[identifier]
	c.mu.RUnlock()
	if ok && now.Sub(e.cachedAt) <= c.ttl {
		d := e.device.Clone()
		return &d, nil
	}

	device, err := c.devices.GetDeviceByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}

	c.Put(*device)
	d := device.Clone()
	return &d, nil
}

// Put stores the snapshot written to the store and restarts its TTL
func (c *DeviceCache) Put(device mqtmodels.Device) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[device.Identifier] = entry{device: device.Clone(), cachedAt: c.clock.Now()}
}

// Invalidate drops the entry so the next Resolve reads the store
func (c *DeviceCache) Invalidate(identifier string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, identifier)
}

func (c *DeviceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
