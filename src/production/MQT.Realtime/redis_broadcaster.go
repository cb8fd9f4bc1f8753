package realtime

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// RedisBroadcaster publishes events on Redis pub/sub channels; the
// websocket edge subscribes to private-viewer-* and forwards them.
type RedisBroadcaster struct {
	client *redis.Client
}

func NewRedisBroadcaster(client *redis.Client) *RedisBroadcaster {
	return &RedisBroadcaster{client: client}
}

func (b *RedisBroadcaster) Broadcast(ctx context.Context, channel string, payload []byte) error {
	return b.client.Publish(ctx, channel, payload).Err()
}
