package realtime

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"tableflow/internal/logger"
)

const DefaultChannel = "tableflow:realtime"

// RedisBroadcaster publishes frames on a Redis channel so every instance's
// Relay can deliver them to its own clients.
type RedisBroadcaster struct {
	client  redis.UniversalClient
	channel string
}

func NewRedisBroadcaster(client redis.UniversalClient, channel string) *RedisBroadcaster {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBroadcaster{client: client, channel: channel}
}

func (b *RedisBroadcaster) Emit(ctx context.Context, room, event string, payload any) error {
	frame, err := NewFrame(room, event, payload)
	if err != nil {
		return err
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("failed to encode frame: %w", err)
	}
	if err := b.client.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish frame: %w", err)
	}
	return nil
}

// Relay copies frames from the Redis channel into the local hub.
type Relay struct {
	client  redis.UniversalClient
	channel string
	hub     *Hub
	logger  logger.Logger
}

func NewRelay(client redis.UniversalClient, channel string, hub *Hub, log logger.Logger) *Relay {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Relay{client: client, channel: channel, hub: hub, logger: log}
}

// Run blocks until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.channel, err)
	}
	r.logger.InfowCtx(ctx, "Realtime relay subscribed", "channel", r.channel)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			r.logger.InfowCtx(ctx, "Realtime relay stopped")
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("realtime channel %s closed", r.channel)
			}
			r.handle(ctx, msg.Payload)
		}
	}
}

func (r *Relay) handle(ctx context.Context, payload string) {
	var frame Frame
	if err := json.Unmarshal([]byte(payload), &frame); err != nil {
		r.logger.WarnwCtx(ctx, "Dropping malformed realtime frame", "error", err)
		return
	}
	r.hub.Deliver(frame)
}
