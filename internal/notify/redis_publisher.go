package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"ai_orchestrator/internal/cost"
)

// alertChannelSuffix is appended to the event channel for cost alerts
const alertChannelSuffix = ":alerts"

// RedisPublisher publishes events and cost alerts over Redis pub/sub
type RedisPublisher struct {
	client  *redis.Client
	channel string
}

// NewRedisPublisher creates a publisher on channel
func NewRedisPublisher(client *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Notify publishes the event as JSON
func (p *RedisPublisher) Notify(ctx context.Context, event Event) error {
	return p.publish(ctx, p.channel, event)
}

// SendAlert publishes a cost alert on the alert channel
func (p *RedisPublisher) SendAlert(ctx context.Context, alert cost.Alert) error {
	return p.publish(ctx, p.AlertChannel(), alert)
}

// AlertChannel is the channel cost alerts are published on
func (p *RedisPublisher) AlertChannel() string {
	return p.channel + alertChannelSuffix
}

func (p *RedisPublisher) publish(ctx context.Context, channel string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}
	if err := p.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", channel, err)
	}
	return nil
}

var _ cost.AlertSink = (*RedisPublisher)(nil)
