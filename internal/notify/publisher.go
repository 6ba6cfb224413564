// Package notify fans domain events out to Redis Pub/Sub. Actual customer
// communication (email, push) is owned by downstream consumers; this service
// only publishes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/auroramart/backend-mart/internal/events"
)

// Publisher implements events.Notifier over Redis Pub/Sub.
type Publisher struct {
	R       *redis.Client
	Channel string
	Log     zerolog.Logger
}

type envelope struct {
	ID          string          `json:"id"`
	Topic       string          `json:"topic"`
	AggregateID string          `json:"aggregate_id"`
	Payload     json.RawMessage `json:"payload"`
	OccurredAt  string          `json:"occurred_at"`
}

// Notify publishes the event to the configured channel.
func (p *Publisher) Notify(ctx context.Context, event events.Event) error {
	if p == nil || p.R == nil {
		return nil
	}
	channel := p.Channel
	if channel == "" {
		channel = "mart.events"
	}
	body, err := json.Marshal(envelope{
		ID:          event.ID,
		Topic:       event.Topic,
		AggregateID: event.AggregateID,
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	})
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	if err := p.R.Publish(ctx, channel, body).Err(); err != nil {
		p.Log.Warn().Err(err).Str("topic", event.Topic).Msg("event publish failed")
		return fmt.Errorf("notify: publish: %w", err)
	}
	return nil
}
