// Package events persists domain events and fans them out to notifiers.
// The event row is the source of truth; notification failures never undo
// the write.
package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Event is one persisted domain event.
type Event struct {
	ID          string
	Topic       string
	AggregateID string
	Payload     json.RawMessage
	OccurredAt  time.Time
}

// EventStore persists events. Implemented by repo.EventRepo.
type EventStore interface {
	InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (Event, error)
}

// Notifier receives every persisted event. Implementations must tolerate
// redelivery; the bus offers no ordering or exactly-once guarantee.
type Notifier interface {
	Notify(ctx context.Context, event Event) error
}

// Bus writes events through the store and then notifies each notifier.
type Bus struct {
	Store     EventStore
	Notifiers []Notifier
}

// Emit persists one event and fans it out. payload may be nil, a
// json.RawMessage, or any JSON-marshalable value. The persisted event is
// returned even when a notifier fails; the joined notifier errors ride
// along so callers can log them.
func (b Bus) Emit(ctx context.Context, topic, aggregateID string, payload any) (Event, error) {
	if b.Store == nil {
		return Event{}, errors.New("events: store not configured")
	}
	if topic == "" {
		return Event{}, errors.New("events: topic is required")
	}
	if aggregateID == "" {
		return Event{}, errors.New("events: aggregate id is required")
	}
	body, err := encodePayload(payload)
	if err != nil {
		return Event{}, err
	}

	event, err := b.Store.InsertDomainEvent(ctx, topic, aggregateID, body)
	if err != nil {
		return Event{}, fmt.Errorf("events: persist %s: %w", topic, err)
	}

	var notifyErrs error
	for _, n := range b.Notifiers {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, event); err != nil {
			notifyErrs = errors.Join(notifyErrs, err)
		}
	}
	return event, notifyErrs
}

func encodePayload(payload any) ([]byte, error) {
	switch v := payload.(type) {
	case nil:
		return []byte("{}"), nil
	case json.RawMessage:
		return validateJSON([]byte(v))
	case []byte:
		return validateJSON(v)
	default:
		body, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("events: encode payload: %w", err)
		}
		return body, nil
	}
}

func validateJSON(body []byte) ([]byte, error) {
	if len(body) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(body) {
		return nil, errors.New("events: payload is not valid JSON")
	}
	return body, nil
}
