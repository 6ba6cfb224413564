package repo

import (
	"context"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/auroramart/backend-mart/internal/events"
)

// EventRepo persists domain events; it implements events.EventStore.
type EventRepo struct {
	Pool *pgxpool.Pool
}

// InsertDomainEvent stores one event row and returns it.
func (r EventRepo) InsertDomainEvent(ctx context.Context, topic, aggregateID string, payload []byte) (events.Event, error) {
	aid, err := pgUUID(aggregateID)
	if err != nil {
		return events.Event{}, err
	}
	var (
		id         pgtype.UUID
		occurredAt pgtype.Timestamptz
	)
	err = r.Pool.QueryRow(ctx, `INSERT INTO domain_events (topic, aggregate_id, payload)
		VALUES ($1, $2, $3)
		RETURNING id, occurred_at`, topic, aid, payload).Scan(&id, &occurredAt)
	if err != nil {
		return events.Event{}, err
	}
	return events.Event{
		ID:          uuidString(id),
		Topic:       topic,
		AggregateID: aggregateID,
		Payload:     payload,
		OccurredAt:  occurredAt.Time,
	}, nil
}
