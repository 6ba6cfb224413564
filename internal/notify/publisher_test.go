package notify_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/auroramart/backend-mart/internal/events"
	"github.com/auroramart/backend-mart/internal/notify"
)

func TestNotifyPublishes(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	sub := client.Subscribe(context.Background(), "mart.events")
	t.Cleanup(func() { _ = sub.Close() })
	_, err = sub.Receive(context.Background())
	require.NoError(t, err)

	pub := &notify.Publisher{R: client, Log: zerolog.Nop()}
	event := events.Event{
		ID:          "ev-1",
		Topic:       events.TopicRewardGranted,
		AggregateID: "user-1",
		Payload:     json.RawMessage(`{"voucher_code":"REWARD-1-DEADBEEF"}`),
		OccurredAt:  time.Now(),
	}
	require.NoError(t, pub.Notify(context.Background(), event))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
	require.Equal(t, "ev-1", got["id"])
	require.Equal(t, events.TopicRewardGranted, got["topic"])
}

func TestNotifyNilClientIsNoop(t *testing.T) {
	var pub *notify.Publisher
	require.NoError(t, pub.Notify(context.Background(), events.Event{Topic: "x"}))
}
