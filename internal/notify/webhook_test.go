package notify_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/auroramart/backend-mart/internal/events"
	"github.com/auroramart/backend-mart/internal/notify"
)

func TestWebhookSignsAndDelivers(t *testing.T) {
	type received struct {
		body      []byte
		signature string
		eventID   string
		ts        int64
	}
	got := make(chan received, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		ts, err := strconv.ParseInt(r.Header.Get("X-Timestamp"), 10, 64)
		require.NoError(t, err)
		got <- received{
			body:      body,
			signature: r.Header.Get("X-Signature"),
			eventID:   r.Header.Get("X-Event-ID"),
			ts:        ts,
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	t.Cleanup(srv.Close)

	wh := &notify.Webhook{URL: srv.URL, Secret: "hunter2", Log: zerolog.Nop()}
	event := events.Event{
		ID:          "ev-1",
		Topic:       events.TopicOrderCreated,
		AggregateID: "o-1",
		Payload:     json.RawMessage(`{"order_number":"ORD-AB12CD34"}`),
		OccurredAt:  time.Now(),
	}
	require.NoError(t, wh.Notify(context.Background(), event))

	r := <-got
	require.Equal(t, "ev-1", r.eventID)
	require.Equal(t, notify.Signature("hunter2", r.ts, "ev-1", r.body), r.signature)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(r.body, &payload))
	require.Equal(t, events.TopicOrderCreated, payload["topic"])
}

func TestWebhookRejectsNonLocalPlainHTTP(t *testing.T) {
	wh := &notify.Webhook{URL: "http://sink.example.com/events", Log: zerolog.Nop()}
	err := wh.Notify(context.Background(), events.Event{ID: "ev-1", Topic: "x"})
	require.Error(t, err)
}

func TestWebhookSurfacesSinkErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	wh := &notify.Webhook{URL: srv.URL, Log: zerolog.Nop()}
	err := wh.Notify(context.Background(), events.Event{ID: "ev-1", Topic: "x"})
	require.Error(t, err)
}

func TestWebhookWithoutURLIsNoop(t *testing.T) {
	wh := &notify.Webhook{}
	require.NoError(t, wh.Notify(context.Background(), events.Event{ID: "ev-1", Topic: "x"}))
}
