package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/auroramart/backend-mart/internal/events"
)

// Webhook pushes domain events to one external sink over HTTP. Delivery is
// best effort: the sink owns retries and customer-facing fanout, the core
// only signs and posts.
type Webhook struct {
	URL    string
	Secret string
	Client *http.Client
	Log    zerolog.Logger
}

// HTTPClient returns a client configured for webhook delivery.
func HTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

// Notify posts the event to the configured sink.
func (wh *Webhook) Notify(ctx context.Context, event events.Event) error {
	if wh == nil || wh.URL == "" {
		return nil
	}
	if err := validateSinkURL(wh.URL); err != nil {
		return fmt.Errorf("notify: %w", err)
	}
	body, err := json.Marshal(envelope{
		ID:          event.ID,
		Topic:       event.Topic,
		AggregateID: event.AggregateID,
		Payload:     event.Payload,
		OccurredAt:  event.OccurredAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("notify: encode event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wh.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("notify: build request: %w", err)
	}
	ts := time.Now().Unix()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "mart-events/1.0")
	req.Header.Set("X-Event-ID", event.ID)
	req.Header.Set("X-Timestamp", strconv.FormatInt(ts, 10))
	req.Header.Set("X-Signature", Signature(wh.Secret, ts, event.ID, body))

	client := wh.Client
	if client == nil {
		client = HTTPClient(0)
	}
	resp, err := client.Do(req)
	if err != nil {
		wh.Log.Warn().Err(err).Str("topic", event.Topic).Msg("webhook delivery failed")
		return fmt.Errorf("notify: deliver: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		wh.Log.Warn().Int("status", resp.StatusCode).Str("topic", event.Topic).Msg("webhook sink rejected event")
		return fmt.Errorf("notify: sink returned %d", resp.StatusCode)
	}
	return nil
}

// Signature computes HMAC-SHA256 over "<ts>.<eventID>.<body>" so the sink
// can verify both origin and freshness.
func Signature(secret string, ts int64, eventID string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(strconv.FormatInt(ts, 10)))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write([]byte(eventID))
	_, _ = mac.Write([]byte("."))
	_, _ = mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func validateSinkURL(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid sink url: %w", err)
	}
	if parsed.Host == "" {
		return errors.New("sink url must include host")
	}
	switch parsed.Scheme {
	case "https":
		return nil
	case "http":
		host := parsed.Hostname()
		if host == "localhost" || host == "127.0.0.1" {
			return nil
		}
		return errors.New("http sink only allowed for localhost")
	default:
		return errors.New("sink url must be http or https")
	}
}
