package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultDBTimeout    = 500 * time.Millisecond
	defaultRedisTimeout = 300 * time.Millisecond
)

// Checker represents dependencies that can be probed for readiness.
type Checker interface {
	PingDB(ctx context.Context, timeout time.Duration) error
	PingRedis(ctx context.Context, timeout time.Duration) error
}

// Handler exposes HTTP handlers for health endpoints.
type Handler struct {
	Checker      Checker
	DBTimeout    time.Duration
	RedisTimeout time.Duration
}

// Live reports liveness status.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

var ready atomic.Bool

func init() {
	ready.Store(true)
}

// SetReady flips the readiness gate. Shutdown flips it off before draining
// so load balancers stop routing new traffic.
func SetReady(v bool) {
	ready.Store(v)
}

// Ready probes the database and Redis in parallel and reports per-dependency
// status. Any failing probe turns the whole response into a 503.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	if !ready.Load() {
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	if h.Checker == nil {
		http.Error(w, "dependencies unavailable", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	probes := map[string]func() error{
		"db":    func() error { return h.Checker.PingDB(ctx, orDefault(h.DBTimeout, defaultDBTimeout)) },
		"redis": func() error { return h.Checker.PingRedis(ctx, orDefault(h.RedisTimeout, defaultRedisTimeout)) },
	}

	var mu sync.Mutex
	report := make(map[string]string, len(probes))
	healthy := true

	var wg sync.WaitGroup
	for name, probe := range probes {
		wg.Add(1)
		go func(name string, probe func() error) {
			defer wg.Done()
			outcome := "ok"
			if err := probe(); err != nil {
				outcome = err.Error()
			}
			mu.Lock()
			report[name] = outcome
			healthy = healthy && outcome == "ok"
			mu.Unlock()
		}(name, probe)
	}
	wg.Wait()

	w.Header().Set("Content-Type", "application/json")
	if !healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(report)
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
