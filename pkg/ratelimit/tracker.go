package ratelimit

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

// Prometheus metrics for rate limit tracking.
var (
	statsRateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_rate_limited_total",
		Help: "Total number of rate-limited (429) responses from the stats service",
	})

	statsConsecutive429 = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "stats_consecutive_rate_limits",
		Help: "Rate-limited responses observed since the last success",
	})
)

// Tracker records per-response observations from concurrent fetch workers.
// All methods are safe for concurrent use.
type Tracker struct {
	mu     sync.Mutex
	state  State
	logger zerolog.Logger
}

// NewTracker creates a tracker that logs state transitions through the given
// logger.
func NewTracker(logger zerolog.Logger) *Tracker {
	return &Tracker{logger: logger}
}

// ObserveRateLimited records a 429 response.
func (t *Tracker) ObserveRateLimited() {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state.Status()
	t.state.Consecutive429++
	t.state.Total429++
	t.state.LastObserved = time.Now()

	statsRateLimited.Inc()
	statsConsecutive429.Set(float64(t.state.Consecutive429))

	if cur := t.state.Status(); cur != prev {
		t.logger.Warn().
			Str("status", string(cur)).
			Int("consecutive_429", t.state.Consecutive429).
			Msg("Stats service rate limit pressure increased")
	}
}

// ObserveSuccess records a non-429 response, resetting the consecutive
// counter.
func (t *Tracker) ObserveSuccess() {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.state.Status()
	t.state.Consecutive429 = 0
	t.state.LastObserved = time.Now()

	statsConsecutive429.Set(0)

	if prev != StatusHealthy {
		t.logger.Info().Msg("Stats service recovered from rate limiting")
	}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}
