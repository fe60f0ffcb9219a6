// Package client implements the HTTP client for the HOTOSM raw-data stats
// service, with bounded retry on rate limiting and optional response
// caching.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/geovista/osm-completeness/pkg/cache"
	"github.com/geovista/osm-completeness/pkg/progress"
	"github.com/geovista/osm-completeness/pkg/ratelimit"
)

// DefaultEndpoint is the production HOTOSM raw-data stats endpoint.
const DefaultEndpoint = "https://api-prod.raw-data.hotosm.org/v1/stats/polygon/"

// Prometheus metrics for stats requests.
var (
	statsRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_requests_total",
		Help: "Total stats requests by status",
	}, []string{"status"})

	statsRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stats_request_duration_seconds",
		Help:    "Stats request duration in seconds, including retries",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	})

	statsErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stats_errors_total",
		Help: "Total stats errors by class",
	}, []string{"class"})

	statsRetriesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_retries_total",
		Help: "Total number of rate-limit retry attempts",
	})

	statsRetryExhaustedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stats_retry_exhausted_total",
		Help: "Total number of times the retry budget was exhausted",
	})
)

// Client fetches completeness statistics for one geometry at a time. It is
// safe for concurrent use; the enrichment orchestrator runs many FetchStats
// calls in parallel against a single Client.
type Client struct {
	httpClient *http.Client
	cache      *cache.Manager
	tracker    *ratelimit.Tracker
	config     Config
	logger     zerolog.Logger
}

// Config holds the client configuration.
type Config struct {
	// Endpoint is the stats service URL.
	Endpoint string

	// MaxRetries is the total number of attempts per geometry, counting the
	// first one. Only 429 responses consume retries.
	MaxRetries int

	// Backoff is the fixed wait before retrying a rate-limited request.
	Backoff time.Duration

	// HTTPTimeout bounds a single HTTP round trip.
	HTTPTimeout time.Duration

	// Redis enables the response cache when non-nil.
	Redis *redis.Client

	// CacheTTL is the lifetime of cached responses.
	CacheTTL time.Duration
}

// DefaultConfig returns the default configuration against the production
// endpoint.
func DefaultConfig() Config {
	return Config{
		Endpoint:    DefaultEndpoint,
		MaxRetries:  3,
		Backoff:     60 * time.Second,
		HTTPTimeout: 30 * time.Second,
		CacheTTL:    time.Hour,
	}
}

// New creates a stats client.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if cfg.MaxRetries < 1 {
		return nil, fmt.Errorf("max_retries must be >= 1 (got %d)", cfg.MaxRetries)
	}
	if cfg.Backoff <= 0 {
		return nil, fmt.Errorf("backoff must be positive (got %v)", cfg.Backoff)
	}
	if cfg.HTTPTimeout <= 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}

	logger := log.With().Str("component", "stats-client").Logger()

	var cacheManager *cache.Manager
	if cfg.Redis != nil {
		cacheManager = cache.NewManager(cfg.Redis, cfg.CacheTTL)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.HTTPTimeout,
		},
		cache:   cacheManager,
		tracker: ratelimit.NewTracker(logger),
		config:  cfg,
		logger:  logger,
	}, nil
}

// statsRequest is the request body the stats service expects.
type statsRequest struct {
	Geometry json.RawMessage `json:"geometry"`
}

// FetchStats posts a geometry to the stats service and returns the decoded
// statistics object. Rate-limited responses are retried up to the configured
// budget with a fixed backoff; retry waits and exhaustion are surfaced as
// warnings through rep. Every other failure returns ErrNotAvailable
// immediately so a single bad feature never stalls its siblings.
func (c *Client) FetchStats(ctx context.Context, geometry json.RawMessage, rep progress.Reporter) (map[string]any, error) {
	if rep == nil {
		rep = progress.NopReporter{}
	}

	startTime := time.Now()
	defer func() {
		statsRequestDuration.Observe(time.Since(startTime).Seconds())
	}()

	body, err := json.Marshal(statsRequest{Geometry: geometry})
	if err != nil {
		statsErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, fmt.Errorf("%w: encode request: %v", ErrNotAvailable, err)
	}

	cacheKey := cache.KeyForGeometry(geometry)
	if stats, ok := c.cachedStats(ctx, cacheKey); ok {
		return stats, nil
	}

	for attempt := 1; attempt <= c.config.MaxRetries; attempt++ {
		stats, retryable, err := c.doAttempt(ctx, body, cacheKey)
		if err == nil {
			return stats, nil
		}
		if !retryable {
			return nil, err
		}

		if attempt < c.config.MaxRetries {
			msg := fmt.Sprintf("Rate limited by the stats API. Retrying in %d seconds...",
				int(c.config.Backoff.Seconds()))
			if c.tracker.Snapshot().Status() == ratelimit.StatusSaturated {
				msg = fmt.Sprintf("Stats API is saturated. Retrying in %d seconds...",
					int(c.config.Backoff.Seconds()))
			}
			rep.Warning(msg)
			statsRetriesTotal.Inc()

			c.logger.Warn().
				Int("attempt", attempt).
				Dur("backoff", c.config.Backoff).
				Msg("Rate limited, backing off before retry")

			select {
			case <-ctx.Done():
				statsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
				return nil, fmt.Errorf("%w: %v", ErrNotAvailable, ctx.Err())
			case <-time.After(c.config.Backoff):
			}
			continue
		}

		// Retry budget spent.
		statsRetryExhaustedTotal.Inc()
		rep.Warning("Max retries exceeded after rate limit. Please try again later.")
		c.logger.Warn().
			Int("max_retries", c.config.MaxRetries).
			Msg("Retry attempts exhausted")
		return nil, err
	}

	// Unreachable: the loop always returns.
	return nil, ErrNotAvailable
}

// doAttempt performs one HTTP round trip. The second return value reports
// whether the failure is retryable (only rate limiting is).
func (c *Client) doAttempt(ctx context.Context, body []byte, cacheKey cache.Key) (map[string]any, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		statsErrorsTotal.WithLabelValues(string(ErrorClassClient)).Inc()
		return nil, false, fmt.Errorf("%w: create request: %v", ErrNotAvailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Stats request failed")
		statsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		statsRequestsTotal.WithLabelValues("network_error").Inc()
		return nil, false, fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}
	defer resp.Body.Close()

	statsRequestsTotal.WithLabelValues(fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.tracker.ObserveRateLimited()
		statsErrorsTotal.WithLabelValues(string(ErrorClassRateLimit)).Inc()
		return nil, true, &StatsError{
			StatusCode: resp.StatusCode,
			ErrorClass: ErrorClassRateLimit,
			Message:    resp.Status,
		}
	}

	if resp.StatusCode != http.StatusOK {
		errClass := classifyStatus(resp.StatusCode)
		statsErrorsTotal.WithLabelValues(string(errClass)).Inc()
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("error_class", string(errClass)).
			Msg("Stats request error")
		return nil, false, &StatsError{
			StatusCode: resp.StatusCode,
			ErrorClass: errClass,
			Message:    resp.Status,
		}
	}

	c.tracker.ObserveSuccess()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		statsErrorsTotal.WithLabelValues(string(ErrorClassNetwork)).Inc()
		return nil, false, fmt.Errorf("%w: read response: %v", ErrNotAvailable, err)
	}

	stats, err := decodeStats(data)
	if err != nil {
		statsErrorsTotal.WithLabelValues(string(ErrorClassServer)).Inc()
		c.logger.Warn().Err(err).Msg("Stats response not decodable")
		return nil, false, fmt.Errorf("%w: %v", ErrNotAvailable, err)
	}

	if c.cache != nil {
		if err := c.cache.Put(ctx, cacheKey, data); err != nil {
			c.logger.Warn().Err(err).Msg("Failed to cache stats response")
		}
	}

	return stats, false, nil
}

// cachedStats returns a decoded cached response, if one exists. Any cache
// problem degrades to a miss.
func (c *Client) cachedStats(ctx context.Context, key cache.Key) (map[string]any, bool) {
	if c.cache == nil {
		return nil, false
	}

	entry, err := c.cache.Get(ctx, key)
	if err != nil {
		if err != cache.ErrCacheMiss {
			c.logger.Warn().Err(err).Msg("Cache get error")
		}
		return nil, false
	}

	stats, err := decodeStats(entry.Data)
	if err != nil {
		c.logger.Warn().Err(err).Msg("Corrupt cache entry, refetching")
		return nil, false
	}

	c.logger.Debug().Str("key", key.String()).Msg("Stats served from cache")
	return stats, true
}

// decodeStats parses a response body into the nested statistics object.
func decodeStats(data []byte) (map[string]any, error) {
	var stats map[string]any
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("decode stats: %w", err)
	}
	return stats, nil
}

// RateLimitState returns a snapshot of observed rate-limit pressure.
func (c *Client) RateLimitState() ratelimit.State {
	return c.tracker.Snapshot()
}

// SetHTTPClient sets a custom HTTP client (for testing).
func (c *Client) SetHTTPClient(client *http.Client) {
	c.httpClient = client
}
