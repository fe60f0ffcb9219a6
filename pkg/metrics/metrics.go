// Package metrics documents the Prometheus metric surface of the enricher.
// All metrics are defined in their owning packages (client, cache, ratelimit,
// enrich) via promauto to keep them next to the code that drives them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by the module.
// All metrics self-register through promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - stats_requests_total{status} (Counter): Requests by HTTP status
//   - stats_request_duration_seconds (Histogram): Per-geometry fetch duration
//     including backoff waits
//   - stats_errors_total{class} (Counter): Failures by class
//     (client, server, rate_limit, network)
//   - stats_retries_total (Counter): Rate-limit retry attempts
//   - stats_retry_exhausted_total (Counter): Geometries that spent the whole
//     retry budget
//
// Rate Limit Metrics (pkg/ratelimit):
//   - stats_rate_limited_total (Counter): 429 responses observed
//   - stats_consecutive_rate_limits (Gauge): 429s since the last success
//
// Cache Metrics (pkg/cache):
//   - stats_cache_hits_total (Counter): Responses served from Redis
//   - stats_cache_misses_total (Counter): Cache misses
//   - stats_cache_errors_total{operation} (Counter): Cache operation errors
//
// Enrichment Metrics (pkg/enrich):
//   - enrich_features_total{outcome} (Counter): Features by outcome
//     (enriched, unavailable)
//   - enrich_duration_seconds (Histogram): Whole-run duration
//
// Example Prometheus Queries:
//
//   # Share of features that got no statistics
//   rate(enrich_features_total{outcome="unavailable"}[15m]) /
//   rate(enrich_features_total[15m])
//
//   # Cache hit rate
//   rate(stats_cache_hits_total[5m]) /
//   (rate(stats_cache_hits_total[5m]) + rate(stats_cache_misses_total[5m]))
//
//   # P95 per-geometry fetch latency
//   histogram_quantile(0.95, rate(stats_request_duration_seconds_bucket[5m]))
