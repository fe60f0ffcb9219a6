// Package ratelimit tracks rate-limit pressure observed while talking to the
// stats service. The service signals overload with HTTP 429 responses; the
// tracker turns those observations into a state the client uses to word its
// warnings and into Prometheus metrics.
package ratelimit

import "time"

// Thresholds for rate limit state decisions.
const (
	// ConsecutiveThresholdThrottled marks the service as throttled once this
	// many 429 responses arrive without a success in between.
	ConsecutiveThresholdThrottled = 1

	// ConsecutiveThresholdSaturated marks the service as saturated. At this
	// point retry warnings advise waiting before resubmitting the batch.
	ConsecutiveThresholdSaturated = 3
)

// Status describes the observed health of the stats service.
type Status string

const (
	// StatusHealthy means recent requests completed without rate limiting.
	StatusHealthy Status = "healthy"

	// StatusThrottled means at least one recent request was rate limited.
	StatusThrottled Status = "throttled"

	// StatusSaturated means the service has rejected several requests in a
	// row and a single retry budget is unlikely to clear it.
	StatusSaturated Status = "saturated"
)

// State is a snapshot of the tracker at one point in time.
type State struct {
	// Consecutive429 is the number of rate-limited responses observed since
	// the last successful one.
	Consecutive429 int

	// Total429 is the number of rate-limited responses observed over the
	// tracker's lifetime.
	Total429 int

	// LastObserved is when the most recent response (of any kind) arrived.
	LastObserved time.Time
}

// Status classifies the snapshot.
func (s State) Status() Status {
	switch {
	case s.Consecutive429 >= ConsecutiveThresholdSaturated:
		return StatusSaturated
	case s.Consecutive429 >= ConsecutiveThresholdThrottled:
		return StatusThrottled
	default:
		return StatusHealthy
	}
}
