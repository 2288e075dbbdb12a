package relay

import "time"

// HealthMetrics tracks success/failure counts for a single endpoint,
// updated by ConnectionPool each time a checkout opens a new connection
// (success or failure); reusing an idle connection and checkin leave it
// unchanged.
// Grounded on HealthMetrics usage in
// original_source/crates/nostr/client/src/connection_pool.rs.
type HealthMetrics struct {
	URL             string
	Successes       uint64
	Failures        uint64
	LastSuccess     time.Time
	LastFailure     time.Time
	ConsecutiveFail int
}

func newHealthMetrics(url string) HealthMetrics {
	return HealthMetrics{URL: url}
}

func (h *HealthMetrics) recordSuccess(now time.Time) {
	h.Successes++
	h.LastSuccess = now
	h.ConsecutiveFail = 0
}

func (h *HealthMetrics) recordFailure(now time.Time) {
	h.Failures++
	h.LastFailure = now
	h.ConsecutiveFail++
}
