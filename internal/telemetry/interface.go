package telemetry

import "time"

// Collector receives capture loop events. Implementations must be cheap
// enough to be called once per refill.
type Collector interface {
	// RefillDone records a successful refill that delivered samples
	// channel readings.
	RefillDone(latency time.Duration, samples int)
	RefillFailed()
	SinkFailed()
	// Latency summarises the refill latencies recorded so far.
	Latency() LatencySummary
	Close() error
}

// LatencySummary holds refill latency percentiles.
type LatencySummary struct {
	Count int64
	P50   time.Duration
	P99   time.Duration
	Max   time.Duration
}
