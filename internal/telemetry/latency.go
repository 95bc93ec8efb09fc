package telemetry

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

const (
	histMin    = 1
	histMax    = 60_000_000 // 60 seconds in µs
	histSigFig = 3
)

// latencyRecorder keeps refill latencies in µs.
type latencyRecorder struct {
	mu   sync.Mutex
	hist *hdrhistogram.Histogram
}

func newLatencyRecorder() *latencyRecorder {
	return &latencyRecorder{hist: hdrhistogram.New(histMin, histMax, histSigFig)}
}

func (l *latencyRecorder) record(d time.Duration) {
	us := d.Microseconds()
	if us < histMin {
		us = histMin
	}
	if us > histMax {
		us = histMax
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	// Values are clamped to the trackable range.
	_ = l.hist.RecordValue(us)
}

func (l *latencyRecorder) summary() LatencySummary {
	l.mu.Lock()
	defer l.mu.Unlock()

	return LatencySummary{
		Count: l.hist.TotalCount(),
		P50:   time.Duration(l.hist.ValueAtQuantile(50)) * time.Microsecond,
		P99:   time.Duration(l.hist.ValueAtQuantile(99)) * time.Microsecond,
		Max:   time.Duration(l.hist.Max()) * time.Microsecond,
	}
}
