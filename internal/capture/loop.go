package capture

import (
	"context"
	"io"
	"time"

	"codeberg.org/mutker/iiocapture/internal/device"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	"codeberg.org/mutker/iiocapture/internal/telemetry"
)

// Loop drives one capture buffer until a stop condition is met.
type Loop struct {
	Session   *Session
	Buffer    device.Buffer
	Reducer   *Reducer
	Telemetry telemetry.Collector
	// Limit is the capture duration in ns of device time. Zero disables it.
	Limit int64
}

// Run refills the buffer and reduces every sample set until the source is
// exhausted, the duration limit is reached, a stop is requested or a refill
// fails. Cancelling ctx aborts a blocked refill. The returned error is the
// refill failure, if any; statistics are valid in every case.
func (l *Loop) Run(ctx context.Context) error {
	s := l.Session
	collector := l.Telemetry
	if collector == nil {
		collector = telemetry.Nop{}
	}
	reduce := l.Reducer.Reduce
	channels := int64(s.Table.Len())

	logger.Info().
		Str("run_id", s.RunID).
		Int("channels", s.Table.Len()).
		Int64("limit_ns", l.Limit).
		Msg("Capture started")

	for s.State() == Running {
		start := time.Now()
		err := l.Buffer.Refill(ctx)
		latency := time.Since(start)

		if err != nil {
			l.refillFailed(err, collector)
			break
		}

		l.Buffer.ForEachSample(reduce)
		sets := int64(l.Buffer.SampleSets())
		s.sampleSets += sets
		collector.RefillDone(latency, int(sets*channels))

		if s.StopRequested() {
			s.stop(StopSignal, exitStatusFor(StopSignal, s.signal.Load()), nil)
			break
		}
		if l.Limit > 0 && s.duration >= l.Limit {
			s.stop(StopDuration, errors.ExitSuccess, nil)
			break
		}
	}

	// A stop request seen by the loop condition has no cause yet.
	if s.cause == StopNone {
		s.stop(StopSignal, exitStatusFor(StopSignal, s.signal.Load()), nil)
	}

	logger.Info().
		Str("run_id", s.RunID).
		Str("cause", s.cause.String()).
		Int64("sample_sets", s.sampleSets).
		Int64("duration_ns", s.duration).
		Int64("sink_errors", l.Reducer.SinkErrors()).
		Msg("Capture stopped")

	return s.err
}

func (l *Loop) refillFailed(err error, collector telemetry.Collector) {
	s := l.Session

	switch {
	case s.StopRequested():
		s.stop(StopSignal, exitStatusFor(StopSignal, s.signal.Load()), nil)
	case errors.Is(err, io.EOF):
		s.stop(StopExhausted, errors.ExitSuccess, nil)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		s.stop(StopCancelled, errors.ExitSuccess, nil)
	default:
		collector.RefillFailed()
		var capErr errors.Error
		if !errors.As(err, &capErr) || capErr.Code() != ErrRefill {
			capErr = errors.New().Wrap(ErrRefill, err)
		}
		logger.ErrorWithCode(capErr).
			Str("run_id", s.RunID).
			Msg("Unable to refill buffer")
		s.stop(StopRefillError, errors.ExitIOError, capErr)
	}
}
