package capture

import (
	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	"codeberg.org/mutker/iiocapture/internal/sink"
	"codeberg.org/mutker/iiocapture/internal/telemetry"
)

// Reducer folds readings into the session statistics and mirrors them to
// the output sink.
type Reducer struct {
	session   *Session
	sink      sink.Sink
	telemetry telemetry.Collector

	sinkErrors int64
}

func NewReducer(session *Session, out sink.Sink, collector telemetry.Collector) *Reducer {
	if out == nil {
		out = sink.Nop{}
	}
	if collector == nil {
		collector = telemetry.Nop{}
	}
	return &Reducer{session: session, sink: out, telemetry: collector}
}

// Reduce processes one reading of channel idx. It matches device.SampleFunc.
func (r *Reducer) Reduce(idx int, value int64, raw []byte) {
	s := r.session
	ch := s.Table.At(idx)

	if ch.Role == channel.Timestamp {
		if !s.seenTimestamp {
			s.firstTimestamp = value
			s.seenTimestamp = true
		}
		s.duration = value - s.firstTimestamp
		r.write(idx, raw, float64(value-s.firstTimestamp)*ch.Scale)
		return
	}

	mag := magnitude(value)
	if mag > magnitude(ch.Max) {
		ch.Max = value
	}
	if mag < magnitude(ch.Min) {
		ch.Min = value
	}

	ch.Count++
	if ch.Stats.Has(channel.HasAvg) {
		ch.Avg += (float64(value) - ch.Avg) / float64(ch.Count)
	}
	if ch.Stats.Has(channel.HasEnergy) {
		ch.Energy += int64(mag)
	}

	r.write(idx, raw, float64(value)*ch.Scale)
}

func (r *Reducer) write(idx int, raw []byte, decoded float64) {
	if err := r.sink.Write(idx, raw, decoded); err != nil {
		r.sinkFailed(err)
	}
}

// sinkFailed reports the first write failure and stops mirroring. The
// statistics are unaffected.
func (r *Reducer) sinkFailed(err error) {
	r.sinkErrors++
	r.telemetry.SinkFailed()

	logger.WarnWithCode(errors.New().Wrap(ErrSinkWrite, err)).
		Str("run_id", r.session.RunID).
		Msg("Output disabled for the rest of the capture")

	r.sink = sink.Nop{}
}

// SinkErrors returns the number of failed sink writes.
func (r *Reducer) SinkErrors() int64 {
	return r.sinkErrors
}

func magnitude(v int64) uint64 {
	if v < 0 {
		return uint64(-v)
	}
	return uint64(v)
}
