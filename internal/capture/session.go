// Package capture runs the capture loop: it refills the device buffer,
// folds every reading into the channel statistics and decides when to stop.
package capture

import (
	"sync/atomic"
	"syscall"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"github.com/google/uuid"
)

type State int32

const (
	Running State = iota
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Stopping:
		return "stopping"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// StopCause records why the loop left the Running state.
type StopCause int

const (
	StopNone StopCause = iota
	StopExhausted
	StopDuration
	StopSignal
	StopRefillError
	StopCancelled
)

func (c StopCause) String() string {
	switch c {
	case StopExhausted:
		return "exhausted"
	case StopDuration:
		return "duration"
	case StopSignal:
		return "signal"
	case StopRefillError:
		return "refill_error"
	case StopCancelled:
		return "cancelled"
	}
	return "none"
}

// Session is the state of one capture run. Only the loop goroutine touches
// the statistics; other goroutines may only call RequestStop and State.
type Session struct {
	Table *channel.Table
	RunID string

	firstTimestamp int64
	seenTimestamp  bool
	duration       int64
	sampleSets     int64

	state  atomic.Int32
	signal atomic.Int32

	cause  StopCause
	status int
	err    error
}

func NewSession(table *channel.Table) *Session {
	return &Session{
		Table: table,
		RunID: uuid.NewString(),
	}
}

// RequestStop asks the loop to stop after the current refill. Only the
// first request is kept.
func (s *Session) RequestStop(sig syscall.Signal) {
	if s.signal.CompareAndSwap(0, int32(sig)) {
		s.state.CompareAndSwap(int32(Running), int32(Stopping))
	}
}

// StopRequested reports whether RequestStop was called.
func (s *Session) StopRequested() bool {
	return s.signal.Load() != 0
}

func (s *Session) State() State {
	return State(s.state.Load())
}

// stop moves the session to Stopping. The first cause wins.
func (s *Session) stop(cause StopCause, status int, err error) {
	s.state.Store(int32(Stopping))
	if s.cause != StopNone {
		return
	}
	s.cause = cause
	s.status = status
	s.err = err
}

// Finish marks the session Stopped, once the report has been written.
func (s *Session) Finish() {
	s.state.Store(int32(Stopped))
}

// Cause returns why the loop stopped.
func (s *Session) Cause() StopCause {
	return s.cause
}

// ExitStatus returns the process exit status for the run: the signal
// number when interrupted, the capture failure status on a refill error and
// success otherwise.
func (s *Session) ExitStatus() int {
	return s.status
}

// Err returns the error that stopped the loop, if any.
func (s *Session) Err() error {
	return s.err
}

// Duration returns the elapsed device time in ns, derived from timestamps.
func (s *Session) Duration() int64 {
	return s.duration
}

// FirstTimestamp returns the first timestamp seen and whether there was one.
func (s *Session) FirstTimestamp() (int64, bool) {
	return s.firstTimestamp, s.seenTimestamp
}

// SampleSets returns the number of sample sets processed.
func (s *Session) SampleSets() int64 {
	return s.sampleSets
}

func exitStatusFor(cause StopCause, sig int32) int {
	switch cause {
	case StopSignal:
		return int(sig)
	case StopRefillError:
		return errors.ExitIOError
	}
	return errors.ExitSuccess
}
