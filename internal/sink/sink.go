// Package sink mirrors captured samples to an output file.
package sink

import (
	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
)

const (
	defaultFilePerm = 0o644
	defaultDirPerm  = 0o755
)

// Mode selects the output encoding.
type Mode string

const (
	ModeNone   Mode = "none"
	ModeBinary Mode = "binary"
	ModeCSV    Mode = "csv"
	ModeSQLite Mode = "sqlite"
)

// Sink receives every channel reading of every sample set, in table order.
type Sink interface {
	// Begin is called once with the channel table, before any sample.
	Begin(table *channel.Table) error
	// Write mirrors one reading. raw is only valid during the call.
	Write(idx int, raw []byte, decoded float64) error
	Close() error
}

// Options configure Open.
type Options struct {
	Mode  Mode
	Path  string
	RunID string
	// BatchSize and BatchTimeout (seconds) tune the SQLite sink. Zero
	// selects the default, a negative timeout disables timed flushes.
	BatchSize    int
	BatchTimeout int
}

// Open creates the sink for the given mode.
func Open(opts Options) (Sink, error) {
	errFactory := errors.New()

	if opts.Mode == ModeNone || opts.Mode == "" {
		return Nop{}, nil
	}
	if opts.Path == "" {
		return nil, errFactory.WithMessage(ErrOpen, "no output file given")
	}

	var (
		s   Sink
		err error
	)
	switch opts.Mode {
	case ModeBinary:
		s, err = NewBinary(opts.Path)
	case ModeCSV:
		s, err = NewCSV(opts.Path)
	case ModeSQLite:
		s, err = NewSQLite(opts)
	default:
		return nil, errFactory.WithMessage(ErrOpen, "unknown output mode "+string(opts.Mode))
	}
	if err != nil {
		return nil, err
	}

	return s, nil
}

// Nop discards everything.
type Nop struct{}

func (Nop) Begin(*channel.Table) error       { return nil }
func (Nop) Write(int, []byte, float64) error { return nil }
func (Nop) Close() error                     { return nil }
