package config

import (
	"codeberg.org/mutker/iiocapture/internal/errors"
)

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}

// SinkMode selects how samples are mirrored while capturing.
type SinkMode string

const (
	SinkNone   SinkMode = "none"
	SinkBinary SinkMode = "binary"
	SinkCSV    SinkMode = "csv"
	SinkSQLite SinkMode = "sqlite"
)

// ReportStyle selects the format of the final statistics report.
type ReportStyle string

const (
	ReportLava    ReportStyle = "lava"
	ReportOneLine ReportStyle = "oneline"
)

// SinkMode derives the output mode from the output flags.
func (c *Config) SinkMode() SinkMode {
	switch {
	case c.Output == "":
		return SinkNone
	case c.SQLite:
		return SinkSQLite
	case c.CSV:
		return SinkCSV
	default:
		return SinkBinary
	}
}

// ReportStyle derives the report style from the flags.
func (c *Config) ReportStyle() ReportStyle {
	if c.OneLine {
		return ReportOneLine
	}
	return ReportLava
}

// DurationLimit returns the capture duration limit in nanoseconds of device
// time, or 0 when the capture is unbounded.
func (c *Config) DurationLimit() int64 {
	return c.Duration * 1_000_000
}

// Validate checks the loaded configuration.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if c.Device == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "Incorrect number of arguments: missing <iio_device>")
	}
	if c.BufferSize <= 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, struct {
			Field string
			Value int
		}{Field: "buffer-size", Value: c.BufferSize})
	}
	if c.Duration < 0 {
		return errFactory.WithData(errors.ErrInvalidArgument, struct {
			Field string
			Value int64
		}{Field: "duration", Value: c.Duration})
	}
	if c.Oversampling < 0 || c.TriggerFreq < 0 {
		return errFactory.WithMessage(errors.ErrInvalidArgument, "oversampling and trigger-freq must not be negative")
	}
	if c.CSV && c.SQLite {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "--csv and --sqlite are mutually exclusive")
	}
	if c.SQLite && c.Output == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "--sqlite requires --fout")
	}
	if c.Backend != BackendSysfs && c.Backend != BackendNVML {
		return errFactory.WithData(errors.ErrInvalidConfig, "unknown backend "+c.Backend)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}

	return nil
}
