package logger_test

import (
	"bytes"
	"testing"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	"github.com/stretchr/testify/assert"
)

func TestInitLevels(t *testing.T) {
	var buf bytes.Buffer

	logger.InitWithWriter(&buf, false, false, true)
	logger.Info().Msg("hidden")
	logger.Warn().Msg("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")

	buf.Reset()
	logger.InitWithWriter(&buf, true, false, true)
	logger.Debug().Str("channel", "power0").Msg("debug line")
	assert.Contains(t, buf.String(), "debug line")
	assert.Contains(t, buf.String(), "power0")
}

func TestWarnWithCode(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, false, true, true)

	err := errors.New().WithData(errors.ErrSinkOpen, "/nonexistent/out.csv")
	logger.WarnWithCode(err).Msg("output disabled")

	assert.Contains(t, buf.String(), "sink_open_failed")
	assert.Contains(t, buf.String(), "output disabled")
}

func TestParseLevel(t *testing.T) {
	level, ok := logger.ParseLevel("debug")
	assert.True(t, ok)
	assert.Equal(t, logger.DebugLevel, level)

	_, ok = logger.ParseLevel("loud")
	assert.False(t, ok)
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger.InitWithWriter(&buf, true, false, true)

	log := logger.Component("sink")
	log.Info().Int("rows", 3).Msg("flushed")
	log.Debug().Msg("checkpoint")

	assert.Contains(t, buf.String(), "component=sink")
	assert.Contains(t, buf.String(), "rows=3")
	assert.Contains(t, buf.String(), "checkpoint")
}
