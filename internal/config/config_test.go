package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/iiocapture/internal/config"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "iiocapture.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	configPath := writeConfig(t, `
device = "ina226"
fout = "/tmp/capture.csv"
csv = true
one_line = true
duration = 1500
buffer_size = 256
oversampling = 16
log_level = "info"
`)
	t.Setenv(config.EnvConfigFile, configPath)

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "ina226", cfg.Device)
	assert.Equal(t, "/tmp/capture.csv", cfg.Output)
	assert.True(t, cfg.CSV)
	assert.Equal(t, config.SinkCSV, cfg.SinkMode())
	assert.Equal(t, config.ReportOneLine, cfg.ReportStyle())
	assert.Equal(t, int64(1500_000_000), cfg.DurationLimit())
	assert.Equal(t, 256, cfg.BufferSize)
	assert.Equal(t, 16, cfg.Oversampling)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")

	cfg, err := config.LoadArgs([]string{"ina226"})
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, "ina226", cfg.Device)
	assert.Empty(t, cfg.Channels)
	assert.Equal(t, config.DefaultBufferSize, cfg.BufferSize)
	assert.Equal(t, config.DefaultOversampling, cfg.Oversampling)
	assert.Equal(t, config.BackendSysfs, cfg.Backend)
	assert.Equal(t, config.SinkNone, cfg.SinkMode())
	assert.Equal(t, config.ReportLava, cfg.ReportStyle())
	assert.Zero(t, cfg.DurationLimit())
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
}

func TestLoadPositionalChannels(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")

	cfg, err := config.LoadArgs([]string{"-c", "-o", "-d", "200", "ina226", "power0", "current3", "timestamp"})
	require.NoError(t, err)

	assert.Equal(t, "ina226", cfg.Device)
	assert.Equal(t, []string{"power0", "current3", "timestamp"}, cfg.Channels)
	assert.Equal(t, config.DefaultCSVFile, cfg.Output)
	assert.Equal(t, config.SinkCSV, cfg.SinkMode())
	assert.Equal(t, int64(200_000_000), cfg.DurationLimit())
}

func TestLoadFlagOverridesFile(t *testing.T) {
	configPath := writeConfig(t, `
buffer_size = 64
fout = "capture.bin"
`)
	t.Setenv(config.EnvConfigFile, configPath)

	cfg, err := config.LoadArgs([]string{"--buffer-size", "512", "ina226"})
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.BufferSize)
	assert.Equal(t, config.SinkBinary, cfg.SinkMode())
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")
	t.Setenv("IIOCAPTURE_BUFFER_SIZE", "32")

	cfg, err := config.LoadArgs([]string{"ina226"})
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.BufferSize)
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfig(t, `
This is not a valid TOML file
`)
	t.Setenv(config.EnvConfigFile, configPath)

	_, err := config.LoadArgs([]string{"ina226"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Failed to read config file")
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfig(t, `
log_level = "invalid"
`)
	t.Setenv(config.EnvConfigFile, configPath)

	_, err := config.LoadArgs([]string{"ina226"})
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel))
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")

	cfg, err := config.LoadArgs([]string{"--log-level", "debug", "ina226"})
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")

	cfg, err = config.LoadArgs([]string{"--verbose", "ina226"})
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestValidationErrors(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")

	tests := []struct {
		name string
		args []string
		code errors.ErrorCode
	}{
		{"missing device", nil, errors.ErrMissingConfig},
		{"zero buffer", []string{"-b", "0", "ina226"}, errors.ErrInvalidArgument},
		{"negative duration", []string{"--duration=-5", "ina226"}, errors.ErrInvalidArgument},
		{"not a number", []string{"-b", "lots", "ina226"}, errors.ErrInvalidArgument},
		{"csv and sqlite", []string{"-c", "--sqlite", "-f", "x", "ina226"}, errors.ErrInvalidConfig},
		{"sqlite without file", []string{"--sqlite", "ina226"}, errors.ErrMissingConfig},
		{"unknown backend", []string{"--backend", "usb", "ina226"}, errors.ErrInvalidConfig},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := config.LoadArgs(tt.args)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
			assert.Equal(t, errors.ClassConfiguration, errors.ClassOf(err))
		})
	}
}

func TestHelp(t *testing.T) {
	t.Setenv(config.EnvConfigFile, "")

	_, err := config.LoadArgs([]string{"--help"})
	assert.ErrorIs(t, err, pflag.ErrHelp)
}
