package config

import (
	"fmt"
	"os"
	"strings"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	EnvPrefix     = "IIOCAPTURE"
	EnvConfigFile = "IIOCAPTURE_CONFIG"

	DefaultLogLevel     = "warning"
	DefaultBufferSize   = 128
	DefaultOversampling = 4
	DefaultCSVFile      = "output.csv"
	DefaultBackend      = BackendSysfs
	DefaultSysfsRoot    = "/sys/bus/iio/devices"
	DefaultDevRoot      = "/dev"
)

const (
	BackendSysfs = "sysfs"
	BackendNVML  = "nvml"
)

type Config struct {
	Device       string   `mapstructure:"device"`
	Channels     []string `mapstructure:"channels"`
	Output       string   `mapstructure:"fout"`
	CSV          bool     `mapstructure:"csv"`
	SQLite       bool     `mapstructure:"sqlite"`
	OneLine      bool     `mapstructure:"one_line"`
	EnergyOnly   bool     `mapstructure:"energy_only"`
	Duration     int64    `mapstructure:"duration"`
	BufferSize   int      `mapstructure:"buffer_size"`
	Oversampling int      `mapstructure:"oversampling"`
	Trigger      string   `mapstructure:"trigger"`
	TriggerFreq  int      `mapstructure:"trigger_freq"`
	Backend      string   `mapstructure:"backend"`
	SysfsRoot    string   `mapstructure:"sysfs_root"`
	DevRoot      string   `mapstructure:"dev_root"`
	MetricsAddr  string   `mapstructure:"metrics_addr"`
	PIDDir       string   `mapstructure:"pid_dir"`
	LogLevel     string   `mapstructure:"log_level"`
	Debug        bool     `mapstructure:"debug"`
	Verbose      bool     `mapstructure:"verbose"`
}

// Load reads configuration from the config file, the environment and the
// process command line, in increasing order of precedence.
func Load() (*Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with an explicit argument list (without the program name).
func LoadArgs(args []string) (*Config, error) {
	errFactory := errors.New()

	fs := NewFlagSet()
	if err := fs.Parse(args); err != nil {
		if err == pflag.ErrHelp {
			return nil, err
		}
		return nil, errFactory.Wrap(errors.ErrInvalidArgument, err)
	}

	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	fs.VisitAll(func(f *pflag.Flag) {
		if err := v.BindPFlag(strings.ReplaceAll(f.Name, "-", "_"), f); err != nil && bindErr == nil {
			bindErr = err
		}
	})
	if bindErr != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, bindErr)
	}

	// An explicitly empty IIOCAPTURE_CONFIG disables the config file.
	path, explicit := os.LookupEnv(EnvConfigFile)
	switch {
	case explicit && path != "":
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	case !explicit:
		v.SetConfigName("iiocapture")
		v.AddConfigPath("/etc")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrReadConfig, fmt.Errorf("failed to unmarshal config: %w", err))
	}

	// Positional arguments: <device> [<channel> ...]
	if rest := fs.Args(); len(rest) > 0 {
		config.Device = rest[0]
		if len(rest) > 1 {
			config.Channels = rest[1:]
		}
	}

	if config.CSV && config.Output == "" {
		config.Output = DefaultCSVFile
	}

	if config.Debug {
		config.LogLevel = "debug"
	} else if config.Verbose && config.LogLevel == DefaultLogLevel {
		config.LogLevel = "info"
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// NewFlagSet declares the command line.
func NewFlagSet() *pflag.FlagSet {
	fs := pflag.NewFlagSet("iiocapture", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	// Usage is printed by the caller.
	fs.Usage = func() {}

	fs.StringP("fout", "f", "", "Output values to specified filename as binary, or CSV when --csv")
	fs.BoolP("csv", "c", false, "Output values to a Comma-Separated-Values file")
	fs.Bool("sqlite", false, "Output decoded samples to the SQLite database given by --fout")
	fs.BoolP("one-line", "o", false, "Oneline style output format, instead of LAVA format")
	fs.BoolP("energy-only", "e", false, "Output the energy value only")
	fs.Int64P("duration", "d", 0, "Duration in milliseconds for the record (based on driver timestamps)")
	fs.IntP("buffer-size", "b", DefaultBufferSize, "Size of the capture buffer, in sample sets")
	fs.Int("oversampling", DefaultOversampling, "Oversampling ratio written to the device, 0 to leave unchanged")
	fs.StringP("trigger", "t", "", "Name or id of the trigger to attach to the device")
	fs.Int("trigger-freq", 0, "Sampling frequency written to the trigger, 0 to leave unchanged")
	fs.String("backend", DefaultBackend, "Device backend: sysfs or nvml")
	fs.String("sysfs-root", DefaultSysfsRoot, "IIO sysfs device directory")
	fs.String("dev-root", DefaultDevRoot, "Directory holding the IIO character devices")
	fs.String("metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9101")
	fs.String("pid-dir", "", "Directory of the per-device PID file, default the temporary directory")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning, error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")

	return fs
}
