package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"codeberg.org/mutker/iiocapture/internal/capture"
	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/config"
	"codeberg.org/mutker/iiocapture/internal/device"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	"codeberg.org/mutker/iiocapture/internal/pid"
	"codeberg.org/mutker/iiocapture/internal/report"
	"codeberg.org/mutker/iiocapture/internal/sink"
	"codeberg.org/mutker/iiocapture/internal/telemetry"
	"github.com/spf13/pflag"
)

const usageHeader = "Usage:\n\tiiocapture [options] <iio_device> [<channel> ...]\n\nOptions:\n"

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes one capture and returns the process exit status. The report
// goes to stdout, usage and logs to stderr.
func run(args []string, stdout, stderr io.Writer) int {
	cfg, err := config.LoadArgs(args)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			usage(stdout)
			return errors.ExitSuccess
		}
		logger.InitWithWriter(stderr, false, false, logger.IsService())
		logError(err, "Failed to load configuration")
		usage(stderr)
		return errors.ExitFailure
	}

	logger.InitWithWriter(stderr, false, false, logger.IsService())
	if level, ok := logger.ParseLevel(cfg.LogLevel); ok {
		logger.SetLogLevel(level)
	}
	logger.Debug().Interface("config", cfg).Msg("Config loaded")

	lock, err := pid.Acquire(cfg.PIDDir, cfg.Device)
	if err != nil {
		logError(err, "Another capture holds the device")
		return errors.ExitFailure
	}
	defer func() {
		if err := lock.Release(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	backend, err := openBackend(cfg)
	if err != nil {
		logError(err, "Unable to create device context")
		return errors.ExitFailure
	}
	defer backend.Close()

	dev, err := backend.FindDevice(cfg.Device)
	if err != nil {
		logError(err, "Device not found")
		return errors.ExitFailure
	}

	if err := setupTrigger(backend, dev, cfg); err != nil {
		logError(err, "Unable to set up trigger")
		return errors.ExitFailure
	}

	if cfg.Oversampling > 0 {
		if err := dev.WriteAttr(device.AttrOversamplingRatio, strconv.Itoa(cfg.Oversampling)); err != nil {
			logError(err, "Unsupported write attribute '"+device.AttrOversamplingRatio+"'")
			return errors.ExitFailure
		}
	}

	freq := samplingFrequency(dev)

	if err := enableChannels(dev, cfg.Channels); err != nil {
		logError(err, "Unable to enable channels")
		return errors.ExitFailure
	}

	table, err := channel.NewTable(device.EnabledChannels(dev.Channels()), freq)
	if err != nil {
		logError(err, "Too many channels")
		return errors.ExitFailure
	}

	session := capture.NewSession(table)
	logger.Info().
		Str("run_id", session.RunID).
		Str("device", dev.ID()).
		Str("name", dev.Name()).
		Int64("sampling_frequency", freq).
		Msg("Capture session created")

	out := openSink(cfg, session)
	defer func() {
		if err := out.Close(); err != nil {
			logError(err, "Failed to close output")
		}
	}()

	buf, err := dev.CreateBuffer(cfg.BufferSize)
	if err != nil {
		logError(err, "Unable to allocate buffer")
		return errors.ExitFailure
	}
	defer func() {
		if err := buf.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to release buffer")
		}
	}()

	collector, err := telemetry.New(telemetry.Config{
		Addr:   cfg.MetricsAddr,
		Device: dev.ID(),
		RunID:  session.RunID,
	})
	if err != nil {
		logger.WarnWithCode(asAppError(err)).Msg("Metrics endpoint disabled")
		collector = telemetry.Nop{}
	}
	defer func() {
		if err := collector.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to stop telemetry")
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := handleSignals(ctx, cancel, session)
	defer stopSignals()

	loop := &capture.Loop{
		Session:   session,
		Buffer:    buf,
		Reducer:   capture.NewReducer(session, out, collector),
		Telemetry: collector,
		Limit:     cfg.DurationLimit(),
	}
	// Refill failures are logged by the loop and reflected in the exit status.
	_ = loop.Run(ctx)

	opts := report.Options{
		Style:      report.Style(cfg.ReportStyle()),
		EnergyOnly: cfg.EnergyOnly,
	}
	if err := report.Write(stdout, table, opts); err != nil {
		logError(err, "Failed to write report")
	}
	session.Finish()

	return session.ExitStatus()
}

func openBackend(cfg *config.Config) (device.Backend, error) {
	switch cfg.Backend {
	case config.BackendNVML:
		return device.NewNVML()
	default:
		return device.NewSysfs(cfg.SysfsRoot, cfg.DevRoot)
	}
}

func setupTrigger(backend device.Backend, dev device.Device, cfg *config.Config) error {
	if cfg.Trigger == "" {
		return nil
	}

	trigger, err := backend.FindDevice(cfg.Trigger)
	if err != nil {
		if errors.HasCode(err, errors.ErrDeviceNotFound) {
			return errors.New().WithData(errors.ErrTriggerNotFound, cfg.Trigger)
		}
		return err
	}

	if !trigger.IsTrigger() {
		return errors.New().WithData(errors.ErrNotATrigger, cfg.Trigger)
	}

	if cfg.TriggerFreq > 0 {
		if err := trigger.WriteAttr(device.AttrTriggerFrequency, strconv.Itoa(cfg.TriggerFreq)); err != nil {
			return err
		}
	}

	return dev.SetTrigger(trigger)
}

// samplingFrequency reads the device sampling frequency. Energy tracking is
// disabled when it cannot be read.
func samplingFrequency(dev device.Device) int64 {
	value, err := dev.ReadAttr(device.AttrSamplingFrequency)
	if err != nil {
		logger.Warn().Err(err).Msg("Sampling frequency unavailable, energy disabled")
		return 0
	}

	freq, err := strconv.ParseFloat(value, 64)
	if err != nil || freq < 0 {
		logger.Warn().Str("value", value).Msg("Invalid sampling frequency, energy disabled")
		return 0
	}
	return int64(freq)
}

// enableChannels enables the channels selected by filters, or every channel
// when there is no filter.
func enableChannels(dev device.Device, filters []string) error {
	for _, ch := range dev.Channels() {
		enable := len(filters) == 0
		for _, f := range filters {
			if ch.Matches(f) {
				enable = true
				break
			}
		}

		var err error
		if enable {
			err = dev.EnableChannel(ch.ID)
		} else {
			err = dev.DisableChannel(ch.ID)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func openSink(cfg *config.Config, session *capture.Session) sink.Sink {
	out, err := sink.Open(sink.Options{
		Mode:  sink.Mode(cfg.SinkMode()),
		Path:  cfg.Output,
		RunID: session.RunID,
	})
	if err != nil {
		logger.WarnWithCode(asAppError(err)).Str("path", cfg.Output).Msg("Capturing without output")
		return sink.Nop{}
	}

	if err := out.Begin(session.Table); err != nil {
		logger.WarnWithCode(asAppError(err)).Str("path", cfg.Output).Msg("Capturing without output")
		if cerr := out.Close(); cerr != nil {
			logger.Debug().Err(cerr).Msg("Failed to close output")
		}
		return sink.Nop{}
	}

	return out
}

// handleSignals turns the first interruption into a stop request. The
// returned function stops signal delivery.
func handleSignals(ctx context.Context, cancel context.CancelFunc, session *capture.Session) func() {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		select {
		case sig := <-sigs:
			logger.Info().Str("signal", sig.String()).Msg("Received termination signal")
			if s, ok := sig.(syscall.Signal); ok {
				session.RequestStop(s)
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return func() { signal.Stop(sigs) }
}

func asAppError(err error) errors.Error {
	var appErr errors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return errors.New().Wrap(errors.ErrInternal, err)
}

func logError(err error, msg string) {
	logger.ErrorWithCode(asAppError(err)).Msg(msg)
}

func usage(w io.Writer) {
	fmt.Fprint(w, usageHeader)
	fmt.Fprint(w, config.NewFlagSet().FlagUsages())
}
