// Package telemetry exports capture loop counters to Prometheus and keeps a
// refill latency histogram for the end of run summary.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type promMetrics struct {
	samples      prometheus.Counter
	refills      prometheus.Counter
	refillErrors prometheus.Counter
	sinkErrors   prometheus.Counter
	latency      prometheus.Histogram
}

type service struct {
	cfg      Config
	latency  *latencyRecorder
	registry *prometheus.Registry
	metrics  *promMetrics
	server   *http.Server
	listener net.Listener
	done     chan struct{}
}

// New creates a collector. With an empty Addr no endpoint is started.
func New(cfg Config) (Collector, error) {
	s := &service{
		cfg:     cfg,
		latency: newLatencyRecorder(),
	}

	if cfg.Addr == "" {
		return s, nil
	}

	if err := s.register(); err != nil {
		return nil, err
	}
	if err := s.listen(); err != nil {
		return nil, err
	}

	return s, nil
}

func (s *service) register() error {
	labels := prometheus.Labels{"device": s.cfg.Device, "run_id": s.cfg.RunID}

	m := &promMetrics{
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "samples_total",
			Help:        "Channel readings folded into the statistics.",
			ConstLabels: labels,
		}),
		refills: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "refills_total",
			Help:        "Successful capture buffer refills.",
			ConstLabels: labels,
		}),
		refillErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "refill_errors_total",
			Help:        "Failed capture buffer refills.",
			ConstLabels: labels,
		}),
		sinkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Name:        "sink_errors_total",
			Help:        "Output sink write failures.",
			ConstLabels: labels,
		}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Name:        "refill_latency_seconds",
			Help:        "Time spent blocked in a capture buffer refill.",
			Buckets:     prometheus.ExponentialBuckets(0.0005, 2, 14),
			ConstLabels: labels,
		}),
	}

	reg := prometheus.NewRegistry()
	for _, c := range []prometheus.Collector{m.samples, m.refills, m.refillErrors, m.sinkErrors, m.latency} {
		if err := reg.Register(c); err != nil {
			return errors.New().Wrap(ErrInit, err)
		}
	}

	s.registry = reg
	s.metrics = m
	return nil
}

func (s *service) listen() error {
	errFactory := errors.New()

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return errFactory.WithData(ErrListen, struct {
			Addr  string
			Error string
		}{
			Addr:  s.cfg.Addr,
			Error: err.Error(),
		})
	}

	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.listener = ln
	s.server = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn().Err(err).Msg("Metrics endpoint stopped")
		}
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("Metrics endpoint listening")
	return nil
}

// Addr returns the bound address of the metrics endpoint, or "".
func (s *service) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

func (s *service) RefillDone(latency time.Duration, samples int) {
	s.latency.record(latency)
	if s.metrics == nil {
		return
	}
	s.metrics.refills.Inc()
	s.metrics.samples.Add(float64(samples))
	s.metrics.latency.Observe(latency.Seconds())
}

func (s *service) RefillFailed() {
	if s.metrics != nil {
		s.metrics.refillErrors.Inc()
	}
}

func (s *service) SinkFailed() {
	if s.metrics != nil {
		s.metrics.sinkErrors.Inc()
	}
}

func (s *service) Latency() LatencySummary {
	return s.latency.summary()
}

func (s *service) Close() error {
	sum := s.latency.summary()
	logger.Debug().
		Int64("refills", sum.Count).
		Dur("p50", sum.P50).
		Dur("p99", sum.P99).
		Dur("max", sum.Max).
		Msg("Refill latency")

	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		return errors.New().Wrap(ErrServiceShutdown, err)
	}
	<-s.done
	return nil
}

// Nop discards every event.
type Nop struct{}

func (Nop) RefillDone(time.Duration, int) {}
func (Nop) RefillFailed()                 {}
func (Nop) SinkFailed()                   {}
func (Nop) Latency() LatencySummary       { return LatencySummary{} }
func (Nop) Close() error                  { return nil }
