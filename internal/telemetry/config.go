package telemetry

import "time"

const (
	namespace       = "iiocapture"
	metricsPath     = "/metrics"
	shutdownTimeout = 2 * time.Second
)

type Config struct {
	// Addr is the listen address of the metrics endpoint. Empty disables
	// the Prometheus exporter; latencies are still summarised.
	Addr string
	// Device labels every exported series.
	Device string
	RunID  string
}
