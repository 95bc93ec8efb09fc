package telemetry

import "codeberg.org/mutker/iiocapture/internal/errors"

const (
	ErrInit            = errors.ErrInitTelemetry
	ErrListen          = errors.ErrorCode("telemetry_listen_failed")
	ErrServiceShutdown = errors.ErrorCode("telemetry_service_shutdown_failed")
)
