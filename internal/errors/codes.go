package errors

// ErrorCode identifies an error kind. Codes are stable and logged as is.
type ErrorCode string

// Common error codes
const (
	// System errors
	ErrInternal         ErrorCode = "internal_error"
	ErrInvalidArgument  ErrorCode = "invalid_argument"
	ErrNotImplemented   ErrorCode = "not_implemented"
	ErrInvalidOperation ErrorCode = "invalid_operation"

	// Configuration errors
	ErrInvalidConfig     ErrorCode = "invalid_configuration"
	ErrMissingConfig     ErrorCode = "missing_configuration"
	ErrBindFlags         ErrorCode = "bind_flags_failed"
	ErrReadConfig        ErrorCode = "read_config_failed"
	ErrInvalidLogLevel   ErrorCode = "invalid_log_level"
	ErrAlreadyRunning    ErrorCode = "already_running"
	ErrDeviceNotFound    ErrorCode = "device_not_found"
	ErrTriggerNotFound   ErrorCode = "trigger_not_found"
	ErrNotATrigger       ErrorCode = "not_a_trigger"
	ErrChannelOverflow   ErrorCode = "channel_table_overflow"
	ErrNoChannelsEnabled ErrorCode = "no_channels_enabled"

	// Device I/O errors
	ErrAttrRead       ErrorCode = "attr_read_failed"
	ErrAttrWrite      ErrorCode = "attr_write_failed"
	ErrBufferAlloc    ErrorCode = "buffer_alloc_failed"
	ErrChannelEnable  ErrorCode = "channel_enable_failed"
	ErrBackendInit    ErrorCode = "backend_init_failed"
	ErrShutdownFailed ErrorCode = "shutdown_failed"

	// Capture errors
	ErrBufferRefill ErrorCode = "buffer_refill_failed"

	// Sink errors
	ErrSinkOpen  ErrorCode = "sink_open_failed"
	ErrSinkWrite ErrorCode = "sink_write_failed"
	ErrSinkClose ErrorCode = "sink_close_failed"

	// Telemetry errors
	ErrInitTelemetry ErrorCode = "init_telemetry_failed"
)

// Common error messages
var errorMessages = map[ErrorCode]string{
	ErrInternal:          "Internal error occurred",
	ErrInvalidArgument:   "Invalid argument provided",
	ErrNotImplemented:    "Operation not implemented",
	ErrInvalidOperation:  "Invalid operation",
	ErrInvalidConfig:     "Invalid configuration",
	ErrMissingConfig:     "Missing configuration",
	ErrBindFlags:         "Failed to bind flags",
	ErrReadConfig:        "Failed to read config file",
	ErrInvalidLogLevel:   "Invalid log level",
	ErrAlreadyRunning:    "A capture is already running on this device",
	ErrDeviceNotFound:    "Device not found",
	ErrTriggerNotFound:   "Trigger not found",
	ErrNotATrigger:       "Device is not a trigger",
	ErrChannelOverflow:   "Too many channels for the channel table",
	ErrNoChannelsEnabled: "No channel enabled",
	ErrAttrRead:          "Failed to read attribute",
	ErrAttrWrite:         "Failed to write attribute",
	ErrBufferAlloc:       "Unable to allocate buffer",
	ErrChannelEnable:     "Failed to enable channel",
	ErrBackendInit:       "Failed to initialize device backend",
	ErrShutdownFailed:    "Shutdown failed",
	ErrBufferRefill:      "Unable to refill buffer",
	ErrSinkOpen:          "Failed to open output",
	ErrSinkWrite:         "Failed to write output",
	ErrSinkClose:         "Failed to close output",
	ErrInitTelemetry:     "Failed to initialize telemetry",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code ErrorCode) string {
	if msg, ok := errorMessages[code]; ok {
		return msg
	}

	return string(code)
}
