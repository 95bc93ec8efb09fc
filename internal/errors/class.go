package errors

// Class groups error codes by how the run reacts to them.
type Class int

const (
	ClassUnknown Class = iota
	// ClassConfiguration errors abort before the capture loop starts.
	ClassConfiguration
	// ClassDeviceIO errors are fatal to the operation that raised them.
	ClassDeviceIO
	// ClassCapture errors stop the capture loop; statistics are still reported.
	ClassCapture
	// ClassSinkIO errors never stop the capture.
	ClassSinkIO
)

// Process exit codes. A run stopped by a signal exits with the signal number.
const (
	ExitSuccess = 0
	ExitFailure = 1
	ExitIOError = 74
)

var codeClasses = map[ErrorCode]Class{
	ErrInvalidArgument:   ClassConfiguration,
	ErrInvalidConfig:     ClassConfiguration,
	ErrMissingConfig:     ClassConfiguration,
	ErrBindFlags:         ClassConfiguration,
	ErrReadConfig:        ClassConfiguration,
	ErrInvalidLogLevel:   ClassConfiguration,
	ErrAlreadyRunning:    ClassConfiguration,
	ErrDeviceNotFound:    ClassConfiguration,
	ErrTriggerNotFound:   ClassConfiguration,
	ErrNotATrigger:       ClassConfiguration,
	ErrChannelOverflow:   ClassConfiguration,
	ErrNoChannelsEnabled: ClassConfiguration,
	ErrAttrRead:          ClassDeviceIO,
	ErrAttrWrite:         ClassDeviceIO,
	ErrBufferAlloc:       ClassDeviceIO,
	ErrChannelEnable:     ClassDeviceIO,
	ErrBackendInit:       ClassDeviceIO,
	ErrBufferRefill:      ClassCapture,
	ErrSinkOpen:          ClassSinkIO,
	ErrSinkWrite:         ClassSinkIO,
	ErrSinkClose:         ClassSinkIO,
}

// ClassOf returns the class of the first coded error found in err's chain.
func ClassOf(err error) Class {
	var e Error
	if !As(err, &e) {
		return ClassUnknown
	}

	if c, ok := codeClasses[e.Code()]; ok {
		return c
	}

	if inner := e.Unwrap(); inner != nil {
		return ClassOf(inner)
	}

	return ClassUnknown
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	if ClassOf(err) == ClassCapture {
		return ExitIOError
	}

	return ExitFailure
}

// HasCode reports whether any error in err's chain carries code.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		var e Error
		if !As(err, &e) {
			return false
		}
		if e.Code() == code {
			return true
		}
		err = e.Unwrap()
	}

	return false
}
