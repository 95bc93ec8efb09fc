package errors

// Error is an application error: a stable code, its class, an optional
// human message, structured data and the wrapped cause.
type Error interface {
	error
	Code() ErrorCode
	Class() Class
	WithMessage(msg string) Error
	WithData(data any) Error
	GetData() any
	Unwrap() error
}

// Factory builds application errors.
type Factory interface {
	New(code ErrorCode) Error
	Wrap(code ErrorCode, err error) Error
	WithMessage(code ErrorCode, msg string) Error
	WithData(code ErrorCode, data any) Error
}
