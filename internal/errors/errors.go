package errors

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
)

// Standard library helpers, so callers need a single errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
)

type appError struct {
	code    ErrorCode
	message string
	err     error
	data    any
}

func newError(code ErrorCode, message string, err error, data any) *appError {
	return &appError{code: code, message: message, err: err, data: data}
}

// Error renders "message: data: cause", leaving out the parts that are not
// set. The message defaults to the one registered for the code.
func (e *appError) Error() string {
	var b strings.Builder

	if e.message != "" {
		b.WriteString(e.message)
	} else {
		b.WriteString(GetErrorMessage(e.code))
	}
	if e.data != nil {
		b.WriteString(": ")
		b.WriteString(formatData(e.data))
	}
	if e.err != nil {
		b.WriteString(": ")
		b.WriteString(e.err.Error())
	}

	return b.String()
}

func (e *appError) Code() ErrorCode {
	return e.code
}

func (e *appError) Class() Class {
	if c, ok := codeClasses[e.code]; ok {
		return c
	}
	return ClassUnknown
}

func (e *appError) WithMessage(msg string) Error {
	return newError(e.code, msg, e.err, e.data)
}

func (e *appError) WithData(data any) Error {
	return newError(e.code, e.message, e.err, data)
}

func (e *appError) GetData() any {
	return e.data
}

func (e *appError) Unwrap() error {
	return e.err
}

// Is matches any application error carrying the same code, so a bare
// errors.New().New(code) can be used as a target.
func (e *appError) Is(target error) bool {
	t, ok := target.(*appError)
	return ok && t.code == e.code
}

type defaultFactory struct{}

func (defaultFactory) New(code ErrorCode) Error {
	return newError(code, "", nil, nil)
}

func (defaultFactory) Wrap(code ErrorCode, err error) Error {
	return newError(code, "", err, nil)
}

func (defaultFactory) WithMessage(code ErrorCode, msg string) Error {
	return newError(code, msg, nil, nil)
}

func (defaultFactory) WithData(code ErrorCode, data any) Error {
	return newError(code, "", nil, data)
}

// New returns the error factory.
func New() Factory {
	return defaultFactory{}
}

// formatData prints struct data with field names.
func formatData(data any) string {
	if reflect.Indirect(reflect.ValueOf(data)).Kind() == reflect.Struct {
		return fmt.Sprintf("%+v", data)
	}
	return fmt.Sprint(data)
}
