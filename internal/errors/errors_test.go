package errors_test

import (
	"fmt"
	"io"
	"testing"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	errFactory := errors.New()

	err := errFactory.New(errors.ErrDeviceNotFound)
	assert.Equal(t, "Device not found", err.Error())

	err = errFactory.WithData(errors.ErrDeviceNotFound, "ina226")
	assert.Equal(t, "Device not found: ina226", err.Error())

	err = errFactory.Wrap(errors.ErrBufferRefill, io.ErrUnexpectedEOF)
	assert.Equal(t, "Unable to refill buffer: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestClassOf(t *testing.T) {
	errFactory := errors.New()

	tests := []struct {
		name string
		err  error
		want errors.Class
	}{
		{"overflow", errFactory.New(errors.ErrChannelOverflow), errors.ClassConfiguration},
		{"attr", errFactory.New(errors.ErrAttrWrite), errors.ClassDeviceIO},
		{"refill", errFactory.New(errors.ErrBufferRefill), errors.ClassCapture},
		{"sink", errFactory.New(errors.ErrSinkWrite), errors.ClassSinkIO},
		{"wrapped", fmt.Errorf("setup: %w", errFactory.New(errors.ErrNotATrigger)), errors.ClassConfiguration},
		{"nested", errFactory.Wrap(errors.ErrInternal, errFactory.New(errors.ErrBufferRefill)), errors.ClassCapture},
		{"plain", io.EOF, errors.ClassUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.ClassOf(tt.err))
		})
	}
}

func TestExitCode(t *testing.T) {
	errFactory := errors.New()

	assert.Equal(t, errors.ExitSuccess, errors.ExitCode(nil))
	assert.Equal(t, errors.ExitFailure, errors.ExitCode(errFactory.New(errors.ErrDeviceNotFound)))
	assert.Equal(t, errors.ExitFailure, errors.ExitCode(errFactory.New(errors.ErrBufferAlloc)))
	assert.Equal(t, errors.ExitIOError, errors.ExitCode(errFactory.New(errors.ErrBufferRefill)))
}

func TestHasCode(t *testing.T) {
	errFactory := errors.New()
	err := errFactory.Wrap(errors.ErrSinkOpen, errFactory.New(errors.ErrInvalidArgument))

	assert.True(t, errors.HasCode(err, errors.ErrSinkOpen))
	assert.True(t, errors.HasCode(err, errors.ErrInvalidArgument))
	assert.False(t, errors.HasCode(err, errors.ErrSinkWrite))
	assert.False(t, errors.HasCode(io.EOF, errors.ErrSinkWrite))
}

func TestErrorMessageWithDataAndCause(t *testing.T) {
	err := errors.New().Wrap(errors.ErrAttrWrite, io.ErrClosedPipe).WithData(struct {
		Device string
		Attr   string
	}{"iio:device0", "in_oversampling_ratio"})

	assert.Equal(t,
		"Failed to write attribute: {Device:iio:device0 Attr:in_oversampling_ratio}: io: read/write on closed pipe",
		err.Error())
	assert.ErrorIs(t, err, io.ErrClosedPipe)

	err = err.WithMessage("oversampling")
	assert.Equal(t, errors.ErrAttrWrite, err.Code())
	assert.Contains(t, err.Error(), "oversampling: {Device:")
}

func TestIsMatchesCode(t *testing.T) {
	errFactory := errors.New()
	err := fmt.Errorf("capture: %w", errFactory.WithMessage(errors.ErrBufferRefill, "device gone"))

	assert.ErrorIs(t, err, errFactory.New(errors.ErrBufferRefill))
	assert.NotErrorIs(t, err, errFactory.New(errors.ErrSinkWrite))
}
