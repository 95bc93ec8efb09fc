package capture

import "codeberg.org/mutker/iiocapture/internal/errors"

const (
	ErrRefill    = errors.ErrBufferRefill
	ErrSinkWrite = errors.ErrSinkWrite
)
