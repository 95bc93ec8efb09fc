package device

import "codeberg.org/mutker/iiocapture/internal/errors"

const (
	ErrDeviceNotFound  = errors.ErrDeviceNotFound
	ErrTriggerNotFound = errors.ErrTriggerNotFound
	ErrNotATrigger     = errors.ErrNotATrigger
	ErrAttrRead        = errors.ErrAttrRead
	ErrAttrWrite       = errors.ErrAttrWrite
	ErrBufferAlloc     = errors.ErrBufferAlloc
	ErrBufferRefill    = errors.ErrBufferRefill
	ErrChannelEnable   = errors.ErrChannelEnable
	ErrBackendInit     = errors.ErrBackendInit

	ErrInvalidFormat   = errors.ErrorCode("device_invalid_scan_format")
	ErrUnknownChannel  = errors.ErrorCode("device_unknown_channel")
	ErrScanElementRead = errors.ErrorCode("device_scan_element_read_failed")
)
