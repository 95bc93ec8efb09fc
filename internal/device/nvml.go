package device

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
	"github.com/NVIDIA/go-nvml/pkg/nvml"
)

const (
	// Board power is reported in mW; one LSB of the power channel is 100 mW
	// so that a signed 16-bit sample covers more than 3 kW.
	nvmlPowerScale       = 100
	nvmlDefaultFreq      = 10
	nvmlMaxFreq          = 1000
	nvmlPowerChannel     = "power0"
	nvmlTimestampChannel = "timestamp"
)

// powerSource is the subset of nvml.Device the backend needs.
type powerSource interface {
	GetName() (string, nvml.Return)
	GetUUID() (string, nvml.Return)
	GetPowerUsage() (uint32, nvml.Return)
}

// nvmlError represents an NVML-specific error
type nvmlError struct {
	ret nvml.Return
}

func (e nvmlError) Error() string {
	return nvml.ErrorString(e.ret)
}

// newNVMLError creates an error from an NVML return code
func newNVMLError(ret nvml.Return) error {
	if ret == nvml.SUCCESS {
		return nil
	}
	return &nvmlError{ret: ret}
}

// IsNVMLSuccess checks if a Return value indicates success
func IsNVMLSuccess(ret nvml.Return) bool {
	return ret == nvml.SUCCESS
}

// NVML exposes the board power of NVIDIA GPUs as capture devices.
type NVML struct {
	initialized bool
}

func NewNVML() (*NVML, error) {
	errFactory := errors.New()

	if ret := nvml.Init(); !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrBackendInit, newNVMLError(ret))
	}

	return &NVML{initialized: true}, nil
}

// FindDevice accepts a GPU index ("0" or "gpu0"), a UUID or a product name.
func (n *NVML) FindDevice(id string) (Device, error) {
	errFactory := errors.New()

	if idx, err := strconv.Atoi(strings.TrimPrefix(id, "gpu")); err == nil {
		handle, ret := nvml.DeviceGetHandleByIndex(idx)
		if !IsNVMLSuccess(ret) {
			return nil, errFactory.WithData(ErrDeviceNotFound, id)
		}
		return newNVMLDevice(fmt.Sprintf("gpu%d", idx), handle), nil
	}

	if strings.HasPrefix(id, "GPU-") {
		handle, ret := nvml.DeviceGetHandleByUUID(id)
		if !IsNVMLSuccess(ret) {
			return nil, errFactory.WithData(ErrDeviceNotFound, id)
		}
		return newNVMLDevice(id, handle), nil
	}

	count, ret := nvml.DeviceGetCount()
	if !IsNVMLSuccess(ret) {
		return nil, errFactory.Wrap(ErrBackendInit, newNVMLError(ret))
	}
	for i := 0; i < count; i++ {
		handle, ret := nvml.DeviceGetHandleByIndex(i)
		if !IsNVMLSuccess(ret) {
			continue
		}
		if name, ret := handle.GetName(); IsNVMLSuccess(ret) && name == id {
			return newNVMLDevice(fmt.Sprintf("gpu%d", i), handle), nil
		}
	}

	return nil, errFactory.WithData(ErrDeviceNotFound, id)
}

func (n *NVML) Close() error {
	errFactory := errors.New()
	if !n.initialized {
		return nil
	}

	if ret := nvml.Shutdown(); !IsNVMLSuccess(ret) {
		return errFactory.Wrap(errors.ErrShutdownFailed, newNVMLError(ret))
	}
	n.initialized = false

	return nil
}

type nvmlDevice struct {
	id       string
	name     string
	src      powerSource
	now      func() time.Time
	channels []ChannelInfo

	mu           sync.RWMutex
	frequency    int
	oversampling int
}

func newNVMLDevice(id string, src powerSource) *nvmlDevice {
	d := &nvmlDevice{
		id:           id,
		src:          src,
		now:          time.Now,
		frequency:    nvmlDefaultFreq,
		oversampling: 1,
		channels: []ChannelInfo{
			{ID: nvmlPowerChannel, Scale: strconv.Itoa(nvmlPowerScale), HasScale: true, Format: FormatS16},
			{ID: nvmlTimestampChannel, Format: FormatS64},
		},
	}

	if name, ret := src.GetName(); IsNVMLSuccess(ret) {
		d.name = name
		logger.Info().Msgf("Detected GPU: %v", name)
	} else {
		logger.Warn().Msgf("Failed to get GPU name: %v", nvml.ErrorString(ret))
	}

	return d
}

func (d *nvmlDevice) ID() string      { return d.id }
func (d *nvmlDevice) Name() string    { return d.name }
func (d *nvmlDevice) IsTrigger() bool { return false }

func (d *nvmlDevice) Channels() []ChannelInfo {
	out := make([]ChannelInfo, len(d.channels))
	copy(out, d.channels)
	return out
}

func (d *nvmlDevice) ReadAttr(name string) (string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	switch name {
	case AttrSamplingFrequency:
		return strconv.Itoa(d.frequency), nil
	case AttrOversamplingRatio:
		return strconv.Itoa(d.oversampling), nil
	case "name":
		return d.name, nil
	}

	return "", errors.New().WithData(ErrAttrRead, struct {
		Device string
		Attr   string
	}{d.id, name})
}

func (d *nvmlDevice) WriteAttr(name, value string) error {
	errFactory := errors.New()
	d.mu.Lock()
	defer d.mu.Unlock()

	v, err := strconv.Atoi(value)
	if err != nil || v <= 0 {
		return errFactory.WithData(ErrAttrWrite, struct {
			Device string
			Attr   string
			Value  string
		}{d.id, name, value})
	}

	switch name {
	case AttrSamplingFrequency:
		d.frequency = min(v, nvmlMaxFreq)
	case AttrOversamplingRatio:
		d.oversampling = v
	default:
		return errFactory.WithData(ErrAttrWrite, struct {
			Device string
			Attr   string
		}{d.id, name})
	}

	return nil
}

func (d *nvmlDevice) EnableChannel(id string) error {
	return d.setChannel(id, true)
}

func (d *nvmlDevice) DisableChannel(id string) error {
	return d.setChannel(id, false)
}

func (d *nvmlDevice) setChannel(id string, enable bool) error {
	for i := range d.channels {
		if d.channels[i].ID == id {
			d.channels[i].Enabled = enable
			return nil
		}
	}
	return errors.New().WithData(ErrUnknownChannel, id)
}

func (d *nvmlDevice) SetTrigger(trigger Device) error {
	return errors.New().WithData(ErrTriggerNotFound, struct {
		Device  string
		Trigger string
		Reason  string
	}{d.id, trigger.ID(), "GPU devices are paced by their sampling frequency"})
}

func (d *nvmlDevice) CreateBuffer(sampleSets int) (Buffer, error) {
	errFactory := errors.New()

	enabled := EnabledChannels(d.channels)
	if len(enabled) == 0 {
		return nil, errFactory.New(errors.ErrNoChannelsEnabled)
	}

	d.mu.RLock()
	period := time.Second / time.Duration(d.frequency)
	ratio := d.oversampling
	d.mu.RUnlock()

	b := &nvmlBuffer{
		scanBuffer: newScanBuffer(enabled, sampleSets),
		dev:        d,
		period:     period,
		ratio:      ratio,
		sampleSets: sampleSets,
		power:      -1,
		timestamp:  -1,
	}
	for i, ch := range enabled {
		switch ch.ID {
		case nvmlPowerChannel:
			b.power = i
		case nvmlTimestampChannel:
			b.timestamp = i
		}
	}

	return b, nil
}

type nvmlBuffer struct {
	*scanBuffer
	dev        *nvmlDevice
	period     time.Duration
	ratio      int
	sampleSets int
	power      int
	timestamp  int
}

// Refill polls the board power once per sampling period, averaging ratio
// readings per sample.
func (b *nvmlBuffer) Refill(ctx context.Context) error {
	errFactory := errors.New()
	b.sets = 0

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for s := 0; s < b.sampleSets; s++ {
		if s > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		} else if err := ctx.Err(); err != nil {
			return err
		}

		if b.power >= 0 {
			var sum uint64
			for k := 0; k < b.ratio; k++ {
				mw, ret := b.dev.src.GetPowerUsage()
				if !IsNVMLSuccess(ret) {
					return errFactory.Wrap(ErrBufferRefill, newNVMLError(ret))
				}
				sum += uint64(mw)
			}
			b.put(s, b.power, powerToRaw(sum/uint64(b.ratio)))
		}
		if b.timestamp >= 0 {
			b.put(s, b.timestamp, b.dev.now().UnixNano())
		}
	}

	b.sets = b.sampleSets

	return nil
}

func (*nvmlBuffer) Close() error {
	return nil
}

func powerToRaw(milliWatts uint64) int64 {
	raw := (milliWatts + nvmlPowerScale/2) / nvmlPowerScale
	if raw > math.MaxInt16 {
		return math.MaxInt16
	}
	return int64(raw)
}
