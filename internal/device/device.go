// Package device is the boundary to the sensor hardware: device lookup,
// attribute access, channel enabling and the capture buffer.
package device

import (
	"context"
)

// Well-known device attributes.
const (
	AttrOversamplingRatio = "in_oversampling_ratio"
	AttrSamplingFrequency = "in_sampling_frequency"
	AttrTriggerFrequency  = "sampling_frequency"
	AttrScale             = "scale"
)

// ChannelInfo describes one scan element as reported by the device.
type ChannelInfo struct {
	ID       string
	Name     string
	Scale    string
	HasScale bool
	Format   Format
	Enabled  bool
}

// SampleFunc receives one channel reading of a sample set. idx is the
// position of the channel among the enabled channels, in scan order. raw
// aliases the buffer and is only valid for the duration of the call.
type SampleFunc func(idx int, value int64, raw []byte)

// Buffer is an allocated capture buffer.
type Buffer interface {
	// Refill blocks until a full block of sample sets is available. It
	// returns io.EOF when the source is exhausted and ctx.Err() when the
	// context is cancelled. On error no sample of the attempt is kept.
	Refill(ctx context.Context) error
	// ForEachSample walks the sample sets of the last successful refill.
	ForEachSample(fn SampleFunc)
	// SampleSets returns the number of sample sets of the last refill.
	SampleSets() int
	Close() error
}

// Device is one capture device, or a trigger.
type Device interface {
	ID() string
	Name() string
	IsTrigger() bool
	// Channels returns the scan elements in scan order.
	Channels() []ChannelInfo
	ReadAttr(name string) (string, error)
	WriteAttr(name, value string) error
	EnableChannel(id string) error
	DisableChannel(id string) error
	SetTrigger(trigger Device) error
	CreateBuffer(sampleSets int) (Buffer, error)
}

// Backend gives access to the devices of one context.
type Backend interface {
	FindDevice(id string) (Device, error)
	Close() error
}

// EnabledChannels filters channels down to the enabled ones, preserving
// scan order.
func EnabledChannels(channels []ChannelInfo) []ChannelInfo {
	enabled := make([]ChannelInfo, 0, len(channels))
	for _, ch := range channels {
		if ch.Enabled {
			enabled = append(enabled, ch)
		}
	}
	return enabled
}

// Matches reports whether a channel filter entry selects the channel.
func (c ChannelInfo) Matches(filter string) bool {
	return filter == c.ID || (c.Name != "" && filter == c.Name)
}
