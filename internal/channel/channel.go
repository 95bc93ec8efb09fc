// Package channel classifies device scan elements and holds their running
// statistics.
package channel

import (
	"math"
	"strconv"
	"strings"

	"codeberg.org/mutker/iiocapture/internal/device"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/logger"
)

// MaxChannels is the capacity of a Table.
const MaxChannels = 10

// Timestamps are reported by the driver in ns and displayed in ms.
const timestampScale = 1.0 / 1_000_000.0

const ErrTableOverflow = errors.ErrChannelOverflow

type Role int

const (
	Unclassified Role = iota
	Power
	Current
	BusVoltage
	ShuntVoltage
	Timestamp
)

func (r Role) String() string {
	switch r {
	case Power:
		return "power"
	case Current:
		return "current"
	case BusVoltage:
		return "bus_voltage"
	case ShuntVoltage:
		return "shunt_voltage"
	case Timestamp:
		return "timestamp"
	}
	return "unclassified"
}

// Stats is the set of statistics a channel tracks.
type Stats uint8

const (
	HasMin Stats = 1 << iota
	HasMax
	HasAvg
	HasEnergy
)

func (s Stats) Has(flag Stats) bool {
	return s&flag != 0
}

// Channel is one entry of the table. Its descriptor fields are fixed at
// classification; only the statistics fields change while capturing.
type Channel struct {
	Index int
	ID    string
	Role  Role
	Label string
	Unit  string
	Scale float64
	Stats Stats

	Min    int64
	Max    int64
	Avg    float64
	Energy int64
	Count  int64
}

// Reset puts the statistics back to their initial sentinels: the first
// sample always establishes both extrema.
func (c *Channel) Reset() {
	c.Min = math.MaxInt64
	c.Max = 0
	c.Avg = 0
	c.Energy = 0
	c.Count = 0
}

// Acquired reports whether the channel has folded in at least one sample.
func (c *Channel) Acquired() bool {
	return c.Count > 0
}

// Initial returns the first letter of the label, used as a key prefix in
// compact reports.
func (c *Channel) Initial() string {
	if c.Label == "" {
		return ""
	}
	return c.Label[:1]
}

type descriptor struct {
	prefix string
	role   Role
	label  string
	unit   string
	stats  Stats
}

// Classification order matters: the first matching prefix wins.
var descriptors = []descriptor{
	{"power", Power, "power", "mW", HasMin | HasMax | HasAvg},
	{"current", Current, "current", "mA", HasMin | HasMax},
	{"voltage1", BusVoltage, "vbus", "mV", HasMax},
	{"voltage0", ShuntVoltage, "vshunt", "mV", 0},
	{"timestamp", Timestamp, "timestamp", "ms", 0},
}

// Classify derives role, label, unit and tracked statistics from a channel
// identifier. Energy is only tracked by power channels when the sampling
// frequency is known.
func Classify(id string, samplingFreq int64) (Role, string, string, Stats) {
	for _, d := range descriptors {
		if strings.HasPrefix(id, d.prefix) {
			stats := d.stats
			if d.role == Power && samplingFreq > 0 {
				stats |= HasEnergy
			}
			return d.role, d.label, d.unit, stats
		}
	}
	return Unclassified, id, "", 0
}

// Table is the channel descriptor table, in scan order. The position of a
// channel in the table is the index the capture buffer reports samples with.
type Table struct {
	Channels     []Channel
	SamplingFreq int64
}

// NewTable classifies the enabled channels of a device.
func NewTable(infos []device.ChannelInfo, samplingFreq int64) (*Table, error) {
	errFactory := errors.New()

	if len(infos) > MaxChannels {
		return nil, errFactory.WithData(ErrTableOverflow, struct {
			Channels int
			Capacity int
		}{len(infos), MaxChannels})
	}

	t := &Table{
		Channels:     make([]Channel, len(infos)),
		SamplingFreq: samplingFreq,
	}

	for i, info := range infos {
		ch := &t.Channels[i]
		ch.Index = i
		ch.ID = info.ID
		ch.Role, ch.Label, ch.Unit, ch.Stats = Classify(info.ID, samplingFreq)
		ch.Scale = parseScale(info)
		if ch.Role == Timestamp {
			ch.Scale = timestampScale
		}
		ch.Reset()

		logger.Debug().
			Str("id", ch.ID).
			Str("role", ch.Role.String()).
			Float64("scale", ch.Scale).
			Uint8("stats", uint8(ch.Stats)).
			Msg("Channel classified")
	}

	return t, nil
}

// Len returns the number of channels.
func (t *Table) Len() int {
	return len(t.Channels)
}

// At returns the channel at idx.
func (t *Table) At(idx int) *Channel {
	return &t.Channels[idx]
}

// TimestampIndex returns the index of the first timestamp channel, or -1.
func (t *Table) TimestampIndex() int {
	for i := range t.Channels {
		if t.Channels[i].Role == Timestamp {
			return i
		}
	}
	return -1
}

func parseScale(info device.ChannelInfo) float64 {
	if !info.HasScale {
		return 1.0
	}

	scale, err := strconv.ParseFloat(strings.TrimSpace(info.Scale), 64)
	if err != nil {
		logger.Debug().Str("id", info.ID).Str("scale", info.Scale).Msg("Unparsable scale, using 1.0")
		return 1.0
	}
	return scale
}
