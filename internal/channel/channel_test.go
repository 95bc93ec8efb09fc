package channel_test

import (
	"math"
	"testing"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/device"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		id    string
		role  channel.Role
		label string
		unit  string
		stats channel.Stats
	}{
		{"power2", channel.Power, "power", "mW", channel.HasMin | channel.HasMax | channel.HasAvg | channel.HasEnergy},
		{"current3", channel.Current, "current", "mA", channel.HasMin | channel.HasMax},
		{"voltage1", channel.BusVoltage, "vbus", "mV", channel.HasMax},
		{"voltage0", channel.ShuntVoltage, "vshunt", "mV", 0},
		{"timestamp", channel.Timestamp, "timestamp", "ms", 0},
		{"temp0", channel.Unclassified, "temp0", "", 0},
		{"Power0", channel.Unclassified, "Power0", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			role, label, unit, stats := channel.Classify(tt.id, 100)
			assert.Equal(t, tt.role, role)
			assert.Equal(t, tt.label, label)
			assert.Equal(t, tt.unit, unit)
			assert.Equal(t, tt.stats, stats)
		})
	}
}

func TestClassifyPowerWithoutFrequency(t *testing.T) {
	role, _, _, stats := channel.Classify("power0", 0)
	assert.Equal(t, channel.Power, role)
	assert.False(t, stats.Has(channel.HasEnergy))
	assert.True(t, stats.Has(channel.HasAvg))
}

func TestNewTable(t *testing.T) {
	infos := []device.ChannelInfo{
		{ID: "voltage0", Scale: "0.0025", HasScale: true},
		{ID: "voltage1", Scale: "1.25", HasScale: true},
		{ID: "power2", Scale: "25", HasScale: true},
		{ID: "current3", Scale: "garbage", HasScale: true},
		{ID: "timestamp", Scale: "1", HasScale: true},
		{ID: "humidity0"},
	}

	table, err := channel.NewTable(infos, 0)
	require.NoError(t, err)
	require.Equal(t, 6, table.Len())

	for i := range table.Channels {
		ch := table.At(i)
		assert.Equal(t, i, ch.Index)
		assert.Equal(t, int64(math.MaxInt64), ch.Min)
		assert.Zero(t, ch.Max)
		assert.False(t, ch.Acquired())
	}

	assert.Equal(t, 0.0025, table.At(0).Scale)
	assert.Equal(t, 25.0, table.At(2).Scale)
	assert.Equal(t, 1.0, table.At(3).Scale, "unparsable scale defaults to 1.0")
	assert.Equal(t, 1e-6, table.At(4).Scale, "timestamp is converted from ns to ms")
	assert.Equal(t, 1.0, table.At(5).Scale, "missing scale defaults to 1.0")
	assert.Equal(t, channel.Unclassified, table.At(5).Role)
	assert.False(t, table.At(2).Stats.Has(channel.HasEnergy))
	assert.Equal(t, 4, table.TimestampIndex())
	assert.Equal(t, "v", table.At(1).Initial())
}

func TestNewTableOverflow(t *testing.T) {
	infos := make([]device.ChannelInfo, channel.MaxChannels+1)
	for i := range infos {
		infos[i].ID = "voltage0"
	}

	_, err := channel.NewTable(infos, 100)
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, channel.ErrTableOverflow))
	assert.Equal(t, errors.ClassConfiguration, errors.ClassOf(err))

	_, err = channel.NewTable(infos[:channel.MaxChannels], 100)
	assert.NoError(t, err)
}
