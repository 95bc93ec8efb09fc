package report_test

import (
	"bytes"
	"errors"
	"testing"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/device"
	apperrors "codeberg.org/mutker/iiocapture/internal/errors"
	"codeberg.org/mutker/iiocapture/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTable(t *testing.T, freq int64, ids ...string) *channel.Table {
	t.Helper()

	infos := make([]device.ChannelInfo, len(ids))
	for i, id := range ids {
		infos[i] = device.ChannelInfo{ID: id}
	}
	table, err := channel.NewTable(infos, freq)
	require.NoError(t, err)
	return table
}

func render(t *testing.T, table *channel.Table, opts report.Options) string {
	t.Helper()

	var buf bytes.Buffer
	require.NoError(t, report.Write(&buf, table, opts))
	return buf.String()
}

func TestOneLine(t *testing.T) {
	table := newTable(t, 100, "power2", "current3", "timestamp")

	p := table.At(0)
	p.Scale = 0.1
	p.Max, p.Min, p.Avg, p.Energy, p.Count = 30, 10, 20.0/3.0, 60, 3

	c := table.At(1)
	c.Scale = 0.2
	c.Max, c.Min, c.Count = 5, 5, 3

	out := render(t, table, report.Options{Style: report.StyleOneLine})
	assert.Equal(t, "pmax=3.00 pavg=0.67 pmin=1.00 energy=0.06 cmax=1.00 cmin=1.00\n", out)
}

func TestLava(t *testing.T) {
	table := newTable(t, 10, "power0", "voltage1", "voltage0")

	p := table.At(0)
	p.Scale = 25
	p.Max, p.Min, p.Avg, p.Energy, p.Count = 4, -2, 3, 12, 4

	v := table.At(1)
	v.Scale = 1.25
	v.Max, v.Count = 9600, 4

	table.At(2).Count = 4

	out := render(t, table, report.Options{Style: report.StyleLava})
	assert.Equal(t,
		"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=power_max RESULT=pass UNITS=mW MEASUREMENT=100.00>\n"+
			"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=power_avg RESULT=pass UNITS=mW MEASUREMENT=75.00>\n"+
			"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=power_min RESULT=pass UNITS=mW MEASUREMENT=-50.00>\n"+
			"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=energy RESULT=pass UNITS=mJ MEASUREMENT=30.00>\n"+
			"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=vbus_max RESULT=pass UNITS=mV MEASUREMENT=12000.00>\n",
		out)
}

func TestDefaultStyleIsLava(t *testing.T) {
	table := newTable(t, 0, "current0")
	c := table.At(0)
	c.Max, c.Min, c.Count = 2, 1, 2

	assert.Equal(t,
		render(t, table, report.Options{Style: report.StyleLava}),
		render(t, table, report.Options{}))
}

func TestNoSampleAcquired(t *testing.T) {
	table := newTable(t, 100, "power0", "current1", "voltage0", "timestamp")

	lava := render(t, table, report.Options{Style: report.StyleLava})
	assert.Equal(t,
		"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=power RESULT=skip> no sample acquired\n"+
			"<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=current RESULT=skip> no sample acquired\n",
		lava)
	assert.NotContains(t, lava, "MEASUREMENT")

	oneLine := render(t, table, report.Options{Style: report.StyleOneLine})
	assert.Equal(t, "power: no sample acquired current: no sample acquired\n", oneLine)
	assert.NotContains(t, oneLine, "=")
}

func TestEnergyOnly(t *testing.T) {
	table := newTable(t, 50, "power0", "current1")

	p := table.At(0)
	p.Scale = 2
	p.Max, p.Min, p.Avg, p.Energy, p.Count = 10, 1, 5, 100, 20

	c := table.At(1)
	c.Max, c.Min, c.Count = 3, 1, 20

	opts := report.Options{Style: report.StyleOneLine, EnergyOnly: true}
	assert.Equal(t, "energy=4.00\n", render(t, table, opts))

	opts.Style = report.StyleLava
	assert.Equal(t, "<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=energy RESULT=pass UNITS=mJ MEASUREMENT=4.00>\n",
		render(t, table, opts))
}

func TestEnergyNormalisation(t *testing.T) {
	table := newTable(t, 8, "power0")
	p := table.At(0)
	p.Scale = 0.5
	p.Energy = 1234

	assert.InDelta(t, 77.125, report.Energy(p, table.SamplingFreq), 1e-9)
}

func TestEnergyDisabledWithoutFrequency(t *testing.T) {
	table := newTable(t, 0, "power0")
	p := table.At(0)
	p.Max, p.Min, p.Avg, p.Energy, p.Count = 2, 2, 2, 2, 1

	out := render(t, table, report.Options{Style: report.StyleOneLine})
	assert.Equal(t, "pmax=2.00 pavg=2.00 pmin=2.00\n", out)
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("closed")
}

func TestWriteErrors(t *testing.T) {
	table := newTable(t, 0, "current0")

	err := report.Write(failingWriter{}, table, report.Options{})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, report.ErrWrite))

	err = report.Write(&bytes.Buffer{}, table, report.Options{Style: "xml"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidArgument))
}
