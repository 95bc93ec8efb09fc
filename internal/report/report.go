// Package report renders the end of run statistics.
package report

import (
	"io"
	"strconv"
	"strings"

	"codeberg.org/mutker/iiocapture/internal/channel"
	"codeberg.org/mutker/iiocapture/internal/errors"
)

type Style string

const (
	// StyleLava prints one LAVA test case signal per statistic.
	StyleLava Style = "lava"
	// StyleOneLine prints every statistic as key=value on a single line.
	StyleOneLine Style = "oneline"
)

const (
	NoSample   = "no sample acquired"
	energyUnit = "mJ"
	energyKey  = "energy"
)

type Options struct {
	Style      Style
	EnergyOnly bool
}

// stat is one rendered statistic of a channel.
type stat struct {
	name  string
	unit  string
	value float64
}

// statsOf returns the statistics of ch in report order, scaled to physical
// units. Energy is normalised by the sampling frequency.
func statsOf(ch *channel.Channel, samplingFreq int64, energyOnly bool) []stat {
	stats := make([]stat, 0, 4)

	if !energyOnly {
		if ch.Stats.Has(channel.HasMax) {
			stats = append(stats, stat{"max", ch.Unit, float64(ch.Max) * ch.Scale})
		}
		if ch.Stats.Has(channel.HasAvg) {
			stats = append(stats, stat{"avg", ch.Unit, ch.Avg * ch.Scale})
		}
		if ch.Stats.Has(channel.HasMin) {
			stats = append(stats, stat{"min", ch.Unit, float64(ch.Min) * ch.Scale})
		}
	}
	if ch.Stats.Has(channel.HasEnergy) && samplingFreq > 0 {
		stats = append(stats, stat{energyKey, energyUnit, Energy(ch, samplingFreq)})
	}

	return stats
}

// Energy converts the raw energy accumulator to mJ.
func Energy(ch *channel.Channel, samplingFreq int64) float64 {
	return float64(ch.Energy) * ch.Scale / float64(samplingFreq)
}

// Write renders the report for every channel of the table, in table order.
func Write(w io.Writer, table *channel.Table, opts Options) error {
	var b strings.Builder

	switch opts.Style {
	case StyleOneLine:
		oneLine(&b, table, opts.EnergyOnly)
	case StyleLava, "":
		lava(&b, table, opts.EnergyOnly)
	default:
		return errors.New().WithMessage(errors.ErrInvalidArgument, "unknown report style "+string(opts.Style))
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.New().Wrap(ErrWrite, err)
	}
	return nil
}

func lava(b *strings.Builder, table *channel.Table, energyOnly bool) {
	for i := range table.Channels {
		ch := table.At(i)
		stats := statsOf(ch, table.SamplingFreq, energyOnly)
		if len(stats) == 0 {
			continue
		}

		if !ch.Acquired() {
			b.WriteString("<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=")
			b.WriteString(ch.Label)
			b.WriteString(" RESULT=skip> ")
			b.WriteString(NoSample)
			b.WriteByte('\n')
			continue
		}

		for _, st := range stats {
			id := st.name
			if st.name != energyKey {
				id = ch.Label + "_" + st.name
			}
			b.WriteString("<LAVA_SIGNAL_TESTCASE TEST_CASE_ID=")
			b.WriteString(id)
			b.WriteString(" RESULT=pass UNITS=")
			b.WriteString(st.unit)
			b.WriteString(" MEASUREMENT=")
			b.WriteString(formatValue(st.value))
			b.WriteString(">\n")
		}
	}
}

func oneLine(b *strings.Builder, table *channel.Table, energyOnly bool) {
	tokens := make([]string, 0, 4*table.Len())

	for i := range table.Channels {
		ch := table.At(i)
		stats := statsOf(ch, table.SamplingFreq, energyOnly)
		if len(stats) == 0 {
			continue
		}

		if !ch.Acquired() {
			tokens = append(tokens, ch.Label+": "+NoSample)
			continue
		}

		for _, st := range stats {
			key := st.name
			if st.name != energyKey {
				key = ch.Initial() + st.name
			}
			tokens = append(tokens, key+"="+formatValue(st.value))
		}
	}

	b.WriteString(strings.Join(tokens, " "))
	b.WriteByte('\n')
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
