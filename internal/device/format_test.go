package device_test

import (
	"testing"

	"codeberg.org/mutker/iiocapture/internal/device"
	"codeberg.org/mutker/iiocapture/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	f, err := device.ParseFormat("le:s16/16>>0")
	require.NoError(t, err)
	assert.Equal(t, device.FormatS16, f)
	assert.Equal(t, 2, f.Size())

	f, err = device.ParseFormat("le:s64/64>>0\n")
	require.NoError(t, err)
	assert.Equal(t, device.FormatS64, f)
	assert.Equal(t, 8, f.Size())

	f, err = device.ParseFormat("be:u12/16>>4")
	require.NoError(t, err)
	assert.True(t, f.BigEndian)
	assert.False(t, f.Signed)
	assert.Equal(t, uint(12), f.Bits)
	assert.Equal(t, uint(4), f.Shift)
	assert.Equal(t, "be:u12/16>>4", f.String())
}

func TestParseFormatInvalid(t *testing.T) {
	for _, s := range []string{"", "s16/16>>0", "xx:s16/16>>0", "le:q16/16>>0", "le:s16", "le:s24/24>>0", "le:s16/16X2>>0", "le:s16/8>>0"} {
		_, err := device.ParseFormat(s)
		require.Error(t, err, s)
		assert.True(t, errors.HasCode(err, device.ErrInvalidFormat), s)
	}
}

func TestDecode(t *testing.T) {
	s16 := device.FormatS16
	assert.Equal(t, int64(-20), s16.Decode([]byte{0xec, 0xff}))
	assert.Equal(t, int64(30), s16.Decode([]byte{0x1e, 0x00}))

	u12 := device.Format{BigEndian: true, Bits: 12, StorageBits: 16, Shift: 4}
	assert.Equal(t, int64(0xabc), u12.Decode([]byte{0xab, 0xcf}))

	s12 := device.Format{Signed: true, Bits: 12, StorageBits: 16}
	assert.Equal(t, int64(-1), s12.Decode([]byte{0xff, 0x0f}))
}

func TestEncodeRoundTrip(t *testing.T) {
	raw := make([]byte, 8)
	for _, v := range []int64{0, 1, -1, 2_000_000, -1 << 40} {
		device.FormatS64.Encode(raw, v)
		assert.Equal(t, v, device.FormatS64.Decode(raw))
	}

	raw = raw[:2]
	device.FormatS16.Encode(raw, -20)
	assert.Equal(t, []byte{0xec, 0xff}, raw)
}
