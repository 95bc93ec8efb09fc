package device

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"codeberg.org/mutker/iiocapture/internal/errors"
)

// Format is the storage format of a scan element, as found in the
// scan_elements/<channel>_type attribute, e.g. "le:s16/16>>0".
type Format struct {
	BigEndian   bool
	Signed      bool
	Bits        uint
	StorageBits uint
	Shift       uint
}

// Common formats.
var (
	FormatS16 = Format{Signed: true, Bits: 16, StorageBits: 16}
	FormatS64 = Format{Signed: true, Bits: 64, StorageBits: 64}
)

// ParseFormat parses an IIO scan element type string.
func ParseFormat(s string) (Format, error) {
	errFactory := errors.New()
	invalid := func(reason string) (Format, error) {
		return Format{}, errFactory.WithData(ErrInvalidFormat, fmt.Sprintf("%q: %s", s, reason))
	}

	endian, rest, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok || len(rest) < 2 {
		return invalid("missing endianness")
	}

	var f Format
	switch endian {
	case "le":
	case "be":
		f.BigEndian = true
	default:
		return invalid("unknown endianness")
	}

	switch rest[0] {
	case 's', 'S':
		f.Signed = true
	case 'u', 'U':
	default:
		return invalid("unknown sign")
	}
	rest = rest[1:]

	bits, rest, ok := strings.Cut(rest, "/")
	if !ok {
		return invalid("missing storage bits")
	}
	storage, shift, _ := strings.Cut(rest, ">>")
	if strings.ContainsRune(storage, 'X') {
		return invalid("repeated scan elements are not supported")
	}

	b, err := strconv.ParseUint(bits, 10, 8)
	if err != nil {
		return invalid("bad bit count")
	}
	sb, err := strconv.ParseUint(storage, 10, 8)
	if err != nil {
		return invalid("bad storage bit count")
	}
	var sh uint64
	if shift != "" {
		if sh, err = strconv.ParseUint(shift, 10, 8); err != nil {
			return invalid("bad shift")
		}
	}

	f.Bits, f.StorageBits, f.Shift = uint(b), uint(sb), uint(sh)
	switch f.StorageBits {
	case 8, 16, 32, 64:
	default:
		return invalid("storage must be 8, 16, 32 or 64 bits")
	}
	if f.Bits == 0 || f.Bits+f.Shift > f.StorageBits {
		return invalid("bits do not fit storage")
	}

	return f, nil
}

// Size returns the storage size in bytes.
func (f Format) Size() int {
	return int(f.StorageBits / 8)
}

// String renders the format the way the kernel does.
func (f Format) String() string {
	endian, sign := "le", 'u'
	if f.BigEndian {
		endian = "be"
	}
	if f.Signed {
		sign = 's'
	}
	return fmt.Sprintf("%s:%c%d/%d>>%d", endian, sign, f.Bits, f.StorageBits, f.Shift)
}

// Decode extracts the sample value from its raw storage bytes.
func (f Format) Decode(raw []byte) int64 {
	var order binary.ByteOrder = binary.LittleEndian
	if f.BigEndian {
		order = binary.BigEndian
	}

	var v uint64
	switch f.StorageBits {
	case 8:
		v = uint64(raw[0])
	case 16:
		v = uint64(order.Uint16(raw))
	case 32:
		v = uint64(order.Uint32(raw))
	default:
		v = order.Uint64(raw)
	}

	v >>= f.Shift
	if f.Bits < 64 {
		v &= 1<<f.Bits - 1
		if f.Signed && v&(1<<(f.Bits-1)) != 0 {
			v |= ^uint64(0) << f.Bits
		}
	}

	return int64(v)
}

// Encode is the inverse of Decode; it is used by backends that synthesize
// sample sets.
func (f Format) Encode(raw []byte, value int64) {
	var order binary.ByteOrder = binary.LittleEndian
	if f.BigEndian {
		order = binary.BigEndian
	}

	v := uint64(value)
	if f.Bits < 64 {
		v &= 1<<f.Bits - 1
	}
	v <<= f.Shift

	switch f.StorageBits {
	case 8:
		raw[0] = byte(v)
	case 16:
		order.PutUint16(raw, uint16(v))
	case 32:
		order.PutUint32(raw, uint32(v))
	default:
		order.PutUint64(raw, v)
	}
}
