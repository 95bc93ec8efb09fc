package device

type slot struct {
	offset int
	size   int
	format Format
}

// scanBuffer holds sample sets laid out the way the IIO core does: every
// enabled channel aligned on its own storage size, the set padded to the
// largest alignment.
type scanBuffer struct {
	slots   []slot
	setSize int
	data    []byte
	sets    int
}

func newScanBuffer(channels []ChannelInfo, sampleSets int) *scanBuffer {
	b := &scanBuffer{slots: make([]slot, 0, len(channels))}

	offset, align := 0, 1
	for _, ch := range channels {
		size := ch.Format.Size()
		if rem := offset % size; rem != 0 {
			offset += size - rem
		}
		b.slots = append(b.slots, slot{offset: offset, size: size, format: ch.Format})
		offset += size
		align = max(align, size)
	}
	if rem := offset % align; rem != 0 {
		offset += align - rem
	}

	b.setSize = offset
	b.data = make([]byte, offset*sampleSets)

	return b
}

func (b *scanBuffer) ForEachSample(fn SampleFunc) {
	for s := 0; s < b.sets; s++ {
		set := b.data[s*b.setSize : (s+1)*b.setSize]
		for i, sl := range b.slots {
			raw := set[sl.offset : sl.offset+sl.size]
			fn(i, sl.format.Decode(raw), raw)
		}
	}
}

func (b *scanBuffer) SampleSets() int {
	return b.sets
}

// put encodes value into channel idx of sample set s.
func (b *scanBuffer) put(s, idx int, value int64) {
	sl := b.slots[idx]
	off := s*b.setSize + sl.offset
	sl.format.Encode(b.data[off:off+sl.size], value)
}
