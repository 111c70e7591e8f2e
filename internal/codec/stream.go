package codec

// StreamCursor tracks a position within an interleaved buffer shared by
// several channels, per spec §4.5's "Stream read/write" rule: the cursor
// advances by a fixed step (the device's total sample size) and a
// channel's data lives at a fixed offset ("entry point") within each step.
type StreamCursor struct {
	Buf   []byte
	Step  int // bytes per interleaved sample group, across all channels
	Entry int // this channel's byte offset within one step
}

// groupWidth is the number of bytes one logical sample group of this
// format occupies: w*repeat.
func (f Format) groupWidth() int { return f.byteWidth() * int(f.Repeat) }

// ReadRaw copies raw (unconverted) sample groups for this channel from the
// cursor into dst, advancing until the cursor is exhausted or dst is full.
// It returns the number of bytes copied.
func (f Format) ReadRaw(c *StreamCursor, dst []byte) int {
	gw := f.groupWidth()
	n := 0
	for pos := c.Entry; pos+gw <= len(c.Buf) && n+gw <= len(dst); pos += c.Step {
		copy(dst[n:n+gw], c.Buf[pos:pos+gw])
		n += gw
	}
	return n
}

// WriteRaw is the symmetric counterpart: it copies raw sample groups from
// src into the cursor's buffer at this channel's interleaved positions.
func (f Format) WriteRaw(c *StreamCursor, src []byte) int {
	gw := f.groupWidth()
	n := 0
	for pos := c.Entry; pos+gw <= len(c.Buf) && n+gw <= len(src); pos += c.Step {
		copy(c.Buf[pos:pos+gw], src[n:n+gw])
		n += gw
	}
	return n
}

// Read decodes (converted) sample groups for this channel out of the
// cursor into dst. dst is filled with host-native sample words, gw bytes
// per group, for as many groups as fit in both the cursor and dst.
func (f Format) Read(c *StreamCursor, dst []byte) (int, error) {
	gw := f.groupWidth()
	n := 0
	for pos := c.Entry; pos+gw <= len(c.Buf) && n+gw <= len(dst); pos += c.Step {
		if err := f.Convert(dst[n:n+gw], c.Buf[pos:pos+gw]); err != nil {
			return n, err
		}
		n += gw
	}
	return n, nil
}

// Write is the symmetric counterpart of Read: it encodes host-native
// sample words from src into the cursor's interleaved buffer.
func (f Format) Write(c *StreamCursor, src []byte) (int, error) {
	gw := f.groupWidth()
	n := 0
	for pos := c.Entry; pos+gw <= len(c.Buf) && n+gw <= len(src); pos += c.Step {
		if err := f.ConvertInverse(c.Buf[pos:pos+gw], src[n:n+gw]); err != nil {
			return n, err
		}
		n += gw
	}
	return n, nil
}
