package codec

import (
	"fmt"
	"strings"
)

// Mask is the channels bitset from spec §3: ceil(N/32) 32-bit words,
// little-endian word-indexing internally. The legacy hex text form is
// serialised most-significant-word first; the binary raw form is a
// little-endian uint32 array with word 0 first.
type Mask struct {
	words []uint32
}

// NewMask allocates a mask sized for nChannels scan elements.
func NewMask(nChannels int) *Mask {
	n := (nChannels + 31) / 32
	if n == 0 {
		n = 1
	}
	return &Mask{words: make([]uint32, n)}
}

// NumWords reports the word count.
func (m *Mask) NumWords() int { return len(m.words) }

// Set marks channel bit i enabled.
func (m *Mask) Set(i int) {
	w, b := i/32, uint(i%32)
	m.words[w] |= 1 << b
}

// Clear marks channel bit i disabled.
func (m *Mask) Clear(i int) {
	w, b := i/32, uint(i%32)
	m.words[w] &^= 1 << b
}

// Test reports whether channel bit i is set.
func (m *Mask) Test(i int) bool {
	w, b := i/32, uint(i%32)
	if w >= len(m.words) {
		return false
	}
	return m.words[w]&(1<<b) != 0
}

// ParseMaskHex parses the legacy wire form: N ASCII hex groups of 8
// characters each, most-significant-word first, with no separators other
// than the groups being fixed width (spec §6 "Mask serialisation"). The
// trailing '\n' is not part of s.
func ParseMaskHex(s string) (*Mask, error) {
	s = strings.TrimRight(s, "\r\n")
	if len(s)%8 != 0 || len(s) == 0 {
		return nil, fmt.Errorf("codec: mask %q is not a multiple of 8 hex digits", s)
	}
	n := len(s) / 8
	m := &Mask{words: make([]uint32, n)}
	for i := 0; i < n; i++ {
		group := s[i*8 : i*8+8]
		var v uint32
		if _, err := fmt.Sscanf(group, "%08x", &v); err != nil {
			return nil, fmt.Errorf("codec: mask group %q: %w", group, err)
		}
		// Groups arrive most-significant-word-first; words[] is indexed
		// least-significant-word-first (word 0 covers channels 0..31).
		m.words[n-1-i] = v
	}
	return m, nil
}

// String renders the mask back to its legacy wire text form (without the
// trailing newline); parsing then re-serialising is byte-identical per
// spec §8.
func (m *Mask) String() string {
	var b strings.Builder
	for i := len(m.words) - 1; i >= 0; i-- {
		fmt.Fprintf(&b, "%08x", m.words[i])
	}
	return b.String()
}

// MarshalBinary renders the mask as the binary-mode wire form: a
// concatenated little-endian uint32 array, word 0 (channels 0..31) first.
func (m *Mask) MarshalBinary() []byte {
	out := make([]byte, 4*len(m.words))
	for i, w := range m.words {
		out[i*4+0] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}
	return out
}

// ParseMaskBinary parses the binary-mode wire form.
func ParseMaskBinary(b []byte) (*Mask, error) {
	if len(b)%4 != 0 || len(b) == 0 {
		return nil, fmt.Errorf("codec: binary mask length %d not a multiple of 4", len(b))
	}
	n := len(b) / 4
	m := &Mask{words: make([]uint32, n)}
	for i := 0; i < n; i++ {
		m.words[i] = uint32(b[i*4]) | uint32(b[i*4+1])<<8 | uint32(b[i*4+2])<<16 | uint32(b[i*4+3])<<24
	}
	return m, nil
}
