package codec

import (
	"bytes"
	"testing"
)

// Scenario 1 (spec §8): sign extension.
func TestConvertSignExtension(t *testing.T) {
	f := Format{Bits: 12, Length: 16, Shift: 0, IsSigned: true, Repeat: 1}
	src := []byte{0xFF, 0x0F}
	dst := make([]byte, 2)
	if err := f.Convert(dst, src); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, []byte{0xFF, 0xFF}) {
		t.Fatalf("decoded = % x, want ff ff", dst)
	}

	back := make([]byte, 2)
	if err := f.ConvertInverse(back, dst); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, src) {
		t.Fatalf("encoded = % x, want % x", back, src)
	}
}

// Scenario 2 (spec §8): shift + mask.
func TestConvertShiftAndMask(t *testing.T) {
	f := Format{Bits: 10, Length: 16, Shift: 2, IsSigned: false, Repeat: 1}
	src := []byte{0xCC, 0x03}
	dst := make([]byte, 2)
	if err := f.Convert(dst, src); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(dst, []byte{0xF3, 0x00}) {
		t.Fatalf("decoded = % x, want f3 00", dst)
	}

	back := make([]byte, 2)
	if err := f.ConvertInverse(back, dst); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back, src) {
		t.Fatalf("encoded = % x, want % x", back, src)
	}
}

// Scenario 3 (spec §8): endian swap + repeat.
func TestConvertEndianSwapRepeat(t *testing.T) {
	f := Format{Bits: 16, Length: 16, Shift: 0, IsSigned: false, IsBigEndian: true, Repeat: 3, IsFullyDefined: true}
	src := []byte{0x00, 0x01, 0x00, 0x02, 0x00, 0x03}
	dst := make([]byte, 6)
	if err := f.Convert(dst, src); err != nil {
		t.Fatal(err)
	}
	want := []byte{0x01, 0x00, 0x02, 0x00, 0x03, 0x00}
	if !bytes.Equal(dst, want) {
		t.Fatalf("decoded = % x, want % x", dst, want)
	}
}

// Invariant: round-trip preserves bits within [shift, shift+bits) and
// zeroes the rest of the encoded output, across a spread of formats.
func TestRoundTripInvariant(t *testing.T) {
	cases := []Format{
		{Bits: 8, Length: 16, Shift: 4, IsSigned: false, Repeat: 1},
		{Bits: 12, Length: 16, Shift: 0, IsSigned: true, Repeat: 1},
		{Bits: 24, Length: 32, Shift: 4, IsSigned: true, Repeat: 1},
		{Bits: 4, Length: 8, Shift: 2, IsSigned: false, Repeat: 2},
	}
	for _, f := range cases {
		w := f.byteWidth()
		for v := uint64(0); v < (uint64(1) << f.Bits); v += (uint64(1) << f.Bits) / 17 + 1 {
			src := make([]byte, w*int(f.Repeat))
			for i := 0; i < int(f.Repeat); i++ {
				masked := v & lowMask(f.Bits)
				shifted := masked << f.Shift
				uintToWireBytes(src[i*w:(i+1)*w], shifted, w, f.IsBigEndian)
			}
			dst := make([]byte, w*int(f.Repeat))
			if err := f.Convert(dst, src); err != nil {
				t.Fatal(err)
			}
			enc := make([]byte, w*int(f.Repeat))
			if err := f.ConvertInverse(enc, dst); err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(enc, src) {
				t.Fatalf("format %+v value %d: round trip % x != % x", f, v, enc, src)
			}
		}
	}
}

// Invariant: is_signed sign-extends bit bits-1 correctly across the whole
// Length-wide host representation.
func TestSignExtendInvariant(t *testing.T) {
	f := Format{Bits: 6, Length: 16, IsSigned: true, Repeat: 1}
	w := f.byteWidth()
	// value with the sign bit (bit 5) set: 0b100000 = 0x20
	src := make([]byte, w)
	uintToWireBytes(src, 0x20, w, f.IsBigEndian)
	dst := make([]byte, w)
	if err := f.Convert(dst, src); err != nil {
		t.Fatal(err)
	}
	got := hostBytesToUint(dst, w)
	want := uint64(0xFFE0) // sign-extended to 16 bits
	if got != want {
		t.Fatalf("sign extend: got %#x want %#x", got, want)
	}
}
