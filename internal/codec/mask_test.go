package codec

import "testing"

// Scenario 4 (spec §8): mask serialisation.
func TestMaskSerialisation(t *testing.T) {
	m := &Mask{words: []uint32{0x00000001, 0xA5A5A5A5, 0x00000000}}
	got := m.String()
	want := "00000000a5a5a5a500000001"
	if got != want {
		t.Fatalf("String() = %q, want %q", got, want)
	}
}

// Invariant: parse-then-reserialise round trips byte-identically.
func TestMaskRoundTrip(t *testing.T) {
	cases := []string{
		"00000000a5a5a5a500000001",
		"00000003",
		"ffffffffffffffff",
	}
	for _, s := range cases {
		m, err := ParseMaskHex(s)
		if err != nil {
			t.Fatalf("ParseMaskHex(%q): %v", s, err)
		}
		if got := m.String(); got != s {
			t.Fatalf("round trip %q -> %q", s, got)
		}
	}
}

func TestMaskBinaryRoundTrip(t *testing.T) {
	m, err := ParseMaskHex("00000000a5a5a5a500000001")
	if err != nil {
		t.Fatal(err)
	}
	bin := m.MarshalBinary()
	m2, err := ParseMaskBinary(bin)
	if err != nil {
		t.Fatal(err)
	}
	if m2.String() != m.String() {
		t.Fatalf("binary round trip mismatch: %s != %s", m2.String(), m.String())
	}
}

func TestMaskSetClearTest(t *testing.T) {
	m := NewMask(40)
	if m.NumWords() != 2 {
		t.Fatalf("NumWords() = %d, want 2", m.NumWords())
	}
	m.Set(0)
	m.Set(33)
	if !m.Test(0) || !m.Test(33) {
		t.Fatalf("expected bits 0 and 33 set")
	}
	m.Clear(0)
	if m.Test(0) {
		t.Fatalf("expected bit 0 cleared")
	}
}

func TestParseMaskHexInvalid(t *testing.T) {
	if _, err := ParseMaskHex("123"); err == nil {
		t.Fatalf("expected error for short mask")
	}
	if _, err := ParseMaskHex(""); err == nil {
		t.Fatalf("expected error for empty mask")
	}
}
