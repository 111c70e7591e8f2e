package framing

import "testing"

func TestCommandEncodeDecodeRoundTrip(t *testing.T) {
	c := Command{Op: OpReadAttr, Dev: 3, ClientID: 0xBEEF, Code: -22}
	hdr := c.Encode()
	got, err := DecodeCommand(hdr[:])
	if err != nil {
		t.Fatalf("DecodeCommand: %v", err)
	}
	if got != c {
		t.Fatalf("got %+v, want %+v", got, c)
	}
}

func TestCommandEncodeLittleEndian(t *testing.T) {
	c := Command{Op: OpResponse, Dev: 0, ClientID: 0x0102, Code: 0x01020304}
	hdr := c.Encode()
	if hdr[2] != 0x02 || hdr[3] != 0x01 {
		t.Fatalf("client_id not little-endian: %v", hdr)
	}
	if hdr[4] != 0x04 || hdr[5] != 0x03 || hdr[6] != 0x02 || hdr[7] != 0x01 {
		t.Fatalf("code not little-endian: %v", hdr)
	}
}

func TestDecodeCommandBadLength(t *testing.T) {
	if _, err := DecodeCommand([]byte{1, 2, 3}); err == nil {
		t.Fatal("expected error for short header")
	}
}

func TestPackUnpackAttrCode(t *testing.T) {
	code := PackAttrCode(5, 12)
	attr, scope := UnpackAttrCode(code)
	if attr != 5 || scope != 12 {
		t.Fatalf("got attr=%d scope=%d, want 5,12", attr, scope)
	}
}

func TestPackAttrCodeNegativeWire(t *testing.T) {
	// High bit of attrIndex set: the packed code must still round-trip even
	// though it reads as a negative int32 on the wire.
	code := PackAttrCode(0x8001, 0xFFFF)
	attr, scope := UnpackAttrCode(code)
	if attr != 0x8001 || scope != 0xFFFF {
		t.Fatalf("got attr=%#x scope=%#x", attr, scope)
	}
}
