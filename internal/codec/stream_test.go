package codec

import "testing"

func TestStreamReadWriteRoundTrip(t *testing.T) {
	f := Format{Bits: 16, Length: 16, IsSigned: true, Repeat: 1}
	step := 4 // two interleaved 2-byte channels
	n := 5
	buf := make([]byte, step*n)
	cursor := &StreamCursor{Buf: buf, Step: step, Entry: 0}

	src := make([]byte, 2*n)
	for i := 0; i < n; i++ {
		uintToHostBytes(src[i*2:i*2+2], uint64(i*100), 2)
	}
	written, err := f.Write(cursor, src)
	if err != nil {
		t.Fatal(err)
	}
	if written != len(src) {
		t.Fatalf("wrote %d bytes, want %d", written, len(src))
	}

	dst := make([]byte, 2*n)
	read, err := f.Read(cursor, dst)
	if err != nil {
		t.Fatal(err)
	}
	if read != len(dst) {
		t.Fatalf("read %d bytes, want %d", read, len(dst))
	}
	for i := range dst {
		if dst[i] != src[i] {
			t.Fatalf("byte %d: got %x want %x", i, dst[i], src[i])
		}
	}
}

func TestReadRawStopsAtBufferEnd(t *testing.T) {
	f := Format{Bits: 8, Length: 8, Repeat: 1}
	buf := make([]byte, 10) // 3 full steps of 4 bytes won't fit cleanly
	cursor := &StreamCursor{Buf: buf, Step: 4, Entry: 0}
	dst := make([]byte, 100)
	n := f.ReadRaw(cursor, dst)
	if n != 3 { // steps at offsets 0, 4, 8 all have room for a 1-byte group within 10 bytes
		t.Fatalf("ReadRaw copied %d bytes, want 3", n)
	}
}
