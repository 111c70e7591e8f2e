package framing

import (
	"strings"
	"testing"
	"time"
)

func TestReadIntegerBasic(t *testing.T) {
	tr := newFakeTransport([]byte("42\n"))
	v, err := ReadInteger(tr, time.Second)
	if err != nil {
		t.Fatalf("ReadInteger: %v", err)
	}
	if v != 42 {
		t.Fatalf("got %d, want 42", v)
	}
}

func TestReadIntegerSkipsStrayNewlines(t *testing.T) {
	tr := newFakeTransport([]byte("\n\n-7\n"))
	v, err := ReadInteger(tr, time.Second)
	if err != nil {
		t.Fatalf("ReadInteger: %v", err)
	}
	if v != -7 {
		t.Fatalf("got %d, want -7", v)
	}
}

func TestReadIntegerInvalid(t *testing.T) {
	tr := newFakeTransport([]byte("not-a-number\n"))
	if _, err := ReadInteger(tr, time.Second); err == nil {
		t.Fatal("expected error for non-numeric line")
	}
}

func TestReadPayloadRoundTrip(t *testing.T) {
	payload := "0123456789"
	tr := newFakeTransport([]byte(payload + "\n"))
	got, err := ReadPayload(tr, len(payload), time.Second)
	if err != nil {
		t.Fatalf("ReadPayload: %v", err)
	}
	if string(got) != payload {
		t.Fatalf("got %q, want %q", got, payload)
	}
}

func TestReadPayloadMissingNewline(t *testing.T) {
	tr := newFakeTransport([]byte("01234X"))
	if _, err := ReadPayload(tr, 5, time.Second); err == nil {
		t.Fatal("expected error when trailing byte is not a newline")
	}
}

func TestWriteCommandAppendsCRLF(t *testing.T) {
	tr := newFakeTransport(nil)
	if err := WriteCommand(tr, "VERSION", time.Second); err != nil {
		t.Fatalf("WriteCommand: %v", err)
	}
	if tr.out.String() != "VERSION\r\n" {
		t.Fatalf("got %q", tr.out.String())
	}
}

func TestBuildCommand(t *testing.T) {
	got := BuildCommand("READ", "ad9361-phy", "0", "in_voltage0_scale")
	want := "READ ad9361-phy 0 in_voltage0_scale"
	if got != want {
		t.Fatalf("got %q, want %q", got, want)
	}
	if strings.Contains(got, "\r") {
		t.Fatal("BuildCommand must not append CRLF, that is WriteCommand's job")
	}
}
