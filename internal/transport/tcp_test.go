package transport

import (
	"net"
	"testing"
	"time"
)

func pipePair(t *testing.T) (Transport, net.Conn) {
	t.Helper()
	client, server := net.Pipe()
	return NewTCP(client), server
}

func TestTCPReadWriteRoundTrip(t *testing.T) {
	tr, server := pipePair(t)
	defer tr.Close()
	defer server.Close()

	go func() {
		buf := make([]byte, 5)
		n, _ := server.Read(buf)
		server.Write(buf[:n])
	}()

	if _, err := tr.Write([]byte("hello"), time.Second); err != nil {
		t.Fatalf("write: %v", err)
	}
	buf := make([]byte, 5)
	n, err := tr.Read(buf, time.Second)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Fatalf("got %q", buf[:n])
	}
}

func TestTCPCancelAbortsRead(t *testing.T) {
	tr, server := pipePair(t)
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := tr.Read(buf, 5*time.Second)
		done <- err
	}()

	time.Sleep(50 * time.Millisecond)
	tr.Cancel()

	select {
	case err := <-done:
		if err != ErrAborted {
			t.Fatalf("expected ErrAborted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel() did not unblock Read in time")
	}
}

func TestTCPReadLine(t *testing.T) {
	tr, server := pipePair(t)
	defer tr.Close()
	defer server.Close()

	go server.Write([]byte("VERSION\n"))

	line, err := tr.ReadLine(time.Second)
	if err != nil {
		t.Fatalf("ReadLine: %v", err)
	}
	if string(line) != "VERSION\n" {
		t.Fatalf("got %q", line)
	}
}

func TestTCPNoTimeoutBlocksUntilDataOrCancel(t *testing.T) {
	tr, server := pipePair(t)
	defer server.Close()

	done := make(chan error, 1)
	go func() {
		buf := make([]byte, 1)
		_, err := tr.Read(buf, NoTimeout)
		done <- err
	}()

	select {
	case err := <-done:
		t.Fatalf("Read returned early with NoTimeout and no data/cancel: %v", err)
	case <-time.After(200 * time.Millisecond):
	}

	tr.Cancel()
	select {
	case err := <-done:
		if err != ErrAborted {
			t.Fatalf("expected ErrAborted, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Cancel() did not unblock a NoTimeout Read")
	}
}

func TestDialUnsupportedURI(t *testing.T) {
	if _, err := Dial("local:"); err == nil {
		t.Fatal("expected error for local: URI")
	}
	if _, err := Dial("bogus:"); err == nil {
		t.Fatal("expected error for unrecognised URI")
	}
}
