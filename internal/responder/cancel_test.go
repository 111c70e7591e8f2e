package responder

import (
	"testing"
	"time"

	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
)

func TestCancelIsIdempotent(t *testing.T) {
	r, _ := newTestResponder(t)
	io := r.NewIO()
	io.GetResponseAsync()
	io.Cancel()
	io.Cancel() // must not panic or deadlock
	if _, err := io.WaitForResponse(); err != errno.ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}

func TestCancelBeforeDequeueSkipsTransmission(t *testing.T) {
	r, server := newTestResponder(t)
	defer server.Close()

	// Occupy the writer task with one in-flight send so the next I/O sits
	// in the queue, unread by the fake server: the blocker's header write
	// stays blocked on the pipe until the server reads it.
	blocker := r.NewIO()
	if err := blocker.SendCommandAsync(framing.Command{Op: framing.OpReadAttr, ClientID: blocker.ClientID()}); err != nil {
		t.Fatalf("SendCommandAsync: %v", err)
	}
	for {
		r.writer.mu.Lock()
		dequeued := blocker.queueElem == nil
		r.writer.mu.Unlock()
		if dequeued {
			break
		}
		time.Sleep(time.Millisecond)
	}

	queued := r.NewIO()
	if err := queued.SendCommandAsync(framing.Command{Op: framing.OpReadAttr, ClientID: queued.ClientID()}); err != nil {
		t.Fatalf("SendCommandAsync: %v", err)
	}
	queued.Cancel()
	if err := queued.WaitForCommandDone(time.Second); err != errno.ErrCancelled {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}

	// Release the writer: only the blocker's header may reach the server.
	server.Read(make([]byte, framing.HeaderLen))
	blocker.WaitForCommandDone(time.Second)
	server.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if n, err := server.Read(make([]byte, framing.HeaderLen)); err == nil {
		t.Fatalf("cancelled I/O was transmitted (%d bytes read)", n)
	}
}
