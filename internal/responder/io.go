package responder

import (
	"container/list"
	"sync"
	"time"

	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
)

// IO is the iiod_io correlation primitive from spec §3: one per in-flight
// request, identified by client_id, carrying its own mutex/condition
// variable rather than sharing the responder's. At any moment it is idle,
// awaiting-response (linked into the responder's reader list), or
// awaiting-send-completion (queued in the writer task); Cancel moves it to
// cancelled from any of those states.
type IO struct {
	resp     *Responder
	clientID uint16

	mu   sync.Mutex
	cond *sync.Cond

	// request side, filled by SendCommandAsync, drained by the writer task.
	reqHeader framing.Command
	reqBufs   [][]byte
	writeDone bool
	writeErr  error

	// response side, filled by GetResponseAsync, completed by the reader.
	respBufs [][]byte
	rDone    bool
	code     int32

	start     time.Time
	timeout   time.Duration
	cancelled bool
	refcount  int32

	queueElem *list.Element // position in the writer task's queue, nil if not queued
	readerElem *list.Element // position in the responder's reader list, nil if not linked
}

func newIO(r *Responder, clientID uint16) *IO {
	io := &IO{resp: r, clientID: clientID, timeout: r.defaultTimeout, refcount: 1}
	io.cond = sync.NewCond(&io.mu)
	return io
}

// ClientID reports the correlation id used on the wire.
func (io *IO) ClientID() uint16 { return io.clientID }

// SetTimeout overrides the per-I/O timeout inherited from the responder at
// creation time; a zero duration means "never time out" (spec §4.3).
func (io *IO) SetTimeout(d time.Duration) {
	io.mu.Lock()
	io.timeout = d
	io.mu.Unlock()
}

// AddRef and Release implement the refcounted lifetime spec §3 describes
// for iiod_io. Go's GC reclaims the struct regardless, but the accounting
// is kept so block/buffer teardown ordering mirrors the teacher's
// reference-counted resources and double-free style bugs surface as a
// negative refcount during testing rather than being silently masked.
func (io *IO) AddRef() {
	io.mu.Lock()
	io.refcount++
	io.mu.Unlock()
}

func (io *IO) Release() {
	io.mu.Lock()
	io.refcount--
	n := io.refcount
	io.mu.Unlock()
	if n < 0 {
		panic("responder: IO released more times than referenced")
	}
}

func (io *IO) deadline() time.Time {
	io.mu.Lock()
	d := io.timeout
	start := io.start
	io.mu.Unlock()
	if d == 0 {
		return time.Time{}
	}
	return start.Add(d)
}

// condWaitUntil waits on cond, which must be associated with a held mutex,
// until Broadcast/Signal or the deadline elapses. Zero deadline means wait
// indefinitely. Must be called with the cond's lock held.
func condWaitUntil(cond *sync.Cond, deadline time.Time) {
	if deadline.IsZero() {
		cond.Wait()
		return
	}
	remaining := time.Until(deadline)
	if remaining <= 0 {
		return
	}
	timer := time.AfterFunc(remaining, cond.Broadcast)
	cond.Wait()
	timer.Stop()
}

// GetResponseAsync registers response buffers and links this I/O into the
// responder's reader list. Must precede any send whose response is
// expected (spec §4.3).
func (io *IO) GetResponseAsync(bufs ...[]byte) error {
	io.mu.Lock()
	io.respBufs = bufs
	io.rDone = false
	io.cancelled = false
	io.code = 0
	io.start = time.Now()
	io.mu.Unlock()

	io.resp.linkReader(io)
	return nil
}

// SendCommandAsync stamps the start time, copies the request buffers, and
// enqueues the I/O into the writer task. It fails fast only if the
// responder session has already failed (spec §4.3).
func (io *IO) SendCommandAsync(cmd framing.Command, bufs ...[]byte) error {
	if code, failed := io.resp.sessionError(); failed {
		return errno.FromCode(code)
	}

	io.mu.Lock()
	io.reqHeader = cmd
	io.reqBufs = bufs
	io.writeDone = false
	io.writeErr = nil
	if io.start.IsZero() {
		io.start = time.Now()
	}
	io.mu.Unlock()

	io.resp.writer.enqueue(io)
	return nil
}

// WaitForCommandDone joins the write enqueue. A negative timeout cancels
// the write token first; a zero timeout waits without a deadline (spec
// §4.3).
func (io *IO) WaitForCommandDone(timeout time.Duration) error {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	} else if timeout < 0 {
		io.resp.writer.cancel(io)
	}

	io.mu.Lock()
	defer io.mu.Unlock()
	for !io.writeDone && !io.cancelled {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			io.mu.Unlock()
			io.resp.writer.cancel(io)
			io.mu.Lock()
			continue
		}
		condWaitUntil(io.cond, deadline)
	}
	if io.cancelled {
		return errno.ErrCancelled
	}
	return io.writeErr
}

// WaitForResponse blocks on the condition variable until the response
// arrives or the timeout elapses, in which case it unlinks itself from the
// reader list and reports -ETIMEDOUT (spec §4.3).
func (io *IO) WaitForResponse() (int32, error) {
	deadline := io.deadline()

	io.mu.Lock()
	for !io.rDone && !io.cancelled {
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
		condWaitUntil(io.cond, deadline)
	}

	if io.rDone || io.cancelled {
		code := io.code
		io.mu.Unlock()
		if io.cancelled {
			return code, errno.ErrCancelled
		}
		if code < 0 {
			return code, errno.FromCode(code)
		}
		return code, nil
	}
	io.mu.Unlock()

	io.resp.unlinkReader(io)

	io.mu.Lock()
	if !io.rDone {
		io.code = timedOutCode
		io.rDone = true
	}
	code := io.code
	io.mu.Unlock()
	return code, errno.ErrTimedOut
}

// TryResponse is the non-blocking counterpart to WaitForResponse: it
// reports the response code and true only if both the write has completed
// and a response has already arrived, without ever waiting (spec §4.4,
// "Block dequeue non-blocking polls command-done and has-response").
func (io *IO) TryResponse() (int32, bool) {
	io.mu.Lock()
	defer io.mu.Unlock()
	if !io.writeDone || !io.rDone {
		return 0, false
	}
	return io.code, true
}

// Cancel unlinks the I/O from the reader list, cancels any outstanding
// write token, and signals waiters with -EINTR. Idempotent (spec §4.3, §5).
func (io *IO) Cancel() {
	io.mu.Lock()
	if io.cancelled {
		io.mu.Unlock()
		return
	}
	io.cancelled = true
	io.mu.Unlock()

	io.resp.unlinkReader(io)
	io.resp.writer.cancel(io)

	io.mu.Lock()
	io.code = cancelledCode
	io.rDone = true
	io.writeDone = true
	io.cond.Broadcast()
	io.mu.Unlock()
}

const (
	timedOutCode  int32 = -110 // ETIMEDOUT
	cancelledCode int32 = -4   // EINTR
)
