// Package responder implements the reader-thread/writer-task engine that
// demultiplexes a single IIOD wire connection across many concurrent
// callers (spec §4.3). It is transport- and framing-agnostic above the
// 8-byte binary header; legacy-mode callers use internal/framing directly
// against the same Transport and never touch this package.
package responder

import (
	"container/list"
	"errors"
	"sync"
	"time"

	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
	"github.com/analogdevicesinc/libiio-sub000/internal/logging"
	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

var (
	errCancelledWrite = errors.New("responder: write cancelled")
	errSessionStopped = errors.New("responder: session stopped")
)

// Responder owns the transport, the reader list, the reader goroutine and
// writer task goroutine, and the sticky session error, exactly matching
// the Responder record of spec §3.
type Responder struct {
	tr  transport.Transport
	log logging.Logger

	mu           sync.Mutex
	readerList   *list.List // of *IO awaiting a response
	nextClientID uint16
	stopped      bool
	thrdErrCode  int32 // 0 means "healthy"

	defaultTimeout time.Duration
	writer         *writeTask

	defaultIO *IO // client_id == 0, device-scoped operations

	binaryMode bool
	legacyMu   sync.Mutex // serialises legacy-mode callers over the shared transport
}

// New dials no transport itself; it takes an already-connected Transport,
// probes binary mode with the "BINARY\r\n" handshake (spec §4.2), and
// starts the reader and writer goroutines.
func New(tr transport.Transport, timeout time.Duration) (*Responder, error) {
	r := &Responder{
		tr:             tr,
		readerList:     list.New(),
		defaultTimeout: timeout,
		writer:         newWriteTask(),
		log:            logging.Default(),
	}
	r.defaultIO = newIO(r, 0)

	r.binaryMode = probeBinaryMode(tr, timeout)

	if r.binaryMode {
		go r.readerLoop()
		go r.writer.run(tr)
	}
	return r, nil
}

// BinaryMode reports whether the session negotiated the binary framing. In
// legacy mode the reader/writer goroutines are never started: the protocol
// is a plain synchronous request/response and there is nothing to
// correlate by client_id (spec §4.2).
func (r *Responder) BinaryMode() bool { return r.binaryMode }

// Transport exposes the underlying transport for the legacy framing path,
// which talks to the wire directly instead of going through the
// reader/writer goroutines.
func (r *Responder) Transport() transport.Transport { return r.tr }

// WithLegacy serialises legacy-mode callers over the shared transport, the
// equivalent of "every client call first acquires the responder mutex"
// (spec §4.4) for the synchronous legacy protocol.
func (r *Responder) WithLegacy(fn func(tr transport.Transport) error) error {
	r.legacyMu.Lock()
	defer r.legacyMu.Unlock()
	return fn(r.tr)
}

// DefaultIO returns the client_id=0 handle used for device-scoped
// operations (attribute read/write, trigger, context print).
func (r *Responder) DefaultIO() *IO { return r.defaultIO }

// NewIO allocates a fresh I/O handle with a monotonically increasing
// client_id (spec §4.3: "must not be reused while an I/O is in the reader
// list" -- monotonic allocation trivially satisfies this).
func (r *Responder) NewIO() *IO {
	r.mu.Lock()
	r.nextClientID++
	id := r.nextClientID
	r.mu.Unlock()
	return newIO(r, id)
}

// NewBlockIO allocates the dedicated handle for a block, whose client_id is
// blockIdx+1 per spec §3.
func (r *Responder) NewBlockIO(blockIdx uint16) *IO {
	return newIO(r, blockIdx+1)
}

// Timeout returns the responder's current default timeout, inherited by
// freshly created I/O handles.
func (r *Responder) Timeout() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.defaultTimeout
}

// SetTimeout updates the responder-wide default timeout used by I/O
// handles created afterwards; it does not retroactively change handles
// already in flight (spec §4.4, "Timeout set").
func (r *Responder) SetTimeout(d time.Duration) {
	r.mu.Lock()
	r.defaultTimeout = d
	r.mu.Unlock()
}

// sessionError reports the sticky session error, if any, set once the
// reader thread observes a fatal transport error (spec §4.3, §7).
func (r *Responder) sessionError() (int32, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.thrdErrCode, r.thrdErrCode != 0
}

// Close stops the reader and writer goroutines and releases the
// transport. Safe to call more than once.
func (r *Responder) Close() error {
	r.mu.Lock()
	already := r.stopped
	r.stopped = true
	r.mu.Unlock()
	if already {
		return nil
	}
	r.tr.Cancel()
	return r.tr.Close()
}

func (r *Responder) linkReader(io *IO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	io.readerElem = r.readerList.PushBack(io)
}

func (r *Responder) unlinkReader(io *IO) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if io.readerElem == nil {
		return
	}
	r.readerList.Remove(io.readerElem)
	io.readerElem = nil
}

func (r *Responder) findByClientID(id uint16) *IO {
	r.mu.Lock()
	defer r.mu.Unlock()
	for e := r.readerList.Front(); e != nil; e = e.Next() {
		io := e.Value.(*IO)
		if io.clientID == id {
			r.readerList.Remove(e)
			io.readerElem = nil
			return io
		}
	}
	return nil
}

// readerLoop is the reader thread of spec §4.3, steps 1-5. The header read
// blocks indefinitely (transport.NoTimeout): the gap between two messages on
// an idle connection is unbounded by nature, and the transport has no other
// way to express "wait forever" than a sentinel the concrete backends
// recognise. A timeout here is not a per-I/O failure, it would be a false
// session-wide one, so it must never reach fail(). Only a genuine transport
// error (broken pipe, or Cancel() on Close()) ends the loop.
func (r *Responder) readerLoop() {
	for {
		hdr := make([]byte, framing.HeaderLen)
		if err := readFull(r.tr, hdr, transport.NoTimeout); err != nil {
			r.fail(classifyTransportErr(err))
			return
		}
		cmd, err := framing.DecodeCommand(hdr)
		if err != nil {
			r.fail(int32(errnoCode(errno.ErrProtocol)))
			return
		}

		if cmd.Op != framing.OpResponse {
			r.rejectIncomingCommand(cmd)
			continue
		}

		io := r.findByClientID(cmd.ClientID)
		if io == nil {
			if cmd.Code > 0 {
				if err := r.tr.Discard(int(cmd.Code), r.defaultTimeout); err != nil {
					r.fail(classifyTransportErr(err))
					return
				}
			}
			continue
		}
		if err := r.deliver(io, cmd.Code); err != nil {
			r.fail(classifyTransportErr(err))
			return
		}
	}
}

// deliver implements reader-thread step 4-5: if code > 0 AND the I/O
// registered response buffers, read up to code bytes into those buffers
// (discarding overflow); otherwise code is itself the result (write/control
// ops) and no payload follows on the wire (spec §4.3 step 4). Store the
// code, mark done, and wake the waiter.
func (r *Responder) deliver(io *IO, code int32) error {
	io.mu.Lock()
	bufs := io.respBufs
	io.mu.Unlock()

	finalCode := code
	if code > 0 && len(bufs) > 0 {
		remaining := int(code)
		for _, b := range bufs {
			if remaining == 0 {
				break
			}
			n := len(b)
			if n > remaining {
				n = remaining
			}
			if n == 0 {
				continue
			}
			if err := readFull(r.tr, b[:n], r.defaultTimeout); err != nil {
				return err
			}
			remaining -= n
		}
		if remaining > 0 {
			if err := r.tr.Discard(remaining, r.defaultTimeout); err != nil {
				return err
			}
		}
	}

	io.mu.Lock()
	io.code = finalCode
	io.rDone = true
	io.cond.Broadcast()
	io.mu.Unlock()
	return nil
}

// rejectIncomingCommand answers a server-initiated command with -EINVAL:
// this module's clients never accept incoming commands (spec §4.3 step 2).
func (r *Responder) rejectIncomingCommand(cmd framing.Command) {
	resp := framing.Command{Op: framing.OpResponse, ClientID: cmd.ClientID, Code: int32(errnoCode(errno.ErrInvalidArg))}
	hdr := resp.Encode()
	if _, err := r.tr.Write(hdr[:], r.defaultTimeout); err != nil {
		r.log.Warn("responder: failed to answer incoming command", logging.Field{Key: "error", Value: err})
	}
}

// fail sets the sticky session error exactly once, cancels every waiting
// I/O with that code, and flushes the writer task (spec §4.3, "on exit").
func (r *Responder) fail(code int32) {
	r.mu.Lock()
	if r.thrdErrCode != 0 {
		r.mu.Unlock()
		return
	}
	r.thrdErrCode = code
	var pending []*IO
	for e := r.readerList.Front(); e != nil; e = e.Next() {
		pending = append(pending, e.Value.(*IO))
	}
	r.readerList.Init()
	r.mu.Unlock()

	for _, io := range pending {
		io.mu.Lock()
		io.readerElem = nil
		io.code = code
		io.rDone = true
		io.cond.Broadcast()
		io.mu.Unlock()
	}
	r.writer.stop()
}

func readFull(tr transport.Transport, buf []byte, timeout time.Duration) error {
	total := 0
	for total < len(buf) {
		n, err := tr.Read(buf[total:], timeout)
		total += n
		if err != nil {
			return err
		}
	}
	return nil
}

func classifyTransportErr(err error) int32 {
	switch {
	case errors.Is(err, transport.ErrAborted):
		return int32(errnoCode(errno.ErrCancelled))
	case errors.Is(err, transport.ErrTimedOut):
		return int32(errnoCode(errno.ErrTimedOut))
	default:
		return int32(errnoCode(errno.ErrBrokenPipe))
	}
}

func errnoCode(e *errno.Errno) int32 { return e.Code }

// probeBinaryMode sends the "BINARY\r\n" handshake and reads back a legacy
// integer line; a reply of 0 upgrades the session, any other reply or
// error falls back to legacy framing (spec §4.2).
func probeBinaryMode(tr transport.Transport, timeout time.Duration) bool {
	if err := framing.WriteCommand(tr, "BINARY", timeout); err != nil {
		return false
	}
	v, err := framing.ReadInteger(tr, timeout)
	return err == nil && v == 0
}
