package responder

import (
	"container/list"
	"sync"

	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

// writeTask is the single-runner FIFO from spec §4.3: one queue, one
// consumer goroutine, so request bytes for a given I/O are always
// transmitted contiguously and no two requests interleave on the wire.
// Modeled as a container/list-backed queue guarded by a mutex and
// condition variable, the idiomatic Go equivalent of the teacher's
// pool-of-one-worker-over-a-mutex shape rather than an unbounded buffered
// channel (an unbounded channel can't be peeked/removed for cancellation).
type writeTask struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   *list.List
	stopped bool
}

func newWriteTask() *writeTask {
	w := &writeTask{queue: list.New()}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *writeTask) enqueue(io *IO) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}
	io.queueElem = w.queue.PushBack(io)
	w.cond.Signal()
}

// cancel removes io from the queue if it has not yet been dequeued for
// transmission. If io is currently being transmitted or already completed,
// cancel is a no-op: the in-flight write is allowed to finish, matching the
// "synchronous relative to any outstanding write token" rule loosely -
// there is no partial-header state to unwind once transmission starts.
func (w *writeTask) cancel(io *IO) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if io.queueElem == nil {
		return
	}
	w.queue.Remove(io.queueElem)
	io.queueElem = nil

	io.mu.Lock()
	io.writeErr = errCancelledWrite
	io.writeDone = true
	io.cond.Broadcast()
	io.mu.Unlock()
}

func (w *writeTask) dequeue() (*IO, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for w.queue.Len() == 0 && !w.stopped {
		w.cond.Wait()
	}
	if w.queue.Len() == 0 {
		return nil, false
	}
	front := w.queue.Front()
	w.queue.Remove(front)
	io := front.Value.(*IO)
	io.queueElem = nil
	return io, true
}

// stop drains any still-queued I/Os with a session-failure error and
// prevents further enqueues; called once the reader thread observes a
// fatal error or Close() is requested (spec §4.3, "stops and flushes the
// writer task").
func (w *writeTask) stop() {
	w.mu.Lock()
	w.stopped = true
	pending := make([]*IO, 0, w.queue.Len())
	for e := w.queue.Front(); e != nil; e = e.Next() {
		pending = append(pending, e.Value.(*IO))
	}
	w.queue.Init()
	w.cond.Broadcast()
	w.mu.Unlock()

	for _, io := range pending {
		io.mu.Lock()
		io.queueElem = nil
		io.writeErr = errSessionStopped
		io.writeDone = true
		io.cond.Broadcast()
		io.mu.Unlock()
	}
}

// run is the writer task's goroutine body: dequeue, transmit header and
// request buffers in order, repeat until stopped.
func (w *writeTask) run(tr transport.Transport) {
	for {
		io, ok := w.dequeue()
		if !ok {
			return
		}
		err := io.transmit(tr)
		io.mu.Lock()
		io.writeErr = err
		io.writeDone = true
		io.cond.Broadcast()
		io.mu.Unlock()
	}
}

func (io *IO) transmit(tr transport.Transport) error {
	io.mu.Lock()
	hdr := io.reqHeader.Encode()
	bufs := io.reqBufs
	timeout := io.timeout
	io.mu.Unlock()

	if _, err := tr.Write(hdr[:], timeout); err != nil {
		return err
	}
	for _, b := range bufs {
		if len(b) == 0 {
			continue
		}
		if _, err := tr.Write(b, timeout); err != nil {
			return err
		}
	}
	return nil
}
