package iio

import (
	"encoding/binary"
	"sync"

	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
	"github.com/analogdevicesinc/libiio-sub000/internal/responder"
)

// Block is a unit of bulk data enqueued into a Buffer for transfer (spec
// §3). It owns a dedicated iiod_io correlated by idx+1, independent of the
// buffer's own I/O handle, so enqueue/dequeue of one block never blocks
// another block on the same buffer. Its own mutex guards enqueued, which
// Enqueue/Dequeue/Free all touch and which a caller may legitimately poll
// (Dequeue(false)) from a different goroutine than the one driving Enqueue
// (spec §5, "blocks carry their own mutex").
type Block struct {
	buffer *Buffer
	idx    uint16
	io     *responder.IO

	mu        sync.Mutex
	size      uint64
	bytesUsed uint64
	data      []byte
	enqueued  bool
	cyclic    bool
}

// CreateBlock allocates a block of the requested size on b, negotiating
// the size with the server (spec §4.4, "Block create").
func (b *Buffer) CreateBlock(size uint64) (*Block, error) {
	idx := b.nextBlockIdx
	b.nextBlockIdx++

	blk := &Block{
		buffer: b,
		idx:    idx,
		io:     b.device.ctx.resp.NewBlockIO(idx),
		size:   size,
		data:   make([]byte, size),
	}

	ctx := b.device.ctx
	if !ctx.resp.BinaryMode() {
		return blk, nil
	}

	payload := make([]byte, 8)
	binary.LittleEndian.PutUint64(payload, size)
	if err := blk.io.GetResponseAsync(); err != nil {
		return nil, err
	}
	cmd := framing.Command{Op: framing.OpCreateBlock, Dev: byte(b.device.index), ClientID: blk.io.ClientID(), Code: int32(b.idx)}
	if err := blk.io.SendCommandAsync(cmd, payload); err != nil {
		return nil, err
	}
	if err := blk.io.WaitForCommandDone(ctx.timeout); err != nil {
		return nil, err
	}
	code, err := blk.io.WaitForResponse()
	if err != nil {
		return nil, err
	}
	if code < 0 {
		return nil, errno.FromCode(code)
	}
	return blk, nil
}

// Buffer returns the owning buffer.
func (blk *Block) Buffer() *Buffer { return blk.buffer }

// Data exposes the block's data region for the caller to fill (TX) or read
// (RX) around an Enqueue/Dequeue pair.
func (blk *Block) Data() []byte { return blk.data }

// BytesUsed reports the size of the most recent transfer: the caller-set
// value before a TX enqueue, or the server-reported actual value after an
// RX dequeue.
func (blk *Block) BytesUsed() uint64 {
	blk.mu.Lock()
	defer blk.mu.Unlock()
	return blk.bytesUsed
}

// Enqueue transfers the block in the direction given by isOutput: for TX
// (isOutput true), bytesUsed bytes of Data() are
// sent; for RX, no request payload is sent and the response fills Data()
// (spec §4.4, "Block enqueue"). cyclic requests infinite server-side
// repetition via a dedicated opcode.
func (blk *Block) Enqueue(bytesUsed uint64, isOutput, cyclic bool) error {
	if bytesUsed == 0 || bytesUsed > blk.size {
		return errno.ErrInvalidArg
	}
	ctx := blk.buffer.device.ctx
	if !ctx.resp.BinaryMode() {
		return errno.ErrNotSupported
	}

	blk.mu.Lock()
	blk.bytesUsed = bytesUsed
	blk.cyclic = cyclic
	blk.mu.Unlock()
	op := framing.OpTransferBlock
	if cyclic {
		op = framing.OpEnqueueBlockCyclic
	}

	lenPrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenPrefix, bytesUsed)

	respBuf := blk.data[:blk.size]
	if err := blk.io.GetResponseAsync(respBuf); err != nil {
		return err
	}

	cmd := framing.Command{Op: op, Dev: byte(blk.buffer.device.index), ClientID: blk.io.ClientID(), Code: int32(blk.buffer.idx)}
	var err error
	if isOutput {
		err = blk.io.SendCommandAsync(cmd, lenPrefix, blk.data[:bytesUsed])
	} else {
		err = blk.io.SendCommandAsync(cmd, lenPrefix)
	}
	if err != nil {
		return err
	}
	if err := blk.io.WaitForCommandDone(ctx.timeout); err != nil {
		return err
	}
	blk.mu.Lock()
	blk.enqueued = true
	blk.mu.Unlock()
	return nil
}

// Dequeue waits for the in-flight transfer to complete. If blocking is
// false, it polls the block's I/O without waiting and returns -EBUSY if
// the transfer has not yet completed (spec §4.4, "Block dequeue").
func (blk *Block) Dequeue(blocking bool) error {
	blk.mu.Lock()
	enqueued := blk.enqueued
	blk.mu.Unlock()
	if !enqueued {
		return errno.ErrBadFd
	}

	var code int32
	var err error
	if blocking {
		code, err = blk.io.WaitForResponse()
	} else {
		var ready bool
		code, ready = blk.io.TryResponse()
		if !ready {
			return errno.ErrBusy
		}
	}
	if err != nil {
		return err
	}
	if code < 0 {
		return errno.FromCode(code)
	}
	blk.mu.Lock()
	blk.bytesUsed = uint64(code)
	blk.enqueued = false
	blk.mu.Unlock()
	return nil
}

// Free cancels any outstanding I/O on the block's own channel, then
// notifies the server via the buffer's main I/O channel rather than the
// block's own -- the block's stream is disrupted by the preceding cancel
// and must not be used again (spec §9 design notes).
func (blk *Block) Free() error {
	blk.io.Cancel()
	blk.mu.Lock()
	blk.enqueued = false
	blk.mu.Unlock()

	ctx := blk.buffer.device.ctx
	if !ctx.resp.BinaryMode() {
		return nil
	}

	return ctx.withDefaultIO(func(main *responder.IO) error {
		if err := main.GetResponseAsync(); err != nil {
			return err
		}
		cmd := framing.Command{
			Op:   framing.OpFreeBlock,
			Dev:  byte(blk.buffer.device.index),
			Code: framing.PackAttrCode(blk.idx, blk.buffer.idx),
		}
		if err := main.SendCommandAsync(cmd); err != nil {
			return err
		}
		if err := main.WaitForCommandDone(ctx.timeout); err != nil {
			return err
		}
		code, err := main.WaitForResponse()
		if err != nil {
			return err
		}
		if code < 0 {
			return errno.FromCode(code)
		}
		return nil
	})
}
