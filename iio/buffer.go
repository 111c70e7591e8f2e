package iio

import (
	"sort"

	"github.com/analogdevicesinc/libiio-sub000/internal/codec"
	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
	"github.com/analogdevicesinc/libiio-sub000/internal/responder"
)

// Buffer is a server-side data queue bound to a device (spec §3): a stable
// idx assigned by the context, enabled/disabled status, an associated
// channel mask, and a monotonically increasing counter that mints Block
// identifiers.
type Buffer struct {
	device *Device
	idx    uint16
	mask   *codec.Mask

	enabled      bool
	nextBlockIdx uint16
}

// CreateBuffer allocates a Buffer for the given channel selection (spec
// §4.4, "Buffer create"). The server may narrow the mask; the narrowed
// mask is reflected back into the returned Buffer.
func (d *Device) CreateBuffer(mask *codec.Mask) (*Buffer, error) {
	idx := d.nextBufferID
	d.nextBufferID++
	b := &Buffer{device: d, idx: idx, mask: mask}

	if d.ctx.resp.BinaryMode() {
		if err := b.createBinary(); err != nil {
			return nil, err
		}
		return b, nil
	}
	return b, nil // legacy mode negotiates the mask lazily at enable time
}

func (b *Buffer) createBinary() error {
	ctx := b.device.ctx
	return ctx.withDefaultIO(func(io *responder.IO) error {
		wire := b.mask.MarshalBinary()
		respBuf := make([]byte, len(wire))
		if err := io.GetResponseAsync(respBuf); err != nil {
			return err
		}
		cmd := framing.Command{
			Op:   framing.OpCreateBuffer,
			Dev:  byte(b.device.index),
			Code: int32(b.idx),
		}
		if err := io.SendCommandAsync(cmd, wire); err != nil {
			return err
		}
		if err := io.WaitForCommandDone(ctx.timeout); err != nil {
			return err
		}
		code, err := io.WaitForResponse()
		if err != nil {
			return err
		}
		if code < 0 {
			return errno.FromCode(code)
		}
		if int(code) > 0 {
			narrowed, perr := codec.ParseMaskBinary(respBuf[:code])
			if perr == nil {
				b.mask = narrowed
			}
		}
		return nil
	})
}

// Device returns the owning device.
func (b *Buffer) Device() *Device { return b.device }

// Mask returns the channel selection backing this buffer.
func (b *Buffer) Mask() *codec.Mask { return b.mask }

// Enabled reports whether Enable has succeeded without a matching Disable.
func (b *Buffer) Enabled() bool { return b.enabled }

// Enable activates the buffer for streaming. At most one enablement may be
// in flight; enabling an already-enabled buffer returns -EBUSY (spec §3,
// §4.4).
func (b *Buffer) Enable() error {
	if b.enabled {
		return errno.ErrBusy
	}
	if err := b.setEnabled(framing.OpEnableBuffer); err != nil {
		return err
	}
	b.enabled = true
	return nil
}

// Disable deactivates the buffer. Disabling a buffer that is not enabled
// returns -EBADF.
func (b *Buffer) Disable() error {
	if !b.enabled {
		return errno.ErrBadFd
	}
	if err := b.setEnabled(framing.OpDisableBuffer); err != nil {
		return err
	}
	b.enabled = false
	return nil
}

func (b *Buffer) setEnabled(op framing.Opcode) error {
	ctx := b.device.ctx
	if ctx.resp.BinaryMode() {
		return ctx.withDefaultIO(func(io *responder.IO) error {
			if err := io.GetResponseAsync(); err != nil {
				return err
			}
			cmd := framing.Command{Op: op, Dev: byte(b.device.index), Code: int32(b.idx)}
			if err := io.SendCommandAsync(cmd); err != nil {
				return err
			}
			if err := io.WaitForCommandDone(ctx.timeout); err != nil {
				return err
			}
			code, err := io.WaitForResponse()
			if err != nil {
				return err
			}
			if code < 0 {
				return errno.FromCode(code)
			}
			return nil
		})
	}

	token := "1"
	if op == framing.OpDisableBuffer {
		token = "0"
	}
	_, err := b.device.WriteAttr("enable", token)
	return err
}

// FreeBufferID is the stable id the context assigned at CreateBuffer time.
func (b *Buffer) FreeBufferID() uint16 { return b.idx }

// Layout computes the interleaved sample-group layout implied by the
// buffer's mask: the per-group step in bytes and each enabled scan
// channel's byte offset within one step, in ascending Number order (spec
// §4.5, "Stream read/write" -- the cursor's Step/Entry pair). Channels not
// set in the mask, or without scan-element metadata, are omitted.
func (b *Buffer) Layout() (step int, entry map[*Channel]int) {
	entry = make(map[*Channel]int)
	var enabled []*Channel
	for _, ch := range b.device.Channels {
		if !ch.IsScanElement || !b.mask.Test(ch.Number) {
			continue
		}
		enabled = append(enabled, ch)
	}
	sort.Slice(enabled, func(i, j int) bool { return enabled[i].Number < enabled[j].Number })
	for _, ch := range enabled {
		entry[ch] = step
		step += int(ch.Format.Length/8) * int(ch.Format.Repeat)
	}
	return step, entry
}

// Cursor builds a codec.StreamCursor over data for ch, using the buffer's
// current Layout. It returns an error if ch is not enabled in the buffer's
// mask.
func (b *Buffer) Cursor(data []byte, ch *Channel) (*codec.StreamCursor, error) {
	step, entry := b.Layout()
	off, ok := entry[ch]
	if !ok {
		return nil, errno.ErrNoEntry
	}
	return &codec.StreamCursor{Buf: data, Step: step, Entry: off}, nil
}
