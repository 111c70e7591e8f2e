// Package iio is the public client API: Context, Device, Channel, Buffer
// and Block, built on top of internal/responder exactly as spec §4.4
// describes. It is the only package application code is expected to
// import.
package iio

import (
	"fmt"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/analogdevicesinc/libiio-sub000/internal/codec"
	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
	"github.com/analogdevicesinc/libiio-sub000/internal/logging"
	"github.com/analogdevicesinc/libiio-sub000/internal/responder"
	"github.com/analogdevicesinc/libiio-sub000/internal/sdrxml"
	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

// Context is the root object handed to application code (spec §3): an
// immutable name, description, ordered context attributes, and an ordered
// sequence of Devices, backed by one transport connection.
type Context struct {
	URI         string
	Name        string
	Description string

	attrKeys []string
	attrs    map[string]string

	devices []*Device

	tr      transport.Transport
	resp    *responder.Responder
	timeout time.Duration
	log     logging.Logger

	// callMu serialises every operation that shares the responder's
	// default (client_id 0) I/O handle, mirroring spec §4.4's "every
	// client call first acquires the responder mutex" rule. Block
	// enqueue/dequeue use their own per-block I/O and are deliberately
	// excluded, so one block's transfer never waits on another's.
	callMu sync.Mutex
}

// withDefaultIO serialises fn's use of the shared default I/O handle.
func (ctx *Context) withDefaultIO(fn func(*responder.IO) error) error {
	ctx.callMu.Lock()
	defer ctx.callMu.Unlock()
	return fn(ctx.resp.DefaultIO())
}

// Connect dials uri, negotiates the wire protocol, retrieves and parses
// the context XML, and returns a ready-to-use Context (spec §4.4,
// "Context print" + the XML ingestion collaborator of spec §6).
func Connect(uri string, opts ...Option) (*Context, error) {
	params := defaultParams()
	for _, o := range opts {
		o(&params)
	}

	tr, err := transport.Dial(uri)
	if err != nil {
		return nil, err
	}
	resp, err := responder.New(tr, params.Timeout)
	if err != nil {
		tr.Close()
		return nil, err
	}

	ctx := &Context{
		URI:     uri,
		tr:      tr,
		resp:    resp,
		timeout: params.Timeout,
		log:     logging.Default(),
	}

	raw, err := ctx.printXML()
	if err != nil {
		ctx.Destroy()
		return nil, fmt.Errorf("iio: context print: %w", err)
	}
	doc, err := sdrxml.ParseContext(raw)
	if err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.build(doc); err != nil {
		ctx.Destroy()
		return nil, err
	}
	if err := ctx.backfillScaleOffset(); err != nil {
		ctx.log.Warn("iio: scale/offset backfill incomplete", logging.Field{Key: "error", Value: err})
	}
	return ctx, nil
}

// Destroy closes the responder and tears down the transport (spec §3). The
// Context does not track the Buffers created from it: Destroy sends no
// disable or free command for them, and buffers still enabled on the
// server are left as they are.
func (ctx *Context) Destroy() error {
	return ctx.resp.Close()
}

// Devices returns the context's device sequence in context order.
func (ctx *Context) Devices() []*Device { return append([]*Device(nil), ctx.devices...) }

// FindDevice looks up a device by id, name, or label.
func (ctx *Context) FindDevice(idOrName string) *Device {
	for _, d := range ctx.devices {
		if d.ID == idOrName || d.Name == idOrName || d.Label == idOrName {
			return d
		}
	}
	return nil
}

// AttrNames returns context attribute keys in declaration order.
func (ctx *Context) AttrNames() []string { return append([]string(nil), ctx.attrKeys...) }

// Attr returns a context attribute value.
func (ctx *Context) Attr(key string) (string, bool) {
	v, ok := ctx.attrs[key]
	return v, ok
}

// SetTimeout updates the responder's default timeout and informs the
// server so it gives up first: local_timeout/2, with legacy servers that
// reject the command tolerated as success (spec §4.4, "Timeout set").
func (ctx *Context) SetTimeout(d time.Duration) error {
	ctx.resp.SetTimeout(d)
	ctx.timeout = d

	remote := d / 2
	if ctx.resp.BinaryMode() {
		return ctx.withDefaultIO(func(io *responder.IO) error {
			if err := io.GetResponseAsync(); err != nil {
				return err
			}
			cmd := framing.Command{Op: framing.OpTimeout, Code: int32(remote.Milliseconds())}
			if err := io.SendCommandAsync(cmd); err != nil {
				return err
			}
			if err := io.WaitForCommandDone(ctx.timeout); err != nil {
				return err
			}
			code, err := io.WaitForResponse()
			if code == int32(errno.ErrInvalidArg.Code) {
				return nil // feature absent, silently downgraded
			}
			if err != nil {
				return err
			}
			if code < 0 {
				return errno.FromCode(code)
			}
			return nil
		})
	}

	return ctx.resp.WithLegacy(func(tr transport.Transport) error {
		cmd := framing.BuildCommand("TIMEOUT", fmt.Sprintf("%d", remote.Milliseconds()))
		if err := framing.WriteCommand(tr, cmd, ctx.timeout); err != nil {
			return err
		}
		n, err := framing.ReadInteger(tr, ctx.timeout)
		if err != nil {
			return err
		}
		if n < 0 && n != int64(errno.ErrInvalidArg.Code) {
			return errno.FromCode(int32(n))
		}
		return nil
	})
}

// printXML retrieves the context XML, preferring the compressed ZPRINT and
// falling back to PRINT on -EINVAL (spec §4.4).
func (ctx *Context) printXML() ([]byte, error) {
	if ctx.resp.BinaryMode() {
		raw, err := ctx.printBinary(framing.OpZPrint)
		if err == errno.ErrInvalidArg {
			return ctx.printBinary(framing.OpPrint)
		}
		if err != nil {
			return nil, err
		}
		return decompressIfNeeded(raw, framing.OpZPrint)
	}
	raw, err := ctx.printLegacy("ZPRINT")
	if err == errno.ErrInvalidArg {
		return ctx.printLegacy("PRINT")
	}
	if err != nil {
		return nil, err
	}
	return decompressIfNeeded(raw, framing.OpZPrint)
}

func (ctx *Context) printBinary(op framing.Opcode) ([]byte, error) {
	var out []byte
	err := ctx.withDefaultIO(func(io *responder.IO) error {
		buf := make([]byte, 1<<20)
		if err := io.GetResponseAsync(buf); err != nil {
			return err
		}
		if err := io.SendCommandAsync(framing.Command{Op: op}); err != nil {
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
		out = buf[:code]
		return nil
	})
	return out, err
}

func (ctx *Context) printLegacy(cmd string) ([]byte, error) {
	var out []byte
	err := ctx.resp.WithLegacy(func(tr transport.Transport) error {
		if err := framing.WriteCommand(tr, cmd, ctx.timeout); err != nil {
			return err
		}
		n, err := framing.ReadInteger(tr, ctx.timeout)
		if err != nil {
			return err
		}
		if n < 0 {
			return errno.FromCode(int32(n))
		}
		payload, err := framing.ReadPayload(tr, int(n), ctx.timeout)
		if err != nil {
			return err
		}
		out = payload
		return nil
	})
	return out, err
}

// decompressIfNeeded inflates a ZPRINT payload with zstd; PRINT payloads
// are plain XML and pass through unchanged (detected by opcode, not magic
// sniffing, since a legacy PRINT fallback never carries a zstd frame).
func decompressIfNeeded(raw []byte, usedOp framing.Opcode) ([]byte, error) {
	if usedOp != framing.OpZPrint {
		return raw, nil
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("iio: zstd reader: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(raw, nil)
	if err != nil {
		return nil, fmt.Errorf("iio: zstd decompress: %w", err)
	}
	return out, nil
}

// build constructs the Device/Channel tree from the parsed XML document
// and finalises channel ordering per device (spec §4.5).
func (ctx *Context) build(doc *sdrxml.Document) error {
	ctx.Name = doc.Name
	ctx.Description = doc.Description
	ctx.attrs = make(map[string]string, len(doc.ContextAttribute))
	for _, a := range doc.ContextAttribute {
		if _, dup := ctx.attrs[a.Name]; !dup {
			ctx.attrKeys = append(ctx.attrKeys, a.Name)
		}
		ctx.attrs[a.Name] = a.Value
	}

	ctx.devices = make([]*Device, 0, len(doc.Device))
	for i := range doc.Device {
		xd := &doc.Device[i]
		dev := &Device{
			ID:           xd.ID,
			Name:         xd.Name,
			Label:        xd.Label,
			ctx:          ctx,
			index:        i,
			nextBufferID: 0,
		}
		for _, a := range xd.Attribute {
			dev.deviceAttrs = append(dev.deviceAttrs, a.Name)
		}
		for _, a := range xd.DebugAttribute {
			dev.debugAttrs = append(dev.debugAttrs, a.Name)
		}
		for _, a := range xd.BufferAttribute {
			dev.bufferAttrs = append(dev.bufferAttrs, a.Name)
		}

		elems := make([]codec.ScanElement, len(xd.Channel))
		channels := make([]*Channel, len(xd.Channel))
		for c := range xd.Channel {
			xc := &xd.Channel[c]
			ch := &Channel{
				ID:       xc.ID,
				Name:     xc.Name,
				IsOutput: xc.Type == "output",
				Index:    -1,
				device:   dev,
			}
			for _, a := range xc.Attribute {
				ch.attrs = append(ch.attrs, a.Name)
			}
			if xc.ParsedFormat != nil {
				pf := xc.ParsedFormat
				ch.IsScanElement = true
				ch.Index = pf.Index
				ch.Format = codec.Format{
					Bits:           pf.Bits,
					Length:         pf.Length,
					Shift:          pf.Shift,
					IsSigned:       pf.IsSigned,
					IsBigEndian:    pf.IsBigEndian,
					IsFullyDefined: pf.FullyDefined,
					Repeat:         pf.Repeat,
				}
				if err := ch.Format.Validate(); err != nil {
					return fmt.Errorf("iio: device %q channel %q: %w", dev.ID, ch.ID, err)
				}
			}
			channels[c] = ch
			elems[c] = codec.ScanElement{Index: int(ch.Index), Shift: ch.Format.Shift, IsScan: ch.IsScanElement}
		}

		numbers := codec.FinalizeOrder(elems)
		for c, n := range numbers {
			channels[c].Number = n
		}
		dev.Channels = channels
		ctx.devices = append(ctx.devices, dev)
	}
	return nil
}

// backfillScaleOffset reads the "scale" and "offset" attributes of every
// channel, if present, and stores them in the Data Format (spec §6).
func (ctx *Context) backfillScaleOffset() error {
	var firstErr error
	for _, dev := range ctx.devices {
		for _, ch := range dev.Channels {
			if !ch.IsScanElement {
				continue
			}
			if s, err := ch.ReadAttr("scale"); err == nil {
				if v, perr := ParseDouble(s); perr == nil {
					ch.Format.Scale = v
					ch.Format.HasScale = true
				}
			} else if err != errno.ErrNoEntry && firstErr == nil {
				firstErr = err
			}
			if s, err := ch.ReadAttr("offset"); err == nil {
				if v, perr := ParseDouble(s); perr == nil {
					ch.Format.Offset = v
					ch.Format.HasOffset = true
				}
			} else if err != errno.ErrNoEntry && firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
