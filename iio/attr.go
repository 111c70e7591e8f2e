package iio

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
	"github.com/analogdevicesinc/libiio-sub000/internal/responder"
	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

// attrScope identifies which of a device's four attribute namespaces an
// operation targets (spec §3, §6).
type attrScope int

const (
	scopeDevice attrScope = iota
	scopeChannel
	scopeDebug
	scopeBuffer
)

func (s attrScope) readOpcode() framing.Opcode {
	switch s {
	case scopeChannel:
		return framing.OpReadChnAttr
	case scopeDebug:
		return framing.OpReadDbgAttr
	case scopeBuffer:
		return framing.OpReadBufAttr
	default:
		return framing.OpReadAttr
	}
}

func (s attrScope) writeOpcode() framing.Opcode {
	switch s {
	case scopeChannel:
		return framing.OpWriteChnAttr
	case scopeDebug:
		return framing.OpWriteDbgAttr
	case scopeBuffer:
		return framing.OpWriteBufAttr
	default:
		return framing.OpWriteAttr
	}
}

func (s attrScope) legacyToken() string {
	switch s {
	case scopeDebug:
		return "DEBUG"
	case scopeBuffer:
		return "BUFFER"
	default:
		return ""
	}
}

// ReadAttr reads a device-scoped attribute and returns its value as a
// string (spec §4.4, "Attribute read").
func (d *Device) ReadAttr(name string) (string, error) {
	return d.ctx.readAttr(scopeDevice, d, nil, name)
}

// WriteAttr writes a device-scoped attribute, returning the server's
// accepted byte count.
func (d *Device) WriteAttr(name, value string) (int, error) {
	return d.ctx.writeAttr(scopeDevice, d, nil, name, value)
}

// ReadDebugAttr reads a debug pseudo-scope attribute.
func (d *Device) ReadDebugAttr(name string) (string, error) {
	return d.ctx.readAttr(scopeDebug, d, nil, name)
}

// WriteDebugAttr writes a debug pseudo-scope attribute.
func (d *Device) WriteDebugAttr(name, value string) (int, error) {
	return d.ctx.writeAttr(scopeDebug, d, nil, name, value)
}

// ReadAttr reads a channel-scoped attribute.
func (c *Channel) ReadAttr(name string) (string, error) {
	return c.device.ctx.readAttr(scopeChannel, c.device, c, name)
}

// WriteAttr writes a channel-scoped attribute.
func (c *Channel) WriteAttr(name, value string) (int, error) {
	return c.device.ctx.writeAttr(scopeChannel, c.device, c, name, value)
}

// ReadAttr reads a buffer-scoped attribute.
func (b *Buffer) ReadAttr(name string) (string, error) {
	return b.device.ctx.readAttr(scopeBuffer, b.device, nil, name)
}

// WriteAttr writes a buffer-scoped attribute.
func (b *Buffer) WriteAttr(name, value string) (int, error) {
	return b.device.ctx.writeAttr(scopeBuffer, b.device, nil, name, value)
}

func attrList(scope attrScope, dev *Device, ch *Channel) []string {
	switch scope {
	case scopeChannel:
		return ch.attrs
	case scopeDebug:
		return dev.debugAttrs
	case scopeBuffer:
		return dev.bufferAttrs
	default:
		return dev.deviceAttrs
	}
}

func resolveAttrIndex(scope attrScope, dev *Device, ch *Channel, name string) (int, bool) {
	for i, n := range attrList(scope, dev, ch) {
		if n == name {
			return i, true
		}
	}
	return -1, false
}

// readAttr implements the common read path for all four attribute scopes:
// binary mode sends a precomputed index, legacy mode sends the name and
// returns "no entry" locally without hitting the wire if the name is
// unknown (spec §4.4).
func (ctx *Context) readAttr(scope attrScope, dev *Device, ch *Channel, name string) (string, error) {
	if ctx.resp.BinaryMode() {
		idx, ok := resolveAttrIndex(scope, dev, ch, name)
		if !ok {
			return "", errno.ErrNoEntry
		}
		return ctx.readAttrBinary(scope, dev, ch, idx)
	}
	if _, ok := resolveAttrIndex(scope, dev, ch, name); !ok {
		return "", errno.ErrNoEntry
	}
	return ctx.readAttrLegacy(scope, dev, ch, name)
}

func (ctx *Context) writeAttr(scope attrScope, dev *Device, ch *Channel, name, value string) (int, error) {
	if ctx.resp.BinaryMode() {
		idx, ok := resolveAttrIndex(scope, dev, ch, name)
		if !ok {
			return 0, errno.ErrNoEntry
		}
		return ctx.writeAttrBinary(scope, dev, ch, idx, value)
	}
	if _, ok := resolveAttrIndex(scope, dev, ch, name); !ok {
		return 0, errno.ErrNoEntry
	}
	return ctx.writeAttrLegacy(scope, dev, ch, name, value)
}

// scopeIndex returns the low-16 "channel index" the binary attribute opcode
// carries. For channel-scoped ops this must be the channel's position in
// the device's channel list, not its scan Number: a non-scan or output
// channel has Number == -1 (0xFFFF as a uint16), which would silently
// target the wrong channel on the wire.
func scopeIndex(scope attrScope, dev *Device, ch *Channel) uint16 {
	if scope != scopeChannel {
		return 0
	}
	for i, c := range dev.Channels {
		if c == ch {
			return uint16(i)
		}
	}
	return 0
}

func (ctx *Context) readAttrBinary(scope attrScope, dev *Device, ch *Channel, attrIdx int) (string, error) {
	var result string
	err := ctx.withDefaultIO(func(io *responder.IO) error {
		buf := make([]byte, maxAttrLen)
		if err := io.GetResponseAsync(buf); err != nil {
			return err
		}
		cmd := framing.Command{
			Op:   scope.readOpcode(),
			Dev:  byte(dev.index),
			Code: framing.PackAttrCode(uint16(attrIdx), scopeIndex(scope, dev, ch)),
		}
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
		if int(code) > len(buf) {
			return errno.FromCode(-5) // -EIO: declared length exceeds buffer
		}
		if code < 0 {
			return errno.FromCode(code)
		}
		result = string(buf[:code])
		return nil
	})
	return result, err
}

func (ctx *Context) writeAttrBinary(scope attrScope, dev *Device, ch *Channel, attrIdx int, value string) (int, error) {
	var accepted int
	err := ctx.withDefaultIO(func(io *responder.IO) error {
		payload := make([]byte, 8+len(value))
		binary.LittleEndian.PutUint64(payload[:8], uint64(len(value)))
		copy(payload[8:], value)

		if err := io.GetResponseAsync(); err != nil {
			return err
		}
		cmd := framing.Command{
			Op:   scope.writeOpcode(),
			Dev:  byte(dev.index),
			Code: framing.PackAttrCode(uint16(attrIdx), scopeIndex(scope, dev, ch)),
		}
		if err := io.SendCommandAsync(cmd, payload); err != nil {
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
		accepted = int(code)
		return nil
	})
	return accepted, err
}

func (ctx *Context) readAttrLegacy(scope attrScope, dev *Device, ch *Channel, name string) (string, error) {
	var result string
	err := ctx.resp.WithLegacy(func(tr transport.Transport) error {
		fields := []string{"READ", dev.ID}
		if scope == scopeChannel {
			dir := "OUTPUT"
			if !ch.IsOutput {
				dir = "INPUT"
			}
			fields = append(fields, dir, ch.ID)
		}
		if tok := scope.legacyToken(); tok != "" {
			fields = append(fields, tok)
		}
		fields = append(fields, name)

		if err := framing.WriteCommand(tr, framing.BuildCommand(fields...), ctx.timeout); err != nil {
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
		result = strings.TrimRight(string(payload), "\x00")
		return nil
	})
	return result, err
}

func (ctx *Context) writeAttrLegacy(scope attrScope, dev *Device, ch *Channel, name, value string) (int, error) {
	var accepted int
	err := ctx.resp.WithLegacy(func(tr transport.Transport) error {
		fields := []string{"WRITE", dev.ID}
		if scope == scopeChannel {
			dir := "OUTPUT"
			if !ch.IsOutput {
				dir = "INPUT"
			}
			fields = append(fields, dir, ch.ID)
		}
		if tok := scope.legacyToken(); tok != "" {
			fields = append(fields, tok)
		}
		fields = append(fields, name, strconv.Itoa(len(value)))

		if err := framing.WriteCommand(tr, framing.BuildCommand(fields...), ctx.timeout); err != nil {
			return err
		}
		if _, err := tr.Write([]byte(value), ctx.timeout); err != nil {
			return err
		}
		n, err := framing.ReadInteger(tr, ctx.timeout)
		if err != nil {
			return err
		}
		if n < 0 {
			return errno.FromCode(int32(n))
		}
		accepted = int(n)
		return nil
	})
	return accepted, err
}

const maxAttrLen = 4096

// allAttrsIndex is the sentinel attribute index (all bits set) that selects
// the bulk read-all/write-all path on the existing per-scope opcodes: the
// server already distinguishes "attribute N" from "every attribute" by the
// index it finds in the command code, so no fifth opcode family is needed,
// only a different payload shape.
const allAttrsIndex uint16 = 0xFFFF

// bulkAttrBufLen is the contiguous scratch buffer spec §6 specifies for the
// bulk attribute transfer: "<len:be32><bytes[round_up_4]>..." per attribute
// in context order.
const bulkAttrBufLen = 1 << 20

func roundUp4(n int) int { return (n + 3) &^ 3 }

// ReadAllAttrs reads every device-scoped attribute in one round trip (spec
// §6, "Read-all / write-all bulk attribute transfer"). In legacy mode there
// is no bulk opcode, so it degrades to one ReadAttr per attribute.
func (d *Device) ReadAllAttrs() (map[string]string, error) {
	return d.ctx.readAllAttrs(scopeDevice, d, nil)
}

// WriteAllAttrs writes every attribute present in values in one round trip
// (binary mode) or one call per attribute (legacy mode), returning the
// number of attributes the server accepted.
func (d *Device) WriteAllAttrs(values map[string]string) (int, error) {
	return d.ctx.writeAllAttrs(scopeDevice, d, nil, values)
}

// ReadAllAttrs reads every channel-scoped attribute in one round trip.
func (c *Channel) ReadAllAttrs() (map[string]string, error) {
	return c.device.ctx.readAllAttrs(scopeChannel, c.device, c)
}

// WriteAllAttrs writes every channel-scoped attribute present in values.
func (c *Channel) WriteAllAttrs(values map[string]string) (int, error) {
	return c.device.ctx.writeAllAttrs(scopeChannel, c.device, c, values)
}

func (ctx *Context) readAllAttrs(scope attrScope, dev *Device, ch *Channel) (map[string]string, error) {
	names := attrList(scope, dev, ch)
	if !ctx.resp.BinaryMode() {
		out := make(map[string]string, len(names))
		for _, name := range names {
			v, err := ctx.readAttrLegacy(scope, dev, ch, name)
			if err != nil {
				continue
			}
			out[name] = v
		}
		return out, nil
	}

	var buf []byte
	var total int32
	err := ctx.withDefaultIO(func(io *responder.IO) error {
		buf = make([]byte, bulkAttrBufLen)
		if err := io.GetResponseAsync(buf); err != nil {
			return err
		}
		cmd := framing.Command{
			Op:   scope.readOpcode(),
			Dev:  byte(dev.index),
			Code: framing.PackAttrCode(allAttrsIndex, scopeIndex(scope, dev, ch)),
		}
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
		total = code
		return nil
	})
	if err != nil {
		return nil, err
	}

	out := make(map[string]string, len(names))
	pos := 0
	for _, name := range names {
		if pos+4 > int(total) || pos+4 > len(buf) {
			break
		}
		length := int32(binary.BigEndian.Uint32(buf[pos : pos+4]))
		pos += 4
		if length < 0 {
			continue // this attribute failed server-side; no data follows
		}
		end := pos + int(length)
		if end > len(buf) {
			return nil, errno.ErrProtocol
		}
		out[name] = string(buf[pos:end])
		pos += roundUp4(int(length))
	}
	return out, nil
}

func (ctx *Context) writeAllAttrs(scope attrScope, dev *Device, ch *Channel, values map[string]string) (int, error) {
	names := attrList(scope, dev, ch)
	if !ctx.resp.BinaryMode() {
		accepted := 0
		for _, name := range names {
			v, ok := values[name]
			if !ok {
				continue
			}
			if _, err := ctx.writeAttrLegacy(scope, dev, ch, name, v); err != nil {
				continue
			}
			accepted++
		}
		return accepted, nil
	}

	buf := make([]byte, 0, bulkAttrBufLen)
	for _, name := range names {
		v, ok := values[name]
		if !ok {
			buf = binary.BigEndian.AppendUint32(buf, 0)
			continue
		}
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(v)))
		buf = append(buf, v...)
		if pad := roundUp4(len(v)) - len(v); pad > 0 {
			buf = append(buf, make([]byte, pad)...)
		}
	}
	if len(buf) > bulkAttrBufLen {
		return 0, fmt.Errorf("iio: bulk attribute payload %d exceeds %d-byte limit", len(buf), bulkAttrBufLen)
	}

	var accepted int
	err := ctx.withDefaultIO(func(io *responder.IO) error {
		if err := io.GetResponseAsync(); err != nil {
			return err
		}
		cmd := framing.Command{
			Op:   scope.writeOpcode(),
			Dev:  byte(dev.index),
			Code: framing.PackAttrCode(allAttrsIndex, scopeIndex(scope, dev, ch)),
		}
		if err := io.SendCommandAsync(cmd, buf); err != nil {
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
		accepted = int(code)
		return nil
	})
	return accepted, err
}

// numeric encoding helpers (spec §6).

// ParseBool decodes the "0"|"1" attribute convention.
func ParseBool(s string) (bool, error) {
	switch strings.TrimSpace(s) {
	case "0":
		return false, nil
	case "1":
		return true, nil
	default:
		return false, fmt.Errorf("iio: invalid bool attribute %q", s)
	}
}

// FormatBool encodes a bool the wire convention expects, including the
// trailing NUL the protocol requires on writes (spec §6).
func FormatBool(b bool) string {
	if b {
		return "1\x00"
	}
	return "0\x00"
}

// ParseLongLong mirrors strtoll(base=0): decimal, 0x-prefixed hex, and
// leading-zero octal.
func ParseLongLong(s string) (int64, error) {
	s = strings.TrimSpace(s)
	return strconv.ParseInt(s, 0, 64)
}

// FormatLongLong renders a signed integer attribute in decimal.
func FormatLongLong(v int64) string { return strconv.FormatInt(v, 10) }

// ParseDouble parses a locale-independent floating point attribute.
func ParseDouble(s string) (float64, error) { return strconv.ParseFloat(strings.TrimSpace(s), 64) }

// FormatDouble renders a float64 attribute value.
func FormatDouble(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }
