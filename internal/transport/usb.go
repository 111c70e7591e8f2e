package transport

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/gousb"
)

// usbTransport drives a USB bulk IN/OUT endpoint pair, one pair per logical
// session, per spec §4.1. Grounded on the bulk-endpoint shape used by
// other_examples' gousb/softusb descriptor code: a libusb context opens the
// device, claims an interface, and reads/writes through gousb's *InEndpoint
// / *OutEndpoint, which already implement io.Reader/io.Writer with
// per-call timeouts.
type usbTransport struct {
	ctx    *gousb.Context
	dev    *gousb.Device
	iface  *gousb.Interface
	in     *gousb.InEndpoint
	out    *gousb.OutEndpoint
	cancel *cancelSignal
}

// DialUSB implements the "usb:bus.dev.interface" URI grammar from spec §6.
func DialUSB(uri string) (Transport, error) {
	rest := strings.TrimPrefix(uri, PrefixUSB)
	parts := strings.Split(rest, ".")
	if len(parts) != 3 {
		return nil, fmt.Errorf("transport: usb URI must be bus.dev.interface, got %q", uri)
	}
	bus, err := strconv.Atoi(parts[0])
	if err != nil {
		return nil, fmt.Errorf("transport: bad usb bus %q: %w", parts[0], err)
	}
	devAddr, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("transport: bad usb dev %q: %w", parts[1], err)
	}
	ifaceNum, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("transport: bad usb interface %q: %w", parts[2], err)
	}

	ctx := gousb.NewContext()
	var found *gousb.Device
	devs, err := ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return desc.Bus == bus && desc.Address == devAddr
	})
	if err != nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: usb enumerate: %w", err)
	}
	for i, d := range devs {
		if i == 0 {
			found = d
		} else {
			d.Close()
		}
	}
	if found == nil {
		ctx.Close()
		return nil, fmt.Errorf("transport: no usb device at bus=%d dev=%d", bus, devAddr)
	}

	cfg, err := found.Config(1)
	if err != nil {
		found.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: usb config: %w", err)
	}
	iface, err := cfg.Interface(ifaceNum, 0)
	if err != nil {
		found.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: usb claim interface %d: %w", ifaceNum, err)
	}

	var inEP *gousb.InEndpoint
	var outEP *gousb.OutEndpoint
	for _, epDesc := range iface.Setting.Endpoints {
		if epDesc.TransferType != gousb.TransferTypeBulk {
			continue
		}
		if epDesc.Direction == gousb.EndpointDirectionIn && inEP == nil {
			inEP, err = iface.InEndpoint(epDesc.Number)
		} else if epDesc.Direction == gousb.EndpointDirectionOut && outEP == nil {
			outEP, err = iface.OutEndpoint(epDesc.Number)
		}
		if err != nil {
			iface.Close()
			found.Close()
			ctx.Close()
			return nil, fmt.Errorf("transport: usb open endpoint: %w", err)
		}
	}
	if inEP == nil || outEP == nil {
		iface.Close()
		found.Close()
		ctx.Close()
		return nil, fmt.Errorf("transport: usb interface %d has no bulk IN/OUT pair", ifaceNum)
	}

	return &usbTransport{ctx: ctx, dev: found, iface: iface, in: inEP, out: outEP, cancel: newCancelSignal()}, nil
}

func (u *usbTransport) Read(buf []byte, timeout time.Duration) (int, error) {
	if u.cancel.Cancelled() {
		return 0, ErrAborted
	}
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = u.in.Read(buf)
		close(done)
	}()
	select {
	case <-done:
	case <-u.cancel.Chan():
		return 0, ErrAborted
	case <-timeoutChan(timeout):
		return 0, ErrTimedOut
	}
	return n, mapUSBErr(err)
}

func (u *usbTransport) Write(buf []byte, timeout time.Duration) (int, error) {
	if u.cancel.Cancelled() {
		return 0, ErrAborted
	}
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = u.out.Write(buf)
		close(done)
	}()
	select {
	case <-done:
	case <-u.cancel.Chan():
		return 0, ErrAborted
	case <-timeoutChan(timeout):
		return 0, ErrTimedOut
	}
	return n, mapUSBErr(err)
}

// timeoutChan returns a channel that fires after timeout, or nil (never
// fires, select blocks on it forever) when timeout is NoTimeout.
func timeoutChan(timeout time.Duration) <-chan time.Time {
	if timeout == NoTimeout {
		return nil
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return time.After(timeout)
}

func (u *usbTransport) ReadLine(timeout time.Duration) ([]byte, error) {
	// USB bulk transport carries binary framing only in practice; a
	// byte-at-a-time reader is the only generic option when the endpoint
	// doesn't expose a line-oriented peek, per spec §4.1's fallback.
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := u.Read(b, timeout)
		if n > 0 {
			line = append(line, b[0])
			if b[0] == '\n' {
				return line, nil
			}
		}
		if err != nil {
			return line, err
		}
	}
}

func (u *usbTransport) Discard(n int, timeout time.Duration) error {
	if n <= 0 {
		return nil
	}
	scratch := make([]byte, 4096)
	remaining := n
	for remaining > 0 {
		chunk := remaining
		if chunk > len(scratch) {
			chunk = len(scratch)
		}
		got, err := u.Read(scratch[:chunk], timeout)
		remaining -= got
		if err != nil {
			return err
		}
	}
	return nil
}

func (u *usbTransport) Cancel() {
	u.cancel.Cancel()
}

func (u *usbTransport) Close() error {
	u.iface.Close()
	errDev := u.dev.Close()
	errCtx := u.ctx.Close()
	if errDev != nil {
		return errDev
	}
	return errCtx
}

func mapUSBErr(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("transport: usb: %w", err)
}
