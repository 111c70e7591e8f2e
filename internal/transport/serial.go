//go:build linux

package transport

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

// serialTransport configures an RS-232-style link using termios ioctls,
// the same TCGETS/TCSETS shape other_examples/goserial uses, but reached
// through golang.org/x/sys/unix instead of a bespoke ioctl/poll package
// since x/sys is already a dependency shared by every example repo in the
// pack.
type serialTransport struct {
	f      *os.File
	cancel *cancelSignal
}

// serialParams is the parsed "baud,bitsPSF" tail of a serial: URI.
type serialParams struct {
	baud     int
	dataBits int
	parity   byte // n, o, e, m, s
	stopBits int  // 1 or 2
	flow     byte // n, x, r, d
}

func defaultSerialParams() serialParams {
	return serialParams{baud: 115200, dataBits: 8, parity: 'n', stopBits: 1, flow: 'n'}
}

// parseSerialURI implements the "serial:path,baud,bitsPSF" grammar from
// spec §6, defaulting to 115200,8n1n when the tail is omitted.
func parseSerialURI(uri string) (path string, p serialParams, err error) {
	rest := strings.TrimPrefix(uri, PrefixSerial)
	parts := strings.Split(rest, ",")
	path = parts[0]
	p = defaultSerialParams()
	if path == "" {
		return "", p, fmt.Errorf("transport: serial URI missing path")
	}
	if len(parts) < 2 {
		return path, p, nil
	}
	p.baud, err = strconv.Atoi(parts[1])
	if err != nil {
		return "", p, fmt.Errorf("transport: bad baud %q: %w", parts[1], err)
	}
	if len(parts) < 3 {
		return path, p, nil
	}
	spec := parts[2]
	if len(spec) != 4 {
		return "", p, fmt.Errorf("transport: bad bitsPSF spec %q, want 4 chars", spec)
	}
	bits, err := strconv.Atoi(string(spec[0]))
	if err != nil || bits < 5 || bits > 8 {
		return "", p, fmt.Errorf("transport: bad data bits in %q", spec)
	}
	p.dataBits = bits
	switch spec[1] {
	case 'n', 'o', 'e', 'm', 's':
		p.parity = spec[1]
	default:
		return "", p, fmt.Errorf("transport: bad parity in %q", spec)
	}
	switch spec[2] {
	case '1':
		p.stopBits = 1
	case '2':
		p.stopBits = 2
	default:
		return "", p, fmt.Errorf("transport: bad stop bits in %q", spec)
	}
	switch spec[3] {
	case 'n', 'x', 'r', 'd':
		p.flow = spec[3]
	default:
		return "", p, fmt.Errorf("transport: bad flow control in %q", spec)
	}
	return path, p, nil
}

var standardBauds = map[int]uint32{
	50: unix.B50, 75: unix.B75, 110: unix.B110, 134: unix.B134,
	150: unix.B150, 200: unix.B200, 300: unix.B300, 600: unix.B600,
	1200: unix.B1200, 1800: unix.B1800, 2400: unix.B2400, 4800: unix.B4800,
	9600: unix.B9600, 19200: unix.B19200, 38400: unix.B38400,
	57600: unix.B57600, 115200: unix.B115200, 230400: unix.B230400,
	460800: unix.B460800, 921600: unix.B921600,
}

// DialSerial implements the "serial:path,baud,bitsPSF" URI grammar from
// spec §6.
func DialSerial(uri string) (Transport, error) {
	path, p, err := parseSerialURI(uri)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_RDWR|unix.O_NOCTTY, 0)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", path, err)
	}

	t, err := unix.IoctlGetTermios(int(f.Fd()), unix.TCGETS)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("transport: get termios: %w", err)
	}

	baudConst, ok := standardBauds[p.baud]
	if !ok {
		f.Close()
		return nil, fmt.Errorf("transport: unsupported baud rate %d", p.baud)
	}

	// Raw mode: no canonical processing, no echo, 8-bit clean path.
	t.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP |
		unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON
	t.Oflag &^= unix.OPOST
	t.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	t.Cflag &^= unix.CSIZE | unix.PARENB | unix.PARODD | unix.CSTOPB | unix.CRTSCTS
	t.Cflag |= unix.CREAD | unix.CLOCAL

	switch p.dataBits {
	case 5:
		t.Cflag |= unix.CS5
	case 6:
		t.Cflag |= unix.CS6
	case 7:
		t.Cflag |= unix.CS7
	default:
		t.Cflag |= unix.CS8
	}
	switch p.parity {
	case 'e':
		t.Cflag |= unix.PARENB
	case 'o':
		t.Cflag |= unix.PARENB | unix.PARODD
	case 'm', 's':
		// mark/space parity has no portable termios flag on Linux; treat
		// as no parity rather than silently producing the wrong framing.
	}
	if p.stopBits == 2 {
		t.Cflag |= unix.CSTOPB
	}
	switch p.flow {
	case 'r', 'd':
		t.Cflag |= unix.CRTSCTS
	case 'x':
		t.Iflag |= unix.IXON | unix.IXOFF
	}

	t.Cflag &^= unix.CBAUD
	t.Cflag |= baudConst
	t.Ispeed = baudConst
	t.Ospeed = baudConst

	t.Cc[unix.VMIN] = 0
	t.Cc[unix.VTIME] = 0

	if err := unix.IoctlSetTermios(int(f.Fd()), unix.TCSETS, t); err != nil {
		f.Close()
		return nil, fmt.Errorf("transport: set termios: %w", err)
	}

	return &serialTransport{f: f, cancel: newCancelSignal()}, nil
}

func (s *serialTransport) blockingOp(timeout time.Duration, op func() (int, error)) (int, error) {
	if s.cancel.Cancelled() {
		return 0, ErrAborted
	}
	type result struct {
		n   int
		err error
	}
	done := make(chan result, 1)
	go func() {
		n, err := op()
		done <- result{n, err}
	}()
	select {
	case r := <-done:
		return r.n, r.err
	case <-s.cancel.Chan():
		return 0, ErrAborted
	case <-timeoutChan(timeout):
		return 0, ErrTimedOut
	}
}

func (s *serialTransport) Read(buf []byte, timeout time.Duration) (int, error) {
	return s.blockingOp(timeout, func() (int, error) { return s.f.Read(buf) })
}

func (s *serialTransport) Write(buf []byte, timeout time.Duration) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := s.blockingOp(timeout, func() (int, error) { return s.f.Write(buf[total:]) })
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func (s *serialTransport) ReadLine(timeout time.Duration) ([]byte, error) {
	var line []byte
	b := make([]byte, 1)
	for {
		n, err := s.Read(b, timeout)
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

func (s *serialTransport) Discard(n int, timeout time.Duration) error {
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
		got, err := s.Read(scratch[:chunk], timeout)
		remaining -= got
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *serialTransport) Cancel() {
	s.cancel.Cancel()
}

func (s *serialTransport) Close() error {
	return s.f.Close()
}
