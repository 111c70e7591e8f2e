package framing

import (
	"bytes"
	"io"
	"time"

	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

// fakeTransport is a minimal in-memory transport.Transport used to drive
// the framing layer without a real socket, mirroring the teacher's
// loopback net.Conn test helpers but without needing a goroutine pair.
type fakeTransport struct {
	in  *bytes.Buffer
	out *bytes.Buffer
}

func newFakeTransport(serverToClient []byte) *fakeTransport {
	return &fakeTransport{in: bytes.NewBuffer(serverToClient), out: &bytes.Buffer{}}
}

func (f *fakeTransport) Read(buf []byte, _ time.Duration) (int, error) {
	n, err := f.in.Read(buf)
	if err == io.EOF {
		err = transport.ErrBrokenPipe
	}
	return n, err
}

func (f *fakeTransport) Write(buf []byte, _ time.Duration) (int, error) {
	return f.out.Write(buf)
}

func (f *fakeTransport) ReadLine(_ time.Duration) ([]byte, error) {
	line, err := f.in.ReadBytes('\n')
	if err == io.EOF && len(line) == 0 {
		return nil, transport.ErrBrokenPipe
	}
	return line, nil
}

func (f *fakeTransport) Discard(n int, _ time.Duration) error {
	f.in.Next(n)
	return nil
}

func (f *fakeTransport) Cancel()     {}
func (f *fakeTransport) Close() error { return nil }
