package framing

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

// WriteCommand sends a CRLF-terminated ASCII command line, per spec §4.2.
func WriteCommand(tr transport.Transport, cmd string, timeout time.Duration) error {
	_, err := tr.Write([]byte(cmd+"\r\n"), timeout)
	return err
}

// ReadInteger implements the legacy integer-line parser from spec §4.2:
// leading stray '\n' bytes are skipped, the line is read through to the
// next '\n', parsed as signed base-10 with overflow rejected, and
// "invalid" returned if no digits were consumed.
func ReadInteger(tr transport.Transport, timeout time.Duration) (int64, error) {
	for {
		line, err := tr.ReadLine(timeout)
		if err != nil {
			return 0, err
		}
		trimmed := strings.TrimRight(string(line), "\r\n")
		if trimmed == "" {
			continue // stray newline, keep skipping
		}
		v, err := strconv.ParseInt(trimmed, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("framing: invalid integer line %q: %w", trimmed, err)
		}
		return v, nil
	}
}

// ReadPayload reads exactly n bytes of payload followed by the single
// terminating '\n' the legacy framing appends after every length-prefixed
// response (spec §4.2). The trailing newline is consumed, not returned.
func ReadPayload(tr transport.Transport, n int, timeout time.Duration) ([]byte, error) {
	buf := make([]byte, n+1)
	total := 0
	for total < len(buf) {
		got, err := tr.Read(buf[total:], timeout)
		total += got
		if err != nil {
			return nil, err
		}
	}
	if buf[n] != '\n' {
		return nil, fmt.Errorf("framing: expected trailing newline, got %q", buf[n])
	}
	return buf[:n], nil
}

// BuildCommand joins fields into a single space-separated legacy command
// line, matching the grammar in spec §6's legacy command table.
func BuildCommand(fields ...string) string {
	return strings.Join(fields, " ")
}
