// Package errno defines the POSIX-style error taxonomy shared by the
// transport, framing, responder and client layers. Every wire-facing error
// in this module round-trips through one of these sentinels so callers can
// use errors.Is instead of parsing connection-manager error strings.
package errno

import "fmt"

// Errno is a POSIX-style negative error code plus a human label. The
// numeric Code mirrors the value that would appear on the wire (a negative
// errno), so a response can be turned directly into an Errno and back.
type Errno struct {
	Code  int32
	Label string
}

func (e *Errno) Error() string {
	return fmt.Sprintf("%s (%d)", e.Label, e.Code)
}

// Is makes errors.Is(err, ErrTimedOut) etc. work across wrapped errors,
// comparing only the numeric code so a freshly decoded Errno from the wire
// matches the well-known sentinel of the same code.
func (e *Errno) Is(target error) bool {
	t, ok := target.(*Errno)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// Well-known codes, values chosen to match the Linux errno numbers the
// daemon actually sends on the wire (negated).
var (
	ErrInvalidArg   = &Errno{Code: -22, Label: "invalid argument"}   // EINVAL
	ErrNotFound     = &Errno{Code: -19, Label: "no such device"}     // ENODEV
	ErrNoEntry      = &Errno{Code: -2, Label: "no such entry"}       // ENOENT
	ErrBusy         = &Errno{Code: -16, Label: "device or resource busy"} // EBUSY
	ErrBadFd        = &Errno{Code: -9, Label: "bad file descriptor"} // EBADF
	ErrBrokenPipe   = &Errno{Code: -32, Label: "broken pipe"}        // EPIPE
	ErrTimedOut     = &Errno{Code: -110, Label: "timed out"}         // ETIMEDOUT
	ErrCancelled    = &Errno{Code: -4, Label: "interrupted"}         // EINTR
	ErrProtocol     = &Errno{Code: -71, Label: "protocol error"}     // EPROTO
	ErrNotSupported = &Errno{Code: -38, Label: "not supported"}      // ENOSYS
)

var byCode = map[int32]*Errno{
	ErrInvalidArg.Code:   ErrInvalidArg,
	ErrNotFound.Code:     ErrNotFound,
	ErrNoEntry.Code:      ErrNoEntry,
	ErrBusy.Code:         ErrBusy,
	ErrBadFd.Code:        ErrBadFd,
	ErrBrokenPipe.Code:   ErrBrokenPipe,
	ErrTimedOut.Code:     ErrTimedOut,
	ErrCancelled.Code:    ErrCancelled,
	ErrProtocol.Code:     ErrProtocol,
	ErrNotSupported.Code: ErrNotSupported,
}

// FromCode converts a negative wire code into a well-known Errno, or a
// generic Errno carrying the raw code if it isn't one of the taxonomy
// entries spec'd in §7.
func FromCode(code int32) error {
	if code >= 0 {
		return nil
	}
	if e, ok := byCode[code]; ok {
		return e
	}
	return &Errno{Code: code, Label: "daemon error"}
}
