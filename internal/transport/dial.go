package transport

import "strings"

// Dial selects a concrete transport by URI prefix, per spec §6. "local:" is
// not handled here: the local sysfs/DMABUF backend bypasses the responder
// entirely and is an external collaborator outside this module's scope
// (spec §1).
func Dial(uri string) (Transport, error) {
	switch {
	case strings.HasPrefix(uri, PrefixIP):
		return DialIP(uri)
	case strings.HasPrefix(uri, PrefixUSB):
		return DialUSB(uri)
	case strings.HasPrefix(uri, PrefixSerial):
		return DialSerial(uri)
	default:
		return nil, unsupportedURI(uri)
	}
}
