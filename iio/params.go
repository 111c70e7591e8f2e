package iio

import "time"

// Params configures a Connect call. Zero value is a reasonable default.
type Params struct {
	// Timeout is the responder's default per-I/O timeout. Zero means
	// "never time out" (spec §4.3).
	Timeout time.Duration
}

// Option mutates Params during Connect.
type Option func(*Params)

// WithTimeout overrides the default responder timeout.
func WithTimeout(d time.Duration) Option {
	return func(p *Params) { p.Timeout = d }
}

func defaultParams() Params {
	return Params{Timeout: 5 * time.Second}
}
