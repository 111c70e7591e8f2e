package iio

import "github.com/analogdevicesinc/libiio-sub000/internal/codec"

// Channel is a named signal path on a Device (spec §3). Its Format is the
// codec.Format the sample-format codec operates on directly -- no
// duplicate struct, no translation layer between bootstrap and streaming.
type Channel struct {
	ID       string
	Name     string
	IsOutput bool

	// IsScanElement, Index and Number implement the scan-element metadata
	// from spec §3: Index is the signed logical index (-1 if not a scan
	// element), Number is the dense position assigned at finalisation.
	IsScanElement bool
	Index         int64
	Number        int

	Format codec.Format

	device *Device
	attrs  []string
}

// Device returns the owning device.
func (c *Channel) Device() *Device { return c.device }

// Label returns Name if set, else ID, matching how the client identifies
// channels in log messages and error strings.
func (c *Channel) Label() string {
	if c.Name != "" {
		return c.Name
	}
	return c.ID
}

// AttrNames returns the channel's known attribute names, in declaration
// order (legacy-mode name lookup consults this list per spec §4.4).
func (c *Channel) AttrNames() []string { return c.attrs }
