package iio

// DeviceDescriptor is the minimal view of a device a Backend exposes: a
// stable id and human name, enough to seed a local (non-network) context
// implementation. No local backend ships in this module; the sysfs/DMABUF
// side of libiio is explicitly out of scope (spec §1).
type DeviceDescriptor struct {
	ID   string
	Name string
}

// Backend is the narrow seam a local (in-process, non-network) context
// implementation would satisfy. It exists so Context construction is not
// hard-wired to the wire protocol, but no implementation ships here.
type Backend interface {
	Devices() []DeviceDescriptor
}
