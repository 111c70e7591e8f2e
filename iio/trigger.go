package iio

import (
	"strings"

	"github.com/analogdevicesinc/libiio-sub000/internal/errno"
	"github.com/analogdevicesinc/libiio-sub000/internal/framing"
	"github.com/analogdevicesinc/libiio-sub000/internal/responder"
	"github.com/analogdevicesinc/libiio-sub000/internal/transport"
)

// GetTrigger resolves the device's current trigger, or nil if none is set
// (spec §4.4, "Trigger get"). It is a weak reference: the returned Device
// still belongs to the same Context.
func (d *Device) GetTrigger() (*Device, error) {
	if d.ctx.resp.BinaryMode() {
		return d.getTriggerBinary()
	}
	return d.getTriggerLegacy()
}

// SetTrigger assigns dev's trigger. Passing nil clears it (spec §4.4,
// "binary code = -1 in a set-trigger request clears the trigger").
func (d *Device) SetTrigger(trigger *Device) error {
	if d.ctx.resp.BinaryMode() {
		return d.setTriggerBinary(trigger)
	}
	return d.setTriggerLegacy(trigger)
}

func (d *Device) getTriggerBinary() (*Device, error) {
	var result *Device
	err := d.ctx.withDefaultIO(func(io *responder.IO) error {
		if err := io.GetResponseAsync(); err != nil {
			return err
		}
		cmd := framing.Command{Op: framing.OpGetTrig, Dev: byte(d.index)}
		if err := io.SendCommandAsync(cmd); err != nil {
			return err
		}
		if err := io.WaitForCommandDone(d.ctx.timeout); err != nil {
			return err
		}
		code, err := io.WaitForResponse()
		if code == errno.ErrNotFound.Code {
			return nil // -ENODEV: no trigger assigned
		}
		if err != nil {
			return err
		}
		if int(code) >= len(d.ctx.devices) {
			return errno.ErrNotFound
		}
		result = d.ctx.devices[code]
		return nil
	})
	return result, err
}

func (d *Device) setTriggerBinary(trigger *Device) error {
	devIdx := int32(-1)
	if trigger != nil {
		devIdx = int32(trigger.index)
	}
	return d.ctx.withDefaultIO(func(io *responder.IO) error {
		if err := io.GetResponseAsync(); err != nil {
			return err
		}
		cmd := framing.Command{Op: framing.OpSetTrig, Dev: byte(d.index), Code: devIdx}
		if err := io.SendCommandAsync(cmd); err != nil {
			return err
		}
		if err := io.WaitForCommandDone(d.ctx.timeout); err != nil {
			return err
		}
		code, err := io.WaitForResponse()
		if err != nil {
			return err
		}
		if code < 0 {
			return errno.FromCode(code)
		}
		return nil
	})
}

// getTriggerLegacy implements GETTRIG: "0" for none, else length + name +
// "\n" (spec §6). The returned name is resolved against the context's
// device list by name.
func (d *Device) getTriggerLegacy() (*Device, error) {
	var result *Device
	err := d.ctx.resp.WithLegacy(func(tr transport.Transport) error {
		if err := framing.WriteCommand(tr, framing.BuildCommand("GETTRIG", d.ID), d.ctx.timeout); err != nil {
			return err
		}
		n, err := framing.ReadInteger(tr, d.ctx.timeout)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if n < 0 {
			return errno.FromCode(int32(n))
		}
		payload, err := framing.ReadPayload(tr, int(n), d.ctx.timeout)
		if err != nil {
			return err
		}
		name := strings.TrimRight(string(payload), "\x00")
		for _, dev := range d.ctx.devices {
			if dev.Name == name || dev.ID == name {
				result = dev
				return nil
			}
		}
		return errno.ErrNotFound
	})
	return result, err
}

func (d *Device) setTriggerLegacy(trigger *Device) error {
	fields := []string{"SETTRIG", d.ID}
	if trigger != nil {
		fields = append(fields, trigger.ID)
	}
	return d.ctx.resp.WithLegacy(func(tr transport.Transport) error {
		if err := framing.WriteCommand(tr, framing.BuildCommand(fields...), d.ctx.timeout); err != nil {
			return err
		}
		n, err := framing.ReadInteger(tr, d.ctx.timeout)
		if err != nil {
			return err
		}
		if n < 0 {
			return errno.FromCode(int32(n))
		}
		return nil
	})
}
