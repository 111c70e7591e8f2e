// Package codec implements the sample-format codec: conversion of raw wire
// samples to and from the host numeric representation, mask parsing, and
// channel finalisation ordering. Every function here is pure — no
// transport, responder or buffer lifetime state leaks into this package —
// so it can be exercised directly by table-driven tests per spec §8.
package codec

import (
	"encoding/binary"
	"fmt"
)

// Format describes the wire layout of one channel's samples, mirroring
// struct iio_data_format from the data model (spec §3).
type Format struct {
	Bits         uint    // meaningful bits, 1..64
	Length       uint    // storage width in bits, multiple of 8, >= Bits
	Shift        uint    // right-shift applied after endian fix-up
	IsSigned     bool
	IsBigEndian  bool
	IsFullyDefined bool  // upper bits already sign-extended/masked on the wire
	Repeat       uint    // sample group multiplicity, >= 1
	Scale        float64
	HasScale     bool
	Offset       float64
	HasOffset    bool
}

// hostLittleEndian is a runtime probe, never a compile-time assumption
// (spec §9 DESIGN NOTES, "Endian probing").
var hostLittleEndian = func() bool {
	var x uint16 = 1
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], x)
	return b[0] == 1
}()

// maxEncodeScratch is the fixed scratch width for ConvertInverse. Samples
// wider than this are silently skipped, per spec §9's Open Question: the
// underlying behavior is preserved rather than "tidied" into a dynamic
// allocation.
const maxEncodeScratch = 1024

// Validate checks the structural invariants from spec §3.
func (f Format) Validate() error {
	if f.Bits == 0 || f.Bits > 64 {
		return fmt.Errorf("codec: bits %d out of range", f.Bits)
	}
	if f.Length%8 != 0 {
		return fmt.Errorf("codec: length %d not a multiple of 8", f.Length)
	}
	if f.Bits > f.Length {
		return fmt.Errorf("codec: bits %d exceeds length %d", f.Bits, f.Length)
	}
	if f.Shift+f.Bits > f.Length {
		return fmt.Errorf("codec: shift %d + bits %d exceeds length %d", f.Shift, f.Bits, f.Length)
	}
	if f.Repeat == 0 {
		return fmt.Errorf("codec: repeat must be >= 1")
	}
	return nil
}

// byteWidth returns length/8, the wire width of a single sample group
// element.
func (f Format) byteWidth() int { return int(f.Length / 8) }

// wireBytesToUint reads w bytes in the format's wire byte order into a
// uint64. w must be <= 8.
func wireBytesToUint(buf []byte, w int, bigEndian bool) uint64 {
	var tmp [8]byte
	if bigEndian {
		copy(tmp[8-w:], buf[:w])
		return binary.BigEndian.Uint64(tmp[:])
	}
	copy(tmp[:w], buf[:w])
	return binary.LittleEndian.Uint64(tmp[:])
}

// uintToWireBytes writes the low w bytes of val into dst using the given
// wire byte order.
func uintToWireBytes(dst []byte, val uint64, w int, bigEndian bool) {
	var tmp [8]byte
	if bigEndian {
		binary.BigEndian.PutUint64(tmp[:], val)
		copy(dst[:w], tmp[8-w:])
		return
	}
	binary.LittleEndian.PutUint64(tmp[:], val)
	copy(dst[:w], tmp[:w])
}

// hostBytesToUint / uintToHostBytes perform the same job using the
// runtime-probed host byte order, used for the host-facing side of
// Convert/ConvertInverse.
func hostBytesToUint(buf []byte, w int) uint64 {
	return wireBytesToUint(buf, w, !hostLittleEndian)
}

func uintToHostBytes(dst []byte, val uint64, w int) {
	uintToWireBytes(dst, val, w, !hostLittleEndian)
}

func lowMask(bits uint) uint64 {
	if bits >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << bits) - 1
}

func signExtend(val uint64, bits, width uint) uint64 {
	if bits == 0 || bits >= width {
		return val & lowMask(width)
	}
	val &= lowMask(bits)
	signBit := uint64(1) << (bits - 1)
	if val&signBit != 0 {
		val |= ^lowMask(bits) & lowMask(width)
	}
	return val
}

// Convert decodes one sample group (Repeat elements) of raw wire bytes from
// src into host-native sample words in dst. len(src) and len(dst) must each
// be at least byteWidth()*Repeat. This implements iio_channel_convert from
// spec §4.5.
func (f Format) Convert(dst, src []byte) error {
	w := f.byteWidth()
	need := w * int(f.Repeat)
	if len(src) < need || len(dst) < need {
		return fmt.Errorf("codec: Convert needs %d bytes, got src=%d dst=%d", need, len(src), len(dst))
	}
	for i := 0; i < int(f.Repeat); i++ {
		off := i * w
		val := wireBytesToUint(src[off:off+w], w, f.IsBigEndian)
		if f.Shift > 0 {
			val >>= f.Shift
		}
		if !f.IsFullyDefined {
			if f.IsSigned {
				val = signExtend(val, f.Bits, f.Length)
			} else {
				val &= lowMask(f.Bits)
			}
		} else {
			val &= lowMask(f.Length)
		}
		uintToHostBytes(dst[off:off+w], val, w)
	}
	return nil
}

// ConvertInverse encodes one sample group of host-native sample words from
// src into raw wire bytes in dst. This implements
// iio_channel_convert_inverse from spec §4.5, including the fixed
// 1024-byte scratch limit: sample groups wider than maxEncodeScratch are
// silently skipped (dst left untouched), matching the documented-but-
// underspecified behavior in spec §9.
func (f Format) ConvertInverse(dst, src []byte) error {
	w := f.byteWidth()
	need := w * int(f.Repeat)
	if need > maxEncodeScratch {
		return nil
	}
	if len(src) < need || len(dst) < need {
		return fmt.Errorf("codec: ConvertInverse needs %d bytes, got src=%d dst=%d", need, len(src), len(dst))
	}
	for i := 0; i < int(f.Repeat); i++ {
		off := i * w
		val := hostBytesToUint(src[off:off+w], w)
		val &= lowMask(f.Bits)
		if f.Shift > 0 {
			val <<= f.Shift
		}
		uintToWireBytes(dst[off:off+w], val, w, f.IsBigEndian)
	}
	return nil
}

// DecodeSample decodes a single raw wire sample element (byteWidth() bytes,
// no Repeat looping) directly into a 64-bit host integer, applying the same
// shift/mask/sign-extend steps as Convert without round-tripping through a
// second byte buffer. Callers that want numeric values instead of raw bytes
// (e.g. a streaming FFT preview) use this instead of Convert+parse.
func (f Format) DecodeSample(raw []byte) (int64, error) {
	w := f.byteWidth()
	if len(raw) < w {
		return 0, fmt.Errorf("codec: DecodeSample needs %d bytes, got %d", w, len(raw))
	}
	val := wireBytesToUint(raw, w, f.IsBigEndian)
	if f.Shift > 0 {
		val >>= f.Shift
	}
	if !f.IsFullyDefined {
		if f.IsSigned {
			val = signExtend(val, f.Bits, f.Length)
		} else {
			val &= lowMask(f.Bits)
		}
	} else {
		val &= lowMask(f.Length)
	}
	if f.IsSigned {
		val = signExtend(val, f.Length, 64)
	}
	return int64(val), nil
}

// ApplyScale converts a raw decoded host sample (as a signed/unsigned
// integer depending on IsSigned) into the scaled floating point value
// (raw + offset) * scale, per the scale/offset back-fill described in spec §6.
func (f Format) ApplyScale(raw int64) float64 {
	v := float64(raw)
	if f.HasOffset {
		v += f.Offset
	}
	if f.HasScale {
		v *= f.Scale
	}
	return v
}
