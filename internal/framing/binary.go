// Package framing implements the two wire framings described in spec §4.2:
// legacy CRLF text commands, and the binary mode's 8-byte command header
// plus payload. Both framings are transport-agnostic; they only know how
// to read/write through the transport.Transport interface.
package framing

import (
	"encoding/binary"
	"fmt"
)

// Opcode identifies a binary-mode command, per spec §6's "Wire commands
// (binary)" table. Numeric values are this module's own assignment — the
// table in spec §6 names the opcodes but not their wire values, so a
// stable internal enumeration is defined here and used consistently by
// both the encoder and decoder.
type Opcode uint8

const (
	OpResponse Opcode = 0x00
	OpPrint    Opcode = 0x01
	OpZPrint   Opcode = 0x02
	OpTimeout  Opcode = 0x03

	OpReadAttr     Opcode = 0x10
	OpWriteAttr    Opcode = 0x11
	OpReadDbgAttr  Opcode = 0x12
	OpWriteDbgAttr Opcode = 0x13
	OpReadBufAttr  Opcode = 0x14
	OpWriteBufAttr Opcode = 0x15
	OpReadChnAttr  Opcode = 0x16
	OpWriteChnAttr Opcode = 0x17

	OpGetTrig Opcode = 0x20
	OpSetTrig Opcode = 0x21

	OpCreateBuffer  Opcode = 0x30
	OpFreeBuffer    Opcode = 0x31
	OpEnableBuffer  Opcode = 0x32
	OpDisableBuffer Opcode = 0x33

	OpCreateBlock        Opcode = 0x40
	OpFreeBlock          Opcode = 0x41
	OpTransferBlock      Opcode = 0x42
	OpEnqueueBlockCyclic Opcode = 0x43
)

// HeaderLen is the fixed binary command header size (spec §3, Command).
const HeaderLen = 8

// Command is the binary wire PDU header from spec §3: 1-byte opcode,
// 1-byte device index, 2-byte client_id, 4-byte signed code, little-endian,
// total 8 bytes.
type Command struct {
	Op       Opcode
	Dev      uint8
	ClientID uint16
	Code     int32
}

// Encode serialises the header into its 8-byte little-endian wire form.
func (c Command) Encode() [HeaderLen]byte {
	var h [HeaderLen]byte
	h[0] = byte(c.Op)
	h[1] = c.Dev
	binary.LittleEndian.PutUint16(h[2:4], c.ClientID)
	binary.LittleEndian.PutUint32(h[4:8], uint32(c.Code))
	return h
}

// DecodeCommand parses an 8-byte header.
func DecodeCommand(hdr []byte) (Command, error) {
	if len(hdr) != HeaderLen {
		return Command{}, fmt.Errorf("framing: invalid header length %d", len(hdr))
	}
	return Command{
		Op:       Opcode(hdr[0]),
		Dev:      hdr[1],
		ClientID: binary.LittleEndian.Uint16(hdr[2:4]),
		Code:     int32(binary.LittleEndian.Uint32(hdr[4:8])),
	}, nil
}

// PackAttrCode packs the code field used by attribute opcodes: high 16 bits
// = attribute index within its list, low 16 bits = channel index (channel
// scope) or buffer id (buffer scope), per spec §6.
func PackAttrCode(attrIndex uint16, scopeIndex uint16) int32 {
	return int32(uint32(attrIndex)<<16 | uint32(scopeIndex))
}

// UnpackAttrCode is the inverse of PackAttrCode.
func UnpackAttrCode(code int32) (attrIndex uint16, scopeIndex uint16) {
	u := uint32(code)
	return uint16(u >> 16), uint16(u)
}
