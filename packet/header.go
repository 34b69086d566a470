// Package packet decodes command-processor packet headers and renders a
// command stream as diagnostic text.
//
// Every packet starts with a 32-bit header:
//
//	bits 31:30  packet type (0..3)
//	bits 29:16  count; the body is count+1 words
//	type 0:
//	  bit  15    one-register write (every body word goes to the same register)
//	  bits 12:0  register index; the byte address is index << 2
//	type 3:
//	  bits 15:8  opcode
//
// Decoding never fails. A packet the decoder does not understand ends the
// trace early with a diagnostic line.
package packet

import "fmt"

// Type is the packet type field of a header.
type Type uint8

// Packet types.
const (
	Type0 Type = iota // register write
	Type1             // legacy two-register write, not decoded
	Type2             // filler, not decoded
	Type3             // opcode packet
)

// String returns "Type0".."Type3".
func (t Type) String() string {
	return fmt.Sprintf("Type%d", uint8(t))
}

// Header field limits.
const (
	// MaxBodyWords is the largest body a single header can describe.
	MaxBodyWords = 0x3FFF + 1

	// MaxRegister is the largest encodable register byte address.
	MaxRegister = 0x1FFF << 2
)

// Header is a raw packet header word.
type Header uint32

// Type returns bits 31:30.
func (h Header) Type() Type { return Type((h >> 30) & 3) }

// Count returns the raw 14-bit count field.
func (h Header) Count() int { return int((h >> 16) & 0x3FFF) }

// BodyWords returns the number of words following the header.
func (h Header) BodyWords() int { return h.Count() + 1 }

// Register returns the register byte address of a type-0 header.
func (h Header) Register() uint32 { return (uint32(h) & 0x1FFF) << 2 }

// OneRegister reports whether a type-0 header writes every body word to the
// same register.
func (h Header) OneRegister() bool { return (h>>15)&1 == 1 }

// Opcode returns the opcode of a type-3 header.
func (h Header) Opcode() Opcode { return Opcode((h >> 8) & 0xFF) }

// MakeType0 builds a type-0 header writing n body words starting at the
// register byte address reg. It panics if n or reg cannot be encoded.
func MakeType0(reg uint32, n int, oneRegister bool) uint32 {
	if n < 1 || n > MaxBodyWords {
		panic(fmt.Sprintf("packet: type-0 body of %d words", n))
	}
	if reg&3 != 0 || reg > MaxRegister {
		panic(fmt.Sprintf("packet: register 0x%X not encodable", reg))
	}
	h := uint32(Type0)<<30 | uint32(n-1)<<16 | reg>>2
	if oneRegister {
		h |= 1 << 15
	}
	return h
}

// MakeType3 builds a type-3 header for op with n body words. It panics if n
// cannot be encoded.
func MakeType3(op Opcode, n int) uint32 {
	if n < 1 || n > MaxBodyWords {
		panic(fmt.Sprintf("packet: type-3 body of %d words", n))
	}
	return uint32(Type3)<<30 | uint32(n-1)<<16 | uint32(op)<<8
}

// Filler is a type-2 header word.
const Filler uint32 = uint32(Type2) << 30
