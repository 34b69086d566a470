package packet

import "fmt"

// Opcode is the operation of a type-3 packet.
type Opcode uint8

// Type-3 opcodes.
const (
	OpNop         Opcode = 0x10
	OpSetScissors Opcode = 0x1E
	OpDrawVbuf    Opcode = 0x28
	OpDrawImmd    Opcode = 0x29
	OpDrawIndx    Opcode = 0x2A
	OpLoadVbpntr  Opcode = 0x2F
	OpIndxBuffer  Opcode = 0x33
	OpDrawVbuf2   Opcode = 0x34
	OpDrawImmd2   Opcode = 0x35
	OpDrawIndx2   Opcode = 0x36
)

// decodedOps is the set of opcodes the decoder renders. OpSetScissors can be
// encoded but is not part of it.
var decodedOps = map[Opcode]string{
	OpNop:        "PACKET3_NOP",
	OpDrawVbuf:   "PACKET3_3D_DRAW_VBUF",
	OpDrawImmd:   "PACKET3_3D_DRAW_IMMD",
	OpDrawIndx:   "PACKET3_3D_DRAW_INDX",
	OpLoadVbpntr: "PACKET3_3D_LOAD_VBPNTR",
	OpIndxBuffer: "PACKET3_INDX_BUFFER",
	OpDrawVbuf2:  "PACKET3_3D_DRAW_VBUF_2",
	OpDrawImmd2:  "PACKET3_3D_DRAW_IMMD_2",
	OpDrawIndx2:  "PACKET3_3D_DRAW_INDX_2",
}

// Known reports whether the decoder understands op.
func (op Opcode) Known() bool {
	_, ok := decodedOps[op]
	return ok
}

// String returns the packet name, e.g. "PACKET3_NOP".
func (op Opcode) String() string {
	if name, ok := decodedOps[op]; ok {
		return name
	}
	if op == OpSetScissors {
		return "PACKET3_SET_SCISSORS"
	}
	return fmt.Sprintf("Opcode(0x%02X)", uint8(op))
}
