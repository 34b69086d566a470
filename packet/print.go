package packet

import (
	"bufio"
	"fmt"
	"io"
)

// Fprint decodes words and writes the diagnostic listing to w: one header
// line and one line per body word for every packet, then a diagnostic line
// if decoding stopped early. The only error returned is a write error.
func Fprint(w io.Writer, words []uint32) error {
	return Render(w, Decode(words), len(words))
}

// Render writes the listing of an already decoded trace of n words.
func Render(w io.Writer, tr Trace, n int) error {
	bw := bufio.NewWriter(w)
	for _, p := range tr.Packets {
		renderPacket(bw, p)
	}

	switch tr.Stop {
	case StopUnknownPacket:
		fmt.Fprintf(bw, "unknown packet 0x%08X at %d\n", uint32(tr.StopHeader), tr.StopAt)
	case StopUnknownOpcode:
		fmt.Fprintf(bw, "Pkt3 at %d :\n", tr.StopAt)
		fmt.Fprintf(bw, "unknown opcode 0x%02X at %d\n", uint8(tr.StopHeader.Opcode()), tr.StopAt)
	case StopTruncated:
		fmt.Fprintf(bw, "truncated packet at %d (%d dwords, %d available)\n",
			tr.StopAt, tr.StopHeader.BodyWords(), n-tr.StopAt-1)
	}
	return bw.Flush()
}

func renderPacket(w io.Writer, p Packet) {
	switch p.Header.Type() {
	case Type0:
		fmt.Fprintf(w, "Pkt0 at %d (%d dwords):\n", p.Offset, len(p.Body))
		for i, word := range p.Body {
			fmt.Fprintf(w, "    0x%08X -> 0x%04X\n", word, p.RegisterAt(i))
		}
	case Type3:
		fmt.Fprintf(w, "Pkt3 at %d :\n", p.Offset)
		fmt.Fprintf(w, "    %s:\n", p.Header.Opcode())
		for _, word := range p.Body {
			fmt.Fprintf(w, "        0x%08X\n", word)
		}
	}
}
