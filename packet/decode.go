package packet

// Stop tells why decoding ended.
type Stop uint8

// Stop reasons.
const (
	StopEnd           Stop = iota // every word was consumed
	StopUnknownPacket             // type-1 or type-2 header
	StopUnknownOpcode             // type-3 header with an opcode outside the decoded set
	StopTruncated                 // body runs past the last word
)

var stopNames = [...]string{
	StopEnd:           "end",
	StopUnknownPacket: "unknown packet",
	StopUnknownOpcode: "unknown opcode",
	StopTruncated:     "truncated packet",
}

// String returns a short description of the stop reason.
func (s Stop) String() string {
	if int(s) < len(stopNames) {
		return stopNames[s]
	}
	return "unknown stop"
}

// Packet is one decoded packet. Body aliases the decoded word slice.
type Packet struct {
	Offset int
	Header Header
	Body   []uint32
}

// RegisterAt returns the register byte address body word i of a type-0
// packet is written to.
func (p Packet) RegisterAt(i int) uint32 {
	reg := p.Header.Register()
	if p.Header.OneRegister() {
		return reg
	}
	//nolint:gosec // G115: i is bounded by the 14-bit count field
	return reg + uint32(i)*4
}

// Trace is the result of decoding a word stream.
type Trace struct {
	Packets []Packet

	// Stop is why decoding ended and StopAt the word index where it did.
	// For StopEnd, StopAt equals the number of words.
	Stop   Stop
	StopAt int

	// StopHeader is the header at StopAt when Stop is not StopEnd.
	StopHeader Header
}

// Decode walks words from index 0 and splits them into packets until the
// words run out or a packet cannot be decoded.
func Decode(words []uint32) Trace {
	var tr Trace
	i := 0
	for i < len(words) {
		h := Header(words[i])
		stop := StopEnd
		switch {
		case h.Type() != Type0 && h.Type() != Type3:
			stop = StopUnknownPacket
		case h.Type() == Type3 && !h.Opcode().Known():
			stop = StopUnknownOpcode
		case i+1+h.BodyWords() > len(words):
			stop = StopTruncated
		}
		if stop != StopEnd {
			tr.Stop, tr.StopAt, tr.StopHeader = stop, i, h
			return tr
		}

		end := i + 1 + h.BodyWords()
		tr.Packets = append(tr.Packets, Packet{Offset: i, Header: h, Body: words[i+1 : end]})
		i = end
	}
	tr.Stop, tr.StopAt = StopEnd, len(words)
	return tr
}
