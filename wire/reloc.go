package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Relocation record geometry.
const (
	// RecordWords is the number of uint32 words in one relocation record.
	RecordWords = 6

	// RecordBytes is the size of one relocation record in bytes.
	RecordBytes = RecordWords * 4

	// RelocMarker is the word written into the instruction stream in front
	// of a relocation slot offset.
	RelocMarker uint32 = 0xC0001000
)

var (
	// ErrShortRecord is returned when a word slice does not hold a whole
	// number of relocation records.
	ErrShortRecord = errors.New("wire: truncated relocation record")

	// ErrMisalignedSlot is returned when a slot offset is not a multiple of
	// RecordBytes.
	ErrMisalignedSlot = errors.New("wire: misaligned relocation slot offset")
)

// Reloc is one relocation record: a reference from the command stream to a
// byte window of a buffer object.
type Reloc struct {
	Handle       uint32
	StartOffset  uint32
	EndOffset    uint32
	ReadDomains  Domain
	WriteDomains Domain
	Flags        uint32
}

// String returns a one-line description of the record.
func (r Reloc) String() string {
	return fmt.Sprintf("handle=%d range=[0x%X,0x%X) read=%s write=%s flags=0x%X",
		r.Handle, r.StartOffset, r.EndOffset, r.ReadDomains, r.WriteDomains, r.Flags)
}

// PutWords writes the record into dst, which must hold RecordWords words.
func (r Reloc) PutWords(dst []uint32) {
	_ = dst[RecordWords-1]
	dst[0] = r.Handle
	dst[1] = r.StartOffset
	dst[2] = r.EndOffset
	dst[3] = uint32(r.ReadDomains)
	dst[4] = uint32(r.WriteDomains)
	dst[5] = r.Flags
}

// RelocFromWords decodes one record from the first RecordWords words of src.
func RelocFromWords(src []uint32) (Reloc, error) {
	if len(src) < RecordWords {
		return Reloc{}, fmt.Errorf("%w: have %d words", ErrShortRecord, len(src))
	}
	return Reloc{
		Handle:       src[0],
		StartOffset:  src[1],
		EndOffset:    src[2],
		ReadDomains:  Domain(src[3]),
		WriteDomains: Domain(src[4]),
		Flags:        src[5],
	}, nil
}

// AppendRelocs serializes relocs onto dst in table order.
func AppendRelocs(dst []uint32, relocs []Reloc) []uint32 {
	for _, r := range relocs {
		var w [RecordWords]uint32
		r.PutWords(w[:])
		dst = append(dst, w[:]...)
	}
	return dst
}

// DecodeRelocs parses a serialized relocation chunk.
func DecodeRelocs(words []uint32) ([]Reloc, error) {
	if len(words)%RecordWords != 0 {
		return nil, fmt.Errorf("%w: %d words is not a multiple of %d", ErrShortRecord, len(words), RecordWords)
	}
	relocs := make([]Reloc, 0, len(words)/RecordWords)
	for i := 0; i < len(words); i += RecordWords {
		r, err := RelocFromWords(words[i:])
		if err != nil {
			return nil, err
		}
		relocs = append(relocs, r)
	}
	return relocs, nil
}

// SlotOffset returns the byte offset of the record at index within the
// serialized relocation chunk.
func SlotOffset(index int) uint32 {
	//nolint:gosec // G115: index is bounded by the relocation table length
	return uint32(index) * RecordBytes
}

// SlotIndex is the inverse of SlotOffset.
func SlotIndex(offset uint32) (int, error) {
	if offset%RecordBytes != 0 {
		return 0, fmt.Errorf("%w: 0x%X", ErrMisalignedSlot, offset)
	}
	return int(offset / RecordBytes), nil
}

// RelocReference returns the two words that reference the record at index
// from inside the instruction stream.
func RelocReference(index int) [2]uint32 {
	return [2]uint32{RelocMarker, SlotOffset(index)}
}

// AppendWordsLE appends words to dst as little-endian bytes.
func AppendWordsLE(dst []byte, words []uint32) []byte {
	for _, w := range words {
		dst = binary.LittleEndian.AppendUint32(dst, w)
	}
	return dst
}

// WordsFromLE decodes little-endian bytes into words. len(b) must be a
// multiple of four.
func WordsFromLE(b []byte) ([]uint32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("wire: %d bytes is not a whole number of words", len(b))
	}
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(b[i*4:])
	}
	return words, nil
}
