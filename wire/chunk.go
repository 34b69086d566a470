package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// ChunkID identifies the contents of a submission chunk.
type ChunkID uint32

// Chunk identifiers understood by the submission interface.
const (
	ChunkIB     ChunkID = 0x01
	ChunkRelocs ChunkID = 0x02
)

// String returns the chunk id name.
func (id ChunkID) String() string {
	switch id {
	case ChunkIB:
		return "IB"
	case ChunkRelocs:
		return "RELOCS"
	default:
		return fmt.Sprintf("ChunkID(0x%X)", uint32(id))
	}
}

// DescriptorBytes is the encoded size of one chunk descriptor.
const DescriptorBytes = 16

// SubmissionChunks is the number of chunks in every submission.
const SubmissionChunks = 2

var (
	// ErrChunkOrder is returned when a submission does not carry the
	// instruction chunk first and the relocation chunk second.
	ErrChunkOrder = errors.New("wire: chunks must be IB then RELOCS")

	// ErrChunkLength is returned when a chunk claims more words than it holds.
	ErrChunkLength = errors.New("wire: chunk length exceeds its data")

	// ErrShortArena is returned when an arena is too small for its descriptors.
	ErrShortArena = errors.New("wire: truncated submission arena")
)

// Chunk is one segment of a submission.
type Chunk struct {
	ID       ChunkID
	LengthDW uint32
	Data     []uint32
}

// Words returns the first LengthDW words of the chunk data.
func (c Chunk) Words() []uint32 {
	n := int(c.LengthDW)
	if n > len(c.Data) {
		n = len(c.Data)
	}
	return c.Data[:n]
}

// AppendDescriptor appends the 16-byte descriptor of c, pointing at dataAddr.
func (c Chunk) AppendDescriptor(dst []byte, dataAddr uint64) []byte {
	dst = binary.LittleEndian.AppendUint32(dst, uint32(c.ID))
	dst = binary.LittleEndian.AppendUint32(dst, c.LengthDW)
	return binary.LittleEndian.AppendUint64(dst, dataAddr)
}

// Descriptor is a decoded chunk descriptor.
type Descriptor struct {
	ID       ChunkID
	LengthDW uint32
	DataAddr uint64
}

// ParseDescriptor decodes a descriptor from the first DescriptorBytes of b.
func ParseDescriptor(b []byte) (Descriptor, error) {
	if len(b) < DescriptorBytes {
		return Descriptor{}, fmt.Errorf("%w: descriptor needs %d bytes, have %d", ErrShortArena, DescriptorBytes, len(b))
	}
	return Descriptor{
		ID:       ChunkID(binary.LittleEndian.Uint32(b[0:])),
		LengthDW: binary.LittleEndian.Uint32(b[4:]),
		DataAddr: binary.LittleEndian.Uint64(b[8:]),
	}, nil
}

// Submission is the descriptor handed to a submission channel: exactly two
// chunks, the instruction stream followed by the relocation stream.
type Submission struct {
	Chunks [SubmissionChunks]Chunk
}

// NewSubmission builds a submission from the instruction and relocation
// chunks.
func NewSubmission(ib, relocs Chunk) *Submission {
	return &Submission{Chunks: [SubmissionChunks]Chunk{ib, relocs}}
}

// IB returns the instruction-stream chunk.
func (s *Submission) IB() Chunk { return s.Chunks[0] }

// Relocs returns the relocation-stream chunk.
func (s *Submission) Relocs() Chunk { return s.Chunks[1] }

// Validate checks chunk order and lengths.
func (s *Submission) Validate() error {
	if s.Chunks[0].ID != ChunkIB || s.Chunks[1].ID != ChunkRelocs {
		return fmt.Errorf("%w: got %s, %s", ErrChunkOrder, s.Chunks[0].ID, s.Chunks[1].ID)
	}
	for _, c := range s.Chunks {
		if int(c.LengthDW) > len(c.Data) {
			return fmt.Errorf("%w: %s has %d of %d words", ErrChunkLength, c.ID, len(c.Data), c.LengthDW)
		}
	}
	if s.Chunks[1].LengthDW%RecordWords != 0 {
		return fmt.Errorf("%w: %d words", ErrShortRecord, s.Chunks[1].LengthDW)
	}
	return nil
}

// ArenaSize returns the number of bytes MarshalArena produces.
func (s *Submission) ArenaSize() int {
	n := SubmissionChunks * DescriptorBytes
	for _, c := range s.Chunks {
		n += int(c.LengthDW) * 4
	}
	return n
}

// MarshalArena lays the submission out as one contiguous block: both
// descriptors, then the instruction words, then the relocation words. Each
// descriptor's data address is base plus the byte offset of its chunk.
func (s *Submission) MarshalArena(base uint64) []byte {
	out := make([]byte, 0, s.ArenaSize())
	off := uint64(SubmissionChunks * DescriptorBytes)
	for _, c := range s.Chunks {
		out = c.AppendDescriptor(out, base+off)
		off += uint64(c.LengthDW) * 4
	}
	for _, c := range s.Chunks {
		out = AppendWordsLE(out, c.Words())
	}
	return out
}

// UnmarshalArena parses an arena produced by MarshalArena with the same base.
func UnmarshalArena(b []byte, base uint64) (*Submission, error) {
	var sub Submission
	for i := range sub.Chunks {
		d, err := ParseDescriptor(b[min(i*DescriptorBytes, len(b)):])
		if err != nil {
			return nil, err
		}
		if d.DataAddr < base {
			return nil, fmt.Errorf("%w: %s data address 0x%X below base 0x%X", ErrShortArena, d.ID, d.DataAddr, base)
		}
		start := d.DataAddr - base
		end := start + uint64(d.LengthDW)*4
		if end > uint64(len(b)) {
			return nil, fmt.Errorf("%w: %s needs bytes [%d,%d), have %d", ErrShortArena, d.ID, start, end, len(b))
		}
		words, err := WordsFromLE(b[start:end])
		if err != nil {
			return nil, err
		}
		sub.Chunks[i] = Chunk{ID: d.ID, LengthDW: d.LengthDW, Data: words}
	}
	if err := sub.Validate(); err != nil {
		return nil, err
	}
	return &sub, nil
}
