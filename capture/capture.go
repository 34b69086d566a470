// Package capture records submissions as a CBOR sequence and reads them
// back for offline decoding.
package capture

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/fxamacker/cbor/v2"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/wire"
)

// cborEncMode encodes records canonically so identical submissions produce
// identical bytes.
var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("capture: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Record is one captured submission.
type Record struct {
	Seq    uint64   `cbor:"1,keyasint"`
	IB     []uint32 `cbor:"2,keyasint"`
	Relocs []uint32 `cbor:"3,keyasint"`
}

// FromSubmission copies the chunk words of sub into a record.
func FromSubmission(seq uint64, sub *wire.Submission) Record {
	return Record{
		Seq:    seq,
		IB:     append([]uint32(nil), sub.IB().Words()...),
		Relocs: append([]uint32(nil), sub.Relocs().Words()...),
	}
}

// Submission rebuilds the submission the record was captured from.
func (r Record) Submission() *wire.Submission {
	return wire.NewSubmission(
		wire.Chunk{ID: wire.ChunkIB, LengthDW: uint32(len(r.IB)), Data: r.IB},             //nolint:gosec // G115: bounded by stream capacity
		wire.Chunk{ID: wire.ChunkRelocs, LengthDW: uint32(len(r.Relocs)), Data: r.Relocs}, //nolint:gosec // G115: bounded by table length
	)
}

// Relocations decodes the relocation records.
func (r Record) Relocations() ([]wire.Reloc, error) {
	return wire.DecodeRelocs(r.Relocs)
}

// Recorder is a cmdstream.Channel that writes every submission to an
// io.Writer and optionally forwards it to another channel.
//
// Recorder is safe for concurrent use.
type Recorder struct {
	mu   sync.Mutex
	enc  *cbor.Encoder
	next cmdstream.Channel
	seq  uint64
}

var _ cmdstream.Channel = (*Recorder)(nil)

// NewRecorder creates a recorder writing to w. A non-nil next receives each
// submission after it has been recorded, and its error is returned as is.
func NewRecorder(w io.Writer, next cmdstream.Channel) *Recorder {
	return &Recorder{enc: cborEncMode.NewEncoder(w), next: next}
}

// Submit records sub and forwards it.
func (r *Recorder) Submit(sub *wire.Submission) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.seq++
	if err := r.enc.Encode(FromSubmission(r.seq, sub)); err != nil {
		return fmt.Errorf("capture: encode record %d: %w", r.seq, err)
	}
	if r.next != nil {
		return r.next.Submit(sub)
	}
	return nil
}

// Count returns the number of recorded submissions.
func (r *Recorder) Count() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.seq
}

// Reader reads records written by a Recorder.
type Reader struct {
	dec *cbor.Decoder
}

// NewReader creates a reader over r.
func NewReader(r io.Reader) *Reader {
	return &Reader{dec: cbor.NewDecoder(r)}
}

// Next returns the next record, or io.EOF after the last one.
func (r *Reader) Next() (Record, error) {
	var rec Record
	if err := r.dec.Decode(&rec); err != nil {
		if errors.Is(err, io.EOF) {
			return Record{}, io.EOF
		}
		return Record{}, fmt.Errorf("capture: decode record: %w", err)
	}
	return rec, nil
}

// ReadAll returns every remaining record.
func (r *Reader) ReadAll() ([]Record, error) {
	var recs []Record
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
}
