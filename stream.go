package cmdstream

import (
	"fmt"
	"io"

	"github.com/gogpu/cmdstream/bo"
	"github.com/gogpu/cmdstream/internal/cmdbuf"
	"github.com/gogpu/cmdstream/wire"
)

// Stream limits.
const (
	// MaxWords is the largest capacity a stream may be created with
	// (64 KiB of command words). Smaller requests are raised to it.
	MaxWords = 64 * 1024 / 4

	// FlushThreshold is the referenced-bytes level above which NeedFlush
	// reports true.
	FlushThreshold = 32 * 1024 * 1024
)

// Domain is a buffer placement mask.
type Domain = wire.Domain

// Placement domains.
const (
	DomainCPU  = wire.DomainCPU
	DomainGTT  = wire.DomainGTT
	DomainVRAM = wire.DomainVRAM
)

// Allocator provides command-buffer storage. See WithAllocator.
type Allocator = cmdbuf.Allocator

// AllocatorFunc adapts a function to Allocator.
type AllocatorFunc = cmdbuf.AllocatorFunc

// Stream accumulates command words and buffer relocations for one
// submission.
//
// A Stream is not safe for concurrent use. Use one stream per producer
// goroutine or serialize access externally.
type Stream interface {
	// WriteWord appends one command word.
	WriteWord(w uint32) error

	// WriteWords appends several words. Either all are written or none.
	WriteWords(ws ...uint32) error

	// WriteReloc registers a reference to the byte range [start, end) of
	// obj and writes the relocation marker and slot offset into the stream.
	// Exactly one of read and write must be set and neither may be
	// DomainCPU. It returns the slot offset of the relocation record.
	WriteReloc(obj bo.Object, start, end uint32, read, write Domain, flags uint32) (uint32, error)

	// Begin opens a section expected to hold ndw words.
	Begin(ndw int) error

	// End closes the current section.
	End() error

	// Emit submits the stream to the channel and returns the channel's
	// error unchanged. Buffer references are released whether or not the
	// submission succeeds. Words and relocation entries are kept until
	// Erase.
	Emit() error

	// Erase empties the stream for reuse, releasing any buffer references
	// still held. Capacity is kept.
	Erase() error

	// Destroy releases all storage and any references still held.
	Destroy() error

	// NeedFlush reports whether the referenced buffers exceed
	// FlushThreshold bytes.
	NeedFlush() bool

	// Print writes a decoded listing of the command words to w.
	Print(w io.Writer) error

	// Stats returns a snapshot of the stream bookkeeping.
	Stats() Stats
}

// Stats is a snapshot of a stream's bookkeeping.
type Stats struct {
	Words           int    // command words written
	Capacity        int    // command buffer capacity in words
	Relocs          int    // relocation entries
	HeldRefs        int    // buffer references still owned
	ReferencedBytes uint64 // summed size of distinct referenced buffers
	Section         int    // open section depth
}

// String returns a one-line summary.
func (s Stats) String() string {
	return fmt.Sprintf("Stream[%d/%d words, %d relocs, %d held, %d bytes referenced]",
		s.Words, s.Capacity, s.Relocs, s.HeldRefs, s.ReferencedBytes)
}

// Channel is the kernel submission interface a stream flushes to.
type Channel interface {
	// Submit hands over one submission. The chunks alias stream storage
	// and are only valid for the duration of the call.
	Submit(sub *wire.Submission) error
}

// ChannelFunc adapts a function to the Channel interface.
type ChannelFunc func(sub *wire.Submission) error

// Submit calls f.
func (f ChannelFunc) Submit(sub *wire.Submission) error { return f(sub) }
