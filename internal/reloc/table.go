// Package reloc implements the deduplicating relocation table of a command
// stream.
//
// Each buffer object appears at most once in a table, keyed by its handle.
// Registering an object that is already present widens the existing entry
// instead of adding a new one. The table owns one reference per entry until
// the references are released at flush or reset.
package reloc

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/cmdstream/bo"
	"github.com/gogpu/cmdstream/internal/cmdbuf"
	"github.com/gogpu/cmdstream/wire"
)

// ErrInvalidArgument is returned for rejected registrations.
var ErrInvalidArgument = errors.New("cmdstream: invalid argument")

// Table is a relocation table bound to the command buffer it references
// from.
//
// Table is not safe for concurrent use.
type Table struct {
	out     *cmdbuf.Buffer
	entries []wire.Reloc
	refs    []Ref
	total   uint64
}

// New creates an empty table whose references are written into out.
func New(out *cmdbuf.Buffer) *Table {
	return &Table{out: out}
}

// Register records a reference to the byte window [start, end) of obj with
// exactly one of read or write set, writes the relocation marker and slot
// offset into the command buffer and returns the slot offset.
//
// A rejected call changes nothing: no entry is added or modified and no
// words are written.
func (t *Table) Register(obj bo.Object, start, end uint32, read, write wire.Domain, flags uint32) (uint32, error) {
	if obj == nil {
		return 0, fmt.Errorf("%w: nil buffer object", ErrInvalidArgument)
	}
	if err := validate(obj, start, end, read, write); err != nil {
		return 0, err
	}

	idx := t.find(obj.Handle())
	if idx >= 0 {
		e := &t.entries[idx]
		if e.ReadDomains != 0 && read == 0 {
			return 0, fmt.Errorf("%w: handle %d already read as %s", ErrInvalidArgument, e.Handle, e.ReadDomains)
		}
		if e.WriteDomains != 0 && write == 0 {
			return 0, fmt.Errorf("%w: handle %d already written as %s", ErrInvalidArgument, e.Handle, e.WriteDomains)
		}
		if err := t.emit(idx); err != nil {
			return 0, err
		}
		e.ReadDomains |= read
		e.WriteDomains |= write
		e.StartOffset = min(e.StartOffset, start)
		e.EndOffset = max(e.EndOffset, end)
		// Only bits already present survive; incoming bits are not added.
		e.Flags |= flags & e.Flags
		return wire.SlotOffset(idx), nil
	}

	idx = len(t.entries)
	if err := t.emit(idx); err != nil {
		return 0, err
	}
	t.entries = append(t.entries, wire.Reloc{
		Handle:       obj.Handle(),
		StartOffset:  start,
		EndOffset:    end,
		ReadDomains:  read,
		WriteDomains: write,
		Flags:        flags,
	})
	t.refs = append(t.refs, Acquire(obj))
	t.total += obj.Size()
	return wire.SlotOffset(idx), nil
}

func validate(obj bo.Object, start, end uint32, read, write wire.Domain) error {
	switch {
	case read != 0 && write != 0:
		return fmt.Errorf("%w: read and write domains both set", ErrInvalidArgument)
	case read == 0 && write == 0:
		return fmt.Errorf("%w: no read or write domain", ErrInvalidArgument)
	case read == wire.DomainCPU || write == wire.DomainCPU:
		return fmt.Errorf("%w: CPU domain cannot be referenced", ErrInvalidArgument)
	case uint64(end) > obj.Size():
		return fmt.Errorf("%w: end offset 0x%X beyond buffer size 0x%X", ErrInvalidArgument, end, obj.Size())
	case start > end:
		return fmt.Errorf("%w: start offset 0x%X after end offset 0x%X", ErrInvalidArgument, start, end)
	}
	return nil
}

func (t *Table) emit(idx int) error {
	ref := wire.RelocReference(idx)
	return t.out.AppendWords(ref[0], ref[1])
}

func (t *Table) find(handle uint32) int {
	for i := range t.entries {
		if t.entries[i].Handle == handle {
			return i
		}
	}
	return -1
}

// Len returns the number of entries.
func (t *Table) Len() int { return len(t.entries) }

// Entry returns the entry at index i.
func (t *Table) Entry(i int) wire.Reloc { return t.entries[i] }

// Entries returns a copy of all entries in registration order.
func (t *Table) Entries() []wire.Reloc { return slices.Clone(t.entries) }

// TotalBytes returns the summed size of the distinct buffers in the table.
func (t *Table) TotalBytes() uint64 { return t.total }

// Held returns how many entries still own their buffer reference.
func (t *Table) Held() int {
	n := 0
	for _, r := range t.refs {
		if r.Held() {
			n++
		}
	}
	return n
}

// AppendRecords serializes the entries onto dst.
func (t *Table) AppendRecords(dst []uint32) []uint32 {
	return wire.AppendRelocs(dst, t.entries)
}

// ReleaseAll drops every owned reference and keeps the entries.
func (t *Table) ReleaseAll() {
	for i := range t.refs {
		t.refs[i].Release()
	}
}

// Reset releases every owned reference and empties the table, keeping the
// allocated storage.
func (t *Table) Reset() {
	t.ReleaseAll()
	clear(t.refs)
	t.entries = t.entries[:0]
	t.refs = t.refs[:0]
	t.total = 0
}
