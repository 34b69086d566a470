package reloc

import (
	"errors"
	"testing"

	"github.com/gogpu/cmdstream/bo"
	"github.com/gogpu/cmdstream/internal/cmdbuf"
	"github.com/gogpu/cmdstream/wire"
)

func newTable(t *testing.T) (*Table, *cmdbuf.Buffer) {
	t.Helper()
	buf, err := cmdbuf.New(0, nil)
	if err != nil {
		t.Fatalf("cmdbuf.New() error = %v", err)
	}
	return New(buf), buf
}

func TestRegisterNewEntry(t *testing.T) {
	tbl, buf := newTable(t)
	obj := bo.NewBuffer(7, 4096)

	off, err := tbl.Register(obj, 0, 4096, wire.DomainGTT, 0, 0)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if off != 0 {
		t.Errorf("slot offset = %d, want 0", off)
	}
	if tbl.Len() != 1 || tbl.TotalBytes() != 4096 {
		t.Errorf("Len() = %d TotalBytes() = %d, want 1, 4096", tbl.Len(), tbl.TotalBytes())
	}
	if obj.Refs() != 2 {
		t.Errorf("Refs() = %d, want 2", obj.Refs())
	}
	words := buf.Words()
	if len(words) != 2 || words[0] != wire.RelocMarker || words[1] != 0 {
		t.Errorf("emitted words = %#x", words)
	}
	want := wire.Reloc{Handle: 7, EndOffset: 4096, ReadDomains: wire.DomainGTT}
	if tbl.Entry(0) != want {
		t.Errorf("Entry(0) = %+v, want %+v", tbl.Entry(0), want)
	}
}

func TestRegisterSlotOffsets(t *testing.T) {
	tbl, buf := newTable(t)
	a := bo.NewBuffer(1, 100)
	b := bo.NewBuffer(2, 200)
	c := bo.NewBuffer(3, 300)

	for i, obj := range []*bo.Buffer{a, b, c} {
		off, err := tbl.Register(obj, 0, 16, 0, wire.DomainVRAM, 0)
		if err != nil {
			t.Fatalf("Register(%d) error = %v", obj.Handle(), err)
		}
		if off != uint32(i*wire.RecordBytes) {
			t.Errorf("Register(%d) offset = %d, want %d", obj.Handle(), off, i*wire.RecordBytes)
		}
	}
	if got := buf.At(5); got != 2*wire.RecordBytes {
		t.Errorf("third reference word = %d, want %d", got, 2*wire.RecordBytes)
	}
	if tbl.TotalBytes() != 600 {
		t.Errorf("TotalBytes() = %d, want 600", tbl.TotalBytes())
	}
}

func TestRegisterMerge(t *testing.T) {
	tbl, buf := newTable(t)
	obj := bo.NewBuffer(5, 8192)

	off1, err := tbl.Register(obj, 256, 1024, wire.DomainGTT, 0, 0x1)
	if err != nil {
		t.Fatalf("first Register() error = %v", err)
	}
	off2, err := tbl.Register(obj, 128, 512, wire.DomainVRAM, 0, 0x2)
	if err != nil {
		t.Fatalf("second Register() error = %v", err)
	}
	off3, err := tbl.Register(obj, 512, 4096, wire.DomainGTT, 0, 0x1)
	if err != nil {
		t.Fatalf("third Register() error = %v", err)
	}

	if off1 != off2 || off2 != off3 {
		t.Errorf("offsets = %d, %d, %d, want all equal", off1, off2, off3)
	}
	if tbl.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", tbl.Len())
	}
	e := tbl.Entry(0)
	if e.StartOffset != 128 || e.EndOffset != 4096 {
		t.Errorf("range = [%d,%d), want [128,4096)", e.StartOffset, e.EndOffset)
	}
	if e.ReadDomains != wire.DomainGTT|wire.DomainVRAM {
		t.Errorf("ReadDomains = %v, want GTT|VRAM", e.ReadDomains)
	}
	if e.Flags != 0x1 {
		t.Errorf("Flags = %#x, want 0x1", e.Flags)
	}
	if obj.Refs() != 2 {
		t.Errorf("Refs() = %d, want 2 (one table reference)", obj.Refs())
	}
	if tbl.TotalBytes() != 8192 {
		t.Errorf("TotalBytes() = %d, want 8192", tbl.TotalBytes())
	}
	if buf.Len() != 6 {
		t.Errorf("emitted %d words, want 6", buf.Len())
	}
	for i := 0; i < 6; i += 2 {
		if buf.At(i) != wire.RelocMarker || buf.At(i+1) != 0 {
			t.Errorf("reference %d = %#x %#x", i/2, buf.At(i), buf.At(i+1))
		}
	}
}

func TestRegisterFlagMerge(t *testing.T) {
	tests := []struct {
		name     string
		existing uint32
		incoming uint32
		want     uint32
	}{
		{"incoming bits not adopted", 0x0, 0x4, 0x0},
		{"existing kept", 0x3, 0x0, 0x3},
		{"overlap", 0x3, 0x6, 0x3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, _ := newTable(t)
			obj := bo.NewBuffer(1, 64)
			if _, err := tbl.Register(obj, 0, 64, 0, wire.DomainGTT, tt.existing); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if _, err := tbl.Register(obj, 0, 64, 0, wire.DomainGTT, tt.incoming); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			if got := tbl.Entry(0).Flags; got != tt.want {
				t.Errorf("Flags = %#x, want %#x", got, tt.want)
			}
		})
	}
}

func TestRegisterRejects(t *testing.T) {
	obj := bo.NewBuffer(9, 4096)
	tests := []struct {
		name        string
		start, end  uint32
		read, write wire.Domain
	}{
		{"both domains", 0, 16, wire.DomainGTT, wire.DomainVRAM},
		{"no domain", 0, 16, 0, 0},
		{"cpu read", 0, 16, wire.DomainCPU, 0},
		{"cpu write", 0, 16, 0, wire.DomainCPU},
		{"end past size", 0, 4097, wire.DomainGTT, 0},
		{"start after end", 32, 16, wire.DomainGTT, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, buf := newTable(t)
			_, err := tbl.Register(obj, tt.start, tt.end, tt.read, tt.write, 0)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("Register() error = %v, want ErrInvalidArgument", err)
			}
			if tbl.Len() != 0 || buf.Len() != 0 || tbl.TotalBytes() != 0 {
				t.Errorf("state mutated: Len=%d words=%d total=%d", tbl.Len(), buf.Len(), tbl.TotalBytes())
			}
		})
	}
	if obj.Refs() != 1 {
		t.Errorf("Refs() = %d after rejected calls, want 1", obj.Refs())
	}

	tbl, _ := newTable(t)
	if _, err := tbl.Register(nil, 0, 0, wire.DomainGTT, 0, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("Register(nil) error = %v, want ErrInvalidArgument", err)
	}
}

func TestRegisterMergeConflicts(t *testing.T) {
	tests := []struct {
		name         string
		first, again [2]wire.Domain
	}{
		{"read then write", [2]wire.Domain{wire.DomainGTT, 0}, [2]wire.Domain{0, wire.DomainGTT}},
		{"write then read", [2]wire.Domain{0, wire.DomainVRAM}, [2]wire.Domain{wire.DomainVRAM, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl, buf := newTable(t)
			obj := bo.NewBuffer(7, 4096)
			if _, err := tbl.Register(obj, 0, 4096, tt.first[0], tt.first[1], 0); err != nil {
				t.Fatalf("Register() error = %v", err)
			}
			before := tbl.Entry(0)

			_, err := tbl.Register(obj, 0, 2048, tt.again[0], tt.again[1], 0)
			if !errors.Is(err, ErrInvalidArgument) {
				t.Fatalf("conflicting Register() error = %v, want ErrInvalidArgument", err)
			}
			if tbl.Entry(0) != before {
				t.Errorf("entry changed: %+v, want %+v", tbl.Entry(0), before)
			}
			if buf.Len() != 2 {
				t.Errorf("words = %d, want 2", buf.Len())
			}
			if tbl.TotalBytes() != 4096 {
				t.Errorf("TotalBytes() = %d, want 4096", tbl.TotalBytes())
			}
		})
	}
}

func TestRegisterOutOfMemory(t *testing.T) {
	buf, err := cmdbuf.New(cmdbuf.Granularity, cmdbuf.HeapAllocator(cmdbuf.Granularity))
	if err != nil {
		t.Fatalf("cmdbuf.New() error = %v", err)
	}
	for buf.Len() < cmdbuf.Granularity-1 {
		_ = buf.Append(0)
	}
	tbl := New(buf)
	obj := bo.NewBuffer(1, 64)

	if _, err := tbl.Register(obj, 0, 64, wire.DomainGTT, 0, 0); !errors.Is(err, cmdbuf.ErrOutOfMemory) {
		t.Fatalf("Register() error = %v, want ErrOutOfMemory", err)
	}
	if tbl.Len() != 0 || obj.Refs() != 1 || tbl.TotalBytes() != 0 {
		t.Errorf("state mutated: Len=%d refs=%d total=%d", tbl.Len(), obj.Refs(), tbl.TotalBytes())
	}
	if buf.Len() != cmdbuf.Granularity-1 {
		t.Errorf("buffer Len() = %d, want %d", buf.Len(), cmdbuf.Granularity-1)
	}
}

func TestReleaseAllAndReset(t *testing.T) {
	tbl, _ := newTable(t)
	a := bo.NewBuffer(1, 10)
	b := bo.NewBuffer(2, 20)
	_, _ = tbl.Register(a, 0, 10, wire.DomainGTT, 0, 0)
	_, _ = tbl.Register(b, 0, 20, 0, wire.DomainGTT, 0)

	tbl.ReleaseAll()
	if a.Refs() != 1 || b.Refs() != 1 {
		t.Errorf("Refs() = %d, %d after ReleaseAll, want 1, 1", a.Refs(), b.Refs())
	}
	if tbl.Len() != 2 || tbl.Held() != 0 {
		t.Errorf("Len() = %d Held() = %d, want 2, 0", tbl.Len(), tbl.Held())
	}
	records := tbl.AppendRecords(nil)
	if len(records) != 2*wire.RecordWords || records[wire.RecordWords] != 2 {
		t.Errorf("AppendRecords() = %v", records)
	}

	// A second release must not drop references again.
	tbl.ReleaseAll()
	tbl.Reset()
	if a.Refs() != 1 || b.Refs() != 1 {
		t.Errorf("Refs() = %d, %d after Reset, want 1, 1", a.Refs(), b.Refs())
	}
	if tbl.Len() != 0 || tbl.TotalBytes() != 0 {
		t.Errorf("Len() = %d TotalBytes() = %d after Reset", tbl.Len(), tbl.TotalBytes())
	}
}

func TestResetReleasesHeld(t *testing.T) {
	tbl, _ := newTable(t)
	m := bo.NewManager()
	obj, _ := m.Alloc(512)
	_, _ = tbl.Register(obj, 0, 512, wire.DomainVRAM, 0, 0)

	obj.Unref()
	if m.Live() != 1 {
		t.Fatalf("table reference should keep the buffer alive, Live() = %d", m.Live())
	}
	tbl.Reset()
	if m.Live() != 0 {
		t.Errorf("Live() = %d after Reset, want 0", m.Live())
	}
}

func TestRefRelease(t *testing.T) {
	obj := bo.NewBuffer(1, 1)
	r := Acquire(obj)
	if !r.Held() || r.Object() != obj || obj.Refs() != 2 {
		t.Fatalf("Acquire() = %+v refs=%d", r, obj.Refs())
	}
	r.Release()
	r.Release()
	if r.Held() || obj.Refs() != 1 {
		t.Errorf("after Release Held() = %v Refs() = %d", r.Held(), obj.Refs())
	}
	var zero Ref
	zero.Release()
}
