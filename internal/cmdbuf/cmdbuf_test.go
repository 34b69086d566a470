package cmdbuf

import (
	"errors"
	"testing"
)

func TestNewRoundsCapacity(t *testing.T) {
	tests := []struct {
		request int
		want    int
	}{
		{0, 0},
		{1, Granularity},
		{Granularity, Granularity},
		{Granularity + 1, 2 * Granularity},
		{16384, 16384},
	}
	for _, tt := range tests {
		b, err := New(tt.request, nil)
		if err != nil {
			t.Fatalf("New(%d) error = %v", tt.request, err)
		}
		if b.Cap() != tt.want {
			t.Errorf("New(%d).Cap() = %d, want %d", tt.request, b.Cap(), tt.want)
		}
		if b.Len() != 0 {
			t.Errorf("New(%d).Len() = %d, want 0", tt.request, b.Len())
		}
	}
}

func TestAppendPreservesContent(t *testing.T) {
	b, err := New(0, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	const n = 3*Granularity + 17
	for i := 0; i < n; i++ {
		if err := b.Append(uint32(i) ^ 0xDEAD0000); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
		if b.Cap()%Granularity != 0 {
			t.Fatalf("after %d appends Cap() = %d, not a multiple of %d", i+1, b.Cap(), Granularity)
		}
		if b.Cap() < b.Len() {
			t.Fatalf("Cap() = %d < Len() = %d", b.Cap(), b.Len())
		}
	}
	if b.Len() != n {
		t.Fatalf("Len() = %d, want %d", b.Len(), n)
	}
	if b.Cap() != 4*Granularity {
		t.Errorf("Cap() = %d, want %d", b.Cap(), 4*Granularity)
	}
	for i, w := range b.Words() {
		if w != uint32(i)^0xDEAD0000 {
			t.Fatalf("word %d = %#x, want %#x", i, w, uint32(i)^0xDEAD0000)
		}
	}
}

func TestGrowthStepsOneGranule(t *testing.T) {
	var calls []int
	alloc := AllocatorFunc(func(old []uint32, words int) ([]uint32, error) {
		calls = append(calls, words)
		buf := make([]uint32, words)
		copy(buf, old)
		return buf, nil
	})
	b, err := New(Granularity, alloc)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 0; i < Granularity+1; i++ {
		if err := b.Append(1); err != nil {
			t.Fatalf("Append() error = %v", err)
		}
	}
	want := []int{Granularity, 2 * Granularity}
	if len(calls) != len(want) || calls[0] != want[0] || calls[1] != want[1] {
		t.Errorf("allocator calls = %v, want %v", calls, want)
	}
}

func TestAppendOutOfMemoryLeavesBufferIntact(t *testing.T) {
	b, err := New(Granularity, HeapAllocator(Granularity))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	for i := 0; i < Granularity; i++ {
		if err := b.Append(uint32(i)); err != nil {
			t.Fatalf("Append(%d) error = %v", i, err)
		}
	}

	err = b.Append(0xFFFF)
	if !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("Append() past limit error = %v, want ErrOutOfMemory", err)
	}
	if b.Len() != Granularity || b.Cap() != Granularity {
		t.Errorf("after failed append Len() = %d Cap() = %d", b.Len(), b.Cap())
	}
	if b.At(Granularity-1) != Granularity-1 {
		t.Errorf("last word = %d, want %d", b.At(Granularity-1), Granularity-1)
	}
}

func TestAllocatorErrorIsOutOfMemory(t *testing.T) {
	boom := errors.New("boom")
	alloc := AllocatorFunc(func([]uint32, int) ([]uint32, error) { return nil, boom })
	b, err := New(0, alloc)
	if err != nil {
		t.Fatalf("New(0) error = %v", err)
	}
	if err := b.Append(1); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("Append() error = %v, want ErrOutOfMemory", err)
	}
	if b.Len() != 0 {
		t.Errorf("Len() = %d, want 0", b.Len())
	}

	if _, err := New(1, alloc); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("New(1) error = %v, want ErrOutOfMemory", err)
	}

	short := AllocatorFunc(func([]uint32, int) ([]uint32, error) { return make([]uint32, 1), nil })
	b, _ = New(0, short)
	if err := b.Append(1); !errors.Is(err, ErrOutOfMemory) {
		t.Errorf("short allocation error = %v, want ErrOutOfMemory", err)
	}
}

func TestAppendWordsAllOrNothing(t *testing.T) {
	b, _ := New(Granularity, HeapAllocator(Granularity))
	for i := 0; i < Granularity-1; i++ {
		_ = b.Append(7)
	}
	if err := b.AppendWords(1, 2); !errors.Is(err, ErrOutOfMemory) {
		t.Fatalf("AppendWords() error = %v, want ErrOutOfMemory", err)
	}
	if b.Len() != Granularity-1 {
		t.Errorf("Len() = %d after failed AppendWords, want %d", b.Len(), Granularity-1)
	}
	if err := b.AppendWords(9); err != nil {
		t.Fatalf("AppendWords(9) error = %v", err)
	}
	if b.At(Granularity-1) != 9 {
		t.Errorf("At(%d) = %d, want 9", Granularity-1, b.At(Granularity-1))
	}
}

func TestResetKeepsCapacity(t *testing.T) {
	b, _ := New(0, nil)
	for i := 0; i < 2000; i++ {
		_ = b.Append(uint32(i))
	}
	c := b.Cap()
	b.Reset()
	if b.Len() != 0 || b.Cap() != c {
		t.Errorf("after Reset Len() = %d Cap() = %d, want 0, %d", b.Len(), b.Cap(), c)
	}
	if len(b.Words()) != 0 {
		t.Errorf("Words() has %d entries after Reset", len(b.Words()))
	}

	b.Release()
	if b.Cap() != 0 {
		t.Errorf("Cap() = %d after Release, want 0", b.Cap())
	}
}
