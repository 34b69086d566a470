// Package cmdbuf implements the growable command-word buffer.
package cmdbuf

import (
	"errors"
	"fmt"
)

const (
	// Granularity is the growth step in words. Capacity is always a
	// multiple of it.
	Granularity = 1024

	// MaxWords is the ceiling of the default allocator (16 MiB of words).
	MaxWords = 4 << 20
)

// ErrOutOfMemory is returned when the buffer cannot grow.
var ErrOutOfMemory = errors.New("cmdstream: out of memory")

// Allocator provides backing storage for a Buffer.
//
// Grow returns a slice of exactly words elements whose prefix holds a copy
// of old. It must not modify old.
type Allocator interface {
	Grow(old []uint32, words int) ([]uint32, error)
}

// AllocatorFunc adapts a function to the Allocator interface.
type AllocatorFunc func(old []uint32, words int) ([]uint32, error)

// Grow calls f.
func (f AllocatorFunc) Grow(old []uint32, words int) ([]uint32, error) { return f(old, words) }

// HeapAllocator returns an allocator backed by make that refuses requests
// above limit words.
func HeapAllocator(limit int) Allocator {
	return heapAllocator{limit: limit}
}

type heapAllocator struct{ limit int }

func (a heapAllocator) Grow(old []uint32, words int) ([]uint32, error) {
	if words > a.limit {
		return nil, fmt.Errorf("%w: %d words exceeds limit of %d", ErrOutOfMemory, words, a.limit)
	}
	buf := make([]uint32, words)
	copy(buf, old)
	return buf, nil
}

// Buffer is a growable sequence of 32-bit command words.
//
// Buffer is not safe for concurrent use.
type Buffer struct {
	words []uint32 // len(words) is the capacity
	n     int
	alloc Allocator
}

// New creates a buffer with room for at least capacity words. A nil alloc
// selects HeapAllocator(MaxWords).
func New(capacity int, alloc Allocator) (*Buffer, error) {
	if alloc == nil {
		alloc = HeapAllocator(MaxWords)
	}
	b := &Buffer{alloc: alloc}
	if capacity > 0 {
		words, err := alloc.Grow(nil, roundUp(capacity))
		if err != nil {
			return nil, allocErr(err, roundUp(capacity))
		}
		b.words = words
	}
	return b, nil
}

// roundUp returns the smallest multiple of Granularity that is >= n.
func roundUp(n int) int {
	return (n + Granularity - 1) &^ (Granularity - 1)
}

func allocErr(err error, words int) error {
	if errors.Is(err, ErrOutOfMemory) {
		return err
	}
	return fmt.Errorf("%w: grow to %d words: %v", ErrOutOfMemory, words, err)
}

// reserve makes room for extra more words. On failure the buffer is left
// untouched.
func (b *Buffer) reserve(extra int) error {
	need := b.n + extra
	if need <= len(b.words) {
		return nil
	}
	newCap := roundUp(need)
	words, err := b.alloc.Grow(b.words[:b.n], newCap)
	if err != nil {
		return allocErr(err, newCap)
	}
	if len(words) < newCap {
		return fmt.Errorf("%w: allocator returned %d of %d words", ErrOutOfMemory, len(words), newCap)
	}
	b.words = words
	return nil
}

// Append writes w at the end of the buffer, growing it when full.
func (b *Buffer) Append(w uint32) error {
	if err := b.reserve(1); err != nil {
		return err
	}
	b.words[b.n] = w
	b.n++
	return nil
}

// AppendWords writes ws at the end of the buffer. Either all words are
// written or none are.
func (b *Buffer) AppendWords(ws ...uint32) error {
	if err := b.reserve(len(ws)); err != nil {
		return err
	}
	b.n += copy(b.words[b.n:], ws)
	return nil
}

// Reset empties the buffer and keeps its capacity.
func (b *Buffer) Reset() { b.n = 0 }

// Release drops the backing storage.
func (b *Buffer) Release() {
	b.words = nil
	b.n = 0
}

// Len returns the number of words written.
func (b *Buffer) Len() int { return b.n }

// Cap returns the capacity in words.
func (b *Buffer) Cap() int { return len(b.words) }

// At returns the word at index i.
func (b *Buffer) At(i int) uint32 { return b.words[:b.n][i] }

// Words returns the written words. The slice aliases the buffer and is
// invalidated by the next growth.
func (b *Buffer) Words() []uint32 { return b.words[:b.n:b.n] }
