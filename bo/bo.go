// Package bo defines the buffer-object collaborator used by command streams
// and provides a reference-counted in-memory implementation.
//
// A command stream never allocates buffer objects. It only takes and drops
// references on objects handed to it, identified by their kernel handle.
// The [Object] interface is that boundary. [Manager] and [Buffer] implement
// it for tools and tests that have no kernel behind them.
package bo

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// ErrZeroSize is returned when creating a buffer of zero bytes.
var ErrZeroSize = errors.New("bo: buffer size must be positive")

// Object is a buffer object that a command stream can reference.
//
// Ref and Unref must be safe to call concurrently with other holders of the
// same object.
type Object interface {
	// Handle returns the kernel handle of the object.
	Handle() uint32

	// Size returns the object size in bytes.
	Size() uint64

	// Ref takes a reference.
	Ref()

	// Unref drops a reference.
	Unref()
}

// Buffer is an in-memory buffer object with an atomic reference count.
// A new Buffer holds one reference owned by its creator.
type Buffer struct {
	handle uint32
	size   uint64
	refs   atomic.Int32
	onFree func(*Buffer)
}

// NewBuffer creates a standalone buffer with the given handle and size.
func NewBuffer(handle uint32, size uint64) *Buffer {
	b := &Buffer{handle: handle, size: size}
	b.refs.Store(1)
	return b
}

// Handle returns the buffer handle.
func (b *Buffer) Handle() uint32 { return b.handle }

// Size returns the buffer size in bytes.
func (b *Buffer) Size() uint64 { return b.size }

// Refs returns the current reference count.
func (b *Buffer) Refs() int32 { return b.refs.Load() }

// Ref takes a reference.
func (b *Buffer) Ref() { b.refs.Add(1) }

// Unref drops a reference. Dropping the last reference frees the buffer.
// Unref panics when called on a freed buffer.
func (b *Buffer) Unref() {
	n := b.refs.Add(-1)
	switch {
	case n < 0:
		panic(fmt.Sprintf("bo: unref of freed buffer %d", b.handle))
	case n == 0 && b.onFree != nil:
		b.onFree(b)
	}
}

// String returns a short description of the buffer.
func (b *Buffer) String() string {
	return fmt.Sprintf("bo(%d, %d bytes, %d refs)", b.handle, b.size, b.Refs())
}

// Manager hands out buffers with unique handles and tracks the live ones.
//
// Manager is safe for concurrent use.
type Manager struct {
	next atomic.Uint32

	mu   sync.Mutex
	live map[uint32]*Buffer
}

// NewManager creates an empty manager. Handles start at 1.
func NewManager() *Manager {
	return &Manager{live: make(map[uint32]*Buffer)}
}

// Alloc creates a buffer of size bytes. The caller owns the returned
// reference.
func (m *Manager) Alloc(size uint64) (*Buffer, error) {
	if size == 0 {
		return nil, ErrZeroSize
	}
	b := NewBuffer(m.next.Add(1), size)
	b.onFree = m.free

	m.mu.Lock()
	m.live[b.handle] = b
	m.mu.Unlock()
	return b, nil
}

// Lookup returns the live buffer with the given handle.
func (m *Manager) Lookup(handle uint32) (*Buffer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.live[handle]
	return b, ok
}

// Live returns the number of buffers that still hold references.
func (m *Manager) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

func (m *Manager) free(b *Buffer) {
	m.mu.Lock()
	delete(m.live, b.handle)
	m.mu.Unlock()
}
