package cmdstream

import (
	"fmt"
	"sort"
	"sync"
)

// Config carries everything a backend needs to create a stream.
type Config struct {
	// Channel receives submissions. Never nil.
	Channel Channel

	// Words is the requested command-buffer capacity, already checked
	// against MaxWords.
	Words int

	// Allocator provides command-buffer storage. Nil selects the default
	// heap allocator.
	Allocator Allocator
}

// BackendFactory creates a stream for a backend.
type BackendFactory func(cfg Config) (Stream, error)

// DefaultBackend is the backend selected when none is named.
const DefaultBackend = "gem"

var (
	registryMu sync.RWMutex
	backends   = make(map[string]BackendFactory)
)

// Register makes a backend available under name. It is typically called
// from init() in the backend package:
//
//	func init() {
//	    cmdstream.Register("gem", New)
//	}
//
// Register panics if factory is nil or name is already registered.
func Register(name string, factory BackendFactory) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if factory == nil {
		panic("cmdstream: Register factory is nil")
	}
	if _, dup := backends[name]; dup {
		panic("cmdstream: Register called twice for " + name)
	}
	backends[name] = factory
}

// Unregister removes a backend. It is a no-op for unknown names.
func Unregister(name string) {
	registryMu.Lock()
	defer registryMu.Unlock()
	delete(backends, name)
}

// IsRegistered reports whether a backend is registered under name.
func IsRegistered(name string) bool {
	registryMu.RLock()
	defer registryMu.RUnlock()
	_, ok := backends[name]
	return ok
}

// Backends returns the registered backend names in sorted order.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func lookup(name string) (BackendFactory, error) {
	registryMu.RLock()
	factory, ok := backends[name]
	registryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w %q (forgotten import?)", ErrUnknownBackend, name)
	}
	return factory, nil
}
