package cmdstream

import (
	"fmt"
	"log/slog"
)

// ManagerOption configures a Manager.
type ManagerOption func(*managerOptions)

type managerOptions struct {
	backend   string
	allocator Allocator
}

func defaultManagerOptions() managerOptions {
	return managerOptions{backend: DefaultBackend}
}

// WithBackend selects the stream implementation by registered name.
//
// Example:
//
//	import _ "github.com/gogpu/cmdstream/backend/gem"
//
//	m, err := cmdstream.NewManager(ch, cmdstream.WithBackend("gem"))
func WithBackend(name string) ManagerOption {
	return func(o *managerOptions) {
		o.backend = name
	}
}

// WithAllocator sets the command-buffer allocator for every stream the
// manager creates. Tests use it to simulate allocation failure.
func WithAllocator(a Allocator) ManagerOption {
	return func(o *managerOptions) {
		o.allocator = a
	}
}

// Manager creates streams that submit to one channel.
//
// Manager is safe for concurrent use; the streams it creates are not.
type Manager struct {
	channel Channel
	factory BackendFactory
	opts    managerOptions
}

// NewManager binds a channel to a backend. The backend package must be
// imported for its registration to run.
func NewManager(ch Channel, opts ...ManagerOption) (*Manager, error) {
	if ch == nil {
		return nil, ErrNilChannel
	}
	o := defaultManagerOptions()
	for _, opt := range opts {
		opt(&o)
	}
	factory, err := lookup(o.backend)
	if err != nil {
		return nil, err
	}
	return &Manager{channel: ch, factory: factory, opts: o}, nil
}

// Backend returns the name of the manager's backend.
func (m *Manager) Backend() string { return m.opts.backend }

// NewStream creates a stream with room for at least ndw words. ndw above
// MaxWords fails with ErrCapacityTooLarge; zero selects the default.
func (m *Manager) NewStream(ndw int) (Stream, error) {
	if ndw < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d", ErrInvalidArgument, ndw)
	}
	if ndw > MaxWords {
		return nil, fmt.Errorf("%w: %d words", ErrCapacityTooLarge, ndw)
	}
	s, err := m.factory(Config{
		Channel:   m.channel,
		Words:     ndw,
		Allocator: m.opts.allocator,
	})
	if err != nil {
		return nil, fmt.Errorf("create %s stream: %w", m.opts.backend, err)
	}
	Logger().Debug("cmdstream: stream created",
		slog.String("backend", m.opts.backend),
		slog.Int("requested_words", ndw))
	return s, nil
}
