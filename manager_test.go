package cmdstream

import (
	"errors"
	"testing"

	"github.com/gogpu/cmdstream/wire"
)

func TestNewManager(t *testing.T) {
	registerFake(t, "mgr")

	if _, err := NewManager(nil, WithBackend("mgr")); !errors.Is(err, ErrNilChannel) {
		t.Errorf("NewManager(nil) error = %v, want ErrNilChannel", err)
	}
	if _, err := NewManager(nopChannel(), WithBackend("absent")); !errors.Is(err, ErrUnknownBackend) {
		t.Errorf("NewManager(absent) error = %v, want ErrUnknownBackend", err)
	}

	m, err := NewManager(nopChannel(), WithBackend("mgr"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	if m.Backend() != "mgr" {
		t.Errorf("Backend() = %q, want mgr", m.Backend())
	}
}

func TestDefaultBackendOption(t *testing.T) {
	o := defaultManagerOptions()
	if o.backend != DefaultBackend {
		t.Errorf("default backend = %q, want %q", o.backend, DefaultBackend)
	}
	if o.allocator != nil {
		t.Error("default allocator should be nil")
	}
}

func TestManagerNewStream(t *testing.T) {
	registerFake(t, "sized")
	alloc := AllocatorFunc(func(old []uint32, words int) ([]uint32, error) {
		return make([]uint32, words), nil
	})
	m, err := NewManager(nopChannel(), WithBackend("sized"), WithAllocator(alloc))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}

	tests := []struct {
		name    string
		ndw     int
		wantErr error
	}{
		{"zero", 0, nil},
		{"some", 512, nil},
		{"ceiling", MaxWords, nil},
		{"over ceiling", MaxWords + 1, ErrCapacityTooLarge},
		{"negative", -4, ErrInvalidArgument},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := m.NewStream(tt.ndw)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("NewStream(%d) error = %v, want %v", tt.ndw, err, tt.wantErr)
			}
			if tt.wantErr != nil {
				return
			}
			fs := s.(*fakeStream)
			if fs.cfg.Words != tt.ndw {
				t.Errorf("backend got Words = %d, want %d", fs.cfg.Words, tt.ndw)
			}
			if fs.cfg.Allocator == nil {
				t.Error("backend did not receive the allocator")
			}
		})
	}
}

func TestManagerNewStreamFactoryError(t *testing.T) {
	boom := errors.New("boom")
	Register("broken", func(Config) (Stream, error) { return nil, boom })
	t.Cleanup(func() { Unregister("broken") })

	m, err := NewManager(nopChannel(), WithBackend("broken"))
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	_, err = m.NewStream(0)
	if !errors.Is(err, boom) {
		t.Fatalf("NewStream() error = %v, want wrapped boom", err)
	}
	if err.Error() != "create broken stream: boom" {
		t.Errorf("NewStream() error = %q", err)
	}
}

func TestChannelFunc(t *testing.T) {
	var got *wire.Submission
	ch := ChannelFunc(func(sub *wire.Submission) error {
		got = sub
		return nil
	})
	sub := &wire.Submission{}
	if err := ch.Submit(sub); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if got != sub {
		t.Error("ChannelFunc did not forward the submission")
	}
}

func TestStatsString(t *testing.T) {
	s := Stats{Words: 10, Capacity: 16384, Relocs: 2, HeldRefs: 1, ReferencedBytes: 8192}
	want := "Stream[10/16384 words, 2 relocs, 1 held, 8192 bytes referenced]"
	if got := s.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
