// Package halchan submits command streams through a wgpu HAL device.
//
// Each submission is laid out as one contiguous arena (two chunk
// descriptors followed by the instruction and relocation words), uploaded
// into a storage buffer and fenced on the device queue. The channel waits
// for the fence before returning, so the stream may reuse its storage as
// soon as Submit returns.
package halchan

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/wire"
)

// DefaultTimeout bounds the fence wait of one submission.
const DefaultTimeout = 5 * time.Second

var (
	// ErrNilDevice is returned by New without a device.
	ErrNilDevice = errors.New("halchan: nil device")

	// ErrNilQueue is returned by New without a queue.
	ErrNilQueue = errors.New("halchan: nil queue")

	// ErrTimeout is returned when the submission fence is not signaled in
	// time.
	ErrTimeout = errors.New("halchan: submission timed out")
)

// Option configures a Channel.
type Option func(*Channel)

// WithTimeout sets the fence wait bound.
func WithTimeout(d time.Duration) Option {
	return func(c *Channel) { c.timeout = d }
}

// WithBaseAddress sets the address the arena's chunk descriptors are
// relative to.
func WithBaseAddress(base uint64) Option {
	return func(c *Channel) { c.base = base }
}

// Stats counts the work a channel has submitted.
type Stats struct {
	Submissions uint64
	Failures    uint64
	Bytes       uint64 // arena bytes uploaded
}

// Channel is a cmdstream.Channel backed by a HAL device and queue.
//
// Channel is safe for concurrent use; submissions are serialized.
type Channel struct {
	device  hal.Device
	queue   hal.Queue
	timeout time.Duration
	base    uint64

	mu    sync.Mutex
	stats Stats
}

var _ cmdstream.Channel = (*Channel)(nil)

// New creates a channel. The device and queue stay owned by the caller.
func New(device hal.Device, queue hal.Queue, opts ...Option) (*Channel, error) {
	if device == nil {
		return nil, ErrNilDevice
	}
	if queue == nil {
		return nil, ErrNilQueue
	}
	c := &Channel{device: device, queue: queue, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Submit uploads sub and waits for the queue to retire it.
func (c *Channel) Submit(sub *wire.Submission) error {
	if err := sub.Validate(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	arena := sub.MarshalArena(c.base)
	err := c.submit(arena)
	if err != nil {
		c.stats.Failures++
		return err
	}
	c.stats.Submissions++
	c.stats.Bytes += uint64(len(arena))
	cmdstream.Logger().Debug("halchan: submission retired",
		slog.Int("arena_bytes", len(arena)),
		slog.Uint64("ib_dwords", uint64(sub.IB().LengthDW)),
		slog.Uint64("reloc_dwords", uint64(sub.Relocs().LengthDW)))
	return nil
}

func (c *Channel) submit(arena []byte) error {
	buf, err := c.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "cmdstream_arena",
		Size:  uint64(len(arena)),
		Usage: gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return fmt.Errorf("create arena buffer: %w", err)
	}
	defer c.device.DestroyBuffer(buf)
	c.queue.WriteBuffer(buf, 0, arena)

	encoder, err := c.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{
		Label: "cmdstream_submit",
	})
	if err != nil {
		return fmt.Errorf("create command encoder: %w", err)
	}
	if err := encoder.BeginEncoding("cmdstream_submit"); err != nil {
		return fmt.Errorf("begin encoding: %w", err)
	}
	cmdBuf, err := encoder.EndEncoding()
	if err != nil {
		return fmt.Errorf("end encoding: %w", err)
	}
	defer c.device.FreeCommandBuffer(cmdBuf)

	fence, err := c.device.CreateFence()
	if err != nil {
		return fmt.Errorf("create fence: %w", err)
	}
	defer c.device.DestroyFence(fence)

	if err := c.queue.Submit([]hal.CommandBuffer{cmdBuf}, fence, 1); err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	ok, err := c.device.Wait(fence, 1, c.timeout)
	if err != nil {
		return fmt.Errorf("wait for GPU: %w", err)
	}
	if !ok {
		return fmt.Errorf("%w after %v", ErrTimeout, c.timeout)
	}
	return nil
}

// Stats returns the submission counters.
func (c *Channel) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
