package gem

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"runtime"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/bo"
	"github.com/gogpu/cmdstream/internal/cmdbuf"
	"github.com/gogpu/cmdstream/internal/reloc"
	"github.com/gogpu/cmdstream/packet"
	"github.com/gogpu/cmdstream/wire"
)

// Name is the registered backend name.
const Name = "gem"

func init() {
	cmdstream.Register(Name, func(cfg cmdstream.Config) (cmdstream.Stream, error) {
		s, err := NewStream(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	})
}

// Stream is a GEM command stream. It owns the command buffer, the
// relocation table and the two chunk descriptors of its submission.
//
// Stream is NOT safe for concurrent use.
type Stream struct {
	channel cmdstream.Channel

	buf    *cmdbuf.Buffer
	relocs *reloc.Table

	// chunks are rebuilt from buf and relocs on every submission.
	chunks     [wire.SubmissionChunks]wire.Chunk
	relocWords []uint32

	section   int
	destroyed bool
}

var _ cmdstream.Stream = (*Stream)(nil)

// NewStream creates a stream. The command buffer is always allocated at
// cmdstream.MaxWords; cfg.Words only has to stay within that ceiling.
func NewStream(cfg cmdstream.Config) (*Stream, error) {
	if cfg.Channel == nil {
		return nil, cmdstream.ErrNilChannel
	}
	if cfg.Words < 0 {
		return nil, fmt.Errorf("%w: negative capacity %d", cmdstream.ErrInvalidArgument, cfg.Words)
	}
	if cfg.Words > cmdstream.MaxWords {
		return nil, fmt.Errorf("%w: %d words", cmdstream.ErrCapacityTooLarge, cfg.Words)
	}

	buf, err := cmdbuf.New(cmdstream.MaxWords, cfg.Allocator)
	if err != nil {
		return nil, fmt.Errorf("allocate command buffer: %w", err)
	}
	s := &Stream{
		channel: cfg.Channel,
		buf:     buf,
		relocs:  reloc.New(buf),
	}
	s.chunks[0].ID = wire.ChunkIB
	s.chunks[1].ID = wire.ChunkRelocs
	return s, nil
}

// WriteWord appends one command word.
func (s *Stream) WriteWord(w uint32) error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	c := s.buf.Cap()
	if err := s.buf.Append(w); err != nil {
		return err
	}
	s.logGrowth(c)
	return nil
}

// WriteWords appends ws atomically.
func (s *Stream) WriteWords(ws ...uint32) error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	c := s.buf.Cap()
	if err := s.buf.AppendWords(ws...); err != nil {
		return err
	}
	s.logGrowth(c)
	return nil
}

func (s *Stream) logGrowth(oldCap int) {
	if s.buf.Cap() != oldCap {
		cmdstream.Logger().Debug("gem: command buffer grown",
			slog.Int("from_words", oldCap),
			slog.Int("to_words", s.buf.Cap()))
	}
}

// WriteReloc registers a buffer reference. See cmdstream.Stream.
func (s *Stream) WriteReloc(obj bo.Object, start, end uint32, read, write cmdstream.Domain, flags uint32) (uint32, error) {
	if s.destroyed {
		return 0, cmdstream.ErrDestroyed
	}
	c := s.buf.Cap()
	off, err := s.relocs.Register(obj, start, end, read, write, flags)
	if err != nil {
		return 0, err
	}
	s.logGrowth(c)
	return off, nil
}

// Begin opens a section. The caller's location is logged at debug level.
func (s *Stream) Begin(ndw int) error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	s.section++
	if l := cmdstream.Logger(); l.Enabled(context.Background(), slog.LevelDebug) {
		l.Debug("gem: begin section",
			slog.Int("ndw", ndw),
			slog.Int("depth", s.section),
			callerAttr(2))
	}
	return nil
}

// End closes the section opened by Begin.
func (s *Stream) End() error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	cmdstream.Logger().Debug("gem: end section",
		slog.Int("depth", s.section),
		slog.Int("words", s.buf.Len()))
	s.section = 0
	return nil
}

// callerAttr describes the call site skip frames above it.
func callerAttr(skip int) slog.Attr {
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return slog.String("caller", "unknown")
	}
	fn := "?"
	if f := runtime.FuncForPC(pc); f != nil {
		fn = f.Name()
	}
	return slog.Group("caller",
		slog.String("file", filepath.Base(file)),
		slog.String("func", fn),
		slog.Int("line", line))
}

// Emit submits the stream. See cmdstream.Stream.
func (s *Stream) Emit() error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	return s.submit()
}

// Erase empties the stream for reuse.
func (s *Stream) Erase() error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	s.relocs.Reset()
	s.buf.Reset()
	s.section = 0
	s.chunks[0].LengthDW = 0
	s.chunks[1].LengthDW = 0
	return nil
}

// Destroy releases the stream. Any reference not yet released by Emit or
// Erase is dropped here.
func (s *Stream) Destroy() error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	s.relocs.Reset()
	s.buf.Release()
	s.relocWords = nil
	s.chunks = [wire.SubmissionChunks]wire.Chunk{}
	s.section = 0
	s.destroyed = true
	return nil
}

// NeedFlush reports whether the referenced buffers exceed
// cmdstream.FlushThreshold bytes.
func (s *Stream) NeedFlush() bool {
	return s.relocs.TotalBytes() > cmdstream.FlushThreshold
}

// Print writes the decoded command words to w.
func (s *Stream) Print(w io.Writer) error {
	if s.destroyed {
		return cmdstream.ErrDestroyed
	}
	return packet.Fprint(w, s.buf.Words())
}

// Stats returns a snapshot of the stream bookkeeping.
func (s *Stream) Stats() cmdstream.Stats {
	return cmdstream.Stats{
		Words:           s.buf.Len(),
		Capacity:        s.buf.Cap(),
		Relocs:          s.relocs.Len(),
		HeldRefs:        s.relocs.Held(),
		ReferencedBytes: s.relocs.TotalBytes(),
		Section:         s.section,
	}
}

// Relocs returns a copy of the relocation entries in slot order.
func (s *Stream) Relocs() []wire.Reloc {
	return s.relocs.Entries()
}

// Chunks returns the chunk descriptors as built by the last submission.
func (s *Stream) Chunks() [wire.SubmissionChunks]wire.Chunk {
	return s.chunks
}
