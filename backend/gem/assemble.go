package gem

import (
	"log/slog"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/wire"
)

// buildChunks points the instruction chunk at the command words and the
// relocation chunk at freshly serialized relocation records.
func (s *Stream) buildChunks() {
	words := s.buf.Words()
	s.chunks[0] = wire.Chunk{
		ID:       wire.ChunkIB,
		LengthDW: uint32(len(words)), //nolint:gosec // G115: bounded by cmdbuf.MaxWords
		Data:     words,
	}

	s.relocWords = s.relocs.AppendRecords(s.relocWords[:0])
	s.chunks[1] = wire.Chunk{
		ID:       wire.ChunkRelocs,
		LengthDW: uint32(len(s.relocWords)), //nolint:gosec // G115: bounded by table length
		Data:     s.relocWords,
	}
}

// submit hands both chunks to the channel, IB first, and releases every
// owned buffer reference whatever the outcome. The channel error is
// returned as is.
func (s *Stream) submit() error {
	s.buildChunks()
	sub := wire.NewSubmission(s.chunks[0], s.chunks[1])

	err := s.channel.Submit(sub)
	s.relocs.ReleaseAll()

	log := cmdstream.Logger()
	if err != nil {
		log.Warn("gem: submission failed",
			slog.Int("ib_dwords", int(s.chunks[0].LengthDW)),
			slog.Int("relocs", s.relocs.Len()),
			slog.Any("err", err))
		return err
	}
	log.Info("gem: submitted",
		slog.Int("ib_dwords", int(s.chunks[0].LengthDW)),
		slog.Int("relocs", s.relocs.Len()),
		slog.Uint64("referenced_bytes", s.relocs.TotalBytes()))
	return nil
}
