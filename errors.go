package cmdstream

import (
	"errors"

	"github.com/gogpu/cmdstream/internal/cmdbuf"
	"github.com/gogpu/cmdstream/internal/reloc"
)

// Stream errors. Match them with errors.Is.
var (
	// ErrInvalidArgument is returned for rejected relocations and bad
	// creation parameters.
	ErrInvalidArgument = reloc.ErrInvalidArgument

	// ErrOutOfMemory is returned when the command buffer cannot grow. The
	// stream is left exactly as before the failing call.
	ErrOutOfMemory = cmdbuf.ErrOutOfMemory

	// ErrCapacityTooLarge is returned when a stream is requested with more
	// than MaxWords words.
	ErrCapacityTooLarge = errors.New("cmdstream: requested capacity exceeds 16384 words")

	// ErrDestroyed is returned by every operation on a destroyed stream.
	ErrDestroyed = errors.New("cmdstream: stream destroyed")

	// ErrNilChannel is returned when a manager is created without a channel.
	ErrNilChannel = errors.New("cmdstream: nil submission channel")

	// ErrUnknownBackend is returned when the requested backend is not
	// registered.
	ErrUnknownBackend = errors.New("cmdstream: unknown backend")
)
