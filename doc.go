// Package cmdstream builds GPU command streams for kernel submission.
//
// # Overview
//
// A stream accumulates 32-bit command words and a deduplicated table of
// buffer-object relocations. Emitting a stream hands a two-chunk submission
// (instruction words, then relocation records) to a [Channel]. Buffer
// references owned by the stream are released after every submission,
// successful or not.
//
// # Quick Start
//
//	import (
//	    "github.com/gogpu/cmdstream"
//	    _ "github.com/gogpu/cmdstream/backend/gem"
//	)
//
//	m, err := cmdstream.NewManager(ch)
//	if err != nil {
//	    return err
//	}
//	s, err := m.NewStream(0)
//	if err != nil {
//	    return err
//	}
//	defer s.Destroy()
//
//	s.WriteWords(packet.MakeType0(reg, 1, false), value)
//	if _, err := s.WriteReloc(buf, 0, 4096, cmdstream.DomainGTT, 0, 0); err != nil {
//	    return err
//	}
//	if s.NeedFlush() {
//	    // referenced buffers exceed FlushThreshold
//	}
//	err = s.Emit()
//
// # Architecture
//
// The library is organized into:
//   - Public API: Manager, Stream, Channel, Stats
//   - Backends: gem (registered by blank import)
//   - Wire formats: wire (relocation records, chunk descriptors)
//   - Diagnostics: packet (header decode and listing)
//   - Channels: halchan (wgpu HAL device), capture (CBOR recording)
//
// # Logging
//
// Nothing is logged by default. See [SetLogger].
package cmdstream

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"
)
