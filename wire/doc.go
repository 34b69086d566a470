// Package wire encodes the byte-exact layouts shared with the kernel
// command-submission interface.
//
// Everything that has a fixed binary shape lives here and nowhere else:
//
//   - relocation records (6 little-endian uint32 words per entry)
//   - the in-stream relocation reference (marker word + record byte offset)
//   - chunk descriptors (id, length in dwords, data address)
//   - the submission arena used by channels that need one contiguous upload
//
// The rest of the module works with the structured types ([Reloc], [Chunk],
// [Submission]) and converts to and from words only through this package.
//
// # Relocation record layout
//
//	word 0  handle
//	word 1  start offset (bytes)
//	word 2  end offset (bytes)
//	word 3  read domain mask
//	word 4  write domain mask
//	word 5  flags
//
// # Chunk descriptor layout
//
//	bytes  0..3   chunk id
//	bytes  4..7   length in dwords
//	bytes  8..15  chunk data address
package wire
