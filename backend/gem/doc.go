// Package gem implements command streams for GEM-style kernel interfaces,
// where the kernel resolves buffer relocations from a relocation chunk
// submitted next to the instruction chunk.
//
// Importing the package registers the backend under the name "gem":
//
//	import _ "github.com/gogpu/cmdstream/backend/gem"
//
//	m, err := cmdstream.NewManager(channel)
//	s, err := m.NewStream(0)
//	s.WriteWord(packet.MakeType0(0x1000, 1, false))
//	s.WriteWord(0)
//	s.WriteReloc(vb, 0, vb.Size(), cmdstream.DomainGTT, 0, 0)
//	err = s.Emit()
//	s.Erase()
package gem
