package wire

import (
	"fmt"
	"strings"
)

// Domain is a memory-placement bitmask for a buffer object.
type Domain uint32

// Memory domains understood by the submission interface.
const (
	DomainCPU  Domain = 0x1
	DomainGTT  Domain = 0x2
	DomainVRAM Domain = 0x4
)

var domainNames = []struct {
	bit  Domain
	name string
}{
	{DomainCPU, "CPU"},
	{DomainGTT, "GTT"},
	{DomainVRAM, "VRAM"},
}

// String renders the mask as "GTT|VRAM". Unknown bits are appended in hex.
func (d Domain) String() string {
	if d == 0 {
		return "none"
	}
	var parts []string
	rest := d
	for _, n := range domainNames {
		if d&n.bit != 0 {
			parts = append(parts, n.name)
			rest &^= n.bit
		}
	}
	if rest != 0 {
		parts = append(parts, fmt.Sprintf("0x%X", uint32(rest)))
	}
	return strings.Join(parts, "|")
}

// ParseDomain parses a mask written as "GTT", "VRAM|GTT" or "" (empty mask).
// Names are case-insensitive.
func ParseDomain(s string) (Domain, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "none") {
		return 0, nil
	}
	var d Domain
	for _, part := range strings.Split(s, "|") {
		part = strings.TrimSpace(part)
		found := false
		for _, n := range domainNames {
			if strings.EqualFold(part, n.name) {
				d |= n.bit
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("wire: unknown domain %q", part)
		}
	}
	return d, nil
}
