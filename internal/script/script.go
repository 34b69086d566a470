// Package script drives a command stream from a TOML scenario file.
//
// A scenario declares the buffers it references and a list of steps:
//
//	capacity = 0
//
//	[[buffers]]
//	name = "vb"
//	size = 65536
//
//	[[steps]]
//	op = "packet0"
//	reg = 0x1000
//	words = [1, 2]
//
//	[[steps]]
//	op = "reloc"
//	buffer = "vb"
//	end = 4096
//	read = "GTT"
//
//	[[steps]]
//	op = "emit"
package script

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/gogpu/cmdstream"
	"github.com/gogpu/cmdstream/bo"
	"github.com/gogpu/cmdstream/packet"
	"github.com/gogpu/cmdstream/wire"
)

// Step operations.
const (
	OpWords   = "words"
	OpPacket0 = "packet0"
	OpPacket3 = "packet3"
	OpReloc   = "reloc"
	OpBegin   = "begin"
	OpEnd     = "end"
	OpEmit    = "emit"
	OpErase   = "erase"
)

var (
	// ErrUnknownOp is returned for a step with an unrecognized op.
	ErrUnknownOp = errors.New("script: unknown op")

	// ErrUnknownBuffer is returned when a reloc step names an undeclared
	// buffer.
	ErrUnknownBuffer = errors.New("script: unknown buffer")

	// ErrDuplicateBuffer is returned when two buffers share a name.
	ErrDuplicateBuffer = errors.New("script: duplicate buffer")

	// ErrBadStep is returned for a step missing required fields.
	ErrBadStep = errors.New("script: malformed step")
)

// Scenario is a parsed scenario file.
type Scenario struct {
	Capacity int      `toml:"capacity"`
	Buffers  []Buffer `toml:"buffers"`
	Steps    []Step   `toml:"steps"`
}

// Buffer declares a buffer object referenced by reloc steps.
type Buffer struct {
	Name string `toml:"name"`
	Size uint64 `toml:"size"`
}

// Step is one stream operation.
type Step struct {
	Op string `toml:"op"`

	// words, packet0 and packet3 body
	Words []uint32 `toml:"words"`

	// packet0
	Reg         uint32 `toml:"reg"`
	OneRegister bool   `toml:"one-register"`

	// packet3
	Opcode uint8 `toml:"opcode"`

	// reloc
	Buffer string `toml:"buffer"`
	Start  uint32 `toml:"start"`
	End    uint32 `toml:"end"`
	Read   string `toml:"read"`
	Write  string `toml:"write"`
	Flags  uint32 `toml:"flags"`

	// begin
	NDW int `toml:"ndw"`
}

// Load parses the scenario file at path.
func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes and validates a scenario.
func Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := toml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	if err := sc.validate(); err != nil {
		return nil, err
	}
	return &sc, nil
}

func (sc *Scenario) validate() error {
	names := make(map[string]bool, len(sc.Buffers))
	for _, b := range sc.Buffers {
		if names[b.Name] {
			return fmt.Errorf("%w %q", ErrDuplicateBuffer, b.Name)
		}
		names[b.Name] = true
	}
	for i, st := range sc.Steps {
		switch st.Op {
		case OpWords, OpEnd, OpEmit, OpErase:
		case OpPacket0, OpPacket3:
			if len(st.Words) == 0 {
				return fmt.Errorf("%w: step %d: %s without words", ErrBadStep, i, st.Op)
			}
		case OpBegin:
			if st.NDW < 0 {
				return fmt.Errorf("%w: step %d: negative ndw", ErrBadStep, i)
			}
		case OpReloc:
			if !names[st.Buffer] {
				return fmt.Errorf("%w %q in step %d", ErrUnknownBuffer, st.Buffer, i)
			}
		default:
			return fmt.Errorf("%w %q in step %d", ErrUnknownOp, st.Op, i)
		}
	}
	return nil
}

// Result reports what a run did.
type Result struct {
	Emits   int
	Offsets []uint32 // slot offset returned by each reloc step
}

// Run allocates the scenario's buffers from m and applies every step to s.
// The run stops at the first failing step. The buffers' creation
// references are dropped before Run returns, so buffers survive only while
// s still holds them.
func (sc *Scenario) Run(s cmdstream.Stream, m *bo.Manager) (*Result, error) {
	bufs := make(map[string]*bo.Buffer, len(sc.Buffers))
	defer func() {
		for _, b := range bufs {
			b.Unref()
		}
	}()
	for _, b := range sc.Buffers {
		obj, err := m.Alloc(b.Size)
		if err != nil {
			return nil, fmt.Errorf("buffer %q: %w", b.Name, err)
		}
		bufs[b.Name] = obj
	}

	res := &Result{}
	for i, st := range sc.Steps {
		if err := sc.step(s, bufs, st, res); err != nil {
			return res, fmt.Errorf("step %d (%s): %w", i, st.Op, err)
		}
	}
	cmdstream.Logger().Debug("script: run complete",
		slog.Int("steps", len(sc.Steps)),
		slog.Int("emits", res.Emits))
	return res, nil
}

func (sc *Scenario) step(s cmdstream.Stream, bufs map[string]*bo.Buffer, st Step, res *Result) error {
	switch st.Op {
	case OpWords:
		return s.WriteWords(st.Words...)
	case OpPacket0:
		if err := encodable(len(st.Words)); err != nil {
			return err
		}
		if st.Reg&3 != 0 || st.Reg > packet.MaxRegister {
			return fmt.Errorf("%w: register 0x%X", ErrBadStep, st.Reg)
		}
		h := packet.MakeType0(st.Reg, len(st.Words), st.OneRegister)
		return s.WriteWords(append([]uint32{h}, st.Words...)...)
	case OpPacket3:
		if err := encodable(len(st.Words)); err != nil {
			return err
		}
		h := packet.MakeType3(packet.Opcode(st.Opcode), len(st.Words))
		return s.WriteWords(append([]uint32{h}, st.Words...)...)
	case OpReloc:
		obj, ok := bufs[st.Buffer]
		if !ok {
			return fmt.Errorf("%w %q", ErrUnknownBuffer, st.Buffer)
		}
		read, err := wire.ParseDomain(st.Read)
		if err != nil {
			return err
		}
		write, err := wire.ParseDomain(st.Write)
		if err != nil {
			return err
		}
		off, err := s.WriteReloc(obj, st.Start, st.End, read, write, st.Flags)
		if err != nil {
			return err
		}
		res.Offsets = append(res.Offsets, off)
		return nil
	case OpBegin:
		return s.Begin(st.NDW)
	case OpEnd:
		return s.End()
	case OpEmit:
		if err := s.Emit(); err != nil {
			return err
		}
		res.Emits++
		return nil
	case OpErase:
		return s.Erase()
	}
	return fmt.Errorf("%w %q", ErrUnknownOp, st.Op)
}

func encodable(n int) error {
	if n < 1 || n > packet.MaxBodyWords {
		return fmt.Errorf("%w: body of %d words", ErrBadStep, n)
	}
	return nil
}
