// Command csdump builds command streams from TOML scenarios and decodes
// captured submissions.
//
// Usage:
//
//	csdump [-capture out.cbor] [-gpu] run scenario.toml
//	csdump decode capture.cbor
//
// Settings are read from CMDSTREAM_LOG_LEVEL, CMDSTREAM_BACKEND and
// CMDSTREAM_CAPACITY.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/cmdstream"
	_ "github.com/gogpu/cmdstream/backend/gem"
	"github.com/gogpu/cmdstream/bo"
	"github.com/gogpu/cmdstream/capture"
	"github.com/gogpu/cmdstream/internal/config"
	"github.com/gogpu/cmdstream/internal/script"
	"github.com/gogpu/cmdstream/packet"
	"github.com/gogpu/cmdstream/wire"
)

func main() {
	var (
		captureOut = flag.String("capture", "", "record submissions to this CBOR file")
		useGPU     = flag.Bool("gpu", false, "also submit through the noop GPU device")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "csdump (cmdstream %s)\n\n", cmdstream.Version)
		fmt.Fprintf(flag.CommandLine.Output(), "usage: csdump [flags] run <scenario.toml>\n       csdump decode <capture.cbor>\n\nflags:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	cmdstream.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	if flag.NArg() != 2 {
		flag.Usage()
		os.Exit(2)
	}
	cmd, path := flag.Arg(0), flag.Arg(1)

	switch cmd {
	case "run":
		err = run(os.Stdout, cfg, path, *captureOut, *useGPU)
	case "decode":
		err = decode(os.Stdout, path)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		log.Fatalf("%s: %v", cmd, err)
	}
}

// run executes a scenario and prints every submission it emits.
func run(w io.Writer, cfg config.Config, path, captureOut string, useGPU bool) error {
	sc, err := script.Load(path)
	if err != nil {
		return err
	}

	var ch cmdstream.Channel = printChannel(w)
	if useGPU {
		gpu, closeGPU, err := openNoopChannel(ch)
		if err != nil {
			return err
		}
		defer closeGPU()
		ch = gpu
	}
	var rec *capture.Recorder
	if captureOut != "" {
		f, err := os.Create(captureOut)
		if err != nil {
			return err
		}
		defer f.Close()
		rec = capture.NewRecorder(f, ch)
		ch = rec
	}

	m, err := cmdstream.NewManager(ch, cmdstream.WithBackend(cfg.Backend))
	if err != nil {
		return err
	}
	capacity := sc.Capacity
	if capacity == 0 {
		capacity = cfg.Capacity
	}
	s, err := m.NewStream(capacity)
	if err != nil {
		return err
	}
	defer s.Destroy()

	res, err := sc.Run(s, bo.NewManager())
	if err != nil {
		return err
	}

	st := s.Stats()
	p := message.NewPrinter(language.English)
	p.Fprintf(w, "%d submissions, %d words, %d relocations, %d bytes referenced\n",
		res.Emits, st.Words, st.Relocs, st.ReferencedBytes)
	if s.NeedFlush() {
		p.Fprintf(w, "stream needs a flush (over %d bytes)\n", cmdstream.FlushThreshold)
	}
	if rec != nil {
		p.Fprintf(w, "captured %d submissions to %s\n", rec.Count(), captureOut)
	}
	return nil
}

// decode prints every submission of a capture file.
func decode(w io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := capture.NewReader(f)
	for {
		rec, err := r.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "== submission %d ==\n", rec.Seq)
		if err := printSubmission(w, rec.Submission()); err != nil {
			return err
		}
	}
}

func printChannel(w io.Writer) cmdstream.Channel {
	return cmdstream.ChannelFunc(func(sub *wire.Submission) error {
		return printSubmission(w, sub)
	})
}

func printSubmission(w io.Writer, sub *wire.Submission) error {
	if err := packet.Fprint(w, sub.IB().Words()); err != nil {
		return err
	}
	relocs, err := wire.DecodeRelocs(sub.Relocs().Words())
	if err != nil {
		return err
	}
	for i, r := range relocs {
		if _, err := fmt.Fprintf(w, "reloc %d @%d: %s\n", i, wire.SlotOffset(i), r); err != nil {
			return err
		}
	}
	return nil
}
