// Command sdrengine wires a set of tuned channels to an I/Q source and
// a mode table, then runs the channelize/demodulate/packetize pipeline
// until interrupted. Grounded on the teacher's main.go flag-parsing
// and log/slog setup (minus its PipeWire/TUI/web plumbing, out of
// scope here).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand"
	"os"
	"os/signal"

	"github.com/msgpo/ka9q-radio/internal/audio"
	"github.com/msgpo/ka9q-radio/internal/demod"
	"github.com/msgpo/ka9q-radio/internal/dsp"
	"github.com/msgpo/ka9q-radio/internal/modes"
	"github.com/msgpo/ka9q-radio/internal/pipeline"
)

func main() {
	modesFile := flag.String("modes", "", "Path to the mode table file")
	logFile := flag.String("log", "sdrengine.log", "Log file path")
	sampleRate := flag.Int("samplerate", 48000, "Input sample rate, Hz")
	blockLen := flag.Int("block", 4096, "Input block length, samples")
	showHelp := flag.Bool("help", false, "Show this help message")
	flag.Parse()

	if *showHelp {
		flag.PrintDefaults()
		return
	}

	file, err := os.OpenFile(*logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o666)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sdrengine: open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	logger := slog.New(slog.NewTextHandler(file, nil))
	slog.SetDefault(logger)

	if *modesFile == "" {
		slog.Error("no mode table file given, use -modes")
		os.Exit(1)
	}

	entries, err := loadModes(*modesFile)
	if err != nil {
		slog.Error("loading mode table", "error", err)
		os.Exit(1)
	}
	slog.Info("loaded mode table", "entries", len(entries))

	channels, err := buildChannels(entries, float32(*sampleRate), *blockLen)
	if err != nil {
		slog.Error("building channels", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	source := &stdinIQSource{}
	p := pipeline.New(source, *blockLen, channels)
	if err := p.Run(ctx); err != nil {
		slog.Error("pipeline exited", "error", err)
		os.Exit(1)
	}
	slog.Info("pipeline stopped")
}

// loadModes reads and parses the mode table at path.
func loadModes(path string) ([]modes.Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mode table: %w", err)
	}
	defer f.Close()
	return modes.Parse(f)
}

// buildChannels constructs one pipeline.Channel per mode-table entry,
// each with its own channelizer filter and demodulator sized for
// blockLen-sample blocks at sampleRate.
func buildChannels(entries []modes.Entry, sampleRate float32, blockLen int) ([]*pipeline.Channel, error) {
	channels := make([]*pipeline.Channel, 0, len(entries))
	for _, e := range entries {
		bandwidth := float32(e.High - e.Low)
		if bandwidth <= 0 {
			return nil, fmt.Errorf("channel %q: non-positive bandwidth", e.Name)
		}

		filt, err := dsp.NewFilter(dsp.FilterSpec{
			InDomain:  dsp.DomainComplex,
			OutDomain: dsp.DomainComplex,
			L:         blockLen,
			M:         blockLen + 1,
			D:         1,
			Low:       float32(e.Low) / sampleRate,
			High:      float32(e.High) / sampleRate,
			Beta:      3.0,
		})
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", e.Name, err)
		}

		d, err := demod.NewDemod(e.Kind, sampleRate, bandwidth, 1.0)
		if err != nil {
			return nil, fmt.Errorf("channel %q: %w", e.Name, err)
		}

		pack := audio.NewPacketizer(&discardSink{}, rand.Uint32())
		channels = append(channels, pipeline.NewChannel(e.Name, filt, d, pack))
	}
	return channels, nil
}

// discardSink is a placeholder DatagramSink until the caller wires in
// a real multicast or unicast UDP socket.
type discardSink struct{}

func (discardSink) WriteDatagram(b []byte) error { return nil }

// stdinIQSource reads raw little-endian interleaved float32 I/Q pairs
// from standard input, a simple way to feed the pipeline without a
// live radio front end.
type stdinIQSource struct{}

func (s *stdinIQSource) ReadBlock(buf []complex64) error {
	raw := make([]byte, len(buf)*8)
	if _, err := io.ReadFull(os.Stdin, raw); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return io.EOF
		}
		return err
	}
	for i := range buf {
		re := decodeFloat32LE(raw[i*8 : i*8+4])
		im := decodeFloat32LE(raw[i*8+4 : i*8+8])
		buf[i] = complex(re, im)
	}
	return nil
}

func decodeFloat32LE(b []byte) float32 {
	bits := uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
	return math.Float32frombits(bits)
}
