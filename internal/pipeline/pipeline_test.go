package pipeline

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/msgpo/ka9q-radio/internal/audio"
	"github.com/msgpo/ka9q-radio/internal/demod"
	"github.com/msgpo/ka9q-radio/internal/dsp"
)

type fixedSource struct {
	blocksLeft int
	blockLen   int
}

func (f *fixedSource) ReadBlock(buf []complex64) error {
	if f.blocksLeft <= 0 {
		return io.EOF
	}
	f.blocksLeft--
	for i := range buf {
		buf[i] = complex(1, 0)
	}
	return nil
}

type memSink struct {
	mu      sync.Mutex
	packets [][]byte
}

func (m *memSink) WriteDatagram(b []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := append([]byte(nil), b...)
	m.packets = append(m.packets, cp)
	return nil
}

func (m *memSink) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.packets)
}

func buildTestChannel(t *testing.T, name string, sink *memSink) *Channel {
	t.Helper()
	filt, err := dsp.NewFilter(dsp.FilterSpec{
		InDomain:  dsp.DomainComplex,
		OutDomain: dsp.DomainComplex,
		L:         4,
		M:         5,
		D:         1,
		Low:       -0.5,
		High:      0.5,
		Beta:      3.0,
	})
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	d, err := demod.NewDemod(demod.KindAM, 48000, 3000, 1.0)
	if err != nil {
		t.Fatalf("NewDemod: %v", err)
	}
	pack := audio.NewPacketizer(sink, 0xabcd)
	return NewChannel(name, filt, d, pack)
}

func TestPipelineRunProcessesAllBlocks(t *testing.T) {
	sink := &memSink{}
	ch := buildTestChannel(t, "test", sink)
	source := &fixedSource{blocksLeft: 5, blockLen: 4}

	p := New(source, 4, []*Channel{ch})
	if err := p.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if sink.count() != 5 {
		t.Fatalf("expected 5 packets, got %d", sink.count())
	}
}

func TestPipelineRunStopsOnContextCancel(t *testing.T) {
	sink := &memSink{}
	ch := buildTestChannel(t, "test", sink)
	source := &fixedSource{blocksLeft: 1 << 30, blockLen: 4} // effectively infinite

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(source, 4, []*Channel{ch})
	if err := p.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
}

func TestChannelSwitchModeAppliesAtNextBlock(t *testing.T) {
	sink := &memSink{}
	ch := buildTestChannel(t, "test", sink)

	newDemod, err := demod.NewDemod(demod.KindFM, 48000, 3000, 1.0)
	if err != nil {
		t.Fatalf("NewDemod: %v", err)
	}
	ch.SwitchMode(newDemod)

	active := ch.activeDemod()
	if active.Kind != demod.KindFM {
		t.Fatalf("expected switched-in demodulator to be FM, got %v", active.Kind)
	}

	// A second call with no pending switch should return the same
	// demodulator instance, not reset it again.
	again := ch.activeDemod()
	if again != active {
		t.Fatal("expected activeDemod to be stable once the pending switch is consumed")
	}
}
