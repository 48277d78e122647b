// Package pipeline wires the four-stage producer/consumer fabric that
// carries samples from I/Q ingress through channelization and
// demodulation to audio egress, with bounded channels between stages
// and a condition variable guarding in-flight demodulator mode
// switches. Grounded on spec.md §5's concurrency model and the
// teacher's goroutine-per-stage, mutex-guarded state idiom in
// dsp.ConvolutionReverb.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/msgpo/ka9q-radio/internal/audio"
	"github.com/msgpo/ka9q-radio/internal/demod"
	"github.com/msgpo/ka9q-radio/internal/dsp"
)

// IQSource is the external collaborator the intake stage pulls raw
// complex baseband samples from — a multicast RTP socket in
// production, a fixture in tests.
type IQSource interface {
	// ReadBlock fills buf with the next block of complex samples,
	// returning io.EOF once the source is exhausted.
	ReadBlock(buf []complex64) error
}

// blockQueueDepth bounds every inter-stage channel, the same way the
// teacher bounds its resampler's pending-block queue.
const blockQueueDepth = 4

// Channel is one tuned channel running its own filter, demodulator,
// and packetizer through the pipeline's shared stages. Mode switches
// are staged under mu and applied at the next block boundary the
// demodulator stage observes, matching spec.md §5's mode-switch
// condvar.
type Channel struct {
	Name   string
	Filter *dsp.FilterState
	Pack   *audio.Packetizer

	mu         sync.Mutex
	cond       *sync.Cond
	current    *demod.Demod
	pending    *demod.Demod
	switchNext bool
}

// NewChannel builds a Channel with filt as its channelizer filter,
// active as d, packetizing output through pack.
func NewChannel(name string, filt *dsp.FilterState, d *demod.Demod, pack *audio.Packetizer) *Channel {
	c := &Channel{Name: name, Filter: filt, current: d, Pack: pack}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// SwitchMode stages a new demodulator to take over at the next block
// boundary. The caller retains ownership of d until it is swapped in.
func (c *Channel) SwitchMode(d *demod.Demod) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = d
	c.switchNext = true
	c.cond.Broadcast()
}

// activeDemod returns the demodulator this block should run through,
// applying any pending mode switch first and resetting the freshly
// switched-in demodulator's state.
func (c *Channel) activeDemod() *demod.Demod {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.switchNext {
		c.current = c.pending
		c.pending = nil
		c.switchNext = false
		c.current.Reset()
	}
	return c.current
}

// Pipeline runs the intake -> channelize -> demodulate -> packetize
// fabric for a set of channels sharing one I/Q source, using one
// bounded channel per stage boundary and context cancellation for a
// clean shutdown, matching spec.md §5's four worker tasks and
// terminate flag.
type Pipeline struct {
	source   IQSource
	channels []*Channel
	blockLen int
}

// New builds a Pipeline reading blockLen-sample raw blocks from
// source and fanning them out to channels.
func New(source IQSource, blockLen int, channels []*Channel) *Pipeline {
	return &Pipeline{source: source, channels: channels, blockLen: blockLen}
}

// rawBlock is one intake-stage output: a raw complex sample block tied
// to nothing channel-specific yet (the channelizer stage filters it
// per channel).
type rawBlock struct {
	samples []complex64
}

// channelBlock is one channelizer-stage output: this channel's
// decimated baseband, ready for demodulation.
type channelBlock struct {
	ch      *Channel
	samples []complex64
}

// audioBlock is one demodulator-stage output: real audio samples
// ready for packetizing.
type audioBlock struct {
	ch     *Channel
	audio  []float32
}

// Run drives the four stages until ctx is canceled or source is
// exhausted, returning the first stage error encountered (io.EOF from
// the source is treated as a clean stop, not an error).
func (p *Pipeline) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	rawCh := make(chan rawBlock, blockQueueDepth)
	chanCh := make(chan channelBlock, blockQueueDepth*len(p.channels))
	audioCh := make(chan audioBlock, blockQueueDepth*len(p.channels))

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(rawCh)
		if err := p.runIntake(ctx, rawCh); err != nil {
			errCh <- err
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(chanCh)
		p.runChannelizer(ctx, rawCh, chanCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(audioCh)
		p.runDemodulator(ctx, chanCh, audioCh)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := p.runPacketizer(ctx, audioCh); err != nil {
			errCh <- err
			cancel()
		}
	}()

	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// runIntake is the first stage: pulls raw blocks from the I/Q source
// and forwards them downstream until ctx is canceled or the source is
// exhausted. A read error other than io.EOF is logged and that block
// is dropped; intake then continues with the next block.
func (p *Pipeline) runIntake(ctx context.Context, out chan<- rawBlock) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		buf := make([]complex64, p.blockLen)
		if err := p.source.ReadBlock(buf); err != nil {
			if err == io.EOF {
				return nil
			}
			slog.Warn("pipeline: intake read failed, block dropped", "error", err)
			continue
		}

		select {
		case out <- rawBlock{samples: buf}:
		case <-ctx.Done():
			return nil
		}
	}
}

// runChannelizer is the second stage: for every channel, runs each raw
// block through that channel's fast-convolution filter. No NCO
// frequency shift is applied, so a channel's passband is taken
// relative to the raw block's own center frequency. A block whose
// Execute fails is dropped for that channel.
func (p *Pipeline) runChannelizer(ctx context.Context, in <-chan rawBlock, out chan<- channelBlock) {
	for {
		select {
		case block, ok := <-in:
			if !ok {
				return
			}
			for _, ch := range p.channels {
				fresh := ch.Filter.FreshComplexBlock()
				copy(fresh, block.samples)
				decimated := make([]complex64, ch.Filter.Spec().Ld())
				if err := ch.Filter.Execute(decimated, nil); err != nil {
					continue
				}
				select {
				case out <- channelBlock{ch: ch, samples: decimated}:
				case <-ctx.Done():
					return
				}
			}
		case <-ctx.Done():
			return
		}
	}
}

// runDemodulator is the third stage: applies any staged mode switch
// for the channel and runs its active demodulator over the block.
func (p *Pipeline) runDemodulator(ctx context.Context, in <-chan channelBlock, out chan<- audioBlock) {
	for {
		select {
		case block, ok := <-in:
			if !ok {
				return
			}
			d := block.ch.activeDemod()
			audioSamples := make([]float32, len(block.samples))
			if err := d.Process(block.samples, audioSamples); err != nil {
				continue
			}
			select {
			case out <- audioBlock{ch: block.ch, audio: audioSamples}:
			case <-ctx.Done():
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// runPacketizer is the fourth stage: hands demodulated audio to each
// channel's RTP packetizer.
func (p *Pipeline) runPacketizer(ctx context.Context, in <-chan audioBlock) error {
	for {
		select {
		case block, ok := <-in:
			if !ok {
				return nil
			}
			if err := block.ch.Pack.SendMono(block.audio); err != nil {
				return fmt.Errorf("pipeline: packetize: %w", err)
			}
		case <-ctx.Done():
			return nil
		}
	}
}
