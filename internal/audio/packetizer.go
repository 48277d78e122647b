// Package audio packetizes demodulated audio into RTP datagrams: raw
// mono or stereo 16-bit PCM, or Opus-encoded frames behind a narrow
// encoder interface. Grounded on audio.c's send_mono_audio,
// send_stereo_audio, and send_stereo_opus_audio.
package audio

import (
	"fmt"
	"math"

	"github.com/msgpo/ka9q-radio/internal/rtp"
)

// pcmBufSize is audio.c's PCM_BUFSIZE: 512 bytes per RTP payload,
// which is 256 mono int16 samples or 128 stereo int16 frames.
const pcmBufSize = 512

// MonoFrameSamples and StereoFrameSamples are the sample counts that
// fill one PCM_BUFSIZE-byte RTP payload for each channel layout.
const (
	MonoFrameSamples   = pcmBufSize / 2
	StereoFrameSamples = pcmBufSize / 4
)

// OpusBlockTimesMs are the only Opus frame durations audio.c accepts,
// matching libopus's supported set exactly.
var OpusBlockTimesMs = []float64{2.5, 5, 10, 20, 40, 60, 80, 100, 120}

// ErrInvalidOpusBlockTime is returned when a requested Opus frame
// duration is not one of OpusBlockTimesMs.
var ErrInvalidOpusBlockTime = fmt.Errorf("audio: opus block time must be one of %v", OpusBlockTimesMs)

// OpusEncoder is the narrow interface this package needs from an Opus
// codec: encode one PCM frame into a compressed payload. Kept separate
// from any concrete Opus library so the encoder can be swapped or
// stubbed without touching the packetizer.
type OpusEncoder interface {
	Encode(pcm []int16) ([]byte, error)
}

// DatagramSink is the external collaborator this package writes RTP
// packets to — a multicast or unicast UDP socket in production, a
// buffer in tests.
type DatagramSink interface {
	WriteDatagram(b []byte) error
}

// Packetizer accumulates demodulated audio and emits RTP packets of
// one of three payload kinds: mono PCM, stereo PCM, or Opus. Grounded
// on audio.c's per-stream RTP state (sequence number, timestamp,
// SSRC) plus its bitrate exponential moving average.
type Packetizer struct {
	SSRC        uint32
	sink        DatagramSink
	seq         uint16
	timestamp   uint32
	bitrateEMA  float64
	blockTimeMs float64
}

// NewPacketizer builds a Packetizer writing to sink under ssrc.
func NewPacketizer(sink DatagramSink, ssrc uint32) *Packetizer {
	return &Packetizer{SSRC: ssrc, sink: sink}
}

// scaleClip converts a float32 audio sample in roughly [-1,1] to a
// clipped int16 PCM sample, matching audio.c's scaleclip: values
// outside range are hard-clipped rather than wrapped.
func scaleClip(sample float32) int16 {
	scaled := float64(sample) * math.MaxInt16
	if scaled > math.MaxInt16 {
		return math.MaxInt16
	}
	if scaled < math.MinInt16 {
		return math.MinInt16
	}
	return int16(scaled)
}

// SendMono packetizes a block of mono float32 audio as 16-bit
// big-endian PCM under PayloadTypeMonoPCM, in packets of at most
// MonoFrameSamples samples. Each packet advances the sequence number
// by one and the timestamp by its sample count. Grounded on audio.c's
// send_mono_audio.
func (p *Packetizer) SendMono(samples []float32) error {
	for len(samples) > 0 {
		n := min(len(samples), MonoFrameSamples)
		payload := make([]byte, 0, n*2)
		for _, s := range samples[:n] {
			v := scaleClip(s)
			payload = append(payload, byte(v>>8), byte(v))
		}
		if err := p.send(rtp.PayloadTypeMonoPCM, payload, uint32(n)); err != nil {
			return err
		}
		samples = samples[n:]
	}
	return nil
}

// SendStereo packetizes interleaved (left, right) float32 audio as
// 16-bit big-endian PCM under PayloadTypeStereoPCM, in packets of at
// most StereoFrameSamples frames. left and right must have equal
// length. Grounded on audio.c's send_stereo_audio.
func (p *Packetizer) SendStereo(left, right []float32) error {
	if len(left) != len(right) {
		return fmt.Errorf("audio: stereo channels have mismatched lengths %d/%d", len(left), len(right))
	}
	for len(left) > 0 {
		n := min(len(left), StereoFrameSamples)
		payload := make([]byte, 0, n*4)
		for i := range n {
			l, r := scaleClip(left[i]), scaleClip(right[i])
			payload = append(payload, byte(l>>8), byte(l), byte(r>>8), byte(r))
		}
		if err := p.send(rtp.PayloadTypeStereoPCM, payload, uint32(n)); err != nil {
			return err
		}
		left, right = left[n:], right[n:]
	}
	return nil
}

// SendOpus encodes pcm through enc and packetizes the result under
// PayloadTypeOpus, tracking an exponential moving average of the
// output bitrate the same way audio.c's decay = exp(-blocktime) does.
// If enc fails, no packet is sent and the sequence number is
// unchanged, but the timestamp still advances by len(pcm).
func (p *Packetizer) SendOpus(enc OpusEncoder, pcm []int16, blockTimeMs float64) error {
	valid := false
	for _, bt := range OpusBlockTimesMs {
		if bt == blockTimeMs {
			valid = true
			break
		}
	}
	if !valid {
		return ErrInvalidOpusBlockTime
	}

	payload, err := enc.Encode(pcm)
	if err != nil {
		p.timestamp += uint32(len(pcm))
		return fmt.Errorf("audio: opus encode: %w", err)
	}

	decay := math.Exp(-blockTimeMs / 1000)
	bitsPerSec := float64(len(payload)*8) / (blockTimeMs / 1000)
	p.bitrateEMA = decay*p.bitrateEMA + (1-decay)*bitsPerSec
	p.blockTimeMs = blockTimeMs

	return p.send(rtp.PayloadTypeOpus, payload, uint32(len(pcm)))
}

// BitrateEMA returns the Opus stream's smoothed output bitrate, in
// bits/sec, as tracked by the most recent SendOpus calls.
func (p *Packetizer) BitrateEMA() float64 { return p.bitrateEMA }

func (p *Packetizer) send(payloadType uint8, payload []byte, sampleCount uint32) error {
	h := rtp.Header{
		PayloadType:    payloadType,
		SequenceNumber: p.seq,
		Timestamp:      p.timestamp,
		SSRC:           p.SSRC,
	}
	buf := h.Marshal(make([]byte, 0, 12+len(payload)))
	buf = append(buf, payload...)

	if err := p.sink.WriteDatagram(buf); err != nil {
		return fmt.Errorf("audio: write datagram: %w", err)
	}

	p.seq++
	p.timestamp += sampleCount
	return nil
}
