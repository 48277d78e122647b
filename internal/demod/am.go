// Package demod implements the envelope, FM, and linear/coherent
// demodulator family operating on channelized baseband blocks, plus
// the small sum-type dispatcher that lets the pipeline switch between
// them at a block boundary.
package demod

import (
	"math"

	"github.com/msgpo/ka9q-radio/internal/dsp"
)

// AM implements simple envelope (non-coherent) AM demodulation with a
// tracked noise floor and DC carrier level, grounded on am.c's
// demod_am.
type AM struct {
	agc        *dsp.AgcState
	noiseFloor float32
	dcLevel    float32

	// SampleRate is the demodulator's input sample rate in Hz, used to
	// size the AGC's hang time and recovery rate. The noise-floor and DC
	// trackers use fixed per-sample coefficients.
	SampleRate float32
}

// NewAM builds an AM demodulator targeting headroom (linear) peak
// output amplitude at the given sample rate.
func NewAM(sampleRate, headroom float32) *AM {
	return &AM{
		agc:        dsp.NewAgc(sampleRate, headroom, dsp.DefaultSSBHangSeconds, dsp.DefaultSSBRecoveryDB),
		SampleRate: sampleRate,
	}
}

// amNoiseFloorAlpha and amDCAlpha are am.c's literal one-pole filter
// coefficients for the noise-floor and DC-carrier trackers.
const (
	amNoiseFloorAlpha = 0.001
	amDCAlpha         = 0.0001
)

// Process demodulates one block of complex baseband samples into
// envelope-magnitude audio, tracking the DC carrier level and noise
// floor sample by sample and applying AGC per sample. The audio is
// written to out; the return value is the block's estimated baseband
// SNR in dB.
func (a *AM) Process(iq []complex64, out []float32) (snrDB float32) {
	var powerSum float32
	for i, s := range iq {
		re, im := real(s), imag(s)
		power := re*re + im*im
		amp := float32(math.Sqrt(float64(power)))

		a.dcLevel += amDCAlpha * (amp - a.dcLevel)
		a.noiseFloor += amNoiseFloorAlpha * (power - a.noiseFloor)

		gain := a.agc.Apply(amp)
		out[i] = (amp - a.dcLevel) * gain
		powerSum += power
	}

	signalPower := a.dcLevel * a.dcLevel
	noise := a.noiseFloor
	if noise <= 0 {
		noise = 1e-12
	}
	ratio := signalPower / noise
	if ratio <= 0 {
		ratio = 1e-12
	}
	return float32(10 * math.Log10(float64(ratio)))
}

// Reset clears the tracked noise floor, DC level, and AGC gain,
// matching the fresh state a demodulator should start in when the
// pipeline switches into AM mode.
func (a *AM) Reset() {
	a.noiseFloor = 0
	a.dcLevel = 0
	a.agc.Gain = 1
	a.agc.Hang = 0
}
