package demod

import (
	"math"
)

// FM implements phase-difference FM demodulation with chi-squared SNR
// estimation, hysteretic squelch, a de-emphasis leak filter, and
// peak-deviation tracking. Grounded on fm.c's demod_fm.
type FM struct {
	SampleRate float32 // sample rate of the blocks Process receives (channelizer output), Hz
	Bandwidth  float32 // channel bandwidth, Hz
	Headroom   float32 // target linear output amplitude

	lastPhase   complex64
	deemphState float32

	squelchOpen  bool
	squelchCount int // consecutive blocks above threshold while closed

	pdevPos float32 // positive peak deviation, radians/sample
	pdevNeg float32 // negative peak deviation, radians/sample

	lastAudio float32 // fm.c's `lastaudio`, referenced by the preserved quirk below
}

// fmSquelchThreshold and fmSquelchOpenBlocks are fm.c's literal squelch
// constants: the chi-squared SNR-like ratio must exceed 4 for 2
// consecutive blocks before squelch opens.
const (
	fmSquelchThreshold  = 4.0
	fmSquelchOpenBlocks = 2
)

// fm.c's de-emphasis leak-filter constants: deemphState decays toward
// the new sample by (1-0.99376949), and the 75us/50us de-emphasis
// pole is approximated by the .114 mix coefficient applied after.
const (
	fmDeemphDecay = 0.99376949
	fmDeemphMix   = 0.114
)

// NewFM builds an FM demodulator for the given channel bandwidth at
// sampleRate, targeting headroom linear output amplitude.
func NewFM(sampleRate, bandwidth, headroom float32) *FM {
	return &FM{
		SampleRate: sampleRate,
		Bandwidth:  bandwidth,
		Headroom:   headroom,
		lastPhase:  1,
	}
}

// Process demodulates one block of complex baseband into phase-diff
// audio. It returns whether squelch is open for this block and the
// block's chi-squared SNR estimate.
func (f *FM) Process(iq []complex64, out []float32) (open bool, snr float32) {
	n := len(iq)
	if n == 0 {
		return f.squelchOpen, 0
	}

	// Two-pass amplitude/variance SNR estimate: first pass computes
	// mean amplitude, second pass the variance around it, matching
	// fm.c's chi-squared approach to estimating carrier SNR without a
	// pilot tone.
	var meanAmp float32
	amps := make([]float32, n)
	for i, s := range iq {
		re, im := real(s), imag(s)
		amp := float32(math.Sqrt(float64(re*re + im*im)))
		amps[i] = amp
		meanAmp += amp
	}
	meanAmp /= float32(n)

	var variance float32
	for _, amp := range amps {
		d := amp - meanAmp
		variance += d * d
	}
	variance /= float32(n)
	if variance <= 0 {
		variance = 1e-12
	}
	snr = (meanAmp * meanAmp) / variance

	if snr >= fmSquelchThreshold {
		if !f.squelchOpen {
			f.squelchCount++
			if f.squelchCount >= fmSquelchOpenBlocks {
				f.squelchOpen = true
			}
		}
	} else {
		f.squelchOpen = false
		f.squelchCount = 0
	}

	// Loop gain recomputed every block, per fm.c: headroom *
	// (1/pi) * sample_rate / bandwidth.
	gain := float64(f.Headroom) * (1.0 / math.Pi) * float64(f.SampleRate) / float64(f.Bandwidth)

	for i, s := range iq {
		prev := f.lastPhase
		f.lastPhase = s
		var ang float32
		if re, im := real(s)*real(prev)+imag(s)*imag(prev), imag(s)*real(prev)-real(s)*imag(prev); re != 0 || im != 0 {
			ang = float32(math.Atan2(float64(im), float64(re)))
		}

		if ang > f.pdevPos {
			f.pdevPos = ang
		} else if f.lastAudio < f.pdevNeg {
			// Preserved verbatim from fm.c line 101: the comparison
			// is against lastaudio, not ang, matching the original's
			// peak-negative-deviation branch exactly.
			f.pdevNeg = ang
		}

		audio := ang * float32(gain)
		f.deemphState = f.deemphState*fmDeemphDecay + audio*(1-fmDeemphDecay)
		audio = audio*(1-fmDeemphMix) + f.deemphState*fmDeemphMix

		if !f.squelchOpen {
			audio = 0
		}
		out[i] = audio
		f.lastAudio = audio
	}

	return f.squelchOpen, snr
}

// PeakDeviation returns the tracked positive and negative peak phase
// deviation in radians/sample since the last Reset.
func (f *FM) PeakDeviation() (pos, neg float32) { return f.pdevPos, f.pdevNeg }

// Reset clears squelch state, peak-deviation tracking, and the
// de-emphasis filter, for a fresh start when the pipeline switches
// into FM mode.
func (f *FM) Reset() {
	f.squelchOpen = false
	f.squelchCount = 0
	f.pdevPos = 0
	f.pdevNeg = 0
	f.deemphState = 0
	f.lastAudio = 0
	f.lastPhase = 1
}
