package demod

import (
	"fmt"
	"math"

	algofft "github.com/MeKo-Christian/algo-fft"
	"github.com/msgpo/ka9q-radio/internal/dsp"
)

// LinearMode selects the variant of linear demodulation: plain linear
// (no carrier recovery), SSB (product detection against the fixed
// 0 Hz carrier oscillator), coherent AM (carrier-locked PLL), or BPSK (carrier-locked PLL
// with symbol-polarity decision). Grounded on linear.c's COHERENT and
// SQUARE mode flags read from the mode table.
type LinearMode int

const (
	LinearPlain LinearMode = iota
	LinearSSB
	LinearCoherent
	LinearBPSK
)

// acquisitionFFTSize is linear.c's fftsize = 1<<16 used for the
// coarse carrier-frequency search.
const acquisitionFFTSize = 1 << 16

// Acquisition search bounds, in Hz, from linear.c's searchlow/searchhigh.
const (
	searchLowHz  = -300.0
	searchHighHz = 300.0
)

// Loop-filter constants from linear.c's PLL: a second-order loop with
// natural frequency set by vcogain and a damping ratio of 1/sqrt(2).
const (
	loopVCOGain  = 2 * math.Pi
	loopDamping  = 1 / math.Sqrt2
	lockLimit    = 0.2 // radians; phase error below this counts toward lock
	lockCountMax = 50  // lock count (in samples) that declares lock at +lockCountMax and unlock at -lockCountMax
)

// Linear implements the linear/SSB/coherent-AM/BPSK demodulator family
// with FFT-based carrier acquisition and a Gardner-style second-order
// PLL, grounded on linear.c's demod_linear.
type Linear struct {
	Mode       LinearMode
	SampleRate float32
	Bandwidth  float32

	carrier *dsp.Nco
	ramp    float32 // linear.c's acquisition sweep increment, preserved quirk below
	ramprate float32
	binsize  float32

	// Loop filter state (proportional + integrator gains, computed from
	// Bandwidth by NewLinear).
	propGain       float32
	integratorGain float32
	integrator     float32

	freqNorm float32 // current carrier frequency, cycles/sample

	locked     bool
	lockCount  int
	acquiring  bool

	fftPlan *algofft.Plan[complex64]
}

// NewLinear builds a linear-family demodulator for the given mode,
// sample rate, and channel bandwidth.
func NewLinear(mode LinearMode, sampleRate, bandwidth float32) (*Linear, error) {
	l := &Linear{
		Mode:       mode,
		SampleRate: sampleRate,
		Bandwidth:  bandwidth,
		carrier:    dsp.NewNco(0),
	}
	l.recomputeLoopGains()

	if mode == LinearCoherent || mode == LinearBPSK {
		plan, err := algofft.NewPlan32(acquisitionFFTSize)
		if err != nil {
			return nil, fmt.Errorf("demod: acquisition FFT plan: %w", err)
		}
		l.fftPlan = plan
	}
	return l, nil
}

// recomputeLoopGains derives the PLL's proportional and integrator
// gains from the natural frequency and damping ratio, matching
// linear.c's tau1/tau2/integrator_gain/prop_gain computation. It runs
// once, from NewLinear; changing Bandwidth afterwards does not update
// the gains.
func (l *Linear) recomputeLoopGains() {
	wn := float32(loopVCOGain) * l.Bandwidth / l.SampleRate
	tau1 := float32(1.0) / (wn * wn)
	tau2 := float32(2*loopDamping) / wn
	l.propGain = tau2 / tau1
	l.integratorGain = 1.0 / tau1
	l.ramprate = wn / 10
	l.binsize = l.SampleRate / acquisitionFFTSize
}

// Acquire runs FFT-based coarse carrier acquisition over iq (which
// must hold acquisitionFFTSize samples), searching [searchLowHz,
// searchHighHz] for the strongest bin, optionally doubling the
// spectrum first for BPSK/square-law carriers. It seeds the PLL's NCO
// with the coarse estimate and starts the acquisition sweep.
func (l *Linear) Acquire(iq []complex64) error {
	if len(iq) != acquisitionFFTSize || l.fftPlan == nil {
		return fmt.Errorf("demod: acquisition requires %d samples", acquisitionFFTSize)
	}

	spectrum := make([]complex64, acquisitionFFTSize)
	squared := iq
	if l.Mode == LinearBPSK {
		squared = make([]complex64, acquisitionFFTSize)
		for i, s := range iq {
			squared[i] = s * s
		}
	}
	if err := l.fftPlan.Forward(spectrum, squared); err != nil {
		return fmt.Errorf("demod: acquisition forward FFT: %w", err)
	}

	lowBin := int(searchLowHz / l.binsize)
	highBin := int(searchHighHz / l.binsize)
	bestBin, bestPower := 0, float32(-1)
	for b := lowBin; b <= highBin; b++ {
		idx := ((b % acquisitionFFTSize) + acquisitionFFTSize) % acquisitionFFTSize
		p := real(spectrum[idx])*real(spectrum[idx]) + imag(spectrum[idx])*imag(spectrum[idx])
		if p > bestPower {
			bestPower, bestBin = p, b
		}
	}

	freqHz := float32(bestBin) * l.binsize
	if l.Mode == LinearBPSK {
		freqHz /= 2 // undo the squaring's frequency doubling
	}
	l.freqNorm = freqHz / l.SampleRate
	l.carrier.SetFrequency(l.freqNorm)

	l.ramp = l.ramprate
	l.acquiring = true
	l.locked = false
	l.lockCount = 0
	return nil
}

// Process runs one block of complex baseband through the carrier
// tracking loop (for Coherent/BPSK) or a fixed BFO (for SSB/Plain),
// producing real audio by mixing down and taking the real (or, for
// BPSK, sign-decided) component.
func (l *Linear) Process(iq []complex64, out []float32) {
	for i, s := range iq {
		local := l.carrier.Step()
		mixed := s * complex64(complex(real(local), -imag(local)))

		var audio float32
		switch l.Mode {
		case LinearBPSK:
			if real(mixed) >= 0 {
				audio = 1
			} else {
				audio = -1
			}
		default:
			audio = real(mixed)
		}
		out[i] = audio

		if l.Mode == LinearCoherent || l.Mode == LinearBPSK {
			l.trackPhase(mixed)
		}
	}
}

// trackPhase runs one sample through the second-order loop filter,
// nudging the NCO frequency toward the phase error and updating the
// hysteretic lock detector. During acquisition it also runs the
// frequency sweep used to pull in a carrier the coarse FFT search
// missed.
func (l *Linear) trackPhase(mixed complex64) {
	phaseErr := float32(math.Atan2(float64(imag(mixed)), float64(real(mixed))))
	if l.Mode == LinearBPSK {
		// BPSK carrier error is ambiguous by pi; fold it into
		// [-pi/2, pi/2] before feeding the loop filter.
		if phaseErr > math.Pi/2 {
			phaseErr -= math.Pi
		} else if phaseErr < -math.Pi/2 {
			phaseErr += math.Pi
		}
	}

	l.integrator += l.integratorGain * phaseErr
	freqAdjust := l.propGain*phaseErr + l.integrator

	if l.acquiring {
		feedback := freqAdjust
		// Preserved verbatim from linear.c lines 232-235: the
		// downward reversal test compares feedback against binsize
		// with <=, which (by original design or original bug) can
		// fire before the upward test even when ramp's sign already
		// matches, rather than using a symmetric -binsize bound.
		if feedback >= l.binsize && l.ramp > 0 {
			l.ramp = -l.ramprate
		} else if feedback <= l.binsize && l.ramp < 0 {
			l.ramp = l.ramprate
		}
		freqAdjust += l.ramp
	}

	l.freqNorm += freqAdjust / (2 * math.Pi) / l.SampleRate
	l.carrier.SetFrequency(l.freqNorm)

	if absF32(phaseErr) < lockLimit {
		if l.lockCount < lockCountMax {
			l.lockCount++
		}
	} else if l.lockCount > -lockCountMax {
		l.lockCount--
	}
	if l.lockCount >= lockCountMax {
		l.locked = true
		l.acquiring = false
	} else if l.lockCount <= -lockCountMax {
		l.locked = false
	}
}

// Locked reports whether the PLL is locked: the per-sample lock count
// (up for phase error under lockLimit, down otherwise, clamped to
// +/-lockCountMax) last reached +lockCountMax rather than -lockCountMax.
func (l *Linear) Locked() bool { return l.locked }

// Reset clears lock state, the acquisition sweep, and the loop filter
// integrator, for a fresh start when the pipeline switches into a
// linear-family mode.
func (l *Linear) Reset() {
	l.locked = false
	l.lockCount = 0
	l.acquiring = false
	l.ramp = 0
	l.integrator = 0
	l.freqNorm = 0
	l.carrier.SetFrequency(0)
	l.carrier.SetPhase(1)
}

func absF32(x float32) float32 {
	if x < 0 {
		return -x
	}
	return x
}
