package dsp

// Nco is a numerically-controlled oscillator: a complex phasor stepped
// by a fixed per-sample rotation. It is the local-carrier generator
// inside the linear/coherent demodulator's PLL; the pipeline's
// channelizer does not use one (it applies no frequency shift). Grounded on
// linear.c's struct osc and its step_osc/set_osc helpers.
type Nco struct {
	phasor complex64 // current unit-magnitude rotation state
	step   complex64 // per-sample rotation, magnitude 1

	sinceRenorm int
}

// renormInterval bounds how many Step calls run between magnitude
// renormalizations, keeping accumulated floating-point drift from
// growing the phasor off the unit circle.
const renormInterval = 256

// NewNco builds an Nco initialized to phase zero (phasor=1) with a
// per-sample rotation of 2*pi*freq radians, where freq is a normalized
// frequency (cycles/sample).
func NewNco(freq float32) *Nco {
	n := &Nco{phasor: 1}
	n.SetFrequency(freq)
	return n
}

// SetFrequency changes the per-sample rotation without touching the
// current phase, matching linear.c's set_osc (which updates the
// increment in place while leaving the accumulated phasor alone).
func (n *Nco) SetFrequency(freq float32) {
	theta := twoPi32 * freq
	n.step = complex64(complex(cos32(theta), sin32(theta)))
}

// Phase returns the current unit phasor, e^{j*phi}.
func (n *Nco) Phase() complex64 { return n.phasor }

// Step advances the oscillator by one sample and returns the new
// phasor. Periodically renormalizes to unit magnitude to counter
// floating-point drift, matching linear.c's step_osc.
func (n *Nco) Step() complex64 {
	n.phasor *= n.step
	n.sinceRenorm++
	if n.sinceRenorm >= renormInterval {
		n.renormalize()
		n.sinceRenorm = 0
	}
	return n.phasor
}

// renormalize rescales the phasor back onto the unit circle.
func (n *Nco) renormalize() {
	mag := sqrt32(real(n.phasor)*real(n.phasor) + imag(n.phasor)*imag(n.phasor))
	if mag == 0 {
		n.phasor = 1
		return
	}
	n.phasor /= complex64(complex(mag, 0))
}

// SetPhase forces the oscillator to an explicit phasor, used by the
// linear demodulator's Reset to return the carrier to phase zero.
func (n *Nco) SetPhase(phasor complex64) {
	n.phasor = phasor
}

const twoPi32 = 6.283185307179586
