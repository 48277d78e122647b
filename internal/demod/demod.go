package demod

import "fmt"

// Kind names a demodulator family, used by the mode table and the
// control plane to select which concrete demodulator backs a channel.
type Kind int

const (
	KindAM Kind = iota
	KindFM
	KindLinear
	KindSSB
	KindCoherentAM
	KindBPSK
)

// String renders a Kind the way the mode table's demodulator column
// expects.
func (k Kind) String() string {
	switch k {
	case KindAM:
		return "am"
	case KindFM:
		return "fm"
	case KindLinear:
		return "linear"
	case KindSSB:
		return "usb" // ssb.c's two sidebands share a Kind; the sideband is set by the mode table's passband edges
	case KindCoherentAM:
		return "cam"
	case KindBPSK:
		return "bpsk"
	default:
		return "unknown"
	}
}

// Demod is the sum-type dispatch the channelizer-to-demodulator stage
// holds per channel, switchable at a block boundary per spec.md §9's
// design note: exactly one of the pointer fields is non-nil at a time.
type Demod struct {
	Kind   Kind
	AM     *AM
	FM     *FM
	Linear *Linear
}

// NewDemod constructs a Demod for kind, wiring up the concrete
// demodulator it needs.
func NewDemod(kind Kind, sampleRate, bandwidth, headroom float32) (*Demod, error) {
	d := &Demod{Kind: kind}
	switch kind {
	case KindAM:
		d.AM = NewAM(sampleRate, headroom)
	case KindFM:
		d.FM = NewFM(sampleRate, bandwidth, headroom)
	case KindLinear, KindSSB:
		l, err := NewLinear(LinearPlain, sampleRate, bandwidth)
		if err != nil {
			return nil, err
		}
		d.Linear = l
	case KindCoherentAM:
		l, err := NewLinear(LinearCoherent, sampleRate, bandwidth)
		if err != nil {
			return nil, err
		}
		d.Linear = l
	case KindBPSK:
		l, err := NewLinear(LinearBPSK, sampleRate, bandwidth)
		if err != nil {
			return nil, err
		}
		d.Linear = l
	default:
		return nil, fmt.Errorf("demod: unknown kind %v", kind)
	}
	return d, nil
}

// Process demodulates one block of complex baseband samples, writing
// real audio to out (which must be sized for the block's decimated
// sample count) and discarding any demodulator-specific side channel
// (squelch, SNR, lock status) available through the concrete type.
func (d *Demod) Process(iq []complex64, out []float32) error {
	switch d.Kind {
	case KindAM:
		d.AM.Process(iq, out)
	case KindFM:
		d.FM.Process(iq, out)
	case KindLinear, KindSSB, KindCoherentAM, KindBPSK:
		d.Linear.Process(iq, out)
	default:
		return fmt.Errorf("demod: unknown kind %v", d.Kind)
	}
	return nil
}

// Reset clears whichever concrete demodulator is active, used when the
// pipeline switches a channel's mode at a block boundary so the new
// mode starts from a clean state rather than carrying over AGC, PLL,
// or squelch history from the old one.
func (d *Demod) Reset() {
	switch d.Kind {
	case KindAM:
		d.AM.Reset()
	case KindFM:
		d.FM.Reset()
	case KindLinear, KindSSB, KindCoherentAM, KindBPSK:
		d.Linear.Reset()
	}
}
