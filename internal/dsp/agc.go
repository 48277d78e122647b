package dsp

// AgcState implements the shared automatic-gain-control state machine
// used by the AM, linear/SSB, and coherent demodulators: a gain that
// rises toward a headroom target when the signal is quiet, holds
// through a hang interval after a strong sample, and then recovers at
// a fixed dB/sec rate. Grounded on am.c's AGC block and ssb.c's
// hangtime/recovery_rate constants.
type AgcState struct {
	Gain      float32 // current linear gain, always > 0
	Headroom  float32 // target linear output level
	Hang      int     // samples remaining in the hang (hold) state
	HangMax   int     // hang length in samples after a strong sample
	Recovery  float32 // linear gain multiplier applied per sample during recovery
	Attack    float32 // per-sample multiplier for a 1 ms attack; Apply does not use it (attack sets the gain directly)
	Threshold float32 // output amplitude (input times Gain) above which attack fires and the hang timer resets
}

// DefaultSSBRecoveryDB and DefaultSSBHangSeconds are ssb.c's literal
// AGC constants: 6 dB/sec recovery, a 1.1 second hang.
const (
	DefaultSSBRecoveryDB     = 6.0
	DefaultSSBHangSeconds    = 1.1
	defaultAttackTimeConstMs = 1.0
)

// NewAgc builds an AgcState for a demodulator running at sampleRate Hz,
// targeting headroom (linear) output amplitude, with hangSeconds of
// hold time and recoveryDBPerSec dB/sec of gain recovery after the
// hang expires.
func NewAgc(sampleRate float32, headroom float32, hangSeconds, recoveryDBPerSec float32) *AgcState {
	hangMax := int(hangSeconds * sampleRate)
	// Convert a dB/sec recovery rate into a per-sample linear
	// multiplier: gain *= recovery each sample during recovery.
	recoveryPerSample := dbToVoltage(float64(recoveryDBPerSec) / float64(sampleRate))
	attackPerSample := dbToVoltage(-80.0 / float64(defaultAttackTimeConstMs*sampleRate/1000))

	return &AgcState{
		Gain:      1,
		Headroom:  headroom,
		HangMax:   hangMax,
		Recovery:  recoveryPerSample,
		Attack:    attackPerSample,
		Threshold: headroom,
	}
}

// Apply runs one sample through the AGC: if the amplitude times the
// current Gain exceeds Threshold, gain is cut immediately to
// Threshold/amplitude (attack) and the hang timer is restarted;
// otherwise, while hanging, the gain is held; once the hang expires,
// gain is multiplied by Recovery each sample (capped at 1e6). Returns
// the gain to apply to this sample.
func (a *AgcState) Apply(amplitude float32) float32 {
	out := amplitude * a.Gain
	switch {
	case out > a.Threshold:
		// Immediate gain reduction proportional to the overshoot,
		// matching am.c's clamp against the target headroom.
		a.Gain *= a.Threshold / out
		a.Hang = a.HangMax
	case a.Hang > 0:
		a.Hang--
	default:
		a.Gain *= a.Recovery
		if a.Gain > 1e6 {
			a.Gain = 1e6
		}
	}
	if a.Gain <= 0 {
		a.Gain = minGain
	}
	return a.Gain
}

const minGain = 1e-9
