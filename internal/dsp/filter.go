package dsp

import (
	"errors"
	"fmt"
	"log/slog"
	"math/cmplx"

	algofft "github.com/MeKo-Christian/algo-fft"
)

// Domain names the sample kind a filter reads or writes.
type Domain int

const (
	// DomainReal carries one real sample per time step.
	DomainReal Domain = iota
	// DomainComplex carries one complex (I/Q) sample per time step.
	DomainComplex
	// DomainCrossConj is only valid as an output domain: negative
	// frequencies are folded into the imaginary channel and positive
	// frequencies into the real channel, separating the two sidebands
	// of a real input into independent complex components.
	DomainCrossConj
)

// Errors returned by filter construction and execution.
var (
	ErrFFTSizeNotPowerOfTwo = errors.New("dsp: filter fft size N=L+M-1 must be a power of two")
	ErrEmptyResponse        = errors.New("dsp: frequency response must not be empty")
	ErrBlockSizeMismatch    = errors.New("dsp: input block does not have L fresh samples")
)

// FilterSpec describes the geometry and domains of a fast-convolution
// filter: L input samples per block, an M-sample impulse response,
// integer decimation D, and the domains of its input and output.
type FilterSpec struct {
	InDomain  Domain
	OutDomain Domain
	L         int
	M         int
	D         int
	Low       float32 // normalized low cutoff, in [-0.5, 0.5]
	High      float32 // normalized high cutoff, in [-0.5, 0.5]
	Beta      float32 // Kaiser shape parameter
}

// N is the overlap-save FFT length L+M-1.
func (s FilterSpec) N() int { return s.L + s.M - 1 }

// Nd is the decimated FFT length N/D.
func (s FilterSpec) Nd() int { return s.N() / s.D }

// Ld is the number of output samples per block, L/D.
func (s FilterSpec) Ld() int { return s.L / s.D }

// validate checks the geometry invariants of spec.md §3 and §4.3,
// warning (via the returned bool) rather than failing when N or M-1
// are not evenly divisible by D, matching filter.c's fprintf warning
// rather than refusing to build.
func (s FilterSpec) validate() (warnDivisibility bool, err error) {
	if s.M < 2 {
		return false, fmt.Errorf("dsp: M must be >= 2, got %d", s.M)
	}
	if s.D <= 0 {
		return false, fmt.Errorf("dsp: D must be positive, got %d", s.D)
	}
	n := s.N()
	if n&(n-1) != 0 {
		return false, ErrFFTSizeNotPowerOfTwo
	}
	if n%s.D != 0 || (s.M-1)%s.D != 0 {
		warnDivisibility = true
	}
	return warnDivisibility, nil
}

// FilterState holds the pre-allocated buffers and live frequency
// response of a fast-convolution filter, grounded on filter.c's
// struct filter. Tails of length M-1 persist across blocks.
type FilterState struct {
	spec FilterSpec

	fwdPlanC *algofft.Plan[complex64]
	fwdPlanR *algofft.PlanRealT[float32, complex64]
	revPlanC *algofft.Plan[complex64]
	revPlanR *algofft.PlanRealT[float32, complex64]

	// response holds the live windowed frequency response. Its length
	// is N/2+1 for real-in/real-out, N otherwise.
	response []complex64

	// inputC/inputR is the input ring: the first M-1 samples are the
	// overlap-save history, the remaining L are the fresh block.
	inputC []complex64
	inputR []float32

	fdomainC []complex64 // forward transform of inputC/inputR, length N or N/2+1
	fmul     []complex64 // post-multiply spectrum, length Nd or Nd/2+1

	outputC []complex64 // inverse-transform scratch, length Nd
	outputR []float32   // inverse-transform scratch, length Nd (real-out)

	warned bool // true once the N%D / (M-1)%D divisibility warning has fired
}

// NewFilter allocates a FilterState for spec and builds its initial
// response from a brick-wall band between Low and High, windowed by a
// Kaiser window with shape Beta — the combined effect of filter.c's
// create_filter() followed by set_filter().
func NewFilter(spec FilterSpec) (*FilterState, error) {
	warn, err := spec.validate()
	if err != nil {
		return nil, err
	}

	if warn {
		slog.Warn("dsp: N or M-1 is not divisible by D", "N", spec.N(), "M", spec.M, "D", spec.D)
	}
	f := &FilterState{spec: spec, warned: warn}

	n := spec.N()
	nd := spec.Nd()

	switch spec.InDomain {
	case DomainComplex:
		plan, err := algofft.NewPlan32(n)
		if err != nil {
			return nil, fmt.Errorf("dsp: forward complex FFT plan: %w", err)
		}
		f.fwdPlanC = plan
		f.inputC = make([]complex64, n)
		f.fdomainC = make([]complex64, n)
	case DomainReal:
		plan, err := algofft.NewPlanReal32(n)
		if err != nil {
			return nil, fmt.Errorf("dsp: forward real FFT plan: %w", err)
		}
		f.fwdPlanR = plan
		f.inputR = make([]float32, n)
		f.fdomainC = make([]complex64, n/2+1)
	default:
		return nil, fmt.Errorf("dsp: invalid input domain %v", spec.InDomain)
	}

	switch spec.OutDomain {
	case DomainComplex, DomainCrossConj:
		plan, err := algofft.NewPlan32(nd)
		if err != nil {
			return nil, fmt.Errorf("dsp: inverse complex FFT plan: %w", err)
		}
		f.revPlanC = plan
		f.fmul = make([]complex64, nd)
		f.outputC = make([]complex64, nd)
	case DomainReal:
		plan, err := algofft.NewPlanReal32(nd)
		if err != nil {
			return nil, fmt.Errorf("dsp: inverse real FFT plan: %w", err)
		}
		f.revPlanR = plan
		f.fmul = make([]complex64, nd/2+1)
		f.outputR = make([]float32, nd)
	default:
		return nil, fmt.Errorf("dsp: invalid output domain %v", spec.OutDomain)
	}

	if err := f.SetFilter(spec.Low, spec.High, spec.Beta); err != nil {
		return nil, err
	}
	return f, nil
}

// Spec returns the geometry this filter was built with.
func (f *FilterState) Spec() FilterSpec { return f.spec }

// InputTail returns the M-1 most recent input samples, to be prepended
// before the next block's L fresh samples (overlap-save history).
// Exactly one of the two returned slices is non-nil, matching InDomain.
func (f *FilterState) InputTail() (complexTail []complex64, realTail []float32) {
	m1 := f.spec.M - 1
	if f.inputC != nil {
		return f.inputC[f.spec.L : f.spec.L+m1], nil
	}
	return nil, f.inputR[f.spec.L : f.spec.L+m1]
}

// SetFilter rebuilds the windowed frequency response for a brick-wall
// passband [low, high] (normalized, in [-0.5, 0.5]) with Kaiser shape
// beta. It is safe to call between blocks; it does not touch the
// overlap-save history. Grounded on filter.c's set_filter +
// window_filter/window_rfilter.
func (f *FilterState) SetFilter(low, high, beta float32) error {
	nd := f.spec.Nd()

	var desired []complex64
	if f.spec.InDomain == DomainReal && f.spec.OutDomain == DomainReal {
		desired = make([]complex64, nd/2+1)
		for bin := range desired {
			freq := float32(bin) / float32(nd)
			if freq >= low && freq <= high {
				desired[bin] = 1
			}
		}
	} else {
		desired = make([]complex64, nd)
		for bin := range desired {
			freq := float32(bin) / float32(nd)
			if freq > 0.5 {
				freq -= 1
			}
			if freq >= low && freq <= high {
				desired[bin] = 1
			}
		}
	}

	windowed, err := windowResponse(desired, f.spec.L, f.spec.M, beta, f.spec.InDomain == DomainReal && f.spec.OutDomain == DomainReal)
	if err != nil {
		return err
	}

	// Scale by 1/sqrt(2) when only one sideband contributes power,
	// matching filter.c's M_SQRT1_2 scaling for REAL/CROSS_CONJ output.
	if f.spec.OutDomain == DomainReal || f.spec.OutDomain == DomainCrossConj {
		for i := range windowed {
			windowed[i] *= complex64(complex(invSqrt2, 0))
		}
	}

	f.spec.Low, f.spec.High, f.spec.Beta = low, high, beta
	f.response = windowed
	return nil
}

const invSqrt2 = 0.7071067811865476

// windowResponse implements filter.c's window_filter / window_rfilter:
// inverse-FFT the desired response, circular-shift so the impulse
// response is centered at M/2, apply the Kaiser window and 1/N^2
// scale, zero-pad back out to N, then forward-FFT.
func windowResponse(desired []complex64, l, m int, beta float32, realReal bool) ([]complex64, error) {
	n := l + m - 1
	window := KaiserWindow(m, beta)
	scale := float32(1) / (float32(n) * float32(n))

	if realReal {
		plan, err := algofft.NewPlanReal32(n)
		if err != nil {
			return nil, fmt.Errorf("dsp: window response real FFT plan: %w", err)
		}
		timeBuf := make([]float32, n)
		if err := plan.Inverse(timeBuf, desired); err != nil {
			return nil, fmt.Errorf("dsp: window response inverse FFT: %w", err)
		}
		shifted := make([]float32, n)
		for i := 0; i < m; i++ {
			src := ((i - m/2) + n) % n
			shifted[i] = timeBuf[src] * window[i] * scale
		}
		out := make([]complex64, n/2+1)
		if err := plan.Forward(out, shifted); err != nil {
			return nil, fmt.Errorf("dsp: window response forward FFT: %w", err)
		}
		return out, nil
	}

	plan, err := algofft.NewPlan32(n)
	if err != nil {
		return nil, fmt.Errorf("dsp: window response complex FFT plan: %w", err)
	}
	timeBuf := make([]complex64, n)
	padded := make([]complex64, n)
	copy(padded, desired)
	if err := plan.Inverse(timeBuf, padded); err != nil {
		return nil, fmt.Errorf("dsp: window response inverse FFT: %w", err)
	}
	shifted := make([]complex64, n)
	for i := 0; i < m; i++ {
		src := ((i - m/2) + n) % n
		shifted[i] = timeBuf[src] * complex(window[i]*scale, 0)
	}
	out := make([]complex64, n)
	if err := plan.Forward(out, shifted); err != nil {
		return nil, fmt.Errorf("dsp: window response forward FFT: %w", err)
	}
	return out, nil
}

// Execute runs one block of overlap-save fast convolution. input must
// hold the filter's M-1-sample history followed by L fresh samples
// (exactly what InputTail copies forward); inputC or inputR (per
// InDomain) IS the filter's own input buffer, mutated in place by the
// caller before calling Execute. Output is written to out, which must
// have length Ld.
//
// Grounded on filter.c's execute_filter_nocopy: forward FFT, multiply
// by the live response, complete the spectrum per domain combination,
// inverse FFT, discard the (M-1)/D-sample convolution tail.
func (f *FilterState) Execute(out []complex64, outReal []float32) error {
	n := f.spec.N()
	nd := f.spec.Nd()
	m1 := f.spec.M - 1

	switch f.spec.InDomain {
	case DomainComplex:
		if err := f.fwdPlanC.Forward(f.fdomainC, f.inputC); err != nil {
			return fmt.Errorf("dsp: forward FFT: %w", err)
		}
	case DomainReal:
		if err := f.fwdPlanR.Forward(f.fdomainC, f.inputR); err != nil {
			return fmt.Errorf("dsp: forward FFT: %w", err)
		}
	}

	if err := f.completeSpectrum(n, nd); err != nil {
		return err
	}

	switch f.spec.OutDomain {
	case DomainComplex, DomainCrossConj:
		if err := f.revPlanC.Inverse(f.outputC, f.fmul); err != nil {
			return fmt.Errorf("dsp: inverse FFT: %w", err)
		}
		discard := m1 / f.spec.D
		if len(out) != f.spec.Ld() {
			return fmt.Errorf("%w: want %d got %d", ErrBlockSizeMismatch, f.spec.Ld(), len(out))
		}
		copy(out, f.outputC[discard:discard+f.spec.Ld()])
	case DomainReal:
		if err := f.revPlanR.Inverse(f.outputR, f.fmul); err != nil {
			return fmt.Errorf("dsp: inverse FFT: %w", err)
		}
		discard := m1 / f.spec.D
		if len(outReal) != f.spec.Ld() {
			return fmt.Errorf("%w: want %d got %d", ErrBlockSizeMismatch, f.spec.Ld(), len(outReal))
		}
		copy(outReal, f.outputR[discard:discard+f.spec.Ld()])
	}

	f.slideHistory()
	return nil
}

// completeSpectrum multiplies the DC/positive-frequency bins by the
// live response and then fills in the remaining Nd bins according to
// the four domain combinations of filter.c's execute_filter_nocopy.
func (f *FilterState) completeSpectrum(n, nd int) error {
	half := nd / 2
	for p := 0; p <= half; p++ {
		f.fmul[p] = f.response[p] * f.fdomainC[p]
	}

	switch {
	case f.spec.InDomain == DomainReal && f.spec.OutDomain != DomainReal:
		// F[-f] = conj(F[+f]) for a real input.
		for p, dn := 1, nd-1; dn > half; p, dn = p+1, dn-1 {
			f.fmul[dn] = f.response[dn] * complex64(cmplx.Conj(complex128(f.fdomainC[p])))
		}
	case f.spec.InDomain == DomainComplex && f.spec.OutDomain != DomainReal:
		for nn, dn := n-1, nd-1; dn > half; nn, dn = nn-1, dn-1 {
			f.fmul[dn] = f.response[dn] * f.fdomainC[nn]
		}
	case f.spec.InDomain == DomainComplex && f.spec.OutDomain == DomainReal:
		// Fold conjugates of negative frequencies into positive bins
		// to force a pure-real time-domain output.
		for nn, p, dn := n-1, 1, nd-1; p < half; nn, p, dn = nn-1, p+1, dn-1 {
			f.fmul[p] += complex64(cmplx.Conj(complex128(f.response[dn] * f.fdomainC[nn])))
		}
	}

	if f.spec.OutDomain == DomainCrossConj {
		for p, dn := 1, nd-1; p < half; p, dn = p+1, dn-1 {
			pos := f.fmul[p]
			neg := f.fmul[dn]
			f.fmul[p] = pos + complex64(cmplx.Conj(complex128(neg)))
			f.fmul[dn] = neg - complex64(cmplx.Conj(complex128(pos)))
		}
	}
	return nil
}

// slideHistory copies the trailing M-1 input samples to the front of
// the input buffer, the non-destructive overlap-save carry described
// in spec.md §3's invariants and filter.c's execute_filter.
func (f *FilterState) slideHistory() {
	m1 := f.spec.M - 1
	if f.inputC != nil {
		copy(f.inputC, f.inputC[f.spec.L:f.spec.L+m1])
	} else {
		copy(f.inputR, f.inputR[f.spec.L:f.spec.L+m1])
	}
}

// FreshComplexBlock returns the L-sample window of the complex input
// buffer the caller should fill with new samples before Execute.
func (f *FilterState) FreshComplexBlock() []complex64 {
	m1 := f.spec.M - 1
	return f.inputC[m1 : m1+f.spec.L]
}

// FreshRealBlock returns the L-sample window of the real input buffer
// the caller should fill with new samples before Execute.
func (f *FilterState) FreshRealBlock() []float32 {
	m1 := f.spec.M - 1
	return f.inputR[m1 : m1+f.spec.L]
}
