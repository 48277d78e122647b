package dsp

import "testing"

func realRealSpec() FilterSpec {
	return FilterSpec{
		InDomain:  DomainReal,
		OutDomain: DomainReal,
		L:         256,
		M:         257, // N = 512, a power of two
		D:         1,
		Low:       0,
		High:      0.25,
		Beta:      3.0,
	}
}

func TestFilterSpecN(t *testing.T) {
	s := realRealSpec()
	if s.N() != 512 {
		t.Fatalf("expected N=512, got %d", s.N())
	}
	if s.Ld() != 256 {
		t.Fatalf("expected Ld=256, got %d", s.Ld())
	}
}

func TestFilterSpecRejectsNonPowerOfTwo(t *testing.T) {
	s := realRealSpec()
	s.M = 200 // N = 455, not a power of two
	_, err := s.validate()
	if err != ErrFFTSizeNotPowerOfTwo {
		t.Fatalf("expected ErrFFTSizeNotPowerOfTwo, got %v", err)
	}
}

func TestFilterSpecRejectsSmallM(t *testing.T) {
	s := realRealSpec()
	s.M = 1
	if _, err := s.validate(); err == nil {
		t.Fatal("expected error for M < 2")
	}
}

func TestNewFilterRealRealBlockSizes(t *testing.T) {
	f, err := NewFilter(realRealSpec())
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}

	fresh := f.FreshRealBlock()
	if len(fresh) != f.spec.L {
		t.Fatalf("expected fresh block length %d, got %d", f.spec.L, len(fresh))
	}
	for i := range fresh {
		fresh[i] = 0
	}

	out := make([]float32, f.spec.Ld())
	if err := f.Execute(nil, out); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence through a zero block, got out[%d]=%v", i, v)
		}
	}

	_, realTail := f.InputTail()
	if len(realTail) != f.spec.M-1 {
		t.Fatalf("expected tail length %d, got %d", f.spec.M-1, len(realTail))
	}
}

func TestNewFilterComplexComplex(t *testing.T) {
	spec := FilterSpec{
		InDomain:  DomainComplex,
		OutDomain: DomainComplex,
		L:         256,
		M:         257,
		D:         1,
		Low:       -0.25,
		High:      0.25,
		Beta:      3.0,
	}
	f, err := NewFilter(spec)
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	fresh := f.FreshComplexBlock()
	for i := range fresh {
		fresh[i] = 0
	}
	out := make([]complex64, f.spec.Ld())
	if err := f.Execute(out, nil); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	for i, v := range out {
		if v != 0 {
			t.Fatalf("expected silence, got out[%d]=%v", i, v)
		}
	}
}

func TestSetFilterRebuildsResponse(t *testing.T) {
	f, err := NewFilter(realRealSpec())
	if err != nil {
		t.Fatalf("NewFilter: %v", err)
	}
	before := append([]complex64(nil), f.response...)
	if err := f.SetFilter(0.1, 0.4, 4.0); err != nil {
		t.Fatalf("SetFilter: %v", err)
	}
	if len(f.response) != len(before) {
		t.Fatalf("response length changed: %d vs %d", len(f.response), len(before))
	}
	same := true
	for i := range before {
		if f.response[i] != before[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("expected response to change after SetFilter with different band")
	}
}
