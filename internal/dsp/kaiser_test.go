package dsp

import "testing"

func TestKaiserWindowSymmetry(t *testing.T) {
	w := KaiserWindow(65, 3.0)
	for i := range w {
		j := len(w) - 1 - i
		if diff := w[i] - w[j]; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("window[%d]=%v window[%d]=%v not symmetric", i, w[i], j, w[j])
		}
	}
	if w[32] < 0.999 {
		t.Fatalf("expected midpoint near 1, got %v", w[32])
	}
}

func TestKaiserWindowEvenLength(t *testing.T) {
	w := KaiserWindow(64, 3.0)
	if len(w) != 64 {
		t.Fatalf("expected length 64, got %d", len(w))
	}
	for i := range w {
		j := len(w) - 1 - i
		if diff := w[i] - w[j]; diff > 1e-6 || diff < -1e-6 {
			t.Fatalf("window[%d]=%v window[%d]=%v not symmetric", i, w[i], j, w[j])
		}
	}
}

func TestBesselI0AtZero(t *testing.T) {
	if v := besselI0(0); v < 0.999999 || v > 1.000001 {
		t.Fatalf("I0(0) should be 1, got %v", v)
	}
}

func TestKaiserWindowEndpoints(t *testing.T) {
	w := KaiserWindow(33, 3.0)
	if w[0] <= 0 || w[0] >= 1 {
		t.Fatalf("expected endpoint strictly between 0 and 1, got %v", w[0])
	}
}
