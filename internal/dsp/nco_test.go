package dsp

import "testing"

func TestNcoUnitMagnitude(t *testing.T) {
	n := NewNco(0.01)
	for i := 0; i < 1000; i++ {
		p := n.Step()
		mag := sqrt32(real(p)*real(p) + imag(p)*imag(p))
		if mag < 0.999 || mag > 1.001 {
			t.Fatalf("step %d: phasor magnitude drifted to %v", i, mag)
		}
	}
}

func TestNcoZeroFrequencyHoldsPhase(t *testing.T) {
	n := NewNco(0)
	start := n.Phase()
	for i := 0; i < 10; i++ {
		n.Step()
	}
	end := n.Phase()
	if start != end {
		t.Fatalf("zero-frequency oscillator drifted: %v -> %v", start, end)
	}
}

func TestNcoSetFrequencyPreservesPhase(t *testing.T) {
	n := NewNco(0.1)
	n.Step()
	n.Step()
	phaseBefore := n.Phase()
	n.SetFrequency(0.2)
	if n.Phase() != phaseBefore {
		t.Fatal("SetFrequency should not alter the accumulated phase")
	}
}

func TestNcoSetPhase(t *testing.T) {
	n := NewNco(0.05)
	n.SetPhase(1)
	if n.Phase() != 1 {
		t.Fatalf("expected phase reset to 1, got %v", n.Phase())
	}
}
