package demod

import "testing"

func TestNewDemodDispatchesKind(t *testing.T) {
	cases := []Kind{KindAM, KindFM, KindLinear, KindSSB, KindCoherentAM, KindBPSK}
	for _, k := range cases {
		d, err := NewDemod(k, 48000, 3000, 1.0)
		if err != nil {
			t.Fatalf("NewDemod(%v): %v", k, err)
		}
		if d.Kind != k {
			t.Fatalf("expected Kind %v, got %v", k, d.Kind)
		}
	}
}

func TestDemodProcessDispatchesToConcreteType(t *testing.T) {
	d, err := NewDemod(KindAM, 48000, 3000, 1.0)
	if err != nil {
		t.Fatalf("NewDemod: %v", err)
	}
	iq := make([]complex64, 32)
	for i := range iq {
		iq[i] = complex(1, 0)
	}
	out := make([]float32, len(iq))
	if err := d.Process(iq, out); err != nil {
		t.Fatalf("Process: %v", err)
	}
	if d.AM.dcLevel == 0 {
		t.Fatal("expected AM demodulator to have processed samples")
	}
}

func TestDemodResetDispatchesToConcreteType(t *testing.T) {
	d, err := NewDemod(KindFM, 48000, 3000, 1.0)
	if err != nil {
		t.Fatalf("NewDemod: %v", err)
	}
	d.FM.squelchOpen = true
	d.Reset()
	if d.FM.squelchOpen {
		t.Fatal("expected Reset to clear FM squelch state")
	}
}

func TestKindStringNames(t *testing.T) {
	if KindAM.String() != "am" || KindFM.String() != "fm" {
		t.Fatal("unexpected Kind.String() output")
	}
}
