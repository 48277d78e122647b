package modes

import (
	"strings"
	"testing"

	"github.com/msgpo/ka9q-radio/internal/demod"
)

const sampleTable = `
# comment line
* also a comment
/ slash comments too

wwv     am      -5000  5000    0
nbfm    fm      -8000  8000    0
hfdl    bpsk    -2000  2000    1500  square
beacon  cam     -100   100     0     coherent cal
`

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
}

func TestParseFieldValues(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	wwv := entries[0]
	if wwv.Name != "wwv" || wwv.Kind != demod.KindAM || wwv.Low != -5000 || wwv.High != 5000 {
		t.Fatalf("unexpected wwv entry: %+v", wwv)
	}
}

func TestParseOptionKeywords(t *testing.T) {
	entries, err := Parse(strings.NewReader(sampleTable))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	hfdl := entries[2]
	if hfdl.Options&OptionSquare == 0 || hfdl.Options&OptionCoherent == 0 {
		t.Fatalf("expected square+coherent flags on hfdl entry, got %v", hfdl.Options)
	}

	beacon := entries[3]
	if beacon.Options&OptionCal == 0 || beacon.Options&OptionCoherent == 0 {
		t.Fatalf("expected cal+coherent flags on beacon entry, got %v", beacon.Options)
	}
}

func TestParseRejectsUnknownDemodulator(t *testing.T) {
	_, err := Parse(strings.NewReader("x unknownmode 0 0 0\n"))
	if err == nil {
		t.Fatal("expected an error for an unknown demodulator name")
	}
}

func TestParseRejectsTooFewFields(t *testing.T) {
	_, err := Parse(strings.NewReader("x am 0 0\n"))
	if err == nil {
		t.Fatal("expected an error for too few fields")
	}
}

func TestLookupKindPrefersLongestPrefix(t *testing.T) {
	k, err := lookupKind("coherentam")
	if err != nil {
		t.Fatalf("lookupKind: %v", err)
	}
	if k != demod.KindCoherentAM {
		t.Fatalf("expected KindCoherentAM, got %v", k)
	}
}
