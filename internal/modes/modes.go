// Package modes parses the mode-table configuration file: a plain
// text list of named channel presets (demodulator, passband edges,
// frequency shift, option flags). Grounded on modes.c's readmodes.
package modes

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/msgpo/ka9q-radio/internal/demod"
)

// Option flags parsed from a mode table entry's trailing keywords,
// matching modes.c's CONJ/FLAT/CAL/COHERENT/SQUARE bit flags.
type Option int

const (
	OptionConj Option = 1 << iota
	OptionFlat
	OptionCal
	OptionCoherent
	OptionSquare
)

// Entry is one parsed line of the mode table: a name, a demodulator
// kind, the low/high passband edges in Hz, a frequency shift in Hz,
// and any option flags.
type Entry struct {
	Name    string
	Kind    demod.Kind
	Low     float64
	High    float64
	Shift   float64
	Options Option
}

// kindByPrefix mirrors modes.c's Demodtab[] name-prefix matching: a
// mode table's demodulator column is matched against these names by
// prefix, longest name first, case-insensitively.
var kindByPrefix = []struct {
	prefix string
	kind   demod.Kind
}{
	{"coherent", demod.KindCoherentAM},
	{"cam", demod.KindCoherentAM},
	{"bpsk", demod.KindBPSK},
	{"linear", demod.KindLinear},
	{"usb", demod.KindSSB},
	{"lsb", demod.KindSSB},
	{"am", demod.KindAM},
	{"fm", demod.KindFM},
}

// optionByKeyword mirrors modes.c's option-keyword table.
var optionByKeyword = map[string]Option{
	"conj":     OptionConj,
	"flat":     OptionFlat,
	"cal":      OptionCal | OptionCoherent,
	"square":   OptionSquare | OptionCoherent,
	"coherent": OptionCoherent,
}

// Parse reads a mode table from r. Blank lines and lines beginning
// with '#', '*', or '/' are comments, matching modes.c's readmodes.
// Each remaining line is whitespace-separated: name, demodulator,
// low, high, shift, and zero or more option keywords.
func Parse(r io.Reader) ([]Entry, error) {
	var entries []Entry
	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		switch line[0] {
		case '#', '*', '/':
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 5 {
			return nil, fmt.Errorf("modes: line %d: expected at least 5 fields, got %d", lineNo, len(fields))
		}

		kind, err := lookupKind(fields[1])
		if err != nil {
			return nil, fmt.Errorf("modes: line %d: %w", lineNo, err)
		}
		low, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, fmt.Errorf("modes: line %d: bad low edge %q: %w", lineNo, fields[2], err)
		}
		high, err := strconv.ParseFloat(fields[3], 64)
		if err != nil {
			return nil, fmt.Errorf("modes: line %d: bad high edge %q: %w", lineNo, fields[3], err)
		}
		shift, err := strconv.ParseFloat(fields[4], 64)
		if err != nil {
			return nil, fmt.Errorf("modes: line %d: bad shift %q: %w", lineNo, fields[4], err)
		}

		var opts Option
		for _, kw := range fields[5:] {
			flag, ok := optionByKeyword[strings.ToLower(kw)]
			if !ok {
				return nil, fmt.Errorf("modes: line %d: unknown option %q", lineNo, kw)
			}
			opts |= flag
		}

		entries = append(entries, Entry{
			Name:    fields[0],
			Kind:    kind,
			Low:     low,
			High:    high,
			Shift:   shift,
			Options: opts,
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("modes: scan: %w", err)
	}
	return entries, nil
}

// lookupKind matches name against kindByPrefix by longest-prefix,
// case-insensitive match, mirroring modes.c's strncasecmp-based
// Demodtab lookup.
func lookupKind(name string) (demod.Kind, error) {
	lower := strings.ToLower(name)
	bestLen := -1
	var best demod.Kind
	found := false
	for _, cand := range kindByPrefix {
		if strings.HasPrefix(lower, cand.prefix) && len(cand.prefix) > bestLen {
			bestLen = len(cand.prefix)
			best = cand.kind
			found = true
		}
	}
	if !found {
		return 0, fmt.Errorf("unknown demodulator %q", name)
	}
	return best, nil
}
