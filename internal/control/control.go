// Package control implements the lock-free control plane: incoming
// commands stage a new configuration snapshot, which is published to
// reader goroutines via an atomic pointer swap plus a monotonically
// increasing generation counter. Grounded on main.c's process_command
// and spec.md §9's staging-record design note.
package control

import (
	"sync/atomic"

	"github.com/msgpo/ka9q-radio/internal/demod"
)

// Snapshot is one published configuration state for a channel: the
// demodulator kind, passband edges, frequency shift, and a generation
// number that increases on every publish so readers can detect
// whether they are still looking at a stale snapshot.
type Snapshot struct {
	Generation uint64
	Kind       demod.Kind
	Low        float64
	High       float64
	Shift      float64
	Frequency  float64
}

// Command is one field-update request from the control source (a
// CLI, a network control channel, or the mode table). Only fields
// with Set* true are applied; everything else is left as-is,
// matching main.c's process_command per-field range-checked updates.
type Command struct {
	SetKind  bool
	Kind     demod.Kind
	SetLow   bool
	Low      float64
	SetHigh  bool
	High     float64
	SetShift bool
	Shift    float64
	SetFreq  bool
	Freq     float64
}

// CommandSource is the external collaborator a Plane reads commands
// from — a parsed control socket in production, a channel or slice in
// tests.
type CommandSource interface {
	NextCommand() (Command, bool)
}

// Plane holds one channel's live configuration behind an atomic
// pointer: readers call Current to get a consistent snapshot without
// blocking a writer, and Apply stages a new snapshot and publishes it
// atomically. Grounded on spec.md §9's generation-counter/atomic-
// pointer publish pattern.
type Plane struct {
	current atomic.Pointer[Snapshot]
}

// NewPlane builds a Plane with its initial snapshot at generation 0.
func NewPlane(initial Snapshot) *Plane {
	p := &Plane{}
	initial.Generation = 0
	p.current.Store(&initial)
	return p
}

// Current returns the most recently published snapshot. Safe to call
// concurrently with Apply from any number of goroutines.
func (p *Plane) Current() Snapshot {
	return *p.current.Load()
}

// Apply stages cmd on top of the current snapshot's field values,
// validates the result, and publishes it with an incremented
// generation number. Out-of-range values are rejected and the
// previous snapshot is left untouched, matching main.c's silently-
// ignore-out-of-range-fields behavior — except Apply reports the
// rejection via its error return rather than dropping it silently.
func (p *Plane) Apply(cmd Command) error {
	prev := p.Current()
	next := prev
	next.Generation = prev.Generation + 1

	if cmd.SetKind {
		next.Kind = cmd.Kind
	}
	if cmd.SetLow {
		next.Low = cmd.Low
	}
	if cmd.SetHigh {
		next.High = cmd.High
	}
	if cmd.SetShift {
		next.Shift = cmd.Shift
	}
	if cmd.SetFreq {
		next.Frequency = cmd.Freq
	}

	if err := validate(next); err != nil {
		return err
	}

	p.current.Store(&next)
	return nil
}

// validate rejects a snapshot whose passband edges are inverted,
// mirroring main.c's range checks on each updated field.
func validate(s Snapshot) error {
	if s.Low >= s.High {
		return errInvalidPassband
	}
	return nil
}

var errInvalidPassband = snapshotError("control: low edge must be below high edge")

type snapshotError string

func (e snapshotError) Error() string { return string(e) }

// Drain reads every pending command from src and applies each in
// order, stopping at the first error (leaving the Plane at the last
// successfully applied snapshot) or when src is exhausted.
func (p *Plane) Drain(src CommandSource) error {
	for {
		cmd, ok := src.NextCommand()
		if !ok {
			return nil
		}
		if err := p.Apply(cmd); err != nil {
			return err
		}
	}
}
