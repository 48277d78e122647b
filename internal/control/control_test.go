package control

import (
	"testing"

	"github.com/msgpo/ka9q-radio/internal/demod"
)

func TestNewPlaneStartsAtGenerationZero(t *testing.T) {
	p := NewPlane(Snapshot{Kind: demod.KindFM, Low: -5000, High: 5000})
	if p.Current().Generation != 0 {
		t.Fatalf("expected generation 0, got %d", p.Current().Generation)
	}
}

func TestApplyIncrementsGeneration(t *testing.T) {
	p := NewPlane(Snapshot{Kind: demod.KindFM, Low: -5000, High: 5000})
	if err := p.Apply(Command{SetShift: true, Shift: 1000}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	snap := p.Current()
	if snap.Generation != 1 {
		t.Fatalf("expected generation 1, got %d", snap.Generation)
	}
	if snap.Shift != 1000 {
		t.Fatalf("expected shift 1000, got %v", snap.Shift)
	}
	if snap.Kind != demod.KindFM {
		t.Fatal("expected unset fields to carry over from the previous snapshot")
	}
}

func TestApplyRejectsInvalidPassband(t *testing.T) {
	p := NewPlane(Snapshot{Kind: demod.KindFM, Low: -5000, High: 5000})
	err := p.Apply(Command{SetLow: true, Low: 6000})
	if err == nil {
		t.Fatal("expected an error for low edge above high edge")
	}
	if p.Current().Generation != 0 {
		t.Fatal("expected rejected command to leave the snapshot unchanged")
	}
}

type sliceSource struct {
	cmds []Command
	i    int
}

func (s *sliceSource) NextCommand() (Command, bool) {
	if s.i >= len(s.cmds) {
		return Command{}, false
	}
	c := s.cmds[s.i]
	s.i++
	return c, true
}

func TestDrainAppliesAllCommandsInOrder(t *testing.T) {
	p := NewPlane(Snapshot{Kind: demod.KindFM, Low: -5000, High: 5000})
	src := &sliceSource{cmds: []Command{
		{SetShift: true, Shift: 100},
		{SetShift: true, Shift: 200},
		{SetKind: true, Kind: demod.KindAM},
	}}
	if err := p.Drain(src); err != nil {
		t.Fatalf("Drain: %v", err)
	}
	snap := p.Current()
	if snap.Generation != 3 || snap.Shift != 200 || snap.Kind != demod.KindAM {
		t.Fatalf("unexpected final snapshot: %+v", snap)
	}
}

func TestDrainStopsAtFirstError(t *testing.T) {
	p := NewPlane(Snapshot{Kind: demod.KindFM, Low: -5000, High: 5000})
	src := &sliceSource{cmds: []Command{
		{SetShift: true, Shift: 100},
		{SetLow: true, Low: 9999}, // invalid: above High
		{SetShift: true, Shift: 300},
	}}
	if err := p.Drain(src); err == nil {
		t.Fatal("expected Drain to surface the invalid command's error")
	}
	snap := p.Current()
	if snap.Generation != 1 || snap.Shift != 100 {
		t.Fatalf("expected Drain to stop after the first successful apply, got %+v", snap)
	}
}
