package engine

import (
	"testing"
	"time"

	"github.com/newtron-network/breathe/pkg/timeline"
)

func TestAdaptivePacerBacksOffOnIdle(t *testing.T) {
	e := New(DefaultOptions())
	e.opts.MaxSleep = 5 * time.Microsecond

	for i := 0; i < 10; i++ {
		e.paceAdaptive(0)
	}
	if e.pacer.sleep != e.opts.MaxSleep {
		t.Errorf("sleep = %v, want saturated at %v", e.pacer.sleep, e.opts.MaxSleep)
	}
}

func TestAdaptivePacerHalvesOnTraffic(t *testing.T) {
	e := New(DefaultOptions())
	e.pacer.sleep = 8 * time.Microsecond

	e.paceAdaptive(1)
	if e.pacer.sleep != 4*time.Microsecond {
		t.Errorf("sleep = %v, want 4µs", e.pacer.sleep)
	}
}

// TestAdaptivePacerEmitsSleepAndWakeup drives real Breath+pace cycles
// (so the Timeline resamples each breath, as in production) and checks
// that paceAdaptive's sleep eventually surfaces sleep/wakeup events.
func TestAdaptivePacerEmitsSleepAndWakeup(t *testing.T) {
	sink := &recordTimelineSink{}
	opts := DefaultOptions()
	opts.Timeline = timeline.New(sink)
	e := New(opts)
	e.pacer.sleep = time.Microsecond // seed so paceAdaptive sleeps immediately

	for i := 0; i < 2000; i++ {
		frees := e.Breath()
		e.pace(frees)
	}

	var sawSleep, sawWakeup bool
	for _, entry := range sink.entries {
		switch entry.Event {
		case timeline.EventSleep:
			sawSleep = true
		case timeline.EventWakeup:
			sawWakeup = true
		}
	}
	if !sawSleep || !sawWakeup {
		t.Fatalf("expected sleep and wakeup events over 2000 breaths; sawSleep=%v sawWakeup=%v", sawSleep, sawWakeup)
	}
}

func TestFixedPacerComputesNextBreath(t *testing.T) {
	e := New(DefaultOptions())
	e.opts.Hz = 1000
	e.now = time.Now()

	e.paceFixed() // first call just seeds nextBreath
	if e.pacer.nextBreath.IsZero() {
		t.Fatal("expected nextBreath to be seeded")
	}
	first := e.pacer.nextBreath

	e.now = first
	e.paceFixed()
	if !e.pacer.nextBreath.After(first) {
		t.Error("expected nextBreath to advance")
	}
}
