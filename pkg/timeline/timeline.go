// Package timeline implements the engine's structured event stream:
// severity-leveled breath/pull/push/sleep/wakeup events, gated by a
// probabilistically resampled effective priority so that detailed
// traces are captured at negligible average cost.
//
// Grounded on pkg/audit's Logger interface + fluent Event builder
// (swappable backend behind a package-level facade), retargeted from
// audit events to engine timeline events.
package timeline

import (
	"math/rand"
	"time"
)

// Severity ranks event detail from least (Warning, always emitted) to
// most (Packet, emitted only on the rare breath sampled into it).
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityInfo
	SeverityTrace
	SeverityApp
	SeverityPacket
)

func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityInfo:
		return "info"
	case SeverityTrace:
		return "trace"
	case SeverityApp:
		return "app"
	case SeverityPacket:
		return "packet"
	default:
		return "unknown"
	}
}

// Event names the engine emits.
const (
	EventBreathStart = "breath-start"
	EventPull        = "pull"
	EventPush        = "push"
	EventBreathEnd   = "breath-end"
	EventSleep       = "sleep"
	EventWakeup      = "wakeup"
)

// Entry is one emitted timeline event.
type Entry struct {
	Time     time.Time
	Severity Severity
	Event    string
	Fields   map[string]interface{}
}

// Sink receives entries that survived severity gating.
type Sink interface {
	Write(e Entry)
}

// Timeline gates events by the breath's resampled effective priority and
// forwards survivors to a Sink.
type Timeline struct {
	sink    Sink
	current Severity
	rng     *rand.Rand
}

// New returns a Timeline writing to sink, starting at the least verbose
// priority (Warning).
func New(sink Sink) *Timeline {
	return &Timeline{
		sink:    sink,
		current: SeverityWarning,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Resample picks a new effective priority for the upcoming breath. Call
// once per breath, before emitting any of that breath's events.
func (t *Timeline) Resample() {
	u := t.rng.Float64()
	switch {
	case u < 1e-5:
		t.current = SeverityPacket
	case u < 1e-5+1e-4:
		t.current = SeverityApp
	case u < 1e-5+1e-4+1e-2:
		t.current = SeverityTrace
	case u < 1e-5+1e-4+1e-2+1e-1:
		t.current = SeverityInfo
	default:
		t.current = SeverityWarning
	}
}

// Emit writes an event if its severity is within this breath's effective
// priority (sev <= current); Warning is always within range.
func (t *Timeline) Emit(sev Severity, event string, fields map[string]interface{}) {
	if sev > t.current {
		return
	}
	if t.sink == nil {
		return
	}
	t.sink.Write(Entry{Time: time.Now(), Severity: sev, Event: event, Fields: fields})
}
