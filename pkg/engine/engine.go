// Package engine implements the core dataflow runtime:
// the reconfigurator that migrates a running app graph between
// configurations, the breath scheduler that drives pull/push over the
// graph, the pacer, the fault shield, and the main loop that ties them
// together.
package engine

import (
	"time"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/config"
	"github.com/newtron-network/breathe/pkg/counters"
	"github.com/newtron-network/breathe/pkg/link"
	"github.com/newtron-network/breathe/pkg/packet"
	"github.com/newtron-network/breathe/pkg/timeline"
)

// Default tuning values.
const (
	DefaultLinkCapacity = link.DefaultCapacity
	DefaultRestartDelay = 2 * time.Second
	DefaultMaxSleep     = 100 * time.Microsecond
)

// Options configures an Engine's tuning knobs and collaborators. Counter
// export and timeline tracing are both kept out of the core itself and
// consumed here only as interfaces.
type Options struct {
	// LinkCapacity is the default ring size for newly created links.
	LinkCapacity int

	// RestartDelay is how long an app stays dead before the fault
	// shield's restart sweep rebuilds it.
	RestartDelay time.Duration

	// MaxSleep caps the adaptive pacer's backoff.
	MaxSleep time.Duration

	// Hz selects fixed-frequency pacing when > 0; 0 selects adaptive
	// pacing.
	Hz int

	// Busywait skips pacing entirely, overriding Hz.
	Busywait bool

	// Tolerant enables fault containment: a panicking pull/push/report
	// hook marks its app dead instead of aborting the process. Strict
	// (the default, Tolerant=false) lets any app panic abort the
	// process.
	Tolerant bool

	// CounterSink receives committed counters every 100 breaths.
	// Defaults to counters.NopSink{}.
	CounterSink counters.Sink

	// Timeline receives severity-gated lifecycle events. Nil disables event emission.
	Timeline *timeline.Timeline
}

// DefaultOptions returns an Options populated with the documented default
// tuning values and a NopSink counter mirror.
func DefaultOptions() Options {
	return Options{
		LinkCapacity: DefaultLinkCapacity,
		RestartDelay: DefaultRestartDelay,
		MaxSleep:     DefaultMaxSleep,
		CounterSink:  counters.NopSink{},
	}
}

func (o *Options) setDefaults() {
	if o.LinkCapacity <= 0 {
		o.LinkCapacity = DefaultLinkCapacity
	}
	if o.RestartDelay <= 0 {
		o.RestartDelay = DefaultRestartDelay
	}
	if o.MaxSleep <= 0 {
		o.MaxSleep = DefaultMaxSleep
	}
	if o.CounterSink == nil {
		o.CounterSink = counters.NopSink{}
	}
}

// pacerState is the pacer's carried-forward bookkeeping between breaths.
type pacerState struct {
	sleep      time.Duration
	nextBreath time.Time
	lastFrees  uint64
}

// Engine is the runtime: the current configuration, the active app/link
// graph, process-wide counters, and pacer state. Exactly one goroutine
// may call into an Engine's methods.
type Engine struct {
	opts Options

	config    *config.Configuration
	appTable  map[string]*app.Instance
	appArray  []*app.Instance
	linkTable map[string]*link.Link // keyed by config.LinkSpec.String()
	linkArray []*link.Link

	packetCounters packet.Counters

	breaths uint64
	configs uint64

	now time.Time

	pacer     pacerState
	histogram histogram
}

// New returns an Engine with an empty active graph, ready for Configure.
func New(opts Options) *Engine {
	opts.setDefaults()
	return &Engine{
		opts:      opts,
		config:    config.New(),
		appTable:  make(map[string]*app.Instance),
		linkTable: make(map[string]*link.Link),
		now:       time.Now(),
	}
}

// Now returns the engine's cached monotonic timestamp, refreshed once at
// the start of each breath and never advancing within one.
func (e *Engine) Now() time.Time { return e.now }

// Breaths returns the number of breaths run so far.
func (e *Engine) Breaths() uint64 { return e.breaths }

// Configs returns the number of successful Configure calls so far.
func (e *Engine) Configs() uint64 { return e.configs }

// App returns the active instance named name, if any.
func (e *Engine) App(name string) (*app.Instance, bool) {
	in, ok := e.appTable[name]
	return in, ok
}

func (e *Engine) emit(sev timeline.Severity, event string, fields map[string]interface{}) {
	if e.opts.Timeline != nil {
		e.opts.Timeline.Emit(sev, event, fields)
	}
}
