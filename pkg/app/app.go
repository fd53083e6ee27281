// Package app defines the capability-interface contract apps satisfy to
// participate in the dataflow graph, and the engine-side bookkeeping
// (Instance) that wraps each running app value.
//
// Each optional hook (Pull, Push, Link, Reconfig, Stop, Report, ...) is
// its own interface, probed on the constructed instance with a type
// assertion, so dispatch is static per app type rather than routed
// through a duck-typed method table.
package app

import (
	"time"

	"github.com/newtron-network/breathe/pkg/link"
	"github.com/newtron-network/breathe/pkg/packet"
)

// Class constructs app instances from a configuration argument. It is the
// only capability every app must provide.
type Class interface {
	New(arg interface{}) (interface{}, error)
}

// SchemaField describes one permitted configuration key.
type SchemaField struct {
	Required bool
	Default  interface{}
}

// Schema is a class's static set of permitted configuration keys,
// consulted by package config when validating an arg at configuration
// construction time.
type Schema map[string]SchemaField

// SchemaProvider is an optional Class capability exposing a config schema.
// A class with no schema permits any arg and validates nothing.
type SchemaProvider interface {
	ConfigSchema() Schema
}

// ZoneProvider is an optional Class capability exposing a diagnostic zone
// label used for profiling/tracing grouping.
type ZoneProvider interface {
	Zone() string
}

// CounterFrameProvider is an optional instance capability declaring the
// named per-app counters the engine should allocate and mirror externally
// under apps/<name>/.
type CounterFrameProvider interface {
	CounterFrameFields() []string
}

// Ports is the view of an instance's attached input/output links passed to
// lifecycle hooks, standing in for the source's direct self.input/self.output
// table mutation.
type Ports interface {
	Input(name string) (*link.Link, bool)
	Output(name string) (*link.Link, bool)
	InputAt(i int) (*link.Link, bool)
	OutputAt(i int) (*link.Link, bool)

	// Free releases a packet handle back to the arena, crediting the
	// engine's process-wide frees/freebytes/freebits counters.
	Free(p *packet.Packet)

	// CounterValues returns the instance's per-app external counter
	// frame, or nil if it declared none via CounterFrameProvider. Hooks
	// mutate it directly to keep the externally mirrored frame current.
	CounterValues() map[string]uint64
}

// Puller is the producer-phase hook: brings new packets into the graph.
type Puller interface {
	Pull(ports Ports)
}

// Pusher is the consumer-phase hook: advances packets one step.
type Pusher interface {
	Push(ports Ports)
}

// Linker runs after every reconfigure so an app can finalize port-dependent
// state such as cached port lookups.
type Linker interface {
	Link(ports Ports)
}

// Reconfigurer enables in-place reconfiguration instead of a restart when
// only the arg changes.
type Reconfigurer interface {
	Reconfig(arg interface{}) error
}

// Stopper runs before instance destruction.
type Stopper interface {
	Stop()
}

// Reporter is invoked at report emission to contribute custom text
//.
type Reporter interface {
	Report() string
}

// DeadMarker records that an app hook raised; the app is skipped until the
// restart sweep rebuilds it.
type DeadMarker struct {
	Err  error
	Time time.Time
}

// CounterFrame is the per-app external counter mirror, lifecycle tied to
// the app instance.
type CounterFrame struct {
	Name    string
	Created time.Time
	Values  map[string]uint64
}

// Instance is the engine's bookkeeping record for one running app: its
// identity, attached ports, and lifecycle state. It implements Ports so
// hooks can be called as Pull(instance), Push(instance), etc.
type Instance struct {
	Name  string
	Zone  string
	Class Class
	Arg   interface{}
	Impl  interface{} // value returned by Class.New, probed for hook interfaces

	Dead         *DeadMarker
	CounterFrame *CounterFrame

	counters *packet.Counters

	inputNames  []string
	inputs      map[string]*link.Link
	outputNames []string
	outputs     map[string]*link.Link
}

// NewInstance wraps a constructed app value under the given name/zone/class/arg.
func NewInstance(name, zone string, class Class, arg interface{}, impl interface{}) *Instance {
	return &Instance{
		Name:    name,
		Zone:    zone,
		Class:   class,
		Arg:     arg,
		Impl:    impl,
		inputs:  make(map[string]*link.Link),
		outputs: make(map[string]*link.Link),
	}
}

// AttachInput wires an input port to l, recording insertion order for
// index-based lookup.
func (in *Instance) AttachInput(name string, l *link.Link) {
	if _, exists := in.inputs[name]; !exists {
		in.inputNames = append(in.inputNames, name)
	}
	in.inputs[name] = l
}

// AttachOutput wires an output port to l.
func (in *Instance) AttachOutput(name string, l *link.Link) {
	if _, exists := in.outputs[name]; !exists {
		in.outputNames = append(in.outputNames, name)
	}
	in.outputs[name] = l
}

func (in *Instance) Input(name string) (*link.Link, bool) {
	l, ok := in.inputs[name]
	return l, ok
}

func (in *Instance) Output(name string) (*link.Link, bool) {
	l, ok := in.outputs[name]
	return l, ok
}

func (in *Instance) InputAt(i int) (*link.Link, bool) {
	if i < 0 || i >= len(in.inputNames) {
		return nil, false
	}
	return in.inputs[in.inputNames[i]], true
}

func (in *Instance) OutputAt(i int) (*link.Link, bool) {
	if i < 0 || i >= len(in.outputNames) {
		return nil, false
	}
	return in.outputs[in.outputNames[i]], true
}

// SetCounters binds the process-wide packet counters Free should credit.
// Called once by the engine when an instance is started.
func (in *Instance) SetCounters(c *packet.Counters) { in.counters = c }

// Free releases p back to the arena via the bound process-wide counters.
func (in *Instance) Free(p *packet.Packet) { packet.Free(in.counters, p) }

// CounterValues returns the instance's external counter frame values, or
// nil if it declared no CounterFrameProvider fields. The returned map is
// shared with the engine's counter sink, so writes to it are visible
// externally without a separate publish step.
func (in *Instance) CounterValues() map[string]uint64 {
	if in.CounterFrame == nil {
		return nil
	}
	return in.CounterFrame.Values
}

// IsDead reports whether the app is currently flagged dead.
func (in *Instance) IsDead() bool { return in.Dead != nil }

// AsPuller probes the instance's capability to pull.
func (in *Instance) AsPuller() (Puller, bool) { p, ok := in.Impl.(Puller); return p, ok }

// AsPusher probes the instance's capability to push.
func (in *Instance) AsPusher() (Pusher, bool) { p, ok := in.Impl.(Pusher); return p, ok }

// AsLinker probes the instance's capability to finalize links.
func (in *Instance) AsLinker() (Linker, bool) { l, ok := in.Impl.(Linker); return l, ok }

// AsReconfigurer probes the instance's capability to reconfigure in place.
func (in *Instance) AsReconfigurer() (Reconfigurer, bool) {
	r, ok := in.Impl.(Reconfigurer)
	return r, ok
}

// AsStopper probes the instance's capability to run a stop hook.
func (in *Instance) AsStopper() (Stopper, bool) { s, ok := in.Impl.(Stopper); return s, ok }

// AsReporter probes the instance's capability to contribute a report.
func (in *Instance) AsReporter() (Reporter, bool) { r, ok := in.Impl.(Reporter); return r, ok }
