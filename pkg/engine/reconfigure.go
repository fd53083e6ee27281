package engine

import (
	"fmt"
	"sort"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/config"
	"github.com/newtron-network/breathe/pkg/link"
)

type actionKind int

const (
	actionStop actionKind = iota
	actionRestart
	actionKeep
	actionReconfig
	actionStart
)

// Configure diffs the active configuration against newConfig, classifies
// every app name into {start, keep, reconfig, restart, stop}, applies the
// plan in the fixed order stop -> restart -> keep -> reconfig -> start,
// reconciles links, and invokes every surviving app's Link hook.
//
// New app/link tables are built out-of-place and only swapped in once the
// whole plan has applied without error, so a failed Configure leaves the
// running graph unchanged except for any already-executed Stop and
// Reconfig side effects (including a reconfigured instance's Arg), which
// this function does not attempt to undo: atomicity here means only that
// no other goroutine observes a half-applied graph between breaths, not
// that a failed apply rolls back hook calls already made.
func (e *Engine) Configure(newConfig *config.Configuration) error {
	return e.applyConfigure(newConfig, nil)
}

// restartApps synthesizes a configuration-apply against the current
// configuration that forces exactly the named apps to restart, leaving
// every other app and every link whose other endpoint survives untouched
//.
func (e *Engine) restartApps(names []string) error {
	force := make(map[string]bool, len(names))
	for _, name := range names {
		force[name] = true
	}
	return e.applyConfigure(e.config, force)
}

func (e *Engine) applyConfigure(newConfig *config.Configuration, forceRestart map[string]bool) error {
	if newConfig == nil {
		newConfig = config.New()
	}

	// Validate link endpoints against the new app set before touching
	// any running state, so the common configuration-grammar errors
	// never cause partial side effects.
	for _, spec := range newConfig.Links {
		if _, ok := newConfig.Apps[spec.FromApp]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownApp, spec.FromApp)
		}
		if _, ok := newConfig.Apps[spec.ToApp]; !ok {
			return fmt.Errorf("%w: %q", ErrUnknownApp, spec.ToApp)
		}
	}

	actions := e.classify(newConfig, forceRestart)

	newAppTable := make(map[string]*app.Instance, len(newConfig.Apps))
	var newAppArray []*app.Instance

	// stop
	for _, name := range actions[actionStop] {
		if in, ok := e.appTable[name]; ok {
			e.stopApp(in)
		}
	}

	// restart (stop then start under the new spec)
	for _, name := range actions[actionRestart] {
		if in, ok := e.appTable[name]; ok {
			e.stopApp(in)
		}
		in, err := e.startApp(name, newConfig.Apps[name])
		if err != nil {
			return &ConfigureError{App: name, Op: "restart", Err: err}
		}
		newAppTable[name] = in
		newAppArray = append(newAppArray, in)
	}

	// keep
	for _, name := range actions[actionKeep] {
		in := e.appTable[name]
		newAppTable[name] = in
		newAppArray = append(newAppArray, in)
	}

	// reconfig
	for _, name := range actions[actionReconfig] {
		in := e.appTable[name]
		spec := newConfig.Apps[name]
		if r, ok := in.AsReconfigurer(); ok {
			if err := r.Reconfig(spec.Arg); err != nil {
				return &ConfigureError{App: name, Op: "reconfig", Err: err}
			}
		}
		in.Arg = spec.Arg
		newAppTable[name] = in
		newAppArray = append(newAppArray, in)
	}

	// start
	for _, name := range actions[actionStart] {
		in, err := e.startApp(name, newConfig.Apps[name])
		if err != nil {
			return &ConfigureError{App: name, Op: "start", Err: err}
		}
		newAppTable[name] = in
		newAppArray = append(newAppArray, in)
	}

	consumerIndex := make(map[string]int, len(newAppArray))
	for i, in := range newAppArray {
		consumerIndex[in.Name] = i
	}

	// Links present in the old table but absent from the new one are
	// simply not carried into newLinkTable below; their buffered
	// packets are reclaimed by the garbage collector once the last
	// reference (here) drops.
	newLinkTable, newLinkArray := e.reconcileLinks(newConfig, newAppTable, consumerIndex)

	e.config = newConfig
	e.appTable = newAppTable
	e.appArray = newAppArray
	e.linkTable = newLinkTable
	e.linkArray = newLinkArray
	if forceRestart == nil {
		e.configs++
	}

	for _, in := range newAppArray {
		if lk, ok := in.AsLinker(); ok {
			lk.Link(in)
		}
	}

	return nil
}

// classify buckets every app name present in the old or new configuration
// into one of the five actions.
func (e *Engine) classify(newConfig *config.Configuration, forceRestart map[string]bool) map[actionKind][]string {
	names := make(map[string]struct{}, len(e.config.Apps)+len(newConfig.Apps))
	for name := range e.config.Apps {
		names[name] = struct{}{}
	}
	for name := range newConfig.Apps {
		names[name] = struct{}{}
	}
	sorted := make([]string, 0, len(names))
	for name := range names {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	actions := make(map[actionKind][]string)
	for _, name := range sorted {
		oldSpec, inOld := e.config.Apps[name]
		newSpec, inNew := newConfig.Apps[name]
		var kind actionKind
		switch {
		case !inOld && inNew:
			kind = actionStart
		case inOld && !inNew:
			kind = actionStop
		case forceRestart[name]:
			kind = actionRestart
		case oldSpec.SameClassAndArg(newSpec):
			kind = actionKeep
		case oldSpec.ClassName != newSpec.ClassName:
			kind = actionRestart
		default:
			// Same class, different arg: reconfig in place if the
			// running instance supports it, else restart.
			if in, ok := e.appTable[name]; ok {
				if _, reconfigurable := in.AsReconfigurer(); reconfigurable {
					kind = actionReconfig
				} else {
					kind = actionRestart
				}
			} else {
				kind = actionRestart
			}
		}
		actions[kind] = append(actions[kind], name)
	}
	return actions
}

func zoneOf(class app.Class) string {
	if zp, ok := class.(app.ZoneProvider); ok {
		return zp.Zone()
	}
	return ""
}

// startApp constructs a fresh instance from spec, requiring a non-nil
// constructor result.
func (e *Engine) startApp(name string, spec config.AppSpec) (*app.Instance, error) {
	impl, err := spec.Class.New(spec.Arg)
	if err != nil {
		return nil, err
	}
	if impl == nil {
		return nil, ErrBadConstructor
	}
	in := app.NewInstance(name, zoneOf(spec.Class), spec.Class, spec.Arg, impl)
	in.SetCounters(&e.packetCounters)
	if cfp, ok := impl.(app.CounterFrameProvider); ok {
		fields := cfp.CounterFrameFields()
		values := make(map[string]uint64, len(fields))
		for _, f := range fields {
			values[f] = 0
		}
		in.CounterFrame = &app.CounterFrame{Name: name, Created: e.now, Values: values}
	}
	return in, nil
}

// stopApp invokes the Stop hook, if any, before the instance is
// discarded. Stop runs outside the fault shield: only pull, push, and
// report are shielded hooks.
func (e *Engine) stopApp(in *app.Instance) {
	if s, ok := in.AsStopper(); ok {
		s.Stop()
	}
}

// reconcileLinks builds the new link table: reusing a link whose spec
// string already existed (preserving its buffer and counters), creating
// one otherwise, and attaching it to both named ports.
func (e *Engine) reconcileLinks(newConfig *config.Configuration, appTable map[string]*app.Instance, consumerIndex map[string]int) (map[string]*link.Link, []*link.Link) {
	table := make(map[string]*link.Link, len(newConfig.Links))

	specStrs := make([]string, 0, len(newConfig.Links))
	for specStr := range newConfig.Links {
		specStrs = append(specStrs, specStr)
	}
	sort.Strings(specStrs)

	array := make([]*link.Link, 0, len(specStrs))
	for _, specStr := range specStrs {
		spec := newConfig.Links[specStr]
		l, existed := e.linkTable[specStr]
		if !existed {
			l = link.New(e.opts.LinkCapacity)
			l.FromApp, l.FromPort = spec.FromApp, spec.FromPort
			l.ToApp, l.ToPort = spec.ToApp, spec.ToPort
		}
		l.ConsumerIndex = consumerIndex[spec.ToApp]
		table[specStr] = l
		array = append(array, l)

		if producer, ok := appTable[spec.FromApp]; ok {
			producer.AttachOutput(spec.FromPort, l)
		}
		if consumer, ok := appTable[spec.ToApp]; ok {
			consumer.AttachInput(spec.ToPort, l)
		}
	}
	return table, array
}
