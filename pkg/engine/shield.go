package engine

import (
	"fmt"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/timeline"
	"github.com/newtron-network/breathe/pkg/util"
)

// shieldCall runs fn, a single app hook invocation, under fault
// containment. In strict mode (the default) a panic is left to
// propagate and abort the process; in tolerant mode it is
// recovered, the app is marked dead with the recovered error and the
// current timestamp, and the breath continues.
func (e *Engine) shieldCall(in *app.Instance, hook string, fn func()) {
	if !e.opts.Tolerant {
		fn()
		return
	}
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("%v", r)
			in.Dead = &app.DeadMarker{Err: err, Time: e.now}
			util.WithApp(in.Name).WithField("hook", hook).Warn("app hook panicked, marking dead: ", err)
			if in.Zone != "" {
				util.WithZone(in.Zone).Debugf("app %q panicked in hook %q", in.Name, hook)
			}
			e.emit(timeline.SeverityApp, "app-fault", map[string]interface{}{
				"app": in.Name, "hook": hook, "error": err.Error(),
			})
		}
	}()
	fn()
}

// restartSweep restarts every app that has been dead for at least
// RestartDelay. Restart failures leave the
// app freshly dead so it is retried once RestartDelay has passed again,
// producing a perpetual 2s restart cadence for a chronically failing app.
func (e *Engine) restartSweep() {
	if !e.opts.Tolerant {
		return
	}
	var due []string
	for _, in := range e.appArray {
		if in.Dead != nil && e.now.Sub(in.Dead.Time) >= e.opts.RestartDelay {
			due = append(due, in.Name)
		}
	}
	if len(due) == 0 {
		return
	}
	if err := e.restartApps(due); err != nil {
		// The restart plan itself failed to apply (e.g. the
		// constructor raised again); leave the apps marked dead with
		// a refreshed timestamp so a sweep retries them once
		// RestartDelay has passed again.
		for _, name := range due {
			if in, ok := e.appTable[name]; ok {
				in.Dead = &app.DeadMarker{Err: err, Time: e.now}
			}
		}
		util.Logger.WithField("apps", due).Warn("restart sweep failed: ", err)
	}
}
