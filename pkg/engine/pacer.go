package engine

import (
	"time"

	"github.com/newtron-network/breathe/pkg/timeline"
)

// pace suspends between breaths according to the configured mode.
// freesThisBreath is the packet count Breath just returned, used by
// adaptive mode to detect idleness.
func (e *Engine) pace(freesThisBreath uint64) {
	switch {
	case e.opts.Busywait:
		return
	case e.opts.Hz > 0:
		e.paceFixed()
	default:
		e.paceAdaptive(freesThisBreath)
	}
}

// paceFixed maintains a nextbreath timestamp and sleeps just enough to
// hold a steady cadence of Hz breaths per second.
func (e *Engine) paceFixed() {
	period := time.Second / time.Duration(e.opts.Hz)
	if e.pacer.nextBreath.IsZero() {
		e.pacer.nextBreath = e.now.Add(period)
		return
	}
	sleep := e.pacer.nextBreath.Sub(e.now)
	if sleep > time.Microsecond {
		e.emit(timeline.SeverityTrace, timeline.EventSleep, map[string]interface{}{"sleep_us": sleep.Microseconds()})
		time.Sleep(sleep)
		e.emit(timeline.SeverityTrace, timeline.EventWakeup, nil)
	}
	next := e.pacer.nextBreath.Add(period)
	if next.Before(e.now) {
		next = e.now
	}
	e.pacer.nextBreath = next
}

// paceAdaptive backs off proportionally to idleness: a breath that freed
// no packets grows the sleep by 1µs up to MaxSleep; a breath that freed
// any packets halves it.
func (e *Engine) paceAdaptive(freesThisBreath uint64) {
	if freesThisBreath == 0 {
		e.pacer.sleep += time.Microsecond
		if e.pacer.sleep > e.opts.MaxSleep {
			e.pacer.sleep = e.opts.MaxSleep
		}
	} else {
		e.pacer.sleep /= 2
	}
	if e.pacer.sleep > 0 {
		e.emit(timeline.SeverityTrace, timeline.EventSleep, map[string]interface{}{"sleep_us": e.pacer.sleep.Microseconds()})
		time.Sleep(e.pacer.sleep)
		e.emit(timeline.SeverityTrace, timeline.EventWakeup, nil)
	}
}
