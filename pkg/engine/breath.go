package engine

import (
	"time"

	"github.com/newtron-network/breathe/pkg/timeline"
)

// commitInterval is how often (in breaths) counters are committed to the
// external mirror.
const commitInterval = 100

// Breath runs one full traversal of the active graph: clock refresh,
// restart sweep, pull phase, and a fixed-point push phase, in that
// order. It returns the number of packets freed during the breath.
func (e *Engine) Breath() uint64 {
	e.now = time.Now()
	if e.opts.Timeline != nil {
		e.opts.Timeline.Resample()
	}
	e.emit(timeline.SeverityTrace, timeline.EventBreathStart, nil)

	e.restartSweep()

	freesBefore := e.packetCounters.Frees
	e.pull()
	e.push()

	e.breaths++
	if e.breaths%commitInterval == 0 {
		e.commitCounters()
	}

	e.emit(timeline.SeverityTrace, timeline.EventBreathEnd, map[string]interface{}{
		"breath": e.breaths,
	})
	return e.packetCounters.Frees - freesBefore
}

// pull invokes every non-dead app's Pull hook in active-array order
//.
func (e *Engine) pull() {
	for _, in := range e.appArray {
		if in.IsDead() {
			continue
		}
		if p, ok := in.AsPuller(); ok {
			e.emit(timeline.SeverityPacket, timeline.EventPull, map[string]interface{}{"app": in.Name})
			e.shieldCall(in, "pull", func() { p.Pull(in) })
		}
	}
}

// push runs the fixed-point sweep over the active link array: every link
// with new data (or on the first sweep, every link) hands its packets to
// the consumer's Push hook, repeating until a sweep makes no progress
//.
func (e *Engine) push() {
	firstloop := true
	for {
		progress := false
		for _, l := range e.linkArray {
			if !firstloop && !l.HasNewData() {
				continue
			}
			l.ClearNewData()

			if l.ConsumerIndex < 0 || l.ConsumerIndex >= len(e.appArray) {
				continue
			}
			consumer := e.appArray[l.ConsumerIndex]
			if consumer.IsDead() {
				continue
			}
			if p, ok := consumer.AsPusher(); ok {
				e.emit(timeline.SeverityPacket, timeline.EventPush, map[string]interface{}{"app": consumer.Name})
				e.shieldCall(consumer, "push", func() { p.Push(consumer) })
				progress = true
			}
		}
		firstloop = false
		if !progress {
			return
		}
	}
}

// commitCounters publishes engine, per-link, and per-app counter
// snapshots to the configured Sink.
func (e *Engine) commitCounters() {
	sink := e.opts.CounterSink
	if sink == nil {
		return
	}
	_ = sink.SetEngine(map[string]uint64{
		"breaths":   e.breaths,
		"frees":     e.packetCounters.Frees,
		"freebits":  e.packetCounters.FreeBits,
		"freebytes": e.packetCounters.FreeBytes,
		"configs":   e.configs,
	})
	for specStr, l := range e.linkTable {
		stats := l.Stats()
		_ = sink.SetLink(specStr, map[string]uint64{
			"rxpackets": stats.RXPackets,
			"rxbytes":   stats.RXBytes,
			"txpackets": stats.TXPackets,
			"txbytes":   stats.TXBytes,
			"txdrop":    stats.TXDrop,
		})
	}
	for name, in := range e.appTable {
		if in.CounterFrame == nil {
			continue
		}
		_ = sink.SetApp(name, in.CounterFrame.Values)
	}
}
