package engine

import (
	"math"
	"time"

	"github.com/newtron-network/breathe/pkg/report"
)

// TimerWheel is polled once per breath unless suppressed.
type TimerWheel interface {
	Poll()
}

// MainOptions configures one call to Main.
type MainOptions struct {
	// Done, if set, is polled after every breath; Main returns once it
	// reports true.
	Done func() bool

	// Duration, if positive, bounds how long Main runs (converted
	// internally to a deadline-based predicate).
	Duration time.Duration

	// NoTimers suppresses the per-breath TimerWheel poll.
	NoTimers bool

	// NoReport suppresses the end-of-run textual report.
	NoReport bool

	// MeasureLatency enables per-breath duration recording into the
	// engine's latency histogram.
	MeasureLatency bool

	// TimerWheel is polled once per breath when set and NoTimers is
	// false.
	TimerWheel TimerWheel
}

// Main runs the breath/pacer loop until a termination predicate fires.
// On exit it commits counters and, unless suppressed, prints the
// three-section end-of-run report.
func (e *Engine) Main(opts MainOptions) error {
	e.now = time.Now()
	runStart := e.now

	var deadline time.Time
	if opts.Duration > 0 {
		deadline = runStart.Add(opts.Duration)
	}

	for {
		breathStart := time.Now()
		frees := e.Breath()
		if opts.MeasureLatency {
			e.histogram.observe(time.Since(breathStart))
		}

		if !opts.NoTimers && opts.TimerWheel != nil {
			opts.TimerWheel.Poll()
		}

		e.pace(frees)

		if opts.Done != nil && opts.Done() {
			break
		}
		if !deadline.IsZero() && !time.Now().Before(deadline) {
			break
		}
	}

	e.commitCounters()

	if !opts.NoReport {
		e.printReport(time.Since(runStart))
	}
	return nil
}

func (e *Engine) printReport(elapsed time.Duration) {
	load := report.LoadRow{
		Breaths:   e.breaths,
		Frees:     e.packetCounters.Frees,
		FreeBytes: e.packetCounters.FreeBytes,
		Elapsed:   elapsed,
	}

	links := make([]report.LinkRow, 0, len(e.linkTable))
	for specStr, l := range e.linkTable {
		stats := l.Stats()
		links = append(links, report.LinkRow{
			Spec:      specStr,
			TXPackets: stats.TXPackets,
			TXBytes:   stats.TXBytes,
			TXDrop:    stats.TXDrop,
			RXPackets: stats.RXPackets,
		})
	}

	var apps []report.AppRow
	for _, in := range e.appArray {
		if r, ok := in.AsReporter(); ok {
			var text string
			e.shieldCall(in, "report", func() { text = r.Report() })
			apps = append(apps, report.AppRow{Name: in.Name, Text: text})
		}
	}

	report.Print(load, links, apps)
}

// histogramBuckets is a log-scale histogram of breath durations spanning
// 1µs to 1s, one
// bucket per power of two in that range.
const histogramBuckets = 21 // ceil(log2(1s/1µs)) + 1

type histogram struct {
	counts   [histogramBuckets]uint64
	overflow uint64
}

func (h *histogram) observe(d time.Duration) {
	us := d.Microseconds()
	if us <= 0 {
		h.counts[0]++
		return
	}
	bucket := int(math.Log2(float64(us)))
	if bucket < 0 {
		bucket = 0
	}
	if bucket >= histogramBuckets {
		h.overflow++
		return
	}
	h.counts[bucket]++
}

// LatencyHistogram returns a snapshot of recorded breath durations,
// bucket i holding breaths in [2^i, 2^(i+1)) microseconds (bucket 0 also
// holds breaths under 1µs), plus a count of breaths of 2^21µs (about
// 2.1s) or longer.
func (e *Engine) LatencyHistogram() (buckets [histogramBuckets]uint64, overflow uint64) {
	return e.histogram.counts, e.histogram.overflow
}
