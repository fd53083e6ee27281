package engine

import (
	"testing"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/config"
	"github.com/newtron-network/breathe/pkg/packet"
	"github.com/newtron-network/breathe/pkg/timeline"
)

type recordTimelineSink struct {
	entries []timeline.Entry
}

func (r *recordTimelineSink) Write(e timeline.Entry) {
	r.entries = append(r.entries, e)
}

// TestBreathResamplesTimelineEachCall verifies Breath calls Resample
// before emitting, so breath-start/breath-end occasionally reach the
// sink instead of sitting forever at the Timeline's initial Warning
// priority (which neither event clears).
func TestBreathResamplesTimelineEachCall(t *testing.T) {
	sink := &recordTimelineSink{}
	opts := DefaultOptions()
	opts.Timeline = timeline.New(sink)
	e := New(opts)

	for i := 0; i < 2000; i++ {
		e.Breath()
	}

	var sawBreathEvent bool
	for _, entry := range sink.entries {
		if entry.Event == timeline.EventBreathStart || entry.Event == timeline.EventBreathEnd {
			sawBreathEvent = true
			break
		}
	}
	if !sawBreathEvent {
		t.Fatal("expected at least one breath-start/breath-end event over 2000 breaths; Resample may not be wired into Breath")
	}
}

// TestPushDrainsMultiHopInOneBreath verifies the fixed-point push phase
// forwards a packet through a1 -> a2 -> a3 within a single breath.
func TestPushDrainsMultiHopInOneBreath(t *testing.T) {
	e := New(DefaultOptions())

	var order []string

	class := simpleClass{construct: func(arg interface{}) *simpleApp {
		name, _ := arg.(config.Arg)["_"].(string)
		return &simpleApp{pushFn: func(p app.Ports) {
			order = append(order, name)
			in, ok := p.Input("in")
			if !ok {
				return
			}
			pkt, ok := in.Receive()
			if !ok {
				return
			}
			out, ok := p.Output("out")
			if ok {
				out.Transmit(pkt)
			} else {
				p.Free(pkt)
			}
		}}
	}}

	c := config.New()
	for _, name := range []string{"a1", "a2", "a3"} {
		if err := c.AddApp(name, "simple", class, config.Arg{"_": name}); err != nil {
			t.Fatal(err)
		}
	}
	if err := c.AddLink("a1.out -> a2.in"); err != nil {
		t.Fatal(err)
	}
	if err := c.AddLink("a2.out -> a3.in"); err != nil {
		t.Fatal(err)
	}
	if err := e.Configure(c); err != nil {
		t.Fatal(err)
	}

	l, ok := e.appTable["a1"].Output("out")
	if !ok {
		t.Fatal("a1 has no output port wired")
	}
	pkt := packet.Allocate()
	pkt.Resize(16)
	l.Transmit(pkt)

	e.Breath()

	if len(order) < 2 {
		t.Fatalf("push order = %v, want at least a2 then a3", order)
	}
	if e.packetCounters.Frees != 1 {
		t.Errorf("Frees = %d, want 1 (packet did not reach a3 within the breath)", e.packetCounters.Frees)
	}
}

// TestTransmitDropsOnFullLink exercises link backpressure through the
// engine's wired ports rather than the link package directly.
func TestTransmitDropsOnFullLink(t *testing.T) {
	e := New(DefaultOptions())
	e.opts.LinkCapacity = 2

	class := simpleClass{construct: func(arg interface{}) *simpleApp {
		return &simpleApp{}
	}}
	c := buildConfig(t, map[string]config.Arg{"a1": {}, "a2": {}}, class, []string{"a1.x -> a2.x"})
	if err := e.Configure(c); err != nil {
		t.Fatal(err)
	}

	l, _ := e.appTable["a1"].Output("x")
	for i := 0; i < l.Capacity(); i++ {
		if l.Transmit(packet.Allocate()) {
			t.Fatalf("unexpected drop before the ring filled, iteration %d", i)
		}
	}
	if !l.Transmit(packet.Allocate()) {
		t.Fatal("expected drop once the ring is full")
	}
	if l.Stats().TXDrop != 1 {
		t.Errorf("TXDrop = %d, want 1", l.Stats().TXDrop)
	}
}
