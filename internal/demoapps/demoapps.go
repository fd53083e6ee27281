// Package demoapps provides minimal in-memory apps (a packet generator,
// a duplicating tee, and a counting sink) used to exercise the engine in
// tests and as the example graph behind `breathectl run`. Individual
// apps are explicitly out of scope for the core — these
// exist only to drive the engine, not as a deliverable app library.
package demoapps

import (
	"fmt"

	"github.com/newtron-network/breathe/pkg/app"
	"github.com/newtron-network/breathe/pkg/config"
	"github.com/newtron-network/breathe/pkg/loader"
	"github.com/newtron-network/breathe/pkg/packet"
)

func argInt(arg interface{}, key string, def int) int {
	m, ok := arg.(config.Arg)
	if !ok {
		return def
	}
	switch v := m[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Source is a Puller that generates fixed-size packets onto its
// "output" port, at most `rate` per breath (further capped by the
// link's PullCap).
type Source struct {
	rate int
}

// SourceClass constructs Source apps. The "rate" arg key sets packets
// generated per breath (default 1).
type SourceClass struct{}

func (SourceClass) New(arg interface{}) (interface{}, error) {
	return &Source{rate: argInt(arg, "rate", 1)}, nil
}

func (SourceClass) ConfigSchema() app.Schema {
	return app.Schema{"rate": {Default: 1}}
}

func (s *Source) Pull(p app.Ports) {
	out, ok := p.Output("output")
	if !ok {
		return
	}
	n := s.rate
	if cap := out.PullCap(); n > cap {
		n = cap
	}
	for i := 0; i < n; i++ {
		pkt := packet.Allocate()
		pkt.Resize(64)
		out.Transmit(pkt)
	}
}

// Tee is a Pusher that forwards every packet on "input" onto "a", and a
// clone of it onto "b" if that port is attached.
type Tee struct{}

// TeeClass constructs Tee apps; it takes no configuration.
type TeeClass struct{}

func (TeeClass) New(arg interface{}) (interface{}, error) { return &Tee{}, nil }

func (t *Tee) Push(p app.Ports) {
	in, ok := p.Input("input")
	if !ok {
		return
	}
	a, hasA := p.Output("a")
	b, hasB := p.Output("b")
	for {
		pkt, ok := in.Receive()
		if !ok {
			return
		}
		if hasB {
			b.Transmit(packet.Clone(pkt))
		}
		if hasA {
			a.Transmit(pkt)
		} else {
			p.Free(pkt)
		}
	}
}

// Sink is a Pusher that drains "input" and frees every packet, counting
// how many it has received. It also implements Reporter and
// CounterFrameProvider so its count surfaces in both the textual report
// and the external counter mirror.
type Sink struct {
	received uint64
}

// SinkClass constructs Sink apps; it takes no configuration.
type SinkClass struct{}

func (SinkClass) New(arg interface{}) (interface{}, error) { return &Sink{}, nil }

func (s *Sink) Push(p app.Ports) {
	in, ok := p.Input("input")
	if !ok {
		return
	}
	for {
		pkt, ok := in.Receive()
		if !ok {
			break
		}
		s.received++
		p.Free(pkt)
	}
	if cv := p.CounterValues(); cv != nil {
		cv["received"] = s.received
	}
}

func (s *Sink) Report() string {
	return fmt.Sprintf("received=%d", s.received)
}

func (s *Sink) CounterFrameFields() []string { return []string{"received"} }

// Registry returns the loader.Registry mapping class names to these
// demo classes, for use by breathectl's example configuration.
func Registry() loader.Registry {
	return loader.Registry{
		"source": SourceClass{},
		"tee":    TeeClass{},
		"sink":   SinkClass{},
	}
}
