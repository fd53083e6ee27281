// Package link implements the single-producer/single-consumer bounded ring
// of packet handles that connects two apps' ports.
package link

import "github.com/newtron-network/breathe/pkg/packet"

// DefaultCapacity is the default ring size in packets. It must be a power
// of two, matching Snabb's link_max_packets, and is exposed as an engine
// option rather than fixed.
const DefaultCapacity = 1024

// PullDivisor bounds how many packets a single producer invocation may
// enqueue onto one output link, expressed as capacity/PullDivisor.
const PullDivisor = 10

// Stats is a point-in-time snapshot of a Link's counters, safe to copy and
// publish to an external observer.
type Stats struct {
	RXPackets uint64
	RXBytes   uint64
	TXPackets uint64
	TXBytes   uint64
	TXDrop    uint64
}

// Link is a bounded ring of packet handles between a producer app's output
// port and a consumer app's input port.
type Link struct {
	// FromApp/FromPort and ToApp/ToPort name the endpoints this link was
	// wired from, for diagnostics and reconciliation lookups.
	FromApp, FromPort string
	ToApp, ToPort     string

	// ConsumerIndex is the consumer app's index in the engine's active app
	// array, cached here so the push fixed-point never needs a name
	// lookup.
	ConsumerIndex int

	ring     []*packet.Packet
	head     int // next slot to dequeue
	count    int
	capacity int

	hasNewData bool
	stats      Stats
}

// New creates an empty link with the given ring capacity (rounded up to
// the next power of two if it isn't one already).
func New(capacity int) *Link {
	capacity = nextPowerOfTwo(capacity)
	return &Link{
		ring:     make([]*packet.Packet, capacity),
		capacity: capacity,
	}
}

func nextPowerOfTwo(n int) int {
	if n < 1 {
		n = 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// Capacity returns the ring's fixed size in packets.
func (l *Link) Capacity() int { return l.capacity }

// PullCap is the maximum number of packets a single producer invocation
// should enqueue onto this link.
func (l *Link) PullCap() int {
	cap := l.capacity / PullDivisor
	if cap < 1 {
		cap = 1
	}
	return cap
}

// Full reports whether the ring has no free slots.
func (l *Link) Full() bool { return l.count == l.capacity }

// Empty reports whether the ring holds no packets.
func (l *Link) Empty() bool { return l.count == 0 }

// HasNewData reports whether a packet has been enqueued since the last
// push sweep cleared the flag.
func (l *Link) HasNewData() bool { return l.hasNewData }

// ClearNewData clears the new-data flag; called once per push sweep visit.
func (l *Link) ClearNewData() { l.hasNewData = false }

// Transmit enqueues p onto the ring. If the ring is full the packet is
// dropped and TXDrop is incremented — this is normal backpressure, not an
// error.
func (l *Link) Transmit(p *packet.Packet) (dropped bool) {
	if l.Full() {
		l.stats.TXDrop++
		return true
	}
	tail := (l.head + l.count) % l.capacity
	l.ring[tail] = p
	l.count++
	l.hasNewData = true
	l.stats.TXPackets++
	l.stats.TXBytes += uint64(p.Length)
	return false
}

// Receive dequeues the oldest packet, or returns ok=false if the ring is
// empty.
func (l *Link) Receive() (p *packet.Packet, ok bool) {
	if l.Empty() {
		return nil, false
	}
	p = l.ring[l.head]
	l.ring[l.head] = nil
	l.head = (l.head + 1) % l.capacity
	l.count--
	l.stats.RXPackets++
	l.stats.RXBytes += uint64(p.Length)
	return p, true
}

// Stats returns a snapshot of the link's counters.
func (l *Link) Stats() Stats { return l.stats }
