// Package packet provides the fixed-capacity byte buffer that flows across
// links between apps.
package packet

import "sync"

// MaxPayload is the compile-time maximum packet length in bytes.
const MaxPayload = 10 * 1024

// Packet is a fixed-capacity buffer with a length. Ownership passes from
// producer to link to consumer; the consumer must either forward the
// packet onto another link or Free it.
type Packet struct {
	Data   [MaxPayload]byte
	Length int
}

var pool = sync.Pool{
	New: func() interface{} { return new(Packet) },
}

// Allocate returns a zero-length packet from the arena free-list.
func Allocate() *Packet {
	p := pool.Get().(*Packet)
	p.Length = 0
	return p
}

// Clone returns a new packet carrying a copy of p's payload.
func Clone(p *Packet) *Packet {
	c := Allocate()
	c.Length = p.Length
	copy(c.Data[:c.Length], p.Data[:p.Length])
	return c
}

// Payload returns the in-use slice of the packet's data.
func (p *Packet) Payload() []byte {
	return p.Data[:p.Length]
}

// Resize sets the packet's length, truncating to MaxPayload.
func (p *Packet) Resize(n int) {
	if n > MaxPayload {
		n = MaxPayload
	}
	if n < 0 {
		n = 0
	}
	p.Length = n
}

// Counters accumulates process-wide free statistics. The engine owns one
// instance and increments it whenever a packet handle is released back to
// the arena: frees, freebytes, and freebits.
type Counters struct {
	Frees     uint64
	FreeBytes uint64
	FreeBits  uint64
}

// Free releases p back to the arena and updates c's running totals. Free is
// the only legal terminal operation on a packet handle a consumer does not
// forward onto an output link.
func Free(c *Counters, p *Packet) {
	if c != nil {
		c.Frees++
		c.FreeBytes += uint64(p.Length)
		c.FreeBits += uint64(p.Length) * 8
	}
	pool.Put(p)
}
