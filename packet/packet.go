// Package packet provides the fixed-capacity buffer pool that frames are
// decoded into and written out of. A Packet pairs a frame.Message with its
// payload and a cursor used while the payload is progressively drained to
// or filled from an fd; packets move between queues by reference and never
// alias each other's backing storage.
package packet

import (
	"sync"

	"github.com/TizenTeam/sdb/frame"
)

// Packet is a frame.Message plus its payload and a read/write cursor.
// The cursor (Pos) tracks how much of Payload has been consumed by a
// partial fd write, or produced by a partial fd read.
type Packet struct {
	Message frame.Message
	Payload [frame.MaxPayload]byte
	Len     int // valid bytes in Payload
	Pos     int // cursor into Payload[:Len]
}

// Remaining reports the unconsumed tail of the payload.
func (p *Packet) Remaining() []byte {
	return p.Payload[p.Pos:p.Len]
}

// Advance moves the cursor forward by n bytes (n bytes were drained).
func (p *Packet) Advance(n int) {
	p.Pos += n
}

// Exhausted reports whether the cursor has consumed the whole payload.
func (p *Packet) Exhausted() bool {
	return p.Pos >= p.Len
}

// Reset clears a packet for reuse from the pool.
func (p *Packet) Reset() {
	p.Message = frame.Message{}
	p.Len = 0
	p.Pos = 0
}

// Pool is a fixed-capacity free-list of Packets. Exhaustion (Get on an
// empty, already-maxed-out pool) is fatal to the connection being served,
// per §4.2 — the caller is expected to close the transport rather than
// allocate past the cap.
type Pool struct {
	mu   sync.Mutex
	free []*Packet
	out  int
	max  int
}

// NewPool creates a pool allowing at most max outstanding packets across
// Get/Put. max <= 0 means unbounded (arena-style growth).
func NewPool(max int) *Pool {
	return &Pool{max: max}
}

// Get returns a zeroed packet, or ok=false if the pool is exhausted.
func (p *Pool) Get() (pkt *Packet, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if n := len(p.free); n > 0 {
		pkt = p.free[n-1]
		p.free = p.free[:n-1]
		pkt.Reset()
		p.out++
		return pkt, true
	}
	if p.max > 0 && p.out >= p.max {
		return nil, false
	}
	p.out++
	return &Packet{}, true
}

// Put returns a packet to the pool for reuse.
func (p *Pool) Put(pkt *Packet) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out--
	p.free = append(p.free, pkt)
}

// Outstanding reports the number of packets currently checked out.
func (p *Pool) Outstanding() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.out
}
