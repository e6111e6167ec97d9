package packet

import "testing"

func TestPoolReuse(t *testing.T) {
	p := NewPool(2)

	a, ok := p.Get()
	if !ok {
		t.Fatal("expected Get to succeed")
	}
	b, ok := p.Get()
	if !ok {
		t.Fatal("expected Get to succeed")
	}
	if _, ok := p.Get(); ok {
		t.Fatal("expected pool exhaustion at cap")
	}

	p.Put(a)
	if _, ok := p.Get(); !ok {
		t.Fatal("expected Get to succeed after Put")
	}
	p.Put(b)

	if got := p.Outstanding(); got != 1 {
		t.Errorf("Outstanding() = %d, want 1", got)
	}
}

func TestPacketCursor(t *testing.T) {
	pkt := &Packet{Len: 10}
	copy(pkt.Payload[:10], []byte("0123456789"))

	if pkt.Exhausted() {
		t.Fatal("fresh packet should not be exhausted")
	}
	pkt.Advance(4)
	if string(pkt.Remaining()) != "456789" {
		t.Errorf("Remaining() = %q, want %q", pkt.Remaining(), "456789")
	}
	pkt.Advance(6)
	if !pkt.Exhausted() {
		t.Fatal("packet should be exhausted after draining all bytes")
	}
}
