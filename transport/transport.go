// Package transport implements one connection to one attached device
// (§4.4): a reader goroutine that decodes frames off the device endpoint,
// a connection state machine, and single-writer serialization of frames
// back out to the endpoint. The loop-thread-only dispatch logic (CNXN,
// OKAY, WRTE, CLSE, TCLS handling against local sockets/listeners/the
// registry) lives one level up, in package daemon, which is handed to a
// Transport as a Handler so that this package stays free of a dependency
// cycle.
package transport

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang/glog"

	"github.com/TizenTeam/sdb/endpoint"
	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/packet"
)

// hostBanner is the payload of the host's initial CNXN, "host::\0".
const hostBanner = "host::\x00"

// Handler receives packets posted by a transport's reader thread, always
// on the loop goroutine. It also owns close-fanout and the registry, none
// of which this package knows about.
type Handler interface {
	HandlePacket(t *Transport, pkt *packet.Packet)
}

// Transport is one connection to one device (§3 "Transport").
type Transport struct {
	Serial string
	Name   string
	Origin Origin

	ep      endpoint.Endpoint
	reactor ioevent.Reactor
	handler Handler
	pool    *packet.Pool

	mu           sync.Mutex
	state        State
	passwordLock bool

	req int64 // frames the reader has posted
	res int64 // frames the loop has consumed

	kicked int32 // 0/1, guards idempotent Kick

	readerDone chan struct{}
}

// New creates a transport around an already-established device endpoint.
// It does not start the reader thread; call Register for that (matching
// spec §4.4's register_transport, which both spawns the reader and adds
// the transport to the registry — the registry add is the registry
// package's job, invoked by daemon around a call to Register).
func New(serial, name string, origin Origin, ep endpoint.Endpoint, reactor ioevent.Reactor, handler Handler, pool *packet.Pool) *Transport {
	return &Transport{
		Serial:     serial,
		Name:       name,
		Origin:     origin,
		ep:         ep,
		reactor:    reactor,
		handler:    handler,
		pool:       pool,
		state:      Offline,
		readerDone: make(chan struct{}),
	}
}

// State returns the current connection state.
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// SetState is called from the loop goroutine only, while dispatching
// CNXN/STAT frames.
func (t *Transport) SetState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

func (t *Transport) PasswordLocked() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.passwordLock
}

func (t *Transport) SetPasswordLocked(locked bool) {
	t.mu.Lock()
	t.passwordLock = locked
	t.mu.Unlock()
}

// Req and Res expose the outstanding-frame counters used to gate
// destruction: a transport is destroyed only once Req() == Res().
func (t *Transport) Req() int64 { return atomic.LoadInt64(&t.req) }
func (t *Transport) Res() int64 { return atomic.LoadInt64(&t.res) }

// Drained reports whether every frame the reader posted has been
// consumed by the loop.
func (t *Transport) Drained() bool {
	return t.Req() == t.Res()
}

// Kick unblocks the reader's in-flight endpoint I/O. At most once;
// subsequent calls are no-ops (§3 Transport invariants).
func (t *Transport) Kick() {
	if atomic.CompareAndSwapInt32(&t.kicked, 0, 1) {
		t.ep.Kick()
	}
}

// WriteToRemote serializes one packet out to the device. It takes no lock:
// apart from the initial CNXN, which the reader goroutine sends before it
// starts reading, it is called only from the loop goroutine (by package
// daemon and package localsocket).
func (t *Transport) WriteToRemote(pkt *packet.Packet) error {
	var hdr [frame.HeaderSize]byte
	frame.PutHeader(hdr[:], &pkt.Message)
	if err := t.ep.WriteAll(hdr[:]); err != nil {
		return fmt.Errorf("transport %s: write header: %w", t.Serial, err)
	}
	if pkt.Message.DataLength > 0 {
		if err := t.ep.WriteAll(pkt.Payload[:pkt.Message.DataLength]); err != nil {
			return fmt.Errorf("transport %s: write payload: %w", t.Serial, err)
		}
	}
	return nil
}

// Register starts the reader thread (§4.4 steps 1-5). Registry
// bookkeeping is the caller's responsibility (package daemon), invoked
// before this so that the transport is already lookup-able once frames
// start arriving.
func (t *Transport) Register() {
	go t.readLoop()
}

func (t *Transport) readLoop() {
	defer close(t.readerDone)

	t.SetState(WaitingForCnxn)
	if err := t.sendCnxn(); err != nil {
		glog.Warningf("transport %s: failed to send initial CNXN: %v", t.Serial, err)
		t.finish()
		return
	}

	t.SetState(Offline)
	// Pragmatic wait, not a correctness requirement: the peer's banner
	// may lag USB enumeration.
	time.Sleep(time.Second)

	for {
		pkt, ok := t.pool.Get()
		if !ok {
			glog.Errorf("transport %s: packet pool exhausted, closing", t.Serial)
			break
		}

		var hdr [frame.HeaderSize]byte
		if err := t.ep.ReadExact(hdr[:]); err != nil {
			t.pool.Put(pkt)
			glog.V(1).Infof("transport %s: reader exiting: %v", t.Serial, err)
			break
		}
		pkt.Message = frame.GetHeader(hdr[:])
		if err := frame.ValidateHeader(&pkt.Message); err != nil {
			t.pool.Put(pkt)
			glog.Warningf("transport %s: bad header: %v", t.Serial, err)
			break
		}

		if n := pkt.Message.DataLength; n > 0 {
			if err := t.ep.ReadExact(pkt.Payload[:n]); err != nil {
				t.pool.Put(pkt)
				glog.V(1).Infof("transport %s: reader exiting (payload): %v", t.Serial, err)
				break
			}
			pkt.Len = int(n)
		}
		if err := frame.ValidateData(&pkt.Message, pkt.Payload[:pkt.Message.DataLength]); err != nil {
			t.pool.Put(pkt)
			glog.Warningf("transport %s: bad checksum: %v", t.Serial, err)
			break
		}

		t.post(pkt)
	}

	t.finish()
}

// post hands a decoded packet to the loop goroutine, incrementing req
// before posting and res once the handler has finished with it, so that
// Drained() is accurate regardless of how long dispatch takes.
func (t *Transport) post(pkt *packet.Packet) {
	atomic.AddInt64(&t.req, 1)
	t.reactor.Post(func() {
		t.handler.HandlePacket(t, pkt)
		atomic.AddInt64(&t.res, 1)
		t.pool.Put(pkt)
	})
}

// finish runs when the reader loop exits for any reason: it marks the
// transport offline, waits for the loop to drain every packet the reader
// already posted, then posts a single TCLS packet so the loop performs
// final unregister on its own goroutine (§4.4 step 5).
func (t *Transport) finish() {
	t.SetState(Offline)

	for !t.Drained() {
		time.Sleep(time.Second)
	}

	tcls, ok := t.pool.Get()
	if !ok {
		glog.Errorf("transport %s: packet pool exhausted posting TCLS", t.Serial)
		return
	}
	tcls.Message = frame.Message{Command: frame.TCLS}
	t.post(tcls)
}

// sendCnxn sends the host's initial banner: arg0 is the protocol
// version, arg1 is MaxPayload, payload is "host::\0".
func (t *Transport) sendCnxn() error {
	pkt := &packet.Packet{
		Message: frame.Message{
			Command: frame.CNXN,
			Arg0:    frame.ProtocolVersion,
			Arg1:    frame.MaxPayload,
		},
	}
	payload := []byte(hostBanner)
	copy(pkt.Payload[:], payload)
	pkt.Len = len(payload)
	frame.Encode(&pkt.Message, payload)
	return t.WriteToRemote(pkt)
}

// ParseCnxnPayload splits a CNXN payload of the form
// "<state>[:<serial>:<name>[:<lock>]]" into its state token, device name
// (the third field), and whether the fourth field, "1", marks the device
// as password-locked. The second field is ignored.
func ParseCnxnPayload(payload []byte) (stateToken, name string, locked bool) {
	s := string(payload)
	for len(s) > 0 && s[len(s)-1] == 0 {
		s = s[:len(s)-1]
	}
	parts := splitN(s, ':', 4)
	if len(parts) > 0 {
		stateToken = parts[0]
	}
	if len(parts) > 2 {
		name = parts[2]
	}
	if len(parts) > 3 && parts[3] == "1" {
		locked = true
	}
	return stateToken, name, locked
}

func splitN(s string, sep byte, max int) []string {
	var out []string
	start := 0
	for i := 0; i < len(s) && len(out) < max-1; i++ {
		if s[i] == sep {
			out = append(out, s[start:i])
			start = i + 1
		}
	}
	out = append(out, s[start:])
	return out
}

// StatArg0ToState maps a STAT frame's Arg0 onto a State, per §4.4: 0 is
// device, 1 is password-locked. Any other value is left for the caller
// to treat as dead code per the spec's Open Questions — no device in
// this pack is known to ever send STAT.
func StatArg0ToState(arg0 uint32) (State, bool) {
	switch arg0 {
	case 0:
		return Device, true
	case 1:
		return PasswordLocked, true
	}
	return Offline, false
}

// WaitForReaderExit blocks until the reader goroutine has exited, for use
// by tests and by daemon's Kick-and-wait shutdown path.
func (t *Transport) WaitForReaderExit() <-chan struct{} {
	return t.readerDone
}
