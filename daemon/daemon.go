// Package daemon wires the transport registry, the local-socket table, the
// listener set, and the event core together and implements transport.Handler
// (§4.4's "wake-up handler"): the per-frame dispatch that the loop goroutine
// runs for every packet a transport's reader thread posts. It is also where
// the smart-socket command grammar (§4.7) is interpreted, since dispatching
// a client command almost always means touching the registry, a socket, or
// a listener — the three things package transport deliberately knows
// nothing about, to avoid an import cycle.
package daemon

import (
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sync/errgroup"

	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/listener"
	"github.com/TizenTeam/sdb/localsocket"
	"github.com/TizenTeam/sdb/packet"
	"github.com/TizenTeam/sdb/registry"
	"github.com/TizenTeam/sdb/transport"
)

// Daemon is the runtime state one sdbd process holds: the registry, the
// socket table, the listener set, and the reactor they all run on.
type Daemon struct {
	Registry  *registry.Registry
	Sockets   *localsocket.Table
	Listeners *listener.Set
	Reactor   ioevent.Reactor
	Pool      *packet.Pool

	ControlPort int
	ScanBase    int

	mu           sync.Mutex
	killOnce     sync.Once
	done         chan struct{}
	shuttingDown bool
	reconnect    map[*transport.Transport]reconnectTarget
}

// New creates a daemon around an already-constructed reactor and packet
// pool; the caller (cmd/sdbd) owns bringing those up first since they also
// need to be handed to the listeners and transports it creates.
func New(reactor ioevent.Reactor, pool *packet.Pool, controlPort, scanBase int) *Daemon {
	return &Daemon{
		Registry:    registry.New(),
		Sockets:     localsocket.NewTable(),
		Listeners:   listener.NewSet(),
		Reactor:     reactor,
		Pool:        pool,
		ControlPort: controlPort,
		ScanBase:    scanBase,
		done:        make(chan struct{}),
		reconnect:   make(map[*transport.Transport]reconnectTarget),
	}
}

// Done is closed once Kill has finished kicking every transport.
func (d *Daemon) Done() <-chan struct{} { return d.done }

// HandlePacket implements transport.Handler. It always runs on the loop
// goroutine (transport.post schedules it via reactor.Post), so it may touch
// the registry, socket table, and listener set freely without additional
// synchronization beyond what those types already provide.
func (d *Daemon) HandlePacket(t *transport.Transport, pkt *packet.Packet) {
	switch pkt.Message.Command {
	case frame.CNXN:
		d.handleCNXN(t, pkt)
	case frame.STAT:
		d.handleSTAT(t, pkt)
	case frame.OKAY:
		d.handleOKAY(t, pkt)
	case frame.WRTE:
		d.handleWRTE(t, pkt)
	case frame.CLSE:
		d.handleCLSE(t, pkt)
	case frame.TCLS:
		d.handleTCLS(t, pkt)
	default:
		glog.Warningf("daemon: dropping packet with unknown command %v on transport %s", pkt.Message.Command, t.Serial)
	}
}

func (d *Daemon) handleCNXN(t *transport.Transport, pkt *packet.Packet) {
	stateToken, name, locked := transport.ParseCnxnPayload(pkt.Payload[:pkt.Message.DataLength])
	newState, known := transport.ParseCnxnState(stateToken)
	if !known {
		newState = transport.Host
	}

	prior := t.State()
	if prior != transport.Offline && prior != transport.WaitingForCnxn {
		// A re-banner on an already-active transport: tear down whatever
		// was bound to the old session before adopting the new one
		// (§4.4: "duplicate CNXN frames are tolerated... idempotent modulo
		// the close-fanout step").
		d.closeFanout(t)
	}

	if name != "" {
		t.Name = name
	}
	t.SetPasswordLocked(locked)
	if locked {
		t.SetState(transport.PasswordLocked)
	} else {
		t.SetState(newState)
	}
	d.Registry.BroadcastChanged()
}

func (d *Daemon) handleSTAT(t *transport.Transport, pkt *packet.Packet) {
	s, ok := transport.StatArg0ToState(pkt.Message.Arg0)
	if !ok {
		glog.Warningf("daemon: transport %s sent STAT with unrecognized arg0 %d", t.Serial, pkt.Message.Arg0)
		return
	}
	t.SetState(s)
	d.Registry.BroadcastChanged()
}

func (d *Daemon) handleOKAY(t *transport.Transport, pkt *packet.Packet) {
	localID := pkt.Message.Arg1
	remoteID := pkt.Message.Arg0
	s, ok := d.Sockets.Get(localID)
	if !ok {
		return // peer has forgotten the stream; drop silently (§4.4)
	}
	if !s.Bound() {
		s.Bind(t, remoteID)
	}
	s.PeerOKAY()
}

func (d *Daemon) handleWRTE(t *transport.Transport, pkt *packet.Packet) {
	localID := pkt.Message.Arg1
	if t.State() == transport.Offline {
		return
	}
	s, ok := d.Sockets.Get(localID)
	if !ok {
		return
	}

	// pkt is owned by the transport's reader loop and returned to its pool
	// the instant HandlePacket returns (transport.Transport.post), so the
	// bytes must be copied into a packet the socket's drain queue can hold
	// onto across scheduler ticks.
	out, ok := d.Pool.Get()
	if !ok {
		glog.Errorf("daemon: packet pool exhausted queuing WRTE for socket %d, closing transport %s", localID, t.Serial)
		t.Kick()
		return
	}
	out.Len = int(pkt.Message.DataLength)
	copy(out.Payload[:out.Len], pkt.Payload[:pkt.Message.DataLength])
	s.Enqueue(out)
}

func (d *Daemon) handleCLSE(t *transport.Transport, pkt *packet.Packet) {
	localID := pkt.Message.Arg1
	s, ok := d.Sockets.Get(localID)
	if !ok {
		return
	}
	s.CloseLocally()
}

func (d *Daemon) handleTCLS(t *transport.Transport, pkt *packet.Packet) {
	d.Registry.Remove(t)
	d.closeFanout(t)

	d.mu.Lock()
	target, wantReconnect := d.reconnect[t]
	delete(d.reconnect, t)
	shuttingDown := d.shuttingDown
	d.mu.Unlock()

	if wantReconnect && !shuttingDown {
		d.scheduleReconnect(target)
	}
}

// closeFanout destroys every local socket and listener bound to t (§4.4
// "close-fanout"), run whenever t goes offline (reconnect banner or final
// teardown).
func (d *Daemon) closeFanout(t *transport.Transport) {
	for _, s := range d.Sockets.All() {
		if s.Transport == t {
			s.RequestClose()
		}
	}
	for _, l := range d.Listeners.All() {
		if l.Kind == listener.KindForward && l.Transport == t {
			d.Listeners.Remove(l.LocalPort)
		}
	}
}

// Kill implements the `kill` host-scope command (§4.7, §5 "on daemon
// shutdown"): every live transport is kicked in parallel and Kill waits for
// each reader thread to exit before closing Done, so cmd/sdbd can hold the
// process open just long enough for the OKAY reply to actually reach the
// client's socket buffer.
func (d *Daemon) Kill() {
	d.killOnce.Do(func() {
		d.mu.Lock()
		d.shuttingDown = true
		d.mu.Unlock()
		go func() {
			var g errgroup.Group
			for _, t := range d.Registry.List() {
				t := t
				g.Go(func() error {
					t.Kick()
					<-t.WaitForReaderExit()
					return nil
				})
			}
			_ = g.Wait()
			close(d.done)
		}()
	})
}
