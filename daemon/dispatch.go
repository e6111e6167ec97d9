package daemon

import (
	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/localsocket"
	"github.com/TizenTeam/sdb/packet"
	"github.com/TizenTeam/sdb/smartsocket"
	"github.com/TizenTeam/sdb/transport"
)

// session is the per-connection state a server-control socket accumulates
// across requests: once a transport(...) bind command succeeds, every
// further request on that connection is the service string to OPEN on the
// device rather than another host command (§4.7).
type session struct {
	selected *transport.Transport
}

// dispatch is the entry point smartsocket.Reader calls with each complete
// request read off a server-control socket. It always runs on the loop
// goroutine, since it is only ever invoked from within Socket.onReadable.
func (d *Daemon) dispatch(s *localsocket.Socket, sess *session, req string) error {
	if sess.selected != nil {
		return d.openService(s, sess.selected, req)
	}

	parsed := smartsocket.ParseRequest(req)
	if !parsed.Scoped {
		return d.dispatchHostScope(s, sess, parsed.Command)
	}

	t, err := smartsocket.AcquireOneTransport(d.Registry, parsed.Selector.Kind, parsed.Selector.Serial)
	if err != nil {
		d.writeRaw(s, smartsocket.FAIL(err.Error()))
		return nil
	}

	if smartsocket.IsTransportBindCommand(parsed.Command) {
		sess.selected = t
		d.writeRaw(s, smartsocket.BareOKAY())
		return nil
	}

	if err := smartsocket.CheckServiceable(t); err != nil {
		d.writeRaw(s, smartsocket.FAIL(err.Error()))
		return nil
	}

	return d.dispatchTransportScoped(s, t, parsed.Command)
}

// writeRaw enqueues data onto an unbound smart-socket's drain queue,
// chunked to the packet pool's payload capacity. It reuses the exact path
// a bound socket's WRTE payloads travel (localsocket.Socket.Enqueue only
// ever looks at a packet's remaining bytes), so host-generated replies need
// no separate write path.
func (d *Daemon) writeRaw(s *localsocket.Socket, data []byte) {
	for len(data) > 0 {
		pkt, ok := d.Pool.Get()
		if !ok {
			return
		}
		n := copy(pkt.Payload[:], data)
		pkt.Len = n
		data = data[n:]
		s.Enqueue(pkt)
	}
}

// openService emits OPEN(arg0=s.LocalID, data=service) on t, the last step
// of the `transport(...)` bind command once the client sends the service
// string it actually wants (e.g. a shell command). The device's matching
// OKAY binds s to t via Daemon.handleOKAY, which also flips s.Kind so that
// further reads are framed as WRTE instead of parsed as requests.
func (d *Daemon) openService(s *localsocket.Socket, t *transport.Transport, service string) error {
	payload := append([]byte(service), 0)
	pkt := &packet.Packet{Message: frame.Message{Command: frame.OPEN, Arg0: s.LocalID}}
	copy(pkt.Payload[:], payload)
	pkt.Len = len(payload)
	frame.Encode(&pkt.Message, payload)
	return t.WriteToRemote(pkt)
}
