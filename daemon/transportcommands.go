package daemon

import (
	"fmt"
	"strings"

	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/listener"
	"github.com/TizenTeam/sdb/localsocket"
	"github.com/TizenTeam/sdb/packet"
	"github.com/TizenTeam/sdb/smartsocket"
	"github.com/TizenTeam/sdb/transport"
)

// dispatchTransportScoped handles every command reachable only after a
// transport selector prefix (§4.7's host-usb:/host-local:/host-serial:
// forms), once the selected transport has already passed CheckServiceable.
func (d *Daemon) dispatchTransportScoped(s *localsocket.Socket, t *transport.Transport, command string) error {
	switch {
	case command == "get-serialno":
		d.writeRaw(s, smartsocket.OKAY([]byte(t.Serial)))

	case command == "get-state":
		d.writeRaw(s, smartsocket.OKAY([]byte(t.State().String())))

	case strings.HasPrefix(command, "forward:"):
		d.handleForward(s, t, command[len("forward:"):], false)

	case strings.HasPrefix(command, "killforward:"):
		d.handleForward(s, t, command[len("killforward:"):], true)

	default:
		d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrUnknownCommand))
	}
	return nil
}

func (d *Daemon) handleForward(s *localsocket.Socket, t *transport.Transport, spec string, kill bool) {
	fs, ok := smartsocket.ParseForward(spec)
	if !ok {
		d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrBadForwardSpec))
		return
	}

	if kill {
		existing, ok := d.Listeners.Get(fs.LocalPort)
		if !ok || existing.Kind != listener.KindForward {
			d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrNoSuchForward))
			return
		}
		d.Listeners.Remove(fs.LocalPort)
		d.writeRaw(s, append(smartsocket.BareTag(true), smartsocket.BareTag(true)...))
		return
	}

	// Installing on an occupied port is only permitted to repurpose a
	// prior forward listener (§4.6); the old forward is closed first so its
	// port can be bound again.
	if existing, ok := d.Listeners.Get(fs.LocalPort); ok {
		if existing.Kind != listener.KindForward {
			d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrPortInUse))
			return
		}
		d.Listeners.Remove(fs.LocalPort)
	}

	l, err := listener.Listen(fs.LocalPort, listener.KindForward, d.Reactor, d.Pool)
	if err != nil {
		d.writeRaw(s, smartsocket.FAIL(err.Error()))
		return
	}
	l.Transport = t
	l.RemotePort = fmt.Sprintf("tcp:%d", fs.RemotePort)
	l.OnAccept = d.onForwardAccept
	d.Listeners.Install(l)

	d.writeRaw(s, append(smartsocket.BareTag(true), smartsocket.BareTag(true)...))
}

// onForwardAccept implements §4.6's forward accept behavior: the newly
// accepted socket is wired to l's transport and a single OPEN is emitted
// to set up the remote side of the forward.
func (d *Daemon) onForwardAccept(s *localsocket.Socket, l *listener.Listener) {
	s.Transport = l.Transport
	s.AttachTable(d.Sockets)

	payload := append([]byte(l.RemotePort), 0)
	pkt := &packet.Packet{Message: frame.Message{Command: frame.OPEN, Arg0: s.LocalID}}
	copy(pkt.Payload[:], payload)
	pkt.Len = len(payload)
	frame.Encode(&pkt.Message, payload)

	t := l.Transport
	d.Reactor.Post(func() {
		if err := t.WriteToRemote(pkt); err != nil {
			s.RequestClose()
		}
	})
}
