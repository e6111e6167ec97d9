// Package listener implements the bound TCP acceptor that creates new
// local sockets on accept (§4.6): server-control, qemu-control, or
// forward listeners.
package listener

import (
	"fmt"
	"net"

	"golang.org/x/sys/unix"

	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/localsocket"
	"github.com/TizenTeam/sdb/packet"
	"github.com/TizenTeam/sdb/transport"
)

// Kind is a listener's purpose, tagging what an accepted socket becomes.
type Kind int

const (
	KindServer Kind = iota // server-control smart-sockets
	KindQemu                // qemu-control
	KindForward             // user port-forwards
)

// Listener is a bound TCP acceptor (§3 "Listener").
type Listener struct {
	LocalPort  int
	RemotePort string // "tcp:<port>" target for Kind == KindForward
	Kind       Kind
	Transport  *transport.Transport // non-owning; set for KindForward

	ln   *net.TCPListener
	fd   int
	quit chan struct{}

	reactor ioevent.Reactor
	pool    *packet.Pool

	// OnAccept is invoked for every accepted local socket after it is
	// wired up (its Kind already set appropriately); the listener owns
	// no further bookkeeping about the socket.
	OnAccept func(s *localsocket.Socket, l *Listener)
}

// Listen opens a TCP listener on localPort and starts its accept loop in
// a new goroutine. Accept uses the stdlib listener (not the reactor) since
// accept() is not itself a byte-stream fd the rest of the engine drains —
// only the sockets it produces are.
func Listen(localPort int, kind Kind, reactor ioevent.Reactor, pool *packet.Pool) (*Listener, error) {
	ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: localPort})
	if err != nil {
		return nil, fmt.Errorf("listener: listen on port %d: %w", localPort, err)
	}
	l := &Listener{
		LocalPort: localPort,
		Kind:      kind,
		ln:        ln,
		quit:      make(chan struct{}),
		reactor:   reactor,
		pool:      pool,
	}
	go l.acceptLoop()
	return l, nil
}

func (l *Listener) acceptLoop() {
	for {
		conn, err := l.ln.AcceptTCP()
		if err != nil {
			select {
			case <-l.quit:
				return
			default:
			}
			continue
		}
		l.accept(conn)
	}
}

// accept dups the accepted connection's fd off the listener goroutine,
// then hands socket creation and wiring to the loop goroutine via Post.
// localsocket.New arms the fd in epoll as its very first act, so creating
// the socket and running OnAccept (which sets Sink/table) must happen as
// one atomic step on the loop goroutine — otherwise the loop goroutine
// could deliver EPOLLIN for the new fd while this goroutine is still
// setting up Sink/table, racing with and possibly preceding that setup.
func (l *Listener) accept(conn *net.TCPConn) {
	fd, err := dupNonblockingFD(conn)
	conn.Close()
	if err != nil {
		return
	}

	kind := localsocket.KindSmartSocket
	switch l.Kind {
	case KindQemu:
		kind = localsocket.KindQemuControl
	case KindForward:
		kind = localsocket.KindTransportBound
	}

	l.reactor.Post(func() {
		s, err := localsocket.New(fd, kind, l.reactor, l.pool, nil)
		if err != nil {
			return
		}
		if l.OnAccept != nil {
			l.OnAccept(s, l)
		}
	})
}

// dupNonblockingFD takes over the raw fd behind a net.TCPConn, the way
// the pack's epoll reactors (gaio's watcher, the ublk queue runner) pull
// fds out of the runtime netpoller to manage with their own reactor.
func dupNonblockingFD(conn *net.TCPConn) (int, error) {
	rawConn, err := conn.SyscallConn()
	if err != nil {
		return -1, err
	}
	var fd int
	var dupErr error
	ctrlErr := rawConn.Control(func(ufd uintptr) {
		fd, dupErr = unix.Dup(int(ufd))
	})
	if ctrlErr != nil {
		return -1, ctrlErr
	}
	if dupErr != nil {
		return -1, dupErr
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Close stops accepting and closes the bound port. It does not touch
// sockets already handed off via OnAccept — close-fanout (run by the
// loop goroutine against the transport registry and listener list) is
// responsible for those. A second Close is a no-op.
func (l *Listener) Close() error {
	select {
	case <-l.quit:
		return nil
	default:
	}
	close(l.quit)
	return l.ln.Close()
}
