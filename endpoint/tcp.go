package endpoint

import (
	"io"
	"net"
	"sync"

	"github.com/golang/glog"
)

// TCPEndpoint is a device endpoint backed by a TCP connection, used for
// emulators and for the "connect" host-scope command.
type TCPEndpoint struct {
	conn net.Conn

	once   sync.Once
	closed chan struct{}
}

// NewTCPEndpoint wraps an already-dialed or accepted TCP connection.
func NewTCPEndpoint(conn net.Conn) *TCPEndpoint {
	return &TCPEndpoint{conn: conn, closed: make(chan struct{})}
}

func (e *TCPEndpoint) ReadExact(buf []byte) error {
	_, err := io.ReadFull(e.conn, buf)
	if err != nil {
		glog.V(2).Infof("endpoint: tcp read from %s failed: %v", e.conn.RemoteAddr(), err)
	}
	return err
}

func (e *TCPEndpoint) WriteAll(buf []byte) error {
	_, err := e.conn.Write(buf)
	if err != nil {
		glog.V(2).Infof("endpoint: tcp write to %s failed: %v", e.conn.RemoteAddr(), err)
	}
	return err
}

// Kick closes the underlying connection, which unblocks any in-flight
// Read/Write with an error. Idempotent.
func (e *TCPEndpoint) Kick() {
	e.once.Do(func() {
		close(e.closed)
		e.conn.Close()
	})
}

func (e *TCPEndpoint) Close() error {
	e.Kick()
	return nil
}
