// Package localsocket implements the host-side bidirectional byte-stream
// endpoint (§4.5): a socket bound to an OS fd, optionally paired with a
// remote stream id on a transport, with flow control and per-direction
// close. Every Socket is owned exclusively by the loop goroutine — the
// reader thread of whatever transport it is bound to never touches it
// directly, only posts packets through the transport's Handler.
package localsocket

import (
	"fmt"
	"sync/atomic"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"

	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/packet"
	"github.com/TizenTeam/sdb/transport"
)

// Status is the bit-set described in §3 "Local socket".
type Status uint32

const (
	NotifyPending Status = 1 << iota
	DeviceTracker
	RemoteBound
	QemuControl
)

// Kind distinguishes the unbound-socket behaviors §4.5's Readable case
// dispatches on, before a remote binding exists.
type Kind int

const (
	KindTransportBound Kind = iota
	KindSmartSocket
	KindQemuControl
	KindDeviceTracker
)

// RequestSink receives raw bytes read off an unbound smart-socket or
// qemu-control fd. Returning an error closes the socket.
type RequestSink interface {
	Feed(data []byte) error
}

var nextLocalID uint32

// NextLocalID mints a monotonically increasing 32-bit socket id, starting
// at 1 (§3 "minted monotonically from 1"). The top-bit-reserved high
// region for a future remote-device-bridging mode is the dormant scheme
// spec.md's Design Notes say not to implement; NextLocalID never sets
// that bit.
func NextLocalID() uint32 {
	return atomic.AddUint32(&nextLocalID, 1)
}

// Socket is one local logical byte-stream (§3 "Local socket").
type Socket struct {
	LocalID  uint32
	RemoteID uint32 // 0 until bound
	Kind     Kind

	fd      int
	reactor ioevent.Reactor
	pool    *packet.Pool

	Transport *transport.Transport // non-owning; nil until bound

	status    Status
	closing   bool
	destroyed bool

	pktList []*packet.Packet // FIFO awaiting drain to fd
	readArm bool
	wrtArm  bool

	Sink RequestSink // used while Kind is KindSmartSocket/KindQemuControl

	table     *Table
	onDestroy func(*Socket)
}

// AttachTable indexes this socket in t and arranges for it to be removed
// automatically when the socket is destroyed.
func (s *Socket) AttachTable(t *Table) {
	s.table = t
	t.Add(s)
}

// SetOnDestroy installs (or replaces) the callback run when the socket is
// destroyed, for callers that only learn what cleanup a socket needs after
// it has already been created (e.g. a device-tracker socket, which is
// distinguished from a plain smart-socket by the first request it sends).
func (s *Socket) SetOnDestroy(fn func(*Socket)) {
	s.onDestroy = fn
}

// New wraps an already-accepted, non-blocking fd as a Socket and
// registers it with the reactor for read readiness.
func New(fd int, kind Kind, reactor ioevent.Reactor, pool *packet.Pool, onDestroy func(*Socket)) (*Socket, error) {
	s := &Socket{
		LocalID:   NextLocalID(),
		Kind:      kind,
		fd:        fd,
		reactor:   reactor,
		pool:      pool,
		onDestroy: onDestroy,
	}
	if kind == KindDeviceTracker {
		s.status |= DeviceTracker
	}
	if kind == KindQemuControl {
		s.status |= QemuControl
	}

	if err := reactor.Register(fd, ioevent.Readable, s.onEvent); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("localsocket: register fd %d: %w", fd, err)
	}
	s.readArm = true
	return s, nil
}

func (s *Socket) Status() Status { return s.status }

// Bind attaches this socket to a transport and remote stream id, as done
// when an OKAY first arrives for a previously-unbound local socket
// (§4.4 "OKAY").
func (s *Socket) Bind(t *transport.Transport, remoteID uint32) {
	s.Transport = t
	s.RemoteID = remoteID
	s.status |= RemoteBound
	s.Kind = KindTransportBound
}

// Bound reports whether the socket has a remote stream id.
func (s *Socket) Bound() bool {
	return s.status&RemoteBound != 0
}

func (s *Socket) onEvent(fd int, mask ioevent.Mask) {
	if mask&ioevent.Writable != 0 {
		s.onWritable()
		if s.destroyed {
			return
		}
	}
	if mask&ioevent.Readable != 0 {
		s.onReadable()
	}
}

// Enqueue appends an inbound WRTE payload to the drain queue and arms
// writable interest. Called by daemon's WRTE handler.
func (s *Socket) Enqueue(pkt *packet.Packet) {
	s.pktList = append(s.pktList, pkt)
	s.armWritable()
}

// QueueEmpty reports whether the drain queue has fully flushed. The OKAY
// for an inbound WRTE is not decided here: onWritable sends it once the
// queue has drained.
func (s *Socket) QueueEmpty() bool {
	return len(s.pktList) == 0
}

func (s *Socket) armWritable() {
	if s.wrtArm {
		return
	}
	s.wrtArm = true
	s.reactor.Modify(s.fd, s.currentMask())
}

func (s *Socket) disarmWritable() {
	if !s.wrtArm {
		return
	}
	s.wrtArm = false
	s.reactor.Modify(s.fd, s.currentMask())
}

func (s *Socket) armReadable() {
	if s.readArm {
		return
	}
	s.readArm = true
	s.reactor.Modify(s.fd, s.currentMask())
}

func (s *Socket) disarmReadable() {
	if !s.readArm {
		return
	}
	s.readArm = false
	s.reactor.Modify(s.fd, s.currentMask())
}

func (s *Socket) currentMask() ioevent.Mask {
	var m ioevent.Mask
	if s.readArm {
		m |= ioevent.Readable
	}
	if s.wrtArm {
		m |= ioevent.Writable
	}
	return m
}

// onWritable drains pktList into the fd (§4.5 "Writable").
func (s *Socket) onWritable() {
	if s.destroyed {
		return
	}
	for len(s.pktList) > 0 {
		pkt := s.pktList[0]
		n, err := unix.Write(s.fd, pkt.Remaining())
		if n > 0 {
			pkt.Advance(n)
		}
		if err != nil {
			if err == unix.EAGAIN {
				return // fd reports would-block, stop draining for now
			}
			glog.V(1).Infof("localsocket %d: write error, closing: %v", s.LocalID, err)
			s.destroy()
			return
		}
		if pkt.Exhausted() {
			s.pktList = s.pktList[1:]
			s.pool.Put(pkt)
		}
	}

	// Fully drained.
	s.disarmWritable()
	if s.Bound() {
		s.emitOKAY()
	}
	if s.closing {
		s.destroy()
	}
}

// onReadable services an fd that reports readable (§4.5 "Readable").
func (s *Socket) onReadable() {
	if s.destroyed {
		return
	}
	if s.Kind == KindDeviceTracker {
		// Any readability on a device-tracker socket means the client
		// closed it from its side.
		s.destroy()
		return
	}

	if s.Kind == KindSmartSocket || s.Kind == KindQemuControl {
		buf := make([]byte, 4096)
		n, err := unix.Read(s.fd, buf)
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			s.destroy()
			return
		}
		if n == 0 {
			s.destroy()
			return
		}
		if s.Sink != nil {
			if err := s.Sink.Feed(buf[:n]); err != nil {
				glog.V(1).Infof("localsocket %d: request sink error: %v", s.LocalID, err)
				s.destroy()
			}
		}
		return
	}

	// Bound socket: frame bytes read off the fd into a WRTE.
	pkt, ok := s.pool.Get()
	if !ok {
		glog.Errorf("localsocket %d: packet pool exhausted on readable", s.LocalID)
		s.destroy()
		return
	}

	for {
		n, err := unix.Read(s.fd, pkt.Payload[:])
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			s.pool.Put(pkt)
			if err == unix.EAGAIN {
				return
			}
			s.closeAndNotifyPeer()
			return
		}
		if n == 0 {
			s.pool.Put(pkt)
			s.closeAndNotifyPeer()
			return
		}
		pkt.Len = n
		break
	}

	pkt.Message = frame.Message{Command: frame.WRTE, Arg0: s.LocalID, Arg1: s.RemoteID}
	frame.Encode(&pkt.Message, pkt.Payload[:pkt.Len])
	if err := s.Transport.WriteToRemote(pkt); err != nil {
		glog.Warningf("localsocket %d: WRTE write failed: %v", s.LocalID, err)
	}
	s.pool.Put(pkt)

	// Disable readable interest until the peer OKAYs (§4.5).
	s.disarmReadable()
}

func (s *Socket) emitOKAY() {
	var pkt packet.Packet
	pkt.Message = frame.Message{Command: frame.OKAY, Arg0: s.LocalID, Arg1: s.RemoteID}
	frame.Encode(&pkt.Message, nil)
	if err := s.Transport.WriteToRemote(&pkt); err != nil {
		glog.Warningf("localsocket %d: OKAY write failed: %v", s.LocalID, err)
	}
}

// PeerOKAY re-arms readable interest: the peer has signalled it can
// accept more WRTEs (§4.4 "OKAY": "mark the socket ready (resume
// reads)").
func (s *Socket) PeerOKAY() {
	s.armReadable()
}

// closeAndNotifyPeer handles EOF/error on a bound socket: emit CLSE if
// bound, then destroy (§4.5 "EOF / error").
func (s *Socket) closeAndNotifyPeer() {
	if s.Bound() {
		var pkt packet.Packet
		pkt.Message = frame.Message{Command: frame.CLSE, Arg0: s.LocalID, Arg1: s.RemoteID}
		frame.Encode(&pkt.Message, nil)
		if err := s.Transport.WriteToRemote(&pkt); err != nil {
			glog.V(1).Infof("localsocket %d: CLSE write failed: %v", s.LocalID, err)
		}
	}
	s.destroy()
}

// CloseLocally closes the socket in response to a peer-originated CLSE
// (§4.4 "CLSE"). It destroys the socket, bound or not, and sends no CLSE
// back.
func (s *Socket) CloseLocally() {
	s.destroy()
}

// RequestClose latches closing: destruction is deferred until pktList
// drains (§3 "closing" invariant, §4.5 "Writable": "If closing is
// latched and the queue is now empty, destroy").
func (s *Socket) RequestClose() {
	if s.closing {
		return
	}
	s.closing = true
	if len(s.pktList) == 0 {
		s.destroy()
	}
}

func (s *Socket) destroy() {
	if s.destroyed {
		return
	}
	s.destroyed = true
	s.reactor.Unregister(s.fd)
	unix.Close(s.fd)
	for _, pkt := range s.pktList {
		s.pool.Put(pkt)
	}
	s.pktList = nil
	if s.table != nil {
		s.table.Remove(s)
	}
	if s.onDestroy != nil {
		s.onDestroy(s)
	}
}

// FD exposes the underlying descriptor, for listeners tearing down
// forwards during close-fanout.
func (s *Socket) FD() int { return s.fd }
