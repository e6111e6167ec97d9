package daemon

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/golang/glog"

	"github.com/TizenTeam/sdb/endpoint"
	"github.com/TizenTeam/sdb/localsocket"
	"github.com/TizenTeam/sdb/qemu"
	"github.com/TizenTeam/sdb/registry"
	"github.com/TizenTeam/sdb/retry"
	"github.com/TizenTeam/sdb/smartsocket"
	"github.com/TizenTeam/sdb/transport"
)

// smartSocketVersion is the protocol version `host:version` reports, kept
// distinct from frame.ProtocolVersion (the wire CNXN banner's version):
// this is the control-channel's own version, the way the original Tizen
// sdb server reports SDB_SERVER_VERSION rather than the device link's
// banner version.
const smartSocketVersion = 0x0020

// defaultConnectPort is used by `connect:<host>` when no port is given
// (§6 "default local-transport/emulator scan base 26101").
const defaultConnectPort = 26101

// reconnectInterval/reconnectMaxAttempts bound the backoff used to redial
// a `connect:`-origin transport after its link drops (§1 "TCP reconnects"
// is named as in-scope transport-state-machine behavior).
const (
	reconnectInterval    = 2 * time.Second
	reconnectMaxAttempts = 5
)

// reconnectTarget is what's needed to redial a dropped TCP transport:
// everything dialTransport originally took, remembered so handleTCLS can
// retry without the caller that issued `connect:` still being around.
type reconnectTarget struct {
	serial, name string
	origin       transport.Origin
	addr         string
}

func (d *Daemon) dispatchHostScope(s *localsocket.Socket, sess *session, command string) error {
	switch {
	case command == "devices":
		d.writeRaw(s, smartsocket.OKAY(registry.FormatList(d.Registry.List())))

	case command == "remote_emul":
		d.writeRaw(s, smartsocket.OKAY(registry.FormatList(d.Registry.FindByKind(registry.KindLocal))))

	case strings.HasPrefix(command, "connect:"):
		d.handleConnect(s, command[len("connect:"):])

	case strings.HasPrefix(command, "disconnect:"):
		d.handleDisconnect(s, command[len("disconnect:"):])

	case command == "kill":
		d.writeRaw(s, smartsocket.BareOKAY())
		d.Kill()

	case command == "version":
		d.writeRaw(s, smartsocket.OKAY([]byte(fmt.Sprintf("%04x", smartSocketVersion))))

	case strings.HasPrefix(command, "emulator:"):
		d.handleEmulatorAnnounce(s, command[len("emulator:"):])

	case command == "track-devices":
		d.handleTrackDevices(s)

	case strings.HasPrefix(command, "serial-match:"):
		d.handleSerialMatch(s, command[len("serial-match:"):])

	case strings.HasPrefix(command, "device_con:"):
		d.handleDeviceCon(s, command[len("device_con:"):])

	default:
		d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrUnknownCommand))
	}
	return nil
}

// dialTransport dials host:port, wraps it as a TCP endpoint, registers a
// transport for it under the given serial/name/origin, and returns it.
// Origin-connect transports (the `connect:` command) are remembered so
// handleTCLS can redial them automatically if the link later drops.
func (d *Daemon) dialTransport(serial, name string, origin transport.Origin, addr string) (*transport.Transport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	ep := endpoint.NewTCPEndpoint(conn)
	t := transport.New(serial, name, origin, ep, d.Reactor, d, d.Pool)
	d.RegisterTransport(t)

	if origin == transport.OriginConnect {
		d.mu.Lock()
		d.reconnect[t] = reconnectTarget{serial: serial, name: name, origin: origin, addr: addr}
		d.mu.Unlock()
	}
	return t, nil
}

// forgetReconnect drops t's reconnect registration, for the cases where a
// dropped link should stay dropped: an explicit `disconnect:` and daemon
// shutdown (the latter handled directly in handleTCLS via shuttingDown).
func (d *Daemon) forgetReconnect(t *transport.Transport) {
	d.mu.Lock()
	delete(d.reconnect, t)
	d.mu.Unlock()
}

// scheduleReconnect redials target in the background with a bounded
// backoff, registering a fresh transport under the same serial on success.
// It gives up silently (beyond a log line) once reconnectMaxAttempts is
// exhausted — there is no further state to report a lost TCP device has
// truly gone away.
func (d *Daemon) scheduleReconnect(target reconnectTarget) {
	go func() {
		backoff := retry.WithMaxRetries(retry.NewConstantBackoff(reconnectInterval), reconnectMaxAttempts)
		err := retry.Retry(context.Background(), backoff, func() error {
			_, err := d.dialTransport(target.serial, target.name, target.origin, target.addr)
			return err
		})
		if err != nil {
			glog.Warningf("daemon: giving up reconnecting to %s (%s): %v", target.serial, target.addr, err)
			return
		}
		glog.Infof("daemon: reconnected to %s (%s)", target.serial, target.addr)
	}()
}

// RegisterTransport adds t to the registry and starts its reader thread,
// always via the reactor so that the registry mutation (and the tracker
// broadcast it triggers) runs on the loop goroutine even when the caller
// is a background enumeration thread (e.g. USB hotplug) rather than an
// in-flight request handler.
func (d *Daemon) RegisterTransport(t *transport.Transport) {
	d.Reactor.Post(func() {
		d.Registry.Add(t)
		t.Register()
	})
}

func (d *Daemon) handleConnect(s *localsocket.Socket, arg string) {
	host, port := arg, defaultConnectPort
	if idx := strings.LastIndex(arg, ":"); idx >= 0 {
		if p, err := strconv.Atoi(arg[idx+1:]); err == nil {
			host = arg[:idx]
			port = p
		}
	}
	addr := fmt.Sprintf("%s:%d", host, port)
	serial := fmt.Sprintf("%s:%d", host, port)
	if _, err := d.dialTransport(serial, host, transport.OriginConnect, addr); err != nil {
		d.writeRaw(s, smartsocket.OKAY([]byte(fmt.Sprintf("failed to connect to %s: %v", addr, err))))
		return
	}
	d.writeRaw(s, smartsocket.OKAY([]byte(fmt.Sprintf("connected to %s", addr))))
}

func (d *Daemon) handleDisconnect(s *localsocket.Socket, serial string) {
	matched := 0
	for _, t := range d.Registry.FindByKind(registry.KindLocal) {
		if serial != "" && t.Serial != serial {
			continue
		}
		d.forgetReconnect(t)
		t.Kick()
		matched++
	}
	if serial != "" && matched == 0 {
		d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrTargetNotFound))
		return
	}
	d.writeRaw(s, smartsocket.OKAY([]byte(fmt.Sprintf("disconnected %d transport(s)", matched))))
}

func (d *Daemon) handleEmulatorAnnounce(s *localsocket.Socket, arg string) {
	port, name := arg, ""
	if idx := strings.IndexByte(arg, ','); idx >= 0 {
		port = arg[:idx]
		name = arg[idx+1:]
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrMalformedRequest))
		return
	}
	serial := fmt.Sprintf("emulator-%d", p)
	if name == "" {
		name = serial
	}
	addr := fmt.Sprintf("127.0.0.1:%d", p)
	if _, err := d.dialTransport(serial, name, transport.OriginLocal, addr); err != nil {
		d.writeRaw(s, smartsocket.FAIL(fmt.Sprintf("failed to reach emulator at %s: %v", addr, err)))
		return
	}
	// Best-effort: let the emulator's qemu-control socket know a host has
	// attached (§6 "QEMU control port = local-transport port + 2"). A
	// failure here doesn't undo the transport that's already up.
	if err := qemu.Notify("127.0.0.1", p, serial); err != nil {
		glog.V(2).Infof("daemon: qemu notify for %s failed: %v", serial, err)
	}
	d.writeRaw(s, smartsocket.BareOKAY())
}

func (d *Daemon) handleTrackDevices(s *localsocket.Socket) {
	d.writeRaw(s, smartsocket.OKAY(registry.FormatList(d.Registry.List())))
	tr := &trackerSocket{d: d, s: s}
	d.Registry.AddTracker(tr)
	s.SetOnDestroy(func(*localsocket.Socket) { d.Registry.RemoveTracker(tr) })
}

func (d *Daemon) handleSerialMatch(s *localsocket.Socket, prefix string) {
	match, err := smartsocket.UniqueSerialMatch(d.Registry, prefix)
	if err != nil {
		d.writeRaw(s, smartsocket.FAIL(err.Error()))
		return
	}
	d.writeRaw(s, smartsocket.OKAY([]byte(match)))
}

// handleDeviceCon implements device_con:<host>:<serial>, a minimal reading
// of the proxy helper the spec marks optional: treat it as a connect whose
// resulting transport is filed under the caller-supplied serial rather
// than a host:port-derived one.
func (d *Daemon) handleDeviceCon(s *localsocket.Socket, arg string) {
	idx := strings.LastIndex(arg, ":")
	if idx < 0 {
		d.writeRaw(s, smartsocket.FAIL(smartsocket.ErrMalformedRequest))
		return
	}
	host, serial := arg[:idx], arg[idx+1:]
	addr := fmt.Sprintf("%s:%d", host, defaultConnectPort)
	if _, err := d.dialTransport(serial, host, transport.OriginConnect, addr); err != nil {
		d.writeRaw(s, smartsocket.FAIL(fmt.Sprintf("failed to connect to %s: %v", addr, err)))
		return
	}
	d.writeRaw(s, smartsocket.BareOKAY())
}

// trackerSocket adapts a device-tracker local socket to registry.Tracker.
type trackerSocket struct {
	d *Daemon
	s *localsocket.Socket
}

func (t *trackerSocket) PushDeviceList(body []byte) {
	t.d.writeRaw(t.s, smartsocket.LengthPrefixed(body))
}
