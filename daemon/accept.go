package daemon

import (
	"fmt"

	"github.com/TizenTeam/sdb/listener"
	"github.com/TizenTeam/sdb/localsocket"
	"github.com/TizenTeam/sdb/qemu"
	"github.com/TizenTeam/sdb/smartsocket"
)

// ListenControl opens the server-control listener on d.ControlPort (§6,
// default 26099) and installs it into the listener set.
func (d *Daemon) ListenControl() error {
	l, err := listener.Listen(d.ControlPort, listener.KindServer, d.Reactor, d.Pool)
	if err != nil {
		return err
	}
	l.OnAccept = d.onServerAccept
	d.Listeners.Install(l)
	return nil
}

// ListenQemuControl opens a qemu-control listener at d.ScanBase+slot*10+2,
// one of up to slots candidate local-transport ports (§6 "scan base 26101
// with 10-port stride, up to 15 slots"). Binding failures are tolerated —
// most slots will be unused on any given host — except slot 0's, which is
// returned to the caller.
func (d *Daemon) ListenQemuControl(slots int) error {
	for slot := 0; slot < slots; slot++ {
		port := d.ScanBase + slot*10 + 2
		l, err := listener.Listen(port, listener.KindQemu, d.Reactor, d.Pool)
		if err != nil {
			if slot == 0 {
				return fmt.Errorf("daemon: qemu control listener: %w", err)
			}
			continue
		}
		l.OnAccept = d.onQemuAccept
		d.Listeners.Install(l)
	}
	return nil
}

func (d *Daemon) onServerAccept(s *localsocket.Socket, l *listener.Listener) {
	s.AttachTable(d.Sockets)
	sess := &session{}
	s.Sink = smartsocket.NewReader(func(req string) error {
		return d.dispatch(s, sess, req)
	})
}

func (d *Daemon) onQemuAccept(s *localsocket.Socket, l *listener.Listener) {
	s.AttachTable(d.Sockets)
	s.Sink = smartsocket.NewReader(func(req string) error {
		return d.dispatchQemuSync(s, req)
	})
}

func (d *Daemon) dispatchQemuSync(s *localsocket.Socket, req string) error {
	cmd, ok := qemu.ParseSync(req)
	if !ok {
		d.writeRaw(s, []byte("FAIL"))
		return nil
	}
	if t, found := d.Registry.FindBySerial(cmd.Serial); found && cmd.Suspended {
		t.Kick()
	}
	d.writeRaw(s, []byte("OKAY"))
	return nil
}
