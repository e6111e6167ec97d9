package localsocket

import (
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/packet"
)

func socketpair(t *testing.T) (a, b int) {
	t.Helper()
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		t.Fatalf("socketpair: %v", err)
	}
	for _, fd := range fds {
		if err := unix.SetNonblock(fd, true); err != nil {
			t.Fatalf("SetNonblock: %v", err)
		}
	}
	return fds[0], fds[1]
}

func TestDeviceTrackerDestroyedOnPeerClose(t *testing.T) {
	reactor, err := ioevent.NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer reactor.Close()
	go reactor.Run()

	a, b := socketpair(t)
	defer unix.Close(b)

	destroyed := make(chan struct{})
	s, err := New(a, KindDeviceTracker, reactor, packet.NewPool(0), func(*Socket) {
		close(destroyed)
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = s

	unix.Close(b) // peer closes its end

	select {
	case <-destroyed:
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for device-tracker socket to be destroyed")
	}
}

func TestSmartSocketFeedsSink(t *testing.T) {
	reactor, err := ioevent.NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer reactor.Close()
	go reactor.Run()

	a, b := socketpair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	fed := make(chan []byte, 1)
	sink := sinkFunc(func(data []byte) error {
		cp := append([]byte(nil), data...)
		fed <- cp
		return nil
	})

	s, err := New(a, KindSmartSocket, reactor, packet.NewPool(0), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s.Sink = sink

	if _, err := unix.Write(b, []byte("000cdevices")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case got := <-fed:
		if string(got) != "000cdevices" {
			t.Errorf("fed %q, want %q", got, "000cdevices")
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for sink feed")
	}
}

type sinkFunc func(data []byte) error

func (f sinkFunc) Feed(data []byte) error { return f(data) }

func TestEnqueueDrainsToFD(t *testing.T) {
	reactor, err := ioevent.NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer reactor.Close()
	go reactor.Run()

	a, b := socketpair(t)
	defer unix.Close(a)
	defer unix.Close(b)

	pool := packet.NewPool(0)
	s, err := New(a, KindTransportBound, reactor, pool, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	pkt, _ := pool.Get()
	payload := []byte("hello, device")
	copy(pkt.Payload[:], payload)
	pkt.Len = len(payload)
	s.Enqueue(pkt)

	buf := make([]byte, len(payload))
	deadline := time.Now().Add(3 * time.Second)
	total := 0
	for total < len(buf) && time.Now().Before(deadline) {
		n, err := unix.Read(b, buf[total:])
		if err != nil {
			if err == unix.EAGAIN {
				time.Sleep(10 * time.Millisecond)
				continue
			}
			t.Fatalf("read: %v", err)
		}
		total += n
	}
	if string(buf) != string(payload) {
		t.Errorf("drained %q, want %q", buf, payload)
	}
	if !s.QueueEmpty() {
		t.Error("expected queue to be empty after drain")
	}
}

func TestFrameConstantsSanity(t *testing.T) {
	// Guards against a typo turning WRTE/OKAY/CLSE into the same tag,
	// which would silently misroute every local-socket frame.
	tags := map[frame.Command]string{frame.WRTE: "WRTE", frame.OKAY: "OKAY", frame.CLSE: "CLSE"}
	if len(tags) != 3 {
		t.Fatalf("WRTE/OKAY/CLSE share a command value: %v", tags)
	}
	seen := map[frame.Command]bool{}
	for cmd := range tags {
		if seen[cmd] {
			t.Fatalf("duplicate command value %v", cmd)
		}
		seen[cmd] = true
	}
}
