package transport

import (
	"net"
	"testing"
	"time"

	"github.com/TizenTeam/sdb/endpoint"
	"github.com/TizenTeam/sdb/frame"
	"github.com/TizenTeam/sdb/ioevent"
	"github.com/TizenTeam/sdb/packet"
)

func TestParseCnxnPayload(t *testing.T) {
	cases := []struct {
		payload    string
		wantState  string
		wantName   string
		wantLocked bool
	}{
		{"device:serial123:myboard", "device", "myboard", false},
		{"device:serial123:myboard:1", "device", "myboard", true},
		{"offline", "offline", "", false},
		{"recovery::", "recovery", "", false},
	}
	for _, c := range cases {
		state, name, locked := ParseCnxnPayload([]byte(c.payload + "\x00"))
		if state != c.wantState || name != c.wantName || locked != c.wantLocked {
			t.Errorf("ParseCnxnPayload(%q) = (%q, %q, %v), want (%q, %q, %v)",
				c.payload, state, name, locked, c.wantState, c.wantName, c.wantLocked)
		}
	}
}

func TestStatArg0ToState(t *testing.T) {
	if s, ok := StatArg0ToState(0); !ok || s != Device {
		t.Errorf("StatArg0ToState(0) = (%v, %v), want (Device, true)", s, ok)
	}
	if s, ok := StatArg0ToState(1); !ok || s != PasswordLocked {
		t.Errorf("StatArg0ToState(1) = (%v, %v), want (PasswordLocked, true)", s, ok)
	}
	if _, ok := StatArg0ToState(99); ok {
		t.Errorf("StatArg0ToState(99) should be unrecognized")
	}
}

// recordingHandler records the command tag of every packet handed to it
// by the loop goroutine, in order, so tests can assert ordering.
type recordingHandler struct {
	commands chan frame.Command
}

func (h *recordingHandler) HandlePacket(tr *Transport, pkt *packet.Packet) {
	h.commands <- pkt.Message.Command
}

func TestReaderSendsHandshakeAndDrainsOnClose(t *testing.T) {
	reactor, err := ioevent.NewReactor()
	if err != nil {
		t.Fatalf("NewReactor: %v", err)
	}
	defer reactor.Close()
	go reactor.Run()

	hostConn, deviceConn := net.Pipe()
	defer deviceConn.Close()

	handler := &recordingHandler{commands: make(chan frame.Command, 4)}
	pool := packet.NewPool(0)
	ep := endpoint.NewTCPEndpoint(hostConn)
	tr := New("abc123", "dev0", OriginUSB, ep, reactor, handler, pool)
	tr.Register()

	// Read the host's initial CNXN handshake off the simulated device
	// side (§8 scenario 3).
	var hdr [frame.HeaderSize]byte
	if _, err := readFull(deviceConn, hdr[:]); err != nil {
		t.Fatalf("reading handshake header: %v", err)
	}
	m := frame.GetHeader(hdr[:])
	if m.Command != frame.CNXN {
		t.Fatalf("first frame command = %v, want CNXN", m.Command)
	}
	if m.Arg0 != frame.ProtocolVersion {
		t.Errorf("Arg0 = %#x, want %#x", m.Arg0, frame.ProtocolVersion)
	}
	if m.Arg1 != frame.MaxPayload {
		t.Errorf("Arg1 = %#x, want %#x", m.Arg1, frame.MaxPayload)
	}
	payload := make([]byte, m.DataLength)
	if _, err := readFull(deviceConn, payload); err != nil {
		t.Fatalf("reading handshake payload: %v", err)
	}
	if string(payload) != "host::\x00" {
		t.Errorf("handshake payload = %q, want %q", payload, "host::\x00")
	}

	// Closing the simulated device causes the reader to exit, drain, and
	// post TCLS.
	deviceConn.Close()

	select {
	case cmd := <-handler.commands:
		if cmd != frame.TCLS {
			t.Errorf("final posted command = %v, want TCLS", cmd)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for TCLS")
	}

	if !tr.Drained() {
		t.Errorf("transport should be drained (req=%d, res=%d)", tr.Req(), tr.Res())
	}
	if tr.State() != Offline {
		t.Errorf("state = %v, want Offline", tr.State())
	}
}

func readFull(conn net.Conn, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := conn.Read(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
