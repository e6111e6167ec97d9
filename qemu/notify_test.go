package qemu

import (
	"net"
	"testing"
	"time"
)

func TestNotifySendsExpectedDatagram(t *testing.T) {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("ListenUDP: %v", err)
	}
	defer conn.Close()

	port := conn.LocalAddr().(*net.UDPAddr).Port
	if err := Notify("127.0.0.1", port-2, "abc123"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 64)
	n, _, err := conn.ReadFromUDP(buf)
	if err != nil {
		t.Fatalf("ReadFromUDP: %v", err)
	}
	got := string(buf[:n])
	want := "5\nabc123\n"
	if got != want {
		t.Errorf("datagram = %q, want %q", got, want)
	}
}
