// Package qemu implements the one-shot UDP notification a QEMU-based
// emulator launcher sends to announce a new emulator instance, and the
// minimal "sync" control-channel command a qemu-control socket accepts in
// response (§6 "QEMU control port = local-transport port + 2").
package qemu

import (
	"fmt"
	"net"
)

// Notify sends the single UDP datagram "5\n<serial>\n" to host's qemu
// control port (the local-transport port plus 2), matching the original
// sdb server's notify_qemu.
func Notify(host string, localTransportPort int, serial string) error {
	addr := fmt.Sprintf("%s:%d", host, localTransportPort+2)
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("qemu: dial %s: %w", addr, err)
	}
	defer conn.Close()

	request := fmt.Sprintf("5\n%s\n", serial)
	if _, err := conn.Write([]byte(request)); err != nil {
		return fmt.Errorf("qemu: write notify to %s: %w", addr, err)
	}
	return nil
}
