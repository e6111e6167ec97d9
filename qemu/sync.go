package qemu

import "strings"

// SyncCommand is a parsed "host:sync:<serial>:<0|1>" qemu-control request:
// the emulator telling the daemon its suspend/resume status (original
// sdb's sockets.c qemu_socket_enqueue; marked there as "not fully
// implemented" and kept equally minimal here — this daemon has no
// scheduling decision that depends on suspend state, so Suspended is
// surfaced for the caller to act on if it chooses).
type SyncCommand struct {
	Serial    string
	Suspended bool
}

// ParseSync parses the body of a qemu-control request (the bytes after the
// 4-hex length prefix has already been stripped by the shared smart-socket
// framing, per §4.5 "Readable": "If tagged qemu-control, parse a QEMU sync
// command").
func ParseSync(body string) (SyncCommand, bool) {
	const prefix = "host:sync:"
	if !strings.HasPrefix(body, prefix) {
		return SyncCommand{}, false
	}
	rest := body[len(prefix):]
	idx := strings.LastIndexByte(rest, ':')
	if idx < 0 {
		return SyncCommand{}, false
	}
	serial, flag := rest[:idx], rest[idx+1:]
	switch flag {
	case "0":
		return SyncCommand{Serial: serial, Suspended: false}, true
	case "1":
		return SyncCommand{Serial: serial, Suspended: true}, true
	}
	return SyncCommand{}, false
}
