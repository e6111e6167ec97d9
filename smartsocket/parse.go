package smartsocket

import (
	"strconv"
	"strings"

	"github.com/TizenTeam/sdb/registry"
)

// Selector identifies which transport a transport-scoped command targets
// (§4.7's acquire_one_transport inputs).
type Selector struct {
	Kind   registry.Kind
	Serial string
}

// ParsedRequest is the result of splitting a request into an optional
// transport selector and the command to run against it.
type ParsedRequest struct {
	// Scoped is false for a bare host-scope command (devices, version,
	// connect:..., kill, ...), which carries no transport prefix at all.
	Scoped   bool
	Selector Selector
	// Command is the remainder after the selector prefix has been
	// stripped (e.g. "forward:tcp:9999;tcp:8888", "get-state",
	// "transport-any").
	Command string
}

// ParseRequest splits a smart-socket request into its transport selector
// (if any) and remaining command, per §4.7:
//
//	host-serial:<id>:<command>
//	host-usb:<command>
//	host-local:<command>
//	host:transport(-any|-usb|-local|:<id>)
//	host:<host-scope command>  (unscoped; "host:" is stripped)
//	<bare host-scope command>
func ParseRequest(req string) ParsedRequest {
	switch {
	case strings.HasPrefix(req, "host-serial:"):
		rest := req[len("host-serial:"):]
		idx := strings.IndexByte(rest, ':')
		if idx < 0 {
			return ParsedRequest{Scoped: true, Selector: Selector{Serial: rest}}
		}
		return ParsedRequest{Scoped: true, Selector: Selector{Serial: rest[:idx]}, Command: rest[idx+1:]}

	case strings.HasPrefix(req, "host-usb:"):
		return ParsedRequest{Scoped: true, Selector: Selector{Kind: registry.KindUSB}, Command: req[len("host-usb:"):]}

	case strings.HasPrefix(req, "host-local:"):
		return ParsedRequest{Scoped: true, Selector: Selector{Kind: registry.KindLocal}, Command: req[len("host-local:"):]}

	case strings.HasPrefix(req, "host:"):
		command := req[len("host:"):]
		if sel, ok := parseTransportToken(command); ok {
			return ParsedRequest{Scoped: true, Selector: sel, Command: "transport"}
		}
		return ParsedRequest{Scoped: false, Command: command}
	}

	return ParsedRequest{Scoped: false, Command: req}
}

// parseTransportToken parses "transport(-any|-usb|-local|:<id>)" into a
// Selector, used both for the "host:transport..." shorthand and for the
// bind command reached via another selector prefix.
func parseTransportToken(token string) (Selector, bool) {
	switch {
	case token == "transport-any":
		return Selector{Kind: registry.KindAny}, true
	case token == "transport-usb":
		return Selector{Kind: registry.KindUSB}, true
	case token == "transport-local":
		return Selector{Kind: registry.KindLocal}, true
	case strings.HasPrefix(token, "transport:"):
		return Selector{Serial: token[len("transport:"):]}, true
	}
	return Selector{}, false
}

// IsTransportBindCommand reports whether a scoped request's Command is
// itself a bind-transport directive (as opposed to get-state, forward,
// etc.), handling both "host:transport-any"-shorthand requests (where
// ParseRequest already resolved Command to the literal string
// "transport") and requests like "host-usb:transport-usb" reached via an
// explicit selector prefix.
func IsTransportBindCommand(command string) bool {
	if command == "transport" {
		return true
	}
	_, ok := parseTransportToken(command)
	return ok
}

// ForwardSpec is a parsed "forward:<local>;<remote>" or
// "killforward:<local>;<remote>" command (§4.7). Both sides must be
// "tcp:<port>".
type ForwardSpec struct {
	LocalPort  int
	RemotePort int
}

// ParseForward parses the argument of a forward/killforward command
// (the part after the leading "forward:"/"killforward:").
func ParseForward(arg string) (ForwardSpec, bool) {
	parts := strings.SplitN(arg, ";", 2)
	if len(parts) != 2 {
		return ForwardSpec{}, false
	}
	local, ok1 := parseTCPPort(parts[0])
	remote, ok2 := parseTCPPort(parts[1])
	if !ok1 || !ok2 {
		return ForwardSpec{}, false
	}
	return ForwardSpec{LocalPort: local, RemotePort: remote}, true
}

func parseTCPPort(s string) (int, bool) {
	if !strings.HasPrefix(s, "tcp:") {
		return 0, false
	}
	n, err := strconv.Atoi(s[len("tcp:"):])
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
