package transport

// State is a transport's connection state, reported by get-state and
// included in device enumeration.
type State int

const (
	Offline State = iota
	WaitingForCnxn
	Device
	Bootloader
	Recovery
	Sideload
	PasswordLocked
	// HostProxy is a host-side-only state used for tests; no real device
	// ever reports it.
	HostProxy
	// Host is adopted when a CNXN banner's state token doesn't match any
	// known device state (§4.4: "unknown maps to host").
	Host
)

func (s State) String() string {
	switch s {
	case Offline:
		return "offline"
	case WaitingForCnxn:
		return "waiting-for-cnxn"
	case Device:
		return "device"
	case Bootloader:
		return "bootloader"
	case Recovery:
		return "recovery"
	case Sideload:
		return "sideload"
	case PasswordLocked:
		return "password-locked"
	case HostProxy:
		return "host-proxy"
	case Host:
		return "host"
	default:
		return "host"
	}
}

// ParseCnxnState maps the first token of a CNXN payload onto a State.
// An unrecognized token returns (Offline, false); the caller
// (daemon.handleCNXN) then adopts Host.
func ParseCnxnState(token string) (State, bool) {
	switch token {
	case "offline":
		return Offline, true
	case "device":
		return Device, true
	case "bootloader":
		return Bootloader, true
	case "recovery":
		return Recovery, true
	case "sideload":
		return Sideload, true
	}
	return Offline, false
}

// Origin is where a transport came from.
type Origin int

const (
	OriginUSB Origin = iota
	OriginLocal
	OriginConnect
	OriginAny
)

func (o Origin) String() string {
	switch o {
	case OriginUSB:
		return "usb"
	case OriginLocal:
		return "local"
	case OriginConnect:
		return "connect"
	default:
		return "any"
	}
}
