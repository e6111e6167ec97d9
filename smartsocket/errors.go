package smartsocket

// Host-scope failure strings, kept at the granularity of the original
// Tizen SDB's ERR_GENERAL_* vocabulary (original_source/src/sdb_messages.h)
// rather than collapsed to one generic "selection failed" string, per
// SPEC_FULL's "Supplemented features" note.
const (
	ErrTargetNotFound     = "target not found"
	ErrMoreThanOneTarget  = "more than one target"
	ErrMoreThanOneUSB     = "more than one usb target"
	ErrMoreThanOneLocal   = "more than one local target"
	ErrDeviceOffline      = "device offline"
	ErrDevicePasswordLock = "device password locked"
	ErrSerialAmbiguous    = "ambiguous serial prefix"
	ErrSerialNotFound     = "no device with that serial"
	ErrMalformedRequest   = "malformed request"
	ErrUnknownCommand     = "unknown command"
	ErrBadForwardSpec     = "forward spec must be tcp:<port>;tcp:<port>"
	ErrNoSuchForward      = "no such forward"
	ErrPortInUse          = "requested port is in use by a non-forward listener"
)
