package smartsocket

import (
	"errors"

	"github.com/TizenTeam/sdb/registry"
	"github.com/TizenTeam/sdb/transport"
)

// AcquireOneTransport implements acquire_one_transport(kind, serial)
// (§4.7 "Transport selection policy").
func AcquireOneTransport(r *registry.Registry, kind registry.Kind, serial string) (*transport.Transport, error) {
	if serial != "" {
		t, ok := r.FindBySerial(serial)
		if !ok {
			return nil, errors.New(ErrTargetNotFound)
		}
		return t, nil
	}

	switch kind {
	case registry.KindAny:
		ts := r.FindByKind(registry.KindAny)
		if len(ts) != 1 {
			return nil, errors.New(ErrMoreThanOneTarget)
		}
		return ts[0], nil
	case registry.KindUSB:
		ts := r.FindByKind(registry.KindUSB)
		if len(ts) != 1 {
			return nil, errors.New(ErrMoreThanOneUSB)
		}
		return ts[0], nil
	case registry.KindLocal:
		ts := r.FindByKind(registry.KindLocal)
		if len(ts) != 1 {
			return nil, errors.New(ErrMoreThanOneLocal)
		}
		return ts[0], nil
	}
	return nil, errors.New(ErrUnknownCommand)
}

// CheckServiceable reports whether a selected transport can actually
// service a request: offline and password-locked transports are
// returned by AcquireOneTransport but fail here with a status-specific
// message (§4.7 "Offline or password-locked transports are returned but
// service attempts fail").
func CheckServiceable(t *transport.Transport) error {
	switch t.State() {
	case transport.Offline, transport.WaitingForCnxn:
		return errors.New(ErrDeviceOffline)
	case transport.PasswordLocked:
		return errors.New(ErrDevicePasswordLock)
	}
	return nil
}

// UniqueSerialMatch implements `serial-match:<prefix>` (§4.7): a unique
// prefix lookup across every registered serial. Ambiguous or missing
// matches are reported via ErrSerialAmbiguous / ErrSerialNotFound,
// matching the spec's "FAIL if ambiguous or missing."
func UniqueSerialMatch(r *registry.Registry, prefix string) (string, error) {
	var match string
	count := 0
	for _, t := range r.List() {
		if len(t.Serial) >= len(prefix) && t.Serial[:len(prefix)] == prefix {
			match = t.Serial
			count++
		}
	}
	switch count {
	case 0:
		return "", errors.New(ErrSerialNotFound)
	case 1:
		return match, nil
	default:
		return "", errors.New(ErrSerialAmbiguous)
	}
}
