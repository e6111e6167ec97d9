// Package registry is the thread-safe collection of live transports
// (§4.8): add, remove, lookup by serial or kind, and change notification
// to device trackers.
package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/TizenTeam/sdb/transport"
)

// Tracker receives a formatted device list whenever the registry
// changes. Local sockets tagged device-tracker implement this.
type Tracker interface {
	PushDeviceList(body []byte)
}

// Registry is the mutex-protected transport collection (§4.8). This is
// the one lock the spec exposes outside the loop goroutine (§5).
type Registry struct {
	mu         sync.Mutex
	transports map[string]*transport.Transport
	trackers   map[Tracker]struct{}
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		transports: make(map[string]*transport.Transport),
		trackers:   make(map[Tracker]struct{}),
	}
}

// Add registers a transport, keyed by serial. A prior transport with the
// same serial, if any, is simply overwritten in the map — its own
// teardown is the caller's responsibility (the spec's close-fanout runs
// against whichever transport pointer a socket/listener still holds).
func (r *Registry) Add(t *transport.Transport) {
	r.mu.Lock()
	r.transports[t.Serial] = t
	r.mu.Unlock()
	r.BroadcastChanged()
}

// Remove unregisters a transport by serial, only if the pointer matches
// (guards against removing a transport that was already replaced).
func (r *Registry) Remove(t *transport.Transport) {
	r.mu.Lock()
	if cur, ok := r.transports[t.Serial]; ok && cur == t {
		delete(r.transports, t.Serial)
	}
	r.mu.Unlock()
	r.BroadcastChanged()
}

// FindBySerial returns the transport with the given serial, if any.
func (r *Registry) FindBySerial(serial string) (*transport.Transport, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.transports[serial]
	return t, ok
}

// Kind selects a transport population by origin for acquire_one_transport
// (§4.7).
type Kind int

const (
	KindAny Kind = iota
	KindUSB
	KindLocal
)

// FindByKind returns every transport matching kind (KindAny matches all).
func (r *Registry) FindByKind(kind Kind) []*transport.Transport {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []*transport.Transport
	for _, t := range r.transports {
		switch kind {
		case KindUSB:
			if t.Origin != transport.OriginUSB {
				continue
			}
		case KindLocal:
			if t.Origin != transport.OriginLocal && t.Origin != transport.OriginConnect {
				continue
			}
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Serial < out[j].Serial })
	return out
}

// List returns every registered transport, sorted by serial.
func (r *Registry) List() []*transport.Transport {
	return r.FindByKind(KindAny)
}

// FormatList renders the registry as fixed-width "<serial>\t<state>\t<name>\n"
// lines used by `devices`, `remote_emul`, and device-tracker pushes (§4.8,
// §8 scenario 2), matching the original's
// snprintf(p, end-p, "%-20s\t%-10s\t%s\n", serial, state, devicename).
func FormatList(transports []*transport.Transport) []byte {
	var out []byte
	for _, t := range transports {
		out = append(out, []byte(fmt.Sprintf("%-20s\t%-10s\t%s\n", t.Serial, t.State(), t.Name))...)
	}
	return out
}

// AddTracker registers a device-tracker socket to receive future pushes.
func (r *Registry) AddTracker(tr Tracker) {
	r.mu.Lock()
	r.trackers[tr] = struct{}{}
	r.mu.Unlock()
}

// RemoveTracker unregisters a device-tracker socket, typically on close.
func (r *Registry) RemoveTracker(tr Tracker) {
	r.mu.Lock()
	delete(r.trackers, tr)
	r.mu.Unlock()
}

// BroadcastChanged pushes the current device list to every tracker.
// Called on every add/remove/state-change (§3 "Registry").
func (r *Registry) BroadcastChanged() {
	body := FormatList(r.List())

	r.mu.Lock()
	trackers := make([]Tracker, 0, len(r.trackers))
	for tr := range r.trackers {
		trackers = append(trackers, tr)
	}
	r.mu.Unlock()

	for _, tr := range trackers {
		tr.PushDeviceList(body)
	}
}
