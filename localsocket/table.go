package localsocket

import "sync"

// Table is the host-wide LocalID -> Socket index the loop goroutine uses
// to resolve a frame's arg1 to the local socket it targets (§4.4's
// "look up the local socket by arg1"), and that close-fanout walks to
// find every socket bound to a transport being torn down. Reads and
// writes only ever happen from the loop goroutine in normal operation,
// but the mutex makes Table safe to use from tests and from any other
// goroutine.
type Table struct {
	mu  sync.Mutex
	byID map[uint32]*Socket
}

// NewTable creates an empty socket table.
func NewTable() *Table {
	return &Table{byID: make(map[uint32]*Socket)}
}

// Add indexes a socket by its LocalID.
func (t *Table) Add(s *Socket) {
	t.mu.Lock()
	t.byID[s.LocalID] = s
	t.mu.Unlock()
}

// Remove drops a socket from the index.
func (t *Table) Remove(s *Socket) {
	t.mu.Lock()
	delete(t.byID, s.LocalID)
	t.mu.Unlock()
}

// Get looks up a socket by LocalID.
func (t *Table) Get(localID uint32) (*Socket, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.byID[localID]
	return s, ok
}

// All returns a snapshot slice of every tracked socket, for close-fanout.
func (t *Table) All() []*Socket {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]*Socket, 0, len(t.byID))
	for _, s := range t.byID {
		out = append(out, s)
	}
	return out
}
