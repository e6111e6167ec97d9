// Package ioevent is the platform-neutral readiness loop (§4.9): every
// tracked fd has a callback invoked when it becomes readable/writable, and
// a wake-up descriptor lets other goroutines post work onto the loop
// goroutine. All local-socket callbacks and all inbound-packet dispatch
// run here, single-threaded and cooperative — each callback must be
// bounded, matching the "loop thread" of spec §5.
//
// The reactor itself (loop_linux.go) is a thin epoll wrapper in the style
// of the pack's epoll/io_uring reactors (gaio's watcher, the ublk queue
// runner): Go's runtime netpoller already does this for plain net.Conn,
// but the spec calls for an explicit fd-keyed callback table so that
// local sockets, the wake-up descriptor, and (on the USB side) non-socket
// fds can share one dispatch loop.
package ioevent

// Mask is a bitset of readiness conditions.
type Mask uint32

const (
	Readable Mask = 1 << iota
	Writable
)

// Callback is invoked from the loop goroutine with the readiness bits
// that fired. It must not block.
type Callback func(fd int, mask Mask)

// Reactor is the capability the Design Notes ask for:
// {register(fd, mask), modify(fd, mask), unregister(fd), wake(), run()}.
type Reactor interface {
	Register(fd int, mask Mask, cb Callback) error
	Modify(fd int, mask Mask) error
	Unregister(fd int) error
	// Post schedules fn to run on the loop goroutine, waking it if it is
	// blocked in Run. Safe to call from any goroutine.
	Post(fn func())
	// Run blocks, dispatching readiness events and posted work until
	// Close is called.
	Run() error
	Close() error
}
