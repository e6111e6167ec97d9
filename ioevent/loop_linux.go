//go:build linux

package ioevent

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/sys/unix"
)

// epollReactor is the Linux Reactor implementation: one epoll instance,
// one eventfd used as the wake-up descriptor, and a mutex-protected
// fd->callback table (the only inter-thread lock the loop itself needs;
// everything else it touches is loop-goroutine-owned, per spec §5).
type epollReactor struct {
	epfd   int
	wakeFd int

	mu        sync.Mutex
	callbacks map[int]Callback
	posted    []func()
	closed    bool
}

// NewReactor creates a Linux epoll-backed Reactor.
func NewReactor() (Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("ioevent: epoll_create1: %w", err)
	}
	wakeFd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("ioevent: eventfd: %w", err)
	}

	r := &epollReactor{
		epfd:      epfd,
		wakeFd:    wakeFd,
		callbacks: make(map[int]Callback),
	}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakeFd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(wakeFd),
	}); err != nil {
		unix.Close(epfd)
		unix.Close(wakeFd)
		return nil, fmt.Errorf("ioevent: epoll_ctl(wake): %w", err)
	}
	return r, nil
}

func toEpollEvents(m Mask) uint32 {
	var ev uint32
	if m&Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if m&Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	return ev
}

func (r *epollReactor) Register(fd int, mask Mask, cb Callback) error {
	r.mu.Lock()
	r.callbacks[fd] = cb
	r.mu.Unlock()

	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: toEpollEvents(mask),
		Fd:     int32(fd),
	})
}

func (r *epollReactor) Modify(fd int, mask Mask) error {
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_MOD, fd, &unix.EpollEvent{
		Events: toEpollEvents(mask),
		Fd:     int32(fd),
	})
}

func (r *epollReactor) Unregister(fd int) error {
	r.mu.Lock()
	delete(r.callbacks, fd)
	r.mu.Unlock()
	return unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil)
}

// Post appends fn to the posted-work queue and wakes the loop by writing
// a pointer-sized value to the eventfd, per spec §2's "wake-up pipe".
func (r *epollReactor) Post(fn func()) {
	r.mu.Lock()
	r.posted = append(r.posted, fn)
	r.mu.Unlock()

	var buf [8]byte
	buf[0] = 1
	if _, err := unix.Write(r.wakeFd, buf[:]); err != nil {
		glog.Warningf("ioevent: wake write failed: %v", err)
	}
}

func (r *epollReactor) drainWake() {
	var buf [8]byte
	for {
		_, err := unix.Read(r.wakeFd, buf[:])
		if err != nil {
			if err == unix.EAGAIN {
				return
			}
			return
		}
	}
}

func (r *epollReactor) runPosted() {
	r.mu.Lock()
	work := r.posted
	r.posted = nil
	r.mu.Unlock()

	for _, fn := range work {
		fn()
	}
}

func (r *epollReactor) Run() error {
	events := make([]unix.EpollEvent, 64)
	for {
		r.mu.Lock()
		closed := r.closed
		r.mu.Unlock()
		if closed {
			return nil
		}

		n, err := unix.EpollWait(r.epfd, events, -1)
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("ioevent: epoll_wait: %w", err)
		}

		for i := 0; i < n; i++ {
			ev := events[i]
			fd := int(ev.Fd)
			if fd == r.wakeFd {
				r.drainWake()
				r.runPosted()
				continue
			}

			var mask Mask
			if ev.Events&unix.EPOLLIN != 0 {
				mask |= Readable
			}
			if ev.Events&unix.EPOLLOUT != 0 {
				mask |= Writable
			}
			if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
				mask |= Readable | Writable
			}

			r.mu.Lock()
			cb := r.callbacks[fd]
			r.mu.Unlock()
			if cb != nil {
				cb(fd, mask)
			}
		}
	}
}

func (r *epollReactor) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()

	unix.Close(r.wakeFd)
	return unix.Close(r.epfd)
}
