// Package reactor multiplexes file descriptors on a single goroutine with
// epoll.
package reactor

import (
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

const (
	Readable = unix.EPOLLIN
	Writable = unix.EPOLLOUT
	HangUp   = unix.EPOLLHUP | unix.EPOLLERR
)

// Handler is called on the dispatching goroutine with the ready epoll event mask.
type Handler func(events uint32)

// Reactor is an epoll-based event loop. Everything except Wakeup and
// Notifier.Notify must be called from the dispatching goroutine.
type Reactor struct {
	epfd     int
	wakefd   int
	handlers map[int32]Handler
	deferred []func()
	events   []unix.EpollEvent

	// mu keeps Wakeup from writing to wakefd while Close releases it.
	mu     sync.RWMutex
	closed bool
}

func New() (*Reactor, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}

	r := &Reactor{
		epfd:     epfd,
		wakefd:   wakefd,
		handlers: make(map[int32]Handler),
		events:   make([]unix.EpollEvent, 32),
	}
	if err := r.Add(wakefd, Readable, func(uint32) { drain(wakefd) }); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, err
	}
	return r, nil
}

// Add registers fd. The reactor does not take ownership of fd.
func (r *Reactor) Add(fd int, events uint32, h Handler) error {
	ev := unix.EpollEvent{Events: events, Fd: int32(fd)}
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return fmt.Errorf("epoll add fd %d: %w", fd, err)
	}
	r.handlers[int32(fd)] = h
	return nil
}

// Remove unregisters fd. Pending events for fd in the current dispatch
// round are dropped.
func (r *Reactor) Remove(fd int) error {
	delete(r.handlers, int32(fd))
	if err := unix.EpollCtl(r.epfd, unix.EPOLL_CTL_DEL, fd, nil); err != nil {
		return fmt.Errorf("epoll del fd %d: %w", fd, err)
	}
	return nil
}

// Defer queues fn to run at the start of the next Dispatch. A queued call
// keeps the next Dispatch from blocking.
func (r *Reactor) Defer(fn func()) {
	r.deferred = append(r.deferred, fn)
}

// Pending reports whether deferred calls are queued.
func (r *Reactor) Pending() bool { return len(r.deferred) > 0 }

// Wakeup makes a blocked Dispatch return. Safe from any goroutine.
func (r *Reactor) Wakeup() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return
	}
	signal(r.wakefd)
}

// Dispatch runs deferred calls, then waits for ready descriptors and runs
// their handlers. It blocks only when block is set and nothing was
// deferred. It returns the number of handlers run.
func (r *Reactor) Dispatch(block bool) (int, error) {
	ran := r.runDeferred()

	timeout := 0
	if block && ran == 0 {
		timeout = -1
	}

	n, err := unix.EpollWait(r.epfd, r.events, timeout)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return ran, nil
		}
		return ran, fmt.Errorf("epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		ev := r.events[i]
		h, ok := r.handlers[ev.Fd]
		if !ok {
			continue
		}
		h(ev.Events)
		ran++
	}
	if n == len(r.events) {
		r.events = make([]unix.EpollEvent, 2*n)
	}
	return ran, nil
}

func (r *Reactor) runDeferred() int {
	queue := r.deferred
	r.deferred = nil
	for _, fn := range queue {
		fn()
	}
	return len(queue)
}

func (r *Reactor) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	err := errors.Join(unix.Close(r.wakefd), unix.Close(r.epfd))
	r.handlers = nil
	r.deferred = nil
	return err
}

func signal(fd int) {
	var buf [8]byte
	buf[0] = 1
	// EAGAIN means the counter is saturated, which still wakes the reader.
	_, _ = unix.Write(fd, buf[:])
}

func drain(fd int) {
	var buf [8]byte
	_, _ = unix.Read(fd, buf[:])
}
