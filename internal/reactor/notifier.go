package reactor

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Notifier lets another goroutine run a callback on the dispatching
// goroutine. Notifications sent before the callback runs are coalesced.
type Notifier struct {
	r      *Reactor
	fd     int
	mu     sync.RWMutex
	closed bool
}

func (r *Reactor) NewNotifier(fn func()) (*Notifier, error) {
	fd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	n := &Notifier{r: r, fd: fd}
	if err := r.Add(fd, Readable, func(uint32) {
		drain(fd)
		fn()
	}); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return n, nil
}

// Notify schedules the callback. Safe from any goroutine.
func (n *Notifier) Notify() {
	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		return
	}
	signal(n.fd)
}

// Close unregisters the notifier. Must be called on the dispatching goroutine.
func (n *Notifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return nil
	}
	n.closed = true
	if n.r.handlers != nil {
		_ = n.r.Remove(n.fd)
	}
	return unix.Close(n.fd)
}
