package kms

import (
	"os"
	"sync"
	"syscall"

	"github.com/1broseidon/swa/internal/reactor"
	"github.com/1broseidon/swa/internal/vt"
)

// session owns the VT hand-off. Signals arrive on a channel, are queued by
// a forwarding goroutine and handled inside Dispatch.
type session struct {
	d      *Display
	term   Terminal
	active bool
	quit   bool

	notifier    *reactor.Notifier
	stopSignals func()
	done        chan struct{}
	wg          sync.WaitGroup

	mu    sync.Mutex
	queue []os.Signal
}

func newSession(d *Display, term Terminal, signals <-chan os.Signal) (*session, error) {
	s := &session{d: d, term: term, active: true, done: make(chan struct{})}
	if signals == nil {
		return s, nil
	}
	n, err := d.reactor.NewNotifier(s.drain)
	if err != nil {
		return nil, err
	}
	s.notifier = n
	s.wg.Add(1)
	go s.forward(signals)
	return s, nil
}

func (s *session) forward(signals <-chan os.Signal) {
	defer s.wg.Done()
	for {
		select {
		case sig, ok := <-signals:
			if !ok {
				return
			}
			s.mu.Lock()
			s.queue = append(s.queue, sig)
			s.mu.Unlock()
			s.notifier.Notify()
		case <-s.done:
			return
		}
	}
}

func (s *session) drain() {
	s.mu.Lock()
	queue := s.queue
	s.queue = nil
	s.mu.Unlock()
	for _, sig := range queue {
		s.handle(sig)
	}
}

func (s *session) handle(sig os.Signal) {
	switch sig {
	case vt.ReleaseSignal:
		s.release()
	case vt.AcquireSignal:
		s.acquire()
	case syscall.SIGINT, syscall.SIGTERM:
		s.d.logger.Info("quit requested", "signal", sig)
		s.quit = true
	}
}

// release gives up the display. Windows learn about it before DRM master
// is dropped; the kernel revokes access as soon as the release is acked.
func (s *session) release() {
	if !s.active {
		if s.term != nil {
			s.term.AckRelease()
		}
		return
	}
	d := s.d
	d.logger.Debug("vt release")
	for _, w := range d.windows {
		w.listener.FireFocus(w, false)
	}
	d.seat.reset()
	if err := d.dev.DropMaster(); err != nil {
		d.logger.Warn("drop drm master", "error", err)
	}
	s.active = false
	if s.term != nil {
		if err := s.term.AckRelease(); err != nil {
			d.logger.Error("acknowledge vt release", "error", err)
		}
	}
}

// acquire takes the display back. Outputs are re-committed with a full
// modeset by the next draw of each window.
func (s *session) acquire() {
	if s.active {
		return
	}
	d := s.d
	d.logger.Debug("vt acquire")
	if s.term != nil {
		if err := s.term.AckAcquire(); err != nil {
			d.logger.Error("acknowledge vt acquire", "error", err)
		}
	}
	if err := d.dev.SetMaster(); err != nil {
		d.logger.Error("set drm master", "error", err)
		d.fatal = true
		return
	}
	d.seat.reset()
	s.active = true
	for _, o := range d.outputs {
		o.needsModeset = true
	}
	for _, w := range d.windows {
		w.restore()
	}
	for _, w := range d.windows {
		w.listener.FireFocus(w, true)
	}
}

// switchTo handles the Ctrl+Alt+Fn hotkeys.
func (s *session) switchTo(num int) {
	if s.term == nil || num == s.term.Number() {
		return
	}
	if err := s.term.Switch(num); err != nil {
		s.d.logger.Warn("switch vt", "vt", num, "error", err)
	}
}

func (s *session) close() {
	if s.stopSignals != nil {
		s.stopSignals()
	}
	close(s.done)
	s.wg.Wait()
	if s.notifier != nil {
		s.notifier.Close()
	}
	if s.term != nil {
		if err := s.term.Close(); err != nil {
			s.d.logger.Warn("restore vt", "error", err)
		}
	}
}
