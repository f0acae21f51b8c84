package watcher

import (
	"sync"
	"time"
)

// Settler delays per-path notification until the path has been quiet
// for the settle window. Rapid successive writes, as seen while a file
// is still being copied into the upload directory, keep resetting the
// timer so the file surfaces only once it is complete.
type Settler struct {
	window time.Duration

	mu      sync.Mutex
	gen     uint64
	pending map[string]*pendingTimer
	settled chan string
	stopCh  chan struct{}
	stopped bool
}

// pendingTimer is one armed settle timer. The generation distinguishes
// the currently installed timer from an earlier one for the same path
// whose fire is already in flight.
type pendingTimer struct {
	timer *time.Timer
	gen   uint64
}

// NewSettler creates a settler with the given quiet window.
func NewSettler(window time.Duration) *Settler {
	return &Settler{
		window:  window,
		pending: make(map[string]*pendingTimer),
		settled: make(chan string, 256),
		stopCh:  make(chan struct{}),
	}
}

// Touch registers activity on a path, starting or resetting its timer.
func (s *Settler) Touch(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}

	if p, exists := s.pending[path]; exists {
		p.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.pending[path] = &pendingTimer{
		gen: gen,
		timer: time.AfterFunc(s.window, func() {
			s.emit(path, gen)
		}),
	}
}

// Forget drops a pending path without emitting it. Used when a file is
// removed before it settles.
func (s *Settler) Forget(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p, exists := s.pending[path]; exists {
		p.timer.Stop()
		delete(s.pending, path)
	}
}

// Settled returns the channel of paths whose settle window has passed.
func (s *Settler) Settled() <-chan string {
	return s.settled
}

// Stop cancels all pending timers and closes the settled channel.
func (s *Settler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	for path, p := range s.pending {
		p.timer.Stop()
		delete(s.pending, path)
	}
	s.mu.Unlock()

	close(s.stopCh)
	close(s.settled)
}

// emit delivers a settled path. A late fire from a stopped or
// superseded timer is a no-op: the pending entry must still carry the
// firing timer's generation, so only the currently installed timer can
// deliver and a Touch during the fire keeps the full quiet window.
func (s *Settler) emit(path string, gen uint64) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	p, exists := s.pending[path]
	if !exists || p.gen != gen {
		s.mu.Unlock()
		return
	}
	delete(s.pending, path)
	s.mu.Unlock()

	select {
	case s.settled <- path:
	case <-s.stopCh:
	}
}

// PendingCount returns the number of pending paths (for testing).
func (s *Settler) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
