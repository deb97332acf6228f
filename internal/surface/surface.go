// Package surface hands decoded frames to a presentation layer. It keeps only
// the latest frame and coalesces "surface changed" signals, so a slow reader
// never holds back the stream.
package surface

import (
	"sync"

	"github.com/pfischer54/rtsp-viewer/internal/media"
	"github.com/pfischer54/rtsp-viewer/internal/metrics"
)

// Surface holds the current frame of the active graph.
type Surface struct {
	mu       sync.RWMutex
	frame    *media.Frame
	gen      uint64
	frames   uint64
	watchers map[uint64]chan struct{}
	nextID   uint64
}

// New returns an empty surface.
func New() *Surface {
	return &Surface{watchers: make(map[uint64]chan struct{})}
}

// Publish replaces the current frame and signals every watcher. Called from
// engine streaming threads; it never blocks.
func (s *Surface) Publish(f media.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frame = &f
	s.gen++
	s.frames++
	metrics.SurfaceFramesTotal.Inc()

	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
			// a signal is already pending
		}
	}
}

// Current returns the latest frame. ok is false when no frame arrived since
// the last Reset.
func (s *Surface) Current() (media.Frame, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.frame == nil {
		return media.Frame{}, false
	}
	return *s.frame, true
}

// Generation increases with every published frame.
func (s *Surface) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.gen
}

// Frames returns how many frames were published over the surface's lifetime.
func (s *Surface) Frames() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frames
}

// Watch returns a channel signalled when the surface changes. Signals are
// coalesced: a watcher that falls behind sees one pending signal, then reads
// Current. cancel stops the signals; the channel is never closed.
func (s *Surface) Watch() (changed <-chan struct{}, cancel func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	ch := make(chan struct{}, 1)
	s.watchers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.watchers, id)
			s.mu.Unlock()
		})
	}
}

// Active reports whether anyone watches the surface. Frames are only copied
// out of the engine while this is true.
func (s *Surface) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.watchers) > 0
}

// Reset drops the current frame. A signal is sent so watchers observe that
// the surface is no longer valid.
func (s *Surface) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.frame == nil {
		return
	}
	s.frame = nil
	s.gen++

	for _, ch := range s.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}
