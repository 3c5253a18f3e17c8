package puzzle

import (
	"sync"
	"time"
)

// Sync is a bounded-wait cell holding the latest grid snapshot.
//
// The UI publishes states as the solver types; the orchestrator asks
// for a fresh one before each turn and proceeds with the last-known
// snapshot if the UI does not answer in time.
type Sync struct {
	mu       sync.Mutex
	state    State
	hasState bool
	updated  chan struct{}

	// request nudges the UI to publish its current state. May be nil
	// in tests.
	request func()
}

// NewSync creates a cell. request is invoked by AwaitFresh to signal
// the UI.
func NewSync(request func()) *Sync {
	return &Sync{
		updated: make(chan struct{}),
		request: request,
	}
}

// Publish stores a new snapshot and wakes any waiter.
func (s *Sync) Publish(st State) {
	s.mu.Lock()
	s.state = st.Clone()
	s.hasState = true
	close(s.updated)
	s.updated = make(chan struct{})
	s.mu.Unlock()
}

// Latest returns the current snapshot, if any has ever been published.
func (s *Sync) Latest() (State, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone(), s.hasState
}

// AwaitFresh requests a new snapshot from the UI and waits up to
// timeout for it. The second value is false when the wait timed out
// and the returned state is the stale last-known one.
func (s *Sync) AwaitFresh(timeout time.Duration) (State, bool) {
	s.mu.Lock()
	wait := s.updated
	s.mu.Unlock()

	if s.request != nil {
		s.request()
	}

	select {
	case <-wait:
		st, _ := s.Latest()
		return st, true
	case <-time.After(timeout):
		st, _ := s.Latest()
		return st, false
	}
}
