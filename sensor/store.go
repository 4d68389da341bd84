package sensor

import (
	"sync"
	"time"
)

// Staleness defaults, in wall-clock time. The device rebroadcasts every few
// seconds, so five minutes of silence means the stream is gone.
const (
	DefaultStaleTimeout  = 5 * time.Minute
	DefaultCheckInterval = time.Minute
)

// Store holds the most recent valid reading. The periodic staleness check
// runs on a timer goroutine while decodes arrive on the transport's callback
// goroutine, so reading and updating (reading, lastUpdated) is one critical
// section.
type Store struct {
	mu      sync.Mutex
	reading *Reading
	updated time.Time
	stale   bool
	timeout time.Duration
}

func NewStore(timeout time.Duration) *Store {
	if timeout <= 0 {
		timeout = DefaultStaleTimeout
	}
	return &Store{timeout: timeout}
}

// Put replaces the current reading and clears any staleness condition.
func (s *Store) Put(r Reading) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reading = &r
	s.updated = r.Timestamp
	s.stale = false
}

// Current returns the last reading and its arrival time, or ok=false if no
// reading has ever arrived. Stale readings are still returned; staleness is
// flagged, not erased.
func (s *Store) Current() (r Reading, updated time.Time, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reading == nil {
		return Reading{}, time.Time{}, false
	}
	return *s.reading, s.updated, true
}

// Stale reports whether the last check found the reading overdue.
func (s *Store) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

// CheckStale compares now against the last update. It reports the elapsed
// duration and true when the reading is older than the timeout. A store that
// never received a reading is not stale.
func (s *Store) CheckStale(now time.Time) (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.reading == nil {
		return 0, false
	}
	elapsed := now.Sub(s.updated)
	if elapsed <= s.timeout {
		s.stale = false
		return elapsed, false
	}
	s.stale = true
	return elapsed, true
}
