package schedule

import (
	"sync/atomic"
	"time"
)

// Store holds the current schedule snapshot. Replacement is atomic and
// reads are wait-free: a reader takes one snapshot pointer and uses it
// for the whole operation, unaffected by a concurrent Replace.
type Store struct {
	snap atomic.Pointer[Snapshot]
}

func NewStore() *Store {
	return &Store{}
}

// Snapshot returns the current snapshot, or nil before the first load.
func (s *Store) Snapshot() *Snapshot {
	return s.snap.Load()
}

// Replace installs a new snapshot. In-flight readers keep whatever
// snapshot they already hold.
func (s *Store) Replace(snap *Snapshot) {
	s.snap.Store(snap)
}

// LoadedAt returns the current snapshot's load time, or the zero time
// before the first load.
func (s *Store) LoadedAt() time.Time {
	snap := s.snap.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.loadedAt
}
