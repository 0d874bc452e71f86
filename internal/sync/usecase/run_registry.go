package usecase

import "sync"

// RunRegistry tracks in-flight sync runs per user. At most one run per user
// at a time; a second trigger observes the running one instead of starting
// another. State is process-local.
type RunRegistry struct {
	mu      sync.Mutex
	running map[string]struct{}
}

func NewRunRegistry() *RunRegistry {
	return &RunRegistry{running: make(map[string]struct{})}
}

// TryAcquire reserves the user's sync slot, returning false if a run is
// already in flight
func (r *RunRegistry) TryAcquire(userID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.running[userID]; ok {
		return false
	}
	r.running[userID] = struct{}{}
	return true
}

// Release frees the user's sync slot
func (r *RunRegistry) Release(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, userID)
}
