package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrCoordinationTimeout means a waiter gave up before the in-flight peer
// released its key. Callers treat this as transient and retryable.
var ErrCoordinationTimeout = errors.New("ratelimit: coordination timeout")

type entry struct {
	inFlight  bool
	done      chan struct{}
	value     interface{}
	expiresAt time.Time
}

// Coordinator prevents redundant upstream calls (token refreshes and the
// like) when concurrent requests target the same key, and respects
// provider-declared cooldowns by caching the last successful result until
// its expiry.
//
// State is process-local and guarded by a single mutex. Running multiple
// instances of the service requires per-user stickiness or promoting this
// state to a shared store; see DESIGN.md.
type Coordinator struct {
	mu          sync.Mutex
	entries     map[string]*entry
	waitTimeout time.Duration
}

func NewCoordinator(waitTimeout time.Duration) *Coordinator {
	if waitTimeout <= 0 {
		waitTimeout = 5 * time.Second
	}
	return &Coordinator{
		entries:     make(map[string]*entry),
		waitTimeout: waitTimeout,
	}
}

// Acquire resolves a key to one of three outcomes:
//   - a cached, still-valid value (proceed=false, value set): use it as-is;
//   - permission to perform the upstream call (proceed=true): the caller
//     must follow up with Release or ReleaseErr;
//   - a bounded wait on an in-flight peer, re-resolving once it releases.
//
// A waiter that does not observe the in-flight flag clearing within the
// coordinator's wait window fails with ErrCoordinationTimeout instead of
// blocking indefinitely.
func (c *Coordinator) Acquire(ctx context.Context, key string) (value interface{}, proceed bool, err error) {
	deadline := time.NewTimer(c.waitTimeout)
	defer deadline.Stop()

	for {
		c.mu.Lock()
		e := c.entries[key]

		if e != nil && !e.inFlight {
			if e.value != nil && time.Now().Before(e.expiresAt) {
				v := e.value
				c.mu.Unlock()
				return v, false, nil
			}
			// Cooldown expired: evict and fall through to claim the key
			delete(c.entries, key)
			e = nil
		}

		if e == nil {
			c.entries[key] = &entry{inFlight: true, done: make(chan struct{})}
			c.mu.Unlock()
			return nil, true, nil
		}

		waitCh := e.done
		c.mu.Unlock()

		select {
		case <-waitCh:
			// Peer released; loop to pick up its result or claim the key
		case <-deadline.C:
			return nil, false, ErrCoordinationTimeout
		case <-ctx.Done():
			return nil, false, ctx.Err()
		}
	}
}

// Release clears the in-flight flag and caches the result until the given
// cooldown expires. A non-positive ttl caches nothing.
func (c *Coordinator) Release(key string, value interface{}, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil || !e.inFlight {
		return
	}
	close(e.done)
	if ttl > 0 && value != nil {
		c.entries[key] = &entry{value: value, expiresAt: time.Now().Add(ttl)}
	} else {
		delete(c.entries, key)
	}
}

// ReleaseErr clears the in-flight flag without caching anything, so the next
// caller retries the upstream call immediately
func (c *Coordinator) ReleaseErr(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e == nil || !e.inFlight {
		return
	}
	close(e.done)
	delete(c.entries, key)
}

// Invalidate drops any cached value for the key. An in-flight entry is left
// alone; its owner will release it.
func (c *Coordinator) Invalidate(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e := c.entries[key]
	if e != nil && !e.inFlight {
		delete(c.entries, key)
	}
}
