// Package idempotency gates duplicate rapid-fire user actions (double
// activation of the same control) behind a per-process claim window. The
// store's conditional writes remain the cross-process correctness guard;
// this only short-circuits re-execution of an action the same process
// already ran.
package idempotency

import (
	"sync"
	"time"
)

const (
	// DefaultWindow is how long a completed action key keeps answering
	// duplicates with the original outcome.
	DefaultWindow = 2 * time.Minute

	sweepInterval = time.Minute
)

type entry struct {
	seenAt   time.Time
	done     bool
	response any
}

type Guard struct {
	mu      sync.Mutex
	window  time.Duration
	entries map[string]entry
	stop    chan struct{}
	stopped chan struct{}

	now func() time.Time
}

func NewGuard(window time.Duration) *Guard {
	if window <= 0 {
		window = DefaultWindow
	}

	return &Guard{
		window:  window,
		entries: map[string]entry{},
		now:     time.Now,
	}
}

// Claim registers the action key. first reports whether this caller won the
// claim and should execute; duplicates get the recorded response and
// inFlight when the first execution has not completed yet.
func (g *Guard) Claim(key string) (first bool, response any, inFlight bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if existing, ok := g.entries[key]; ok && now.Sub(existing.seenAt) < g.window {
		return false, existing.response, !existing.done
	}

	g.entries[key] = entry{seenAt: now}
	return true, nil, false
}

// Complete records the outcome the winning caller produced so duplicates
// inside the window receive it without re-executing.
func (g *Guard) Complete(key string, response any) {
	g.mu.Lock()
	defer g.mu.Unlock()

	existing, ok := g.entries[key]
	if !ok {
		return
	}

	existing.done = true
	existing.response = response
	g.entries[key] = existing
}

// Release drops a claim whose execution failed, so the user's retry runs
// instead of replaying the failure.
func (g *Guard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.entries, key)
}

// StartJanitor sweeps expired entries until Stop is called.
func (g *Guard) StartJanitor() {
	g.mu.Lock()
	if g.stop != nil {
		g.mu.Unlock()
		return
	}
	g.stop = make(chan struct{})
	g.stopped = make(chan struct{})
	g.mu.Unlock()

	go func() {
		defer close(g.stopped)

		ticker := time.NewTicker(sweepInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				g.sweep()
			case <-g.stop:
				return
			}
		}
	}()
}

func (g *Guard) Stop() {
	g.mu.Lock()
	stop, stopped := g.stop, g.stopped
	g.stop, g.stopped = nil, nil
	g.mu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	<-stopped
}

func (g *Guard) sweep() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for key, existing := range g.entries {
		if now.Sub(existing.seenAt) >= g.window {
			delete(g.entries, key)
		}
	}
}
