package browser

import (
	"context"
	"sync"
	"time"
)

// networkTracker counts in-flight requests to detect when the network
// has settled after a navigation.
type networkTracker struct {
	mu           sync.Mutex
	inflight     map[string]struct{}
	lastActivity time.Time
	now          func() time.Time
}

func newNetworkTracker() *networkTracker {
	return &networkTracker{
		inflight:     map[string]struct{}{},
		lastActivity: time.Now(),
		now:          time.Now,
	}
}

func (n *networkTracker) started(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.inflight[id] = struct{}{}
	n.lastActivity = n.now()
}

func (n *networkTracker) finished(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.inflight[id]; !ok {
		return
	}
	delete(n.inflight, id)
	n.lastActivity = n.now()
}

// quietFor returns how long there have been no requests in flight.
func (n *networkTracker) quietFor() time.Duration {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.inflight) > 0 {
		return 0
	}
	return n.now().Sub(n.lastActivity)
}

// waitIdle blocks until no request has been in flight for quiet.
func (n *networkTracker) waitIdle(ctx context.Context, quiet time.Duration) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if n.quietFor() >= quiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
