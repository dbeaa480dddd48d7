package memory

import (
	"context"
	"sync"
	"time"
)

// ConfirmationGuard claims idempotency keys in process memory for ttl. It
// stands in for the Redis store when sessions are kept in memory.
type ConfirmationGuard struct {
	mu     sync.Mutex
	claims map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func NewConfirmationGuard(ttl time.Duration) *ConfirmationGuard {
	return &ConfirmationGuard{
		claims: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Seen claims key and reports whether a live claim already existed.
func (g *ConfirmationGuard) Seen(ctx context.Context, key string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	if at, ok := g.claims[key]; ok && now.Sub(at) <= g.ttl {
		return true, nil
	}
	g.claims[key] = now
	return false, nil
}

func (g *ConfirmationGuard) Release(ctx context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	delete(g.claims, key)
	return nil
}

// Sweep drops expired claims and reports how many were removed.
func (g *ConfirmationGuard) Sweep() int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	now := g.now()
	for k, at := range g.claims {
		if now.Sub(at) > g.ttl {
			delete(g.claims, k)
			n++
		}
	}
	return n
}
