package guard

import (
	"context"
	"sync"

	"github.com/bpparchive/archive/internal/domain"
)

// InFlightGuard rejects a key while another holder of the same key has not
// released it yet. Used to refuse a second submission of the same import
// document while the first one is still uploading.
type InFlightGuard struct {
	mu     sync.Mutex
	active map[string]bool
}

// NewInFlightGuard creates an empty guard.
func NewInFlightGuard() *InFlightGuard {
	return &InFlightGuard{active: make(map[string]bool)}
}

// Acquire claims key. Callers must Release an allowed key when done.
func (g *InFlightGuard) Acquire(_ context.Context, key string) domain.GuardResult {
	if key == "" {
		return domain.GuardResult{Allowed: true}
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if g.active[key] {
		return domain.GuardResult{
			Allowed: false,
			Reason:  "an identical request is already being processed",
			Guard:   "in_flight",
		}
	}
	g.active[key] = true
	return domain.GuardResult{Allowed: true}
}

// Release frees key.
func (g *InFlightGuard) Release(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.active, key)
}
