// Package quota enforces per-provider call budgets over fixed wall-clock
// windows.
package quota

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Budget is one provider's call allowance per window.
type Budget struct {
	Limit  int
	Window time.Duration
}

// State is a point-in-time copy of one provider's window accounting.
type State struct {
	Budget      Budget
	Consumed    int
	WindowStart time.Time
}

type window struct {
	budget      Budget
	consumed    int
	windowStart time.Time
}

// Governor tracks call budgets per provider and suspends callers that would
// exceed them until the current window resets. It never rejects on quota,
// only delays. All counter mutation is serialized behind one mutex; fetch
// operations themselves may run concurrently around it.
type Governor struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	log     zerolog.Logger
}

// NewGovernor builds a governor from per-provider budgets. Providers without
// a budget pass through unhindered.
func NewGovernor(budgets map[string]Budget, log zerolog.Logger) *Governor {
	windows := make(map[string]*window, len(budgets))
	for name, b := range budgets {
		windows[name] = &window{budget: b}
	}
	return &Governor{
		windows: windows,
		now:     time.Now,
		log:     log.With().Str("component", "quota").Logger(),
	}
}

// Acquire consumes cost units of the provider's window budget, suspending
// until the window resets when the budget is exhausted. Returns early with
// the context's error on cancellation; nothing is consumed in that case.
// The suspension itself has no timeout.
func (g *Governor) Acquire(ctx context.Context, provider string, cost int) error {
	for {
		g.mu.Lock()
		w, ok := g.windows[provider]
		if !ok {
			g.mu.Unlock()
			return nil
		}
		if cost > w.budget.Limit {
			g.mu.Unlock()
			return fmt.Errorf("quota %s: cost %d exceeds window limit %d", provider, cost, w.budget.Limit)
		}

		now := g.now()
		if w.windowStart.IsZero() || now.Sub(w.windowStart) >= w.budget.Window {
			w.windowStart = now
			w.consumed = 0
		}
		if w.consumed+cost <= w.budget.Limit {
			w.consumed += cost
			g.mu.Unlock()
			return nil
		}
		wait := w.windowStart.Add(w.budget.Window).Sub(now)
		g.mu.Unlock()

		g.log.Debug().
			Str("provider", provider).
			Dur("wait", wait).
			Msg("window budget exhausted, waiting for reset")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// State returns a copy of the provider's current accounting, false when no
// budget is configured for it.
func (g *Governor) State(provider string) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	w, ok := g.windows[provider]
	if !ok {
		return State{}, false
	}
	return State{
		Budget:      w.budget,
		Consumed:    w.consumed,
		WindowStart: w.windowStart,
	}, true
}
