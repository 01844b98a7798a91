package fetch

import (
	"math/rand"
	"time"
)

// Policy configures retry timing for transient fetch failures. The attempt
// counter is kept per gap span, never globally.
type Policy struct {
	Base        time.Duration
	Max         time.Duration
	MaxAttempts int
}

// DefaultPolicy matches the configuration defaults.
var DefaultPolicy = Policy{
	Base:        time.Second,
	Max:         128 * time.Second,
	MaxAttempts: 5,
}

// Delay returns the wait before the retry following failed attempt n
// (0-based): base doubled per attempt plus uniform jitter below base,
// truncated at Max. Delays are non-decreasing in n.
func (p Policy) Delay(attempt int) time.Duration {
	if attempt > 30 {
		return p.Max
	}
	d := p.Base << uint(attempt)
	if d <= 0 || d > p.Max {
		return p.Max
	}
	if p.Base > 0 {
		d += time.Duration(rand.Int63n(int64(p.Base)))
	}
	if d > p.Max {
		return p.Max
	}
	return d
}
