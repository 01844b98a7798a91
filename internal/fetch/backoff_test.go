package fetch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPolicy_DelayMonotoneAndBounded(t *testing.T) {
	p := Policy{Base: time.Second, Max: 128 * time.Second, MaxAttempts: 10}

	prev := time.Duration(0)
	for attempt := 0; attempt <= 10; attempt++ {
		d := p.Delay(attempt)

		assert.GreaterOrEqual(t, d, prev, "delay must not decrease at attempt %d", attempt)
		assert.LessOrEqual(t, d, p.Max, "delay must not exceed the ceiling at attempt %d", attempt)

		if attempt < 7 {
			// Below the cap: doubling plus jitter under one base unit.
			floor := p.Base << uint(attempt)
			assert.GreaterOrEqual(t, d, floor)
			assert.Less(t, d, floor+p.Base)
		}
		prev = d
	}
}

func TestPolicy_DelaySaturatesAtMax(t *testing.T) {
	p := Policy{Base: time.Second, Max: 128 * time.Second, MaxAttempts: 40}

	assert.Equal(t, p.Max, p.Delay(8))
	assert.Equal(t, p.Max, p.Delay(20))
	assert.Equal(t, p.Max, p.Delay(35))
}

func TestPolicy_SmallBase(t *testing.T) {
	p := Policy{Base: time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 5}

	d := p.Delay(0)
	assert.GreaterOrEqual(t, d, time.Millisecond)
	assert.LessOrEqual(t, d, 2*time.Millisecond)

	assert.Equal(t, p.Max, p.Delay(6))
}
