package quota

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analastock/internal/logging"
)

func TestAcquire_WithinBudgetProceedsImmediately(t *testing.T) {
	g := NewGovernor(map[string]Budget{
		"fetch": {Limit: 2, Window: time.Minute},
	}, logging.NewSilent())

	start := time.Now()
	require.NoError(t, g.Acquire(context.Background(), "fetch", 1))
	require.NoError(t, g.Acquire(context.Background(), "fetch", 1))
	assert.Less(t, time.Since(start), 50*time.Millisecond)

	st, ok := g.State("fetch")
	require.True(t, ok)
	assert.Equal(t, 2, st.Consumed)
}

func TestAcquire_ThirdCallSuspendsUntilWindowReset(t *testing.T) {
	window := 200 * time.Millisecond
	g := NewGovernor(map[string]Budget{
		"fetch": {Limit: 2, Window: window},
	}, logging.NewSilent())

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, g.Acquire(ctx, "fetch", 1))
	require.NoError(t, g.Acquire(ctx, "fetch", 1))

	// Third call must wait out the remainder of the window.
	require.NoError(t, g.Acquire(ctx, "fetch", 1))
	elapsed := time.Since(start)
	assert.GreaterOrEqual(t, elapsed, window-20*time.Millisecond)

	// The waiter landed in a fresh window with only its own consumption.
	st, ok := g.State("fetch")
	require.True(t, ok)
	assert.Equal(t, 1, st.Consumed)
}

func TestAcquire_WindowNeverExceedsLimit(t *testing.T) {
	window := 150 * time.Millisecond
	g := NewGovernor(map[string]Budget{
		"fetch": {Limit: 2, Window: window},
	}, logging.NewSilent())

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = g.Acquire(context.Background(), "fetch", 1)
			st, _ := g.State("fetch")
			assert.LessOrEqual(t, st.Consumed, 2)
		}()
	}
	wg.Wait()
}

func TestAcquire_UnknownProviderPassesThrough(t *testing.T) {
	g := NewGovernor(map[string]Budget{}, logging.NewSilent())

	start := time.Now()
	for i := 0; i < 100; i++ {
		require.NoError(t, g.Acquire(context.Background(), "anything", 1))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond)
}

func TestAcquire_CancelledWhileSuspended(t *testing.T) {
	g := NewGovernor(map[string]Budget{
		"fetch": {Limit: 1, Window: time.Hour},
	}, logging.NewSilent())

	require.NoError(t, g.Acquire(context.Background(), "fetch", 1))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- g.Acquire(ctx, "fetch", 1)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return after cancellation")
	}

	// The cancelled waiter consumed nothing.
	st, ok := g.State("fetch")
	require.True(t, ok)
	assert.Equal(t, 1, st.Consumed)
}

func TestAcquire_CostAboveLimitFails(t *testing.T) {
	g := NewGovernor(map[string]Budget{
		"fetch": {Limit: 2, Window: time.Minute},
	}, logging.NewSilent())

	err := g.Acquire(context.Background(), "fetch", 3)

	require.Error(t, err)
}
