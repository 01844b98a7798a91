package refresh

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analastock/internal/fetch"
	"analastock/internal/logging"
	"analastock/internal/model"
	"analastock/internal/quota"
	"analastock/internal/store"
)

type countingProvider struct {
	fetch.Provider
	calls atomic.Int64
}

func (c *countingProvider) Fetch(ctx context.Context, symbol string, span model.Span) fetch.Outcome {
	c.calls.Add(1)
	return c.Provider.Fetch(ctx, symbol, span)
}

func newTestDaemon(st Store, provider fetch.Provider, now time.Time) *Daemon {
	gov := quota.NewGovernor(nil, logging.NewSilent())
	policy := fetch.Policy{Base: time.Millisecond, Max: 4 * time.Millisecond, MaxAttempts: 3}
	sched := fetch.NewScheduler(provider, gov, policy, 0, logging.NewSilent())
	d := NewDaemon(st, sched, logging.NewSilent())
	d.now = func() time.Time { return now }
	return d
}

func weekdayRecords(start, end time.Time) []model.Record {
	var recs []model.Record
	for d := start; d.Before(end); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		recs = append(recs, model.Record{
			Date: d, Open: 100, High: 101, Low: 99, Close: 100.5, AdjClose: 100.2, Volume: 1000,
		})
	}
	return recs
}

func seed(t *testing.T, st Store, symbol string, span model.Span) {
	t.Helper()
	require.NoError(t, st.WriteRecords(context.Background(), symbol, span,
		weekdayRecords(span.Start, span.End)))
}

func TestRunOnceExtendsStaleSymbol(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, "IBM", model.Span{Start: model.Date(2022, time.January, 1), End: model.Date(2022, time.March, 1)})

	now := model.Date(2022, time.July, 1).Add(15 * time.Hour)
	d := newTestDaemon(st, fetch.NewSampleProvider(), now)
	d.RunOnce(ctx)

	spans, err := st.ReadSpans(ctx, "IBM")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.True(t, model.Span{
		Start: model.Date(2022, time.January, 1),
		End:   model.Date(2022, time.July, 1),
	}.Equal(spans[0]), "got %s", spans[0])

	recs, err := st.ReadRecords(ctx, "IBM",
		model.Span{Start: model.Date(2022, time.March, 1), End: model.Date(2022, time.July, 1)})
	require.NoError(t, err)
	assert.NotEmpty(t, recs)
}

func TestRunOnceSkipsCurrentSymbol(t *testing.T) {
	st := store.NewMemoryStore()
	seed(t, st, "IBM", model.Span{Start: model.Date(2022, time.January, 1), End: model.Date(2022, time.July, 1)})

	provider := &countingProvider{Provider: fetch.NewSampleProvider()}
	d := newTestDaemon(st, provider, model.Date(2022, time.July, 1))
	d.RunOnce(context.Background())

	assert.Zero(t, provider.calls.Load(), "a current symbol needs no provider call")
}

func TestRunOncePartialCoverageAdvancesOnlyCovered(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	seed(t, st, "DLST", model.Span{Start: model.Date(2022, time.January, 1), End: model.Date(2022, time.March, 1)})

	provider := fetch.NewSampleProvider()
	provider.Listed = map[string]model.Span{
		"DLST": {Start: model.Date(2010, time.January, 1), End: model.Date(2022, time.June, 1)},
	}
	d := newTestDaemon(st, provider, model.Date(2022, time.July, 1))
	d.RunOnce(ctx)

	spans, err := st.ReadSpans(ctx, "DLST")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.True(t, model.Span{
		Start: model.Date(2022, time.January, 1),
		End:   model.Date(2022, time.June, 1),
	}.Equal(spans[0]), "uncovered tail stays open for the next pass, got %s", spans[0])
}

func TestRunOnceContinuesPastFailures(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	stale := model.Span{Start: model.Date(2022, time.January, 1), End: model.Date(2022, time.March, 1)}
	seed(t, st, "BAD", stale)
	seed(t, st, "IBM", stale)

	provider := fetch.NewSampleProvider()
	provider.Unknown = map[string]bool{"BAD": true}
	d := newTestDaemon(st, provider, model.Date(2022, time.July, 1))
	d.RunOnce(ctx)

	spans, err := st.ReadSpans(ctx, "IBM")
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, model.Date(2022, time.July, 1), spans[0].End,
		"a failing symbol must not block the rest of the pass")
}

func TestRunOnceEmptyStore(t *testing.T) {
	provider := &countingProvider{Provider: fetch.NewSampleProvider()}
	d := newTestDaemon(store.NewMemoryStore(), provider, model.Date(2022, time.July, 1))
	d.RunOnce(context.Background())
	assert.Zero(t, provider.calls.Load())
}

func TestRegisterRejectsBadSpec(t *testing.T) {
	d := newTestDaemon(store.NewMemoryStore(), fetch.NewSampleProvider(), model.Date(2022, time.July, 1))
	assert.Error(t, d.Register(context.Background(), "not a cron spec"))
	assert.NoError(t, d.Register(context.Background(), "0 30 18 * * 1-5"))
}
