package merge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analastock/internal/model"
)

func rec(day int, close float64) model.Record {
	return model.Record{
		Date:  model.Date(2022, time.March, day),
		Open:  close - 1,
		High:  close + 1,
		Low:   close - 2,
		Close: close, AdjClose: close, Volume: 1000,
	}
}

func TestMerge_UnionSortedAscending(t *testing.T) {
	cached := []model.Record{rec(3, 10), rec(1, 9)}
	fetched := []model.Record{rec(2, 9.5), rec(4, 11)}

	series, err := Merge("IBM", cached, fetched, nil)

	require.NoError(t, err)
	require.Len(t, series.Records, 4)
	for i, day := range []int{1, 2, 3, 4} {
		assert.True(t, series.Records[i].Date.Equal(model.Date(2022, time.March, day)))
	}
}

func TestMerge_FetchedWinsCollision(t *testing.T) {
	cached := []model.Record{rec(1, 10)}
	fetched := []model.Record{rec(1, 12)}

	series, err := Merge("IBM", cached, fetched, nil)

	require.NoError(t, err)
	require.Len(t, series.Records, 1)
	assert.Equal(t, 12.0, series.Records[0].Close)
}

func TestMerge_IdempotentUnderRepeatedFetch(t *testing.T) {
	cached := []model.Record{rec(1, 10), rec(2, 10.5)}
	fetched := []model.Record{rec(3, 11), rec(4, 11.5)}

	once, err := Merge("IBM", cached, fetched, nil)
	require.NoError(t, err)

	twice, err := Merge("IBM", once.Records, fetched, nil)
	require.NoError(t, err)

	require.Equal(t, len(once.Records), len(twice.Records))
	for i := range once.Records {
		assert.Equal(t, once.Records[i], twice.Records[i])
	}
}

func TestMerge_NormalizesIntradayTimestamps(t *testing.T) {
	// Provider timestamps carry market-open times; the merge key is the day.
	withTime := rec(1, 10)
	withTime.Date = time.Date(2022, time.March, 1, 13, 30, 0, 0, time.UTC)
	fetchedSameDay := rec(1, 12)

	series, err := Merge("IBM", []model.Record{withTime}, []model.Record{fetchedSameDay}, nil)

	require.NoError(t, err)
	require.Len(t, series.Records, 1)
	assert.Equal(t, 12.0, series.Records[0].Close)
	assert.True(t, series.Records[0].Date.Equal(model.Date(2022, time.March, 1)))
}

func TestMerge_CoalescesMissingSpans(t *testing.T) {
	missing := []model.Span{
		{Start: model.Date(2022, time.June, 1), End: model.Date(2022, time.June, 10)},
		{Start: model.Date(2022, time.June, 10), End: model.Date(2022, time.July, 1)},
	}

	series, err := Merge("IBM", nil, nil, missing)

	require.NoError(t, err)
	require.Len(t, series.MissingSpans, 1)
	assert.True(t, series.MissingSpans[0].Equal(
		model.Span{Start: model.Date(2022, time.June, 1), End: model.Date(2022, time.July, 1)}))
}
