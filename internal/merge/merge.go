// Package merge combines cached and freshly fetched records into a single
// ordered series.
package merge

import (
	"fmt"
	"sort"
	"time"

	"analastock/internal/interval"
	"analastock/internal/model"
)

// Merge unions cached and fetched records by date, with fetched records
// winning collisions so provider corrections supersede stale cache rows.
// The result is sorted ascending by date and carries the coalesced missing
// spans. Merging the same fetched records twice yields the same series.
func Merge(symbol string, cached, fetched []model.Record, missing []model.Span) (*model.SymbolSeries, error) {
	byDate := make(map[time.Time]model.Record, len(cached)+len(fetched))
	for _, r := range cached {
		byDate[model.DateOf(r.Date)] = r
	}
	for _, r := range fetched {
		byDate[model.DateOf(r.Date)] = r
	}

	records := make([]model.Record, 0, len(byDate))
	for date, r := range byDate {
		r.Date = date
		records = append(records, r)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })

	for i := 1; i < len(records); i++ {
		if records[i].Date.Equal(records[i-1].Date) {
			return nil, fmt.Errorf("duplicate record date %s for %s",
				records[i].Date.Format("2006-01-02"), symbol)
		}
	}

	return &model.SymbolSeries{
		Symbol:       symbol,
		Records:      records,
		MissingSpans: interval.Coalesce(missing),
	}, nil
}
