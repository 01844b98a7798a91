package fetch

import (
	"sort"
	"time"

	"analastock/internal/model"
)

// Shortfalls of up to two days between a span boundary and the nearest
// record are normal (weekends, holidays); anything longer means the provider
// genuinely lacks the data there.
const boundarySlack = 2 * 24 * time.Hour

// resolveSpan classifies fetched records against the requested span,
// reporting the leading or trailing sub-ranges the provider had nothing for.
// Records are sorted by date as a side effect.
func resolveSpan(records []model.Record, span model.Span) Outcome {
	if len(records) == 0 {
		return PartialSuccess(nil, span)
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Date.Before(records[j].Date) })

	var uncovered []model.Span
	first := records[0].Date
	last := records[len(records)-1].Date
	if first.Sub(span.Start) > boundarySlack {
		uncovered = append(uncovered, model.Span{Start: span.Start, End: first})
	}
	// The span end is exclusive, so a last record on the final requested day
	// sits one day before End.
	if span.End.Sub(last) > boundarySlack+24*time.Hour {
		uncovered = append(uncovered, model.Span{Start: last.AddDate(0, 0, 1), End: span.End})
	}

	if len(uncovered) == 0 {
		return Success(records)
	}
	return PartialSuccess(records, uncovered...)
}
