// Package interval computes coverage gaps between requested and cached
// date spans.
package interval

import (
	"fmt"
	"sort"
	"time"

	"analastock/internal/model"
)

// Coalesce merges overlapping and adjacent spans into a sorted, pairwise
// disjoint set. Empty spans are dropped. The input is not modified.
// Applying Coalesce to its own output returns the same set.
func Coalesce(spans []model.Span) []model.Span {
	sorted := make([]model.Span, 0, len(spans))
	for _, s := range spans {
		if s.Start.Before(s.End) {
			sorted = append(sorted, s)
		}
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start.Before(sorted[j].Start) })

	out := []model.Span{sorted[0]}
	for _, s := range sorted[1:] {
		last := &out[len(out)-1]
		if s.Start.After(last.End) {
			out = append(out, s)
			continue
		}
		// overlapping or adjacent, extend the previous span
		if s.End.After(last.End) {
			last.End = s.End
		}
	}
	return out
}

// Gaps returns the maximal sub-intervals of requested not covered by any of
// the known spans, in ascending date order. An empty result means requested
// is fully covered. The requested span must be non-empty.
func Gaps(requested model.Span, known []model.Span) ([]model.Span, error) {
	if !requested.Start.Before(requested.End) {
		return nil, fmt.Errorf("%w: empty requested span %s", model.ErrInvalidRange, requested)
	}

	var gaps []model.Span
	cursor := requested.Start
	for _, k := range Coalesce(known) {
		if !k.End.After(cursor) {
			continue
		}
		if !k.Start.Before(requested.End) {
			break
		}
		if k.Start.After(cursor) {
			gaps = append(gaps, model.Span{Start: cursor, End: k.Start})
		}
		cursor = k.End
		if !cursor.Before(requested.End) {
			return gaps, nil
		}
	}
	if cursor.Before(requested.End) {
		gaps = append(gaps, model.Span{Start: cursor, End: requested.End})
	}
	return gaps, nil
}

// ClampFloor splits a requested span at the historical floor. The first
// return is the fetchable remainder, the second the sub-range before the
// floor; either may be zero. Data before the floor does not exist at any
// provider, so that part must be reported missing rather than fetched.
func ClampFloor(requested model.Span, floor time.Time) (fetchable, missing model.Span) {
	if !requested.Start.Before(floor) {
		return requested, model.Span{}
	}
	if !requested.End.After(floor) {
		return model.Span{}, requested
	}
	return model.Span{Start: floor, End: requested.End},
		model.Span{Start: requested.Start, End: floor}
}
