package model

import (
	"fmt"
	"time"
)

// MinDate is the earliest date any provider carries historical data for.
// Requests reaching further back are reported as missing, not fetched.
var MinDate = time.Date(1962, time.February, 1, 0, 0, 0, 0, time.UTC)

// Record is one trading day of price data. Records are uniquely keyed by
// (symbol, date); the symbol is carried by the owning series.
type Record struct {
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64
	Volume   int64
}

// Span is a half-open date interval [Start, End).
type Span struct {
	Start time.Time
	End   time.Time
}

// NewSpan builds a span from two dates, normalizing both to UTC midnight.
func NewSpan(start, end time.Time) Span {
	return Span{Start: DateOf(start), End: DateOf(end)}
}

// DateOf truncates a time to its date in UTC.
func DateOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date builds a UTC date from its parts.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func (s Span) IsZero() bool {
	return s.Start.IsZero() && s.End.IsZero()
}

// Days returns the span length in days.
func (s Span) Days() int {
	return int(s.End.Sub(s.Start).Hours() / 24)
}

// Contains reports whether the date falls inside the span.
func (s Span) Contains(date time.Time) bool {
	return !date.Before(s.Start) && date.Before(s.End)
}

// Overlaps reports whether the two spans share at least one day.
func (s Span) Overlaps(other Span) bool {
	return s.Start.Before(other.End) && other.Start.Before(s.End)
}

// Clamp intersects the span with bounds. The second return is false when
// nothing remains.
func (s Span) Clamp(bounds Span) (Span, bool) {
	if s.Start.Before(bounds.Start) {
		s.Start = bounds.Start
	}
	if s.End.After(bounds.End) {
		s.End = bounds.End
	}
	if !s.Start.Before(s.End) {
		return Span{}, false
	}
	return s, true
}

func (s Span) Equal(other Span) bool {
	return s.Start.Equal(other.Start) && s.End.Equal(other.End)
}

func (s Span) String() string {
	return fmt.Sprintf("[%s, %s)", s.Start.Format("2006-01-02"), s.End.Format("2006-01-02"))
}

// SymbolSeries is the merged price history of one symbol: its records in
// ascending date order, the sub-ranges no provider data exists for, and the
// currency prices are quoted in.
type SymbolSeries struct {
	Symbol       string
	Records      []Record
	MissingSpans []Span
	Diagnostics  []string
	Currency     string
}
