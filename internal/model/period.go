package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange marks a malformed or empty requested date range.
var ErrInvalidRange = errors.New("invalid date range")

// AnalysisPeriod is the half-open date range [From, To) an analysis covers.
// Immutable once constructed.
type AnalysisPeriod struct {
	From time.Time
	To   time.Time
}

// NewAnalysisPeriod validates and builds a period. Both dates are normalized
// to UTC midnight; From must be strictly before To.
func NewAnalysisPeriod(from, to time.Time) (AnalysisPeriod, error) {
	from, to = DateOf(from), DateOf(to)
	if !from.Before(to) {
		return AnalysisPeriod{}, fmt.Errorf("%w: from %s is not before to %s",
			ErrInvalidRange, from.Format("2006-01-02"), to.Format("2006-01-02"))
	}
	return AnalysisPeriod{From: from, To: to}, nil
}

// Span returns the period as a Span.
func (p AnalysisPeriod) Span() Span {
	return Span{Start: p.From, End: p.To}
}

func (p AnalysisPeriod) String() string {
	return p.Span().String()
}
