package model

import "time"

// Column identifies a numeric column of a price series.
type Column string

const (
	ColumnOpen     Column = "Open"
	ColumnHigh     Column = "High"
	ColumnLow      Column = "Low"
	ColumnClose    Column = "Close"
	ColumnAdjClose Column = "AdjClose"
	ColumnVolume   Column = "Volume"
)

// NumericColumns lists the analyzed columns in display order.
var NumericColumns = []Column{
	ColumnOpen, ColumnHigh, ColumnLow, ColumnClose, ColumnAdjClose, ColumnVolume,
}

// ColumnStats holds the aggregated statistics of one column. Change is the
// chronologically last value minus the first; PercentChange is Change relative
// to the first value. Volume averages are truncated to whole units.
type ColumnStats struct {
	Min           float64
	Max           float64
	Avg           float64
	Change        float64
	PercentChange float64
	// ZeroValues reports that at least one row held a zero in this column,
	// the provider's marker for an unavailable value.
	ZeroValues bool
}

// Value returns the record's value in the given column.
func (r Record) Value(col Column) float64 {
	switch col {
	case ColumnOpen:
		return r.Open
	case ColumnHigh:
		return r.High
	case ColumnLow:
		return r.Low
	case ColumnClose:
		return r.Close
	case ColumnAdjClose:
		return r.AdjClose
	case ColumnVolume:
		return float64(r.Volume)
	}
	return 0
}

// Analysis is the aggregation result for one symbol over one analyzed period.
// From/To are the dates actually analyzed; when they differ from the requested
// boundaries by more than a weekend the corresponding Adjusted flag is set.
type Analysis struct {
	Symbol        string
	CompanyName   string
	Currency      string
	RequestedFrom time.Time
	RequestedTo   time.Time
	From          time.Time
	To            time.Time
	FromAdjusted  bool
	ToAdjusted    bool
	Columns       map[Column]ColumnStats
	MissingSpans  []Span
	Diagnostics   []string
}
