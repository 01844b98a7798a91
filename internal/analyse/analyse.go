// Package analyse computes per-column statistics over a merged price series.
package analyse

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"analastock/internal/model"
)

// ErrNoData means no usable records fell inside the requested period.
var ErrNoData = errors.New("no data available in requested period")

const (
	pricePrecision   = 6
	percentPrecision = 2

	// More than a weekend between a requested boundary and the nearest
	// record means real data is absent, not just market closure.
	boundarySlack = 2 * 24 * time.Hour
)

// Analyse aggregates one merged series over the requested period. Records
// inside a missing span are excluded, and boundaries that could not be
// honored are reported as adjusted.
func Analyse(series *model.SymbolSeries, period model.AnalysisPeriod) (*model.Analysis, error) {
	span := period.Span()

	var rows []model.Record
	for _, r := range series.Records {
		if !span.Contains(r.Date) || insideAny(r.Date, series.MissingSpans) {
			continue
		}
		rows = append(rows, r)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("%s: %w", series.Symbol, ErrNoData)
	}

	a := &model.Analysis{
		Symbol:        series.Symbol,
		Currency:      series.Currency,
		RequestedFrom: period.From,
		RequestedTo:   period.To,
		From:          rows[0].Date,
		To:            rows[len(rows)-1].Date,
		Columns:       make(map[model.Column]model.ColumnStats, len(model.NumericColumns)),
		Diagnostics:   series.Diagnostics,
	}
	a.FromAdjusted = a.From.Sub(a.RequestedFrom) > boundarySlack
	// The requested end is exclusive, so a series reaching the day before
	// it is complete.
	a.ToAdjusted = a.RequestedTo.Sub(a.To) > boundarySlack+24*time.Hour

	for _, ms := range series.MissingSpans {
		if clipped, ok := ms.Clamp(span); ok {
			a.MissingSpans = append(a.MissingSpans, clipped)
		}
	}

	for _, col := range model.NumericColumns {
		vals := make([]float64, len(rows))
		zeros := false
		for i, r := range rows {
			vals[i] = r.Value(col)
			if vals[i] == 0 {
				zeros = true
			}
		}

		stats := model.ColumnStats{
			Min:        floats.Min(vals),
			Max:        floats.Max(vals),
			Avg:        roundPrice(stat.Mean(vals, nil)),
			ZeroValues: zeros,
		}

		first, last := vals[0], vals[len(vals)-1]
		stats.Change = roundPrice(last - first)
		base := first
		if base == 0 {
			base = 1
		}
		stats.PercentChange = roundPercent(stats.Change / base * 100)

		if col == model.ColumnVolume {
			stats.Avg = math.Trunc(stats.Avg)
		}
		a.Columns[col] = stats
	}

	return a, nil
}

func roundPrice(v float64) float64 {
	p := math.Pow(10, pricePrecision)
	return math.Round(v*p) / p
}

func roundPercent(v float64) float64 {
	p := math.Pow(10, percentPrecision)
	return math.Round(v*p) / p
}

func insideAny(date time.Time, spans []model.Span) bool {
	for _, s := range spans {
		if s.Contains(date) {
			return true
		}
	}
	return false
}
