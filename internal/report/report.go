// Package report renders analysis results as fixed-width terminal text.
package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"analastock/internal/model"
)

const (
	lineWidth     = 80
	nameCellWidth = 9
	dataCellWidth = 12
	dateFormat    = "02 Jan 2006"
)

var statHeaders = []string{"Min", "Max", "Avg", "Change", "%"}

// WriteAnalysis renders one symbol's analysis:
//
//	                                                                    Currency
//	Stock : IBM - International Business Machines Corporation                USD
//	Period: 01 Mar 2022 - 01 Jul 2022
//	              Min          Max          Avg        Change           %
//	Open      ............ ............ ............ ............ ............
//	...
//
// followed by any annotation lines for adjusted boundaries and missing data.
func WriteAnalysis(w io.Writer, a *model.Analysis) error {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%*s\n", lineWidth, "Currency"))
	b.WriteString(titleRow("Stock", stockTitle(a), a.Currency))
	b.WriteString(fmt.Sprintf("%-6s: %s - %s\n", "Period",
		a.RequestedFrom.Format(dateFormat), a.RequestedTo.Format(dateFormat)))

	b.WriteString(strings.Repeat(" ", nameCellWidth))
	for _, h := range statHeaders {
		b.WriteString(" " + center(h, dataCellWidth))
	}
	b.WriteString("\n")

	for _, col := range model.NumericColumns {
		stats := a.Columns[col]
		b.WriteString(fmt.Sprintf("%-*s", nameCellWidth, string(col)))
		for _, cell := range []string{
			formatValue(stats.Min),
			formatValue(stats.Max),
			formatValue(stats.Avg),
			markered(stats.Change),
			markered(stats.PercentChange),
		} {
			b.WriteString(fmt.Sprintf(" %*s", dataCellWidth, cell))
		}
		b.WriteString("\n")
	}

	for _, note := range annotations(a) {
		b.WriteString(note + "\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSummary renders a closing-price comparison of several analyses, in
// the order given.
func WriteSummary(w io.Writer, analyses []*model.Analysis) error {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("%-*s %-8s", nameCellWidth, "Symbol", "Currency"))
	for _, h := range []string{"Min", "Max", "Change", "%"} {
		b.WriteString(" " + center(h, dataCellWidth))
	}
	b.WriteString("\n")

	for _, a := range analyses {
		c := a.Columns[model.ColumnClose]
		b.WriteString(fmt.Sprintf("%-*s %-8s", nameCellWidth, a.Symbol, a.Currency))
		for _, cell := range []string{
			formatValue(c.Min),
			formatValue(c.Max),
			markered(c.Change),
			markered(c.PercentChange),
		} {
			b.WriteString(fmt.Sprintf(" %*s", dataCellWidth, cell))
		}
		b.WriteString("\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteSymbolError renders a per-symbol failure in place of its grid.
func WriteSymbolError(w io.Writer, symbol string, err error) error {
	_, werr := fmt.Fprintf(w, "%-6s: %s\n        analysis failed: %v\n", "Stock", symbol, err)
	return werr
}

func stockTitle(a *model.Analysis) string {
	if a.CompanyName == "" {
		return a.Symbol
	}
	return a.Symbol + " - " + a.CompanyName
}

// titleRow lays out "Title : text" with a right-aligned trailer, trimming
// the text when the line would overflow.
func titleRow(title, text, trailer string) string {
	left := fmt.Sprintf("%-6s: %s", title, text)
	if max := lineWidth - len(trailer) - 1; len(left) > max {
		left = left[:max]
	}
	pad := lineWidth - len(left) - len(trailer)
	return left + strings.Repeat(" ", pad) + trailer + "\n"
}

func annotations(a *model.Analysis) []string {
	var notes []string
	if a.FromAdjusted {
		notes = append(notes, fmt.Sprintf("Note: no data before %s, analysis starts there", a.From.Format(dateFormat)))
	}
	if a.ToAdjusted {
		notes = append(notes, fmt.Sprintf("Note: data ends %s", a.To.Format(dateFormat)))
	}
	for _, ms := range a.MissingSpans {
		notes = append(notes, fmt.Sprintf("Note: data not available for %s", ms))
	}

	var zeroCols []string
	for _, col := range model.NumericColumns {
		if a.Columns[col].ZeroValues {
			zeroCols = append(zeroCols, string(col))
		}
	}
	if len(zeroCols) > 0 {
		notes = append(notes, fmt.Sprintf("Note: zero values in %s", strings.Join(zeroCols, ", ")))
	}

	for _, n := range a.Diagnostics {
		notes = append(notes, "Note: "+n)
	}
	return notes
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// markered tags changes with the direction of movement.
func markered(v float64) string {
	s := formatValue(v)
	switch {
	case v > 0:
		return s + " ^"
	case v < 0:
		return s + " v"
	}
	return s
}

func center(s string, width int) string {
	if len(s) >= width {
		return s
	}
	left := (width - len(s)) / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", width-len(s)-left)
}
