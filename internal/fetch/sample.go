package fetch

import (
	"context"
	"time"

	"analastock/internal/model"
)

// SampleProvider serves deterministically generated bars without touching
// the network. It stands in for a live provider when no connectivity or
// credentials are available, and in tests.
type SampleProvider struct {
	BasePrice float64
	// Records overrides generation per symbol when set.
	Records map[string][]model.Record
	// Listed restricts a symbol's available history when set; requests
	// outside it resolve as partially covered.
	Listed map[string]model.Span
	// Unknown marks symbols the provider reports as not found.
	Unknown map[string]bool
}

// NewSampleProvider creates a sample provider with a default base price.
func NewSampleProvider() *SampleProvider {
	return &SampleProvider{BasePrice: 135}
}

func (p *SampleProvider) Name() string { return "sample" }

func (p *SampleProvider) Fetch(_ context.Context, symbol string, span model.Span) Outcome {
	if p.Unknown[symbol] {
		return PermanentFailure(&ProviderError{Provider: "sample", Message: "symbol " + symbol + " not found"})
	}
	if canned, ok := p.Records[symbol]; ok {
		var records []model.Record
		for _, r := range canned {
			if span.Contains(r.Date) {
				records = append(records, r)
			}
		}
		return resolveSpan(records, span)
	}

	available := span
	if listed, ok := p.Listed[symbol]; ok {
		if !span.Overlaps(listed) {
			return resolveSpan(nil, span)
		}
		if listed.Start.After(available.Start) {
			available.Start = listed.Start
		}
		if listed.End.Before(available.End) {
			available.End = listed.End
		}
	}
	return resolveSpan(p.generate(available), span)
}

// generate produces one bar per weekday across the span, prices drifting
// around the base.
func (p *SampleProvider) generate(span model.Span) []model.Record {
	base := p.BasePrice
	if base == 0 {
		base = 135
	}
	var records []model.Record
	i := 0
	for d := span.Start; d.Before(span.End); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		price := base * (1 + float64(i%200-100)*0.001)
		records = append(records, model.Record{
			Date:     d,
			Open:     price * 0.999,
			High:     price * 1.005,
			Low:      price * 0.995,
			Close:    price,
			AdjClose: price * 0.98,
			Volume:   1000000 + int64(i)*1000,
		})
		i++
	}
	return records
}
