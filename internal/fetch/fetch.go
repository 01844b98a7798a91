// Package fetch retrieves historical records from external providers under
// quota and retry constraints.
package fetch

import (
	"context"
	"fmt"

	"analastock/internal/model"
)

// Provider fetches historical records from one external source.
type Provider interface {
	// Fetch retrieves records covering the span, resolving the provider's
	// response into a tagged Outcome. Implementations honor ctx for timeout
	// and cancellation.
	Fetch(ctx context.Context, symbol string, span model.Span) Outcome
	// Name keys the provider's quota budget.
	Name() string
}

// ProviderError describes a failed provider call.
type ProviderError struct {
	Provider  string
	Status    int
	Message   string
	Transient bool
}

func (e *ProviderError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: status %d: %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// Outcome is the resolved result of one provider fetch. Exactly one of the
// four constructors below produces it; Err is nil on (partial) success.
type Outcome struct {
	Records   []model.Record
	Uncovered []model.Span
	Err       *ProviderError
}

// Success wraps records fully covering the requested span.
func Success(records []model.Record) Outcome {
	return Outcome{Records: records}
}

// PartialSuccess wraps records covering only part of the requested span,
// with the sub-ranges the provider had no data for (a listing can miss data
// at either end of a wide request).
func PartialSuccess(records []model.Record, uncovered ...model.Span) Outcome {
	return Outcome{Records: records, Uncovered: uncovered}
}

// TransientFailure marks a retryable failure (timeout, 5xx, rate limit).
func TransientFailure(err *ProviderError) Outcome {
	err.Transient = true
	return Outcome{Err: err}
}

// PermanentFailure marks a non-retryable failure (unknown symbol).
func PermanentFailure(err *ProviderError) Outcome {
	err.Transient = false
	return Outcome{Err: err}
}

func (o Outcome) Failed() bool { return o.Err != nil }
