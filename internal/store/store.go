// Package store persists fetched price history between sessions.
package store

import (
	"context"

	"analastock/internal/model"
)

// Store is the cache of previously fetched price history. Each symbol's
// span set and records are reconciled independently; implementations need
// no cross-symbol transactional guarantees. The cache is strictly additive,
// rows are never deleted through this interface.
type Store interface {
	// ReadSpans returns the coalesced spans known covered for the symbol,
	// sorted by start date; empty when the symbol has never been seen.
	ReadSpans(ctx context.Context, symbol string) ([]model.Span, error)
	// ReadRecords returns the records within a covered span in ascending
	// date order. Behavior is undefined for spans not previously covered.
	ReadRecords(ctx context.Context, symbol string, span model.Span) ([]model.Record, error)
	// WriteRecords upserts records keyed by (symbol, date) and extends the
	// symbol's covered span set with span. Writing the same span and
	// records twice yields identical stored state.
	WriteRecords(ctx context.Context, symbol string, span model.Span, records []model.Record) error
	Close() error
}

// CompanyCache is the metadata side of the store.
type CompanyCache interface {
	Company(ctx context.Context, symbol string) (model.Company, bool, error)
	UpsertCompany(ctx context.Context, c model.Company) error
}

// SymbolLister reports which symbols have cached price history.
type SymbolLister interface {
	Symbols(ctx context.Context) ([]string, error)
}
