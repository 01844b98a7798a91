package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"analastock/internal/interval"
	"analastock/internal/model"
)

// MemoryStore keeps price history in process memory. It backs tests and is
// the fallback when the SQLite store cannot be opened.
type MemoryStore struct {
	mu        sync.Mutex
	bars      map[string]map[time.Time]model.Record
	spans     map[string][]model.Span
	companies map[string]model.Company
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		bars:      make(map[string]map[time.Time]model.Record),
		spans:     make(map[string][]model.Span),
		companies: make(map[string]model.Company),
	}
}

func (m *MemoryStore) ReadSpans(ctx context.Context, symbol string) ([]model.Span, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	spans := make([]model.Span, len(m.spans[symbol]))
	copy(spans, m.spans[symbol])
	return spans, nil
}

func (m *MemoryStore) ReadRecords(ctx context.Context, symbol string, span model.Span) ([]model.Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var recs []model.Record
	for date, r := range m.bars[symbol] {
		if span.Contains(date) {
			recs = append(recs, r)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Date.Before(recs[j].Date) })
	return recs, nil
}

func (m *MemoryStore) WriteRecords(ctx context.Context, symbol string, span model.Span, records []model.Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bars := m.bars[symbol]
	if bars == nil {
		bars = make(map[time.Time]model.Record)
		m.bars[symbol] = bars
	}
	for _, r := range records {
		r.Date = model.DateOf(r.Date)
		bars[r.Date] = r
	}
	m.spans[symbol] = interval.Coalesce(append(m.spans[symbol], span))
	return nil
}

func (m *MemoryStore) UpsertCompany(ctx context.Context, c model.Company) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.companies[c.Symbol] = c
	return nil
}

func (m *MemoryStore) Company(ctx context.Context, symbol string) (model.Company, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.companies[symbol]
	return c, ok, nil
}

func (m *MemoryStore) Symbols(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var symbols []string
	for sym := range m.spans {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)
	return symbols, nil
}

func (m *MemoryStore) Close() error { return nil }
