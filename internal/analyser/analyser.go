// Package analyser orchestrates analysis requests: cache reconciliation,
// gap fetching, merge, write-back and aggregation, per symbol.
package analyser

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"analastock/internal/analyse"
	"analastock/internal/fetch"
	"analastock/internal/interval"
	"analastock/internal/merge"
	"analastock/internal/metadata"
	"analastock/internal/model"
	"analastock/internal/store"
)

// MaxSymbols bounds how many symbols one request may compare.
const MaxSymbols = 3

// Request is one analysis invocation.
type Request struct {
	Period  model.AnalysisPeriod
	Symbols []string
}

// Result is the outcome for one requested symbol. Analysis is nil when Err
// is set; one symbol's failure never affects its siblings.
type Result struct {
	Symbol   string
	Analysis *model.Analysis
	Err      error
}

// Analyser coordinates the store, fetch scheduler and metadata service for
// multi-symbol analysis requests.
type Analyser struct {
	store     store.Store
	scheduler *fetch.Scheduler
	meta      *metadata.Service
	workers   int
	log       zerolog.Logger
}

// New builds an analyser running at most workers symbol analyses in
// parallel; values below one mean sequential.
func New(st store.Store, scheduler *fetch.Scheduler, meta *metadata.Service, workers int, log zerolog.Logger) *Analyser {
	if workers < 1 {
		workers = 1
	}
	return &Analyser{store: st, scheduler: scheduler, meta: meta, workers: workers, log: log}
}

// Run analyses every requested symbol and returns results in request order.
// Cancellation stops dispatching new symbols; symbols already in flight
// finish or fail on their own. The returned error reports request-level
// problems only; per-symbol failures live in the results.
func (a *Analyser) Run(ctx context.Context, req Request) ([]Result, error) {
	if len(req.Symbols) == 0 || len(req.Symbols) > MaxSymbols {
		return nil, fmt.Errorf("between 1 and %d symbols required, got %d: %w",
			MaxSymbols, len(req.Symbols), model.ErrInvalidRange)
	}
	if !req.Period.From.Before(req.Period.To) {
		return nil, fmt.Errorf("analysis period is empty: %w", model.ErrInvalidRange)
	}

	log := a.log.With().Str("request", uuid.NewString()).Logger()
	log.Info().Strs("symbols", req.Symbols).Stringer("period", req.Period.Span()).
		Msg("analysis started")

	results := make([]Result, len(req.Symbols))
	for i, s := range req.Symbols {
		results[i] = Result{Symbol: normalize(s)}
	}

	workers := a.workers
	if workers > len(req.Symbols) {
		workers = len(req.Symbols)
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				r := &results[i]
				r.Analysis, r.Err = a.analyseSymbol(ctx, log, r.Symbol, req.Period)
			}
		}()
	}

dispatch:
	for i := range req.Symbols {
		if ctx.Err() != nil {
			break
		}
		select {
		case jobs <- i:
		case <-ctx.Done():
			break dispatch
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range results {
			if results[i].Analysis == nil && results[i].Err == nil {
				results[i].Err = err
			}
		}
		return results, err
	}
	return results, nil
}

func (a *Analyser) analyseSymbol(ctx context.Context, log zerolog.Logger, symbol string, period model.AnalysisPeriod) (*model.Analysis, error) {
	log = log.With().Str("symbol", symbol).Logger()
	requested := period.Span()

	fetchable, preFloor := interval.ClampFloor(requested, model.MinDate)
	var missing []model.Span
	if !preFloor.IsZero() {
		log.Info().Stringer("span", preFloor).Msg("requested range predates available history")
		missing = append(missing, preFloor)
	}

	var series *model.SymbolSeries
	if fetchable.IsZero() {
		series = &model.SymbolSeries{Symbol: symbol, MissingSpans: missing}
	} else {
		var err error
		if series, err = a.reconcile(ctx, log, symbol, fetchable, missing); err != nil {
			return nil, err
		}
	}

	company := a.meta.Lookup(ctx, symbol)
	series.Currency = company.Currency

	an, err := analyse.Analyse(series, period)
	if err != nil {
		return nil, err
	}
	an.CompanyName = company.Name
	log.Info().Time("from", an.From).Time("to", an.To).
		Int("missing_spans", len(an.MissingSpans)).Msg("analysis complete")
	return an, nil
}

// reconcile brings the cache up to date for the fetchable span and returns
// the merged series: cached rows, plus freshly fetched rows for the gaps,
// with residual missing spans annotated.
func (a *Analyser) reconcile(ctx context.Context, log zerolog.Logger, symbol string, fetchable model.Span, missing []model.Span) (*model.SymbolSeries, error) {
	known, err := a.store.ReadSpans(ctx, symbol)
	if err != nil {
		log.Warn().Err(err).Msg("cache span read failed, treating cache as empty")
		known = nil
	}

	gaps, err := interval.Gaps(fetchable, known)
	if err != nil {
		return nil, err
	}

	fetched, err := a.scheduler.FetchGaps(ctx, symbol, gaps)
	if err != nil {
		return nil, err
	}
	missing = append(missing, fetched.MissingSpans...)

	// The cached portion is whatever the gaps don't cover.
	cachedSpans, err := interval.Gaps(fetchable, gaps)
	if err != nil {
		return nil, err
	}
	diags := fetched.Diagnostics
	var cached []model.Record
	for _, sp := range cachedSpans {
		recs, err := a.store.ReadRecords(ctx, symbol, sp)
		if err != nil {
			log.Warn().Err(err).Stringer("span", sp).Msg("cache read failed")
			missing = append(missing, sp)
			diags = append(diags, fmt.Sprintf("cache read failed for %s: %v", sp, err))
			continue
		}
		cached = append(cached, recs...)
	}

	series, err := merge.Merge(symbol, cached, fetched.Records, missing)
	if err != nil {
		return nil, err
	}
	series.Diagnostics = diags

	a.writeBack(ctx, log, symbol, gaps, fetched)
	return series, nil
}

// writeBack persists the covered part of each fetched gap. Failures are
// non-fatal: the response already holds the data.
func (a *Analyser) writeBack(ctx context.Context, log zerolog.Logger, symbol string, gaps []model.Span, fetched fetch.Result) {
	for _, g := range gaps {
		covered, err := interval.Gaps(g, fetched.MissingSpans)
		if err != nil {
			continue
		}
		for _, c := range covered {
			if err := a.store.WriteRecords(ctx, symbol, c, recordsWithin(fetched.Records, c)); err != nil {
				log.Warn().Err(err).Stringer("span", c).Msg("cache write-back failed")
			}
		}
	}
}

func recordsWithin(records []model.Record, span model.Span) []model.Record {
	var out []model.Record
	for _, r := range records {
		if span.Contains(model.DateOf(r.Date)) {
			out = append(out, r)
		}
	}
	return out
}

func normalize(symbol string) string {
	return strings.ToUpper(strings.TrimSpace(symbol))
}
