// Package refresh keeps cached price history current in the background.
// A cron-driven daemon walks every symbol the store knows about and
// extends its history from the last cached date up to today.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"analastock/internal/fetch"
	"analastock/internal/interval"
	"analastock/internal/model"
	"analastock/internal/store"
)

// Store is the slice of the persistence layer the daemon needs: span
// bookkeeping plus the inventory of cached symbols.
type Store interface {
	store.Store
	store.SymbolLister
}

// Daemon periodically refreshes every cached symbol. A pass never runs
// concurrently with itself; cron ticks arriving while one is in flight
// queue behind the mutex.
type Daemon struct {
	cron  *cron.Cron
	store Store
	sched *fetch.Scheduler
	log   zerolog.Logger
	now   func() time.Time

	mu sync.Mutex
}

// NewDaemon creates a refresh daemon over the given store and fetch
// scheduler. Register a schedule and call Start to run it.
func NewDaemon(st Store, sched *fetch.Scheduler, log zerolog.Logger) *Daemon {
	return &Daemon{
		cron:  cron.New(cron.WithSeconds()),
		store: st,
		sched: sched,
		log:   log.With().Str("component", "refresh").Logger(),
		now:   time.Now,
	}
}

// Register adds the refresh pass under the given cron spec (six fields,
// seconds first).
func (d *Daemon) Register(ctx context.Context, spec string) error {
	if _, err := d.cron.AddFunc(spec, func() { d.RunOnce(ctx) }); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (d *Daemon) Start() {
	d.cron.Start()
	d.log.Info().Msg("refresh daemon started")
}

// Stop stops the cron scheduler.
func (d *Daemon) Stop() {
	d.cron.Stop()
	d.log.Info().Msg("refresh daemon stopped")
}

// RunOnce executes a single refresh pass over all cached symbols. It is
// called by cron and may be called directly for a run-on-start trigger.
func (d *Daemon) RunOnce(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	symbols, err := d.store.Symbols(ctx)
	if err != nil {
		d.log.Error().Err(err).Msg("list cached symbols")
		return
	}
	if len(symbols) == 0 {
		d.log.Info().Msg("nothing cached yet, refresh pass skipped")
		return
	}

	end := model.DateOf(d.now().UTC())
	var refreshed, current, failed int
	for _, sym := range symbols {
		if ctx.Err() != nil {
			d.log.Warn().Err(ctx.Err()).Msg("refresh pass interrupted")
			return
		}
		updated, err := d.refreshSymbol(ctx, sym, end)
		switch {
		case err != nil:
			failed++
			d.log.Error().Err(err).Str("symbol", sym).Msg("refresh symbol")
		case updated:
			refreshed++
		default:
			current++
		}
	}
	d.log.Info().
		Int("refreshed", refreshed).
		Int("current", current).
		Int("failed", failed).
		Msg("refresh pass done")
}

// refreshSymbol extends one symbol's history from its last cached date to
// end. Returns whether anything new was written.
func (d *Daemon) refreshSymbol(ctx context.Context, symbol string, end time.Time) (bool, error) {
	spans, err := d.store.ReadSpans(ctx, symbol)
	if err != nil {
		return false, fmt.Errorf("read spans: %w", err)
	}
	if len(spans) == 0 {
		return false, nil
	}

	// Spans are disjoint and sorted, so the last one ends the history.
	last := spans[len(spans)-1].End
	if !last.Before(end) {
		return false, nil
	}

	gap := model.Span{Start: last, End: end}
	res, err := d.sched.FetchGaps(ctx, symbol, []model.Span{gap})
	if err != nil {
		return false, err
	}

	// Cache only the sub-ranges the provider actually covered; anything
	// still missing is retried on the next pass.
	covered, err := interval.Gaps(gap, res.MissingSpans)
	if err != nil {
		return false, err
	}
	for _, c := range covered {
		if err := d.store.WriteRecords(ctx, symbol, c, recordsWithin(res.Records, c)); err != nil {
			return false, fmt.Errorf("write records: %w", err)
		}
	}
	return len(covered) > 0, nil
}

func recordsWithin(records []model.Record, span model.Span) []model.Record {
	var out []model.Record
	for _, r := range records {
		if span.Contains(r.Date) {
			out = append(out, r)
		}
	}
	return out
}
