package fetch

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"analastock/internal/model"
	"analastock/internal/quota"
)

// Result is everything obtained for one symbol's gap spans: the fetched
// records, the sub-ranges no data exists for, and diagnostics for gaps that
// exhausted their retry budget.
type Result struct {
	Records      []model.Record
	MissingSpans []model.Span
	Diagnostics  []string
}

// Scheduler issues gap fetches gated by the quota governor, retrying
// transient failures with truncated exponential backoff. Gaps are fetched
// in ascending date order so partial failures leave a deterministic missing
// set.
type Scheduler struct {
	provider Provider
	governor *quota.Governor
	policy   Policy
	timeout  time.Duration
	log      zerolog.Logger
}

// NewScheduler builds a scheduler. A timeout of zero disables the per-call
// deadline.
func NewScheduler(provider Provider, governor *quota.Governor, policy Policy, timeout time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		provider: provider,
		governor: governor,
		policy:   policy,
		timeout:  timeout,
		log: log.With().
			Str("component", "fetch").
			Str("provider", provider.Name()).
			Logger(),
	}
}

// FetchGaps retrieves the given gap spans. A gap that exhausts its retry
// budget degrades to a missing span with a diagnostic instead of failing the
// call. A permanent provider failure aborts the symbol and is returned.
// Cancellation stops new fetches immediately; records already obtained are
// returned alongside the context's error.
func (s *Scheduler) FetchGaps(ctx context.Context, symbol string, gaps []model.Span) (Result, error) {
	ordered := make([]model.Span, len(gaps))
	copy(ordered, gaps)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Start.Before(ordered[j].Start) })

	var res Result
	for _, gap := range ordered {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if err := s.fetchGap(ctx, symbol, gap, &res); err != nil {
			return res, err
		}
	}
	return res, nil
}

func (s *Scheduler) fetchGap(ctx context.Context, symbol string, gap model.Span, res *Result) error {
	for attempt := 0; ; attempt++ {
		if err := s.governor.Acquire(ctx, s.provider.Name(), 1); err != nil {
			return err
		}

		out := s.fetchOnce(ctx, symbol, gap)
		if !out.Failed() {
			res.Records = append(res.Records, out.Records...)
			for _, uncovered := range out.Uncovered {
				res.MissingSpans = append(res.MissingSpans, uncovered)
				s.log.Info().
					Str("symbol", symbol).
					Stringer("span", uncovered).
					Msg("provider has no data for sub-range")
			}
			return nil
		}

		if !out.Err.Transient {
			s.log.Error().
				Str("symbol", symbol).
				Stringer("span", gap).
				Err(out.Err).
				Msg("permanent provider failure")
			return out.Err
		}

		if attempt+1 >= s.policy.MaxAttempts {
			res.MissingSpans = append(res.MissingSpans, gap)
			res.Diagnostics = append(res.Diagnostics,
				fmt.Sprintf("fetch failed for %s after %d attempts: %v", gap, attempt+1, out.Err))
			s.log.Warn().
				Str("symbol", symbol).
				Stringer("span", gap).
				Int("attempts", attempt+1).
				Err(out.Err).
				Msg("retry budget exhausted, span degraded to missing")
			return nil
		}

		delay := s.policy.Delay(attempt)
		s.log.Warn().
			Str("symbol", symbol).
			Stringer("span", gap).
			Int("attempt", attempt+1).
			Dur("backoff", delay).
			Err(out.Err).
			Msg("transient failure, backing off")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

func (s *Scheduler) fetchOnce(ctx context.Context, symbol string, gap model.Span) Outcome {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.provider.Fetch(ctx, symbol, gap)
}
