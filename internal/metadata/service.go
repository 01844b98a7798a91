package metadata

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"analastock/internal/model"
	"analastock/internal/store"
)

// ErrNoClient means a metadata operation needs the provider but none is
// configured (for example, running in sample mode without an API key).
var ErrNoClient = errors.New("metadata provider not configured")

// Service resolves company metadata, preferring the local cache. An analysis
// never fails on metadata: unresolvable symbols fall back to USD.
type Service struct {
	cache  store.CompanyCache
	client *RapidClient
	log    zerolog.Logger
}

// NewService builds the metadata service. client may be nil, in which case
// only cached metadata is served.
func NewService(cache store.CompanyCache, client *RapidClient, log zerolog.Logger) *Service {
	return &Service{cache: cache, client: client, log: log}
}

// Lookup returns company metadata for a symbol, falling back to a USD
// placeholder when neither the cache nor the provider can resolve it.
func (s *Service) Lookup(ctx context.Context, symbol string) model.Company {
	if c, ok, err := s.cache.Company(ctx, symbol); err == nil && ok {
		return c
	} else if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("company cache read failed")
	}

	if s.client == nil {
		return model.Company{Symbol: symbol, Currency: "USD"}
	}

	c, err := s.client.StockMetadata(ctx, symbol)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("metadata lookup failed, assuming USD")
		return model.Company{Symbol: symbol, Currency: "USD"}
	}
	if c.Symbol == "" {
		c.Symbol = symbol
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}

	if err := s.cache.UpsertCompany(ctx, c); err != nil {
		s.log.Warn().Err(err).Str("symbol", symbol).Msg("company cache write failed")
	}
	return c
}

// Exchanges lists the searchable exchange codes.
func (s *Service) Exchanges(ctx context.Context) ([]string, error) {
	if s.client == nil {
		return nil, ErrNoClient
	}
	codes, err := s.client.Exchanges(ctx)
	if err != nil {
		return nil, err
	}
	sort.Strings(codes)
	return codes, nil
}

// Search lists an exchange's companies whose name contains the query,
// case-insensitively; an empty query lists them all. Results are cached
// for later offline lookups.
func (s *Service) Search(ctx context.Context, exchangeCode, query string) ([]model.Company, error) {
	if s.client == nil {
		return nil, ErrNoClient
	}
	companies, err := s.client.CompaniesByExchange(ctx, exchangeCode)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	var matched []model.Company
	for _, c := range companies {
		if err := s.cache.UpsertCompany(ctx, c); err != nil {
			s.log.Warn().Err(err).Str("symbol", c.Symbol).Msg("company cache write failed")
		}
		if query != "" && !strings.Contains(strings.ToLower(c.Name), query) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].Name < matched[j].Name })
	return matched, nil
}
