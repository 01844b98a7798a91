package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"analastock/internal/logging"
	"analastock/internal/model"
	"analastock/internal/store"
)

const metaBody = `{"result":{
	"symbol":"NRP.AS",
	"shortName":"NEPI ROCKCASTLE S.A.",
	"currency":"EUR",
	"exchange":"AMS",
	"exchangeTimezoneName":"Europe/Amsterdam",
	"fullExchangeName":"Amsterdam",
	"market":"nl_market"}}`

func TestStockMetadataParsesResult(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stock-metadata", r.URL.Path)
		assert.Equal(t, "NRP.AS", r.URL.Query().Get("Symbol"))
		assert.Equal(t, "test-key", r.Header.Get("x-rapidapi-key"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(metaBody))
	}))
	defer srv.Close()

	client := NewRapidClient("test-key", WithBaseURL(srv.URL))
	c, err := client.StockMetadata(context.Background(), "NRP.AS")
	require.NoError(t, err)

	assert.Equal(t, "NRP.AS", c.Symbol)
	assert.Equal(t, "NEPI ROCKCASTLE S.A.", c.Name)
	assert.Equal(t, "EUR", c.Currency)
	assert.Equal(t, "AMS", c.Exchange)
}

func TestExchangesListsCodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/exchanges", r.URL.Path)
		w.Write([]byte(`{"total":3,"offset":0,"results":[
			{"exchangeCode":"AMS"},{"exchangeCode":"LSE"},{"exchangeCode":"NYQ"}],
			"responseStatus":null}`))
	}))
	defer srv.Close()

	client := NewRapidClient("test-key", WithBaseURL(srv.URL))
	codes, err := client.Exchanges(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"AMS", "LSE", "NYQ"}, codes)
}

func TestCompaniesByExchange(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/companies/list-by-exchange", r.URL.Path)
		assert.Equal(t, "AMS", r.URL.Query().Get("ExchangeCode"))
		w.Write([]byte(`{"total":2,"offset":0,"results":[
			{"exchangeCode":"AMS","symbol":"AALB.AS","companyName":"AALBERTS NV","industryOrCategory":"Industrials"},
			{"exchangeCode":"AMS","symbol":"ABN.AS","companyName":"ABN AMRO BANK N.V.","industryOrCategory":"Financial Services"}],
			"responseStatus":null}`))
	}))
	defer srv.Close()

	client := NewRapidClient("test-key", WithBaseURL(srv.URL))
	companies, err := client.CompaniesByExchange(context.Background(), "AMS")
	require.NoError(t, err)

	require.Len(t, companies, 2)
	assert.Equal(t, model.Company{
		Symbol:   "AALB.AS",
		Name:     "AALBERTS NV",
		Exchange: "AMS",
		Industry: "Industrials",
	}, companies[0])
}

func TestNon200BecomesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no meta data found", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := NewRapidClient("test-key", WithBaseURL(srv.URL))
	_, err := client.StockMetadata(context.Background(), "NOSUCH")

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, "/stock-metadata", apiErr.Endpoint)
}

func TestLookupPrefersCache(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(metaBody))
	}))
	defer srv.Close()

	cache := store.NewMemoryStore()
	cached := model.Company{Symbol: "NRP.AS", Name: "NEPI ROCKCASTLE S.A.", Currency: "EUR"}
	require.NoError(t, cache.UpsertCompany(context.Background(), cached))

	svc := NewService(cache, NewRapidClient("test-key", WithBaseURL(srv.URL)), logging.NewSilent())
	got := svc.Lookup(context.Background(), "NRP.AS")

	assert.Equal(t, cached, got)
	assert.Equal(t, int32(0), hits.Load(), "cached symbols must not hit the provider")
}

func TestLookupCachesProviderResult(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte(metaBody))
	}))
	defer srv.Close()

	cache := store.NewMemoryStore()
	svc := NewService(cache, NewRapidClient("test-key", WithBaseURL(srv.URL)), logging.NewSilent())

	first := svc.Lookup(context.Background(), "NRP.AS")
	assert.Equal(t, "EUR", first.Currency)

	second := svc.Lookup(context.Background(), "NRP.AS")
	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), hits.Load(), "second lookup should come from the cache")
}

func TestLookupWithoutClientAssumesUSD(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil, logging.NewSilent())
	got := svc.Lookup(context.Background(), "IBM")
	assert.Equal(t, model.Company{Symbol: "IBM", Currency: "USD"}, got)
}

func TestLookupProviderFailureAssumesUSD(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewService(store.NewMemoryStore(), NewRapidClient("test-key", WithBaseURL(srv.URL)), logging.NewSilent())
	got := svc.Lookup(context.Background(), "NOSUCH")
	assert.Equal(t, model.Company{Symbol: "NOSUCH", Currency: "USD"}, got)
}

func TestSearchFiltersAndCaches(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"total":2,"offset":0,"results":[
			{"exchangeCode":"AMS","symbol":"AALB.AS","companyName":"AALBERTS NV","industryOrCategory":"Industrials"},
			{"exchangeCode":"AMS","symbol":"ABN.AS","companyName":"ABN AMRO BANK N.V.","industryOrCategory":"Financial Services"}],
			"responseStatus":null}`))
	}))
	defer srv.Close()

	cache := store.NewMemoryStore()
	svc := NewService(cache, NewRapidClient("test-key", WithBaseURL(srv.URL)), logging.NewSilent())

	matched, err := svc.Search(context.Background(), "AMS", "aalberts")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	assert.Equal(t, "AALB.AS", matched[0].Symbol)

	// Both companies land in the cache regardless of the filter.
	_, ok, err := cache.Company(context.Background(), "ABN.AS")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSearchWithoutClient(t *testing.T) {
	svc := NewService(store.NewMemoryStore(), nil, logging.NewSilent())
	_, err := svc.Search(context.Background(), "AMS", "")
	assert.ErrorIs(t, err, ErrNoClient)

	_, err = svc.Exchanges(context.Background())
	assert.ErrorIs(t, err, ErrNoClient)
}
