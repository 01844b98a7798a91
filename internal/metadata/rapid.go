// Package metadata resolves company and exchange information for symbols.
package metadata

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"analastock/internal/model"
	"analastock/internal/quota"
)

const (
	DefaultBaseURL   = "https://yahoofinance-stocks1.p.rapidapi.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second

	// RapidAPI reports the monthly subscription quota on every response.
	quotaLimitHeader  = "X-RateLimit-Requests-Limit"
	quotaRemainHeader = "X-RateLimit-Requests-Remaining"
)

// RapidClient calls the RapidAPI Yahoo Finance metadata endpoints.
type RapidClient struct {
	baseURL    string
	key        string
	httpClient *http.Client
	limiter    *rate.Limiter
	gov        *quota.Governor
	log        zerolog.Logger
}

// Option configures the client.
type Option func(*RapidClient)

// WithBaseURL sets the base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *RapidClient) {
		c.baseURL = baseURL
	}
}

// WithTimeout sets the HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *RapidClient) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the request rate limit.
func WithRateLimit(requestsPerSecond int) Option {
	return func(c *RapidClient) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithGovernor gates requests on the shared quota governor.
func WithGovernor(gov *quota.Governor) Option {
	return func(c *RapidClient) {
		c.gov = gov
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *RapidClient) {
		c.log = log
	}
}

// NewRapidClient creates a metadata client authenticated with a RapidAPI key.
func NewRapidClient(key string, opts ...Option) *RapidClient {
	c := &RapidClient{
		baseURL: DefaultBaseURL,
		key:     key,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		log:     zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError is a non-200 response from the metadata API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("rapidapi error: %s (status: %d, endpoint: %s)", e.Message, e.StatusCode, e.Endpoint)
}

// get performs a rate-limited GET request.
func (c *RapidClient) get(ctx context.Context, path string, params url.Values, result interface{}) error {
	if c.gov != nil {
		if err := c.gov.Acquire(ctx, "rapidapi", 1); err != nil {
			return err
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	reqURL := c.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("x-rapidapi-key", c.key)
	req.Header.Set("x-rapidapi-host", req.URL.Host)

	c.log.Debug().Str("endpoint", path).Msg("rapidapi request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rapidapi request: %w", err)
	}
	defer resp.Body.Close()

	c.logQuota(resp.Header)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    string(body),
			Endpoint:   path,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *RapidClient) logQuota(h http.Header) {
	limit, err := strconv.Atoi(h.Get(quotaLimitHeader))
	if err != nil || limit == 0 {
		return
	}
	remain, err := strconv.Atoi(h.Get(quotaRemainHeader))
	if err != nil {
		return
	}
	c.log.Info().Int("remaining", remain).Int("limit", limit).
		Msgf("rapidapi monthly quota %d%% remaining", remain*100/limit)
}

// StockMetadata returns the provider's metadata for one symbol.
func (c *RapidClient) StockMetadata(ctx context.Context, symbol string) (model.Company, error) {
	var out struct {
		Result struct {
			Symbol           string `json:"symbol"`
			ShortName        string `json:"shortName"`
			Currency         string `json:"currency"`
			Exchange         string `json:"exchange"`
			FullExchangeName string `json:"fullExchangeName"`
		} `json:"result"`
	}

	params := url.Values{"Symbol": {symbol}}
	if err := c.get(ctx, "/stock-metadata", params, &out); err != nil {
		return model.Company{}, err
	}

	r := out.Result
	return model.Company{
		Symbol:   r.Symbol,
		Name:     r.ShortName,
		Exchange: r.Exchange,
		Currency: r.Currency,
	}, nil
}

// Exchanges lists the exchange codes companies can be searched under.
func (c *RapidClient) Exchanges(ctx context.Context) ([]string, error) {
	var out struct {
		Total   int `json:"total"`
		Results []struct {
			ExchangeCode string `json:"exchangeCode"`
		} `json:"results"`
	}

	if err := c.get(ctx, "/exchanges", nil, &out); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(out.Results))
	for _, r := range out.Results {
		codes = append(codes, r.ExchangeCode)
	}
	return codes, nil
}

// CompaniesByExchange lists the companies trading on one exchange.
func (c *RapidClient) CompaniesByExchange(ctx context.Context, exchangeCode string) ([]model.Company, error) {
	var out struct {
		Total   int `json:"total"`
		Results []struct {
			ExchangeCode       string `json:"exchangeCode"`
			Symbol             string `json:"symbol"`
			CompanyName        string `json:"companyName"`
			IndustryOrCategory string `json:"industryOrCategory"`
		} `json:"results"`
	}

	params := url.Values{"ExchangeCode": {exchangeCode}}
	if err := c.get(ctx, "/companies/list-by-exchange", params, &out); err != nil {
		return nil, err
	}

	companies := make([]model.Company, 0, len(out.Results))
	for _, r := range out.Results {
		companies = append(companies, model.Company{
			Symbol:   r.Symbol,
			Name:     r.CompanyName,
			Exchange: r.ExchangeCode,
			Industry: r.IndustryOrCategory,
		})
	}
	return companies, nil
}
