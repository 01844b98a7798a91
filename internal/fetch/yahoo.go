package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"analastock/internal/model"
)

// YahooProvider fetches daily bars from the Yahoo Finance chart API. It
// needs no credentials and serves as the default provider.
type YahooProvider struct {
	BaseURL string
	Client  *http.Client
	log     zerolog.Logger
}

// NewYahooProvider creates a provider with optional proxy support.
func NewYahooProvider(proxyURL string, log zerolog.Logger) *YahooProvider {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooProvider{
		BaseURL: "https://query1.finance.yahoo.com",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		log: log.With().Str("provider", "yahoo").Logger(),
	}
}

func (p *YahooProvider) Name() string { return "yahoo" }

// chartResponse is the response structure of the chart API.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []interface{} `json:"open"`
					High   []interface{} `json:"high"`
					Low    []interface{} `json:"low"`
					Close  []interface{} `json:"close"`
					Volume []interface{} `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []interface{} `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func toFloat(v interface{}) float64 {
	if v == nil {
		return 0
	}
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

func (p *YahooProvider) Fetch(ctx context.Context, symbol string, span model.Span) Outcome {
	u := fmt.Sprintf("%s/v8/finance/chart/%s?period1=%d&period2=%d&interval=1d&includeAdjustedClose=true",
		p.BaseURL, url.PathEscape(symbol), span.Start.Unix(), span.End.Unix())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return PermanentFailure(&ProviderError{Provider: "yahoo", Message: err.Error()})
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := p.Client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return TransientFailure(&ProviderError{Provider: "yahoo", Message: "request timed out"})
		}
		return TransientFailure(&ProviderError{Provider: "yahoo", Message: err.Error()})
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return TransientFailure(&ProviderError{Provider: "yahoo", Message: err.Error()})
	}
	if resp.StatusCode != http.StatusOK {
		return classifyStatus("yahoo", resp.StatusCode, string(body))
	}

	var chart chartResponse
	if err := json.Unmarshal(body, &chart); err != nil {
		return TransientFailure(&ProviderError{Provider: "yahoo", Message: fmt.Sprintf("decode: %v", err)})
	}
	if chart.Chart.Error != nil {
		if chart.Chart.Error.Code == "Not Found" {
			return PermanentFailure(&ProviderError{Provider: "yahoo",
				Message: fmt.Sprintf("symbol %s: %s", symbol, chart.Chart.Error.Description)})
		}
		return TransientFailure(&ProviderError{Provider: "yahoo", Message: chart.Chart.Error.Description})
	}
	if len(chart.Chart.Result) == 0 {
		return resolveSpan(nil, span)
	}

	result := chart.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return resolveSpan(nil, span)
	}
	quote := result.Indicators.Quote[0]
	var adj []interface{}
	if len(result.Indicators.AdjClose) > 0 {
		adj = result.Indicators.AdjClose[0].AdjClose
	}

	records := make([]model.Record, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		o := toFloat(quote.Open[i])
		h := toFloat(quote.High[i])
		l := toFloat(quote.Low[i])
		c := toFloat(quote.Close[i])
		if o == 0 && h == 0 && l == 0 && c == 0 {
			continue // skip null bars (holidays etc.)
		}
		ac := c
		if i < len(adj) {
			if v := toFloat(adj[i]); v != 0 {
				ac = v
			}
		}
		records = append(records, model.Record{
			Date:     model.DateOf(time.Unix(ts, 0).UTC()),
			Open:     o,
			High:     h,
			Low:      l,
			Close:    c,
			AdjClose: ac,
			Volume:   int64(toFloat(quote.Volume[i])),
		})
	}

	p.log.Debug().
		Str("symbol", symbol).
		Stringer("span", span).
		Int("records", len(records)).
		Msg("chart data fetched")

	return resolveSpan(records, span)
}

// classifyStatus resolves a non-200 HTTP status into a tagged failure.
// Rate limiting and server errors are worth retrying; the rest are not.
func classifyStatus(provider string, status int, body string) Outcome {
	msg := fmt.Sprintf("unexpected response: %s", truncate(body, 200))
	perr := &ProviderError{Provider: provider, Status: status, Message: msg}
	if status == http.StatusTooManyRequests || status >= 500 {
		return TransientFailure(perr)
	}
	if status == http.StatusNotFound {
		perr.Message = "symbol not found"
	}
	return PermanentFailure(perr)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
