// Package blockchair implements provider.Client on top of the Blockchair REST API.
package blockchair

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vietddude/dashnotifier/internal/core/domain"
	"github.com/vietddude/dashnotifier/internal/indexing/metrics"
	"github.com/vietddude/dashnotifier/internal/infra/provider"
)

const (
	DefaultBaseURL = "https://api.blockchair.com"
	chainPath      = "/dash"

	endpointStats   = "stats"
	endpointAddress = "address"

	maxBodySize = 4 << 20
	maxLimit    = 100
)

// Config holds Blockchair client settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is a Blockchair REST client. It performs no internal retries.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	monitor    *provider.Monitor
	log        *slog.Logger
}

var _ provider.Client = (*Client)(nil)

// New creates a Blockchair client.
func New(cfg Config) *Client {
	base := strings.TrimRight(cfg.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		baseURL: base,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        20,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		monitor: provider.NewMonitor(),
		log:     slog.Default().With("component", "blockchair"),
	}
}

// Monitor exposes the client's throttle monitor.
func (c *Client) Monitor() *provider.Monitor {
	return c.monitor
}

// RetryAfter reports the remaining throttle backoff.
func (c *Client) RetryAfter() time.Duration {
	return c.monitor.RetryAfter()
}

// FetchPrice returns the current USD price of one DASH.
func (c *Client) FetchPrice(ctx context.Context) (decimal.NullDecimal, error) {
	var env envelope
	if err := c.get(ctx, endpointStats, chainPath+"/stats", nil, &env); err != nil {
		return decimal.NullDecimal{}, err
	}
	if isEmptyData(env.Data) {
		return decimal.NullDecimal{}, fmt.Errorf("%w: stats without data", provider.ErrMalformedResponse)
	}

	var stats statsData
	if err := json.Unmarshal(env.Data, &stats); err != nil {
		return decimal.NullDecimal{}, fmt.Errorf("%w: stats: %w", provider.ErrMalformedResponse, err)
	}
	if stats.MarketPriceUSD == nil || !stats.MarketPriceUSD.IsPositive() {
		return decimal.NullDecimal{}, fmt.Errorf("%w: market price missing", provider.ErrMalformedResponse)
	}

	return decimal.NewNullDecimal(*stats.MarketPriceUSD), nil
}

// FetchTransactions returns up to limit recent transactions for address,
// newest first. An address with no history yields an empty slice.
func (c *Client) FetchTransactions(ctx context.Context, address domain.Address, limit int) ([]domain.Transaction, error) {
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}

	query := url.Values{}
	query.Set("transaction_details", "true")
	query.Set("limit", strconv.Itoa(limit))

	var env envelope
	path := chainPath + "/dashboards/address/" + url.PathEscape(string(address))
	if err := c.get(ctx, endpointAddress, path, query, &env); err != nil {
		return nil, err
	}
	if isEmptyData(env.Data) {
		return []domain.Transaction{}, nil
	}

	var data map[string]addressDashboard
	if err := json.Unmarshal(env.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: address dashboard: %w", provider.ErrMalformedResponse, err)
	}

	dash, ok := data[string(address)]
	if !ok {
		return []domain.Transaction{}, nil
	}

	txs := make([]domain.Transaction, 0, len(dash.Transactions))
	for i, rec := range dash.Transactions {
		if rec.Hash == "" {
			return nil, fmt.Errorf("%w: transaction %d without hash", provider.ErrMalformedResponse, i)
		}
		var ordinal int64
		if n := dash.Address.TransactionCount - int64(i); dash.Address.TransactionCount > 0 && n > 0 {
			ordinal = n
		}
		txs = append(txs, domain.Transaction{
			Hash:    rec.Hash,
			Time:    rec.Time.Time,
			Value:   rec.BalanceChange,
			Ordinal: ordinal,
			BlockID: rec.BlockID,
		})
	}

	return txs, nil
}

// get performs one GET and decodes the envelope into out.
func (c *Client) get(ctx context.Context, endpoint, path string, query url.Values, out *envelope) (err error) {
	start := time.Now()
	defer func() {
		metrics.ProviderLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
		metrics.ProviderRequestsTotal.WithLabelValues(endpoint, resultLabel(err)).Inc()
	}()

	// Pre-call check
	if wait := c.monitor.RetryAfter(); wait > 0 {
		return fmt.Errorf("%w: retry after %s", provider.ErrRateLimited, wait.Round(time.Second))
	}

	if query == nil {
		query = url.Values{}
	}
	if c.apiKey != "" {
		query.Set("key", c.apiKey)
	}
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", endpoint, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Rate limit detection
	if provider.IsThrottleStatus(resp.StatusCode) {
		c.monitor.RecordThrottle(resp.StatusCode, resp.Header.Get("Retry-After"))
		c.log.Warn("Provider throttled", "endpoint", endpoint, "status", resp.StatusCode,
			"retry_after", c.monitor.RetryAfter())
		return fmt.Errorf("%w: %w", provider.ErrRateLimited, &provider.StatusError{Code: resp.StatusCode, Body: string(body)})
	}

	if resp.StatusCode != http.StatusOK {
		if c.monitor.DetectThrottlePattern(string(body)) {
			c.monitor.RecordThrottle(http.StatusTooManyRequests, resp.Header.Get("Retry-After"))
			return fmt.Errorf("%w: %w", provider.ErrRateLimited, &provider.StatusError{Code: resp.StatusCode, Body: string(body)})
		}
		return &provider.StatusError{Code: resp.StatusCode, Body: string(body)}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %w", provider.ErrMalformedResponse, err)
	}

	// Blockchair may report throttling inside a 200 envelope
	if code := out.Context.Code; code != 0 && code != http.StatusOK {
		if provider.IsThrottleStatus(code) || c.monitor.DetectThrottlePattern(out.Context.Error) {
			c.monitor.RecordThrottle(code, "")
			return fmt.Errorf("%w: %w", provider.ErrRateLimited, &provider.StatusError{Code: code, Body: out.Context.Error})
		}
		return &provider.StatusError{Code: code, Body: out.Context.Error}
	}

	c.monitor.RecordRequest(time.Since(start))
	return nil
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, provider.ErrRateLimited):
		return "throttled"
	case errors.Is(err, provider.ErrMalformedResponse):
		return "malformed"
	default:
		return "error"
	}
}
