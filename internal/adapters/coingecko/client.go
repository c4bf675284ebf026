// Package coingecko is a CoinGecko public API client for coin market data.
package coingecko

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/pkg/retry"
)

const (
	defaultBaseURL = "https://api.coingecko.com/api/v3"
	defaultTimeout = 10 * time.Second

	marketsEndpoint  = "/coins/markets"
	priceEndpoint    = "/simple/price"
	searchEndpoint   = "/search"
	trendingEndpoint = "/search/trending"

	apiKeyHeader = "x-cg-demo-api-key"

	maxSearchResults  = 10
	maxTrendingResult = 7
)

// Config represents CoinGecko client configuration
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
	Retry   retry.Policy
}

// APIError is a non-2xx CoinGecko response
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("coingecko API error: status %d", e.StatusCode)
}

// IsRetryable reports whether the status is worth another attempt
func (e *APIError) IsRetryable() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// Client represents a CoinGecko API client
type Client struct {
	http           *resty.Client
	circuitBreaker *gobreaker.CircuitBreaker
	retrier        *retry.Retrier
	logger         *zap.Logger
	now            func() time.Time
}

// NewClient creates a new CoinGecko client
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Retry.Multiplier == 0 {
		cfg.Retry = retry.DefaultPolicy()
	}

	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader(apiKeyHeader, cfg.APIKey)
	}

	st := gobreaker.Settings{
		Name:        "CoinGeckoAPI",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Info("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}

	policy := cfg.Retry
	policy.RetryableFunc = func(err error) bool {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return false
		}
		return retry.ShouldRetry(err)
	}

	return &Client{
		http:           httpClient,
		circuitBreaker: gobreaker.NewCircuitBreaker(st),
		retrier:        retry.NewRetrier(policy, logger),
		logger:         logger,
		now:            time.Now,
	}
}

type coinMarket struct {
	ID                       string              `json:"id"`
	Symbol                   string              `json:"symbol"`
	Name                     string              `json:"name"`
	Image                    string              `json:"image"`
	CurrentPrice             decimal.NullDecimal `json:"current_price"`
	MarketCap                decimal.NullDecimal `json:"market_cap"`
	TotalVolume              decimal.NullDecimal `json:"total_volume"`
	High24h                  decimal.NullDecimal `json:"high_24h"`
	Low24h                   decimal.NullDecimal `json:"low_24h"`
	PriceChange24h           decimal.NullDecimal `json:"price_change_24h"`
	PriceChangePercentage24h decimal.NullDecimal `json:"price_change_percentage_24h"`
}

type searchResponse struct {
	Coins []struct {
		ID     string `json:"id"`
		Name   string `json:"name"`
		Symbol string `json:"symbol"`
		Thumb  string `json:"thumb"`
		Large  string `json:"large"`
	} `json:"coins"`
}

type trendingResponse struct {
	Coins []struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	} `json:"coins"`
}

// GetMarkets fetches market data for the given coin ids
func (c *Client) GetMarkets(ctx context.Context, ids []string) ([]entities.MarketData, error) {
	var raw []coinMarket
	err := c.get(ctx, marketsEndpoint, map[string]string{
		"vs_currency":             "usd",
		"ids":                     strings.Join(ids, ","),
		"order":                   "market_cap_desc",
		"sparkline":               "false",
		"price_change_percentage": "24h",
	}, &raw)
	if err != nil {
		return nil, fmt.Errorf("get markets failed: %w", err)
	}

	now := c.now()
	data := make([]entities.MarketData, 0, len(raw))
	for _, coin := range raw {
		price := valueOr(coin.CurrentPrice, decimal.Zero)
		data = append(data, entities.MarketData{
			ID:                    coin.ID,
			Symbol:                strings.ToUpper(coin.Symbol),
			Name:                  coin.Name,
			CurrentPrice:          price,
			PriceChange24h:        valueOr(coin.PriceChange24h, decimal.Zero),
			PriceChangePercent24h: valueOr(coin.PriceChangePercentage24h, decimal.Zero),
			MarketCap:             valueOr(coin.MarketCap, decimal.Zero),
			Volume24h:             valueOr(coin.TotalVolume, decimal.Zero),
			High24h:               valueOr(coin.High24h, price),
			Low24h:                valueOr(coin.Low24h, price),
			LastUpdated:           now,
			Image:                 coin.Image,
		})
	}
	return data, nil
}

// GetPrice fetches the USD price of a single coin. A coin the API does not
// know yields a zero price.
func (c *Client) GetPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	var raw map[string]map[string]decimal.Decimal
	if err := c.get(ctx, priceEndpoint, map[string]string{"ids": id, "vs_currencies": "usd"}, &raw); err != nil {
		return decimal.Zero, fmt.Errorf("get price failed: %w", err)
	}
	return raw[id]["usd"], nil
}

// Search returns up to ten coins matching the query
func (c *Client) Search(ctx context.Context, query string) ([]entities.CoinSearchResult, error) {
	var raw searchResponse
	if err := c.get(ctx, searchEndpoint, map[string]string{"query": query}, &raw); err != nil {
		return nil, fmt.Errorf("search coins failed: %w", err)
	}

	results := make([]entities.CoinSearchResult, 0, maxSearchResults)
	for _, coin := range raw.Coins {
		if len(results) == maxSearchResults {
			break
		}
		image := coin.Large
		if image == "" {
			image = coin.Thumb
		}
		results = append(results, entities.CoinSearchResult{
			ID:     coin.ID,
			Name:   coin.Name,
			Symbol: strings.ToUpper(coin.Symbol),
			Image:  image,
		})
	}
	return results, nil
}

// TrendingIDs returns the ids of the top trending coins
func (c *Client) TrendingIDs(ctx context.Context) ([]string, error) {
	var raw trendingResponse
	if err := c.get(ctx, trendingEndpoint, nil, &raw); err != nil {
		return nil, fmt.Errorf("get trending failed: %w", err)
	}

	ids := make([]string, 0, maxTrendingResult)
	for _, coin := range raw.Coins {
		if len(ids) == maxTrendingResult {
			break
		}
		ids = append(ids, coin.Item.ID)
	}
	return ids, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params map[string]string, out interface{}) error {
	return c.retrier.Do(ctx, func() error {
		_, err := c.circuitBreaker.Execute(func() (interface{}, error) {
			return nil, c.doGet(ctx, endpoint, params, out)
		})
		return err
	})
}

func (c *Client) doGet(ctx context.Context, endpoint string, params map[string]string, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	start := time.Now()
	resp, err := req.Get(endpoint)
	if err != nil {
		return fmt.Errorf("request %s: %w", endpoint, err)
	}

	c.logger.Debug("CoinGecko request completed",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("duration", time.Since(start)))

	if resp.IsError() {
		return &APIError{StatusCode: resp.StatusCode(), Body: resp.String()}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	return nil
}

func valueOr(v decimal.NullDecimal, fallback decimal.Decimal) decimal.Decimal {
	if v.Valid {
		return v.Decimal
	}
	return fallback
}
