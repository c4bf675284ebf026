package coingecko_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/adapters/coingecko"
	"github.com/Mikespro21/ARC/pkg/retry"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *coingecko.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return coingecko.NewClient(coingecko.Config{
		BaseURL: server.URL,
		APIKey:  "demo-key",
		Timeout: 2 * time.Second,
		Retry: retry.Policy{
			MaxRetries:   2,
			InitialDelay: time.Millisecond,
			MaxDelay:     2 * time.Millisecond,
			Multiplier:   2,
		},
	}, zap.NewNop())
}

func TestClient_GetMarkets(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/coins/markets", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "usd", q.Get("vs_currency"))
		assert.Equal(t, "bitcoin,ethereum", q.Get("ids"))
		assert.Equal(t, "market_cap_desc", q.Get("order"))
		assert.Equal(t, "false", q.Get("sparkline"))
		assert.Equal(t, "24h", q.Get("price_change_percentage"))
		assert.Equal(t, "demo-key", r.Header.Get("x-cg-demo-api-key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"bitcoin","symbol":"btc","name":"Bitcoin","image":"https://img/btc.png","current_price":64000.5,
			 "market_cap":1200000000000,"total_volume":30000000000,"high_24h":65000,"low_24h":63000,
			 "price_change_24h":-120.25,"price_change_percentage_24h":-0.19},
			{"id":"ethereum","symbol":"eth","name":"Ethereum","current_price":3100,
			 "market_cap":null,"total_volume":null,"high_24h":null,"low_24h":null,
			 "price_change_24h":null,"price_change_percentage_24h":null}
		]`))
	})

	data, err := client.GetMarkets(context.Background(), []string{"bitcoin", "ethereum"})
	require.NoError(t, err)
	require.Len(t, data, 2)

	btc := data[0]
	assert.Equal(t, "BTC", btc.Symbol)
	assert.Equal(t, "64000.5", btc.CurrentPrice.String())
	assert.Equal(t, "-0.19", btc.PriceChangePercent24h.String())
	assert.Equal(t, "65000", btc.High24h.String())
	assert.Equal(t, "https://img/btc.png", btc.Image)

	eth := data[1]
	assert.Equal(t, "ETH", eth.Symbol)
	assert.True(t, eth.MarketCap.IsZero())
	assert.Equal(t, "3100", eth.High24h.String(), "missing high falls back to current price")
	assert.Equal(t, "3100", eth.Low24h.String())
	assert.False(t, eth.LastUpdated.IsZero())
}

func TestClient_GetPrice(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/simple/price", r.URL.Path)
		assert.Equal(t, "solana", r.URL.Query().Get("ids"))
		assert.Equal(t, "usd", r.URL.Query().Get("vs_currencies"))
		_, _ = w.Write([]byte(`{"solana":{"usd":142.37}}`))
	})

	price, err := client.GetPrice(context.Background(), "solana")
	require.NoError(t, err)
	assert.Equal(t, "142.37", price.String())

	price, err = client.GetPrice(context.Background(), "unknown")
	require.NoError(t, err)
	assert.True(t, price.IsZero())
}

func TestClient_SearchTruncatesAndUppercases(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "doge", r.URL.Query().Get("query"))
		body := `{"coins":[`
		for i := 0; i < 12; i++ {
			if i > 0 {
				body += ","
			}
			body += `{"id":"doge","name":"Dogecoin","symbol":"doge","thumb":"t.png"}`
		}
		body += `]}`
		_, _ = w.Write([]byte(body))
	})

	results, err := client.Search(context.Background(), "doge")
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.Equal(t, "DOGE", results[0].Symbol)
	assert.Equal(t, "t.png", results[0].Image)
}

func TestClient_TrendingIDs(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/trending", r.URL.Path)
		_, _ = w.Write([]byte(`{"coins":[
			{"item":{"id":"a"}},{"item":{"id":"b"}},{"item":{"id":"c"}},{"item":{"id":"d"}},
			{"item":{"id":"e"}},{"item":{"id":"f"}},{"item":{"id":"g"}},{"item":{"id":"h"}}]}`))
	})

	ids, err := client.TrendingIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c", "d", "e", "f", "g"}, ids)
}

func TestClient_RetriesServerErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"bitcoin":{"usd":50000}}`))
	})

	price, err := client.GetPrice(context.Background(), "bitcoin")
	require.NoError(t, err)
	assert.Equal(t, "50000", price.String())
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestClient_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	})

	_, err := client.GetMarkets(context.Background(), []string{"bitcoin"})
	require.Error(t, err)

	var apiErr *coingecko.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}
