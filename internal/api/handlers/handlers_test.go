package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/api/handlers"
	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
	"github.com/Mikespro21/ARC/internal/domain/services/coach"
	"github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/pkg/logger"
)

var errOffline = errors.New("offline")

// offlineProvider fails every call so the market service serves mock data
type offlineProvider struct{}

func (offlineProvider) GetMarkets(ctx context.Context, ids []string) ([]entities.MarketData, error) {
	return nil, errOffline
}

func (offlineProvider) GetPrice(ctx context.Context, id string) (decimal.Decimal, error) {
	return decimal.Zero, errOffline
}

func (offlineProvider) Search(ctx context.Context, query string) ([]entities.CoinSearchResult, error) {
	return nil, errOffline
}

func (offlineProvider) TrendingIDs(ctx context.Context) ([]string, error) {
	return nil, errOffline
}

type harness struct {
	router *gin.Engine
	engine *agent.Service
	market *market.MarketDataService
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	marketService := market.NewMarketDataService(offlineProvider{}, nil, market.Config{
		CacheTTL:   time.Minute,
		DefaultIDs: market.DefaultAssetIDs,
	}, zap.NewNop())
	marketService.Refresh(context.Background())

	cfg := agent.DefaultConfig()
	cfg.DemoMode = false
	engine := agent.NewService(cfg, entities.DefaultUser(), marketService, zap.NewNop())
	coachService := coach.NewService(engine, zap.NewNop())

	log := logger.NewNop()
	v := handlers.NewValidator()
	agentHandlers := handlers.NewAgentHandlers(engine, v, log)
	crowdHandlers := handlers.NewCrowdHandlers(engine)
	marketHandlers := handlers.NewMarketHandlers(marketService, log)
	coachHandlers := handlers.NewCoachHandlers(coachService, v, log)
	userHandlers := handlers.NewUserHandlers(engine, map[string]string{"Max Agents": "10"}, v, log)

	router := gin.New()
	api := router.Group("/api/v1")
	api.GET("/snapshot", crowdHandlers.GetSnapshot)
	api.GET("/crowd", crowdHandlers.GetCrowd)
	api.GET("/leaderboards/:period", crowdHandlers.GetLeaderboard)
	api.GET("/user", userHandlers.GetUser)
	api.PATCH("/user/settings", userHandlers.UpdateSettings)
	api.GET("/pricing", userHandlers.GetPricing)
	api.GET("/config", userHandlers.GetConfig)
	api.GET("/agents", agentHandlers.ListAgents)
	api.POST("/agents", agentHandlers.CreateAgent)
	api.GET("/agents/:id", agentHandlers.GetAgent)
	api.PATCH("/agents/:id", agentHandlers.UpdateAgent)
	api.DELETE("/agents/:id", agentHandlers.DeleteAgent)
	api.POST("/agents/:id/trades", agentHandlers.ExecuteTrade)
	api.GET("/agents/:id/trades", agentHandlers.GetTrades)
	api.POST("/agents/:id/toggle", agentHandlers.ToggleAgent)
	api.POST("/agents/:id/safety/exit", agentHandlers.TriggerSafetyExit)
	api.GET("/market", marketHandlers.GetMarkets)
	api.GET("/market/price/:id", marketHandlers.GetPrice)
	api.GET("/market/search", marketHandlers.SearchCoins)
	api.POST("/market/refresh", marketHandlers.Refresh)
	api.POST("/coach", coachHandlers.Ask)
	api.GET("/coach", coachHandlers.History)

	return &harness{router: router, engine: engine, market: marketService}
}

func (h *harness) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func (h *harness) createAgent(t *testing.T, balance string) string {
	t.Helper()
	w := h.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{
		"name":            "Momentum",
		"strategy":        "swing",
		"riskness":        40,
		"initial_balance": balance,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	id, _ := decode(t, w)["id"].(string)
	require.NotEmpty(t, id)
	return id
}

func TestAgentLifecycle(t *testing.T) {
	h := newHarness(t)
	id := h.createAgent(t, "500")

	w := h.do(t, http.MethodGet, "/api/v1/agents", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = h.do(t, http.MethodPost, "/api/v1/agents/"+id+"/trades", map[string]interface{}{
		"asset":  "bitcoin",
		"type":   "buy",
		"amount": "0.001",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	trade := decode(t, w)
	assert.Equal(t, "buy", trade["type"])
	assert.Equal(t, "45", trade["usdc_amount"])

	w = h.do(t, http.MethodGet, "/api/v1/agents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	portfolio, ok := decode(t, w)["portfolio"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "455", portfolio["usdc_balance"])
	assert.Equal(t, "500", portfolio["total_value"])

	w = h.do(t, http.MethodGet, "/api/v1/agents/"+id+"/trades?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode(t, w)["count"])

	w = h.do(t, http.MethodPost, "/api/v1/agents/"+id+"/toggle", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "paused", decode(t, w)["status"])

	w = h.do(t, http.MethodDelete, "/api/v1/agents/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, decode(t, w)["agent_id"])
	assert.Empty(t, h.engine.ListAgents())
	assert.True(t, h.engine.User().USDCBalance.Equal(decimal.NewFromInt(10000)))
}

func TestCreateAgent_Validation(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{
		"name":            "Bad",
		"strategy":        "yolo",
		"initial_balance": "500",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handlers.ErrCodeValidationError, decode(t, w)["code"])

	w = h.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{
		"name":            "Tiny",
		"strategy":        "hodl",
		"initial_balance": "5",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "MINIMUM_BALANCE_NOT_MET", decode(t, w)["code"])

	w = h.do(t, http.MethodPost, "/api/v1/agents", map[string]interface{}{
		"name":            "Whale",
		"strategy":        "hodl",
		"initial_balance": "50000",
	})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INSUFFICIENT_BALANCE", decode(t, w)["code"])
}

func TestExecuteTrade_ErrorMapping(t *testing.T) {
	h := newHarness(t)
	id := h.createAgent(t, "500")

	tests := []struct {
		name   string
		path   string
		body   map[string]interface{}
		status int
		code   string
	}{
		{
			name:   "unknown agent",
			path:   "/api/v1/agents/missing/trades",
			body:   map[string]interface{}{"asset": "bitcoin", "type": "buy", "amount": "10"},
			status: http.StatusNotFound,
			code:   "AGENT_NOT_FOUND",
		},
		{
			name:   "bad trade type",
			path:   "/api/v1/agents/" + id + "/trades",
			body:   map[string]interface{}{"asset": "bitcoin", "type": "short", "amount": "10"},
			status: http.StatusBadRequest,
			code:   handlers.ErrCodeValidationError,
		},
		{
			name:   "over balance",
			path:   "/api/v1/agents/" + id + "/trades",
			body:   map[string]interface{}{"asset": "bitcoin", "type": "buy", "amount": "900"},
			status: http.StatusConflict,
			code:   "INSUFFICIENT_BALANCE",
		},
		{
			name:   "sell without position",
			path:   "/api/v1/agents/" + id + "/trades",
			body:   map[string]interface{}{"asset": "ethereum", "type": "sell", "amount": "1"},
			status: http.StatusConflict,
			code:   "NO_POSITION",
		},
		{
			name:   "zero amount",
			path:   "/api/v1/agents/" + id + "/trades",
			body:   map[string]interface{}{"asset": "bitcoin", "type": "buy", "amount": "0"},
			status: http.StatusBadRequest,
			code:   "INVALID_AMOUNT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := h.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.status, w.Code, w.Body.String())
			assert.Equal(t, tt.code, decode(t, w)["code"])
		})
	}
}

func TestSafetyExit_WithoutBody(t *testing.T) {
	h := newHarness(t)
	id := h.createAgent(t, "500")

	w := h.do(t, http.MethodPost, "/api/v1/agents/"+id+"/safety/exit", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "exited", decode(t, w)["status"])

	w = h.do(t, http.MethodPost, "/api/v1/agents/"+id+"/toggle", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestLeaderboard(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "500")
	h.createAgent(t, "300")

	w := h.do(t, http.MethodGet, "/api/v1/leaderboards/hourly", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, handlers.ErrCodeInvalidPeriod, decode(t, w)["code"])

	w = h.do(t, http.MethodGet, "/api/v1/leaderboards/daily?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "daily", body["period"])
	assert.EqualValues(t, 1, body["count"])
}

func TestCrowdAndSnapshot(t *testing.T) {
	h := newHarness(t)
	h.createAgent(t, "500")

	w := h.do(t, http.MethodGet, "/api/v1/crowd", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/snapshot", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Momentum")
}

func TestMarketEndpoints_ServeMockWhenOffline(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodGet, "/api/v1/market/price/bitcoin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "bitcoin", body["id"])
	assert.Equal(t, "usd", body["currency"])

	w = h.do(t, http.MethodGet, "/api/v1/market?ids=bitcoin,ethereum", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode(t, w)["count"])

	w = h.do(t, http.MethodGet, "/api/v1/market/search", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/market/refresh", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, market.SourceMock, decode(t, w)["source"])
}

func TestCoach(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPost, "/api/v1/coach", map[string]interface{}{"message": ""})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/coach", map[string]interface{}{"message": "How risky is my setup?"})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.Equal(t, "assistant", body["role"])
	assert.NotEmpty(t, body["content"])

	w = h.do(t, http.MethodGet, "/api/v1/coach", nil)
	require.Equal(t, http.StatusOK, w.Code)
	history := decode(t, w)
	// greeting, question, reply
	assert.EqualValues(t, 3, history["count"])
	messages, ok := history["messages"].([]interface{})
	require.True(t, ok)
	require.Len(t, messages, 3)
	assert.Equal(t, "user", messages[1].(map[string]interface{})["role"])
	assert.Equal(t, "assistant", messages[2].(map[string]interface{})["role"])
}

func TestUserEndpoints(t *testing.T) {
	h := newHarness(t)

	w := h.do(t, http.MethodPatch, "/api/v1/user/settings", map[string]interface{}{"default_risk_level": 80})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 80, h.engine.User().Settings.DefaultRiskLevel)

	w = h.do(t, http.MethodGet, "/api/v1/pricing?agents=3&risk=50", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode(t, w)
	assert.EqualValues(t, 3, body["agent_count"])
	assert.Equal(t, "4.5", body["daily_price"])

	w = h.do(t, http.MethodGet, "/api/v1/config", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "10", decode(t, w)["Max Agents"])
}

type fakeReadiness map[string]string

func (f fakeReadiness) Ready(ctx context.Context) map[string]string { return f }

func TestHealthHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	hh := handlers.NewHealthHandler(fakeReadiness{"engine": "ok", "redis": "unavailable"}, zap.NewNop(), "1.7.0")
	router.GET("/health", hh.Health)
	router.GET("/ready", hh.Ready)
	router.GET("/version", hh.Version)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"status":"degraded"`))

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	assert.Contains(t, w.Body.String(), "1.7.0")
}
