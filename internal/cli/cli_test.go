package cli_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mikespro21/ARC/internal/cli"
	"github.com/Mikespro21/ARC/internal/domain/entities"
)

func newEngineStub(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()

	writeJSON := func(w http.ResponseWriter, status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}

	mux.HandleFunc("/api/v1/leaderboards/daily", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"period": "daily",
			"count":  1,
			"entries": []entities.LeaderboardEntry{{
				Rank:          1,
				BotID:         "BOT1A2B3C",
				AgentName:     "Momentum",
				Score:         decimal.RequireFromString("812.5"),
				ProfitPercent: decimal.RequireFromString("4.2"),
				Period:        entities.PeriodDaily,
			}},
		})
	})
	mux.HandleFunc("/api/v1/leaderboards/hourly", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, entities.ErrorResponse{Code: "INVALID_PERIOD", Message: "period must be one of daily, weekly, monthly, yearly"})
	})
	mux.HandleFunc("/api/v1/agents/agent-1/trades", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "buy", body["type"])
		assert.Equal(t, "bitcoin", body["asset"])
		writeJSON(w, http.StatusCreated, entities.Trade{
			ID:         "t1",
			AgentID:    "agent-1",
			Asset:      "bitcoin",
			Symbol:     "btc",
			Type:       entities.TradeTypeBuy,
			Amount:     decimal.RequireFromString("0.001"),
			Price:      decimal.RequireFromString("100000"),
			USDCAmount: decimal.RequireFromString("100"),
		})
	})
	mux.HandleFunc("/api/v1/agents/missing/trades", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, entities.ErrorResponse{Code: "AGENT_NOT_FOUND", Message: "agent not found"})
	})
	mux.HandleFunc("/api/v1/crowd", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, entities.CrowdMetrics{
			TotalAgents:   97,
			AvgRiskness:   decimal.RequireFromString("51.3"),
			TopStrategies: []entities.StrategyCount{{Strategy: entities.StrategySwing, Count: 20}},
		})
	})
	mux.HandleFunc("/version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"version": "1.7.0"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_Leaderboard(t *testing.T) {
	srv := newEngineStub(t)
	client := cli.NewClient(srv.URL, 5*time.Second)

	entries, err := client.Leaderboard(context.Background(), "daily", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "Momentum", entries[0].AgentName)
	assert.True(t, entries[0].Score.Equal(decimal.RequireFromString("812.5")))
}

func TestClient_ErrorsCarryCode(t *testing.T) {
	srv := newEngineStub(t)
	client := cli.NewClient(srv.URL, 5*time.Second)

	_, err := client.Leaderboard(context.Background(), "hourly", 0)
	require.Error(t, err)

	var apiErr *cli.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INVALID_PERIOD", apiErr.Code)

	_, err = client.Trade(context.Background(), "missing", cli.TradeParams{Asset: "bitcoin", Type: "buy", Amount: decimal.NewFromInt(1)})
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "AGENT_NOT_FOUND", apiErr.Code)
}

func run(t *testing.T, srv *httptest.Server, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--server", srv.URL}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	srv := newEngineStub(t)

	out, err := run(t, srv, "leaderboard", "daily", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, "Momentum")
	assert.Contains(t, out, "BOT1A2B3C")

	out, err = run(t, srv, "trade", "agent-1", "buy", "bitcoin", "--amount", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "BUY")
	assert.Contains(t, out, "$100.00")

	out, err = run(t, srv, "crowd")
	require.NoError(t, err)
	assert.Contains(t, out, "97")
	assert.Contains(t, out, "swing (20)")

	out, err = run(t, srv, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "server: 1.7.0")
}

func TestCommands_RejectBadInput(t *testing.T) {
	srv := newEngineStub(t)

	_, err := run(t, srv, "trade", "agent-1", "hold", "bitcoin", "--amount", "1")
	assert.ErrorContains(t, err, "side must be buy or sell")

	_, err = run(t, srv, "trade", "agent-1", "buy", "bitcoin", "--amount", "lots")
	assert.ErrorContains(t, err, "invalid amount")

	_, err = run(t, srv, "leaderboard", "hourly")
	assert.ErrorContains(t, err, "INVALID_PERIOD")
}

func TestRenderAgents_Empty(t *testing.T) {
	out := cli.RenderAgents(nil, 10)
	assert.Contains(t, out, "0/10")
	assert.Contains(t, out, "crowdctl create")
}
