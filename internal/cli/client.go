package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

// APIError is a non-2xx answer from the engine
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("engine returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s (%d)", e.Code, e.Message, e.Status)
}

// Client talks to the engine HTTP API
type Client struct {
	http *resty.Client
}

// NewClient creates a client for the engine at baseURL
func NewClient(baseURL string, timeout time.Duration) *Client {
	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetError(&entities.ErrorResponse{})

	return &Client{http: httpClient}
}

type leaderboardResponse struct {
	Period  entities.LeaderboardPeriod  `json:"period"`
	Entries []entities.LeaderboardEntry `json:"entries"`
	Count   int                         `json:"count"`
}

type agentsResponse struct {
	Agents []entities.Agent `json:"agents"`
	Count  int              `json:"count"`
	Limit  int              `json:"limit"`
}

type marketsResponse struct {
	Markets []entities.MarketData `json:"markets"`
	Count   int                   `json:"count"`
}

type versionResponse struct {
	Version string `json:"version"`
}

// CreateAgentParams mirrors the create agent request body
type CreateAgentParams struct {
	Name           string          `json:"name"`
	Strategy       string          `json:"strategy"`
	CopyMode       string          `json:"copy_mode,omitempty"`
	Riskness       int             `json:"riskness"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
}

// TradeParams mirrors the trade request body
type TradeParams struct {
	Asset  string          `json:"asset"`
	Type   string          `json:"type"`
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason,omitempty"`
}

type coachRequest struct {
	Message string `json:"message"`
	AgentID string `json:"agent_id,omitempty"`
}

// Leaderboard fetches the ranking for period, truncated to limit when positive
func (c *Client) Leaderboard(ctx context.Context, period string, limit int) ([]entities.LeaderboardEntry, error) {
	var out leaderboardResponse
	req := c.http.R().SetContext(ctx).SetResult(&out).SetPathParam("period", period)
	if limit > 0 {
		req.SetQueryParam("limit", fmt.Sprintf("%d", limit))
	}
	if err := check(req.Get("/api/v1/leaderboards/{period}")); err != nil {
		return nil, err
	}
	return out.Entries, nil
}

// Crowd fetches crowd metrics
func (c *Client) Crowd(ctx context.Context) (*entities.CrowdMetrics, error) {
	var out entities.CrowdMetrics
	if err := check(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/crowd")); err != nil {
		return nil, err
	}
	return &out, nil
}

// Agents lists the user's agents and the agent limit
func (c *Client) Agents(ctx context.Context) ([]entities.Agent, int, error) {
	var out agentsResponse
	if err := check(c.http.R().SetContext(ctx).SetResult(&out).Get("/api/v1/agents")); err != nil {
		return nil, 0, err
	}
	return out.Agents, out.Limit, nil
}

// CreateAgent creates and funds an agent
func (c *Client) CreateAgent(ctx context.Context, params CreateAgentParams) (*entities.Agent, error) {
	var out entities.Agent
	resp, err := c.http.R().SetContext(ctx).SetBody(params).SetResult(&out).Post("/api/v1/agents")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Trade executes a paper trade for agentID
func (c *Client) Trade(ctx context.Context, agentID string, params TradeParams) (*entities.Trade, error) {
	var out entities.Trade
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", agentID).
		SetBody(params).
		SetResult(&out).
		Post("/api/v1/agents/{id}/trades")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Market fetches market data for ids, or the default set when ids is empty
func (c *Client) Market(ctx context.Context, ids string) ([]entities.MarketData, error) {
	var out marketsResponse
	req := c.http.R().SetContext(ctx).SetResult(&out)
	if ids != "" {
		req.SetQueryParam("ids", ids)
	}
	if err := check(req.Get("/api/v1/market")); err != nil {
		return nil, err
	}
	return out.Markets, nil
}

// Coach asks the coach one question
func (c *Client) Coach(ctx context.Context, message, agentID string) (*entities.CoachMessage, error) {
	var out entities.CoachMessage
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(coachRequest{Message: message, AgentID: agentID}).
		SetResult(&out).
		Post("/api/v1/coach")
	if err := check(resp, err); err != nil {
		return nil, err
	}
	return &out, nil
}

// Version returns the server version
func (c *Client) Version(ctx context.Context) (string, error) {
	var out versionResponse
	if err := check(c.http.R().SetContext(ctx).SetResult(&out).Get("/version")); err != nil {
		return "", err
	}
	return out.Version, nil
}

func check(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{Status: resp.StatusCode()}
	if body, ok := resp.Error().(*entities.ErrorResponse); ok && body != nil {
		apiErr.Code = body.Code
		apiErr.Message = body.Message
	}
	return apiErr
}
