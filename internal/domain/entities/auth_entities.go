package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// UserSettings are the per-user limits and preferences
type UserSettings struct {
	MaxAgents           int  `json:"max_agents"`
	DefaultRiskLevel    int  `json:"default_risk_level"`    // 0-100
	MaxDeviationPercent int  `json:"max_deviation_percent"` // max crowd deviation allowed
	Notifications       bool `json:"notifications"`
}

// User is the single local owner of agents
type User struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	USDCBalance   decimal.Decimal `json:"usdc_balance"`
	CreatedAt     time.Time       `json:"created_at"`
	Settings      UserSettings    `json:"settings"`
}

// DefaultUser returns the demo user the engine starts with
func DefaultUser() User {
	return User{
		ID:          "user_1",
		Name:        "Miguel",
		Email:       "miguel@crowdlike.app",
		USDCBalance: decimal.NewFromInt(10000),
		CreatedAt:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Settings: UserSettings{
			MaxAgents:           10,
			DefaultRiskLevel:    50,
			MaxDeviationPercent: 30,
			Notifications:       true,
		},
	}
}

// UserSettingsUpdate is a partial update of UserSettings
type UserSettingsUpdate struct {
	MaxAgents           *int  `json:"max_agents,omitempty" binding:"omitempty,min=1,max=100"`
	DefaultRiskLevel    *int  `json:"default_risk_level,omitempty" binding:"omitempty,min=0,max=100"`
	MaxDeviationPercent *int  `json:"max_deviation_percent,omitempty" binding:"omitempty,min=0,max=100"`
	Notifications       *bool `json:"notifications,omitempty"`
}

// PricingInfo is the agent subscription cost estimate
type PricingInfo struct {
	AgentCount      int             `json:"agent_count"`
	RiskLevel       int             `json:"risk_level"`
	DailyPrice      decimal.Decimal `json:"daily_price"` // agentCount^2 * risk/100
	MonthlyEstimate decimal.Decimal `json:"monthly_estimate"`
}

// CoachMessage is one turn of the advisory conversation
type CoachMessage struct {
	ID        string    `json:"id"`
	Role      string    `json:"role"` // user or assistant
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	AgentID   string    `json:"agent_id,omitempty"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}
