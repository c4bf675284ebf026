package errors

import (
	"errors"
	"fmt"
)

// Ledger and agent command errors
var (
	// Ledger errors
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidTradeType     = errors.New("invalid trade type")
	ErrInsufficientBalance  = errors.New("insufficient USDC balance")
	ErrNoPosition           = errors.New("no position for asset")
	ErrInsufficientPosition = errors.New("insufficient position")

	// Performance errors
	ErrInvalidBaseline = errors.New("baseline value must be positive")

	// Agent errors
	ErrAgentNotFound      = errors.New("agent not found")
	ErrAgentLimitExceeded = errors.New("agent limit exceeded")
	ErrAgentNotActive     = errors.New("agent is not active")
	ErrAgentExited        = errors.New("agent has exited")
	ErrAssetNotAllowed    = errors.New("asset not allowed for agent")
	ErrTradeLimitExceeded = errors.New("daily trade limit exceeded")
	ErrSafetyExitNotFound = errors.New("safety exit not found")

	// Market errors
	ErrMarketDataUnavailable = errors.New("market data unavailable")
)

// InvalidAmountError creates an invalid amount error
func InvalidAmountError(field, amount string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidAmount,
		Code:    "INVALID_AMOUNT",
		Message: fmt.Sprintf("%s must be positive", field),
		Details: map[string]interface{}{
			"field":  field,
			"amount": amount,
		},
	}
}

// MinimumBalanceError reports an agent balance below the configured floor
func MinimumBalanceError(minimum, provided string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidAmount,
		Code:    "MINIMUM_BALANCE_NOT_MET",
		Message: "initial balance is below the minimum agent balance",
		Details: map[string]interface{}{
			"minimum":  minimum,
			"provided": provided,
		},
	}
}

// InvalidTradeTypeError creates an invalid trade type error
func InvalidTradeTypeError(tradeType string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidTradeType,
		Code:    "INVALID_TRADE_TYPE",
		Message: "trade type must be buy or sell",
		Details: map[string]interface{}{
			"type": tradeType,
		},
	}
}

// InsufficientBalanceError creates an insufficient balance error
func InsufficientBalanceError(required, available string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientBalance,
		Code:    "INSUFFICIENT_BALANCE",
		Message: "insufficient USDC balance",
		Details: map[string]interface{}{
			"required":  required,
			"available": available,
		},
	}
}

// NoPositionError creates a missing position error
func NoPositionError(asset string) *DomainError {
	return &DomainError{
		Err:     ErrNoPosition,
		Code:    "NO_POSITION",
		Message: "no position held for this asset",
		Details: map[string]interface{}{
			"asset": asset,
		},
	}
}

// InsufficientPositionError creates an insufficient position error
func InsufficientPositionError(asset string, available, required string) *DomainError {
	return &DomainError{
		Err:     ErrInsufficientPosition,
		Code:    "INSUFFICIENT_POSITION",
		Message: "insufficient position for this sell",
		Details: map[string]interface{}{
			"asset":     asset,
			"available": available,
			"required":  required,
		},
	}
}

// InvalidBaselineError creates an invalid baseline error
func InvalidBaselineError(baseline string) *DomainError {
	return &DomainError{
		Err:     ErrInvalidBaseline,
		Code:    "INVALID_BASELINE",
		Message: "baseline value must be positive",
		Details: map[string]interface{}{
			"baseline": baseline,
		},
	}
}

// AgentNotFoundError creates an agent not found error
func AgentNotFoundError(agentID string) *DomainError {
	return &DomainError{
		Err:     ErrAgentNotFound,
		Code:    "AGENT_NOT_FOUND",
		Message: "agent not found",
		Details: map[string]interface{}{
			"agent_id": agentID,
		},
	}
}

// AgentLimitExceededError creates an agent limit error
func AgentLimitExceededError(limit int) *DomainError {
	return &DomainError{
		Err:     ErrAgentLimitExceeded,
		Code:    "AGENT_LIMIT_EXCEEDED",
		Message: fmt.Sprintf("maximum %d agents allowed", limit),
		Details: map[string]interface{}{
			"limit": limit,
		},
	}
}

// AgentNotActiveError reports a command that requires an active agent
func AgentNotActiveError(agentID, status string) *DomainError {
	return &DomainError{
		Err:     ErrAgentNotActive,
		Code:    "AGENT_NOT_ACTIVE",
		Message: "agent is not active",
		Details: map[string]interface{}{
			"agent_id": agentID,
			"status":   status,
		},
	}
}

// AgentExitedError reports a command on an agent that already exited
func AgentExitedError(agentID string) *DomainError {
	return &DomainError{
		Err:     ErrAgentExited,
		Code:    "AGENT_EXITED",
		Message: "agent has exited and cannot be resumed",
		Details: map[string]interface{}{
			"agent_id": agentID,
		},
	}
}

// AssetNotAllowedError creates an asset restriction error
func AssetNotAllowedError(asset string) *DomainError {
	return &DomainError{
		Err:     ErrAssetNotAllowed,
		Code:    "ASSET_NOT_ALLOWED",
		Message: "asset is not in the agent's allowed list",
		Details: map[string]interface{}{
			"asset": asset,
		},
	}
}

// TradeLimitExceededError creates a daily trade limit error
func TradeLimitExceededError(limit int) *DomainError {
	return &DomainError{
		Err:     ErrTradeLimitExceeded,
		Code:    "TRADE_LIMIT_EXCEEDED",
		Message: fmt.Sprintf("maximum %d trades per day reached", limit),
		Details: map[string]interface{}{
			"limit": limit,
		},
	}
}

// SafetyExitNotFoundError creates a missing safety exit error
func SafetyExitNotFoundError(exitID string) *DomainError {
	return &DomainError{
		Err:     ErrSafetyExitNotFound,
		Code:    "SAFETY_EXIT_NOT_FOUND",
		Message: "safety exit not found",
		Details: map[string]interface{}{
			"exit_id": exitID,
		},
	}
}

// MarketDataUnavailableError wraps an upstream market data failure
func MarketDataUnavailableError(source string, err error) *DomainError {
	de := &DomainError{
		Err:       ErrMarketDataUnavailable,
		Code:      "MARKET_DATA_UNAVAILABLE",
		Message:   "market data unavailable",
		Retryable: true,
		Details: map[string]interface{}{
			"source": source,
		},
	}
	if err != nil {
		de.Details["cause"] = err.Error()
	}
	return de
}

// IsInsufficientBalance checks if error is insufficient balance
func IsInsufficientBalance(err error) bool {
	return errors.Is(err, ErrInsufficientBalance)
}

// IsInsufficientPosition checks if error is insufficient position
func IsInsufficientPosition(err error) bool {
	return errors.Is(err, ErrInsufficientPosition)
}
