package handlers

import (
	"github.com/go-playground/validator/v10"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

// NewValidator returns a validator with the engine's enum tags registered:
// strategy, copymode, period, tradetype and agentstatus
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("strategy", func(fl validator.FieldLevel) bool {
		return entities.StrategyType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("copymode", func(fl validator.FieldLevel) bool {
		return entities.CopyMode(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("period", func(fl validator.FieldLevel) bool {
		return entities.LeaderboardPeriod(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("tradetype", func(fl validator.FieldLevel) bool {
		return entities.TradeType(fl.Field().String()).IsValid()
	})
	_ = v.RegisterValidation("agentstatus", func(fl validator.FieldLevel) bool {
		status := entities.AgentStatus(fl.Field().String())
		return status == entities.AgentStatusActive || status == entities.AgentStatusPaused
	})
	return v
}
