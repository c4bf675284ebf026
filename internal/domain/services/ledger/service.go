// Package ledger applies trades and market prices to agent portfolios.
//
// Every function takes a portfolio by value and returns a new one; the input is
// never modified, so a rejected trade leaves the caller's state exactly as it was.
package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
)

// DefaultHistoryLimit bounds the number of value samples kept per portfolio
const DefaultHistoryLimit = 500

var hundred = decimal.NewFromInt(100)

// TradeRequest is a trade to be applied at a resolved execution price
type TradeRequest struct {
	AgentID        string
	Asset          string
	Symbol         string
	Type           entities.TradeType
	Amount         decimal.Decimal
	ExecutionPrice decimal.Decimal
	Reason         string
	Approved       bool
}

// Options tune value-history retention
type Options struct {
	HistoryLimit int
}

func (o Options) historyLimit() int {
	if o.HistoryLimit <= 0 {
		return DefaultHistoryLimit
	}
	return o.HistoryLimit
}

// ApplyTrade applies a buy or sell to the portfolio.
// It returns the updated portfolio and the recorded trade, or a domain error
// with the original portfolio untouched.
func ApplyTrade(p entities.Portfolio, req TradeRequest, now time.Time) (entities.Portfolio, entities.Trade, error) {
	return ApplyTradeWithOptions(p, req, now, Options{})
}

// ApplyTradeWithOptions is ApplyTrade with explicit history retention
func ApplyTradeWithOptions(p entities.Portfolio, req TradeRequest, now time.Time, opts Options) (entities.Portfolio, entities.Trade, error) {
	if !req.Type.IsValid() {
		return p, entities.Trade{}, domainerrors.InvalidTradeTypeError(string(req.Type))
	}
	if req.Amount.LessThanOrEqual(decimal.Zero) {
		return p, entities.Trade{}, domainerrors.InvalidAmountError("amount", req.Amount.String())
	}
	if req.ExecutionPrice.LessThanOrEqual(decimal.Zero) {
		return p, entities.Trade{}, domainerrors.InvalidAmountError("execution_price", req.ExecutionPrice.String())
	}

	next := p.Clone()
	usdcAmount := req.Amount.Mul(req.ExecutionPrice)
	realized := decimal.Zero

	switch req.Type {
	case entities.TradeTypeBuy:
		if usdcAmount.GreaterThan(next.USDCBalance) {
			return p, entities.Trade{}, domainerrors.InsufficientBalanceError(usdcAmount.String(), next.USDCBalance.String())
		}
		next.USDCBalance = next.USDCBalance.Sub(usdcAmount)

		if idx := next.PositionIndex(req.Asset); idx >= 0 {
			pos := next.Positions[idx]
			newAmount := pos.Amount.Add(req.Amount)
			pos.AveragePrice = pos.CostBasis().Add(usdcAmount).Div(newAmount)
			pos.Amount = newAmount
			next.Positions[idx] = valuePosition(pos, req.ExecutionPrice)
		} else {
			next.Positions = append(next.Positions, valuePosition(entities.Position{
				ID:           uuid.NewString(),
				Asset:        req.Asset,
				Symbol:       req.Symbol,
				Amount:       req.Amount,
				AveragePrice: req.ExecutionPrice,
				OpenedAt:     now,
			}, req.ExecutionPrice))
		}

	case entities.TradeTypeSell:
		idx := next.PositionIndex(req.Asset)
		if idx < 0 {
			return p, entities.Trade{}, domainerrors.NoPositionError(req.Asset)
		}
		pos := next.Positions[idx]
		if pos.Amount.LessThan(req.Amount) {
			return p, entities.Trade{}, domainerrors.InsufficientPositionError(req.Asset, pos.Amount.String(), req.Amount.String())
		}

		realized = req.ExecutionPrice.Sub(pos.AveragePrice).Mul(req.Amount)
		next.USDCBalance = next.USDCBalance.Add(usdcAmount)

		if pos.Amount.Equal(req.Amount) {
			next.Positions = append(next.Positions[:idx], next.Positions[idx+1:]...)
		} else {
			pos.Amount = pos.Amount.Sub(req.Amount)
			next.Positions[idx] = valuePosition(pos, req.ExecutionPrice)
		}
	}

	symbol := req.Symbol
	if symbol == "" {
		symbol = req.Asset
	}
	executedAt := now
	trade := entities.Trade{
		ID:          uuid.NewString(),
		AgentID:     req.AgentID,
		Asset:       req.Asset,
		Symbol:      symbol,
		Type:        req.Type,
		Amount:      req.Amount,
		Price:       req.ExecutionPrice,
		USDCAmount:  usdcAmount,
		RealizedPnL: realized,
		Timestamp:   now,
		Reason:      req.Reason,
		Approved:    req.Approved,
		ExecutedAt:  &executedAt,
	}
	next.Trades = append(next.Trades, trade)

	recomputeTotal(&next, now, opts.historyLimit())
	return next, trade, nil
}

// RepriceAgainstMarket marks every position with a price entry to market and
// recomputes the portfolio total. Positions without a price are left unchanged.
// Repricing twice with the same prices yields the same portfolio as once.
func RepriceAgainstMarket(p entities.Portfolio, prices map[string]decimal.Decimal, now time.Time) entities.Portfolio {
	return RepriceAgainstMarketWithOptions(p, prices, now, Options{})
}

// RepriceAgainstMarketWithOptions is RepriceAgainstMarket with explicit history retention
func RepriceAgainstMarketWithOptions(p entities.Portfolio, prices map[string]decimal.Decimal, now time.Time, opts Options) entities.Portfolio {
	next := p.Clone()
	for i, pos := range next.Positions {
		price, ok := prices[pos.Asset]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			continue
		}
		next.Positions[i] = valuePosition(pos, price)
	}
	recomputeTotal(&next, now, opts.historyLimit())
	return next
}

// LiquidationRequests builds sell requests that close every open position at
// the given prices, falling back to each position's current price.
func LiquidationRequests(p entities.Portfolio, prices map[string]decimal.Decimal, reason string) []TradeRequest {
	reqs := make([]TradeRequest, 0, len(p.Positions))
	for _, pos := range p.Positions {
		price, ok := prices[pos.Asset]
		if !ok || price.LessThanOrEqual(decimal.Zero) {
			price = pos.CurrentPrice
		}
		reqs = append(reqs, TradeRequest{
			AgentID:        p.AgentID,
			Asset:          pos.Asset,
			Symbol:         pos.Symbol,
			Type:           entities.TradeTypeSell,
			Amount:         pos.Amount,
			ExecutionPrice: price,
			Reason:         reason,
			Approved:       true,
		})
	}
	return reqs
}

func valuePosition(pos entities.Position, price decimal.Decimal) entities.Position {
	pos.CurrentPrice = price
	pos.Value = pos.Amount.Mul(price)
	cost := pos.CostBasis()
	pos.ProfitLoss = pos.Value.Sub(cost)
	if cost.GreaterThan(decimal.Zero) {
		pos.ProfitLossPercent = pos.ProfitLoss.Div(cost).Mul(hundred)
	} else {
		pos.ProfitLossPercent = decimal.Zero
	}
	return pos
}

func recomputeTotal(p *entities.Portfolio, now time.Time, historyLimit int) {
	p.TotalValue = p.USDCBalance.Add(p.PositionsValue())
	p.LastUpdated = now

	n := len(p.ValueHistory)
	if n > 0 && p.ValueHistory[n-1].Value.Equal(p.TotalValue) {
		return
	}
	p.ValueHistory = append(p.ValueHistory, entities.ValuePoint{Value: p.TotalValue, At: now})
	if over := len(p.ValueHistory) - historyLimit; over > 0 {
		p.ValueHistory = append([]entities.ValuePoint(nil), p.ValueHistory[over:]...)
	}
}
