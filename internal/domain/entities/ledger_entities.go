package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeType is the direction of a trade
type TradeType string

const (
	TradeTypeBuy  TradeType = "buy"
	TradeTypeSell TradeType = "sell"
)

func (t TradeType) IsValid() bool {
	return t == TradeTypeBuy || t == TradeTypeSell
}

// Position is an agent's holding in one asset
type Position struct {
	ID                string          `json:"id"`
	Asset             string          `json:"asset"`  // e.g. "bitcoin"
	Symbol            string          `json:"symbol"` // e.g. "BTC"
	Amount            decimal.Decimal `json:"amount"`
	AveragePrice      decimal.Decimal `json:"average_price"`
	CurrentPrice      decimal.Decimal `json:"current_price"`
	Value             decimal.Decimal `json:"value"`
	ProfitLoss        decimal.Decimal `json:"profit_loss"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
	OpenedAt          time.Time       `json:"opened_at"`
}

// CostBasis returns amount * average price
func (p Position) CostBasis() decimal.Decimal {
	return p.Amount.Mul(p.AveragePrice)
}

// Trade is an immutable record of one executed buy or sell
type Trade struct {
	ID          string          `json:"id"`
	AgentID     string          `json:"agent_id"`
	Asset       string          `json:"asset"`
	Symbol      string          `json:"symbol"`
	Type        TradeType       `json:"type"`
	Amount      decimal.Decimal `json:"amount"`
	Price       decimal.Decimal `json:"price"`
	USDCAmount  decimal.Decimal `json:"usdc_amount"`
	RealizedPnL decimal.Decimal `json:"realized_pnl"`
	Timestamp   time.Time       `json:"timestamp"`
	Reason      string          `json:"reason,omitempty"`
	Approved    bool            `json:"approved"`
	ExecutedAt  *time.Time      `json:"executed_at,omitempty"`
}

// IsProfitable reports whether the trade realized a gain
func (t Trade) IsProfitable() bool {
	return t.RealizedPnL.GreaterThan(decimal.Zero)
}

// ValuePoint is a sample of a portfolio's total value
type ValuePoint struct {
	Value decimal.Decimal `json:"value"`
	At    time.Time       `json:"at"`
}

// Portfolio is cash, positions and trade history owned by one agent
type Portfolio struct {
	AgentID      string          `json:"agent_id"`
	USDCBalance  decimal.Decimal `json:"usdc_balance"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Positions    []Position      `json:"positions"`
	Trades       []Trade         `json:"trades"`
	ValueHistory []ValuePoint    `json:"value_history,omitempty"`
	LastUpdated  time.Time       `json:"last_updated"`
}

// NewPortfolio returns an empty portfolio funded with the given cash
func NewPortfolio(agentID string, cash decimal.Decimal, now time.Time) Portfolio {
	return Portfolio{
		AgentID:      agentID,
		USDCBalance:  cash,
		TotalValue:   cash,
		Positions:    []Position{},
		Trades:       []Trade{},
		ValueHistory: []ValuePoint{{Value: cash, At: now}},
		LastUpdated:  now,
	}
}

// Clone returns a copy whose slices can be modified independently
func (p Portfolio) Clone() Portfolio {
	c := p
	c.Positions = append(make([]Position, 0, len(p.Positions)), p.Positions...)
	c.Trades = append(make([]Trade, 0, len(p.Trades)), p.Trades...)
	c.ValueHistory = append(make([]ValuePoint, 0, len(p.ValueHistory)), p.ValueHistory...)
	return c
}

// PositionIndex returns the index of the position for asset, or -1
func (p Portfolio) PositionIndex(asset string) int {
	for i := range p.Positions {
		if p.Positions[i].Asset == asset {
			return i
		}
	}
	return -1
}

// PositionsValue sums the value of every open position
func (p Portfolio) PositionsValue() decimal.Decimal {
	total := decimal.Zero
	for _, pos := range p.Positions {
		total = total.Add(pos.Value)
	}
	return total
}
