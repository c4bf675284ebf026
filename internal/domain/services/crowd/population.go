package crowd

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	"github.com/Mikespro21/ARC/internal/domain/services/ledger"
	"github.com/Mikespro21/ARC/internal/domain/services/market"
)

// CrowdUserID owns every generated agent
const CrowdUserID = "crowd"

var greekNames = []string{"Alpha", "Beta", "Gamma", "Delta", "Epsilon", "Zeta", "Eta", "Theta", "Iota", "Kappa"}

// seedAssets are the coins generated agents trade
var seedAssets = []string{"bitcoin", "ethereum", "solana", "cardano", "polkadot"}

const botIDAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// PopulationConfig controls crowd generation
type PopulationConfig struct {
	Size int
	Seed int64
	// Prices are the current market prices; missing assets use mock prices
	Prices map[string]decimal.Decimal
	Now    time.Time
}

// GeneratePopulation builds a deterministic crowd for the given seed. Every
// agent's portfolio is produced by running real trades through the ledger at
// jittered historical prices and then marking to market.
func GeneratePopulation(cfg PopulationConfig) []*entities.Agent {
	r := rand.New(rand.NewSource(cfg.Seed))
	agents := make([]*entities.Agent, 0, cfg.Size)
	for i := 0; i < cfg.Size; i++ {
		agents = append(agents, generateAgent(r, i, cfg))
	}
	return agents
}

func generateAgent(r *rand.Rand, i int, cfg PopulationConfig) *entities.Agent {
	id := fmt.Sprintf("crowd_%d", i+1)
	name := fmt.Sprintf("Agent %d", i+1)
	if i < len(greekNames) {
		name = "Agent " + greekNames[i]
	}

	initial := decimal.NewFromFloat(1000 + r.Float64()*4000).Round(2)
	createdAt := cfg.Now.Add(-time.Duration(r.Float64() * float64(90*24*time.Hour)))

	strategy := entities.AgentStrategy{Type: entities.SeedStrategies[r.Intn(len(entities.SeedStrategies))]}
	if r.Float64() > 0.5 {
		strategy.CopyMode = []entities.CopyMode{entities.CopyModeMirror, entities.CopyModeRules, entities.CopyModeStrategy}[r.Intn(3)]
	}

	status := entities.AgentStatusActive
	if r.Float64() <= 0.1 {
		status = entities.AgentStatusPaused
		if r.Float64() > 0.5 {
			status = entities.AgentStatusExited
		}
	}

	settings := entities.DefaultAgentSettings()
	settings.MaxPositionSize = decimal.NewFromFloat(15 + r.Float64()*20).Round(2)
	settings.MaxTradesPerDay = 5 + r.Intn(15)
	settings.AutoApprove = r.Float64() > 0.3
	settings.SafetyExits[0].Threshold = decimal.NewFromFloat(5 + r.Float64()*15).Round(2)
	settings.SafetyExits[1].Threshold = decimal.NewFromFloat(20 + r.Float64()*20).Round(2)

	agent := &entities.Agent{
		ID:             id,
		BotID:          botID(r),
		Name:           name,
		UserID:         CrowdUserID,
		Strategy:       strategy,
		Riskness:       r.Intn(100),
		Status:         status,
		Settings:       settings,
		Streaks:        r.Intn(13),
		InitialBalance: initial,
		CreatedAt:      createdAt,
		Portfolio:      entities.NewPortfolio(id, initial, createdAt),
	}

	trades := 4 + r.Intn(12)
	span := cfg.Now.Sub(createdAt)
	for k := 0; k < trades; k++ {
		at := createdAt.Add(span * time.Duration(k+1) / time.Duration(trades+1))
		req, ok := randomTrade(r, agent, cfg.Prices, jitter(r, 0.85, 0.3))
		if !ok {
			continue
		}
		next, _, err := ledger.ApplyTrade(agent.Portfolio, req, at)
		if err != nil {
			continue
		}
		agent.Portfolio = next
		t := at
		agent.LastTradeAt = &t
	}

	agent.Portfolio = ledger.RepriceAgainstMarket(agent.Portfolio, pricesFor(cfg.Prices), cfg.Now)
	agent.DayOpenValue = agent.Portfolio.TotalValue
	return agent
}

// NextTrade decides whether a crowd agent trades on this tick and, if so,
// returns the request priced at the current market. probability is the chance
// of trading on a single tick.
func NextTrade(r *rand.Rand, agent *entities.Agent, prices map[string]decimal.Decimal, probability float64) (ledger.TradeRequest, bool) {
	if !agent.IsActive() || r.Float64() >= probability {
		return ledger.TradeRequest{}, false
	}
	return randomTrade(r, agent, prices, decimal.NewFromInt(1))
}

func randomTrade(r *rand.Rand, agent *entities.Agent, prices map[string]decimal.Decimal, priceFactor decimal.Decimal) (ledger.TradeRequest, bool) {
	asset := seedAssets[r.Intn(len(seedAssets))]
	price := priceOf(prices, asset).Mul(priceFactor)
	p := agent.Portfolio

	if idx := p.PositionIndex(asset); idx >= 0 && r.Float64() < 0.45 {
		held := p.Positions[idx].Amount
		amount := held
		if r.Float64() < 0.6 {
			amount = held.Mul(decimal.NewFromFloat(0.2 + r.Float64()*0.6)).Truncate(8)
		}
		if amount.LessThanOrEqual(decimal.Zero) {
			return ledger.TradeRequest{}, false
		}
		return ledger.TradeRequest{
			AgentID:        agent.ID,
			Asset:          asset,
			Symbol:         market.SymbolFor(asset),
			Type:           entities.TradeTypeSell,
			Amount:         amount,
			ExecutionPrice: price,
			Reason:         "crowd rebalance",
			Approved:       true,
		}, true
	}

	spend := p.USDCBalance.Mul(decimal.NewFromFloat(0.05 + r.Float64()*0.15))
	amount := spend.Div(price).Truncate(8)
	if amount.LessThanOrEqual(decimal.Zero) {
		return ledger.TradeRequest{}, false
	}
	return ledger.TradeRequest{
		AgentID:        agent.ID,
		Asset:          asset,
		Symbol:         market.SymbolFor(asset),
		Type:           entities.TradeTypeBuy,
		Amount:         amount,
		ExecutionPrice: price,
		Reason:         "crowd entry",
		Approved:       true,
	}, true
}

func pricesFor(prices map[string]decimal.Decimal) map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(seedAssets))
	for _, asset := range seedAssets {
		out[asset] = priceOf(prices, asset)
	}
	return out
}

func priceOf(prices map[string]decimal.Decimal, asset string) decimal.Decimal {
	if p, ok := prices[asset]; ok && p.GreaterThan(decimal.Zero) {
		return p
	}
	return market.MockPrice(asset)
}

func jitter(r *rand.Rand, base, spread float64) decimal.Decimal {
	return decimal.NewFromFloat(base + r.Float64()*spread).Round(4)
}

func botID(r *rand.Rand) string {
	b := make([]byte, 6)
	for i := range b {
		b[i] = botIDAlphabet[r.Intn(len(botIDAlphabet))]
	}
	return "BOT" + string(b)
}
