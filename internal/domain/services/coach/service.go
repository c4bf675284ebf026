// Package coach answers user questions with keyword-matched advice built from
// the current engine snapshot. It never mutates engine state.
package coach

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Mikespro21/ARC/internal/domain/entities"
	domainerrors "github.com/Mikespro21/ARC/internal/domain/errors"
	"github.com/Mikespro21/ARC/internal/domain/services/agent"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"

	// HistoryLimit bounds the retained conversation
	HistoryLimit = 100
)

const greeting = "Hello! I'm your AI Coach. I can help you optimize your trading strategies, " +
	"analyze agent performance, and provide insights based on crowd behavior. How can I assist you today?"

// SnapshotSource provides the read-only engine view
type SnapshotSource interface {
	Snapshot(ctx context.Context) *entities.EngineSnapshot
}

// Topic is the advice category a message matched
type Topic string

const (
	TopicStrategy Topic = "strategy"
	TopicAgent    Topic = "agent"
	TopicMarket   Topic = "market"
	TopicSafety   Topic = "safety"
	TopicCrowd    Topic = "crowd"
	TopicPricing  Topic = "pricing"
	TopicHelp     Topic = "help"
)

// topicKeywords is checked in order; the first topic with a matching keyword wins
var topicKeywords = []struct {
	topic    Topic
	keywords []string
}{
	{TopicStrategy, []string{"strategy", "improve", "better"}},
	{TopicAgent, []string{"agent"}},
	{TopicMarket, []string{"market", "buy", "sell"}},
	{TopicSafety, []string{"safety", "risk", "loss"}},
	{TopicCrowd, []string{"crowd", "learn", "copy"}},
	{TopicPricing, []string{"price", "cost", "pay"}},
}

// Classify returns the topic of a message
func Classify(message string) Topic {
	lower := strings.ToLower(message)
	for _, tk := range topicKeywords {
		for _, kw := range tk.keywords {
			if strings.Contains(lower, kw) {
				return tk.topic
			}
		}
	}
	return TopicHelp
}

// Service is the advisory coach
type Service struct {
	source SnapshotSource
	logger *zap.Logger
	now    func() time.Time

	mu      sync.Mutex
	history []entities.CoachMessage
}

// NewService creates a coach whose conversation starts with a greeting
func NewService(source SnapshotSource, logger *zap.Logger) *Service {
	s := &Service{
		source: source,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
	s.history = []entities.CoachMessage{s.message(RoleAssistant, greeting, "")}
	return s
}

// SetClock overrides the message clock. Call it before the first Ask.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// History returns the retained conversation, oldest first
func (s *Service) History() []entities.CoachMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.CoachMessage(nil), s.history...)
}

// Ask records the user's message and returns the coach's reply. agentID
// optionally focuses agent advice on one agent.
func (s *Service) Ask(ctx context.Context, message, agentID string) (entities.CoachMessage, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return entities.CoachMessage{}, domainerrors.ValidationError("message", "message is required")
	}

	question := s.message(RoleUser, message, agentID)
	topic := Classify(message)
	snap := s.source.Snapshot(ctx)
	reply := s.message(RoleAssistant, Respond(topic, snap, agentID), agentID)

	s.mu.Lock()
	s.history = append(s.history, question, reply)
	if over := len(s.history) - HistoryLimit; over > 0 {
		s.history = append([]entities.CoachMessage(nil), s.history[over:]...)
	}
	s.mu.Unlock()

	s.logger.Debug("Coach reply", zap.String("topic", string(topic)), zap.String("agent_id", agentID))
	return reply, nil
}

func (s *Service) message(role, content, agentID string) entities.CoachMessage {
	return entities.CoachMessage{
		ID:        uuid.New().String(),
		Role:      role,
		Content:   content,
		Timestamp: s.now(),
		AgentID:   agentID,
	}
}

// Respond renders the advice for a topic from the snapshot
func Respond(topic Topic, snap *entities.EngineSnapshot, agentID string) string {
	switch topic {
	case TopicStrategy:
		return strategyAdvice(snap)
	case TopicAgent:
		return agentAdvice(snap, agentID)
	case TopicMarket:
		return marketAdvice(snap.CrowdMetrics)
	case TopicSafety:
		return safetyAdvice()
	case TopicCrowd:
		return crowdAdvice(snap.CrowdMetrics)
	case TopicPricing:
		return pricingAdvice(len(snap.Agents), snap.User.Settings.DefaultRiskLevel)
	}
	return helpText()
}

func strategyAdvice(snap *entities.EngineSnapshot) string {
	sum := decimal.Zero
	for _, a := range snap.Agents {
		sum = sum.Add(a.Performance.TotalProfitPercent)
	}
	n := len(snap.Agents)
	if n == 0 {
		n = 1
	}
	avg := sum.Div(decimal.NewFromInt(int64(n)))
	cm := snap.CrowdMetrics

	var b strings.Builder
	fmt.Fprintf(&b, "Based on your current performance (avg %s%% profit), I recommend:\n\n", avg.StringFixed(2))
	b.WriteString("1. **Diversify Risk Levels**: Balance aggressive agents (risk 70-100) with conservative ones (risk 20-40).\n\n")
	fmt.Fprintf(&b, "2. **Leverage Crowd Learning**: The crowd's average risk is %s. Agents closer to it tend to perform consistently.\n\n", cm.AvgRiskness)
	b.WriteString("3. **Monitor Win Rates**: Focus on agents winning above 55% and adjust strategies for underperformers.\n\n")
	fmt.Fprintf(&b, "4. **Position Sizing**: The crowd average is %s%% per trade. Your agents should align with or slightly beat it.\n\n", cm.AvgPositionSize.StringFixed(0))
	b.WriteString("Would you like specific recommendations for any particular agent?")
	return b.String()
}

func agentAdvice(snap *entities.EngineSnapshot, agentID string) string {
	if len(snap.Agents) == 0 {
		return "You don't have any agents yet. Create one to start paper trading and I'll analyze its performance."
	}

	best, worst := snap.Agents[0], snap.Agents[0]
	for _, a := range snap.Agents[1:] {
		if a.Performance.TotalProfitPercent.GreaterThan(best.Performance.TotalProfitPercent) {
			best = a
		}
		if a.Performance.TotalProfitPercent.LessThan(worst.Performance.TotalProfitPercent) {
			worst = a
		}
	}

	var b strings.Builder
	b.WriteString("Agent Performance Analysis:\n\n")
	if focus := findAgent(snap.Agents, agentID); focus != nil {
		writeAgentSummary(&b, "Selected Agent", focus)
		fmt.Fprintf(&b, "- Crowd Deviation: %s%%\n\n", focus.Performance.CrowdDeviation)
	}
	writeAgentSummary(&b, "Best Performer", best)
	b.WriteString("\n")
	writeAgentSummary(&b, "Needs Attention", worst)
	fmt.Fprintf(&b, "\n**Recommendation**: Consider copying %s's strategy to %s, or adjust %s's risk parameters.",
		best.Name, worst.Name, worst.Name)
	return b.String()
}

func writeAgentSummary(b *strings.Builder, title string, a *entities.Agent) {
	fmt.Fprintf(b, "**%s**: %s\n", title, a.Name)
	fmt.Fprintf(b, "- Profit: %s%%\n", a.Performance.TotalProfitPercent.StringFixed(2))
	fmt.Fprintf(b, "- Strategy: %s\n", a.Strategy.Type)
	fmt.Fprintf(b, "- Win Rate: %s%%\n", a.Performance.WinRate.StringFixed(0))
}

func findAgent(agents []*entities.Agent, id string) *entities.Agent {
	if id == "" {
		return nil
	}
	for _, a := range agents {
		if a.ID == id {
			return a
		}
	}
	return nil
}

func marketAdvice(cm entities.CrowdMetrics) string {
	var b strings.Builder
	b.WriteString("Market Strategy Insights:\n\n")
	fmt.Fprintf(&b, "1. **Crowd Behavior**: Currently %d active agents trading with average %s trades/day.\n\n",
		cm.TotalAgents, cm.AvgTradesPerDay.StringFixed(1))
	fmt.Fprintf(&b, "2. **Popular Strategies**: %s are most common.\n\n", strategyNames(cm.TopStrategies, false))
	fmt.Fprintf(&b, "3. **Risk Analysis**: Current crowd risk average is %s. Agents above 70 show more volatility but potentially higher returns.\n\n", cm.AvgRiskness)
	fmt.Fprintf(&b, "4. **Position Sizing**: Stay within %s%% ± 10%% for optimal risk-adjusted returns.\n\n", cm.AvgPositionSize.StringFixed(0))
	b.WriteString("**Tip**: Paper trading lets you test strategies without real risk. Use it to experiment!")
	return b.String()
}

func safetyAdvice() string {
	return "Safety & Risk Management Tips:\n\n" +
		"1. **Always Set Exit Triggers**: Configure max daily loss (10-15%) and max drawdown (20-30%) for each agent.\n\n" +
		"2. **Diversify**: Run several agents with different strategies and risk levels.\n\n" +
		"3. **Monitor Crowd Deviation**: Agents deviating more than 30% from crowd metrics may face higher volatility.\n\n" +
		"4. **Auto-Approval**: Auto-approve routine trades, but review large positions manually.\n\n" +
		"5. **Emergency Exits**: Keep the emergency exit available but use it sparingly.\n\n" +
		"Remember: this is paper trading with real market data, so it's perfect for learning without financial risk!"
}

func crowdAdvice(cm entities.CrowdMetrics) string {
	var b strings.Builder
	b.WriteString("Crowd Learning & Copy Strategies:\n\nCrowdlike supports three copy modes:\n\n")
	b.WriteString("1. **Mirror Trades**: Directly copy trades from top performers. Risk is high if the copied agent fails.\n\n")
	b.WriteString("2. **Copy Rules**: Adopt the parameters of successful agents. Risk is medium and needs adaptation.\n\n")
	b.WriteString("3. **Copy Strategy**: Learn from several agents' behavior patterns. Risk is lower through diversification.\n\n")
	b.WriteString("**Crowd Stats**:\n")
	fmt.Fprintf(&b, "- Total agents: %d\n", cm.TotalAgents)
	fmt.Fprintf(&b, "- Avg trades/day: %s\n", cm.AvgTradesPerDay.StringFixed(1))
	fmt.Fprintf(&b, "- Top strategies: %s\n\n", strategyNames(cm.TopStrategies, true))
	b.WriteString("The copy mode is chosen automatically based on performance data!")
	return b.String()
}

func pricingAdvice(agentCount, riskLevel int) string {
	info := agent.CalculatePricing(agentCount, riskLevel)

	var b strings.Builder
	b.WriteString("Pricing Information:\n\n**Formula**: Daily cost = (agentCount²) × (risk / 100)\n\n")
	b.WriteString("**Your Current Cost**:\n")
	fmt.Fprintf(&b, "- Agents: %d\n", info.AgentCount)
	fmt.Fprintf(&b, "- Default Risk: %d\n", info.RiskLevel)
	fmt.Fprintf(&b, "- Daily Cost: $%s\n", info.DailyPrice.StringFixed(2))
	fmt.Fprintf(&b, "- Monthly Estimate: $%s\n\n", info.MonthlyEstimate.StringFixed(2))
	b.WriteString("**Tips to Optimize**:\n- Fewer agents with higher quality strategies\n- Lower risk levels reduce costs\n- Consolidate underperforming agents\n\n")
	b.WriteString("Note: in demo mode pricing is illustrative.")
	return b.String()
}

func helpText() string {
	return "I can help you with:\n\n" +
		"- **Strategy Optimization**: improving your agents' performance\n" +
		"- **Agent Analysis**: your agents' strengths and weaknesses\n" +
		"- **Market Insights**: crowd behavior and trading patterns\n" +
		"- **Safety Tips**: risk management and exit strategies\n" +
		"- **Crowd Learning**: how to leverage the crowd\n" +
		"- **Pricing Info**: understanding and optimizing costs\n\n" +
		"Just ask me anything! For example:\n" +
		"- \"How can I improve my strategy?\"\n" +
		"- \"Which agent is performing best?\"\n" +
		"- \"What are the current market trends?\"\n" +
		"- \"How do I manage risk better?\""
}

func strategyNames(counts []entities.StrategyCount, withCounts bool) string {
	if len(counts) == 0 {
		return "none"
	}
	names := make([]string, 0, len(counts))
	for _, c := range counts {
		if withCounts {
			names = append(names, fmt.Sprintf("%s (%d)", c.Strategy, c.Count))
		} else {
			names = append(names, string(c.Strategy))
		}
	}
	return strings.Join(names, ", ")
}
