package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1).
			MarginBottom(1)

	headerCellStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			Padding(0, 1)

	cellStyle = lipgloss.NewStyle().Padding(0, 1)

	gainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	lossStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6B7280"))

	boxStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#F59E0B")).
			Padding(0, 1)
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerCellStyle
			}
			return cellStyle
		})
}

func signed(d decimal.Decimal, places int32, suffix string) string {
	text := d.StringFixed(places) + suffix
	switch d.Sign() {
	case 1:
		return gainStyle.Render("+" + text)
	case -1:
		return lossStyle.Render(text)
	}
	return text
}

func usd(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// RenderLeaderboard renders one period's ranking
func RenderLeaderboard(period string, entries []entities.LeaderboardEntry) string {
	title := titleStyle.Render(fmt.Sprintf("Leaderboard · %s", period))
	if len(entries) == 0 {
		return title + "\n" + mutedStyle.Render("No agents ranked yet")
	}

	t := newTable("#", "Bot", "Agent", "Score", "Profit", "Streak", "Trades", "Win rate")
	for _, e := range entries {
		t.Row(
			strconv.Itoa(e.Rank),
			e.BotID,
			e.AgentName,
			e.Score.StringFixed(2),
			signed(e.ProfitPercent, 2, "%"),
			strconv.Itoa(e.Streaks),
			strconv.Itoa(e.TotalTrades),
			e.WinRate.StringFixed(1)+"%",
		)
	}
	return title + "\n" + t.Render()
}

// RenderCrowd renders aggregated crowd metrics
func RenderCrowd(m *entities.CrowdMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Agents:            %d\n", m.TotalAgents)
	fmt.Fprintf(&b, "Avg riskness:      %s\n", m.AvgRiskness.StringFixed(1))
	fmt.Fprintf(&b, "Avg trades / day:  %s\n", m.AvgTradesPerDay.StringFixed(1))
	fmt.Fprintf(&b, "Avg position size: %s\n", usd(m.AvgPositionSize))
	fmt.Fprintf(&b, "Total volume:      %s\n", usd(m.TotalVolume))
	if len(m.TopStrategies) > 0 {
		parts := make([]string, 0, len(m.TopStrategies))
		for _, s := range m.TopStrategies {
			parts = append(parts, fmt.Sprintf("%s (%d)", s.Strategy, s.Count))
		}
		fmt.Fprintf(&b, "Top strategies:    %s", strings.Join(parts, ", "))
	}
	return titleStyle.Render("Crowd") + "\n" + boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}

// RenderAgents renders the user's agents
func RenderAgents(agents []entities.Agent, limit int) string {
	title := titleStyle.Render(fmt.Sprintf("Agents · %d/%d", len(agents), limit))
	if len(agents) == 0 {
		return title + "\n" + mutedStyle.Render("No agents yet. Create one with `crowdctl create`.")
	}

	t := newTable("Bot", "Name", "Strategy", "Risk", "Status", "Value", "Profit", "Streak")
	for _, a := range agents {
		t.Row(
			a.BotID,
			a.Name,
			string(a.Strategy.Type),
			strconv.Itoa(a.Riskness),
			string(a.Status),
			usd(a.Portfolio.TotalValue),
			signed(a.Performance.TotalProfitPercent, 2, "%"),
			strconv.Itoa(a.Streaks),
		)
	}
	return title + "\n" + t.Render()
}

// RenderMarket renders market data rows
func RenderMarket(data []entities.MarketData) string {
	t := newTable("Asset", "Symbol", "Price", "24h", "Volume")
	for _, m := range data {
		t.Row(
			m.Name,
			strings.ToUpper(m.Symbol),
			usd(m.CurrentPrice),
			signed(m.PriceChangePercent24h, 2, "%"),
			usd(m.Volume24h),
		)
	}
	return titleStyle.Render("Market") + "\n" + t.Render()
}

// RenderTrade renders an executed trade
func RenderTrade(tr *entities.Trade) string {
	line := fmt.Sprintf("%s %s %s @ %s for %s",
		strings.ToUpper(string(tr.Type)), tr.Amount.String(), strings.ToUpper(tr.Symbol), usd(tr.Price), usd(tr.USDCAmount))
	if !tr.RealizedPnL.IsZero() {
		line += " · PnL " + signed(tr.RealizedPnL, 2, "")
	}
	return gainStyle.Render("✓ ") + line
}

// RenderCoach renders a coach reply
func RenderCoach(msg *entities.CoachMessage) string {
	return boxStyle.Render(msg.Content)
}

// RenderError renders a command failure
func RenderError(err error) string {
	return lossStyle.Bold(true).Render("Error: ") + err.Error()
}
