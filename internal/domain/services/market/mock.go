package market

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Mikespro21/ARC/internal/domain/entities"
)

// DefaultAssetIDs is the coin set refreshed in the background and used by the crowd
var DefaultAssetIDs = []string{
	"bitcoin", "ethereum", "solana", "cardano",
	"polkadot", "binancecoin", "ripple", "dogecoin",
}

// TrendingFallbackIDs is served when the trending endpoint cannot be reached
var TrendingFallbackIDs = []string{"bitcoin", "ethereum", "solana"}

var mockPrices = map[string]decimal.Decimal{
	"bitcoin":     decimal.NewFromInt(45000),
	"ethereum":    decimal.NewFromInt(2500),
	"solana":      decimal.NewFromInt(100),
	"cardano":     decimal.RequireFromString("0.5"),
	"polkadot":    decimal.NewFromInt(7),
	"binancecoin": decimal.NewFromInt(350),
	"ripple":      decimal.RequireFromString("0.6"),
	"dogecoin":    decimal.RequireFromString("0.08"),
}

var knownSymbols = map[string]string{
	"bitcoin":     "BTC",
	"ethereum":    "ETH",
	"solana":      "SOL",
	"cardano":     "ADA",
	"polkadot":    "DOT",
	"binancecoin": "BNB",
	"ripple":      "XRP",
	"dogecoin":    "DOGE",
}

var (
	mockCapMultiplier    = decimal.NewFromInt(1_000_000_000)
	mockVolumeMultiplier = decimal.NewFromInt(100_000_000)
	mockHighFactor       = decimal.RequireFromString("1.05")
	mockLowFactor        = decimal.RequireFromString("0.95")
)

// MockPrice returns the deterministic fallback price for a coin id
func MockPrice(id string) decimal.Decimal {
	if p, ok := mockPrices[id]; ok {
		return p
	}
	return decimal.NewFromInt(1)
}

// MockPrices returns the fallback price of every default asset
func MockPrices() map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(mockPrices))
	for id, p := range mockPrices {
		prices[id] = p
	}
	return prices
}

// SymbolFor returns the ticker of a coin id
func SymbolFor(id string) string {
	if s, ok := knownSymbols[id]; ok {
		return s
	}
	if len(id) > 3 {
		return strings.ToUpper(id[:3])
	}
	return strings.ToUpper(id)
}

func displayName(id string) string {
	if id == "" {
		return id
	}
	return strings.ToUpper(id[:1]) + id[1:]
}

// MockMarketData builds the deterministic fallback snapshot for the given ids
func MockMarketData(ids []string, now time.Time) []entities.MarketData {
	data := make([]entities.MarketData, 0, len(ids))
	for _, id := range ids {
		price := MockPrice(id)
		data = append(data, entities.MarketData{
			ID:                    id,
			Symbol:                SymbolFor(id),
			Name:                  displayName(id),
			CurrentPrice:          price,
			PriceChange24h:        decimal.Zero,
			PriceChangePercent24h: decimal.Zero,
			MarketCap:             price.Mul(mockCapMultiplier),
			Volume24h:             price.Mul(mockVolumeMultiplier),
			High24h:               price.Mul(mockHighFactor),
			Low24h:                price.Mul(mockLowFactor),
			LastUpdated:           now,
		})
	}
	return data
}
