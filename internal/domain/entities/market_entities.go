package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketData is the current market snapshot of one coin
type MarketData struct {
	ID                    string          `json:"id"`
	Symbol                string          `json:"symbol"`
	Name                  string          `json:"name"`
	CurrentPrice          decimal.Decimal `json:"current_price"`
	PriceChange24h        decimal.Decimal `json:"price_change_24h"`
	PriceChangePercent24h decimal.Decimal `json:"price_change_percent_24h"`
	MarketCap             decimal.Decimal `json:"market_cap"`
	Volume24h             decimal.Decimal `json:"volume_24h"`
	High24h               decimal.Decimal `json:"high_24h"`
	Low24h                decimal.Decimal `json:"low_24h"`
	LastUpdated           time.Time       `json:"last_updated"`
	Image                 string          `json:"image,omitempty"`
}

// CoinSearchResult is one hit from a coin search
type CoinSearchResult struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Symbol string `json:"symbol"`
	Image  string `json:"image,omitempty"`
}

// PriceMap indexes current prices by asset id
func PriceMap(data []MarketData) map[string]decimal.Decimal {
	prices := make(map[string]decimal.Decimal, len(data))
	for _, d := range data {
		if d.CurrentPrice.GreaterThan(decimal.Zero) {
			prices[d.ID] = d.CurrentPrice
		}
	}
	return prices
}
