package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/Mikespro21/ARC/internal/domain/services/market"
	"github.com/Mikespro21/ARC/pkg/logger"
)

// MarketHandlers serves cached market data. Every endpoint answers with live,
// cached or mock data; upstream failures never surface as errors.
type MarketHandlers struct {
	marketService *market.MarketDataService
	logger        *logger.Logger
}

func NewMarketHandlers(marketService *market.MarketDataService, logger *logger.Logger) *MarketHandlers {
	return &MarketHandlers{marketService: marketService, logger: logger}
}

// GetMarkets returns market data for a comma separated id list
// GET /api/v1/market?ids=bitcoin,ethereum
func (h *MarketHandlers) GetMarkets(c *gin.Context) {
	var ids []string
	if raw := c.Query("ids"); raw != "" {
		ids = strings.Split(raw, ",")
	}

	data := h.marketService.GetMarketData(c.Request.Context(), ids)
	respondSuccess(c, gin.H{"markets": data, "count": len(data)})
}

// GetPrice returns the USD price of one coin
// GET /api/v1/market/price/:id
func (h *MarketHandlers) GetPrice(c *gin.Context) {
	id := strings.ToLower(strings.TrimSpace(c.Param("id")))
	if id == "" {
		respondBadRequest(c, "Coin id required")
		return
	}

	price := h.marketService.GetPrice(c.Request.Context(), id)
	respondSuccess(c, gin.H{"id": id, "price": price, "currency": "usd"})
}

// SearchCoins searches coins by name or symbol
// GET /api/v1/market/search?q=bit
func (h *MarketHandlers) SearchCoins(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		respondBadRequest(c, "Search query required")
		return
	}

	results := h.marketService.SearchCoins(c.Request.Context(), query)
	respondSuccess(c, gin.H{"results": results, "count": len(results)})
}

// GetTrending returns market data for trending coins
// GET /api/v1/market/trending
func (h *MarketHandlers) GetTrending(c *gin.Context) {
	data := h.marketService.GetTrendingCoins(c.Request.Context())
	respondSuccess(c, gin.H{"markets": data, "count": len(data)})
}

// Refresh forces a refresh of the default asset set
// POST /api/v1/market/refresh
func (h *MarketHandlers) Refresh(c *gin.Context) {
	result := h.marketService.Refresh(c.Request.Context())
	h.logger.Info("Manual market refresh",
		"generation", result.Generation,
		"source", result.Source,
		"applied", result.Applied,
		"request_id", getRequestID(c))

	respondSuccess(c, gin.H{
		"generation": result.Generation,
		"source":     result.Source,
		"applied":    result.Applied,
		"markets":    result.Data,
	})
}
