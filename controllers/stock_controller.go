package controllers

import (
	"net/http"
	"strconv"
	"time"

	"trading_backend/services/marketdata"
	"trading_backend/services/news"
	"trading_backend/services/notify"

	"github.com/gin-gonic/gin"
)

// StockController proxies quote and news lookups through the market data
// client
type StockController struct {
	market  *marketdata.Client
	archive *news.Archive
	hub     *notify.Hub
}

// NewStockController creates a new stock controller. The archive may be nil.
func NewStockController(market *marketdata.Client, archive *news.Archive, hub *notify.Hub) *StockController {
	return &StockController{market: market, archive: archive, hub: hub}
}

// GetQuote returns the current quote for a symbol
// GET /api/v1/stocks/:symbol/quote
func (sc *StockController) GetQuote(c *gin.Context) {
	symbol := c.Param("symbol")

	quote, err := sc.market.GetQuote(c.Request.Context(), symbol)
	if err != nil {
		respondMarketError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": quote})
}

// GetMarketNews returns general market news for a category
// GET /api/v1/market/news?category=general&min_id=0
func (sc *StockController) GetMarketNews(c *gin.Context) {
	category := c.DefaultQuery("category", "general")

	var minID int64
	if raw := c.Query("min_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Invalid min_id"})
			return
		}
		minID = parsed
	}

	items, err := sc.market.GetMarketNews(c.Request.Context(), category, minID)
	if err != nil {
		respondMarketError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetArchivedNews returns recently archived market news from MongoDB
// GET /api/v1/market/news/archive?category=general&limit=50
func (sc *StockController) GetArchivedNews(c *gin.Context) {
	if sc.archive == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "News archive is not configured"})
		return
	}

	category := c.DefaultQuery("category", "general")
	limit, _ := strconv.ParseInt(c.DefaultQuery("limit", "50"), 10, 64)

	items, err := sc.archive.RecentItems(c.Request.Context(), category, limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch archived news"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetCompanyNews returns news for one company over a date range
// GET /api/v1/stocks/:symbol/news?from=2026-01-01&to=2026-01-31
func (sc *StockController) GetCompanyNews(c *gin.Context) {
	symbol := c.Param("symbol")
	from := c.DefaultQuery("from", time.Now().AddDate(0, 0, -7).Format("2006-01-02"))
	to := c.DefaultQuery("to", time.Now().Format("2006-01-02"))

	if _, err := time.Parse("2006-01-02", from); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Invalid from date"})
		return
	}
	if _, err := time.Parse("2006-01-02", to); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Invalid to date"})
		return
	}

	items, err := sc.market.GetCompanyNews(c.Request.Context(), symbol, from, to)
	if err != nil {
		respondMarketError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items})
}

// GetMarketStatus reports provider circuit states and hub connections
// GET /api/v1/market/status
func (sc *StockController) GetMarketStatus(c *gin.Context) {
	status := gin.H{
		"circuit_breakers": sc.market.BreakerStates(),
	}
	if sc.hub != nil {
		status["ws_clients"] = sc.hub.ClientCount()
	}
	c.JSON(http.StatusOK, gin.H{"data": status})
}

// respondMarketError maps provider failures to HTTP responses. Transient
// provider problems are a 503 to the client, never a 5xx stack trace.
func respondMarketError(c *gin.Context, err error) {
	if marketdata.IsCircuitOpen(err) {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error":   "MarketDataUnavailable",
			"message": "Market data provider is temporarily unavailable, try again shortly",
		})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{
		"error":   "MarketDataError",
		"message": "Failed to fetch market data",
	})
}
