package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shantanubawankar/Stockpricetracker/services"
)

// MarketController proxies symbol search, quote and historical chart data
// from the quote provider
type MarketController struct {
	quotes *services.QuoteService
}

func NewMarketController(quotes *services.QuoteService) *MarketController {
	return &MarketController{quotes: quotes}
}

// Search looks up symbols matching a query
// GET /api/search?q=...
func (mc *MarketController) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("q"))
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"results": []services.SearchResult{}})
		return
	}

	results, err := mc.quotes.Search(c.Request.Context(), query)
	if err != nil {
		abortUpstream(c, err, "Search failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}

// Quote returns the full current quote for a symbol
// GET /api/quote?symbol=...
func (mc *MarketController) Quote(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol required"})
		return
	}

	quote, err := mc.quotes.FetchFullQuote(c.Request.Context(), symbol)
	if err != nil {
		abortUpstream(c, err, "Quote failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"quote": quote})
}

// Historic returns closing prices for charting
// GET /api/historic?symbol=...&interval=daily|intraday
func (mc *MarketController) Historic(c *gin.Context) {
	symbol := strings.ToUpper(strings.TrimSpace(c.Query("symbol")))
	if symbol == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol required"})
		return
	}
	interval := c.DefaultQuery("interval", "daily")

	points, err := mc.quotes.Historic(c.Request.Context(), symbol, interval)
	if err != nil {
		abortUpstream(c, err, "Historic failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"points": points})
}

func abortUpstream(c *gin.Context, err error, message string) {
	var fetchErr *services.FetchError
	if errors.As(err, &fetchErr) && fetchErr.Kind == services.FetchRateLimited {
		c.JSON(http.StatusTooManyRequests, gin.H{"error": "Provider rate limited"})
		return
	}
	c.JSON(http.StatusBadGateway, gin.H{"error": message})
}
