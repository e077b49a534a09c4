package controllers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/shantanubawankar/Stockpricetracker/middleware"
	"github.com/shantanubawankar/Stockpricetracker/models"
)

// WatchlistController handles the user's tracked symbols
type WatchlistController struct {
	db *gorm.DB
}

func NewWatchlistController(db *gorm.DB) *WatchlistController {
	return &WatchlistController{db: db}
}

// List returns the user's watchlist symbols sorted alphabetically
// GET /api/watchlist
func (wc *WatchlistController) List(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var symbols []string
	if err := wc.db.Model(&models.WatchlistItem{}).
		Where("user_id = ?", userID).
		Order("symbol").
		Pluck("symbol", &symbols).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	if symbols == nil {
		symbols = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"symbols": symbols})
}

type addSymbolRequest struct {
	Symbol string `json:"symbol"`
}

// Add puts a symbol on the watchlist, a no-op when already present
// POST /api/watchlist
func (wc *WatchlistController) Add(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req addSymbolRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Symbol) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol required"})
		return
	}
	symbol := strings.ToUpper(strings.TrimSpace(req.Symbol))

	item := models.WatchlistItem{UserID: userID, Symbol: symbol}
	if err := wc.db.Where("user_id = ? AND symbol = ?", userID, symbol).
		FirstOrCreate(&item).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Remove deletes a symbol from the watchlist
// DELETE /api/watchlist/:symbol
func (wc *WatchlistController) Remove(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	symbol := strings.ToUpper(c.Param("symbol"))
	if err := wc.db.Where("user_id = ? AND symbol = ?", userID, symbol).
		Delete(&models.WatchlistItem{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
