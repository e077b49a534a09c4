package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/shantanubawankar/Stockpricetracker/middleware"
	"github.com/shantanubawankar/Stockpricetracker/models"
)

// AlertController handles price alert CRUD. The streaming core only ever
// reads and deactivates alerts; creation and deletion happen here.
type AlertController struct {
	db *gorm.DB
}

func NewAlertController(db *gorm.DB) *AlertController {
	return &AlertController{db: db}
}

// List returns the user's alerts, newest first
// GET /api/alerts
func (ac *AlertController) List(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var alerts []models.Alert
	if err := ac.db.Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&alerts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"alerts": alerts})
}

type createAlertRequest struct {
	Symbol    string   `json:"symbol"`
	Direction string   `json:"direction"`
	Price     *float64 `json:"price"`
}

// Create adds a new active alert
// POST /api/alerts
func (ac *AlertController) Create(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var req createAlertRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Symbol == "" || req.Direction == "" || req.Price == nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Symbol, direction, and numeric price required"})
		return
	}
	if !models.IsValidDirection(req.Direction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Direction must be above or below"})
		return
	}

	alert := models.Alert{
		UserID:    userID,
		Symbol:    strings.ToUpper(strings.TrimSpace(req.Symbol)),
		Direction: req.Direction,
		Threshold: decimal.NewFromFloat(*req.Price),
		Active:    true,
	}
	if err := ac.db.Create(&alert).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// Delete removes an alert owned by the user
// DELETE /api/alerts/:id
func (ac *AlertController) Delete(c *gin.Context) {
	userID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid alert id"})
		return
	}

	if err := ac.db.Where("id = ? AND user_id = ?", id, userID).
		Delete(&models.Alert{}).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Server error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true})
}
