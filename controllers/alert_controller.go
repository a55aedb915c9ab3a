package controllers

import (
	"net/http"
	"strconv"

	"trading_backend/middleware"
	"trading_backend/models"
	"trading_backend/services/store"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// AlertController handles price alert management
type AlertController struct {
	store *store.Store
}

// NewAlertController creates a new alert controller
func NewAlertController(st *store.Store) *AlertController {
	return &AlertController{store: st}
}

// CreateAlert registers a new price alert
// POST /api/v1/alerts
func (ac *AlertController) CreateAlert(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		StockSymbol    string  `json:"stock_symbol" binding:"required,min=1,max=5"`
		ThresholdPrice float64 `json:"threshold_price" binding:"required,gt=0"`
		Direction      string  `json:"direction" binding:"required"`
		IsRecurring    bool    `json:"is_recurring"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": err.Error()})
		return
	}

	if !models.IsValidAlertDirection(request.Direction) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Direction must be above or below"})
		return
	}

	alert := models.PriceAlert{
		UserID:         userID,
		StockSymbol:    request.StockSymbol,
		ThresholdPrice: decimal.NewFromFloat(request.ThresholdPrice),
		Direction:      request.Direction,
		Status:         models.AlertStatusActive,
		IsRecurring:    request.IsRecurring,
	}
	if err := ac.store.SaveAlert(&alert); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create alert"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": alert})
}

// GetAlerts returns the authenticated user's alerts
// GET /api/v1/alerts
func (ac *AlertController) GetAlerts(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	alerts, err := ac.store.FindAlertsByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alerts"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": alerts})
}

// DisableAlert turns an alert off
// POST /api/v1/alerts/:id/disable
func (ac *AlertController) DisableAlert(c *gin.Context) {
	ac.transitionAlert(c, models.AlertStatusDisabled)
}

// RearmAlert moves a triggered or disabled alert back to active
// POST /api/v1/alerts/:id/rearm
func (ac *AlertController) RearmAlert(c *gin.Context) {
	ac.transitionAlert(c, models.AlertStatusActive)
}

// transitionAlert applies a user-requested status change to an owned alert
func (ac *AlertController) transitionAlert(c *gin.Context, next string) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	alertID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Invalid alert id"})
		return
	}

	alert, err := ac.store.FindAlert(uint(alertID), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch alert"})
		return
	}
	if alert == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "AlertNotFound"})
		return
	}

	if alert.Status == next {
		c.JSON(http.StatusOK, gin.H{"data": alert})
		return
	}

	ok, err := ac.store.UpdateAlertStatus(alert.ID, alert.Status, next, nil)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update alert"})
		return
	}
	if !ok {
		// The evaluator changed the status concurrently; surface the fresh state.
		fresh, ferr := ac.store.FindAlert(uint(alertID), userID)
		if ferr != nil || fresh == nil {
			c.JSON(http.StatusConflict, gin.H{"error": "AlertConflict", "message": "Alert changed concurrently, retry"})
			return
		}
		c.JSON(http.StatusConflict, gin.H{"error": "AlertConflict", "data": fresh})
		return
	}

	alert.Status = next
	c.JSON(http.StatusOK, gin.H{"data": alert})
}
