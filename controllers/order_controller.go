package controllers

import (
	"errors"
	"net/http"
	"strconv"

	"trading_backend/middleware"
	"trading_backend/models"
	"trading_backend/services/orders"
	"trading_backend/services/store"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderController handles order placement and cancellation
type OrderController struct {
	store     *store.Store
	lifecycle *orders.Lifecycle
}

// NewOrderController creates a new order controller
func NewOrderController(st *store.Store, lifecycle *orders.Lifecycle) *OrderController {
	return &OrderController{store: st, lifecycle: lifecycle}
}

// PlaceOrder places a new order with a pending process
// POST /api/v1/orders
func (oc *OrderController) PlaceOrder(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var request struct {
		StockSymbol    string   `json:"stock_symbol" binding:"required,min=1,max=5"`
		Quantity       int64    `json:"quantity" binding:"required,gt=0"`
		Side           string   `json:"side" binding:"required"`
		RequestedPrice *float64 `json:"requested_price"`
	}

	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": err.Error()})
		return
	}

	if !models.IsValidOrderSide(request.Side) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Side must be BUY or SELL"})
		return
	}

	order := models.Order{
		RefCode:     uuid.NewString(),
		UserID:      userID,
		StockSymbol: request.StockSymbol,
		Quantity:    request.Quantity,
		Side:        request.Side,
	}
	if request.RequestedPrice != nil {
		if *request.RequestedPrice <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Requested price must be greater than zero"})
			return
		}
		price := decimal.NewFromFloat(*request.RequestedPrice)
		order.RequestedPrice = &price
	}

	if err := oc.store.CreateOrder(&order); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to place order"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": order})
}

// GetOrders returns the authenticated user's orders
// GET /api/v1/orders
func (oc *OrderController) GetOrders(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	userOrders, err := oc.store.FindOrdersByUser(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch orders"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": userOrders})
}

// GetOrder returns one order of the authenticated user
// GET /api/v1/orders/:id
func (oc *OrderController) GetOrder(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Invalid order id"})
		return
	}

	order, err := oc.store.FindOrder(uint(orderID), userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch order"})
		return
	}
	if order == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "OrderNotFound"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": order})
}

// CancelOrder cancels a pending order of the authenticated user
// POST /api/v1/orders/:id/cancel
func (oc *OrderController) CancelOrder(c *gin.Context) {
	userID, err := middleware.GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	orderID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ValidationFailed", "message": "Invalid order id"})
		return
	}

	result, err := oc.lifecycle.Cancel(uint(orderID), userID)
	if err != nil {
		switch {
		case errors.Is(err, orders.ErrOrderNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": "OrderNotFound", "message": err.Error()})
		case errors.Is(err, orders.ErrOrderNotCancellable):
			c.JSON(http.StatusConflict, gin.H{"error": "OrderNotCancellable", "message": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to cancel order"})
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": result})
}
