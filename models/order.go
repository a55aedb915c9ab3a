package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Order sides
const (
	OrderSideBuy  = "BUY"
	OrderSideSell = "SELL"
)

// Order process statuses. Pending is the only non-terminal status;
// completed, canceled and failed order processes are never mutated again.
const (
	OrderStatusPending   = "pending"
	OrderStatusCompleted = "completed"
	OrderStatusCanceled  = "canceled"
	OrderStatusFailed    = "failed"
)

// Order represents a stock order placed by a user.
// An order's state lives in its OrderProcess row and is mutated only
// through the lifecycle service.
type Order struct {
	ID             uint             `gorm:"primaryKey" json:"id"`
	RefCode        string           `gorm:"uniqueIndex;not null" json:"ref_code"`
	UserID         uint             `gorm:"index" json:"user_id"`
	User           User             `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StockSymbol    string           `gorm:"index;not null" json:"stock_symbol"`
	Quantity       int64            `json:"quantity"`
	Side           string           `json:"side"` // BUY, SELL
	RequestedPrice *decimal.Decimal `gorm:"type:decimal(15,4)" json:"requested_price,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`

	Process *OrderProcess `gorm:"foreignKey:OrderID" json:"process,omitempty"`
}

// OrderProcess tracks the execution state of a single order (1:1).
type OrderProcess struct {
	ID         uint             `gorm:"primaryKey" json:"id"`
	OrderID    uint             `gorm:"uniqueIndex" json:"order_id"`
	Status     string           `gorm:"index;default:'pending'" json:"status"`
	Attempts   int              `gorm:"default:0" json:"attempts"`
	FilledAt   *time.Time       `json:"filled_at"`
	FillPrice  *decimal.Decimal `gorm:"type:decimal(15,4)" json:"fill_price,omitempty"`
	FailReason string           `json:"fail_reason,omitempty"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// IsTerminal reports whether the process has reached a final status.
func (p *OrderProcess) IsTerminal() bool {
	return p.Status != OrderStatusPending
}

// IsValidOrderSide checks if the side is valid
func IsValidOrderSide(side string) bool {
	return side == OrderSideBuy || side == OrderSideSell
}

// MigrateOrderModels runs database migrations for order-related models
func MigrateOrderModels(db *gorm.DB) error {
	return db.AutoMigrate(&Order{}, &OrderProcess{})
}
