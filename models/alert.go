package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Alert directions
const (
	AlertDirectionAbove = "above"
	AlertDirectionBelow = "below"
)

// Alert statuses
const (
	AlertStatusActive    = "active"
	AlertStatusTriggered = "triggered"
	AlertStatusDisabled  = "disabled"
)

// PriceAlert represents a user price alert evaluated against live quotes.
// An active alert moves to triggered exactly once per crossing; recurring
// alerts are re-armed once the price moves back off the threshold.
type PriceAlert struct {
	ID             uint            `gorm:"primaryKey" json:"id"`
	UserID         uint            `gorm:"index" json:"user_id"`
	User           User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	StockSymbol    string          `gorm:"index;not null" json:"stock_symbol"`
	ThresholdPrice decimal.Decimal `gorm:"type:decimal(15,4)" json:"threshold_price"`
	Direction      string          `json:"direction"` // above, below
	Status         string          `gorm:"index;default:'active'" json:"status"`
	IsRecurring    bool            `gorm:"default:false" json:"is_recurring"`
	TriggeredAt    *time.Time      `json:"triggered_at"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// ConditionMet reports whether the given price crosses the alert threshold.
func (a *PriceAlert) ConditionMet(price decimal.Decimal) bool {
	switch a.Direction {
	case AlertDirectionAbove:
		return price.GreaterThanOrEqual(a.ThresholdPrice)
	case AlertDirectionBelow:
		return price.LessThanOrEqual(a.ThresholdPrice)
	default:
		return false
	}
}

// IsValidAlertDirection checks if the direction is valid
func IsValidAlertDirection(direction string) bool {
	return direction == AlertDirectionAbove || direction == AlertDirectionBelow
}

// MigrateAlertModels runs database migrations for alert-related models
func MigrateAlertModels(db *gorm.DB) error {
	return db.AutoMigrate(&PriceAlert{})
}
