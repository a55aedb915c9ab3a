package store

import (
	"errors"
	"fmt"
	"time"

	"trading_backend/models"

	"gorm.io/gorm"
)

// Store is the transactional repository for orders, order processes and
// price alerts. Status changes go through conditional updates so that
// concurrent writers cannot both win the same transition.
type Store struct {
	db *gorm.DB
}

// NewStore creates a store backed by the given database handle
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for migrations and controllers.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// CreateOrder persists a new order together with its pending process row
// in one transaction.
func (s *Store) CreateOrder(order *models.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}
		process := &models.OrderProcess{
			OrderID: order.ID,
			Status:  models.OrderStatusPending,
		}
		if err := tx.Create(process).Error; err != nil {
			return fmt.Errorf("failed to create order process: %w", err)
		}
		order.Process = process
		return nil
	})
}

// FindOrder returns the order with its process, scoped to the owning user.
// Returns (nil, nil) when no such order exists for that user.
func (s *Store) FindOrder(orderID, userID uint) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Process").
		Where("id = ? AND user_id = ?", orderID, userID).
		First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load order %d: %w", orderID, err)
	}
	return &order, nil
}

// FindOrdersByUser returns all orders of a user, newest first.
func (s *Store) FindOrdersByUser(userID uint) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Process").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load orders for user %d: %w", userID, err)
	}
	return orders, nil
}

// FindPendingOrders returns all orders whose process is still pending.
func (s *Store) FindPendingOrders() ([]models.Order, error) {
	var orders []models.Order
	err := s.db.Preload("Process").
		Joins("JOIN order_processes ON order_processes.order_id = orders.id").
		Where("order_processes.status = ?", models.OrderStatusPending).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load pending orders: %w", err)
	}
	return orders, nil
}

// UpdateProcessStatus atomically moves an order process from an expected
// status to a new one (compare-and-swap on the status column). Extra column
// values may be supplied alongside the transition. Returns false when the
// row was not in the expected status, in which case nothing was written.
func (s *Store) UpdateProcessStatus(processID uint, expected, next string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now(),
	}
	for column, value := range extra {
		updates[column] = value
	}

	result := s.db.Model(&models.OrderProcess{}).
		Where("id = ? AND status = ?", processID, expected).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update order process %d: %w", processID, result.Error)
	}
	return result.RowsAffected == 1, nil
}

// IncrementProcessAttempts bumps the reconciliation attempt counter of a
// pending process and returns the resulting count. Counting is conditional
// on the pending status so a concurrently canceled order is left untouched.
func (s *Store) IncrementProcessAttempts(processID uint) (int, error) {
	result := s.db.Model(&models.OrderProcess{}).
		Where("id = ? AND status = ?", processID, models.OrderStatusPending).
		UpdateColumn("attempts", gorm.Expr("attempts + 1"))
	if result.Error != nil {
		return 0, fmt.Errorf("failed to increment attempts for process %d: %w", processID, result.Error)
	}
	if result.RowsAffected == 0 {
		return 0, nil
	}

	var process models.OrderProcess
	if err := s.db.Select("attempts").First(&process, processID).Error; err != nil {
		return 0, fmt.Errorf("failed to reload process %d: %w", processID, err)
	}
	return process.Attempts, nil
}

// GetProcess reloads an order process by id.
func (s *Store) GetProcess(processID uint) (*models.OrderProcess, error) {
	var process models.OrderProcess
	if err := s.db.First(&process, processID).Error; err != nil {
		return nil, fmt.Errorf("failed to load order process %d: %w", processID, err)
	}
	return &process, nil
}

// SaveAlert creates or updates a price alert.
func (s *Store) SaveAlert(alert *models.PriceAlert) error {
	if err := s.db.Save(alert).Error; err != nil {
		return fmt.Errorf("failed to save alert: %w", err)
	}
	return nil
}

// FindAlert returns an alert scoped to the owning user, or (nil, nil).
func (s *Store) FindAlert(alertID, userID uint) (*models.PriceAlert, error) {
	var alert models.PriceAlert
	err := s.db.Where("id = ? AND user_id = ?", alertID, userID).First(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load alert %d: %w", alertID, err)
	}
	return &alert, nil
}

// FindAlertsByUser returns all alerts of a user, newest first.
func (s *Store) FindAlertsByUser(userID uint) ([]models.PriceAlert, error) {
	var alerts []models.PriceAlert
	err := s.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load alerts for user %d: %w", userID, err)
	}
	return alerts, nil
}

// FindActiveAlerts returns all alerts awaiting evaluation.
func (s *Store) FindActiveAlerts() ([]models.PriceAlert, error) {
	var alerts []models.PriceAlert
	err := s.db.Where("status = ?", models.AlertStatusActive).Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load active alerts: %w", err)
	}
	return alerts, nil
}

// FindRecurringTriggeredAlerts returns triggered alerts that re-arm once
// the price moves back off the threshold.
func (s *Store) FindRecurringTriggeredAlerts() ([]models.PriceAlert, error) {
	var alerts []models.PriceAlert
	err := s.db.Where("status = ? AND is_recurring = ?", models.AlertStatusTriggered, true).Find(&alerts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load recurring triggered alerts: %w", err)
	}
	return alerts, nil
}

// UpdateAlertStatus atomically moves an alert between statuses (CAS on the
// status column). Returns false if the alert was not in the expected status.
func (s *Store) UpdateAlertStatus(alertID uint, expected, next string, extra map[string]interface{}) (bool, error) {
	updates := map[string]interface{}{
		"status":     next,
		"updated_at": time.Now(),
	}
	for column, value := range extra {
		updates[column] = value
	}

	result := s.db.Model(&models.PriceAlert{}).
		Where("id = ? AND status = ?", alertID, expected).
		Updates(updates)
	if result.Error != nil {
		return false, fmt.Errorf("failed to update alert %d: %w", alertID, result.Error)
	}
	return result.RowsAffected == 1, nil
}
