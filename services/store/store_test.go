package store

import (
	"testing"
	"time"

	"trading_backend/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, models.MigrateUserModels(db))
	require.NoError(t, models.MigrateOrderModels(db))
	require.NoError(t, models.MigrateAlertModels(db))

	return NewStore(db)
}

func makeOrder(userID uint, symbol string) *models.Order {
	price := decimal.NewFromInt(100)
	return &models.Order{
		RefCode:        uuid.NewString(),
		UserID:         userID,
		StockSymbol:    symbol,
		Quantity:       10,
		Side:           models.OrderSideBuy,
		RequestedPrice: &price,
	}
}

func TestCreateOrderCreatesPendingProcess(t *testing.T) {
	s := newTestStore(t)

	order := makeOrder(1, "AAPL")
	require.NoError(t, s.CreateOrder(order))

	require.NotNil(t, order.Process)
	assert.Equal(t, models.OrderStatusPending, order.Process.Status)
	assert.Equal(t, order.ID, order.Process.OrderID)
	assert.Equal(t, 0, order.Process.Attempts)

	loaded, err := s.FindOrder(order.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	require.NotNil(t, loaded.Process)
	assert.False(t, loaded.Process.IsTerminal())
}

func TestFindOrderScopedToUser(t *testing.T) {
	s := newTestStore(t)

	order := makeOrder(1, "AAPL")
	require.NoError(t, s.CreateOrder(order))

	// Another user's id must not see the order
	other, err := s.FindOrder(order.ID, 2)
	require.NoError(t, err)
	assert.Nil(t, other)

	missing, err := s.FindOrder(9999, 1)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestFindPendingOrdersExcludesTerminal(t *testing.T) {
	s := newTestStore(t)

	pending := makeOrder(1, "AAPL")
	require.NoError(t, s.CreateOrder(pending))

	done := makeOrder(1, "MSFT")
	require.NoError(t, s.CreateOrder(done))
	ok, err := s.UpdateProcessStatus(done.Process.ID, models.OrderStatusPending, models.OrderStatusCompleted, nil)
	require.NoError(t, err)
	require.True(t, ok)

	orders, err := s.FindPendingOrders()
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, pending.ID, orders[0].ID)
}

func TestUpdateProcessStatusCAS(t *testing.T) {
	s := newTestStore(t)

	order := makeOrder(1, "AAPL")
	require.NoError(t, s.CreateOrder(order))
	processID := order.Process.ID

	fillPrice := decimal.NewFromFloat(101.25)
	now := time.Now()
	ok, err := s.UpdateProcessStatus(processID, models.OrderStatusPending, models.OrderStatusCompleted, map[string]interface{}{
		"fill_price": fillPrice,
		"filled_at":  now,
	})
	require.NoError(t, err)
	assert.True(t, ok, "first transition from pending must win")

	// A second writer expecting pending must lose without touching the row
	ok, err = s.UpdateProcessStatus(processID, models.OrderStatusPending, models.OrderStatusCanceled, nil)
	require.NoError(t, err)
	assert.False(t, ok, "losing writer must observe the CAS failure")

	process, err := s.GetProcess(processID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCompleted, process.Status)
	require.NotNil(t, process.FillPrice)
	assert.True(t, process.FillPrice.Equal(fillPrice))
	require.NotNil(t, process.FilledAt)
}

func TestIncrementProcessAttempts(t *testing.T) {
	s := newTestStore(t)

	order := makeOrder(1, "AAPL")
	require.NoError(t, s.CreateOrder(order))
	processID := order.Process.ID

	attempts, err := s.IncrementProcessAttempts(processID)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts)

	attempts, err = s.IncrementProcessAttempts(processID)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestIncrementProcessAttemptsSkipsTerminalProcess(t *testing.T) {
	s := newTestStore(t)

	order := makeOrder(1, "AAPL")
	require.NoError(t, s.CreateOrder(order))
	processID := order.Process.ID

	ok, err := s.UpdateProcessStatus(processID, models.OrderStatusPending, models.OrderStatusCanceled, nil)
	require.NoError(t, err)
	require.True(t, ok)

	attempts, err := s.IncrementProcessAttempts(processID)
	require.NoError(t, err)
	assert.Equal(t, 0, attempts, "canceled order must not accumulate attempts")

	process, err := s.GetProcess(processID)
	require.NoError(t, err)
	assert.Equal(t, 0, process.Attempts)
}

func TestUpdateAlertStatusCAS(t *testing.T) {
	s := newTestStore(t)

	alert := &models.PriceAlert{
		UserID:         1,
		StockSymbol:    "AAPL",
		ThresholdPrice: decimal.NewFromInt(100),
		Direction:      models.AlertDirectionAbove,
		Status:         models.AlertStatusActive,
	}
	require.NoError(t, s.SaveAlert(alert))

	now := time.Now()
	ok, err := s.UpdateAlertStatus(alert.ID, models.AlertStatusActive, models.AlertStatusTriggered, map[string]interface{}{
		"triggered_at": now,
	})
	require.NoError(t, err)
	assert.True(t, ok)

	// Second trigger attempt loses
	ok, err = s.UpdateAlertStatus(alert.ID, models.AlertStatusActive, models.AlertStatusTriggered, nil)
	require.NoError(t, err)
	assert.False(t, ok, "an alert triggers at most once per crossing")

	loaded, err := s.FindAlert(alert.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, models.AlertStatusTriggered, loaded.Status)
	require.NotNil(t, loaded.TriggeredAt)
}

func TestFindActiveAlerts(t *testing.T) {
	s := newTestStore(t)

	active := &models.PriceAlert{
		UserID:         1,
		StockSymbol:    "AAPL",
		ThresholdPrice: decimal.NewFromInt(100),
		Direction:      models.AlertDirectionAbove,
		Status:         models.AlertStatusActive,
	}
	disabled := &models.PriceAlert{
		UserID:         1,
		StockSymbol:    "MSFT",
		ThresholdPrice: decimal.NewFromInt(400),
		Direction:      models.AlertDirectionBelow,
		Status:         models.AlertStatusDisabled,
	}
	require.NoError(t, s.SaveAlert(active))
	require.NoError(t, s.SaveAlert(disabled))

	alerts, err := s.FindActiveAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, active.ID, alerts[0].ID)
}

func TestFindRecurringTriggeredAlerts(t *testing.T) {
	s := newTestStore(t)

	recurring := &models.PriceAlert{
		UserID:         1,
		StockSymbol:    "AAPL",
		ThresholdPrice: decimal.NewFromInt(100),
		Direction:      models.AlertDirectionAbove,
		Status:         models.AlertStatusTriggered,
		IsRecurring:    true,
	}
	oneShot := &models.PriceAlert{
		UserID:         1,
		StockSymbol:    "MSFT",
		ThresholdPrice: decimal.NewFromInt(400),
		Direction:      models.AlertDirectionAbove,
		Status:         models.AlertStatusTriggered,
	}
	require.NoError(t, s.SaveAlert(recurring))
	require.NoError(t, s.SaveAlert(oneShot))

	alerts, err := s.FindRecurringTriggeredAlerts()
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.Equal(t, recurring.ID, alerts[0].ID)
}
