package orders

import (
	"context"
	"fmt"
	"log"
	"time"

	"trading_backend/models"
	"trading_backend/services/marketdata"
	"trading_backend/services/notify"
	"trading_backend/services/store"

	"github.com/shopspring/decimal"
)

// QuoteFetcher is the slice of the market data client the lifecycle needs.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// CancelResult is returned to the API layer on a successful cancel.
type CancelResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Lifecycle owns all order state transitions. A pending process can move to
// completed (reconciliation fill), canceled (user request) or failed (too
// many reconciliation passes); the three terminal states are immutable and
// every transition is a conditional update, so concurrent cancel and
// complete attempts race and exactly one wins.
type Lifecycle struct {
	store       *store.Store
	market      QuoteFetcher
	policy      ExecutionPolicy
	sink        notify.Sink
	maxAttempts int
}

// NewLifecycle creates the order lifecycle service.
func NewLifecycle(st *store.Store, market QuoteFetcher, policy ExecutionPolicy, sink notify.Sink, maxAttempts int) *Lifecycle {
	if maxAttempts <= 0 {
		maxAttempts = 30
	}
	return &Lifecycle{
		store:       st,
		market:      market,
		policy:      policy,
		sink:        sink,
		maxAttempts: maxAttempts,
	}
}

// Cancel moves a user's pending order to canceled.
// Returns ErrOrderNotFound when the order does not exist or belongs to
// another user, and ErrOrderNotCancellable when the process has already
// reached a terminal status, including the case where a concurrent
// transition wins the race after the order was loaded.
func (l *Lifecycle) Cancel(orderID, userID uint) (*CancelResult, error) {
	order, err := l.store.FindOrder(orderID, userID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}

	process := order.Process
	if process == nil || process.Status != models.OrderStatusPending {
		return nil, ErrOrderNotCancellable
	}

	ok, err := l.store.UpdateProcessStatus(process.ID, models.OrderStatusPending, models.OrderStatusCanceled, nil)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the race: reconciliation completed or failed the order after
		// we loaded it. Observe the terminal state and report it.
		return nil, ErrOrderNotCancellable
	}

	log.Printf("Order %d canceled by user %d", order.ID, userID)
	l.pushOrderEvent(order, models.OrderStatusCanceled, nil, "Order canceled by user")

	return &CancelResult{
		Success: true,
		Message: fmt.Sprintf("Order %d has been successfully canceled.", order.ID),
	}, nil
}

// Reconcile runs one pass over all pending orders: fetch the current quote,
// fill orders whose execution conditions are met, and fail orders that have
// exhausted their attempt budget. Quote failures skip the symbol for this
// tick only; nothing here retries within the tick and no error escapes.
func (l *Lifecycle) Reconcile(ctx context.Context) {
	pending, err := l.store.FindPendingOrders()
	if err != nil {
		log.Printf("Reconciliation: failed to load pending orders: %v", err)
		return
	}
	if len(pending) == 0 {
		return
	}

	log.Printf("Reconciliation: processing %d pending orders", len(pending))

	// One quote per symbol per tick, shared across orders.
	quotes := make(map[string]*marketdata.Quote)
	failed := make(map[string]bool)
	completed, skipped := 0, 0

	for i := range pending {
		order := &pending[i]

		if ctx.Err() != nil {
			log.Printf("Reconciliation: deadline reached, leaving %d orders for next tick", len(pending)-i)
			return
		}

		quote, ok := quotes[order.StockSymbol]
		if !ok && !failed[order.StockSymbol] {
			quote, err = l.market.GetQuote(ctx, order.StockSymbol)
			if err != nil {
				log.Printf("Reconciliation: quote unavailable for %s, skipping this tick: %v", order.StockSymbol, err)
				failed[order.StockSymbol] = true
			} else {
				quotes[order.StockSymbol] = quote
			}
		}
		if failed[order.StockSymbol] {
			skipped++
			continue
		}

		if l.reconcileOrder(order, quote) {
			completed++
		}
	}

	log.Printf("Reconciliation: tick complete, completed=%d skipped=%d", completed, skipped)
}

// reconcileOrder evaluates one pending order against a fresh quote.
// Reports whether the order reached the completed status.
func (l *Lifecycle) reconcileOrder(order *models.Order, quote *marketdata.Quote) bool {
	process := order.Process
	if process == nil {
		log.Printf("Reconciliation: order %d has no process row, skipping", order.ID)
		return false
	}

	if l.policy.ShouldFill(order, quote) {
		now := time.Now()
		fillPrice := quote.Current
		ok, err := l.store.UpdateProcessStatus(process.ID, models.OrderStatusPending, models.OrderStatusCompleted, map[string]interface{}{
			"fill_price": fillPrice,
			"filled_at":  now,
		})
		if err != nil {
			log.Printf("Reconciliation: failed to complete order %d: %v", order.ID, err)
			return false
		}
		if !ok {
			// A concurrent cancel won; the terminal state stands.
			log.Printf("Reconciliation: order %d no longer pending, skipping", order.ID)
			return false
		}

		log.Printf("Order %d completed at price %s", order.ID, fillPrice.String())
		l.pushOrderEvent(order, models.OrderStatusCompleted, &fillPrice, "Order executed")
		return true
	}

	// Conditions not met with a quote in hand: this counts as a consumed
	// reconciliation attempt.
	attempts, err := l.store.IncrementProcessAttempts(process.ID)
	if err != nil {
		log.Printf("Reconciliation: failed to count attempt for order %d: %v", order.ID, err)
		return false
	}
	if attempts >= l.maxAttempts {
		l.failOrder(order, process, fmt.Sprintf("max reconciliation attempts (%d) exceeded", l.maxAttempts))
	}
	return false
}

// failOrder moves a pending order to the failed terminal status.
func (l *Lifecycle) failOrder(order *models.Order, process *models.OrderProcess, reason string) {
	ok, err := l.store.UpdateProcessStatus(process.ID, models.OrderStatusPending, models.OrderStatusFailed, map[string]interface{}{
		"fail_reason": reason,
	})
	if err != nil {
		log.Printf("Reconciliation: failed to fail order %d: %v", order.ID, err)
		return
	}
	if !ok {
		return
	}

	log.Printf("Order %d failed: %s", order.ID, reason)
	l.pushOrderEvent(order, models.OrderStatusFailed, nil, reason)
}

// pushOrderEvent notifies the sink about a status change. Fire-and-forget.
func (l *Lifecycle) pushOrderEvent(order *models.Order, status string, fillPrice *decimal.Decimal, message string) {
	if l.sink == nil {
		return
	}
	l.sink.PushOrderUpdate(notify.OrderEvent{
		EventID:     notify.NewEventID(),
		OrderID:     order.ID,
		RefCode:     order.RefCode,
		UserID:      order.UserID,
		StockSymbol: order.StockSymbol,
		Status:      status,
		FillPrice:   fillPrice,
		Message:     message,
		OccurredAt:  time.Now(),
	})
}
