package alerts

import (
	"context"
	"log"
	"time"

	"trading_backend/models"
	"trading_backend/services/marketdata"
	"trading_backend/services/notify"
	"trading_backend/services/store"
)

// QuoteFetcher is the slice of the market data client the evaluator needs.
type QuoteFetcher interface {
	GetQuote(ctx context.Context, symbol string) (*marketdata.Quote, error)
}

// Evaluator compares active price alerts against live quotes and raises
// notifications on threshold crossings. A triggered alert is never
// re-evaluated: the active→triggered transition is a conditional update,
// so concurrent ticks cannot double-notify, and only an explicit re-arm
// makes the alert eligible again.
type Evaluator struct {
	store  *store.Store
	market QuoteFetcher
	sink   notify.Sink
}

// NewEvaluator creates the alert evaluator.
func NewEvaluator(st *store.Store, market QuoteFetcher, sink notify.Sink) *Evaluator {
	return &Evaluator{store: st, market: market, sink: sink}
}

// Evaluate runs one pass over all active alerts, then re-arms recurring
// triggered alerts whose condition has cleared. Quote failures degrade the
// affected symbol for this tick only; the loop always continues and no
// error escapes.
func (e *Evaluator) Evaluate(ctx context.Context) {
	active, err := e.store.FindActiveAlerts()
	if err != nil {
		log.Printf("Alert evaluation: failed to load active alerts: %v", err)
		return
	}

	quotes := newQuoteMemo(e.market)
	triggered, skipped := 0, 0

	for i := range active {
		alert := &active[i]

		if ctx.Err() != nil {
			log.Printf("Alert evaluation: deadline reached, leaving %d alerts for next tick", len(active)-i)
			return
		}

		quote, err := quotes.get(ctx, alert.StockSymbol)
		if err != nil {
			skipped++
			continue
		}

		if !alert.ConditionMet(quote.Current) {
			continue
		}

		now := time.Now()
		ok, err := e.store.UpdateAlertStatus(alert.ID, models.AlertStatusActive, models.AlertStatusTriggered, map[string]interface{}{
			"triggered_at": now,
		})
		if err != nil {
			log.Printf("Alert evaluation: failed to trigger alert %d: %v", alert.ID, err)
			continue
		}
		if !ok {
			// Another tick or the user got there first.
			continue
		}

		triggered++
		log.Printf("Alert %d triggered for user %d: %s %s %s (current %s)",
			alert.ID, alert.UserID, alert.StockSymbol, alert.Direction,
			alert.ThresholdPrice.String(), quote.Current.String())

		if e.sink != nil {
			e.sink.PushAlert(notify.AlertEvent{
				EventID:      notify.NewEventID(),
				AlertID:      alert.ID,
				UserID:       alert.UserID,
				StockSymbol:  alert.StockSymbol,
				CurrentPrice: quote.Current,
				Direction:    alert.Direction,
				TriggeredAt:  now,
			})
		}
	}

	if len(active) > 0 {
		log.Printf("Alert evaluation: tick complete, evaluated=%d triggered=%d skipped=%d", len(active), triggered, skipped)
	}

	e.rearmRecurring(ctx, quotes)
}

// rearmRecurring moves recurring triggered alerts back to active once the
// price is off the threshold again, so the next crossing notifies anew.
func (e *Evaluator) rearmRecurring(ctx context.Context, quotes *quoteMemo) {
	alerts, err := e.store.FindRecurringTriggeredAlerts()
	if err != nil {
		log.Printf("Alert re-arm: failed to load triggered alerts: %v", err)
		return
	}

	for i := range alerts {
		alert := &alerts[i]

		if ctx.Err() != nil {
			return
		}

		quote, err := quotes.get(ctx, alert.StockSymbol)
		if err != nil {
			continue
		}
		if alert.ConditionMet(quote.Current) {
			continue
		}

		ok, err := e.store.UpdateAlertStatus(alert.ID, models.AlertStatusTriggered, models.AlertStatusActive, nil)
		if err != nil {
			log.Printf("Alert re-arm: failed to re-arm alert %d: %v", alert.ID, err)
			continue
		}
		if ok {
			log.Printf("Alert %d re-armed for user %d (%s)", alert.ID, alert.UserID, alert.StockSymbol)
		}
	}
}

// quoteMemo caches quotes and quote failures for the duration of one tick
// so each symbol costs at most one provider call.
type quoteMemo struct {
	market QuoteFetcher
	quotes map[string]*marketdata.Quote
	failed map[string]error
}

func newQuoteMemo(market QuoteFetcher) *quoteMemo {
	return &quoteMemo{
		market: market,
		quotes: make(map[string]*marketdata.Quote),
		failed: make(map[string]error),
	}
}

func (m *quoteMemo) get(ctx context.Context, symbol string) (*marketdata.Quote, error) {
	if quote, ok := m.quotes[symbol]; ok {
		return quote, nil
	}
	if err, ok := m.failed[symbol]; ok {
		return nil, err
	}

	quote, err := m.market.GetQuote(ctx, symbol)
	if err != nil {
		log.Printf("Alert evaluation: quote unavailable for %s, skipping this tick: %v", symbol, err)
		m.failed[symbol] = err
		return nil, err
	}
	m.quotes[symbol] = quote
	return quote, nil
}
