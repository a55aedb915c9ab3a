package scheduler

import (
	"context"
	"log"
	"time"

	"trading_backend/config"
	"trading_backend/services/alerts"
	"trading_backend/services/marketdata"
	"trading_backend/services/news"
	"trading_backend/services/orders"
)

// News categories synced into the archive
const newsSyncCategory = "general"

// Jobs wires the platform services into the lane runner.
type Jobs struct {
	runner    *Runner
	lifecycle *orders.Lifecycle
	evaluator *alerts.Evaluator
	market    *marketdata.Client
	archive   *news.Archive
	cfg       *config.Config
}

// NewJobs creates the job set. The archive may be nil (news sync disabled).
func NewJobs(cfg *config.Config, lifecycle *orders.Lifecycle, evaluator *alerts.Evaluator, market *marketdata.Client, archive *news.Archive) *Jobs {
	return &Jobs{
		runner:    NewRunner(cfg.JobTimeout),
		lifecycle: lifecycle,
		evaluator: evaluator,
		market:    market,
		archive:   archive,
		cfg:       cfg,
	}
}

// Start registers all recurring jobs and starts the lanes.
func (j *Jobs) Start() error {
	log.Println("Starting scheduler...")

	// Reconcile pending orders every minute on the high-priority lane
	err := j.runner.RegisterRecurring("order-reconciliation", j.cfg.ReconcileInterval, LaneHighPriority, func(ctx context.Context) {
		j.lifecycle.Reconcile(ctx)
	})
	if err != nil {
		return err
	}

	// Evaluate price alerts every minute on the low-priority lane
	err = j.runner.RegisterRecurring("alert-evaluation", j.cfg.AlertInterval, LaneLowPriority, func(ctx context.Context) {
		j.evaluator.Evaluate(ctx)
	})
	if err != nil {
		return err
	}

	// Sync market news into the archive and trim the news cache
	if j.archive != nil {
		err = j.runner.RegisterRecurring("news-sync", j.cfg.NewsSyncInterval, LaneLowPriority, func(ctx context.Context) {
			j.syncNews(ctx)
		})
		if err != nil {
			return err
		}
	}

	j.runner.Start()
	log.Println("Scheduler started successfully")
	return nil
}

// Stop stops all scheduled jobs.
func (j *Jobs) Stop() {
	j.runner.Stop()
}

// syncNews fetches market news published since the last archived article
// and stores it in MongoDB.
func (j *Jobs) syncNews(ctx context.Context) {
	j.market.PurgeExpiredNews()

	since, err := j.archive.LatestID(ctx, newsSyncCategory)
	if err != nil {
		log.Printf("News sync: failed to read watermark: %v", err)
		return
	}

	items, err := j.market.GetMarketNews(ctx, newsSyncCategory, since)
	if err != nil {
		log.Printf("News sync: fetch failed, retrying next tick: %v", err)
		return
	}
	if len(items) == 0 {
		return
	}

	archiveCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := j.archive.ArchiveItems(archiveCtx, newsSyncCategory, items); err != nil {
		log.Printf("News sync: archive failed: %v", err)
	}
}
