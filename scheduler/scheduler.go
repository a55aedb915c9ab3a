package scheduler

// Package scheduler drives the platform's recurring background work:
// - Order reconciliation on the high-priority lane
// - Price alert evaluation on the low-priority lane
// - Market news sync and cache maintenance on the low-priority lane
//
// Each lane is an isolated gocron scheduler so a burst of slow provider
// calls in one lane cannot starve the other. Jobs run in singleton mode:
// a tick is skipped while the previous run of the same job is still active.

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"
)

// Lane names
const (
	LaneHighPriority = "high-priority"
	LaneLowPriority  = "low-priority"
)

// Runner manages the named execution lanes and the recurring jobs on them.
type Runner struct {
	lanes      map[string]*gocron.Scheduler
	jobTimeout time.Duration
}

// NewRunner creates a runner with the two standard lanes.
func NewRunner(jobTimeout time.Duration) *Runner {
	if jobTimeout <= 0 {
		jobTimeout = 45 * time.Second
	}
	return &Runner{
		lanes: map[string]*gocron.Scheduler{
			LaneHighPriority: gocron.NewScheduler(time.UTC),
			LaneLowPriority:  gocron.NewScheduler(time.UTC),
		},
		jobTimeout: jobTimeout,
	}
}

// RegisterRecurring schedules a named task on a lane at a fixed cadence.
// The task receives a context carrying the per-invocation deadline; when it
// expires mid-run, in-flight work is abandoned and whatever was committed
// stays committed. Panics are caught at the job boundary so a fault never
// prevents the next tick.
func (r *Runner) RegisterRecurring(name string, cadence time.Duration, lane string, task func(ctx context.Context)) error {
	sched, ok := r.lanes[lane]
	if !ok {
		sched = r.lanes[LaneLowPriority]
		log.Printf("Scheduler: unknown lane %q for job %s, using %s", lane, name, LaneLowPriority)
	}

	_, err := sched.Every(cadence).Tag(name).SingletonMode().Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.jobTimeout)
		defer cancel()

		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("Scheduler: job %s panicked: %v", name, rec)
			}
		}()

		task(ctx)
	})
	if err != nil {
		return err
	}

	log.Printf("Scheduler: registered job %s on lane %s (every %v)", name, lane, cadence)
	return nil
}

// Start starts all lanes asynchronously.
func (r *Runner) Start() {
	for _, sched := range r.lanes {
		sched.StartAsync()
	}
	log.Println("Scheduler started")
}

// Stop stops all lanes, waiting for running jobs to finish.
func (r *Runner) Stop() {
	for _, sched := range r.lanes {
		sched.Stop()
	}
	log.Println("Scheduler stopped")
}
