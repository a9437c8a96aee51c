// Package dispatcher drives the four-step scheduler round: reclaim leases,
// materialize recurrence, fetch due tasks, transition and publish them.
package dispatcher

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/broker"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/store"
)

type Dispatcher struct {
	store     *store.Store
	producer  *broker.Producer
	log       *zap.Logger
	batchSize int
	maxQueue  int
	tick      func() time.Duration
}

// New builds a Dispatcher. tickFn is consulted before every loop iteration
// so callers can drive a fixed interval or a cron-expression-derived one
// (see TickFunc in cron.go) without the loop itself knowing which. maxQueue caps the
// number of in-flight tasks (queued/crawling/queued_parse/parsing) the
// dispatcher will allow before it stops handing out new work for a round;
// zero disables the cap.
func New(st *store.Store, producer *broker.Producer, log *zap.Logger, batchSize, maxQueue int, tickFn func() time.Duration) *Dispatcher {
	return &Dispatcher{store: st, producer: producer, log: log, batchSize: batchSize, maxQueue: maxQueue, tick: tickFn}
}

// Run blocks, executing RunOnce on the configured cadence until ctx is
// cancelled. It is safe to run multiple replicas of Run concurrently;
// correctness relies entirely on the Task Store's CAS, not on any
// leader-election here.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.tick()):
			if err := d.RunOnce(ctx); err != nil {
				d.log.Error("dispatcher round failed", zap.Error(err))
			}
		}
	}
}

// RunOnce executes a single round of the four-step loop.
func (d *Dispatcher) RunOnce(ctx context.Context) error {
	now := time.Now()

	if _, err := d.store.ReclaimExpiredLeases(ctx, now); err != nil {
		return err
	}

	// A race with a concurrent dispatcher replica just fails one
	// MaterializeRecurrence call harmlessly (already-advanced next_run_at).
	dueRecurring, err := d.store.FetchDueRecurring(ctx, d.batchSize, now)
	if err != nil {
		return err
	}
	for _, t := range dueRecurring {
		if _, err := d.store.MaterializeRecurrence(ctx, t.ID); err != nil && !apperrors.Is(err, apperrors.IllegalTransition) {
			d.log.Warn("materialize recurrence failed", zap.Uint("task_id", t.ID), zap.Error(err))
		}
	}

	limit := d.batchSize
	if d.maxQueue > 0 {
		inFlight, err := d.store.CountInFlight(ctx)
		if err != nil {
			return err
		}
		room := int64(d.maxQueue) - inFlight
		if room <= 0 {
			d.log.Warn("queue depth cap reached, skipping dispatch this round",
				zap.Int64("in_flight", inFlight), zap.Int("max_queue", d.maxQueue))
			return nil
		}
		if room < int64(limit) {
			limit = int(room)
		}
	}

	due, err := d.store.FetchDue(ctx, limit, now)
	if err != nil {
		return err
	}

	for _, t := range due {
		if !model.IsSchedulable(t.Status) {
			continue
		}

		ok, err := d.store.Transition(ctx, t.ID, []model.TaskStatus{model.StatusPending}, model.StatusQueued, nil)
		if err != nil {
			d.log.Warn("transition failed", zap.Uint("task_id", t.ID), zap.Error(err))
			continue
		}
		if !ok {
			// a concurrent dispatcher replica already won this task.
			continue
		}

		job := broker.CrawlJob{
			TaskID:   t.ID,
			URL:      t.URL,
			HostID:   t.HostID,
			Priority: t.Priority,
			Attempt:  t.RetryCount,
		}
		if err := d.producer.PublishCrawlJob(ctx, job); err != nil {
			d.log.Error("publish failed, reverting to pending", zap.Uint("task_id", t.ID), zap.Error(err))
			delay := time.Now().Add(5 * time.Second)
			_, _ = d.store.Transition(ctx, t.ID, []model.TaskStatus{model.StatusQueued}, model.StatusPending,
				map[string]interface{}{"scheduled_at": delay})
		}
	}

	return nil
}

