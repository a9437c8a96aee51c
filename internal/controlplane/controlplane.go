// Package controlplane implements the admin operation set: single atomic
// mutations on the Task Store that mutate tasks while work is in flight.
package controlplane

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/store"
)

type ControlPlane struct {
	store *store.Store
}

func New(st *store.Store) *ControlPlane {
	return &ControlPlane{store: st}
}

// Submit is Task Store CreateTask, exposed on the admin surface. A caller
// that omits an idempotency key gets a fresh random one, so every stored
// row carries a key; a generated key is new on each call, so only a caller
// that resends its own key is answered with the existing row. A retry
// without a key is caught by CreateTask's duplicate check instead.
func (c *ControlPlane) Submit(ctx context.Context, hostID uint, url string, opts store.CreateOpts) (*model.CrawlTask, error) {
	if opts.IdempotencyKey == nil {
		key := uuid.NewString()
		opts.IdempotencyKey = &key
	}
	return c.store.CreateTask(ctx, hostID, url, opts)
}

// SubmitBulk is Task Store CreateTasksBulk, exposed on the admin surface.
func (c *ControlPlane) SubmitBulk(ctx context.Context, hostID uint, urls []string, opts store.CreateOpts) (*store.BulkResult, error) {
	return c.store.CreateTasksBulk(ctx, hostID, urls, opts)
}

var nonTerminalStates = []model.TaskStatus{
	model.StatusPending, model.StatusQueued, model.StatusCrawling,
	model.StatusDownloaded, model.StatusQueuedParse, model.StatusParsing,
}

// Pause CASes any non-terminal state to paused. A message already in a
// broker queue is not drained; the worker observes paused at its next
// status re-check and re-acks without doing work.
func (c *ControlPlane) Pause(ctx context.Context, taskID uint) error {
	ok, err := c.store.Transition(ctx, taskID, nonTerminalStates, model.StatusPaused, nil)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.IllegalTransition, "task is not in a pausable state")
	}
	return nil
}

// Resume CASes paused back to pending with scheduled_at reset to now.
func (c *ControlPlane) Resume(ctx context.Context, taskID uint) error {
	ok, err := c.store.Transition(ctx, taskID, []model.TaskStatus{model.StatusPaused}, model.StatusPending,
		map[string]interface{}{"scheduled_at": time.Now()})
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.IllegalTransition, "task is not paused")
	}
	return nil
}

var cancellableStates = append(append([]model.TaskStatus{}, nonTerminalStates...), model.StatusPaused)

// Cancel CASes any state except completed/failed to cancelled.
func (c *ControlPlane) Cancel(ctx context.Context, taskID uint) error {
	ok, err := c.store.Transition(ctx, taskID, cancellableStates, model.StatusCancelled, nil)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.IllegalTransition, "task is already terminal")
	}
	return nil
}

// RestartOpts customizes RestartFull.
type RestartOpts struct {
	ResetRetryCount bool
	Priority        *int
	ScheduledAt     *time.Time
}

// RestartFull CASes failed or completed back to pending, clearing
// started_at/completed_at/error and optionally the retry count, priority,
// or schedule.
func (c *ControlPlane) RestartFull(ctx context.Context, taskID uint, opts RestartOpts) error {
	patch := map[string]interface{}{
		"started_at":   nil,
		"completed_at": nil,
		"last_error":   "",
	}
	if opts.ResetRetryCount {
		patch["retry_count"] = 0
	}
	if opts.Priority != nil {
		patch["priority"] = *opts.Priority
	}
	scheduledAt := time.Now()
	if opts.ScheduledAt != nil {
		scheduledAt = *opts.ScheduledAt
	}
	patch["scheduled_at"] = scheduledAt

	ok, err := c.store.Transition(ctx, taskID,
		[]model.TaskStatus{model.StatusFailed, model.StatusCompleted}, model.StatusPending, patch)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.IllegalTransition, "task is not failed or completed")
	}
	return nil
}

// RestartParseOnly CASes failed/completed to downloaded, requiring that
// blob_ref still exists.
func (c *ControlPlane) RestartParseOnly(ctx context.Context, taskID uint, hasBlob bool) error {
	if !hasBlob {
		return apperrors.New(apperrors.HTMLNotAvailable, "no blob reference retained for this task")
	}
	ok, err := c.store.Transition(ctx, taskID,
		[]model.TaskStatus{model.StatusFailed, model.StatusCompleted}, model.StatusDownloaded, nil)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.New(apperrors.IllegalTransition, "task is not failed or completed")
	}
	return nil
}

// BulkRestartFailed applies RestartFull to every task matching filter, up
// to limit, reporting per-task success/failure.
func (c *ControlPlane) BulkRestartFailed(ctx context.Context, hostID *uint, failedAfter *time.Time, limit int, opts RestartOpts) ([]uint, []uint, error) {
	failed := model.StatusFailed
	tasks, err := c.store.Query(ctx, store.QueryFilter{
		HostID:         hostID,
		Status:         &failed,
		CompletedAfter: failedAfter, // inclusive per spec's Open Question decision
	}, store.QueryPage{Limit: limit})
	if err != nil {
		return nil, nil, err
	}

	var restarted, skipped []uint
	for _, t := range tasks {
		if err := c.RestartFull(ctx, t.ID, opts); err != nil {
			skipped = append(skipped, t.ID)
			continue
		}
		restarted = append(restarted, t.ID)
	}
	return restarted, skipped, nil
}

// ChangePriority updates a task's priority field. Already-enqueued broker
// messages retain their original queue route; this is a metadata-only
// change for future dispatch decisions, not a status transition.
func (c *ControlPlane) ChangePriority(ctx context.Context, taskID uint, newPriority int) error {
	if newPriority < 1 || newPriority > 10 {
		return apperrors.New(apperrors.Validation, "priority must be in [1,10]")
	}
	return c.store.UpdatePriority(ctx, taskID, newPriority)
}
