// Package store implements the Task Store: the sole owner of CrawlTask
// rows and the only component permitted to mutate their status.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/config"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/urlnorm"
)

// pgUniqueViolation is Postgres's SQLSTATE for a unique/exclusion
// constraint violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

type Store struct {
	db        *gorm.DB
	backoff   config.BackoffConfig
	deadline  config.StateDeadlineConfig
	normalize config.URLNormalizeConfig
}

func New(db *gorm.DB, backoff config.BackoffConfig, deadline config.StateDeadlineConfig, normalize config.URLNormalizeConfig) *Store {
	return &Store{db: db, backoff: backoff, deadline: deadline, normalize: normalize}
}

// CreateOpts customizes CreateTask beyond its required host and URL.
type CreateOpts struct {
	Priority       int
	ScheduledAt    *time.Time
	MaxRetries     int
	IsRecurring    bool
	Interval       time.Duration
	CreatedBy      string
	IdempotencyKey *string
}

// CreateTask normalizes url, computes its fingerprint, and inserts a
// pending row. Returns *apperrors.Error{Kind: Duplicate} if a live row
// already exists for (host, fingerprint).
func (s *Store) CreateTask(ctx context.Context, hostID uint, rawURL string, opts CreateOpts) (*model.CrawlTask, error) {
	if opts.IdempotencyKey != nil {
		var existing model.CrawlTask
		err := s.db.WithContext(ctx).Where("idempotency_key = ?", *opts.IdempotencyKey).First(&existing).Error
		if err == nil {
			return &existing, nil
		}
		if err != gorm.ErrRecordNotFound {
			return nil, apperrors.Wrap(apperrors.StoreUnavailable, "idempotency lookup failed", err)
		}
	}

	normalized, err := urlnorm.NormalizeWithOpts(rawURL, urlnorm.Opts{
		StripTracking: s.normalize.StripTrackingParams,
		ExtraTracking: s.normalize.ExtraTrackingParams,
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Validation, "invalid url", err)
	}
	fp := urlnorm.Fingerprint(normalized)

	priority := opts.Priority
	if priority == 0 {
		priority = 5
	}
	if priority < 1 || priority > 10 {
		return nil, apperrors.New(apperrors.Validation, "priority must be in [1,10]")
	}
	scheduledAt := time.Now()
	if opts.ScheduledAt != nil {
		scheduledAt = *opts.ScheduledAt
	}
	maxRetries := opts.MaxRetries
	if maxRetries == 0 {
		maxRetries = 3
	}

	task := &model.CrawlTask{
		HostID:         hostID,
		URL:            normalized,
		URLFP:          fp,
		Status:         model.StatusPending,
		Priority:       priority,
		ScheduledAt:    scheduledAt,
		MaxRetries:     maxRetries,
		IsRecurring:    opts.IsRecurring,
		Interval:       opts.Interval,
		CreatedBy:      opts.CreatedBy,
		IdempotencyKey: opts.IdempotencyKey,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var host model.Host
		if err := tx.First(&host, hostID).Error; err != nil {
			return apperrors.Wrap(apperrors.NotFound, "host not found", err)
		}

		// A recurring task with a zero interval would set next_run_at equal
		// to completed_at on its first completion (spec §8 invariant 4
		// requires next_run_at strictly after it), and FetchDueRecurring
		// would then treat it as perpetually due. Fall back to the host's
		// default_interval before rejecting outright.
		if task.IsRecurring {
			interval := task.Interval
			if interval == 0 {
				interval = host.DefaultInterval
			}
			if interval <= 0 {
				return apperrors.New(apperrors.Validation, "recurring task requires a positive interval: set interval_seconds or host.default_interval")
			}
			task.Interval = interval
		}

		// Locking whatever live rows already exist for this fingerprint
		// serializes this check against a concurrent Transition/
		// RecordAttempt on the same rows; it can't by itself stop two
		// brand-new inserts from racing each other, which is what the
		// database's partial unique index on (host_id, url_fp) is for —
		// a unique-violation on Create below is the actual backstop.
		var existing []model.CrawlTask
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("host_id = ? AND url_fp = ? AND status NOT IN ?", hostID, fp, terminalStatuses()).
			Find(&existing).Error; err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "duplicate check failed", err)
		}
		if len(existing) > 0 {
			return apperrors.New(apperrors.Duplicate, "a live task already exists for this url")
		}

		if err := tx.Create(task).Error; err != nil {
			if isUniqueViolation(err) {
				return apperrors.New(apperrors.Duplicate, "a live task already exists for this url")
			}
			return apperrors.Wrap(apperrors.StoreUnavailable, "create task failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// BulkResult reports per-item outcome for CreateTasksBulk, never a
// transactional failure of the whole batch unless the host is missing.
type BulkResult struct {
	Inserted   []model.CrawlTask
	Duplicates []string
	Invalid    []string
}

const maxBulkSize = 10000

// CreateTasksBulk inserts up to 10,000 URLs against one host, reporting
// per-URL success/duplicate/invalid rather than failing the whole call.
func (s *Store) CreateTasksBulk(ctx context.Context, hostID uint, urls []string, opts CreateOpts) (*BulkResult, error) {
	if len(urls) > maxBulkSize {
		return nil, apperrors.New(apperrors.Validation, "batch exceeds maximum of 10000 urls")
	}

	var host model.Host
	if err := s.db.WithContext(ctx).First(&host, hostID).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.NotFound, "host not found", err)
	}

	// Per-URL idempotency keys collapse the whole batch onto one row, so a
	// bulk submission never carries one through to CreateTask.
	itemOpts := opts
	itemOpts.IdempotencyKey = nil

	result := &BulkResult{}
	for _, u := range urls {
		task, err := s.CreateTask(ctx, hostID, u, itemOpts)
		if err != nil {
			if apperrors.Is(err, apperrors.Duplicate) {
				result.Duplicates = append(result.Duplicates, u)
				continue
			}
			result.Invalid = append(result.Invalid, u)
			continue
		}
		result.Inserted = append(result.Inserted, *task)
	}
	return result, nil
}

// FetchDue returns up to limit pending rows whose owning host is active and
// whose scheduled_at has arrived, ordered by (priority asc, scheduled_at asc).
func (s *Store) FetchDue(ctx context.Context, limit int, now time.Time) ([]model.CrawlTask, error) {
	var tasks []model.CrawlTask
	err := s.db.WithContext(ctx).
		Joins("JOIN hosts ON hosts.id = crawl_tasks.host_id AND hosts.active = true").
		Where("crawl_tasks.status = ? AND crawl_tasks.scheduled_at <= ?", model.StatusPending, now).
		Order("crawl_tasks.priority asc, crawl_tasks.scheduled_at asc").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "fetch_due failed", err)
	}
	return tasks, nil
}

// CountInFlight returns the number of rows currently occupying a queue slot
// (queued, crawling, queued_parse, parsing) — the population the broker's
// queues hold at any moment, for a caller enforcing a queue depth cap.
func (s *Store) CountInFlight(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CrawlTask{}).
		Where("status IN ?", model.ActiveStatuses()).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreUnavailable, "count in flight failed", err)
	}
	return count, nil
}

// CountInFlightForHost is CountInFlight scoped to a single host, the
// population a per-host Host.MaxInFlight cap is measured against.
func (s *Store) CountInFlightForHost(ctx context.Context, hostID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.CrawlTask{}).
		Where("host_id = ? AND status IN ?", hostID, model.ActiveStatuses()).
		Count(&count).Error
	if err != nil {
		return 0, apperrors.Wrap(apperrors.StoreUnavailable, "count in flight for host failed", err)
	}
	return count, nil
}

// FetchDueRecurring returns up to limit completed, recurring rows whose
// next_run_at has arrived, ordered by next_run_at ascending. Unlike Query,
// this filters at the SQL level on next_run_at rather than scheduled_at (a
// completed row's scheduled_at is frozen at whatever it was before
// completion, so it can't stand in for "due to recur" once the completed
// table grows past one page).
func (s *Store) FetchDueRecurring(ctx context.Context, limit int, now time.Time) ([]model.CrawlTask, error) {
	var tasks []model.CrawlTask
	err := s.db.WithContext(ctx).
		Where("status = ? AND is_recurring = ? AND next_run_at IS NOT NULL AND next_run_at <= ?",
			model.StatusCompleted, true, now).
		Order("next_run_at asc").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "fetch_due_recurring failed", err)
	}
	return tasks, nil
}

// Transition performs a conditional compare-and-set on status: it succeeds
// only if the row's current status is one of fromStates, applying patch in
// the same update. Returns false (no error) if the CAS lost the race.
//
// fromStates must contain at least one legal predecessor of toState per the
// transition table; admin operations (pause/resume/cancel/restart) pass
// wider from-sets than any single row could ever be in, so this only
// rejects a call site whose entire from-set is bogus, not one that's merely
// wider than what applies to a given row.
func (s *Store) Transition(ctx context.Context, taskID uint, fromStates []model.TaskStatus, toState model.TaskStatus, patch map[string]interface{}) (bool, error) {
	legal := false
	for _, from := range fromStates {
		if model.ValidateTransition(from, toState) == nil {
			legal = true
			break
		}
	}
	if !legal {
		return false, apperrors.New(apperrors.IllegalTransition, "no candidate from-state legally transitions to "+string(toState))
	}

	updates := map[string]interface{}{"status": toState}
	for k, v := range patch {
		updates[k] = v
	}

	res := s.db.WithContext(ctx).Model(&model.CrawlTask{}).
		Where("id = ? AND status IN ?", taskID, fromStates).
		Updates(updates)
	if res.Error != nil {
		return false, apperrors.Wrap(apperrors.StoreUnavailable, "transition failed", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// AttemptOutcome discriminates the shape of RecordAttempt's argument.
type AttemptOutcome struct {
	Kind AttemptKind

	// download-success
	BlobRef  string
	HTTPCode int
	LatencyMs int64
	ProxyID  *uint

	// transient/terminal failure
	ErrorText string
}

type AttemptKind string

const (
	DownloadSuccess   AttemptKind = "download_success"
	ParseSuccess      AttemptKind = "parse_success"
	TransientFailure  AttemptKind = "transient_failure"
	TerminalFailure   AttemptKind = "terminal_failure"
)

// RecordAttempt applies a worker-reported outcome to a task inside a
// row-locked transaction, so a concurrent lease reclaim can't race it.
func (s *Store) RecordAttempt(ctx context.Context, taskID uint, outcome AttemptOutcome) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var task model.CrawlTask
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&task, taskID).Error; err != nil {
			return apperrors.Wrap(apperrors.NotFound, "task not found", err)
		}

		now := time.Now()
		switch outcome.Kind {
		case DownloadSuccess:
			task.Status = model.StatusDownloaded
			task.BlobRef = outcome.BlobRef
			task.HTTPCode = outcome.HTTPCode
			task.LatencyMs = outcome.LatencyMs
			task.ProxyID = outcome.ProxyID

		case ParseSuccess:
			task.Status = model.StatusCompleted
			task.CompletedAt = &now
			if task.IsRecurring {
				next := now.Add(task.Interval)
				task.NextRunAt = &next
			}

		case TransientFailure:
			task.RetryCount++
			task.LastError = outcome.ErrorText
			if task.RetryCount > task.MaxRetries {
				task.Status = model.StatusFailed
				task.CompletedAt = &now
			} else {
				task.Status = model.StatusPending
				task.ScheduledAt = now.Add(NextBackoff(task.RetryCount, s.backoff.Base, s.backoff.Cap))
			}

		case TerminalFailure:
			task.Status = model.StatusFailed
			task.LastError = outcome.ErrorText
			task.CompletedAt = &now
		}

		return tx.Save(&task).Error
	})
}

// MaterializeRecurrence inserts a fresh pending row copying url/host/
// priority/interval from a completed recurring task, and advances the
// original's next_run_at by its interval.
func (s *Store) MaterializeRecurrence(ctx context.Context, taskID uint) (*model.CrawlTask, error) {
	var fresh *model.CrawlTask
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var parent model.CrawlTask
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&parent, taskID).Error; err != nil {
			return apperrors.Wrap(apperrors.NotFound, "task not found", err)
		}
		if parent.Status != model.StatusCompleted || !parent.IsRecurring || parent.NextRunAt == nil || parent.NextRunAt.After(time.Now()) {
			return apperrors.New(apperrors.IllegalTransition, "task is not a due recurring completion")
		}

		parentID := parent.ID
		fresh = &model.CrawlTask{
			HostID:      parent.HostID,
			URL:         parent.URL,
			URLFP:       parent.URLFP,
			Status:      model.StatusPending,
			Priority:    parent.Priority,
			ScheduledAt: time.Now(),
			MaxRetries:  parent.MaxRetries,
			IsRecurring: parent.IsRecurring,
			Interval:    parent.Interval,
			RecurCount:  parent.RecurCount + 1,
			ParentID:    &parentID,
		}
		if err := tx.Create(fresh).Error; err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "materialize recurrence insert failed", err)
		}

		next := parent.NextRunAt.Add(parent.Interval)
		if err := tx.Model(&parent).Update("next_run_at", next).Error; err != nil {
			return apperrors.Wrap(apperrors.StoreUnavailable, "advance next_run_at failed", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return fresh, nil
}

// ReclaimExpiredLeases moves rows stuck in an active state past their
// state deadline back to pending, incrementing retry count — unless that
// increment would push retry_count past max_retries, in which case the row
// lands in failed instead, mirroring RecordAttempt's TransientFailure
// branch rather than letting a permanently-dying host recycle forever.
// Returns the number of rows reclaimed.
func (s *Store) ReclaimExpiredLeases(ctx context.Context, now time.Time) (int64, error) {
	sweeps := []struct {
		status   model.TaskStatus
		deadline time.Duration
	}{
		{model.StatusQueued, s.deadline.Queued},
		{model.StatusCrawling, s.deadline.Crawling},
		{model.StatusQueuedParse, s.deadline.QueuedParse},
		{model.StatusParsing, s.deadline.Parsing},
	}

	var total int64
	for _, sweep := range sweeps {
		cutoff := now.Add(-sweep.deadline)
		res := s.db.WithContext(ctx).Exec(`
			UPDATE crawl_tasks
			SET retry_count = retry_count + 1,
				status = CASE WHEN retry_count + 1 > max_retries THEN ? ELSE ? END,
				completed_at = CASE WHEN retry_count + 1 > max_retries THEN ? ELSE completed_at END,
				last_error = CASE WHEN retry_count + 1 > max_retries THEN ? ELSE last_error END
			WHERE status = ? AND updated_at < ?
		`, model.StatusFailed, model.StatusPending, now, "retries exhausted after lease reclaim", sweep.status, cutoff)
		if res.Error != nil {
			return total, apperrors.Wrap(apperrors.StoreUnavailable, "lease reclaim failed", res.Error)
		}
		total += res.RowsAffected
	}
	return total, nil
}

// QueryFilter narrows Query's result set; zero values are unfiltered.
type QueryFilter struct {
	HostID         *uint
	Status         *model.TaskStatus
	MinPriority    *int
	MaxPriority    *int
	After          *time.Time
	Before         *time.Time
	CompletedAfter *time.Time
}

// QueryPage is a cursor over (sort_key, id); pass the last row's values
// back in as Cursor* to continue.
type QueryPage struct {
	Limit        int
	CursorSortAt *time.Time
	CursorID     uint
}

// Query lists tasks by filter, ordered by scheduled_at then id, paginated
// by cursor.
func (s *Store) Query(ctx context.Context, filter QueryFilter, page QueryPage) ([]model.CrawlTask, error) {
	q := s.db.WithContext(ctx).Model(&model.CrawlTask{})

	if filter.HostID != nil {
		q = q.Where("host_id = ?", *filter.HostID)
	}
	if filter.Status != nil {
		q = q.Where("status = ?", *filter.Status)
	}
	if filter.MinPriority != nil {
		q = q.Where("priority >= ?", *filter.MinPriority)
	}
	if filter.MaxPriority != nil {
		q = q.Where("priority <= ?", *filter.MaxPriority)
	}
	if filter.After != nil {
		q = q.Where("scheduled_at >= ?", *filter.After)
	}
	if filter.Before != nil {
		q = q.Where("scheduled_at <= ?", *filter.Before)
	}
	if filter.CompletedAfter != nil {
		q = q.Where("completed_at >= ?", *filter.CompletedAfter)
	}
	if page.CursorSortAt != nil {
		q = q.Where("(scheduled_at, id) > (?, ?)", *page.CursorSortAt, page.CursorID)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = 100
	}

	var tasks []model.CrawlTask
	err := q.Order("scheduled_at asc, id asc").Limit(limit).Find(&tasks).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "query failed", err)
	}
	return tasks, nil
}

// GetByID fetches a single task row.
func (s *Store) GetByID(ctx context.Context, taskID uint) (*model.CrawlTask, error) {
	var task model.CrawlTask
	if err := s.db.WithContext(ctx).First(&task, taskID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.NotFound, "task not found")
		}
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "get task failed", err)
	}
	return &task, nil
}

// GetHost fetches a single host row.
func (s *Store) GetHost(ctx context.Context, hostID uint) (*model.Host, error) {
	var host model.Host
	if err := s.db.WithContext(ctx).First(&host, hostID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, apperrors.New(apperrors.NotFound, "host not found")
		}
		return nil, apperrors.Wrap(apperrors.StoreUnavailable, "get host failed", err)
	}
	return &host, nil
}

// UpdatePriority sets a task's priority field directly. Priority isn't
// part of the state machine, so this bypasses Transition's CAS rather than
// forcing an unrelated status into the from/to shape.
func (s *Store) UpdatePriority(ctx context.Context, taskID uint, newPriority int) error {
	res := s.db.WithContext(ctx).Model(&model.CrawlTask{}).
		Where("id = ? AND status NOT IN ?", taskID, terminalStatuses()).
		Update("priority", newPriority)
	if res.Error != nil {
		return apperrors.Wrap(apperrors.StoreUnavailable, "change priority failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.IllegalTransition, "task not found or already terminal")
	}
	return nil
}

func terminalStatuses() []model.TaskStatus {
	return model.TerminalStatuses()
}
