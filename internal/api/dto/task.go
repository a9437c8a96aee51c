package dto

import "time"

// SubmitTaskRequest is the Submit control-plane operation's request body.
type SubmitTaskRequest struct {
	HostID      uint       `json:"host_id" binding:"required"`
	URL         string     `json:"url" binding:"required,url"`
	Priority    int        `json:"priority" binding:"omitempty,min=1,max=10"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	MaxRetries  int        `json:"max_retries" binding:"omitempty,min=1"`
	IsRecurring bool       `json:"is_recurring"`
	IntervalSec int        `json:"interval_seconds"`
}

// SubmitBulkRequest is the SubmitBulk control-plane operation's request
// body; up to 10,000 URLs per call.
type SubmitBulkRequest struct {
	HostID      uint     `json:"host_id" binding:"required"`
	URLs        []string `json:"urls" binding:"required,max=10000,dive,url"`
	Priority    int      `json:"priority" binding:"omitempty,min=1,max=10"`
	MaxRetries  int      `json:"max_retries" binding:"omitempty,min=1"`
	IsRecurring bool     `json:"is_recurring"`
	IntervalSec int      `json:"interval_seconds"`
}

// TaskResponse is the admin-facing view of a CrawlTask row.
type TaskResponse struct {
	ID          uint       `json:"id"`
	HostID      uint       `json:"host_id"`
	URL         string     `json:"url"`
	Status      string     `json:"status"`
	Priority    int        `json:"priority"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	RetryCount  int        `json:"retry_count"`
	MaxRetries  int        `json:"max_retries"`
	LastError   string     `json:"last_error,omitempty"`
	IsRecurring bool       `json:"is_recurring"`
	NextRunAt   *time.Time `json:"next_run_at,omitempty"`
	RecurCount  int        `json:"recur_count"`
	BlobRef     string     `json:"blob_ref,omitempty"`
	HTTPCode    int        `json:"http_code,omitempty"`
}

// RestartFullRequest customizes the Restart-full control-plane operation.
type RestartFullRequest struct {
	ResetRetryCount bool       `json:"reset_retry_count"`
	Priority        *int       `json:"priority" binding:"omitempty,min=1,max=10"`
	ScheduledAt     *time.Time `json:"scheduled_at"`
}

// BulkRestartFailedRequest customizes Bulk-restart-failed.
type BulkRestartFailedRequest struct {
	HostID      *uint      `json:"host_id"`
	FailedAfter *time.Time `json:"failed_after"`
	Limit       int        `json:"limit" binding:"omitempty,min=1,max=10000"`
	RestartFullRequest
}

// ChangePriorityRequest customizes Change-priority.
type ChangePriorityRequest struct {
	Priority int `json:"priority" binding:"required,min=1,max=10"`
}

// TaskQueryRequest is the Query control-plane operation's filter and
// cursor, bound from the request's query string.
type TaskQueryRequest struct {
	HostID       *uint      `form:"host_id"`
	Status       string     `form:"status"`
	MinPriority  *int       `form:"min_priority"`
	MaxPriority  *int       `form:"max_priority"`
	After        *time.Time `form:"after" time_format:"2006-01-02T15:04:05Z07:00"`
	Before       *time.Time `form:"before" time_format:"2006-01-02T15:04:05Z07:00"`
	CursorSortAt *time.Time `form:"cursor_sort_at" time_format:"2006-01-02T15:04:05Z07:00"`
	CursorID     uint       `form:"cursor_id"`
	PageSize     int        `form:"pageSize,default=100"`
}
