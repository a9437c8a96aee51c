package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/alpes214/crawler/internal/api/dto"
	"github.com/alpes214/crawler/internal/api/response"
	"github.com/alpes214/crawler/internal/controlplane"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/store"
)

type TaskHandler struct {
	cp *controlplane.ControlPlane
	st *store.Store
}

func NewTaskHandler(cp *controlplane.ControlPlane, st *store.Store) *TaskHandler {
	return &TaskHandler{cp: cp, st: st}
}

func (h *TaskHandler) Submit(c *gin.Context) {
	var req dto.SubmitTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}

	opts := store.CreateOpts{
		Priority:    req.Priority,
		ScheduledAt: req.ScheduledAt,
		MaxRetries:  req.MaxRetries,
		IsRecurring: req.IsRecurring,
		Interval:    time.Duration(req.IntervalSec) * time.Second,
		CreatedBy:   "admin",
	}
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		opts.IdempotencyKey = &key
	}

	task, err := h.cp.Submit(c.Request.Context(), req.HostID, req.URL, opts)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "task submitted", toTaskResponse(task))
}

func (h *TaskHandler) SubmitBulk(c *gin.Context) {
	var req dto.SubmitBulkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}

	opts := store.CreateOpts{
		Priority:    req.Priority,
		MaxRetries:  req.MaxRetries,
		IsRecurring: req.IsRecurring,
		Interval:    time.Duration(req.IntervalSec) * time.Second,
		CreatedBy:   "admin",
	}

	result, err := h.cp.SubmitBulk(c.Request.Context(), req.HostID, req.URLs, opts)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Ok(c, gin.H{
		"inserted_count":   len(result.Inserted),
		"duplicate_count":  len(result.Duplicates),
		"invalid_count":    len(result.Invalid),
		"duplicates":       result.Duplicates,
		"invalid":          result.Invalid,
	})
}

func (h *TaskHandler) Pause(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		return
	}
	if err := h.cp.Pause(c.Request.Context(), id); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "task paused", nil)
}

func (h *TaskHandler) Resume(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		return
	}
	if err := h.cp.Resume(c.Request.Context(), id); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "task resumed", nil)
}

func (h *TaskHandler) Cancel(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		return
	}
	if err := h.cp.Cancel(c.Request.Context(), id); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "task cancelled", nil)
}

func (h *TaskHandler) RestartFull(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		return
	}
	var req dto.RestartFullRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, "", err)
		return
	}
	opts := controlplane.RestartOpts{
		ResetRetryCount: req.ResetRetryCount,
		Priority:        req.Priority,
		ScheduledAt:     req.ScheduledAt,
	}
	if err := h.cp.RestartFull(c.Request.Context(), id, opts); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "task restarted", nil)
}

func (h *TaskHandler) RestartParseOnly(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		return
	}

	task, err := h.st.GetByID(c.Request.Context(), id)
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	if err := h.cp.RestartParseOnly(c.Request.Context(), id, task.BlobRef != ""); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "task restarted for parse-only", nil)
}

func (h *TaskHandler) BulkRestartFailed(c *gin.Context) {
	var req dto.BulkRestartFailedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	opts := controlplane.RestartOpts{
		ResetRetryCount: req.ResetRetryCount,
		Priority:        req.Priority,
		ScheduledAt:     req.ScheduledAt,
	}
	restarted, skipped, err := h.cp.BulkRestartFailed(c.Request.Context(), req.HostID, req.FailedAfter, req.Limit, opts)
	if err != nil {
		response.FromAppError(c, err)
		return
	}
	response.Ok(c, gin.H{"restarted": restarted, "skipped": skipped})
}

func (h *TaskHandler) ChangePriority(c *gin.Context) {
	id, err := taskIDParam(c)
	if err != nil {
		return
	}
	var req dto.ChangePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "", err)
		return
	}
	if err := h.cp.ChangePriority(c.Request.Context(), id, req.Priority); err != nil {
		response.FromAppError(c, err)
		return
	}
	response.OkWithMessage(c, "priority changed", nil)
}

func (h *TaskHandler) Query(c *gin.Context) {
	var req dto.TaskQueryRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query", err)
		return
	}
	if req.PageSize <= 0 || req.PageSize > 500 {
		req.PageSize = 100
	}

	filter := store.QueryFilter{
		HostID:      req.HostID,
		MinPriority: req.MinPriority,
		MaxPriority: req.MaxPriority,
		After:       req.After,
		Before:      req.Before,
	}
	if req.Status != "" {
		status := model.TaskStatus(req.Status)
		filter.Status = &status
	}

	tasks, err := h.st.Query(c.Request.Context(), filter, store.QueryPage{
		Limit:        req.PageSize,
		CursorSortAt: req.CursorSortAt,
		CursorID:     req.CursorID,
	})
	if err != nil {
		response.FromAppError(c, err)
		return
	}

	out := make([]dto.TaskResponse, 0, len(tasks))
	for i := range tasks {
		out = append(out, toTaskResponse(&tasks[i]))
	}
	response.Ok(c, dto.PaginationResponse{PageSize: req.PageSize, List: out})
}

func taskIDParam(c *gin.Context) (uint, error) {
	idStr := c.Param("taskId")
	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid task id", err)
		return 0, err
	}
	return uint(id), nil
}

func toTaskResponse(t *model.CrawlTask) dto.TaskResponse {
	return dto.TaskResponse{
		ID:          t.ID,
		HostID:      t.HostID,
		URL:         t.URL,
		Status:      string(t.Status),
		Priority:    t.Priority,
		ScheduledAt: t.ScheduledAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		RetryCount:  t.RetryCount,
		MaxRetries:  t.MaxRetries,
		LastError:   t.LastError,
		IsRecurring: t.IsRecurring,
		NextRunAt:   t.NextRunAt,
		RecurCount:  t.RecurCount,
		BlobRef:     t.BlobRef,
		HTTPCode:    t.HTTPCode,
	}
}
