package worker

import (
	"context"
	"io"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/blobstore"
	"github.com/alpes214/crawler/internal/broker"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/parserkind"
	"github.com/alpes214/crawler/internal/store"
)

// ParseWorker consumes ParseJob messages: re-checks status, reads the
// blob, invokes the parser tag's registered handler, and marks completed.
// The Product the handler returns is discarded; persisting it is an
// external concern, out of scope here.
type ParseWorker struct {
	Store *store.Store
	Blobs blobstore.BlobStore
	Log   *zap.Logger
}

func NewParseWorker(st *store.Store, blobs blobstore.BlobStore, log *zap.Logger) *ParseWorker {
	return &ParseWorker{Store: st, Blobs: blobs, Log: log}
}

func (w *ParseWorker) HandleParseJob(ctx context.Context, t *asynq.Task) error {
	var job broker.ParseJob
	if err := decodePayload(t.Payload(), &job); err != nil {
		return err
	}

	task, err := w.Store.GetByID(ctx, job.TaskID)
	if err != nil {
		w.Log.Warn("parse job for unknown task, acking", zap.Uint("task_id", job.TaskID))
		return nil
	}
	if task.Status != model.StatusQueuedParse {
		return nil
	}

	ok, err := w.Store.Transition(ctx, task.ID, []model.TaskStatus{model.StatusQueuedParse}, model.StatusParsing, nil)
	if err != nil || !ok {
		return nil
	}

	blob, err := w.Blobs.Get(ctx, job.BlobRef)
	if err != nil {
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{Kind: store.TerminalFailure, ErrorText: "blob unavailable: " + err.Error()})
		return nil
	}
	defer blob.Close()

	body, err := io.ReadAll(blob)
	if err != nil {
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{Kind: store.TransientFailure, ErrorText: err.Error()})
		return nil
	}

	tag := job.ParserTag
	if tag == "" {
		tag = "raw-passthrough"
	}
	h, err := parserkind.Get(tag)
	if err != nil {
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{Kind: store.TerminalFailure, ErrorText: err.Error()})
		return nil
	}

	if _, err := h.Handle(body); err != nil {
		// A transient parse failure negatively acks to trigger asynq
		// redelivery, per the worker-side contract: this is the one path
		// where the task itself doesn't move (it stays in `parsing`) and
		// the message-level retry is what's relied on instead.
		return err
	}

	_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{Kind: store.ParseSuccess})
	return nil
}
