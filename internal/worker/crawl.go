// Package worker holds the reference crawler/parser worker-side
// implementations of the contract spec §4.4 describes for completeness.
// Real HTML parsing and product extraction stay external; these handlers
// exist so the Dispatcher → Broker → Worker → Task Store loop can be
// exercised end to end.
package worker

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/blobstore"
	"github.com/alpes214/crawler/internal/broker"
	"github.com/alpes214/crawler/internal/model"
	"github.com/alpes214/crawler/internal/proxyalloc"
	"github.com/alpes214/crawler/internal/robots"
	"github.com/alpes214/crawler/internal/store"
)

// CrawlWorker consumes CrawlJob messages: re-checks status, acquires a
// proxy, performs the HTTP GET, writes the blob, transitions the task, and
// publishes a ParseJob.
type CrawlWorker struct {
	Store    *store.Store
	Alloc    *proxyalloc.Allocator
	Blobs    blobstore.BlobStore
	Producer *broker.Producer
	Log      *zap.Logger
	HTTP     *http.Client

	// limiters enforces Host.MinSpacingSec per host; built lazily since
	// hosts aren't known until the first job for them arrives.
	limiters map[uint]*rate.Limiter
}

func NewCrawlWorker(st *store.Store, alloc *proxyalloc.Allocator, blobs blobstore.BlobStore, producer *broker.Producer, log *zap.Logger) *CrawlWorker {
	return &CrawlWorker{
		Store:    st,
		Alloc:    alloc,
		Blobs:    blobs,
		Producer: producer,
		Log:      log,
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		limiters: make(map[uint]*rate.Limiter),
	}
}

// HandleCrawlJob implements asynq.HandlerFunc's signature for TaskTypeCrawl.
func (w *CrawlWorker) HandleCrawlJob(ctx context.Context, t *asynq.Task) error {
	var job broker.CrawlJob
	if err := decodePayload(t.Payload(), &job); err != nil {
		return err // malformed payload: let asynq's own retry/DLQ handle it
	}

	task, err := w.Store.GetByID(ctx, job.TaskID)
	if err != nil {
		w.Log.Warn("crawl job for unknown task, acking", zap.Uint("task_id", job.TaskID))
		return nil
	}
	if task.Status != model.StatusQueued {
		// pause/cancel race: the task moved on since this message was
		// published. Ack without doing work.
		return nil
	}

	startedAt := time.Now()
	ok, err := w.Store.Transition(ctx, task.ID, []model.TaskStatus{model.StatusQueued}, model.StatusCrawling,
		map[string]interface{}{"started_at": startedAt})
	if err != nil || !ok {
		return nil
	}

	host, err := w.Store.GetHost(ctx, job.HostID)
	if err != nil {
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{
			Kind:      store.TransientFailure,
			ErrorText: err.Error(),
		})
		return nil
	}

	if host.MaxInFlight > 0 {
		inFlight, cerr := w.Store.CountInFlightForHost(ctx, job.HostID)
		if cerr == nil && inFlight > int64(host.MaxInFlight) {
			delay := time.Now().Add(time.Duration(minSpacing(host.MinSpacingSec)) * time.Second)
			_, _ = w.Store.Transition(ctx, task.ID, []model.TaskStatus{model.StatusCrawling}, model.StatusPending,
				map[string]interface{}{"scheduled_at": delay})
			return nil
		}
	}

	if disallowed := w.robotsDisallow(host, task.URL); disallowed {
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{
			Kind:      store.TerminalFailure,
			ErrorText: "disallowed by robots.txt",
		})
		return nil
	}

	_ = w.limiterFor(job.HostID, host.MinSpacingSec).Wait(ctx)

	handle, err := w.Alloc.Acquire(ctx, job.HostID, time.Now())
	if err != nil {
		// no_proxy_available is retryable: return to pending with a short
		// delay rather than failing the task.
		if apperrors.Is(err, apperrors.NoProxyAvailable) {
			delay := time.Now().Add(5 * time.Second)
			_, _ = w.Store.Transition(ctx, task.ID, []model.TaskStatus{model.StatusCrawling}, model.StatusPending,
				map[string]interface{}{"scheduled_at": delay})
			return nil
		}
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{
			Kind:      store.TransientFailure,
			ErrorText: err.Error(),
		})
		return nil
	}

	start := time.Now()
	body, httpCode, fetchErr := w.fetch(ctx, task.URL)
	latency := time.Since(start).Milliseconds()

	releaseOutcome := proxyalloc.Outcome{Success: fetchErr == nil, LatencyMs: latency}
	if fetchErr != nil {
		releaseOutcome.Reason = fetchErr.Error()
	}
	_ = w.Alloc.Release(ctx, handle, releaseOutcome)

	if fetchErr != nil {
		outcome := store.AttemptOutcome{ErrorText: fetchErr.Error()}
		if task.RetryCount+1 > task.MaxRetries {
			outcome.Kind = store.TerminalFailure
		} else {
			outcome.Kind = store.TransientFailure
		}
		_ = w.Store.RecordAttempt(ctx, task.ID, outcome)
		return nil
	}

	key := blobstore.Key(task.ID, task.RetryCount)
	if err := w.Blobs.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "text/html"); err != nil && !apperrors.Is(err, apperrors.Duplicate) {
		_ = w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{Kind: store.TransientFailure, ErrorText: err.Error()})
		return nil
	}

	if err := w.Store.RecordAttempt(ctx, task.ID, store.AttemptOutcome{
		Kind:      store.DownloadSuccess,
		BlobRef:   key,
		HTTPCode:  httpCode,
		LatencyMs: latency,
		ProxyID:   &handle.ProxyID,
	}); err != nil {
		return nil
	}

	if _, err := w.Store.Transition(ctx, task.ID, []model.TaskStatus{model.StatusDownloaded}, model.StatusQueuedParse, nil); err == nil {
		_ = w.Producer.PublishParseJob(ctx, broker.ParseJob{
			TaskID:    task.ID,
			HostID:    task.HostID,
			BlobRef:   key,
			ParserTag: host.ParserTag,
			Attempt:   task.RetryCount,
		})
	}

	return nil
}

// limiterFor lazily builds a per-host rate.Limiter enforcing
// Host.MinSpacingSec, the golang.org/x/time/rate equivalent of the
// per-host minimum request spacing spec §3 names.
func (w *CrawlWorker) limiterFor(hostID uint, minSpacingSec int) *rate.Limiter {
	if l, ok := w.limiters[hostID]; ok {
		return l
	}
	l := rate.NewLimiter(rate.Every(time.Duration(minSpacing(minSpacingSec))*time.Second), 1)
	w.limiters[hostID] = l
	return l
}

func minSpacing(sec int) int {
	if sec <= 0 {
		return 1
	}
	return sec
}

// robotsDisallow parses a host's cached robots.txt text and reports whether
// it forbids the host's user agent from fetching rawURL. A parse failure or
// missing policy fails open, matching robots.txt's own convention that a
// missing file grants full access.
func (w *CrawlWorker) robotsDisallow(host *model.Host, rawURL string) bool {
	if host.RobotsPolicy == "" {
		return false
	}
	policy, err := robots.Parse(host.RobotsPolicy)
	if err != nil {
		w.Log.Warn("robots policy parse failed, fetching anyway", zap.Uint("host_id", host.ID), zap.Error(err))
		return false
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	agent := host.UserAgent
	if agent == "" {
		agent = "*"
	}
	return !policy.Allowed(agent, parsed.Path)
}

func (w *CrawlWorker) fetch(ctx context.Context, url string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}
	resp, err := w.HTTP.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
