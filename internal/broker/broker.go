// Package broker adapts the Task Store / Dispatcher to hibiken/asynq,
// providing the three logical queues spec §4.3 requires over asynq's
// Redis-backed durable queue storage.
package broker

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/alpes214/crawler/internal/apperrors"
	"github.com/alpes214/crawler/internal/config"
)

const (
	QueueCrawl    = "crawl"
	QueueParse    = "parse"
	QueuePriority = "priority"

	TaskTypeCrawl = "crawl:job"
	TaskTypeParse = "parse:job"
)

// CrawlJob is the minimum context a crawler worker needs without
// re-querying the Task Store.
type CrawlJob struct {
	TaskID      uint   `json:"task_id"`
	URL         string `json:"url"`
	HostID      uint   `json:"host_id"`
	Priority    int    `json:"priority"`
	ProxyHandle string `json:"proxy_handle,omitempty"`
	Attempt     int    `json:"attempt"`
}

// ParseJob is the minimum context a parser worker needs after download.
type ParseJob struct {
	TaskID     uint   `json:"task_id"`
	HostID     uint   `json:"host_id"`
	BlobRef    string `json:"blob_ref"`
	ParserTag  string `json:"parser_tag"`
	Attempt    int    `json:"attempt"`
}

// Producer publishes CrawlJob/ParseJob messages, choosing the queue and
// TTL/retry options from config.
type Producer struct {
	client *asynq.Client
	ttl    config.TTLConfig
}

func NewProducer(client *asynq.Client, ttl config.TTLConfig) *Producer {
	return &Producer{client: client, ttl: ttl}
}

// PublishCrawlJob routes to priority_queue when priority ≤ 2, else
// crawl_queue, per spec §4.3's priority-routing rule.
func (p *Producer) PublishCrawlJob(ctx context.Context, job CrawlJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "marshal crawl job", err)
	}

	queue, ttl := routeCrawlJob(job.Priority, p.ttl)

	task := asynq.NewTask(TaskTypeCrawl, payload)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(queue),
		asynq.Retention(ttl),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.BrokerUnavailable, "publish crawl job", err)
	}
	return nil
}

// routeCrawlJob picks the queue and message TTL for a crawl job by
// priority, the priority-routing rule spec §4.3 names: priority ≤ 2 gets
// the priority queue and its shorter retention window.
func routeCrawlJob(priority int, ttl config.TTLConfig) (queue string, retention time.Duration) {
	if priority <= 2 {
		return QueuePriority, ttl.Priority
	}
	return QueueCrawl, ttl.Work
}

// PublishParseJob always routes to parse_queue.
func (p *Producer) PublishParseJob(ctx context.Context, job ParseJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return apperrors.Wrap(apperrors.Validation, "marshal parse job", err)
	}

	task := asynq.NewTask(TaskTypeParse, payload)
	_, err = p.client.EnqueueContext(ctx, task,
		asynq.Queue(QueueParse),
		asynq.Retention(p.ttl.Work),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return apperrors.Wrap(apperrors.BrokerUnavailable, "publish parse job", err)
	}
	return nil
}

// NewServer builds an asynq consumer server with per-consumer prefetch
// mapped onto Concurrency and the three logical queues weighted so
// priority work gets the largest share of worker attention, mirroring the
// teacher's critical/default/low weighting.
func NewServer(redisOpt asynq.RedisConnOpt, prefetch int) *asynq.Server {
	return asynq.NewServer(redisOpt, asynq.Config{
		Concurrency: prefetch,
		Queues: map[string]int{
			QueuePriority: 6,
			QueueCrawl:    3,
			QueueParse:    3,
		},
	})
}

// RedisOptFromAddr builds a RedisConnOpt from the addr/password/db triple
// stored in config, mirroring how asynq itself is configured everywhere
// else in the pack.
func RedisOptFromAddr(cfg config.RedisConfig) asynq.RedisConnOpt {
	return asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
}

// RawRedisClient builds a plain go-redis client against the same
// addr/password/db triple asynq itself connects with, for callers that need
// direct Redis access (internal/proxyalloc's optional distributed lock)
// rather than asynq's own wrapped connection.
func RawRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
