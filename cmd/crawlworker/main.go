// Command crawlworker consumes CrawlJob messages: the reference
// implementation of the crawler worker-side contract from spec §4.4.
package main

import (
	"fmt"
	"log"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/blobstore"
	"github.com/alpes214/crawler/internal/broker"
	"github.com/alpes214/crawler/internal/config"
	"github.com/alpes214/crawler/internal/database"
	"github.com/alpes214/crawler/internal/logging"
	"github.com/alpes214/crawler/internal/proxyalloc"
	"github.com/alpes214/crawler/internal/store"
	"github.com/alpes214/crawler/internal/worker"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	if err := logging.InitLogger(&cfg.Logger); err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logging.Logger.Fatal("database init failed", zap.Error(err))
	}

	redisOpt := broker.RedisOptFromAddr(cfg.Redis)
	asynqClient := asynq.NewClient(redisOpt)
	defer asynqClient.Close()

	st := store.New(db, cfg.Backoff, cfg.StateDeadline, cfg.URLNormalize)
	alloc := proxyalloc.New(db, cfg.Proxy, broker.RawRedisClient(cfg.Redis))
	producer := broker.NewProducer(asynqClient, cfg.TTL)

	blobs, err := blobstore.NewMinioStore(cfg.Minio)
	if err != nil {
		logging.Logger.Fatal("blob store init failed", zap.Error(err))
	}

	cw := worker.NewCrawlWorker(st, alloc, blobs, producer, logging.Logger)

	srv := broker.NewServer(redisOpt, cfg.Broker.Prefetch)
	mux := asynq.NewServeMux()
	mux.HandleFunc(broker.TaskTypeCrawl, cw.HandleCrawlJob)

	logging.Logger.Info("crawl worker started, waiting for jobs")
	if err := srv.Run(mux); err != nil {
		logging.Logger.Fatal("crawl worker stopped", zap.Error(err))
	}
	fmt.Println("crawl worker exited")
}
