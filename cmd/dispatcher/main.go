// Command dispatcher runs the scheduler loop: reclaim leases, materialize
// recurrence, fetch due tasks, transition and publish them. Horizontally
// replicable; correctness relies on the Task Store's CAS, not on any
// coordination between replicas.
package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/broker"
	"github.com/alpes214/crawler/internal/config"
	"github.com/alpes214/crawler/internal/database"
	"github.com/alpes214/crawler/internal/dispatcher"
	"github.com/alpes214/crawler/internal/logging"
	"github.com/alpes214/crawler/internal/store"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Println(err)
		return
	}
	if err := logging.InitLogger(&cfg.Logger); err != nil {
		fmt.Println(err)
		return
	}

	db, err := database.InitDB(&cfg.Database)
	if err != nil {
		logging.Logger.Fatal("database init failed", zap.Error(err))
	}

	asynqClient := asynq.NewClient(broker.RedisOptFromAddr(cfg.Redis))
	defer asynqClient.Close()

	st := store.New(db, cfg.Backoff, cfg.StateDeadline, cfg.URLNormalize)
	producer := broker.NewProducer(asynqClient, cfg.TTL)

	tick, err := dispatcher.TickFunc(cfg.Dispatcher)
	if err != nil {
		logging.Logger.Fatal("invalid dispatcher cadence", zap.Error(err))
	}

	d := dispatcher.New(st, producer, logging.Logger, cfg.Dispatcher.BatchSize, cfg.Queue.MaxLength, tick)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logging.Logger.Info("dispatcher starting")
	d.Run(ctx)
	logging.Logger.Info("dispatcher stopped")
}
