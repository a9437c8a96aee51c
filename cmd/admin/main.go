// Command admin serves the control-plane HTTP surface: submit, pause,
// resume, cancel, restart, reprioritize.
package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/alpes214/crawler/internal/api/router"
	"github.com/alpes214/crawler/internal/broker"
	"github.com/alpes214/crawler/internal/config"
	"github.com/alpes214/crawler/internal/controlplane"
	"github.com/alpes214/crawler/internal/database"
	"github.com/alpes214/crawler/internal/logging"
	"github.com/alpes214/crawler/internal/proxyalloc"
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

	st := store.New(db, cfg.Backoff, cfg.StateDeadline, cfg.URLNormalize)
	redisClient := broker.RawRedisClient(cfg.Redis)
	alloc := proxyalloc.New(db, cfg.Proxy, redisClient)
	cp := controlplane.New(st)

	r := router.SetupRouter(db, st, cp, alloc)
	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	logging.Logger.Info("admin server starting", zap.String("addr", addr))

	if err := r.Run(addr); err != nil {
		logging.Logger.Error("admin server stopped", zap.Error(err))
	}
}
