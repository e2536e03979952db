// cmd/historian/main.go drains the queued lobby audit records into Postgres.
// It is only needed when the server runs with AUDIT_MODE=queue.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/lobbychat/internal/cache"
	"github.com/jason-s-yu/lobbychat/internal/config"
	"github.com/jason-s-yu/lobbychat/internal/database"
	"github.com/jason-s-yu/lobbychat/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("invalid configuration")
	}
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.WithError(err).Fatal("database unavailable")
	}
	defer pool.Close()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.WithError(err).Fatal("redis unavailable")
	}
	defer rdb.Close()

	svc := historian.New(
		cache.NewEventQueue(rdb, cfg.AuditQueueName),
		database.NewStore(pool),
		historian.Options{
			BatchSize:  cfg.HistorianBatchSize,
			FlushDelay: time.Duration(cfg.HistorianFlushMs) * time.Millisecond,
		},
		logger,
	)
	if err := svc.Run(ctx); err != nil {
		logger.WithError(err).Error("historian exited")
	}
	logger.Info("historian shutdown complete")
}
