// Headless poller: the tracker loop without the HTTP API. Useful when the
// API runs elsewhere or is not wanted at all.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/emunchies/Hoyo-Notifications/internal/archive"
	"github.com/emunchies/Hoyo-Notifications/internal/config"
	"github.com/emunchies/Hoyo-Notifications/internal/db"
	"github.com/emunchies/Hoyo-Notifications/internal/hoyo"
	"github.com/emunchies/Hoyo-Notifications/internal/logging"
	"github.com/emunchies/Hoyo-Notifications/internal/notify"
	"github.com/emunchies/Hoyo-Notifications/internal/store"
	"github.com/emunchies/Hoyo-Notifications/internal/tracker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := logging.New(cfg.LogLevel)
	logger.Info("starting_poller", "service", "hoyo-notifications-poller")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accounts, err := config.LoadAccounts(logger, cfg.AccountsFile)
	if err != nil {
		logger.Error("accounts_load_failed", "file", cfg.AccountsFile, "error", err)
		os.Exit(1)
	}

	var dbConn *db.DB
	for i := 0; i < 5; i++ {
		dbConn, err = db.New(ctx, cfg.DBDSN)
		if err == nil {
			break
		}
		logger.Warn("db_connect_retry", "attempt", i+1, "error", err)
		time.Sleep(2 * time.Second)
	}
	if err != nil {
		logger.Error("db_connect_failed", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	if err := db.EnsureSchema(ctx, dbConn.Pool); err != nil {
		logger.Error("schema_bootstrap_failed", "error", err)
		os.Exit(1)
	}

	var rdb *goredis.Client
	if opt, err := goredis.ParseURL(cfg.RedisDSN); err != nil {
		logger.Warn("redis_dsn_invalid", "error", err)
	} else {
		rdb = goredis.NewClient(opt)
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Warn("redis_connect_failed", "error", err)
			rdb = nil
		}
	}

	var arch archive.Archiver = archive.Noop{}
	if cfg.ArchiveBucket != "" {
		s3arch, err := archive.NewS3(ctx, archive.Config{
			Endpoint: cfg.ArchiveEndpoint,
			Bucket:   cfg.ArchiveBucket,
			Region:   cfg.ArchiveRegion,
		})
		if err != nil {
			logger.Error("archive_init_failed", "error", err)
			os.Exit(1)
		}
		arch = s3arch
	}

	st := store.New(dbConn.Pool)
	client := hoyo.NewClient(logger)
	sink := notify.NewSlack(logger, cfg.SlackWebhookURL, rdb)

	runner := tracker.New(logger, st, client, sink, arch, accounts, cfg.Periods, cfg.PollInterval)
	go runner.Start(ctx)

	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	cancel()

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis_close_error", "error", err)
		}
	}

	dbConn.Close()
	logger.Info("poller_stopped")
}
