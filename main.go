package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/emunchies/Hoyo-Notifications/internal/api"
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
	logger.Info("starting_service", "service", "hoyo-notifications", "http_addr", cfg.HTTPAddr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	accounts, err := config.LoadAccounts(logger, cfg.AccountsFile)
	if err != nil {
		logger.Error("accounts_load_failed", "file", cfg.AccountsFile, "error", err)
		os.Exit(1)
	}
	logger.Info("accounts_loaded", "count", len(accounts))

	// Connect to PostgreSQL (with retry)
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

	// Redis is optional: without it notification dedup and report caching
	// are disabled, everything else keeps working.
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
		logger.Info("archive_enabled", "bucket", cfg.ArchiveBucket)
	}

	st := store.New(dbConn.Pool)
	client := hoyo.NewClient(logger)
	sink := notify.NewSlack(logger, cfg.SlackWebhookURL, rdb)

	runner := tracker.New(logger, st, client, sink, arch, accounts, cfg.Periods, cfg.PollInterval)
	go runner.Start(ctx)

	srv := api.NewServer(logger, st, rdb, cfg, accounts, func() {
		runner.RunOnce(context.Background())
	})

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http_listen_failed", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("api_server_ready", "addr", cfg.HTTPAddr)

	// graceful shutdown
	stop := make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting_down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http_shutdown_failed", "error", err)
	} else {
		logger.Info("http_server_stopped")
	}

	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Warn("redis_close_error", "error", err)
		} else {
			logger.Info("redis_closed")
		}
	}

	dbConn.Close()
	logger.Info("db_closed")

	logger.Info("service_stopped")
}
