// Package api exposes stored snapshots and on-demand reports over HTTP.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/emunchies/Hoyo-Notifications/internal/config"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
	"github.com/emunchies/Hoyo-Notifications/internal/security"
)

// Store is the read-side slice of the snapshot store the API serves from.
type Store interface {
	LatestSnapshotTime(ctx context.Context, account string) (time.Time, error)
	PreviousSnapshotTime(ctx context.Context, account string, before time.Time) (time.Time, error)
	DistinctTimesInWindow(ctx context.Context, account string, start, end time.Time) ([]time.Time, error)
	LoadCharacterBatch(ctx context.Context, account string, takenAt time.Time) (map[string]models.CharacterRecord, error)
}

type Server struct {
	log      *slog.Logger
	store    Store
	rdb      *redis.Client
	cfg      config.Config
	accounts []models.Account
	router   *gin.Engine
	limiter  *security.LimiterStore

	// runNow triggers one poll cycle; wired in main, nil when the runner
	// is not attached (headless API).
	runNow func()
}

func NewServer(log *slog.Logger, st Store, rdb *redis.Client, cfg config.Config, accounts []models.Account, runNow func()) *Server {
	s := &Server{
		log:      log,
		store:    st,
		rdb:      rdb,
		cfg:      cfg,
		accounts: accounts,
		router:   gin.New(),
		limiter:  security.NewLimiterStore(rate.Limit(1), 60, 10*time.Minute),
		runNow:   runNow,
	}

	gin.SetMode(gin.ReleaseMode)
	r := s.router
	r.Use(gin.Recovery())
	r.Use(s.corsMiddleware())
	r.Use(s.loggingMiddleware())
	r.Use(s.rateLimitMiddleware())

	v1 := r.Group("/api/v1")
	{
		v1.GET("/accounts", s.listAccounts)
		v1.GET("/accounts/:name/snapshots", s.listSnapshots)
		v1.GET("/accounts/:name/characters", s.latestCharacters)
		v1.GET("/accounts/:name/report", s.onDemandReport)

		admin := v1.Group("/admin")
		admin.Use(s.adminAuthMiddleware())
		{
			admin.POST("/run", s.triggerRun)
		}
	}

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) ctx(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), 10*time.Second)
}

// account resolves a path parameter against the configured accounts; only
// configured names are served, everything else is a 404.
func (s *Server) account(name string) (models.Account, bool) {
	for _, a := range s.accounts {
		if a.Name == name {
			return a, true
		}
	}
	return models.Account{}, false
}
