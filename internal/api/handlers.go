package api

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/emunchies/Hoyo-Notifications/internal/diff"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
	"github.com/emunchies/Hoyo-Notifications/internal/report"
	"github.com/emunchies/Hoyo-Notifications/internal/store"
)

// listAccounts returns the configured accounts without their cookie values.
func (s *Server) listAccounts(c *gin.Context) {
	out := make([]gin.H, 0, len(s.accounts))
	for _, a := range s.accounts {
		out = append(out, gin.H{
			"name":          a.Name,
			"uid":           a.UID,
			"slack_mention": a.SlackMention,
			"tz":            a.Timezone,
		})
	}
	c.JSON(http.StatusOK, gin.H{"accounts": out})
}

func (s *Server) listSnapshots(c *gin.Context) {
	acct, ok := s.account(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "unknown_account", "message": "account is not configured"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	times, err := s.store.DistinctTimesInWindow(ctx, acct.Name, time.Unix(0, 0), time.Now().UTC())
	if err != nil {
		s.log.Error("snapshot_list_failed", "account", acct.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "failed to list snapshots"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": acct.Name, "snapshots": times, "count": len(times)})
}

func (s *Server) latestCharacters(c *gin.Context) {
	acct, ok := s.account(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "unknown_account", "message": "account is not configured"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	latest, err := s.store.LatestSnapshotTime(ctx, acct.Name)
	if errors.Is(err, store.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "no_snapshot", "message": "no snapshot recorded yet"}})
		return
	}
	if err != nil {
		s.log.Error("latest_snapshot_failed", "account", acct.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "failed to load snapshot"}})
		return
	}

	batch, err := s.store.LoadCharacterBatch(ctx, acct.Name, latest)
	if err != nil {
		s.log.Error("batch_load_failed", "account", acct.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "failed to load characters"}})
		return
	}

	c.JSON(http.StatusOK, gin.H{"account": acct.Name, "taken_at": latest, "characters": batch})
}

// onDemandReport renders the latest-vs-previous diff without posting it.
// The rendered text is cached briefly so dashboard refreshes stay cheap.
func (s *Server) onDemandReport(c *gin.Context) {
	acct, ok := s.account(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "unknown_account", "message": "account is not configured"}})
		return
	}

	ctx, cancel := s.ctx(c)
	defer cancel()

	cacheKey := fmt.Sprintf("report:%s", acct.Name)
	if s.rdb != nil {
		if cached, err := s.rdb.Get(ctx, cacheKey).Result(); err == nil && cached != "" {
			c.Header("X-Cache", "HIT")
			c.JSON(http.StatusOK, gin.H{"account": acct.Name, "report": cached})
			return
		}
	}

	latest, err := s.store.LatestSnapshotTime(ctx, acct.Name)
	if errors.Is(err, store.ErrNoSnapshot) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "no_snapshot", "message": "no snapshot recorded yet"}})
		return
	}
	if err != nil {
		s.log.Error("latest_snapshot_failed", "account", acct.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "failed to load snapshot"}})
		return
	}

	prev, err := s.store.PreviousSnapshotTime(ctx, acct.Name, latest)
	if errors.Is(err, store.ErrNoSnapshot) {
		c.JSON(http.StatusOK, gin.H{"account": acct.Name, "report": "", "message": "only one snapshot recorded"})
		return
	}
	if err != nil {
		s.log.Error("previous_snapshot_failed", "account", acct.Name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "failed to load snapshot"}})
		return
	}

	prevBatch, err := s.store.LoadCharacterBatch(ctx, acct.Name, prev)
	if err == nil {
		var currBatch map[string]models.CharacterRecord
		currBatch, err = s.store.LoadCharacterBatch(ctx, acct.Name, latest)
		if err == nil {
			text := report.Render(report.DiffHeader(acct, prev, latest), diff.Compare(prevBatch, currBatch))
			if s.rdb != nil && text != "" {
				s.rdb.Set(ctx, cacheKey, text, time.Minute)
			}
			c.JSON(http.StatusOK, gin.H{"account": acct.Name, "report": text})
			return
		}
	}

	s.log.Error("report_build_failed", "account", acct.Name, "error", err)
	c.JSON(http.StatusInternalServerError, gin.H{"error": gin.H{"code": "storage_error", "message": "failed to build report"}})
}

func (s *Server) triggerRun(c *gin.Context) {
	if s.runNow == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": gin.H{"code": "runner_detached", "message": "poll runner is not attached to this process"}})
		return
	}
	go s.runNow()
	c.JSON(http.StatusAccepted, gin.H{"status": "started"})
}
