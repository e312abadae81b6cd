// Package notify delivers rendered reports to a Slack incoming webhook.
// Delivery is fire-and-forget: failures are logged and the message dropped.
package notify

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// dedupTTL bounds how long an identical payload is considered a duplicate.
// Long enough to cover a restart mid-cycle, short enough that a genuinely
// unchanged daily-notes message still goes out a few times a day.
const dedupTTL = 2 * time.Hour

type Slack struct {
	log     *slog.Logger
	url     string
	client  *http.Client
	limiter *rate.Limiter
	rdb     *redis.Client
}

// NewSlack builds the sink. rdb may be nil; dedup is then disabled.
func NewSlack(log *slog.Logger, webhookURL string, rdb *redis.Client) *Slack {
	return &Slack{
		log:     log,
		url:     webhookURL,
		client:  &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(1), 5),
		rdb:     rdb,
	}
}

// Send posts one text payload. Returns whether the message was delivered;
// it never returns an error, per the fire-and-forget contract. Empty text
// is treated as a suppressed message and reported as delivered.
func (s *Slack) Send(ctx context.Context, text string) bool {
	if text == "" {
		return true
	}
	if s.url == "" {
		s.log.Debug("webhook_not_configured")
		return false
	}

	if s.isDuplicate(ctx, text) {
		s.log.Debug("webhook_duplicate_suppressed")
		return true
	}

	if err := s.limiter.Wait(ctx); err != nil {
		s.log.Warn("webhook_rate_wait_aborted", "error", err)
		return false
	}

	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		s.log.Warn("webhook_marshal_failed", "error", err)
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		s.log.Warn("webhook_request_failed", "error", err)
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Warn("webhook_post_failed", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		s.log.Warn("webhook_rejected", "status", resp.StatusCode, "body", string(body))
		return false
	}

	return true
}

// isDuplicate marks the payload as seen and reports whether it already was.
// Redis being down never blocks delivery.
func (s *Slack) isDuplicate(ctx context.Context, text string) bool {
	if s.rdb == nil {
		return false
	}
	sum := sha256.Sum256([]byte(text))
	key := "notify:dedup:" + hex.EncodeToString(sum[:])
	set, err := s.rdb.SetNX(ctx, key, "1", dedupTTL).Result()
	if err != nil {
		s.log.Debug("dedup_check_failed", "error", err)
		return false
	}
	return !set
}
