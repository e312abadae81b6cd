package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/emunchies/Hoyo-Notifications/internal/logging"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
)

type Config struct {
	DBDSN    string
	HTTPAddr string
	LogLevel string
	RedisDSN string

	// raw secrets kept in-memory only; never log these
	SlackWebhookURL string
	AdminSecretKey  string

	AccountsFile string
	PollInterval time.Duration
	Periods      []models.Period

	CORSOrigins []string

	ArchiveEndpoint string
	ArchiveBucket   string
	ArchiveRegion   string
}

func Load() (Config, error) {
	cfg := Config{
		DBDSN:           os.Getenv("DB_DSN"),
		HTTPAddr:        getenvDefault("HTTP_ADDR", ":8080"),
		LogLevel:        getenvDefault("LOG_LEVEL", "info"),
		RedisDSN:        getenvDefault("REDIS_DSN", "redis://localhost:6379/0"),
		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
		AdminSecretKey:  getenvDefault("ADMIN_SECRET_KEY", ""),
		AccountsFile:    getenvDefault("ACCOUNTS_FILE", "accounts.json"),
		ArchiveEndpoint: getenvDefault("ARCHIVE_ENDPOINT", ""),
		ArchiveBucket:   getenvDefault("ARCHIVE_BUCKET", ""),
		ArchiveRegion:   getenvDefault("ARCHIVE_REGION", "auto"),
	}

	if cfg.DBDSN == "" {
		return Config{}, errors.New("missing DB_DSN")
	}
	if cfg.SlackWebhookURL == "" {
		return Config{}, errors.New("missing SLACK_WEBHOOK_URL")
	}

	intervalRaw := getenvDefault("POLL_INTERVAL_SECONDS", "3600")
	seconds, err := strconv.Atoi(intervalRaw)
	if err != nil || seconds <= 0 {
		return Config{}, fmt.Errorf("POLL_INTERVAL_SECONDS must be a positive integer, got: %s", intervalRaw)
	}
	cfg.PollInterval = time.Duration(seconds) * time.Second

	periods, err := parsePeriods(os.Getenv("PERIODS"))
	if err != nil {
		return Config{}, err
	}
	cfg.Periods = periods

	corsOrigins := getenvDefault("CORS_ORIGINS", "")
	if corsOrigins != "" {
		cfg.CORSOrigins = strings.Split(corsOrigins, ",")
		for i := range cfg.CORSOrigins {
			cfg.CORSOrigins[i] = strings.TrimSpace(cfg.CORSOrigins[i])
		}
	} else {
		cfg.CORSOrigins = []string{"http://localhost:3000"} // default
	}

	return cfg, nil
}

// parsePeriods reads the "label:days,label:days" override. Empty input keeps
// the default windows.
func parsePeriods(raw string) ([]models.Period, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return models.DefaultPeriods(), nil
	}

	var periods []models.Period
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		idx := strings.LastIndex(part, ":")
		if idx <= 0 || idx == len(part)-1 {
			return nil, fmt.Errorf("PERIODS entry %q must look like label:days", part)
		}
		label := strings.TrimSpace(part[:idx])
		days, err := strconv.Atoi(strings.TrimSpace(part[idx+1:]))
		if err != nil || days <= 0 {
			return nil, fmt.Errorf("PERIODS entry %q has an invalid day count", part)
		}
		periods = append(periods, models.Period{Label: label, DaysBack: days})
	}
	if len(periods) == 0 {
		return nil, errors.New("PERIODS contained no valid entries")
	}
	return periods, nil
}

// LoadAccounts reads the accounts file: a JSON array of accounts, or a single
// account object. Entries missing required fields are skipped with a warning;
// zero valid accounts is an error.
func LoadAccounts(log *slog.Logger, path string) ([]models.Account, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read accounts file: %w", err)
	}

	var raw []models.Account
	if err := json.Unmarshal(data, &raw); err != nil {
		var single models.Account
		if err2 := json.Unmarshal(data, &single); err2 != nil {
			return nil, fmt.Errorf("parse accounts file: %w", err)
		}
		raw = []models.Account{single}
	}

	accounts := make([]models.Account, 0, len(raw))
	for i, a := range raw {
		if a.Name == "" || a.UID == "" || a.LtuidV2 == "" || a.LtokenV2 == "" {
			log.Warn("account_entry_skipped",
				"index", i,
				"name", a.Name,
				"reason", "missing name, uid, ltuid_v2 or ltoken_v2",
			)
			continue
		}
		log.Debug("account_loaded",
			"name", a.Name,
			"uid", a.UID,
			"ltoken", logging.MaskToken(a.LtokenV2),
		)
		accounts = append(accounts, a)
	}
	if len(accounts) == 0 {
		return nil, errors.New("accounts file contains no valid accounts")
	}
	return accounts, nil
}

func getenvDefault(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
