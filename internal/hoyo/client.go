// Package hoyo talks to the HoYoLAB battle-chronicle API. All mapping from
// the loose upstream JSON into fixed record types happens here.
package hoyo

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"net/http"
	"time"

	"github.com/emunchies/Hoyo-Notifications/internal/models"
)

const (
	defaultBaseURL = "https://bbs-api-os.hoyolab.com"

	// Overseas dynamic-secret salt, shared by all HoYoLAB web clients.
	dsSalt = "6s25p5ox5y14umn1p61aqyyvbvvl3lrt"

	appVersion = "1.5.0"
	clientType = "5"
)

// Client is the shared battle-chronicle client. Per-account credentials are
// passed per call; the transport, breaker and logger are shared.
type Client struct {
	log        *slog.Logger
	httpClient *http.Client
	breaker    *CircuitBreaker
	baseURL    string
}

func NewClient(log *slog.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 20,
		MaxConnsPerHost:     50,
		IdleConnTimeout:     90 * time.Second,

		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,

		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,

		ForceAttemptHTTP2: true,
	}

	return &Client{
		log: log,
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   30 * time.Second,
		},
		breaker: NewCircuitBreaker(),
		baseURL: defaultBaseURL,
	}
}

// envelope is the standard HoYoLAB response wrapper. retcode 0 is success;
// anything else carries a human-readable message.
type envelope struct {
	Retcode int             `json:"retcode"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type dailyNoteData struct {
	CurrentResin         int    `json:"current_resin"`
	MaxResin             int    `json:"max_resin"`
	ResinRecoveryTime    string `json:"resin_recovery_time"`
	CurrentHomeCoin      int    `json:"current_home_coin"`
	MaxHomeCoin          int    `json:"max_home_coin"`
	HomeCoinRecoveryTime string `json:"home_coin_recovery_time"`
	FinishedTaskNum      int    `json:"finished_task_num"`
	TotalTaskNum         int    `json:"total_task_num"`
	IsExtraTaskRewardReceived bool `json:"is_extra_task_reward_received"`
	Expeditions          []struct {
		Status string `json:"status"`
	} `json:"expeditions"`
	MaxExpeditionNum int `json:"max_expedition_num"`
}

type characterListData struct {
	Avatars []struct {
		ID         int64  `json:"id"`
		Name       string `json:"name"`
		Element    string `json:"element"`
		Rarity     int    `json:"rarity"`
		Level      int    `json:"level"`
		Fetter     int    `json:"fetter"`
		ActivedConstellationNum int `json:"actived_constellation_num"`
		Weapon     *struct {
			ID         int64  `json:"id"`
			Name       string `json:"name"`
			Rarity     int    `json:"rarity"`
			Level      int    `json:"level"`
			TypeName   int    `json:"type"`
			AffixLevel int    `json:"affix_level"`
		} `json:"weapon"`
	} `json:"avatars"`
}

// FetchDailyNotes retrieves the account's real-time resource state.
func (c *Client) FetchDailyNotes(ctx context.Context, acct models.Account) (*models.DailyNoteRecord, error) {
	url := fmt.Sprintf("%s/game_record/genshin/api/dailyNote?role_id=%s&server=%s",
		c.baseURL, acct.UID, serverForUID(acct.UID))

	var data dailyNoteData
	if err := c.get(ctx, acct, url, &data); err != nil {
		return nil, err
	}

	finished := 0
	for _, e := range data.Expeditions {
		if e.Status == "Finished" {
			finished++
		}
	}

	return &models.DailyNoteRecord{
		ResinCurrent:         data.CurrentResin,
		ResinMax:             data.MaxResin,
		ResinRecoveryRaw:     data.ResinRecoveryTime,
		RealmCurrencyCurrent: data.CurrentHomeCoin,
		RealmCurrencyMax:     data.MaxHomeCoin,
		RealmRecoveryRaw:     data.HomeCoinRecoveryTime,
		ExpeditionsFinished:  finished,
		ExpeditionsTotal:     data.MaxExpeditionNum,
		CommissionsCompleted: data.FinishedTaskNum,
		CommissionsTotal:     data.TotalTaskNum,
		CommissionsClaimed:   data.IsExtraTaskRewardReceived,
	}, nil
}

// FetchCharacters retrieves the full roster with equipped weapons.
func (c *Client) FetchCharacters(ctx context.Context, acct models.Account) ([]models.CharacterSnapshotRow, error) {
	url := fmt.Sprintf("%s/game_record/genshin/api/character?role_id=%s&server=%s",
		c.baseURL, acct.UID, serverForUID(acct.UID))

	var data characterListData
	if err := c.get(ctx, acct, url, &data); err != nil {
		return nil, err
	}

	rows := make([]models.CharacterSnapshotRow, 0, len(data.Avatars))
	for _, a := range data.Avatars {
		row := models.CharacterSnapshotRow{
			CharacterID:   a.ID,
			CharacterName: a.Name,
			Element:       a.Element,
			Rarity:        a.Rarity,
			Level:         a.Level,
			Friendship:    a.Fetter,
			Constellation: a.ActivedConstellationNum,
		}
		if w := a.Weapon; w != nil {
			row.WeaponID = w.ID
			row.WeaponName = w.Name
			row.WeaponRarity = w.Rarity
			row.WeaponLevel = w.Level
			row.WeaponType = w.TypeName
			row.WeaponRefinement = w.AffixLevel
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, acct models.Account, url string, out any) error {
	if !c.breaker.Allow() {
		c.log.Warn("chronicle_request_refused", "breaker", c.breaker.StateString())
		return fmt.Errorf("circuit breaker %s, refusing request", c.breaker.StateString())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Cookie", fmt.Sprintf("ltuid_v2=%s; ltoken_v2=%s", acct.LtuidV2, acct.LtokenV2))
	req.Header.Set("DS", dynamicSecret(time.Now()))
	req.Header.Set("x-rpc-app_version", appVersion)
	req.Header.Set("x-rpc-client_type", clientType)
	req.Header.Set("x-rpc-language", "en-us")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.breaker.RecordFailure()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if env.Retcode != 0 {
		// An upstream business error (expired cookie, wrong UID) is not a
		// transport fault; it must not open the circuit.
		c.breaker.RecordSuccess()
		return fmt.Errorf("api error retcode=%d: %s", env.Retcode, env.Message)
	}

	if err := json.Unmarshal(env.Data, out); err != nil {
		c.breaker.RecordFailure()
		return fmt.Errorf("failed to decode payload: %w", err)
	}

	c.breaker.RecordSuccess()
	return nil
}

// dynamicSecret builds the "t,r,md5" DS header HoYoLAB requires.
func dynamicSecret(now time.Time) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	t := now.Unix()
	r := make([]byte, 6)
	for i := range r {
		r[i] = letters[rand.Intn(len(letters))]
	}
	h := md5.Sum([]byte(fmt.Sprintf("salt=%s&t=%d&r=%s", dsSalt, t, string(r))))
	return fmt.Sprintf("%d,%s,%x", t, string(r), h)
}

// serverForUID maps a Genshin UID to its overseas region code. The region
// digit is the first of the trailing nine; longer UIDs carry a prefix.
func serverForUID(uid string) string {
	if len(uid) < 9 {
		return "os_asia"
	}
	switch uid[len(uid)-9] {
	case '6':
		return "os_usa"
	case '7':
		return "os_euro"
	case '9':
		return "os_cht"
	default:
		return "os_asia"
	}
}
