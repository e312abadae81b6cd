package models

import "time"

// Account is one tracked Genshin account. Cookie values are secrets and must
// never be logged raw (see logging.MaskToken).
type Account struct {
	Name         string `json:"name"`
	UID          string `json:"uid"`
	LtuidV2      string `json:"ltuid_v2"`
	LtokenV2     string `json:"ltoken_v2"`
	SlackMention string `json:"slack_mention,omitempty"`
	Timezone     string `json:"tz,omitempty"`
}

// CharacterRecord is the per-character stat bundle the diff engine compares.
// Numeric fields read back from storage default to 0 when NULL; an empty
// WeaponName means "no weapon".
type CharacterRecord struct {
	Level            int    `json:"level"`
	Friendship       int    `json:"friendship"`
	Constellation    int    `json:"constellation"`
	WeaponName       string `json:"weapon_name"`
	WeaponLevel      int    `json:"weapon_level"`
	WeaponRefinement int    `json:"weapon_refinement"`
}

// CharacterSnapshotRow is the full persisted character row, including
// metadata captured at fetch time and passed through untouched.
type CharacterSnapshotRow struct {
	CharacterID      int64  `json:"character_id"`
	CharacterName    string `json:"character_name"`
	Element          string `json:"element"`
	Rarity           int    `json:"rarity"`
	Level            int    `json:"level"`
	Friendship       int    `json:"friendship"`
	Constellation    int    `json:"constellation"`
	WeaponID         int64  `json:"weapon_id"`
	WeaponName       string `json:"weapon_name"`
	WeaponRarity     int    `json:"weapon_rarity"`
	WeaponLevel      int    `json:"weapon_level"`
	WeaponType       int    `json:"weapon_type"`
	WeaponRefinement int    `json:"weapon_refinement"`
}

// Record projects the row down to the fields the diff engine cares about.
func (r CharacterSnapshotRow) Record() CharacterRecord {
	return CharacterRecord{
		Level:            r.Level,
		Friendship:       r.Friendship,
		Constellation:    r.Constellation,
		WeaponName:       r.WeaponName,
		WeaponLevel:      r.WeaponLevel,
		WeaponRefinement: r.WeaponRefinement,
	}
}

// DailyNoteRecord is one capture of the account's regenerating resources.
// The recovery inputs keep whatever shape the upstream API used; resolving
// them into seconds is the recovery package's job.
type DailyNoteRecord struct {
	ResinCurrent         int    `json:"resin_current"`
	ResinMax             int    `json:"resin_max"`
	ResinRecoveryRaw     string `json:"resin_recovery_raw"`
	RealmCurrencyCurrent int    `json:"realm_currency_current"`
	RealmCurrencyMax     int    `json:"realm_currency_max"`
	RealmRecoveryRaw     string `json:"realm_recovery_raw"`
	ExpeditionsFinished  int    `json:"expeditions_finished"`
	ExpeditionsTotal     int    `json:"expeditions_total"`
	CommissionsCompleted int    `json:"commissions_completed"`
	CommissionsTotal     int    `json:"commissions_total"`
	CommissionsClaimed   bool   `json:"commissions_claimed"`
}

// Period is a named recurring reporting window.
type Period struct {
	Label    string `json:"label"`
	DaysBack int    `json:"days_back"`
}

// DefaultPeriods mirrors the four windows the service has always reported on.
func DefaultPeriods() []Period {
	return []Period{
		{Label: "Last 7 days", DaysBack: 7},
		{Label: "Last 30 days", DaysBack: 30},
		{Label: "Last 90 days", DaysBack: 90},
		{Label: "Last 365 days", DaysBack: 365},
	}
}

// PeriodRunRecord marks when a period was last evaluated for an account.
// LastRun only ever moves forward.
type PeriodRunRecord struct {
	AccountName string    `json:"account_name"`
	PeriodLabel string    `json:"period_label"`
	LastRun     time.Time `json:"last_run"`
}
