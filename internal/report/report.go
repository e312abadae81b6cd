// Package report renders change sets and daily-note captures into the text
// blocks posted to the notification webhook.
package report

import (
	"fmt"
	"strings"
	"time"

	"github.com/emunchies/Hoyo-Notifications/internal/diff"
	"github.com/emunchies/Hoyo-Notifications/internal/models"
	"github.com/emunchies/Hoyo-Notifications/internal/recovery"
)

// Header parameterizes the one rendering routine shared by the latest-diff
// and period-summary messages; only the wording differs between the two.
type Header struct {
	Mention  string
	Title    string
	Subtitle string
}

// DiffHeader builds the header for a "latest snapshot vs previous" report.
func DiffHeader(acct models.Account, from, to time.Time) Header {
	return Header{
		Mention:  acct.SlackMention,
		Title:    fmt.Sprintf("Genshin Character Updates — %s", acct.Name),
		Subtitle: fmt.Sprintf("Snapshot: %s → %s", stamp(from), stamp(to)),
	}
}

// PeriodHeader builds the header for a period summary report.
func PeriodHeader(acct models.Account, label string, from, to time.Time) Header {
	return Header{
		Mention:  acct.SlackMention,
		Title:    fmt.Sprintf("Genshin Character Summary — %s", acct.Name),
		Subtitle: fmt.Sprintf("Period: %s (%s → %s)", label, stamp(from), stamp(to)),
	}
}

// Render turns a change set into the final message text. An empty change set
// renders "" and the caller must suppress sending.
func Render(h Header, cs diff.ChangeSet) string {
	if cs.Empty() {
		return ""
	}

	var b strings.Builder
	if h.Mention != "" {
		b.WriteString(h.Mention)
		b.WriteString(" ")
	}
	b.WriteString("*")
	b.WriteString(h.Title)
	b.WriteString("*\n")
	if h.Subtitle != "" {
		b.WriteString("_")
		b.WriteString(h.Subtitle)
		b.WriteString("_\n")
	}
	b.WriteString("\n")

	for _, section := range cs.Sections() {
		fmt.Fprintf(&b, "*%s (%d)*\n", section.Title, len(section.Entries))
		for _, entry := range section.Entries {
			b.WriteString("• ")
			b.WriteString(entry)
			b.WriteString("\n")
		}
		b.WriteString("\n")
	}

	if cs.TotalLine != "" {
		b.WriteString("*Totals*\n")
		b.WriteString("• ")
		b.WriteString(cs.TotalLine)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}

// DailyNotes renders the periodic status message for one daily-note capture.
func DailyNotes(acct models.Account, n models.DailyNoteRecord, now time.Time) string {
	resinSecs, resinOK := recovery.Text(n.ResinRecoveryRaw).Resolve(now)
	realmSecs, realmOK := recovery.Text(n.RealmRecoveryRaw).Resolve(now)
	resinTimer := recovery.FormatTimer(resinSecs, resinOK, n.ResinCurrent, n.ResinMax)
	realmTimer := recovery.FormatTimer(realmSecs, realmOK, n.RealmCurrencyCurrent, n.RealmCurrencyMax)

	lines := make([]string, 0, 8)

	title := fmt.Sprintf("Genshin Daily Notes — %s", acct.Name)
	if acct.SlackMention != "" {
		title = acct.SlackMention + " " + title
	}
	lines = append(lines, title)

	if n.ResinMax > 0 {
		lines = append(lines, fmt.Sprintf("Resin: %d/%d (%s)", n.ResinCurrent, n.ResinMax, resinTimer))
	} else {
		lines = append(lines, fmt.Sprintf("Resin: unknown (%s)", resinTimer))
	}
	if eta, ok := recovery.FullAt(resinSecs, resinOK, acct.Timezone, now); ok {
		lines = append(lines, fmt.Sprintf("Resin full at: %s", eta))
	}

	lines = append(lines, fmt.Sprintf("Expeditions finished: %d/%d", n.ExpeditionsFinished, n.ExpeditionsTotal))

	if n.RealmCurrencyMax > 0 {
		lines = append(lines, fmt.Sprintf("Teapot currency: %d/%d (%s)", n.RealmCurrencyCurrent, n.RealmCurrencyMax, realmTimer))
	} else {
		lines = append(lines, fmt.Sprintf("Teapot currency: unknown (%s)", realmTimer))
	}

	commissions := fmt.Sprintf("Commissions: %d/%d", n.CommissionsCompleted, n.CommissionsTotal)
	if n.CommissionsClaimed {
		commissions += " (reward claimed)"
	} else {
		commissions += " (reward NOT claimed)"
	}
	lines = append(lines, commissions)

	return strings.Join(lines, "\n")
}

// Timers resolves and formats both resource timers; the store persists these
// next to the raw inputs.
func Timers(n models.DailyNoteRecord, now time.Time) (resin, realm string) {
	resinSecs, resinOK := recovery.Text(n.ResinRecoveryRaw).Resolve(now)
	realmSecs, realmOK := recovery.Text(n.RealmRecoveryRaw).Resolve(now)
	resin = recovery.FormatTimer(resinSecs, resinOK, n.ResinCurrent, n.ResinMax)
	realm = recovery.FormatTimer(realmSecs, realmOK, n.RealmCurrencyCurrent, n.RealmCurrencyMax)
	return resin, realm
}

func stamp(t time.Time) string {
	return t.UTC().Format("2006-01-02 15:04:05")
}
