package recovery

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Value is a tagged representation of an upstream "time until ready" input.
// The battle-chronicle API has reported this as a bare seconds count, a
// numeric string, an ISO-8601 timestamp string, or an absolute timestamp,
// depending on endpoint version. Exactly one tag is set; the zero Value
// resolves to unknown.
type Value struct {
	kind    kind
	seconds int64
	text    string
	at      time.Time
}

type kind int

const (
	kindNone kind = iota
	kindSeconds
	kindText
	kindAbsolute
)

// Seconds wraps a raw seconds-remaining count.
func Seconds(n int64) Value { return Value{kind: kindSeconds, seconds: n} }

// Text wraps a string input: either a numeric seconds count or an ISO-8601
// timestamp ("Z" meaning UTC).
func Text(s string) Value { return Value{kind: kindText, text: s} }

// Absolute wraps an absolute "full at" timestamp. A timestamp without an
// explicit zone is treated as UTC.
func Absolute(t time.Time) Value { return Value{kind: kindAbsolute, at: t} }

// None is the explicit "no input" value.
func None() Value { return Value{} }

// Resolve normalizes the value into signed seconds from now. Positive means
// not yet ready, zero or negative means ready. ok is false when the input
// could not be interpreted; callers must not treat that as zero.
func (v Value) Resolve(now time.Time) (seconds int64, ok bool) {
	switch v.kind {
	case kindSeconds:
		return v.seconds, true
	case kindText:
		return resolveText(v.text, now)
	case kindAbsolute:
		return int64(v.at.Sub(now).Seconds()), true
	}
	return 0, false
}

func resolveText(s string, now time.Time) (int64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	// Integer seconds first: the common case on current API versions.
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		return n, true
	}
	// Then an absolute timestamp, in its own zone when given, UTC otherwise.
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		loc := time.UTC
		if at, err := time.ParseInLocation(layout, s, loc); err == nil {
			return int64(at.Sub(now).Seconds()), true
		}
	}
	return 0, false
}

// FormatTimer renders the "(in 3h12m)" style timer for the daily-notes
// message. A known current >= max wins over whatever the clock says; an
// unresolvable input renders "Unknown", never "Full". A whole-hour duration
// drops the minutes component ("in 3h"); minutes alone always show.
func FormatTimer(seconds int64, known bool, current, max int) string {
	if max > 0 && current >= max {
		return "Full"
	}
	if !known {
		return "Unknown"
	}
	if seconds <= 0 {
		return "Full"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	if hours > 0 && minutes > 0 {
		return fmt.Sprintf("in %dh%dm", hours, minutes)
	}
	if hours > 0 {
		return fmt.Sprintf("in %dh", hours)
	}
	return fmt.Sprintf("in %dm", minutes)
}

// FormatShort renders a compact duration like "3h 12m", "45m" or "ready",
// omitting zero components. Used where the "in ..." phrasing reads wrong.
func FormatShort(seconds int64, known bool) string {
	if !known {
		return "?"
	}
	if seconds <= 0 {
		return "ready"
	}
	hours := seconds / 3600
	minutes := (seconds % 3600) / 60
	parts := make([]string, 0, 2)
	if hours > 0 {
		parts = append(parts, fmt.Sprintf("%dh", hours))
	}
	if minutes > 0 {
		parts = append(parts, fmt.Sprintf("%dm", minutes))
	}
	if len(parts) == 0 {
		return "less than 1m"
	}
	return strings.Join(parts, " ")
}

// FullAt renders the local wall-clock time at which the resource will be
// full, in the account's timezone. Returns false when the duration is
// unknown or already elapsed. An unloadable timezone falls back to UTC.
func FullAt(seconds int64, known bool, tz string, now time.Time) (string, bool) {
	if !known || seconds <= 0 {
		return "", false
	}
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		loc = time.UTC
	}
	full := now.UTC().Add(time.Duration(seconds) * time.Second).In(loc)
	return full.Format("2006-01-02 15:04 MST"), true
}
