package recovery

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestResolve(t *testing.T) {
	tests := []struct {
		name     string
		value    Value
		wantSecs int64
		wantOK   bool
	}{
		{"raw seconds", Seconds(3600), 3600, true},
		{"zero seconds", Seconds(0), 0, true},
		{"negative seconds", Seconds(-120), -120, true},
		{"numeric string", Text("3600"), 3600, true},
		{"numeric string with spaces", Text("  7200 "), 7200, true},
		{"iso string one hour ahead", Text("2025-06-01T13:00:00Z"), 3600, true},
		{"iso string with offset", Text("2025-06-01T14:00:00+01:00"), 3600, true},
		{"iso string no zone treated as utc", Text("2025-06-01T11:00:00"), -3600, true},
		{"absolute timestamp", Absolute(testNow.Add(90 * time.Minute)), 5400, true},
		{"absolute in the past", Absolute(testNow.Add(-time.Hour)), -3600, true},
		{"garbage", Text("invalid"), 0, false},
		{"empty string", Text(""), 0, false},
		{"none", None(), 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			secs, ok := tt.value.Resolve(testNow)
			if ok != tt.wantOK {
				t.Fatalf("Resolve() ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && secs != tt.wantSecs {
				t.Errorf("Resolve() = %d, want %d", secs, tt.wantSecs)
			}
		})
	}
}

func TestFormatTimer(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int64
		known    bool
		current  int
		max      int
		expected string
	}{
		{"full by counts regardless of seconds", 9999, true, 160, 160, "Full"},
		{"over max", 0, true, 170, 160, "Full"},
		{"unknown seconds", 0, false, 10, 160, "Unknown"},
		{"zero seconds", 0, true, 10, 160, "Full"},
		{"negative seconds", -50, true, 10, 160, "Full"},
		{"hours and minutes", 2*3600 + 12*60, true, 10, 160, "in 2h12m"},
		{"whole hours omit minutes", 3 * 3600, true, 10, 160, "in 3h"},
		{"whole hours with seconds remainder", 3*3600 + 59, true, 10, 160, "in 3h"},
		{"minutes only", 45 * 60, true, 10, 160, "in 45m"},
		{"zero minutes when under an hour", 59, true, 10, 160, "in 0m"},
		{"unknown counts still formats", 1800, true, 0, 0, "in 30m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatTimer(tt.seconds, tt.known, tt.current, tt.max)
			if got != tt.expected {
				t.Errorf("FormatTimer() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFormatShort(t *testing.T) {
	tests := []struct {
		name     string
		seconds  int64
		known    bool
		expected string
	}{
		{"unknown", 0, false, "?"},
		{"ready", 0, true, "ready"},
		{"negative is ready", -10, true, "ready"},
		{"hours and minutes", 3*3600 + 12*60, true, "3h 12m"},
		{"whole hours omit minutes", 2 * 3600, true, "2h"},
		{"minutes only", 45 * 60, true, "45m"},
		{"under a minute", 30, true, "less than 1m"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FormatShort(tt.seconds, tt.known)
			if got != tt.expected {
				t.Errorf("FormatShort() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestFullAt(t *testing.T) {
	got, ok := FullAt(3600, true, "UTC", testNow)
	if !ok {
		t.Fatal("FullAt() not ok for a positive duration")
	}
	if got != "2025-06-01 13:00 UTC" {
		t.Errorf("FullAt() = %q", got)
	}

	if _, ok := FullAt(0, true, "UTC", testNow); ok {
		t.Error("FullAt() should not render for elapsed durations")
	}
	if _, ok := FullAt(3600, false, "UTC", testNow); ok {
		t.Error("FullAt() should not render for unknown durations")
	}

	// A bad timezone falls back to UTC instead of failing.
	got, ok = FullAt(3600, true, "Not/AZone", testNow)
	if !ok || got != "2025-06-01 13:00 UTC" {
		t.Errorf("FullAt() with bad tz = %q, ok=%v", got, ok)
	}
}
