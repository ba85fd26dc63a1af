package utils

import (
	"testing"
	"time"
	"unicode/utf8"
)

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want string
	}{
		{name: "zero", d: 0, want: "0.00 seconds"},
		{name: "sub second", d: 1234 * time.Millisecond, want: "1.23 seconds"},
		{name: "minutes", d: 2*time.Minute + 500*time.Millisecond, want: "120.50 seconds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatDuration(tt.d); got != tt.want {
				t.Errorf("FormatDuration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTruncateText(t *testing.T) {
	tests := []struct {
		name string
		text string
		max  int
		want string
	}{
		{name: "short", text: "ok", max: 5, want: "ok"},
		{name: "exact", text: "hello", max: 5, want: "hello"},
		{name: "cut", text: "hello world", max: 5, want: "hello..."},
		{name: "cut inside two byte rune", text: "aé", max: 2, want: "a..."},
		{name: "cut inside three byte rune", text: "ok€€", max: 4, want: "ok..."},
		{name: "cut after rune", text: "é€", max: 2, want: "é..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TruncateText(tt.text, tt.max)
			if got != tt.want {
				t.Errorf("TruncateText() = %q, want %q", got, tt.want)
			}
			if !utf8.ValidString(got) {
				t.Errorf("TruncateText() = %q is not valid UTF-8", got)
			}
		})
	}
}

func TestSanitizeText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{name: "clean", text: "done: 3 rows", want: "done: 3 rows"},
		{name: "nul bytes", text: "a\x00b\x00", want: "ab"},
		{name: "invalid sequence", text: "ok\xc3", want: "ok\uFFFD"},
		{name: "multibyte kept", text: "résumé", want: "résumé"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeText(tt.text); got != tt.want {
				t.Errorf("SanitizeText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadLocation(t *testing.T) {
	for _, name := range []string{"", "Local"} {
		loc, err := LoadLocation(name)
		if err != nil || loc != time.Local {
			t.Errorf("LoadLocation(%q) = %v, %v, want Local", name, loc, err)
		}
	}
	if _, err := LoadLocation("Not/AZone"); err == nil {
		t.Error("LoadLocation() expected error for unknown zone")
	}
}

func TestPrettyDate(t *testing.T) {
	if got := PrettyDate(nil); got != "-" {
		t.Errorf("PrettyDate(nil) = %v, want -", got)
	}
	at := time.Date(2024, 1, 2, 3, 4, 0, 0, time.UTC)
	if got := PrettyDate(&at); got != "02 Jan 2024 03:04 UTC" {
		t.Errorf("PrettyDate() = %v", got)
	}
}
