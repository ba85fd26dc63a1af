package utils

import (
	"fmt"
	"time"
)

// LoadLocation resolves a configured time zone name. An empty name or "Local"
// keeps the process local time zone.
func LoadLocation(name string) (*time.Location, error) {
	if name == "" || name == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", name, err)
	}
	return loc, nil
}

func PrettyDate(date *time.Time) string {
	if date == nil || date.IsZero() {
		return "-"
	}
	return date.Format("02 Jan 2006 15:04 MST")
}

// FormatDuration renders elapsed seconds with two decimals.
func FormatDuration(d time.Duration) string {
	return fmt.Sprintf("%.2f seconds", d.Seconds())
}
