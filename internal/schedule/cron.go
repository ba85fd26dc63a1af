// Package schedule parses the 5-field cron expressions stored on jobs and
// computes their fire times.
package schedule

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

var ErrInvalidCron = errors.New("invalid cron expression")

// parser accepts minute, hour, day of month, month and day of week only.
// Descriptors such as @daily and a seconds field are rejected.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Parse turns expr into a recurring schedule.
func Parse(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return nil, fmt.Errorf("%w: empty expression", ErrInvalidCron)
	}
	if fields := strings.Fields(expr); len(fields) != 5 {
		return nil, fmt.Errorf("%w: %q has %d fields, want 5", ErrInvalidCron, expr, len(fields))
	}
	sch, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidCron, expr, err)
	}
	// Next reports the zero time for calendars with no matching date, such
	// as February 30th.
	if sch.Next(time.Now()).IsZero() {
		return nil, fmt.Errorf("%w: %q never fires", ErrInvalidCron, expr)
	}
	return sch, nil
}

func Validate(expr string) error {
	_, err := Parse(expr)
	return err
}

// NextRun returns the first fire time of expr strictly after ref, evaluated
// in ref's location.
func NextRun(expr string, ref time.Time) (time.Time, error) {
	sch, err := Parse(expr)
	if err != nil {
		return time.Time{}, err
	}
	next := sch.Next(ref)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("%w: %q has no fire time after %s", ErrInvalidCron, expr, ref.Format(time.RFC3339))
	}
	return next, nil
}
