// Package quota enforces hourly and daily search budgets against the run
// history, so that paid follower and model APIs are not overrun.
package quota

import (
	"context"
	"time"
)

// Counter counts recorded runs created in [start, end).
type Counter interface {
	CountRunsWithin(ctx context.Context, start, end time.Time) (int, error)
}

// Limits are per-window maximums; zero means unlimited.
type Limits struct {
	MaxPerHour int
	MaxPerDay  int
}

// Allow reports whether another run fits in the current UTC hour and day.
func Allow(ctx context.Context, c Counter, l Limits, now time.Time) (bool, error) {
	if c == nil || (l.MaxPerHour <= 0 && l.MaxPerDay <= 0) {
		return true, nil
	}
	now = now.UTC()
	if l.MaxPerHour > 0 {
		startHour := now.Truncate(time.Hour)
		n, err := c.CountRunsWithin(ctx, startHour, startHour.Add(time.Hour))
		if err != nil {
			return false, err
		}
		if n >= l.MaxPerHour {
			return false, nil
		}
	}
	if l.MaxPerDay > 0 {
		startDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		n, err := c.CountRunsWithin(ctx, startDay, startDay.Add(24*time.Hour))
		if err != nil {
			return false, err
		}
		if n >= l.MaxPerDay {
			return false, nil
		}
	}
	return true, nil
}
