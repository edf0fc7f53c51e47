// Package schedule runs the measurement loop at a fixed interval.
package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/banshee-data/particulate.report/internal/monitoring"
	"github.com/banshee-data/particulate.report/internal/timeutil"
)

// Scheduler calls a function once per Interval. With Align set, the first
// call waits for the next wall-clock multiple of Interval, so a 60s interval
// fires on the minute.
type Scheduler struct {
	Clock    timeutil.Clock
	Interval time.Duration
	Align    bool
}

// NextAligned returns the first multiple of interval at or after t.
func NextAligned(t time.Time, interval time.Duration) time.Time {
	if interval <= 0 {
		return t
	}
	aligned := t.Truncate(interval)
	if aligned.Before(t) {
		aligned = aligned.Add(interval)
	}
	return aligned
}

// Run calls fn until ctx is cancelled or fn fails. fn receives the time it
// was started. A call that overruns the interval is followed immediately by
// the next one. Cancellation is only observed between calls; a running fn
// is never interrupted. Run returns nil on cancellation.
func (s *Scheduler) Run(ctx context.Context, fn func(time.Time) error) error {
	if s.Interval <= 0 {
		return errors.New("schedule: interval must be positive")
	}
	clock := s.Clock
	if clock == nil {
		clock = timeutil.RealClock{}
	}

	if s.Align {
		first := NextAligned(clock.Now(), s.Interval)
		monitoring.Debugf("[schedule] first run at %s", first.Format(time.RFC3339))
		if !wait(ctx, clock, clock.Until(first)) {
			return nil
		}
	}

	for {
		start := clock.Now()
		if err := fn(start); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}

		remaining := clock.Until(start.Add(s.Interval))
		if remaining < 0 {
			monitoring.Logf("[schedule] run overran the %v interval by %v", s.Interval, -remaining)
			remaining = 0
		}
		if !wait(ctx, clock, remaining) {
			return nil
		}
	}
}

// wait sleeps for d and reports false if ctx ended first.
func wait(ctx context.Context, clock timeutil.Clock, d time.Duration) bool {
	if ctx.Err() != nil {
		return false
	}
	if d <= 0 {
		return true
	}
	select {
	case <-ctx.Done():
		return false
	case <-clock.After(d):
		return true
	}
}
