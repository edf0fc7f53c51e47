package schedule

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/particulate.report/internal/timeutil"
)

func TestNextAligned(t *testing.T) {
	base := time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		t        time.Time
		interval time.Duration
		want     time.Time
	}{
		{"already aligned", base, time.Minute, base},
		{"mid minute", base.Add(17 * time.Second), time.Minute, base.Add(time.Minute)},
		{"just after", base.Add(time.Nanosecond), time.Minute, base.Add(time.Minute)},
		{"ten seconds", base.Add(3 * time.Second), 10 * time.Second, base.Add(10 * time.Second)},
		{"quarter hour", base.Add(16 * time.Minute), 15 * time.Minute, base.Add(30 * time.Minute)},
		{"zero interval", base.Add(time.Second), 0, base.Add(time.Second)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NextAligned(tt.t, tt.interval))
		})
	}
}

func TestScheduler_AlignedRuns(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 2, 12, 0, 17, 0, time.UTC))
	s := &Scheduler{Clock: clock, Interval: time.Minute, Align: true}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts []time.Time
	err := s.Run(ctx, func(start time.Time) error {
		starts = append(starts, start)
		clock.Advance(5 * time.Second) // the measurement takes a while
		if len(starts) == 3 {
			cancel()
		}
		return nil
	})
	require.NoError(t, err)

	base := time.Date(2026, 1, 2, 12, 1, 0, 0, time.UTC)
	assert.Equal(t, []time.Time{base, base.Add(time.Minute), base.Add(2 * time.Minute)}, starts)
	assert.Equal(t, []time.Duration{43 * time.Second, 55 * time.Second, 55 * time.Second}, clock.Sleeps())
}

func TestScheduler_Unaligned(t *testing.T) {
	start := time.Date(2026, 1, 2, 12, 0, 17, 0, time.UTC)
	clock := timeutil.NewMockClock(start)
	s := &Scheduler{Clock: clock, Interval: 10 * time.Second}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var starts []time.Time
	require.NoError(t, s.Run(ctx, func(ts time.Time) error {
		starts = append(starts, ts)
		if len(starts) == 2 {
			cancel()
		}
		return nil
	}))
	assert.Equal(t, []time.Time{start, start.Add(10 * time.Second)}, starts)
}

func TestScheduler_OverrunRunsImmediately(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 1, 2, 12, 0, 0, 0, time.UTC))
	s := &Scheduler{Clock: clock, Interval: time.Minute}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	require.NoError(t, s.Run(ctx, func(time.Time) error {
		calls++
		clock.Advance(70 * time.Second)
		if calls == 2 {
			cancel()
		}
		return nil
	}))
	assert.Equal(t, 2, calls)
	assert.Empty(t, clock.Sleeps(), "no wait after an overrun")
}

func TestScheduler_StopsOnError(t *testing.T) {
	s := &Scheduler{Clock: timeutil.NewMockClock(time.Unix(0, 0)), Interval: time.Minute}
	boom := errors.New("channel closed")

	calls := 0
	err := s.Run(context.Background(), func(time.Time) error {
		calls++
		if calls == 3 {
			return boom
		}
		return nil
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, calls)
}

func TestScheduler_CancelledBeforeStart(t *testing.T) {
	s := &Scheduler{Clock: timeutil.NewMockClock(time.Unix(7, 0)), Interval: time.Minute, Align: true}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	require.NoError(t, s.Run(ctx, func(time.Time) error {
		called = true
		return nil
	}))
	assert.False(t, called)
}

func TestScheduler_InvalidInterval(t *testing.T) {
	s := &Scheduler{}
	assert.Error(t, s.Run(context.Background(), func(time.Time) error { return nil }))
}
