package jobs

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse.app/engagement/internal/config"
	"civicpulse.app/engagement/internal/features/moderation"
)

type sweeperFunc func(ctx context.Context) (*moderation.SweepReport, error)

func (f sweeperFunc) RunAutoModeration(ctx context.Context) (*moderation.SweepReport, error) {
	return f(ctx)
}

func TestStartRejectsBadSchedule(t *testing.T) {
	cfg := &config.Config{AppTimezone: "UTC", ModerationSchedule: "every tuesday"}
	s := NewScheduler(cfg, sweeperFunc(func(context.Context) (*moderation.SweepReport, error) {
		return &moderation.SweepReport{}, nil
	}))
	assert.Error(t, s.Start(context.Background()))
}

func TestSchedulerRunsSweepAndSkipsOverlaps(t *testing.T) {
	var (
		runs    atomic.Int32
		release = make(chan struct{})
	)
	cfg := &config.Config{AppTimezone: "UTC", ModerationSchedule: "@every 1s"}
	s := NewScheduler(cfg, sweeperFunc(func(context.Context) (*moderation.SweepReport, error) {
		runs.Add(1)
		<-release
		return &moderation.SweepReport{}, nil
	}))
	require.NoError(t, s.Start(context.Background()))

	// the first sweep blocks across several ticks
	require.Eventually(t, func() bool { return runs.Load() >= 1 }, 3*time.Second, 50*time.Millisecond)
	time.Sleep(2200 * time.Millisecond)
	assert.Equal(t, int32(1), runs.Load())

	close(release)
	s.Stop()
}
