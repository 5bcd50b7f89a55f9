// Package jobs manages background jobs (cron).
// scheduler.go runs the moderation sweep on the configured schedule.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/config"
	"civicpulse.app/engagement/internal/features/moderation"
)

// Sweeper runs one moderation pass. Satisfied by *moderation.Service.
type Sweeper interface {
	RunAutoModeration(ctx context.Context) (*moderation.SweepReport, error)
}

// Scheduler manages background jobs.
type Scheduler struct {
	cron     *cron.Cron
	sweeper  Sweeper
	schedule string
	location string
}

// NewScheduler creates the scheduler in the configured time zone. A sweep
// still running when the next tick fires makes that tick a no-op.
func NewScheduler(cfg *config.Config, sweeper Sweeper) *Scheduler {
	loc := common.LoadLocation(cfg.AppTimezone)
	cronLog := cron.PrintfLogger(log.StandardLogger())

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	return &Scheduler{
		cron:     c,
		sweeper:  sweeper,
		schedule: cfg.ModerationSchedule,
		location: loc.String(),
	}
}

// Start registers the jobs and starts the cron loop.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		log.Info("[CRON] Moderation sweep")
		if _, err := s.sweeper.RunAutoModeration(ctx); err != nil {
			log.WithError(err).Error("[CRON] Moderation sweep failed")
		}
	})
	if err != nil {
		return fmt.Errorf("schedule moderation sweep %q: %w", s.schedule, err)
	}

	s.cron.Start()
	log.WithFields(log.Fields{
		"schedule": s.schedule,
		"timezone": s.location,
	}).Info("Job scheduler started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	log.Info("Job scheduler stopped")
}
