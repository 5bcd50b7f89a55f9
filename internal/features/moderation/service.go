// Package moderation: service.go runs the sweep and answers the log queries.
package moderation

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/features/activity"
	"civicpulse.app/engagement/internal/features/engagement"
)

// PointsAwarder grants the escalation bonus. Satisfied by *engagement.Service.
type PointsAwarder interface {
	AwardPoints(ctx context.Context, memberID uuid.UUID, action engagement.Action, referenceID *string) (*engagement.AwardResult, error)
}

// SweepReporter receives the report of every sweep.
type SweepReporter interface {
	ReportSweep(ctx context.Context, report *SweepReport)
}

// Service is the moderation sweep.
type Service struct {
	repo       Repository
	awarder    PointsAwarder
	notifier   activity.Notifier
	reporter   SweepReporter
	thresholds Thresholds
	now        func() time.Time
}

// NewService wires the sweep. notifier and reporter may be nil.
func NewService(repo Repository, awarder PointsAwarder, notifier activity.Notifier, reporter SweepReporter, th Thresholds) *Service {
	if notifier == nil {
		notifier = activity.Discard{}
	}
	return &Service{
		repo:       repo,
		awarder:    awarder,
		notifier:   notifier,
		reporter:   reporter,
		thresholds: th,
		now:        time.Now,
	}
}

// SyncPetition stores the platform's copy of a petition so the sweep can
// judge it. A new petition starts pending unless p.Status says otherwise;
// an existing one keeps its status and gets the new title, counters and
// last activity.
func (s *Service) SyncPetition(ctx context.Context, p *Petition) (*Petition, error) {
	p.Title = strings.TrimSpace(p.Title)
	if p.Title == "" || p.Upvotes < 0 || p.Downvotes < 0 {
		return nil, fmt.Errorf("%w: title is required and vote counts cannot be negative", common.ErrInvalidPetition)
	}
	now := s.now().UTC()
	if p.Status == "" {
		p.Status = StatusPending
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	if p.LastActivityAt.IsZero() {
		p.LastActivityAt = p.CreatedAt
	}

	stored, err := s.repo.SyncPetition(ctx, p)
	if err != nil {
		return nil, err
	}
	log.WithFields(log.Fields{
		"petition_id": stored.ID,
		"status":      stored.Status,
		"upvotes":     stored.Upvotes,
		"downvotes":   stored.Downvotes,
	}).Debug("Petition synced")
	return stored, nil
}

// RunAutoModeration runs one moderation sweep over every pending petition.
//
// Escalation bonuses left unpaid by earlier sweeps are settled first. Then
// each pending petition is judged once; a petition that fails is logged and
// counted, and the sweep moves on. Only a failure to load the pending set
// fails the sweep. The report goes to the reporter, when one is set.
//
// Parameters:
//   - ctx: cancelling it stops the sweep before the next petition
//
// Returns:
//   - *SweepReport: counters of this sweep
//   - error: the pending set could not be loaded
//
// Example:
//
//	report, err := svc.RunAutoModeration(ctx)
//	if err != nil {
//	    return err
//	}
//	log.WithField("escalated", report.Escalated).Info("Sweep done")
func (s *Service) RunAutoModeration(ctx context.Context) (*SweepReport, error) {
	started := s.now().UTC()
	report := &SweepReport{StartedAt: started}
	s.settleBonuses(ctx, report)

	petitions, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("load pending petitions: %w", err)
	}

	report.Scanned = len(petitions)
	log.WithField("pending", len(petitions)).Info("Moderation sweep started")

	for _, p := range petitions {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Warn("Moderation sweep interrupted")
			break
		}
		if err := s.moderate(ctx, p, started, report); err != nil {
			report.Failed++
			petitionFailures.Inc()
			log.WithError(err).WithField("petition_id", p.ID).Error("Failed to moderate petition")
		}
	}

	report.Duration = s.now().Sub(started)
	sweepsTotal.Inc()
	sweepDuration.Observe(report.Duration.Seconds())
	lastSweep.SetToCurrentTime()

	log.WithFields(log.Fields{
		"scanned":        report.Scanned,
		"archived":       report.Archived,
		"rejected":       report.Rejected,
		"escalated":      report.Escalated,
		"skipped":        report.Skipped,
		"failed":         report.Failed,
		"bonus_failed":   report.BonusFailed,
		"bonus_replayed": report.BonusReplayed,
		"duration":       report.Duration,
	}).Info("Moderation sweep finished")

	if s.reporter != nil {
		s.reporter.ReportSweep(ctx, report)
	}
	return report, nil
}

func (s *Service) moderate(ctx context.Context, p *Petition, now time.Time, report *SweepReport) error {
	d, ok := Evaluate(p, now, s.thresholds)
	if !ok {
		return nil
	}

	entry := &LogEntry{
		ID:          uuid.New(),
		PetitionID:  p.ID,
		ActionType:  d.Action,
		Reason:      d.Reason,
		TriggeredBy: d.Trigger,
		Metadata:    d.Metadata,
		PerformedAt: now,
	}
	applied, err := s.repo.ApplyDecision(ctx, d.Status, entry)
	if err != nil {
		return err
	}
	if !applied {
		report.Skipped++
		log.WithFields(log.Fields{
			"petition_id": p.ID,
			"action":      d.Action,
		}).Debug("Moderation already applied")
		return nil
	}
	actionsTotal.WithLabelValues(string(d.Action)).Inc()

	log.WithFields(log.Fields{
		"petition_id": p.ID,
		"action":      d.Action,
		"trigger":     d.Trigger,
		"reason":      d.Reason,
	}).Info("Petition moderated")

	switch d.Status {
	case StatusArchived:
		report.Archived++
	case StatusRejected:
		report.Rejected++
	case StatusApproved:
		report.Escalated++
		if s.awarder != nil {
			if err := s.payBonus(ctx, p); err != nil {
				report.BonusFailed++
				log.WithError(err).WithFields(log.Fields{
					"petition_id": p.ID,
					"creator_id":  p.CreatorID,
				}).Error("Failed to award escalation bonus")
			}
		}
	}

	petitionID := p.ID.String()
	s.notifier.Notify(ctx, activity.Notice{
		MemberID:    p.CreatorID,
		Kind:        activity.KindPetitionModerated,
		Title:       noticeTitle(d.Action, p.Title),
		Body:        d.Reason,
		ReferenceID: &petitionID,
	})
	return nil
}

// settleBonuses pays the escalation bonuses earlier sweeps could not.
// An escalation stays unsettled until both the award and the settle write
// succeed; a repeated award is a duplicate and pays nothing.
func (s *Service) settleBonuses(ctx context.Context, report *SweepReport) {
	if s.awarder == nil {
		return
	}
	unsettled, err := s.repo.UnsettledEscalations(ctx)
	if err != nil {
		log.WithError(err).Error("Failed to load unsettled escalation bonuses")
		return
	}
	for _, p := range unsettled {
		if ctx.Err() != nil {
			return
		}
		if err := s.payBonus(ctx, p); err != nil {
			report.BonusFailed++
			log.WithError(err).WithFields(log.Fields{
				"petition_id": p.ID,
				"creator_id":  p.CreatorID,
			}).Error("Failed to settle escalation bonus")
			continue
		}
		report.BonusReplayed++
		log.WithField("petition_id", p.ID).Info("Escalation bonus settled")
	}
}

// payBonus awards the creator bonus, keyed by the petition id, and marks
// the escalation settled.
func (s *Service) payBonus(ctx context.Context, p *Petition) error {
	ref := p.ID.String()
	if _, err := s.awarder.AwardPoints(ctx, p.CreatorID, engagement.ActionPetitionApproved, &ref); err != nil {
		return err
	}
	return s.repo.SettleEscalation(ctx, p.ID)
}

// maxNoticeTitle keeps prefix plus title inside activities.title.
const maxNoticeTitle = 200

func noticeTitle(action ActionType, title string) string {
	if utf8.RuneCountInString(title) > maxNoticeTitle {
		title = string([]rune(title)[:maxNoticeTitle]) + "…"
	}
	switch action {
	case ActionArchived:
		return fmt.Sprintf("Petition archived: %s", title)
	case ActionPulledDown:
		return fmt.Sprintf("Petition pulled down: %s", title)
	case ActionEscalated:
		return fmt.Sprintf("Petition escalated: %s", title)
	}
	return title
}

// GetModerationHistory returns the log of a petition, newest first.
func (s *Service) GetModerationHistory(ctx context.Context, petitionID uuid.UUID) ([]*LogEntry, error) {
	if _, err := s.repo.GetPetition(ctx, petitionID); err != nil {
		return nil, err
	}
	return s.repo.ListLog(ctx, petitionID)
}

// GetModerationStats counts log entries by action type.
func (s *Service) GetModerationStats(ctx context.Context) (*Stats, error) {
	counts, err := s.repo.CountByAction(ctx)
	if err != nil {
		return nil, err
	}
	return &Stats{
		Archived:   counts[ActionArchived],
		PulledDown: counts[ActionPulledDown],
		Escalated:  counts[ActionEscalated],
	}, nil
}
