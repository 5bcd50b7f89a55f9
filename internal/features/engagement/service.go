// Package engagement: service.go awards points, maintains levels and
// answers the read queries (stats, leaderboard, history).
package engagement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/features/activity"
)

// Service is the score aggregator and badge evaluator.
type Service struct {
	repo      Repository
	evaluator *Evaluator
	notifier  activity.Notifier
	maxPage   int
	now       func() time.Time
}

// NewService wires the service. maxPage caps leaderboard and history pages.
func NewService(repo Repository, evaluator *Evaluator, notifier activity.Notifier, maxPage int) *Service {
	if notifier == nil {
		notifier = activity.Discard{}
	}
	return &Service{
		repo:      repo,
		evaluator: evaluator,
		notifier:  notifier,
		maxPage:   maxPage,
		now:       time.Now,
	}
}

// EnsureMember registers a member or refreshes its display fields.
func (s *Service) EnsureMember(ctx context.Context, id uuid.UUID, displayName string, avatarURL *string) (*Member, error) {
	m := &Member{ID: id, DisplayName: displayName, AvatarURL: avatarURL, CreatedAt: s.now().UTC()}
	if err := s.repo.EnsureMember(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// AwardPoints records a ledger entry for action and bumps the member's total.
//
// Referenced awards of petition_created, petition_voted, badge_earned and
// petition_approved are applied once; a repeat returns Duplicate=true and
// changes nothing. When the new total crosses a level threshold the level is
// raised and a level-up notice is sent. The badge check runs last; its
// failures are logged and never undo the award.
//
// Parameters:
//   - ctx: context for cancelling the operation
//   - memberID: who gets the points
//   - action: one of the catalog actions (petition_created, comment_posted, ...)
//   - referenceID: the petition or badge the action is about, may be nil
//
// Returns:
//   - *AwardResult: points granted, new total and level, badges earned
//   - error: ErrUnknownAction, ErrMemberNotFound or a store failure
//
// Example:
//
//	ref := petitionID.String()
//	res, err := svc.AwardPoints(ctx, memberID, engagement.ActionPetitionVoted, &ref)
//	if err != nil {
//	    return err
//	}
//	if res.Duplicate {
//	    log.Debug("Vote already rewarded")
//	}
func (s *Service) AwardPoints(ctx context.Context, memberID uuid.UUID, action Action, referenceID *string) (*AwardResult, error) {
	points, ok := action.Points()
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownAction, action)
	}

	ptx := &PointTransaction{
		ID:          uuid.New(),
		MemberID:    memberID,
		Points:      points,
		Action:      action,
		ReferenceID: referenceID,
		CreatedAt:   s.now().UTC(),
	}
	added, err := s.repo.AddPoints(ctx, ptx)
	if err != nil {
		return nil, fmt.Errorf("award %s: %w", action, err)
	}

	result := &AwardResult{Points: points, NewTotal: added.NewTotal, Level: added.Level}
	if !added.Applied {
		awardsDeduplicated.WithLabelValues(string(action)).Inc()
		log.WithFields(log.Fields{
			"member_id": memberID,
			"action":    action,
			"reference": *referenceID,
		}).Debug("Award already applied")
		result.Points = 0
		result.Duplicate = true
		return result, nil
	}
	pointsAwarded.WithLabelValues(string(action)).Add(float64(points))

	if level := CalculateLevel(added.NewTotal); level > added.Level {
		raised, err := s.repo.RaiseLevel(ctx, memberID, level)
		if err != nil {
			// the next award recomputes the level from the total
			log.WithError(err).WithField("member_id", memberID).Error("Failed to raise level")
		} else {
			result.Level = level
			if raised {
				result.LeveledUp = true
				levelUps.Inc()
				s.notifyLevelUp(ctx, memberID, level)
			}
		}
	}

	log.WithFields(log.Fields{
		"member_id":    memberID,
		"action":       action,
		"points":       points,
		"total":        added.NewTotal,
		"member_level": result.Level,
	}).Info("Points awarded")

	earned, err := s.CheckAndAwardBadges(ctx, memberID)
	if err != nil {
		log.WithError(err).WithField("member_id", memberID).Warn("Badge check failed after award")
	}
	if len(earned) > 0 {
		result.BadgesEarned = earned
		// badge bonuses moved the total past what this award saw
		if m, err := s.repo.GetMember(ctx, memberID); err == nil {
			result.NewTotal = m.TotalPoints
			if m.Level > result.Level {
				result.Level = m.Level
				result.LeveledUp = true
			}
		}
	}
	return result, nil
}

func (s *Service) notifyLevelUp(ctx context.Context, memberID uuid.UUID, level int) {
	s.notifier.Notify(ctx, activity.Notice{
		MemberID: memberID,
		Kind:     activity.KindLevelUp,
		Title:    fmt.Sprintf("Level %d reached", level),
		Body:     fmt.Sprintf("You reached level %d. Next level at %s points.", level, common.FormatNumber(PointsForNextLevel(level))),
	})
}

// snapshot is everything the stats and the badge check read about a member.
type snapshot struct {
	member   *Member
	badges   []*MemberBadge
	counts   map[ContributionKind]int64
	joinedAt time.Time
}

// loadSnapshot fans out the member, badge and contribution reads.
func (s *Service) loadSnapshot(ctx context.Context, memberID uuid.UUID) (*snapshot, error) {
	snap := &snapshot{}
	kinds := []ContributionKind{ContributionPetitions, ContributionVotes, ContributionComments}
	counts := make([]int64, len(kinds))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		m, err := s.repo.GetMember(gctx, memberID)
		if err != nil {
			return err
		}
		snap.member = m
		return nil
	})
	g.Go(func() error {
		badges, err := s.repo.ListBadges(gctx, memberID)
		if err != nil {
			return err
		}
		snap.badges = badges
		return nil
	})
	for i, kind := range kinds {
		g.Go(func() error {
			n, err := s.repo.CountContributions(gctx, memberID, kind)
			if err != nil {
				return err
			}
			counts[i] = n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	snap.counts = make(map[ContributionKind]int64, len(kinds))
	for i, kind := range kinds {
		snap.counts[kind] = counts[i]
	}
	snap.joinedAt = snap.member.CreatedAt
	return snap, nil
}

func (s *Service) criteriaInput(snap *snapshot) CriteriaInput {
	return CriteriaInput{
		TotalPoints:     snap.member.TotalPoints,
		Level:           snap.member.Level,
		TotalPetitions:  snap.counts[ContributionPetitions],
		TotalVotes:      snap.counts[ContributionVotes],
		TotalComments:   snap.counts[ContributionComments],
		DaysSinceJoined: common.DaysBetween(snap.joinedAt, s.now()),
	}
}

// GetMemberStats returns the stats snapshot of a member.
func (s *Service) GetMemberStats(ctx context.Context, memberID uuid.UUID) (*MemberStats, error) {
	snap, err := s.loadSnapshot(ctx, memberID)
	if err != nil {
		return nil, err
	}
	in := s.criteriaInput(snap)

	badges := make([]EarnedBadge, 0, len(snap.badges))
	for _, b := range snap.badges {
		eb := EarnedBadge{ID: b.BadgeID, Name: b.BadgeID, EarnedAt: b.EarnedAt}
		if def, ok := s.evaluator.Definition(b.BadgeID); ok {
			eb.Name = def.Name
			eb.Description = def.Description
			eb.Icon = def.Icon
		}
		badges = append(badges, eb)
	}

	return &MemberStats{
		MemberID:        memberID,
		TotalPoints:     snap.member.TotalPoints,
		Level:           snap.member.Level,
		Badges:          badges,
		TotalPetitions:  in.TotalPetitions,
		TotalVotes:      in.TotalVotes,
		TotalComments:   in.TotalComments,
		DaysSinceJoined: in.DaysSinceJoined,
		Progress:        ComputeProgress(snap.member.TotalPoints, snap.member.Level),
	}, nil
}

// GetLeaderboard returns the top members by points. Ties go to the member
// who joined first.
func (s *Service) GetLeaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > s.maxPage {
		return nil, common.ErrInvalidLimit
	}
	members, err := s.repo.TopMembers(ctx, limit)
	if err != nil {
		return nil, err
	}
	entries := make([]LeaderboardEntry, 0, len(members))
	for i, m := range members {
		entries = append(entries, LeaderboardEntry{
			Rank:        i + 1,
			MemberID:    m.ID,
			Name:        m.DisplayName,
			Avatar:      m.AvatarURL,
			TotalPoints: m.TotalPoints,
			Level:       m.Level,
		})
	}
	return entries, nil
}

// GetPointHistory returns the latest ledger entries of a member.
func (s *Service) GetPointHistory(ctx context.Context, memberID uuid.UUID, limit int) ([]*PointTransaction, error) {
	if limit <= 0 || limit > s.maxPage {
		return nil, common.ErrInvalidLimit
	}
	if _, err := s.repo.GetMember(ctx, memberID); err != nil {
		return nil, err
	}
	return s.repo.ListTransactions(ctx, memberID, limit)
}
