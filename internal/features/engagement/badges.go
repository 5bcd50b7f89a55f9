// Package engagement: badges.go grants badges whose criteria now hold.
package engagement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/features/activity"
)

var badgeBonus, _ = ActionBadgeEarned.Points()

// CheckAndAwardBadges evaluates every catalog badge the member does not hold
// yet and grants the ones whose criterion is satisfied. Each grant awards a
// badge_earned bonus referenced by the badge id, which may in turn qualify
// the member for more badges. Returns the ids granted by this call.
//
// Two concurrent checks for the same member can both see a badge as missing;
// the store accepts only one insert, and only that caller pays the bonus.
func (s *Service) CheckAndAwardBadges(ctx context.Context, memberID uuid.UUID) ([]string, error) {
	snap, err := s.loadSnapshot(ctx, memberID)
	if err != nil {
		return nil, fmt.Errorf("load member for badge check: %w", err)
	}

	held := make(map[string]struct{}, len(snap.badges))
	for _, b := range snap.badges {
		held[b.BadgeID] = struct{}{}
	}

	qualified, evalErrs := s.evaluator.Qualified(s.criteriaInput(snap))
	for _, err := range evalErrs {
		log.WithError(err).WithField("member_id", memberID).Warn("Badge criterion skipped")
	}

	var earned []string
	for _, def := range qualified {
		if _, ok := held[def.ID]; ok {
			continue
		}

		inserted, err := s.repo.InsertBadge(ctx, &MemberBadge{
			MemberID: memberID,
			BadgeID:  def.ID,
			EarnedAt: s.now().UTC(),
		})
		if err != nil {
			return earned, err
		}
		if !inserted {
			continue
		}
		earned = append(earned, def.ID)
		badgesGranted.WithLabelValues(def.ID).Inc()

		log.WithFields(log.Fields{
			"member_id": memberID,
			"badge":     def.ID,
		}).Info("Badge granted")

		badgeID := def.ID
		bonus, err := s.AwardPoints(ctx, memberID, ActionBadgeEarned, &badgeID)
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"member_id": memberID,
				"badge":     def.ID,
			}).Error("Failed to award badge bonus")
		} else {
			// the nested award ran its own badge check
			earned = append(earned, bonus.BadgesEarned...)
		}

		s.notifier.Notify(ctx, activity.Notice{
			MemberID:    memberID,
			Kind:        activity.KindBadgeEarned,
			Title:       fmt.Sprintf("%s %s", def.Icon, def.Name),
			Body:        fmt.Sprintf("%s. %s", def.Description, common.FormatPoints(badgeBonus)),
			ReferenceID: &badgeID,
		})
	}
	return earned, nil
}
