// Package activity: service.go records notices on behalf of the other features.
package activity

import (
	"context"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/common"
)

// Notifier is what the scoring and moderation services depend on.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Service writes and reads the activity log.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates the activity service.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Notify stores a notice. Failures are logged and dropped: a missing
// notice must never fail the award or the sweep that produced it.
func (s *Service) Notify(ctx context.Context, n Notice) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = s.now().UTC()
	}
	if err := s.repo.Insert(ctx, &n); err != nil {
		log.WithError(err).WithFields(log.Fields{
			"member_id": n.MemberID,
			"kind":      n.Kind,
		}).Warn("Failed to record activity notice")
		return
	}
	log.WithFields(log.Fields{
		"member_id": n.MemberID,
		"kind":      n.Kind,
	}).Debug("Activity notice recorded")
}

// List returns the latest notices of a member.
func (s *Service) List(ctx context.Context, memberID uuid.UUID, limit int) ([]*Notice, error) {
	if limit <= 0 {
		return nil, common.ErrInvalidLimit
	}
	return s.repo.ListByMember(ctx, memberID, limit)
}

// Discard is a Notifier that drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}
