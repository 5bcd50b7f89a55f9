// Package activity keeps the per-member activity log: level-ups, earned
// badges and moderation outcomes. The scoring and moderation services get a
// Notifier injected at construction time and never call this package directly.
package activity

import (
	"time"

	"github.com/google/uuid"
)

// Kind is the type of an activity notice.
type Kind string

const (
	KindLevelUp           Kind = "level_up"
	KindBadgeEarned       Kind = "badge_earned"
	KindPetitionModerated Kind = "petition_moderated"
)

// Notice is one entry in a member's activity log.
type Notice struct {
	ID          uuid.UUID `json:"id" db:"id"`
	MemberID    uuid.UUID `json:"memberId" db:"member_id"`
	Kind        Kind      `json:"kind" db:"kind"`
	Title       string    `json:"title" db:"title"`
	Body        string    `json:"body" db:"body"`
	ReferenceID *string   `json:"referenceId,omitempty" db:"reference_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
