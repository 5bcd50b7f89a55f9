// Package engagement implements points, levels and badges.
// models.go describes the ledger, member aggregate and badge records.
package engagement

import (
	"time"

	"github.com/google/uuid"
)

// Action is a rewarded member action.
type Action string

const (
	ActionPetitionCreated  Action = "petition_created"
	ActionPetitionVoted    Action = "petition_voted"
	ActionCommentPosted    Action = "comment_posted"
	ActionBadgeEarned      Action = "badge_earned"
	ActionPetitionApproved Action = "petition_approved"
)

type actionRule struct {
	points int64
	// oncePerReference: awarded at most once per (member, action, reference).
	// Mirrored by the uq_point_transactions_reference partial index.
	oncePerReference bool
}

// pointsCatalog is the fixed table of point values.
var pointsCatalog = map[Action]actionRule{
	ActionPetitionCreated:  {points: 10, oncePerReference: true},
	ActionPetitionVoted:    {points: 2, oncePerReference: true},
	ActionCommentPosted:    {points: 3},
	ActionBadgeEarned:      {points: 25, oncePerReference: true},
	ActionPetitionApproved: {points: 50, oncePerReference: true},
}

// Points returns the catalog value of the action.
func (a Action) Points() (int64, bool) {
	rule, ok := pointsCatalog[a]
	return rule.points, ok
}

// OncePerReference reports whether a referenced award of this action is deduplicated.
func (a Action) OncePerReference() bool {
	return pointsCatalog[a].oncePerReference
}

// Member is the engine's view of an account: the profile fields it shows on
// the leaderboard plus the two aggregates it owns.
type Member struct {
	ID          uuid.UUID `json:"id" db:"id"`
	DisplayName string    `json:"displayName" db:"display_name"`
	AvatarURL   *string   `json:"avatarUrl,omitempty" db:"avatar_url"`
	TotalPoints int64     `json:"totalPoints" db:"total_points"` // ≥ 0
	Level       int       `json:"level" db:"level"`              // ≥ 1, never decreases
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// PointTransaction is an immutable ledger entry.
type PointTransaction struct {
	ID          uuid.UUID `json:"id" db:"id"`
	MemberID    uuid.UUID `json:"memberId" db:"member_id"`
	Points      int64     `json:"points" db:"points"`
	Action      Action    `json:"action" db:"action"`
	ReferenceID *string   `json:"referenceId,omitempty" db:"reference_id"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}

// deduplicated reports whether the store must reject a second copy of tx.
func (tx *PointTransaction) deduplicated() bool {
	return tx.ReferenceID != nil && tx.Action.OncePerReference()
}

// AddResult is what the store reports back after appending a transaction.
type AddResult struct {
	// Applied is false when a deduplicated transaction already existed.
	Applied  bool
	NewTotal int64
	// Level is the stored level before any raise.
	Level int
}

// MemberBadge is a granted badge. One row per (member, badge).
type MemberBadge struct {
	MemberID uuid.UUID `json:"memberId" db:"member_id"`
	BadgeID  string    `json:"badgeId" db:"badge_id"`
	EarnedAt time.Time `json:"earnedAt" db:"earned_at"`
}

// EarnedBadge is a granted badge joined with its catalog entry.
type EarnedBadge struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Icon        string    `json:"icon"`
	EarnedAt    time.Time `json:"earnedAt"`
}

// ContributionKind selects one of the member-authored collections.
type ContributionKind string

const (
	ContributionPetitions ContributionKind = "petitions"
	ContributionVotes     ContributionKind = "votes"
	ContributionComments  ContributionKind = "comments"
)

// AwardResult is returned by AwardPoints.
type AwardResult struct {
	Points       int64    `json:"points"`
	NewTotal     int64    `json:"newTotal"`
	Level        int      `json:"level"`
	LeveledUp    bool     `json:"leveledUp"`
	Duplicate    bool     `json:"duplicate,omitempty"`
	BadgesEarned []string `json:"badgesEarned,omitempty"`
}

// MemberStats is a read-only snapshot for profile screens.
type MemberStats struct {
	MemberID        uuid.UUID     `json:"memberId"`
	TotalPoints     int64         `json:"totalPoints"`
	Level           int           `json:"level"`
	Badges          []EarnedBadge `json:"badges"`
	TotalPetitions  int64         `json:"totalPetitions"`
	TotalVotes      int64         `json:"totalVotes"`
	TotalComments   int64         `json:"totalComments"`
	DaysSinceJoined int64         `json:"daysSinceJoined"`
	Progress        Progress      `json:"progress"`
}

// LeaderboardEntry is one leaderboard row.
type LeaderboardEntry struct {
	Rank        int       `json:"rank"`
	MemberID    uuid.UUID `json:"memberId"`
	Name        string    `json:"name"`
	Avatar      *string   `json:"avatar,omitempty"`
	TotalPoints int64     `json:"totalPoints"`
	Level       int       `json:"level"`
}
