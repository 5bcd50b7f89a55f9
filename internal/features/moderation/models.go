// Package moderation runs the automated petition sweep and keeps its audit log.
package moderation

import (
	"time"

	"github.com/google/uuid"
)

// Status is a petition lifecycle state. Only pending is non-terminal.
type Status string

const (
	StatusPending  Status = "pending"
	StatusArchived Status = "archived"
	StatusRejected Status = "rejected"
	StatusApproved Status = "approved"
)

// ActionType is what the sweep did to a petition.
type ActionType string

const (
	ActionArchived   ActionType = "archived"
	ActionPulledDown ActionType = "pulled_down"
	ActionEscalated  ActionType = "escalated"
)

// Trigger names the rule that fired.
type Trigger string

const (
	TriggerDormancy        Trigger = "dormancy"
	TriggerDownvoteRatio   Trigger = "downvote_ratio"
	TriggerUpvoteThreshold Trigger = "upvote_threshold"
)

// Petition holds the fields the sweep reads. Votes and activity are
// maintained by the petition service.
type Petition struct {
	ID             uuid.UUID `json:"id" db:"id"`
	CreatorID      uuid.UUID `json:"creatorId" db:"creator_id"`
	Title          string    `json:"title" db:"title"`
	Upvotes        int64     `json:"upvotes" db:"upvotes"`
	Downvotes      int64     `json:"downvotes" db:"downvotes"`
	Status         Status    `json:"status" db:"status"`
	LastActivityAt time.Time `json:"lastActivityAt" db:"last_activity_at"`
	CreatedAt      time.Time `json:"createdAt" db:"created_at"`
}

// Metadata is the snapshot of the petition at decision time.
type Metadata struct {
	Upvotes        int64     `json:"upvotes"`
	Downvotes      int64     `json:"downvotes"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	DaysInactive   int64     `json:"daysInactive"`
	Ratio          float64   `json:"ratio,omitempty"`
}

// LogEntry is an immutable moderation log row. At most one per (petition, action).
type LogEntry struct {
	ID          uuid.UUID  `json:"id" db:"id"`
	PetitionID  uuid.UUID  `json:"petitionId" db:"petition_id"`
	ActionType  ActionType `json:"actionType" db:"action_type"`
	Reason      string     `json:"reason" db:"reason"`
	TriggeredBy Trigger    `json:"triggeredBy" db:"triggered_by"`
	Metadata    Metadata   `json:"metadata" db:"metadata"`
	PerformedAt time.Time  `json:"performedAt" db:"performed_at"`
}

// Stats counts log entries by action type.
type Stats struct {
	Archived   int64 `json:"archived"`
	PulledDown int64 `json:"pulledDown"`
	Escalated  int64 `json:"escalated"`
}

// SweepReport summarizes one sweep.
type SweepReport struct {
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Scanned   int           `json:"scanned"`
	Archived  int           `json:"archived"`
	Rejected  int           `json:"rejected"`
	Escalated int           `json:"escalated"`
	// Skipped counts decisions another writer already applied.
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
	// BonusFailed counts escalations whose creator bonus could not be awarded.
	// They stay unsettled and are paid by a later sweep.
	BonusFailed int `json:"bonusFailed"`
	// BonusReplayed counts bonuses from earlier sweeps paid by this one.
	BonusReplayed int `json:"bonusReplayed"`
}

// Actions is the number of transitions the sweep made.
func (r *SweepReport) Actions() int {
	return r.Archived + r.Rejected + r.Escalated
}
