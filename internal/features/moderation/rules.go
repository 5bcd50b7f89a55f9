// Package moderation: rules.go holds the moderation rules as an ordered
// table. Rules are tried in order and the first one that fires decides the
// petition's outcome for the sweep:
//
//  1. dormancy        no activity for DormancyPeriod → archived
//  2. downvote ratio  ≥ MinVotes votes and downvotes ≥ DownvoteRatio → rejected
//  3. escalation      ≥ EscalationVotes upvotes and upvotes ≥ UpvoteRatio → approved
package moderation

import (
	"fmt"
	"time"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/config"
)

// Thresholds parameterize the rules.
type Thresholds struct {
	DormancyPeriod  time.Duration
	MinVotes        int64
	DownvoteRatio   float64
	EscalationVotes int64
	UpvoteRatio     float64
}

// DefaultThresholds are the production values.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DormancyPeriod:  30 * 24 * time.Hour,
		MinVotes:        10,
		DownvoteRatio:   0.6,
		EscalationVotes: 100,
		UpvoteRatio:     0.7,
	}
}

// ThresholdsFromConfig reads the MODERATION_* settings.
func ThresholdsFromConfig(cfg *config.Config) Thresholds {
	return Thresholds{
		DormancyPeriod:  cfg.DormancyPeriod(),
		MinVotes:        cfg.ModerationMinVotes,
		DownvoteRatio:   cfg.ModerationDownvoteRatio,
		EscalationVotes: cfg.ModerationEscalationVotes,
		UpvoteRatio:     cfg.ModerationUpvoteRatio,
	}
}

// Decision is the outcome of a rule that fired.
type Decision struct {
	Action   ActionType
	Status   Status
	Trigger  Trigger
	Reason   string
	Metadata Metadata
}

type rule struct {
	trigger Trigger
	apply   func(p *Petition, now time.Time, th Thresholds, md Metadata) (Decision, bool)
}

// rules is the fixed priority order.
var rules = []rule{
	{trigger: TriggerDormancy, apply: dormancyRule},
	{trigger: TriggerDownvoteRatio, apply: downvoteRule},
	{trigger: TriggerUpvoteThreshold, apply: escalationRule},
}

// Evaluate returns the decision for a pending petition, if any rule fires.
func Evaluate(p *Petition, now time.Time, th Thresholds) (Decision, bool) {
	if p.Status != StatusPending {
		return Decision{}, false
	}
	md := Metadata{
		Upvotes:        p.Upvotes,
		Downvotes:      p.Downvotes,
		LastActivityAt: p.LastActivityAt,
		DaysInactive:   common.DaysBetween(p.LastActivityAt, now),
	}
	for _, r := range rules {
		if d, ok := r.apply(p, now, th, md); ok {
			d.Trigger = r.trigger
			return d, true
		}
	}
	return Decision{}, false
}

func dormancyRule(p *Petition, now time.Time, th Thresholds, md Metadata) (Decision, bool) {
	if now.Sub(p.LastActivityAt) < th.DormancyPeriod {
		return Decision{}, false
	}
	return Decision{
		Action:   ActionArchived,
		Status:   StatusArchived,
		Reason:   fmt.Sprintf("No activity for %d days", md.DaysInactive),
		Metadata: md,
	}, true
}

func downvoteRule(p *Petition, _ time.Time, th Thresholds, md Metadata) (Decision, bool) {
	total := p.Upvotes + p.Downvotes
	if total < th.MinVotes {
		return Decision{}, false
	}
	ratio := common.Ratio(p.Downvotes, total)
	if ratio < th.DownvoteRatio {
		return Decision{}, false
	}
	md.Ratio = ratio
	return Decision{
		Action: ActionPulledDown,
		Status: StatusRejected,
		Reason: fmt.Sprintf("Downvoted by %s of voters (%d down, %d up)",
			common.FormatPercent(ratio), p.Downvotes, p.Upvotes),
		Metadata: md,
	}, true
}

func escalationRule(p *Petition, _ time.Time, th Thresholds, md Metadata) (Decision, bool) {
	if p.Upvotes < th.EscalationVotes {
		return Decision{}, false
	}
	ratio := common.Ratio(p.Upvotes, p.Upvotes+p.Downvotes)
	if ratio < th.UpvoteRatio {
		return Decision{}, false
	}
	md.Ratio = ratio
	return Decision{
		Action: ActionEscalated,
		Status: StatusApproved,
		Reason: fmt.Sprintf("Escalated with %s support (%d up, %d down)",
			common.FormatPercent(ratio), p.Upvotes, p.Downvotes),
		Metadata: md,
	}, true
}
