package moderation

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sweepTime = time.Date(2026, 6, 15, 3, 0, 0, 0, time.UTC)

func pendingPetition(up, down int64, idle time.Duration) *Petition {
	return &Petition{
		ID:             uuid.New(),
		CreatorID:      uuid.New(),
		Title:          "Fix the crossing on Elm St",
		Upvotes:        up,
		Downvotes:      down,
		Status:         StatusPending,
		LastActivityAt: sweepTime.Add(-idle),
		CreatedAt:      sweepTime.AddDate(0, -3, 0),
	}
}

func TestEvaluate(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		name     string
		petition *Petition
		fires    bool
		action   ActionType
		status   Status
		trigger  Trigger
		reason   string
	}{
		{
			name:     "dormant 45 days",
			petition: pendingPetition(1, 0, 45*day),
			fires:    true, action: ActionArchived, status: StatusArchived, trigger: TriggerDormancy,
			reason: "No activity for 45 days",
		},
		{
			name:     "exactly at dormancy period",
			petition: pendingPetition(0, 0, 30*day),
			fires:    true, action: ActionArchived, status: StatusArchived, trigger: TriggerDormancy,
			reason: "No activity for 30 days",
		},
		{
			name:     "one hour short of dormancy",
			petition: pendingPetition(0, 0, 30*day-time.Hour),
		},
		{
			name:     "downvoted 70 percent",
			petition: pendingPetition(3, 7, day),
			fires:    true, action: ActionPulledDown, status: StatusRejected, trigger: TriggerDownvoteRatio,
			reason: "70%",
		},
		{
			name:     "downvoted exactly 60 percent",
			petition: pendingPetition(4, 6, day),
			fires:    true, action: ActionPulledDown, status: StatusRejected, trigger: TriggerDownvoteRatio,
			reason: "60%",
		},
		{
			name:     "too few votes to judge",
			petition: pendingPetition(0, 9, day),
		},
		{
			name:     "escalated 87.5 percent",
			petition: pendingPetition(140, 20, day),
			fires:    true, action: ActionEscalated, status: StatusApproved, trigger: TriggerUpvoteThreshold,
			reason: "88%",
		},
		{
			name:     "popular but contested",
			petition: pendingPetition(120, 60, day),
		},
		{
			name:     "strong ratio under the upvote floor",
			petition: pendingPetition(99, 1, day),
		},
		{
			name:     "below every threshold",
			petition: pendingPetition(50, 60, day),
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, ok := Evaluate(tc.petition, sweepTime, DefaultThresholds())
			require.Equal(t, tc.fires, ok)
			if !tc.fires {
				return
			}
			assert.Equal(t, tc.action, d.Action)
			assert.Equal(t, tc.status, d.Status)
			assert.Equal(t, tc.trigger, d.Trigger)
			assert.Contains(t, d.Reason, tc.reason)
			assert.Equal(t, tc.petition.Upvotes, d.Metadata.Upvotes)
			assert.Equal(t, tc.petition.Downvotes, d.Metadata.Downvotes)
		})
	}
}

func TestEvaluateDownvoteReasonHasRawCounts(t *testing.T) {
	d, ok := Evaluate(pendingPetition(3, 7, time.Hour), sweepTime, DefaultThresholds())
	require.True(t, ok)
	assert.Equal(t, "Downvoted by 70% of voters (7 down, 3 up)", d.Reason)
	assert.InDelta(t, 0.7, d.Metadata.Ratio, 1e-9)
}

func TestEvaluateDormancyWinsOverDownvotes(t *testing.T) {
	p := pendingPetition(2, 18, 60*24*time.Hour)
	d, ok := Evaluate(p, sweepTime, DefaultThresholds())
	require.True(t, ok)
	assert.Equal(t, ActionArchived, d.Action)
	assert.Equal(t, TriggerDormancy, d.Trigger)
}

func TestEvaluateDormancyWinsOverEscalation(t *testing.T) {
	p := pendingPetition(300, 10, 31*24*time.Hour)
	d, ok := Evaluate(p, sweepTime, DefaultThresholds())
	require.True(t, ok)
	assert.Equal(t, ActionArchived, d.Action)
}

func TestEvaluateSkipsTerminalPetitions(t *testing.T) {
	for _, status := range []Status{StatusArchived, StatusRejected, StatusApproved} {
		p := pendingPetition(3, 7, 90*24*time.Hour)
		p.Status = status
		_, ok := Evaluate(p, sweepTime, DefaultThresholds())
		assert.False(t, ok, "status %s", status)
	}
}

func TestEvaluateCustomThresholds(t *testing.T) {
	th := DefaultThresholds()
	th.DormancyPeriod = 7 * 24 * time.Hour
	th.EscalationVotes = 10

	d, ok := Evaluate(pendingPetition(0, 0, 8*24*time.Hour), sweepTime, th)
	require.True(t, ok)
	assert.Equal(t, "No activity for 8 days", d.Reason)

	d, ok = Evaluate(pendingPetition(10, 1, time.Hour), sweepTime, th)
	require.True(t, ok)
	assert.Equal(t, ActionEscalated, d.Action)
}
