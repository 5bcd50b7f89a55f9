package alerts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mymmrac/telego"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicpulse.app/engagement/internal/features/moderation"
)

type fakeSender struct {
	sent []*telego.SendMessageParams
	err  error
}

func (f *fakeSender) SendMessage(_ context.Context, params *telego.SendMessageParams) (*telego.Message, error) {
	f.sent = append(f.sent, params)
	if f.err != nil {
		return nil, f.err
	}
	return &telego.Message{}, nil
}

func TestReportSweepSendsWhenSomethingHappened(t *testing.T) {
	sender := &fakeSender{}
	a := NewAlerter(sender, -1001234, "production")

	a.ReportSweep(context.Background(), &moderation.SweepReport{
		StartedAt: time.Date(2026, 6, 15, 3, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Scanned:   12,
		Archived:  2,
		Escalated: 1,
	})

	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, int64(-1001234), msg.ChatID.ID)
	assert.Equal(t, telego.ModeHTML, msg.ParseMode)
	assert.Contains(t, msg.Text, "Archived: 2 | Rejected: 0 | Escalated: 1")
	assert.Contains(t, msg.Text, "[production]")
	assert.Contains(t, msg.Text, "Duration: 1.5s")
}

func TestReportSweepQuietSweepIsNotSent(t *testing.T) {
	sender := &fakeSender{}
	a := NewAlerter(sender, 42, "staging")

	a.ReportSweep(context.Background(), &moderation.SweepReport{Scanned: 30})
	assert.Empty(t, sender.sent)
}

func TestReportSweepSendErrorIsSwallowed(t *testing.T) {
	sender := &fakeSender{err: errors.New("telegram: 429 too many requests")}
	a := NewAlerter(sender, 42, "staging")

	assert.NotPanics(t, func() {
		a.ReportSweep(context.Background(), &moderation.SweepReport{Failed: 1})
	})
	assert.Len(t, sender.sent, 1)
}

func TestFormatSweepHighlightsFailures(t *testing.T) {
	text := FormatSweep("<dev>", &moderation.SweepReport{Failed: 3, BonusFailed: 1, Skipped: 2})
	assert.Contains(t, text, "⚠️")
	assert.Contains(t, text, "&lt;dev&gt;")
	assert.Contains(t, text, "Failed petitions: 3")
	assert.Contains(t, text, "Missing escalation bonuses: 1")
	assert.Contains(t, text, "Already applied: 2")
}

func TestReportSweepSendsLateBonuses(t *testing.T) {
	sender := &fakeSender{}
	a := NewAlerter(sender, 42, "staging")

	a.ReportSweep(context.Background(), &moderation.SweepReport{BonusReplayed: 2})
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Text, "Late escalation bonuses paid: 2")
}
