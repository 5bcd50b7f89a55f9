// Package alerts posts operational summaries to an operator Telegram chat.
// Only the sweep report is sent; end users never receive these messages.
package alerts

import (
	"context"
	"fmt"
	"html"
	"strings"
	"time"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	log "github.com/sirupsen/logrus"

	"civicpulse.app/engagement/internal/common"
	"civicpulse.app/engagement/internal/features/moderation"
)

// Sender is the part of *telego.Bot the alerter uses.
type Sender interface {
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
}

// TelegramAlerter implements moderation.SweepReporter.
type TelegramAlerter struct {
	sender Sender
	chatID int64
	env    string
}

// NewTelegramAlerter creates an alerter that posts to chatID with the bot token.
func NewTelegramAlerter(token string, chatID int64, env string) (*TelegramAlerter, error) {
	bot, err := telego.NewBot(token, telego.WithDiscardLogger())
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return NewAlerter(bot, chatID, env), nil
}

// NewAlerter creates an alerter over an existing sender.
func NewAlerter(sender Sender, chatID int64, env string) *TelegramAlerter {
	return &TelegramAlerter{sender: sender, chatID: chatID, env: env}
}

// ReportSweep posts the report when the sweep changed or failed something.
// Quiet sweeps are not posted.
func (a *TelegramAlerter) ReportSweep(ctx context.Context, report *moderation.SweepReport) {
	if report.Actions() == 0 && report.Failed == 0 && report.BonusFailed == 0 && report.BonusReplayed == 0 {
		return
	}
	msg := tu.Message(tu.ID(a.chatID), FormatSweep(a.env, report)).
		WithParseMode(telego.ModeHTML)
	if _, err := a.sender.SendMessage(ctx, msg); err != nil {
		log.WithError(err).WithField("chat_id", a.chatID).Warn("Failed to send sweep alert")
	}
}

// FormatSweep renders a report as Telegram HTML.
func FormatSweep(env string, r *moderation.SweepReport) string {
	var sb strings.Builder
	icon := "✅"
	if r.Failed > 0 || r.BonusFailed > 0 {
		icon = "⚠️"
	}
	fmt.Fprintf(&sb, "%s <b>Moderation sweep</b> [%s]\n", icon, html.EscapeString(env))
	fmt.Fprintf(&sb, "Started: %s\n", r.StartedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(&sb, "Scanned: %s pending\n", common.FormatNumber(int64(r.Scanned)))
	fmt.Fprintf(&sb, "Archived: %d | Rejected: %d | Escalated: %d\n", r.Archived, r.Rejected, r.Escalated)
	if r.Skipped > 0 {
		fmt.Fprintf(&sb, "Already applied: %d\n", r.Skipped)
	}
	if r.Failed > 0 {
		fmt.Fprintf(&sb, "<b>Failed petitions: %d</b>\n", r.Failed)
	}
	if r.BonusFailed > 0 {
		fmt.Fprintf(&sb, "<b>Missing escalation bonuses: %d</b>\n", r.BonusFailed)
	}
	if r.BonusReplayed > 0 {
		fmt.Fprintf(&sb, "Late escalation bonuses paid: %d\n", r.BonusReplayed)
	}
	fmt.Fprintf(&sb, "Duration: %s", r.Duration.Round(time.Millisecond))
	return sb.String()
}
