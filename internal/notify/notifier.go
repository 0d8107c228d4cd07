// Package notify sends operational alerts to Slack for the Anomaly
// Detector and Self-Healing Controller. It is a noop when unconfigured,
// builds messages with Slack Block Kit, and only sends outbound; there is
// no inbound Slack command surface.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// Severity mirrors the anomaly/remediation severities this package renders.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityMajor    Severity = "major"
	SeverityCritical Severity = "critical"
)

func emoji(s Severity) string {
	switch s {
	case SeverityCritical:
		return "🔴"
	case SeverityMajor:
		return "🟠"
	case SeverityWarning:
		return "🟡"
	default:
		return "🔵"
	}
}

// Alert is the data needed to render one notification.
type Alert struct {
	ID          string
	Title       string
	Severity    Severity
	Description string
	AgentID     string
	TenantID    string
	Action      string // e.g. "quarantined", "suspended", "resubmitted"
}

// Notifier posts alerts to the configured Slack channel. If botToken is
// empty it is a noop, logging at debug level instead of erroring, so the
// control plane runs fully functional without Slack configured.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier builds a Notifier. An empty botToken disables Slack delivery.
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// Enabled reports whether this notifier will actually deliver to Slack.
func (n *Notifier) Enabled() bool {
	return n.client != nil && n.channel != ""
}

// PostAlert sends alert to the configured channel, returning its message
// timestamp for later threading (e.g. a resolution follow-up).
func (n *Notifier) PostAlert(ctx context.Context, alert Alert) (ts string, err error) {
	if !n.Enabled() {
		n.logger.Debug("slack notifier disabled, skipping alert", "alert_id", alert.ID, "title", alert.Title)
		return "", nil
	}

	blocks := alertBlocks(alert)
	opts := []goslack.MsgOption{
		goslack.MsgOptionBlocks(blocks...),
		goslack.MsgOptionText(fmt.Sprintf("%s %s: %s", emoji(alert.Severity), alert.Severity, alert.Title), false),
	}

	_, ts, err = n.client.PostMessageContext(ctx, n.channel, opts...)
	if err != nil {
		return "", fmt.Errorf("posting alert to slack: %w", err)
	}

	n.logger.Info("posted alert to slack", "alert_id", alert.ID, "ts", ts)
	return ts, nil
}

// PostThreadReply posts a follow-up (e.g. "self-healing resubmitted the
// workflow") threaded under an earlier alert.
func (n *Notifier) PostThreadReply(ctx context.Context, threadTS, text string) error {
	if !n.Enabled() {
		return nil
	}
	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		goslack.MsgOptionText(text, false), goslack.MsgOptionTS(threadTS))
	if err != nil {
		return fmt.Errorf("posting thread reply to slack: %w", err)
	}
	return nil
}

func alertBlocks(alert Alert) []goslack.Block {
	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType,
			fmt.Sprintf("%s %s: %s", emoji(alert.Severity), alert.Severity, alert.Title), true, false))

	var fields []*goslack.TextBlockObject
	if alert.AgentID != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Agent:* %s", alert.AgentID), false, false))
	}
	if alert.TenantID != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Tenant:* %s", alert.TenantID), false, false))
	}
	if alert.Action != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Action:* %s", alert.Action), false, false))
	}

	blocks := []goslack.Block{header}
	if len(fields) > 0 {
		blocks = append(blocks, goslack.NewSectionBlock(nil, fields, nil))
	}
	if alert.Description != "" {
		blocks = append(blocks, goslack.NewSectionBlock(
			goslack.NewTextBlockObject(goslack.MarkdownType, truncate(alert.Description, 500), false, false), nil, nil))
	}
	return blocks
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
