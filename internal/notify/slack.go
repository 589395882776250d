package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackNotifier posts to a Slack incoming webhook.
type SlackNotifier struct {
	webhookURL string
	channel    string
	post       func(ctx context.Context, url string, msg *slack.WebhookMessage) error
}

// NewSlackNotifier returns a notifier for webhookURL. channel overrides the
// webhook's default channel when non-empty.
func NewSlackNotifier(webhookURL, channel string) *SlackNotifier {
	return &SlackNotifier{
		webhookURL: webhookURL,
		channel:    channel,
		post:       slack.PostWebhookContext,
	}
}

// Name implements Notifier.
func (s *SlackNotifier) Name() string { return "slack" }

// Notify implements Notifier.
func (s *SlackNotifier) Notify(ctx context.Context, ev Event) error {
	msg := &slack.WebhookMessage{
		Channel: s.channel,
		Text:    ev.Title(),
		Blocks:  &slack.Blocks{BlockSet: slackBlocks(ev)},
	}
	if err := s.post(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("posting webhook: %w", err)
	}
	return nil
}

func slackBlocks(ev Event) []slack.Block {
	d := ev.Device
	field := func(label, value string) *slack.TextBlockObject {
		return slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s:*\n%s", label, value), false, false)
	}

	fields := []*slack.TextBlockObject{
		field("Marca", d.Brand),
		field("Número de Serie", d.SerialNumber),
		field("Responsable", d.Responsible),
		field("Movimiento", d.MovementType.Label()),
		field("Estado", d.Status.Label()),
		field("Fecha", ev.When()),
	}

	blocks := []slack.Block{
		slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, ev.Title(), false, false)),
		slack.NewSectionBlock(nil, fields, nil),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*Motivo:* "+d.Reason, false, false), nil, nil),
	}

	footer := fmt.Sprintf("Dentro: %d · Fuera: %d", ev.Occupancy.Inside, ev.Occupancy.Outside)
	if ev.Site != "" {
		footer = ev.Site + " · " + footer
	}
	if ev.Actor != "" {
		footer += " · " + ev.Actor
	}
	blocks = append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject(slack.MarkdownType, footer, false, false)))

	return blocks
}
