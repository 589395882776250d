package notify

import "github.com/nerrad567/gatehouse/internal/infrastructure/config"

// FromConfig builds notifiers for every enabled channel.
func FromConfig(cfg config.NotificationsConfig) []Notifier {
	var notifiers []Notifier
	if cfg.Slack.Enabled {
		notifiers = append(notifiers, NewSlackNotifier(cfg.Slack.WebhookURL, cfg.Slack.Channel))
	}
	if cfg.Email.Enabled {
		e := cfg.Email
		notifiers = append(notifiers, NewEmailNotifier(e.Host, e.Port, e.Username, e.Password, e.From, e.To))
	}
	return notifiers
}
