package alert

import (
	"context"
	"fmt"
	"strconv"

	"github.com/slack-go/slack"
)

// Slack posts alerts to a Slack incoming webhook.
type Slack struct {
	webhookURL string
}

// NewSlack creates a Slack notifier for the given incoming-webhook URL.
func NewSlack(webhookURL string) (*Slack, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack alert: webhook url is required")
	}
	return &Slack{webhookURL: webhookURL}, nil
}

func (s *Slack) Name() string { return "slack" }

func (s *Slack) Notify(ctx context.Context, a Alert) error {
	fields := []slack.AttachmentField{
		{Title: "Donor", Value: a.Donor, Short: true},
		{Title: "Amount", Value: "Rp " + strconv.FormatInt(a.Amount, 10), Short: true},
		{Title: "Message ID", Value: a.MessageID, Short: true},
	}
	if a.Status != 0 {
		fields = append(fields, slack.AttachmentField{Title: "Status", Value: strconv.Itoa(a.Status), Short: true})
	}
	if a.Error != "" {
		fields = append(fields, slack.AttachmentField{Title: "Error", Value: a.Error})
	}
	if a.Body != "" {
		fields = append(fields, slack.AttachmentField{Title: "Response", Value: truncate(a.Body, 500)})
	}

	msg := &slack.WebhookMessage{
		Text: a.Title,
		Attachments: []slack.Attachment{{
			Color:  "danger",
			Fields: fields,
		}},
	}
	if err := slack.PostWebhookContext(ctx, s.webhookURL, msg); err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	return nil
}
