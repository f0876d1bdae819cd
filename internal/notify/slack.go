package notify

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"
)

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// SlackNotifier posts alerts as attachment messages to one channel.
type SlackNotifier struct {
	client  slackClient
	channel string
}

// SlackOpts holds parameters for creating a SlackNotifier.
type SlackOpts struct {
	BotToken string // xoxb-... bot token
	Channel  string // channel ID to post to
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack notifier.
func NewSlack(opts SlackOpts) (*SlackNotifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack bot token is required")
	}
	if opts.Channel == "" {
		return nil, fmt.Errorf("notify: slack channel is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &SlackNotifier{client: client, channel: opts.Channel}, nil
}

// Send posts the alert as a colored attachment.
func (s *SlackNotifier) Send(ctx context.Context, alert Alert) error {
	fields := make([]slackapi.AttachmentField, 0, len(alert.Fields))
	for _, f := range alert.Fields {
		fields = append(fields, slackapi.AttachmentField{Title: f.Name, Value: f.Value, Short: true})
	}
	attachment := slackapi.Attachment{
		Title:  alert.Title,
		Text:   alert.Body,
		Color:  colorFor(alert.Severity),
		Fields: fields,
	}
	_, _, err := s.client.PostMessageContext(ctx, s.channel, slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("notify: slack post: %w", err)
	}
	return nil
}

// Close is a no-op: the Slack web API client holds no connection.
func (s *SlackNotifier) Close() error { return nil }
