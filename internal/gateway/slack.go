package gateway

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackSink posts transcript lines to one Slack channel.
type SlackSink struct {
	client    *slack.Client
	channelID string
	logger    *zap.Logger
}

// NewSlackSink creates a Slack transcript sink. botToken is the Bot
// User OAuth Token (xoxb-...).
func NewSlackSink(botToken, channelID string, logger *zap.Logger) *SlackSink {
	return &SlackSink{
		client:    slack.New(botToken),
		channelID: channelID,
		logger:    logger,
	}
}

func (s *SlackSink) Platform() string { return "slack" }

// Post sends one line to the configured channel.
func (s *SlackSink) Post(ctx context.Context, line string) error {
	_, _, err := s.client.PostMessageContext(ctx, s.channelID,
		slack.MsgOptionText(line, false))
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	return nil
}

// Close is a no-op; the Slack client holds no connection.
func (s *SlackSink) Close() error { return nil }
