package gateway

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordSink posts transcript lines to one Discord channel.
type DiscordSink struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordSink creates a Discord transcript sink and opens the
// gateway websocket.
func NewDiscordSink(token, channelID string, logger *zap.Logger) (*DiscordSink, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages

	if err := session.Open(); err != nil {
		return nil, fmt.Errorf("discord open: %w", err)
	}
	logger.Info("discord sink connected",
		zap.String("user", session.State.User.Username))

	return &DiscordSink{
		session:   session,
		channelID: channelID,
		logger:    logger,
	}, nil
}

func (d *DiscordSink) Platform() string { return "discord" }

// Post sends one line to the configured channel.
func (d *DiscordSink) Post(_ context.Context, line string) error {
	if _, err := d.session.ChannelMessageSend(d.channelID, line); err != nil {
		return fmt.Errorf("discord send: %w", err)
	}
	return nil
}

// Close shuts down the Discord session.
func (d *DiscordSink) Close() error {
	return d.session.Close()
}
