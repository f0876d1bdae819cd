package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Close() error
}

// DiscordNotifier posts alerts as embeds to one channel over the REST API.
type DiscordNotifier struct {
	sess      session
	channelID string
}

// DiscordOpts holds parameters for creating a DiscordNotifier.
type DiscordOpts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// NewDiscord creates a Discord notifier.
func NewDiscord(opts DiscordOpts) (*DiscordNotifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: discord bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: discord channel id is required")
	}
	sess := opts.Session
	if sess == nil {
		s, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("notify: discord session: %w", err)
		}
		sess = s
	}
	return &DiscordNotifier{sess: sess, channelID: opts.ChannelID}, nil
}

// Send posts the alert as an embed.
func (d *DiscordNotifier) Send(ctx context.Context, alert Alert) error {
	fields := make([]*discordgo.MessageEmbedField, 0, len(alert.Fields))
	for _, f := range alert.Fields {
		fields = append(fields, &discordgo.MessageEmbedField{Name: f.Name, Value: f.Value, Inline: true})
	}
	embed := &discordgo.MessageEmbed{
		Title:       alert.Title,
		Description: alert.Body,
		Color:       hexColor(colorFor(alert.Severity)),
		Fields:      fields,
	}
	if _, err := d.sess.ChannelMessageSendEmbed(d.channelID, embed, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("notify: discord post: %w", err)
	}
	return nil
}

// Close shuts the underlying session down.
func (d *DiscordNotifier) Close() error { return d.sess.Close() }

// hexColor converts a "#rrggbb" hint to the integer Discord expects.
func hexColor(hint string) int {
	v, err := strconv.ParseInt(strings.TrimPrefix(hint, "#"), 16, 32)
	if err != nil {
		return 0
	}
	return int(v)
}
