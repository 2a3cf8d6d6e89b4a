package discord

import (
	"context"
	"sync"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/chat"
	"gigradar/services/gigradar/internal/errors"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/chat/discord")

// Embed field limits enforced by the gateway.
const (
	maxTitle       = 256
	maxDescription = 4096
	maxFieldName   = 256
	maxFieldValue  = 1024
	maxFields      = 25
)

// Client is the single long-lived gateway connection.
type Client struct {
	session *discordgo.Session
	logger  *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

func New(token string, logger *zap.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Internal("creating discord session", err)
	}
	session.Identify.Intents = discordgo.IntentsGuildMessages |
		discordgo.IntentsDirectMessages |
		discordgo.IntentsMessageContent

	c := &Client{
		session: session,
		logger:  logger,
		ready:   make(chan struct{}),
	}
	session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		c.logger.Info("discord connection ready",
			zap.String("user", r.User.Username),
			zap.Int("guilds", len(r.Guilds)))
		c.readyOnce.Do(func() { close(c.ready) })
	})
	return c, nil
}

// OnMessage registers handler for every message the bot can see. The
// handler runs on the gateway goroutine and must not block.
func (c *Client) OnMessage(handler func(chat.Message)) {
	c.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		if m.Author == nil {
			return
		}
		handler(chat.Message{
			ID:        m.ID,
			ChannelID: m.ChannelID,
			AuthorID:  m.Author.ID,
			AuthorBot: m.Author.Bot,
			Content:   m.Content,
		})
	})
}

func (c *Client) Open() error {
	if err := c.session.Open(); err != nil {
		return errors.Transport("opening discord gateway", err)
	}
	return nil
}

// Ready is closed once the gateway has identified.
func (c *Client) Ready() <-chan struct{} {
	return c.ready
}

func (c *Client) Close() error {
	return c.session.Close()
}

func (c *Client) SendEmbed(ctx context.Context, channelID string, embed chat.Embed) error {
	_, span := tracer.Start(ctx, "SendEmbed")
	defer span.End()
	span.SetAttributes(telemetry.String("chat.channel", channelID))

	if _, err := c.session.ChannelMessageSendEmbed(channelID, toDiscord(embed), discordgo.WithContext(ctx)); err != nil {
		span.RecordError(err)
		return errors.Transport("sending embed", err)
	}
	return nil
}

func (c *Client) React(ctx context.Context, channelID, messageID, emoji string) error {
	if err := c.session.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx)); err != nil {
		return errors.Transport("adding reaction", err)
	}
	return nil
}

func toDiscord(e chat.Embed) *discordgo.MessageEmbed {
	out := &discordgo.MessageEmbed{
		Title:       clip(e.Title, maxTitle),
		URL:         e.URL,
		Description: clip(e.Description, maxDescription),
		Color:       e.Color,
	}
	for i, f := range e.Fields {
		if i == maxFields {
			break
		}
		out.Fields = append(out.Fields, &discordgo.MessageEmbedField{
			Name:   clip(f.Name, maxFieldName),
			Value:  clip(f.Value, maxFieldValue),
			Inline: f.Inline,
		})
	}
	if e.Footer != "" {
		out.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if e.Timestamp != nil {
		out.Timestamp = e.Timestamp.UTC().Format(time.RFC3339)
	}
	return out
}

func clip(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
