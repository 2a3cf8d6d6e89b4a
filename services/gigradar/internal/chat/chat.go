// Package chat holds the platform-neutral message and embed types the
// dispatcher renders into.
package chat

import (
	"context"
	"time"
)

const (
	ReactionSearching = "🔍"
	ReactionDone      = "✅"
	ReactionNoResults = "😞"
	ReactionError     = "⚠️"
	ReactionCooldown  = "⏳"
)

const (
	ColorInfo    = 0x14A800
	ColorAlert   = 0xF1C40F
	ColorForum   = 0x3498DB
	ColorWarning = 0xE67E22
	ColorError   = 0xE74C3C
)

type Field struct {
	Name   string
	Value  string
	Inline bool
}

type Embed struct {
	Title       string
	URL         string
	Description string
	Color       int
	Fields      []Field
	Footer      string
	Timestamp   *time.Time
}

// Message is an incoming chat message.
type Message struct {
	ID        string
	ChannelID string
	AuthorID  string
	AuthorBot bool
	Content   string
}

type Messenger interface {
	SendEmbed(ctx context.Context, channelID string, embed Embed) error
	React(ctx context.Context, channelID, messageID, emoji string) error
}
