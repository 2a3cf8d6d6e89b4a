package bot

import (
	"context"
	"strings"

	"gigradar/services/gigradar/internal/chat"
	"gigradar/services/gigradar/internal/workers"

	"go.uber.org/zap"
)

const prefix = "!"

type Handler interface {
	HandleKeyword(ctx context.Context, msg chat.Message, keyword string) bool
	HandleJobs(ctx context.Context, msg chat.Message, keyword string)
	HandleSkills(ctx context.Context, msg chat.Message, keyword string)
	HandleHelp(ctx context.Context, msg chat.Message)
}

type Submitter interface {
	Submit(name string, fn workers.Task) bool
}

// Router maps incoming chat messages onto dispatcher calls. Commands work
// in any channel; plain messages only trigger a search in the target
// channel.
type Router struct {
	handler   Handler
	pool      Submitter
	channelID string
	logger    *zap.Logger
}

func NewRouter(handler Handler, pool Submitter, channelID string, logger *zap.Logger) *Router {
	return &Router{handler: handler, pool: pool, channelID: channelID, logger: logger}
}

// Route is called on the gateway goroutine; all work is handed to the pool.
func (r *Router) Route(msg chat.Message) {
	if msg.AuthorBot {
		return
	}
	content := strings.TrimSpace(msg.Content)
	if content == "" {
		return
	}

	if strings.HasPrefix(content, prefix) {
		name, arg := splitCommand(content)
		switch name {
		case "jobs":
			r.submit("jobs", func(ctx context.Context) { r.handler.HandleJobs(ctx, msg, arg) })
		case "skills":
			r.submit("skills", func(ctx context.Context) { r.handler.HandleSkills(ctx, msg, arg) })
		case "help_jobs":
			r.submit("help_jobs", func(ctx context.Context) { r.handler.HandleHelp(ctx, msg) })
		default:
			r.logger.Debug("ignoring unknown command", zap.String("command", name))
		}
		return
	}

	if msg.ChannelID != r.channelID {
		return
	}
	r.submit("keyword", func(ctx context.Context) { r.handler.HandleKeyword(ctx, msg, content) })
}

func (r *Router) submit(name string, fn workers.Task) {
	if !r.pool.Submit(name, fn) {
		r.logger.Warn("chat event dropped", zap.String("handler", name))
	}
}

func splitCommand(content string) (string, string) {
	content = strings.TrimPrefix(content, prefix)
	name, arg, _ := strings.Cut(content, " ")
	return strings.ToLower(name), strings.TrimSpace(arg)
}
