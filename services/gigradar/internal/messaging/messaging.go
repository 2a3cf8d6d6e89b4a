package messaging

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/models"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/messaging")

const ThreadApprovedSubject = "forum.thread.approved"

type ThreadApprovedHandler func(ctx context.Context, event models.ThreadApprovedEvent)

// Bus carries approved-thread notifications from the forum scraper to the
// chat feed.
type Bus interface {
	PublishThreadApproved(ctx context.Context, event models.ThreadApprovedEvent) error
	SubscribeThreadApproved(handler ThreadApprovedHandler) (func() error, error)
	Close()
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.Reader, 0)
)

// NewEventID returns a sortable unique id.
func NewEventID(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// NewThreadApproved builds the event for a freshly approved thread.
func NewThreadApproved(t models.ForumThread, at time.Time) models.ThreadApprovedEvent {
	return models.ThreadApprovedEvent{
		ID:         NewEventID(at),
		Link:       t.Link,
		Title:      t.Title,
		ApprovedAt: at.UTC(),
	}
}

// LocalBus delivers events to in-process subscribers. It is used when no
// NATS server is configured.
type LocalBus struct {
	mu       sync.RWMutex
	handlers map[int]ThreadApprovedHandler
	next     int
	logger   *zap.Logger
}

func NewLocalBus(logger *zap.Logger) *LocalBus {
	return &LocalBus{handlers: make(map[int]ThreadApprovedHandler), logger: logger}
}

func (b *LocalBus) PublishThreadApproved(ctx context.Context, event models.ThreadApprovedEvent) error {
	_, span := tracer.Start(ctx, "PublishThreadApproved")
	defer span.End()
	span.SetAttributes(telemetry.String("bus", "local"))

	b.mu.RLock()
	handlers := make([]ThreadApprovedHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		go h(context.WithoutCancel(ctx), event)
	}
	b.logger.Debug("published thread approved event",
		zap.String("id", event.ID),
		zap.Int("subscribers", len(handlers)))
	return nil
}

func (b *LocalBus) SubscribeThreadApproved(handler ThreadApprovedHandler) (func() error, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.next
	b.next++
	b.handlers[id] = handler
	return func() error {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
		return nil
	}, nil
}

func (b *LocalBus) Close() {
	b.mu.Lock()
	b.handlers = make(map[int]ThreadApprovedHandler)
	b.mu.Unlock()
}
