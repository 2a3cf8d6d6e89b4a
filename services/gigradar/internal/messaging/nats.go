package messaging

import (
	"context"
	"encoding/json"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/models"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const queueGroup = "gigradar-feed"

type NATSBus struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewNATSBus(url string, timeout time.Duration, logger *zap.Logger) (*NATSBus, error) {
	opts := []nats.Option{
		nats.Name("gigradar"),
		nats.Timeout(timeout),
		nats.ReconnectWait(time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, errors.Transport("connecting to NATS", err)
	}

	return &NATSBus{conn: conn, logger: logger}, nil
}

func (b *NATSBus) PublishThreadApproved(ctx context.Context, event models.ThreadApprovedEvent) error {
	_, span := tracer.Start(ctx, "PublishThreadApproved")
	defer span.End()

	data, err := json.Marshal(event)
	if err != nil {
		span.RecordError(err)
		return errors.Internal("marshaling thread approved event", err)
	}

	span.SetAttributes(
		telemetry.String("nats.subject", ThreadApprovedSubject),
		telemetry.Int("message.size", len(data)),
	)

	if err := b.conn.Publish(ThreadApprovedSubject, data); err != nil {
		span.RecordError(err)
		b.logger.Error("failed to publish thread approved event",
			zap.String("link", event.Link),
			zap.Error(err))
		return errors.Transport("publishing to NATS", err)
	}

	b.logger.Debug("published thread approved event",
		zap.String("id", event.ID),
		zap.String("subject", ThreadApprovedSubject))
	return nil
}

func (b *NATSBus) SubscribeThreadApproved(handler ThreadApprovedHandler) (func() error, error) {
	sub, err := b.conn.QueueSubscribe(ThreadApprovedSubject, queueGroup, func(msg *nats.Msg) {
		ctx, span := tracer.Start(context.Background(), "handleThreadApproved")
		defer span.End()

		var event models.ThreadApprovedEvent
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			span.RecordError(err)
			b.logger.Error("failed to decode thread approved event",
				zap.String("subject", msg.Subject),
				zap.Error(err))
			return
		}
		handler(ctx, event)
	})
	if err != nil {
		return nil, errors.Transport("subscribe to "+ThreadApprovedSubject, err)
	}

	b.logger.Info("registered NATS subscription", zap.String("subject", ThreadApprovedSubject))
	return sub.Unsubscribe, nil
}

func (b *NATSBus) Close() {
	if b.conn != nil {
		if err := b.conn.Drain(); err != nil {
			b.conn.Close()
		}
	}
}
