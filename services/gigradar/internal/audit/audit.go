package audit

import (
	"context"
	"database/sql"
	"time"

	"gigradar/common/telemetry"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/messaging"

	"go.uber.org/zap"
)

var tracer = telemetry.GetTracer("gigradar/audit")

const (
	SourceForum       = "forum"
	SourceMarketplace = "marketplace"
)

// Decision is one classifier verdict as written to the analytics store.
type Decision struct {
	ID        string
	Source    string
	Subject   string
	Title     string
	Label     string
	Model     string
	LatencyMS uint32
	CreatedAt time.Time
}

type Recorder interface {
	RecordDecision(ctx context.Context, d Decision) error
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

// SQLRecorder appends decisions to the classifier_decisions table.
type SQLRecorder struct {
	db     execer
	logger *zap.Logger
	now    func() time.Time
}

func NewSQLRecorder(db execer, logger *zap.Logger) *SQLRecorder {
	return &SQLRecorder{db: db, logger: logger, now: time.Now}
}

func (r *SQLRecorder) RecordDecision(ctx context.Context, d Decision) error {
	ctx, span := tracer.Start(ctx, "RecordDecision")
	defer span.End()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = r.now()
	}
	d.CreatedAt = d.CreatedAt.UTC().Truncate(time.Second)
	if d.ID == "" {
		d.ID = messaging.NewEventID(d.CreatedAt)
	}
	span.SetAttributes(
		telemetry.String("decision.source", d.Source),
		telemetry.String("decision.label", d.Label),
	)

	query := `
		INSERT INTO classifier_decisions (
			id, source, subject, title, label, model, latency_ms, created_at
		) VALUES (
			?, ?, ?, ?, ?, ?, ?, ?
		)
	`
	if _, err := r.db.ExecContext(ctx, query,
		d.ID,
		d.Source,
		d.Subject,
		d.Title,
		d.Label,
		d.Model,
		d.LatencyMS,
		d.CreatedAt,
	); err != nil {
		span.RecordError(err)
		r.logger.Warn("failed to record classifier decision",
			zap.String("subject", d.Subject),
			zap.Error(err))
		return errors.Internal("insert classifier decision", err)
	}

	r.logger.Debug("recorded classifier decision",
		zap.String("id", d.ID),
		zap.String("label", d.Label))
	return nil
}

type Noop struct{}

func (Noop) RecordDecision(context.Context, Decision) error { return nil }

// Latency converts a classifier round trip into whole milliseconds.
func Latency(d time.Duration) uint32 {
	if d <= 0 {
		return 0
	}
	return uint32(d / time.Millisecond)
}
