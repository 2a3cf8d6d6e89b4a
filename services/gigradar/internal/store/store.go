package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"gigradar/common/database"
	"gigradar/common/database/schema"
	"gigradar/common/database/schema/migrations"
	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/textnorm"

	"go.uber.org/zap"
)

// Store persists marketplace jobs and forum threads. Every operation runs in
// its own transaction; all text is ASCII-normalized on the way in.
type Store struct {
	db     *database.Database
	logger *zap.Logger
	now    func() time.Time
}

func New(db *database.Database, logger *zap.Logger) *Store {
	return &Store{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// Migrate brings the schema up to date, including the posted_to_chat flag on
// databases created before it existed.
func (s *Store) Migrate(ctx context.Context) error {
	applied, err := schema.NewMigrator(s.db, s.logger).Migrate(ctx, migrations.Relational)
	if err != nil {
		return errors.Internal("migrating store", err)
	}
	if applied > 0 {
		s.logger.Info("store schema migrated", zap.Int("applied", applied))
	}
	return nil
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.DB().BeginTx(ctx, nil)
	if err != nil {
		return errors.Internal("beginning transaction", err)
	}
	if err := fn(tx); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.logger.Warn("rollback failed", zap.Error(rerr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return classify("committing transaction", err)
	}
	return nil
}

func (s *Store) q(query string) string {
	return s.db.Rebind(query)
}

func classify(op string, err error) error {
	if isUniqueConstraintError(err) {
		return errors.PersistenceConflict(op, err)
	}
	return errors.Internal(op, err)
}

func isUniqueConstraintError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(textnorm.Normalize(s))
	return sql.NullString{String: s, Valid: s != ""}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func nullInt(i *int) sql.NullInt64 {
	if i == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*i), Valid: true}
}

func nullUnix(t *time.Time) sql.NullInt64 {
	if t == nil || t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

func fromUnix(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0).UTC()
	return &t
}

func encodeSkills(skills []string) (sql.NullString, error) {
	clean := make([]string, 0, len(skills))
	for _, sk := range skills {
		if sk = strings.TrimSpace(textnorm.Normalize(sk)); sk != "" {
			clean = append(clean, sk)
		}
	}
	if len(clean) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(clean)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeSkills(n sql.NullString) []string {
	if !n.Valid || n.String == "" {
		return nil
	}
	var skills []string
	if err := json.Unmarshal([]byte(n.String), &skills); err != nil {
		return nil
	}
	return skills
}
