package store

import (
	"context"
	"database/sql"

	"gigradar/services/gigradar/internal/errors"
	"gigradar/services/gigradar/internal/models"
	"gigradar/services/gigradar/internal/textnorm"

	"go.uber.org/zap"
)

func (s *Store) ThreadExists(ctx context.Context, link string) (bool, error) {
	var one int
	err := s.db.DB().QueryRowContext(ctx, s.q(`SELECT 1 FROM forum_threads WHERE link = ? LIMIT 1`), link).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, errors.Internal("checking thread", err)
	}
	return true, nil
}

// InsertThread stores a thread unless its link is already present. It
// reports whether a row was written.
func (s *Store) InsertThread(ctx context.Context, t models.ForumThread) (bool, error) {
	if t.Link == "" {
		return false, errors.InvalidInput("thread has no link", nil)
	}
	decision := t.Decision
	if decision != models.DecisionYes {
		decision = models.DecisionNo
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = s.now()
	}

	var inserted bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`
			INSERT INTO forum_threads (link, thread_id, title, author, replies, views, posted_at,
				description, decision, posted_to_chat, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (link) DO NOTHING`),
			t.Link,
			nullString(t.ThreadID),
			textnorm.Normalize(t.Title),
			nullString(t.Author),
			nullInt(t.Replies),
			nullInt(t.Views),
			nullUnix(t.PostedAt),
			nullString(t.Description),
			decision,
			false,
			created.Unix(),
		)
		if err != nil {
			return classify("inserting thread", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return errors.Internal("reading rows affected", err)
		}
		inserted = n > 0
		return nil
	})
	if err != nil {
		s.logger.Warn("thread insert failed", zap.String("link", t.Link), zap.Error(err))
		return false, err
	}
	if !inserted {
		s.logger.Debug("thread already stored", zap.String("link", t.Link))
	}
	return inserted, nil
}

func (s *Store) GetThread(ctx context.Context, link string) (*models.ForumThread, error) {
	rows, err := s.db.DB().QueryContext(ctx, s.q(threadSelect+` WHERE link = ?`), link)
	if err != nil {
		return nil, errors.Internal("reading thread", err)
	}
	threads, err := scanThreads(rows)
	if err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return nil, errors.NotFound("thread "+link, nil)
	}
	return &threads[0], nil
}

// ListUnpostedApproved returns Yes-threads not yet sent to chat, oldest first.
func (s *Store) ListUnpostedApproved(ctx context.Context, limit int) ([]models.ForumThread, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.DB().QueryContext(ctx, s.q(threadSelect+`
		WHERE decision = ? AND posted_to_chat = ?
		ORDER BY created_at ASC, link ASC
		LIMIT ?`), models.DecisionYes, false, limit)
	if err != nil {
		return nil, errors.Internal("listing unposted threads", err)
	}
	return scanThreads(rows)
}

// MarkThreadPosted sets posted_to_chat. The flag is never cleared.
func (s *Store) MarkThreadPosted(ctx context.Context, link string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, s.q(`UPDATE forum_threads SET posted_to_chat = ? WHERE link = ?`), true, link)
		if err != nil {
			return classify("marking thread posted", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errors.NotFound("thread "+link, nil)
		}
		return nil
	})
}

const threadSelect = `
	SELECT link, thread_id, title, author, replies, views, posted_at, description,
		decision, posted_to_chat, created_at
	FROM forum_threads`

func scanThreads(rows *sql.Rows) ([]models.ForumThread, error) {
	defer rows.Close()

	var out []models.ForumThread
	for rows.Next() {
		var (
			t                        models.ForumThread
			threadID, author, desc   sql.NullString
			replies, views, postedAt sql.NullInt64
			created                  int64
		)
		if err := rows.Scan(&t.Link, &threadID, &t.Title, &author, &replies, &views, &postedAt,
			&desc, &t.Decision, &t.PostedToChat, &created); err != nil {
			return nil, errors.Internal("scanning thread", err)
		}
		t.ThreadID = threadID.String
		t.Author = author.String
		t.Description = desc.String
		if replies.Valid {
			n := int(replies.Int64)
			t.Replies = &n
		}
		if views.Valid {
			n := int(views.Int64)
			t.Views = &n
		}
		t.PostedAt = fromUnix(postedAt)
		t.CreatedAt = *fromUnix(sql.NullInt64{Int64: created, Valid: true})
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Internal("iterating threads", err)
	}
	return out, nil
}
