package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

// UsageStatsRepository records chat and lesson activity and aggregates it
// into the counters the reporting flow consumes.
type UsageStatsRepository struct {
	db *sql.DB
}

func NewUsageStatsRepository(db *sql.DB) *UsageStatsRepository {
	return &UsageStatsRepository{db: db}
}

func (r *UsageStatsRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083003)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS coaching_messages (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	session_id TEXT NOT NULL,
	role TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_coaching_messages_user_time ON coaching_messages(user_id, created_at DESC);

CREATE TABLE IF NOT EXISTS lesson_completions (
	user_id TEXT NOT NULL,
	lesson_id TEXT NOT NULL,
	completed_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, lesson_id)
);

CREATE INDEX IF NOT EXISTS idx_lesson_completions_user_time ON lesson_completions(user_id, completed_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *UsageStatsRepository) RecordMessage(ctx context.Context, userID, sessionID string, role domain.Role, content string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO coaching_messages (id, user_id, session_id, role, content, created_at)
VALUES ($1,$2,$3,$4,$5,$6)
`, uuid.NewString(), userID, sessionID, string(role), content, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert coaching message: %w", err)
	}
	return nil
}

// RecordLessonCompleted is idempotent per user and lesson; repeating a
// lesson does not inflate the completion counter.
func (r *UsageStatsRepository) RecordLessonCompleted(ctx context.Context, userID, lessonID string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO lesson_completions (user_id, lesson_id, completed_at)
VALUES ($1,$2,$3)
ON CONFLICT (user_id, lesson_id) DO NOTHING
`, userID, lessonID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert lesson completion: %w", err)
	}
	return nil
}

func (r *UsageStatsRepository) UsageWindow(ctx context.Context, userID string, from, to time.Time) (domain.UsageWindow, error) {
	win := domain.UsageWindow{PeriodStart: from, PeriodEnd: to}

	row := r.db.QueryRowContext(ctx, `
SELECT COUNT(DISTINCT session_id), COUNT(*)
FROM coaching_messages
WHERE user_id = $1 AND created_at >= $2 AND created_at < $3
`, userID, from, to)
	if err := row.Scan(&win.TotalSessions, &win.TotalMessages); err != nil {
		return domain.UsageWindow{}, fmt.Errorf("aggregate message counters: %w", err)
	}

	row = r.db.QueryRowContext(ctx, `
SELECT COUNT(*)
FROM lesson_completions
WHERE user_id = $1 AND completed_at >= $2 AND completed_at < $3
`, userID, from, to)
	if err := row.Scan(&win.LessonsCompleted); err != nil {
		return domain.UsageWindow{}, fmt.Errorf("aggregate lesson completions: %w", err)
	}

	return win, nil
}

func (r *UsageStatsRepository) RecentUserMessages(ctx context.Context, userID string, from, to time.Time, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT content
FROM coaching_messages
WHERE user_id = $1 AND role = 'user' AND created_at >= $2 AND created_at < $3
ORDER BY created_at DESC
LIMIT $4
`, userID, from, to, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent messages: %w", err)
	}
	defer rows.Close()

	var messages []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, content)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return messages, nil
}
