package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

type LessonRepository struct {
	db *sql.DB
}

func NewLessonRepository(db *sql.DB) *LessonRepository {
	return &LessonRepository{db: db}
}

func (r *LessonRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083001)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS lessons (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	description TEXT NOT NULL,
	scenario TEXT NOT NULL,
	objectives JSONB NOT NULL DEFAULT '[]'::jsonb,
	content JSONB NOT NULL DEFAULT '{}'::jsonb,
	difficulty_level INT NOT NULL,
	estimated_duration INT NOT NULL,
	tags JSONB NOT NULL DEFAULT '[]'::jsonb,
	category TEXT NOT NULL,
	provider TEXT NOT NULL,
	tokens_used INT NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_lessons_category ON lessons(category);
CREATE INDEX IF NOT EXISTS idx_lessons_created_at ON lessons(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Save upserts by id, so generation and refinement share one write path.
func (r *LessonRepository) Save(ctx context.Context, draft *domain.LessonDraft) error {
	objectivesJSON, err := json.Marshal(draft.Objectives)
	if err != nil {
		return fmt.Errorf("marshal objectives: %w", err)
	}
	contentJSON, err := json.Marshal(draft.Content)
	if err != nil {
		return fmt.Errorf("marshal content: %w", err)
	}
	tagsJSON, err := json.Marshal(draft.Tags)
	if err != nil {
		return fmt.Errorf("marshal tags: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO lessons (
	id, title, description, scenario, objectives, content, difficulty_level, estimated_duration, tags, category, provider, tokens_used, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
ON CONFLICT (id) DO UPDATE SET
	title = EXCLUDED.title,
	description = EXCLUDED.description,
	scenario = EXCLUDED.scenario,
	objectives = EXCLUDED.objectives,
	content = EXCLUDED.content,
	difficulty_level = EXCLUDED.difficulty_level,
	estimated_duration = EXCLUDED.estimated_duration,
	tags = EXCLUDED.tags,
	provider = EXCLUDED.provider,
	tokens_used = EXCLUDED.tokens_used,
	updated_at = EXCLUDED.updated_at
`,
		draft.ID, draft.Title, draft.Description, draft.Scenario, objectivesJSON, contentJSON,
		draft.DifficultyLevel, draft.EstimatedDuration, tagsJSON, string(draft.Category),
		string(draft.Provider), draft.TokensUsed, draft.CreatedAt, draft.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert lesson: %w", err)
	}
	return nil
}

func (r *LessonRepository) GetByID(ctx context.Context, id string) (*domain.LessonDraft, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, description, scenario, objectives, content, difficulty_level, estimated_duration, tags, category, provider, tokens_used, created_at, updated_at
FROM lessons
WHERE id = $1
`, id)

	var draft domain.LessonDraft
	var objectivesRaw, contentRaw, tagsRaw []byte
	var category, provider string

	err := row.Scan(
		&draft.ID, &draft.Title, &draft.Description, &draft.Scenario, &objectivesRaw, &contentRaw,
		&draft.DifficultyLevel, &draft.EstimatedDuration, &tagsRaw, &category, &provider,
		&draft.TokensUsed, &draft.CreatedAt, &draft.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get lesson", fmt.Errorf("lesson %s", id))
		}
		return nil, fmt.Errorf("scan lesson: %w", err)
	}

	if err := json.Unmarshal(objectivesRaw, &draft.Objectives); err != nil {
		return nil, fmt.Errorf("unmarshal objectives: %w", err)
	}
	if err := json.Unmarshal(contentRaw, &draft.Content); err != nil {
		return nil, fmt.Errorf("unmarshal content: %w", err)
	}
	if err := json.Unmarshal(tagsRaw, &draft.Tags); err != nil {
		return nil, fmt.Errorf("unmarshal tags: %w", err)
	}
	draft.Category = domain.LessonCategory(category)
	draft.Provider = domain.Provider(provider)
	return &draft, nil
}
