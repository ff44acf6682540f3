package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

type ReportRepository struct {
	db *sql.DB
}

func NewReportRepository(db *sql.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

func (r *ReportRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026083002)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS progress_reports (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	period_start TIMESTAMPTZ NOT NULL,
	period_end TIMESTAMPTZ NOT NULL,
	summary TEXT NOT NULL,
	strengths JSONB NOT NULL DEFAULT '[]'::jsonb,
	areas_for_improvement JSONB NOT NULL DEFAULT '[]'::jsonb,
	recommendations JSONB NOT NULL DEFAULT '[]'::jsonb,
	engagement_score DOUBLE PRECISION NOT NULL,
	detailed_analysis JSONB NOT NULL DEFAULT '{}'::jsonb,
	total_sessions INT NOT NULL,
	lessons_completed INT NOT NULL,
	total_messages INT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_progress_reports_user ON progress_reports(user_id, created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ReportRepository) Save(ctx context.Context, report *domain.ProgressReport) error {
	strengthsJSON, err := json.Marshal(report.Strengths)
	if err != nil {
		return fmt.Errorf("marshal strengths: %w", err)
	}
	areasJSON, err := json.Marshal(report.AreasForImprovement)
	if err != nil {
		return fmt.Errorf("marshal areas: %w", err)
	}
	recsJSON, err := json.Marshal(report.Recommendations)
	if err != nil {
		return fmt.Errorf("marshal recommendations: %w", err)
	}
	analysisJSON, err := json.Marshal(report.DetailedAnalysis)
	if err != nil {
		return fmt.Errorf("marshal detailed analysis: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO progress_reports (
	id, user_id, period_start, period_end, summary, strengths, areas_for_improvement, recommendations, engagement_score, detailed_analysis, total_sessions, lessons_completed, total_messages, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)
`,
		report.ID, report.UserID, report.PeriodStart, report.PeriodEnd, report.Summary,
		strengthsJSON, areasJSON, recsJSON, report.EngagementScore, analysisJSON,
		report.TotalSessions, report.LessonsCompleted, report.TotalMessages, report.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert progress report: %w", err)
	}
	return nil
}

func (r *ReportRepository) GetByID(ctx context.Context, id string) (*domain.ProgressReport, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, user_id, period_start, period_end, summary, strengths, areas_for_improvement, recommendations, engagement_score, detailed_analysis, total_sessions, lessons_completed, total_messages, created_at
FROM progress_reports
WHERE id = $1
`, id)

	var report domain.ProgressReport
	var strengthsRaw, areasRaw, recsRaw, analysisRaw []byte

	err := row.Scan(
		&report.ID, &report.UserID, &report.PeriodStart, &report.PeriodEnd, &report.Summary,
		&strengthsRaw, &areasRaw, &recsRaw, &report.EngagementScore, &analysisRaw,
		&report.TotalSessions, &report.LessonsCompleted, &report.TotalMessages, &report.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get report", fmt.Errorf("report %s", id))
		}
		return nil, fmt.Errorf("scan progress report: %w", err)
	}

	if err := json.Unmarshal(strengthsRaw, &report.Strengths); err != nil {
		return nil, fmt.Errorf("unmarshal strengths: %w", err)
	}
	if err := json.Unmarshal(areasRaw, &report.AreasForImprovement); err != nil {
		return nil, fmt.Errorf("unmarshal areas: %w", err)
	}
	if err := json.Unmarshal(recsRaw, &report.Recommendations); err != nil {
		return nil, fmt.Errorf("unmarshal recommendations: %w", err)
	}
	if err := json.Unmarshal(analysisRaw, &report.DetailedAnalysis); err != nil {
		return nil, fmt.Errorf("unmarshal detailed analysis: %w", err)
	}
	return &report, nil
}
