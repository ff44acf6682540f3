package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/avolkov/coaching-backend/internal/core/domain"
)

func newLessonRepoWithMock(t *testing.T) (*LessonRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &LessonRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestLessonGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newLessonRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, title, description, scenario").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLessonGetByIDDecodesJSONColumns(t *testing.T) {
	repo, mock, done := newLessonRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "title", "description", "scenario", "objectives", "content",
		"difficulty_level", "estimated_duration", "tags", "category", "provider",
		"tokens_used", "created_at", "updated_at",
	}).AddRow(
		"lesson-1", "Discovery Calls", "desc", "scenario",
		[]byte(`["Ask open questions"]`), []byte(`{"introduction":"Welcome"}`),
		3, 45, []byte(`["sales"]`), "sales", "openai", 321, now, now,
	)
	mock.ExpectQuery("SELECT id, title, description, scenario").
		WithArgs("lesson-1").
		WillReturnRows(rows)

	draft, err := repo.GetByID(context.Background(), "lesson-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if draft.Objectives[0] != "Ask open questions" {
		t.Fatalf("Objectives = %v", draft.Objectives)
	}
	if draft.Content["introduction"] != "Welcome" {
		t.Fatalf("Content = %v", draft.Content)
	}
	if draft.Category != domain.CategorySales || draft.Provider != domain.ProviderOpenAI {
		t.Fatalf("category/provider = %q/%q", draft.Category, draft.Provider)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestLessonSaveUpserts(t *testing.T) {
	repo, mock, done := newLessonRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	draft := &domain.LessonDraft{
		ID:                "lesson-1",
		Title:             "Discovery Calls",
		Description:       "desc",
		Scenario:          "scenario",
		Objectives:        []string{"Ask open questions"},
		Content:           map[string]any{"introduction": "Welcome"},
		DifficultyLevel:   3,
		EstimatedDuration: 45,
		Tags:              []string{"sales"},
		Category:          domain.CategorySales,
		Provider:          domain.ProviderOpenAI,
		TokensUsed:        321,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	mock.ExpectExec("INSERT INTO lessons").
		WithArgs(
			"lesson-1", "Discovery Calls", "desc", "scenario", sqlmock.AnyArg(), sqlmock.AnyArg(),
			3, 45, sqlmock.AnyArg(), "sales", "openai", 321, now, now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Save(context.Background(), draft); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
