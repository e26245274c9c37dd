package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

var analysisColumnNames = []string{
	"id", "target_entity_id", "status", "current_step", "progress", "total_steps",
	"trigger_source", "provider", "model", "search_results", "ai_results", "final_data",
	"error_code", "error_message", "error_trace", "created_at", "updated_at", "started_at", "completed_at",
}

func newMockRepo(t *testing.T) (*PGRepo, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return &PGRepo{DB: db}, mock
}

func TestPGRepoCreateIfIdleInserts(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	analysis := Analysis{
		ID:             "11111111-1111-1111-1111-111111111111",
		TargetEntityID: "sku-1",
		Status:         StatusPending,
		TotalSteps:     TotalSteps,
		TriggerSource:  TriggerManual,
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		CreatedAt:      now,
	}

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("sku-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM analyses").WithArgs("sku-1").WillReturnRows(sqlmock.NewRows(analysisColumnNames))
	mock.ExpectExec("INSERT INTO analyses").
		WithArgs(analysis.ID, "sku-1", StatusPending, "", 0, TotalSteps, TriggerManual, "openai", "gpt-4o-mini", now).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	got, created, err := repo.CreateIfIdle(context.Background(), analysis)
	if err != nil {
		t.Fatalf("CreateIfIdle: %v", err)
	}
	if !created || got.ID != analysis.ID {
		t.Fatalf("expected new analysis, got created=%v id=%s", created, got.ID)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCreateIfIdleReturnsActive(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs("sku-1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM analyses").WithArgs("sku-1").WillReturnRows(
		sqlmock.NewRows(analysisColumnNames).AddRow(
			"existing", "sku-1", StatusProcessing, StepSearching, 1, 3,
			TriggerManual, "openai", "m", nil, nil, nil,
			nil, nil, nil, now, now, now, nil,
		),
	)
	mock.ExpectCommit()

	got, created, err := repo.CreateIfIdle(context.Background(), Analysis{ID: "new", TargetEntityID: "sku-1", CreatedAt: now})
	if err != nil {
		t.Fatalf("CreateIfIdle: %v", err)
	}
	if created || got.ID != "existing" || got.CurrentStep != StepSearching {
		t.Fatalf("expected existing active analysis, got %+v created=%v", got, created)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoGetByIDDecodesPayloads(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectQuery("FROM analyses").WithArgs("a-1").WillReturnRows(
		sqlmock.NewRows(analysisColumnNames).AddRow(
			"a-1", "sku-1", StatusProcessing, StepAnalyzing, 2, 3,
			TriggerManual, "openai", "m", `[{"url":"https://x.test","title":"X","content":"c"}]`, nil, nil,
			nil, nil, nil, now, now, now, nil,
		),
	)

	got, err := repo.GetByID(context.Background(), "a-1")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(got.SearchResults) != 1 || got.SearchResults[0].URL != "https://x.test" {
		t.Fatalf("unexpected search results: %+v", got.SearchResults)
	}
	if got.AIResults != nil || got.FinalData != nil {
		t.Fatalf("expected only search results populated")
	}
}

func TestPGRepoGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery("FROM analyses").WithArgs("missing").WillReturnRows(sqlmock.NewRows(analysisColumnNames))

	if _, err := repo.GetByID(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPGRepoSaveAIResultsClearsSearch(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`SET ai_results = \$1::jsonb,\s+search_results = NULL`).
		WithArgs(`{"competitors":[]}`, "a-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.SaveAIResults(context.Background(), "a-1", map[string]any{"competitors": []any{}}); err != nil {
		t.Fatalf("SaveAIResults: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoCompleteMissingRow(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec("SET status = 'completed'").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), "a-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM analyses").WithArgs("a-1").WillReturnRows(sqlmock.NewRows([]string{"exists"}))

	err := repo.Complete(context.Background(), "a-1", map[string]any{"competitors": []any{}}, time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoFailSkipsFinishedRecord(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(`SET status = 'failed'(.|\n)*status IN \('pending', 'processing'\)`).
		WithArgs(ErrorCodeUpstream, "late", "", sqlmock.AnyArg(), "a-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT 1 FROM analyses").WithArgs("a-1").WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	err := repo.Fail(context.Background(), "a-1", ErrorCodeUpstream, "late", "", time.Now())
	if !errors.Is(err, ErrTerminal) {
		t.Fatalf("expected ErrTerminal, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}

func TestPGRepoResetForRetryRejectsNonFailed(t *testing.T) {
	repo, mock := newMockRepo(t)
	now := time.Now().UTC()
	mock.ExpectExec("SET status = 'pending'").
		WithArgs(TriggerRetry, "a-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("FROM analyses").WithArgs("a-1").WillReturnRows(
		sqlmock.NewRows(analysisColumnNames).AddRow(
			"a-1", "sku-1", StatusCompleted, "", 0, 3,
			TriggerManual, "openai", "m", nil, nil, `{"competitors":[]}`,
			nil, nil, nil, now, now, now, now,
		),
	)

	if _, err := repo.ResetForRetry(context.Background(), "a-1", TriggerRetry); !errors.Is(err, ErrNotFailed) {
		t.Fatalf("expected ErrNotFailed, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("ExpectationsWereMet: %v", err)
	}
}
