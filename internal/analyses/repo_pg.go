package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"competitor-knowledge/internal/search"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const analysisColumns = `id, target_entity_id, status, current_step, progress, total_steps,
       trigger_source, provider, model, search_results, ai_results, final_data,
       error_code, error_message, error_trace, created_at, updated_at, started_at, completed_at`

// CreateIfIdle inserts analysis unless the entity has a pending or processing analysis.
func (r *PGRepo) CreateIfIdle(ctx context.Context, analysis Analysis) (Analysis, bool, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return Analysis{}, false, err
	}
	defer tx.Rollback()

	// Serialize per-entity so two triggers cannot both create.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, analysis.TargetEntityID); err != nil {
		return Analysis{}, false, err
	}

	active, err := scanAnalysis(tx.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE target_entity_id = $1 AND status IN ('pending', 'processing')
ORDER BY created_at DESC
LIMIT 1`, analysis.TargetEntityID))
	if err == nil {
		if err := tx.Commit(); err != nil {
			return Analysis{}, false, err
		}
		return active, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Analysis{}, false, err
	}

	const insert = `
INSERT INTO analyses (
	id, target_entity_id, status, current_step, progress, total_steps,
	trigger_source, provider, model, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)`
	if _, err := tx.ExecContext(ctx, insert,
		analysis.ID,
		analysis.TargetEntityID,
		analysis.Status,
		analysis.CurrentStep,
		analysis.Progress,
		analysis.TotalSteps,
		analysis.TriggerSource,
		analysis.Provider,
		analysis.Model,
		analysis.CreatedAt,
	); err != nil {
		return Analysis{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return Analysis{}, false, err
	}
	analysis.UpdatedAt = analysis.CreatedAt
	return analysis, true, nil
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	return scanAnalysis(r.DB.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE id = $1::uuid
LIMIT 1`, analysisID))
}

// LatestByEntity returns the newest analysis for an entity.
func (r *PGRepo) LatestByEntity(ctx context.Context, targetEntityID string) (Analysis, error) {
	return scanAnalysis(r.DB.QueryRowContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE target_entity_id = $1
ORDER BY created_at DESC
LIMIT 1`, targetEntityID))
}

// ListByEntity lists analyses for an entity ordered newest-first.
func (r *PGRepo) ListByEntity(ctx context.Context, targetEntityID string, limit int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	rows, err := r.DB.QueryContext(ctx, `
SELECT `+analysisColumns+`
FROM analyses
WHERE target_entity_id = $1
ORDER BY created_at DESC
LIMIT $2`, targetEntityID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkStep moves an active analysis into processing at the given step.
func (r *PGRepo) MarkStep(ctx context.Context, analysisID, step string, progress int) error {
	const query = `
UPDATE analyses
SET status = 'processing',
    current_step = $1,
    progress = $2,
    started_at = COALESCE(started_at, now()),
    updated_at = now()
WHERE id = $3::uuid AND status IN ('pending', 'processing')`
	return r.exec(ctx, query, step, progress, analysisID)
}

// SaveSearchResults stores search output and clears later-stage payloads.
func (r *PGRepo) SaveSearchResults(ctx context.Context, analysisID string, results []search.Result) error {
	const query = `
UPDATE analyses
SET search_results = $1::jsonb,
    ai_results = NULL,
    final_data = NULL,
    updated_at = now()
WHERE id = $2::uuid AND status IN ('pending', 'processing')`
	payload, err := marshalJSONB(results)
	if err != nil {
		return err
	}
	return r.exec(ctx, query, payload, analysisID)
}

// SaveAIResults stores AI output and drops the search payload in the same write.
func (r *PGRepo) SaveAIResults(ctx context.Context, analysisID string, results map[string]any) error {
	const query = `
UPDATE analyses
SET ai_results = $1::jsonb,
    search_results = NULL,
    updated_at = now()
WHERE id = $2::uuid AND status IN ('pending', 'processing')`
	payload, err := marshalJSONB(results)
	if err != nil {
		return err
	}
	return r.exec(ctx, query, payload, analysisID)
}

// Complete stores final data and marks the analysis completed.
func (r *PGRepo) Complete(ctx context.Context, analysisID string, finalData map[string]any, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = 'completed',
    final_data = $1::jsonb,
    search_results = NULL,
    ai_results = NULL,
    current_step = '',
    progress = 0,
    error_code = NULL,
    error_message = NULL,
    error_trace = NULL,
    completed_at = $2,
    updated_at = now()
WHERE id = $3::uuid AND status IN ('pending', 'processing')`
	payload, err := marshalJSONB(finalData)
	if err != nil {
		return err
	}
	return r.exec(ctx, query, payload, completedAt, analysisID)
}

// Fail marks the analysis failed with error details.
func (r *PGRepo) Fail(ctx context.Context, analysisID, code, message, trace string, completedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = 'failed',
    current_step = '',
    error_code = $1,
    error_message = $2,
    error_trace = NULLIF($3, ''),
    completed_at = $4,
    updated_at = now()
WHERE id = $5::uuid AND status IN ('pending', 'processing')`
	return r.exec(ctx, query, code, message, trace, completedAt, analysisID)
}

// ResetForRetry returns a failed analysis to pending with a clean slate.
func (r *PGRepo) ResetForRetry(ctx context.Context, analysisID, trigger string) (Analysis, error) {
	const query = `
UPDATE analyses
SET status = 'pending',
    current_step = '',
    progress = 0,
    trigger_source = $1,
    search_results = NULL,
    ai_results = NULL,
    final_data = NULL,
    error_code = NULL,
    error_message = NULL,
    error_trace = NULL,
    started_at = NULL,
    completed_at = NULL,
    updated_at = now()
WHERE id = $2::uuid AND status = 'failed'`
	res, err := r.DB.ExecContext(ctx, query, trigger, analysisID)
	if err != nil {
		return Analysis{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := r.GetByID(ctx, analysisID); err != nil {
			return Analysis{}, err
		}
		return Analysis{}, ErrNotFailed
	}
	return r.GetByID(ctx, analysisID)
}

// exec runs an update guarded on an active status. The analysis id must be the last argument.
// When no row changed it reports ErrNotFound or ErrTerminal.
func (r *PGRepo) exec(ctx context.Context, query string, args ...any) error {
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}
	var exists int
	err = r.DB.QueryRowContext(ctx, `SELECT 1 FROM analyses WHERE id = $1::uuid`, args[len(args)-1]).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrTerminal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var searchResults sql.NullString
	var aiResults sql.NullString
	var finalData sql.NullString
	var errorCode sql.NullString
	var errorMessage sql.NullString
	var errorTrace sql.NullString
	var startedAt sql.NullTime
	var completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&a.TargetEntityID,
		&a.Status,
		&a.CurrentStep,
		&a.Progress,
		&a.TotalSteps,
		&a.TriggerSource,
		&a.Provider,
		&a.Model,
		&searchResults,
		&aiResults,
		&finalData,
		&errorCode,
		&errorMessage,
		&errorTrace,
		&a.CreatedAt,
		&a.UpdatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Analysis{}, ErrNotFound
		}
		return Analysis{}, err
	}
	if searchResults.Valid {
		if err := json.Unmarshal([]byte(searchResults.String), &a.SearchResults); err != nil {
			a.SearchResults = nil
		}
	}
	if aiResults.Valid {
		if err := json.Unmarshal([]byte(aiResults.String), &a.AIResults); err != nil {
			a.AIResults = nil
		}
	}
	if finalData.Valid {
		if err := json.Unmarshal([]byte(finalData.String), &a.FinalData); err != nil {
			a.FinalData = nil
		}
	}
	if errorCode.Valid {
		a.ErrorCode = errorCode.String
	}
	if errorMessage.Valid {
		a.ErrorMessage = &errorMessage.String
	}
	if errorTrace.Valid {
		a.ErrorTrace = &errorTrace.String
	}
	if startedAt.Valid {
		a.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		a.CompletedAt = &completedAt.Time
	}
	return a, nil
}

func marshalJSONB(value any) (any, error) {
	if value == nil {
		return nil, nil
	}
	payload, err := json.Marshal(value)
	if err != nil {
		return nil, err
	}
	if string(payload) == "null" {
		return nil, nil
	}
	return string(payload), nil
}
