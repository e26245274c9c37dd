package analyses

import (
	"context"
	"time"

	"competitor-knowledge/internal/search"
)

// Repo defines persistence operations for analyses.
// Every step transition is a single call so a crash never leaves a half-written record.
type Repo interface {
	// CreateIfIdle inserts analysis unless the entity already has a pending or processing one,
	// in which case that record is returned with created=false.
	CreateIfIdle(ctx context.Context, analysis Analysis) (existing Analysis, created bool, err error)
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	ListByEntity(ctx context.Context, targetEntityID string, limit int) ([]Analysis, error)
	LatestByEntity(ctx context.Context, targetEntityID string) (Analysis, error)

	MarkStep(ctx context.Context, analysisID, step string, progress int) error
	SaveSearchResults(ctx context.Context, analysisID string, results []search.Result) error
	SaveAIResults(ctx context.Context, analysisID string, results map[string]any) error
	Complete(ctx context.Context, analysisID string, finalData map[string]any, completedAt time.Time) error
	Fail(ctx context.Context, analysisID, code, message, trace string, completedAt time.Time) error
	ResetForRetry(ctx context.Context, analysisID, trigger string) (Analysis, error)
}
