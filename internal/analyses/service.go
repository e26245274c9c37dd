package analyses

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"competitor-knowledge/internal/catalog"
	"competitor-knowledge/internal/pricehistory"
	"competitor-knowledge/internal/queue"
	"competitor-knowledge/internal/shared/metrics"
	"competitor-knowledge/internal/shared/telemetry"
)

// Service schedules analyses and answers status queries.
type Service struct {
	Repo     Repo
	Catalog  catalog.Store
	Queue    queue.Client
	Pipeline *Pipeline
	History  pricehistory.Repo
	Provider string
	Model    string
	Now      func() time.Time
}

// CreateAndRun starts an analysis for an entity and enqueues its first step.
// When the entity already has a pending or processing analysis, that record is returned with created=false.
func (s *Service) CreateAndRun(ctx context.Context, entityID, trigger string) (Analysis, bool, error) {
	analysis, created, err := s.create(ctx, entityID, trigger)
	if err != nil || !created {
		return analysis, created, err
	}
	if err := s.enqueueSearch(ctx, analysis.ID); err != nil {
		return analysis, true, err
	}
	return analysis, true, nil
}

// Retry restarts a failed analysis from the search step.
func (s *Service) Retry(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	analysis, err := s.Repo.ResetForRetry(ctx, analysisID, TriggerRetry)
	if err != nil {
		return Analysis{}, err
	}
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       analysisID,
		"entity_id":         analysis.TargetEntityID,
		"status":            StatusPending,
		"status_transition": "failed->pending",
	})
	metrics.IncAnalysisStarted()
	if err := s.enqueueSearch(ctx, analysisID); err != nil {
		return analysis, err
	}
	return analysis, nil
}

// GetProgress returns the polling view of an analysis.
func (s *Service) GetProgress(ctx context.Context, analysisID string) (Progress, error) {
	analysis, err := s.Get(ctx, analysisID)
	if err != nil {
		return Progress{}, err
	}
	return ProgressOf(analysis), nil
}

// Get returns an analysis by ID.
func (s *Service) Get(ctx context.Context, analysisID string) (Analysis, error) {
	if analysisID == "" {
		return Analysis{}, errors.New("analysisID is required")
	}
	return s.Repo.GetByID(ctx, analysisID)
}

// ListByEntity returns analyses for an entity ordered newest-first.
func (s *Service) ListByEntity(ctx context.Context, entityID string, limit int) ([]Analysis, error) {
	if entityID == "" {
		return nil, errors.New("entityID is required")
	}
	return s.Repo.ListByEntity(ctx, entityID, limit)
}

// PriceHistory returns recorded competitor prices for an entity, oldest first.
func (s *Service) PriceHistory(ctx context.Context, entityID string, limit int) ([]pricehistory.Record, error) {
	if s.History == nil {
		return nil, nil
	}
	return s.History.ListByEntity(ctx, entityID, limit)
}

// Reanalyze starts an analysis unless the latest one for the entity was created within cooldown.
func (s *Service) Reanalyze(ctx context.Context, entityID, trigger string, cooldown time.Duration) (Analysis, bool, error) {
	latest, err := s.Repo.LatestByEntity(ctx, entityID)
	switch {
	case err == nil:
		if cooldown > 0 && s.now().Sub(latest.CreatedAt) < cooldown {
			telemetry.Info("analysis.reanalyze.skipped", map[string]any{
				"entity_id":   entityID,
				"analysis_id": latest.ID,
				"trigger":     trigger,
			})
			return latest, false, ErrCooldown
		}
	case !errors.Is(err, ErrNotFound):
		return Analysis{}, false, err
	}
	return s.CreateAndRun(ctx, entityID, trigger)
}

func (s *Service) create(ctx context.Context, entityID, trigger string) (Analysis, bool, error) {
	if strings.TrimSpace(entityID) == "" {
		return Analysis{}, false, errors.New("entityID is required")
	}
	if _, err := s.Catalog.Get(ctx, entityID); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return Analysis{}, false, ErrEntityNotFound
		}
		return Analysis{}, false, err
	}
	trigger = NormalizeTrigger(trigger)
	now := s.now()
	analysis := Analysis{
		ID:             uuid.NewString(),
		TargetEntityID: entityID,
		Status:         StatusPending,
		CurrentStep:    StepNone,
		TotalSteps:     TotalSteps,
		TriggerSource:  trigger,
		Provider:       normalizeProvider(s.Provider),
		Model:          s.Model,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	stored, created, err := s.Repo.CreateIfIdle(ctx, analysis)
	if err != nil {
		return Analysis{}, false, err
	}
	if !created {
		telemetry.Info("analysis.create.reused", map[string]any{
			"request_id":  requestIDFromContext(ctx),
			"entity_id":   entityID,
			"analysis_id": stored.ID,
			"status":      stored.Status,
		})
		return stored, false, nil
	}
	metrics.IncAnalysisStarted()
	telemetry.Info("analysis.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"analysis_id":       stored.ID,
		"entity_id":         entityID,
		"trigger":           trigger,
		"status":            StatusPending,
		"status_transition": "none->pending",
	})
	return stored, true, nil
}

func (s *Service) enqueueSearch(ctx context.Context, analysisID string) error {
	var err error
	if s.Queue == nil {
		err = errors.New("queue not configured")
	} else {
		err = s.Queue.Send(ctx, queue.NewMessage(analysisID, queue.StepSearch, requestIDFromContext(ctx)))
	}
	if err == nil {
		return nil
	}
	cause := &UpstreamError{Op: "enqueue " + queue.StepSearch, Err: err}
	if ferr := s.failWith(ctx, analysisID, queue.StepSearch, cause); ferr != nil {
		return ferr
	}
	return cause
}

func (s *Service) failWith(ctx context.Context, analysisID, step string, cause error) error {
	if s.Pipeline != nil {
		return s.Pipeline.fail(ctx, analysisID, step, cause)
	}
	p := &Pipeline{Repo: s.Repo, Now: s.Now}
	return p.fail(ctx, analysisID, step, cause)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func normalizeProvider(provider string) string {
	if strings.TrimSpace(provider) == "" {
		return "placeholder"
	}
	return provider
}
