package analyses

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"competitor-knowledge/internal/search"
)

// MemoryRepo is an in-memory Repo implementation.
type MemoryRepo struct {
	mu    sync.Mutex
	items map[string]Analysis
	now   func() time.Time
}

// NewMemoryRepo creates a new in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Analysis), now: time.Now}
}

// CreateIfIdle inserts analysis unless the entity has an active one.
func (r *MemoryRepo) CreateIfIdle(_ context.Context, analysis Analysis) (Analysis, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if active, ok := r.latestLocked(analysis.TargetEntityID, true); ok {
		return clone(active), false, nil
	}
	if analysis.UpdatedAt.IsZero() {
		analysis.UpdatedAt = analysis.CreatedAt
	}
	r.items[analysis.ID] = clone(analysis)
	return clone(analysis), true, nil
}

// GetByID returns an analysis by ID.
func (r *MemoryRepo) GetByID(_ context.Context, analysisID string) (Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[analysisID]
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return clone(a), nil
}

// ListByEntity returns analyses for an entity, newest first.
func (r *MemoryRepo) ListByEntity(_ context.Context, targetEntityID string, limit int) ([]Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.forEntityLocked(targetEntityID)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	for i := range out {
		out[i] = clone(out[i])
	}
	return out, nil
}

// LatestByEntity returns the newest analysis for an entity.
func (r *MemoryRepo) LatestByEntity(_ context.Context, targetEntityID string) (Analysis, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.latestLocked(targetEntityID, false)
	if !ok {
		return Analysis{}, ErrNotFound
	}
	return clone(a), nil
}

// MarkStep moves an active analysis into processing at the given step.
func (r *MemoryRepo) MarkStep(_ context.Context, analysisID, step string, progress int) error {
	return r.updateActive(analysisID, func(a *Analysis) error {
		now := r.now().UTC()
		a.Status = StatusProcessing
		a.CurrentStep = step
		a.Progress = progress
		if a.StartedAt == nil {
			a.StartedAt = &now
		}
		return nil
	})
}

// SaveSearchResults stores search output and clears later-stage payloads.
func (r *MemoryRepo) SaveSearchResults(_ context.Context, analysisID string, results []search.Result) error {
	return r.updateActive(analysisID, func(a *Analysis) error {
		a.SearchResults = append([]search.Result(nil), results...)
		a.AIResults = nil
		a.FinalData = nil
		return nil
	})
}

// SaveAIResults stores AI output and drops the search payload.
func (r *MemoryRepo) SaveAIResults(_ context.Context, analysisID string, results map[string]any) error {
	return r.updateActive(analysisID, func(a *Analysis) error {
		a.AIResults = maps.Clone(results)
		a.SearchResults = nil
		return nil
	})
}

// Complete stores final data and marks the analysis completed.
func (r *MemoryRepo) Complete(_ context.Context, analysisID string, finalData map[string]any, completedAt time.Time) error {
	return r.updateActive(analysisID, func(a *Analysis) error {
		a.Status = StatusCompleted
		a.FinalData = maps.Clone(finalData)
		a.SearchResults = nil
		a.AIResults = nil
		a.CurrentStep = StepNone
		a.Progress = 0
		a.ErrorCode = ""
		a.ErrorMessage = nil
		a.ErrorTrace = nil
		t := completedAt.UTC()
		a.CompletedAt = &t
		return nil
	})
}

// Fail marks the analysis failed with error details.
func (r *MemoryRepo) Fail(_ context.Context, analysisID, code, message, trace string, completedAt time.Time) error {
	return r.updateActive(analysisID, func(a *Analysis) error {
		a.Status = StatusFailed
		a.CurrentStep = StepNone
		a.ErrorCode = code
		a.ErrorMessage = &message
		if trace != "" {
			a.ErrorTrace = &trace
		}
		t := completedAt.UTC()
		a.CompletedAt = &t
		return nil
	})
}

// ResetForRetry returns a failed analysis to pending with a clean slate.
func (r *MemoryRepo) ResetForRetry(_ context.Context, analysisID, trigger string) (Analysis, error) {
	var out Analysis
	err := r.update(analysisID, func(a *Analysis) error {
		if a.Status != StatusFailed {
			return ErrNotFailed
		}
		a.Status = StatusPending
		a.CurrentStep = StepNone
		a.Progress = 0
		a.ErrorCode = ""
		a.ErrorMessage = nil
		a.ErrorTrace = nil
		a.SearchResults = nil
		a.AIResults = nil
		a.FinalData = nil
		a.StartedAt = nil
		a.CompletedAt = nil
		a.TriggerSource = trigger
		out = clone(*a)
		return nil
	})
	return out, err
}

// updateActive applies fn only while the analysis is pending or processing.
func (r *MemoryRepo) updateActive(analysisID string, fn func(a *Analysis) error) error {
	return r.update(analysisID, func(a *Analysis) error {
		if a.Terminal() {
			return ErrTerminal
		}
		return fn(a)
	})
}

func (r *MemoryRepo) update(analysisID string, fn func(a *Analysis) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.items[analysisID]
	if !ok {
		return ErrNotFound
	}
	if err := fn(&a); err != nil {
		return err
	}
	a.UpdatedAt = r.now().UTC()
	r.items[analysisID] = a
	return nil
}

func (r *MemoryRepo) forEntityLocked(targetEntityID string) []Analysis {
	var out []Analysis
	for _, a := range r.items {
		if a.TargetEntityID == targetEntityID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (r *MemoryRepo) latestLocked(targetEntityID string, activeOnly bool) (Analysis, bool) {
	for _, a := range r.forEntityLocked(targetEntityID) {
		if !activeOnly || !a.Terminal() {
			return a, true
		}
	}
	return Analysis{}, false
}

// clone copies the slices and top-level maps of a record. Nested values inside AIResults and FinalData
// are decoded JSON and are treated as read-only.
func clone(a Analysis) Analysis {
	if a.SearchResults != nil {
		a.SearchResults = append([]search.Result(nil), a.SearchResults...)
	}
	a.AIResults = maps.Clone(a.AIResults)
	a.FinalData = maps.Clone(a.FinalData)
	if a.ErrorMessage != nil {
		msg := *a.ErrorMessage
		a.ErrorMessage = &msg
	}
	if a.ErrorTrace != nil {
		trace := *a.ErrorTrace
		a.ErrorTrace = &trace
	}
	return a
}
