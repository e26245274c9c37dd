package analyses

import (
	"context"
	"errors"

	"competitor-knowledge/internal/queue"
)

// RunSync creates an analysis and runs every step in-process, returning the final record.
// Steps are the same ones the workers run; only dispatch differs.
func (s *Service) RunSync(ctx context.Context, entityID, trigger string) (Analysis, error) {
	if s.Pipeline == nil {
		return Analysis{}, errors.New("pipeline not configured")
	}
	analysis, created, err := s.create(ctx, entityID, trigger)
	if err != nil {
		return Analysis{}, err
	}
	if !created {
		return analysis, ErrInFlight
	}

	step := queue.StepSearch
	for step != "" {
		outcome, err := s.Pipeline.Execute(ctx, analysis.ID, step)
		if err != nil {
			return Analysis{}, err
		}
		step = outcome.Next
	}
	return s.Repo.GetByID(ctx, analysis.ID)
}
