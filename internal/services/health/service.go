package health

import (
	"context"
	"sort"
	"time"
)

const checkTimeout = 2 * time.Second

// CheckFunc probes one dependency.
type CheckFunc func(ctx context.Context) error

// Service aggregates dependency checks for the health endpoint.
type Service struct {
	checks map[string]CheckFunc
}

// NewService constructs a new health service.
func NewService() *Service {
	return &Service{checks: make(map[string]CheckFunc)}
}

// Register adds a named check. A nil check is ignored.
func (s *Service) Register(name string, check CheckFunc) {
	if check == nil {
		return
	}
	s.checks[name] = check
}

// Status runs every check and reports per-dependency results and overall health.
func (s *Service) Status(ctx context.Context) (map[string]string, bool) {
	out := map[string]string{}
	ok := true
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		cctx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := s.checks[name](cctx)
		cancel()
		if err != nil {
			out[name] = "error: " + err.Error()
			ok = false
			continue
		}
		out[name] = "ok"
	}
	return out, ok
}
