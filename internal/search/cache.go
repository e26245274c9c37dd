package search

import (
	"context"
	"fmt"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"competitor-knowledge/internal/shared/telemetry"
)

// CachedProvider memoizes successful searches per (query, limit) in a bounded LRU.
// Empty and failed searches are not cached.
type CachedProvider struct {
	next  Provider
	cache *lru.Cache[string, []Result]
}

// NewCachedProvider wraps next with an LRU of the given size.
func NewCachedProvider(next Provider, size int) (*CachedProvider, error) {
	if size <= 0 {
		size = 256
	}
	cache, err := lru.New[string, []Result](size)
	if err != nil {
		return nil, fmt.Errorf("search cache: %w", err)
	}
	return &CachedProvider{next: next, cache: cache}, nil
}

// Search returns a cached copy when available, otherwise delegates.
func (p *CachedProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	key := fmt.Sprintf("%d|%s", limit, strings.ToLower(strings.TrimSpace(query)))
	if hit, ok := p.cache.Get(key); ok {
		telemetry.Info("search.cache.hit", map[string]any{"query": query, "results": len(hit)})
		return append([]Result(nil), hit...), nil
	}
	results, err := p.next.Search(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		p.cache.Add(key, append([]Result(nil), results...))
	}
	return results, nil
}
