package search

import (
	"context"
	"errors"
)

// Result is one search hit as returned by a provider.
type Result struct {
	URL     string   `json:"url"`
	Title   string   `json:"title"`
	Content string   `json:"content,omitempty"`
	Snippet string   `json:"snippet,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// Provider runs a web search and returns hits in relevance order.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// ErrNotConfigured is returned by the placeholder provider.
var ErrNotConfigured = errors.New("search provider not configured")

// PlaceholderProvider is used when no search provider is configured.
type PlaceholderProvider struct{}

// Search returns ErrNotConfigured.
func (PlaceholderProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	_ = ctx
	_ = query
	_ = limit
	return nil, ErrNotConfigured
}
