package search

import "competitor-knowledge/internal/shared/util"

// Limits applied before search results are sent to the AI provider.
const (
	MaxResults      = 5
	MaxTitleChars   = 200
	MaxContentChars = 2000
)

// Truncated is the bounded form of a Result forwarded to the AI step.
type Truncated struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Content string   `json:"content,omitempty"`
	Score   *float64 `json:"score,omitempty"`
}

// Truncate keeps the first MaxResults hits in order and caps title and body text.
// Content is preferred over Snippet. Lengths are counted in runes.
func Truncate(results []Result) []Truncated {
	n := len(results)
	if n > MaxResults {
		n = MaxResults
	}
	out := make([]Truncated, 0, n)
	for _, r := range results[:n] {
		body := r.Content
		if body == "" {
			body = r.Snippet
		}
		t := Truncated{
			Title:   util.TruncateRunes(r.Title, MaxTitleChars),
			URL:     r.URL,
			Content: util.TruncateRunes(body, MaxContentChars),
		}
		if r.Score != nil {
			score := *r.Score
			t.Score = &score
		}
		out = append(out, t)
	}
	return out
}
