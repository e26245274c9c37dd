package search

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func ptr(f float64) *float64 { return &f }

func TestTruncateBounds(t *testing.T) {
	var in []Result
	for i := 0; i < 12; i++ {
		in = append(in, Result{
			URL:     "https://example.com/" + strings.Repeat("p", i),
			Title:   strings.Repeat("T", 500),
			Content: strings.Repeat("c", 10000),
		})
	}
	out := Truncate(in)
	if len(out) != MaxResults {
		t.Fatalf("expected %d results, got %d", MaxResults, len(out))
	}
	for i, r := range out {
		if utf8.RuneCountInString(r.Title) > MaxTitleChars {
			t.Fatalf("title %d too long: %d", i, len(r.Title))
		}
		if utf8.RuneCountInString(r.Content) > MaxContentChars {
			t.Fatalf("content %d too long: %d", i, len(r.Content))
		}
		if r.URL != in[i].URL {
			t.Fatalf("order or url changed at %d", i)
		}
	}
}

func TestTruncatePrefersContentOverSnippet(t *testing.T) {
	out := Truncate([]Result{
		{Title: "a", Content: "full body", Snippet: "short", Score: ptr(0.9)},
		{Title: "b", Snippet: "only snippet"},
		{Title: "c"},
	})
	if out[0].Content != "full body" {
		t.Fatalf("expected content, got %q", out[0].Content)
	}
	if out[0].Score == nil || *out[0].Score != 0.9 {
		t.Fatalf("expected score carried through")
	}
	if out[1].Content != "only snippet" || out[1].Score != nil {
		t.Fatalf("unexpected second result: %+v", out[1])
	}
	if out[2].Content != "" {
		t.Fatalf("expected empty content, got %q", out[2].Content)
	}
}

func TestTruncateMultibyte(t *testing.T) {
	title := strings.Repeat("é", 300)
	out := Truncate([]Result{{Title: title, Content: strings.Repeat("日本", 1500)}})
	if !utf8.ValidString(out[0].Title) || !utf8.ValidString(out[0].Content) {
		t.Fatalf("truncation split a rune")
	}
	if utf8.RuneCountInString(out[0].Title) != MaxTitleChars {
		t.Fatalf("expected %d runes, got %d", MaxTitleChars, utf8.RuneCountInString(out[0].Title))
	}
	if utf8.RuneCountInString(out[0].Content) != MaxContentChars {
		t.Fatalf("expected %d runes, got %d", MaxContentChars, utf8.RuneCountInString(out[0].Content))
	}
}

func TestTruncateEmpty(t *testing.T) {
	if out := Truncate(nil); len(out) != 0 {
		t.Fatalf("expected empty output, got %v", out)
	}
}

func TestBuildQuery(t *testing.T) {
	got := BuildQuery("  Widget   Pro ", []string{"Tools", " Hardware"})
	want := "Widget Pro Tools Hardware competitors pricing features reviews"
	if got != want {
		t.Fatalf("BuildQuery = %q, want %q", got, want)
	}
}
