package gemini

import (
	"context"
	"errors"
	"testing"

	genai "google.golang.org/genai"
)

func TestFirstText(t *testing.T) {
	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []*genai.Part{{Text: `{"competitors":`}, {Text: `[]}`}}},
		}},
	}
	got, err := firstText(resp)
	if err != nil {
		t.Fatalf("firstText: %v", err)
	}
	if got != `{"competitors":[]}` {
		t.Fatalf("unexpected text %q", got)
	}
}

func TestFirstTextEmpty(t *testing.T) {
	cases := []*genai.GenerateContentResponse{
		nil,
		{},
		{Candidates: []*genai.Candidate{{}}},
		{Candidates: []*genai.Candidate{{Content: &genai.Content{Parts: []*genai.Part{{Text: "  "}}}}}},
	}
	for i, resp := range cases {
		if _, err := firstText(resp); !errors.Is(err, ErrEmptyResponse) {
			t.Fatalf("case %d: expected ErrEmptyResponse, got %v", i, err)
		}
	}
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(context.Background(), "", "gemini-2.0-flash"); err == nil {
		t.Fatalf("expected error without api key")
	}
}
