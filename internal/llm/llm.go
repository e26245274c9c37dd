package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Client abstracts LLM providers for competitor analysis.
// Analyze returns the provider's raw text; callers run it through ParseObject.
type Client interface {
	Analyze(ctx context.Context, prompt string, input map[string]any) (string, error)
}

// ErrNotImplemented is returned by the placeholder client.
var ErrNotImplemented = errors.New("LLM not implemented")

// PlaceholderClient is used when no AI provider is configured.
type PlaceholderClient struct{}

// Analyze returns ErrNotImplemented.
func (PlaceholderClient) Analyze(ctx context.Context, prompt string, input map[string]any) (string, error) {
	_ = ctx
	_ = prompt
	_ = input
	return "", ErrNotImplemented
}

// ComposeUserMessage renders the context object and instructions into a single user message.
func ComposeUserMessage(prompt string, input map[string]any) (string, error) {
	data, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode analysis context: %w", err)
	}
	return fmt.Sprintf("Context data: \n%s\n\nInstructions: \n%s\n\nReturn strictly valid minified JSON without markdown formatting.", data, prompt), nil
}
