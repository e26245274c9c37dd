package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"competitor-knowledge/internal/llm"
	"competitor-knowledge/internal/shared/telemetry"
)

const (
	defaultBaseURL    = "https://api.openai.com/v1"
	openRouterBaseURL = "https://openrouter.ai/api/v1"
)

// Client implements llm.Client against any OpenAI-compatible Chat Completions endpoint
// (OpenAI, OpenRouter, Ollama's /v1 API).
type Client struct {
	apiKey     string
	model      string
	endpoint   string
	referer    string
	jsonMode   bool
	httpClient *http.Client
}

// Options configures a Client.
type Options struct {
	APIKey  string
	Model   string
	BaseURL string
	// Referer is sent as HTTP-Referer; OpenRouter uses it for attribution.
	Referer string
	// JSONMode requests response_format=json_object. Not every compatible server supports it.
	JSONMode bool
}

// NewClient constructs a new OpenAI-compatible client.
func NewClient(opts Options) (*Client, error) {
	if strings.TrimSpace(opts.Model) == "" {
		return nil, fmt.Errorf("AI_MODEL is required")
	}
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	if strings.TrimSpace(opts.APIKey) == "" && !isLocalEndpoint(base) {
		return nil, fmt.Errorf("AI_API_KEY is required")
	}
	timeout := 120 * time.Second
	if raw := strings.TrimSpace(os.Getenv("AI_TIMEOUT_SECONDS")); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			timeout = time.Duration(parsed) * time.Second
		}
	}
	return &Client{
		apiKey:   opts.APIKey,
		model:    opts.Model,
		endpoint: base + "/chat/completions",
		referer:  opts.Referer,
		jsonMode: opts.JSONMode,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// NewOpenRouterClient constructs a client pointed at OpenRouter.
func NewOpenRouterClient(apiKey, model, referer string) (*Client, error) {
	return NewClient(Options{APIKey: apiKey, Model: model, BaseURL: openRouterBaseURL, Referer: referer})
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Analyze sends the prompt and context as a single user message and returns the raw reply text.
func (c *Client) Analyze(ctx context.Context, prompt string, input map[string]any) (string, error) {
	content, err := llm.ComposeUserMessage(prompt, input)
	if err != nil {
		return "", err
	}

	temp := float32(0)
	reqBody := chatRequest{
		Model:    c.model,
		Messages: []chatMessage{{Role: "user", Content: content}},
	}
	if !isGPT5(c.model) {
		reqBody.Temperature = &temp
	}
	if c.jsonMode {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	if c.referer != "" {
		req.Header.Set("HTTP-Referer", c.referer)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return "", fmt.Errorf("ai request timeout: %w", err)
		}
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		if resp.StatusCode >= 400 {
			return "", fmt.Errorf("ai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return "", fmt.Errorf("ai response parse: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("ai http status %d: %s (%s)", resp.StatusCode, parsed.Error.Message, parsed.Error.Type)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("ai http status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("ai response missing choices")
	}

	logUsage(c.model, parsed)

	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("ai response empty content")
	}
	return text, nil
}

func logUsage(model string, resp chatResponse) {
	fields := map[string]any{"model": model, "response_model": resp.Model}
	if resp.Usage != nil {
		fields["prompt_tokens"] = resp.Usage.PromptTokens
		fields["completion_tokens"] = resp.Usage.CompletionTokens
		fields["total_tokens"] = resp.Usage.TotalTokens
	}
	telemetry.Info("llm.response", fields)
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func isLocalEndpoint(base string) bool {
	return strings.Contains(base, "localhost") || strings.Contains(base, "127.0.0.1")
}

var _ llm.Client = (*Client)(nil)
