package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	tavilyURL = "https://api.tavily.com/search"
	braveURL  = "https://api.search.brave.com/res/v1/web/search"
)

// TavilyProvider queries the Tavily search API.
type TavilyProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewTavilyProvider constructs a Tavily provider.
func NewTavilyProvider(apiKey string) (*TavilyProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("SEARCH_API_KEY is required for tavily")
	}
	return &TavilyProvider{apiKey: apiKey, endpoint: tavilyURL, httpClient: &http.Client{Timeout: 30 * time.Second}}, nil
}

type tavilyRequest struct {
	APIKey      string `json:"api_key"`
	Query       string `json:"query"`
	SearchDepth string `json:"search_depth"`
	MaxResults  int    `json:"max_results"`
}

type tavilyResponse struct {
	Results []Result `json:"results"`
	Detail  any      `json:"detail,omitempty"`
	Error   string   `json:"error,omitempty"`
}

// Search posts the query and returns Tavily's results list.
func (p *TavilyProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	payload, err := json.Marshal(tavilyRequest{APIKey: p.apiKey, Query: query, SearchDepth: "advanced", MaxResults: limit})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	body, status, err := do(p.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("tavily request: %w", err)
	}
	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("tavily status %d: invalid body: %w", status, err)
	}
	if status != http.StatusOK || parsed.Results == nil {
		msg := parsed.Error
		if msg == "" && parsed.Detail != nil {
			msg = fmt.Sprint(parsed.Detail)
		}
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("tavily status %d: %s", status, msg)
	}
	return parsed.Results, nil
}

// BraveProvider queries the Brave web search API.
type BraveProvider struct {
	apiKey     string
	endpoint   string
	httpClient *http.Client
}

// NewBraveProvider constructs a Brave provider.
func NewBraveProvider(apiKey string) (*BraveProvider, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("SEARCH_API_KEY is required for brave")
	}
	return &BraveProvider{apiKey: apiKey, endpoint: braveURL, httpClient: &http.Client{Timeout: 30 * time.Second}}, nil
}

type braveResponse struct {
	Web *struct {
		Results []struct {
			URL         string `json:"url"`
			Title       string `json:"title"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
	Message string `json:"message,omitempty"`
}

// Search issues a GET and maps Brave's web results onto Result. Brave has no relevance score.
func (p *BraveProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	q := url.Values{}
	q.Set("q", query)
	q.Set("count", strconv.Itoa(limit))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", p.apiKey)

	body, status, err := do(p.httpClient, req)
	if err != nil {
		return nil, fmt.Errorf("brave request: %w", err)
	}
	var parsed braveResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("brave status %d: invalid body: %w", status, err)
	}
	if status != http.StatusOK || parsed.Web == nil {
		msg := parsed.Message
		if msg == "" {
			msg = "unknown error"
		}
		return nil, fmt.Errorf("brave status %d: %s", status, msg)
	}
	out := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		out = append(out, Result{URL: r.URL, Title: r.Title, Content: r.Description})
	}
	return out, nil
}

func do(client *http.Client, req *http.Request) ([]byte, int, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}
