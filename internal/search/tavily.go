package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const tavilyEndpoint = "https://api.tavily.com"

// TavilyClient talks to the Tavily search API. Tavily is the secondary
// web tier: AI-optimized snippets with a small free allowance, so it is
// only reached when Brave cannot serve.
type TavilyClient struct {
	apiKey   string
	endpoint string
	client   *http.Client
}

// NewTavilyClient creates a Tavily client. An empty endpoint uses the
// public API.
func NewTavilyClient(apiKey, endpoint string) *TavilyClient {
	if endpoint == "" {
		endpoint = tavilyEndpoint
	}
	return &TavilyClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether an API key is present.
func (t *TavilyClient) Configured() bool {
	return t.apiKey != ""
}

// Search runs a basic-depth search. When Tavily includes a synthesized
// answer it is returned first as its own result.
func (t *TavilyClient) Search(ctx context.Context, query string, count int) ([]Result, error) {
	if t.apiKey == "" {
		return nil, fmt.Errorf("tavily: no API key")
	}

	maxResults := count
	if maxResults > 5 {
		maxResults = 5
	}

	body, err := json.Marshal(tavilySearchRequest{
		APIKey:        t.apiKey,
		Query:         query,
		MaxResults:    maxResults,
		IncludeAnswer: true,
		SearchDepth:   "basic",
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", t.endpoint+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily error (status %d)", resp.StatusCode)
	}

	var parsed tavilySearchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	var results []Result
	if parsed.Answer != "" {
		results = append(results, Result{
			Title:       "AI Summary",
			Description: parsed.Answer,
			Source:      "tavily_answer",
		})
	}
	for _, r := range parsed.Results {
		results = append(results, Result{
			Title:       r.Title,
			URL:         r.URL,
			Description: r.Content,
			Source:      "tavily",
			Score:       r.Score,
		})
	}
	if len(results) > count {
		results = results[:count]
	}
	return results, nil
}

// Tavily API types
type tavilySearchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results"`
	IncludeAnswer bool   `json:"include_answer"`
	SearchDepth   string `json:"search_depth"`
}

type tavilySearchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}
